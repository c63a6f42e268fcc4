// Package config defines the service configuration and how it is loaded.
package config

import "time"

// Database drivers accepted by db_driver.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`

	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr" validate:"required"`

	DBDriver string `koanf:"db_driver" validate:"oneof=sqlite postgres"`
	DBDSN    string `koanf:"db_dsn"`

	// RedisURL enables the validation cache when set.
	RedisURL                  string `koanf:"redis_url" validate:"omitempty,url"`
	ValidationCacheTTLSeconds int    `koanf:"validation_cache_ttl_seconds" validate:"gte=0"`

	ProviderBaseURL           string `koanf:"provider_base_url" validate:"required,url"`
	ProviderAPIKey            string `koanf:"provider_api_key"`
	ProviderRequestsPerMinute int    `koanf:"provider_requests_per_minute" validate:"gt=0"`
	ProviderTimeoutMS         int    `koanf:"provider_timeout_ms" validate:"gt=0"`

	// Season and TeamIDs scope the structured absence feed.
	Season  int     `koanf:"season" validate:"gt=0"`
	TeamIDs []int64 `koanf:"team_ids"`

	// EvidencePath is a JSON-lines file of text snippets. Empty disables text evidence.
	EvidencePath string `koanf:"evidence_path"`

	// KeywordProfilePath overrides the built-in keyword tables.
	KeywordProfilePath string `koanf:"keyword_profile_path"`

	ProbableThreshold         float64 `koanf:"probable_threshold" validate:"gte=0,lte=1"`
	UpdateConfidenceThreshold float64 `koanf:"update_confidence_threshold" validate:"gte=0,lte=1"`
	RecentFixtureCount        int     `koanf:"recent_fixture_count" validate:"gt=0"`
	WorkerCount               int     `koanf:"worker_count" validate:"gt=0"`
	MaxPlayersPerRun          int     `koanf:"max_players_per_run" validate:"gt=0"`
	MaxSummaryErrors          int     `koanf:"max_summary_errors" validate:"gte=0"`
	DedupeCapacity            int     `koanf:"dedupe_capacity" validate:"gt=0"`

	// RunIntervalSeconds schedules batches in serve mode. Zero disables them.
	RunIntervalSeconds int `koanf:"run_interval_seconds" validate:"gte=0"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:                  "info",
		LogFormat:                 "text",
		Addr:                      ":9080",
		DBDriver:                  DriverSQLite,
		DBDSN:                     "sickbay.db",
		ValidationCacheTTLSeconds: 12 * 60 * 60,
		ProviderBaseURL:           "https://v3.football.api-sports.io",
		ProviderRequestsPerMinute: 10,
		ProviderTimeoutMS:         10_000,
		Season:                    time.Now().Year(),
		ProbableThreshold:         0.5,
		UpdateConfidenceThreshold: 0.7,
		RecentFixtureCount:        3,
		WorkerCount:               4,
		MaxPlayersPerRun:          50,
		MaxSummaryErrors:          5,
		DedupeCapacity:            50_000,
	}
}

// ProviderTimeout is ProviderTimeoutMS as a duration.
func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.ProviderTimeoutMS) * time.Millisecond
}

// ValidationCacheTTL is ValidationCacheTTLSeconds as a duration.
func (c *Config) ValidationCacheTTL() time.Duration {
	return time.Duration(c.ValidationCacheTTLSeconds) * time.Second
}

// RunInterval is RunIntervalSeconds as a duration.
func (c *Config) RunInterval() time.Duration {
	return time.Duration(c.RunIntervalSeconds) * time.Second
}
