package service

import (
	"time"

	"github.com/okian/sickbay/internal/adapters/cache"
	"github.com/okian/sickbay/internal/adapters/evidence"
	"github.com/okian/sickbay/internal/domain/absence"
	"github.com/okian/sickbay/internal/domain/scoring"
	"github.com/okian/sickbay/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEvidenceSource sets where text snippets come from.
func WithEvidenceSource(src evidence.Source) Option {
	return func(s *Service) {
		s.evidence = src
	}
}

// WithCache sets the validation cache.
func WithCache(c cache.ValidationCache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithAnalyzer replaces the analyzer built from the default keyword profile.
func WithAnalyzer(a *scoring.TextSignalAnalyzer) Option {
	return func(s *Service) {
		if a != nil {
			s.analyzer = a
		}
	}
}

// WithAbsenceFilter replaces the default absence filter.
func WithAbsenceFilter(f *absence.Filter) Option {
	return func(s *Service) {
		if f != nil {
			s.filter = f
		}
	}
}

// WithSeason sets the season queried from the absence feed.
func WithSeason(season int) Option {
	return func(s *Service) {
		if season > 0 {
			s.season = season
		}
	}
}

// WithTeamIDs sets the teams whose absence feed is read.
func WithTeamIDs(ids ...int64) Option {
	return func(s *Service) {
		s.teamIDs = append([]int64(nil), ids...)
	}
}

// WithWorkerCount sets the number of validation workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithMaxPlayersPerRun caps how many players are validated per run.
func WithMaxPlayersPerRun(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxPlayers = n
		}
	}
}

// WithMaxSummaryErrors caps the error messages kept in a run summary.
func WithMaxSummaryErrors(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxErrors = n
		}
	}
}

// WithRecentFixtureCount sets how many completed fixtures validation inspects.
func WithRecentFixtureCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.fixtureCount = n
		}
	}
}

// WithUpdateThreshold sets the confidence above which an active record is rewritten.
func WithUpdateThreshold(v float64) Option {
	return func(s *Service) {
		if v >= 0 && v <= 1 {
			s.updateThreshold = v
		}
	}
}

// WithRunInterval schedules runs after Start. Zero disables scheduling.
func WithRunInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.interval = d
		}
	}
}

// WithClock overrides the run clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
