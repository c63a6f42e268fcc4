package main

import (
	"context"
	"fmt"

	"github.com/okian/sickbay/internal/adapters/cache"
	"github.com/okian/sickbay/internal/adapters/evidence"
	"github.com/okian/sickbay/internal/adapters/provider"
	"github.com/okian/sickbay/internal/adapters/repository"
	service "github.com/okian/sickbay/internal/app"
	"github.com/okian/sickbay/internal/config"
	"github.com/okian/sickbay/internal/domain/absence"
	"github.com/okian/sickbay/internal/domain/dedupe"
	"github.com/okian/sickbay/internal/domain/keywords"
	"github.com/okian/sickbay/internal/domain/scoring"
	"github.com/okian/sickbay/pkg/logger"
)

// app holds everything a command needs, plus what must be closed on exit.
type app struct {
	cfg     *config.Config
	store   repository.Store
	svc     *service.Service
	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Get().Warn(context.Background(), "close failed", logger.Error(err))
		}
	}
}

// analyzer builds the text analyzer from the configured keyword profile.
func analyzer(cfg *config.Config) (*scoring.TextSignalAnalyzer, keywords.Profile, error) {
	profile := keywords.Default()
	if cfg.KeywordProfilePath != "" {
		p, err := keywords.LoadFile(cfg.KeywordProfilePath)
		if err != nil {
			return nil, keywords.Profile{}, err
		}
		profile = p
	}
	a, err := scoring.NewTextSignalAnalyzer(profile, scoring.WithProbableThreshold(cfg.ProbableThreshold))
	if err != nil {
		return nil, keywords.Profile{}, err
	}
	return a, profile, nil
}

func build(ctx context.Context, cfg *config.Config) (*app, error) {
	log := logger.Get()
	a := &app{cfg: cfg}

	store, err := repository.Open(ctx, cfg.DBDriver, cfg.DBDSN, repository.WithLogger(log.Named("repository")))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	client := provider.NewClient(cfg.ProviderAPIKey,
		provider.WithBaseURL(cfg.ProviderBaseURL),
		provider.WithTimeout(cfg.ProviderTimeout()),
		provider.WithRequestsPerMinute(cfg.ProviderRequestsPerMinute),
		provider.WithLogger(log.Named("provider")),
	)
	if !client.Available() {
		log.Warn(ctx, "no provider api key configured; feed requests will be rejected")
	}

	textAnalyzer, profile, err := analyzer(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	opts := []service.Option{
		service.WithLogger(log.Named("service")),
		service.WithAnalyzer(textAnalyzer),
		service.WithAbsenceFilter(absence.NewFilter(profile.Absence)),
		service.WithSeason(cfg.Season),
		service.WithTeamIDs(cfg.TeamIDs...),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithMaxPlayersPerRun(cfg.MaxPlayersPerRun),
		service.WithMaxSummaryErrors(cfg.MaxSummaryErrors),
		service.WithRecentFixtureCount(cfg.RecentFixtureCount),
		service.WithUpdateThreshold(cfg.UpdateConfidenceThreshold),
		service.WithRunInterval(cfg.RunInterval()),
	}

	if cfg.EvidencePath != "" {
		seen := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(cfg.DedupeCapacity))
		opts = append(opts, service.WithEvidenceSource(evidence.NewFileSource(cfg.EvidencePath,
			evidence.WithDeduper(seen),
			evidence.WithLogger(log.Named("evidence")),
		)))
	}

	if cfg.RedisURL != "" {
		rc, rdb, err := cache.Dial(ctx, cfg.RedisURL,
			cache.WithTTL(cfg.ValidationCacheTTL()),
			cache.WithLogger(log.Named("cache")),
		)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("dial redis: %w", err)
		}
		a.closers = append(a.closers, rdb.Close)
		opts = append(opts, service.WithCache(rc))
	}

	svc, err := service.New(store, client, opts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.svc = svc
	return a, nil
}
