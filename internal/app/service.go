// Package service wires the pipeline stages into batch runs and exposes the
// read side used by the HTTP API.
package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/sickbay/internal/adapters/cache"
	"github.com/okian/sickbay/internal/adapters/evidence"
	"github.com/okian/sickbay/internal/adapters/repository"
	"github.com/okian/sickbay/internal/domain/absence"
	"github.com/okian/sickbay/internal/domain/keywords"
	"github.com/okian/sickbay/internal/domain/model"
	"github.com/okian/sickbay/internal/domain/scoring"
	"github.com/okian/sickbay/internal/domain/validation"
	"github.com/okian/sickbay/pkg/logger"
)

const (
	defaultWorkerCount  = 4
	defaultMaxPlayers   = 50
	defaultMaxErrors    = 5
	defaultFixtureCount = 3
	defaultUpdateThresh = 0.7
)

// Provider is the structured feed: raw absences plus the fixtures and lineups
// used to validate them.
type Provider interface {
	validation.FixtureSource
	Injuries(ctx context.Context, season int, teamID, playerID int64) ([]model.RawAbsence, error)
}

// Service runs the injury pipeline against one store.
type Service struct {
	mu sync.Mutex

	// Collaborators
	store    repository.Store
	provider Provider
	evidence evidence.Source
	cache    cache.ValidationCache
	analyzer *scoring.TextSignalAnalyzer
	filter   *absence.Filter

	// Configuration
	season          int
	teamIDs         []int64
	workerCount     int
	maxPlayers      int
	maxErrors       int
	fixtureCount    int
	updateThreshold float64
	interval        time.Duration
	now             func() time.Time

	// State
	running atomic.Bool
	started bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	logger logger.Logger
}

// New constructs a Service. The analyzer and filter default to the built-in
// keyword profile.
func New(store repository.Store, provider Provider, opts ...Option) (*Service, error) {
	if provider == nil {
		return nil, ErrNoProvider
	}
	s := &Service{
		store:           store,
		provider:        provider,
		cache:           cache.Noop{},
		season:          time.Now().Year(),
		workerCount:     defaultWorkerCount,
		maxPlayers:      defaultMaxPlayers,
		maxErrors:       defaultMaxErrors,
		fixtureCount:    defaultFixtureCount,
		updateThreshold: defaultUpdateThresh,
		now:             time.Now,
		logger:          logger.Get().Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.analyzer == nil {
		a, err := scoring.NewTextSignalAnalyzer(keywords.Default())
		if err != nil {
			return nil, err
		}
		s.analyzer = a
	}
	if s.filter == nil {
		s.filter = absence.NewFilter(keywords.DefaultAbsence())
	}
	return s, nil
}

// Start begins scheduled runs when an interval is configured.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.interval <= 0 {
		return nil
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.started = true

	go s.schedule(ctx, s.stopCh, s.doneCh)
	s.logger.Info(ctx, "scheduled runs started", logger.Duration("interval", s.interval))
	return nil
}

// Stop ends scheduled runs and waits for an active scheduled run to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	close(s.stopCh)
	<-s.doneCh
	s.started = false
	s.logger.Info(context.Background(), "scheduled runs stopped")
}

func (s *Service) schedule(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if _, err := s.Run(ctx); err != nil && !errors.Is(err, ErrRunInProgress) {
				s.logger.Error(ctx, "scheduled run failed", logger.Error(err))
			}
		}
	}
}

// Analyze scores one snippet without touching the store.
func (s *Service) Analyze(text, playerName, source string, sourceType model.SourceType) model.AnalysisResult {
	return s.analyzer.Analyze(text, playerName, source, sourceType)
}

// Injuries lists injury records.
func (s *Service) Injuries(ctx context.Context, f repository.InjuryFilter) ([]model.InjuryRecord, error) {
	return s.store.ListInjuries(ctx, f)
}

// Player returns one player with its derived flags.
func (s *Service) Player(ctx context.Context, id int64) (model.Player, error) {
	return s.store.GetPlayer(ctx, id)
}

// LastRun returns the most recent run summary.
func (s *Service) LastRun(ctx context.Context) (model.RunSummary, error) {
	return s.store.LastRun(ctx)
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ActiveInjuryCount returns the number of active injury records.
func (s *Service) ActiveInjuryCount(ctx context.Context) (int, error) {
	return s.store.CountActiveInjuries(ctx)
}
