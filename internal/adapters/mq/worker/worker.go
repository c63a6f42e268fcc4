// Package worker validates and reconciles queued player cases with a bounded pool.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/sickbay/internal/adapters/cache"
	"github.com/okian/sickbay/internal/adapters/mq/queue"
	"github.com/okian/sickbay/internal/domain/model"
	"github.com/okian/sickbay/pkg/logger"
	"github.com/okian/sickbay/pkg/metrics"
)

const (
	defaultWorkerCount  = 4
	poolShutdownTimeout = 30 * time.Second
)

// ErrPanic wraps a recovered panic while processing one job.
var ErrPanic = errors.New("job panicked")

// Job abstracts what workers read off the queue.
type Job = queue.Job

// Validator cross-checks a suspicion against recent lineups.
type Validator interface {
	Validate(ctx context.Context, playerID int64, playerName string, teamID int64, suspected bool) model.ValidationResult
}

// Reconciler persists the verdict for one player.
type Reconciler interface {
	Reconcile(ctx context.Context, c model.PlayerCase, v model.ValidationResult, at time.Time) (model.Outcome, error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Result is reported for every processed job, including failed ones.
type Result struct {
	Case       model.PlayerCase
	Validation model.ValidationResult
	Outcome    model.Outcome
	Cached     bool
	Err        error
}

// Sink receives results. It is called concurrently from every worker.
type Sink func(Result)

// Worker processes jobs until the queue is drained or it is shut down.
type Worker interface {
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue      Queue
	validator  Validator
	reconciler Reconciler
	cache      cache.ValidationCache
	sink       Sink
	runAt      time.Time
	name       string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, validator Validator, reconciler Reconciler, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:      q,
		validator:  validator,
		reconciler: reconciler,
		cache:      cache.Noop{},
		sink:       func(Result) {},
		name:       "worker",
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			res := w.process(ctx, j)
			if res.Err != nil {
				w.logger.Warn(ctx, "player skipped",
					logger.Int64("player_id", j.Player.ID),
					logger.Error(res.Err),
				)
			}
			w.sink(res)
		}
	}
}

// Shutdown stops the worker after its current job.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process validates one case, using the cache when possible, then reconciles it.
// A panic is contained to the job.
func (w *InMemoryWorker) process(ctx context.Context, j Job) (res Result) { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	start := time.Now()
	res.Case = j
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordErrorByComponent("worker", "panic")
			res.Err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
		metrics.RecordWorkerJobDuration(time.Since(start).Seconds())
	}()

	at := w.runAt
	if at.IsZero() {
		at = time.Now()
	}
	p := j.Player

	v, hit := w.cache.Get(ctx, p.ID, at)
	if !hit {
		v = w.validator.Validate(ctx, p.ExternalID, p.DisplayName, p.TeamID, j.Suspicion.Suspected)
		w.cache.Set(ctx, p.ID, at, v)
	}
	res.Validation = v
	res.Cached = hit

	out, err := w.reconciler.Reconcile(ctx, j, v, at)
	res.Outcome = out
	res.Err = err
	return res
}

// Pool manages multiple workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a pool of workerCount workers sharing opts.
func NewPool(workerCount int, q Queue, validator Validator, reconciler Reconciler, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		wopts := append(append([]Option{}, opts...), WithName("worker-"+strconv.Itoa(i)))
		p.workers[i] = NewInMemoryWorker(q, validator, reconciler, wopts...)
	}
	return p
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	metrics.UpdateWorkerActiveCount(len(p.workers))
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Wait blocks until every worker has returned, which happens once the queue
// is closed and drained or ctx is done.
func (p *Pool) Wait() {
	for _, w := range p.workers {
		<-w.done
	}
	metrics.UpdateWorkerActiveCount(0)
}

// Shutdown closes the queue and stops every worker.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var errs []error
	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			errs = append(errs, err)
		}
	}
	metrics.UpdateWorkerActiveCount(0)
	return errors.Join(errs...)
}
