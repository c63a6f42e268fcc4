package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/sickbay/internal/adapters/evidence"
	"github.com/okian/sickbay/internal/adapters/mq/queue"
	"github.com/okian/sickbay/internal/adapters/mq/worker"
	"github.com/okian/sickbay/internal/domain/absence"
	"github.com/okian/sickbay/internal/domain/dedupe"
	"github.com/okian/sickbay/internal/domain/model"
	"github.com/okian/sickbay/internal/domain/reconcile"
	"github.com/okian/sickbay/internal/domain/validation"
	"github.com/okian/sickbay/pkg/logger"
	"github.com/okian/sickbay/pkg/metrics"
)

const (
	feedSource     = "api-football"
	recheckSource  = "recheck"
	maxDescription = 500
)

// medicalAbsence is a feed entry that passed the absence filter.
type medicalAbsence struct {
	raw     model.RawAbsence
	verdict absence.Verdict
}

// run holds the state of one batch.
type run struct {
	id      string
	at      time.Time
	log     logger.Logger
	summary model.RunSummary

	mu       sync.Mutex
	errs     *errorLog
	absences []model.RawAbsence
	items    []model.EvidenceItem
	stats    evidence.Stats
	results  []worker.Result
	cases    []model.PlayerCase

	// claims maps a player id to the indexes of the items behind its case.
	claims map[int64][]int
	// settled marks items that need no further run: negatives and claims of
	// reconciled players.
	settled []bool
}

// errorLog counts every error and keeps the first few messages.
type errorLog struct {
	max   int
	count int
	msgs  []string
}

func (e *errorLog) add(msg string) {
	e.count++
	if len(e.msgs) < e.max {
		e.msgs = append(e.msgs, msg)
	}
}

func (r *run) fail(ctx context.Context, msg string, err error, fields ...logger.Field) {
	r.mu.Lock()
	r.errs.add(fmt.Sprintf("%s: %v", msg, err))
	r.mu.Unlock()
	r.log.Warn(ctx, msg, append(fields, logger.Error(err))...)
}

// Run executes one batch: gather signals, aggregate them per player,
// validate each player against recent lineups and reconcile the verdict.
// Per-player failures are reported in the summary and never abort the run.
func (s *Service) Run(ctx context.Context) (model.RunSummary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return model.RunSummary{}, ErrRunInProgress
	}
	defer s.running.Store(false)

	start := s.now().UTC()
	id := uuid.NewString()
	r := &run{
		id:   id,
		at:   start,
		log:  s.logger.With(logger.String("run_id", id)),
		errs: &errorLog{max: s.maxErrors},
		summary: model.RunSummary{
			RunID:     id,
			StartedAt: start,
			Errors:    []string{},
		},
	}
	r.log.Info(ctx, "run started", logger.Int("teams", len(s.teamIDs)))
	defer s.release(ctx, r)

	if err := s.gather(ctx, r); err != nil {
		metrics.RecordRun("aborted", time.Since(start).Seconds())
		return model.RunSummary{}, fmt.Errorf("gather signals: %w", err)
	}

	cases := s.fromAbsences(ctx, r)
	cases = append(cases, s.fromEvidence(ctx, r)...)
	r.cases = s.merge(ctx, r, cases)
	s.addRechecks(ctx, r)

	if len(r.cases) > s.maxPlayers {
		r.log.Warn(ctx, "players per run capped",
			logger.Int("cases", len(r.cases)),
			logger.Int("max", s.maxPlayers),
		)
		r.cases = r.cases[:s.maxPlayers]
	}

	if err := s.validate(ctx, r); err != nil {
		metrics.RecordRun("aborted", time.Since(start).Seconds())
		return model.RunSummary{}, err
	}

	summary := s.finish(r)
	if err := s.store.SaveRun(ctx, summary); err != nil {
		metrics.RecordRun("error", time.Since(start).Seconds())
		return summary, fmt.Errorf("save run: %w", err)
	}
	if n, err := s.store.CountActiveInjuries(ctx); err == nil {
		metrics.UpdateActiveInjuries(n)
	}
	metrics.RecordRun("ok", time.Since(start).Seconds())

	r.log.Info(ctx, "run finished",
		logger.Int("players_checked", summary.PlayersChecked),
		logger.Int("suspected", summary.Suspected),
		logger.Int("confirmed", summary.Confirmed),
		logger.Int("cleared", summary.Cleared),
		logger.Int("errors", summary.ErrorCount),
		logger.Duration("took", summary.FinishedAt.Sub(summary.StartedAt)),
	)
	return summary, nil
}

// gather fetches the absence feed per team and the evidence snippets concurrently.
// Fetch failures are recorded; only cancellation aborts.
func (s *Service) gather(ctx context.Context, r *run) error {
	g, gctx := errgroup.WithContext(ctx)

	perTeam := make([][]model.RawAbsence, len(s.teamIDs))
	for i, team := range s.teamIDs {
		g.Go(func() error {
			rows, err := s.provider.Injuries(gctx, s.season, team, 0)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				r.fail(gctx, "absence feed unavailable", err, logger.Int64("team_id", team))
				return nil
			}
			perTeam[i] = rows
			return nil
		})
	}

	if s.evidence != nil {
		g.Go(func() error {
			items, stats, err := s.evidence.Fetch(gctx, nil)
			r.items, r.stats = items, stats
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				r.fail(gctx, "evidence unavailable", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	for _, rows := range perTeam {
		r.absences = append(r.absences, rows...)
	}
	r.summary.Duplicates += r.stats.Duplicates
	r.summary.SkippedEvidence += r.stats.Malformed
	return nil
}

// fromAbsences filters the feed to medical absences, collapses them per
// external player and upserts one player for each.
func (s *Service) fromAbsences(ctx context.Context, r *run) []model.PlayerCase {
	medical := make([]medicalAbsence, 0, len(r.absences))
	for _, a := range r.absences {
		v := s.filter.Classify(a)
		if !v.Medical {
			metrics.RecordAbsence("non_medical")
			r.log.Debug(ctx, "absence rejected",
				logger.Int64("external_id", a.ExternalPlayerID),
				logger.String("rule", string(v.Rule)),
			)
			continue
		}
		metrics.RecordAbsence("medical")
		medical = append(medical, medicalAbsence{raw: a, verdict: v})
	}

	groups := dedupe.Aggregate(ctx, r.log, "absence", medical,
		func(m medicalAbsence) int64 { return m.raw.ExternalPlayerID },
		func(c, cur medicalAbsence) bool { return c.verdict.Confidence > cur.verdict.Confidence },
	)

	cases := make([]model.PlayerCase, 0, len(groups))
	for _, g := range groups {
		a := g.Representative.raw
		p, err := s.store.UpsertPlayer(ctx, model.Player{
			ExternalID:  a.ExternalPlayerID,
			DisplayName: a.PlayerName,
			ClubName:    a.TeamName,
			TeamID:      a.TeamID,
		})
		if err != nil {
			r.fail(ctx, "upsert player", err, logger.Int64("external_id", a.ExternalPlayerID))
			continue
		}
		cases = append(cases, model.PlayerCase{
			Player:     p,
			Suspicion:  absenceSuspicion(g.Representative),
			Duplicates: g.Duplicates(),
		})
	}
	return cases
}

func absenceSuspicion(m medicalAbsence) model.Suspicion {
	return model.Suspicion{
		Suspected:   true,
		Confidence:  m.verdict.Confidence,
		Origin:      model.OriginAbsence,
		InjuryType:  strings.TrimSpace(m.raw.Reason),
		Description: truncate(fmt.Sprintf("%s: %s", m.raw.Type, m.raw.Reason)),
		Severity:    m.verdict.Severity,
		Source:      feedSource,
		ObservedAt:  m.raw.FixtureDate,
	}
}

// fromEvidence scores each snippet and resolves the named player. Names that
// match nobody are skipped; names that match several players go to review.
func (s *Service) fromEvidence(ctx context.Context, r *run) []model.PlayerCase {
	var cases []model.PlayerCase
	r.settled = make([]bool, len(r.items))
	r.claims = make(map[int64][]int)
	for i, item := range r.items {
		res := s.analyzer.AnalyzeItem(item)
		if !res.IsInjury {
			metrics.RecordEvidence("negative")
			r.settled[i] = true
			continue
		}

		p, ok := s.resolve(ctx, r, item)
		if !ok {
			continue
		}
		r.claims[p.ID] = append(r.claims[p.ID], i)
		cases = append(cases, model.PlayerCase{Player: p, Suspicion: textSuspicion(item, res)})
	}
	return cases
}

func (s *Service) resolve(ctx context.Context, r *run, item model.EvidenceItem) (model.Player, bool) {
	found, err := s.store.FindPlayersByName(ctx, item.PlayerName)
	if err != nil {
		r.fail(ctx, "resolve player", err, logger.String("name", item.PlayerName))
		return model.Player{}, false
	}

	switch len(found) {
	case 0:
		r.summary.SkippedEvidence++
		metrics.RecordEvidence("unknown_player")
		r.log.Debug(ctx, "unknown player in evidence", logger.String("name", item.PlayerName))
		return model.Player{}, false
	case 1:
		return found[0], true
	}

	var exact []model.Player
	for _, p := range found {
		if strings.EqualFold(strings.TrimSpace(p.DisplayName), strings.TrimSpace(item.PlayerName)) {
			exact = append(exact, p)
		}
	}
	if len(exact) == 1 {
		return exact[0], true
	}

	r.summary.Ambiguous++
	metrics.RecordEvidence("ambiguous")
	ids := make([]int64, 0, len(found))
	for _, p := range found {
		ids = append(ids, p.ID)
	}
	review := model.IdentityReview{
		Name:       item.PlayerName,
		Candidates: ids,
		Source:     item.SourceLabel,
		CreatedAt:  r.at,
	}
	if err := s.store.RecordReview(ctx, review); err != nil {
		r.fail(ctx, "record identity review", err, logger.String("name", item.PlayerName))
	}
	r.log.Info(ctx, "ambiguous player name sent to review",
		logger.String("name", item.PlayerName),
		logger.Int("candidates", len(ids)),
	)
	return model.Player{}, false
}

func textSuspicion(item model.EvidenceItem, res model.AnalysisResult) model.Suspicion {
	s := model.Suspicion{
		Suspected:    true,
		Confidence:   res.Confidence,
		Origin:       model.OriginText,
		Description:  truncate(item.RawText),
		Severity:     res.Severity,
		DurationDays: res.DurationDays,
		Source:       item.SourceLabel,
		SourceURL:    item.URL,
		ObservedAt:   item.PublishedAt,
	}
	if res.InjuryType != nil {
		s.InjuryType = *res.InjuryType
	}
	return s
}

// merge collapses every case for the same player into the most confident one.
// This is the barrier between signal gathering and validation.
func (s *Service) merge(ctx context.Context, r *run, cases []model.PlayerCase) []model.PlayerCase {
	groups := dedupe.Aggregate(ctx, r.log, "player", cases,
		func(c model.PlayerCase) int64 { return c.Player.ID },
		func(c, cur model.PlayerCase) bool { return c.Suspicion.Confidence > cur.Suspicion.Confidence },
	)
	out := make([]model.PlayerCase, 0, len(groups))
	for _, g := range groups {
		c := g.Representative
		c.Duplicates += g.Duplicates()
		r.summary.Duplicates += c.Duplicates
		out = append(out, c)
	}
	return out
}

// addRechecks appends players holding an active injury that no signal
// mentioned this run, so a recovered player is cleared.
func (s *Service) addRechecks(ctx context.Context, r *run) {
	room := s.maxPlayers - len(r.cases)
	if room <= 0 {
		return
	}
	active, err := s.store.ActivePlayers(ctx, s.maxPlayers)
	if err != nil {
		r.fail(ctx, "list active players", err)
		return
	}

	seen := make(map[int64]struct{}, len(r.cases))
	for _, c := range r.cases {
		seen[c.Player.ID] = struct{}{}
	}
	for _, p := range active {
		if room == 0 {
			return
		}
		if _, ok := seen[p.ID]; ok {
			continue
		}
		r.cases = append(r.cases, model.PlayerCase{
			Player: p,
			Suspicion: model.Suspicion{
				Suspected: true,
				Origin:    model.OriginRecheck,
				Source:    recheckSource,
			},
		})
		room--
	}
}

// validate drains the cases through the worker pool. The pool shares the
// provider's rate limiter, so concurrency never raises the request rate.
func (s *Service) validate(ctx context.Context, r *run) error {
	if len(r.cases) == 0 {
		return nil
	}

	q := queue.NewInMemoryQueue(queue.WithCapacity(len(r.cases)))
	for _, c := range r.cases {
		if err := q.Enqueue(ctx, c); err != nil {
			return fmt.Errorf("enqueue player %d: %w", c.Player.ID, err)
		}
	}
	metrics.UpdateQueueDepth(q.Len(ctx))
	if err := q.Close(); err != nil {
		return err
	}

	v := validation.NewLineupValidator(s.provider,
		validation.WithFixtureCount(s.fixtureCount),
		validation.WithLogger(r.log.Named("validation")),
	)
	rec := reconcile.NewDecisionReconciler(s.store,
		reconcile.WithUpdateThreshold(s.updateThreshold),
		reconcile.WithLogger(r.log.Named("reconcile")),
	)
	sink := func(res worker.Result) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.results = append(r.results, res)
	}

	pool := worker.NewPool(s.workerCount, q, v, rec,
		worker.WithLogger(r.log.Named("worker")),
		worker.WithCache(s.cache),
		worker.WithSink(sink),
		worker.WithRunTime(r.at),
	)
	pool.Start(ctx)
	pool.Wait()
	metrics.UpdateQueueDepth(0)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run abandoned: %w", err)
	}
	return nil
}

// release hands back every item that did not end in a reconciled player:
// unknown or ambiguous names, cases cut by the cap, failed reconciles and
// abandoned runs. The next run reads them again.
func (s *Service) release(ctx context.Context, r *run) {
	if s.evidence == nil || len(r.items) == 0 {
		return
	}
	if len(r.settled) != len(r.items) {
		r.settled = make([]bool, len(r.items))
	}

	r.mu.Lock()
	for _, res := range r.results {
		if res.Err != nil {
			continue
		}
		for _, i := range r.claims[res.Case.Player.ID] {
			r.settled[i] = true
		}
	}
	r.mu.Unlock()

	var pending []model.EvidenceItem
	for i, item := range r.items {
		if !r.settled[i] {
			pending = append(pending, item)
		}
	}
	if len(pending) == 0 {
		return
	}
	s.evidence.Release(context.WithoutCancel(ctx), pending...)
	r.log.Debug(ctx, "evidence kept for the next run", logger.Int("items", len(pending)))
}

// finish folds worker results into the summary.
func (s *Service) finish(r *run) model.RunSummary {
	sum := r.summary
	for _, res := range r.results {
		sum.PlayersChecked++
		if res.Err != nil {
			r.errs.add(fmt.Sprintf("player %d: %v", res.Case.Player.ID, res.Err))
			continue
		}
		from, to := res.Outcome.From, res.Outcome.To
		switch {
		case from == to:
			sum.Unchanged++
		case to == model.StateConfirmed:
			sum.Confirmed++
		case to == model.StateSuspected:
			sum.Suspected++
		case to == model.StateAvailable:
			sum.Cleared++
		}
	}
	sum.ErrorCount = r.errs.count
	sum.Errors = append(sum.Errors, r.errs.msgs...)
	sum.FinishedAt = s.now().UTC()
	if sum.FinishedAt.Before(sum.StartedAt) {
		sum.FinishedAt = sum.StartedAt
	}
	return sum
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > maxDescription {
		return string(r[:maxDescription])
	}
	return s
}
