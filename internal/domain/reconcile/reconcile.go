// Package reconcile fuses a player's suspicion with its validation outcome and
// applies the resulting state transition to the persisted injury record.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/sickbay/internal/adapters/repository"
	"github.com/okian/sickbay/internal/domain/model"
	"github.com/okian/sickbay/pkg/logger"
	"github.com/okian/sickbay/pkg/metrics"
)

const (
	defaultUpdateThreshold = 0.7
	maxStatusRunes         = 255
)

// Reconciler applies one player's verdict.
type Reconciler interface {
	Reconcile(ctx context.Context, c model.PlayerCase, v model.ValidationResult, at time.Time) (model.Outcome, error)
}

// DecisionReconciler is the Available/Suspected/Confirmed state machine over a Store.
type DecisionReconciler struct {
	store           repository.Store
	updateThreshold float64
	logger          logger.Logger
}

// NewDecisionReconciler creates a reconciler writing to store.
func NewDecisionReconciler(store repository.Store, opts ...Option) *DecisionReconciler {
	r := &DecisionReconciler{
		store:           store,
		updateThreshold: defaultUpdateThreshold,
		logger:          logger.Get().Named("reconcile"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Decide returns the target state for a player currently in state current.
func Decide(current model.State, v model.ValidationResult) model.State {
	switch {
	case !v.IsActuallyInjured:
		return model.StateAvailable
	case v.Method == model.MethodNotPlayedRecently:
		return model.StateConfirmed
	case current.Injured():
		return current
	default:
		return model.StateSuspected
	}
}

// Reconcile applies the verdict in a single transaction. at stamps return dates.
// A write conflict is retried once.
func (r *DecisionReconciler) Reconcile(ctx context.Context, c model.PlayerCase, v model.ValidationResult, at time.Time) (model.Outcome, error) {
	out, err := r.apply(ctx, c, v, at)
	if errors.Is(err, repository.ErrConflict) {
		r.logger.Warn(ctx, "write conflict, retrying", logger.Int64("player_id", c.Player.ID))
		out, err = r.apply(ctx, c, v, at)
	}
	if err != nil {
		metrics.RecordErrorByComponent("reconcile", "persist")
		return out, fmt.Errorf("reconcile player %d: %w", c.Player.ID, err)
	}
	if out.From != out.To {
		metrics.RecordTransition(string(out.From), string(out.To))
		r.logger.Info(ctx, "player state changed",
			logger.Int64("player_id", out.PlayerID),
			logger.String("from", string(out.From)),
			logger.String("to", string(out.To)),
			logger.String("method", string(out.Method)),
		)
	}
	return out, nil
}

func (r *DecisionReconciler) apply(ctx context.Context, c model.PlayerCase, v model.ValidationResult, at time.Time) (model.Outcome, error) {
	var out model.Outcome
	err := r.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		p, err := tx.Player(ctx, c.Player.ID)
		if err != nil {
			return err
		}
		active, err := tx.ActiveInjury(ctx, p.ID)
		hasActive := err == nil
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		from := p.State
		if !from.Valid() {
			from = model.StateAvailable
		}
		to := Decide(from, v)
		out = model.Outcome{PlayerID: p.ID, From: from, To: to, Method: v.Method}

		var status *string
		if to.Injured() {
			switch {
			case !hasActive:
				active = newRecord(p.ID, c.Suspicion, at)
				id, err := tx.InsertInjury(ctx, active)
				if err != nil {
					return err
				}
				active.ID = id
				out.Created = true
			case c.Suspicion.Confidence > r.updateThreshold:
				refresh(&active, c.Suspicion)
				if err := tx.UpdateInjury(ctx, active); err != nil {
					return err
				}
				out.Updated = true
			}
			out.RecordID = active.ID
			status = statusFor(to, active)
		} else if hasActive {
			if err := tx.DeactivateInjury(ctx, active.ID, at); err != nil {
				return err
			}
			out.RecordID = active.ID
			out.Deactivate = true
		}

		return tx.SetPlayerState(ctx, p.ID, to, status, at)
	})
	return out, err
}

func newRecord(playerID int64, s model.Suspicion, at time.Time) model.InjuryRecord {
	injured := s.ObservedAt
	if injured.IsZero() {
		injured = at
	}
	rec := model.InjuryRecord{
		PlayerID:   playerID,
		InjuryDate: injured,
		IsActive:   true,
	}
	refresh(&rec, s)
	if rec.Description == "" {
		rec.Description = "injury reported by " + rec.Source
	}
	return rec
}

// refresh copies the mutable fields of a suspicion onto a record.
func refresh(rec *model.InjuryRecord, s model.Suspicion) {
	if s.InjuryType != "" {
		rec.InjuryType = s.InjuryType
	}
	if s.Description != "" {
		rec.Description = s.Description
	}
	rec.Severity = s.Severity
	if rec.Severity == "" {
		rec.Severity = model.SeverityUnknown
	}
	if s.Source != "" {
		rec.Source = s.Source
		rec.SourceURL = s.SourceURL
	}
	if s.DurationDays != nil && *s.DurationDays > 0 {
		ret := rec.InjuryDate.AddDate(0, 0, *s.DurationDays)
		rec.ExpectedReturnDate = &ret
	}
}

func statusFor(state model.State, rec model.InjuryRecord) *string {
	label := string(state)
	if rec.InjuryType != "" {
		label += " (" + rec.InjuryType + ")"
	}
	if rec.Severity != "" && rec.Severity != model.SeverityUnknown {
		label += ": " + string(rec.Severity)
	}
	if runes := []rune(label); len(runes) > maxStatusRunes {
		label = string(runes[:maxStatusRunes])
	}
	return &label
}
