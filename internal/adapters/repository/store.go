// Package repository persists players, injury records, identity reviews and run summaries.
package repository

import (
	"context"
	"time"

	"github.com/okian/sickbay/internal/domain/model"
)

// InjuryFilter narrows ListInjuries.
type InjuryFilter struct {
	PlayerID   int64
	ActiveOnly bool
	Limit      int
}

// Tx is the set of writes that must be applied atomically for one player.
type Tx interface {
	// Player returns the player row as seen by the transaction.
	Player(ctx context.Context, id int64) (model.Player, error)
	// ActiveInjury returns the player's active record or ErrNotFound.
	ActiveInjury(ctx context.Context, playerID int64) (model.InjuryRecord, error)
	// InsertInjury inserts an active record. Returns ErrConflict if one is already active.
	InsertInjury(ctx context.Context, r model.InjuryRecord) (int64, error)
	// UpdateInjury rewrites the mutable fields of an existing record.
	UpdateInjury(ctx context.Context, r model.InjuryRecord) error
	// DeactivateInjury closes a record with the given return date.
	DeactivateInjury(ctx context.Context, id int64, returned time.Time) error
	// SetPlayerState writes the state and the fields derived from it.
	SetPlayerState(ctx context.Context, playerID int64, state model.State, status *string, at time.Time) error
}

// Store provides read/write access to persisted injury state.
type Store interface {
	// WithTx runs fn in a transaction, committing if fn returns nil.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// UpsertPlayer creates or refreshes a player keyed by external id.
	// The availability state of an existing player is left untouched.
	UpsertPlayer(ctx context.Context, p model.Player) (model.Player, error)
	// GetPlayer returns ErrNotFound for unknown ids.
	GetPlayer(ctx context.Context, id int64) (model.Player, error)
	FindPlayerByExternalID(ctx context.Context, externalID int64) (model.Player, error)
	// FindPlayersByName returns every player whose display name contains name, ignoring case.
	FindPlayersByName(ctx context.Context, name string) ([]model.Player, error)
	// ActivePlayers lists players currently suspected or confirmed, least recently updated first.
	ActivePlayers(ctx context.Context, limit int) ([]model.Player, error)

	ListInjuries(ctx context.Context, f InjuryFilter) ([]model.InjuryRecord, error)
	CountActiveInjuries(ctx context.Context) (int, error)

	RecordReview(ctx context.Context, r model.IdentityReview) error
	SaveRun(ctx context.Context, s model.RunSummary) error
	// LastRun returns ErrNotFound before the first run.
	LastRun(ctx context.Context) (model.RunSummary, error)

	Ping(ctx context.Context) error
	Close() error
}
