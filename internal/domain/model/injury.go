package model

import "time"

// State is the persisted availability state of a player.
type State string

const (
	StateAvailable State = "available"
	StateSuspected State = "suspected"
	StateConfirmed State = "confirmed"
)

// Injured reports whether the state implies an active injury record.
func (s State) Injured() bool {
	return s == StateSuspected || s == StateConfirmed
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StateAvailable, StateSuspected, StateConfirmed:
		return true
	default:
		return false
	}
}

// Player is a tracked player. IsInjured and InjuryStatus are derived from State
// and the active injury record; they are never written independently.
type Player struct {
	ID           int64     `json:"id"`
	ExternalID   int64     `json:"external_id,omitempty"`
	DisplayName  string    `json:"display_name"`
	ClubName     string    `json:"club_name,omitempty"`
	TeamID       int64     `json:"team_id,omitempty"`
	State        State     `json:"state"`
	IsInjured    bool      `json:"is_injured"`
	InjuryStatus *string   `json:"injury_status,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// InjuryRecord is a persisted injury. At most one record per player is active.
type InjuryRecord struct {
	ID                 int64      `json:"id"`
	PlayerID           int64      `json:"player_id"`
	InjuryType         string     `json:"injury_type,omitempty"`
	Description        string     `json:"description"`
	Severity           Severity   `json:"severity"`
	IsActive           bool       `json:"is_active"`
	Source             string     `json:"source"`
	SourceURL          string     `json:"source_url,omitempty"`
	InjuryDate         time.Time  `json:"injury_date"`
	ExpectedReturnDate *time.Time `json:"expected_return_date,omitempty"`
	ActualReturnDate   *time.Time `json:"actual_return_date,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// IdentityReview records a name that matched more than one player.
type IdentityReview struct {
	Name       string    `json:"name"`
	Candidates []int64   `json:"candidates"`
	Source     string    `json:"source"`
	CreatedAt  time.Time `json:"created_at"`
}
