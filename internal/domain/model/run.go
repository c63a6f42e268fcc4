package model

import "time"

// Origin says which signal raised a suspicion.
type Origin string

const (
	OriginText    Origin = "text"
	OriginAbsence Origin = "absence"
	OriginRecheck Origin = "recheck"
)

// Suspicion is the fused pre-validation signal for one player.
type Suspicion struct {
	Suspected    bool      `json:"suspected"`
	Confidence   float64   `json:"confidence"`
	Origin       Origin    `json:"origin"`
	InjuryType   string    `json:"injury_type,omitempty"`
	Description  string    `json:"description"`
	Severity     Severity  `json:"severity"`
	DurationDays *int      `json:"duration_days,omitempty"`
	Source       string    `json:"source"`
	SourceURL    string    `json:"source_url,omitempty"`
	ObservedAt   time.Time `json:"observed_at"`
}

// PlayerCase is the unit of work handed to validation: one player, one suspicion.
type PlayerCase struct {
	Player     Player    `json:"player"`
	Suspicion  Suspicion `json:"suspicion"`
	Duplicates int       `json:"duplicates"`
}

// Outcome is what the reconciler did for one player.
type Outcome struct {
	PlayerID   int64            `json:"player_id"`
	From       State            `json:"from"`
	To         State            `json:"to"`
	Method     ValidationMethod `json:"method"`
	RecordID   int64            `json:"record_id,omitempty"`
	Created    bool             `json:"created"`
	Updated    bool             `json:"updated"`
	Deactivate bool             `json:"deactivated"`
}

// RunSummary is reported at the end of a batch run.
type RunSummary struct {
	RunID           string    `json:"run_id"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	PlayersChecked  int       `json:"players_checked"`
	Suspected       int       `json:"suspected"`
	Confirmed       int       `json:"confirmed"`
	Cleared         int       `json:"cleared"`
	Unchanged       int       `json:"unchanged"`
	Duplicates      int       `json:"duplicates"`
	Ambiguous       int       `json:"ambiguous"`
	SkippedEvidence int       `json:"skipped_evidence"`
	ErrorCount      int       `json:"error_count"`
	Errors          []string  `json:"errors"`
}
