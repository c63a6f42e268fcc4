package model

import "time"

// ValidationMethod names the branch the lineup validator decided on.
type ValidationMethod string

const (
	MethodPlayedRecently       ValidationMethod = "played_recently"
	MethodUncertain            ValidationMethod = "uncertain_limited_playtime"
	MethodNotPlayedRecently    ValidationMethod = "not_played_recently"
	MethodNoValidationPossible ValidationMethod = "no_validation_possible"
	MethodNoRecentMatches      ValidationMethod = "no_recent_matches"
	MethodValidationError      ValidationMethod = "validation_error"
	MethodNoTeamID             ValidationMethod = "no_team_id"
)

// Definitive reports whether the method reflects observed lineups rather than a pass-through.
func (m ValidationMethod) Definitive() bool {
	switch m {
	case MethodPlayedRecently, MethodNotPlayedRecently, MethodUncertain:
		return true
	default:
		return false
	}
}

// ValidationResult is the outcome of cross-checking a suspicion against recent lineups.
type ValidationResult struct {
	IsActuallyInjured bool             `json:"is_actually_injured"`
	Method            ValidationMethod `json:"method"`
	LastPlayedDate    *time.Time       `json:"last_played_date,omitempty"`
	MatchesChecked    int              `json:"matches_checked"`
	MatchesPlayed     int              `json:"matches_played"`
}

// Fixture is one completed match returned by the provider.
type Fixture struct {
	ID         int64     `json:"id"`
	Date       time.Time `json:"date"`
	HomeTeamID int64     `json:"home_team_id"`
	AwayTeamID int64     `json:"away_team_id"`
	Status     string    `json:"status"`
}

// LineupPlayer identifies a player in a team sheet.
type LineupPlayer struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Lineup is one team's sheet for a fixture.
type Lineup struct {
	TeamID      int64          `json:"team_id"`
	TeamName    string         `json:"team_name"`
	StartXI     []LineupPlayer `json:"start_xi"`
	Substitutes []LineupPlayer `json:"substitutes"`
}
