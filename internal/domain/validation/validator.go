// Package validation cross-checks suspected injuries against actual
// participation in recent completed fixtures.
package validation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/sickbay/internal/domain/model"
	"github.com/okian/sickbay/pkg/logger"
	"github.com/okian/sickbay/pkg/metrics"
)

const (
	defaultFixtureCount = 3
	playedThreshold     = 2
)

// Role is how a player appeared in a lineup.
type Role string

const (
	RoleNone       Role = ""
	RoleStarter    Role = "starter"
	RoleSubstitute Role = "substitute"
)

// FixtureSource provides completed fixtures and their lineups.
type FixtureSource interface {
	LastFixtures(ctx context.Context, teamID int64, count int) ([]model.Fixture, error)
	Lineups(ctx context.Context, fixtureID int64) ([]model.Lineup, error)
}

// Validator validates one player's suspicion.
type Validator interface {
	Validate(ctx context.Context, playerID int64, playerName string, teamID int64, suspected bool) model.ValidationResult
}

// LineupValidator implements Validator against a FixtureSource.
type LineupValidator struct {
	source       FixtureSource
	fixtureCount int
	logger       logger.Logger
}

// NewLineupValidator creates a validator reading from source.
func NewLineupValidator(source FixtureSource, opts ...Option) *LineupValidator {
	v := &LineupValidator{
		source:       source,
		fixtureCount: defaultFixtureCount,
		logger:       logger.Get().Named("validation"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate never fails: provider and internal errors pass the input suspicion through.
func (v *LineupValidator) Validate(ctx context.Context, playerID int64, playerName string, teamID int64, suspected bool) (res model.ValidationResult) {
	log := v.logger.With(logger.Int64("external_player_id", playerID), logger.Int64("team_id", teamID))

	defer func() {
		if r := recover(); r != nil {
			log.Error(ctx, "validation panicked", logger.Error(fmt.Errorf("%v", r)))
			res = passThrough(suspected, model.MethodValidationError)
		}
		metrics.RecordValidation(string(res.Method))
	}()

	if teamID == 0 {
		return passThrough(suspected, model.MethodNoTeamID)
	}

	fixtures, err := v.source.LastFixtures(ctx, teamID, v.fixtureCount)
	if err != nil {
		if ctx.Err() != nil {
			log.Warn(ctx, "validation cancelled", logger.Error(err))
			return passThrough(suspected, model.MethodValidationError)
		}
		log.Warn(ctx, "fixtures unavailable", logger.Error(err))
		return passThrough(suspected, model.MethodNoValidationPossible)
	}
	if len(fixtures) == 0 {
		return passThrough(suspected, model.MethodNoRecentMatches)
	}
	if len(fixtures) > v.fixtureCount {
		fixtures = fixtures[:v.fixtureCount]
	}

	played, inspected := 0, 0
	var lastPlayed *time.Time
	for _, f := range fixtures {
		if err := ctx.Err(); err != nil {
			log.Warn(ctx, "validation cancelled", logger.Error(err))
			return passThrough(suspected, model.MethodValidationError)
		}
		lineups, err := v.source.Lineups(ctx, f.ID)
		if err != nil || len(lineups) == 0 {
			log.Debug(ctx, "lineups unavailable, skipping fixture",
				logger.Int64("fixture_id", f.ID), logger.Any("err", err))
			continue
		}
		inspected++
		if role := FindPlayer(lineups, playerID, playerName); role != RoleNone {
			played++
			if lastPlayed == nil {
				d := f.Date
				lastPlayed = &d
			}
			log.Debug(ctx, "player appeared", logger.Int64("fixture_id", f.ID), logger.String("role", string(role)))
		}
	}

	// Zero appearances across lineups we never saw is missing data, not absence.
	if inspected == 0 {
		log.Warn(ctx, "no lineup could be inspected", logger.Int("fixtures", len(fixtures)))
		res = passThrough(suspected, model.MethodNoValidationPossible)
		res.MatchesChecked = len(fixtures)
		return res
	}

	res = model.ValidationResult{
		LastPlayedDate: lastPlayed,
		MatchesChecked: len(fixtures),
		MatchesPlayed:  played,
	}
	switch {
	case played >= playedThreshold:
		res.IsActuallyInjured = false
		res.Method = model.MethodPlayedRecently
	case played == 1:
		res.IsActuallyInjured = suspected
		res.Method = model.MethodUncertain
	default:
		res.IsActuallyInjured = true
		res.Method = model.MethodNotPlayedRecently
	}
	return res
}

// FindPlayer looks for the player by id, then by exact case-insensitive name,
// in every team sheet of a fixture.
func FindPlayer(lineups []model.Lineup, playerID int64, playerName string) Role {
	name := strings.TrimSpace(playerName)
	match := func(p model.LineupPlayer) bool {
		if playerID > 0 && p.ID == playerID {
			return true
		}
		return name != "" && strings.EqualFold(strings.TrimSpace(p.Name), name)
	}
	for _, l := range lineups {
		for _, p := range l.StartXI {
			if match(p) {
				return RoleStarter
			}
		}
		for _, p := range l.Substitutes {
			if match(p) {
				return RoleSubstitute
			}
		}
	}
	return RoleNone
}

func passThrough(suspected bool, method model.ValidationMethod) model.ValidationResult {
	return model.ValidationResult{IsActuallyInjured: suspected, Method: method}
}
