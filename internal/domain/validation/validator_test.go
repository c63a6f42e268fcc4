package validation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/sickbay/internal/domain/model"
	"github.com/okian/sickbay/internal/domain/validation"
	"github.com/okian/sickbay/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

type fakeSource struct {
	fixtures    []model.Fixture
	fixturesErr error
	lineups     map[int64][]model.Lineup
	lineupErr   map[int64]error
	panicOn     int64
	calls       []int64
}

func (f *fakeSource) LastFixtures(ctx context.Context, teamID int64, count int) ([]model.Fixture, error) {
	if f.fixturesErr != nil {
		return nil, f.fixturesErr
	}
	return f.fixtures, nil
}

func (f *fakeSource) Lineups(ctx context.Context, fixtureID int64) ([]model.Lineup, error) {
	f.calls = append(f.calls, fixtureID)
	if fixtureID == f.panicOn {
		panic("boom")
	}
	if err := f.lineupErr[fixtureID]; err != nil {
		return nil, err
	}
	return f.lineups[fixtureID], nil
}

var (
	day1 = time.Date(2026, 3, 15, 20, 0, 0, 0, time.UTC)
	day2 = time.Date(2026, 3, 8, 20, 0, 0, 0, time.UTC)
	day3 = time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
)

func threeFixtures() []model.Fixture {
	return []model.Fixture{
		{ID: 101, Date: day1, Status: "FT"},
		{ID: 102, Date: day2, Status: "FT"},
		{ID: 103, Date: day3, Status: "FT"},
	}
}

func sheet(starters []model.LineupPlayer, subs []model.LineupPlayer) []model.Lineup {
	return []model.Lineup{
		{TeamID: 85, TeamName: "Paris Saint Germain", StartXI: starters, Substitutes: subs},
		{TeamID: 91, TeamName: "Monaco", StartXI: []model.LineupPlayer{{ID: 900, Name: "Someone Else"}}},
	}
}

var neymar = model.LineupPlayer{ID: 276, Name: "Neymar"}

func TestLineupValidator(t *testing.T) {
	ctx := context.Background()

	Convey("Given a player with three recent fixtures", t, func() {
		src := &fakeSource{fixtures: threeFixtures(), lineups: map[int64][]model.Lineup{}}
		v := validation.NewLineupValidator(src)

		Convey("When the player appeared in two of them", func() {
			src.lineups[101] = sheet(nil, []model.LineupPlayer{neymar})
			src.lineups[102] = sheet(nil, nil)
			src.lineups[103] = sheet([]model.LineupPlayer{neymar}, nil)
			res := v.Validate(ctx, 276, "Neymar", 85, true)

			Convey("Then the suspicion is overturned", func() {
				So(res.IsActuallyInjured, ShouldBeFalse)
				So(res.Method, ShouldEqual, model.MethodPlayedRecently)
				So(res.MatchesChecked, ShouldEqual, 3)
				So(res.MatchesPlayed, ShouldEqual, 2)
				So(res.LastPlayedDate, ShouldNotBeNil)
				So(res.LastPlayedDate.Equal(day1), ShouldBeTrue)
			})
		})

		Convey("When the player appeared once", func() {
			src.lineups[101] = sheet(nil, nil)
			src.lineups[102] = sheet([]model.LineupPlayer{neymar}, nil)
			src.lineups[103] = sheet(nil, nil)

			Convey("Then the input suspicion is kept", func() {
				res := v.Validate(ctx, 276, "Neymar", 85, true)
				So(res.IsActuallyInjured, ShouldBeTrue)
				So(res.Method, ShouldEqual, model.MethodUncertain)
				So(res.MatchesPlayed, ShouldEqual, 1)
				So(res.LastPlayedDate.Equal(day2), ShouldBeTrue)

				res = v.Validate(ctx, 276, "Neymar", 85, false)
				So(res.IsActuallyInjured, ShouldBeFalse)
				So(res.Method, ShouldEqual, model.MethodUncertain)
			})
		})

		Convey("When the player appeared in none of them", func() {
			for _, id := range []int64{101, 102, 103} {
				src.lineups[id] = sheet(nil, nil)
			}
			res := v.Validate(ctx, 276, "Neymar", 85, false)

			Convey("Then the injury is confirmed", func() {
				So(res.IsActuallyInjured, ShouldBeTrue)
				So(res.Method, ShouldEqual, model.MethodNotPlayedRecently)
				So(res.MatchesChecked, ShouldEqual, 3)
				So(res.MatchesPlayed, ShouldEqual, 0)
				So(res.LastPlayedDate, ShouldBeNil)
			})
		})

		Convey("When the lineup lists the player only by name", func() {
			p := model.LineupPlayer{Name: "  NEYMAR "}
			src.lineups[101] = sheet([]model.LineupPlayer{p}, nil)
			src.lineups[102] = sheet(nil, []model.LineupPlayer{p})
			src.lineups[103] = sheet(nil, nil)
			res := v.Validate(ctx, 0, "neymar", 85, true)

			Convey("Then the name matches case-insensitively", func() {
				So(res.Method, ShouldEqual, model.MethodPlayedRecently)
			})
		})

		Convey("When one lineup is unavailable", func() {
			src.lineupErr = map[int64]error{101: errors.New("timeout")}
			src.lineups[102] = sheet([]model.LineupPlayer{neymar}, nil)
			src.lineups[103] = sheet([]model.LineupPlayer{neymar}, nil)
			res := v.Validate(ctx, 276, "Neymar", 85, true)

			Convey("Then that fixture is skipped", func() {
				So(res.Method, ShouldEqual, model.MethodPlayedRecently)
				So(res.MatchesChecked, ShouldEqual, 3)
				So(res.MatchesPlayed, ShouldEqual, 2)
				So(res.LastPlayedDate.Equal(day2), ShouldBeTrue)
			})
		})

		Convey("When every lineup is unavailable", func() {
			src.lineupErr = map[int64]error{
				101: errors.New("down"), 102: errors.New("down"), 103: errors.New("down"),
			}
			res := v.Validate(ctx, 276, "Neymar", 85, false)

			Convey("Then no verdict is drawn", func() {
				So(res.IsActuallyInjured, ShouldBeFalse)
				So(res.Method, ShouldEqual, model.MethodNoValidationPossible)
			})
		})

		Convey("When looking up a lineup panics", func() {
			src.panicOn = 102
			res := v.Validate(ctx, 276, "Neymar", 85, true)

			Convey("Then the suspicion passes through as a validation error", func() {
				So(res.IsActuallyInjured, ShouldBeTrue)
				So(res.Method, ShouldEqual, model.MethodValidationError)
			})
		})

		Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			res := v.Validate(cctx, 276, "Neymar", 85, true)

			Convey("Then no lineup is fetched", func() {
				So(res.Method, ShouldEqual, model.MethodValidationError)
				So(res.IsActuallyInjured, ShouldBeTrue)
				So(src.calls, ShouldBeEmpty)
			})
		})
	})

	Convey("Given a source returning more fixtures than requested", t, func() {
		src := &fakeSource{
			fixtures: append(threeFixtures(), model.Fixture{ID: 104, Date: day3.AddDate(0, 0, -7)}),
			lineups:  map[int64][]model.Lineup{},
		}
		v := validation.NewLineupValidator(src, validation.WithFixtureCount(2))
		res := v.Validate(ctx, 276, "Neymar", 85, true)

		So(res.MatchesChecked, ShouldEqual, 2)
		So(src.calls, ShouldResemble, []int64{101, 102})
	})

	Convey("Pass-through outcomes keep the input suspicion", t, func() {
		Convey("Without a team", func() {
			v := validation.NewLineupValidator(&fakeSource{})
			res := v.Validate(ctx, 276, "Neymar", 0, true)
			So(res.Method, ShouldEqual, model.MethodNoTeamID)
			So(res.IsActuallyInjured, ShouldBeTrue)
		})

		Convey("When fixtures cannot be fetched", func() {
			v := validation.NewLineupValidator(&fakeSource{fixturesErr: errors.New("503")})
			res := v.Validate(ctx, 276, "Neymar", 85, false)
			So(res.Method, ShouldEqual, model.MethodNoValidationPossible)
			So(res.IsActuallyInjured, ShouldBeFalse)
		})

		Convey("When the team has no completed fixtures", func() {
			v := validation.NewLineupValidator(&fakeSource{})
			res := v.Validate(ctx, 276, "Neymar", 85, true)
			So(res.Method, ShouldEqual, model.MethodNoRecentMatches)
			So(res.IsActuallyInjured, ShouldBeTrue)
			So(res.MatchesChecked, ShouldEqual, 0)
		})
	})
}

func TestFindPlayer(t *testing.T) {
	Convey("FindPlayer reports the lineup role", t, func() {
		lineups := sheet([]model.LineupPlayer{{ID: 1, Name: "A"}}, []model.LineupPlayer{{ID: 2, Name: "B"}})
		So(validation.FindPlayer(lineups, 1, ""), ShouldEqual, validation.RoleStarter)
		So(validation.FindPlayer(lineups, 0, "b"), ShouldEqual, validation.RoleSubstitute)
		So(validation.FindPlayer(lineups, 3, "C"), ShouldEqual, validation.RoleNone)
		So(validation.FindPlayer(lineups, 0, ""), ShouldEqual, validation.RoleNone)
	})
}
