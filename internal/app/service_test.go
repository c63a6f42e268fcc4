package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/sickbay/internal/adapters/evidence"
	"github.com/okian/sickbay/internal/adapters/repository"
	service "github.com/okian/sickbay/internal/app"
	"github.com/okian/sickbay/internal/domain/model"
	"github.com/okian/sickbay/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

// fakeProvider serves canned absences, fixtures and lineups.
type fakeProvider struct {
	mu          sync.Mutex
	injuries    map[int64][]model.RawAbsence
	injuryErr   map[int64]error
	fixtures    map[int64][]model.Fixture
	lineups     map[int64][]model.Lineup
	block       chan struct{}
	entered     chan struct{}
	lineupCalls int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		injuries:  map[int64][]model.RawAbsence{},
		injuryErr: map[int64]error{},
		fixtures:  map[int64][]model.Fixture{},
		lineups:   map[int64][]model.Lineup{},
	}
}

func (f *fakeProvider) Injuries(ctx context.Context, season int, teamID, playerID int64) ([]model.RawAbsence, error) {
	if f.block != nil {
		close(f.entered)
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.injuryErr[teamID]; err != nil {
		return nil, err
	}
	return f.injuries[teamID], nil
}

func (f *fakeProvider) LastFixtures(ctx context.Context, teamID int64, count int) ([]model.Fixture, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fixtures[teamID], nil
}

func (f *fakeProvider) Lineups(ctx context.Context, fixtureID int64) ([]model.Lineup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lineupCalls++
	return f.lineups[fixtureID], nil
}

// playing puts players in the starting eleven of every fixture of team 85.
func (f *fakeProvider) playing(players ...model.LineupPlayer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fx := range f.fixtures[psg] {
		f.lineups[fx.ID] = []model.Lineup{{TeamID: psg, StartXI: players}}
	}
}

type staticEvidence struct {
	items []model.EvidenceItem
	stats evidence.Stats
	err   error
}

func (s staticEvidence) Fetch(ctx context.Context, players []string) ([]model.EvidenceItem, evidence.Stats, error) {
	return s.items, s.stats, s.err
}

func (s staticEvidence) Release(ctx context.Context, items ...model.EvidenceItem) {}

const psg = int64(85)

var (
	neymar = model.LineupPlayer{ID: 276, Name: "Neymar"}
	mbappe = model.LineupPlayer{ID: 278, Name: "Kylian Mbappé"}
	runAt  = time.Date(2026, 3, 20, 9, 0, 0, 0, time.UTC)
)

func hamstring(p model.LineupPlayer, fixture int64) model.RawAbsence {
	return model.RawAbsence{
		ExternalPlayerID: p.ID,
		PlayerName:       p.Name,
		Type:             "Missing Fixture",
		Reason:           "Hamstring Injury",
		TeamID:           psg,
		TeamName:         "Paris Saint Germain",
		FixtureRef:       fixture,
		FixtureDate:      runAt.AddDate(0, 0, -2),
	}
}

func withFixtures(p *fakeProvider) *fakeProvider {
	p.fixtures[psg] = []model.Fixture{
		{ID: 101, Date: runAt.AddDate(0, 0, -3)},
		{ID: 102, Date: runAt.AddDate(0, 0, -10)},
		{ID: 103, Date: runAt.AddDate(0, 0, -17)},
	}
	return p
}

func openStore(t *testing.T) *repository.SQLStore {
	t.Helper()
	s, err := repository.Open(context.Background(), repository.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newService(store repository.Store, p service.Provider, opts ...service.Option) *service.Service {
	base := []service.Option{
		service.WithTeamIDs(psg),
		service.WithSeason(2025),
		service.WithWorkerCount(2),
		service.WithClock(func() time.Time { return runAt }),
	}
	svc, err := service.New(store, p, append(base, opts...)...)
	So(err, ShouldBeNil)
	return svc
}

func activeFor(ctx context.Context, store repository.Store, playerID int64) []model.InjuryRecord {
	list, err := store.ListInjuries(ctx, repository.InjuryFilter{PlayerID: playerID, ActiveOnly: true})
	So(err, ShouldBeNil)
	return list
}

func TestService_New(t *testing.T) {
	Convey("Given no provider", t, func() {
		_, err := service.New(nil, nil)

		Convey("Then construction fails", func() {
			So(errors.Is(err, service.ErrNoProvider), ShouldBeTrue)
		})
	})
}

func TestService_Run(t *testing.T) {
	Convey("Given a feed reporting a hamstring injury twice, a suspension and a fit player", t, func() {
		ctx := context.Background()
		store := openStore(t)
		p := withFixtures(newFakeProvider())
		suspended := hamstring(model.LineupPlayer{ID: 10, Name: "Presnel Kimpembe"}, 1001)
		suspended.Reason = "Suspended after red card"
		p.injuries[psg] = []model.RawAbsence{
			hamstring(neymar, 1001),
			hamstring(neymar, 1002),
			suspended,
			hamstring(mbappe, 1001),
		}
		p.playing(mbappe)
		svc := newService(store, p)

		Convey("When a run completes", func() {
			sum, err := svc.Run(ctx)
			So(err, ShouldBeNil)

			Convey("Then only medical absences are validated, once per player", func() {
				So(sum.RunID, ShouldNotBeEmpty)
				So(sum.PlayersChecked, ShouldEqual, 2)
				So(sum.Duplicates, ShouldEqual, 1)
				So(sum.Confirmed, ShouldEqual, 1)
				So(sum.Unchanged, ShouldEqual, 1)
				So(sum.ErrorCount, ShouldEqual, 0)
				So(sum.Errors, ShouldBeEmpty)
			})

			Convey("Then the unseen player holds one active record and derived flags", func() {
				pl, err := store.FindPlayerByExternalID(ctx, neymar.ID)
				So(err, ShouldBeNil)
				So(pl.State, ShouldEqual, model.StateConfirmed)
				So(pl.IsInjured, ShouldBeTrue)
				So(pl.InjuryStatus, ShouldNotBeNil)

				active := activeFor(ctx, store, pl.ID)
				So(len(active), ShouldEqual, 1)
				So(active[0].Source, ShouldEqual, "api-football")
			})

			Convey("Then the playing player stays available", func() {
				pl, err := store.FindPlayerByExternalID(ctx, mbappe.ID)
				So(err, ShouldBeNil)
				So(pl.State, ShouldEqual, model.StateAvailable)
				So(activeFor(ctx, store, pl.ID), ShouldBeEmpty)
			})

			Convey("Then the suspended player is never stored", func() {
				_, err := store.FindPlayerByExternalID(ctx, 10)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})

			Convey("Then the summary is the last run", func() {
				last, err := svc.LastRun(ctx)
				So(err, ShouldBeNil)
				So(last.RunID, ShouldEqual, sum.RunID)
				So(last.Confirmed, ShouldEqual, 1)
			})

			Convey("And the same evidence is reconciled again", func() {
				again, err := svc.Run(ctx)
				So(err, ShouldBeNil)

				Convey("Then nothing changes and no second record appears", func() {
					So(again.Confirmed, ShouldEqual, 0)
					So(again.Unchanged, ShouldEqual, 2)
					pl, _ := store.FindPlayerByExternalID(ctx, neymar.ID)
					So(len(activeFor(ctx, store, pl.ID)), ShouldEqual, 1)
				})
			})

			Convey("And the player is back in the lineups with no new absence", func() {
				p.mu.Lock()
				p.injuries[psg] = nil
				p.mu.Unlock()
				p.playing(neymar, mbappe)

				cleared, err := svc.Run(ctx)
				So(err, ShouldBeNil)

				Convey("Then the active re-check clears the record", func() {
					So(cleared.PlayersChecked, ShouldEqual, 1)
					So(cleared.Cleared, ShouldEqual, 1)

					pl, _ := store.FindPlayerByExternalID(ctx, neymar.ID)
					So(pl.State, ShouldEqual, model.StateAvailable)
					So(pl.IsInjured, ShouldBeFalse)
					So(activeFor(ctx, store, pl.ID), ShouldBeEmpty)

					all, err := store.ListInjuries(ctx, repository.InjuryFilter{PlayerID: pl.ID})
					So(err, ShouldBeNil)
					So(len(all), ShouldEqual, 1)
					So(all[0].ActualReturnDate, ShouldNotBeNil)
					So(all[0].ActualReturnDate.Equal(runAt), ShouldBeTrue)
				})
			})
		})

		Convey("When the run is capped to one player", func() {
			svc := newService(store, p, service.WithMaxPlayersPerRun(1))
			sum, err := svc.Run(ctx)

			Convey("Then only the first player is validated", func() {
				So(err, ShouldBeNil)
				So(sum.PlayersChecked, ShouldEqual, 1)
				So(sum.Confirmed, ShouldEqual, 1)
			})
		})
	})
}

func TestService_RunEvidence(t *testing.T) {
	Convey("Given tracked players and text evidence", t, func() {
		ctx := context.Background()
		store := openStore(t)
		p := withFixtures(newFakeProvider())
		p.playing(mbappe)

		for _, pl := range []model.Player{
			{ExternalID: neymar.ID, DisplayName: "Neymar", TeamID: psg},
			{ExternalID: 874, DisplayName: "Cristiano Ronaldo", TeamID: 2939},
			{ExternalID: 875, DisplayName: "Ronaldo Nazario", TeamID: 2939},
		} {
			_, err := store.UpsertPlayer(ctx, pl)
			So(err, ShouldBeNil)
		}

		injured := func(name string) model.EvidenceItem {
			return model.EvidenceItem{
				PlayerName:  name,
				RawText:     name + " blessure musculaire grave, forfait plusieurs semaines, confirmé par le club",
				SourceLabel: "lequipe.fr",
				SourceType:  model.SourceWebsite,
				URL:         "https://www.lequipe.fr/football/article/1",
				PublishedAt: runAt.AddDate(0, 0, -1),
			}
		}
		src := staticEvidence{
			items: []model.EvidenceItem{
				injured("Neymar"),
				{PlayerName: "Neymar", RawText: "Neymar n'est pas blessé, il sera titulaire", SourceLabel: "lequipe.fr", SourceType: model.SourceWebsite},
				injured("Ronaldo"),
				injured("Lionel Messi"),
			},
			stats: evidence.Stats{Lines: 6, Accepted: 4, Malformed: 1, Duplicates: 1},
		}
		svc := newService(store, p, service.WithTeamIDs(), service.WithEvidenceSource(src))

		Convey("When a run completes", func() {
			sum, err := svc.Run(ctx)
			So(err, ShouldBeNil)

			Convey("Then the resolved player is confirmed from the text signal", func() {
				So(sum.PlayersChecked, ShouldEqual, 1)
				So(sum.Confirmed, ShouldEqual, 1)

				pl, _ := store.FindPlayerByExternalID(ctx, neymar.ID)
				active := activeFor(ctx, store, pl.ID)
				So(len(active), ShouldEqual, 1)
				So(active[0].Source, ShouldEqual, "lequipe.fr")
				So(active[0].Severity, ShouldEqual, model.SeveritySevere)
				So(active[0].Description, ShouldContainSubstring, "blessure musculaire")
			})

			Convey("Then unknown and ambiguous names are counted, not guessed", func() {
				So(sum.SkippedEvidence, ShouldEqual, 2)
				So(sum.Ambiguous, ShouldEqual, 1)
				So(sum.Duplicates, ShouldEqual, 1)
			})
		})
	})
}

func TestService_RunFailures(t *testing.T) {
	Convey("Given a feed that fails for every team", t, func() {
		ctx := context.Background()
		store := openStore(t)
		p := withFixtures(newFakeProvider())
		p.injuryErr[psg] = errors.New("provider unavailable: status 503")
		p.injuryErr[81] = errors.New("provider unavailable: status 503")

		Convey("When a run completes with room for one message", func() {
			svc := newService(store, p, service.WithTeamIDs(psg, 81), service.WithMaxSummaryErrors(1))
			sum, err := svc.Run(ctx)

			Convey("Then errors are counted and the message list is capped", func() {
				So(err, ShouldBeNil)
				So(sum.ErrorCount, ShouldEqual, 2)
				So(len(sum.Errors), ShouldEqual, 1)
				So(sum.Errors[0], ShouldContainSubstring, "absence feed unavailable")
				So(sum.PlayersChecked, ShouldEqual, 0)
			})
		})

		Convey("When the evidence source fails too", func() {
			svc := newService(store, p, service.WithEvidenceSource(staticEvidence{err: errors.New("open evidence file: no such file")}))
			sum, err := svc.Run(ctx)

			Convey("Then the run still completes", func() {
				So(err, ShouldBeNil)
				So(sum.ErrorCount, ShouldEqual, 2)
			})
		})

		Convey("When the caller cancels before the run", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			svc := newService(store, p)
			_, err := svc.Run(cctx)

			Convey("Then the run is abandoned", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})
	})
}

func TestService_RunInProgress(t *testing.T) {
	Convey("Given a run blocked on the feed", t, func() {
		ctx := context.Background()
		store := openStore(t)
		p := newFakeProvider()
		p.block = make(chan struct{})
		p.entered = make(chan struct{})
		svc := newService(store, p)

		done := make(chan error, 1)
		go func() {
			_, err := svc.Run(ctx)
			done <- err
		}()
		<-p.entered

		Convey("A second run is refused until the first finishes", func() {
			_, err := svc.Run(ctx)
			So(errors.Is(err, service.ErrRunInProgress), ShouldBeTrue)

			close(p.block)
			So(<-done, ShouldBeNil)
		})
	})
}

func TestService_Schedule(t *testing.T) {
	Convey("Given a service with a run interval", t, func() {
		ctx := context.Background()
		store := openStore(t)
		svc := newService(store, withFixtures(newFakeProvider()), service.WithRunInterval(10*time.Millisecond))

		Convey("When started", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)

			var err error
			deadline := time.Now().Add(2 * time.Second)
			for time.Now().Before(deadline) {
				if _, err = svc.LastRun(ctx); err == nil {
					break
				}
				time.Sleep(5 * time.Millisecond)
			}
			svc.Stop()
			svc.Stop()

			Convey("Then runs happen on their own and stop cleanly", func() {
				So(err, ShouldBeNil)
			})
		})
	})
}

func TestService_Analyze(t *testing.T) {
	Convey("Given a service with the default profile", t, func() {
		svc := newService(openStore(t), newFakeProvider())

		Convey("A negated mention is not an injury", func() {
			res := svc.Analyze("Neymar n'est pas blessé, il sera titulaire", "Neymar", "lequipe.fr", model.SourceWebsite)
			So(res.IsInjury, ShouldBeFalse)
			So(res.HasNegation, ShouldBeTrue)
		})

		Convey("A missing mention scores zero", func() {
			res := svc.Analyze("Mbappé out for three weeks", "Neymar", "lequipe.fr", model.SourceWebsite)
			So(res.IsInjury, ShouldBeFalse)
			So(res.Confidence, ShouldEqual, 0.0)
		})
	})
}

func TestService_RunLowConfidenceAbsence(t *testing.T) {
	Convey("Given a medical absence the filter only half believes", t, func() {
		ctx := context.Background()
		store := openStore(t)
		p := withFixtures(newFakeProvider())
		doubtful := hamstring(neymar, 1001)
		doubtful.Reason = "Doubtful (ankle)"
		p.injuries[psg] = []model.RawAbsence{doubtful}
		p.playing(mbappe)
		svc := newService(store, p)

		Convey("When a run completes", func() {
			sum, err := svc.Run(ctx)
			So(err, ShouldBeNil)

			Convey("Then the lineups still decide, and an unseen player is confirmed", func() {
				So(sum.PlayersChecked, ShouldEqual, 1)
				So(sum.Confirmed, ShouldEqual, 1)

				pl, err := store.FindPlayerByExternalID(ctx, neymar.ID)
				So(err, ShouldBeNil)
				So(pl.State, ShouldEqual, model.StateConfirmed)
			})
		})
	})
}
