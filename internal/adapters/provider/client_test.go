package provider_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/okian/sickbay/internal/adapters/provider"
	"github.com/okian/sickbay/pkg/logger"
)

func init() {
	_ = logger.Init()
}

const injuriesBody = `{
  "errors": [],
  "results": 2,
  "response": [
    {"player": {"id": 276, "name": "Neymar", "type": "Missing Fixture", "reason": "Hamstring Injury"},
     "team": {"id": 85, "name": "Paris Saint Germain"},
     "fixture": {"id": 1001, "date": "2026-03-15T20:00:00+00:00"}},
    {"player": {"id": 278, "name": "Kylian Mbappé", "type": "Missing Fixture", "reason": "Suspended"},
     "team": {"id": 85, "name": "Paris Saint Germain"},
     "fixture": {"id": 1001, "date": "not a date"}}
  ]
}`

const fixturesBody = `{
  "errors": {},
  "results": 2,
  "response": [
    {"fixture": {"id": 101, "date": "2026-03-15T20:00:00+00:00", "status": {"short": "FT"}},
     "teams": {"home": {"id": 85}, "away": {"id": 91}}},
    {"fixture": {"id": 102, "date": "2026-03-08T20:00:00+00:00", "status": {"short": "PEN"}},
     "teams": {"home": {"id": 80}, "away": {"id": 85}}}
  ]
}`

const lineupsBody = `{
  "errors": [],
  "results": 2,
  "response": [
    {"team": {"id": 85, "name": "Paris Saint Germain"},
     "startXI": [{"player": {"id": 276, "name": "Neymar"}}],
     "substitutes": [{"player": {"id": 278, "name": "Kylian Mbappé"}}]},
    {"team": {"id": 91, "name": "Monaco"},
     "startXI": [{"player": {"id": 900, "name": "Someone"}}],
     "substitutes": []}
  ]
}`

func newClient(t *testing.T, h http.HandlerFunc) *provider.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return provider.NewClient("secret",
		provider.WithBaseURL(srv.URL),
		provider.WithLimiter(rate.NewLimiter(rate.Inf, 1)),
		provider.WithBackoffs(time.Millisecond, time.Millisecond),
	)
}

func TestInjuries(t *testing.T) {
	var gotQuery, gotKey string
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotKey = r.Header.Get("x-apisports-key")
		assert.Equal(t, "/injuries", r.URL.Path)
		_, _ = w.Write([]byte(injuriesBody))
	})

	absences, err := c.Injuries(context.Background(), 2025, 85, 0)
	require.NoError(t, err)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "season=2025&team=85", gotQuery)

	require.Len(t, absences, 2)
	assert.Equal(t, int64(276), absences[0].ExternalPlayerID)
	assert.Equal(t, "Hamstring Injury", absences[0].Reason)
	assert.Equal(t, int64(85), absences[0].TeamID)
	assert.Equal(t, int64(1001), absences[0].FixtureRef)
	assert.True(t, absences[0].FixtureDate.Equal(time.Date(2026, 3, 15, 20, 0, 0, 0, time.UTC)))
	assert.True(t, absences[1].FixtureDate.IsZero(), "malformed dates are left empty")
}

func TestLastFixturesAndLineups(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fixtures":
			assert.Equal(t, "85", r.URL.Query().Get("team"))
			assert.Equal(t, "3", r.URL.Query().Get("last"))
			assert.Equal(t, "FT-AET-PEN", r.URL.Query().Get("status"))
			_, _ = w.Write([]byte(fixturesBody))
		case "/fixtures/lineups":
			assert.Equal(t, "101", r.URL.Query().Get("fixture"))
			_, _ = w.Write([]byte(lineupsBody))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	fixtures, err := c.LastFixtures(ctx, 85, 3)
	require.NoError(t, err)
	require.Len(t, fixtures, 2)
	assert.Equal(t, int64(101), fixtures[0].ID)
	assert.Equal(t, int64(91), fixtures[0].AwayTeamID)
	assert.Equal(t, "PEN", fixtures[1].Status)

	lineups, err := c.Lineups(ctx, 101)
	require.NoError(t, err)
	require.Len(t, lineups, 2)
	assert.Equal(t, "Neymar", lineups[0].StartXI[0].Name)
	assert.Equal(t, int64(278), lineups[0].Substitutes[0].ID)
	assert.Empty(t, lineups[1].Substitutes)
}

func TestErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("api errors in the envelope", func(t *testing.T) {
		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"errors": {"token": "invalid key"}, "results": 0, "response": []}`))
		})
		_, err := c.LastFixtures(ctx, 85, 3)
		require.Error(t, err)
		assert.True(t, errors.Is(err, provider.ErrUnavailable))
		assert.Contains(t, err.Error(), "invalid key")
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		var calls atomic.Int32
		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusForbidden)
		})
		_, err := c.Lineups(ctx, 1)
		assert.ErrorIs(t, err, provider.ErrUnavailable)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("server errors are retried", func(t *testing.T) {
		var calls atomic.Int32
		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(lineupsBody))
		})
		lineups, err := c.Lineups(ctx, 101)
		require.NoError(t, err)
		assert.Len(t, lineups, 2)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("retries are bounded", func(t *testing.T) {
		var calls atomic.Int32
		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusTooManyRequests)
		})
		_, err := c.Lineups(ctx, 101)
		assert.ErrorIs(t, err, provider.ErrUnavailable)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("malformed bodies", func(t *testing.T) {
		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		})
		_, err := c.Injuries(ctx, 2025, 0, 276)
		assert.ErrorIs(t, err, provider.ErrUnavailable)
	})

	t.Run("cancelled context", func(t *testing.T) {
		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(fixturesBody))
		})
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := c.LastFixtures(cctx, 85, 3)
		assert.ErrorIs(t, err, provider.ErrUnavailable)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSharedLimiter(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(lineupsBody))
	}))
	defer srv.Close()

	a := provider.NewClient("k", provider.WithBaseURL(srv.URL), provider.WithLimiter(limiter))
	b := provider.NewClient("k", provider.WithBaseURL(srv.URL), provider.WithLimiter(limiter))

	_, err := a.Lineups(context.Background(), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = b.Lineups(ctx, 1)
	assert.ErrorIs(t, err, provider.ErrUnavailable, "the second client shares the exhausted bucket")
	assert.False(t, provider.NewClient("").Available())
}
