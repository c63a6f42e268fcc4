// Package provider is an API-Football v3 client for absences, fixtures and lineups.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/sickbay/internal/domain/model"
	"github.com/okian/sickbay/pkg/logger"
	"github.com/okian/sickbay/pkg/metrics"
)

const (
	DefaultBaseURL   = "https://v3.football.api-sports.io"
	apiKeyHeader     = "x-apisports-key"
	completedStatus  = "FT-AET-PEN"
	maxResponseBytes = 4 << 20
	maxRetryAfter    = 30 * time.Second

	endpointInjuries = "/injuries"
	endpointFixtures = "/fixtures"
	endpointLineups  = "/fixtures/lineups"
)

// Client talks to API-Football. All requests share one token bucket.
type Client struct {
	baseURL  string
	apiKey   string
	client   *http.Client
	limiter  *rate.Limiter
	backoffs []time.Duration
	logger   logger.Logger
}

// NewClient creates a client. Without WithRequestsPerMinute or WithLimiter
// requests are limited to 10 per minute, the free-plan quota.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 30 * time.Second},
		limiter:  rate.NewLimiter(rate.Every(6*time.Second), 1),
		backoffs: []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second},
		logger:   logger.Get().Named("provider"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Available reports whether an API key is configured.
func (c *Client) Available() bool {
	return c.apiKey != ""
}

// Injuries fetches the raw absence feed for a season, optionally narrowed to a team or player.
func (c *Client) Injuries(ctx context.Context, season int, teamID, playerID int64) ([]model.RawAbsence, error) {
	params := url.Values{"season": {strconv.Itoa(season)}}
	if teamID != 0 {
		params.Set("team", strconv.FormatInt(teamID, 10))
	}
	if playerID != 0 {
		params.Set("player", strconv.FormatInt(playerID, 10))
	}

	var rows []injuryRow
	if err := c.get(ctx, endpointInjuries, params, &rows); err != nil {
		return nil, err
	}
	out := make([]model.RawAbsence, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.RawAbsence{
			ExternalPlayerID: r.Player.ID,
			PlayerName:       strings.TrimSpace(r.Player.Name),
			Type:             r.Player.Type,
			Reason:           r.Player.Reason,
			TeamID:           r.Team.ID,
			TeamName:         r.Team.Name,
			FixtureRef:       r.Fixture.ID,
			FixtureDate:      c.parseDate(ctx, r.Fixture.Date),
		})
	}
	return out, nil
}

// LastFixtures returns the team's most recent completed fixtures in provider order.
func (c *Client) LastFixtures(ctx context.Context, teamID int64, count int) ([]model.Fixture, error) {
	params := url.Values{
		"team":   {strconv.FormatInt(teamID, 10)},
		"last":   {strconv.Itoa(count)},
		"status": {completedStatus},
	}
	var rows []fixtureRow
	if err := c.get(ctx, endpointFixtures, params, &rows); err != nil {
		return nil, err
	}
	out := make([]model.Fixture, 0, len(rows))
	for _, r := range rows {
		if r.Fixture.ID == 0 {
			continue
		}
		out = append(out, model.Fixture{
			ID:         r.Fixture.ID,
			Date:       c.parseDate(ctx, r.Fixture.Date),
			HomeTeamID: r.Teams.Home.ID,
			AwayTeamID: r.Teams.Away.ID,
			Status:     r.Fixture.Status.Short,
		})
	}
	return out, nil
}

// Lineups returns both team sheets of a fixture.
func (c *Client) Lineups(ctx context.Context, fixtureID int64) ([]model.Lineup, error) {
	params := url.Values{"fixture": {strconv.FormatInt(fixtureID, 10)}}
	var rows []lineupRow
	if err := c.get(ctx, endpointLineups, params, &rows); err != nil {
		return nil, err
	}
	out := make([]model.Lineup, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.Lineup{
			TeamID:      r.Team.ID,
			TeamName:    r.Team.Name,
			StartXI:     r.StartXI.players(),
			Substitutes: r.Substitutes.players(),
		})
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	start := time.Now()
	status := "error"
	defer func() {
		metrics.RecordProviderRequest(endpoint, status, time.Since(start).Seconds())
	}()

	body, err := c.doWithRetry(ctx, endpoint, c.baseURL+endpoint+"?"+params.Encode())
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%w: parse %s response: %w", ErrUnavailable, endpoint, err)
	}
	if !emptyErrors(env.Errors) {
		status = "api_error"
		return fmt.Errorf("%w: %s: %s", ErrUnavailable, endpoint, string(env.Errors))
	}
	if len(env.Response) > 0 {
		if err := json.Unmarshal(env.Response, out); err != nil {
			return fmt.Errorf("%w: decode %s response: %w", ErrUnavailable, endpoint, err)
		}
	}
	status = "ok"
	c.logger.Debug(ctx, "provider request",
		logger.String("endpoint", endpoint),
		logger.Int("results", env.Results),
		logger.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// doWithRetry retries on transport errors, 429 and 5xx with backoff.
// Retry-After is honored on 429. Every attempt waits on the shared limiter.
func (c *Client) doWithRetry(ctx context.Context, endpoint, target string) ([]byte, error) {
	maxRetries := len(c.backoffs)
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %w", ErrUnavailable, err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set(apiKeyHeader, c.apiKey)
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: request cancelled: %w", ErrUnavailable, ctx.Err())
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			if err := c.sleep(ctx, attempt, 0); err != nil {
				return nil, err
			}
			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("read response: %w", readErr)
			if err := c.sleep(ctx, attempt, 0); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return body, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, snippet(body))
			c.logger.Warn(ctx, "provider request failed, retrying",
				logger.String("endpoint", endpoint),
				logger.Int("status", resp.StatusCode),
				logger.Int("attempt", attempt+1),
			)
			if err := c.sleep(ctx, attempt, retryAfter(resp)); err != nil {
				return nil, err
			}
			continue
		}

		return nil, fmt.Errorf("%w: %s status %d: %s", ErrUnavailable, endpoint, resp.StatusCode, snippet(body))
	}
	return nil, fmt.Errorf("%w: %s failed after %d retries: %w", ErrUnavailable, endpoint, maxRetries, lastErr)
}

func (c *Client) sleep(ctx context.Context, attempt int, override time.Duration) error {
	if attempt >= len(c.backoffs) {
		return nil
	}
	delay := c.backoffs[attempt]
	if override > 0 {
		delay = override
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
	case <-t.C:
		return nil
	}
}

func (c *Client) parseDate(ctx context.Context, s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		c.logger.Debug(ctx, "unparseable provider date", logger.String("date", s))
		return time.Time{}
	}
	return t
}

func retryAfter(resp *http.Response) time.Duration {
	if resp.StatusCode != http.StatusTooManyRequests {
		return 0
	}
	seconds, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || seconds <= 0 {
		return 0
	}
	return min(time.Duration(seconds)*time.Second, maxRetryAfter)
}

// emptyErrors reports whether the envelope's errors field is absent, [] or {}.
func emptyErrors(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	switch string(trimmed) {
	case "", "null", "[]", "{}":
		return true
	}
	return false
}

func snippet(body []byte) string {
	const limit = 200
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
