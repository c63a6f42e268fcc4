package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/text/cases"
	_ "modernc.org/sqlite"

	"github.com/okian/sickbay/internal/domain/model"
	"github.com/okian/sickbay/pkg/logger"
)

const (
	defaultBusyTimeout = 5 * time.Second
	memoryDSN          = ":memory:"

	playerColumns = `id, external_id, display_name, club_name, team_id, state, is_injured, injury_status, updated_at`
	injuryColumns = `id, player_id, injury_type, description, severity, is_active, source, source_url,
		injury_date, expected_return_date, actual_return_date, created_at, updated_at`
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore is a Store backed by database/sql. sqlite runs through modernc.org/sqlite;
// postgres runs through a pgx pool.
type SQLStore struct {
	db           *sql.DB
	pool         *pgxpool.Pool
	dialect      dialect
	logger       logger.Logger
	busyTimeout  time.Duration
	maxOpenConns int
}

var _ Store = (*SQLStore)(nil)

// Open connects to the database and creates the schema if needed.
// For sqlite, ":memory:" gives a private in-memory database.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*SQLStore, error) {
	s := &SQLStore{
		logger:      logger.Get().Named("repository"),
		busyTimeout: defaultBusyTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	switch strings.ToLower(driver) {
	case DriverSQLite, "sqlite3":
		if err := s.openSQLite(dsn); err != nil {
			return nil, err
		}
	case DriverPostgres, "pgx", "postgresql":
		if err := s.openPostgres(ctx, dsn); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	if err := s.db.PingContext(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := s.migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	s.logger.Info(ctx, "store opened", logger.String("driver", s.dialect.name))
	return s, nil
}

func (s *SQLStore) openSQLite(dsn string) error {
	s.dialect = sqliteDialect
	memory := dsn == memoryDSN || dsn == ""

	connStr := dsn
	if memory {
		// a named shared-cache database keeps every pooled connection on the same data
		connStr = fmt.Sprintf("file:sickbay-%s?mode=memory&cache=shared", uuid.NewString())
	}
	sep := "?"
	if strings.Contains(connStr, "?") {
		sep = "&"
	}
	connStr += fmt.Sprintf("%s_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", sep, s.busyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	// sqlite allows a single writer; one connection avoids SQLITE_BUSY between workers
	db.SetMaxOpenConns(1)
	s.db = db

	if !memory {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return fmt.Errorf("enable WAL mode: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) openPostgres(ctx context.Context, dsn string) error {
	s.dialect = postgresDialect
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("open pool: %w", err)
	}
	s.pool = pool
	s.db = stdlib.OpenDBFromPool(pool)
	if s.maxOpenConns > 0 {
		s.db.SetMaxOpenConns(s.maxOpenConns)
	}
	return nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema: %w", err)
		}
	}
	return nil
}

// Ping checks the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database handle and, for postgres, the pool.
func (s *SQLStore) Close() error {
	err := s.db.Close()
	if s.pool != nil {
		s.pool.Close()
	}
	return err
}

// WithTx runs fn inside a transaction.
func (s *SQLStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(ctx, &txStore{q: sqlTx, d: s.dialect}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Warn(ctx, "rollback failed", logger.Error(rbErr))
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// UpsertPlayer refreshes identity fields of a known external id or inserts a new available player.
func (s *SQLStore) UpsertPlayer(ctx context.Context, p model.Player) (model.Player, error) {
	now := time.Now().UTC()
	var out model.Player
	err := s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		q := tx.(*txStore)
		if p.ExternalID != 0 {
			existing, err := q.playerBy(ctx, "external_id = ?", p.ExternalID)
			switch {
			case err == nil:
				_, err = q.q.ExecContext(ctx, q.d.rebind(
					`UPDATE players SET display_name = ?, name_key = ?, club_name = ?, team_id = ?, updated_at = ? WHERE id = ?`),
					p.DisplayName, nameKey(p.DisplayName), p.ClubName, p.TeamID, now, existing.ID)
				if err != nil {
					return fmt.Errorf("update player: %w", err)
				}
				out, err = q.Player(ctx, existing.ID)
				return err
			case !errors.Is(err, ErrNotFound):
				return err
			}
		}

		var id int64
		err := q.q.QueryRowContext(ctx, q.d.rebind(
			`INSERT INTO players (external_id, display_name, name_key, club_name, team_id, state, is_injured, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
			nullInt64(p.ExternalID), p.DisplayName, nameKey(p.DisplayName), p.ClubName, p.TeamID, string(model.StateAvailable), false, now,
		).Scan(&id)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return fmt.Errorf("insert player: %w", err)
		}
		out, err = q.Player(ctx, id)
		return err
	})
	return out, err
}

// GetPlayer returns a player by internal id.
func (s *SQLStore) GetPlayer(ctx context.Context, id int64) (model.Player, error) {
	return s.ro().Player(ctx, id)
}

// FindPlayerByExternalID returns a player by provider id.
func (s *SQLStore) FindPlayerByExternalID(ctx context.Context, externalID int64) (model.Player, error) {
	return s.ro().playerBy(ctx, "external_id = ?", externalID)
}

// FindPlayersByName performs a case-insensitive contains match on display names.
// Both sides are folded in Go; SQLite's LOWER only folds ASCII.
func (s *SQLStore) FindPlayersByName(ctx context.Context, name string) ([]model.Player, error) {
	key := nameKey(name)
	if key == "" {
		return nil, nil
	}
	pattern := "%" + escapeLike(key) + "%"
	return s.ro().players(ctx,
		`SELECT `+playerColumns+` FROM players WHERE name_key LIKE ? ESCAPE '\' ORDER BY id`, pattern)
}

// nameKey is the case-folded form of a display name stored for lookups.
func nameKey(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// ActivePlayers lists players with an injured state.
func (s *SQLStore) ActivePlayers(ctx context.Context, limit int) ([]model.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players WHERE state IN (?, ?) ORDER BY updated_at, id`
	args := []any{string(model.StateSuspected), string(model.StateConfirmed)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.ro().players(ctx, query, args...)
}

// ListInjuries returns records newest first.
func (s *SQLStore) ListInjuries(ctx context.Context, f InjuryFilter) ([]model.InjuryRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.PlayerID != 0 {
		where = append(where, "player_id = ?")
		args = append(args, f.PlayerID)
	}
	if f.ActiveOnly {
		where = append(where, "is_active = ?")
		args = append(args, true)
	}
	query := `SELECT ` + injuryColumns + ` FROM injury_records`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list injuries: %w", err)
	}
	defer rows.Close()

	var out []model.InjuryRecord
	for rows.Next() {
		r, err := scanInjury(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountActiveInjuries counts active records.
func (s *SQLStore) CountActiveInjuries(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(
		`SELECT COUNT(*) FROM injury_records WHERE is_active = ?`), true).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active injuries: %w", err)
	}
	return n, nil
}

// RecordReview stores an ambiguous name for manual review.
func (s *SQLStore) RecordReview(ctx context.Context, r model.IdentityReview) error {
	candidates, err := json.Marshal(r.Candidates)
	if err != nil {
		return fmt.Errorf("encode candidates: %w", err)
	}
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err = s.db.ExecContext(ctx, s.dialect.rebind(
		`INSERT INTO identity_reviews (name, candidates, source, created_at) VALUES (?, ?, ?, ?)`),
		r.Name, string(candidates), r.Source, created.UTC())
	if err != nil {
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

// SaveRun stores a run summary.
func (s *SQLStore) SaveRun(ctx context.Context, sum model.RunSummary) error {
	body, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	_, err = s.db.ExecContext(ctx, s.dialect.rebind(
		`INSERT INTO runs (run_id, started_at, finished_at, summary) VALUES (?, ?, ?, ?)`),
		sum.RunID, sum.StartedAt.UTC(), sum.FinishedAt.UTC(), string(body))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// LastRun returns the most recently finished run.
func (s *SQLStore) LastRun(ctx context.Context) (model.RunSummary, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT summary FROM runs ORDER BY finished_at DESC LIMIT 1`).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RunSummary{}, ErrNotFound
	}
	if err != nil {
		return model.RunSummary{}, fmt.Errorf("last run: %w", err)
	}
	var sum model.RunSummary
	if err := json.Unmarshal([]byte(body), &sum); err != nil {
		return model.RunSummary{}, fmt.Errorf("decode summary: %w", err)
	}
	return sum, nil
}

func (s *SQLStore) ro() *txStore {
	return &txStore{q: s.db, d: s.dialect}
}

// txStore implements Tx over any querier.
type txStore struct {
	q querier
	d dialect
}

func (t *txStore) Player(ctx context.Context, id int64) (model.Player, error) {
	return t.playerBy(ctx, "id = ?", id)
}

func (t *txStore) playerBy(ctx context.Context, cond string, arg any) (model.Player, error) {
	ps, err := t.players(ctx, `SELECT `+playerColumns+` FROM players WHERE `+cond, arg)
	if err != nil {
		return model.Player{}, err
	}
	if len(ps) == 0 {
		return model.Player{}, ErrNotFound
	}
	return ps[0], nil
}

func (t *txStore) players(ctx context.Context, query string, args ...any) ([]model.Player, error) {
	rows, err := t.q.QueryContext(ctx, t.d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query players: %w", err)
	}
	defer rows.Close()

	var out []model.Player
	for rows.Next() {
		var (
			p      model.Player
			extID  sql.NullInt64
			state  string
			status sql.NullString
		)
		if err := rows.Scan(&p.ID, &extID, &p.DisplayName, &p.ClubName, &p.TeamID,
			&state, &p.IsInjured, &status, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		p.ExternalID = extID.Int64
		p.State = model.State(state)
		if status.Valid {
			v := status.String
			p.InjuryStatus = &v
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *txStore) ActiveInjury(ctx context.Context, playerID int64) (model.InjuryRecord, error) {
	row := t.q.QueryRowContext(ctx, t.d.rebind(
		`SELECT `+injuryColumns+` FROM injury_records WHERE player_id = ? AND is_active = ?`), playerID, true)
	r, err := scanInjury(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.InjuryRecord{}, ErrNotFound
	}
	return r, err
}

func (t *txStore) InsertInjury(ctx context.Context, r model.InjuryRecord) (int64, error) {
	now := time.Now().UTC()
	var id int64
	err := t.q.QueryRowContext(ctx, t.d.rebind(
		`INSERT INTO injury_records (player_id, injury_type, description, severity, is_active, source, source_url,
			injury_date, expected_return_date, actual_return_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		r.PlayerID, r.InjuryType, r.Description, string(r.Severity), true, r.Source, r.SourceURL,
		r.InjuryDate.UTC(), nullTime(r.ExpectedReturnDate), nullTime(nil), now, now,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrConflict
		}
		return 0, fmt.Errorf("insert injury: %w", err)
	}
	return id, nil
}

func (t *txStore) UpdateInjury(ctx context.Context, r model.InjuryRecord) error {
	res, err := t.q.ExecContext(ctx, t.d.rebind(
		`UPDATE injury_records SET injury_type = ?, description = ?, severity = ?, source = ?, source_url = ?,
			expected_return_date = ?, updated_at = ? WHERE id = ?`),
		r.InjuryType, r.Description, string(r.Severity), r.Source, r.SourceURL,
		nullTime(r.ExpectedReturnDate), time.Now().UTC(), r.ID)
	if err != nil {
		return fmt.Errorf("update injury: %w", err)
	}
	return expectRow(res)
}

func (t *txStore) DeactivateInjury(ctx context.Context, id int64, returned time.Time) error {
	res, err := t.q.ExecContext(ctx, t.d.rebind(
		`UPDATE injury_records SET is_active = ?, actual_return_date = ?, updated_at = ? WHERE id = ? AND is_active = ?`),
		false, returned.UTC(), time.Now().UTC(), id, true)
	if err != nil {
		return fmt.Errorf("deactivate injury: %w", err)
	}
	return expectRow(res)
}

func (t *txStore) SetPlayerState(ctx context.Context, playerID int64, state model.State, status *string, at time.Time) error {
	var st sql.NullString
	if status != nil {
		st = sql.NullString{String: *status, Valid: true}
	}
	res, err := t.q.ExecContext(ctx, t.d.rebind(
		`UPDATE players SET state = ?, is_injured = ?, injury_status = ?, updated_at = ? WHERE id = ?`),
		string(state), state.Injured(), st, at.UTC(), playerID)
	if err != nil {
		return fmt.Errorf("update player state: %w", err)
	}
	return expectRow(res)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInjury(sc scanner) (model.InjuryRecord, error) {
	var (
		r                model.InjuryRecord
		severity         string
		expected, actual sql.NullTime
	)
	err := sc.Scan(&r.ID, &r.PlayerID, &r.InjuryType, &r.Description, &severity, &r.IsActive,
		&r.Source, &r.SourceURL, &r.InjuryDate, &expected, &actual, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scan injury: %w", err)
	}
	r.Severity = model.Severity(severity)
	if expected.Valid {
		t := expected.Time
		r.ExpectedReturnDate = &t
	}
	if actual.Valid {
		t := actual.Time
		r.ActualReturnDate = &t
	}
	return r, nil
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
