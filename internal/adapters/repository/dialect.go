package repository

import (
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	pgUniqueViolation = "23505"
)

type dialect struct {
	name   string
	schema []string
	// numbered placeholders ($1, $2, ...) instead of ?
	numbered bool
}

var sqliteDialect = dialect{
	name: DriverSQLite,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS players (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			external_id INTEGER,
			display_name TEXT NOT NULL,
			name_key TEXT NOT NULL DEFAULT '',
			club_name TEXT NOT NULL DEFAULT '',
			team_id INTEGER NOT NULL DEFAULT 0,
			state TEXT NOT NULL DEFAULT 'available',
			is_injured BOOLEAN NOT NULL DEFAULT 0,
			injury_status TEXT,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_players_external ON players(external_id) WHERE external_id IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_players_state ON players(state, updated_at)`,
		`CREATE TABLE IF NOT EXISTS injury_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			player_id INTEGER NOT NULL REFERENCES players(id),
			injury_type TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL,
			severity TEXT NOT NULL,
			is_active BOOLEAN NOT NULL,
			source TEXT NOT NULL,
			source_url TEXT NOT NULL DEFAULT '',
			injury_date TIMESTAMP NOT NULL,
			expected_return_date TIMESTAMP,
			actual_return_date TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_injury_records_active ON injury_records(player_id) WHERE is_active`,
		`CREATE INDEX IF NOT EXISTS idx_injury_records_player ON injury_records(player_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS identity_reviews (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			candidates TEXT NOT NULL,
			source TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP NOT NULL,
			summary TEXT NOT NULL
		)`,
	},
}

var postgresDialect = dialect{
	name:     DriverPostgres,
	numbered: true,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS players (
			id BIGSERIAL PRIMARY KEY,
			external_id BIGINT,
			display_name TEXT NOT NULL,
			name_key TEXT NOT NULL DEFAULT '',
			club_name TEXT NOT NULL DEFAULT '',
			team_id BIGINT NOT NULL DEFAULT 0,
			state TEXT NOT NULL DEFAULT 'available',
			is_injured BOOLEAN NOT NULL DEFAULT FALSE,
			injury_status TEXT,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_players_external ON players(external_id) WHERE external_id IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_players_state ON players(state, updated_at)`,
		`CREATE TABLE IF NOT EXISTS injury_records (
			id BIGSERIAL PRIMARY KEY,
			player_id BIGINT NOT NULL REFERENCES players(id),
			injury_type TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL,
			severity TEXT NOT NULL,
			is_active BOOLEAN NOT NULL,
			source TEXT NOT NULL,
			source_url TEXT NOT NULL DEFAULT '',
			injury_date TIMESTAMPTZ NOT NULL,
			expected_return_date TIMESTAMPTZ,
			actual_return_date TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_injury_records_active ON injury_records(player_id) WHERE is_active`,
		`CREATE INDEX IF NOT EXISTS idx_injury_records_player ON injury_records(player_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS identity_reviews (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			candidates TEXT NOT NULL,
			source TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL,
			summary TEXT NOT NULL
		)`,
	},
}

// rebind rewrites ? placeholders for dialects that number them.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		return pe.Code == pgUniqueViolation
	}
	return false
}
