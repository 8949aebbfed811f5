package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// DB is a database handle that knows which placeholder style its driver wants.
// Queries are written with ? and rebound for postgres.
type DB struct {
	*sql.DB
	Dialect Dialect
}

func Connect(dialect Dialect, connString string) (*DB, error) {
	switch dialect {
	case Postgres, SQLite:
	default:
		return nil, fmt.Errorf("unsupported db driver %q", dialect)
	}

	sqlDB, err := sql.Open(string(dialect), connString)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if dialect == SQLite {
		// one connection keeps :memory: databases shared and serializes writers
		sqlDB.SetMaxOpenConns(1)
		if _, err := sqlDB.Exec("PRAGMA foreign_keys=ON"); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("pragma fk: %w", err)
		}
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return &DB{DB: sqlDB, Dialect: dialect}, nil
}

// Rebind converts ? placeholders to $1, $2, ... for postgres.
func (d *DB) Rebind(query string) string {
	if d.Dialect != Postgres {
		return query
	}
	var b strings.Builder
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

func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.DB.ExecContext(ctx, d.Rebind(query), args...)
}

func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.DB.QueryContext(ctx, d.Rebind(query), args...)
}

func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.DB.QueryRowContext(ctx, d.Rebind(query), args...)
}

// Migrate creates the tables the service needs.
func (d *DB) Migrate(ctx context.Context) error {
	schema := sqliteSchema
	if d.Dialect == Postgres {
		schema = postgresSchema
	}
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := d.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS schedule_tasks (
	id           TEXT PRIMARY KEY,
	task_date    TEXT NOT NULL,
	helper_name  TEXT NOT NULL DEFAULT '',
	helper_email TEXT,
	client_name  TEXT NOT NULL DEFAULT '',
	start_time   TEXT NOT NULL DEFAULT '',
	end_time     TEXT NOT NULL DEFAULT '',
	destination  TEXT,
	status       TEXT NOT NULL DEFAULT 'scheduled'
);

CREATE TABLE IF NOT EXISTS service_notes (
	id         TEXT PRIMARY KEY,
	task_id    TEXT NOT NULL UNIQUE REFERENCES schedule_tasks(id),
	answers    JSONB NOT NULL,
	note_text  TEXT,
	revision   INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

ALTER TABLE service_notes ADD COLUMN IF NOT EXISTS revision INTEGER NOT NULL DEFAULT 1;

CREATE TABLE IF NOT EXISTS analytics_events (
	id               BIGSERIAL PRIMARY KEY,
	event_name       TEXT NOT NULL,
	event_time       TIMESTAMPTZ NOT NULL,
	helper_email     TEXT,
	session_id       TEXT,
	platform         TEXT,
	app_version      TEXT,
	source_event_key TEXT UNIQUE,
	properties       JSONB
)
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS schedule_tasks (
	id           TEXT PRIMARY KEY,
	task_date    TEXT NOT NULL,
	helper_name  TEXT NOT NULL DEFAULT '',
	helper_email TEXT,
	client_name  TEXT NOT NULL DEFAULT '',
	start_time   TEXT NOT NULL DEFAULT '',
	end_time     TEXT NOT NULL DEFAULT '',
	destination  TEXT,
	status       TEXT NOT NULL DEFAULT 'scheduled'
);

CREATE TABLE IF NOT EXISTS service_notes (
	id         TEXT PRIMARY KEY,
	task_id    TEXT NOT NULL UNIQUE REFERENCES schedule_tasks(id),
	answers    TEXT NOT NULL,
	note_text  TEXT,
	revision   INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS analytics_events (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	event_name       TEXT NOT NULL,
	event_time       TEXT NOT NULL,
	helper_email     TEXT,
	session_id       TEXT,
	platform         TEXT,
	app_version      TEXT,
	source_event_key TEXT UNIQUE,
	properties       TEXT
)
`
