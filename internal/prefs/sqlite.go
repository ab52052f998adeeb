package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS prefs (
	profile    TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (profile, key)
);
`

// SQLite is a Store backed by a SQLite file.
type SQLite struct {
	conn *sql.DB
}

var _ Store = (*SQLite)(nil)

// pragmas are applied to every connection unless the DSN sets them itself.
var pragmas = map[string]string{
	"_journal_mode": "WAL",
	"_busy_timeout": "5000",
}

// withPragmas merges pragmas into the query part of dsn, which may be a bare
// path or a file: URI that already carries parameters.
func withPragmas(dsn string) (string, error) {
	path, rawQuery, _ := strings.Cut(dsn, "?")
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "", fmt.Errorf("prefs: dsn parameters: %w", err)
	}
	for k, v := range pragmas {
		if !q.Has(k) {
			q.Set(k, v)
		}
	}
	return path + "?" + q.Encode(), nil
}

// Open opens (or creates) the preferences database and applies the schema.
func Open(dsn string) (*SQLite, error) {
	full, err := withPragmas(dsn)
	if err != nil {
		return nil, err
	}
	conn, err := sql.Open("sqlite3", full)
	if err != nil {
		return nil, fmt.Errorf("prefs: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("prefs: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("prefs: apply schema: %w", err)
	}
	return &SQLite{conn: conn}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

func (s *SQLite) Get(ctx context.Context, profile, key string) ([]byte, error) {
	var v string
	err := s.conn.QueryRowContext(ctx,
		`SELECT value FROM prefs WHERE profile = ? AND key = ?`, profile, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMissing
	}
	if err != nil {
		return nil, fmt.Errorf("prefs: get %s: %w", key, err)
	}
	return []byte(v), nil
}

func (s *SQLite) Set(ctx context.Context, profile, key string, value []byte) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO prefs (profile, key, value, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(profile, key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		profile, key, string(value))
	if err != nil {
		return fmt.Errorf("prefs: set %s: %w", key, err)
	}
	return nil
}
