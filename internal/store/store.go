// Package store holds the privileged, host-only state the validation
// pipeline needs: an index of submitted values for unique checks and a
// table of one-time captcha tokens. Nothing in this package is ever
// reachable from a sandbox.
package store

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"    // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/hlop3z/formsandbox/internal/fserr"
)

// Dialect names.
const (
	Postgres = "postgres"
	SQLite   = "sqlite"
)

// Store is an open database plus the repositories built on it.
type Store struct {
	db      *sql.DB
	dialect string

	Unique  *UniqueIndex
	Captcha *CaptchaTokens
}

// Open connects to url. The dialect is detected from the URL.
func Open(ctx context.Context, url string) (*Store, error) {
	if url == "" {
		return nil, fserr.New(fserr.ErrConfigInvalid, "database URL is required")
	}
	dialect := detectDialect(url)
	db, err := openDatabase(url, dialect)
	if err != nil {
		return nil, fserr.Wrap(fserr.ErrSQLConnection, err, "failed to open database").
			With("dialect", dialect)
	}

	if dialect == SQLite {
		// A single writer keeps in-memory databases shared and avoids
		// SQLITE_BUSY on the token table.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fserr.Wrap(fserr.ErrSQLConnection, err, "failed to connect to database").
			With("dialect", dialect)
	}
	return New(db, dialect), nil
}

// New wraps an existing connection.
func New(db *sql.DB, dialect string) *Store {
	s := &Store{db: db, dialect: dialect}
	s.Unique = &UniqueIndex{s: s}
	s.Captcha = &CaptchaTokens{s: s, now: time.Now}
	return s
}

// DB returns the underlying connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the dialect name.
func (s *Store) Dialect() string {
	return s.dialect
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS submission_values (
		form_id       TEXT NOT NULL,
		path          TEXT NOT NULL,
		value_key     TEXT NOT NULL,
		submission_id TEXT NOT NULL,
		created_at    BIGINT NOT NULL,
		PRIMARY KEY (form_id, path, submission_id)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_submission_values_unique
		ON submission_values (form_id, path, value_key)`,
	`CREATE TABLE IF NOT EXISTS captcha_tokens (
		token      TEXT PRIMARY KEY,
		form_id    TEXT NOT NULL,
		expires_at BIGINT NOT NULL,
		used       INTEGER NOT NULL DEFAULT 0
	)`,
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fserr.WrapSQL(err, "migrate", "").With("dialect", s.dialect)
		}
	}
	return nil
}

// rebind rewrites ? placeholders for the dialect.
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// detectDialect picks a dialect from the connection URL.
//
// Detection rules:
//   - postgres:// or postgresql:// -> postgres
//   - sqlite://, file:, :memory: or a .db/.sqlite/.sqlite3 path -> sqlite
func detectDialect(url string) string {
	url = strings.ToLower(url)
	switch {
	case strings.HasPrefix(url, "postgres://"),
		strings.HasPrefix(url, "postgresql://"):
		return Postgres
	case strings.HasPrefix(url, "sqlite://"),
		strings.HasPrefix(url, "sqlite3://"),
		strings.HasPrefix(url, "file:"),
		strings.HasPrefix(url, ":memory:"):
		return SQLite
	case strings.HasSuffix(url, ".db"),
		strings.HasSuffix(url, ".sqlite"),
		strings.HasSuffix(url, ".sqlite3"):
		return SQLite
	}
	return Postgres
}

func openDatabase(url, dialect string) (*sql.DB, error) {
	switch dialect {
	case Postgres:
		return sql.Open("postgres", url)
	case SQLite:
		return sql.Open("sqlite", sqlitePath(url))
	}
	return nil, fserr.Newf(fserr.ErrConfigInvalid, "unsupported dialect: %s", dialect)
}

// sqlitePath strips the sqlite:// scheme. file: URIs are passed through so
// the driver keeps their query parameters.
func sqlitePath(url string) string {
	url = strings.TrimPrefix(url, "sqlite://")
	return strings.TrimPrefix(url, "sqlite3://")
}
