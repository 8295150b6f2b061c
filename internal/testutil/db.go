package testutil

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"testing"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// SQLiteURL returns a URL for a fresh in-memory SQLite database private to t.
func SQLiteURL(t *testing.T) string {
	t.Helper()
	return "file:" + randomName(t) + "?mode=memory&cache=shared"
}

// SetupSQLite opens an in-memory SQLite database private to the test.
// The connection is closed when the test completes.
func SetupSQLite(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", SQLiteURL(t))
	if err != nil {
		t.Fatalf("failed to open sqlite connection: %v", err)
	}
	// Every connection to a shared-cache memory database sees the same
	// data only while one stays open.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		t.Fatalf("failed to ping sqlite: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

// SetupPostgres connects to POSTGRES_URL inside a schema private to the
// test, and skips the test when POSTGRES_URL is unset.
func SetupPostgres(t *testing.T) *sql.DB {
	t.Helper()

	url := os.Getenv("POSTGRES_URL")
	if url == "" {
		t.Skip("POSTGRES_URL not set")
	}

	setup, err := sql.Open("postgres", url)
	if err != nil {
		t.Fatalf("failed to open postgres connection: %v", err)
	}
	defer setup.Close()
	if err := setup.Ping(); err != nil {
		t.Fatalf("failed to ping postgres: %v", err)
	}

	schema := "test_" + randomName(t)
	if _, err := setup.Exec(fmt.Sprintf("CREATE SCHEMA %s", schema)); err != nil {
		t.Fatalf("failed to create test schema: %v", err)
	}

	sep := "&"
	if !strings.Contains(url, "?") {
		sep = "?"
	}
	db, err := sql.Open("postgres", url+sep+"search_path="+schema)
	if err != nil {
		t.Fatalf("failed to open postgres connection with schema: %v", err)
	}
	db.SetMaxOpenConns(1)

	t.Cleanup(func() {
		db.Close()
		if cleanup, err := sql.Open("postgres", url); err == nil {
			_, _ = cleanup.Exec(fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schema))
			cleanup.Close()
		}
	})
	return db
}

// AssertRowCount checks that table holds the expected number of rows.
func AssertRowCount(t *testing.T, db *sql.DB, table string, expected int) {
	t.Helper()

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
		t.Fatalf("failed to count rows in %s: %v", table, err)
	}
	if count != expected {
		t.Errorf("expected %d rows in %s, got %d", expected, table, count)
	}
}

func randomName(t *testing.T) string {
	t.Helper()

	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("failed to generate random name: %v", err)
	}
	return hex.EncodeToString(b)
}
