package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lib/pq"

	"fintrack/internal/core"
	"fintrack/internal/storage"
	"fintrack/internal/storage/storagetest"
)

func openSQLite(t *testing.T) storage.Store {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "fintrack.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	storagetest.Run(t, openSQLite)
}

// TestPostgresStore runs the shared suite in a throwaway schema when
// FINTRACK_TEST_POSTGRES_DSN is set.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("FINTRACK_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("FINTRACK_TEST_POSTGRES_DSN not set")
	}
	admin, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open admin connection: %v", err)
	}
	t.Cleanup(func() { _ = admin.Close() })

	storagetest.Run(t, func(t *testing.T) storage.Store {
		schema := "fintrack_test_" + strings.ReplaceAll(core.NewID()[:8], "-", "")
		if _, err := admin.Exec("CREATE SCHEMA " + schema); err != nil {
			t.Fatalf("create schema: %v", err)
		}
		s, err := OpenPostgres(context.Background(), withSearchPath(dsn, schema))
		if err != nil {
			t.Fatalf("open postgres: %v", err)
		}
		t.Cleanup(func() {
			_ = s.Close()
			_, _ = admin.Exec("DROP SCHEMA " + schema + " CASCADE")
		})
		return s
	})
}

func withSearchPath(dsn, schema string) string {
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" {
		q := u.Query()
		q.Set("search_path", schema)
		u.RawQuery = q.Encode()
		return u.String()
	}
	return dsn + " search_path=" + schema
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fintrack.db")
	for i := 0; i < 2; i++ {
		s, err := OpenSQLite(context.Background(), path)
		if err != nil {
			t.Fatalf("open #%d: %v", i+1, err)
		}
		if err := s.Ping(context.Background()); err != nil {
			t.Fatalf("ping #%d: %v", i+1, err)
		}
		s.Close()
	}
}

func TestRebind(t *testing.T) {
	q := "SELECT a FROM t WHERE x = ? AND y = ? LIMIT ?"
	if got := SQLite.Rebind(q); got != q {
		t.Fatalf("sqlite rebind changed query: %s", got)
	}
	want := "SELECT a FROM t WHERE x = $1 AND y = $2 LIMIT $3"
	if got := Postgres.Rebind(q); got != want {
		t.Fatalf("postgres rebind = %s, want %s", got, want)
	}
}

func TestUniqueViolation(t *testing.T) {
	if !SQLite.IsUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: accounts.email (2067)")) {
		t.Fatalf("sqlite unique violation not detected")
	}
	if SQLite.IsUniqueViolation(errors.New("no such table")) {
		t.Fatalf("unexpected sqlite unique violation")
	}
	if !Postgres.IsUniqueViolation(&pq.Error{Code: "23505"}) {
		t.Fatalf("postgres unique violation not detected")
	}
	if Postgres.IsUniqueViolation(&pq.Error{Code: "23503"}) {
		t.Fatalf("foreign key violation reported as unique")
	}
	if SQLite.IsUniqueViolation(nil) {
		t.Fatalf("nil is not a violation")
	}
}
