package containers

import (
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/p2repo/cdenrich/internal/infra/cache"
)

// Migrate applies the content-cache schema to the database.
//
// Example usage:
//
//	func TestContentCache(t *testing.T) {
//	    pool := containers.NewPostgres(t)
//	    containers.Migrate(t, pool)
//	    // Tables now exist, ready for testing
//	}
func Migrate(t testing.TB, pool *pgxpool.Pool) {
	t.Helper()

	if err := cache.Migrate(pool); err != nil {
		t.Fatalf("content-cache migration failed: %v", err)
	}
}

// MigrateWithPath applies goose migrations from a custom directory, for
// tests that carry their own schema.
func MigrateWithPath(t testing.TB, pool *pgxpool.Pool, migrationsPath string) {
	t.Helper()

	db := stdlib.OpenDBFromPool(pool)
	defer func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close sql.DB: %v", err)
		}
	}()

	if err := goose.SetDialect("postgres"); err != nil {
		t.Fatalf("failed to set goose dialect: %v", err)
	}

	if err := goose.Up(db, migrationsPath); err != nil {
		t.Fatalf("goose up failed: %v", err)
	}
}
