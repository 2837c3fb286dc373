// Package dbtest opens throwaway migrated SQLite databases for tests.
package dbtest

import (
	"context"
	"database/sql"
	"testing"

	"github.com/iliyamo/iot-auth-service/internal/config"
	"github.com/iliyamo/iot-auth-service/internal/database"
	"github.com/iliyamo/iot-auth-service/migrations"
)

// Open returns an in-memory SQLite database with the schema applied. It is
// closed when the test finishes.
func Open(t testing.TB) *sql.DB {
	t.Helper()

	db, err := database.Open(config.DBConfig{Driver: "sqlite3", Path: ":memory:"})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := database.Migrate(context.Background(), db, migrations.FS); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
