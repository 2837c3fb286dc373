package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/iot-auth-service/internal/config"
	"github.com/iliyamo/iot-auth-service/internal/database"
	"github.com/iliyamo/iot-auth-service/migrations"
)

func TestMigrateIsRepeatable(t *testing.T) {
	db, err := database.Open(config.DBConfig{Driver: "sqlite3", Path: ":memory:"})
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, database.Migrate(ctx, db, migrations.FS))
	require.NoError(t, database.Migrate(ctx, db, migrations.FS))

	var n int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&n))
	require.Equal(t, 2, n)

	for _, table := range []string{"tenants", "users", "user_details", "mqtt_users", "refresh_tokens"} {
		_, err := db.ExecContext(ctx, "SELECT 1 FROM "+table+" LIMIT 1")
		require.NoError(t, err, table)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := database.Open(config.DBConfig{Driver: "postgres"})
	require.ErrorContains(t, err, "unsupported driver")
}
