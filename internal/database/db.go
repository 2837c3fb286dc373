package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/iliyamo/iot-auth-service/internal/config"
)

// Open connects to the configured store and verifies the connection.
// MySQL is the production engine; SQLite serves single-node installs and tests.
func Open(cfg config.DBConfig) (*sql.DB, error) {
	driver, dsn, err := dataSource(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	switch driver {
	case "sqlite3":
		// single writer; the one connection also keeps :memory: databases alive
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	default:
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}

func dataSource(cfg config.DBConfig) (string, string, error) {
	switch cfg.Driver {
	case "", "mysql":
		auth := cfg.User
		if cfg.Pass != "" {
			auth = fmt.Sprintf("%s:%s", cfg.User, cfg.Pass)
		}
		// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
		// clientFoundRows=true -> RowsAffected counts matched rows, not changed rows
		dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC&clientFoundRows=true",
			auth, cfg.Host, cfg.Port, cfg.Name)
		return "mysql", dsn, nil
	case "sqlite3":
		if cfg.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
				return "", "", fmt.Errorf("create database directory: %w", err)
			}
		}
		return "sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on", cfg.Path), nil
	}
	return "", "", fmt.Errorf("unsupported driver %q", cfg.Driver)
}
