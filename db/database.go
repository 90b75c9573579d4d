// Package db owns the process-wide database handle. The connection is
// established lazily on first use and reused for the process lifetime; there
// is no teardown.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"beatvault/config"
	"beatvault/logger"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

var (
	once    sync.Once
	conn    *sql.DB
	connErr error
)

// Connect returns the shared database handle, opening it on first use.
// Concurrent first calls race safely behind the sync.Once guard. The
// configuration check runs before the guard so a missing or placeholder DSN
// fails fast on every call without poisoning initialization.
func Connect(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	if err := cfg.ValidateDSN(); err != nil {
		return nil, err
	}
	once.Do(func() {
		conn, connErr = open(ctx, cfg)
	})
	return conn, connErr
}

func open(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	d, err := sql.Open("mysql", normalizeDSN(cfg.DatabaseDSN))
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	d.SetMaxOpenConns(10)
	d.SetMaxIdleConns(5)
	d.SetConnMaxLifetime(30 * time.Minute)

	if err := d.PingContext(ctx); err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := initSchema(ctx, d); err != nil {
		d.Close()
		return nil, err
	}

	logger.Info("connected to database")
	return d, nil
}

// normalizeDSN guarantees parseTime=true so TIMESTAMP columns scan into
// time.Time.
func normalizeDSN(dsn string) string {
	if strings.Contains(dsn, "parseTime=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&parseTime=true"
	}
	return dsn + "?parseTime=true"
}

// initSchema creates the tracks table if it does not exist. The seq column
// records insertion order and only serves as the listing tie-break.
func initSchema(ctx context.Context, d *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS tracks (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		seq BIGINT NOT NULL AUTO_INCREMENT UNIQUE,
		title VARCHAR(255) NOT NULL,
		producer_name VARCHAR(255) NOT NULL,
		bpm DOUBLE NOT NULL,
		musical_key VARCHAR(64) NOT NULL,
		price DOUBLE NULL,
		mood_tags TEXT NOT NULL,
		audio_url VARCHAR(767) NOT NULL,
		created_at TIMESTAMP(6) NOT NULL,
		updated_at TIMESTAMP(6) NOT NULL,
		INDEX idx_tracks_created_at (created_at)
	);
	`
	if _, err := d.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create tracks table: %w", err)
	}
	return nil
}
