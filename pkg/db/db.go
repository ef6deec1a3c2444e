package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Register driver
)

// DB wraps the sql.DB connection.
type DB struct {
	*sql.DB
}

// Init opens the database and runs migrations.
func Init(path string) (*DB, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	// Enable WAL mode for better concurrency and set busy timeout
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=30000;"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	d := &DB{db}
	// Enforce single connection to avoid SQLITE_BUSY errors during concurrent writes
	db.SetMaxOpenConns(1)

	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return d, nil
}

// PruneAlerts removes alert rows older than the specified duration.
func (d *DB) PruneAlerts(olderThan time.Duration) error {
	deadline := time.Now().Add(-olderThan).UTC()
	_, err := d.Exec("DELETE FROM alerts WHERE emitted_at < ?", deadline)
	return err
}

func (d *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			emitted_at DATETIME NOT NULL,
			label TEXT NOT NULL,
			message TEXT NOT NULL,
			class TEXT NOT NULL,
			priority REAL,
			steps INTEGER,
			distance_m REAL,
			center_x REAL,
			center_y REAL,
			confidence REAL,
			moving BOOLEAN DEFAULT 0,
			velocity_mps REAL DEFAULT 0,
			announced BOOLEAN DEFAULT 0,
			haptic BOOLEAN DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_emitted_at ON alerts(emitted_at);`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_label ON alerts(label);`,
		`CREATE TABLE IF NOT EXISTS persistent_state (
			key TEXT PRIMARY KEY,
			value TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
	}

	for _, q := range queries {
		if _, err := d.Exec(q); err != nil {
			return fmt.Errorf("exec error: %w query: %s", err, q)
		}
	}

	// Migration: add velocity_mps if missing (pre-0.2 databases)
	var colCount int
	err := d.QueryRow("SELECT count(*) FROM pragma_table_info('alerts') WHERE name='velocity_mps'").Scan(&colCount)
	if err == nil && colCount == 0 {
		if _, err := d.Exec("ALTER TABLE alerts ADD COLUMN velocity_mps REAL DEFAULT 0"); err != nil {
			return fmt.Errorf("failed to add velocity_mps column: %w", err)
		}
	}

	return nil
}
