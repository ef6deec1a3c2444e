package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"wayguard/pkg/db"
	"wayguard/pkg/model"
)

// SQLiteStore implements Store.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(db *db.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping verifies the connection. Used by the startup store probe.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- Alerts ---

const alertColumns = `id, emitted_at, label, message, class, priority, steps,
	distance_m, center_x, center_y, confidence, moving, velocity_mps,
	announced, haptic`

func (s *SQLiteStore) SaveAlert(ctx context.Context, a *model.Alert) error {
	query := `INSERT OR REPLACE INTO alerts (` + alertColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	emitted := a.Time
	if emitted.IsZero() {
		emitted = time.Now()
	}

	d := a.Detection
	_, err := s.db.ExecContext(ctx, query,
		a.ID, emitted.UTC(), d.Label, a.Message, a.Class.String(), a.Priority, d.Steps,
		d.DistanceM, d.CenterX, d.CenterY, d.Confidence, d.Moving, d.VelocityMPS,
		a.Announce, a.Haptic,
	)
	if err != nil {
		return fmt.Errorf("save alert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecentAlerts(ctx context.Context, limit int) ([]*model.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + alertColumns + ` FROM alerts ORDER BY emitted_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAlerts(rows)
}

func (s *SQLiteStore) AlertsSince(ctx context.Context, since time.Time) ([]*model.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE emitted_at >= ? ORDER BY emitted_at ASC`

	rows, err := s.db.QueryContext(ctx, query, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAlerts(rows)
}

func (s *SQLiteStore) CountByLabel(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT label, count(*) FROM alerts WHERE emitted_at >= ? GROUP BY label`,
		since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, err
		}
		counts[label] = n
	}
	return counts, rows.Err()
}

func (s *SQLiteStore) PruneAlertsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM alerts WHERE emitted_at < ?", cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanAlerts(rows *sql.Rows) ([]*model.Alert, error) {
	var results []*model.Alert
	for rows.Next() {
		var a model.Alert
		var class string
		var emitted time.Time
		err := rows.Scan(
			&a.ID, &emitted, &a.Detection.Label, &a.Message, &class, &a.Priority,
			&a.Detection.Steps, &a.Detection.DistanceM,
			&a.Detection.CenterX, &a.Detection.CenterY, &a.Detection.Confidence,
			&a.Detection.Moving, &a.Detection.VelocityMPS,
			&a.Announce, &a.Haptic,
		)
		if err != nil {
			return nil, err
		}
		a.Time = emitted
		a.Detection.Time = emitted
		a.Class = model.ParseClass(class)
		results = append(results, &a)
	}
	return results, rows.Err()
}

// --- State ---

func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, bool) {
	var val string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM persistent_state WHERE key = ?", key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false
	}
	return val, true
}

func (s *SQLiteStore) SetState(ctx context.Context, key, val string) error {
	query := `INSERT OR REPLACE INTO persistent_state (key, value, created_at) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, key, val, time.Now())
	return err
}

func (s *SQLiteStore) DeleteState(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM persistent_state WHERE key = ?", key)
	return err
}
