package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"wayguard/pkg/db"
	"wayguard/pkg/model"
)

// setupTestStore creates a test database and store for each test.
func setupTestStore(t *testing.T) (*SQLiteStore, func()) {
	t.Helper()
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "test.db")

	d, err := db.Init(dbPath)
	if err != nil {
		t.Fatalf("Failed to init DB: %v", err)
	}

	store := NewSQLiteStore(d)
	cleanup := func() { d.Close() }
	return store, cleanup
}

func seedAlert(t *testing.T, s *SQLiteStore, id, label string, emitted time.Time) {
	t.Helper()
	a := &model.Alert{
		ID:      id,
		Message: label + " ahead",
		Time:    emitted,
		Detection: model.Detection{
			ID:    id + "-det",
			Label: label,
			Steps: 3,
		},
	}
	if err := s.SaveAlert(context.Background(), a); err != nil {
		t.Fatalf("SaveAlert(%s) failed: %v", id, err)
	}
}

// =============================================================================
// AlertStore Tests
// =============================================================================

func TestAlertStore_RecentAlerts(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	tests := []struct {
		name    string
		setup   func(s *SQLiteStore)
		limit   int
		wantLen int
		wantIDs []string
	}{
		{
			name:    "empty database",
			setup:   func(s *SQLiteStore) {},
			limit:   10,
			wantLen: 0,
		},
		{
			name: "newest first",
			setup: func(s *SQLiteStore) {
				seedAlert(t, s, "a1", "person", now.Add(-30*time.Minute))
				seedAlert(t, s, "a2", "bicycle", now.Add(-10*time.Minute))
				seedAlert(t, s, "a3", "chair", now.Add(-20*time.Minute))
			},
			limit:   10,
			wantLen: 3,
			wantIDs: []string{"a2", "a3", "a1"}, // DESC by emitted_at
		},
		{
			name: "limit truncates",
			setup: func(s *SQLiteStore) {
				seedAlert(t, s, "b1", "person", now.Add(-3*time.Minute))
				seedAlert(t, s, "b2", "person", now.Add(-2*time.Minute))
				seedAlert(t, s, "b3", "person", now.Add(-1*time.Minute))
			},
			limit:   2,
			wantLen: 2,
			wantIDs: []string{"b3", "b2"},
		},
		{
			name: "non-positive limit uses default",
			setup: func(s *SQLiteStore) {
				seedAlert(t, s, "c1", "person", now)
			},
			limit:   0,
			wantLen: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, cleanup := setupTestStore(t)
			defer cleanup()
			tt.setup(store)

			got, err := store.RecentAlerts(ctx, tt.limit)
			if err != nil {
				t.Fatalf("RecentAlerts() error = %v", err)
			}
			if len(got) != tt.wantLen {
				t.Errorf("RecentAlerts() got %d alerts, want %d", len(got), tt.wantLen)
			}
			for i, wantID := range tt.wantIDs {
				if i < len(got) && got[i].ID != wantID {
					t.Errorf("RecentAlerts()[%d] = %s, want %s", i, got[i].ID, wantID)
				}
			}
		})
	}
}

func TestAlertStore_AlertsSince(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	tests := []struct {
		name    string
		setup   func(s *SQLiteStore)
		since   time.Time
		wantLen int
		wantIDs []string
	}{
		{
			name:    "empty database",
			setup:   func(s *SQLiteStore) {},
			since:   now.Add(-1 * time.Hour),
			wantLen: 0,
		},
		{
			name: "cutoff excludes older alerts",
			setup: func(s *SQLiteStore) {
				seedAlert(t, s, "s1", "person", now.Add(-2*time.Hour))
				seedAlert(t, s, "s2", "chair", now.Add(-30*time.Minute))
				seedAlert(t, s, "s3", "bicycle", now.Add(-5*time.Minute))
			},
			since:   now.Add(-1 * time.Hour),
			wantLen: 2,
			wantIDs: []string{"s2", "s3"}, // ASC order
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, cleanup := setupTestStore(t)
			defer cleanup()
			tt.setup(store)

			got, err := store.AlertsSince(ctx, tt.since)
			if err != nil {
				t.Fatalf("AlertsSince() error = %v", err)
			}
			if len(got) != tt.wantLen {
				t.Errorf("AlertsSince() got %d alerts, want %d", len(got), tt.wantLen)
			}
			for i, wantID := range tt.wantIDs {
				if i < len(got) && got[i].ID != wantID {
					t.Errorf("AlertsSince()[%d] = %s, want %s", i, got[i].ID, wantID)
				}
			}
		})
	}
}

func TestAlertStore_CountByLabel(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	store, cleanup := setupTestStore(t)
	defer cleanup()

	seedAlert(t, store, "l1", "person", now.Add(-10*time.Minute))
	seedAlert(t, store, "l2", "person", now.Add(-5*time.Minute))
	seedAlert(t, store, "l3", "chair", now.Add(-5*time.Minute))
	seedAlert(t, store, "l4", "person", now.Add(-2*time.Hour)) // outside window

	counts, err := store.CountByLabel(ctx, now.Add(-1*time.Hour))
	if err != nil {
		t.Fatalf("CountByLabel() error = %v", err)
	}
	if counts["person"] != 2 {
		t.Errorf("counts[person] = %d, want 2", counts["person"])
	}
	if counts["chair"] != 1 {
		t.Errorf("counts[chair] = %d, want 1", counts["chair"])
	}
	if len(counts) != 2 {
		t.Errorf("CountByLabel() got %d labels, want 2", len(counts))
	}
}

func TestAlertStore_PruneAlertsBefore(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	store, cleanup := setupTestStore(t)
	defer cleanup()

	seedAlert(t, store, "p1", "person", now.Add(-40*24*time.Hour))
	seedAlert(t, store, "p2", "chair", now.Add(-20*24*time.Hour))
	seedAlert(t, store, "p3", "bicycle", now.Add(-1*time.Hour))

	pruned, err := store.PruneAlertsBefore(ctx, now.Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("PruneAlertsBefore() error = %v", err)
	}
	if pruned != 1 {
		t.Errorf("PruneAlertsBefore() = %d, want 1", pruned)
	}

	remaining, err := store.RecentAlerts(ctx, 10)
	if err != nil {
		t.Fatalf("RecentAlerts() error = %v", err)
	}
	if len(remaining) != 2 {
		t.Errorf("Expected 2 surviving alerts, got %d", len(remaining))
	}
	for _, a := range remaining {
		if a.ID == "p1" {
			t.Error("Pruned alert p1 still present")
		}
	}
}
