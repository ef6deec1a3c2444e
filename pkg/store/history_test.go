package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"wayguard/pkg/model"
)

// memAlertStore is an in-memory AlertStore for sink tests.
type memAlertStore struct {
	mu     sync.Mutex
	alerts []model.Alert
	err    error
}

func (m *memAlertStore) SaveAlert(_ context.Context, a *model.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.alerts = append(m.alerts, *a)
	return nil
}

func (m *memAlertStore) RecentAlerts(context.Context, int) ([]*model.Alert, error) { return nil, nil }
func (m *memAlertStore) AlertsSince(context.Context, time.Time) ([]*model.Alert, error) {
	return nil, nil
}
func (m *memAlertStore) CountByLabel(context.Context, time.Time) (map[string]int, error) {
	return nil, nil
}
func (m *memAlertStore) PruneAlertsBefore(context.Context, time.Time) (int64, error) { return 0, nil }

func (m *memAlertStore) saved() []model.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Alert, len(m.alerts))
	copy(out, m.alerts)
	return out
}

func TestHistorySinkPersistsAlerts(t *testing.T) {
	mem := &memAlertStore{}
	sink := NewHistorySink(mem)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		a := model.Alert{
			ID:        fmt.Sprintf("alert-%d", i),
			Message:   "person ahead",
			Time:      time.Now(),
			Detection: model.Detection{Label: "person"},
		}
		if err := sink.Deliver(ctx, a); err != nil {
			t.Fatalf("Deliver failed: %v", err)
		}
	}

	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	saved := mem.saved()
	if len(saved) != 5 {
		t.Fatalf("Expected 5 persisted alerts, got %d", len(saved))
	}
	if saved[0].ID != "alert-0" || saved[4].ID != "alert-4" {
		t.Errorf("Persisted order wrong: first=%s last=%s", saved[0].ID, saved[4].ID)
	}
	if sink.Dropped() != 0 {
		t.Errorf("Expected no drops, got %d", sink.Dropped())
	}
}

func TestHistorySinkName(t *testing.T) {
	sink := NewHistorySink(&memAlertStore{})
	defer sink.Close()
	if sink.Name() != "history" {
		t.Errorf("Name() = %q, want history", sink.Name())
	}
}

func TestHistorySinkNeverBlocks(t *testing.T) {
	// A store that refuses to finish would normally back up the queue;
	// Deliver must still return immediately and count drops.
	mem := &memAlertStore{err: fmt.Errorf("disk on fire")}
	sink := NewHistorySink(mem)
	defer sink.Close()

	ctx := context.Background()
	for i := 0; i < historyQueueDepth*3; i++ {
		done := make(chan struct{})
		go func() {
			_ = sink.Deliver(ctx, model.Alert{ID: fmt.Sprintf("a%d", i)})
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Deliver blocked")
		}
	}
}

func TestHistorySinkCountsDrops(t *testing.T) {
	// Block the writer by making SaveAlert slow; once the queue is full
	// further Delivers must drop.
	slow := &slowAlertStore{release: make(chan struct{})}
	sink := NewHistorySink(slow)

	ctx := context.Background()
	// One alert occupies the writer, historyQueueDepth fill the queue,
	// everything beyond that must be dropped.
	total := historyQueueDepth + 10
	for i := 0; i < total; i++ {
		_ = sink.Deliver(ctx, model.Alert{ID: fmt.Sprintf("d%d", i)})
	}

	// The writer has consumed at most one alert, so at least 9 exceed
	// queue capacity.
	if got := sink.Dropped(); got < 9 {
		t.Errorf("Dropped() = %d, want >= 9", got)
	}

	close(slow.release)
	_ = sink.Close()
}

type slowAlertStore struct {
	memAlertStore
	release chan struct{}
	once    sync.Once
}

func (s *slowAlertStore) SaveAlert(ctx context.Context, a *model.Alert) error {
	s.once.Do(func() { <-s.release })
	return s.memAlertStore.SaveAlert(ctx, a)
}
