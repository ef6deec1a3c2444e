package store

import (
	"context"
	"time"

	"wayguard/pkg/model"
)

// AlertStore handles alert history persistence.
type AlertStore interface {
	SaveAlert(ctx context.Context, a *model.Alert) error
	// RecentAlerts returns up to limit alerts, newest first.
	RecentAlerts(ctx context.Context, limit int) ([]*model.Alert, error)
	// AlertsSince returns alerts emitted at or after since, oldest first.
	AlertsSince(ctx context.Context, since time.Time) ([]*model.Alert, error)
	// CountByLabel aggregates emitted alerts per label since the given time.
	CountByLabel(ctx context.Context, since time.Time) (map[string]int, error)
	// PruneAlertsBefore removes history older than cutoff and returns the
	// number of rows removed.
	PruneAlertsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// StateStore handles persistent application state.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
	DeleteState(ctx context.Context, key string) error
}

// Store composes all sub-interfaces for full store access.
// Consumers should depend on specific sub-interfaces when possible.
type Store interface {
	AlertStore
	StateStore

	// Ping verifies the backing database is reachable.
	Ping(ctx context.Context) error
	// Close closes the store connection.
	Close() error
}
