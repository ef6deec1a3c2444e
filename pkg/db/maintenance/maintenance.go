package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"wayguard/pkg/config"
	"wayguard/pkg/db"
	"wayguard/pkg/store"
)

const schemaVersion = "2"

// Run executes the startup maintenance tasks: schema state bookkeeping and
// alert history pruning. It blocks until completion.
func Run(ctx context.Context, s store.Store, d *db.DB, retention time.Duration) error {
	slog.Info("Starting database maintenance...")

	if err := recordSchemaVersion(ctx, s); err != nil {
		slog.Error("Schema state update failed", "error", err)
	}

	if err := pruneHistory(d, retention); err != nil {
		slog.Error("Alert history pruning failed", "error", err)
	} else {
		slog.Info("Alert history pruning completed", "retention", retention.String())
	}

	return nil
}

// recordSchemaVersion stamps the state table so future migrations can tell
// what they are upgrading from.
func recordSchemaVersion(ctx context.Context, s store.Store) error {
	prev, found := s.GetState(ctx, config.KeySchemaVersion)
	if found && prev == schemaVersion {
		return nil
	}
	if found {
		slog.Info("Schema version advanced", "from", prev, "to", schemaVersion)
	}
	return s.SetState(ctx, config.KeySchemaVersion, schemaVersion)
}

func pruneHistory(d *db.DB, retention time.Duration) error {
	if retention <= 0 {
		return fmt.Errorf("retention must be positive, got %v", retention)
	}
	return d.PruneAlerts(retention)
}
