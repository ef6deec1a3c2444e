package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"wayguard/pkg/model"
)

const historyQueueDepth = 64

// HistorySink persists every emitted alert to the alert history. Writes go
// through a bounded queue and a background writer so a slow disk never
// stalls the tick loop; when the queue is full the write is dropped and
// counted.
type HistorySink struct {
	alerts AlertStore
	logger *slog.Logger

	queue   chan model.Alert
	done    chan struct{}
	wg      sync.WaitGroup
	stopped sync.Once

	mu      sync.Mutex
	dropped uint64
}

// NewHistorySink starts the background writer.
func NewHistorySink(alerts AlertStore) *HistorySink {
	s := &HistorySink{
		alerts: alerts,
		logger: slog.With("component", "history"),
		queue:  make(chan model.Alert, historyQueueDepth),
		done:   make(chan struct{}),
	}
	s.wg.Add(1)
	go s.writer()
	return s
}

func (s *HistorySink) Name() string { return "history" }

// Deliver enqueues the alert for persistence. Never blocks.
func (s *HistorySink) Deliver(_ context.Context, a model.Alert) error {
	select {
	case s.queue <- a:
		return nil
	default:
	}

	s.mu.Lock()
	s.dropped++
	n := s.dropped
	s.mu.Unlock()
	s.logger.Warn("history queue full, alert not persisted", "alert_id", a.ID, "dropped_total", n)
	return nil
}

// Dropped returns the number of alerts lost to a full queue.
func (s *HistorySink) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close drains the queue and stops the writer. Alerts delivered after
// Close are discarded.
func (s *HistorySink) Close() error {
	s.stopped.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

func (s *HistorySink) writer() {
	defer s.wg.Done()
	for {
		select {
		case a := <-s.queue:
			s.write(a)
		case <-s.done:
			// Drain whatever is still queued before exiting.
			for {
				select {
				case a := <-s.queue:
					s.write(a)
				default:
					return
				}
			}
		}
	}
}

func (s *HistorySink) write(a model.Alert) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.alerts.SaveAlert(ctx, &a); err != nil {
		s.logger.Warn("failed to persist alert", "alert_id", a.ID, "error", err)
	}
}
