package alert

import (
	"context"
	"log/slog"

	"wayguard/pkg/model"
)

// Sink consumes emitted alerts. Implementations decide independently
// whether to act, based on the alert's flags and their own state, and are
// expected to return quickly; slow delivery belongs behind the sink's own
// queue.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, a model.Alert) error
}

// Fanout pushes each alert to every registered sink. Sink errors are
// logged, never propagated; one broken consumer must not silence the rest.
type Fanout struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewFanout creates a Fanout over the given sinks.
func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{
		sinks:  sinks,
		logger: slog.With("component", "alert"),
	}
}

// Add registers another sink. Not safe to call once the pipeline runs.
func (f *Fanout) Add(s Sink) {
	f.sinks = append(f.sinks, s)
}

// Names returns the registered sink names in delivery order.
func (f *Fanout) Names() []string {
	names := make([]string, len(f.sinks))
	for i, s := range f.sinks {
		names[i] = s.Name()
	}
	return names
}

// Deliver sends the alert to all sinks in registration order.
func (f *Fanout) Deliver(ctx context.Context, a model.Alert) {
	for _, s := range f.sinks {
		if err := s.Deliver(ctx, a); err != nil {
			f.logger.Warn("sink delivery failed", "sink", s.Name(), "error", err)
		}
	}
}

// LogSink writes every alert to the structured log. Always attached; the
// log is the canonical record of what the pipeline decided.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates the logging sink.
func NewLogSink() *LogSink {
	return &LogSink{logger: slog.With("component", "alert")}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(_ context.Context, a model.Alert) error {
	s.logger.Info("alert",
		"class", a.Class,
		"message", a.Message,
		"label", a.Detection.Label,
		"steps", a.Detection.Steps,
		"priority", a.Priority,
		"announce", a.Announce,
		"haptic", a.Haptic)
	return nil
}
