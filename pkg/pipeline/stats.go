package pipeline

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

const statsWindow = 120

// Stats keeps lifetime counters and a sliding window of tick processing
// durations for the status endpoint.
type Stats struct {
	mu      sync.Mutex
	window  []float64 // milliseconds, ring
	next    int
	filled  bool
	ticks   uint64
	dropped uint64
	alerts  uint64
}

// Snapshot is a point-in-time summary of pipeline activity.
type Snapshot struct {
	Ticks      uint64  `json:"ticks"`
	Dropped    uint64  `json:"dropped"`
	Alerts     uint64  `json:"alerts"`
	TickMeanMS float64 `json:"tick_mean_ms"`
	TickP95MS  float64 `json:"tick_p95_ms"`
}

// NewStats creates an empty window.
func NewStats() *Stats {
	return &Stats{window: make([]float64, statsWindow)}
}

// Observe records one completed tick's processing duration.
func (s *Stats) Observe(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks++
	s.window[s.next] = float64(d.Nanoseconds()) / 1e6
	s.next++
	if s.next == len(s.window) {
		s.next = 0
		s.filled = true
	}
}

// Drop records a tick skipped because the previous one was still in
// flight.
func (s *Stats) Drop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropped++
}

// Alerted records an emitted alert.
func (s *Stats) Alerted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts++
}

// Snapshot summarizes the counters and the current timing window.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{Ticks: s.ticks, Dropped: s.dropped, Alerts: s.alerts}
	n := s.next
	if s.filled {
		n = len(s.window)
	}
	if n == 0 {
		return snap
	}

	xs := append([]float64(nil), s.window[:n]...)
	sort.Float64s(xs)
	snap.TickMeanMS = stat.Mean(xs, nil)
	snap.TickP95MS = stat.Quantile(0.95, stat.Empirical, xs, nil)
	return snap
}
