package filter

import (
	"time"

	"wayguard/pkg/model"
)

// SafetyOverrideSteps is the hard safety floor: detections this close are
// never suppressed by cooldown, regardless of cooldown state.
const SafetyOverrideSteps = 1

// Table maps labels to the time an alert for that label last fired. It is
// owned by the pipeline; all access happens inside the tick critical
// section, so the table itself carries no lock.
type Table struct {
	last map[string]time.Time
}

// NewTable returns an empty cooldown table.
func NewTable() *Table {
	return &Table{last: make(map[string]time.Time)}
}

// Mark records that an alert for label fired at now. Called only when an
// alert is actually emitted, never on mere detection.
func (t *Table) Mark(label string, now time.Time) {
	t.last[label] = now
}

// Last returns the last emission time for label.
func (t *Table) Last(label string) (time.Time, bool) {
	ts, ok := t.last[label]
	return ts, ok
}

// PruneBefore drops entries last marked before cutoff and returns the
// number removed.
func (t *Table) PruneBefore(cutoff time.Time) int {
	removed := 0
	for label, ts := range t.last {
		if ts.Before(cutoff) {
			delete(t.last, label)
			removed++
		}
	}
	return removed
}

// Reset drops all cooldown state.
func (t *Table) Reset() {
	t.last = make(map[string]time.Time)
}

// Len returns the number of labels currently tracked.
func (t *Table) Len() int {
	return len(t.last)
}

// Cooldown suppresses repeat alerts for a label until the cooldown period
// has passed, unless the object is on top of the user or has genuinely
// moved to a new position.
type Cooldown struct {
	table *Table
	wait  time.Duration
	drift float64
}

// NewCooldown builds the temporal filter around a pipeline-owned table.
func NewCooldown(table *Table, wait time.Duration, drift float64) *Cooldown {
	return &Cooldown{table: table, wait: wait, drift: drift}
}

// Apply returns the detections allowed to alert at now, in input order.
func (c *Cooldown) Apply(now time.Time, dets []model.Detection) []model.Detection {
	var kept []model.Detection
	for _, d := range dets {
		if c.allowed(now, d) {
			kept = append(kept, d)
		}
	}
	return kept
}

func (c *Cooldown) allowed(now time.Time, d model.Detection) bool {
	if d.Steps <= SafetyOverrideSteps {
		return true
	}
	last, ok := c.table.Last(d.Label)
	if !ok || now.Sub(last) >= c.wait {
		return true
	}
	// Cooldown never suppresses a genuinely new position of the same label.
	return d.DriftX > c.drift
}
