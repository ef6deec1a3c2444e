// Package track correlates per-tick detections into short-lived object
// tracks and derives movement annotations from them.
package track

import (
	"log/slog"
	"math"
	"time"

	"wayguard/pkg/geometry"
	"wayguard/pkg/logging"
	"wayguard/pkg/model"
)

// Key identifies the same physical object across ticks despite per-frame id
// churn. CenterX is quantized into tenths so small jitter maps to a stable
// key.
type Key struct {
	Label  string
	Bucket int
}

// KeyFor derives the track key for a detection.
func KeyFor(d model.Detection) Key {
	b := int(d.CenterX * 10)
	if b < 0 {
		b = 0
	}
	if b > 9 {
		b = 9
	}
	return Key{Label: d.Label, Bucket: b}
}

type entry struct {
	x, y float64
	t    time.Time
}

// Tracker owns all track history memory. It is not safe for concurrent use;
// the pipeline calls it exclusively inside the tick critical section.
type Tracker struct {
	depth     int
	threshold float64
	tracks    map[Key][]entry
	logger    *slog.Logger
}

// New creates a Tracker keeping depth entries per key and flagging objects
// as moving when the displacement between their two most recent entries
// exceeds threshold. Depth and threshold come from validated configuration.
func New(depth int, threshold float64) *Tracker {
	return &Tracker{
		depth:     depth,
		threshold: threshold,
		tracks:    make(map[Key][]entry),
		logger:    slog.With("component", "tracker"),
	}
}

// Update appends each detection to its track history and returns
// movement-annotated copies. A single-frame object is never moving.
// History never leaks to callers; all annotations are by value.
func (t *Tracker) Update(dets []model.Detection) []model.Detection {
	out := make([]model.Detection, len(dets))
	for i, d := range dets {
		key := KeyFor(d)

		hist := t.tracks[key]
		if len(hist) > t.depth {
			// Should not happen with correct stage ordering. Self-heal
			// instead of crashing.
			t.logger.Warn("track history exceeded bound, truncating",
				"label", key.Label, "bucket", key.Bucket, "len", len(hist))
			hist = hist[len(hist)-t.depth:]
		}

		hist = append(hist, entry{x: d.CenterX, y: d.CenterY, t: d.Time})
		if len(hist) > t.depth {
			hist = hist[len(hist)-t.depth:]
		}
		t.tracks[key] = hist

		d.Moving = false
		d.VelocityMPS = 0
		d.DriftX = 0
		if len(hist) >= 2 {
			prev := hist[len(hist)-2]
			cur := hist[len(hist)-1]
			movement := geometry.Displacement(prev.x, prev.y, cur.x, cur.y)
			d.Moving = movement > t.threshold
			if d.Moving {
				if dt := cur.t.Sub(prev.t).Seconds(); dt > 0 {
					d.VelocityMPS = movement / dt
				}
			}
			d.DriftX = math.Abs(cur.x - hist[0].x)

			logging.Trace(t.logger, "track update",
				"label", key.Label, "bucket", key.Bucket,
				"movement", movement, "moving", d.Moving)
		}

		out[i] = d
	}
	return out
}

// PruneBefore evicts history entries observed before cutoff. Keys left
// empty are removed. Returns the number of entries evicted.
func (t *Tracker) PruneBefore(cutoff time.Time) int {
	removed := 0
	for key, hist := range t.tracks {
		kept := hist[:0]
		for _, e := range hist {
			if e.t.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(t.tracks, key)
			continue
		}
		t.tracks[key] = kept
	}
	return removed
}

// Reset drops all track history.
func (t *Tracker) Reset() {
	t.tracks = make(map[Key][]entry)
}

// Tracks returns the number of live track keys.
func (t *Tracker) Tracks() int {
	return len(t.tracks)
}

// Entries returns the total number of stored history entries.
func (t *Tracker) Entries() int {
	n := 0
	for _, hist := range t.tracks {
		n += len(hist)
	}
	return n
}
