package track

import (
	"math"
	"testing"
	"time"

	"wayguard/pkg/model"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func det(label string, x, y float64, at time.Time) model.Detection {
	return model.Detection{
		ID:      label + "-frame",
		Label:   label,
		CenterX: x,
		CenterY: y,
		Time:    at,
	}
}

func TestKeyFor(t *testing.T) {
	tests := []struct {
		name   string
		x      float64
		bucket int
	}{
		{name: "Center", x: 0.5, bucket: 5},
		{name: "JitterSameBucket", x: 0.52, bucket: 5},
		{name: "LeftEdge", x: 0.0, bucket: 0},
		{name: "RightEdgeClamped", x: 1.0, bucket: 9},
		{name: "BelowRangeClamped", x: -0.2, bucket: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := KeyFor(det("person", tt.x, 0.5, t0))
			if k.Bucket != tt.bucket {
				t.Errorf("bucket = %d, want %d", k.Bucket, tt.bucket)
			}
			if k.Label != "person" {
				t.Errorf("label = %q, want person", k.Label)
			}
		})
	}
}

func TestSingleFrameNeverMoving(t *testing.T) {
	tr := New(5, 0.05)

	out := tr.Update([]model.Detection{det("person", 0.5, 0.5, t0)})
	if len(out) != 1 {
		t.Fatalf("got %d detections, want 1", len(out))
	}
	if out[0].Moving {
		t.Error("single-frame object marked moving")
	}
	if out[0].VelocityMPS != 0 {
		t.Errorf("single-frame velocity = %v, want 0", out[0].VelocityMPS)
	}
}

func TestMovementDetection(t *testing.T) {
	tr := New(5, 0.05)

	tr.Update([]model.Detection{det("person", 0.50, 0.500, t0)})
	out := tr.Update([]model.Detection{det("person", 0.52, 0.515, t0.Add(time.Second))})

	// Displacement = sqrt(0.02^2 + 0.015^2) = 0.025, below the threshold.
	if out[0].Moving {
		t.Error("jitter below the threshold counted as moving")
	}

	out = tr.Update([]model.Detection{det("person", 0.52, 0.415, t0.Add(2 * time.Second))})
	// Same x bucket, displacement 0.1 over 1s.
	if !out[0].Moving {
		t.Fatal("object above movement threshold not marked moving")
	}
	if math.Abs(out[0].VelocityMPS-0.1) > 1e-9 {
		t.Errorf("velocity = %v, want 0.1", out[0].VelocityMPS)
	}
}

func TestVelocityZeroWhenTimestampsCollide(t *testing.T) {
	tr := New(5, 0.05)

	tr.Update([]model.Detection{det("person", 0.2, 0.5, t0)})
	out := tr.Update([]model.Detection{det("person", 0.28, 0.5, t0)})

	if !out[0].Moving {
		t.Fatal("expected moving")
	}
	if out[0].VelocityMPS != 0 {
		t.Errorf("velocity with zero dt = %v, want 0", out[0].VelocityMPS)
	}
}

func TestHistoryBounded(t *testing.T) {
	tr := New(3, 0.05)

	for i := 0; i < 10; i++ {
		tr.Update([]model.Detection{det("person", 0.5, 0.5, t0.Add(time.Duration(i)*time.Second))})
	}

	if got := tr.Entries(); got != 3 {
		t.Errorf("entries = %d, want 3 (oldest evicted)", got)
	}
	if got := tr.Tracks(); got != 1 {
		t.Errorf("tracks = %d, want 1", got)
	}
}

func TestDriftFromEarliestSurvivingEntry(t *testing.T) {
	tr := New(3, 0.5) // high threshold so nothing counts as moving

	xs := []float64{0.50, 0.52, 0.54, 0.56}
	var out []model.Detection
	for i, x := range xs {
		out = tr.Update([]model.Detection{det("person", x, 0.5, t0.Add(time.Duration(i)*time.Second))})
	}

	// Depth 3 means the earliest surviving entry is x=0.52.
	if math.Abs(out[0].DriftX-0.04) > 1e-9 {
		t.Errorf("drift = %v, want 0.04", out[0].DriftX)
	}
}

func TestSeparateLabelsSeparateTracks(t *testing.T) {
	tr := New(5, 0.05)

	tr.Update([]model.Detection{
		det("person", 0.5, 0.5, t0),
		det("chair", 0.5, 0.5, t0),
	})
	out := tr.Update([]model.Detection{
		det("person", 0.7, 0.5, t0.Add(time.Second)),
		det("chair", 0.5, 0.5, t0.Add(time.Second)),
	})

	if tr.Tracks() < 2 {
		t.Fatalf("tracks = %d, want at least 2", tr.Tracks())
	}
	// person jumped buckets (0.5 -> 0.7), so it starts a fresh track and
	// must not inherit chair's history.
	if out[1].Moving {
		t.Error("stationary chair marked moving")
	}
}

func TestPruneBefore(t *testing.T) {
	tr := New(5, 0.05)

	tr.Update([]model.Detection{det("person", 0.5, 0.5, t0)})
	tr.Update([]model.Detection{det("person", 0.5, 0.5, t0.Add(time.Second))})
	tr.Update([]model.Detection{det("chair", 0.3, 0.5, t0)})

	removed := tr.PruneBefore(t0.Add(500 * time.Millisecond))
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if tr.Tracks() != 1 {
		t.Errorf("tracks = %d, want 1 (chair track emptied)", tr.Tracks())
	}
}

func TestReset(t *testing.T) {
	tr := New(5, 0.05)
	tr.Update([]model.Detection{det("person", 0.5, 0.5, t0)})

	tr.Reset()

	if tr.Tracks() != 0 || tr.Entries() != 0 {
		t.Error("reset left track state behind")
	}
	out := tr.Update([]model.Detection{det("person", 0.9, 0.5, t0.Add(time.Second))})
	if out[0].Moving {
		t.Error("post-reset first frame marked moving")
	}
}

func TestUpdateReturnsCopies(t *testing.T) {
	tr := New(5, 0.05)
	in := []model.Detection{det("person", 0.5, 0.5, t0)}

	out := tr.Update(in)
	out[0].CenterX = 0.99
	out[0].Label = "mutated"

	// The stored history must be unaffected by caller mutation.
	next := tr.Update([]model.Detection{det("person", 0.5, 0.5, t0.Add(time.Second))})
	if next[0].Moving {
		t.Error("caller mutation leaked into stored history")
	}
	if next[0].DriftX != 0 {
		t.Errorf("drift = %v, want 0", next[0].DriftX)
	}
}
