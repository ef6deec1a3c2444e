package filter

import (
	"testing"

	"wayguard/pkg/config"
	"wayguard/pkg/model"
)

func TestCenterOfView(t *testing.T) {
	f := NewCenterOfView(0.25)

	tests := []struct {
		name string
		x    float64
		keep bool
	}{
		{name: "DeadCenter", x: 0.5, keep: true},
		{name: "LeftEdgeOfFOV", x: 0.25, keep: true},
		{name: "RightEdgeOfFOV", x: 0.75, keep: true},
		{name: "JustOutsideLeft", x: 0.24, keep: false},
		{name: "JustOutsideRight", x: 0.76, keep: false},
		{name: "FarPeriphery", x: 0.05, keep: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := f([]model.Detection{{Label: "person", CenterX: tt.x}})
			if kept := len(out) == 1; kept != tt.keep {
				t.Errorf("x=%v kept=%v, want %v", tt.x, kept, tt.keep)
			}
		})
	}
}

func TestCenterOfViewPreservesOrder(t *testing.T) {
	f := NewCenterOfView(0.25)
	out := f([]model.Detection{
		{ID: "a", CenterX: 0.5},
		{ID: "b", CenterX: 0.9},
		{ID: "c", CenterX: 0.6},
	})
	if len(out) != 2 || out[0].ID != "a" || out[1].ID != "c" {
		t.Errorf("unexpected result %v", out)
	}
}

func TestProximityWhitelist(t *testing.T) {
	cats := config.DefaultCategories()
	f := NewProximity(&cats)

	tests := []struct {
		name string
		det  model.Detection
		keep bool
	}{
		{
			name: "VeryCloseAlwaysKept",
			det:  model.Detection{Label: "plant", Steps: 2, Confidence: 0.1},
			keep: true,
		},
		{
			name: "MovingWithinSix",
			det:  model.Detection{Label: "plant", Steps: 6, Moving: true, Confidence: 0.1},
			keep: true,
		},
		{
			name: "MovingBeyondSix",
			det:  model.Detection{Label: "plant", Steps: 7, Moving: true, Confidence: 0.1},
			keep: false,
		},
		{
			name: "CriticalWithinFour",
			det:  model.Detection{Label: "person", Steps: 4, Confidence: 0.1},
			keep: true,
		},
		{
			name: "CriticalBeyondFour",
			det:  model.Detection{Label: "person", Steps: 5, Confidence: 0.1},
			keep: false,
		},
		{
			name: "ConfidentWithinFive",
			det:  model.Detection{Label: "plant", Steps: 5, Confidence: 0.85},
			keep: true,
		},
		{
			name: "ConfidenceExactlyAtFloor",
			det:  model.Detection{Label: "plant", Steps: 5, Confidence: 0.8},
			keep: false,
		},
		{
			name: "StationaryFarUnknown",
			det:  model.Detection{Label: "plant", Steps: 3, Confidence: 0.5},
			keep: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := f([]model.Detection{tt.det})
			if kept := len(out) == 1; kept != tt.keep {
				t.Errorf("kept=%v, want %v", kept, tt.keep)
			}
		})
	}
}

func TestProximityIsWhitelist(t *testing.T) {
	cats := config.DefaultCategories()
	f := NewProximity(&cats)

	// An unclassified, stationary, low-confidence object at any distance
	// beyond two steps never earns relevance.
	for steps := 3; steps <= 12; steps++ {
		out := f([]model.Detection{{Label: "mystery", Steps: steps, Confidence: 0.4}})
		if len(out) != 0 {
			t.Fatalf("steps=%d kept, want dropped", steps)
		}
	}
}
