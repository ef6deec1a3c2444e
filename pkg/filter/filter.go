// Package filter holds the pipeline's stage filters. Filters never mutate
// their input; they return the kept subset in input order.
package filter

import (
	"wayguard/pkg/geometry"
	"wayguard/pkg/model"
)

// Filter selects the detections that stay in the pipeline this tick.
type Filter func([]model.Detection) []model.Detection

// Proximity whitelist bounds. Objects must earn relevance through one of
// the whitelist arms; everything else is dropped.
const (
	AlwaysAlertSteps  = 2
	MovingMaxSteps    = 6
	CriticalMaxSteps  = 4
	ConfidentMaxSteps = 5
	ConfidenceFloor   = 0.8
)

// CriticalSet answers whether a label belongs to the critical category set.
type CriticalSet interface {
	IsCritical(label string) bool
}

// NewCenterOfView returns a filter keeping only detections within half of
// the view center. Peripheral objects are dropped before they reach any
// tracking-sensitive stage.
func NewCenterOfView(half float64) Filter {
	return func(dets []model.Detection) []model.Detection {
		var kept []model.Detection
		for _, d := range dets {
			if geometry.CenterOffset(d.CenterX) <= half {
				kept = append(kept, d)
			}
		}
		return kept
	}
}

// NewProximity returns the whitelist filter deciding which tracked
// detections are alert-worthy at all.
func NewProximity(critical CriticalSet) Filter {
	return func(dets []model.Detection) []model.Detection {
		var kept []model.Detection
		for _, d := range dets {
			switch {
			case d.Steps <= AlwaysAlertSteps:
				kept = append(kept, d)
			case d.Moving && d.Steps <= MovingMaxSteps:
				kept = append(kept, d)
			case critical.IsCritical(d.Label) && d.Steps <= CriticalMaxSteps:
				kept = append(kept, d)
			case d.Confidence > ConfidenceFloor && d.Steps <= ConfidentMaxSteps:
				kept = append(kept, d)
			}
		}
		return kept
	}
}
