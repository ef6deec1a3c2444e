package model

import (
	"encoding/json"
	"time"
)

// Detection represents one observed object in one tick. Detectors create
// detections fresh every tick; they are consumed and discarded by the end of
// the tick, except for the bounded history the tracker keeps per track key.
type Detection struct {
	ID         string  `json:"id"`         // assigned by the detector, or freshly by the clusterer for merged results
	Label      string  `json:"label"`      // semantic category, e.g. "person", "chair"
	Confidence float64 `json:"confidence"` // [0,1]

	// Normalized image-space geometry, all in [0,1].
	CenterX float64 `json:"center_x"`
	CenterY float64 `json:"center_y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`

	// Range estimate.
	DistanceM float64 `json:"distance_m"` // meters, non-negative
	Steps     int     `json:"steps"`      // always recomputed from DistanceM, never persisted on its own

	Time time.Time `json:"time"` // tick time

	// Derived by the tracker. Zero until the same track key has been
	// observed at least twice.
	Moving      bool    `json:"moving"`
	VelocityMPS float64 `json:"velocity_mps"`
	DriftX      float64 `json:"drift_x"` // |Δcenter_x| since the earliest surviving history entry
}

// Class is the severity class of an alert.
type Class int

const (
	ClassInfo Class = iota
	ClassWarning
	ClassUrgent
)

func (c Class) String() string {
	switch c {
	case ClassUrgent:
		return "urgent"
	case ClassWarning:
		return "warning"
	default:
		return "info"
	}
}

// ParseClass maps a stored class name back to its Class. Unknown names map
// to ClassInfo.
func ParseClass(s string) Class {
	switch s {
	case "urgent":
		return ClassUrgent
	case "warning":
		return ClassWarning
	default:
		return ClassInfo
	}
}

func (c Class) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Class) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*c = ParseClass(s)
	return nil
}

// Alert is the synthesized output of one tick. The pipeline emits at most
// one per tick.
type Alert struct {
	ID        string    `json:"id"`
	Detection Detection `json:"detection"` // representative detection, held by value
	Priority  float64   `json:"priority"`
	Class     Class     `json:"class"`
	Message   string    `json:"message"`

	// Actuation flags. Consumers decide independently whether to act.
	Announce bool `json:"announce"`
	Haptic   bool `json:"haptic"`

	Time time.Time `json:"time"`

	// Advisory only; cooldown enforcement lives in the temporal filter.
	SuppressUntil time.Time `json:"suppress_until,omitzero"`
}
