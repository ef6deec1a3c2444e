// Package detect defines the detection source consumed by the pipeline.
// Implementations live in subpackages; the pipeline never knows which one
// it is talking to.
package detect

import (
	"context"
	"errors"
	"time"

	"wayguard/pkg/model"
)

// ErrUnavailable is returned when a detection backend is temporarily
// unreachable. The pipeline treats it like an empty tick; an intermittent
// backend is expected steady-state behavior, not a failure.
var ErrUnavailable = errors.New("detector unavailable")

// Tick identifies one pipeline cycle.
type Tick struct {
	Seq  uint64
	Time time.Time
}

// Detector produces the raw observations for one tick.
type Detector interface {
	// Detect returns the objects visible this tick. An empty result is
	// the normal "nothing seen" outcome, not an error. Implementations
	// must respect ctx; the caller bounds how long a tick may block.
	Detect(ctx context.Context, tick Tick) ([]model.Detection, error)
	// Close releases backend resources.
	Close() error
}

// FilterConfidence drops observations below min. Sources apply this before
// handing detections to the pipeline; low-confidence noise never enters
// tracking state.
func FilterConfidence(dets []model.Detection, min float64) []model.Detection {
	if min <= 0 {
		return dets
	}
	kept := dets[:0]
	for _, d := range dets {
		if d.Confidence >= min {
			kept = append(kept, d)
		}
	}
	return kept
}
