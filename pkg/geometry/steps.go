// Package geometry holds the distance and image-space helpers shared by the
// alert pipeline stages. Everything here is a pure function.
package geometry

import (
	"fmt"
	"math"
)

// Recommended step length bounds in centimeters. Values outside this range
// are accepted but flagged during configuration validation.
const (
	MinRecommendedStepCM = 40.0
	MaxRecommendedStepCM = 100.0
)

// ValidateStepLength rejects step lengths that cannot produce a meaningful
// step count. Called once when configuration is validated, never per tick.
func ValidateStepLength(stepLengthCM float64) error {
	if stepLengthCM <= 0 {
		return fmt.Errorf("step length must be positive, got %.1fcm", stepLengthCM)
	}
	return nil
}

// StepsFor converts a physical distance in meters to a discrete step count
// for the given step length. The step length must already be validated as
// positive.
func StepsFor(distanceM, stepLengthCM float64) int {
	if distanceM <= 0 {
		return 0
	}
	return int(math.Ceil(distanceM / (stepLengthCM / 100.0)))
}
