package geometry

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Displacement returns the planar distance between two normalized
// image-space positions.
func Displacement(ax, ay, bx, by float64) float64 {
	return planar.Distance(orb.Point{ax, ay}, orb.Point{bx, by})
}

// CenterOffset returns the absolute horizontal offset of a normalized x
// position from the center of view.
func CenterOffset(x float64) float64 {
	return math.Abs(x - 0.5)
}
