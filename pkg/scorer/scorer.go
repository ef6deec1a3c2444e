// Package scorer assigns each surviving detection a priority so the
// pipeline can pick the single most pressing one per tick.
package scorer

import (
	"math"

	"wayguard/pkg/config"
	"wayguard/pkg/geometry"
	"wayguard/pkg/model"
)

// Additive score weights. The scale is internal; scores only rank
// detections against each other within a single tick.
const (
	immediateSteps = 1
	immediateBonus = 50.0
	nearSteps      = 2
	nearBonus      = 30.0
	midSteps       = 4
	midBonus       = 15.0
	farBase        = 10.0

	centerWeight     = 10.0
	criticalBonus    = 20.0
	warningBonus     = 10.0
	infoBonus        = 5.0
	movingBonus      = 15.0
	fastBonus        = 10.0
	fastVelocityMPS  = 1.0
	confidenceWeight = 8.0
)

// Scorer scores detections against the configured category sets.
type Scorer struct {
	cats *config.CategoriesConfig
}

// New creates a Scorer.
func New(cats *config.CategoriesConfig) *Scorer {
	return &Scorer{cats: cats}
}

// Score computes the priority of a single detection. Pure function, no
// state; proximity dominates, with centrality, category, movement and
// confidence layered on top.
func (s *Scorer) Score(d model.Detection) float64 {
	score := stepScore(d.Steps)
	score += (1 - geometry.CenterOffset(d.CenterX)) * centerWeight
	score += s.categoryBonus(d.Label)
	if d.Moving {
		score += movingBonus
		if d.VelocityMPS > fastVelocityMPS {
			score += fastBonus
		}
	}
	score += d.Confidence * confidenceWeight
	return score
}

func stepScore(steps int) float64 {
	switch {
	case steps <= immediateSteps:
		return immediateBonus
	case steps <= nearSteps:
		return nearBonus
	case steps <= midSteps:
		return midBonus
	default:
		return math.Max(0, farBase-float64(steps))
	}
}

func (s *Scorer) categoryBonus(label string) float64 {
	switch s.cats.SeverityOf(label) {
	case config.SeverityCritical:
		return criticalBonus
	case config.SeverityWarning:
		return warningBonus
	case config.SeverityInfo:
		return infoBonus
	default:
		return 0
	}
}

// Best returns the top-priority detection and its score. Ties go to the
// earlier detection in input order. ok is false for empty input.
func (s *Scorer) Best(dets []model.Detection) (best model.Detection, score float64, ok bool) {
	for i, d := range dets {
		sc := s.Score(d)
		if i == 0 || sc > score {
			best, score, ok = d, sc, true
		}
	}
	return best, score, ok
}
