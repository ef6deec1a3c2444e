// Package cluster merges co-located, co-distant detections into a single
// representative per group, so a cluttered scene produces one alert
// instead of several near-identical ones.
package cluster

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"wayguard/pkg/model"
)

// CriticalSet answers whether a label belongs to the critical category set.
type CriticalSet interface {
	IsCritical(label string) bool
}

// Clusterer groups detections whose step distance and horizontal position
// both fall within configured gaps of a cluster seed.
type Clusterer struct {
	stepGap  float64
	xGap     float64
	critical CriticalSet
	newID    func() string
}

// New builds a Clusterer. stepGap is in steps, xGap in normalized x.
func New(stepGap, xGap float64, critical CriticalSet) *Clusterer {
	return &Clusterer{
		stepGap:  stepGap,
		xGap:     xGap,
		critical: critical,
		newID:    func() string { return uuid.New().String() },
	}
}

// Merge groups detections greedily in input order: the first unassigned
// detection seeds a cluster and absorbs every later unassigned detection
// near the seed. Each detection joins exactly one cluster. Singletons pass
// through unchanged.
func (c *Clusterer) Merge(dets []model.Detection) []model.Detection {
	var out []model.Detection
	used := make([]bool, len(dets))
	for i, seed := range dets {
		if used[i] {
			continue
		}
		used[i] = true
		members := []model.Detection{seed}
		for j := i + 1; j < len(dets); j++ {
			if used[j] || !c.near(seed, dets[j]) {
				continue
			}
			used[j] = true
			members = append(members, dets[j])
		}
		if len(members) == 1 {
			out = append(out, seed)
			continue
		}
		out = append(out, c.represent(members))
	}
	return out
}

// near compares a candidate against the cluster seed, not against other
// members; membership never chains.
func (c *Clusterer) near(seed, d model.Detection) bool {
	return math.Abs(float64(seed.Steps-d.Steps)) <= c.stepGap &&
		math.Abs(seed.CenterX-d.CenterX) <= c.xGap
}

// represent builds the stand-in for a multi-member cluster. Geometry comes
// from the closest member; the remaining fields take the most alarming
// value across the group.
func (c *Clusterer) represent(members []model.Detection) model.Detection {
	rep := members[0]
	for _, m := range members[1:] {
		if m.Steps < rep.Steps {
			rep = m
		}
	}

	rep.ID = c.newID()
	rep.Label = c.label(members)
	rep.Confidence = 0
	rep.Moving = false
	rep.VelocityMPS = 0
	rep.DriftX = 0
	for _, m := range members {
		rep.Confidence = math.Max(rep.Confidence, m.Confidence)
		rep.DriftX = math.Max(rep.DriftX, m.DriftX)
		if m.Moving {
			rep.Moving = true
			rep.VelocityMPS = math.Max(rep.VelocityMPS, m.VelocityMPS)
		}
	}
	return rep
}

func (c *Clusterer) label(members []model.Detection) string {
	if len(members) == 2 {
		return members[0].Label + " and " + members[1].Label
	}
	crit := 0
	for _, m := range members {
		if c.critical.IsCritical(m.Label) {
			crit++
		}
	}
	if crit > 0 {
		return fmt.Sprintf("%d critical object(s) and %d other(s)", crit, len(members)-crit)
	}
	return fmt.Sprintf("%d objects", len(members))
}
