// Package simwalk simulates a walk through a cluttered space. It feeds
// the pipeline plausible obstacle streams without a camera: objects appear
// ahead, drift sideways, and close in as the user walks toward them.
package simwalk

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"wayguard/pkg/config"
	"wayguard/pkg/detect"
	"wayguard/pkg/model"
)

// labels the walk can produce, weighted toward furniture with the
// occasional self-moving hazard.
var labels = []string{
	"chair", "table", "door", "plant", "trash can", "pole",
	"person", "dog", "bicycle",
}

// movers close in on their own, on top of the user's walking speed.
var movers = map[string]bool{"person": true, "dog": true, "bicycle": true}

const (
	defaultWalkSpeed = 1.2 // m/s
	defaultMaxScene  = 4
	spawnChance      = 0.45
	passedDistanceM  = 0.3
)

type object struct {
	id       int
	label    string
	dist     float64 // meters ahead
	x, y     float64 // normalized image position
	driftX   float64 // lateral motion, normalized units per second
	approach float64 // own closing speed, m/s
	conf     float64
}

// Detector is a self-contained detection source. Deterministic for a fixed
// seed and tick schedule.
type Detector struct {
	mu      sync.Mutex
	rng     *rand.Rand
	speed   float64
	maxObjs int
	minConf float64
	serial  int
	last    time.Time
	scene   []object
}

// New creates a simulated detector. A zero seed seeds from the clock.
func New(cfg config.SimWalkConfig, minConfidence float64) *Detector {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	speed := cfg.WalkSpeed
	if speed <= 0 {
		speed = defaultWalkSpeed
	}
	maxObjs := cfg.MaxObjects
	if maxObjs <= 0 {
		maxObjs = defaultMaxScene
	}
	return &Detector{
		rng:     rand.New(rand.NewSource(seed)),
		speed:   speed,
		maxObjs: maxObjs,
		minConf: minConfidence,
	}
}

// Detect advances the simulated scene to tick.Time and reports it.
func (d *Detector) Detect(_ context.Context, tick detect.Tick) ([]model.Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	dt := 0.0
	if !d.last.IsZero() {
		dt = tick.Time.Sub(d.last).Seconds()
	}
	d.last = tick.Time
	d.advance(dt)

	if len(d.scene) < d.maxObjs && d.rng.Float64() < spawnChance {
		d.spawn()
	}

	dets := make([]model.Detection, 0, len(d.scene))
	for _, o := range d.scene {
		dets = append(dets, d.observe(o, tick.Time))
	}
	return detect.FilterConfidence(dets, d.minConf), nil
}

func (d *Detector) Close() error { return nil }

// advance moves every object closer and sideways, dropping the ones the
// user has walked past or that wandered out of view.
func (d *Detector) advance(dt float64) {
	if dt <= 0 {
		return
	}
	kept := d.scene[:0]
	for _, o := range d.scene {
		o.dist -= (d.speed + o.approach) * dt
		o.x += o.driftX * dt
		if o.dist > passedDistanceM && o.x > -0.2 && o.x < 1.2 {
			kept = append(kept, o)
		}
	}
	d.scene = kept
}

func (d *Detector) spawn() {
	label := labels[d.rng.Intn(len(labels))]
	d.serial++
	o := object{
		id:     d.serial,
		label:  label,
		dist:   3.0 + d.rng.Float64()*5.0,
		x:      0.15 + d.rng.Float64()*0.7,
		y:      0.35 + d.rng.Float64()*0.3,
		driftX: (d.rng.Float64() - 0.5) * 0.04,
		conf:   0.45 + d.rng.Float64()*0.5,
	}
	if movers[label] {
		o.approach = 0.3 + d.rng.Float64()*1.5
		o.driftX = (d.rng.Float64() - 0.5) * 0.12
	}
	d.scene = append(d.scene, o)
}

// observe renders one object as a detection with per-frame jitter, the way
// a real vision backend wobbles between frames. IDs churn per frame;
// cross-tick identity is the tracker's problem, not the source's.
func (d *Detector) observe(o object, now time.Time) model.Detection {
	jitter := func(scale float64) float64 { return (d.rng.Float64() - 0.5) * scale }
	size := clamp(0.5/math.Max(o.dist, 0.5), 0.05, 0.9)
	return model.Detection{
		ID:         fmt.Sprintf("sim-%d-%d", o.id, now.UnixMilli()),
		Label:      o.label,
		Confidence: clamp(o.conf+jitter(0.08), 0.05, 0.99),
		CenterX:    clamp(o.x+jitter(0.02), 0, 1),
		CenterY:    clamp(o.y+jitter(0.02), 0, 1),
		Width:      size,
		Height:     size * 1.6,
		DistanceM:  math.Max(o.dist+jitter(0.2), 0),
		Time:       now,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
