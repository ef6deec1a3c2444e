// Package pipeline wires the obstacle alert stages into a single tick loop
// and owns every piece of cross-tick state. Stage order is a correctness
// invariant: center filter, tracker, proximity filter, clusterer, cooldown
// filter, scorer, synthesizer, in that order, at most one alert per tick.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"wayguard/pkg/alert"
	"wayguard/pkg/cluster"
	"wayguard/pkg/config"
	"wayguard/pkg/detect"
	"wayguard/pkg/filter"
	"wayguard/pkg/geometry"
	"wayguard/pkg/model"
	"wayguard/pkg/scorer"
	"wayguard/pkg/track"
)

// ErrRunning is returned by Start when the pipeline is already running.
var ErrRunning = errors.New("pipeline already running")

// Pipeline owns the stage chain and all cross-tick state. TrackHistory and
// the cooldown table are mutated only inside the tick critical section;
// the single-flight guard makes that section exclusive without locks.
type Pipeline struct {
	cfg      *config.PipelineConfig
	detector detect.Detector
	sinks    *alert.Fanout

	center    filter.Filter
	proximity filter.Filter
	tracker   *track.Tracker
	clusterer *cluster.Clusterer
	cooldowns *filter.Table
	temporal  *filter.Cooldown
	scorer    *scorer.Scorer
	synth     *alert.Synthesizer

	logger *slog.Logger
	now    func() time.Time
	stats  *Stats

	mu     sync.Mutex // guards lifecycle transitions
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup

	ticking int32 // single-flight tick guard
	seq     uint64
}

// New validates the configuration and assembles the stage chain.
// Construction fails on invalid configuration; nothing is clamped
// silently. haptics reports whether a haptic actuator is attached.
func New(pcfg *config.PipelineConfig, cats *config.CategoriesConfig, det detect.Detector, sinks *alert.Fanout, haptics bool) (*Pipeline, error) {
	if err := errors.Join(pcfg.Validate(), cats.Validate()); err != nil {
		return nil, err
	}

	cooldowns := filter.NewTable()
	return &Pipeline{
		cfg:       pcfg,
		detector:  det,
		sinks:     sinks,
		center:    filter.NewCenterOfView(pcfg.CenterFOV),
		proximity: filter.NewProximity(cats),
		tracker:   track.New(pcfg.TrackDepth, pcfg.MovementThreshold),
		clusterer: cluster.New(pcfg.ClusterStepGap, pcfg.ClusterXGap, cats),
		cooldowns: cooldowns,
		temporal:  filter.NewCooldown(cooldowns, time.Duration(pcfg.Cooldown), pcfg.PositionChange),
		scorer:    scorer.New(cats),
		synth:     alert.New(cats, time.Duration(pcfg.Cooldown), haptics),
		logger:    slog.With("component", "pipeline"),
		now:       time.Now,
		stats:     NewStats(),
	}, nil
}

// Start launches the periodic tick loop. The loop stops when ctx is
// cancelled or Stop is called.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return ErrRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(loopCtx)

	p.logger.Info("pipeline started", "tick_period", time.Duration(p.cfg.TickPeriod).String())
	return nil
}

// Stop cancels the loop, waits for any in-flight tick to drain, then
// clears all tracking and cooldown state. Safe to call at any time,
// including mid-tick; the in-flight tick may still emit its alert.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel == nil {
		return
	}

	p.cancel()
	<-p.done
	p.wg.Wait()
	p.cancel = nil

	p.tracker.Reset()
	p.cooldowns.Reset()
	p.logger.Info("pipeline stopped, state cleared")
}

// Running reports whether the tick loop is active.
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Seq returns the number of ticks processed since construction.
func (p *Pipeline) Seq() uint64 {
	return atomic.LoadUint64(&p.seq)
}

// Stats returns the tick timing statistics.
func (p *Pipeline) Stats() *Stats {
	return p.stats
}

func (p *Pipeline) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(time.Duration(p.cfg.TickPeriod))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.fire(ctx)
		}
	}
}

// fire runs one tick unless the previous one is still in flight. Late
// ticks are dropped, not queued, so stale work never piles up behind a
// slow detector.
func (p *Pipeline) fire(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&p.ticking, 0, 1) {
		p.stats.Drop()
		p.logger.Warn("previous tick still in flight, dropping", "seq", atomic.LoadUint64(&p.seq))
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer atomic.StoreInt32(&p.ticking, 0)
		p.runTick(ctx)
	}()
}

// TickOnce runs a single tick synchronously. Meant for one-shot scans and
// tests; returns the alert the tick emitted, if any.
func (p *Pipeline) TickOnce(ctx context.Context) (model.Alert, bool) {
	if !atomic.CompareAndSwapInt32(&p.ticking, 0, 1) {
		return model.Alert{}, false
	}
	defer atomic.StoreInt32(&p.ticking, 0)
	return p.runTick(ctx)
}

func (p *Pipeline) runTick(ctx context.Context) (model.Alert, bool) {
	start := p.now()
	seq := atomic.AddUint64(&p.seq, 1)
	tick := detect.Tick{Seq: seq, Time: start}

	dets, err := p.detector.Detect(ctx, tick)
	if err != nil {
		// An unreachable backend is an empty tick, not a pipeline error.
		p.logger.Debug("detector unavailable", "seq", seq, "error", err)
		dets = nil
	}

	a, ok := p.process(start, dets)
	if ok {
		p.stats.Alerted()
		p.sinks.Deliver(ctx, a)
	}

	if seq%uint64(p.cfg.GCInterval) == 0 {
		p.gc(start)
	}

	p.stats.Observe(p.now().Sub(start))
	return a, ok
}

// process runs the stage chain over one tick's detections.
func (p *Pipeline) process(now time.Time, dets []model.Detection) (model.Alert, bool) {
	dets = p.intake(now, dets)
	dets = p.center(dets)
	dets = p.tracker.Update(dets)
	dets = p.proximity(dets)
	dets = p.clusterer.Merge(dets)
	dets = p.temporal.Apply(now, dets)

	best, score, ok := p.scorer.Best(dets)
	if !ok {
		return model.Alert{}, false
	}

	a := p.synth.Build(now, best, score)
	// Cooldown is keyed on the synthesized label, cluster labels included.
	p.cooldowns.Mark(a.Detection.Label, now)
	return a, true
}

// intake normalizes raw observations. Steps are always recomputed from
// distance and the configured step length, never trusted from the source.
func (p *Pipeline) intake(now time.Time, dets []model.Detection) []model.Detection {
	out := dets[:0]
	for _, d := range dets {
		if d.DistanceM < 0 {
			p.logger.Warn("negative distance from detector, clamping",
				"id", d.ID, "label", d.Label, "distance_m", d.DistanceM)
			d.DistanceM = 0
		}
		d.Steps = geometry.StepsFor(d.DistanceM, p.cfg.StepLengthCM)
		if d.Time.IsZero() {
			d.Time = now
		}
		out = append(out, d)
	}
	return out
}

// gc evicts stale cross-tick state on a slow cadence.
func (p *Pipeline) gc(now time.Time) {
	tracks := p.tracker.PruneBefore(now.Add(-time.Duration(p.cfg.TrackMaxAge)))
	cooldowns := p.cooldowns.PruneBefore(now.Add(-time.Duration(p.cfg.CooldownMaxAge)))
	if tracks > 0 || cooldowns > 0 {
		p.logger.Debug("gc pass", "tracks_evicted", tracks, "cooldowns_evicted", cooldowns)
	}
}
