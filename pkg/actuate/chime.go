// Package actuate holds the alert consumers that reach the user's senses:
// audio chimes, spoken announcements and the haptic belt. Every consumer
// decides on its own whether an alert concerns it; none of them may hold
// up the tick loop.
package actuate

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"

	"wayguard/pkg/model"
)

const chimeSampleRate = beep.SampleRate(48000)

// toneSpec is one beep within a chime pattern.
type toneSpec struct {
	freq float64
	dur  time.Duration
	gap  time.Duration // silence after the tone
}

// patternFor maps an alert class to its chime pattern. Urgent is fast and
// high so it reads as "stop now" even before the speech does.
func patternFor(c model.Class) []toneSpec {
	switch c {
	case model.ClassUrgent:
		return []toneSpec{
			{freq: 1320, dur: 90 * time.Millisecond, gap: 60 * time.Millisecond},
			{freq: 1320, dur: 90 * time.Millisecond, gap: 60 * time.Millisecond},
			{freq: 1320, dur: 90 * time.Millisecond},
		}
	case model.ClassWarning:
		return []toneSpec{
			{freq: 880, dur: 120 * time.Millisecond, gap: 80 * time.Millisecond},
			{freq: 880, dur: 120 * time.Millisecond},
		}
	default:
		return []toneSpec{
			{freq: 660, dur: 150 * time.Millisecond},
		}
	}
}

// tone generates a sine wave with short attack/release ramps so the tone
// starts and ends without clicks.
type tone struct {
	freq       float64
	sampleRate float64
	length     int
	pos        int
}

func newTone(freq float64, sr beep.SampleRate, dur time.Duration) *tone {
	return &tone{
		freq:       freq,
		sampleRate: float64(sr),
		length:     sr.N(dur),
	}
}

func (t *tone) Stream(samples [][2]float64) (n int, ok bool) {
	if t.pos >= t.length {
		return 0, false
	}
	for i := range samples {
		if t.pos >= t.length {
			break
		}
		v := math.Sin(2*math.Pi*t.freq*float64(t.pos)/t.sampleRate) * t.gain()
		samples[i][0] = v
		samples[i][1] = v
		t.pos++
		n++
	}
	return n, true
}

func (t *tone) Err() error { return nil }

// gain ramps over 5ms at both edges.
func (t *tone) gain() float64 {
	edge := int(t.sampleRate * 0.005)
	if edge < 1 {
		return 1
	}
	switch {
	case t.pos < edge:
		return float64(t.pos) / float64(edge)
	case t.length-t.pos < edge:
		return float64(t.length-t.pos) / float64(edge)
	default:
		return 1
	}
}

// patternStreamer chains a pattern's tones and gaps into one streamer.
func patternStreamer(pattern []toneSpec, sr beep.SampleRate) beep.Streamer {
	var parts []beep.Streamer
	for _, spec := range pattern {
		parts = append(parts, newTone(spec.freq, sr, spec.dur))
		if spec.gap > 0 {
			parts = append(parts, beep.Silence(sr.N(spec.gap)))
		}
	}
	return beep.Seq(parts...)
}

// Chime plays a tone pattern per alert. One pattern at a time: a chime
// arriving while another plays is skipped, unless it is urgent, which
// preempts whatever is sounding.
type Chime struct {
	volume float64
	logger *slog.Logger

	mu          sync.Mutex
	initialized bool
	busy        bool
}

// NewChime creates the chime sink. volume is in powers of two; 0 is unity,
// negative is quieter. The speaker device is claimed lazily on the first
// alert, not at construction.
func NewChime(volume float64) *Chime {
	return &Chime{
		volume: volume,
		logger: slog.With("component", "chime"),
	}
}

func (c *Chime) Name() string { return "chime" }

// Deliver plays the pattern for the alert's class.
func (c *Chime) Deliver(_ context.Context, a model.Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureSpeaker(); err != nil {
		return err
	}

	if c.busy {
		if a.Class != model.ClassUrgent {
			c.logger.Debug("chime busy, tone skipped", "alert_id", a.ID, "class", a.Class)
			return nil
		}
		speaker.Clear()
	}
	c.busy = true

	vol := &effects.Volume{
		Streamer: patternStreamer(patternFor(a.Class), chimeSampleRate),
		Base:     2,
		Volume:   c.volume,
	}
	speaker.Play(beep.Seq(vol, beep.Callback(func() {
		// The callback runs on the speaker goroutine with its lock held;
		// taking c.mu there directly could deadlock against Deliver.
		go func() {
			c.mu.Lock()
			c.busy = false
			c.mu.Unlock()
		}()
	})))
	return nil
}

// Busy reports whether a pattern is currently sounding.
func (c *Chime) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Ping claims the speaker device, reporting whether audio output works at
// all. Used as a startup probe.
func (c *Chime) Ping(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensureSpeaker()
}

// Close silences the speaker.
func (c *Chime) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		speaker.Clear()
		c.busy = false
	}
	return nil
}

func (c *Chime) ensureSpeaker() error {
	if c.initialized {
		return nil
	}
	if err := speaker.Init(chimeSampleRate, chimeSampleRate.N(time.Second/10)); err != nil {
		return err
	}
	c.initialized = true
	return nil
}
