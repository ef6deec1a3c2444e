package actuate

import (
	"math"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"

	"wayguard/pkg/model"
)

// drainStreamer pulls a streamer dry and returns every sample produced.
func drainStreamer(t *testing.T, s beep.Streamer) [][2]float64 {
	t.Helper()
	var all [][2]float64
	buf := make([][2]float64, 512)
	for {
		n, ok := s.Stream(buf)
		all = append(all, buf[:n]...)
		if !ok {
			return all
		}
		if len(all) > int(chimeSampleRate)*10 {
			t.Fatal("streamer did not terminate within 10s of audio")
		}
	}
}

func TestPatternFor(t *testing.T) {
	tests := []struct {
		name      string
		class     model.Class
		wantTones int
		wantFreq  float64
	}{
		{"urgent is three high beeps", model.ClassUrgent, 3, 1320},
		{"warning is two mid beeps", model.ClassWarning, 2, 880},
		{"info is a single low beep", model.ClassInfo, 1, 660},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pattern := patternFor(tt.class)
			if len(pattern) != tt.wantTones {
				t.Fatalf("got %d tones, want %d", len(pattern), tt.wantTones)
			}
			for i, spec := range pattern {
				if spec.freq != tt.wantFreq {
					t.Errorf("tone %d: freq = %v, want %v", i, spec.freq, tt.wantFreq)
				}
				if spec.dur <= 0 {
					t.Errorf("tone %d: non-positive duration %v", i, spec.dur)
				}
			}
			if last := pattern[len(pattern)-1]; last.gap != 0 {
				t.Errorf("trailing gap %v after last tone, want none", last.gap)
			}
		})
	}
}

func TestToneStream(t *testing.T) {
	const dur = 90 * time.Millisecond
	tn := newTone(1320, chimeSampleRate, dur)

	samples := drainStreamer(t, tn)
	if want := chimeSampleRate.N(dur); len(samples) != want {
		t.Fatalf("got %d samples, want %d", len(samples), want)
	}

	peak := 0.0
	for i, s := range samples {
		if s[0] != s[1] {
			t.Fatalf("sample %d: channels differ (%v vs %v)", i, s[0], s[1])
		}
		if math.IsNaN(s[0]) || math.Abs(s[0]) > 1 {
			t.Fatalf("sample %d out of range: %v", i, s[0])
		}
		if a := math.Abs(s[0]); a > peak {
			peak = a
		}
	}
	if peak < 0.9 {
		t.Errorf("peak amplitude %v, want close to 1", peak)
	}

	// The attack ramp keeps the very first samples near silence.
	if a := math.Abs(samples[1][0]); a > 0.1 {
		t.Errorf("sample 1 amplitude %v, want ramped-in near 0", a)
	}

	// Exhausted streamers stay exhausted.
	if n, ok := tn.Stream(make([][2]float64, 8)); n != 0 || ok {
		t.Errorf("drained tone streamed again: n=%d ok=%v", n, ok)
	}
}

func TestToneStreamPartialBuffer(t *testing.T) {
	tn := newTone(660, chimeSampleRate, time.Millisecond)
	want := chimeSampleRate.N(time.Millisecond)

	buf := make([][2]float64, want+100)
	n, ok := tn.Stream(buf)
	if n != want {
		t.Errorf("n = %d, want %d", n, want)
	}
	if !ok {
		t.Error("ok = false on the call that produced samples")
	}
}

func TestPatternStreamerLength(t *testing.T) {
	for _, class := range []model.Class{model.ClassUrgent, model.ClassWarning, model.ClassInfo} {
		pattern := patternFor(class)
		want := 0
		for _, spec := range pattern {
			want += chimeSampleRate.N(spec.dur)
			want += chimeSampleRate.N(spec.gap)
		}

		got := len(drainStreamer(t, patternStreamer(pattern, chimeSampleRate)))
		if got != want {
			t.Errorf("class %v: %d samples, want %d", class, got, want)
		}
	}
}

func TestPatternStreamerGapsAreSilent(t *testing.T) {
	pattern := []toneSpec{
		{freq: 880, dur: 10 * time.Millisecond, gap: 10 * time.Millisecond},
		{freq: 880, dur: 10 * time.Millisecond},
	}
	samples := drainStreamer(t, patternStreamer(pattern, chimeSampleRate))

	gapStart := chimeSampleRate.N(10 * time.Millisecond)
	gapEnd := gapStart + chimeSampleRate.N(10*time.Millisecond)
	for i := gapStart; i < gapEnd; i++ {
		if samples[i][0] != 0 || samples[i][1] != 0 {
			t.Fatalf("sample %d in gap is %v, want silence", i, samples[i])
		}
	}
}

func TestChimeName(t *testing.T) {
	if got := NewChime(0).Name(); got != "chime" {
		t.Errorf("Name() = %q, want %q", got, "chime")
	}
}
