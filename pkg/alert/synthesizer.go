// Package alert turns the winning detection of a tick into the actionable
// alert handed to the attached sinks.
package alert

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"wayguard/pkg/config"
	"wayguard/pkg/model"
)

const (
	// HapticMaxSteps bounds haptic actuation to objects close enough to
	// matter physically.
	HapticMaxSteps = 2
	// AnnounceMaxSteps bounds speech; anything farther is visual-only.
	AnnounceMaxSteps = 8

	fastSpeechMPS = 1.5
	leftOfView    = 0.3
	rightOfView   = 0.7
)

// Synthesizer builds alerts from scored detections.
type Synthesizer struct {
	cats     *config.CategoriesConfig
	cooldown time.Duration
	haptics  bool
	newID    func() string
}

// New creates a Synthesizer. haptics reports whether the platform has a
// haptic actuator at all; per-alert eligibility still depends on distance.
func New(cats *config.CategoriesConfig, cooldown time.Duration, haptics bool) *Synthesizer {
	return &Synthesizer{
		cats:     cats,
		cooldown: cooldown,
		haptics:  haptics,
		newID:    func() string { return uuid.New().String() },
	}
}

// Build synthesizes the alert for the tick's top detection. The caller is
// responsible for marking the cooldown table under the alert's label once
// the alert is actually emitted.
func (s *Synthesizer) Build(now time.Time, d model.Detection, priority float64) model.Alert {
	return model.Alert{
		ID:            s.newID(),
		Detection:     d,
		Priority:      priority,
		Class:         s.classify(d),
		Message:       s.message(d),
		Announce:      d.Steps <= AnnounceMaxSteps,
		Haptic:        s.haptics && d.Steps <= HapticMaxSteps,
		Time:          now,
		SuppressUntil: now.Add(s.cooldown),
	}
}

func (s *Synthesizer) classify(d model.Detection) model.Class {
	switch {
	case d.Steps <= 1, d.Moving && d.Steps <= 2:
		return model.ClassUrgent
	case d.Steps <= 3, s.cats.IsCritical(d.Label):
		return model.ClassWarning
	default:
		return model.ClassInfo
	}
}

func (s *Synthesizer) message(d model.Detection) string {
	var b strings.Builder
	switch {
	case d.Steps == 1:
		b.WriteString("Stop! ")
	case d.Steps == 2 && d.Moving:
		b.WriteString("Caution! ")
	}

	unit := "steps"
	if d.Steps == 1 {
		unit = "step"
	}
	fmt.Fprintf(&b, "%s ahead in %d %s", d.Label, d.Steps, unit)

	if d.Moving {
		if d.VelocityMPS > fastSpeechMPS {
			b.WriteString(", moving fast")
		} else {
			b.WriteString(", moving")
		}
	}

	switch {
	case d.CenterX < leftOfView:
		b.WriteString(" to your left")
	case d.CenterX > rightOfView:
		b.WriteString(" to your right")
	}
	return b.String()
}
