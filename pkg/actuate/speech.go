package actuate

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"wayguard/pkg/model"
)

// speechTimeout bounds a single announcement. A wedged TTS process must not
// hold the busy guard forever.
const speechTimeout = 15 * time.Second

// messagePlaceholder marks where the alert message goes in the command
// template.
const messagePlaceholder = "{message}"

// Speech speaks alert messages by running an external TTS command. Only one
// announcement runs at a time; alerts arriving while one is in flight are
// dropped, because a queued obstacle warning is worse than none.
type Speech struct {
	command  string
	logger   *slog.Logger
	speaking atomic.Bool
}

// NewSpeech creates the speech sink. command is a template such as
// "espeak-ng -s 165 {message}"; the placeholder is replaced with the alert
// message, or the message is appended when the template has no placeholder.
func NewSpeech(command string) *Speech {
	return &Speech{
		command: command,
		logger:  slog.With("component", "speech"),
	}
}

func (s *Speech) Name() string { return "speech" }

// Deliver announces the alert if it asks to be spoken and nothing else is
// being spoken right now.
func (s *Speech) Deliver(_ context.Context, a model.Alert) error {
	if !a.Announce || a.Message == "" {
		return nil
	}
	if !s.speaking.CompareAndSwap(false, true) {
		s.logger.Debug("speech busy, announcement skipped", "alert_id", a.ID)
		return nil
	}
	go s.speak(a)
	return nil
}

// Busy reports whether an announcement is currently running.
func (s *Speech) Busy() bool {
	return s.speaking.Load()
}

func (s *Speech) speak(a model.Alert) {
	defer s.speaking.Store(false)

	argv := buildCommand(s.command, a.Message)
	if len(argv) == 0 {
		return
	}

	// The tick that produced the alert is long gone by the time the
	// process exits, so the command gets its own deadline.
	ctx, cancel := context.WithTimeout(context.Background(), speechTimeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if out, err := cmd.CombinedOutput(); err != nil {
		s.logger.Warn("speech command failed",
			"error", err, "output", strings.TrimSpace(string(out)))
		return
	}
	s.logger.Debug("announcement spoken",
		"alert_id", a.ID, "duration", time.Since(start).Round(time.Millisecond))
}

// buildCommand splits the template into argv and substitutes the message.
// The placeholder may stand alone or be embedded in a larger argument; a
// template without one gets the message appended, so plain commands like
// "say" work unchanged.
func buildCommand(template, message string) []string {
	fields := strings.Fields(template)
	if len(fields) == 0 {
		return nil
	}
	argv := make([]string, 0, len(fields)+1)
	substituted := false
	for _, f := range fields {
		if strings.Contains(f, messagePlaceholder) {
			f = strings.ReplaceAll(f, messagePlaceholder, message)
			substituted = true
		}
		argv = append(argv, f)
	}
	if !substituted {
		argv = append(argv, message)
	}
	return argv
}
