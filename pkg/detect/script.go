package detect

import (
	"context"
	"sync"

	"wayguard/pkg/model"
)

// Script replays a fixed sequence of detection frames, one per call, then
// reports nothing. Deterministic by construction; it stands in for live
// sources wherever reproducibility matters.
type Script struct {
	mu     sync.Mutex
	frames [][]model.Detection
	next   int
}

// NewScript builds a scripted detector over the given frames.
func NewScript(frames ...[]model.Detection) *Script {
	return &Script{frames: frames}
}

// Detect returns the next scripted frame as a fresh copy.
func (s *Script) Detect(_ context.Context, _ Tick) ([]model.Detection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.frames) {
		return nil, nil
	}
	frame := s.frames[s.next]
	s.next++
	out := make([]model.Detection, len(frame))
	copy(out, frame)
	return out, nil
}

func (s *Script) Close() error { return nil }

// Rewind restarts the script from the first frame.
func (s *Script) Rewind() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next = 0
}
