package logging

import (
	"strings"
	"sync"
)

const defaultCaptureLines = 200

// RingWriter is a thread-safe writer that keeps the last N log lines in
// memory for the log tail endpoint.
type RingWriter struct {
	mu    sync.RWMutex
	lines []string
	max   int
}

// Capture is the singleton ring the default logger writes into.
var Capture = &RingWriter{max: defaultCaptureLines}

// Resize sets the number of lines kept. Values below 1 keep the default.
func (w *RingWriter) Resize(max int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if max < 1 {
		max = defaultCaptureLines
	}
	w.max = max
	if len(w.lines) > w.max {
		w.lines = append([]string(nil), w.lines[len(w.lines)-w.max:]...)
	}
}

// Write implements io.Writer. Each write is one handler record, possibly
// with a trailing newline.
func (w *RingWriter) Write(p []byte) (n int, err error) {
	line := strings.TrimRight(string(p), "\n")
	if line == "" {
		return len(p), nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.lines = append(w.lines, line)
	if len(w.lines) > w.max {
		w.lines = w.lines[len(w.lines)-w.max:]
	}
	return len(p), nil
}

// Tail returns up to n of the most recent lines, oldest first.
func (w *RingWriter) Tail(n int) []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if n < 1 || n > len(w.lines) {
		n = len(w.lines)
	}
	out := make([]string, n)
	copy(out, w.lines[len(w.lines)-n:])
	return out
}

// Last returns the most recent line, or "" if nothing has been logged.
func (w *RingWriter) Last() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if len(w.lines) == 0 {
		return ""
	}
	return w.lines[len(w.lines)-1]
}
