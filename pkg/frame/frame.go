// Package frame feeds camera frames to the image-backed detectors. An
// external camera process drops image files into a directory; Source
// polls it and hands out the newest frame.
package frame

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Frame is one captured camera image.
type Frame struct {
	Path    string
	Data    []byte
	ModTime time.Time
}

// Source polls a drop directory for the newest image file. Safe for
// concurrent use; the remote and vision detectors share one source.
type Source struct {
	dir    string
	logger *slog.Logger

	mu       sync.Mutex
	lastPath string
	lastMod  time.Time
}

// NewSource creates a Source over dir. A missing directory is created so
// the camera process has somewhere to write; failure to create it is a
// setup error.
func NewSource(dir string) (*Source, error) {
	if dir == "" {
		return nil, fmt.Errorf("frame directory not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create frame directory: %w", err)
	}
	return &Source{
		dir:    dir,
		logger: slog.With("component", "frame"),
	}, nil
}

// Dir returns the monitored directory.
func (s *Source) Dir() string {
	return s.dir
}

// Latest returns the newest image in the directory. ok is false when the
// directory holds no readable image, or when the newest one is the frame
// already handed out by the previous call; detectors skip their tick in
// both cases rather than re-analyze a stale image.
func (s *Source) Latest() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, mod, found := s.scan()
	if !found {
		return Frame{}, false
	}
	if path == s.lastPath && mod.Equal(s.lastMod) {
		return Frame{}, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		// The camera may still be writing the file; try again next tick.
		s.logger.Debug("frame not readable yet", "path", path, "error", err)
		return Frame{}, false
	}

	s.lastPath = path
	s.lastMod = mod
	return Frame{Path: path, Data: data, ModTime: mod}, true
}

// Peek reports whether an unseen frame is waiting, without consuming it.
func (s *Source) Peek() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, mod, found := s.scan()
	if !found {
		return false
	}
	return path != s.lastPath || !mod.Equal(s.lastMod)
}

func (s *Source) scan() (path string, mod time.Time, found bool) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return "", time.Time{}, false
	}

	for _, entry := range entries {
		if entry.IsDir() || !isImage(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(mod) {
			mod = info.ModTime()
			path = filepath.Join(s.dir, entry.Name())
			found = true
		}
	}
	return path, mod, found
}

func isImage(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	default:
		return false
	}
}

// MimeType guesses the MIME type from the frame's extension.
func (f Frame) MimeType() string {
	if strings.ToLower(filepath.Ext(f.Path)) == ".png" {
		return "image/png"
	}
	return "image/jpeg"
}
