package actuate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.bug.st/serial"

	"wayguard/pkg/model"
)

// Haptic drives the vibration belt over a serial line. The belt firmware
// understands one command: "PULSE <count> <ms>\n". Alerts that do not carry
// the haptic flag are ignored, so the belt only fires for obstacles close
// enough to matter.
type Haptic struct {
	logger *slog.Logger

	mu   sync.Mutex
	port serial.Port
}

// NewHaptic opens the serial port and returns the haptic sink.
func NewHaptic(portName string, baud int) (*Haptic, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("opening haptic port %s: %w", portName, err)
	}
	return &Haptic{
		logger: slog.With("component", "haptic"),
		port:   port,
	}, nil
}

func (h *Haptic) Name() string { return "haptic" }

// pulsePattern maps an alert class to a belt pattern. More urgent means
// more and longer pulses.
func pulsePattern(c model.Class) (count, ms int) {
	switch c {
	case model.ClassUrgent:
		return 5, 120
	case model.ClassWarning:
		return 3, 100
	default:
		return 2, 80
	}
}

// Deliver sends the pulse command for the alert's class to the belt.
func (h *Haptic) Deliver(_ context.Context, a model.Alert) error {
	if !a.Haptic {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.port == nil {
		return fmt.Errorf("haptic port closed")
	}

	count, ms := pulsePattern(a.Class)
	cmd := fmt.Sprintf("PULSE %d %d\n", count, ms)
	if _, err := h.port.Write([]byte(cmd)); err != nil {
		return fmt.Errorf("writing to haptic port: %w", err)
	}
	h.logger.Debug("pulse sent", "alert_id", a.ID, "count", count, "ms", ms)
	return nil
}

// Close releases the serial port. Deliver calls after Close report an error.
func (h *Haptic) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.port == nil {
		return nil
	}
	err := h.port.Close()
	h.port = nil
	return err
}
