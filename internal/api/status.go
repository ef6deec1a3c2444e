package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"wayguard/pkg/alert"
	"wayguard/pkg/pipeline"
	"wayguard/pkg/version"
)

// StatusHandler reports what the service is doing right now.
type StatusHandler struct {
	pipeline *pipeline.Pipeline
	sinks    *alert.Fanout
	stream   *StreamHub
	detector string
	started  time.Time
}

// NewStatusHandler creates the status handler. detector names the active
// detection provider.
func NewStatusHandler(p *pipeline.Pipeline, sinks *alert.Fanout, stream *StreamHub, detector string) *StatusHandler {
	return &StatusHandler{
		pipeline: p,
		sinks:    sinks,
		stream:   stream,
		detector: detector,
		started:  time.Now(),
	}
}

// StatusResponse is the status API response.
type StatusResponse struct {
	Version       string            `json:"version"`
	UptimeSec     int64             `json:"uptime_sec"`
	Running       bool              `json:"running"`
	Detector      string            `json:"detector"`
	Sinks         []string          `json:"sinks"`
	StreamClients int               `json:"stream_clients"`
	Pipeline      pipeline.Snapshot `json:"pipeline"`
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Version:   version.Version,
		UptimeSec: int64(time.Since(h.started).Seconds()),
		Running:   h.pipeline.Running(),
		Detector:  h.detector,
		Pipeline:  h.pipeline.Stats().Snapshot(),
	}
	if h.sinks != nil {
		resp.Sinks = h.sinks.Names()
	}
	if h.stream != nil {
		resp.StreamClients = h.stream.ClientCount()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode status response", "error", err)
	}
}
