package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"wayguard/pkg/config"
	"wayguard/pkg/pipeline"
	"wayguard/pkg/store"
)

// ControlHandler starts and stops the alert pipeline.
type ControlHandler struct {
	pipeline *pipeline.Pipeline
	state    store.StateStore
	runCtx   context.Context
	logger   *slog.Logger
}

// NewControlHandler creates the pipeline control handler. runCtx is the
// service lifetime context: a pipeline started over the API keeps running
// after the request ends, until the service itself shuts down.
func NewControlHandler(runCtx context.Context, p *pipeline.Pipeline, state store.StateStore) *ControlHandler {
	return &ControlHandler{
		pipeline: p,
		state:    state,
		runCtx:   runCtx,
		logger:   slog.With("component", "api"),
	}
}

// ControlResponse reports the pipeline state after a control request.
type ControlResponse struct {
	Running bool `json:"running"`
}

// HandleStart starts the tick loop.
func (h *ControlHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	if err := h.pipeline.Start(h.runCtx); err != nil {
		if errors.Is(err, pipeline.ErrRunning) {
			http.Error(w, "pipeline already running", http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.markState(r.Context(), config.KeyLastStart)
	h.writeState(w)
}

// HandleStop stops the tick loop and clears tracking state.
func (h *ControlHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	h.pipeline.Stop()
	h.markState(r.Context(), config.KeyLastStop)
	h.writeState(w)
}

func (h *ControlHandler) markState(ctx context.Context, key string) {
	if h.state == nil {
		return
	}
	if err := h.state.SetState(ctx, key, time.Now().UTC().Format(time.RFC3339)); err != nil {
		h.logger.Warn("failed to persist state", "key", key, "error", err)
	}
}

func (h *ControlHandler) writeState(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ControlResponse{Running: h.pipeline.Running()}); err != nil {
		h.logger.Error("failed to encode control response", "error", err)
	}
}
