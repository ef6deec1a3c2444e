package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"wayguard/pkg/config"
	"wayguard/pkg/geometry"
	"wayguard/pkg/store"
)

// ConfigHandler handles configuration API requests. GET returns the
// effective configuration; PUT updates the runtime-tunable subset, which is
// persisted in the state KV and applied on the next service start.
type ConfigHandler struct {
	state  store.StateStore
	appCfg *config.Config
}

// NewConfigHandler creates a new ConfigHandler.
func NewConfigHandler(state store.StateStore, cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{state: state, appCfg: cfg}
}

// ConfigResponse represents the config API response.
type ConfigResponse struct {
	Detector      string  `json:"detector"`
	MinConfidence float64 `json:"min_confidence"`
	TickPeriod    string  `json:"tick_period"`
	StepLengthCM  float64 `json:"step_length_cm"`
	CenterFOV     float64 `json:"center_fov"`
	Cooldown      string  `json:"cooldown"`
	ChimeEnabled  bool    `json:"chime_enabled"`
	SpeechCommand string  `json:"speech_command"`
	HapticPort    string  `json:"haptic_port"`
	Address       string  `json:"address"`
}

// ConfigRequest represents the config API request for updates.
type ConfigRequest struct {
	StepLengthCM *float64 `json:"step_length_cm,omitempty"` // pointer to detect 0 vs missing
	Detector     string   `json:"detector,omitempty"`
}

// HandleConfig is a unified handler for all config-related methods,
// facilitating CORS/OPTIONS.
func (h *ConfigHandler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.HandleGetConfig(w, r)
	case http.MethodPut, http.MethodPost:
		h.HandleSetConfig(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleGetConfig returns the current configuration.
func (h *ConfigHandler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	resp := ConfigResponse{
		Detector:      h.appCfg.Detector.Provider,
		MinConfidence: h.appCfg.Detector.MinConfidence,
		TickPeriod:    time.Duration(h.appCfg.Pipeline.TickPeriod).String(),
		StepLengthCM:  h.appCfg.Pipeline.StepLengthCM,
		CenterFOV:     h.appCfg.Pipeline.CenterFOV,
		Cooldown:      time.Duration(h.appCfg.Pipeline.Cooldown).String(),
		ChimeEnabled:  h.appCfg.Actuate.Chime.Enabled,
		SpeechCommand: h.appCfg.Actuate.Speech.Command,
		HapticPort:    h.appCfg.Actuate.Haptic.Port,
		Address:       h.appCfg.Server.Address,
	}

	// KV overrides shadow the file values.
	ctx := r.Context()
	if raw, ok := h.state.GetState(ctx, config.KeyStepLength); ok {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			resp.StepLengthCM = v
		}
	}
	if raw, ok := h.state.GetState(ctx, config.KeyDetector); ok && raw != "" {
		resp.Detector = raw
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode config response", "error", err)
	}
}

// HandleSetConfig updates the runtime-tunable configuration.
func (h *ConfigHandler) HandleSetConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	defer func() { _ = r.Body.Close() }()

	var req ConfigRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	if req.StepLengthCM != nil {
		if err := geometry.ValidateStepLength(*req.StepLengthCM); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		val := fmt.Sprintf("%.1f", *req.StepLengthCM)
		if err := h.state.SetState(ctx, config.KeyStepLength, val); err != nil {
			slog.Error("Failed to save state", "key", config.KeyStepLength, "error", err)
			http.Error(w, "failed to persist setting", http.StatusInternalServerError)
			return
		}
		slog.Debug("Config updated", config.KeyStepLength, val)
	}

	if req.Detector != "" {
		if !config.KnownProvider(req.Detector) {
			http.Error(w, fmt.Sprintf("unknown detector provider %q", req.Detector), http.StatusBadRequest)
			return
		}
		if err := h.state.SetState(ctx, config.KeyDetector, req.Detector); err != nil {
			slog.Error("Failed to save state", "key", config.KeyDetector, "error", err)
			http.Error(w, "failed to persist setting", http.StatusInternalServerError)
			return
		}
		// Takes effect on the next start; the running detector stays.
		slog.Debug("Config updated", config.KeyDetector, req.Detector)
	}

	h.HandleGetConfig(w, r)
}
