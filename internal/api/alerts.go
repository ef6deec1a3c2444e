package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"wayguard/pkg/model"
	"wayguard/pkg/store"
)

const (
	defaultAlertLimit = 50
	maxAlertLimit     = 500
)

// AlertsHandler serves the persisted alert history.
type AlertsHandler struct {
	alerts store.AlertStore
}

// NewAlertsHandler creates the alert history handler.
func NewAlertsHandler(alerts store.AlertStore) *AlertsHandler {
	return &AlertsHandler{alerts: alerts}
}

// AlertsResponse is the alert history API response.
type AlertsResponse struct {
	Count  int            `json:"count"`
	Alerts []*model.Alert `json:"alerts"`
}

// HandleRecent returns the most recent alerts, newest first. The limit query
// parameter caps the result; it defaults to 50 and is clamped to 500.
func (h *AlertsHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	limit := defaultAlertLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = v
		if limit > maxAlertLimit {
			limit = maxAlertLimit
		}
	}

	alerts, err := h.alerts.RecentAlerts(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to load alert history", "error", err)
		http.Error(w, "alert history unavailable", http.StatusInternalServerError)
		return
	}
	if alerts == nil {
		alerts = []*model.Alert{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(AlertsResponse{Count: len(alerts), Alerts: alerts}); err != nil {
		slog.Error("Failed to encode alerts response", "error", err)
	}
}
