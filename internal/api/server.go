// Package api exposes the service over HTTP: pipeline status and control,
// alert history, a live alert stream for overlay clients, the effective
// configuration and a log tail.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"wayguard/pkg/version"
)

// NewServer wires all API handlers into a configured HTTP server. shutdown
// is invoked when a client asks the whole service to exit.
func NewServer(addr string, status *StatusHandler, alerts *AlertsHandler, stream *StreamHub, cfg *ConfigHandler, control *ControlHandler, shutdown func()) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /api/version", handleVersion)

	mux.Handle("GET /api/status", status)

	mux.HandleFunc("GET /api/alerts", alerts.HandleRecent)
	mux.HandleFunc("GET /api/alerts/stream", stream.HandleStream)

	mux.HandleFunc("POST /api/pipeline/start", control.HandleStart)
	mux.HandleFunc("POST /api/pipeline/stop", control.HandleStop)

	// Unified handler: the overlay sends OPTIONS preflights.
	mux.HandleFunc("/api/config", cfg.HandleConfig)

	mux.HandleFunc("GET /api/log", handleLogTail)

	mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("Graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Shutting down...")); err != nil {
			slog.Error("Failed to write shutdown response", "error", err)
		}
		// Shut down in a goroutine so the response can flush first.
		go func() {
			time.Sleep(100 * time.Millisecond)
			shutdown()
		}()
	})

	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := fmt.Fprintf(w, `{"version": "%s"}`, version.Version); err != nil {
		slog.Error("Failed to write version response", "error", err)
	}
}
