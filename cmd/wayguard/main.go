package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"wayguard/internal/api"
	"wayguard/pkg/actuate"
	"wayguard/pkg/alert"
	"wayguard/pkg/config"
	"wayguard/pkg/db"
	"wayguard/pkg/db/maintenance"
	"wayguard/pkg/detect"
	"wayguard/pkg/detect/remote"
	"wayguard/pkg/detect/simwalk"
	"wayguard/pkg/detect/vision"
	"wayguard/pkg/frame"
	"wayguard/pkg/geometry"
	"wayguard/pkg/logging"
	"wayguard/pkg/pipeline"
	"wayguard/pkg/probe"
	"wayguard/pkg/request"
	"wayguard/pkg/store"
	"wayguard/pkg/version"
)

var (
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
	configPath = flag.String("config", "configs/wayguard.yaml", "Path to config file")
)

func main() {
	flag.Parse()

	// Handle --init-config flag
	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated:", *configPath)
		return
	}

	// API keys and endpoint overrides live in .env on dev machines; on the
	// device they come from the environment proper, so absence is fine.
	_ = godotenv.Load()

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("Wayguard started", "version", version.Version, "detector", appCfg.Detector.Provider)

	dbConn, st, err := initDB(appCfg)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	if err := maintenance.Run(ctx, st, dbConn, time.Duration(appCfg.Store.Retention)); err != nil {
		slog.Error("Maintenance tasks failed", "error", err)
	}

	applyStateOverrides(ctx, st, appCfg)

	det, detProbes, err := initDetector(appCfg)
	if err != nil {
		return err
	}
	defer det.Close()

	sinks := initSinks(appCfg, st)
	defer sinks.Close()

	pl, err := pipeline.New(&appCfg.Pipeline, &appCfg.Categories, det, sinks.Fanout, sinks.Haptic != nil)
	if err != nil {
		return fmt.Errorf("failed to assemble pipeline: %w", err)
	}

	// Startup Probes
	probes := []probe.Probe{
		{
			Name:     "Alert Store",
			Check:    st.Ping,
			Critical: true,
		},
	}
	probes = append(probes, detProbes...)
	if sinks.Chime != nil {
		probes = append(probes, probe.Probe{
			Name:     "Audio Output",
			Check:    sinks.Chime.Ping,
			Critical: false, // chime is one sense of several, the device guides without it
		})
	}

	results := probe.Run(ctx, probes)
	if err := probe.AnalyzeResults(results); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	if err := pl.Start(ctx); err != nil {
		return fmt.Errorf("failed to start pipeline: %w", err)
	}
	defer pl.Stop()
	markState(ctx, st, config.KeyLastStart)

	err = runServer(ctx, appCfg, pl, st, sinks)

	// The run context may already be cancelled on the way out; record the
	// stop time under its own deadline.
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	markState(stopCtx, st, config.KeyLastStop)

	return err
}

func initDB(appCfg *config.Config) (*db.DB, store.Store, error) {
	dbConn, err := db.Init(appCfg.Store.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return dbConn, store.NewSQLiteStore(dbConn), nil
}

// applyStateOverrides folds runtime settings persisted by the config API
// into the loaded config. They live in the state table so a change made
// from the overlay survives restarts without rewriting the YAML file.
func applyStateOverrides(ctx context.Context, st store.StateStore, appCfg *config.Config) {
	if v, ok := st.GetState(ctx, config.KeyStepLength); ok {
		cm, err := strconv.ParseFloat(v, 64)
		if err != nil || geometry.ValidateStepLength(cm) != nil {
			slog.Warn("Ignoring stored step length", "value", v, "error", err)
		} else {
			appCfg.Pipeline.StepLengthCM = cm
			slog.Info("Applying stored step length", "cm", cm)
		}
	}
	if v, ok := st.GetState(ctx, config.KeyDetector); ok {
		if config.KnownProvider(v) {
			appCfg.Detector.Provider = v
			slog.Info("Applying stored detector provider", "provider", v)
		} else {
			slog.Warn("Ignoring stored detector provider", "value", v)
		}
	}
}

func initDetector(appCfg *config.Config) (detect.Detector, []probe.Probe, error) {
	dcfg := &appCfg.Detector
	switch dcfg.Provider {
	case "simwalk":
		return simwalk.New(dcfg.SimWalk, dcfg.MinConfidence), nil, nil

	case "remote":
		frames, err := frame.NewSource(dcfg.FrameDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize frame source: %w", err)
		}
		client := request.New(&appCfg.Request)
		det := remote.New(client, frames, dcfg.Remote.BaseURL, dcfg.MinConfidence)
		p := probe.Probe{
			Name: "Detection Backend",
			Check: func(ctx context.Context) error {
				_, err := client.Get(ctx, dcfg.Remote.BaseURL+"/health", nil)
				return err
			},
			// The backend runs as a separate process and often comes up
			// after us.
			Critical: false,
		}
		return det, []probe.Probe{p}, nil

	case "vision":
		frames, err := frame.NewSource(dcfg.FrameDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize frame source: %w", err)
		}
		det, err := vision.New(dcfg.Vision, frames, dcfg.MinConfidence)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize vision detector: %w", err)
		}
		p := probe.Probe{
			Name:     "Vision Model",
			Check:    det.Validate,
			// The lookup can fail on keys that still generate fine; the
			// listing in the error tells the user what to put in the config.
			Critical: false,
			Timeout:  15 * time.Second,
		}
		return det, []probe.Probe{p}, nil

	default:
		return nil, nil, fmt.Errorf("unknown detector provider: %q", dcfg.Provider)
	}
}

// sinkSet bundles the fanout with the sinks that need explicit shutdown.
type sinkSet struct {
	Fanout  *alert.Fanout
	Hub     *api.StreamHub
	History *store.HistorySink
	Chime   *actuate.Chime
	Speech  *actuate.Speech
	Haptic  *actuate.Haptic
}

// Close stops the user-facing outputs first, then drains the history
// queue while the store is still open behind it.
func (s *sinkSet) Close() {
	s.Hub.Close()
	if s.Chime != nil {
		_ = s.Chime.Close()
	}
	if s.Haptic != nil {
		_ = s.Haptic.Close()
	}
	_ = s.History.Close()
}

func initSinks(appCfg *config.Config, st store.Store) *sinkSet {
	s := &sinkSet{
		History: store.NewHistorySink(st),
		Hub:     api.NewStreamHub(),
	}
	sinks := []alert.Sink{alert.NewLogSink(), s.History, s.Hub}

	acfg := &appCfg.Actuate
	if acfg.Chime.Enabled {
		s.Chime = actuate.NewChime(acfg.Chime.Volume)
		sinks = append(sinks, s.Chime)
	}
	if acfg.Speech.Command != "" {
		s.Speech = actuate.NewSpeech(acfg.Speech.Command)
		sinks = append(sinks, s.Speech)
	}
	if acfg.Haptic.Port != "" {
		h, err := actuate.NewHaptic(acfg.Haptic.Port, acfg.Haptic.Baud)
		if err != nil {
			// Run without the wristband rather than refuse to start.
			slog.Warn("Haptic device not available", "port", acfg.Haptic.Port, "error", err)
		} else {
			s.Haptic = h
			sinks = append(sinks, h)
		}
	}

	s.Fanout = alert.NewFanout(sinks...)
	return s
}

func markState(ctx context.Context, st store.StateStore, key string) {
	if err := st.SetState(ctx, key, time.Now().UTC().Format(time.RFC3339)); err != nil {
		slog.Warn("Failed to record state", "key", key, "error", err)
	}
}

func runServer(ctx context.Context, cfg *config.Config, pl *pipeline.Pipeline, st store.Store, sinks *sinkSet) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	srv := api.NewServer(cfg.Server.Address,
		api.NewStatusHandler(pl, sinks.Fanout, sinks.Hub, cfg.Detector.Provider),
		api.NewAlertsHandler(st),
		sinks.Hub,
		api.NewConfigHandler(st, cfg),
		api.NewControlHandler(ctx, pl, st),
		shutdownFunc,
	)

	srv.Handler = loggingMiddleware(srv.Handler)
	return runServerLifecycle(ctx, srv, quit)
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	// Debug level: the overlay polls every second and would flood the
	// capture ring at INFO.
	logger := slog.With("component", "http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("Request processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
