// Package main provides a debugging CLI that runs the alert pipeline for a
// few ticks against the configured detector and prints what it saw: each
// tick's raw detections and the alert, if any, the tick synthesized.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"wayguard/pkg/alert"
	"wayguard/pkg/config"
	"wayguard/pkg/detect"
	"wayguard/pkg/detect/remote"
	"wayguard/pkg/detect/simwalk"
	"wayguard/pkg/detect/vision"
	"wayguard/pkg/frame"
	"wayguard/pkg/geometry"
	"wayguard/pkg/model"
	"wayguard/pkg/pipeline"
	"wayguard/pkg/request"
)

// recordingDetector remembers each tick's batch so the scan can print what
// the pipeline saw next to what it decided.
type recordingDetector struct {
	detect.Detector
	last []model.Detection
}

func (d *recordingDetector) Detect(ctx context.Context, tick detect.Tick) ([]model.Detection, error) {
	dets, err := d.Detector.Detect(ctx, tick)
	d.last = dets
	return dets, err
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfgPath := flag.String("config", "configs/wayguard.yaml", "Path to config file")
	detector := flag.String("detector", "", "Override the detector provider (simwalk, remote, vision)")
	ticks := flag.Int("ticks", 10, "Number of ticks to run")
	period := flag.Duration("period", 0, "Tick period (default: config value)")
	asJSON := flag.Bool("json", false, "Print alerts as JSON")
	flag.Parse()

	// Pipeline internals log per stage; keep the scan output readable.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *detector != "" {
		if !config.KnownProvider(*detector) {
			return fmt.Errorf("unknown detector provider: %q", *detector)
		}
		cfg.Detector.Provider = *detector
	}
	tickPeriod := time.Duration(cfg.Pipeline.TickPeriod)
	if *period > 0 {
		tickPeriod = *period
	}

	det, err := initDetector(cfg)
	if err != nil {
		return err
	}
	defer det.Close()
	rec := &recordingDetector{Detector: det}

	// No sinks: the scan prints instead of actuating.
	pl, err := pipeline.New(&cfg.Pipeline, &cfg.Categories, rec, alert.NewFanout(), false)
	if err != nil {
		return fmt.Errorf("failed to assemble pipeline: %w", err)
	}

	fmt.Printf("Detector: %s\n", cfg.Detector.Provider)
	fmt.Printf("Ticks:    %d @ %s\n", *ticks, tickPeriod)
	fmt.Println(strings.Repeat("-", 72))

	ctx := context.Background()
	for i := 0; i < *ticks; i++ {
		if i > 0 {
			time.Sleep(tickPeriod)
		}
		a, ok := pl.TickOnce(ctx)
		printTick(i+1, rec.last, cfg.Pipeline.StepLengthCM)
		if ok {
			printAlert(a, *asJSON)
		}
	}

	fmt.Println(strings.Repeat("-", 72))
	snap := pl.Stats().Snapshot()
	fmt.Printf("%d ticks, %d alerts, mean %.1fms, p95 %.1fms\n",
		snap.Ticks, snap.Alerts, snap.TickMeanMS, snap.TickP95MS)
	return nil
}

func printTick(n int, dets []model.Detection, stepLengthCM float64) {
	fmt.Printf("\nTick %d: %d detections\n", n, len(dets))
	for _, d := range dets {
		steps := d.Steps
		if steps == 0 {
			steps = geometry.StepsFor(d.DistanceM, stepLengthCM)
		}
		fmt.Printf("   %-12s conf=%.2f  x=%.2f  dist=%.1fm (~%d steps)\n",
			d.Label, d.Confidence, d.CenterX, d.DistanceM, steps)
	}
}

func printAlert(a model.Alert, asJSON bool) {
	if asJSON {
		out, err := json.MarshalIndent(a, "", "  ")
		if err != nil {
			fmt.Printf("   ALERT: failed to encode: %v\n", err)
			return
		}
		fmt.Printf("   ALERT: %s\n", out)
		return
	}
	var flags []string
	if a.Announce {
		flags = append(flags, "announce")
	}
	if a.Haptic {
		flags = append(flags, "haptic")
	}
	extra := ""
	if len(flags) > 0 {
		extra = " " + strings.Join(flags, "+")
	}
	fmt.Printf("   ALERT [%s] %s (priority %.1f%s)\n", a.Class, a.Message, a.Priority, extra)
}

func initDetector(cfg *config.Config) (detect.Detector, error) {
	dcfg := &cfg.Detector
	switch dcfg.Provider {
	case "simwalk":
		return simwalk.New(dcfg.SimWalk, dcfg.MinConfidence), nil
	case "remote":
		frames, err := frame.NewSource(dcfg.FrameDir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize frame source: %w", err)
		}
		return remote.New(request.New(&cfg.Request), frames, dcfg.Remote.BaseURL, dcfg.MinConfidence), nil
	case "vision":
		frames, err := frame.NewSource(dcfg.FrameDir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize frame source: %w", err)
		}
		return vision.New(dcfg.Vision, frames, dcfg.MinConfidence)
	default:
		return nil, fmt.Errorf("unknown detector provider: %q", dcfg.Provider)
	}
}
