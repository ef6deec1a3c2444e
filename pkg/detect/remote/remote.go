// Package remote implements a detector backed by an external detection
// service. The newest camera frame is posted to the service; the response
// lists the objects it found. Wayguard stays model-agnostic: whatever
// network the service runs, the wire contract below is all that couples us.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"wayguard/pkg/detect"
	"wayguard/pkg/frame"
	"wayguard/pkg/model"
	"wayguard/pkg/request"
)

// wireDetection is one object in the service response. Geometry is
// normalized image space, matching model.Detection.
type wireDetection struct {
	ID         string  `json:"id"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	CenterX    float64 `json:"center_x"`
	CenterY    float64 `json:"center_y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	DistanceM  float64 `json:"distance_m"`
}

type wireResponse struct {
	Detections []wireDetection `json:"detections"`
}

// Detector posts frames to a remote detection backend.
type Detector struct {
	client        *request.Client
	frames        *frame.Source
	baseURL       string
	minConfidence float64
	logger        *slog.Logger
}

// New creates a remote Detector. baseURL is the service root; the detect
// endpoint is derived from it.
func New(client *request.Client, frames *frame.Source, baseURL string, minConfidence float64) *Detector {
	return &Detector{
		client:        client,
		frames:        frames,
		baseURL:       strings.TrimRight(baseURL, "/"),
		minConfidence: minConfidence,
		logger:        slog.With("component", "detect_remote"),
	}
}

// Detect posts the newest unseen frame and parses the response. No new
// frame means an empty tick, not an error: the camera simply hasn't
// produced anything since the last cycle.
func (d *Detector) Detect(ctx context.Context, tick detect.Tick) ([]model.Detection, error) {
	f, ok := d.frames.Latest()
	if !ok {
		return nil, nil
	}

	body, err := d.client.Post(ctx, d.baseURL+"/v1/detect", f.Data, f.MimeType())
	if err != nil {
		// The backend being down is steady-state for a wearable on the
		// move; report unavailable and let the pipeline skip the tick.
		return nil, fmt.Errorf("%w: %v", detect.ErrUnavailable, err)
	}

	var resp wireResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("malformed detection response: %w", err)
	}

	dets := make([]model.Detection, 0, len(resp.Detections))
	for _, w := range resp.Detections {
		id := w.ID
		if id == "" {
			id = uuid.New().String()
		}
		dets = append(dets, model.Detection{
			ID:         id,
			Label:      w.Label,
			Confidence: w.Confidence,
			CenterX:    w.CenterX,
			CenterY:    w.CenterY,
			Width:      w.Width,
			Height:     w.Height,
			DistanceM:  w.DistanceM,
			Time:       tick.Time,
		})
	}

	d.logger.Debug("frame analyzed", "frame", f.Path, "seq", tick.Seq, "objects", len(dets))
	return detect.FilterConfidence(dets, d.minConfidence), nil
}

// Close is a no-op; the HTTP client is shared and outlives the detector.
func (d *Detector) Close() error { return nil }
