// Package vision implements a detector that asks a multimodal model what
// it sees in the newest camera frame. The model is prompted for strict
// JSON; anything else in the response is a contract violation.
package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/genai"

	"wayguard/pkg/config"
	"wayguard/pkg/detect"
	"wayguard/pkg/frame"
	"wayguard/pkg/model"
)

// visionPrompt asks for obstacle detections in the exact wire shape the
// parser expects. Kept strict: prose in the response breaks parsing.
const visionPrompt = `You are the vision system of a walking-assistance device for a blind
pedestrian. Analyze the attached camera frame, taken at chest height
facing the direction of walking. List every physical object the walker
could collide with.

Respond with JSON only, no prose, exactly in this shape:
{"detections":[{"label":"person","confidence":0.93,"center_x":0.41,"center_y":0.55,"width":0.18,"height":0.62,"distance_m":2.5}]}

Rules:
- center_x, center_y, width, height are normalized to [0,1] relative to the frame.
- distance_m is your best estimate in meters from the camera to the object.
- confidence is your certainty in [0,1] that the object is really there.
- Use short lowercase labels like "person", "bicycle", "trash can".
- Return {"detections":[]} when nothing is in the walker's path.`

type wireDetection struct {
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

// Detector sends frames to Gemini and parses the structured response.
type Detector struct {
	frames        *frame.Source
	modelName     string
	minConfidence float64
	logger        *slog.Logger

	mu          sync.RWMutex
	genaiClient *genai.Client
}

// New creates a vision Detector. The API key is required; model falls back
// to a sensible default when unset.
func New(cfg config.VisionConfig, frames *frame.Source, minConfidence float64) (*Detector, error) {
	if cfg.Key == "" {
		return nil, fmt.Errorf("vision detector requires an API key")
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = "gemini-2.5-flash-lite"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.Key,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Detector{
		frames:        frames,
		modelName:     modelName,
		minConfidence: minConfidence,
		logger:        slog.With("component", "detect_vision"),
		genaiClient:   client,
	}, nil
}

// Detect analyzes the newest unseen frame. No new frame means an empty
// tick, same as the remote detector.
func (d *Detector) Detect(ctx context.Context, tick detect.Tick) ([]model.Detection, error) {
	d.mu.RLock()
	client := d.genaiClient
	d.mu.RUnlock()

	if client == nil {
		return nil, fmt.Errorf("vision detector closed")
	}

	f, ok := d.frames.Latest()
	if !ok {
		return nil, nil
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(f.Data, f.MimeType()),
			genai.NewPartFromText(visionPrompt),
		}, genai.RoleUser),
	}
	genCfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	resp, err := client.Models.GenerateContent(ctx, d.modelName, contents, genCfg)
	if err != nil {
		// Quota and network trouble are transient; skip the tick.
		return nil, fmt.Errorf("%w: %v", detect.ErrUnavailable, err)
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}

	dets, err := parseDetections(text, tick)
	if err != nil {
		return nil, err
	}

	d.logger.Debug("frame analyzed", "frame", f.Path, "seq", tick.Seq, "objects", len(dets))
	return detect.FilterConfidence(dets, d.minConfidence), nil
}

// Validate checks that the configured model exists for this API key. Used
// as a startup probe; generation still works without it, so callers treat
// a failure as a warning.
func (d *Detector) Validate(ctx context.Context) error {
	d.mu.RLock()
	client := d.genaiClient
	d.mu.RUnlock()

	if client == nil {
		return fmt.Errorf("vision detector closed")
	}

	name := d.modelName
	if !strings.HasPrefix(name, "models/") {
		name = "models/" + name
	}

	if _, err := client.Models.Get(ctx, name, nil); err == nil {
		return nil
	}

	// The model lookup failed; list what this key can actually use so the
	// startup log tells the user how to fix their config.
	iter, listErr := client.Models.List(ctx, nil)
	if listErr != nil {
		return fmt.Errorf("model %q not found and listing failed: %w", d.modelName, listErr)
	}

	var available []string
	for {
		m, nextErr := iter.Next(ctx)
		if nextErr == iterator.Done {
			break
		}
		if nextErr != nil {
			break
		}
		if strings.Contains(strings.ToLower(m.Name), "gemini") {
			available = append(available, m.Name)
		}
	}

	return fmt.Errorf("model %q not available for this key (usable: %s)",
		d.modelName, strings.Join(available, ", "))
}

// Close releases the client. Subsequent Detect calls fail.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.genaiClient = nil
	return nil
}

// parseDetections turns the model's JSON text into detections. Markdown
// code fences are tolerated; models add them despite the MIME type hint.
func parseDetections(text string, tick detect.Tick) ([]model.Detection, error) {
	cleaned := cleanJSONBlock(text)

	var resp wireResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal detection response: %w. Response: %s", err, cleaned)
	}

	dets := make([]model.Detection, 0, len(resp.Detections))
	for _, w := range resp.Detections {
		if w.Label == "" {
			continue
		}
		dets = append(dets, model.Detection{
			ID:         uuid.New().String(),
			Label:      strings.ToLower(w.Label),
			Confidence: w.Confidence,
			CenterX:    w.CenterX,
			CenterY:    w.CenterY,
			Width:      w.Width,
			Height:     w.Height,
			DistanceM:  w.DistanceM,
			Time:       tick.Time,
		})
	}
	return dets, nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String(), nil
}

// cleanJSONBlock removes markdown code fences from a JSON response if
// present, including any prose around the fenced block.
func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)

	start := strings.Index(text, "```json")
	if start != -1 {
		text = text[start+len("```json"):]
		if end := strings.LastIndex(text, "```"); end != -1 {
			text = text[:end]
		}
		return strings.TrimSpace(text)
	}

	start = strings.Index(text, "```")
	if start != -1 {
		text = text[start+len("```"):]
		if end := strings.LastIndex(text, "```"); end != -1 {
			text = text[:end]
		}
		return strings.TrimSpace(text)
	}

	return strings.TrimSpace(text)
}
