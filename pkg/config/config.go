package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"wayguard/pkg/geometry"
)

// ErrInvalid marks configuration validation failures. Pipeline construction
// fails on these; nothing is silently clamped.
var ErrInvalid = errors.New("invalid configuration")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Config holds the application configuration.
type Config struct {
	Log        LogConfig        `yaml:"log"`
	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	Request    RequestConfig    `yaml:"request"`
	Detector   DetectorConfig   `yaml:"detector"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Actuate    ActuateConfig    `yaml:"actuate"`
	Categories CategoriesConfig `yaml:"categories"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Path    string `yaml:"path"`
	Level   string `yaml:"level"`
	Capture int    `yaml:"capture"` // in-memory lines kept for the log tail endpoint
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// StoreConfig holds alert history persistence settings.
type StoreConfig struct {
	Path      string   `yaml:"path"`
	Retention Duration `yaml:"retention"` // alerts older than this are pruned
}

// RequestConfig holds HTTP request settings for remote detectors.
type RequestConfig struct {
	Retries int           `yaml:"retries"`
	Timeout Duration      `yaml:"timeout"`
	Backoff BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds exponential backoff settings.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

// DetectorConfig selects and configures the detection source.
type DetectorConfig struct {
	Provider string `yaml:"provider"` // "simwalk", "remote", "vision"

	// Observations below this confidence are discarded at the source,
	// before they ever reach the pipeline.
	MinConfidence float64 `yaml:"min_confidence"`

	// Directory an external camera process drops frames into. Consumed by
	// the remote and vision providers.
	FrameDir string `yaml:"frame_dir"`

	SimWalk SimWalkConfig `yaml:"simwalk"`
	Remote  RemoteConfig  `yaml:"remote"`
	Vision  VisionConfig  `yaml:"vision"`
}

// SimWalkConfig holds settings for the simulated walk detector.
type SimWalkConfig struct {
	Seed       int64   `yaml:"seed"`       // 0 seeds from the wall clock
	WalkSpeed  float64 `yaml:"walk_speed"` // user's walking speed in m/s
	MaxObjects int     `yaml:"max_objects"`
}

// RemoteConfig holds settings for the remote detection backend.
type RemoteConfig struct {
	BaseURL string `yaml:"base_url"`
}

// VisionConfig holds settings for the model-backed detector.
type VisionConfig struct {
	Model string `yaml:"model"`
	Key   string `yaml:"key"` // API key; falls back to GEMINI_API_KEY
}

// PipelineConfig holds the alert pipeline tuning. Defaults match observed
// field behavior; Validate rejects values outside working ranges.
type PipelineConfig struct {
	TickPeriod Duration `yaml:"tick_period"`

	StepLengthCM float64 `yaml:"step_length_cm"`

	// Stage thresholds, all in normalized image units unless noted.
	CenterFOV         float64 `yaml:"center_fov"`         // half-width around x=0.5
	MovementThreshold float64 `yaml:"movement_threshold"` // displacement above which an object is moving
	PositionChange    float64 `yaml:"position_change"`    // x drift that overrides an active cooldown
	ClusterStepGap    float64 `yaml:"cluster_step_gap"`   // steps
	ClusterXGap       float64 `yaml:"cluster_x_gap"`

	Cooldown   Duration `yaml:"cooldown"`
	TrackDepth int      `yaml:"track_depth"` // history entries kept per track key

	// Garbage collection of stale state.
	GCInterval     int      `yaml:"gc_interval"` // ticks between GC passes
	TrackMaxAge    Duration `yaml:"track_max_age"`
	CooldownMaxAge Duration `yaml:"cooldown_max_age"`
}

// ActuateConfig holds alert consumer settings.
type ActuateConfig struct {
	Chime  ChimeConfig  `yaml:"chime"`
	Speech SpeechConfig `yaml:"speech"`
	Haptic HapticConfig `yaml:"haptic"`
}

// ChimeConfig holds settings for the audio chime sink.
type ChimeConfig struct {
	Enabled bool    `yaml:"enabled"`
	Volume  float64 `yaml:"volume"` // powers of two; 0 is unity, -1 is half amplitude
}

// SpeechConfig holds settings for the speech command sink.
type SpeechConfig struct {
	// Command template invoked per announcement, e.g.
	// "espeak-ng -s 165 {message}". Empty disables speech.
	Command string `yaml:"command"`
}

// HapticConfig holds settings for the serial haptic sink.
type HapticConfig struct {
	Port string `yaml:"port"` // e.g. /dev/ttyUSB0; empty disables haptics
	Baud int    `yaml:"baud"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Path:    "./logs/wayguard.log",
			Level:   "INFO",
			Capture: 200,
		},
		Server: ServerConfig{
			Address: "localhost:2710",
		},
		Store: StoreConfig{
			Path:      "./data/wayguard.db",
			Retention: Duration(14 * Day),
		},
		Request: RequestConfig{
			Retries: 3,
			Timeout: Duration(10 * time.Second),
			Backoff: BackoffConfig{
				BaseDelay: Duration(500 * time.Millisecond),
				MaxDelay:  Duration(5 * time.Second),
			},
		},
		Detector: DetectorConfig{
			Provider:      "simwalk",
			MinConfidence: 0.4,
			FrameDir:      "./data/frames",
			SimWalk: SimWalkConfig{
				Seed:       0,
				WalkSpeed:  1.2,
				MaxObjects: 4,
			},
			Remote: RemoteConfig{
				BaseURL: "",
			},
			Vision: VisionConfig{
				Model: "gemini-2.5-flash-lite",
				Key:   "",
			},
		},
		Pipeline: PipelineConfig{
			TickPeriod:        Duration(1500 * time.Millisecond),
			StepLengthCM:      70,
			CenterFOV:         0.25,
			MovementThreshold: 0.05,
			PositionChange:    0.15,
			ClusterStepGap:    0.8,
			ClusterXGap:       0.2,
			Cooldown:          Duration(4 * time.Second),
			TrackDepth:        5,
			GCInterval:        20,
			TrackMaxAge:       Duration(10 * time.Second),
			CooldownMaxAge:    Duration(30 * time.Second),
		},
		Actuate: ActuateConfig{
			Chime: ChimeConfig{
				Enabled: true,
				Volume:  0,
			},
			Speech: SpeechConfig{
				Command: "",
			},
			Haptic: HapticConfig{
				Port: "",
				Baud: 115200,
			},
		},
		Categories: DefaultCategories(),
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// If the file exists, it merges defaults with existing values but does NOT
// save back to disk, to preserve user formatting and comments.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else {
		if err := Save(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to save config file: %w", err)
		}
	}

	// Environment fallbacks; never saved back to disk.
	if cfg.Detector.Vision.Key == "" {
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			cfg.Detector.Vision.Key = key
		}
	}
	if cfg.Detector.Remote.BaseURL == "" {
		if url := os.Getenv("WAYGUARD_DETECT_URL"); url != "" {
			cfg.Detector.Remote.BaseURL = url
		}
	}

	cfg.Categories.buildLookup()

	return cfg, nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Wayguard Configuration
# ----------------------
# Durations accept ns, us, ms, s, m, h, d (day), w (week).
# Positions and thresholds are in normalized image units [0,1] unless noted.

`)
	data = append(header, data...)

	// Inject comments for enum fields.
	reProvider := regexp.MustCompile(`(?m)^(\s+)provider:`)
	data = reProvider.ReplaceAll(data, []byte("${1}# Options: simwalk, remote, vision\n${1}provider:"))

	reLevel := regexp.MustCompile(`(?m)^(\s+)level:`)
	data = reLevel.ReplaceAll(data, []byte("${1}# Options: DEBUG, INFO, WARN, ERROR\n${1}level:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}

// Validate checks the whole configuration. The pipeline and detector
// sections are also validated individually by their consumers.
func (c *Config) Validate() error {
	return errors.Join(
		c.Pipeline.Validate(),
		c.Detector.Validate(),
		c.Categories.Validate(),
	)
}

// Validate enforces the working ranges of the pipeline tuning.
func (p *PipelineConfig) Validate() error {
	var errs []error

	if err := geometry.ValidateStepLength(p.StepLengthCM); err != nil {
		errs = append(errs, invalidf("step_length_cm: %v", err))
	}
	if p.CenterFOV <= 0 || p.CenterFOV > 0.5 {
		errs = append(errs, invalidf("center_fov must be in (0, 0.5], got %v", p.CenterFOV))
	}
	if p.MovementThreshold <= 0 {
		errs = append(errs, invalidf("movement_threshold must be positive, got %v", p.MovementThreshold))
	}
	if p.PositionChange <= 0 {
		errs = append(errs, invalidf("position_change must be positive, got %v", p.PositionChange))
	}
	if p.ClusterStepGap < 0 {
		errs = append(errs, invalidf("cluster_step_gap must not be negative, got %v", p.ClusterStepGap))
	}
	if p.ClusterXGap < 0 || p.ClusterXGap > 1 {
		errs = append(errs, invalidf("cluster_x_gap must be in [0, 1], got %v", p.ClusterXGap))
	}
	if p.Cooldown <= 0 {
		errs = append(errs, invalidf("cooldown must be positive, got %v", time.Duration(p.Cooldown)))
	}
	if d := time.Duration(p.TickPeriod); d < 200*time.Millisecond || d > 10*time.Second {
		errs = append(errs, invalidf("tick_period must be between 200ms and 10s, got %v", d))
	}
	if p.TrackDepth < 2 {
		errs = append(errs, invalidf("track_depth must be at least 2, got %d", p.TrackDepth))
	}
	if p.GCInterval < 1 {
		errs = append(errs, invalidf("gc_interval must be at least 1 tick, got %d", p.GCInterval))
	}
	if p.TrackMaxAge <= 0 {
		errs = append(errs, invalidf("track_max_age must be positive, got %v", time.Duration(p.TrackMaxAge)))
	}
	if p.CooldownMaxAge <= 0 {
		errs = append(errs, invalidf("cooldown_max_age must be positive, got %v", time.Duration(p.CooldownMaxAge)))
	}

	return errors.Join(errs...)
}

// KnownProvider reports whether name is a valid detector provider.
func KnownProvider(name string) bool {
	switch name {
	case "simwalk", "remote", "vision":
		return true
	}
	return false
}

// Validate checks the detector selection and its provider settings.
func (d *DetectorConfig) Validate() error {
	var errs []error

	if !KnownProvider(d.Provider) {
		errs = append(errs, invalidf("detector provider must be simwalk, remote or vision, got %q", d.Provider))
	}
	if d.MinConfidence < 0 || d.MinConfidence > 1 {
		errs = append(errs, invalidf("min_confidence must be in [0, 1], got %v", d.MinConfidence))
	}
	if d.Provider == "remote" && d.Remote.BaseURL == "" {
		errs = append(errs, invalidf("remote detector requires base_url (or WAYGUARD_DETECT_URL)"))
	}
	if d.Provider == "vision" && d.Vision.Key == "" {
		errs = append(errs, invalidf("vision detector requires an API key (or GEMINI_API_KEY)"))
	}
	if d.SimWalk.WalkSpeed <= 0 {
		errs = append(errs, invalidf("simwalk walk_speed must be positive, got %v", d.SimWalk.WalkSpeed))
	}
	if d.SimWalk.MaxObjects < 1 {
		errs = append(errs, invalidf("simwalk max_objects must be at least 1, got %d", d.SimWalk.MaxObjects))
	}

	return errors.Join(errs...)
}
