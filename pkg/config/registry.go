package config

// Persistent state keys (state KV table).
const (
	KeySchemaVersion = "schema_version"
	KeyLastStart     = "last_start_time"
	KeyLastStop      = "last_stop_time"
	KeyStepLength    = "step_length_cm"
	KeyDetector      = "detector_provider"
)
