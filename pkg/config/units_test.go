package config

import (
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"10s", 10 * time.Second, false},
		{"1m", 1 * time.Minute, false},
		{"1.5h", 90 * time.Minute, false},
		{"1d", 24 * time.Hour, false},
		{"1w", 168 * time.Hour, false},
		{"2d2h", 50 * time.Hour, false},
		{"100ms", 100 * time.Millisecond, false},
		{"1500ms", 1500 * time.Millisecond, false},
		{"", 0, false},
		{"invalid", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseDuration(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDuration(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.expected {
			t.Errorf("ParseDuration(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestDurationYAMLRoundTrip(t *testing.T) {
	type doc struct {
		Cooldown Duration `yaml:"cooldown"`
	}

	var d doc
	if err := yaml.Unmarshal([]byte("cooldown: 4s\n"), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if time.Duration(d.Cooldown) != 4*time.Second {
		t.Errorf("cooldown = %v, want 4s", time.Duration(d.Cooldown))
	}

	out, err := yaml.Marshal(&d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back doc
	if err := yaml.Unmarshal(out, &back); err != nil {
		t.Fatalf("re-unmarshal: %v", err)
	}
	if back.Cooldown != d.Cooldown {
		t.Errorf("round trip changed value: %v != %v", back.Cooldown, d.Cooldown)
	}
}

func TestDurationYAMLExtendedUnits(t *testing.T) {
	type doc struct {
		Retention Duration `yaml:"retention"`
	}

	var d doc
	if err := yaml.Unmarshal([]byte("retention: 2w\n"), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if time.Duration(d.Retention) != 2*Week {
		t.Errorf("retention = %v, want 2 weeks", time.Duration(d.Retention))
	}
}
