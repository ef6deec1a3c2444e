package actuate

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"wayguard/pkg/model"
)

func TestBuildCommand(t *testing.T) {
	tests := []struct {
		name     string
		template string
		message  string
		want     []string
	}{
		{
			name:     "placeholder as own argument",
			template: "espeak-ng -s 165 {message}",
			message:  "person ahead, 3 steps",
			want:     []string{"espeak-ng", "-s", "165", "person ahead, 3 steps"},
		},
		{
			name:     "placeholder embedded in argument",
			template: "say --text={message}",
			message:  "stop",
			want:     []string{"say", "--text=stop"},
		},
		{
			name:     "no placeholder appends message",
			template: "say",
			message:  "chair to your left",
			want:     []string{"say", "chair to your left"},
		},
		{
			name:     "empty template",
			template: "",
			message:  "anything",
			want:     nil,
		},
		{
			name:     "whitespace-only template",
			template: "   ",
			message:  "anything",
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildCommand(tt.template, tt.message)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("buildCommand() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSpeechSkipsSilentAlerts(t *testing.T) {
	s := NewSpeech("espeak-ng {message}")

	alerts := []model.Alert{
		{ID: "a1", Message: "chair ahead", Announce: false},
		{ID: "a2", Message: "", Announce: true},
	}
	for _, a := range alerts {
		if err := s.Deliver(context.Background(), a); err != nil {
			t.Fatalf("Deliver(%s): %v", a.ID, err)
		}
	}
	if s.Busy() {
		t.Error("Busy() = true after silent alerts, want false")
	}
}

func TestSpeechSkipsWhileSpeaking(t *testing.T) {
	s := NewSpeech("espeak-ng {message}")
	s.speaking.Store(true)

	a := model.Alert{ID: "a1", Message: "person ahead", Announce: true}
	if err := s.Deliver(context.Background(), a); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if !s.Busy() {
		t.Error("Busy() = false, want the original announcement still marked in flight")
	}
}

func TestSpeechName(t *testing.T) {
	if got := NewSpeech("say").Name(); got != "speech" {
		t.Errorf("Name() = %q, want %q", got, "speech")
	}
}
