package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"wayguard/pkg/config"
)

// stubStateStore is an in-memory state KV.
type stubStateStore struct {
	mu     sync.Mutex
	values map[string]string
}

func newStubStateStore() *stubStateStore {
	return &stubStateStore{values: make(map[string]string)}
}

func (s *stubStateStore) GetState(_ context.Context, key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *stubStateStore) SetState(_ context.Context, key, val string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = val
	return nil
}

func (s *stubStateStore) DeleteState(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func TestControlHandlerLifecycle(t *testing.T) {
	p := testPipeline(t)
	defer p.Stop()
	state := newStubStateStore()
	handler := NewControlHandler(context.Background(), p, state)

	post := func(t *testing.T, h http.HandlerFunc, path string) (*http.Response, ControlResponse) {
		t.Helper()
		req := httptest.NewRequest("POST", path, http.NoBody)
		w := httptest.NewRecorder()
		h(w, req)
		resp := w.Result()
		var got ControlResponse
		if resp.StatusCode == http.StatusOK {
			if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
				t.Fatalf("failed to decode JSON: %v", err)
			}
		}
		return resp, got
	}

	resp, got := post(t, handler.HandleStart, "/api/pipeline/start")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start StatusCode: got %v, want %v", resp.StatusCode, http.StatusOK)
	}
	if !got.Running {
		t.Error("running = false after start")
	}
	if raw, ok := state.GetState(context.Background(), config.KeyLastStart); !ok {
		t.Error("last start time not persisted")
	} else if _, err := time.Parse(time.RFC3339, raw); err != nil {
		t.Errorf("last start time %q not RFC3339: %v", raw, err)
	}

	// A second start conflicts with the running loop.
	resp, _ = post(t, handler.HandleStart, "/api/pipeline/start")
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second start StatusCode: got %v, want %v", resp.StatusCode, http.StatusConflict)
	}

	resp, got = post(t, handler.HandleStop, "/api/pipeline/stop")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stop StatusCode: got %v, want %v", resp.StatusCode, http.StatusOK)
	}
	if got.Running {
		t.Error("running = true after stop")
	}
	if _, ok := state.GetState(context.Background(), config.KeyLastStop); !ok {
		t.Error("last stop time not persisted")
	}

	// Stop is idempotent.
	if resp, _ := post(t, handler.HandleStop, "/api/pipeline/stop"); resp.StatusCode != http.StatusOK {
		t.Errorf("repeated stop StatusCode: got %v, want %v", resp.StatusCode, http.StatusOK)
	}
}
