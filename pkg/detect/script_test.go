package detect

import (
	"context"
	"testing"

	"wayguard/pkg/model"
)

func TestScriptReplaysFramesInOrder(t *testing.T) {
	s := NewScript(
		[]model.Detection{{ID: "a"}},
		[]model.Detection{{ID: "b"}, {ID: "c"}},
	)

	ctx := context.Background()
	first, err := s.Detect(ctx, Tick{Seq: 1})
	if err != nil || len(first) != 1 || first[0].ID != "a" {
		t.Fatalf("frame 1 = %v, %v", first, err)
	}

	second, err := s.Detect(ctx, Tick{Seq: 2})
	if err != nil || len(second) != 2 {
		t.Fatalf("frame 2 = %v, %v", second, err)
	}

	// Exhausted scripts report nothing forever.
	for i := 0; i < 3; i++ {
		rest, err := s.Detect(ctx, Tick{Seq: uint64(3 + i)})
		if err != nil || len(rest) != 0 {
			t.Fatalf("post-script frame = %v, %v", rest, err)
		}
	}
}

func TestScriptRewind(t *testing.T) {
	s := NewScript([]model.Detection{{ID: "a"}})
	ctx := context.Background()

	if _, err := s.Detect(ctx, Tick{}); err != nil {
		t.Fatal(err)
	}
	s.Rewind()

	again, err := s.Detect(ctx, Tick{})
	if err != nil || len(again) != 1 || again[0].ID != "a" {
		t.Fatalf("after rewind = %v, %v", again, err)
	}
}

func TestScriptReturnsCopies(t *testing.T) {
	frame := []model.Detection{{ID: "a", Label: "chair"}}
	s := NewScript(frame)

	out, err := s.Detect(context.Background(), Tick{})
	if err != nil {
		t.Fatal(err)
	}
	out[0].Label = "mutated"

	s.Rewind()
	again, _ := s.Detect(context.Background(), Tick{})
	if again[0].Label != "chair" {
		t.Errorf("script frame mutated by caller: %q", again[0].Label)
	}
}
