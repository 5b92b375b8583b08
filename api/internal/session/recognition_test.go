package session

import (
	"testing"

	"neuro-scan/api/internal/vision"
)

func TestRecognitionSnapshot(t *testing.T) {
	r := NewRecognition()
	if len(r.Components()) != 0 {
		t.Fatal("expected empty snapshot")
	}

	in := []vision.Component{{Name: "Arduino"}}
	r.Deliver(vision.Success(in))
	in[0].Name = "mutated"

	got := r.Components()
	if len(got) != 1 || got[0].Name != "Arduino" {
		t.Fatalf("snapshot must not alias caller data: %+v", got)
	}
	got[0].Name = "mutated"
	if r.Components()[0].Name != "Arduino" {
		t.Error("Components must return a copy")
	}

	r.Reset()
	if len(r.Components()) != 0 {
		t.Error("reset must clear snapshot")
	}

	r.Deliver(vision.Failure(vision.KindSchemaViolation, vision.MsgNoStructuredJSON, nil))
	res, at := r.Last()
	if !res.Failed() || at.IsZero() || len(r.Components()) != 0 {
		t.Errorf("unexpected state after failure: %+v", res)
	}
}
