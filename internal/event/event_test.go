package event

import (
	"encoding/json"
	"testing"
	"time"
)

func decode(t *testing.T, e Event) map[string]any {
	t.Helper()
	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	return m
}

func TestNoFaceWireShape(t *testing.T) {
	m := decode(t, New(NoFace(), ""))

	if m["type"] != "warning" || m["message"] != "no face" {
		t.Errorf("unexpected event %v", m)
	}
	if v, ok := m["location"]; !ok || v != nil {
		t.Errorf("location should be present and null, got %v", m)
	}
	if _, ok := m["id"]; ok {
		t.Errorf("unpersisted event should not carry an id: %v", m)
	}
}

func TestSuccessWireShape(t *testing.T) {
	e := New(Success{Subject: "Student #7", Score: SimilarityScore(0.8349)}, "Gate A")
	e.AlertId = 12
	e.CreatedAt = time.Date(2024, 5, 1, 9, 5, 0, 0, time.UTC)

	m := decode(t, e)
	if m["type"] != "success" || m["student"] != "Student #7" || m["location"] != "Gate A" {
		t.Errorf("unexpected event %v", m)
	}
	if m["score"] != 0.83 {
		t.Errorf("score should be rounded to 0.83, got %v", m["score"])
	}
	if m["id"] != float64(12) || m["time"] != "09:05" {
		t.Errorf("store fields missing: %v", m)
	}
}

func TestUnknownWireShape(t *testing.T) {
	m := decode(t, New(Unknown(NoScore(MetricSimilarity)), "Gate A"))

	if m["type"] != "warning" || m["student"] != "Unknown" {
		t.Errorf("unexpected event %v", m)
	}
	if v, ok := m["score"]; !ok || v != nil {
		t.Errorf("score should be present and null, got %v", m)
	}
}

func TestDescription(t *testing.T) {
	tests := []struct {
		result Result
		want   string
	}{
		{Success{Subject: "Student #1"}, "Student #1"},
		{Unknown(NoScore(MetricConfidence)), "Unknown"},
		{NoFace(), "no face"},
	}
	for _, tt := range tests {
		if got := New(tt.result, "x").Description(); got != tt.want {
			t.Errorf("Description() = %q, want %q", got, tt.want)
		}
	}
}
