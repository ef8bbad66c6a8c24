package alert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"testing"

	"facewatch/internal/event"
	"facewatch/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := model.InitDB(model.DBConfig{Driver: "sqlite", DSN: fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { model.CloseDB(db) })
	if err := model.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewStore(db)
}

func TestPersistRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ev := event.New(event.Success{Subject: "Student #3", Score: event.SimilarityScore(0.912)}, "Gate A")
	saved, err := s.Persist(ctx, ev)
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	if saved.AlertId <= 0 {
		t.Fatalf("expected positive id, got %d", saved.AlertId)
	}
	if !regexp.MustCompile(`^\d{2}:\d{2}$`).MatchString(saved.Time()) {
		t.Errorf("time should be HH:MM, got %q", saved.Time())
	}

	row, err := s.Get(ctx, saved.AlertId)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if row.AlertType != event.TypeSuccess || row.Description != "Student #3" || row.Location != "Gate A" || !row.IsActive {
		t.Errorf("unexpected row %+v", row)
	}

	var wire map[string]any
	b, _ := json.Marshal(saved)
	if err := json.Unmarshal(b, &wire); err != nil {
		t.Fatal(err)
	}
	if wire["id"] != float64(saved.AlertId) || wire["student"] != "Student #3" {
		t.Errorf("unexpected wire form %s", b)
	}
}

func TestPersistWarningDescription(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	unknown, err := s.Persist(ctx, event.New(event.Unknown(event.NoScore(event.MetricSimilarity)), ""))
	if err != nil {
		t.Fatal(err)
	}
	row, err := s.Get(ctx, unknown.AlertId)
	if err != nil {
		t.Fatal(err)
	}
	if row.AlertType != event.TypeWarning || row.Description != event.UnknownSubject || row.Location != "" {
		t.Errorf("unexpected row %+v", row)
	}
	if unknown.Location != nil {
		t.Error("location should stay null")
	}
}

func TestDismiss(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var ids []int
	for i := 0; i < 3; i++ {
		ev, err := s.Persist(ctx, event.New(event.Unknown(event.NoScore(event.MetricConfidence)), "Lab"))
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, ev.AlertId)
	}

	if _, err := s.Dismiss(ctx, ids[1]); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	active, total, err := s.ListActive(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(active) != 2 {
		t.Fatalf("expected 2 active alerts, got %d (%d)", len(active), total)
	}
	for _, a := range active {
		if a.Id == ids[1] {
			t.Error("dismissed alert still listed")
		}
	}

	row, err := s.Get(ctx, ids[1])
	if err != nil || row.IsActive {
		t.Errorf("dismissed alert should remain retrievable and inactive: %+v, %v", row, err)
	}

	if _, err := s.Dismiss(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
