package alert

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"facewatch/internal/event"
	"facewatch/internal/model"
)

var ErrNotFound = errors.New("alert not found")

// Store persists resolved events as security alerts.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Persist inserts ev as an active alert and returns it with the row id and
// the server-assigned creation time filled in.
func (s *Store) Persist(ctx context.Context, ev event.Event) (event.Event, error) {
	row := &model.SecurityAlert{
		AlertType:   ev.Result.Type(),
		Description: ev.Description(),
		IsActive:    true,
	}
	if ev.Location != nil {
		row.Location = *ev.Location
	}
	if err := model.AddAlert(s.db.WithContext(ctx), row); err != nil {
		return ev, fmt.Errorf("insert alert: %w", err)
	}
	ev.AlertId = row.Id
	ev.CreatedAt = row.Timestamp
	return ev, nil
}

// Create inserts an alert raised outside the pipeline, such as by an operator.
func (s *Store) Create(ctx context.Context, alertType, description, location string) (*model.SecurityAlert, error) {
	row := &model.SecurityAlert{
		AlertType:   alertType,
		Description: description,
		Location:    location,
		IsActive:    true,
	}
	if err := model.AddAlert(s.db.WithContext(ctx), row); err != nil {
		return nil, fmt.Errorf("insert alert: %w", err)
	}
	return row, nil
}

func (s *Store) ListActive(ctx context.Context, start, limit int) ([]model.SecurityAlert, int64, error) {
	return model.ListActiveAlerts(s.db.WithContext(ctx), start, limit)
}

func (s *Store) Get(ctx context.Context, id int) (*model.SecurityAlert, error) {
	a, err := model.GetAlert(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrNotFound
	}
	return a, nil
}

// Dismiss marks the alert inactive. Dismissed alerts drop out of ListActive
// but stay retrievable by id.
func (s *Store) Dismiss(ctx context.Context, id int) (*model.SecurityAlert, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := model.DeactivateAlert(s.db.WithContext(ctx), a); err != nil {
		return nil, fmt.Errorf("dismiss alert %d: %w", id, err)
	}
	return a, nil
}
