package event

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Common errors
var (
	ErrEventNotFound  = errors.New("event not found")
	ErrInvalidWindow  = errors.New("event must end after it starts")
	ErrInvalidRequest = errors.New("event name, start time and end time are required")
)

// Service handles event business logic
type Service struct {
	repo     *Repository
	validate *validator.Validate
	logger   *logrus.Logger
}

// NewService creates a new event service
func NewService(repo *Repository, validate *validator.Validate, logger *logrus.Logger) *Service {
	return &Service{repo: repo, validate: validate, logger: logger}
}

// Create creates a new event owned by organizer
func (s *Service) Create(ctx context.Context, organizer string, req *CreateEventRequest) (*Event, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validate.Struct(req); err != nil {
		return nil, ErrInvalidRequest
	}
	if !req.EndTime.After(req.StartTime) {
		return nil, ErrInvalidWindow
	}

	event, err := s.repo.Create(ctx, organizer, req)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"event_id": event.ID, "organizer": organizer}).Info("Created event")
	return event, nil
}

// GetByID retrieves an event by its ID
func (s *Service) GetByID(ctx context.Context, id string) (*Event, error) {
	// ids are UUIDs; anything else cannot exist and would only make Postgres complain
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrEventNotFound
	}

	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, ErrEventNotFound
	}
	return event, nil
}

// ListByOrganizer retrieves the events an organizer owns
func (s *Service) ListByOrganizer(ctx context.Context, organizer string, page, perPage int) ([]*Event, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	offset := (page - 1) * perPage
	return s.repo.ListByOrganizer(ctx, organizer, perPage, offset)
}
