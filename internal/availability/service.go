package availability

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fkhayef/meetsync/internal/event"
)

// Common errors
var (
	ErrMissingFields       = errors.New("name, a valid email and at least one time range are required")
	ErrInvalidEntry        = errors.New("every time range must end after it starts")
	ErrNotOrganizer        = errors.New("only the organizer can manage participants")
	ErrParticipantNotFound = errors.New("participant not found")
)

// EventLookup resolves events for permission and window checks
type EventLookup interface {
	GetByID(ctx context.Context, id string) (*event.Event, error)
}

// Service handles participant availability business logic
type Service struct {
	repo     *Repository
	events   EventLookup
	validate *validator.Validate
	logger   *logrus.Logger
}

// NewService creates a new availability service
func NewService(repo *Repository, events EventLookup, validate *validator.Validate, logger *logrus.Logger) *Service {
	return &Service{repo: repo, events: events, validate: validate, logger: logger}
}

// ListRecords returns every record of an event when viewerID is its organizer.
// Other viewers get nil without an error: the data is simply absent for them.
func (s *Service) ListRecords(ctx context.Context, eventID, viewerID string) ([]Record, error) {
	ev, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !ev.IsOrganizer(viewerID) {
		return nil, nil
	}
	return s.repo.ListByEvent(ctx, eventID)
}

// Submit stores a participant's availability, replacing any earlier submission
// made with the same email
func (s *Service) Submit(ctx context.Context, eventID string, req *SubmitAvailabilityRequest) (*Record, error) {
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return nil, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	entries := make([]CalendarEntry, 0, len(req.Entries))
	for _, e := range req.Entries {
		if e.IsExternalBusy {
			continue
		}
		if !e.Valid() {
			return nil, ErrInvalidEntry
		}
		entries = append(entries, e)
	}
	req.Entries = entries

	if err := s.validate.Struct(req); err != nil {
		return nil, ErrMissingFields
	}

	rec, err := s.repo.Submit(ctx, eventID, req.Name, req.Email, req.Entries)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"event_id":       eventID,
		"participant_id": rec.ParticipantID,
		"entries":        len(rec.Entries),
	}).Info("Stored availability")
	return rec, nil
}

// DeleteParticipant removes a participant and their availability. Only the
// event's organizer may do this.
func (s *Service) DeleteParticipant(ctx context.Context, eventID, viewerID, participantID string) error {
	ev, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return err
	}
	if !ev.IsOrganizer(viewerID) {
		return ErrNotOrganizer
	}
	if _, err := uuid.Parse(participantID); err != nil {
		return ErrParticipantNotFound
	}

	deleted, err := s.repo.DeleteParticipant(ctx, eventID, participantID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrParticipantNotFound
	}

	s.logger.WithFields(logrus.Fields{"event_id": eventID, "participant_id": participantID}).Info("Deleted participant")
	return nil
}
