package draft

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/fkhayef/meetsync/internal/availability"
	"github.com/fkhayef/meetsync/internal/kvstore"
)

// Key is the logical storage key of an event's draft
func Key(eventID string) string {
	return "availability-" + eventID
}

// Store persists drafts through a profile-scoped kvstore
type Store struct {
	kv     kvstore.Store
	logger *logrus.Logger
}

// NewStore creates a new draft store
func NewStore(kv kvstore.Store, logger *logrus.Logger) *Store {
	return &Store{kv: kv, logger: logger}
}

// LoadDraft reads the whole draft. Absence and read or decode failures yield
// an empty draft; failures are logged.
func (s *Store) LoadDraft(ctx context.Context, eventID string) Draft {
	empty := Draft{Entries: []availability.CalendarEntry{}}

	raw, ok, err := s.kv.Get(ctx, Key(eventID))
	if err != nil {
		s.logger.WithError(err).WithField("event_id", eventID).Warn("Failed to load draft, starting empty")
		return empty
	}
	if !ok || len(raw) == 0 {
		return empty
	}

	var d Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		s.logger.WithError(err).WithField("event_id", eventID).Warn("Discarding unreadable draft")
		return empty
	}
	if d.Entries == nil {
		d.Entries = []availability.CalendarEntry{}
	}
	return d
}

// Load returns the draft entries for an event, never nil
func (s *Store) Load(ctx context.Context, eventID string) []availability.CalendarEntry {
	return s.LoadDraft(ctx, eventID).Entries
}

// SaveDraft overwrites the whole draft
func (s *Store) SaveDraft(ctx context.Context, eventID string, d Draft) error {
	if d.Entries == nil {
		d.Entries = []availability.CalendarEntry{}
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode draft: %w", err)
	}
	if err := s.kv.Set(ctx, Key(eventID), raw); err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

// Save overwrites the draft entries, keeping the remembered identity
func (s *Store) Save(ctx context.Context, eventID string, entries []availability.CalendarEntry) error {
	d := s.LoadDraft(ctx, eventID)
	d.Entries = entries
	return s.SaveDraft(ctx, eventID, d)
}

// Clear forgets the draft entirely
func (s *Store) Clear(ctx context.Context, eventID string) error {
	if err := s.kv.Delete(ctx, Key(eventID)); err != nil {
		return fmt.Errorf("failed to clear draft: %w", err)
	}
	return nil
}
