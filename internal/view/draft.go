package view

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fkhayef/meetsync/internal/availability"
	"github.com/fkhayef/meetsync/internal/color"
	"github.com/fkhayef/meetsync/internal/draft"
	"github.com/fkhayef/meetsync/internal/event"
	"github.com/fkhayef/meetsync/internal/kvstore"
	"github.com/fkhayef/meetsync/internal/metrics"
)

func (s *Service) drafts(v Viewer) *draft.Store {
	return draft.NewStore(kvstore.Scoped(s.backend, v.ClientID), s.logger)
}

// saveDraft persists entries; a failed write is logged and the edit stays in memory
func (s *Service) saveDraft(ctx context.Context, v Viewer, eventID string, store *draft.Store, entries []availability.CalendarEntry) {
	if err := store.Save(ctx, eventID, entries); err != nil {
		s.metrics.StoreFailures.WithLabelValues("draft").Inc()
		s.logger.WithError(err).WithFields(logrus.Fields{"event_id": eventID, "client_id": v.ClientID}).Warn("Failed to persist draft, keeping it in memory")
	}
}

// Draft returns the viewer's draft for an event
func (s *Service) Draft(ctx context.Context, v Viewer, eventID string) (draft.Draft, error) {
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return draft.Draft{}, err
	}
	return s.drafts(v).LoadDraft(ctx, eventID), nil
}

// AddRange appends a new range to the viewer's draft
func (s *Service) AddRange(ctx context.Context, v Viewer, eventID string, start, end time.Time) ([]availability.CalendarEntry, error) {
	unlock := s.lock(v, eventID)
	defer unlock()

	ev, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	store := s.drafts(v)
	entries, _, err := draft.AddRange(store.Load(ctx, eventID), start, end)
	if err != nil {
		return nil, err
	}
	if !ev.Contains(start, end) {
		return nil, ErrOutsideWindow
	}

	s.saveDraft(ctx, v, eventID, store, entries)
	return entries, nil
}

// RemoveRange drops a range from the viewer's draft. Unknown ids are ignored.
func (s *Service) RemoveRange(ctx context.Context, v Viewer, eventID, entryID string) ([]availability.CalendarEntry, error) {
	unlock := s.lock(v, eventID)
	defer unlock()

	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return nil, err
	}

	store := s.drafts(v)
	entries := draft.RemoveByID(store.Load(ctx, eventID), entryID)
	s.saveDraft(ctx, v, eventID, store, entries)
	return entries, nil
}

// ResizeRange moves a range of the viewer's draft to new bounds
func (s *Service) ResizeRange(ctx context.Context, v Viewer, eventID, entryID string, start, end time.Time) ([]availability.CalendarEntry, error) {
	unlock := s.lock(v, eventID)
	defer unlock()

	ev, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	store := s.drafts(v)
	entries, err := draft.Resize(store.Load(ctx, eventID), entryID, start, end)
	if err != nil {
		return nil, err
	}
	if !ev.Contains(start, end) {
		return nil, ErrOutsideWindow
	}

	s.saveDraft(ctx, v, eventID, store, entries)
	return entries, nil
}

// ReplaceDraft overwrites the viewer's draft entries. Entries without an id
// get one; feed entries are dropped.
func (s *Service) ReplaceDraft(ctx context.Context, v Viewer, eventID string, entries []availability.CalendarEntry) ([]availability.CalendarEntry, error) {
	unlock := s.lock(v, eventID)
	defer unlock()

	ev, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	out, err := ownEntries(ev, entries)
	if err != nil {
		return nil, err
	}

	s.saveDraft(ctx, v, eventID, s.drafts(v), out)
	return out, nil
}

// ClearDraft empties the viewer's draft entries, keeping the remembered identity
func (s *Service) ClearDraft(ctx context.Context, v Viewer, eventID string) error {
	unlock := s.lock(v, eventID)
	defer unlock()

	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return err
	}

	s.saveDraft(ctx, v, eventID, s.drafts(v), []availability.CalendarEntry{})
	return nil
}

func ownEntries(ev *event.Event, entries []availability.CalendarEntry) ([]availability.CalendarEntry, error) {
	out := make([]availability.CalendarEntry, 0, len(entries))
	for _, e := range entries {
		if e.IsExternalBusy {
			continue
		}
		if !e.Valid() {
			return nil, draft.ErrInvalidRange
		}
		if !ev.Contains(e.Start, e.End) {
			return nil, ErrOutsideWindow
		}
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.Title == "" {
			e.Title = draft.DefaultTitle
		}
		if e.Color == nil {
			style := color.Draft
			e.Color = &style
		}
		out = append(out, e)
	}
	return out, nil
}

// Submit validates the viewer's draft, titles it with their identity and
// hands it to the participant store. On success the identity and finalized
// entries are remembered; on failure the draft is left as it was.
func (s *Service) Submit(ctx context.Context, v Viewer, eventID, name, email string) (*availability.Record, error) {
	unlock := s.lock(v, eventID)
	defer unlock()

	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return nil, err
	}

	store := s.drafts(v)
	entries := store.Load(ctx, eventID)
	if err := draft.ValidateSubmission(name, email, entries); err != nil {
		s.metrics.Submissions.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return nil, err
	}

	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	final := draft.Finalize(entries, name, email)

	rec, err := s.participants.Submit(ctx, eventID, &availability.SubmitAvailabilityRequest{
		Name:    name,
		Email:   email,
		Entries: final,
	})
	if err != nil {
		s.metrics.Submissions.WithLabelValues(metrics.OutcomeFailed).Inc()
		s.logger.WithError(err).WithField("event_id", eventID).Error("Failed to submit availability")
		return nil, submitError(err)
	}

	if err := store.SaveDraft(ctx, eventID, draft.Draft{Name: name, Email: email, Entries: final}); err != nil {
		s.metrics.StoreFailures.WithLabelValues("draft").Inc()
		s.logger.WithError(err).WithField("event_id", eventID).Warn("Failed to remember submitted identity")
	}

	s.metrics.Submissions.WithLabelValues(metrics.OutcomeOK).Inc()
	return rec, nil
}

// submitError keeps the participant store's own messages and hides internal ones
func submitError(err error) error {
	switch {
	case errors.Is(err, event.ErrEventNotFound),
		errors.Is(err, availability.ErrMissingFields),
		errors.Is(err, availability.ErrInvalidEntry):
		return err
	default:
		return ErrSubmitFailed
	}
}
