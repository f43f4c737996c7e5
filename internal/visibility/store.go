package visibility

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/fkhayef/meetsync/internal/kvstore"
)

// Key is the logical storage key of an event's selection
func Key(eventID string) string {
	return "checked-state-" + eventID
}

// Store persists State through a profile-scoped kvstore
type Store struct {
	kv     kvstore.Store
	logger *logrus.Logger
}

// NewStore creates a new visibility store
func NewStore(kv kvstore.Store, logger *logrus.Logger) *Store {
	return &Store{kv: kv, logger: logger}
}

// Load reads the persisted selection. Absence and read or decode failures all
// yield an empty state; failures are logged.
func (s *Store) Load(ctx context.Context, eventID string) State {
	raw, ok, err := s.kv.Get(ctx, Key(eventID))
	if err != nil {
		s.logger.WithError(err).WithField("event_id", eventID).Warn("Failed to load visibility state, continuing in memory")
		return State{}
	}
	if !ok || len(raw) == 0 {
		return State{}
	}

	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		s.logger.WithError(err).WithField("event_id", eventID).Warn("Discarding unreadable visibility state")
		return State{}
	}
	if state == nil {
		state = State{}
	}
	return state
}

// Save overwrites the persisted selection
func (s *Store) Save(ctx context.Context, eventID string, state State) error {
	if state == nil {
		state = State{}
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode visibility state: %w", err)
	}
	if err := s.kv.Set(ctx, Key(eventID), raw); err != nil {
		return fmt.Errorf("failed to save visibility state: %w", err)
	}
	return nil
}

// Reconcile appends every current participant missing from loaded as checked
// and persists the result when it changed. Persistence failures are logged and
// the merged state is still returned.
func (s *Store) Reconcile(ctx context.Context, eventID string, participantIDs []string, loaded State) State {
	merged := Merge(loaded, participantIDs)

	// an unchanged state is not rewritten, otherwise every write signal would
	// trigger another reconcile and another write
	if len(merged) == 0 || merged.Equal(loaded) {
		return merged
	}

	if err := s.Save(ctx, eventID, merged); err != nil {
		s.logger.WithError(err).WithField("event_id", eventID).Warn("Failed to persist reconciled visibility state")
	}
	return merged
}
