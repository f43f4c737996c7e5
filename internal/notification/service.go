// Package notification pushes fresh calendar snapshots to every open session
// of a browser profile whenever that profile's stored state changes.
package notification

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/fkhayef/meetsync/internal/kvstore"
	"github.com/fkhayef/meetsync/internal/view"
)

// Actions sent to sessions
const (
	ActionSnapshot       = "snapshot"
	ActionStorageChanged = "storage_changed"
	ActionError          = "error"
)

// Renderer builds the snapshot a session shows
type Renderer interface {
	Render(ctx context.Context, v view.Viewer, eventID string) (*view.Snapshot, error)
}

// Message is what a session receives
type Message struct {
	Action   string         `json:"action"`
	EventID  string         `json:"eventId,omitempty"`
	Key      string         `json:"key,omitempty"`
	Snapshot *view.Snapshot `json:"snapshot,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Service fans storage changes out to the sessions they concern
type Service struct {
	hub      *Hub
	renderer Renderer
	backend  kvstore.Backend
	logger   *logrus.Logger
}

// NewService creates a new notification service
func NewService(hub *Hub, renderer Renderer, backend kvstore.Backend, logger *logrus.Logger) *Service {
	return &Service{hub: hub, renderer: renderer, backend: backend, logger: logger}
}

// Listen delivers every published change to the affected sessions until ctx
// is cancelled
func (s *Service) Listen(ctx context.Context) error {
	changes, cancel, err := s.backend.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case change, ok := <-changes:
			if !ok {
				return errors.New("storage change subscription closed")
			}
			s.Dispatch(ctx, change)
		}
	}
}

// Dispatch re-renders every session of the changed profile. Unrelated keys
// still trigger a render; rendering is idempotent.
func (s *Service) Dispatch(ctx context.Context, change kvstore.Change) {
	for _, c := range s.hub.Clients(change.Profile) {
		go func(c *Client) {
			ctx, cancel := context.WithTimeout(ctx, renderTimeout)
			defer cancel()
			s.refresh(ctx, c, ActionStorageChanged, change.Key)
		}(c)
	}
}

// refresh renders the session's mounted event and pushes the result. A render
// is discarded when the session moved to another event in the meantime or
// when a render started after it was already delivered.
func (s *Service) refresh(ctx context.Context, c *Client, action, key string) {
	eventID, gen, seq := c.beginRender()
	if eventID == "" {
		return
	}

	snap, err := s.renderer.Render(ctx, c.Viewer, eventID)

	msg := Message{Action: action, EventID: eventID, Key: key, Snapshot: snap}
	if err != nil {
		s.logger.WithError(err).WithField("event_id", eventID).Warn("Failed to render snapshot for session")
		msg = Message{Action: ActionError, EventID: eventID, Error: "Failed to load calendar"}
	}

	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.WithError(err).Error("Failed to encode session message")
		return
	}

	switch c.pushRender(eventID, gen, seq, data) {
	case superseded:
		s.logger.WithFields(logrus.Fields{"client_id": c.Viewer.ClientID, "event_id": eventID}).Debug("Discarding stale render")
	case dropped:
		s.hub.Unregister(c)
	}
}
