// Package view assembles what one browser profile sees on an event's calendar
// page: the participant roster with its visibility selection, the visible
// availability, the viewer's own draft and busy time from their calendar feed.
package view

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fkhayef/meetsync/internal/availability"
	"github.com/fkhayef/meetsync/internal/draft"
	"github.com/fkhayef/meetsync/internal/event"
	"github.com/fkhayef/meetsync/internal/kvstore"
	"github.com/fkhayef/meetsync/internal/metrics"
	"github.com/fkhayef/meetsync/internal/visibility"
)

// Notices shown alongside a snapshot
const (
	NoticeLoadFailed   = "Failed to load participant availability"
	NoticeDeleteFailed = "Failed to delete participant"
)

const defaultDeleteTimeout = 10 * time.Second

// Common errors
var (
	ErrOutsideWindow = errors.New("time range must lie within the event's window")
	ErrSubmitFailed  = errors.New("An unexpected error occurred. Please try again.")
)

// Events resolves events
type Events interface {
	GetByID(ctx context.Context, id string) (*event.Event, error)
}

// Participants is the participant data collaborator
type Participants interface {
	ListRecords(ctx context.Context, eventID, viewerID string) ([]availability.Record, error)
	Submit(ctx context.Context, eventID string, req *availability.SubmitAvailabilityRequest) (*availability.Record, error)
	DeleteParticipant(ctx context.Context, eventID, viewerID, participantID string) error
}

// BusySource yields read-only busy entries for a profile
type BusySource interface {
	ForProfile(ctx context.Context, kv kvstore.Store, from, to time.Time) []availability.CalendarEntry
}

// Viewer identifies who is looking: the browser profile always, the signed-in
// user when there is one
type Viewer struct {
	ClientID string
	UserID   string
}

// Snapshot is one rendered calendar page
type Snapshot struct {
	EventID     string    `json:"eventId"`
	EventName   string    `json:"eventName"`
	WindowStart time.Time `json:"windowStart"`
	WindowEnd   time.Time `json:"windowEnd"`
	IsOrganizer bool      `json:"isOrganizer"`

	ShowRoster     bool                              `json:"showRoster"`
	Roster         []availability.ParticipantSummary `json:"roster,omitempty"`
	VisibleEntries []availability.CalendarEntry      `json:"visibleEntries"`

	OwnEntries  []availability.CalendarEntry `json:"ownEntries"`
	DraftName   string                       `json:"draftName,omitempty"`
	DraftEmail  string                       `json:"draftEmail,omitempty"`
	BusyEntries []availability.CalendarEntry `json:"busyEntries"`

	Notices []string `json:"notices,omitempty"`
}

// Deps are the collaborators of a Service. Busy may be nil.
type Deps struct {
	Events        Events
	Participants  Participants
	Busy          BusySource
	Backend       kvstore.Backend
	Reconciler    *availability.Reconciler
	Logger        *logrus.Logger
	Metrics       *metrics.Metrics
	DeleteTimeout time.Duration
}

// Service renders snapshots and applies the viewer's edits. Work for one
// profile and event is serialized.
type Service struct {
	events        Events
	participants  Participants
	busy          BusySource
	backend       kvstore.Backend
	reconciler    *availability.Reconciler
	logger        *logrus.Logger
	metrics       *metrics.Metrics
	deleteTimeout time.Duration

	deletions *Deletions
	locks     *keyedMutex
	wg        sync.WaitGroup
}

// NewService creates a new view service
func NewService(d Deps) *Service {
	if d.DeleteTimeout <= 0 {
		d.DeleteTimeout = defaultDeleteTimeout
	}
	return &Service{
		events:        d.Events,
		participants:  d.Participants,
		busy:          d.Busy,
		backend:       d.Backend,
		reconciler:    d.Reconciler,
		logger:        d.Logger,
		metrics:       d.Metrics,
		deleteTimeout: d.DeleteTimeout,
		deletions:     NewDeletions(),
		locks:         newKeyedMutex(),
	}
}

// Deletions exposes the optimistic deletion tracker
func (s *Service) Deletions() *Deletions {
	return s.deletions
}

// Wait blocks until background deletions have settled
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) lock(v Viewer, eventID string) func() {
	return s.locks.Lock(v.ClientID + "|" + eventID)
}

// Render builds the snapshot of an event for a viewer. The reconciled
// visibility state is persisted before the snapshot is returned.
func (s *Service) Render(ctx context.Context, v Viewer, eventID string) (*Snapshot, error) {
	unlock := s.lock(v, eventID)
	defer unlock()

	return s.render(ctx, v, eventID, nil)
}

// Toggle flips one participant's visibility, persists it and re-renders
func (s *Service) Toggle(ctx context.Context, v Viewer, eventID, participantID string) (*Snapshot, error) {
	unlock := s.lock(v, eventID)
	defer unlock()

	snap, err := s.render(ctx, v, eventID, func(state visibility.State) visibility.State {
		return visibility.Toggle(state, participantID)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Toggles.Inc()
	return snap, nil
}

func (s *Service) render(ctx context.Context, v Viewer, eventID string, mutate func(visibility.State) visibility.State) (*Snapshot, error) {
	started := time.Now()
	defer func() { s.metrics.RenderDuration.Observe(time.Since(started).Seconds()) }()

	ev, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	kv := kvstore.Scoped(s.backend, v.ClientID)
	visStore := visibility.NewStore(kv, s.logger)
	draftStore := draft.NewStore(kv, s.logger)

	snap := &Snapshot{
		EventID:     ev.ID,
		EventName:   ev.Name,
		WindowStart: ev.StartTime,
		WindowEnd:   ev.EndTime,
		IsOrganizer: ev.IsOrganizer(v.UserID),
	}
	log := s.logger.WithFields(logrus.Fields{"event_id": eventID, "client_id": v.ClientID})

	records, err := s.participants.ListRecords(ctx, eventID, v.UserID)
	if err != nil {
		log.WithError(err).Warn("Failed to fetch participant records")
		snap.Notices = append(snap.Notices, NoticeLoadFailed)
		records = nil
	}
	records = s.withoutHidden(v.ClientID, eventID, records)

	state := visStore.Load(ctx, eventID)
	if len(records) > 0 {
		ids := make([]string, len(records))
		for i, rec := range records {
			ids[i] = rec.ParticipantID
		}
		state = visStore.Reconcile(ctx, eventID, ids, state)
		s.metrics.ReconcilePasses.Inc()
	}

	if mutate != nil {
		next := mutate(state)
		if !next.Equal(state) {
			if err := visStore.Save(ctx, eventID, next); err != nil {
				s.metrics.StoreFailures.WithLabelValues("visibility").Inc()
				log.WithError(err).Warn("Failed to persist visibility toggle, keeping it in memory")
			}
			state = next
		}
	}

	view := s.reconciler.Reconcile(records, state)
	snap.ShowRoster = view.ShowRoster
	snap.Roster = view.Roster
	snap.VisibleEntries = view.VisibleEntries

	d := draftStore.LoadDraft(ctx, eventID)
	snap.OwnEntries = d.Entries
	snap.DraftName, snap.DraftEmail = d.Name, d.Email

	snap.BusyEntries = []availability.CalendarEntry{}
	if s.busy != nil {
		snap.BusyEntries = s.busy.ForProfile(ctx, kv, ev.StartTime, ev.EndTime)
	}

	for range s.deletions.TakeFailed(v.ClientID, eventID) {
		snap.Notices = append(snap.Notices, NoticeDeleteFailed)
	}

	return snap, nil
}

// withoutHidden drops participants whose deletion is pending or confirmed
func (s *Service) withoutHidden(profile, eventID string, records []availability.Record) []availability.Record {
	present := make(map[string]bool, len(records))
	for _, rec := range records {
		present[rec.ParticipantID] = true
	}
	hidden := s.deletions.Hidden(profile, eventID, present)
	if len(hidden) == 0 {
		return records
	}

	out := make([]availability.Record, 0, len(records))
	for _, rec := range records {
		if !hidden[rec.ParticipantID] {
			out = append(out, rec)
		}
	}
	return out
}

// DeleteParticipant hides a participant at once and deletes them in the
// background. The returned snapshot already omits them. When the deletion
// fails the participant reappears with a notice on the next render.
func (s *Service) DeleteParticipant(ctx context.Context, v Viewer, eventID, participantID string) (*Snapshot, error) {
	ev, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !ev.IsOrganizer(v.UserID) {
		return nil, availability.ErrNotOrganizer
	}
	if err := s.deletions.Begin(v.ClientID, eventID, participantID); err != nil {
		return nil, err
	}

	unlock := s.lock(v, eventID)
	snap, err := s.render(ctx, v, eventID, nil)
	unlock()
	if err != nil {
		s.deletions.Resolve(v.ClientID, eventID, participantID, err)
		return nil, err
	}

	s.wg.Add(1)
	go s.settleDeletion(v, eventID, participantID)

	return snap, nil
}

func (s *Service) settleDeletion(v Viewer, eventID, participantID string) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.deleteTimeout)
	defer cancel()

	log := s.logger.WithFields(logrus.Fields{"event_id": eventID, "participant_id": participantID})

	err := s.participants.DeleteParticipant(ctx, eventID, v.UserID, participantID)
	status := s.deletions.Resolve(v.ClientID, eventID, participantID, err)
	if err != nil {
		s.metrics.Deletions.WithLabelValues(metrics.OutcomeFailed).Inc()
		log.WithError(err).Error("Failed to delete participant")
	} else {
		s.metrics.Deletions.WithLabelValues(metrics.OutcomeOK).Inc()
	}
	log.WithField("status", status).Debug("Deletion settled")

	pubCtx, pubCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pubCancel()

	change := kvstore.Change{Profile: v.ClientID, Key: ParticipantsKey(eventID)}
	if err := s.backend.Publish(pubCtx, change); err != nil {
		log.WithError(err).Warn("Failed to signal deletion outcome")
	}
}

// ParticipantsKey names the signal sent when an event's roster changed
func ParticipantsKey(eventID string) string {
	return "participants-" + eventID
}
