package view

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/meetsync/internal/availability"
	"github.com/fkhayef/meetsync/internal/color"
	"github.com/fkhayef/meetsync/internal/draft"
	"github.com/fkhayef/meetsync/internal/event"
	"github.com/fkhayef/meetsync/internal/kvstore"
	"github.com/fkhayef/meetsync/internal/metrics"
	"github.com/fkhayef/meetsync/internal/visibility"
	"github.com/fkhayef/meetsync/pkg/logger"
)

const (
	eventID   = "e1"
	organizer = "organizer-1"
	profile   = "profile-1"
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type fakeEvents struct {
	ev *event.Event
}

func (f *fakeEvents) GetByID(_ context.Context, id string) (*event.Event, error) {
	if id != f.ev.ID {
		return nil, event.ErrEventNotFound
	}
	return f.ev, nil
}

type fakeParticipants struct {
	mu        sync.Mutex
	records   []availability.Record
	listErr   error
	submitErr error
	deleteErr error
	gate      chan struct{}
	submitted []*availability.SubmitAvailabilityRequest
}

func (f *fakeParticipants) ListRecords(_ context.Context, _, _ string) ([]availability.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]availability.Record, len(f.records))
	copy(out, f.records)
	return out, nil
}

func (f *fakeParticipants) Submit(_ context.Context, eventID string, req *availability.SubmitAvailabilityRequest) (*availability.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, req)
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &availability.Record{RecordID: "r-new", ParticipantID: "p-new", EventID: eventID, Entries: req.Entries, SubmittedAt: t0}, nil
}

func (f *fakeParticipants) DeleteParticipant(_ context.Context, _, _, participantID string) error {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	out := f.records[:0]
	for _, rec := range f.records {
		if rec.ParticipantID != participantID {
			out = append(out, rec)
		}
	}
	f.records = out
	return nil
}

func (f *fakeParticipants) submissions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

type fixture struct {
	service      *Service
	participants *fakeParticipants
	backend      *kvstore.Memory
	metrics      *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	participants := &fakeParticipants{records: []availability.Record{
		record("u1", "Ana", "ana@example.com", 0),
		record("u2", "Ben", "ben@example.com", 2*time.Hour),
	}}
	backend := kvstore.NewMemory()
	m := metrics.New(prometheus.NewRegistry())

	svc := NewService(Deps{
		Events: &fakeEvents{ev: &event.Event{
			ID:        eventID,
			Organizer: organizer,
			Name:      "Planning",
			StartTime: t0,
			EndTime:   t0.Add(8 * time.Hour),
		}},
		Participants:  participants,
		Backend:       backend,
		Reconciler:    availability.NewReconciler(availability.NewNormalizer(&color.ParticipantStrategy{})),
		Logger:        logger.Discard(),
		Metrics:       m,
		DeleteTimeout: time.Second,
	})
	t.Cleanup(svc.Wait)

	return &fixture{service: svc, participants: participants, backend: backend, metrics: m}
}

func record(participantID, name, email string, offset time.Duration) availability.Record {
	return availability.Record{
		RecordID:      "r-" + participantID,
		ParticipantID: participantID,
		EventID:       eventID,
		Entries: []availability.CalendarEntry{{
			ID:    "slot-" + participantID,
			Title: availability.EncodeTitle(name, email),
			Start: t0.Add(offset),
			End:   t0.Add(offset + time.Hour),
		}},
	}
}

func visitor() Viewer {
	return Viewer{ClientID: profile}
}

func owner() Viewer {
	return Viewer{ClientID: profile, UserID: organizer}
}

func entryIDs(entries []availability.CalendarEntry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}

func rosterIDs(snap *Snapshot) []string {
	ids := make([]string, len(snap.Roster))
	for i, p := range snap.Roster {
		ids[i] = p.ParticipantID
	}
	return ids
}

func (f *fixture) storedState(t *testing.T) visibility.State {
	t.Helper()
	return visibility.NewStore(kvstore.Scoped(f.backend, profile), logger.Discard()).Load(context.Background(), eventID)
}

func TestRenderPersistsReconciledState(t *testing.T) {
	f := newFixture(t)

	snap, err := f.service.Render(context.Background(), owner(), eventID)
	require.NoError(t, err)

	assert.True(t, snap.IsOrganizer)
	assert.True(t, snap.ShowRoster)
	assert.Equal(t, []string{"u1", "u2"}, rosterIDs(snap))
	assert.Equal(t, "Ana", snap.Roster[0].DisplayName)
	assert.Equal(t, []string{"slot-u1", "slot-u2"}, entryIDs(snap.VisibleEntries))
	assert.Equal(t, snap.Roster[0].Color, *snap.VisibleEntries[0].Color)
	assert.Equal(t, []availability.CalendarEntry{}, snap.OwnEntries)
	assert.Equal(t, []availability.CalendarEntry{}, snap.BusyEntries)

	assert.Equal(t, visibility.State{
		{ParticipantID: "u1", IsChecked: true},
		{ParticipantID: "u2", IsChecked: true},
	}, f.storedState(t))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ReconcilePasses))
}

func TestRenderWithoutRecordsOmitsRoster(t *testing.T) {
	f := newFixture(t)
	f.participants.records = nil

	snap, err := f.service.Render(context.Background(), visitor(), eventID)
	require.NoError(t, err)

	assert.False(t, snap.ShowRoster)
	assert.False(t, snap.IsOrganizer)
	assert.Empty(t, snap.Roster)
	assert.Equal(t, []availability.CalendarEntry{}, snap.VisibleEntries)

	_, ok, err := f.backend.Get(context.Background(), kvstore.ProfileKey(profile, visibility.Key(eventID)))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRenderUnknownEvent(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Render(context.Background(), visitor(), "missing")
	assert.ErrorIs(t, err, event.ErrEventNotFound)
}

func TestRenderListFailureAddsNotice(t *testing.T) {
	f := newFixture(t)
	f.participants.listErr = errors.New("connection refused")

	snap, err := f.service.Render(context.Background(), owner(), eventID)
	require.NoError(t, err)

	assert.False(t, snap.ShowRoster)
	assert.Equal(t, []string{NoticeLoadFailed}, snap.Notices)
}

func TestToggleFiltersEntriesAndPersists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	snap, err := f.service.Toggle(ctx, visitor(), eventID, "u1")
	require.NoError(t, err)

	assert.False(t, snap.Roster[0].IsChecked)
	assert.True(t, snap.Roster[1].IsChecked)
	assert.Equal(t, []string{"slot-u2"}, entryIDs(snap.VisibleEntries))
	assert.False(t, f.storedState(t).IsChecked("u1"))

	snap, err = f.service.Render(ctx, visitor(), eventID)
	require.NoError(t, err)
	assert.Equal(t, []string{"slot-u2"}, entryIDs(snap.VisibleEntries))

	snap, err = f.service.Toggle(ctx, visitor(), eventID, "u2")
	require.NoError(t, err)
	assert.True(t, snap.ShowRoster)
	assert.Len(t, snap.Roster, 2)
	assert.Empty(t, snap.VisibleEntries)

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.Toggles))
}

func TestToggleKeepsSelectionAcrossNewParticipants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Toggle(ctx, visitor(), eventID, "u2")
	require.NoError(t, err)

	f.participants.records = append(f.participants.records, record("u3", "Cal", "cal@example.com", 4*time.Hour))

	snap, err := f.service.Render(ctx, visitor(), eventID)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2", "u3"}, rosterIDs(snap))
	assert.Equal(t, []string{"slot-u1", "slot-u3"}, entryIDs(snap.VisibleEntries))
	assert.Equal(t, visibility.State{
		{ParticipantID: "u1", IsChecked: true},
		{ParticipantID: "u2", IsChecked: false},
		{ParticipantID: "u3", IsChecked: true},
	}, f.storedState(t))
}

func TestStateIsPerProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Toggle(ctx, visitor(), eventID, "u1")
	require.NoError(t, err)

	snap, err := f.service.Render(ctx, Viewer{ClientID: "profile-2"}, eventID)
	require.NoError(t, err)
	assert.Equal(t, []string{"slot-u1", "slot-u2"}, entryIDs(snap.VisibleEntries))
}

func TestDraftEdits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := visitor()

	entries, err := f.service.AddRange(ctx, v, eventID, t0, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	id := entries[0].ID

	_, err = f.service.AddRange(ctx, v, eventID, t0.Add(-time.Hour), t0)
	assert.ErrorIs(t, err, ErrOutsideWindow)

	_, err = f.service.AddRange(ctx, v, eventID, t0, t0)
	assert.ErrorIs(t, err, draft.ErrInvalidRange)

	entries, err = f.service.ResizeRange(ctx, v, eventID, id, t0, t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, t0.Add(2*time.Hour), entries[0].End)

	_, err = f.service.ResizeRange(ctx, v, eventID, "missing", t0, t0.Add(time.Hour))
	assert.ErrorIs(t, err, draft.ErrEntryNotFound)

	snap, err := f.service.Render(ctx, v, eventID)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, entryIDs(snap.OwnEntries))

	entries, err = f.service.RemoveRange(ctx, v, eventID, id)
	require.NoError(t, err)
	assert.Empty(t, entries)

	d, err := f.service.Draft(ctx, v, eventID)
	require.NoError(t, err)
	assert.Empty(t, d.Entries)
}

func TestReplaceDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	busy := availability.CalendarEntry{ID: "gcal", Start: t0, End: t0.Add(time.Hour), IsExternalBusy: true}
	own := availability.CalendarEntry{Start: t0.Add(time.Hour), End: t0.Add(2 * time.Hour)}

	out, err := f.service.ReplaceDraft(ctx, visitor(), eventID, []availability.CalendarEntry{busy, own})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.NotEmpty(t, out[0].ID)
	assert.Equal(t, draft.DefaultTitle, out[0].Title)
	assert.Equal(t, color.Draft, *out[0].Color)

	late := availability.CalendarEntry{Start: t0.Add(7 * time.Hour), End: t0.Add(9 * time.Hour)}
	_, err = f.service.ReplaceDraft(ctx, visitor(), eventID, []availability.CalendarEntry{late})
	assert.ErrorIs(t, err, ErrOutsideWindow)

	require.NoError(t, f.service.ClearDraft(ctx, visitor(), eventID))
	d, err := f.service.Draft(ctx, visitor(), eventID)
	require.NoError(t, err)
	assert.Empty(t, d.Entries)
}

func TestSubmitInvalidSkipsParticipantStore(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Submit(context.Background(), visitor(), eventID, "", "nope")

	var verr *draft.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, map[string]string{
		"name":           draft.MsgNameRequired,
		"email":          draft.MsgEmailInvalid,
		"availableSlots": draft.MsgNoEntries,
	}, verr.Fields)
	assert.Equal(t, 0, f.participants.submissions())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Submissions.WithLabelValues(metrics.OutcomeInvalid)))
}

func TestSubmitFailureLeavesDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.participants.submitErr = errors.New("pq: connection reset")

	_, err := f.service.AddRange(ctx, visitor(), eventID, t0, t0.Add(time.Hour))
	require.NoError(t, err)

	_, err = f.service.Submit(ctx, visitor(), eventID, "Dana", "dana@example.com")
	assert.ErrorIs(t, err, ErrSubmitFailed)

	d, err := f.service.Draft(ctx, visitor(), eventID)
	require.NoError(t, err)
	require.Len(t, d.Entries, 1)
	assert.Equal(t, draft.DefaultTitle, d.Entries[0].Title)
	assert.Empty(t, d.Name)

	f.participants.submitErr = availability.ErrMissingFields
	_, err = f.service.Submit(ctx, visitor(), eventID, "Dana", "dana@example.com")
	assert.ErrorIs(t, err, availability.ErrMissingFields)
}

func TestSubmitRemembersIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.AddRange(ctx, visitor(), eventID, t0, t0.Add(time.Hour))
	require.NoError(t, err)

	rec, err := f.service.Submit(ctx, visitor(), eventID, "  Dana ", "Dana@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "r-new", rec.RecordID)

	require.Equal(t, 1, f.participants.submissions())
	req := f.participants.submitted[0]
	assert.Equal(t, "Dana", req.Name)
	assert.Equal(t, "dana@example.com", req.Email)
	assert.Equal(t, "Available: Dana (dana@example.com)", req.Entries[0].Title)

	d, err := f.service.Draft(ctx, visitor(), eventID)
	require.NoError(t, err)
	assert.Equal(t, "Dana", d.Name)
	assert.Equal(t, "dana@example.com", d.Email)
	assert.Equal(t, "Available: Dana (dana@example.com)", d.Entries[0].Title)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Submissions.WithLabelValues(metrics.OutcomeOK)))
}

func TestDeleteParticipantRequiresOrganizer(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.DeleteParticipant(context.Background(), visitor(), eventID, "u1")
	assert.ErrorIs(t, err, availability.ErrNotOrganizer)
	assert.Equal(t, DeletionStatusIdle, f.service.Deletions().Status(profile, eventID, "u1"))
}

func TestDeleteParticipantHidesAtOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.participants.gate = make(chan struct{})

	changes, cancel, err := f.backend.Subscribe(ctx)
	require.NoError(t, err)
	defer cancel()

	snap, err := f.service.DeleteParticipant(ctx, owner(), eventID, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, rosterIDs(snap))
	assert.Equal(t, DeletionStatusPending, f.service.Deletions().Status(profile, eventID, "u1"))

	_, err = f.service.DeleteParticipant(ctx, owner(), eventID, "u1")
	assert.ErrorIs(t, err, ErrDeletionInProgress)

	close(f.participants.gate)
	f.service.Wait()

	assert.Equal(t, DeletionStatusConfirmed, f.service.Deletions().Status(profile, eventID, "u1"))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Deletions.WithLabelValues(metrics.OutcomeOK)))

	snap, err = f.service.Render(ctx, owner(), eventID)
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, rosterIDs(snap))
	assert.Empty(t, snap.Notices)
	assert.Equal(t, DeletionStatusIdle, f.service.Deletions().Status(profile, eventID, "u1"))

	timeout := time.After(time.Second)
	for {
		select {
		case c := <-changes:
			if c.Key == ParticipantsKey(eventID) {
				assert.Equal(t, profile, c.Profile)
				return
			}
		case <-timeout:
			t.Fatal("deletion outcome was not signalled")
		}
	}
}

func TestDeleteParticipantFailureRestores(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.participants.deleteErr = errors.New("pq: deadlock detected")

	snap, err := f.service.DeleteParticipant(ctx, owner(), eventID, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, rosterIDs(snap))

	f.service.Wait()
	assert.Equal(t, DeletionStatusFailed, f.service.Deletions().Status(profile, eventID, "u1"))

	snap, err = f.service.Render(ctx, owner(), eventID)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, rosterIDs(snap))
	assert.Equal(t, []string{NoticeDeleteFailed}, snap.Notices)

	snap, err = f.service.Render(ctx, owner(), eventID)
	require.NoError(t, err)
	assert.Empty(t, snap.Notices)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Deletions.WithLabelValues(metrics.OutcomeFailed)))
}

func TestDeletionsLifecycle(t *testing.T) {
	d := NewDeletions()

	require.NoError(t, d.Begin(profile, eventID, "u1"))
	assert.ErrorIs(t, d.Begin(profile, eventID, "u1"), ErrDeletionInProgress)
	assert.Equal(t, map[string]bool{"u1": true}, d.Hidden(profile, eventID, map[string]bool{"u1": true}))
	assert.Empty(t, d.Hidden("profile-2", eventID, map[string]bool{"u1": true}))

	assert.Equal(t, DeletionStatusFailed, d.Resolve(profile, eventID, "u1", errors.New("boom")))
	assert.Empty(t, d.Hidden(profile, eventID, map[string]bool{"u1": true}))
	assert.Equal(t, DeletionStatusFailed, d.Resolve(profile, eventID, "u1", nil))

	assert.Equal(t, []string{"u1"}, d.TakeFailed(profile, eventID))
	assert.Empty(t, d.TakeFailed(profile, eventID))
	assert.Equal(t, DeletionStatusIdle, d.Status(profile, eventID, "u1"))

	require.NoError(t, d.Begin(profile, eventID, "u1"))
	assert.Equal(t, DeletionStatusConfirmed, d.Resolve(profile, eventID, "u1", nil))
	assert.Equal(t, map[string]bool{"u1": true}, d.Hidden(profile, eventID, map[string]bool{"u1": true}))
	assert.Empty(t, d.Hidden(profile, eventID, map[string]bool{}))
	assert.Equal(t, DeletionStatusIdle, d.Status(profile, eventID, "u1"))
}
