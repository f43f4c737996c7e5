package draft

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/meetsync/internal/availability"
	"github.com/fkhayef/meetsync/internal/color"
	"github.com/fkhayef/meetsync/internal/kvstore"
	"github.com/fkhayef/meetsync/pkg/logger"
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newStore() *Store {
	return NewStore(kvstore.Scoped(kvstore.NewMemory(), "profile-1"), logger.Discard())
}

func TestAddRange(t *testing.T) {
	in := []availability.CalendarEntry{}

	out, added, err := AddRange(in, t0, t0.Add(time.Hour))
	require.NoError(t, err)

	assert.Empty(t, in)
	require.Len(t, out, 1)
	assert.Equal(t, added, out[0])
	assert.NotEmpty(t, added.ID)
	assert.Equal(t, DefaultTitle, added.Title)
	assert.False(t, added.IsExternalBusy)
	require.NotNil(t, added.Color)
	assert.Equal(t, color.Draft, *added.Color)

	out2, second, err := AddRange(out, t0.Add(2*time.Hour), t0.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Len(t, out2, 2)
	assert.NotEqual(t, added.ID, second.ID)
}

func TestAddRangeRejectsEmptyRange(t *testing.T) {
	_, _, err := AddRange(nil, t0, t0)
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, _, err = AddRange(nil, t0.Add(time.Hour), t0)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestRemoveByID(t *testing.T) {
	entries, a, _ := AddRange(nil, t0, t0.Add(time.Hour))
	entries, b, _ := AddRange(entries, t0.Add(2*time.Hour), t0.Add(3*time.Hour))

	out := RemoveByID(entries, a.ID)
	assert.Equal(t, []availability.CalendarEntry{b}, out)
	assert.Len(t, entries, 2)

	assert.Equal(t, entries, RemoveByID(entries, "missing"))
}

func TestResize(t *testing.T) {
	entries, a, _ := AddRange(nil, t0, t0.Add(time.Hour))

	out, err := Resize(entries, a.ID, t0, t0.Add(90*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, t0.Add(90*time.Minute), out[0].End)
	assert.Equal(t, t0.Add(time.Hour), entries[0].End)

	_, err = Resize(entries, "missing", t0, t0.Add(time.Hour))
	assert.ErrorIs(t, err, ErrEntryNotFound)

	_, err = Resize(entries, a.ID, t0.Add(time.Hour), t0)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestFinalize(t *testing.T) {
	entries, _, _ := AddRange(nil, t0, t0.Add(time.Hour))
	entries, _, _ = AddRange(entries, t0.Add(2*time.Hour), t0.Add(3*time.Hour))

	out := Finalize(entries, "Jane Roe", "jane@example.com")

	for i := range out {
		assert.Equal(t, "Available: Jane Roe (jane@example.com)", out[i].Title)
		assert.Equal(t, DefaultTitle, entries[i].Title)
		assert.Equal(t, entries[i].ID, out[i].ID)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore()

	assert.Equal(t, []availability.CalendarEntry{}, s.Load(ctx, "e1"))

	entries, _, _ := AddRange(nil, t0, t0.Add(time.Hour))
	require.NoError(t, s.Save(ctx, "e1", entries))
	assert.Equal(t, entries, s.Load(ctx, "e1"))

	require.NoError(t, s.Save(ctx, "e1", []availability.CalendarEntry{}))
	assert.Equal(t, []availability.CalendarEntry{}, s.Load(ctx, "e1"))
}

func TestStoreSaveKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	s := newStore()

	require.NoError(t, s.SaveDraft(ctx, "e1", Draft{Name: "Jane", Email: "jane@example.com"}))
	entries, _, _ := AddRange(nil, t0, t0.Add(time.Hour))
	require.NoError(t, s.Save(ctx, "e1", entries))

	d := s.LoadDraft(ctx, "e1")
	assert.Equal(t, "Jane", d.Name)
	assert.Equal(t, "jane@example.com", d.Email)
	assert.Len(t, d.Entries, 1)

	require.NoError(t, s.Clear(ctx, "e1"))
	assert.Equal(t, Draft{Entries: []availability.CalendarEntry{}}, s.LoadDraft(ctx, "e1"))
}

func TestStoreReadsLegacyShapes(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.Scoped(kvstore.NewMemory(), "profile-1")
	s := NewStore(kv, logger.Discard())

	require.NoError(t, kv.Set(ctx, Key("e1"), []byte(`{"name":"Jane","email":"jane@example.com"}`)))
	d := s.LoadDraft(ctx, "e1")
	assert.Equal(t, "Jane", d.Name)
	assert.Equal(t, []availability.CalendarEntry{}, d.Entries)

	require.NoError(t, kv.Set(ctx, Key("e2"), []byte(`not json`)))
	assert.Equal(t, []availability.CalendarEntry{}, s.Load(ctx, "e2"))
}

func TestValidateSubmission(t *testing.T) {
	entries, _, _ := AddRange(nil, t0, t0.Add(time.Hour))

	assert.NoError(t, ValidateSubmission("Jane", "jane@example.com", entries))

	err := ValidateSubmission("  ", "", nil)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, map[string]string{
		"name":           MsgNameRequired,
		"email":          MsgEmailRequired,
		"availableSlots": MsgNoEntries,
	}, verr.Fields)

	err = ValidateSubmission("Jane", "jane@example", entries)
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, map[string]string{"email": MsgEmailInvalid}, verr.Fields)

	err = ValidateSubmission("Jane", "jane@example.com", []availability.CalendarEntry{})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, map[string]string{"availableSlots": MsgNoEntries}, verr.Fields)
	assert.Contains(t, err.Error(), "availableSlots: "+MsgNoEntries)
}
