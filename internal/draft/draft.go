// Package draft keeps the viewer's own unsubmitted availability for an event,
// per browser profile, and the pure edits applied to it.
package draft

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/fkhayef/meetsync/internal/availability"
	"github.com/fkhayef/meetsync/internal/color"
)

// DefaultTitle labels a freshly selected range
const DefaultTitle = "Available"

// Common errors
var (
	ErrInvalidRange  = errors.New("time range must end after it starts")
	ErrEntryNotFound = errors.New("time range not found")
)

// Draft is what gets persisted per event: the entries plus the identity the
// viewer last submitted with, if any
type Draft struct {
	Name    string                       `json:"name,omitempty"`
	Email   string                       `json:"email,omitempty"`
	Entries []availability.CalendarEntry `json:"availabilitySlots"`
}

// AddRange returns entries with one new range appended
func AddRange(entries []availability.CalendarEntry, start, end time.Time) ([]availability.CalendarEntry, availability.CalendarEntry, error) {
	if !end.After(start) {
		return nil, availability.CalendarEntry{}, ErrInvalidRange
	}

	style := color.Draft
	entry := availability.CalendarEntry{
		ID:    uuid.NewString(),
		Title: DefaultTitle,
		Start: start,
		End:   end,
		Color: &style,
	}

	out := make([]availability.CalendarEntry, 0, len(entries)+1)
	out = append(out, entries...)
	return append(out, entry), entry, nil
}

// RemoveByID returns entries without the one carrying id. A missing id leaves
// the list as it was.
func RemoveByID(entries []availability.CalendarEntry, id string) []availability.CalendarEntry {
	out := make([]availability.CalendarEntry, 0, len(entries))
	for _, e := range entries {
		if e.ID == id {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Resize returns entries with the range carrying id moved to [start, end)
func Resize(entries []availability.CalendarEntry, id string, start, end time.Time) ([]availability.CalendarEntry, error) {
	if !end.After(start) {
		return nil, ErrInvalidRange
	}

	out := make([]availability.CalendarEntry, len(entries))
	copy(out, entries)
	for i := range out {
		if out[i].ID == id {
			out[i].Start, out[i].End = start, end
			return out, nil
		}
	}
	return nil, ErrEntryNotFound
}

// Finalize returns a copy of entries titled with the submitter's identity
func Finalize(entries []availability.CalendarEntry, name, email string) []availability.CalendarEntry {
	title := availability.EncodeTitle(name, email)
	out := make([]availability.CalendarEntry, len(entries))
	for i, e := range entries {
		e.Title = title
		out[i] = e
	}
	return out
}
