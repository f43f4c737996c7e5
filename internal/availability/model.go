package availability

import (
	"time"

	"github.com/fkhayef/meetsync/internal/color"
)

// CalendarEntry is one contiguous time range on the calendar
type CalendarEntry struct {
	ID    string    `json:"id"`
	Title string    `json:"title"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	// IsExternalBusy marks read-only decoration from an external calendar feed.
	// Such entries never take part in availability reconciliation.
	IsExternalBusy bool `json:"isGcal"`

	*color.Color
}

// Valid reports whether the entry ends strictly after it starts
func (e CalendarEntry) Valid() bool {
	return e.End.After(e.Start)
}

// Record is one participant's submitted availability for an event
type Record struct {
	RecordID      string          `json:"id"`
	ParticipantID string          `json:"user_id"`
	EventID       string          `json:"event_id"`
	Entries       []CalendarEntry `json:"availability"`
	SubmittedAt   time.Time       `json:"created_at"`
}

// ParticipantSummary is the roster view of one participant
type ParticipantSummary struct {
	ParticipantID string      `json:"userID"`
	DisplayName   string      `json:"name"`
	Email         string      `json:"email"`
	Color         color.Color `json:"color"`
	IsChecked     bool        `json:"isChecked"`
}
