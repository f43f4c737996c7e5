package view

import (
	"time"

	"github.com/fkhayef/meetsync/internal/availability"
	"github.com/fkhayef/meetsync/internal/draft"
)

// RangeRequest represents a time range selected on the calendar
type RangeRequest struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ReplaceDraftRequest represents a whole draft sent back by the calendar
type ReplaceDraftRequest struct {
	Entries []availability.CalendarEntry `json:"availabilitySlots"`
}

// SubmitRequest represents the submission form
type SubmitRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// DraftResponse represents the viewer's draft
type DraftResponse struct {
	Name    string                       `json:"name,omitempty"`
	Email   string                       `json:"email,omitempty"`
	Entries []availability.CalendarEntry `json:"availabilitySlots"`
}

func toDraftResponse(d draft.Draft) *DraftResponse {
	entries := d.Entries
	if entries == nil {
		entries = []availability.CalendarEntry{}
	}
	return &DraftResponse{Name: d.Name, Email: d.Email, Entries: entries}
}
