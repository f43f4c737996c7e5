package availability

import (
	"github.com/fkhayef/meetsync/internal/color"
)

// Normalizer turns raw records into one roster summary per participant
type Normalizer struct {
	colors color.Strategy
}

// NewNormalizer creates a normalizer coloring participants with the given strategy
func NewNormalizer(colors color.Strategy) *Normalizer {
	if colors == nil {
		colors = &color.ParticipantStrategy{}
	}
	return &Normalizer{colors: colors}
}

// Normalize emits one summary per record, in input order. Checked state is left
// false; the Reconciler merges it in.
func (n *Normalizer) Normalize(records []Record) []ParticipantSummary {
	summaries := make([]ParticipantSummary, 0, len(records))
	for i, rec := range records {
		var name, email string
		// all entries of a record carry the same title, the first one speaks for the rest
		if entry, ok := representative(rec.Entries); ok {
			name, email = ParseTitle(entry.Title)
		}

		summaries = append(summaries, ParticipantSummary{
			ParticipantID: rec.ParticipantID,
			DisplayName:   name,
			Email:         email,
			Color:         n.colors.Pick(i, rec.ParticipantID),
		})
	}
	return summaries
}

func representative(entries []CalendarEntry) (CalendarEntry, bool) {
	for _, e := range entries {
		if !e.IsExternalBusy {
			return e, true
		}
	}
	return CalendarEntry{}, false
}
