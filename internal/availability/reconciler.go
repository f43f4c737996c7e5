package availability

import (
	"github.com/fkhayef/meetsync/internal/visibility"
)

// View is what the calendar page renders from the participant data
type View struct {
	// ShowRoster is false when there is no participant data at all; the
	// sidebar is then omitted rather than rendered empty.
	ShowRoster     bool                 `json:"showRoster"`
	Roster         []ParticipantSummary `json:"roster,omitempty"`
	VisibleEntries []CalendarEntry      `json:"visibleEntries"`
}

// Reconciler merges normalized participants with a visibility selection
type Reconciler struct {
	normalizer *Normalizer
}

// NewReconciler creates a new reconciler
func NewReconciler(normalizer *Normalizer) *Reconciler {
	return &Reconciler{normalizer: normalizer}
}

// Reconcile builds the roster and the filtered entries to render. It never
// fails; participants missing from state are treated as checked.
func (r *Reconciler) Reconcile(records []Record, state visibility.State) View {
	view := View{VisibleEntries: []CalendarEntry{}}
	if len(records) == 0 {
		return view
	}

	roster := r.normalizer.Normalize(records)
	checked := make(map[string]bool, len(roster))
	for i := range roster {
		roster[i].IsChecked = state.IsChecked(roster[i].ParticipantID)
		if roster[i].IsChecked {
			checked[roster[i].ParticipantID] = true
		}
	}

	for i, rec := range records {
		if !checked[rec.ParticipantID] {
			continue
		}
		c := roster[i].Color
		for _, e := range rec.Entries {
			if e.IsExternalBusy {
				continue
			}
			e.Color = &c
			view.VisibleEntries = append(view.VisibleEntries, e)
		}
	}

	view.ShowRoster = true
	view.Roster = roster
	return view
}
