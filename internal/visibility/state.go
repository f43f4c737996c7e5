// Package visibility keeps the per-event, per-profile checked/unchecked selection
// that decides which participants feed the calendar overlay.
package visibility

// Entry is the checked flag of one participant
type Entry struct {
	ParticipantID string `json:"userID"`
	IsChecked     bool   `json:"isChecked"`
}

// State is the ordered selection for one event. Order is insertion order.
type State []Entry

// Lookup reports the stored flag for a participant and whether one is stored
func (s State) Lookup(participantID string) (checked bool, ok bool) {
	for _, e := range s {
		if e.ParticipantID == participantID {
			return e.IsChecked, true
		}
	}
	return false, false
}

// IsChecked returns the stored flag, defaulting to visible for unknown participants
func (s State) IsChecked(participantID string) bool {
	if checked, ok := s.Lookup(participantID); ok {
		return checked
	}
	return true
}

// Clone returns an independent copy
func (s State) Clone() State {
	if s == nil {
		return nil
	}
	out := make(State, len(s))
	copy(out, s)
	return out
}

// Equal reports whether both states hold the same entries in the same order
func (s State) Equal(other State) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Toggle returns a new state with one participant's flag flipped.
// An absent participant leaves the state unchanged; insertion only happens via Merge.
func Toggle(s State, participantID string) State {
	out := s.Clone()
	for i := range out {
		if out[i].ParticipantID == participantID {
			out[i].IsChecked = !out[i].IsChecked
			return out
		}
	}
	return out
}

// Merge returns a new state that appends every participant not yet present
// as checked. Existing entries keep their flag, including entries for
// participants that are no longer in participantIDs.
func Merge(s State, participantIDs []string) State {
	out := s.Clone()
	known := make(map[string]bool, len(out)+len(participantIDs))
	for _, e := range out {
		known[e.ParticipantID] = true
	}
	for _, id := range participantIDs {
		if known[id] {
			continue
		}
		known[id] = true
		out = append(out, Entry{ParticipantID: id, IsChecked: true})
	}
	return out
}
