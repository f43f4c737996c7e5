package view

import (
	"errors"
	"sync"
)

// DeletionStatus represents where an optimistic participant deletion stands
type DeletionStatus string

const (
	DeletionStatusIdle      DeletionStatus = "IDLE"
	DeletionStatusPending   DeletionStatus = "PENDING"
	DeletionStatusConfirmed DeletionStatus = "CONFIRMED"
	DeletionStatusFailed    DeletionStatus = "FAILED"
)

// ErrDeletionInProgress is returned when the participant is already being deleted
var ErrDeletionInProgress = errors.New("participant deletion already in progress")

type deletionKey struct {
	profile       string
	eventID       string
	participantID string
}

// Deletions tracks optimistic deletions per profile and event.
// Idle -> Pending -> Confirmed | Failed; Failed returns to Idle once reported.
type Deletions struct {
	mu     sync.Mutex
	states map[deletionKey]DeletionStatus
}

// NewDeletions creates an empty tracker
func NewDeletions() *Deletions {
	return &Deletions{states: make(map[deletionKey]DeletionStatus)}
}

// Status reports the current state of one deletion
func (d *Deletions) Status(profile, eventID, participantID string) DeletionStatus {
	d.mu.Lock()
	defer d.mu.Unlock()

	if status, ok := d.states[deletionKey{profile, eventID, participantID}]; ok {
		return status
	}
	return DeletionStatusIdle
}

// Begin moves a deletion to Pending. A deletion that is already pending is
// not started twice.
func (d *Deletions) Begin(profile, eventID, participantID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := deletionKey{profile, eventID, participantID}
	if d.states[key] == DeletionStatusPending {
		return ErrDeletionInProgress
	}
	d.states[key] = DeletionStatusPending
	return nil
}

// Resolve settles a pending deletion as Confirmed or, when err is set, Failed
func (d *Deletions) Resolve(profile, eventID, participantID string, err error) DeletionStatus {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := deletionKey{profile, eventID, participantID}
	if d.states[key] != DeletionStatusPending {
		return d.statusLocked(key)
	}
	if err != nil {
		d.states[key] = DeletionStatusFailed
	} else {
		d.states[key] = DeletionStatusConfirmed
	}
	return d.states[key]
}

// Hidden returns the participants of an event that must not be shown: those
// pending deletion and those whose deletion was confirmed. Confirmed entries
// for participants no longer in present are forgotten.
func (d *Deletions) Hidden(profile, eventID string, present map[string]bool) map[string]bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	hidden := map[string]bool{}
	for key, status := range d.states {
		if key.profile != profile || key.eventID != eventID {
			continue
		}
		switch status {
		case DeletionStatusPending:
			hidden[key.participantID] = true
		case DeletionStatusConfirmed:
			if present[key.participantID] {
				hidden[key.participantID] = true
			} else {
				delete(d.states, key)
			}
		}
	}
	return hidden
}

// TakeFailed returns the failed deletions of an event and resets them to Idle,
// so each failure is reported exactly once
func (d *Deletions) TakeFailed(profile, eventID string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var failed []string
	for key, status := range d.states {
		if key.profile != profile || key.eventID != eventID || status != DeletionStatusFailed {
			continue
		}
		failed = append(failed, key.participantID)
		delete(d.states, key)
	}
	return failed
}

func (d *Deletions) statusLocked(key deletionKey) DeletionStatus {
	if status, ok := d.states[key]; ok {
		return status
	}
	return DeletionStatusIdle
}
