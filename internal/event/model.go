package event

import "time"

// Event is a scheduling poll owned by an organizer
type Event struct {
	ID        string    `json:"id"`
	Organizer string    `json:"organizer"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	CreatedAt time.Time `json:"created_at"`
}

// Contains reports whether [start, end) lies inside the permitted window
func (e *Event) Contains(start, end time.Time) bool {
	return !start.Before(e.StartTime) && !end.After(e.EndTime)
}

// IsOrganizer reports whether userID owns the event
func (e *Event) IsOrganizer(userID string) bool {
	return userID != "" && userID == e.Organizer
}
