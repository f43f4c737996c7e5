package event

import "time"

// CreateEventRequest represents the request to create a new event
type CreateEventRequest struct {
	Name      string    `json:"eventName" validate:"required,max=200"`
	StartTime time.Time `json:"startTime" validate:"required"`
	EndTime   time.Time `json:"endTime" validate:"required"`
}

// EventResponse represents the response for an event
type EventResponse struct {
	ID        string `json:"id"`
	Organizer string `json:"organizer"`
	Name      string `json:"name"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	CreatedAt string `json:"created_at"`
}

// ToResponse converts an Event model to an EventResponse DTO
func (e *Event) ToResponse() *EventResponse {
	return &EventResponse{
		ID:        e.ID,
		Organizer: e.Organizer,
		Name:      e.Name,
		StartTime: e.StartTime.UTC().Format(time.RFC3339),
		EndTime:   e.EndTime.UTC().Format(time.RFC3339),
		CreatedAt: e.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}
