package availability

// SubmitAvailabilityRequest is the body of the submission endpoint
type SubmitAvailabilityRequest struct {
	Name    string          `json:"name" validate:"required"`
	Email   string          `json:"email" validate:"required,mailbox"`
	Entries []CalendarEntry `json:"availableSlots" validate:"min=1"`
}

// RecordResponse represents a stored availability record
type RecordResponse struct {
	ID            string          `json:"id"`
	ParticipantID string          `json:"user_id"`
	EventID       string          `json:"event_id"`
	Availability  []CalendarEntry `json:"availability"`
	SubmittedAt   string          `json:"created_at"`
}

// ToResponse converts a Record model to a RecordResponse DTO
func (r *Record) ToResponse() *RecordResponse {
	entries := r.Entries
	if entries == nil {
		entries = []CalendarEntry{}
	}
	return &RecordResponse{
		ID:            r.RecordID,
		ParticipantID: r.ParticipantID,
		EventID:       r.EventID,
		Availability:  entries,
		SubmittedAt:   r.SubmittedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}
