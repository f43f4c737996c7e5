package availability

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Repository handles participant and availability persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new availability repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ListByEvent retrieves every participant's record for an event, oldest first
func (r *Repository) ListByEvent(ctx context.Context, eventID string) ([]Record, error) {
	query := `
		SELECT id, participant_id, event_id, availability, submitted_at
		FROM participant_availability
		WHERE event_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list availability: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var rec Record
		var raw []byte
		if err := rows.Scan(
			&rec.RecordID,
			&rec.ParticipantID,
			&rec.EventID,
			&raw,
			&rec.SubmittedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan availability: %w", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &rec.Entries); err != nil {
				return nil, fmt.Errorf("failed to decode availability %s: %w", rec.RecordID, err)
			}
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Submit upserts the participant on (email, event) and their availability on
// (participant, event) in one transaction
func (r *Repository) Submit(ctx context.Context, eventID, name, email string, entries []CalendarEntry) (*Record, error) {
	raw, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to encode availability: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	participantQuery := `
		INSERT INTO participants (id, event_id, name, email)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email, event_id) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`

	rec := &Record{EventID: eventID, Entries: entries}
	if err := tx.QueryRowContext(ctx, participantQuery, uuid.NewString(), eventID, name, email).Scan(&rec.ParticipantID); err != nil {
		return nil, fmt.Errorf("failed to upsert participant: %w", err)
	}

	availabilityQuery := `
		INSERT INTO participant_availability (id, participant_id, event_id, availability)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (participant_id, event_id) DO UPDATE
		SET availability = EXCLUDED.availability, submitted_at = NOW()
		RETURNING id, submitted_at
	`

	if err := tx.QueryRowContext(ctx, availabilityQuery, uuid.NewString(), rec.ParticipantID, eventID, string(raw)).Scan(
		&rec.RecordID,
		&rec.SubmittedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to upsert availability: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit availability: %w", err)
	}

	return rec, nil
}

// DeleteParticipant removes a participant and, by cascade, their availability.
// It reports whether a row was deleted.
func (r *Repository) DeleteParticipant(ctx context.Context, eventID, participantID string) (bool, error) {
	query := `DELETE FROM participants WHERE id = $1 AND event_id = $2`

	result, err := r.db.ExecContext(ctx, query, participantID, eventID)
	if err != nil {
		return false, fmt.Errorf("failed to delete participant: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}
