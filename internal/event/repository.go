package event

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// Repository handles event data persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new event repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new event into the database
func (r *Repository) Create(ctx context.Context, organizer string, req *CreateEventRequest) (*Event, error) {
	query := `
		INSERT INTO events (id, organizer, name, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, organizer, name, start_time, end_time, created_at
	`

	event := &Event{}
	err := r.db.QueryRowContext(ctx, query, uuid.NewString(), organizer, req.Name, req.StartTime, req.EndTime).Scan(
		&event.ID,
		&event.Organizer,
		&event.Name,
		&event.StartTime,
		&event.EndTime,
		&event.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	return event, nil
}

// GetByID retrieves an event by its ID
func (r *Repository) GetByID(ctx context.Context, id string) (*Event, error) {
	query := `
		SELECT id, organizer, name, start_time, end_time, created_at
		FROM events
		WHERE id = $1
	`

	event := &Event{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&event.ID,
		&event.Organizer,
		&event.Name,
		&event.StartTime,
		&event.EndTime,
		&event.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	return event, nil
}

// ListByOrganizer retrieves the events an organizer owns, newest first
func (r *Repository) ListByOrganizer(ctx context.Context, organizer string, limit, offset int) ([]*Event, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM events WHERE organizer = $1`
	if err := r.db.QueryRowContext(ctx, countQuery, organizer).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count events: %w", err)
	}

	query := `
		SELECT id, organizer, name, start_time, end_time, created_at
		FROM events
		WHERE organizer = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, organizer, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := []*Event{}
	for rows.Next() {
		event := &Event{}
		if err := rows.Scan(
			&event.ID,
			&event.Organizer,
			&event.Name,
			&event.StartTime,
			&event.EndTime,
			&event.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}

	return events, total, rows.Err()
}
