package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floroz/auctioneer/pkg/events"
)

// PostgresOutboxRepository implements the outbox ports used by the engine
// (SaveEvent) and the relay (GetPendingEvents, UpdateEventStatus).
type PostgresOutboxRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresOutboxRepository(pool *pgxpool.Pool) *PostgresOutboxRepository {
	return &PostgresOutboxRepository{pool: pool}
}

// SaveEvent stages an event in the same transaction as the state change.
func (r *PostgresOutboxRepository) SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error {
	query := `
		INSERT INTO outbox_events (id, event_type, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := tx.Exec(ctx, query,
		event.ID,
		event.EventType,
		event.Payload,
		event.Status,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save outbox event: %w", err)
	}
	return nil
}

// GetPendingEvents fetches a batch of unpublished events. SKIP LOCKED keeps
// concurrent relay processes from picking up the same rows.
func (r *PostgresOutboxRepository) GetPendingEvents(ctx context.Context, tx pgx.Tx, limit int) ([]*events.OutboxEvent, error) {
	query := `
		SELECT id, event_type, payload, status, created_at, processed_at
		FROM outbox_events
		WHERE status = $1
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`
	rows, err := tx.Query(ctx, query, events.OutboxStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending events: %w", err)
	}
	defer rows.Close()

	var pending []*events.OutboxEvent
	for rows.Next() {
		var event events.OutboxEvent
		if err := rows.Scan(
			&event.ID,
			&event.EventType,
			&event.Payload,
			&event.Status,
			&event.CreatedAt,
			&event.ProcessedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		pending = append(pending, &event)
	}
	return pending, rows.Err()
}

// UpdateEventStatus marks an event's processing state.
func (r *PostgresOutboxRepository) UpdateEventStatus(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, status events.OutboxStatus) error {
	query := `UPDATE outbox_events SET status = $2, processed_at = NOW() WHERE id = $1`
	if _, err := tx.Exec(ctx, query, eventID, status); err != nil {
		return fmt.Errorf("failed to update outbox event status: %w", err)
	}
	return nil
}
