package events

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/db"
)

// PostgresStore appends events to the domain_events table.
type PostgresStore struct {
	DB db.Execer
}

// Insert writes one event row.
func (s PostgresStore) Insert(ctx context.Context, ev Event) error {
	_, err := s.DB.Exec(ctx, `INSERT INTO domain_events (id, topic, session_id, aggregate, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.ID, ev.Topic, ev.SessionID, ev.Aggregate, []byte(ev.Payload), ev.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert domain event: %w", err)
	}
	return nil
}

// LogNotifier writes every event to the structured log.
type LogNotifier struct {
	Logger zerolog.Logger
}

// Notify logs the event.
func (n LogNotifier) Notify(_ context.Context, ev Event) error {
	n.Logger.Info().
		Str("event_id", ev.ID.String()).
		Str("topic", ev.Topic).
		Str("session_id", ev.SessionID).
		Str("aggregate", ev.Aggregate).
		RawJSON("payload", ev.Payload).
		Msg("domain_event")
	return nil
}
