package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event is a recorded domain event.
type Event struct {
	ID         uuid.UUID       `json:"id"`
	Topic      string          `json:"topic"`
	SessionID  string          `json:"sessionId,omitempty"`
	Aggregate  string          `json:"aggregate,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// Store persists events.
type Store interface {
	Insert(ctx context.Context, ev Event) error
}

// Notifier reacts to emitted events (logging, metrics, ...).
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Bus persists domain events and fans them out to notifiers.
type Bus struct {
	Store     Store
	Notifiers []Notifier
	Now       func() time.Time
}

func (b *Bus) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now().UTC()
}

// Emit records the event and dispatches it to all configured notifiers. The
// event is returned even when a notifier fails; such failures are joined into
// the returned error.
func (b *Bus) Emit(ctx context.Context, topic, sessionID, aggregate string, payload any) (Event, error) {
	if b == nil {
		return Event{}, errors.New("events: bus not configured")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Event{}, errors.New("events: topic is required")
	}
	encoded, err := encodePayload(payload)
	if err != nil {
		return Event{}, fmt.Errorf("events: encode payload: %w", err)
	}
	ev := Event{
		ID:         uuid.New(),
		Topic:      topic,
		SessionID:  sessionID,
		Aggregate:  aggregate,
		Payload:    encoded,
		OccurredAt: b.now(),
	}
	if b.Store != nil {
		if err := b.Store.Insert(ctx, ev); err != nil {
			return Event{}, fmt.Errorf("events: persist event: %w", err)
		}
	}
	var joined error
	for _, notifier := range b.Notifiers {
		if notifier == nil {
			continue
		}
		if notifyErr := notifier.Notify(ctx, ev); notifyErr != nil {
			joined = errors.Join(joined, fmt.Errorf("events: notifier: %w", notifyErr))
		}
	}
	return ev, joined
}

func encodePayload(payload any) ([]byte, error) {
	if payload == nil {
		return []byte("{}"), nil
	}
	switch v := payload.(type) {
	case []byte:
		return validJSON(v)
	case json.RawMessage:
		return validJSON(v)
	case string:
		if strings.TrimSpace(v) == "" {
			return []byte("{}"), nil
		}
		return validJSON([]byte(v))
	default:
		return json.Marshal(v)
	}
}

func validJSON(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return []byte("{}"), nil
	}
	if !json.Valid(data) {
		return nil, errors.New("payload is not valid json")
	}
	return append([]byte(nil), data...), nil
}
