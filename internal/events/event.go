// Package events carries hunt lifecycle and lead notifications to
// in-process subscribers (SSE) and to a message broker.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Event types.
const (
	TypeHuntStarted   = "hunt.started"
	TypeHuntCompleted = "hunt.completed"
	TypeLeadCreated   = "lead.created"
	TypePing          = "ping"
)

// Version of the envelope layout.
const Version = 1

// Event is the envelope sent to every subscriber.
type Event struct {
	Type    string          `json:"type"`
	Version int             `json:"v"`
	At      time.Time       `json:"at"`
	RunID   string          `json:"run_id,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// New builds an Event, marshaling data into the envelope. A nil data leaves
// the payload empty.
func New(typ, runID string, data any) Event {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err == nil {
			raw = b
		}
	}
	return Event{
		Type:    typ,
		Version: Version,
		At:      time.Now().UTC(),
		RunID:   runID,
		Data:    raw,
	}
}

// Encode returns the JSON form of e.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi fans an event out to several publishers. Every publisher is tried;
// the returned error joins the individual failures.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, evt Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
