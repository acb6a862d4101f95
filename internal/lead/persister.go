// Package lead gates and persists discovered phone numbers.
package lead

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hunterpro/hunter-cli/internal/events"
	"github.com/hunterpro/hunter-cli/internal/model"
	"github.com/hunterpro/hunter-cli/internal/phone"
)

// Store is the persistence subset the persister writes to.
type Store interface {
	UpsertLead(ctx context.Context, lead model.Lead) (inserted bool, err error)
	AppendEvent(ctx context.Context, evt model.AuditEvent) error
}

// Discovery is one phone number surfaced by a search result.
type Discovery struct {
	Phone    string
	Intent   string
	Provider string
	Link     string
	Quality  model.QualityTier
	Segment  model.SegmentLevel
	Actor    string
	RunID    string
}

// Source returns the lead source descriptor "<provider>: <intent>".
func (d Discovery) Source() string {
	return d.Provider + ": " + d.Intent
}

// Outcome reports what Persist did with a discovery.
type Outcome struct {
	Accepted bool // passed the gate and was written
	Inserted bool // the phone was new to the store
}

// Persister writes accepted discoveries to the store.
type Persister struct {
	store Store
	pub   events.Publisher
	now   func() time.Time
}

// Option configures a Persister.
type Option func(*Persister)

// WithPublisher sends a lead.created event for every new lead.
func WithPublisher(p events.Publisher) Option {
	return func(ps *Persister) {
		ps.pub = p
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(ps *Persister) {
		ps.now = now
	}
}

// NewPersister creates a Persister over st.
func NewPersister(st Store, opts ...Option) *Persister {
	p := &Persister{
		store: st,
		pub:   events.Nop{},
		now:   time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Save persists d and reports whether it was accepted. TRASH results and
// invalid phones are rejected without a write.
func (p *Persister) Save(ctx context.Context, d Discovery) (bool, error) {
	out, err := p.Persist(ctx, d)
	return out.Accepted, err
}

// Persist is Save with the insert/refresh distinction exposed.
func (p *Persister) Persist(ctx context.Context, d Discovery) (Outcome, error) {
	if d.Quality == model.QualityTrash || d.Quality == "" {
		return Outcome{}, nil
	}
	num := phone.Normalize(d.Phone)
	if !phone.Valid(num) {
		return Outcome{}, nil
	}

	now := p.now().UTC()
	inserted, err := p.store.UpsertLead(ctx, model.Lead{
		Phone:     num,
		Source:    d.Source(),
		Quality:   d.Quality,
		Segment:   d.Segment,
		Notes:     d.Link,
		Actor:     d.Actor,
		Status:    model.LeadStatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Outcome{}, eris.Wrapf(err, "lead: upsert %s", num)
	}
	if !inserted {
		return Outcome{Accepted: true}, nil
	}

	// The lead is stored; an audit failure is reported but the save stands.
	evt := model.AuditEvent{
		ID:        uuid.New().String(),
		Type:      model.EventLeadCreated,
		Actor:     d.Actor,
		Subject:   num,
		Detail:    string(d.Quality) + "/" + string(d.Segment),
		CreatedAt: now,
	}
	out := Outcome{Accepted: true, Inserted: true}
	if err := p.store.AppendEvent(ctx, evt); err != nil {
		return out, eris.Wrapf(err, "lead: audit %s", num)
	}

	if err := p.pub.Publish(ctx, events.New(events.TypeLeadCreated, d.RunID, map[string]string{
		"phone_number": num,
		"quality":      string(d.Quality),
		"segment":      string(d.Segment),
		"priority":     d.Segment.Priority(),
		"source":       d.Source(),
		"link":         d.Link,
	})); err != nil {
		zap.L().Warn("lead: publish event failed", zap.String("phone", num), zap.Error(err))
	}
	return out, nil
}
