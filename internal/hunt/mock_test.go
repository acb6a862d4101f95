package hunt

import (
	"context"
	"sync"

	"github.com/hunterpro/hunter-cli/internal/events"
	"github.com/hunterpro/hunter-cli/internal/model"
)

// memStore implements lead.Store and RunStore in memory.
type memStore struct {
	mu     sync.Mutex
	leads  map[string]model.Lead
	events []model.AuditEvent
	runs   []model.HuntRun
}

func newMemStore() *memStore {
	return &memStore{leads: make(map[string]model.Lead)}
}

func (m *memStore) UpsertLead(_ context.Context, l model.Lead) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, exists := m.leads[l.Phone]
	if exists {
		l.Status = cur.Status
		l.CreatedAt = cur.CreatedAt
	}
	m.leads[l.Phone] = l
	return !exists, nil
}

func (m *memStore) AppendEvent(_ context.Context, evt model.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

func (m *memStore) InsertRun(_ context.Context, run model.HuntRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *memStore) eventsOfType(typ string) []model.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AuditEvent
	for _, e := range m.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// fakeThrottler counts governor interactions without sleeping.
type fakeThrottler struct {
	mu          sync.Mutex
	throttles   int
	rateLimited int
	err         error
}

func (f *fakeThrottler) Throttle(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.throttles++
	if f.err != nil {
		return f.err
	}
	return ctx.Err()
}

func (f *fakeThrottler) RateLimited() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rateLimited++
}

// chanPublisher forwards events to a channel.
type chanPublisher struct {
	ch chan events.Event
}

func (c chanPublisher) Publish(_ context.Context, evt events.Event) error {
	c.ch <- evt
	return nil
}
