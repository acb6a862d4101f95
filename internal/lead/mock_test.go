package lead

import (
	"context"
	"sync"

	"github.com/hunterpro/hunter-cli/internal/events"
	"github.com/hunterpro/hunter-cli/internal/model"
)

// mockStore implements Store for testing with unique-key upsert semantics.
type mockStore struct {
	mu        sync.Mutex
	leads     map[string]model.Lead
	events    []model.AuditEvent
	upserts   int
	upsertErr error
	appendErr error
}

func newMockStore() *mockStore {
	return &mockStore{leads: make(map[string]model.Lead)}
}

func (m *mockStore) UpsertLead(_ context.Context, l model.Lead) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return false, m.upsertErr
	}
	m.upserts++
	cur, exists := m.leads[l.Phone]
	if exists {
		l.Status = cur.Status
		l.CreatedAt = cur.CreatedAt
	}
	m.leads[l.Phone] = l
	return !exists, nil
}

func (m *mockStore) AppendEvent(_ context.Context, evt model.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.events = append(m.events, evt)
	return nil
}

type mockPublisher struct {
	mu  sync.Mutex
	got []events.Event
	err error
}

func (m *mockPublisher) Publish(_ context.Context, evt events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.got = append(m.got, evt)
	return m.err
}
