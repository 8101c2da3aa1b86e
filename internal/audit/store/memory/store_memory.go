package memory

import (
	"context"
	"sync"

	"clinicore/internal/audit"
	"clinicore/pkg/domain"
)

// InMemoryStore is the append-only audit store used by unit tests and the
// demo wiring. Events are bucketed per tenant; queries never cross buckets.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[domain.TenantID][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[domain.TenantID][]audit.Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.Context.TenantID] = append(s.events[event.Context.TenantID], event)
	return nil
}

// ListByTenant returns a copy of the tenant's events in append order.
func (s *InMemoryStore) ListByTenant(_ context.Context, tenantID domain.TenantID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[tenantID]...), nil
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[domain.TenantID][]audit.Event)
}
