package audit

import (
	"context"
	"sync"
	"time"
)

// Store persists audit events. Append-only.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByEntity(ctx context.Context, entityID string) ([]Event, error)
}

// Publisher captures structured audit events. Events are persisted
// synchronously and offered to the background sink queue best-effort; a slow
// or absent sink never blocks a ledger transaction.
type Publisher struct {
	store Store
	inbox chan Event
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{
		store: store,
		inbox: make(chan Event, 256),
	}
}

func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := p.store.Append(ctx, event); err != nil {
		return err
	}
	select {
	case p.inbox <- event:
	default:
		// Queue full; the store already has the event.
	}
	return nil
}

func (p *Publisher) List(ctx context.Context, entityID string) ([]Event, error) {
	return p.store.ListByEntity(ctx, entityID)
}

// Inbox exposes the sink queue for the worker.
func (p *Publisher) Inbox() <-chan Event { return p.inbox }

// InMemoryStore keeps events per entity; the default store for single-node
// runs and tests.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[string][]Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[string][]Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.EntityID] = append(s.events[event.EntityID], event)
	return nil
}

func (s *InMemoryStore) ListByEntity(_ context.Context, entityID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event{}, s.events[entityID]...), nil
}
