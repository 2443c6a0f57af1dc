package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
	fail   bool
}

func (s *captureSink) Produce(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("broker unreachable")
	}
	s.events = append(s.events, event)
	return nil
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestEmitPersistsAndStampsTimestamp(t *testing.T) {
	ctx := context.Background()
	p := NewPublisher(NewInMemoryStore())

	require.NoError(t, p.Emit(ctx, Event{
		Actor:    "admin",
		Action:   ActionRegisterInstitution,
		EntityID: "UNI-1",
	}))

	events, err := p.List(ctx, "UNI-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Timestamp.IsZero())
	assert.Equal(t, ActionRegisterInstitution, events[0].Action)
}

func TestWorkerDrainsInboxToSink(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewPublisher(NewInMemoryStore())
	sink := &captureSink{}
	worker := NewWorker(p.Inbox(), sink, slog.New(slog.DiscardHandler))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Run(ctx)
	}()

	require.NoError(t, p.Emit(ctx, Event{Action: ActionRevokeDegree, EntityID: "DEG-1"}))
	require.NoError(t, p.Emit(ctx, Event{Action: ActionRevokeDegree, EntityID: "DEG-2"}))

	require.Eventually(t, func() bool { return sink.count() == 2 }, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestSinkFailureKeepsStoreCopy(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewPublisher(NewInMemoryStore())
	sink := &captureSink{fail: true}
	worker := NewWorker(p.Inbox(), sink, slog.New(slog.DiscardHandler))
	go func() { _ = worker.Run(ctx) }()

	require.NoError(t, p.Emit(ctx, Event{Action: ActionBlacklistInstitution, EntityID: "UNI-1"}))

	events, err := p.List(ctx, "UNI-1")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
