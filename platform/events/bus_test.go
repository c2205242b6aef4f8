package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"leadflow_backend/platform/logger"
)

type pingEvent struct {
	BaseEvent
}

func (pingEvent) EventName() string { return "test.ping" }

func TestPublishReachesEveryHandler(t *testing.T) {
	bus := NewInMemoryBus(logger.Discard())
	var calls atomic.Int32
	for i := 0; i < 3; i++ {
		bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error {
			calls.Add(1)
			return nil
		}))
	}

	bus.Publish(context.Background(), pingEvent{NewBaseEvent(time.Now())})
	bus.Wait()

	if calls.Load() != 3 {
		t.Fatalf("expected 3 handler calls, got %d", calls.Load())
	}
}

func TestPublishSyncJoinsErrors(t *testing.T) {
	bus := NewInMemoryBus(logger.Discard())
	errA := errors.New("a")
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error { return errA }))
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error { return nil }))

	err := bus.PublishSync(context.Background(), pingEvent{NewBaseEvent(time.Now())})
	if !errors.Is(err, errA) {
		t.Fatalf("expected joined error to contain handler error, got %v", err)
	}
}

func TestPublishSurvivesPanickingHandler(t *testing.T) {
	bus := NewInMemoryBus(logger.Discard())
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error { panic("boom") }))

	bus.Publish(context.Background(), pingEvent{NewBaseEvent(time.Now())})
	bus.Wait()
}
