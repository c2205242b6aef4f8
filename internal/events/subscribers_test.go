package events

import (
	"context"
	"testing"
	"time"

	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/metrics"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestStateChangeUpdatesTransitionCounter(t *testing.T) {
	bus := NewInMemoryBus(logger.Discard())
	RegisterLifecycleSubscribers(bus, logger.Discard())

	counter := metrics.LeadTransitions.WithLabelValues("Active", "At-Risk")
	before := testutil.ToFloat64(counter)

	err := bus.PublishSync(context.Background(), LeadStateChanged{
		BaseEvent: NewBaseEvent(time.Now()),
		LeadID:    uuid.New(),
		TeamID:    uuid.New(),
		From:      "Active",
		To:        "At-Risk",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Fatalf("expected transition counter to grow by 1, got %v", got)
	}
}

func TestWentStaleCountsRescueTasks(t *testing.T) {
	bus := NewInMemoryBus(logger.Discard())
	RegisterLifecycleSubscribers(bus, logger.Discard())

	before := testutil.ToFloat64(metrics.RescueTasksCreated)
	bus.Publish(context.Background(), LeadWentStale{BaseEvent: NewBaseEvent(time.Now()), LeadID: uuid.New(), RescueTasks: 3})
	bus.Wait()

	if got := testutil.ToFloat64(metrics.RescueTasksCreated) - before; got != 3 {
		t.Fatalf("expected 3 rescue tasks counted, got %v", got)
	}
}
