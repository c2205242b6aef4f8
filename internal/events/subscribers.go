package events

import (
	"context"

	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/metrics"
)

// RegisterLifecycleSubscribers wires the handlers that turn lifecycle events
// into metrics and log lines.
func RegisterLifecycleSubscribers(bus Bus, log *logger.Logger) {
	log = log.WithComponent("lifecycle-events")

	bus.Subscribe(LeadStateChanged{}.EventName(), HandlerFunc(func(ctx context.Context, event Event) error {
		e, ok := event.(LeadStateChanged)
		if !ok {
			return nil
		}
		metrics.LeadTransitions.WithLabelValues(e.From, e.To).Inc()
		log.Info("lead state changed", "leadId", e.LeadID, "teamId", e.TeamID, "from", e.From, "to", e.To)
		return nil
	}))

	bus.Subscribe(LeadWentStale{}.EventName(), HandlerFunc(func(ctx context.Context, event Event) error {
		e, ok := event.(LeadWentStale)
		if !ok {
			return nil
		}
		metrics.RescueTasksCreated.Add(float64(e.RescueTasks))
		log.Warn("lead went stale",
			"leadId", e.LeadID,
			"teamId", e.TeamID,
			"rescueOwnerId", e.RescueOwnerID,
			"rescueTasks", e.RescueTasks,
			"brokerAssigned", e.BrokerAssigned,
		)
		return nil
	}))

	bus.Subscribe(TouchRecorded{}.EventName(), HandlerFunc(func(ctx context.Context, event Event) error {
		e, ok := event.(TouchRecorded)
		if !ok {
			return nil
		}
		log.Info("touch recorded", "leadId", e.LeadID, "channel", e.Channel, "direction", e.Direction, "leadCreated", e.LeadCreated)
		return nil
	}))

	bus.Subscribe(LeadReassigned{}.EventName(), HandlerFunc(func(ctx context.Context, event Event) error {
		e, ok := event.(LeadReassigned)
		if !ok {
			return nil
		}
		log.Info("lead reassigned",
			"leadId", e.LeadID,
			"action", e.Action,
			"from", e.PreviousOwner,
			"to", e.NewOwner,
			"actorId", e.ActorID,
			"tasksMoved", e.TasksMoved,
		)
		return nil
	}))
}
