// Package events provides the lead lifecycle domain events.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"leadflow_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Lifecycle Events
// =============================================================================

// LeadStateChanged is published after an evaluation commits a transition.
type LeadStateChanged struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
	TeamID uuid.UUID `json:"teamId"`
	From   string    `json:"from"`
	To     string    `json:"to"`
}

func (e LeadStateChanged) EventName() string { return "leads.state.changed" }

// LeadWentStale is published after a lead entered Stale and its rescue tasks were created.
type LeadWentStale struct {
	BaseEvent
	LeadID         uuid.UUID `json:"leadId"`
	TeamID         uuid.UUID `json:"teamId"`
	RescueOwnerID  uuid.UUID `json:"rescueOwnerId"`
	RescueTasks    int       `json:"rescueTasks"`
	BrokerAssigned bool      `json:"brokerAssigned"`
}

func (e LeadWentStale) EventName() string { return "leads.state.stale" }

// =============================================================================
// Ingestion Events
// =============================================================================

// TouchRecorded is published once per newly stored touch event.
type TouchRecorded struct {
	BaseEvent
	LeadID      uuid.UUID `json:"leadId"`
	TeamID      uuid.UUID `json:"teamId"`
	Channel     string    `json:"channel"`
	Direction   string    `json:"direction"`
	LeadCreated bool      `json:"leadCreated"`
}

func (e TouchRecorded) EventName() string { return "touch.recorded" }

// =============================================================================
// Ownership Events
// =============================================================================

// LeadReassigned is published after a manual reassignment or broker task assignment.
type LeadReassigned struct {
	BaseEvent
	LeadID        uuid.UUID `json:"leadId"`
	TeamID        uuid.UUID `json:"teamId"`
	PreviousOwner uuid.UUID `json:"previousOwner"`
	NewOwner      uuid.UUID `json:"newOwner"`
	ActorID       uuid.UUID `json:"actorId"`
	Action        string    `json:"action"`
	TasksMoved    int64     `json:"tasksMoved"`
}

func (e LeadReassigned) EventName() string { return "leads.reassigned" }
