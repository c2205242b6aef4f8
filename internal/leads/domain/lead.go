// Package domain provides core business rules for the lead lifecycle.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LeadState is the lifecycle position of a lead.
type LeadState string

const (
	// StateUnchanged is the sentinel returned by Decide when no transition applies.
	StateUnchanged LeadState = ""

	StateNew    LeadState = "New"
	StateActive LeadState = "Active"
	StateAtRisk LeadState = "At-Risk"
	StateStale  LeadState = "Stale"
)

var knownStates = map[LeadState]struct{}{
	StateNew:    {},
	StateActive: {},
	StateAtRisk: {},
	StateStale:  {},
}

// ParseLeadState validates a stored state value.
func ParseLeadState(raw string) (LeadState, error) {
	state := LeadState(raw)
	if _, ok := knownStates[state]; !ok {
		return StateUnchanged, fmt.Errorf("unknown lead state %q", raw)
	}
	return state, nil
}

// Evaluable reports whether the batch evaluator should look at a lead in this state.
func (s LeadState) Evaluable() bool {
	return s == StateNew || s == StateActive || s == StateAtRisk
}

// EvaluableStates lists the states the batch evaluator sweeps, in storage form.
func EvaluableStates() []string {
	return []string{string(StateNew), string(StateActive), string(StateAtRisk)}
}

// IntakeOrigin records whether a lead arrived through an agent's own channel
// or through a shared broker channel.
type IntakeOrigin string

const (
	OriginAgentDirect   IntakeOrigin = "agent_direct"
	OriginBrokerChannel IntakeOrigin = "broker_channel"
)

// Provenance is the derived-profile data the lifecycle engine reads.
type Provenance struct {
	IntakeOrigin   IntakeOrigin
	BrokerAssigned bool
	AssignedAt     *time.Time
	AssignedBy     *uuid.UUID
	AssignedTo     *uuid.UUID
}

// Lead is a prospective customer owned by one agent.
type Lead struct {
	ID           uuid.UUID
	TeamID       uuid.UUID
	OwnerAgentID uuid.UUID
	State        LeadState
	Source       string
	PrimaryEmail *string
	PrimaryPhone *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastTouchAt  *time.Time
	NextActionAt time.Time
	Provenance   Provenance
}

// NewLead describes a lead created by touch ingestion.
type NewLead struct {
	TeamID       uuid.UUID
	OwnerAgentID uuid.UUID
	Source       string
	PrimaryEmail *string
	PrimaryPhone *string
	IntakeOrigin IntakeOrigin
	CreatedAt    time.Time
}

// BrokerAssignment is the metadata written when a team lead hands a broker lead to an agent.
type BrokerAssignment struct {
	AssignedTo uuid.UUID
	AssignedBy uuid.UUID
	AssignedAt time.Time
}

// Role is a team member's role.
type Role string

const (
	RoleAgent    Role = "AGENT"
	RoleTeamLead Role = "TEAM_LEAD"
)
