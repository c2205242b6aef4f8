package transport

import (
	"time"

	"leadflow_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// Request DTOs
type ReassignLeadRequest struct {
	NewOwnerID uuid.UUID `json:"new_owner_id" validate:"required"`
	Reason     string    `json:"reason,omitempty" validate:"max=500"`
}

type AssignBrokerTaskRequest struct {
	AssigneeUserID uuid.UUID `json:"assignee_user_id" validate:"required"`
	Reason         string    `json:"reason" validate:"required,min=1,max=500"`
}

// UpdateTeamRulesRequest is a partial update: absent fields keep their stored value.
// Stale and SLA fields are flat, broker intake is nested.
type UpdateTeamRulesRequest struct {
	NewLeadSLAMinutes      *int               `json:"new_lead_sla_minutes,omitempty" validate:"omitempty,gte=1,lte=10080"`
	ActiveStaleHours       *int               `json:"active_stale_hours,omitempty" validate:"omitempty,gte=1,lte=8760"`
	AtRiskThresholdPercent *int               `json:"at_risk_threshold_percent,omitempty" validate:"omitempty,gte=1,lte=99"`
	Timezone               *string            `json:"timezone,omitempty" validate:"omitempty,timezone"`
	EscalationEnabled      *bool              `json:"escalation_enabled,omitempty"`
	ResponseTargetMinutes  *int               `json:"response_target_minutes,omitempty" validate:"omitempty,gte=1,lte=10080"`
	BrokerIntake           *BrokerIntakePatch `json:"broker_intake,omitempty"`
}

type BrokerIntakePatch struct {
	MailboxConnectionIDs  *[]uuid.UUID `json:"mailbox_connection_ids,omitempty" validate:"omitempty,max=100"`
	PhoneNumberIDs        *[]uuid.UUID `json:"phone_number_ids,omitempty" validate:"omitempty,max=100"`
	StaleHoursForAssigned *int         `json:"stale_hours_for_assigned,omitempty" validate:"omitempty,gte=1,lte=8760"`
}

type ReplaceRescueSequencesRequest struct {
	RescueSequences []domain.RescueSequence `json:"rescue_sequences" validate:"required,max=50,dive"`
}

// Response DTOs
type ReassignLeadResponse struct {
	LeadID       uuid.UUID `json:"lead_id"`
	OwnerAgentID uuid.UUID `json:"owner_agent_id"`
	TasksMoved   int64     `json:"tasks_moved"`
}

type AssignBrokerTaskResponse struct {
	TaskID       uuid.UUID `json:"task_id"`
	LeadID       uuid.UUID `json:"lead_id"`
	OwnerAgentID uuid.UUID `json:"owner_agent_id"`
}

type TeamRulesResponse struct {
	StaleRules      domain.StaleRules      `json:"stale_rules"`
	SLARules        domain.SLARules        `json:"sla_rules"`
	EscalationRules domain.EscalationRules `json:"escalation_rules"`
	UpdatedAt       *time.Time             `json:"updated_at,omitempty"`
}

type RescueSequencesResponse struct {
	RescueSequences []domain.RescueSequence `json:"rescue_sequences"`
}
