package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// StaleRules drive the lifecycle thresholds of a team.
type StaleRules struct {
	NewLeadSLAMinutes      int    `json:"new_lead_sla_minutes" yaml:"new_lead_sla_minutes" validate:"gte=1,lte=10080"`
	ActiveStaleHours       int    `json:"active_stale_hours" yaml:"active_stale_hours" validate:"gte=1,lte=8760"`
	AtRiskThresholdPercent int    `json:"at_risk_threshold_percent" yaml:"at_risk_threshold_percent" validate:"gte=1,lte=99"`
	Timezone               string `json:"timezone" yaml:"timezone" validate:"required,timezone"`
}

// SLARules are the team's response-time commitments.
type SLARules struct {
	EscalationEnabled     bool `json:"escalation_enabled" yaml:"escalation_enabled"`
	ResponseTargetMinutes int  `json:"response_target_minutes" yaml:"response_target_minutes" validate:"gte=1,lte=10080"`
}

// Template is a reusable message body a rescue step may point at.
type Template struct {
	ID       uuid.UUID `json:"id" validate:"required"`
	Name     string    `json:"name" validate:"required,max=200"`
	Language string    `json:"language" validate:"required,bcp47_language_tag"`
	Channel  string    `json:"channel" validate:"oneof=email sms"`
	Body     string    `json:"body" validate:"required,max=10000"`
}

// Step channels.
const (
	StepChannelEmail = "email"
	StepChannelSMS   = "sms"
	StepChannelCall  = "call"
	StepChannelTask  = "task"
)

// RescueStep is one staged action of a rescue sequence.
type RescueStep struct {
	ID                uuid.UUID  `json:"id" validate:"required"`
	OffsetMinutes     int        `json:"offset_minutes" validate:"gte=0,lte=525600"`
	Channel           string     `json:"channel" validate:"oneof=email sms call task"`
	TemplateID        *uuid.UUID `json:"template_id,omitempty"`
	RequiresHumanSend bool       `json:"requires_human_send"`
	Enabled           bool       `json:"enabled"`
}

// UnmarshalJSON defaults requires_human_send and enabled to true when absent.
func (s *RescueStep) UnmarshalJSON(data []byte) error {
	type plain RescueStep
	v := plain{RequiresHumanSend: true, Enabled: true}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = RescueStep(v)
	return nil
}

// RescueSequence is an ordered list of steps materialized when a lead goes Stale.
type RescueSequence struct {
	ID       uuid.UUID    `json:"id" validate:"required"`
	Name     string       `json:"name" validate:"required,max=200"`
	Language string       `json:"language,omitempty"`
	Steps    []RescueStep `json:"steps" validate:"min=1,max=50,dive"`
}

// BrokerIntake lists the shared channels whose leads are broker leads.
type BrokerIntake struct {
	MailboxConnectionIDs  []uuid.UUID `json:"mailbox_connection_ids"`
	PhoneNumberIDs        []uuid.UUID `json:"phone_number_ids"`
	StaleHoursForAssigned int         `json:"stale_hours_for_assigned" validate:"gte=1,lte=8760"`
}

// IncludesMailbox reports whether the mailbox is a broker intake channel.
func (b BrokerIntake) IncludesMailbox(id uuid.UUID) bool {
	return slices.Contains(b.MailboxConnectionIDs, id)
}

// IncludesPhoneLine reports whether the phone line is a broker intake channel.
func (b BrokerIntake) IncludesPhoneLine(id uuid.UUID) bool {
	return slices.Contains(b.PhoneNumberIDs, id)
}

// EscalationRules group templates, rescue sequences and broker intake.
type EscalationRules struct {
	Templates       []Template       `json:"templates" validate:"max=200,dive"`
	RescueSequences []RescueSequence `json:"rescue_sequences" validate:"max=50,dive"`
	BrokerIntake    BrokerIntake     `json:"broker_intake"`
}

// TeamRules is an immutable snapshot of a team's configuration.
type TeamRules struct {
	TeamID     uuid.UUID       `json:"-"`
	Stale      StaleRules      `json:"stale_rules"`
	SLA        SLARules        `json:"sla_rules"`
	Escalation EscalationRules `json:"escalation_rules"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// RuleDefaults fill in whatever a team has not configured.
type RuleDefaults struct {
	Stale                       StaleRules `yaml:"stale_rules"`
	SLA                         SLARules   `yaml:"sla_rules"`
	BrokerStaleHoursForAssigned int        `yaml:"broker_stale_hours_for_assigned"`
}

// BuiltinDefaults are used when no defaults file is configured.
func BuiltinDefaults() RuleDefaults {
	return RuleDefaults{
		Stale: StaleRules{
			NewLeadSLAMinutes:      60,
			ActiveStaleHours:       48,
			AtRiskThresholdPercent: 80,
			Timezone:               "UTC",
		},
		SLA: SLARules{
			EscalationEnabled:     true,
			ResponseTargetMinutes: 60,
		},
		BrokerStaleHoursForAssigned: 168,
	}
}

// Merge fills zero-valued fields of d from the built-in defaults.
func (d RuleDefaults) Merge() RuleDefaults {
	base := BuiltinDefaults()
	if d.Stale.NewLeadSLAMinutes > 0 {
		base.Stale.NewLeadSLAMinutes = d.Stale.NewLeadSLAMinutes
	}
	if d.Stale.ActiveStaleHours > 0 {
		base.Stale.ActiveStaleHours = d.Stale.ActiveStaleHours
	}
	if d.Stale.AtRiskThresholdPercent > 0 {
		base.Stale.AtRiskThresholdPercent = d.Stale.AtRiskThresholdPercent
	}
	if d.Stale.Timezone != "" {
		base.Stale.Timezone = d.Stale.Timezone
	}
	if d.SLA.ResponseTargetMinutes > 0 {
		base.SLA = d.SLA
	}
	if d.BrokerStaleHoursForAssigned > 0 {
		base.BrokerStaleHoursForAssigned = d.BrokerStaleHoursForAssigned
	}
	return base
}

// ErrInvalidRules marks a stored rule set that cannot drive decisions.
var ErrInvalidRules = errors.New("invalid team rules")

// ParseTeamRules decodes the three stored JSON documents of a team on top of
// defaults. Empty documents yield the defaults unchanged.
func ParseTeamRules(teamID uuid.UUID, defaults RuleDefaults, staleRaw, slaRaw, escalationRaw []byte) (TeamRules, error) {
	rules := TeamRules{
		TeamID: teamID,
		Stale:  defaults.Stale,
		SLA:    defaults.SLA,
		Escalation: EscalationRules{
			BrokerIntake: BrokerIntake{StaleHoursForAssigned: defaults.BrokerStaleHoursForAssigned},
		},
	}

	if err := decodeInto(staleRaw, &rules.Stale); err != nil {
		return TeamRules{}, fmt.Errorf("%w: stale_rules: %v", ErrInvalidRules, err)
	}
	if err := decodeInto(slaRaw, &rules.SLA); err != nil {
		return TeamRules{}, fmt.Errorf("%w: sla_rules: %v", ErrInvalidRules, err)
	}
	if err := decodeInto(escalationRaw, &rules.Escalation); err != nil {
		return TeamRules{}, fmt.Errorf("%w: escalation_rules: %v", ErrInvalidRules, err)
	}
	rules.normalize()

	if err := rules.Check(); err != nil {
		return TeamRules{}, err
	}
	return rules, nil
}

func decodeInto(raw []byte, target any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, target)
}

func (r *TeamRules) normalize() {
	if r.Escalation.Templates == nil {
		r.Escalation.Templates = []Template{}
	}
	if r.Escalation.RescueSequences == nil {
		r.Escalation.RescueSequences = []RescueSequence{}
	}
	if r.Escalation.BrokerIntake.MailboxConnectionIDs == nil {
		r.Escalation.BrokerIntake.MailboxConnectionIDs = []uuid.UUID{}
	}
	if r.Escalation.BrokerIntake.PhoneNumberIDs == nil {
		r.Escalation.BrokerIntake.PhoneNumberIDs = []uuid.UUID{}
	}
}

// Check verifies the invariants Decide relies on.
func (r TeamRules) Check() error {
	switch {
	case r.Stale.NewLeadSLAMinutes <= 0:
		return fmt.Errorf("%w: new_lead_sla_minutes must be positive", ErrInvalidRules)
	case r.Stale.ActiveStaleHours <= 0:
		return fmt.Errorf("%w: active_stale_hours must be positive", ErrInvalidRules)
	case r.Stale.AtRiskThresholdPercent < 1 || r.Stale.AtRiskThresholdPercent > 99:
		return fmt.Errorf("%w: at_risk_threshold_percent must be between 1 and 99", ErrInvalidRules)
	case r.Escalation.BrokerIntake.StaleHoursForAssigned <= 0:
		return fmt.Errorf("%w: stale_hours_for_assigned must be positive", ErrInvalidRules)
	}
	return nil
}

// Documents encodes the rule set back into its three stored JSON documents.
func (r TeamRules) Documents() (stale, sla, escalation []byte, err error) {
	if stale, err = json.Marshal(r.Stale); err != nil {
		return nil, nil, nil, err
	}
	if sla, err = json.Marshal(r.SLA); err != nil {
		return nil, nil, nil, err
	}
	if escalation, err = json.Marshal(r.Escalation); err != nil {
		return nil, nil, nil, err
	}
	return stale, sla, escalation, nil
}
