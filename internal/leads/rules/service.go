// Package rules serves and edits a team's lifecycle rules: stale thresholds,
// SLA targets, broker intake channels and rescue sequences.
package rules

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/leads/ports"
	"leadflow_backend/internal/leads/transport"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/validator"

	"github.com/google/uuid"
)

// Service reads and updates team rules.
type Service struct {
	store ports.Store
	val   *validator.Validator
	clock func() time.Time
}

func New(store ports.Store, val *validator.Validator) *Service {
	return &Service{store: store, val: val, clock: func() time.Time { return time.Now().UTC() }}
}

// GetRules returns the team's rules with defaults applied.
func (s *Service) GetRules(ctx context.Context, teamID uuid.UUID) (transport.TeamRulesResponse, error) {
	var rules domain.TeamRules
	err := s.store.InTx(ctx, func(tx ports.Tx) error {
		var err error
		rules, err = readRules(ctx, tx.TeamRules, teamID)
		return err
	})
	if err != nil {
		return transport.TeamRulesResponse{}, err
	}
	return toResponse(rules), nil
}

// UpdateRules applies a partial update to the stale rules, SLA rules and broker
// intake. The team row stays locked between read and write.
func (s *Service) UpdateRules(ctx context.Context, teamID uuid.UUID, req transport.UpdateTeamRulesRequest) (transport.TeamRulesResponse, error) {
	var rules domain.TeamRules
	err := s.store.InTx(ctx, func(tx ports.Tx) error {
		var err error
		rules, err = readRules(ctx, tx.LockTeamRules, teamID)
		if err != nil {
			return err
		}

		applyPatch(&rules, req)
		if err := s.check(rules); err != nil {
			return err
		}

		rules.UpdatedAt = s.clock()
		return tx.SaveTeamRules(ctx, rules, rules.UpdatedAt)
	})
	if err != nil {
		return transport.TeamRulesResponse{}, err
	}
	return toResponse(rules), nil
}

// GetRescueSequences returns the configured sequences in order.
func (s *Service) GetRescueSequences(ctx context.Context, teamID uuid.UUID) (transport.RescueSequencesResponse, error) {
	resp, err := s.GetRules(ctx, teamID)
	if err != nil {
		return transport.RescueSequencesResponse{}, err
	}
	return transport.RescueSequencesResponse{RescueSequences: resp.EscalationRules.RescueSequences}, nil
}

// ReplaceRescueSequences swaps the whole sequence list. Step ids must be unique
// across the team and template references must resolve.
func (s *Service) ReplaceRescueSequences(ctx context.Context, teamID uuid.UUID, req transport.ReplaceRescueSequencesRequest) (transport.RescueSequencesResponse, error) {
	var rules domain.TeamRules
	err := s.store.InTx(ctx, func(tx ports.Tx) error {
		var err error
		rules, err = readRules(ctx, tx.LockTeamRules, teamID)
		if err != nil {
			return err
		}

		rules.Escalation.RescueSequences = req.RescueSequences
		if err := checkSequences(rules.Escalation); err != nil {
			return err
		}
		if err := s.check(rules); err != nil {
			return err
		}

		rules.UpdatedAt = s.clock()
		return tx.SaveTeamRules(ctx, rules, rules.UpdatedAt)
	})
	if err != nil {
		return transport.RescueSequencesResponse{}, err
	}
	return transport.RescueSequencesResponse{RescueSequences: rules.Escalation.RescueSequences}, nil
}

func readRules(ctx context.Context, read func(context.Context, uuid.UUID) (domain.TeamRules, error), teamID uuid.UUID) (domain.TeamRules, error) {
	rules, err := read(ctx, teamID)
	switch {
	case errors.Is(err, ports.ErrNotFound):
		return domain.TeamRules{}, apperr.NotFound("team not found")
	case errors.Is(err, domain.ErrInvalidRules):
		return domain.TeamRules{}, apperr.Wrap(apperr.KindInternal, "stored team rules are invalid", err)
	}
	return rules, err
}

func applyPatch(rules *domain.TeamRules, req transport.UpdateTeamRulesRequest) {
	setInt(&rules.Stale.NewLeadSLAMinutes, req.NewLeadSLAMinutes)
	setInt(&rules.Stale.ActiveStaleHours, req.ActiveStaleHours)
	setInt(&rules.Stale.AtRiskThresholdPercent, req.AtRiskThresholdPercent)
	if req.Timezone != nil {
		rules.Stale.Timezone = *req.Timezone
	}
	if req.EscalationEnabled != nil {
		rules.SLA.EscalationEnabled = *req.EscalationEnabled
	}
	setInt(&rules.SLA.ResponseTargetMinutes, req.ResponseTargetMinutes)

	if p := req.BrokerIntake; p != nil {
		if p.MailboxConnectionIDs != nil {
			rules.Escalation.BrokerIntake.MailboxConnectionIDs = *p.MailboxConnectionIDs
		}
		if p.PhoneNumberIDs != nil {
			rules.Escalation.BrokerIntake.PhoneNumberIDs = *p.PhoneNumberIDs
		}
		setInt(&rules.Escalation.BrokerIntake.StaleHoursForAssigned, p.StaleHoursForAssigned)
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

// check runs the struct validation tags and the invariants Decide needs.
func (s *Service) check(rules domain.TeamRules) error {
	if err := s.val.Struct(rules); err != nil {
		return apperr.Validation("invalid team rules").WithDetails(validator.Details(err))
	}
	if err := rules.Check(); err != nil {
		return apperr.Validation(err.Error())
	}
	return nil
}

func checkSequences(esc domain.EscalationRules) error {
	templates := make(map[uuid.UUID]struct{}, len(esc.Templates))
	for _, t := range esc.Templates {
		templates[t.ID] = struct{}{}
	}

	steps := make(map[uuid.UUID]struct{})
	for _, seq := range esc.RescueSequences {
		for _, step := range seq.Steps {
			if _, dup := steps[step.ID]; dup {
				return apperr.Validation(fmt.Sprintf("duplicate step id %s", step.ID))
			}
			steps[step.ID] = struct{}{}

			if step.TemplateID == nil {
				continue
			}
			if _, ok := templates[*step.TemplateID]; !ok {
				return apperr.Validation(fmt.Sprintf("step %s references unknown template %s", step.ID, *step.TemplateID))
			}
		}
	}
	return nil
}

func toResponse(rules domain.TeamRules) transport.TeamRulesResponse {
	resp := transport.TeamRulesResponse{
		StaleRules:      rules.Stale,
		SLARules:        rules.SLA,
		EscalationRules: rules.Escalation,
	}
	if !rules.UpdatedAt.IsZero() {
		updated := rules.UpdatedAt
		resp.UpdatedAt = &updated
	}
	return resp
}
