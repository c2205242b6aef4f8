// Package rescue turns a team's rescue sequence into staged tasks for a lead
// that has just gone Stale.
package rescue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/leads/ports"

	"github.com/google/uuid"
)

// SequenceSelector picks the rescue sequence to run for a lead.
// It returns false when no sequence applies.
type SequenceSelector func(rules domain.TeamRules, lead domain.Lead) (domain.RescueSequence, bool)

// FirstSequence selects the first configured sequence.
func FirstSequence(rules domain.TeamRules, _ domain.Lead) (domain.RescueSequence, bool) {
	if len(rules.Escalation.RescueSequences) == 0 {
		return domain.RescueSequence{}, false
	}
	return rules.Escalation.RescueSequences[0], true
}

// Outcome reports what OnStale created.
type Outcome struct {
	OwnerID        uuid.UUID
	PrimaryCreated bool
	StepTasks      int
}

// Materializer creates rescue tasks inside the caller's transaction.
type Materializer struct {
	selectSequence SequenceSelector
}

// New returns a Materializer. A nil selector means FirstSequence.
func New(selector SequenceSelector) *Materializer {
	if selector == nil {
		selector = FirstSequence
	}
	return &Materializer{selectSequence: selector}
}

// Materialize creates one open rescue task per enabled step of the selected
// sequence, due offset_minutes after now and owned by ownerID. Tasks always
// require a human to send. Steps that already have an open task are skipped.
func (m *Materializer) Materialize(ctx context.Context, tx ports.Tx, rules domain.TeamRules, lead domain.Lead, ownerID uuid.UUID, now time.Time) (int, error) {
	sequence, ok := m.selectSequence(rules, lead)
	if !ok {
		return 0, nil
	}

	created := 0
	for _, step := range sequence.Steps {
		if !step.Enabled {
			continue
		}

		stepID := step.ID
		channel := step.Channel
		inserted, err := tx.InsertTask(ctx, domain.NewTask{
			LeadID:            lead.ID,
			OwnerID:           ownerID,
			DueAt:             now.Add(time.Duration(step.OffsetMinutes) * time.Minute),
			Type:              domain.TaskRescue,
			RequiresHumanSend: true,
			Channel:           &channel,
			TemplateID:        step.TemplateID,
			SequenceStepID:    &stepID,
			CreatedAt:         now,
		})
		if err != nil {
			return created, fmt.Errorf("materialize step %s: %w", step.ID, err)
		}
		if inserted {
			created++
		}
	}
	return created, nil
}

// OnStale reacts to a lead entering Stale: it makes sure the lead has one open
// primary rescue task and materializes the rescue sequence, both owned by the
// team lead when the lead was broker-assigned and by the lead's agent otherwise.
func (m *Materializer) OnStale(ctx context.Context, tx ports.Tx, rules domain.TeamRules, lead domain.Lead, now time.Time) (Outcome, error) {
	ownerID, err := ResolveOwner(ctx, tx, lead)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{OwnerID: ownerID}

	exists, err := tx.HasOpenTask(ctx, lead.ID, domain.TaskRescue)
	if err != nil {
		return Outcome{}, err
	}
	if !exists {
		out.PrimaryCreated, err = tx.InsertTask(ctx, domain.NewTask{
			LeadID:            lead.ID,
			OwnerID:           ownerID,
			DueAt:             now,
			Type:              domain.TaskRescue,
			RequiresHumanSend: true,
			CreatedAt:         now,
		})
		if err != nil {
			return Outcome{}, fmt.Errorf("create rescue task: %w", err)
		}
	}

	out.StepTasks, err = m.Materialize(ctx, tx, rules, lead, ownerID, now)
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// ResolveOwner returns the team lead for broker-assigned leads and the lead's
// own agent otherwise. A team without a team lead falls back to the agent.
func ResolveOwner(ctx context.Context, tx ports.Tx, lead domain.Lead) (uuid.UUID, error) {
	if !lead.Provenance.BrokerAssigned {
		return lead.OwnerAgentID, nil
	}
	id, err := tx.FirstUserWithRole(ctx, lead.TeamID, domain.RoleTeamLead)
	if errors.Is(err, ports.ErrNotFound) {
		return lead.OwnerAgentID, nil
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("resolve rescue owner: %w", err)
	}
	return id, nil
}
