package rules

import (
	"context"
	"testing"

	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/leads/leadstest"
	"leadflow_backend/internal/leads/transport"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/validator"

	"github.com/google/uuid"
)

const fmtUnexpectedErr = "unexpected error: %v"

func ptr[T any](v T) *T { return &v }

func newService() (*Service, *leadstest.Store, uuid.UUID) {
	store := leadstest.New()
	return New(store, validator.New()), store, store.AddTeam()
}

func TestGetRulesAppliesDefaults(t *testing.T) {
	svc, _, teamID := newService()

	resp, err := svc.GetRules(context.Background(), teamID)
	if err != nil {
		t.Fatalf(fmtUnexpectedErr, err)
	}
	if resp.StaleRules != domain.BuiltinDefaults().Stale {
		t.Fatalf("expected defaults, got %+v", resp.StaleRules)
	}
}

func TestGetRulesUnknownTeam(t *testing.T) {
	svc, _, _ := newService()
	if _, err := svc.GetRules(context.Background(), uuid.New()); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateRulesPartial(t *testing.T) {
	svc, store, teamID := newService()
	mailbox := uuid.New()

	_, err := svc.UpdateRules(context.Background(), teamID, transport.UpdateTeamRulesRequest{
		ActiveStaleHours:  ptr(72),
		EscalationEnabled: ptr(false),
		BrokerIntake:      &transport.BrokerIntakePatch{MailboxConnectionIDs: &[]uuid.UUID{mailbox}},
	})
	if err != nil {
		t.Fatalf(fmtUnexpectedErr, err)
	}

	stored, err := store.Rules(teamID)
	if err != nil {
		t.Fatalf(fmtUnexpectedErr, err)
	}
	if stored.Stale.ActiveStaleHours != 72 || stored.Stale.NewLeadSLAMinutes != 60 {
		t.Fatalf("unexpected stale rules %+v", stored.Stale)
	}
	if stored.SLA.EscalationEnabled || stored.SLA.ResponseTargetMinutes != 60 {
		t.Fatalf("unexpected SLA rules %+v", stored.SLA)
	}
	if !stored.Escalation.BrokerIntake.IncludesMailbox(mailbox) || stored.Escalation.BrokerIntake.StaleHoursForAssigned != 168 {
		t.Fatalf("unexpected broker intake %+v", stored.Escalation.BrokerIntake)
	}
}

func TestUpdateRulesRejectsInvalidTimezone(t *testing.T) {
	svc, store, teamID := newService()

	_, err := svc.UpdateRules(context.Background(), teamID, transport.UpdateTeamRulesRequest{
		ActiveStaleHours: ptr(12),
		Timezone:         ptr("Mars/Olympus"),
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	stored, _ := store.Rules(teamID)
	if stored.Stale.ActiveStaleHours != 48 {
		t.Fatal("rejected update must not be persisted")
	}
}

func sequence(steps ...domain.RescueStep) domain.RescueSequence {
	return domain.RescueSequence{ID: uuid.New(), Name: "rescue", Steps: steps}
}

func TestReplaceRescueSequences(t *testing.T) {
	svc, _, teamID := newService()
	seq := sequence(
		domain.RescueStep{ID: uuid.New(), OffsetMinutes: 0, Channel: domain.StepChannelCall, Enabled: true, RequiresHumanSend: true},
		domain.RescueStep{ID: uuid.New(), OffsetMinutes: 60, Channel: domain.StepChannelTask, Enabled: true},
	)

	if _, err := svc.ReplaceRescueSequences(context.Background(), teamID, transport.ReplaceRescueSequencesRequest{
		RescueSequences: []domain.RescueSequence{seq},
	}); err != nil {
		t.Fatalf(fmtUnexpectedErr, err)
	}

	resp, err := svc.GetRescueSequences(context.Background(), teamID)
	if err != nil {
		t.Fatalf(fmtUnexpectedErr, err)
	}
	if len(resp.RescueSequences) != 1 || len(resp.RescueSequences[0].Steps) != 2 || resp.RescueSequences[0].ID != seq.ID {
		t.Fatalf("unexpected sequences %+v", resp.RescueSequences)
	}
}

func TestReplaceRescueSequencesValidation(t *testing.T) {
	svc, _, teamID := newService()
	stepID := uuid.New()
	unknownTemplate := uuid.New()

	cases := map[string][]domain.RescueSequence{
		"empty steps": {sequence()},
		"duplicate step ids": {
			sequence(domain.RescueStep{ID: stepID, Channel: domain.StepChannelCall}),
			sequence(domain.RescueStep{ID: stepID, Channel: domain.StepChannelSMS}),
		},
		"unknown template": {sequence(domain.RescueStep{ID: uuid.New(), Channel: domain.StepChannelEmail, TemplateID: &unknownTemplate})},
		"bad channel":      {sequence(domain.RescueStep{ID: uuid.New(), Channel: "pigeon"})},
	}

	for name, seqs := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ReplaceRescueSequences(context.Background(), teamID, transport.ReplaceRescueSequencesRequest{RescueSequences: seqs})
			if !apperr.Is(err, apperr.KindValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCorruptStoredRulesSurfaceAsInternal(t *testing.T) {
	svc, store, teamID := newService()
	store.SetTeamRuleDocuments(teamID, `{"active_stale_hours":"x"}`, ``, ``)

	if _, err := svc.GetRules(context.Background(), teamID); !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
}
