package rescue

import (
	"context"
	"testing"
	"time"

	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/leads/leadstest"
	"leadflow_backend/internal/leads/ports"

	"github.com/google/uuid"
)

const fmtUnexpectedErr = "unexpected error: %v"

var now = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func rulesWithSteps(steps ...domain.RescueStep) domain.TeamRules {
	rules := domain.TeamRules{}
	rules.Escalation.RescueSequences = []domain.RescueSequence{{ID: uuid.New(), Name: "default", Steps: steps}}
	return rules
}

func step(offset int, channel string, enabled, humanSend bool) domain.RescueStep {
	return domain.RescueStep{ID: uuid.New(), OffsetMinutes: offset, Channel: channel, Enabled: enabled, RequiresHumanSend: humanSend}
}

func seedLead(store *leadstest.Store, brokerAssigned bool) (domain.Lead, uuid.UUID) {
	teamID := store.AddTeam()
	agent := store.AddUser(teamID, domain.RoleAgent)
	lead := store.PutLead(domain.Lead{
		TeamID:       teamID,
		OwnerAgentID: agent,
		State:        domain.StateStale,
		CreatedAt:    now.Add(-72 * time.Hour),
		Provenance:   domain.Provenance{BrokerAssigned: brokerAssigned},
	})
	return lead, agent
}

func TestMaterializeSkipsDisabledStepsAndForcesHumanSend(t *testing.T) {
	store := leadstest.New()
	lead, agent := seedLead(store, false)
	rules := rulesWithSteps(
		step(0, domain.StepChannelCall, true, false),
		step(30, domain.StepChannelSMS, false, true),
		step(120, domain.StepChannelEmail, true, true),
	)

	var created int
	err := store.InTx(context.Background(), func(tx ports.Tx) error {
		var err error
		created, err = New(nil).Materialize(context.Background(), tx, rules, lead, agent, now)
		return err
	})
	if err != nil {
		t.Fatalf(fmtUnexpectedErr, err)
	}
	if created != 2 {
		t.Fatalf("expected 2 tasks, got %d", created)
	}

	tasks := store.Tasks(lead.ID, domain.TaskRescue)
	if len(tasks) != 2 {
		t.Fatalf("expected 2 stored rescue tasks, got %d", len(tasks))
	}
	for _, task := range tasks {
		if !task.RequiresHumanSend {
			t.Fatalf("expected every rescue task to require a human send: %+v", task)
		}
		if task.OwnerID != agent {
			t.Fatalf("expected owner %s, got %s", agent, task.OwnerID)
		}
	}
	if !tasks[0].DueAt.Equal(now) || !tasks[1].DueAt.Equal(now.Add(2*time.Hour)) {
		t.Fatalf("unexpected due dates: %v, %v", tasks[0].DueAt, tasks[1].DueAt)
	}
}

func TestMaterializeWithoutSequenceCreatesNothing(t *testing.T) {
	store := leadstest.New()
	lead, agent := seedLead(store, false)

	err := store.InTx(context.Background(), func(tx ports.Tx) error {
		n, err := New(nil).Materialize(context.Background(), tx, domain.TeamRules{}, lead, agent, now)
		if n != 0 {
			t.Fatalf("expected no tasks, got %d", n)
		}
		return err
	})
	if err != nil {
		t.Fatalf(fmtUnexpectedErr, err)
	}
}

func TestCustomSelector(t *testing.T) {
	store := leadstest.New()
	lead, agent := seedLead(store, false)
	rules := rulesWithSteps(step(0, domain.StepChannelCall, true, true))
	second := domain.RescueSequence{ID: uuid.New(), Name: "broker", Steps: []domain.RescueStep{
		step(0, domain.StepChannelSMS, true, true),
		step(10, domain.StepChannelEmail, true, true),
	}}
	rules.Escalation.RescueSequences = append(rules.Escalation.RescueSequences, second)

	pickLast := func(r domain.TeamRules, _ domain.Lead) (domain.RescueSequence, bool) {
		return r.Escalation.RescueSequences[len(r.Escalation.RescueSequences)-1], true
	}

	err := store.InTx(context.Background(), func(tx ports.Tx) error {
		_, err := New(pickLast).Materialize(context.Background(), tx, rules, lead, agent, now)
		return err
	})
	if err != nil {
		t.Fatalf(fmtUnexpectedErr, err)
	}
	if got := len(store.Tasks(lead.ID)); got != 2 {
		t.Fatalf("expected tasks from the selected sequence, got %d", got)
	}
}

func TestOnStaleKeepsSingleRescueTask(t *testing.T) {
	store := leadstest.New()
	lead, _ := seedLead(store, false)
	rules := rulesWithSteps(step(0, domain.StepChannelCall, true, true))
	m := New(nil)

	for i := 0; i < 3; i++ {
		err := store.InTx(context.Background(), func(tx ports.Tx) error {
			_, err := m.OnStale(context.Background(), tx, rules, lead, now.Add(time.Duration(i)*time.Minute))
			return err
		})
		if err != nil {
			t.Fatalf(fmtUnexpectedErr, err)
		}
	}

	primary, steps := 0, 0
	for _, task := range store.Tasks(lead.ID, domain.TaskRescue) {
		if task.SequenceStepID == nil {
			primary++
		} else {
			steps++
		}
	}
	if primary != 1 || steps != 1 {
		t.Fatalf("expected one primary and one step task, got %d and %d", primary, steps)
	}
}

func TestOnStaleBrokerAssignedGoesToTeamLead(t *testing.T) {
	store := leadstest.New()
	lead, _ := seedLead(store, true)
	teamLead := store.AddUser(lead.TeamID, domain.RoleTeamLead)

	var out Outcome
	err := store.InTx(context.Background(), func(tx ports.Tx) error {
		var err error
		out, err = New(nil).OnStale(context.Background(), tx, domain.TeamRules{}, lead, now)
		return err
	})
	if err != nil {
		t.Fatalf(fmtUnexpectedErr, err)
	}
	if out.OwnerID != teamLead || !out.PrimaryCreated {
		t.Fatalf("expected primary task for team lead, got %+v", out)
	}
	if tasks := store.Tasks(lead.ID); len(tasks) != 1 || tasks[0].OwnerID != teamLead {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
}

func TestResolveOwnerFallsBackWithoutTeamLead(t *testing.T) {
	store := leadstest.New()
	lead, agent := seedLead(store, true)

	err := store.InTx(context.Background(), func(tx ports.Tx) error {
		owner, err := ResolveOwner(context.Background(), tx, lead)
		if owner != agent {
			t.Fatalf("expected fallback to agent %s, got %s", agent, owner)
		}
		return err
	})
	if err != nil {
		t.Fatalf(fmtUnexpectedErr, err)
	}
}
