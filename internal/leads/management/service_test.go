package management

import (
	"context"
	"testing"
	"time"

	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/leads/leadstest"
	"leadflow_backend/internal/leads/transport"
	"leadflow_backend/platform/apperr"

	"github.com/google/uuid"
)

const (
	fmtUnexpectedErr = "unexpected error: %v"
	fmtExpectedKind  = "expected %v error, got %v"
)

var now = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store    *leadstest.Store
	svc      *Service
	teamID   uuid.UUID
	agent    uuid.UUID
	other    uuid.UUID
	teamLead Actor
}

func newFixture() *fixture {
	store := leadstest.New()
	teamID := store.AddTeam()
	return &fixture{
		store:    store,
		svc:      New(store, nil).WithClock(func() time.Time { return now }),
		teamID:   teamID,
		agent:    store.AddUser(teamID, domain.RoleAgent),
		other:    store.AddUser(teamID, domain.RoleAgent),
		teamLead: Actor{UserID: store.AddUser(teamID, domain.RoleTeamLead), TeamID: teamID, Role: domain.RoleTeamLead},
	}
}

func (f *fixture) leadWithTasks(state domain.LeadState, origin domain.IntakeOrigin) (domain.Lead, []domain.Task) {
	lead := f.store.PutLead(domain.Lead{
		TeamID:       f.teamID,
		OwnerAgentID: f.agent,
		State:        state,
		CreatedAt:    now.Add(-96 * time.Hour),
		Provenance:   domain.Provenance{IntakeOrigin: origin},
	})
	due := now.Add(3 * time.Hour)
	tasks := []domain.Task{
		f.store.PutTask(domain.Task{LeadID: lead.ID, OwnerID: f.agent, DueAt: due, Status: domain.TaskOpen, Type: domain.TaskRescue}),
		f.store.PutTask(domain.Task{LeadID: lead.ID, OwnerID: f.agent, DueAt: due, Status: domain.TaskOpen, Type: domain.TaskFollowUp}),
		f.store.PutTask(domain.Task{LeadID: lead.ID, OwnerID: f.agent, DueAt: due, Status: domain.TaskDone, Type: domain.TaskContactNow}),
	}
	return lead, tasks
}

func TestReassignStaleLeadMovesOpenTasks(t *testing.T) {
	f := newFixture()
	lead, _ := f.leadWithTasks(domain.StateStale, domain.OriginAgentDirect)

	resp, err := f.svc.Reassign(context.Background(), f.teamLead, lead.ID, transport.ReassignLeadRequest{NewOwnerID: f.other})
	if err != nil {
		t.Fatalf(fmtUnexpectedErr, err)
	}
	if resp.OwnerAgentID != f.other || resp.TasksMoved != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}

	stored, _ := f.store.Lead(lead.ID)
	if stored.OwnerAgentID != f.other || stored.State != domain.StateStale {
		t.Fatalf("unexpected lead %+v", stored)
	}
	for _, task := range f.store.Tasks(lead.ID) {
		wantOwner := f.other
		if task.Status != domain.TaskOpen {
			wantOwner = f.agent
		}
		if task.OwnerID != wantOwner {
			t.Fatalf("task %s owned by %s, want %s", task.Type, task.OwnerID, wantOwner)
		}
		if !task.DueAt.Equal(now.Add(3 * time.Hour)) {
			t.Fatal("due dates must not change")
		}
	}

	audit := f.store.Audit(lead.ID)
	if len(audit) != 1 || audit[0].Action != domain.ActionLeadReassign || audit[0].ActorID != f.teamLead.UserID {
		t.Fatalf("expected one audit entry, got %+v", audit)
	}
	if audit[0].Reason != "Reassigned to "+f.other.String() {
		t.Fatalf("expected default reason, got %q", audit[0].Reason)
	}
}

func TestReassignKeepsGivenReason(t *testing.T) {
	f := newFixture()
	lead, _ := f.leadWithTasks(domain.StateStale, domain.OriginAgentDirect)

	_, err := f.svc.Reassign(context.Background(), f.teamLead, lead.ID, transport.ReassignLeadRequest{NewOwnerID: f.other, Reason: " agent on leave "})
	if err != nil {
		t.Fatalf(fmtUnexpectedErr, err)
	}
	if got := f.store.Audit(lead.ID)[0].Reason; got != "agent on leave" {
		t.Fatalf("unexpected reason %q", got)
	}
}

func TestReassignGuards(t *testing.T) {
	f := newFixture()
	stale, _ := f.leadWithTasks(domain.StateStale, domain.OriginAgentDirect)
	active, _ := f.leadWithTasks(domain.StateActive, domain.OriginAgentDirect)
	foreignTeam := f.store.AddTeam()
	outsider := f.store.AddUser(foreignTeam, domain.RoleAgent)

	cases := []struct {
		name   string
		actor  Actor
		leadID uuid.UUID
		owner  uuid.UUID
		kind   apperr.Kind
	}{
		{"agent actor", Actor{UserID: f.agent, TeamID: f.teamID, Role: domain.RoleAgent}, stale.ID, f.other, apperr.KindForbidden},
		{"active lead", f.teamLead, active.ID, f.other, apperr.KindForbidden},
		{"unknown lead", f.teamLead, uuid.New(), f.other, apperr.KindNotFound},
		{"lead of another team", Actor{UserID: uuid.New(), TeamID: foreignTeam, Role: domain.RoleTeamLead}, stale.ID, outsider, apperr.KindNotFound},
		{"owner outside team", f.teamLead, stale.ID, outsider, apperr.KindNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Reassign(context.Background(), tc.actor, tc.leadID, transport.ReassignLeadRequest{NewOwnerID: tc.owner})
			if !apperr.Is(err, tc.kind) {
				t.Fatalf(fmtExpectedKind, tc.kind, err)
			}
		})
	}

	if len(f.store.Audit(stale.ID)) != 0 || len(f.store.Audit(active.ID)) != 0 {
		t.Fatal("rejected reassignments must not write audit entries")
	}
	if lead, _ := f.store.Lead(active.ID); lead.OwnerAgentID != f.agent {
		t.Fatal("rejected reassignment changed the owner")
	}
}

func TestAssignBrokerTask(t *testing.T) {
	f := newFixture()
	lead, tasks := f.leadWithTasks(domain.StateNew, domain.OriginBrokerChannel)

	resp, err := f.svc.AssignBrokerTask(context.Background(), f.teamLead, tasks[1].ID, transport.AssignBrokerTaskRequest{
		AssigneeUserID: f.other,
		Reason:         "speaks Dutch",
	})
	if err != nil {
		t.Fatalf(fmtUnexpectedErr, err)
	}
	if resp.LeadID != lead.ID || resp.OwnerAgentID != f.other || resp.TaskID != tasks[1].ID {
		t.Fatalf("unexpected response %+v", resp)
	}

	stored, _ := f.store.Lead(lead.ID)
	p := stored.Provenance
	if !p.BrokerAssigned || p.AssignedTo == nil || *p.AssignedTo != f.other || *p.AssignedBy != f.teamLead.UserID || !p.AssignedAt.Equal(now) {
		t.Fatalf("unexpected provenance %+v", p)
	}
	if stored.OwnerAgentID != f.other {
		t.Fatal("expected lead owner to change")
	}

	audit := f.store.Audit(lead.ID)
	if len(audit) != 1 || audit[0].Action != domain.ActionBrokerTaskAssign || audit[0].Reason != "speaks Dutch" {
		t.Fatalf("unexpected audit %+v", audit)
	}
}

func TestAssignBrokerTaskGuards(t *testing.T) {
	f := newFixture()
	_, brokerTasks := f.leadWithTasks(domain.StateNew, domain.OriginBrokerChannel)
	_, directTasks := f.leadWithTasks(domain.StateNew, domain.OriginAgentDirect)
	req := transport.AssignBrokerTaskRequest{AssigneeUserID: f.other, Reason: "r"}

	cases := []struct {
		name   string
		actor  Actor
		taskID uuid.UUID
		req    transport.AssignBrokerTaskRequest
		kind   apperr.Kind
	}{
		{"agent actor", Actor{UserID: f.agent, TeamID: f.teamID, Role: domain.RoleAgent}, brokerTasks[0].ID, req, apperr.KindForbidden},
		{"unknown task", f.teamLead, uuid.New(), req, apperr.KindNotFound},
		{"done task", f.teamLead, brokerTasks[2].ID, req, apperr.KindForbidden},
		{"direct lead", f.teamLead, directTasks[0].ID, req, apperr.KindForbidden},
		{"team lead assignee", f.teamLead, brokerTasks[0].ID, transport.AssignBrokerTaskRequest{AssigneeUserID: f.teamLead.UserID, Reason: "r"}, apperr.KindNotFound},
		{"other team", Actor{UserID: uuid.New(), TeamID: f.store.AddTeam(), Role: domain.RoleTeamLead}, brokerTasks[0].ID, req, apperr.KindNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.AssignBrokerTask(context.Background(), tc.actor, tc.taskID, tc.req)
			if !apperr.Is(err, tc.kind) {
				t.Fatalf(fmtExpectedKind, tc.kind, err)
			}
		})
	}
}
