// Package leadstest provides an in-memory ports.Store for service tests.
// Transactions are serialized and roll back every change when fn fails,
// and the conditional unique indexes of the schema are enforced.
package leadstest

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/leads/ports"

	"github.com/google/uuid"
)

// Hook lets a test inject a failure into one operation. op is the Tx or Store
// method name and id the lead (or team, for listings) it acts on.
type Hook func(op string, id uuid.UUID) error

type team struct {
	stale, sla, escalation []byte
	updatedAt              time.Time
}

type user struct {
	id     uuid.UUID
	teamID uuid.UUID
	role   domain.Role
}

type mailbox struct {
	resource domain.Resource
	address  string
}

type phoneLine struct {
	resource domain.Resource
	number   string
}

type state struct {
	teams  map[uuid.UUID]team
	leads  map[uuid.UUID]domain.Lead
	tasks  []domain.Task
	events []domain.NewTouchEvent
	audit  []domain.AuditEntry
}

func (s state) clone() state {
	return state{
		teams:  maps.Clone(s.teams),
		leads:  maps.Clone(s.leads),
		tasks:  slices.Clone(s.tasks),
		events: slices.Clone(s.events),
		audit:  slices.Clone(s.audit),
	}
}

// Store is an in-memory ports.Store.
type Store struct {
	mu         sync.Mutex
	state      state
	users      map[uuid.UUID]user
	mailboxes  map[uuid.UUID]mailbox
	phoneLines map[uuid.UUID]phoneLine
	defaults   domain.RuleDefaults
	hook       Hook
	commits    int
	rollbacks  int
}

func New() *Store {
	return &Store{
		state: state{
			teams: make(map[uuid.UUID]team),
			leads: make(map[uuid.UUID]domain.Lead),
		},
		users:      make(map[uuid.UUID]user),
		mailboxes:  make(map[uuid.UUID]mailbox),
		phoneLines: make(map[uuid.UUID]phoneLine),
		defaults:   domain.BuiltinDefaults(),
	}
}

// SetHook installs a failure injector. Pass nil to remove it.
func (s *Store) SetHook(h Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = h
}

func (s *Store) fire(op string, id uuid.UUID) error {
	if s.hook == nil {
		return nil
	}
	return s.hook(op, id)
}

func (s *Store) InTx(ctx context.Context, fn func(tx ports.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(&tx{s: s}); err != nil {
		s.state = snapshot
		s.rollbacks++
		return err
	}
	s.commits++
	return nil
}

func (s *Store) ListTeamIDs(ctx context.Context) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedIDs(slices.Collect(maps.Keys(s.state.teams))), nil
}

func (s *Store) ListEvaluableLeadIDs(ctx context.Context, teamID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fire("ListEvaluableLeadIDs", teamID); err != nil {
		return nil, err
	}
	var ids []uuid.UUID
	for id, lead := range s.state.leads {
		if lead.TeamID == teamID && lead.State.Evaluable() {
			ids = append(ids, id)
		}
	}
	return sortedIDs(ids), nil
}

// Rollbacks counts transactions that were rolled back.
func (s *Store) Rollbacks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rollbacks
}

func sortedIDs(ids []uuid.UUID) []uuid.UUID {
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
	return ids
}

// ---- seeding -------------------------------------------------------------

// AddTeam registers a team with default rules and returns its id.
func (s *Store) AddTeam() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.state.teams[id] = team{}
	return id
}

// SetTeamRuleDocuments stores raw JSON rule documents, possibly invalid ones.
func (s *Store) SetTeamRuleDocuments(teamID uuid.UUID, stale, sla, escalation string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.teams[teamID] = team{stale: []byte(stale), sla: []byte(sla), escalation: []byte(escalation)}
}

// AddUser adds a team member.
func (s *Store) AddUser(teamID uuid.UUID, role domain.Role) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.users[id] = user{id: id, teamID: teamID, role: role}
	return id
}

// AddMailbox connects a mailbox owned by userID.
func (s *Store) AddMailbox(userID uuid.UUID, address string) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	owner := userID
	s.mailboxes[id] = mailbox{
		resource: domain.Resource{Kind: domain.ResourceMailbox, ID: id, TeamID: s.users[userID].teamID, Provider: "gmail", OwnerUserID: &owner},
		address:  address,
	}
	return id
}

// AddPhoneLine registers a team phone line.
func (s *Store) AddPhoneLine(teamID uuid.UUID, number string) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.phoneLines[id] = phoneLine{
		resource: domain.Resource{Kind: domain.ResourcePhoneLine, ID: id, TeamID: teamID, Provider: "twilio"},
		number:   number,
	}
	return id
}

// PutLead inserts or replaces a lead. A zero ID is filled in.
func (s *Store) PutLead(lead domain.Lead) domain.Lead {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	if lead.Provenance.IntakeOrigin == "" {
		lead.Provenance.IntakeOrigin = domain.OriginAgentDirect
	}
	s.state.leads[lead.ID] = lead
	return lead
}

// PutTask inserts a task as-is.
func (s *Store) PutTask(task domain.Task) domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	s.state.tasks = append(s.state.tasks, task)
	return task
}

// ---- inspection ----------------------------------------------------------

// Lead returns the stored lead.
func (s *Store) Lead(id uuid.UUID) (domain.Lead, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.state.leads[id]
	return lead, ok
}

// Leads returns every stored lead of the team.
func (s *Store) Leads(teamID uuid.UUID) []domain.Lead {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Lead
	for _, lead := range s.state.leads {
		if lead.TeamID == teamID {
			out = append(out, lead)
		}
	}
	return out
}

// Tasks returns the lead's tasks, optionally filtered by type.
func (s *Store) Tasks(leadID uuid.UUID, types ...domain.TaskType) []domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Task
	for _, t := range s.state.tasks {
		if t.LeadID == leadID && (len(types) == 0 || slices.Contains(types, t.Type)) {
			out = append(out, t)
		}
	}
	return out
}

// Events returns every recorded touch event.
func (s *Store) Events() []domain.NewTouchEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.state.events)
}

// Audit returns the audit entries of a lead.
func (s *Store) Audit(leadID uuid.UUID) []domain.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.AuditEntry
	for _, e := range s.state.audit {
		if e.LeadID == leadID {
			out = append(out, e)
		}
	}
	return out
}

// Rules decodes the team's stored rules.
func (s *Store) Rules(teamID uuid.UUID) (domain.TeamRules, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.state.teams[teamID]
	if !ok {
		return domain.TeamRules{}, ports.ErrNotFound
	}
	return domain.ParseTeamRules(teamID, s.defaults, t.stale, t.sla, t.escalation)
}

var _ ports.Store = (*Store)(nil)

func errNotFound(what string, id any) error {
	return fmt.Errorf("%s %v: %w", what, id, ports.ErrNotFound)
}
