package leadstest

import (
	"context"
	"slices"
	"strings"
	"time"

	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/leads/ports"

	"github.com/google/uuid"
)

// tx runs with Store.mu held by InTx.
type tx struct {
	s *Store
}

var _ ports.Tx = (*tx)(nil)

func (t *tx) TeamRules(ctx context.Context, teamID uuid.UUID) (domain.TeamRules, error) {
	if err := t.s.fire("TeamRules", teamID); err != nil {
		return domain.TeamRules{}, err
	}
	tm, ok := t.s.state.teams[teamID]
	if !ok {
		return domain.TeamRules{}, errNotFound("team", teamID)
	}
	rules, err := domain.ParseTeamRules(teamID, t.s.defaults, tm.stale, tm.sla, tm.escalation)
	if err != nil {
		return domain.TeamRules{}, err
	}
	rules.UpdatedAt = tm.updatedAt
	return rules, nil
}

func (t *tx) LockTeamRules(ctx context.Context, teamID uuid.UUID) (domain.TeamRules, error) {
	return t.TeamRules(ctx, teamID)
}

func (t *tx) SaveTeamRules(ctx context.Context, rules domain.TeamRules, at time.Time) error {
	if err := t.s.fire("SaveTeamRules", rules.TeamID); err != nil {
		return err
	}
	if _, ok := t.s.state.teams[rules.TeamID]; !ok {
		return errNotFound("team", rules.TeamID)
	}
	stale, sla, escalation, err := rules.Documents()
	if err != nil {
		return err
	}
	t.s.state.teams[rules.TeamID] = team{stale: stale, sla: sla, escalation: escalation, updatedAt: at}
	return nil
}

func (t *tx) LockLead(ctx context.Context, leadID uuid.UUID) (domain.Lead, error) {
	if err := t.s.fire("LockLead", leadID); err != nil {
		return domain.Lead{}, err
	}
	lead, ok := t.s.state.leads[leadID]
	if !ok {
		return domain.Lead{}, errNotFound("lead", leadID)
	}
	return lead, nil
}

func (t *tx) findLead(match func(domain.Lead) bool) (domain.Lead, error) {
	for _, lead := range t.s.state.leads {
		if match(lead) {
			return lead, nil
		}
	}
	return domain.Lead{}, ports.ErrNotFound
}

func (t *tx) FindLeadByEmail(ctx context.Context, teamID uuid.UUID, email string) (domain.Lead, error) {
	return t.findLead(func(l domain.Lead) bool {
		return l.TeamID == teamID && l.PrimaryEmail != nil && *l.PrimaryEmail == email
	})
}

func (t *tx) FindLeadByPhone(ctx context.Context, teamID uuid.UUID, phone string) (domain.Lead, error) {
	return t.findLead(func(l domain.Lead) bool {
		return l.TeamID == teamID && l.PrimaryPhone != nil && *l.PrimaryPhone == phone
	})
}

func (t *tx) CreateLead(ctx context.Context, params domain.NewLead) (domain.Lead, error) {
	if err := t.s.fire("CreateLead", params.TeamID); err != nil {
		return domain.Lead{}, err
	}
	if params.PrimaryEmail != nil {
		if existing, err := t.FindLeadByEmail(ctx, params.TeamID, *params.PrimaryEmail); err == nil {
			return existing, nil
		}
	}
	if params.PrimaryPhone != nil {
		if existing, err := t.FindLeadByPhone(ctx, params.TeamID, *params.PrimaryPhone); err == nil {
			return existing, nil
		}
	}

	lead := domain.Lead{
		ID:           uuid.New(),
		TeamID:       params.TeamID,
		OwnerAgentID: params.OwnerAgentID,
		State:        domain.StateNew,
		Source:       params.Source,
		PrimaryEmail: params.PrimaryEmail,
		PrimaryPhone: params.PrimaryPhone,
		CreatedAt:    params.CreatedAt,
		UpdatedAt:    params.CreatedAt,
		NextActionAt: params.CreatedAt,
		Provenance:   domain.Provenance{IntakeOrigin: params.IntakeOrigin},
	}
	t.s.state.leads[lead.ID] = lead
	return lead, nil
}

func (t *tx) updateLead(op string, leadID uuid.UUID, fn func(*domain.Lead)) error {
	if err := t.s.fire(op, leadID); err != nil {
		return err
	}
	lead, ok := t.s.state.leads[leadID]
	if !ok {
		return errNotFound("lead", leadID)
	}
	fn(&lead)
	t.s.state.leads[leadID] = lead
	return nil
}

func (t *tx) UpdateLeadState(ctx context.Context, leadID uuid.UUID, state domain.LeadState, at time.Time) error {
	return t.updateLead("UpdateLeadState", leadID, func(l *domain.Lead) {
		l.State = state
		l.UpdatedAt = at
	})
}

func (t *tx) SaveTouch(ctx context.Context, touched domain.Lead) error {
	return t.updateLead("SaveTouch", touched.ID, func(l *domain.Lead) {
		l.State = touched.State
		l.LastTouchAt = touched.LastTouchAt
		l.NextActionAt = touched.NextActionAt
		l.UpdatedAt = touched.UpdatedAt
	})
}

func (t *tx) UpdateLeadOwner(ctx context.Context, leadID, ownerID uuid.UUID, at time.Time) error {
	return t.updateLead("UpdateLeadOwner", leadID, func(l *domain.Lead) {
		l.OwnerAgentID = ownerID
		l.UpdatedAt = at
	})
}

func (t *tx) MarkBrokerAssigned(ctx context.Context, leadID uuid.UUID, a domain.BrokerAssignment) error {
	return t.updateLead("MarkBrokerAssigned", leadID, func(l *domain.Lead) {
		at, by, to := a.AssignedAt, a.AssignedBy, a.AssignedTo
		l.Provenance.BrokerAssigned = true
		l.Provenance.AssignedAt = &at
		l.Provenance.AssignedBy = &by
		l.Provenance.AssignedTo = &to
	})
}

func (t *tx) HasOpenTask(ctx context.Context, leadID uuid.UUID, types ...domain.TaskType) (bool, error) {
	for _, task := range t.s.state.tasks {
		if task.LeadID == leadID && task.Status == domain.TaskOpen && slices.Contains(types, task.Type) {
			return true, nil
		}
	}
	return false, nil
}

// conflicts mirrors idx_tasks_open_rescue and idx_tasks_open_sequence_step.
func conflicts(existing domain.Task, n domain.NewTask) bool {
	if existing.LeadID != n.LeadID || existing.Status != domain.TaskOpen {
		return false
	}
	switch {
	case n.SequenceStepID != nil:
		return existing.SequenceStepID != nil && *existing.SequenceStepID == *n.SequenceStepID
	case n.Type == domain.TaskRescue:
		return existing.Type == domain.TaskRescue && existing.SequenceStepID == nil
	}
	return false
}

func (t *tx) InsertTask(ctx context.Context, n domain.NewTask) (bool, error) {
	if err := t.s.fire("InsertTask", n.LeadID); err != nil {
		return false, err
	}
	for _, existing := range t.s.state.tasks {
		if conflicts(existing, n) {
			return false, nil
		}
	}
	t.s.state.tasks = append(t.s.state.tasks, domain.Task{
		ID:                uuid.New(),
		LeadID:            n.LeadID,
		OwnerID:           n.OwnerID,
		DueAt:             n.DueAt,
		Status:            domain.TaskOpen,
		Type:              n.Type,
		RequiresHumanSend: n.RequiresHumanSend,
		Channel:           n.Channel,
		TemplateID:        n.TemplateID,
		SequenceStepID:    n.SequenceStepID,
		CreatedAt:         n.CreatedAt,
	})
	return true, nil
}

func (t *tx) GetTask(ctx context.Context, taskID uuid.UUID) (domain.Task, error) {
	for _, task := range t.s.state.tasks {
		if task.ID == taskID {
			return task, nil
		}
	}
	return domain.Task{}, errNotFound("task", taskID)
}

func (t *tx) ReassignOpenTasks(ctx context.Context, leadID, ownerID uuid.UUID, at time.Time) (int64, error) {
	if err := t.s.fire("ReassignOpenTasks", leadID); err != nil {
		return 0, err
	}
	var n int64
	for i, task := range t.s.state.tasks {
		if task.LeadID == leadID && task.Status == domain.TaskOpen {
			t.s.state.tasks[i].OwnerID = ownerID
			n++
		}
	}
	return n, nil
}

func sameResource(a, b domain.NewTouchEvent) bool {
	switch {
	case a.MailboxConnectionID != nil && b.MailboxConnectionID != nil:
		return *a.MailboxConnectionID == *b.MailboxConnectionID
	case a.PhoneNumberID != nil && b.PhoneNumberID != nil:
		return *a.PhoneNumberID == *b.PhoneNumberID
	}
	return false
}

func (t *tx) InsertTouchEvent(ctx context.Context, e domain.NewTouchEvent) (bool, error) {
	if err := t.s.fire("InsertTouchEvent", e.LeadID); err != nil {
		return false, err
	}
	for _, existing := range t.s.state.events {
		if existing.Channel == e.Channel && existing.ProviderEventID == e.ProviderEventID && sameResource(existing, e) {
			return false, nil
		}
	}
	t.s.state.events = append(t.s.state.events, e)
	return true, nil
}

func (t *tx) MailboxByID(ctx context.Context, id uuid.UUID) (domain.Resource, error) {
	m, ok := t.s.mailboxes[id]
	if !ok {
		return domain.Resource{}, errNotFound("mailbox", id)
	}
	return m.resource, nil
}

func (t *tx) MailboxByAddress(ctx context.Context, address string) (domain.Resource, error) {
	for _, m := range t.s.mailboxes {
		if strings.EqualFold(m.address, address) {
			return m.resource, nil
		}
	}
	return domain.Resource{}, errNotFound("mailbox", address)
}

func (t *tx) PhoneLineByID(ctx context.Context, id uuid.UUID) (domain.Resource, error) {
	p, ok := t.s.phoneLines[id]
	if !ok {
		return domain.Resource{}, errNotFound("phone line", id)
	}
	return p.resource, nil
}

func (t *tx) PhoneLineByNumber(ctx context.Context, numbers ...string) (domain.Resource, error) {
	for _, n := range numbers {
		for _, p := range t.s.phoneLines {
			if p.number == n {
				return p.resource, nil
			}
		}
	}
	return domain.Resource{}, ports.ErrNotFound
}

func (t *tx) FirstUserWithRole(ctx context.Context, teamID uuid.UUID, role domain.Role) (uuid.UUID, error) {
	var ids []uuid.UUID
	for _, u := range t.s.users {
		if u.teamID == teamID && u.role == role {
			ids = append(ids, u.id)
		}
	}
	if len(ids) == 0 {
		return uuid.Nil, errNotFound(string(role)+" of team", teamID)
	}
	return sortedIDs(ids)[0], nil
}

func (t *tx) UserRole(ctx context.Context, teamID, userID uuid.UUID) (domain.Role, error) {
	u, ok := t.s.users[userID]
	if !ok || u.teamID != teamID {
		return "", errNotFound("user", userID)
	}
	return u.role, nil
}

func (t *tx) AppendAudit(ctx context.Context, e domain.NewAuditEntry) (domain.AuditEntry, error) {
	if err := t.s.fire("AppendAudit", e.LeadID); err != nil {
		return domain.AuditEntry{}, err
	}
	entry := domain.AuditEntry{
		ID:        uuid.New(),
		ActorID:   e.ActorID,
		LeadID:    e.LeadID,
		Action:    e.Action,
		Reason:    e.Reason,
		CreatedAt: e.CreatedAt,
	}
	t.s.state.audit = append(t.s.state.audit, entry)
	return entry, nil
}
