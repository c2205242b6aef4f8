// Package management handles privileged ownership changes on leads:
// manual reassignment of stale leads and assignment of broker-channel tasks.
// Every change is written together with an audit entry.
package management

import (
	"context"
	"errors"
	"strings"
	"time"

	"leadflow_backend/internal/events"
	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/leads/ports"
	"leadflow_backend/internal/leads/transport"
	"leadflow_backend/platform/apperr"

	"github.com/google/uuid"
)

// Actor is the authenticated caller.
type Actor struct {
	UserID uuid.UUID
	TeamID uuid.UUID
	Role   domain.Role
}

// Service handles ownership changes.
type Service struct {
	store ports.Store
	bus   events.Bus
	clock func() time.Time
}

// New creates a new management service. bus may be nil.
func New(store ports.Store, bus events.Bus) *Service {
	return &Service{store: store, bus: bus, clock: func() time.Time { return time.Now().UTC() }}
}

// WithClock replaces time.Now, for tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// Reassign moves a Stale lead and all of its open tasks to another member of
// the actor's team and records a LEAD_REASSIGN audit entry. Only team leads
// may reassign, and only Stale leads can be reassigned.
func (s *Service) Reassign(ctx context.Context, actor Actor, leadID uuid.UUID, req transport.ReassignLeadRequest) (transport.ReassignLeadResponse, error) {
	if actor.Role != domain.RoleTeamLead {
		return transport.ReassignLeadResponse{}, apperr.Forbidden("only team leads can reassign leads")
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = domain.DefaultReassignReason(req.NewOwnerID)
	}

	var (
		resp     transport.ReassignLeadResponse
		previous uuid.UUID
	)
	err := s.store.InTx(ctx, func(tx ports.Tx) error {
		lead, err := lockTeamLead(ctx, tx, actor.TeamID, leadID)
		if err != nil {
			return err
		}

		if _, err := tx.UserRole(ctx, actor.TeamID, req.NewOwnerID); err != nil {
			if errors.Is(err, ports.ErrNotFound) {
				return apperr.NotFound("new owner not found")
			}
			return err
		}

		if lead.State != domain.StateStale {
			return apperr.Forbidden("reassignment is only allowed for stale leads")
		}

		now := s.clock()
		moved, err := changeOwner(ctx, tx, lead.ID, req.NewOwnerID, now)
		if err != nil {
			return err
		}

		if _, err := tx.AppendAudit(ctx, domain.NewAuditEntry{
			ActorID:   actor.UserID,
			LeadID:    lead.ID,
			Action:    domain.ActionLeadReassign,
			Reason:    reason,
			CreatedAt: now,
		}); err != nil {
			return err
		}

		previous = lead.OwnerAgentID
		resp = transport.ReassignLeadResponse{LeadID: lead.ID, OwnerAgentID: req.NewOwnerID, TasksMoved: moved}
		return nil
	})
	if err != nil {
		return transport.ReassignLeadResponse{}, err
	}

	s.publish(ctx, actor, domain.ActionLeadReassign, resp.LeadID, previous, resp.OwnerAgentID, resp.TasksMoved)
	return resp, nil
}

// AssignBrokerTask hands the lead behind an open task to an agent. The lead must
// have arrived through a broker channel. The lead is marked broker-assigned so
// the evaluator applies the broker stale window from then on.
func (s *Service) AssignBrokerTask(ctx context.Context, actor Actor, taskID uuid.UUID, req transport.AssignBrokerTaskRequest) (transport.AssignBrokerTaskResponse, error) {
	if actor.Role != domain.RoleTeamLead {
		return transport.AssignBrokerTaskResponse{}, apperr.Forbidden("only team leads can assign broker tasks")
	}

	var (
		resp     transport.AssignBrokerTaskResponse
		previous uuid.UUID
		moved    int64
	)
	err := s.store.InTx(ctx, func(tx ports.Tx) error {
		task, err := tx.GetTask(ctx, taskID)
		if errors.Is(err, ports.ErrNotFound) {
			return apperr.NotFound("task not found")
		}
		if err != nil {
			return err
		}

		lead, err := lockTeamLead(ctx, tx, actor.TeamID, task.LeadID)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				return apperr.NotFound("task not found")
			}
			return err
		}

		if task.Status != domain.TaskOpen {
			return apperr.Forbidden("only open tasks can be assigned")
		}
		if lead.Provenance.IntakeOrigin != domain.OriginBrokerChannel {
			return apperr.Forbidden("only broker-channel leads can be assigned")
		}

		role, err := tx.UserRole(ctx, actor.TeamID, req.AssigneeUserID)
		if errors.Is(err, ports.ErrNotFound) || (err == nil && role != domain.RoleAgent) {
			return apperr.NotFound("assignee not found")
		}
		if err != nil {
			return err
		}

		now := s.clock()
		moved, err = changeOwner(ctx, tx, lead.ID, req.AssigneeUserID, now)
		if err != nil {
			return err
		}
		if err := tx.MarkBrokerAssigned(ctx, lead.ID, domain.BrokerAssignment{
			AssignedTo: req.AssigneeUserID,
			AssignedBy: actor.UserID,
			AssignedAt: now,
		}); err != nil {
			return err
		}
		if _, err := tx.AppendAudit(ctx, domain.NewAuditEntry{
			ActorID:   actor.UserID,
			LeadID:    lead.ID,
			Action:    domain.ActionBrokerTaskAssign,
			Reason:    strings.TrimSpace(req.Reason),
			CreatedAt: now,
		}); err != nil {
			return err
		}

		previous = lead.OwnerAgentID
		resp = transport.AssignBrokerTaskResponse{TaskID: task.ID, LeadID: lead.ID, OwnerAgentID: req.AssigneeUserID}
		return nil
	})
	if err != nil {
		return transport.AssignBrokerTaskResponse{}, err
	}

	s.publish(ctx, actor, domain.ActionBrokerTaskAssign, resp.LeadID, previous, resp.OwnerAgentID, moved)
	return resp, nil
}

func lockTeamLead(ctx context.Context, tx ports.Tx, teamID, leadID uuid.UUID) (domain.Lead, error) {
	lead, err := tx.LockLead(ctx, leadID)
	if errors.Is(err, ports.ErrNotFound) || (err == nil && lead.TeamID != teamID) {
		return domain.Lead{}, apperr.NotFound("lead not found")
	}
	return lead, err
}

func changeOwner(ctx context.Context, tx ports.Tx, leadID, ownerID uuid.UUID, now time.Time) (int64, error) {
	if err := tx.UpdateLeadOwner(ctx, leadID, ownerID, now); err != nil {
		return 0, err
	}
	return tx.ReassignOpenTasks(ctx, leadID, ownerID, now)
}

func (s *Service) publish(ctx context.Context, actor Actor, action domain.AuditAction, leadID, previous, owner uuid.UUID, moved int64) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, events.LeadReassigned{
		BaseEvent:     events.NewBaseEvent(s.clock()),
		LeadID:        leadID,
		TeamID:        actor.TeamID,
		PreviousOwner: previous,
		NewOwner:      owner,
		ActorID:       actor.UserID,
		Action:        string(action),
		TasksMoved:    moved,
	})
}
