// Package ports defines the storage contract the lifecycle services depend on.
// The pgx repository implements it in production; leadstest implements it in memory.
package ports

import (
	"context"
	"errors"
	"time"

	"leadflow_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("record not found")

// Tx is the set of operations available inside one database transaction.
// Every multi-statement unit of the lifecycle engine runs against a single Tx.
type Tx interface {
	// Rules
	TeamRules(ctx context.Context, teamID uuid.UUID) (domain.TeamRules, error)
	LockTeamRules(ctx context.Context, teamID uuid.UUID) (domain.TeamRules, error)
	SaveTeamRules(ctx context.Context, rules domain.TeamRules, at time.Time) error

	// Leads
	LockLead(ctx context.Context, leadID uuid.UUID) (domain.Lead, error)
	FindLeadByEmail(ctx context.Context, teamID uuid.UUID, email string) (domain.Lead, error)
	FindLeadByPhone(ctx context.Context, teamID uuid.UUID, phone string) (domain.Lead, error)
	CreateLead(ctx context.Context, lead domain.NewLead) (domain.Lead, error)
	UpdateLeadState(ctx context.Context, leadID uuid.UUID, state domain.LeadState, at time.Time) error
	SaveTouch(ctx context.Context, lead domain.Lead) error
	UpdateLeadOwner(ctx context.Context, leadID, ownerID uuid.UUID, at time.Time) error
	MarkBrokerAssigned(ctx context.Context, leadID uuid.UUID, assignment domain.BrokerAssignment) error

	// Tasks
	HasOpenTask(ctx context.Context, leadID uuid.UUID, types ...domain.TaskType) (bool, error)
	InsertTask(ctx context.Context, task domain.NewTask) (bool, error)
	GetTask(ctx context.Context, taskID uuid.UUID) (domain.Task, error)
	ReassignOpenTasks(ctx context.Context, leadID, ownerID uuid.UUID, at time.Time) (int64, error)

	// Touch events
	InsertTouchEvent(ctx context.Context, event domain.NewTouchEvent) (bool, error)

	// Channel resources and team members
	MailboxByID(ctx context.Context, id uuid.UUID) (domain.Resource, error)
	MailboxByAddress(ctx context.Context, address string) (domain.Resource, error)
	PhoneLineByID(ctx context.Context, id uuid.UUID) (domain.Resource, error)
	PhoneLineByNumber(ctx context.Context, numbers ...string) (domain.Resource, error)
	FirstUserWithRole(ctx context.Context, teamID uuid.UUID, role domain.Role) (uuid.UUID, error)
	UserRole(ctx context.Context, teamID, userID uuid.UUID) (domain.Role, error)

	// Audit
	AppendAudit(ctx context.Context, entry domain.NewAuditEntry) (domain.AuditEntry, error)
}

// Store opens transactions and serves the sweep listings read outside them.
type Store interface {
	// InTx runs fn in one transaction, committing when fn returns nil and
	// rolling back everything otherwise.
	InTx(ctx context.Context, fn func(tx Tx) error) error
	// ListTeamIDs returns every team, ascending by id.
	ListTeamIDs(ctx context.Context) ([]uuid.UUID, error)
	// ListEvaluableLeadIDs returns the team's New, Active and At-Risk leads, ascending by id.
	ListEvaluableLeadIDs(ctx context.Context, teamID uuid.UUID) ([]uuid.UUID, error)
}
