package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction names an audited operation.
type AuditAction string

const (
	ActionLeadReassign     AuditAction = "LEAD_REASSIGN"
	ActionBrokerTaskAssign AuditAction = "BROKER_TASK_ASSIGN"
)

// AuditEntry is an immutable record of a privileged change.
type AuditEntry struct {
	ID        uuid.UUID
	ActorID   uuid.UUID
	LeadID    uuid.UUID
	Action    AuditAction
	Reason    string
	CreatedAt time.Time
}

// NewAuditEntry describes an entry to append.
type NewAuditEntry struct {
	ActorID   uuid.UUID
	LeadID    uuid.UUID
	Action    AuditAction
	Reason    string
	CreatedAt time.Time
}

// DefaultReassignReason is written when the actor gives no reason.
func DefaultReassignReason(newOwnerID uuid.UUID) string {
	return "Reassigned to " + newOwnerID.String()
}
