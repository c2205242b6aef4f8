package repository

import (
	"context"
	"fmt"

	"leadflow_backend/internal/leads/domain"
)

// AppendAudit inserts one audit row. The table rejects updates and deletes.
func (s *txStore) AppendAudit(ctx context.Context, e domain.NewAuditEntry) (domain.AuditEntry, error) {
	entry := domain.AuditEntry{
		ActorID: e.ActorID,
		LeadID:  e.LeadID,
		Action:  e.Action,
		Reason:  e.Reason,
	}
	err := s.tx.QueryRow(ctx, `
		INSERT INTO audit_log (actor_id, lead_id, action, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, e.ActorID, e.LeadID, string(e.Action), e.Reason, e.CreatedAt).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return domain.AuditEntry{}, fmt.Errorf("append audit: %w", err)
	}
	return entry, nil
}
