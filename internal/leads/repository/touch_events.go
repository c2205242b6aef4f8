package repository

import (
	"context"
	"fmt"

	"leadflow_backend/internal/leads/domain"
)

// InsertTouchEvent returns false when the provider event id was already recorded
// for the same mailbox or phone line and channel.
func (s *txStore) InsertTouchEvent(ctx context.Context, e domain.NewTouchEvent) (bool, error) {
	meta := e.Meta
	if meta == nil {
		meta = map[string]any{}
	}

	tag, err := s.tx.Exec(ctx, `
		INSERT INTO touch_events (lead_id, channel, type, direction, mailbox_connection_id,
			phone_number_id, provider_event_id, raw_body, meta, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT DO NOTHING
	`, e.LeadID, string(e.Channel), e.Type, string(e.Direction), e.MailboxConnectionID,
		e.PhoneNumberID, e.ProviderEventID, e.RawBody, meta, e.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert touch event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
