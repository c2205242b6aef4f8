package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadflow_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const leadColumns = `
	l.id, l.team_id, l.owner_agent_id, l.state, l.source, l.primary_email, l.primary_phone,
	l.created_at, l.updated_at, l.last_touch_at, l.next_action_at,
	COALESCE(p.fields->>'intake_origin', 'agent_direct'),
	COALESCE((p.fields->>'broker_assigned')::boolean, false),
	(p.fields->>'broker_assigned_at')::timestamptz,
	(p.fields->>'broker_assigned_by')::uuid,
	(p.fields->>'broker_assigned_to')::uuid`

const leadFrom = `
	FROM leads l
	LEFT JOIN lead_profiles p ON p.lead_id = l.id`

func scanLead(row pgx.Row) (domain.Lead, error) {
	var (
		lead   domain.Lead
		state  string
		origin string
	)
	err := row.Scan(
		&lead.ID,
		&lead.TeamID,
		&lead.OwnerAgentID,
		&state,
		&lead.Source,
		&lead.PrimaryEmail,
		&lead.PrimaryPhone,
		&lead.CreatedAt,
		&lead.UpdatedAt,
		&lead.LastTouchAt,
		&lead.NextActionAt,
		&origin,
		&lead.Provenance.BrokerAssigned,
		&lead.Provenance.AssignedAt,
		&lead.Provenance.AssignedBy,
		&lead.Provenance.AssignedTo,
	)
	if err != nil {
		return domain.Lead{}, notFound(err)
	}

	lead.State, err = domain.ParseLeadState(state)
	if err != nil {
		return domain.Lead{}, err
	}
	lead.Provenance.IntakeOrigin = domain.IntakeOrigin(origin)
	return lead, nil
}

// LockLead reads the lead and holds its row lock until the transaction ends.
func (s *txStore) LockLead(ctx context.Context, leadID uuid.UUID) (domain.Lead, error) {
	row := s.tx.QueryRow(ctx, `SELECT `+leadColumns+leadFrom+`
		WHERE l.id = $1
		FOR UPDATE OF l`, leadID)
	lead, err := scanLead(row)
	if err != nil {
		return domain.Lead{}, fmt.Errorf("lock lead %s: %w", leadID, err)
	}
	return lead, nil
}

func (s *txStore) FindLeadByEmail(ctx context.Context, teamID uuid.UUID, email string) (domain.Lead, error) {
	row := s.tx.QueryRow(ctx, `SELECT `+leadColumns+leadFrom+`
		WHERE l.team_id = $1 AND l.primary_email = $2
		FOR UPDATE OF l`, teamID, email)
	return scanLead(row)
}

func (s *txStore) FindLeadByPhone(ctx context.Context, teamID uuid.UUID, phone string) (domain.Lead, error) {
	row := s.tx.QueryRow(ctx, `SELECT `+leadColumns+leadFrom+`
		WHERE l.team_id = $1 AND l.primary_phone = $2
		FOR UPDATE OF l`, teamID, phone)
	return scanLead(row)
}

// CreateLead inserts the lead and its derived profile. When a concurrent delivery
// created the same lead first, the existing lead is returned instead.
func (s *txStore) CreateLead(ctx context.Context, params domain.NewLead) (domain.Lead, error) {
	var leadID uuid.UUID
	err := s.tx.QueryRow(ctx, `
		INSERT INTO leads (team_id, owner_agent_id, state, source, primary_email, primary_phone,
			created_at, updated_at, next_action_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7, $7)
		ON CONFLICT DO NOTHING
		RETURNING id
	`, params.TeamID, params.OwnerAgentID, string(domain.StateNew), params.Source,
		params.PrimaryEmail, params.PrimaryPhone, params.CreatedAt).Scan(&leadID)

	if errors.Is(err, pgx.ErrNoRows) {
		switch {
		case params.PrimaryEmail != nil:
			return s.FindLeadByEmail(ctx, params.TeamID, *params.PrimaryEmail)
		case params.PrimaryPhone != nil:
			return s.FindLeadByPhone(ctx, params.TeamID, *params.PrimaryPhone)
		}
	}
	if err != nil {
		return domain.Lead{}, fmt.Errorf("create lead: %w", err)
	}

	_, err = s.tx.Exec(ctx, `
		INSERT INTO lead_profiles (lead_id, fields, updated_at)
		VALUES ($1, jsonb_build_object('intake_origin', $2::text, 'broker_assigned', false), $3)
	`, leadID, string(params.IntakeOrigin), params.CreatedAt)
	if err != nil {
		return domain.Lead{}, fmt.Errorf("create lead profile: %w", err)
	}

	return s.LockLead(ctx, leadID)
}

func (s *txStore) UpdateLeadState(ctx context.Context, leadID uuid.UUID, state domain.LeadState, at time.Time) error {
	_, err := s.tx.Exec(ctx, `
		UPDATE leads SET state = $2, updated_at = $3 WHERE id = $1
	`, leadID, string(state), at)
	if err != nil {
		return fmt.Errorf("update lead state: %w", err)
	}
	return nil
}

// SaveTouch persists the fields domain.ApplyTouch changes.
func (s *txStore) SaveTouch(ctx context.Context, lead domain.Lead) error {
	_, err := s.tx.Exec(ctx, `
		UPDATE leads
		SET state = $2, last_touch_at = $3, next_action_at = $4, updated_at = $5
		WHERE id = $1
	`, lead.ID, string(lead.State), lead.LastTouchAt, lead.NextActionAt, lead.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save touch: %w", err)
	}
	return nil
}

func (s *txStore) UpdateLeadOwner(ctx context.Context, leadID, ownerID uuid.UUID, at time.Time) error {
	_, err := s.tx.Exec(ctx, `
		UPDATE leads SET owner_agent_id = $2, updated_at = $3 WHERE id = $1
	`, leadID, ownerID, at)
	if err != nil {
		return fmt.Errorf("update lead owner: %w", err)
	}
	return nil
}

func (s *txStore) MarkBrokerAssigned(ctx context.Context, leadID uuid.UUID, a domain.BrokerAssignment) error {
	_, err := s.tx.Exec(ctx, `
		INSERT INTO lead_profiles (lead_id, fields, updated_at)
		VALUES ($1, jsonb_build_object(
				'broker_assigned', true,
				'broker_assigned_to', $2::uuid,
				'broker_assigned_by', $3::uuid,
				'broker_assigned_at', $4::timestamptz), $4)
		ON CONFLICT (lead_id) DO UPDATE
		SET fields = lead_profiles.fields || EXCLUDED.fields,
			updated_at = EXCLUDED.updated_at
	`, leadID, a.AssignedTo, a.AssignedBy, a.AssignedAt)
	if err != nil {
		return fmt.Errorf("mark broker assigned: %w", err)
	}
	return nil
}
