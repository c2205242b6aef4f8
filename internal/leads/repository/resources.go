package repository

import (
	"context"
	"fmt"

	"leadflow_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func scanMailbox(row pgx.Row) (domain.Resource, error) {
	res := domain.Resource{Kind: domain.ResourceMailbox}
	var owner uuid.UUID
	if err := row.Scan(&res.ID, &res.TeamID, &res.Provider, &owner); err != nil {
		return domain.Resource{}, notFound(err)
	}
	res.OwnerUserID = &owner
	return res, nil
}

func scanPhoneLine(row pgx.Row) (domain.Resource, error) {
	res := domain.Resource{Kind: domain.ResourcePhoneLine}
	if err := row.Scan(&res.ID, &res.TeamID, &res.Provider); err != nil {
		return domain.Resource{}, notFound(err)
	}
	return res, nil
}

func (s *txStore) MailboxByID(ctx context.Context, id uuid.UUID) (domain.Resource, error) {
	return scanMailbox(s.tx.QueryRow(ctx, `
		SELECT m.id, u.team_id, m.provider, m.user_id
		FROM mailbox_connections m
		JOIN users u ON u.id = m.user_id
		WHERE m.id = $1
	`, id))
}

func (s *txStore) MailboxByAddress(ctx context.Context, address string) (domain.Resource, error) {
	return scanMailbox(s.tx.QueryRow(ctx, `
		SELECT m.id, u.team_id, m.provider, m.user_id
		FROM mailbox_connections m
		JOIN users u ON u.id = m.user_id
		WHERE lower(m.email_address) = lower($1)
	`, address))
}

func (s *txStore) PhoneLineByID(ctx context.Context, id uuid.UUID) (domain.Resource, error) {
	return scanPhoneLine(s.tx.QueryRow(ctx, `
		SELECT id, team_id, provider FROM phone_numbers WHERE id = $1
	`, id))
}

// PhoneLineByNumber matches the first candidate form that is registered.
func (s *txStore) PhoneLineByNumber(ctx context.Context, numbers ...string) (domain.Resource, error) {
	if len(numbers) == 0 {
		return domain.Resource{}, ErrNotFound
	}
	return scanPhoneLine(s.tx.QueryRow(ctx, `
		SELECT id, team_id, provider
		FROM phone_numbers
		WHERE number = ANY($1)
		ORDER BY array_position($1, number)
		LIMIT 1
	`, numbers))
}

// FirstUserWithRole returns the team member with the lowest id holding role.
func (s *txStore) FirstUserWithRole(ctx context.Context, teamID uuid.UUID, role domain.Role) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.tx.QueryRow(ctx, `
		SELECT id FROM users
		WHERE team_id = $1 AND role = $2
		ORDER BY id
		LIMIT 1
	`, teamID, string(role)).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("first %s of team: %w", role, notFound(err))
	}
	return id, nil
}

func (s *txStore) UserRole(ctx context.Context, teamID, userID uuid.UUID) (domain.Role, error) {
	var role string
	err := s.tx.QueryRow(ctx, `
		SELECT role FROM users WHERE id = $1 AND team_id = $2
	`, userID, teamID).Scan(&role)
	if err != nil {
		return "", notFound(err)
	}
	return domain.Role(role), nil
}
