package repository

import (
	"context"
	"fmt"
	"time"

	"leadflow_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// TeamRules reads the team's stored rule documents and decodes them over the defaults.
// Decoding failures surface as domain.ErrInvalidRules.
func (s *txStore) TeamRules(ctx context.Context, teamID uuid.UUID) (domain.TeamRules, error) {
	return s.readTeamRules(ctx, teamID, "")
}

// LockTeamRules is TeamRules holding the team row lock, for read-modify-write edits.
func (s *txStore) LockTeamRules(ctx context.Context, teamID uuid.UUID) (domain.TeamRules, error) {
	return s.readTeamRules(ctx, teamID, "FOR UPDATE")
}

func (s *txStore) readTeamRules(ctx context.Context, teamID uuid.UUID, lock string) (domain.TeamRules, error) {
	var (
		stale, sla, escalation []byte
		updatedAt              time.Time
	)
	err := s.tx.QueryRow(ctx, `
		SELECT stale_rules, sla_rules, escalation_rules, updated_at
		FROM teams
		WHERE id = $1
	`+lock, teamID).Scan(&stale, &sla, &escalation, &updatedAt)
	if err != nil {
		return domain.TeamRules{}, fmt.Errorf("read team rules: %w", notFound(err))
	}

	rules, err := domain.ParseTeamRules(teamID, s.defaults, stale, sla, escalation)
	if err != nil {
		return domain.TeamRules{}, fmt.Errorf("team %s: %w", teamID, err)
	}
	rules.UpdatedAt = updatedAt
	return rules, nil
}

// SaveTeamRules overwrites all three rule documents.
func (s *txStore) SaveTeamRules(ctx context.Context, rules domain.TeamRules, at time.Time) error {
	stale, sla, escalation, err := rules.Documents()
	if err != nil {
		return fmt.Errorf("encode team rules: %w", err)
	}

	tag, err := s.tx.Exec(ctx, `
		UPDATE teams
		SET stale_rules = $2, sla_rules = $3, escalation_rules = $4, updated_at = $5
		WHERE id = $1
	`, rules.TeamID, stale, sla, escalation, at)
	if err != nil {
		return fmt.Errorf("save team rules: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
