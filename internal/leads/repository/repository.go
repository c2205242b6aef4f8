package repository

import (
	"context"
	"errors"
	"fmt"

	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/leads/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is the ports sentinel, re-exported for callers that only see the repository.
var ErrNotFound = ports.ErrNotFound

// Repository is the PostgreSQL implementation of ports.Store.
type Repository struct {
	pool     *pgxpool.Pool
	defaults domain.RuleDefaults
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, defaults: domain.BuiltinDefaults()}
}

// SetRuleDefaults replaces the defaults applied under each team's stored rules.
func (r *Repository) SetRuleDefaults(defaults domain.RuleDefaults) {
	r.defaults = defaults
}

// InTx runs fn inside a transaction. pgx.BeginFunc commits on nil and rolls back otherwise.
func (r *Repository) InTx(ctx context.Context, fn func(tx ports.Tx) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&txStore{tx: tx, defaults: r.defaults})
	})
}

func (r *Repository) ListTeamIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM teams ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	return ids, nil
}

func (r *Repository) ListEvaluableLeadIDs(ctx context.Context, teamID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM leads
		WHERE team_id = $1 AND state = ANY($2)
		ORDER BY id
	`, teamID, domain.EvaluableStates())
	if err != nil {
		return nil, fmt.Errorf("list evaluable leads: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("list evaluable leads: %w", err)
	}
	return ids, nil
}

// txStore implements ports.Tx on one pgx transaction.
type txStore struct {
	tx       pgx.Tx
	defaults domain.RuleDefaults
}

var (
	_ ports.Store = (*Repository)(nil)
	_ ports.Tx    = (*txStore)(nil)
)

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
