package repository

import (
	"context"
	"fmt"
	"time"

	"leadflow_backend/internal/leads/domain"

	"github.com/google/uuid"
)

func (s *txStore) HasOpenTask(ctx context.Context, leadID uuid.UUID, types ...domain.TaskType) (bool, error) {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}

	var exists bool
	err := s.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM tasks
			WHERE lead_id = $1 AND status = 'open' AND type = ANY($2)
		)
	`, leadID, names).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check open tasks: %w", err)
	}
	return exists, nil
}

// InsertTask returns false when a conditional unique index already covers an
// equivalent open task.
func (s *txStore) InsertTask(ctx context.Context, t domain.NewTask) (bool, error) {
	tag, err := s.tx.Exec(ctx, `
		INSERT INTO tasks (lead_id, owner_id, due_at, status, type, requires_human_send,
			channel, template_id, sequence_step_id, created_at, updated_at)
		VALUES ($1, $2, $3, 'open', $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT DO NOTHING
	`, t.LeadID, t.OwnerID, t.DueAt, string(t.Type), t.RequiresHumanSend,
		t.Channel, t.TemplateID, t.SequenceStepID, t.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert %s task: %w", t.Type, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *txStore) GetTask(ctx context.Context, taskID uuid.UUID) (domain.Task, error) {
	var (
		task   domain.Task
		status string
		typ    string
	)
	err := s.tx.QueryRow(ctx, `
		SELECT id, lead_id, owner_id, due_at, status, type, requires_human_send,
			channel, template_id, sequence_step_id, created_at
		FROM tasks
		WHERE id = $1
		FOR UPDATE
	`, taskID).Scan(
		&task.ID,
		&task.LeadID,
		&task.OwnerID,
		&task.DueAt,
		&status,
		&typ,
		&task.RequiresHumanSend,
		&task.Channel,
		&task.TemplateID,
		&task.SequenceStepID,
		&task.CreatedAt,
	)
	if err != nil {
		return domain.Task{}, notFound(err)
	}
	task.Status = domain.TaskStatus(status)
	task.Type = domain.TaskType(typ)
	return task, nil
}

// ReassignOpenTasks moves every open task of the lead to ownerID. Due dates are unchanged.
func (s *txStore) ReassignOpenTasks(ctx context.Context, leadID, ownerID uuid.UUID, at time.Time) (int64, error) {
	tag, err := s.tx.Exec(ctx, `
		UPDATE tasks SET owner_id = $2, updated_at = $3
		WHERE lead_id = $1 AND status = 'open'
	`, leadID, ownerID, at)
	if err != nil {
		return 0, fmt.Errorf("reassign open tasks: %w", err)
	}
	return tag.RowsAffected(), nil
}
