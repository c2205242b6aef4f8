package scheduler

import (
	"github.com/hibiken/asynq"
)

// TaskStaleEvaluation runs one full stale-evaluation sweep over every team.
const TaskStaleEvaluation = "leads.stale_evaluation"

// NewStaleEvaluationTask builds the sweep task. The payload is empty so that
// periodic and on-demand enqueues share one uniqueness key.
func NewStaleEvaluationTask() *asynq.Task {
	return asynq.NewTask(TaskStaleEvaluation, nil)
}
