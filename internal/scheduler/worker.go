package scheduler

import (
	"context"
	"time"

	"leadflow_backend/internal/leads/evaluator"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Evaluator runs one sweep.
type Evaluator interface {
	EvaluateAll(ctx context.Context) (evaluator.Summary, error)
}

// Worker consumes stale-evaluation tasks.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	evaluator Evaluator
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, eval Evaluator, log *logger.Logger) (*Worker, error) {
	opt, queue, err := connection(cfg)
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 1
	}

	w := &Worker{
		mux:       asynq.NewServeMux(),
		evaluator: eval,
		log:       log.WithComponent("scheduler-worker"),
	}
	w.server = asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
		LogLevel: asynq.WarnLevel,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			w.log.Error("task failed", "task", task.Type(), "error", err)
		}),
	})
	w.mux.HandleFunc(TaskStaleEvaluation, w.handleStaleEvaluation)

	return w, nil
}

func (w *Worker) handleStaleEvaluation(ctx context.Context, _ *asynq.Task) error {
	started := time.Now()
	summary, err := w.evaluator.EvaluateAll(ctx)
	if err != nil {
		return err
	}
	w.log.Info("stale evaluation complete",
		"processed", summary.Processed,
		"atRisk", summary.AtRisk,
		"stale", summary.Stale,
		"recovered", summary.Recovered,
		"failed", summary.Failed,
		"duration", time.Since(started),
	)
	return nil
}

// Run processes tasks until ctx is cancelled, then drains in-flight work.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return err
	}
	<-ctx.Done()
	w.server.Shutdown()
	return nil
}
