package scheduler

import (
	"context"
	"fmt"
	"time"

	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Periodic registers the recurring stale-evaluation sweep.
type Periodic struct {
	scheduler *asynq.Scheduler
	cronspec  string
	opts      []asynq.Option
	log       *logger.Logger
}

func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*Periodic, error) {
	opt, queue, err := connection(cfg)
	if err != nil {
		return nil, err
	}

	return &Periodic{
		scheduler: asynq.NewScheduler(opt, &asynq.SchedulerOpts{
			Location: time.UTC,
			LogLevel: asynq.WarnLevel,
		}),
		cronspec: Cronspec(cfg.GetStaleEvaluationInterval()),
		opts:     taskOptions(queue, cfg),
		log:      log.WithComponent("scheduler-periodic"),
	}, nil
}

// Cronspec returns the "@every" spec for interval, defaulting to five minutes.
func Cronspec(interval time.Duration) string {
	return fmt.Sprintf("@every %s", sweepInterval(interval))
}

// Run registers the sweep and enqueues it on schedule until ctx is cancelled.
func (p *Periodic) Run(ctx context.Context) error {
	entryID, err := p.scheduler.Register(p.cronspec, NewStaleEvaluationTask(), p.opts...)
	if err != nil {
		return fmt.Errorf("register stale evaluation: %w", err)
	}
	p.log.Info("stale evaluation scheduled", "spec", p.cronspec, "entryId", entryID)

	if err := p.scheduler.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	p.scheduler.Shutdown()
	return nil
}
