package scheduler

import (
	"context"
	"errors"

	"leadflow_backend/platform/config"

	"github.com/hibiken/asynq"
)

// Client enqueues on-demand stale evaluations.
type Client struct {
	client *asynq.Client
	queue  string
	opts   []asynq.Option
}

// StaleEvaluationTrigger is what the operator endpoint and CLI depend on.
type StaleEvaluationTrigger interface {
	EnqueueStaleEvaluation(ctx context.Context) error
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	opt, queue, err := connection(cfg)
	if err != nil {
		return nil, err
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queue,
		opts:   taskOptions(queue, cfg),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueStaleEvaluation queues one sweep. A sweep that is already pending
// counts as queued.
func (c *Client) EnqueueStaleEvaluation(ctx context.Context) error {
	_, err := c.client.EnqueueContext(ctx, NewStaleEvaluationTask(), c.opts...)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

var _ StaleEvaluationTrigger = (*Client)(nil)
