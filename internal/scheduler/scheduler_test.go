package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"leadflow_backend/internal/leads/evaluator"
	"leadflow_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
)

const fmtUnexpectedErr = "unexpected error: %v"

type stubConfig struct {
	redisURL string
	interval time.Duration
}

func (s stubConfig) GetRedisURL() string                       { return s.redisURL }
func (s stubConfig) GetRedisTLSInsecure() bool                 { return false }
func (s stubConfig) GetAsynqQueueName() string                 { return "lifecycle" }
func (s stubConfig) GetAsynqConcurrency() int                  { return 1 }
func (s stubConfig) GetStaleEvaluationInterval() time.Duration { return s.interval }

type stubEvaluator struct {
	calls int
	err   error
}

func (s *stubEvaluator) EvaluateAll(ctx context.Context) (evaluator.Summary, error) {
	s.calls++
	return evaluator.Summary{Processed: 3, Stale: 1}, s.err
}

func TestCronspec(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{5 * time.Minute, "@every 5m0s"},
		{90 * time.Second, "@every 1m30s"},
		{0, "@every 5m0s"},
		{time.Millisecond, "@every 5m0s"},
	}
	for _, tt := range tests {
		if got := Cronspec(tt.in); got != tt.want {
			t.Fatalf("Cronspec(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewClientRequiresRedis(t *testing.T) {
	if _, err := NewClient(stubConfig{}); err == nil {
		t.Fatalf("expected error without redis url")
	}
}

func TestEnqueueStaleEvaluationIsUnique(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(stubConfig{redisURL: "redis://" + mr.Addr(), interval: 5 * time.Minute})
	if err != nil {
		t.Fatalf(fmtUnexpectedErr, err)
	}
	defer func() { _ = client.Close() }()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := client.EnqueueStaleEvaluation(ctx); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	pending, err := mr.List("asynq:{lifecycle}:pending")
	if err != nil {
		t.Fatalf(fmtUnexpectedErr, err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected one pending sweep, got %d", len(pending))
	}
}

func TestWorkerRunsSweep(t *testing.T) {
	mr := miniredis.RunT(t)
	eval := &stubEvaluator{}
	w, err := NewWorker(stubConfig{redisURL: "redis://" + mr.Addr()}, eval, logger.Discard())
	if err != nil {
		t.Fatalf(fmtUnexpectedErr, err)
	}

	if err := w.handleStaleEvaluation(context.Background(), NewStaleEvaluationTask()); err != nil {
		t.Fatalf(fmtUnexpectedErr, err)
	}
	if eval.calls != 1 {
		t.Fatalf("expected one sweep, got %d", eval.calls)
	}

	eval.err = errors.New("listing failed")
	if err := w.handleStaleEvaluation(context.Background(), NewStaleEvaluationTask()); !errors.Is(err, eval.err) {
		t.Fatalf("expected sweep error, got %v", err)
	}
}
