// Package evaluator runs the periodic stale sweep over every team's open leads.
package evaluator

import (
	"context"
	"fmt"
	"time"

	"leadflow_backend/internal/events"
	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/leads/ports"
	"leadflow_backend/internal/leads/rescue"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/metrics"

	"github.com/google/uuid"
)

// Summary counts what one sweep did.
type Summary struct {
	Processed int `json:"processed"`
	AtRisk    int `json:"at_risk"`
	Stale     int `json:"stale"`
	Recovered int `json:"recovered"`
	Failed    int `json:"failed"`
}

// Service evaluates leads against their team's rules.
type Service struct {
	store  ports.Store
	rescue *rescue.Materializer
	bus    events.Bus
	log    *logger.Logger
	clock  func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithMaterializer replaces the default first-sequence materializer.
func WithMaterializer(m *rescue.Materializer) Option {
	return func(s *Service) { s.rescue = m }
}

func New(store ports.Store, bus events.Bus, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		rescue: rescue.New(nil),
		bus:    bus,
		log:    log.WithComponent("stale-evaluator"),
		clock:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EvaluateAll sweeps every team in ascending id order and every New, Active or
// At-Risk lead of the team, also in ascending id order. Each lead is evaluated
// in its own transaction; a failing lead is rolled back, logged and counted
// without stopping the sweep. Only a failure to list teams or a cancelled
// context ends the sweep early.
func (s *Service) EvaluateAll(ctx context.Context) (Summary, error) {
	start := time.Now()
	var summary Summary

	teamIDs, err := s.store.ListTeamIDs(ctx)
	if err != nil {
		metrics.EvaluationRuns.WithLabelValues("failed").Inc()
		return summary, fmt.Errorf("list teams: %w", err)
	}

	for _, teamID := range teamIDs {
		if err := ctx.Err(); err != nil {
			metrics.EvaluationRuns.WithLabelValues("cancelled").Inc()
			return summary, err
		}

		leadIDs, err := s.store.ListEvaluableLeadIDs(ctx, teamID)
		if err != nil {
			s.log.Error("listing leads failed, skipping team", "teamId", teamID, "error", err)
			continue
		}

		for _, leadID := range leadIDs {
			if err := ctx.Err(); err != nil {
				metrics.EvaluationRuns.WithLabelValues("cancelled").Inc()
				return summary, err
			}
			s.evaluate(ctx, teamID, leadID, &summary)
		}
	}

	status := "success"
	if summary.Failed > 0 {
		status = "partial"
	}
	metrics.EvaluationRuns.WithLabelValues(status).Inc()
	metrics.EvaluationDuration.Observe(time.Since(start).Seconds())

	s.log.Info("stale evaluation finished",
		"teams", len(teamIDs),
		"processed", summary.Processed,
		"atRisk", summary.AtRisk,
		"stale", summary.Stale,
		"recovered", summary.Recovered,
		"failed", summary.Failed,
		"durationMs", time.Since(start).Milliseconds(),
	)
	return summary, nil
}

func (s *Service) evaluate(ctx context.Context, teamID, leadID uuid.UUID, summary *Summary) {
	result, err := s.EvaluateLead(ctx, teamID, leadID)
	if err != nil {
		summary.Failed++
		metrics.LeadsEvaluated.WithLabelValues("failed").Inc()
		s.log.Error("lead evaluation failed", "teamId", teamID, "leadId", leadID, "error", err)
		return
	}
	if result.Skipped {
		metrics.LeadsEvaluated.WithLabelValues("skipped").Inc()
		return
	}

	summary.Processed++
	switch result.To {
	case domain.StateAtRisk:
		summary.AtRisk++
	case domain.StateStale:
		summary.Stale++
	case domain.StateActive:
		summary.Recovered++
	}
	metrics.LeadsEvaluated.WithLabelValues(outcomeLabel(result.To)).Inc()
}

func outcomeLabel(state domain.LeadState) string {
	switch state {
	case domain.StateAtRisk:
		return "at_risk"
	case domain.StateStale:
		return "stale"
	case domain.StateActive:
		return "recovered"
	default:
		return "unchanged"
	}
}

// Result describes one lead evaluation. To is StateUnchanged when nothing was written.
type Result struct {
	LeadID  uuid.UUID
	From    domain.LeadState
	To      domain.LeadState
	Rescue  rescue.Outcome
	Skipped bool
}

// EvaluateLead evaluates one lead in its own transaction and publishes the
// resulting events after commit. A lead that left the evaluable states since
// it was listed is skipped.
func (s *Service) EvaluateLead(ctx context.Context, teamID, leadID uuid.UUID) (Result, error) {
	var (
		result Result
		lead   domain.Lead
	)

	err := s.store.InTx(ctx, func(tx ports.Tx) error {
		result = Result{LeadID: leadID}

		rules, err := tx.TeamRules(ctx, teamID)
		if err != nil {
			return err
		}

		lead, err = tx.LockLead(ctx, leadID)
		if err != nil {
			return err
		}
		if lead.TeamID != teamID || !lead.State.Evaluable() {
			result.Skipped = true
			return nil
		}

		now := s.clock()
		next := domain.Decide(lead, rules, now)
		result.From = lead.State
		if next == domain.StateUnchanged {
			return nil
		}

		if err := tx.UpdateLeadState(ctx, lead.ID, next, now); err != nil {
			return err
		}
		result.To = next

		if next == domain.StateStale {
			result.Rescue, err = s.rescue.OnStale(ctx, tx, rules, lead, now)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Result{LeadID: leadID}, err
	}

	s.publish(ctx, lead, result)
	return result, nil
}

func (s *Service) publish(ctx context.Context, lead domain.Lead, result Result) {
	if s.bus == nil || result.Skipped || result.To == domain.StateUnchanged {
		return
	}

	base := events.NewBaseEvent(s.clock())
	s.bus.Publish(ctx, events.LeadStateChanged{
		BaseEvent: base,
		LeadID:    lead.ID,
		TeamID:    lead.TeamID,
		From:      string(result.From),
		To:        string(result.To),
	})
	if result.To == domain.StateStale {
		s.bus.Publish(ctx, events.LeadWentStale{
			BaseEvent:      base,
			LeadID:         lead.ID,
			TeamID:         lead.TeamID,
			RescueOwnerID:  result.Rescue.OwnerID,
			RescueTasks:    result.Rescue.StepTasks + boolToInt(result.Rescue.PrimaryCreated),
			BrokerAssigned: lead.Provenance.BrokerAssigned,
		})
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
