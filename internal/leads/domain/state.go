package domain

import "time"

// FollowUpDelay is how far out a touch pushes next_action_at and the follow-up task.
const FollowUpDelay = 24 * time.Hour

// New leads turn At-Risk after 80% of the response SLA has elapsed.
const (
	newLeadSLANumerator   = 8
	newLeadSLADenominator = 10
)

// Decide computes the next state for lead at now. It is pure: the same inputs
// always produce the same answer and nothing is mutated. StateUnchanged means
// no write is needed.
func Decide(lead Lead, rules TeamRules, now time.Time) LeadState {
	staleHours := rules.Stale.ActiveStaleHours
	if lead.Provenance.BrokerAssigned {
		staleHours = rules.Escalation.BrokerIntake.StaleHoursForAssigned
	}

	reference := lead.CreatedAt
	if lead.LastTouchAt != nil {
		reference = *lead.LastTouchAt
	}
	elapsed := now.Sub(reference)

	staleWindow := time.Duration(staleHours) * time.Hour
	atRiskWindow := staleWindow * time.Duration(rules.Stale.AtRiskThresholdPercent) / 100

	if lead.State == StateStale {
		// Stale leaves only through reassignment or manual work, never through Decide.
		return StateUnchanged
	}
	if elapsed >= staleWindow {
		return StateStale
	}

	if lead.State == StateNew {
		slaWindow := time.Duration(rules.Stale.NewLeadSLAMinutes) * time.Minute * newLeadSLANumerator / newLeadSLADenominator
		if now.Sub(lead.CreatedAt) >= slaWindow {
			return StateAtRisk
		}
		return StateUnchanged
	}

	if elapsed >= atRiskWindow && lead.State != StateAtRisk {
		return StateAtRisk
	}
	if elapsed < atRiskWindow && lead.State == StateAtRisk {
		return StateActive
	}
	return StateUnchanged
}

// ApplyTouch returns lead as it looks after an outbound touch at: last_touch_at
// moves to at, New becomes Active, and the next action is due FollowUpDelay later.
func ApplyTouch(lead Lead, at time.Time) Lead {
	touched := at
	lead.LastTouchAt = &touched
	if lead.State == StateNew {
		lead.State = StateActive
	}
	lead.NextActionAt = at.Add(FollowUpDelay)
	lead.UpdatedAt = at
	return lead
}
