package touch

import (
	"context"
	"errors"
	"fmt"

	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/leads/ports"
	"leadflow_backend/platform/phone"
	"leadflow_backend/platform/sanitize"

	"github.com/google/uuid"
)

const maxSubjectRunes = 998

// channelSpec holds everything that differs between email, SMS and calls.
type channelSpec struct {
	// resolve finds the mailbox or phone line the event arrived on.
	resolve func(ctx context.Context, tx ports.Tx, in Input, region string) (domain.Resource, error)
	// sender normalizes the counterpart address.
	sender func(in Input) string
	// findLead looks the sender up among the team's leads.
	findLead func(ctx context.Context, tx ports.Tx, teamID uuid.UUID, sender string) (domain.Lead, error)
	// contact builds the primary contact fields of a new lead.
	contact func(sender string) (email, phone *string)
	// owner picks the agent of a lead created from this event.
	owner func(ctx context.Context, tx ports.Tx, res domain.Resource) (uuid.UUID, error)
	// meta is the clear-text metadata stored next to the sealed body.
	meta func(in Input, res domain.Resource) map[string]any
	// sealBody is false for channels without a message body.
	sealBody bool
}

var channels = map[domain.Channel]channelSpec{
	domain.ChannelEmail: {
		resolve:  resolveMailbox,
		sender:   func(in Input) string { return domain.NormalizeEmail(in.From) },
		findLead: func(ctx context.Context, tx ports.Tx, teamID uuid.UUID, s string) (domain.Lead, error) { return tx.FindLeadByEmail(ctx, teamID, s) },
		contact:  func(s string) (*string, *string) { return &s, nil },
		owner:    mailboxOwner,
		meta: func(in Input, res domain.Resource) map[string]any {
			return map[string]any{
				"subject":   sanitize.Line(in.Subject, maxSubjectRunes),
				"thread_id": nullable(in.ThreadID),
				"provider":  res.Provider,
			}
		},
		sealBody: true,
	},
	domain.ChannelSMS: {
		resolve:  resolvePhoneLine,
		sender:   func(in Input) string { return domain.NormalizeSender(in.From) },
		findLead: findByPhone,
		contact:  func(s string) (*string, *string) { return nil, &s },
		owner:    firstAgent,
		meta: func(in Input, res domain.Resource) map[string]any {
			return map[string]any{"provider": res.Provider}
		},
		sealBody: true,
	},
	domain.ChannelCall: {
		resolve:  resolvePhoneLine,
		sender:   func(in Input) string { return domain.NormalizeSender(in.From) },
		findLead: findByPhone,
		contact:  func(s string) (*string, *string) { return nil, &s },
		owner:    firstAgent,
		meta: func(in Input, res domain.Resource) map[string]any {
			var duration any
			if in.DurationSeconds != nil {
				duration = *in.DurationSeconds
			}
			return map[string]any{
				"status":           in.CallStatus,
				"duration_seconds": duration,
				"provider":         res.Provider,
			}
		},
	},
}

func resolveMailbox(ctx context.Context, tx ports.Tx, in Input, _ string) (domain.Resource, error) {
	switch {
	case in.MailboxConnectionID != nil:
		return tx.MailboxByID(ctx, *in.MailboxConnectionID)
	case in.MailboxAddress != "":
		return tx.MailboxByAddress(ctx, domain.NormalizeEmail(in.MailboxAddress))
	}
	return domain.Resource{}, ports.ErrNotFound
}

func resolvePhoneLine(ctx context.Context, tx ports.Tx, in Input, region string) (domain.Resource, error) {
	switch {
	case in.PhoneNumberID != nil:
		return tx.PhoneLineByID(ctx, *in.PhoneNumberID)
	case in.ToNumber != "":
		return tx.PhoneLineByNumber(ctx, phone.Candidates(in.ToNumber, region)...)
	}
	return domain.Resource{}, ports.ErrNotFound
}

func findByPhone(ctx context.Context, tx ports.Tx, teamID uuid.UUID, sender string) (domain.Lead, error) {
	return tx.FindLeadByPhone(ctx, teamID, sender)
}

func mailboxOwner(_ context.Context, _ ports.Tx, res domain.Resource) (uuid.UUID, error) {
	if res.OwnerUserID == nil {
		return uuid.Nil, fmt.Errorf("mailbox %s has no owner", res.ID)
	}
	return *res.OwnerUserID, nil
}

// ErrNoAgent is returned when a phone event creates a lead for a team without agents.
var ErrNoAgent = errors.New("team has no agent to own the lead")

func firstAgent(ctx context.Context, tx ports.Tx, res domain.Resource) (uuid.UUID, error) {
	id, err := tx.FirstUserWithRole(ctx, res.TeamID, domain.RoleAgent)
	if errors.Is(err, ports.ErrNotFound) {
		return uuid.Nil, fmt.Errorf("team %s: %w", res.TeamID, ErrNoAgent)
	}
	return id, err
}

func isBrokerIntake(rules domain.TeamRules, res domain.Resource) bool {
	if res.Kind == domain.ResourceMailbox {
		return rules.Escalation.BrokerIntake.IncludesMailbox(res.ID)
	}
	return rules.Escalation.BrokerIntake.IncludesPhoneLine(res.ID)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
