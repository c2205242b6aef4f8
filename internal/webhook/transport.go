package webhook

import (
	"time"

	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/leads/touch"

	"github.com/google/uuid"
)

// EmailWebhookRequest is the normalized payload relayed by the mail providers.
type EmailWebhookRequest struct {
	ProviderEventID     string     `json:"provider_event_id" validate:"required,max=512"`
	MailboxConnectionID *uuid.UUID `json:"mailbox_connection_id,omitempty" validate:"required_without=MailboxEmail"`
	MailboxEmail        string     `json:"mailbox_email,omitempty" validate:"omitempty,email,max=320"`
	FromEmail           string     `json:"from_email" validate:"required,email,max=320"`
	Direction           string     `json:"direction" validate:"required,oneof=inbound outbound"`
	Subject             string     `json:"subject,omitempty" validate:"max=4096"`
	Body                string     `json:"body,omitempty"`
	ThreadID            string     `json:"thread_id,omitempty" validate:"max=512"`
	Timestamp           *time.Time `json:"timestamp,omitempty"`
}

func (r EmailWebhookRequest) toInput() touch.Input {
	return touch.Input{
		Channel:             domain.ChannelEmail,
		Direction:           domain.Direction(r.Direction),
		ProviderEventID:     r.ProviderEventID,
		MailboxConnectionID: r.MailboxConnectionID,
		MailboxAddress:      r.MailboxEmail,
		From:                r.FromEmail,
		Subject:             r.Subject,
		ThreadID:            r.ThreadID,
		Body:                r.Body,
		OccurredAt:          r.Timestamp,
	}
}

// SMSWebhookRequest is a text message relayed by the telephony provider.
type SMSWebhookRequest struct {
	ProviderEventID string     `json:"provider_event_id" validate:"required,max=512"`
	PhoneNumberID   *uuid.UUID `json:"phone_number_id,omitempty" validate:"required_without=ToNumber"`
	ToNumber        string     `json:"to_number,omitempty" validate:"max=32"`
	FromNumber      string     `json:"from_number" validate:"required,min=4,max=32"`
	Direction       string     `json:"direction" validate:"required,oneof=inbound outbound"`
	Body            string     `json:"body,omitempty"`
	Timestamp       *time.Time `json:"timestamp,omitempty"`
}

func (r SMSWebhookRequest) toInput() touch.Input {
	return touch.Input{
		Channel:         domain.ChannelSMS,
		Direction:       domain.Direction(r.Direction),
		ProviderEventID: r.ProviderEventID,
		PhoneNumberID:   r.PhoneNumberID,
		ToNumber:        r.ToNumber,
		From:            r.FromNumber,
		Body:            r.Body,
		OccurredAt:      r.Timestamp,
	}
}

// CallWebhookRequest is a call status callback.
type CallWebhookRequest struct {
	ProviderEventID string     `json:"provider_event_id" validate:"required,max=512"`
	PhoneNumberID   *uuid.UUID `json:"phone_number_id,omitempty" validate:"required_without=ToNumber"`
	ToNumber        string     `json:"to_number,omitempty" validate:"max=32"`
	FromNumber      string     `json:"from_number" validate:"required,min=4,max=32"`
	Direction       string     `json:"direction" validate:"required,oneof=inbound outbound"`
	Status          string     `json:"status" validate:"required,max=64"`
	DurationSeconds *int       `json:"duration_seconds,omitempty" validate:"omitempty,gte=0"`
	Timestamp       *time.Time `json:"timestamp,omitempty"`
}

func (r CallWebhookRequest) toInput() touch.Input {
	return touch.Input{
		Channel:         domain.ChannelCall,
		Direction:       domain.Direction(r.Direction),
		ProviderEventID: r.ProviderEventID,
		PhoneNumberID:   r.PhoneNumberID,
		ToNumber:        r.ToNumber,
		From:            r.FromNumber,
		CallStatus:      r.Status,
		DurationSeconds: r.DurationSeconds,
		OccurredAt:      r.Timestamp,
	}
}
