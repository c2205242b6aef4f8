package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Channel is the medium of a touch event.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelCall  Channel = "call"
)

// Direction tells whether the team or the prospect initiated a touch.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// ParseDirection validates a direction value.
func ParseDirection(raw string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(raw))); d {
	case DirectionInbound, DirectionOutbound:
		return d, nil
	default:
		return "", fmt.Errorf("unknown direction %q", raw)
	}
}

// ResourceKind identifies the type of channel resource an event arrived on.
type ResourceKind string

const (
	ResourceMailbox   ResourceKind = "mailbox"
	ResourcePhoneLine ResourceKind = "phone_line"
)

// Resource is a team-owned mailbox connection or phone line.
type Resource struct {
	Kind        ResourceKind
	ID          uuid.UUID
	TeamID      uuid.UUID
	Provider    string
	OwnerUserID *uuid.UUID // mailbox owner; nil for phone lines
}

// NewTouchEvent is one interaction to record.
type NewTouchEvent struct {
	LeadID              uuid.UUID
	Channel             Channel
	Type                string
	Direction           Direction
	MailboxConnectionID *uuid.UUID
	PhoneNumberID       *uuid.UUID
	ProviderEventID     string
	RawBody             []byte
	Meta                map[string]any
	CreatedAt           time.Time
}

// TouchEventType names the stored event type for a channel and direction,
// for example email_inbound or call_outbound.
func TouchEventType(channel Channel, direction Direction) string {
	return string(channel) + "_" + string(direction)
}

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// NormalizeSender trims a phone number as provided by the carrier.
func NormalizeSender(raw string) string {
	return strings.TrimSpace(raw)
}
