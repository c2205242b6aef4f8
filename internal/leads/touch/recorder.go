// Package touch records inbound and outbound interactions against leads and
// applies their lifecycle side effects. Each provider event is recorded once.
package touch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"leadflow_backend/internal/events"
	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/leads/ports"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/metrics"
	"leadflow_backend/platform/phone"

	"github.com/google/uuid"
)

// Input is one provider event, already authenticated.
type Input struct {
	Channel         domain.Channel
	Direction       domain.Direction
	ProviderEventID string

	// Email resource reference: id wins over address.
	MailboxConnectionID *uuid.UUID
	MailboxAddress      string

	// Phone resource reference: id wins over number.
	PhoneNumberID *uuid.UUID
	ToNumber      string

	From       string
	Subject    string
	ThreadID   string
	Body       string
	CallStatus string

	DurationSeconds *int
	OccurredAt      *time.Time
}

// Result is the outcome reported back to the provider.
type Result struct {
	Accepted bool       `json:"accepted"`
	Deduped  bool       `json:"deduped"`
	LeadID   *uuid.UUID `json:"lead_id,omitempty"`
}

// BodySealer encrypts raw message bodies before they are stored.
type BodySealer interface {
	Seal(plaintext []byte) ([]byte, error)
}

// Filter is a fast "already seen" cache in front of the database. The
// database unique indexes stay authoritative; a filter miss is never trusted.
type Filter interface {
	Seen(ctx context.Context, key string) (uuid.UUID, bool, error)
	Mark(ctx context.Context, key string, leadID uuid.UUID) error
}

// Recorder ingests touch events.
type Recorder struct {
	store  ports.Store
	sealer BodySealer
	filter Filter
	bus    events.Bus
	log    *logger.Logger
	region string
	clock  func() time.Time
}

// Option customizes a Recorder.
type Option func(*Recorder)

func WithFilter(f Filter) Option { return func(r *Recorder) { r.filter = f } }

func WithBus(bus events.Bus) Option { return func(r *Recorder) { r.bus = bus } }

func WithClock(clock func() time.Time) Option { return func(r *Recorder) { r.clock = clock } }

// WithPhoneRegion sets the region used to normalize receiving line numbers.
func WithPhoneRegion(region string) Option { return func(r *Recorder) { r.region = region } }

func NewRecorder(store ports.Store, sealer BodySealer, log *logger.Logger, opts ...Option) *Recorder {
	r := &Recorder{
		store:  store,
		sealer: sealer,
		log:    log.WithComponent("touch-recorder"),
		region: phone.DefaultRegion,
		clock:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type recorded struct {
	result      Result
	lead        domain.Lead
	leadCreated bool
}

// Record stores the event and applies its side effects in one transaction.
// An event on an unknown mailbox or phone line is not accepted and creates
// nothing. A redelivered event is accepted as deduped without side effects.
func (r *Recorder) Record(ctx context.Context, in Input) (Result, error) {
	spec, err := r.check(&in)
	if err != nil {
		return Result{}, err
	}

	key := dedupKey(in)
	if leadID, ok := r.seen(ctx, key); ok {
		metrics.DedupHits.Inc()
		metrics.TouchEvents.WithLabelValues(string(in.Channel), "deduped").Inc()
		return Result{Accepted: true, Deduped: true, LeadID: &leadID}, nil
	}

	var out recorded
	err = r.store.InTx(ctx, func(tx ports.Tx) error {
		var err error
		out, err = r.record(ctx, tx, spec, in)
		return err
	})
	if err != nil {
		metrics.TouchEvents.WithLabelValues(string(in.Channel), "failed").Inc()
		return Result{}, err
	}

	switch {
	case !out.result.Accepted:
		metrics.TouchEvents.WithLabelValues(string(in.Channel), "unresolved").Inc()
		r.log.Warn("touch event on unknown resource", "channel", in.Channel, "providerEventId", in.ProviderEventID)
	case out.result.Deduped:
		metrics.TouchEvents.WithLabelValues(string(in.Channel), "deduped").Inc()
		r.mark(ctx, key, out.lead.ID)
	default:
		metrics.TouchEvents.WithLabelValues(string(in.Channel), "accepted").Inc()
		r.mark(ctx, key, out.lead.ID)
		r.publish(ctx, in, out)
	}
	return out.result, nil
}

func (r *Recorder) check(in *Input) (channelSpec, error) {
	spec, ok := channels[in.Channel]
	if !ok {
		return channelSpec{}, apperr.Validation(fmt.Sprintf("unsupported channel %q", in.Channel))
	}
	direction, err := domain.ParseDirection(string(in.Direction))
	if err != nil {
		return channelSpec{}, apperr.Validation(err.Error())
	}
	in.Direction = direction
	if strings.TrimSpace(in.ProviderEventID) == "" {
		return channelSpec{}, apperr.Validation("provider_event_id is required")
	}
	if spec.sender(*in) == "" {
		return channelSpec{}, apperr.Validation("sender is required")
	}
	return spec, nil
}

func (r *Recorder) record(ctx context.Context, tx ports.Tx, spec channelSpec, in Input) (recorded, error) {
	now := r.clock()

	res, err := spec.resolve(ctx, tx, in, r.region)
	if errors.Is(err, ports.ErrNotFound) {
		return recorded{}, nil
	}
	if err != nil {
		return recorded{}, fmt.Errorf("resolve %s resource: %w", in.Channel, err)
	}

	sender := spec.sender(in)
	lead, err := spec.findLead(ctx, tx, res.TeamID, sender)
	created := false
	if errors.Is(err, ports.ErrNotFound) {
		lead, err = r.createLead(ctx, tx, spec, in, res, sender, now)
		created = err == nil
	}
	if err != nil {
		return recorded{}, err
	}

	event := domain.NewTouchEvent{
		LeadID:          lead.ID,
		Channel:         in.Channel,
		Type:            domain.TouchEventType(in.Channel, in.Direction),
		Direction:       in.Direction,
		ProviderEventID: in.ProviderEventID,
		Meta:            spec.meta(in, res),
		CreatedAt:       now,
	}
	if in.OccurredAt != nil {
		event.CreatedAt = in.OccurredAt.UTC()
	}
	if res.Kind == domain.ResourceMailbox {
		event.MailboxConnectionID = &res.ID
	} else {
		event.PhoneNumberID = &res.ID
	}
	if spec.sealBody && in.Body != "" {
		event.RawBody, err = r.sealer.Seal([]byte(in.Body))
		if err != nil {
			return recorded{}, fmt.Errorf("seal body: %w", err)
		}
	}

	leadID := lead.ID
	out := recorded{result: Result{Accepted: true, LeadID: &leadID}, lead: lead, leadCreated: created}

	inserted, err := tx.InsertTouchEvent(ctx, event)
	if err != nil {
		return recorded{}, err
	}
	if !inserted {
		out.result.Deduped = true
		return out, nil
	}

	if in.Direction == domain.DirectionOutbound {
		touched := domain.ApplyTouch(lead, now)
		if err := tx.SaveTouch(ctx, touched); err != nil {
			return recorded{}, err
		}
		if _, err := tx.InsertTask(ctx, domain.NewTask{
			LeadID:    lead.ID,
			OwnerID:   lead.OwnerAgentID,
			DueAt:     now.Add(domain.FollowUpDelay),
			Type:      domain.TaskFollowUp,
			CreatedAt: now,
		}); err != nil {
			return recorded{}, err
		}
		out.lead = touched
		return out, nil
	}

	if err := ensureContactTask(ctx, tx, lead, now); err != nil {
		return recorded{}, err
	}
	return out, nil
}

func (r *Recorder) createLead(ctx context.Context, tx ports.Tx, spec channelSpec, in Input, res domain.Resource, sender string, now time.Time) (domain.Lead, error) {
	ownerID, err := spec.owner(ctx, tx, res)
	if err != nil {
		return domain.Lead{}, err
	}

	origin := domain.OriginAgentDirect
	rules, err := tx.TeamRules(ctx, res.TeamID)
	switch {
	case err != nil:
		r.log.Warn("team rules unreadable, treating lead as agent direct", "teamId", res.TeamID, "error", err)
	case isBrokerIntake(rules, res):
		origin = domain.OriginBrokerChannel
	}

	email, phoneNumber := spec.contact(sender)
	lead, err := tx.CreateLead(ctx, domain.NewLead{
		TeamID:       res.TeamID,
		OwnerAgentID: ownerID,
		Source:       string(in.Channel),
		PrimaryEmail: email,
		PrimaryPhone: phoneNumber,
		IntakeOrigin: origin,
		CreatedAt:    now,
	})
	if err != nil {
		return domain.Lead{}, err
	}

	if err := ensureContactTask(ctx, tx, lead, now); err != nil {
		return domain.Lead{}, err
	}
	return lead, nil
}

// ensureContactTask leaves exactly one open contact_now or follow_up task on the lead.
func ensureContactTask(ctx context.Context, tx ports.Tx, lead domain.Lead, now time.Time) error {
	exists, err := tx.HasOpenTask(ctx, lead.ID, domain.TaskContactNow, domain.TaskFollowUp)
	if err != nil || exists {
		return err
	}
	_, err = tx.InsertTask(ctx, domain.NewTask{
		LeadID:    lead.ID,
		OwnerID:   lead.OwnerAgentID,
		DueAt:     now,
		Type:      domain.TaskContactNow,
		CreatedAt: now,
	})
	return err
}

func (r *Recorder) publish(ctx context.Context, in Input, out recorded) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(ctx, events.TouchRecorded{
		BaseEvent:   events.NewBaseEvent(r.clock()),
		LeadID:      out.lead.ID,
		TeamID:      out.lead.TeamID,
		Channel:     string(in.Channel),
		Direction:   string(in.Direction),
		LeadCreated: out.leadCreated,
	})
}

// dedupKey identifies a provider event by the resource reference it carried.
// Two spellings of the same resource produce two keys, which only costs a
// database round trip.
func dedupKey(in Input) string {
	var ref string
	switch {
	case in.MailboxConnectionID != nil:
		ref = in.MailboxConnectionID.String()
	case in.PhoneNumberID != nil:
		ref = in.PhoneNumberID.String()
	case in.Channel == domain.ChannelEmail:
		ref = domain.NormalizeEmail(in.MailboxAddress)
	default:
		ref = strings.TrimSpace(in.ToNumber)
	}
	return string(in.Channel) + ":" + ref + ":" + in.ProviderEventID
}

func (r *Recorder) seen(ctx context.Context, key string) (uuid.UUID, bool) {
	if r.filter == nil {
		return uuid.Nil, false
	}
	leadID, ok, err := r.filter.Seen(ctx, key)
	if err != nil {
		r.log.Warn("dedup filter unavailable", "error", err)
		return uuid.Nil, false
	}
	return leadID, ok
}

func (r *Recorder) mark(ctx context.Context, key string, leadID uuid.UUID) {
	if r.filter == nil {
		return
	}
	if err := r.filter.Mark(ctx, key, leadID); err != nil {
		r.log.Warn("dedup filter mark failed", "error", err)
	}
}
