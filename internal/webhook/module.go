// Package webhook provides the provider webhook bounded context module:
// signed email, SMS and call deliveries recorded as lead touch events.
package webhook

import (
	"leadflow_backend/internal/events"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/internal/leads/ports"
	"leadflow_backend/internal/leads/touch"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"

	"golang.org/x/time/rate"
)

// Module is the webhook bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	cfg     config.WebhookConfig
	log     *logger.Logger
}

// NewModule creates and initializes the webhook module with all its dependencies.
// filter may be nil, in which case every delivery goes to the database.
func NewModule(store ports.Store, sealer touch.BodySealer, filter touch.Filter, eventBus events.Bus, val *validator.Validator, cfg config.WebhookConfig, log *logger.Logger) *Module {
	opts := []touch.Option{
		touch.WithBus(eventBus),
		touch.WithPhoneRegion(cfg.GetPhoneDefaultRegion()),
	}
	if filter != nil {
		opts = append(opts, touch.WithFilter(filter))
	}
	recorder := touch.NewRecorder(store, sealer, log, opts...)

	return &Module{
		handler: NewHandler(recorder, val),
		cfg:     cfg,
		log:     log.WithComponent("webhook"),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts the public, signature-authenticated webhook routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	rps, burst := m.cfg.GetWebhookRateLimit()
	limiter := httpkit.NewIPRateLimiter(rate.Limit(rps), burst, m.log)

	group := ctx.V1.Group("/webhooks")
	group.Use(limiter.RateLimit())
	group.Use(SignatureMiddleware(m.cfg.GetWebhookSharedSecret(), m.log))

	group.POST("/email/:provider", m.handler.HandleEmail)
	group.POST("/sms", m.handler.HandleSMS)
	group.POST("/call", m.handler.HandleCall)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
