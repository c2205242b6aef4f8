// Package leads provides the lead lifecycle bounded context module.
// This file defines the module that encapsulates leads setup and route registration.
package leads

import (
	"leadflow_backend/internal/events"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/internal/leads/handler"
	"leadflow_backend/internal/leads/management"
	"leadflow_backend/internal/leads/ports"
	"leadflow_backend/internal/leads/rules"
	"leadflow_backend/platform/validator"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler    *handler.Handler
	management *management.Service
	rules      *rules.Service
}

// NewModule creates and initializes the leads module with all its dependencies.
func NewModule(store ports.Store, eventBus events.Bus, val *validator.Validator) *Module {
	mgmtSvc := management.New(store, eventBus)
	rulesSvc := rules.New(store, val)

	return &Module{
		handler:    handler.New(mgmtSvc, rulesSvc, val),
		management: mgmtSvc,
		rules:      rulesSvc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// RegisterRoutes mounts team rules, broker task and reassignment routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected, ctx.TeamLead)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
