// Package ops provides operator endpoints guarded by the internal API token.
package ops

import (
	"net/http"

	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/internal/scheduler"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// TriggerResponse acknowledges an on-demand sweep.
type TriggerResponse struct {
	Queued bool `json:"queued"`
}

// Module is the operator bounded context module implementing http.Module.
type Module struct {
	trigger scheduler.StaleEvaluationTrigger
	cfg     config.InternalAPIConfig
	log     *logger.Logger
}

// NewModule creates the ops module. trigger may be nil when Redis is not configured.
func NewModule(trigger scheduler.StaleEvaluationTrigger, cfg config.InternalAPIConfig, log *logger.Logger) *Module {
	return &Module{trigger: trigger, cfg: cfg, log: log.WithComponent("ops")}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "ops"
}

// RegisterRoutes mounts the token-guarded internal routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	internal := ctx.V1.Group("/internal", httpkit.InternalToken(m.cfg))
	internal.POST("/stale-trigger", m.StaleTrigger)
}

// StaleTrigger enqueues one stale-evaluation sweep.
// POST /api/v1/internal/stale-trigger
func (m *Module) StaleTrigger(c *gin.Context) {
	if m.trigger == nil {
		httpkit.Error(c, http.StatusServiceUnavailable, "scheduler not configured", nil)
		return
	}
	if err := m.trigger.EnqueueStaleEvaluation(c.Request.Context()); err != nil {
		m.log.Error("failed to enqueue stale evaluation", "error", err)
		httpkit.HandleError(c, err)
		return
	}
	m.log.Info("stale evaluation queued", "clientIp", c.ClientIP())
	httpkit.OK(c, TriggerResponse{Queued: true})
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
