package handler

import (
	"net/http"

	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/leads/management"
	"leadflow_backend/internal/leads/rules"
	"leadflow_backend/internal/leads/transport"
	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler serves the team-facing lead lifecycle endpoints.
type Handler struct {
	mgmt  *management.Service
	rules *rules.Service
	val   *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

func New(mgmt *management.Service, rulesSvc *rules.Service, val *validator.Validator) *Handler {
	return &Handler{mgmt: mgmt, rules: rulesSvc, val: val}
}

// RegisterRoutes mounts read routes on protected and mutating routes on teamLead.
func (h *Handler) RegisterRoutes(protected, teamLead *gin.RouterGroup) {
	protected.GET("/team/rules", h.GetRules)
	protected.GET("/team/rescue-sequences", h.GetRescueSequences)

	teamLead.PATCH("/team/rules", h.UpdateRules)
	teamLead.PUT("/team/rescue-sequences", h.ReplaceRescueSequences)
	teamLead.POST("/team/broker-tasks/:taskId/assign", h.AssignBrokerTask)
	teamLead.POST("/leads/:id/reassign", h.Reassign)
}

func (h *Handler) GetRules(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	resp, err := h.rules.GetRules(c.Request.Context(), identity.TeamID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) UpdateRules(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req transport.UpdateTeamRulesRequest
	if !h.bind(c, &req) {
		return
	}

	resp, err := h.rules.UpdateRules(c.Request.Context(), identity.TeamID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) GetRescueSequences(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	resp, err := h.rules.GetRescueSequences(c.Request.Context(), identity.TeamID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) ReplaceRescueSequences(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req transport.ReplaceRescueSequencesRequest
	if !h.bind(c, &req) {
		return
	}

	resp, err := h.rules.ReplaceRescueSequences(c.Request.Context(), identity.TeamID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) AssignBrokerTask(c *gin.Context) {
	taskID, err := uuid.Parse(c.Param("taskId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req transport.AssignBrokerTaskRequest
	if !h.bind(c, &req) {
		return
	}

	resp, err := h.mgmt.AssignBrokerTask(c.Request.Context(), actor, taskID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) Reassign(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req transport.ReassignLeadRequest
	if !h.bind(c, &req) {
		return
	}

	resp, err := h.mgmt.Reassign(c.Request.Context(), actor, leadID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

// bind decodes and validates the JSON body, writing the 400 response itself.
func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Details(err))
		return false
	}
	return true
}

func actorFrom(c *gin.Context) (management.Actor, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return management.Actor{}, false
	}
	return management.Actor{
		UserID: identity.UserID(),
		TeamID: identity.TeamID(),
		Role:   domain.Role(identity.Role()),
	}, true
}
