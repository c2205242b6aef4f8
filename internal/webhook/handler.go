package webhook

import (
	"net/http"

	"leadflow_backend/internal/leads/touch"
	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	errInvalidRequest  = "invalid request body"
	errValidation      = "validation error"
	errUnknownProvider = "unknown email provider"
)

var emailProviders = map[string]bool{
	"gmail":   true,
	"outlook": true,
}

// Handler handles provider webhook deliveries.
type Handler struct {
	recorder *touch.Recorder
	val      *validator.Validator
}

// NewHandler creates a new webhook handler.
func NewHandler(recorder *touch.Recorder, val *validator.Validator) *Handler {
	return &Handler{recorder: recorder, val: val}
}

// HandleEmail ingests one email event.
// POST /api/v1/webhooks/email/:provider
func (h *Handler) HandleEmail(c *gin.Context) {
	if !emailProviders[c.Param("provider")] {
		httpkit.Error(c, http.StatusNotFound, errUnknownProvider, nil)
		return
	}

	var req EmailWebhookRequest
	if !h.bind(c, &req) {
		return
	}
	h.record(c, req.toInput())
}

// HandleSMS ingests one SMS event.
// POST /api/v1/webhooks/sms
func (h *Handler) HandleSMS(c *gin.Context) {
	var req SMSWebhookRequest
	if !h.bind(c, &req) {
		return
	}
	h.record(c, req.toInput())
}

// HandleCall ingests one call status event.
// POST /api/v1/webhooks/call
func (h *Handler) HandleCall(c *gin.Context) {
	var req CallWebhookRequest
	if !h.bind(c, &req) {
		return
	}
	h.record(c, req.toInput())
}

func (h *Handler) record(c *gin.Context, in touch.Input) {
	result, err := h.recorder.Record(c.Request.Context(), in)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errValidation, validator.Details(err))
		return false
	}
	return true
}
