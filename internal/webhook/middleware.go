package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"

	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/metrics"

	"github.com/gin-gonic/gin"
)

const (
	// HeaderSignature carries the hex HMAC-SHA256 of the raw request body.
	HeaderSignature = "X-Webhook-Signature"

	// MaxBodyBytes bounds a single provider delivery.
	MaxBodyBytes = 1 << 20

	reasonSecretUnset      = "secret_unset"
	reasonMissingSignature = "missing_signature"
	reasonInvalidSignature = "invalid_signature"
	reasonBodyTooLarge     = "body_too_large"
	reasonUnreadableBody   = "unreadable_body"
)

// SignatureMiddleware verifies X-Webhook-Signature against the raw body
// before anything parses it. An empty secret rejects every delivery.
// The body is restored so handlers can bind it afterwards.
func SignatureMiddleware(secret string, log *logger.Logger) gin.HandlerFunc {
	key := []byte(secret)

	return func(c *gin.Context) {
		if len(key) == 0 {
			reject(c, log, http.StatusForbidden, reasonSecretUnset)
			return
		}

		provided, ok := parseSignature(c.GetHeader(HeaderSignature))
		if !ok {
			reject(c, log, http.StatusForbidden, reasonMissingSignature)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				reject(c, log, http.StatusRequestEntityTooLarge, reasonBodyTooLarge)
				return
			}
			reject(c, log, http.StatusBadRequest, reasonUnreadableBody)
			return
		}

		if !hmac.Equal(provided, Sign(key, body)) {
			reject(c, log, http.StatusForbidden, reasonInvalidSignature)
			return
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Next()
	}
}

// Sign returns the HMAC-SHA256 of body under key.
func Sign(key, body []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	return mac.Sum(nil)
}

// parseSignature accepts plain hex and the common "sha256=<hex>" form.
func parseSignature(header string) ([]byte, bool) {
	header = strings.TrimPrefix(strings.TrimSpace(header), "sha256=")
	if header == "" {
		return nil, false
	}
	sig, err := hex.DecodeString(header)
	if err != nil || len(sig) != sha256.Size {
		return nil, false
	}
	return sig, true
}

func reject(c *gin.Context, log *logger.Logger, status int, reason string) {
	metrics.WebhookRejections.WithLabelValues(reason).Inc()
	if log != nil {
		log.WebhookRejected(c.Request.URL.Path, reason, c.ClientIP())
	}
	msg := "invalid webhook signature"
	switch reason {
	case reasonBodyTooLarge:
		msg = "request body too large"
	case reasonUnreadableBody:
		msg = "invalid request body"
	}
	c.AbortWithStatusJSON(status, httpkit.ErrorResponse{Error: msg})
}
