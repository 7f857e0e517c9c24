package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"phonepe-service/internal/services"
)

// WebhookHandler handles inbound PhonePe notifications
type WebhookHandler struct {
	service *services.WebhookService
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(service *services.WebhookService) *WebhookHandler {
	return &WebhookHandler{service: service}
}

// HandlePhonePeWebhook handles POST /webhooks/phonepe. The body is passed
// through raw - the service verifies X-VERIFY over the exact bytes received.
func (h *WebhookHandler) HandlePhonePeWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "Bad Request")
		return
	}

	outcome := h.service.Handle(c.Request.Context(), body, c.GetHeader("X-VERIFY"), c.ClientIP())
	c.String(outcome.Status, outcome.Message)
}
