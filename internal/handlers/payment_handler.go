package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"phonepe-service/internal/services"
)

// PaymentHandler handles payment-related HTTP requests
type PaymentHandler struct {
	service *services.PaymentService
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(service *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// InitiatePaymentRequest is the body for POST /api/v1/payments/initiate
type InitiatePaymentRequest struct {
	Amount   int64                  `json:"amount" binding:"required,gt=0"`
	OrderRef string                 `json:"orderRef" binding:"required"`
	Extra    map[string]interface{} `json:"extra"`
}

// RefundRequest is the body for POST /api/v1/payments/:merchantOrderId/refund
type RefundRequest struct {
	Amount           int64  `json:"amount" binding:"required,gt=0"`
	MerchantRefundID string `json:"merchantRefundId"`
}

// InitiatePayment handles POST /api/v1/payments/initiate
func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
	var req InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"message": err.Error(),
		})
		return
	}

	result := h.service.InitiatePayment(c.Request.Context(), req.Amount, req.OrderRef, req.Extra)
	if !result.Success {
		c.JSON(http.StatusBadGateway, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CheckStatus handles GET /api/v1/payments/:merchantOrderId/status
func (h *PaymentHandler) CheckStatus(c *gin.Context) {
	merchantOrderID := c.Param("merchantOrderId")
	if merchantOrderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"message": "merchantOrderId is required",
		})
		return
	}

	result := h.service.CheckStatus(c.Request.Context(), merchantOrderID)
	if !result.Success {
		c.JSON(http.StatusBadGateway, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Refund handles POST /api/v1/payments/:merchantOrderId/refund
func (h *PaymentHandler) Refund(c *gin.Context) {
	merchantOrderID := c.Param("merchantOrderId")
	var req RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"message": err.Error(),
		})
		return
	}

	result := h.service.Refund(c.Request.Context(), merchantOrderID, req.Amount, req.MerchantRefundID)
	if !result.Success {
		c.JSON(http.StatusBadGateway, result)
		return
	}
	c.JSON(http.StatusOK, result)
}
