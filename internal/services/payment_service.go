package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"phonepe-service/internal/config"
	"phonepe-service/internal/models"
	"phonepe-service/internal/phonepe"
	"phonepe-service/internal/repository"
)

// PaymentService runs the outbound gateway operations with an audit record
// per logical attempt. Failures come back as tagged results; no transport or
// parsing error escapes this boundary as a panic.
type PaymentService struct {
	cfg    *config.Config
	client *phonepe.Client
	repo   *repository.TransactionRepository
	log    *logrus.Entry
}

// NewPaymentService creates a new payment service
func NewPaymentService(cfg *config.Config, client *phonepe.Client, repo *repository.TransactionRepository, logger *logrus.Logger) *PaymentService {
	return &PaymentService{
		cfg:    cfg,
		client: client,
		repo:   repo,
		log:    logger.WithField("component", "services.payment"),
	}
}

// InitiatePaymentResult is the outcome of a checkout initiation.
type InitiatePaymentResult struct {
	Success         bool   `json:"success"`
	MerchantOrderID string `json:"merchantOrderId,omitempty"`
	OrderID         string `json:"orderId,omitempty"`
	RedirectURL     string `json:"redirectUrl,omitempty"`
	Error           string `json:"error,omitempty"`
}

// StatusResult is the outcome of an order status query.
type StatusResult struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// RefundResult is the outcome of a refund initiation. Success means the
// gateway accepted the refund (state PENDING); settlement arrives later via
// webhook.
type RefundResult struct {
	Success          bool   `json:"success"`
	MerchantRefundID string `json:"merchantRefundId,omitempty"`
	Error            string `json:"error,omitempty"`
}

// InitiatePayment starts a checkout: a PENDING audit record is written before
// the network call so a crash mid-call still leaves a trace, then the gateway
// is asked for a redirect URL to hand to the end user.
func (s *PaymentService) InitiatePayment(ctx context.Context, amount int64, orderRef string, extra map[string]interface{}) *InitiatePaymentResult {
	if amount <= 0 {
		return &InitiatePaymentResult{Success: false, Error: "amount must be a positive number of minor units"}
	}

	merchantOrderID := ""
	if extra != nil {
		merchantOrderID, _ = extra["merchantOrderId"].(string)
	}
	if merchantOrderID == "" {
		merchantOrderID = "MO_" + uuid.NewString()
	}

	rec := &models.TransactionRecord{
		MerchantOrderID: merchantOrderID,
		Amount:          amount,
		Status:          models.StatusPending,
		EventType:       models.EventPaymentInitiated,
		RawRequest:      models.JSONB{"orderRef": orderRef, "extra": extra},
		Signature:       outboundSignature(),
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		// Calling the gateway without the trace would break the audit
		// guarantee, so the attempt stops here.
		s.log.WithError(err).Error("failed to write initiation audit record")
		return &InitiatePaymentResult{Success: false, MerchantOrderID: merchantOrderID, Error: err.Error()}
	}

	payload := s.buildPayPayload(amount, merchantOrderID, orderRef, extra)

	result, err := s.client.Pay(ctx, payload)
	if err != nil {
		rec.Status = models.StatusFailed
		rec.EventType = models.EventPaymentInitiatedFailed
		rec.ErrorMessage = err.Error()
		if result != nil {
			rec.RawResponse = models.JSONB(result)
		}
		if uerr := s.repo.Update(ctx, rec); uerr != nil {
			s.log.WithError(uerr).Error("failed to update initiation audit record")
		}
		s.log.WithError(err).WithField("merchantOrderId", merchantOrderID).Warn("payment initiation failed")
		return &InitiatePaymentResult{Success: false, MerchantOrderID: merchantOrderID, Error: err.Error()}
	}

	orderID, _ := result["orderId"].(string)
	redirectURL, _ := result["redirectUrl"].(string)

	rec.GatewayOrderID = orderID
	rec.EventType = models.EventPaymentInitiatedSuccess
	rec.RawResponse = models.JSONB(result)
	if err := s.repo.Update(ctx, rec); err != nil {
		s.log.WithError(err).Error("failed to update initiation audit record")
	}

	s.log.WithFields(logrus.Fields{
		"merchantOrderId": merchantOrderID,
		"orderId":         orderID,
		"amount":          amount,
	}).Info("payment initiated")

	return &InitiatePaymentResult{
		Success:         true,
		MerchantOrderID: merchantOrderID,
		OrderID:         orderID,
		RedirectURL:     redirectURL,
	}
}

// buildPayPayload merges the static PG_CHECKOUT flow with caller-supplied
// fields. The merchant order id rides on the redirect URL so the host can
// correlate the return leg.
func (s *PaymentService) buildPayPayload(amount int64, merchantOrderID, orderRef string, extra map[string]interface{}) map[string]interface{} {
	payload := make(map[string]interface{}, len(extra)+4)
	for k, v := range extra {
		payload[k] = v
	}
	payload["merchantOrderId"] = merchantOrderID
	payload["amount"] = amount
	if _, ok := payload["metaInfo"]; !ok {
		payload["metaInfo"] = map[string]interface{}{}
	}
	payload["paymentFlow"] = map[string]interface{}{
		"type":    "PG_CHECKOUT",
		"message": fmt.Sprintf("Payment for Order #%s", orderRef),
		"merchantUrls": map[string]interface{}{
			"redirectUrl": fmt.Sprintf("%s?merchantOrderId=%s", s.cfg.RedirectURL, merchantOrderID),
		},
	}
	return payload
}

// CheckStatus queries the gateway for an order's current state. Read-only
// apart from the STATUS_CHECK audit record.
func (s *PaymentService) CheckStatus(ctx context.Context, merchantOrderID string) *StatusResult {
	result, err := s.client.OrderStatus(ctx, merchantOrderID)

	rec := &models.TransactionRecord{
		MerchantOrderID: merchantOrderID,
		Status:          models.StatusPending,
		EventType:       models.EventStatusCheck,
		Signature:       outboundSignature(),
	}
	if result != nil {
		rec.RawResponse = models.JSONB(result)
	}
	if err != nil {
		rec.ErrorMessage = err.Error()
	}
	if cerr := s.repo.Create(ctx, rec); cerr != nil {
		s.log.WithError(cerr).Error("failed to write status-check audit record")
	}

	if err != nil {
		return &StatusResult{Success: false, Error: err.Error()}
	}
	return &StatusResult{Success: true, Data: result}
}

// Refund asks the gateway to refund a completed order. The gateway reporting
// state PENDING means the refund was accepted and will settle asynchronously;
// anything else is a failure carrying the gateway's error code.
func (s *PaymentService) Refund(ctx context.Context, originalMerchantOrderID string, amount int64, merchantRefundID string) *RefundResult {
	if amount <= 0 {
		return &RefundResult{Success: false, Error: "amount must be a positive number of minor units"}
	}
	if merchantRefundID == "" {
		merchantRefundID = "REF_" + uuid.NewString()
	}

	payload := map[string]interface{}{
		"merchantRefundId":        merchantRefundID,
		"originalMerchantOrderId": originalMerchantOrderID,
		"amount":                  amount,
	}

	result, err := s.client.Refund(ctx, payload)

	rec := &models.TransactionRecord{
		MerchantOrderID:  originalMerchantOrderID,
		MerchantRefundID: merchantRefundID,
		Amount:           amount,
		Status:           models.StatusPending,
		EventType:        models.EventRefundInitiated,
		RawRequest:       models.JSONB(payload),
		Signature:        outboundSignature(),
	}
	if result != nil {
		rec.RawResponse = models.JSONB(result)
	}
	if err != nil {
		rec.ErrorMessage = err.Error()
	}
	if cerr := s.repo.Create(ctx, rec); cerr != nil {
		s.log.WithError(cerr).Error("failed to write refund audit record")
	}

	if err != nil {
		s.log.WithError(err).WithField("merchantRefundId", merchantRefundID).Warn("refund initiation failed")
		return &RefundResult{Success: false, MerchantRefundID: merchantRefundID, Error: err.Error()}
	}

	if state, _ := result["state"].(string); state != "PENDING" {
		errorCode, _ := result["errorCode"].(string)
		if errorCode == "" {
			errorCode = "Refund failed"
		}
		return &RefundResult{Success: false, MerchantRefundID: merchantRefundID, Error: errorCode}
	}

	s.log.WithFields(logrus.Fields{
		"merchantRefundId":        merchantRefundID,
		"originalMerchantOrderId": originalMerchantOrderID,
		"amount":                  amount,
	}).Info("refund accepted")

	return &RefundResult{Success: true, MerchantRefundID: merchantRefundID}
}

// outboundSignature generates a filler signature for records of outbound
// attempts, which carry no gateway signature but share the unique column with
// webhook records.
func outboundSignature() string {
	return "txn_" + uuid.NewString()
}
