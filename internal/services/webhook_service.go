package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"phonepe-service/internal/config"
	"phonepe-service/internal/events"
	"phonepe-service/internal/models"
	"phonepe-service/internal/phonepe"
	"phonepe-service/internal/repository"
)

// Outcome is the definitive HTTP answer for a webhook delivery.
type Outcome struct {
	Status  int
	Message string
}

var (
	outcomeBadRequest       = Outcome{Status: http.StatusBadRequest, Message: "Bad Request"}
	outcomeUnauthorized     = Outcome{Status: http.StatusUnauthorized, Message: "Invalid X-VERIFY"}
	outcomeOK               = Outcome{Status: http.StatusOK, Message: "OK"}
	outcomeAlreadyProcessed = Outcome{Status: http.StatusOK, Message: "OK (already processed)"}
	outcomeStorageFailure   = Outcome{Status: http.StatusInternalServerError, Message: "Internal Server Error"}
)

// WebhookService authenticates inbound gateway notifications, deduplicates
// them, and drives the per-transaction state machine:
//
//	RECEIVED -> VALID | INVALID_SIGNATURE
//	VALID    -> COMPLETED | FAILED | REFUNDED | REFUND_FAILED | (unknown: stays VALID)
//
// Duplicate deliveries are acknowledged without side effects; the unique
// signature index is the at-most-once gate.
type WebhookService struct {
	cfg      *config.Config
	repo     *repository.TransactionRepository
	listener events.Listener
	log      *logrus.Entry
}

// NewWebhookService creates a new webhook service. A nil listener defaults to
// the no-op extension point.
func NewWebhookService(cfg *config.Config, repo *repository.TransactionRepository, listener events.Listener, logger *logrus.Logger) *WebhookService {
	if listener == nil {
		listener = events.NopListener{}
	}
	return &WebhookService{
		cfg:      cfg,
		repo:     repo,
		listener: listener,
		log:      logger.WithField("component", "services.webhook"),
	}
}

// webhookEnvelope is the part of the notification body we interpret; the full
// payload is preserved verbatim on the audit record.
type webhookEnvelope struct {
	EventType string                 `json:"eventType"`
	Signature string                 `json:"signature"`
	Data      map[string]interface{} `json:"data"`
}

// Handle processes one delivery and returns the HTTP outcome. Once the
// signature verifies, the delivery is acknowledged with 200 regardless of
// downstream listener or update failures - the gateway must not redeliver for
// application-side problems.
func (s *WebhookService) Handle(ctx context.Context, rawBody []byte, xVerify, sourceIP string) Outcome {
	if len(rawBody) == 0 || xVerify == "" || s.cfg.WebhookSaltKey == "" {
		s.log.WithFields(logrus.Fields{
			"ip":         sourceIP,
			"hasPayload": len(rawBody) > 0,
			"hasXVerify": xVerify != "",
			"hasSalt":    s.cfg.WebhookSaltKey != "",
		}).Warn("webhook rejected: missing data")
		return outcomeBadRequest
	}

	var envelope webhookEnvelope
	var fullPayload models.JSONB
	if err := json.Unmarshal(rawBody, &envelope); err == nil {
		_ = json.Unmarshal(rawBody, &fullPayload)
	}

	eventType := models.ParseEventType(envelope.EventType)
	signature := envelope.Signature
	if signature == "" {
		// Deterministic fallback so a retried delivery of the same body
		// still deduplicates.
		sum := sha256.Sum256(rawBody)
		signature = hex.EncodeToString(sum[:])
	}

	if exists, err := s.repo.SignatureExists(ctx, signature); err == nil && exists {
		return outcomeAlreadyProcessed
	}

	// Record the delivery before verification so even rejected attempts are
	// auditable. The insert is also the atomic dedup gate: a concurrent
	// duplicate loses on the unique index, not on a stale read.
	rec := &models.TransactionRecord{
		Signature:      signature,
		WebhookPayload: fullPayload,
		SourceIP:       sourceIP,
		EventType:      eventType,
		Status:         models.StatusReceived,
	}
	if err := s.repo.CreateWebhookRecord(ctx, rec); err != nil {
		if errors.Is(err, models.ErrDuplicateSignature) {
			return outcomeAlreadyProcessed
		}
		// A delivery we cannot record must not be acknowledged; the gateway
		// will redeliver and the idempotency gate absorbs the retry.
		s.log.WithError(err).Error("failed to write webhook audit record")
		return outcomeStorageFailure
	}

	if err := phonepe.VerifyWebhookSignature(rawBody, xVerify, s.cfg.WebhookSaltKey, s.cfg.WebhookSaltIndex); err != nil {
		rec.Status = models.StatusInvalidSignature
		rec.ErrorMessage = err.Error()
		if uerr := s.repo.Update(ctx, rec); uerr != nil {
			s.log.WithError(uerr).Error("failed to update webhook audit record")
		}
		s.log.WithFields(logrus.Fields{
			"ip":    sourceIP,
			"event": envelope.EventType,
		}).Warn("webhook rejected: invalid X-VERIFY")
		return outcomeUnauthorized
	}

	rec.Status = models.StatusValid
	if err := s.repo.Update(ctx, rec); err != nil {
		s.log.WithError(err).Error("failed to update webhook audit record")
	}

	s.dispatch(ctx, eventType, envelope, rec)
	return outcomeOK
}

// dispatch applies the event-specific transition and raises the matching host
// notification. Unknown events stay VALID and raise nothing, so new gateway
// event types pass through harmlessly.
func (s *WebhookService) dispatch(ctx context.Context, eventType models.EventType, envelope webhookEnvelope, rec *models.TransactionRecord) {
	data := envelope.Data

	switch eventType {
	case models.EventPaymentSuccess:
		rec.MerchantOrderID = stringField(data, "merchantOrderId")
		rec.GatewayOrderID = stringField(data, "orderId")
		rec.TransactionID = stringField(data, "transactionId")
		rec.Amount = intField(data, "amount")
		rec.InstrumentType = instrumentType(data)
		rec.Status = models.StatusCompleted
		s.stamp(rec)
		s.update(ctx, rec)
		s.notify(ctx, rec, s.listener.OnPaymentSuccess)

	case models.EventPaymentFailed:
		rec.MerchantOrderID = stringField(data, "merchantOrderId")
		rec.Status = models.StatusFailed
		rec.ErrorMessage = stringFieldDefault(data, "errorMessage", "Payment failed")
		s.stamp(rec)
		s.update(ctx, rec)
		s.notify(ctx, rec, s.listener.OnPaymentFailed)

	case models.EventRefundSuccess:
		rec.MerchantRefundID = stringField(data, "merchantRefundId")
		rec.RefundID = stringField(data, "refundId")
		rec.Amount = intField(data, "amount")
		rec.Status = models.StatusRefunded
		s.stamp(rec)
		s.update(ctx, rec)
		s.notify(ctx, rec, s.listener.OnRefundSuccess)

	case models.EventRefundFailed:
		rec.MerchantRefundID = stringField(data, "merchantRefundId")
		rec.Status = models.StatusRefundFailed
		rec.ErrorMessage = stringFieldDefault(data, "errorMessage", "Refund failed")
		s.stamp(rec)
		s.update(ctx, rec)
		s.notify(ctx, rec, s.listener.OnRefundFailed)

	default:
		s.log.WithFields(logrus.Fields{
			"event": envelope.EventType,
		}).Info("unhandled webhook event type")
	}
}

func (s *WebhookService) stamp(rec *models.TransactionRecord) {
	now := time.Now()
	rec.ProcessedAt = &now
}

func (s *WebhookService) update(ctx context.Context, rec *models.TransactionRecord) {
	if err := s.repo.Update(ctx, rec); err != nil {
		s.log.WithError(err).WithField("signature", rec.Signature).Error("failed to update webhook audit record")
	}
}

func (s *WebhookService) notify(ctx context.Context, rec *models.TransactionRecord, fn func(context.Context, *models.TransactionRecord) error) {
	if err := fn(ctx, rec); err != nil {
		s.log.WithError(err).WithField("signature", rec.Signature).Error("host notification failed")
	}
}

func stringField(data map[string]interface{}, key string) string {
	v, _ := data[key].(string)
	return v
}

func stringFieldDefault(data map[string]interface{}, key, fallback string) string {
	if v := stringField(data, key); v != "" {
		return v
	}
	return fallback
}

// intField reads a minor-unit amount. JSON numbers decode as float64; paise
// amounts are far below the 2^53 precision limit so the conversion is exact.
func intField(data map[string]interface{}, key string) int64 {
	switch v := data[key].(type) {
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	default:
		return 0
	}
}

func instrumentType(data map[string]interface{}) string {
	instrument, _ := data["paymentInstrument"].(map[string]interface{})
	return stringField(instrument, "type")
}
