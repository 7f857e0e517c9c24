// Package events defines the host notification interface: the narrow surface
// through which the application reacts to final payment and refund outcomes.
// The webhook pipeline calls exactly one listener method per processed
// notification; listener errors are logged by the caller and never affect the
// HTTP acknowledgement returned to the gateway.
package events

import (
	"context"

	"github.com/sirupsen/logrus"

	"phonepe-service/internal/models"
)

// Listener receives final transaction records for the four terminal outcomes.
// Hosts embed NopListener and override what they care about.
type Listener interface {
	OnPaymentSuccess(ctx context.Context, rec *models.TransactionRecord) error
	OnPaymentFailed(ctx context.Context, rec *models.TransactionRecord) error
	OnRefundSuccess(ctx context.Context, rec *models.TransactionRecord) error
	OnRefundFailed(ctx context.Context, rec *models.TransactionRecord) error
}

// NopListener is the default no-op extension point.
type NopListener struct{}

func (NopListener) OnPaymentSuccess(context.Context, *models.TransactionRecord) error { return nil }
func (NopListener) OnPaymentFailed(context.Context, *models.TransactionRecord) error  { return nil }
func (NopListener) OnRefundSuccess(context.Context, *models.TransactionRecord) error  { return nil }
func (NopListener) OnRefundFailed(context.Context, *models.TransactionRecord) error   { return nil }

// LogListener records every outcome through the service logger. Used as the
// default listener when no NATS publisher is configured.
type LogListener struct {
	log *logrus.Entry
}

// NewLogListener creates a listener that logs outcomes as structured entries.
func NewLogListener(logger *logrus.Logger) *LogListener {
	return &LogListener{log: logger.WithField("component", "events")}
}

func (l *LogListener) OnPaymentSuccess(_ context.Context, rec *models.TransactionRecord) error {
	l.log.WithFields(logrus.Fields{
		"merchantOrderId": rec.MerchantOrderID,
		"transactionId":   rec.TransactionID,
		"amount":          rec.Amount,
	}).Info("payment succeeded")
	return nil
}

func (l *LogListener) OnPaymentFailed(_ context.Context, rec *models.TransactionRecord) error {
	l.log.WithFields(logrus.Fields{
		"merchantOrderId": rec.MerchantOrderID,
		"error":           rec.ErrorMessage,
	}).Warn("payment failed")
	return nil
}

func (l *LogListener) OnRefundSuccess(_ context.Context, rec *models.TransactionRecord) error {
	l.log.WithFields(logrus.Fields{
		"merchantRefundId": rec.MerchantRefundID,
		"refundId":         rec.RefundID,
		"amount":           rec.Amount,
	}).Info("refund succeeded")
	return nil
}

func (l *LogListener) OnRefundFailed(_ context.Context, rec *models.TransactionRecord) error {
	l.log.WithFields(logrus.Fields{
		"merchantRefundId": rec.MerchantRefundID,
		"error":            rec.ErrorMessage,
	}).Warn("refund failed")
	return nil
}
