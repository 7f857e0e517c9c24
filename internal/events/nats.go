package events

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"phonepe-service/internal/models"
)

// Subjects for published outcomes.
const (
	SubjectPaymentSuccess = "phonepe.payment.success"
	SubjectPaymentFailed  = "phonepe.payment.failed"
	SubjectRefundSuccess  = "phonepe.refund.success"
	SubjectRefundFailed   = "phonepe.refund.failed"
)

// NATSPublisher publishes final transaction records to NATS so host
// applications can subscribe instead of linking against this service.
type NATSPublisher struct {
	conn *nats.Conn
	log  *logrus.Entry
}

// NewNATSPublisher connects to NATS and returns a publisher listener.
func NewNATSPublisher(url string, logger *logrus.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("phonepe-service"))
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{
		conn: conn,
		log:  logger.WithField("component", "events.nats"),
	}, nil
}

// Close drains and closes the NATS connection.
func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}

func (p *NATSPublisher) publish(subject string, rec *models.TransactionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(subject, data); err != nil {
		p.log.WithError(err).WithField("subject", subject).Error("failed to publish event")
		return err
	}
	return nil
}

func (p *NATSPublisher) OnPaymentSuccess(_ context.Context, rec *models.TransactionRecord) error {
	return p.publish(SubjectPaymentSuccess, rec)
}

func (p *NATSPublisher) OnPaymentFailed(_ context.Context, rec *models.TransactionRecord) error {
	return p.publish(SubjectPaymentFailed, rec)
}

func (p *NATSPublisher) OnRefundSuccess(_ context.Context, rec *models.TransactionRecord) error {
	return p.publish(SubjectRefundSuccess, rec)
}

func (p *NATSPublisher) OnRefundFailed(_ context.Context, rec *models.TransactionRecord) error {
	return p.publish(SubjectRefundFailed, rec)
}
