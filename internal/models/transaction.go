package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TransactionStatus represents the lifecycle state of an audit record
type TransactionStatus string

const (
	StatusPending          TransactionStatus = "PENDING"
	StatusReceived         TransactionStatus = "RECEIVED"
	StatusValid            TransactionStatus = "VALID"
	StatusInvalidSignature TransactionStatus = "INVALID_SIGNATURE"
	StatusCompleted        TransactionStatus = "COMPLETED"
	StatusFailed           TransactionStatus = "FAILED"
	StatusRefunded         TransactionStatus = "REFUNDED"
	StatusRefundFailed     TransactionStatus = "REFUND_FAILED"
)

// EventType classifies what produced a transaction record: an outbound
// operation of ours or an inbound gateway notification.
type EventType string

const (
	// Outbound operations
	EventPaymentInitiated        EventType = "PAYMENT_INITIATED"
	EventPaymentInitiatedSuccess EventType = "PAYMENT_INITIATED_SUCCESS"
	EventPaymentInitiatedFailed  EventType = "PAYMENT_INITIATED_FAILED"
	EventStatusCheck             EventType = "STATUS_CHECK"
	EventRefundInitiated         EventType = "REFUND_INITIATED"

	// Inbound webhook notifications
	EventPaymentSuccess EventType = "PAYMENT_SUCCESS"
	EventPaymentFailed  EventType = "PAYMENT_FAILED"
	EventRefundSuccess  EventType = "REFUND_SUCCESS"
	EventRefundFailed   EventType = "REFUND_FAILED"
	EventUnknown        EventType = "UNKNOWN"
)

// ParseEventType maps a gateway-supplied event string onto the closed set of
// known events. Anything unrecognized (including empty) is EventUnknown so new
// gateway event types never break ingestion.
func ParseEventType(s string) EventType {
	switch EventType(s) {
	case EventPaymentSuccess, EventPaymentFailed, EventRefundSuccess, EventRefundFailed:
		return EventType(s)
	default:
		return EventUnknown
	}
}

// JSONB custom type for PostgreSQL (stored as TEXT on sqlite in tests)
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	}
	return nil
}

func (j JSONB) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}(j))
}

func (j *JSONB) UnmarshalJSON(data []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*j = JSONB(m)
	return nil
}

// TransactionRecord is one entry in the audit trail: one row per outbound
// attempt (initiation, status check, refund) or per distinct inbound webhook
// delivery. Rows are mutated in place as the attempt progresses and are never
// deleted.
//
// Signature is the idempotency key for inbound notifications. The unique index
// is what closes the race between two concurrent deliveries of the same
// notification - dedup is enforced by the database, not by read-then-write.
type TransactionRecord struct {
	ID               uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	MerchantOrderID  string            `gorm:"type:varchar(255);index:idx_phonepe_txn_merchant_order" json:"merchantOrderId,omitempty"`
	GatewayOrderID   string            `gorm:"type:varchar(255)" json:"gatewayOrderId,omitempty"`
	TransactionID    string            `gorm:"type:varchar(255)" json:"transactionId,omitempty"`
	MerchantRefundID string            `gorm:"type:varchar(255);index:idx_phonepe_txn_merchant_refund" json:"merchantRefundId,omitempty"`
	RefundID         string            `gorm:"type:varchar(255)" json:"refundId,omitempty"`
	Amount           int64             `gorm:"not null;default:0" json:"amount"` // minor units (paise)
	Currency         string            `gorm:"type:varchar(3);default:'INR'" json:"currency"`
	Status           TransactionStatus `gorm:"type:varchar(50);not null;index:idx_phonepe_txn_status" json:"status"`
	EventType        EventType         `gorm:"type:varchar(50);not null" json:"eventType"`
	RawRequest       JSONB             `gorm:"type:jsonb" json:"rawRequest,omitempty"`
	RawResponse      JSONB             `gorm:"type:jsonb" json:"rawResponse,omitempty"`
	WebhookPayload   JSONB             `gorm:"type:jsonb" json:"webhookPayload,omitempty"`
	Signature        string            `gorm:"type:varchar(255);not null;uniqueIndex:idx_phonepe_txn_signature" json:"signature"`
	SourceIP         string            `gorm:"type:varchar(45)" json:"sourceIp,omitempty"`
	InstrumentType   string            `gorm:"type:varchar(50)" json:"instrumentType,omitempty"`
	ErrorMessage     string            `gorm:"type:text" json:"errorMessage,omitempty"`
	ProcessedAt      *time.Time        `json:"processedAt,omitempty"`
	CreatedAt        time.Time         `gorm:"default:CURRENT_TIMESTAMP;index:idx_phonepe_txn_created" json:"createdAt"`
	UpdatedAt        time.Time         `gorm:"default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// TableName specifies the table name for TransactionRecord
func (TransactionRecord) TableName() string {
	return "phonepe_transactions"
}

// BeforeCreate assigns the primary key so inserts work the same on postgres
// and on the sqlite driver used in tests.
func (r *TransactionRecord) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
