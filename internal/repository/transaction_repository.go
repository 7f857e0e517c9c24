package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"phonepe-service/internal/models"
)

// TransactionRepository handles audit-trail data operations
type TransactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create inserts a new transaction record
func (r *TransactionRepository) Create(ctx context.Context, rec *models.TransactionRecord) error {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return &models.StorageError{Op: "create transaction record", Err: err}
	}
	return nil
}

// CreateWebhookRecord inserts an inbound notification record, relying on the
// unique signature index for deduplication. A duplicate-key violation maps to
// models.ErrDuplicateSignature so concurrent deliveries of the same
// notification resolve atomically at the database, not by read-then-write.
func (r *TransactionRepository) CreateWebhookRecord(ctx context.Context, rec *models.TransactionRecord) error {
	err := r.db.WithContext(ctx).Create(rec).Error
	if err == nil {
		return nil
	}
	if isDuplicateKey(err) {
		return models.ErrDuplicateSignature
	}
	return &models.StorageError{Op: "create webhook record", Err: err}
}

// SignatureExists reports whether a notification with this signature has
// already been recorded. Fast path only; CreateWebhookRecord remains the
// authoritative gate.
func (r *TransactionRepository) SignatureExists(ctx context.Context, signature string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.TransactionRecord{}).
		Where("signature = ?", signature).Count(&count).Error
	if err != nil {
		return false, &models.StorageError{Op: "check signature", Err: err}
	}
	return count > 0, nil
}

// Update persists in-place mutations of a record
func (r *TransactionRepository) Update(ctx context.Context, rec *models.TransactionRecord) error {
	rec.UpdatedAt = time.Now()
	if err := r.db.WithContext(ctx).Save(rec).Error; err != nil {
		return &models.StorageError{Op: "update transaction record", Err: err}
	}
	return nil
}

// FindBySignature gets a record by its webhook signature
func (r *TransactionRepository) FindBySignature(ctx context.Context, signature string) (*models.TransactionRecord, error) {
	var rec models.TransactionRecord
	err := r.db.WithContext(ctx).Where("signature = ?", signature).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindByMerchantOrderID gets the most recent record for a merchant order
func (r *TransactionRepository) FindByMerchantOrderID(ctx context.Context, merchantOrderID string) (*models.TransactionRecord, error) {
	var rec models.TransactionRecord
	err := r.db.WithContext(ctx).Where("merchant_order_id = ?", merchantOrderID).
		Order("created_at DESC").First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListByMerchantOrderID lists every record linked to a merchant order,
// oldest first - initiation, status checks, webhook outcomes, refunds.
func (r *TransactionRepository) ListByMerchantOrderID(ctx context.Context, merchantOrderID string) ([]models.TransactionRecord, error) {
	var recs []models.TransactionRecord
	err := r.db.WithContext(ctx).Where("merchant_order_id = ?", merchantOrderID).
		Order("created_at ASC").Find(&recs).Error
	if err != nil {
		return nil, &models.StorageError{Op: "list transaction records", Err: err}
	}
	return recs, nil
}

// FindByMerchantRefundID gets the most recent record for a merchant refund
func (r *TransactionRepository) FindByMerchantRefundID(ctx context.Context, merchantRefundID string) (*models.TransactionRecord, error) {
	var rec models.TransactionRecord
	err := r.db.WithContext(ctx).Where("merchant_refund_id = ?", merchantRefundID).
		Order("created_at DESC").First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// isDuplicateKey detects a unique-constraint violation across the drivers we
// run against (postgres in production, sqlite in tests).
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
