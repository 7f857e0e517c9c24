package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"phonepe-service/internal/models"
)

func newTestRepo(t *testing.T) *TransactionRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.TransactionRecord{}))
	return NewTransactionRepository(db)
}

func TestCreateAndFindBySignature(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rec := &models.TransactionRecord{
		MerchantOrderID: "OMO123",
		Amount:          10000,
		Status:          models.StatusPending,
		EventType:       models.EventPaymentInitiated,
		Signature:       "sig-1",
	}
	require.NoError(t, repo.Create(ctx, rec))
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", rec.ID.String())

	found, err := repo.FindBySignature(ctx, "sig-1")
	require.NoError(t, err)
	assert.Equal(t, "OMO123", found.MerchantOrderID)
	assert.Equal(t, int64(10000), found.Amount)
}

func TestCreateWebhookRecordDuplicateSignature(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first := &models.TransactionRecord{
		Status:    models.StatusReceived,
		EventType: models.EventPaymentSuccess,
		Signature: "sig-dup",
	}
	require.NoError(t, repo.CreateWebhookRecord(ctx, first))

	second := &models.TransactionRecord{
		Status:    models.StatusReceived,
		EventType: models.EventPaymentSuccess,
		Signature: "sig-dup",
	}
	err := repo.CreateWebhookRecord(ctx, second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrDuplicateSignature))
}

func TestSignatureExists(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	exists, err := repo.SignatureExists(ctx, "sig-1")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, repo.Create(ctx, &models.TransactionRecord{
		Status:    models.StatusReceived,
		EventType: models.EventPaymentSuccess,
		Signature: "sig-1",
	}))

	exists, err = repo.SignatureExists(ctx, "sig-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestUpdate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rec := &models.TransactionRecord{
		MerchantOrderID: "OMO123",
		Status:          models.StatusReceived,
		EventType:       models.EventPaymentSuccess,
		Signature:       "sig-1",
	}
	require.NoError(t, repo.Create(ctx, rec))

	rec.Status = models.StatusCompleted
	rec.TransactionID = "T12345"
	require.NoError(t, repo.Update(ctx, rec))

	found, err := repo.FindBySignature(ctx, "sig-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, found.Status)
	assert.Equal(t, "T12345", found.TransactionID)
}

func TestListByMerchantOrderID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i, ev := range []models.EventType{
		models.EventPaymentInitiated,
		models.EventStatusCheck,
		models.EventPaymentSuccess,
	} {
		require.NoError(t, repo.Create(ctx, &models.TransactionRecord{
			MerchantOrderID: "OMO123",
			Status:          models.StatusPending,
			EventType:       ev,
			Signature:       "sig-" + string(rune('a'+i)),
		}))
	}
	require.NoError(t, repo.Create(ctx, &models.TransactionRecord{
		MerchantOrderID: "OTHER",
		Status:          models.StatusPending,
		EventType:       models.EventPaymentInitiated,
		Signature:       "sig-other",
	}))

	recs, err := repo.ListByMerchantOrderID(ctx, "OMO123")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, models.EventPaymentInitiated, recs[0].EventType)
	assert.Equal(t, models.EventPaymentSuccess, recs[2].EventType)
}

func TestFindByMerchantRefundID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.TransactionRecord{
		MerchantOrderID:  "OMO123",
		MerchantRefundID: "REF_1",
		Status:           models.StatusPending,
		EventType:        models.EventRefundInitiated,
		Signature:        "sig-ref",
	}))

	found, err := repo.FindByMerchantRefundID(ctx, "REF_1")
	require.NoError(t, err)
	assert.Equal(t, "OMO123", found.MerchantOrderID)

	_, err = repo.FindByMerchantRefundID(ctx, "REF_NOPE")
	assert.Error(t, err)
}
