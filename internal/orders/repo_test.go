package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/quizlabhq/quizlab-backend/pkg/db/models"
	"github.com/quizlabhq/quizlab-backend/pkg/enums"
	pkgerrors "github.com/quizlabhq/quizlab-backend/pkg/errors"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	ordersTable := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  status TEXT NOT NULL DEFAULT 'created',
  amount NUMERIC NOT NULL DEFAULT 0,
  currency TEXT NOT NULL DEFAULT 'USD',
  quiz_response_id TEXT NOT NULL,
  provider_order_id TEXT,
  provider_session_id TEXT NOT NULL DEFAULT '',
  report_access_token_hash TEXT,
  email TEXT NOT NULL DEFAULT '',
  user_id TEXT NOT NULL DEFAULT '',
  report_file_key TEXT,
  paid_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(ordersTable).Error)
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, status enums.OrderStatus) *models.Order {
	t.Helper()

	order := &models.Order{
		ID:                uuid.New(),
		Status:            status,
		Currency:          "USD",
		QuizResponseID:    uuid.New(),
		ProviderSessionID: "sess_" + uuid.NewString(),
		Email:             "buyer@example.com",
		UserID:            "anon_1",
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestTransitionStatusAppliesConditionalUpdate(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, enums.OrderStatusPendingWebhook)

	paidAt := time.Now().UTC()
	providerID := "tx_123"
	applied, err := repo.TransitionStatus(ctx, order.ID, enums.OrderStatusPendingWebhook, enums.OrderStatusPaid, TransitionUpdate{
		PaidAt:          &paidAt,
		ProviderOrderID: &providerID,
	})
	require.NoError(t, err)
	assert.True(t, applied)

	stored, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, stored.Status)
	require.NotNil(t, stored.PaidAt)
	require.NotNil(t, stored.ProviderOrderID)
	assert.Equal(t, "tx_123", *stored.ProviderOrderID)
}

func TestTransitionStatusGuardsCurrentStatus(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, enums.OrderStatusPaid)

	applied, err := repo.TransitionStatus(ctx, order.ID, enums.OrderStatusPendingWebhook, enums.OrderStatusFailed, TransitionUpdate{})
	require.NoError(t, err)
	assert.False(t, applied)

	stored, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, stored.Status)
}

func TestTransitionStatusSecondDeliveryLoses(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, enums.OrderStatusPendingWebhook)

	first, err := repo.TransitionStatus(ctx, order.ID, enums.OrderStatusPendingWebhook, enums.OrderStatusPaid, TransitionUpdate{})
	require.NoError(t, err)
	assert.True(t, first)

	second, err := repo.TransitionStatus(ctx, order.ID, enums.OrderStatusPendingWebhook, enums.OrderStatusPaid, TransitionUpdate{})
	require.NoError(t, err)
	assert.False(t, second)
}

func TestFindByProviderOrderID(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, enums.OrderStatusPendingWebhook)
	providerID := "tx_find"
	require.NoError(t, db.Model(order).Update("provider_order_id", providerID).Error)

	found, err := repo.FindByProviderOrderID(ctx, providerID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)
}

func TestFindByIDNotFound(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	_, err := repo.FindByID(context.Background(), uuid.New())
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestFindLatestPaidByEmailPicksNewest(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	older := seedOrder(t, db, enums.OrderStatusPaid)
	newer := seedOrder(t, db, enums.OrderStatusPaid)
	unpaid := seedOrder(t, db, enums.OrderStatusFailed)
	_ = unpaid

	past := time.Now().UTC().Add(-2 * time.Hour)
	recent := time.Now().UTC()
	require.NoError(t, db.Model(older).Update("paid_at", past).Error)
	require.NoError(t, db.Model(newer).Update("paid_at", recent).Error)

	found, err := repo.FindLatestPaidByEmail(ctx, "BUYER@example.com")
	require.NoError(t, err)
	assert.Equal(t, newer.ID, found.ID)
}

func TestSetReportAccessTokenHash(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, enums.OrderStatusPaid)
	require.NoError(t, repo.SetReportAccessTokenHash(ctx, order.ID, "digesthex"))

	stored, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ReportAccessTokenHash)
	assert.Equal(t, "digesthex", *stored.ReportAccessTokenHash)
}
