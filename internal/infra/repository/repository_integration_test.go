//go:build integration

package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/infra/db"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/logger"
	repo "storefront/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("storefront"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	testcontainers.CleanupContainer(t, pgContainer)

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	gdb, err := db.Connect(dsn, logger.Discard())
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

func seedProduct(t *testing.T, gdb *gorm.DB, id string, price string, stock int64) {
	t.Helper()
	require.NoError(t, gdb.Create(&model.Product{
		ID: id, Name: "Product " + id, Price: decimal.RequireFromString(price), Stock: stock, IsActive: true,
	}).Error)
}

func newOrder(id string, key string) model.Order {
	return model.Order{
		ID:              id,
		UserID:          "u1",
		Status:          model.OrderStatusPending,
		Subtotal:        decimal.RequireFromString("80.00"),
		ShippingFee:     decimal.RequireFromString("10.00"),
		Tax:             decimal.RequireFromString("8.00"),
		TotalAmount:     decimal.RequireFromString("98.00"),
		Currency:        "BDT",
		ShippingName:    "Ayesha",
		ContactEmail:    "a@example.com",
		ContactPhone:    "01700000000",
		ShippingAddress: "House 1",
		ShippingCity:    "Dhaka",
		ShippingCountry: "Bangladesh",
		IdempotencyKey:  key,
	}
}

func TestIntegration_Repositories(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	gdb := setupTestDB(t)
	ctx := context.Background()

	seedProduct(t, gdb, "ring-1", "40.00", 3)

	t.Run("cart upsert increments", func(t *testing.T) {
		items := infraRepo.NewCartItemGormRepository(gdb)

		require.NoError(t, items.AddOrIncrement(ctx, "u1", "ring-1", 1))
		require.NoError(t, items.AddOrIncrement(ctx, "u1", "ring-1", 2))

		list, err := items.ListByUserID(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, int64(3), list[0].Quantity)

		//他人の明細は更新できない
		err = items.UpdateQuantity(ctx, "u2", list[0].ID, 5)
		assert.True(t, errors.Is(err, repo.ErrNotFound))

		require.NoError(t, items.ClearByUserID(ctx, "u1"))
		list, err = items.ListByUserID(ctx, "u1")
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("stock decrement is guarded", func(t *testing.T) {
		inv := infraRepo.NewInventoryGormRepository(gdb)

		ok, err := inv.DecreaseStockIfEnough(ctx, "ring-1", 5)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = inv.DecreaseStockIfEnough(ctx, "ring-1", 3)
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, inv.IncreaseStock(ctx, "ring-1", 3))
		p, err := infraRepo.NewProductGormRepository(gdb).FindByID(ctx, "ring-1")
		require.NoError(t, err)
		assert.Equal(t, int64(3), p.Stock)
	})

	t.Run("idempotency key is unique per user", func(t *testing.T) {
		orders := infraRepo.NewOrderGormRepository(gdb)

		require.NoError(t, orders.Create(ctx, newOrder("ORD-1", "key-1")))
		err := orders.Create(ctx, newOrder("ORD-2", "key-1"))
		assert.ErrorIs(t, err, repo.ErrConflict)

		o, found, err := orders.FindByIdempotencyKey(ctx, "u1", "key-1")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "ORD-1", o.ID)
		assert.Equal(t, "98.00", o.TotalAmount.StringFixed(2))
	})

	t.Run("conditional transition applies once", func(t *testing.T) {
		orders := infraRepo.NewOrderGormRepository(gdb)
		now := time.Now().UTC()

		ok, err := orders.TransitionStatus(ctx, "ORD-1", model.OrderStatusPending, model.OrderStatusPaid,
			repo.StatusChange{ValidationID: "VAL-1", PaidAt: &now})
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = orders.TransitionStatus(ctx, "ORD-1", model.OrderStatusPending, model.OrderStatusPaid, repo.StatusChange{})
		require.NoError(t, err)
		assert.False(t, ok)

		o, err := orders.FindByID(ctx, "ORD-1")
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatusPaid, o.Status)
		assert.Equal(t, "VAL-1", o.ValidationID)
		assert.NotNil(t, o.PaidAt)
	})

	t.Run("transaction rolls back", func(t *testing.T) {
		txm := infraRepo.NewTxManagerGorm(gdb)
		boom := errors.New("boom")

		err := txm.WithinTx(ctx, func(r repo.TxRepos) error {
			if err := r.Orders().Create(ctx, newOrder("ORD-RB", "key-rb")); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, err = infraRepo.NewOrderGormRepository(gdb).FindByID(ctx, "ORD-RB")
		assert.ErrorIs(t, err, repo.ErrNotFound)
	})

	t.Run("payment events filter by outcome", func(t *testing.T) {
		events := infraRepo.NewPaymentEventGormRepository(gdb)

		require.NoError(t, events.Create(ctx, model.PaymentEvent{OrderID: "ORD-1", Source: model.PaymentSourceSuccess, Outcome: model.PaymentOutcomeApplied}))
		require.NoError(t, events.Create(ctx, model.PaymentEvent{OrderID: "ORD-404", Source: model.PaymentSourceSuccess, Outcome: model.PaymentOutcomeMismatch}))

		mismatch := model.PaymentOutcomeMismatch
		list, err := events.List(ctx, repo.PaymentEventFilter{Outcome: &mismatch, Limit: 10})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "ORD-404", list[0].OrderID)
	})
}
