package handler

import (
	"context"
	"sync"
	"testing"

	"storefront/internal/domain/model"
	"storefront/internal/infra/gateway"
	repo "storefront/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func bearer(t *testing.T, sub string, role string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub, "role": role, "exp": 9999999999})
	s, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + s
}

// =====================
// 最小限のインメモリ実装
// =====================

type fakeProducts struct {
	byID map[string]model.Product
}

func (f *fakeProducts) FindByID(_ context.Context, id string) (model.Product, error) {
	p, ok := f.byID[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (f *fakeProducts) FindByIDs(_ context.Context, ids []string) (map[string]model.Product, error) {
	out := map[string]model.Product{}
	for _, id := range ids {
		if p, ok := f.byID[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type fakeOrders struct {
	byID map[string]model.Order
}

func (f *fakeOrders) FindByID(_ context.Context, id string) (model.Order, error) {
	o, ok := f.byID[id]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

func (f *fakeOrders) ListByUserID(context.Context, string, int, int) ([]model.Order, int64, error) {
	return nil, 0, nil
}

func (f *fakeOrders) Create(_ context.Context, o model.Order) error {
	f.byID[o.ID] = o
	return nil
}

func (f *fakeOrders) TransitionStatus(_ context.Context, id string, from model.OrderStatus, to model.OrderStatus, _ repo.StatusChange) (bool, error) {
	o, ok := f.byID[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	f.byID[id] = o
	return true, nil
}

func (f *fakeOrders) FindByIdempotencyKey(context.Context, string, string) (model.Order, bool, error) {
	return model.Order{}, false, nil
}

func (f *fakeOrders) ListAdmin(context.Context, repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	return nil, 0, nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []model.PaymentEvent
}

func (f *fakeEvents) Create(_ context.Context, ev model.PaymentEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeEvents) List(context.Context, repo.PaymentEventFilter) ([]model.PaymentEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.PaymentEvent(nil), f.events...), nil
}

type fakeTxRepos struct {
	orders *fakeOrders
	events *fakeEvents
}

func (r *fakeTxRepos) Orders() repo.OrderRepository               { return r.orders }
func (r *fakeTxRepos) OrderItems() repo.OrderItemRepository       { return nil }
func (r *fakeTxRepos) CartItems() repo.CartItemRepository         { return nil }
func (r *fakeTxRepos) Inventory() repo.InventoryRepository        { return nil }
func (r *fakeTxRepos) Products() repo.ProductRepository           { return nil }
func (r *fakeTxRepos) PaymentEvents() repo.PaymentEventRepository { return r.events }

type fakeTx struct {
	repos *fakeTxRepos
}

func (f *fakeTx) WithinTx(_ context.Context, fn func(r repo.TxRepos) error) error {
	return fn(f.repos)
}

type fakeGateway struct {
	session gateway.Session
	err     error
	// val_id -> 検証APIの応答。無いものは INVALID_TRANSACTION
	validations map[string]gateway.Validation
}

func (f *fakeGateway) InitiateSession(context.Context, gateway.SessionRequest) (gateway.Session, error) {
	return f.session, f.err
}

func (f *fakeGateway) ValidateTransaction(_ context.Context, valID string) (gateway.Validation, error) {
	if v, ok := f.validations[valID]; ok {
		return v, nil
	}
	return gateway.Validation{Status: "INVALID_TRANSACTION", ValID: valID}, nil
}
