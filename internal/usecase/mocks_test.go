package usecase_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/infra/gateway"
	repo "storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// =====================
// TxManager / TxRepos mocks
// =====================

// TxManagerMock は WithinTx の中で渡す repos を固定して unit テストを回す
type TxManagerMock struct {
	mock.Mock
	Repos repo.TxRepos
}

func (m *TxManagerMock) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	// 呼ばれた事実だけ記録（ctxの具体値は問わない）
	m.Called(ctx)
	return fn(m.Repos)
}

type TxReposMock struct {
	orders        repo.OrderRepository
	orderItems    repo.OrderItemRepository
	cartItems     repo.CartItemRepository
	inventory     repo.InventoryRepository
	products      repo.ProductRepository
	paymentEvents repo.PaymentEventRepository
}

func (r *TxReposMock) Orders() repo.OrderRepository               { return r.orders }
func (r *TxReposMock) OrderItems() repo.OrderItemRepository       { return r.orderItems }
func (r *TxReposMock) CartItems() repo.CartItemRepository         { return r.cartItems }
func (r *TxReposMock) Inventory() repo.InventoryRepository        { return r.inventory }
func (r *TxReposMock) Products() repo.ProductRepository           { return r.products }
func (r *TxReposMock) PaymentEvents() repo.PaymentEventRepository { return r.paymentEvents }

// =====================
// Repository mocks
// =====================

type OrderRepoMock struct{ mock.Mock }

func (m *OrderRepoMock) FindByID(ctx context.Context, orderID string) (model.Order, error) {
	args := m.Called(ctx, orderID)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) ListByUserID(ctx context.Context, userID string, page int, limit int) ([]model.Order, int64, error) {
	args := m.Called(ctx, userID, page, limit)
	orders, _ := args.Get(0).([]model.Order)
	return orders, args.Get(1).(int64), args.Error(2)
}

func (m *OrderRepoMock) Create(ctx context.Context, order model.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *OrderRepoMock) TransitionStatus(ctx context.Context, orderID string, from model.OrderStatus, to model.OrderStatus, change repo.StatusChange) (bool, error) {
	args := m.Called(ctx, orderID, from, to, change)
	return args.Bool(0), args.Error(1)
}

func (m *OrderRepoMock) FindByIdempotencyKey(ctx context.Context, userID string, key string) (model.Order, bool, error) {
	args := m.Called(ctx, userID, key)
	o, _ := args.Get(0).(model.Order)
	return o, args.Bool(1), args.Error(2)
}

func (m *OrderRepoMock) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	args := m.Called(ctx, f)
	orders, _ := args.Get(0).([]model.Order)
	return orders, args.Get(1).(int64), args.Error(2)
}

type OrderItemRepoMock struct{ mock.Mock }

func (m *OrderItemRepoMock) CreateBulk(ctx context.Context, orderID string, items []model.OrderItem) error {
	args := m.Called(ctx, orderID, items)
	return args.Error(0)
}

func (m *OrderItemRepoMock) ListByOrderID(ctx context.Context, orderID string) ([]model.OrderItem, error) {
	args := m.Called(ctx, orderID)
	items, _ := args.Get(0).([]model.OrderItem)
	return items, args.Error(1)
}

type CartItemRepoMock struct{ mock.Mock }

func (m *CartItemRepoMock) ListByUserID(ctx context.Context, userID string) ([]model.CartItem, error) {
	args := m.Called(ctx, userID)
	items, _ := args.Get(0).([]model.CartItem)
	return items, args.Error(1)
}

func (m *CartItemRepoMock) AddOrIncrement(ctx context.Context, userID string, productID string, addQty int64) error {
	args := m.Called(ctx, userID, productID, addQty)
	return args.Error(0)
}

func (m *CartItemRepoMock) UpdateQuantity(ctx context.Context, userID string, cartItemID string, qty int64) error {
	args := m.Called(ctx, userID, cartItemID, qty)
	return args.Error(0)
}

func (m *CartItemRepoMock) DeleteByID(ctx context.Context, userID string, cartItemID string) error {
	args := m.Called(ctx, userID, cartItemID)
	return args.Error(0)
}

func (m *CartItemRepoMock) ClearByUserID(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type GuestCartRepoMock struct{ mock.Mock }

func (m *GuestCartRepoMock) Add(ctx context.Context, guestID string, productID string, qty int64) error {
	args := m.Called(ctx, guestID, productID, qty)
	return args.Error(0)
}

func (m *GuestCartRepoMock) List(ctx context.Context, guestID string) ([]model.GuestCartLine, error) {
	args := m.Called(ctx, guestID)
	lines, _ := args.Get(0).([]model.GuestCartLine)
	return lines, args.Error(1)
}

func (m *GuestCartRepoMock) SetQuantity(ctx context.Context, guestID string, productID string, qty int64) error {
	args := m.Called(ctx, guestID, productID, qty)
	return args.Error(0)
}

func (m *GuestCartRepoMock) Remove(ctx context.Context, guestID string, productID string) error {
	args := m.Called(ctx, guestID, productID)
	return args.Error(0)
}

func (m *GuestCartRepoMock) Clear(ctx context.Context, guestID string) error {
	args := m.Called(ctx, guestID)
	return args.Error(0)
}

func (m *GuestCartRepoMock) Take(ctx context.Context, guestID string) ([]model.GuestCartLine, error) {
	args := m.Called(ctx, guestID)
	lines, _ := args.Get(0).([]model.GuestCartLine)
	return lines, args.Error(1)
}

type ProductRepoMock struct{ mock.Mock }

func (m *ProductRepoMock) FindByID(ctx context.Context, id string) (model.Product, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(model.Product)
	return p, args.Error(1)
}

func (m *ProductRepoMock) FindByIDs(ctx context.Context, ids []string) (map[string]model.Product, error) {
	args := m.Called(ctx, ids)
	ps, _ := args.Get(0).(map[string]model.Product)
	return ps, args.Error(1)
}

type InventoryRepoMock struct{ mock.Mock }

func (m *InventoryRepoMock) DecreaseStockIfEnough(ctx context.Context, productID string, qty int64) (bool, error) {
	args := m.Called(ctx, productID, qty)
	return args.Bool(0), args.Error(1)
}

func (m *InventoryRepoMock) IncreaseStock(ctx context.Context, productID string, qty int64) error {
	args := m.Called(ctx, productID, qty)
	return args.Error(0)
}

func (m *InventoryRepoMock) CreateAdjustments(ctx context.Context, adjs []model.InventoryAdjustment) error {
	args := m.Called(ctx, adjs)
	return args.Error(0)
}

type PaymentEventRepoMock struct{ mock.Mock }

func (m *PaymentEventRepoMock) Create(ctx context.Context, ev model.PaymentEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *PaymentEventRepoMock) List(ctx context.Context, f repo.PaymentEventFilter) ([]model.PaymentEvent, error) {
	args := m.Called(ctx, f)
	evs, _ := args.Get(0).([]model.PaymentEvent)
	return evs, args.Error(1)
}

// =====================
// Gateway / validator / id / clock
// =====================

type GatewayMock struct{ mock.Mock }

func (m *GatewayMock) InitiateSession(ctx context.Context, req gateway.SessionRequest) (gateway.Session, error) {
	args := m.Called(ctx, req)
	s, _ := args.Get(0).(gateway.Session)
	return s, args.Error(1)
}

func (m *GatewayMock) ValidateTransaction(ctx context.Context, valID string) (gateway.Validation, error) {
	args := m.Called(ctx, valID)
	v, _ := args.Get(0).(gateway.Validation)
	return v, args.Error(1)
}

type ShippingValidatorMock struct{ mock.Mock }

func (m *ShippingValidatorMock) ValidateShipping(ctx context.Context, in usecase.ShippingInput) error {
	args := m.Called(ctx, in)
	return args.Error(0)
}

type fixedIDs struct{ id string }

func (f fixedIDs) NewID() string { return f.id }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// =====================
// Helper: error contains（HTTPErrorの実装詳細に依存しない）
// =====================

func assertErrContains(t *testing.T, err error, wantSubstr string) {
	t.Helper()
	if assert.Error(t, err) {
		assert.True(t, strings.Contains(err.Error(), wantSubstr), "err=%q want contains %q", err.Error(), wantSubstr)
	}
}
