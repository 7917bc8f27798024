package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
)

type AdminOrderListFilter struct {
	Page   int
	Limit  int
	Status string
	UserID *string
	From   *time.Time
	To     *time.Time
}

// 条件付き遷移の追加項目
type StatusChange struct {
	ValidationID string
	PaidAt       *time.Time
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID string) (model.Order, error)
	ListByUserID(ctx context.Context, userID string, page int, limit int) ([]model.Order, int64, error)
	// 同じ(user_id, idempotency_key)が既にあればErrConflict
	Create(ctx context.Context, order model.Order) error

	// from の時だけ to に変える。変わらなければ false
	TransitionStatus(ctx context.Context, orderID string, from model.OrderStatus, to model.OrderStatus, change StatusChange) (bool, error)

	//検索（同じキーなら同じ結果を返す）
	FindByIdempotencyKey(ctx context.Context, userID string, key string) (model.Order, bool, error)
	//管理者用の注文一覧
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)
}
