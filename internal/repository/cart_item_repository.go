package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// ログインユーザーのカート
type CartItemRepository interface {
	ListByUserID(ctx context.Context, userID string) ([]model.CartItem, error)
	// 同一商品は数量をプラス（1文で）
	AddOrIncrement(ctx context.Context, userID string, productID string, addQty int64) error
	UpdateQuantity(ctx context.Context, userID string, cartItemID string, qty int64) error
	// 無くてもエラーにしない
	DeleteByID(ctx context.Context, userID string, cartItemID string) error
	ClearByUserID(ctx context.Context, userID string) error
}

// ゲストカート（Redis）
type GuestCartRepository interface {
	Add(ctx context.Context, guestID string, productID string, qty int64) error
	List(ctx context.Context, guestID string) ([]model.GuestCartLine, error)
	SetQuantity(ctx context.Context, guestID string, productID string, qty int64) error
	Remove(ctx context.Context, guestID string, productID string) error
	Clear(ctx context.Context, guestID string) error
	// 読み取りと削除を同時に（マージ用）
	Take(ctx context.Context, guestID string) ([]model.GuestCartLine, error)
}
