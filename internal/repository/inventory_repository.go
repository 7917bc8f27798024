package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type InventoryRepository interface {
	// 在庫が足りるときだけ減算
	DecreaseStockIfEnough(ctx context.Context, productID string, qty int64) (bool, error)

	// 在庫戻し（失敗/キャンセル）
	IncreaseStock(ctx context.Context, productID string, qty int64) error

	// 増減履歴
	CreateAdjustments(ctx context.Context, adjustments []model.InventoryAdjustment) error
}
