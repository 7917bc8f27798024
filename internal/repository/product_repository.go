package repository

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

// 同じキーの重複（unique制約違反）
var ErrConflict = errors.New("conflict")

// 商品は参照だけ（カタログ管理はしない）
type ProductRepository interface {
	FindByID(ctx context.Context, id string) (model.Product, error)
	// 見つからない/削除済みのIDは結果に入らない
	FindByIDs(ctx context.Context, ids []string) (map[string]model.Product, error)
}
