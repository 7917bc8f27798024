package model

import "time"

// ログインユーザーのカート明細
// (user_id, product_id) は1行だけ。数量は必ず1以上。
type CartItem struct {
	ID        string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	UserID    string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_cart_items_user_product,priority:1" json:"user_id"`
	ProductID string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_cart_items_user_product,priority:2" json:"product_id"`
	Quantity  int64     `gorm:"not null" json:"quantity"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// ゲストカート（Redis）の1行。IDは商品IDと同じ
type GuestCartLine struct {
	ProductID string
	Quantity  int64
}
