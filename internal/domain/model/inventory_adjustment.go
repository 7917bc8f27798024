package model

import "time"

type InventoryReason string

const (
	InventoryReasonReserve InventoryReason = "reserve" // 注文作成で確保
	InventoryReasonRelease InventoryReason = "release" // 失敗/キャンセルで戻す
)

// 在庫増減の履歴
type InventoryAdjustment struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID string          `gorm:"type:varchar(64);not null;index" json:"product_id"`
	OrderID   string          `gorm:"type:varchar(64);not null;index" json:"order_id"`
	Delta     int64           `gorm:"not null" json:"delta"`
	Reason    InventoryReason `gorm:"type:varchar(20);not null" json:"reason"`
	CreatedAt time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
}
