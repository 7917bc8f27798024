package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
)

// 許可する遷移
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusPaid, OrderStatusFailed, OrderStatusCancelled},
	OrderStatusPaid:    {OrderStatusShipped},
	OrderStatusShipped: {OrderStatusDelivered},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusFailed,
		OrderStatusCancelled, OrderStatusShipped, OrderStatusDelivered:
		return true
	}
	return false
}

// 終端（これ以上動かない）
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusFailed || s == OrderStatusCancelled || s == OrderStatusDelivered
}

// 在庫を戻すべき終わり方か
func (s OrderStatus) ReleasesStock() bool {
	return s == OrderStatusFailed || s == OrderStatusCancelled
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, n := range orderTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// 注文。IDはそのまま決済のtran_idになる。
// 金額は作成後に変わらない。
type Order struct {
	ID     string      `gorm:"type:varchar(64);primaryKey" json:"id"`
	UserID string      `gorm:"type:varchar(64);not null;index;uniqueIndex:ux_orders_user_idem,priority:1" json:"user_id"`
	Status OrderStatus `gorm:"type:varchar(20);not null;index" json:"status"`

	Subtotal    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	ShippingFee decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"shipping_fee"`
	Tax         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"tax"`
	TotalAmount decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	Currency    string          `gorm:"type:varchar(3);not null" json:"currency"`

	ShippingName       string `gorm:"type:varchar(255);not null" json:"shipping_name"`
	ContactEmail       string `gorm:"type:varchar(255);not null" json:"contact_email"`
	ContactPhone       string `gorm:"type:varchar(50);not null" json:"contact_phone"`
	ShippingAddress    string `gorm:"type:text;not null" json:"shipping_address"`
	ShippingCity       string `gorm:"type:varchar(100);not null" json:"shipping_city"`
	ShippingPostalCode string `gorm:"type:varchar(20);not null" json:"shipping_postal_code"`
	ShippingCountry    string `gorm:"type:varchar(100);not null" json:"shipping_country"`

	IdempotencyKey string     `gorm:"type:varchar(255);not null;uniqueIndex:ux_orders_user_idem,priority:2" json:"-"`
	ValidationID   string     `gorm:"type:varchar(255)" json:"validation_id,omitempty"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
	CreatedAt      time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
