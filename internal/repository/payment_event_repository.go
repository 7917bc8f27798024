package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
)

// 決済イベントの絞り込み条件。
type PaymentEventFilter struct {
	OrderID     *string
	Source      *model.PaymentEventSource
	Outcome     *model.PaymentEventOutcome
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

type PaymentEventRepository interface {
	Create(ctx context.Context, event model.PaymentEvent) error
	List(ctx context.Context, filter PaymentEventFilter) ([]model.PaymentEvent, error)
}
