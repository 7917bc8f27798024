package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

type paymentEventGormRepository struct {
	db *gorm.DB
}

func NewPaymentEventGormRepository(db *gorm.DB) repo.PaymentEventRepository {
	return &paymentEventGormRepository{db: db}
}

func (r *paymentEventGormRepository) Create(ctx context.Context, ev model.PaymentEvent) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(&ev).Error
}

func (r *paymentEventGormRepository) List(ctx context.Context, filter repo.PaymentEventFilter) ([]model.PaymentEvent, error) {
	q := r.db.WithContext(ctx).Model(&model.PaymentEvent{})

	if filter.OrderID != nil {
		q = q.Where("order_id = ?", *filter.OrderID)
	}
	if filter.Source != nil {
		q = q.Where("source = ?", *filter.Source)
	}
	if filter.Outcome != nil {
		q = q.Where("outcome = ?", *filter.Outcome)
	}
	if filter.CreatedFrom != nil {
		q = q.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		q = q.Where("created_at <= ?", *filter.CreatedTo)
	}

	//新しい順
	q = q.Order("id DESC")

	// limit/offset
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	q = q.Limit(limit).Offset(filter.Offset)

	var events []model.PaymentEvent
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
