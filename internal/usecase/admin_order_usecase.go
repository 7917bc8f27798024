package usecase

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/logger"
	repo "storefront/internal/repository"
)

// 運用担当の照合用（注文一覧・決済イベント・手動ステータス変更）
type AdminOrderUsecase struct {
	tx     repo.TransactionManager
	events repo.PaymentEventRepository
	clock  Clock
	log    *slog.Logger
}

func NewAdminOrderUsecase(tx repo.TransactionManager, events repo.PaymentEventRepository, clock Clock, log *slog.Logger) *AdminOrderUsecase {
	return &AdminOrderUsecase{tx: tx, events: events, clock: clock, log: log}
}

type AdminUpdateOrderStatusInput struct {
	Status string
	Note   string
}

// 注文一覧
func (u *AdminOrderUsecase) ListOrders(ctx context.Context, f repo.AdminOrderListFilter) ([]OrderOutput, error) {
	// page/limitの最低限チェック
	if f.Page < 1 {
		return []OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if f.Limit < 1 || f.Limit > 100 {
		return []OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if f.Status != "" && !model.OrderStatus(f.Status).Valid() {
		return []OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, _, err := r.Orders().ListAdmin(ctx, f)
		if err != nil {
			return dbError(ctx, u.log, "admin.orders", err)
		}

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return dbError(ctx, u.log, "admin.order_items", err)
			}
			outs = append(outs, toOrderOutput(o, items))
		}
		return nil
	})

	if err != nil {
		return []OrderOutput{}, err
	}
	return outs, nil
}

// 照合できなかったコールバックなどを確認する
func (u *AdminOrderUsecase) ListPaymentEvents(ctx context.Context, f repo.PaymentEventFilter) ([]model.PaymentEvent, error) {
	if f.Outcome != nil {
		switch *f.Outcome {
		case model.PaymentOutcomeApplied, model.PaymentOutcomeDuplicate, model.PaymentOutcomeMismatch,
			model.PaymentOutcomeIgnored, model.PaymentOutcomeError:
		default:
			return nil, NewHTTPError(http.StatusBadRequest, "invalid outcome")
		}
	}

	events, err := u.events.List(ctx, f)
	if err != nil {
		return nil, dbError(ctx, u.log, "admin.payment_events", err)
	}
	if events == nil {
		events = []model.PaymentEvent{}
	}
	return events, nil
}

// ステータス更新（failed/cancelled なら在庫戻し）
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, actorAdminUserID string, orderID string, in AdminUpdateOrderStatusInput) error {
	if strings.TrimSpace(actorAdminUserID) == "" {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if strings.TrimSpace(orderID) == "" {
		return NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	newStatus := model.OrderStatus(strings.ToLower(strings.TrimSpace(in.Status)))
	if !newStatus.Valid() {
		return NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 注文取得
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return dbError(ctx, u.log, "admin.order", err)
		}

		// すでに同じなら何もしない（200）
		if o.Status == newStatus {
			return nil
		}
		// 終端ガード
		if o.Status.IsTerminal() {
			return NewHTTPError(http.StatusBadRequest, "cannot change "+string(o.Status)+" order")
		}
		if !o.Status.CanTransitionTo(newStatus) {
			return NewHTTPError(http.StatusBadRequest, "invalid transition "+string(o.Status)+" -> "+string(newStatus))
		}

		now := u.clock.Now()
		change := repo.StatusChange{}
		if newStatus == model.OrderStatusPaid {
			change.PaidAt = &now
		}

		ok, err := r.Orders().TransitionStatus(ctx, orderID, o.Status, newStatus, change)
		if err != nil {
			return dbError(ctx, u.log, "admin.transition", err)
		}
		if !ok {
			//同時にコールバックが来た
			return NewHTTPError(http.StatusConflict, "order status changed, reload")
		}

		// 在庫戻し（手動のときはカートには戻さない）
		if newStatus.ReleasesStock() {
			if err := releaseOrder(ctx, r, o, now, false); err != nil {
				return dbError(ctx, u.log, "admin.release", err)
			}
		}

		detail := `{"before":"` + string(o.Status) + `","after":"` + string(newStatus) + `"}`
		if note := strings.TrimSpace(in.Note); note != "" {
			detail = note
		}
		if err := r.PaymentEvents().Create(ctx, model.PaymentEvent{
			OrderID:     orderID,
			Source:      model.PaymentSourceManual,
			Outcome:     model.PaymentOutcomeApplied,
			FromStatus:  o.Status,
			ToStatus:    newStatus,
			Detail:      detail,
			ActorUserID: actorAdminUserID,
			CreatedAt:   now,
		}); err != nil {
			return dbError(ctx, u.log, "admin.payment_event", err)
		}

		logger.FromContext(ctx, u.log).InfoContext(ctx, "order status changed by admin",
			"order_id", orderID, "actor", actorAdminUserID, "from", o.Status, "to", newStatus)
		return nil
	})
}

// 期間パラメータ（RFC3339）。handlerで使う
func ParseDateTimeRFC3339(s string) (*time.Time, bool) {
	if strings.TrimSpace(s) == "" {
		return nil, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, false
	}
	return &t, true
}
