package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/infra/gateway"
	"storefront/internal/logger"
	"storefront/internal/metrics"
	repo "storefront/internal/repository"

	"github.com/shopspring/decimal"
)

// SettlementUsecase はゲートウェイのコールバックを注文の状態に反映する。
// コールバックはtran_idだけで完結していて、何度来ても結果は同じ。
type SettlementUsecase struct {
	tx       repo.TransactionManager
	orders   repo.OrderRepository
	events   repo.PaymentEventRepository
	gateway  PaymentGateway
	validate bool
	clock    Clock
	log      *slog.Logger
	metrics  *metrics.Metrics
}

func NewSettlementUsecase(
	tx repo.TransactionManager,
	orders repo.OrderRepository,
	events repo.PaymentEventRepository,
	gw PaymentGateway,
	validate bool,
	clock Clock,
	log *slog.Logger,
	m *metrics.Metrics,
) *SettlementUsecase {
	return &SettlementUsecase{
		tx:       tx,
		orders:   orders,
		events:   events,
		gateway:  gw,
		validate: validate,
		clock:    clock,
		log:      log,
		metrics:  m,
	}
}

// ゲートウェイからPOSTされる項目
type CallbackInput struct {
	TranID string
	ValID  string
	Status string
	Amount string
	// success_url等のクエリ。tran_idが無いときだけ使う
	QueryOrderID string
}

func (in CallbackInput) orderID() string {
	if id := strings.TrimSpace(in.TranID); id != "" {
		return id
	}
	return strings.TrimSpace(in.QueryOrderID)
}

type SettlementResult struct {
	OrderID string
	Outcome model.PaymentEventOutcome
	// 処理後の注文ステータス（不明なら空）
	Status model.OrderStatus
	// ゲートウェイが支払い成功と言っているか。リダイレクト先の判定に使う
	Accepted bool
}

// 成功コールバック。VALID/VALIDATED のときだけ paid にする
func (u *SettlementUsecase) HandleSuccess(ctx context.Context, in CallbackInput) (SettlementResult, error) {
	return u.settlePaid(ctx, model.PaymentSourceSuccess, in)
}

func (u *SettlementUsecase) HandleFailure(ctx context.Context, in CallbackInput) (SettlementResult, error) {
	return u.settleClosed(ctx, model.PaymentSourceFail, in, model.OrderStatusFailed)
}

func (u *SettlementUsecase) HandleCancel(ctx context.Context, in CallbackInput) (SettlementResult, error) {
	return u.settleClosed(ctx, model.PaymentSourceCancel, in, model.OrderStatusCancelled)
}

// IPN（サーバー間通知）。statusで振り分ける
func (u *SettlementUsecase) HandleNotification(ctx context.Context, in CallbackInput) (SettlementResult, error) {
	switch strings.ToUpper(strings.TrimSpace(in.Status)) {
	case "VALID", "VALIDATED":
		return u.settlePaid(ctx, model.PaymentSourceIPN, in)
	case "FAILED":
		return u.settleClosed(ctx, model.PaymentSourceIPN, in, model.OrderStatusFailed)
	case "CANCELLED":
		return u.settleClosed(ctx, model.PaymentSourceIPN, in, model.OrderStatusCancelled)
	}

	ev := u.newEvent(model.PaymentSourceIPN, in)
	u.record(ctx, &ev, model.PaymentOutcomeIgnored, "unhandled status")
	return SettlementResult{OrderID: ev.OrderID, Outcome: ev.Outcome}, nil
}

func (u *SettlementUsecase) settlePaid(ctx context.Context, source model.PaymentEventSource, in CallbackInput) (SettlementResult, error) {
	ev := u.newEvent(source, in)
	res := SettlementResult{OrderID: ev.OrderID}

	if ev.OrderID == "" {
		u.record(ctx, &ev, model.PaymentOutcomeMismatch, "missing tran_id")
		res.Outcome = ev.Outcome
		return res, nil
	}
	if !gateway.IsValidStatus(strings.ToUpper(strings.TrimSpace(in.Status))) {
		u.record(ctx, &ev, model.PaymentOutcomeIgnored, "status is not VALID")
		res.Outcome = ev.Outcome
		return res, nil
	}
	res.Accepted = true

	o, err := u.orders.FindByID(ctx, ev.OrderID)
	if errors.Is(err, repo.ErrNotFound) {
		u.record(ctx, &ev, model.PaymentOutcomeMismatch, "unknown tran_id")
		res.Outcome = ev.Outcome
		return res, nil
	}
	if err != nil {
		u.record(ctx, &ev, model.PaymentOutcomeError, err.Error())
		res.Outcome = ev.Outcome
		return res, fmt.Errorf("find order %s: %w", ev.OrderID, ErrPersistence)
	}
	res.Status = o.Status

	//送られてきた金額が注文と違う
	if amt := strings.TrimSpace(in.Amount); amt != "" {
		posted, err := decimal.NewFromString(amt)
		if err != nil || !posted.Equal(o.TotalAmount) {
			u.record(ctx, &ev, model.PaymentOutcomeMismatch, "amount "+amt+" != "+o.TotalAmount.StringFixed(2))
			res.Outcome = ev.Outcome
			return res, nil
		}
	}

	if u.validate {
		//val_idが無いものは検証できないので受け付けない
		if strings.TrimSpace(in.ValID) == "" {
			res.Accepted = false
			u.record(ctx, &ev, model.PaymentOutcomeMismatch, "missing val_id")
			res.Outcome = ev.Outcome
			return res, nil
		}
		v, err := u.gateway.ValidateTransaction(ctx, strings.TrimSpace(in.ValID))
		if err != nil {
			//確認できないのでpendingのまま（IPNか手動で確定）
			u.record(ctx, &ev, model.PaymentOutcomeError, "validation unavailable: "+err.Error())
			res.Outcome = ev.Outcome
			return res, nil
		}
		if !v.IsValid() {
			res.Accepted = false
			u.record(ctx, &ev, model.PaymentOutcomeMismatch, "validation status "+v.Status)
			res.Outcome = ev.Outcome
			return res, nil
		}
		if v.TranID != o.ID || !v.Amount.Equal(o.TotalAmount) {
			u.record(ctx, &ev, model.PaymentOutcomeMismatch,
				"validation mismatch tran_id="+v.TranID+" amount="+v.Amount.StringFixed(2))
			res.Outcome = ev.Outcome
			return res, nil
		}
	}

	return u.transition(ctx, ev, o, model.OrderStatusPaid, res)
}

func (u *SettlementUsecase) settleClosed(ctx context.Context, source model.PaymentEventSource, in CallbackInput, to model.OrderStatus) (SettlementResult, error) {
	ev := u.newEvent(source, in)
	res := SettlementResult{OrderID: ev.OrderID}

	if ev.OrderID == "" {
		u.record(ctx, &ev, model.PaymentOutcomeMismatch, "missing tran_id")
		res.Outcome = ev.Outcome
		return res, nil
	}

	o, err := u.orders.FindByID(ctx, ev.OrderID)
	if errors.Is(err, repo.ErrNotFound) {
		u.record(ctx, &ev, model.PaymentOutcomeMismatch, "unknown tran_id")
		res.Outcome = ev.Outcome
		return res, nil
	}
	if err != nil {
		u.record(ctx, &ev, model.PaymentOutcomeError, err.Error())
		res.Outcome = ev.Outcome
		return res, fmt.Errorf("find order %s: %w", ev.OrderID, ErrPersistence)
	}
	res.Status = o.Status

	return u.transition(ctx, ev, o, to, res)
}

// pending -> to を条件付き更新で1回だけ適用する
func (u *SettlementUsecase) transition(ctx context.Context, ev model.PaymentEvent, o model.Order, to model.OrderStatus, res SettlementResult) (SettlementResult, error) {
	if alreadyAt(o.Status, to) {
		u.record(ctx, &ev, model.PaymentOutcomeDuplicate, "already "+string(o.Status))
		res.Outcome = ev.Outcome
		return res, nil
	}
	if !o.Status.CanTransitionTo(to) {
		u.record(ctx, &ev, model.PaymentOutcomeMismatch, "order is "+string(o.Status))
		res.Outcome = ev.Outcome
		return res, nil
	}

	now := u.clock.Now()
	change := repo.StatusChange{ValidationID: strings.TrimSpace(ev.ValidationID)}
	if to == model.OrderStatusPaid {
		change.PaidAt = &now
	}

	applied := false
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		ok, err := r.Orders().TransitionStatus(ctx, o.ID, model.OrderStatusPending, to, change)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if to.ReleasesStock() {
			if err := releaseOrder(ctx, r, o, now, true); err != nil {
				return err
			}
		}

		ev.Outcome = model.PaymentOutcomeApplied
		ev.FromStatus = model.OrderStatusPending
		ev.ToStatus = to
		ev.CreatedAt = now
		if err := r.PaymentEvents().Create(ctx, ev); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		ev.FromStatus, ev.ToStatus = "", ""
		u.record(ctx, &ev, model.PaymentOutcomeError, err.Error())
		res.Outcome = ev.Outcome
		return res, fmt.Errorf("transition order %s to %s: %w", o.ID, to, ErrPersistence)
	}

	if applied {
		u.metrics.Settlement(string(ev.Source), string(model.PaymentOutcomeApplied))
		logger.FromContext(ctx, u.log).InfoContext(ctx, "order settled",
			"order_id", o.ID, "source", ev.Source, "status", to)
		res.Outcome = model.PaymentOutcomeApplied
		res.Status = to
		return res, nil
	}

	//別のコールバックが先に更新した
	cur, err := u.orders.FindByID(ctx, o.ID)
	switch {
	case err != nil:
		u.record(ctx, &ev, model.PaymentOutcomeMismatch, "order changed concurrently")
	case alreadyAt(cur.Status, to):
		u.record(ctx, &ev, model.PaymentOutcomeDuplicate, "already "+string(cur.Status))
	default:
		u.record(ctx, &ev, model.PaymentOutcomeMismatch, "order is "+string(cur.Status))
	}
	res.Outcome = ev.Outcome
	res.Status = cur.Status
	return res, nil
}

// 同じ結果がもう反映されている（paid後のshipped/deliveredもpaid済みとみなす）
func alreadyAt(cur model.OrderStatus, to model.OrderStatus) bool {
	if cur == to {
		return true
	}
	return to == model.OrderStatusPaid &&
		(cur == model.OrderStatusShipped || cur == model.OrderStatusDelivered)
}

func (u *SettlementUsecase) newEvent(source model.PaymentEventSource, in CallbackInput) model.PaymentEvent {
	return model.PaymentEvent{
		OrderID:       in.orderID(),
		Source:        source,
		GatewayStatus: strings.TrimSpace(in.Status),
		ValidationID:  strings.TrimSpace(in.ValID),
	}
}

// 適用以外の結果を残す。保存に失敗してもログだけ
func (u *SettlementUsecase) record(ctx context.Context, ev *model.PaymentEvent, outcome model.PaymentEventOutcome, detail string) {
	ev.Outcome = outcome
	ev.Detail = detail
	ev.CreatedAt = u.clock.Now()

	log := logger.FromContext(ctx, u.log).With(
		"order_id", ev.OrderID, "source", ev.Source, "gateway_status", ev.GatewayStatus, "outcome", outcome, "detail", detail)
	switch outcome {
	case model.PaymentOutcomeMismatch:
		log.WarnContext(ctx, "settlement mismatch", "error", ErrReconciliationMismatch)
	case model.PaymentOutcomeError:
		log.ErrorContext(ctx, "settlement failed")
	default:
		log.InfoContext(ctx, "settlement callback")
	}

	if err := u.events.Create(ctx, *ev); err != nil {
		log.ErrorContext(ctx, "payment event write failed", "error", err)
	}
	u.metrics.Settlement(string(ev.Source), string(outcome))
}

// 確保していた在庫を戻す。restoreCartなら明細を持ち主のカートに戻す
func releaseOrder(ctx context.Context, r repo.TxRepos, o model.Order, now time.Time, restoreCart bool) error {
	items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
	if err != nil {
		return err
	}

	adjs := make([]model.InventoryAdjustment, 0, len(items))
	for _, it := range items {
		if err := r.Inventory().IncreaseStock(ctx, it.ProductID, it.Quantity); err != nil && !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		adjs = append(adjs, model.InventoryAdjustment{
			ProductID: it.ProductID,
			OrderID:   o.ID,
			Delta:     it.Quantity,
			Reason:    model.InventoryReasonRelease,
			CreatedAt: now,
		})
		if restoreCart {
			if err := r.CartItems().AddOrIncrement(ctx, o.UserID, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}
	}
	return r.Inventory().CreateAdjustments(ctx, adjs)
}
