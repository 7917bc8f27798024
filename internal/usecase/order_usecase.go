package usecase

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/domain/pricing"
	"storefront/internal/logger"
	"storefront/internal/metrics"
	repo "storefront/internal/repository"

	"github.com/shopspring/decimal"
)

// 配送先・連絡先（チェックアウトフォーム）
type ShippingInput struct {
	FullName   string
	Email      string
	Phone      string
	Address    string
	City       string
	PostalCode string
	Country    string
}

type ShippingValidator interface {
	ValidateShipping(ctx context.Context, in ShippingInput) error
}

type OrderUsecase struct {
	tx        repo.TransactionManager
	validator ShippingValidator
	calc      pricing.Calculator
	currency  string
	ids       IDGenerator
	clock     Clock
	log       *slog.Logger
	metrics   *metrics.Metrics
}

func NewOrderUsecase(
	tx repo.TransactionManager,
	validator ShippingValidator,
	calc pricing.Calculator,
	currency string,
	ids IDGenerator,
	clock Clock,
	log *slog.Logger,
	m *metrics.Metrics,
) *OrderUsecase {
	return &OrderUsecase{
		tx:        tx,
		validator: validator,
		calc:      calc,
		currency:  currency,
		ids:       ids,
		clock:     clock,
		log:       log,
		metrics:   m,
	}
}

type PlaceOrderInput struct {
	Shipping       ShippingInput
	IdempotencyKey string
}

type OrderItemOutput struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
}

type ShippingOutput struct {
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type OrderOutput struct {
	ID          string            `json:"id"`
	UserID      string            `json:"user_id"`
	Status      string            `json:"status"`
	Subtotal    decimal.Decimal   `json:"subtotal"`
	ShippingFee decimal.Decimal   `json:"shipping_fee"`
	Tax         decimal.Decimal   `json:"tax"`
	TotalAmount decimal.Decimal   `json:"total_amount"`
	Currency    string            `json:"currency"`
	Shipping    ShippingOutput    `json:"shipping"`
	PaidAt      *time.Time        `json:"paid_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	Items       []OrderItemOutput `json:"items"`
}

// PlaceOrder はカートから注文を作る。
// 在庫減算・注文・明細・カートクリアは1トランザクション。どれか失敗したら全部戻る。
func (u *OrderUsecase) PlaceOrder(ctx context.Context, userID string, in PlaceOrderInput) (OrderOutput, error) {
	if strings.TrimSpace(userID) == "" {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if key == "" || len(key) > 255 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid idempotency_key")
	}
	if err := u.validator.ValidateShipping(ctx, in.Shipping); err != nil {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var out OrderOutput
	created := false

	//注文処理はトランザクション
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 同じキーなら同じ結果
		existing, found, err := r.Orders().FindByIdempotencyKey(ctx, userID, key)
		if err != nil {
			return dbError(ctx, u.log, "order.find_idempotency", err)
		}
		if found {
			items, err := r.OrderItems().ListByOrderID(ctx, existing.ID)
			if err != nil {
				return dbError(ctx, u.log, "order.items", err)
			}
			out = toOrderOutput(existing, items)
			return nil
		}

		//カート明細取得（この時点のスナップショット）
		cartItems, err := r.CartItems().ListByUserID(ctx, userID)
		if err != nil {
			return dbError(ctx, u.log, "order.cart", err)
		}
		if len(cartItems) == 0 {
			return NewHTTPError(http.StatusBadRequest, "cart empty")
		}

		orderID := u.ids.NewID()
		now := u.clock.Now()

		//在庫を確定時に再チェックして減らす
		orderItems := make([]model.OrderItem, 0, len(cartItems))
		lines := make([]pricing.Line, 0, len(cartItems))
		adjs := make([]model.InventoryAdjustment, 0, len(cartItems))

		for _, ci := range cartItems {
			p, err := r.Products().FindByID(ctx, ci.ProductID)
			if errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusBadRequest, "product unavailable: "+ci.ProductID)
			}
			if err != nil {
				return dbError(ctx, u.log, "order.product", err)
			}
			if !p.IsActive {
				return NewHTTPError(http.StatusBadRequest, "product unavailable: "+ci.ProductID)
			}

			//在庫減算（足りないなら false）
			ok, err := r.Inventory().DecreaseStockIfEnough(ctx, ci.ProductID, ci.Quantity)
			if err != nil {
				return dbError(ctx, u.log, "order.stock", err)
			}
			if !ok {
				return NewHTTPError(http.StatusBadRequest, "out of stock: "+p.Name)
			}

			//スナップショット
			orderItems = append(orderItems, model.OrderItem{
				ProductID:           ci.ProductID,
				ProductNameSnapshot: p.Name,
				UnitPriceSnapshot:   p.Price,
				Quantity:            ci.Quantity,
				CreatedAt:           now,
			})
			lines = append(lines, pricing.Line{UnitPrice: p.Price, Quantity: ci.Quantity})
			adjs = append(adjs, model.InventoryAdjustment{
				ProductID: ci.ProductID,
				OrderID:   orderID,
				Delta:     -ci.Quantity,
				Reason:    model.InventoryReasonReserve,
				CreatedAt: now,
			})
		}

		totals := u.calc.Compute(lines)
		sh := in.Shipping
		order := model.Order{
			ID:                 orderID,
			UserID:             userID,
			Status:             model.OrderStatusPending,
			Subtotal:           totals.Subtotal,
			ShippingFee:        totals.Shipping,
			Tax:                totals.Tax,
			TotalAmount:        totals.Total,
			Currency:           u.currency,
			ShippingName:       strings.TrimSpace(sh.FullName),
			ContactEmail:       strings.TrimSpace(sh.Email),
			ContactPhone:       strings.TrimSpace(sh.Phone),
			ShippingAddress:    strings.TrimSpace(sh.Address),
			ShippingCity:       strings.TrimSpace(sh.City),
			ShippingPostalCode: strings.TrimSpace(sh.PostalCode),
			ShippingCountry:    strings.TrimSpace(sh.Country),
			IdempotencyKey:     key,
			CreatedAt:          now,
			UpdatedAt:          now,
		}

		// 注文作成
		if err := r.Orders().Create(ctx, order); err != nil {
			if errors.Is(err, repo.ErrConflict) {
				return err
			}
			return dbError(ctx, u.log, "order.create", err)
		}

		//注文明細一括作成
		if err := r.OrderItems().CreateBulk(ctx, orderID, orderItems); err != nil {
			return dbError(ctx, u.log, "order.items.create", err)
		}
		if err := r.Inventory().CreateAdjustments(ctx, adjs); err != nil {
			return dbError(ctx, u.log, "order.adjustments", err)
		}

		//カートを空に（再注文防止）
		if err := r.CartItems().ClearByUserID(ctx, userID); err != nil {
			return dbError(ctx, u.log, "order.cart.clear", err)
		}

		out = toOrderOutput(order, orderItems)
		created = true
		return nil
	})

	//同時に同じキーが入った。ロールバック済みなので読み直して同じ結果を返す
	if errors.Is(err, repo.ErrConflict) {
		return u.findByIdempotencyKey(ctx, userID, key)
	}
	if err != nil {
		return OrderOutput{}, err
	}

	if created {
		u.metrics.OrderCreated()
		logger.FromContext(ctx, u.log).InfoContext(ctx, "order placed",
			"order_id", out.ID, "user_id", userID, "items", len(out.Items), "total", out.TotalAmount.StringFixed(2))
	}
	return out, nil
}

func (u *OrderUsecase) findByIdempotencyKey(ctx context.Context, userID string, key string) (OrderOutput, error) {
	var out OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, found, err := r.Orders().FindByIdempotencyKey(ctx, userID, key)
		if err != nil {
			return dbError(ctx, u.log, "order.find_idempotency", err)
		}
		if !found {
			return NewHTTPError(http.StatusConflict, "idempotency conflict")
		}
		items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return dbError(ctx, u.log, "order.items", err)
		}
		out = toOrderOutput(o, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID string) ([]OrderOutput, error) {
	if strings.TrimSpace(userID) == "" {
		return []OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	//ページングでまずは固定で取る
	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, _, err := r.Orders().ListByUserID(ctx, userID, 1, 50)
		if err != nil {
			return dbError(ctx, u.log, "order.list", err)
		}

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return dbError(ctx, u.log, "order.items", err)
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

// 注文確認画面用
func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, userID string, orderID string) (OrderOutput, error) {
	if strings.TrimSpace(userID) == "" {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if strings.TrimSpace(orderID) == "" {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return dbError(ctx, u.log, "order.find", err)
		}
		if o.UserID != userID {
			//他人の注文は「存在しない扱い」にする
			return NewHTTPError(http.StatusNotFound, "not found")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return dbError(ctx, u.log, "order.items", err)
		}

		out = toOrderOutput(o, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID: it.ProductID,
			Name:      it.ProductNameSnapshot,
			Price:     it.UnitPriceSnapshot,
			Quantity:  it.Quantity,
		})
	}

	return OrderOutput{
		ID:          o.ID,
		UserID:      o.UserID,
		Status:      string(o.Status),
		Subtotal:    o.Subtotal,
		ShippingFee: o.ShippingFee,
		Tax:         o.Tax,
		TotalAmount: o.TotalAmount,
		Currency:    o.Currency,
		Shipping: ShippingOutput{
			FullName:   o.ShippingName,
			Email:      o.ContactEmail,
			Phone:      o.ContactPhone,
			Address:    o.ShippingAddress,
			City:       o.ShippingCity,
			PostalCode: o.ShippingPostalCode,
			Country:    o.ShippingCountry,
		},
		PaidAt:    o.PaidAt,
		CreatedAt: o.CreatedAt,
		Items:     outItems,
	}
}
