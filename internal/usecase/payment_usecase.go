package usecase

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"storefront/internal/domain/model"
	"storefront/internal/infra/gateway"
	"storefront/internal/logger"
	repo "storefront/internal/repository"

	"github.com/shopspring/decimal"
)

// 決済ゲートウェイの約束（テストではモック）
type PaymentGateway interface {
	InitiateSession(ctx context.Context, req gateway.SessionRequest) (gateway.Session, error)
	ValidateTransaction(ctx context.Context, valID string) (gateway.Validation, error)
}

type PaymentUsecase struct {
	orders  repo.OrderRepository
	gateway PaymentGateway
	log     *slog.Logger
}

func NewPaymentUsecase(orders repo.OrderRepository, gw PaymentGateway, log *slog.Logger) *PaymentUsecase {
	return &PaymentUsecase{orders: orders, gateway: gw, log: log}
}

// 空の項目は注文に保存した配送先で埋める
type CustomerInput struct {
	FullName   string `json:"fullName"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type InitiatePaymentInput struct {
	OrderID string
	// 指定されたら注文の合計と一致しないといけない
	Amount   *decimal.Decimal
	Customer CustomerInput
}

type InitiatePaymentOutput struct {
	URL string `json:"url"`
}

// InitiatePayment はpendingの注文に対して決済セッションを作る。
// 失敗しても注文はpendingのまま。
func (u *PaymentUsecase) InitiatePayment(ctx context.Context, userID string, in InitiatePaymentInput) (InitiatePaymentOutput, error) {
	if strings.TrimSpace(userID) == "" {
		return InitiatePaymentOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	orderID := strings.TrimSpace(in.OrderID)
	if orderID == "" {
		return InitiatePaymentOutput{}, NewHTTPError(http.StatusBadRequest, "invalid orderId")
	}

	o, err := u.orders.FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return InitiatePaymentOutput{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return InitiatePaymentOutput{}, dbError(ctx, u.log, "payment.order", err)
	}
	if o.UserID != userID {
		return InitiatePaymentOutput{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	//失敗/キャンセル済みの注文は再決済しない（新しくチェックアウトする）
	if o.Status != model.OrderStatusPending {
		return InitiatePaymentOutput{}, NewHTTPError(http.StatusBadRequest, "order is "+string(o.Status))
	}
	if in.Amount != nil && !in.Amount.Equal(o.TotalAmount) {
		return InitiatePaymentOutput{}, NewHTTPError(http.StatusBadRequest, "amount mismatch")
	}

	session, err := u.gateway.InitiateSession(ctx, gateway.SessionRequest{
		TranID:   o.ID,
		Amount:   o.TotalAmount,
		Currency: o.Currency,
		Customer: customerFor(o, in.Customer),
	})
	if err != nil {
		log := logger.FromContext(ctx, u.log)
		var gerr *gateway.Error
		if errors.As(err, &gerr) && !gerr.Transport {
			//理由だけ返す。応答全体はログへ
			log.WarnContext(ctx, "payment initiation rejected", "order_id", o.ID, "reason", gerr.Reason, "payload", gerr.Payload)
			return InitiatePaymentOutput{}, newGatewayHTTPError(http.StatusBadRequest, gerr.Reason)
		}
		log.ErrorContext(ctx, "payment initiation failed", "order_id", o.ID, "error", err)
		details := "gateway unavailable"
		if gerr != nil {
			details = gerr.Reason
		}
		return InitiatePaymentOutput{}, newGatewayHTTPError(http.StatusInternalServerError, details)
	}

	//問い合わせ時にゲートウェイ側のセッションと突き合わせる
	logger.FromContext(ctx, u.log).InfoContext(ctx, "payment session created",
		"order_id", o.ID, "session_key", session.SessionKey)
	return InitiatePaymentOutput{URL: session.URL}, nil
}

func customerFor(o model.Order, c CustomerInput) gateway.Customer {
	pick := func(v string, def string) string {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
		return def
	}
	return gateway.Customer{
		Name:       pick(c.FullName, o.ShippingName),
		Email:      pick(c.Email, o.ContactEmail),
		Phone:      pick(c.Phone, o.ContactPhone),
		Address:    pick(c.Address, o.ShippingAddress),
		City:       pick(c.City, o.ShippingCity),
		PostalCode: pick(c.PostalCode, o.ShippingPostalCode),
		Country:    pick(c.Country, o.ShippingCountry),
	}
}
