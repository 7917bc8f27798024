package handler

import (
	"net/http"

	"storefront/internal/config"
	"storefront/internal/middleware"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// POST /checkout は注文作成と決済セッション作成を続けて行う
type CheckoutHandler struct {
	orders   *usecase.OrderUsecase
	payments *usecase.PaymentUsecase
}

func NewCheckoutHandler(orders *usecase.OrderUsecase, payments *usecase.PaymentUsecase) *CheckoutHandler {
	return &CheckoutHandler{orders: orders, payments: payments}
}

type CheckoutRequest struct {
	FullName   string `json:"fullName"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type CheckoutResponse struct {
	Order usecase.OrderOutput `json:"order"`
	URL   string              `json:"url"`
}

// 決済だけ失敗したとき。注文はpendingのまま残る
type CheckoutPaymentErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	OrderID string `json:"order_id"`
}

func (h *CheckoutHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	e.POST("/checkout", h.checkout, middleware.AuthJWT(cfg))
}

func (h *CheckoutHandler) checkout(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	//二重送信防止キーはヘッダーから受け取る（bodyには入れない）
	idemKey := c.Request().Header.Get("X-Idempotency-Key")

	ctx := c.Request().Context()
	order, err := h.orders.PlaceOrder(ctx, userID, usecase.PlaceOrderInput{
		Shipping: usecase.ShippingInput{
			FullName:   req.FullName,
			Email:      req.Email,
			Phone:      req.Phone,
			Address:    req.Address,
			City:       req.City,
			PostalCode: req.PostalCode,
			Country:    req.Country,
		},
		IdempotencyKey: idemKey,
	})
	if err != nil {
		return writeError(c, err)
	}

	pay, err := h.payments.InitiatePayment(ctx, userID, usecase.InitiatePaymentInput{OrderID: order.ID})
	if err != nil {
		status := http.StatusInternalServerError
		body := CheckoutPaymentErrorResponse{Error: "Failed to initiate payment", OrderID: order.ID}
		if he, ok := usecase.AsHTTPError(err); ok {
			status = he.Status
			body.Error = he.Message
			body.Details = he.Details
		}
		return c.JSON(status, body)
	}

	return c.JSON(http.StatusOK, CheckoutResponse{Order: order, URL: pay.URL})
}
