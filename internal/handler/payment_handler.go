package handler

import (
	"net/http"
	"net/url"
	"strings"

	"storefront/internal/config"
	"storefront/internal/middleware"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// /payment/* のHTTP。
// success/fail/cancel はブラウザがゲートウェイからPOSTしてくるのでリダイレクトで返す。
type PaymentHandler struct {
	payments   *usecase.PaymentUsecase
	settlement *usecase.SettlementUsecase
	appURL     string
}

func NewPaymentHandler(payments *usecase.PaymentUsecase, settlement *usecase.SettlementUsecase, appURL string) *PaymentHandler {
	return &PaymentHandler{
		payments:   payments,
		settlement: settlement,
		appURL:     strings.TrimRight(appURL, "/"),
	}
}

type InitiatePaymentRequest struct {
	OrderID  string                `json:"orderId"`
	Amount   *decimal.Decimal      `json:"amount"`
	Customer usecase.CustomerInput `json:"customer"`
}

func (h *PaymentHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/payment")

	g.POST("/init", h.initiate, middleware.AuthJWT(cfg))

	//ゲートウェイからのコールバック（認証なし。tran_idで照合する）
	g.POST("/success", h.success)
	g.POST("/fail", h.fail)
	g.POST("/cancel", h.cancel)
	g.POST("/ipn", h.ipn)
}

func (h *PaymentHandler) initiate(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req InitiatePaymentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.payments.InitiatePayment(c.Request().Context(), userID, usecase.InitiatePaymentInput{
		OrderID:  req.OrderID,
		Amount:   req.Amount,
		Customer: req.Customer,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PaymentHandler) success(c echo.Context) error {
	res, _ := h.settlement.HandleSuccess(c.Request().Context(), callbackInput(c))
	if res.Accepted {
		return c.Redirect(http.StatusSeeOther, h.redirectURL("/order-success", "", res.OrderID))
	}
	return c.Redirect(http.StatusSeeOther, h.redirectURL("/checkout", "payment_failed", res.OrderID))
}

func (h *PaymentHandler) fail(c echo.Context) error {
	res, _ := h.settlement.HandleFailure(c.Request().Context(), callbackInput(c))
	return c.Redirect(http.StatusSeeOther, h.redirectURL("/checkout", "payment_failed", res.OrderID))
}

func (h *PaymentHandler) cancel(c echo.Context) error {
	res, _ := h.settlement.HandleCancel(c.Request().Context(), callbackInput(c))
	return c.Redirect(http.StatusSeeOther, h.redirectURL("/checkout", "payment_cancelled", res.OrderID))
}

// IPNは常に200（結果はpayment_eventsに残る）
func (h *PaymentHandler) ipn(c echo.Context) error {
	_, _ = h.settlement.HandleNotification(c.Request().Context(), callbackInput(c))
	return c.String(http.StatusOK, "OK")
}

func callbackInput(c echo.Context) usecase.CallbackInput {
	return usecase.CallbackInput{
		TranID:       c.FormValue("tran_id"),
		ValID:        c.FormValue("val_id"),
		Status:       c.FormValue("status"),
		Amount:       c.FormValue("amount"),
		QueryOrderID: c.QueryParam("orderId"),
	}
}

func (h *PaymentHandler) redirectURL(path string, errCode string, orderID string) string {
	q := url.Values{}
	if errCode != "" {
		q.Set("error", errCode)
	}
	if orderID != "" {
		q.Set("orderId", orderID)
	}
	if len(q) == 0 {
		return h.appURL + path
	}
	return h.appURL + path + "?" + q.Encode()
}
