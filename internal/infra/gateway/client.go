// Package gateway はホスト型決済ゲートウェイ（SSLCommerz形式）のクライアント。
// セッション作成と検証APIの2つだけを扱う。
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"storefront/internal/metrics"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
)

const (
	initiatePath = "/gwprocess/v4/api.php"
	validatePath = "/validator/api/validationserverAPI.php"
)

type Config struct {
	BaseURL       string
	StoreID       string
	StorePassword string
	Timeout       time.Duration
	// コールバック先（このAPIの公開URL）
	CallbackBaseURL string
}

type Customer struct {
	Name       string
	Email      string
	Phone      string
	Address    string
	City       string
	PostalCode string
	Country    string
}

type SessionRequest struct {
	TranID   string
	Amount   decimal.Decimal
	Currency string
	Customer Customer
}

type Session struct {
	URL        string
	SessionKey string
}

// 検証APIの結果
type Validation struct {
	Status   string
	TranID   string
	ValID    string
	Amount   decimal.Decimal
	Currency string
}

// 成功扱いのステータス
func (v Validation) IsValid() bool {
	return IsValidStatus(v.Status)
}

func IsValidStatus(s string) bool {
	return s == "VALID" || s == "VALIDATED"
}

type Client struct {
	http    *resty.Client
	cfg     Config
	breaker *gobreaker.CircuitBreaker[*resty.Response]
	log     *slog.Logger
	metrics *metrics.Metrics
}

func NewClient(cfg Config, log *slog.Logger, m *metrics.Metrics) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	c := &Client{
		http:    resty.New().SetBaseURL(cfg.BaseURL).SetTimeout(cfg.Timeout),
		cfg:     cfg,
		log:     log,
		metrics: m,
	}

	c.breaker = gobreaker.NewCircuitBreaker[*resty.Response](gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// InitiateSession はセッションを作り、ブラウザを飛ばすURLを返す
func (c *Client) InitiateSession(ctx context.Context, req SessionRequest) (Session, error) {
	start := time.Now()
	form := c.sessionForm(req)

	resp, err := c.call(ctx, "initiate", func() (*resty.Response, error) {
		return c.http.R().SetContext(ctx).SetFormData(form).Post(initiatePath)
	})
	if err != nil {
		c.metrics.ObserveGateway("initiate", "transport_error", time.Since(start))
		return Session{}, err
	}

	var payload map[string]any
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		c.metrics.ObserveGateway("initiate", "transport_error", time.Since(start))
		return Session{}, &Error{Op: "initiate", Reason: "invalid gateway response", Transport: true, Err: err}
	}

	status, _ := payload["status"].(string)
	pageURL, _ := payload["GatewayPageURL"].(string)
	if status != "SUCCESS" || pageURL == "" {
		reason, _ := payload["failedreason"].(string)
		if reason == "" {
			reason = "gateway rejected the session"
		}
		c.metrics.ObserveGateway("initiate", "rejected", time.Since(start))
		c.log.Warn("gateway rejected session", "tran_id", req.TranID, "status", status, "payload", payload)
		return Session{}, &Error{Op: "initiate", Reason: reason, Payload: payload}
	}

	c.metrics.ObserveGateway("initiate", "ok", time.Since(start))
	key, _ := payload["sessionkey"].(string)
	return Session{URL: pageURL, SessionKey: key}, nil
}

// ValidateTransaction は val_id を検証APIで確認する
func (c *Client) ValidateTransaction(ctx context.Context, valID string) (Validation, error) {
	if valID == "" {
		return Validation{}, &Error{Op: "validate", Reason: "missing val_id"}
	}
	start := time.Now()

	resp, err := c.call(ctx, "validate", func() (*resty.Response, error) {
		return c.http.R().SetContext(ctx).SetQueryParams(map[string]string{
			"val_id":       valID,
			"store_id":     c.cfg.StoreID,
			"store_passwd": c.cfg.StorePassword,
			"format":       "json",
		}).Get(validatePath)
	})
	if err != nil {
		c.metrics.ObserveGateway("validate", "transport_error", time.Since(start))
		return Validation{}, err
	}

	var body struct {
		Status   string          `json:"status"`
		TranID   string          `json:"tran_id"`
		ValID    string          `json:"val_id"`
		Amount   decimal.Decimal `json:"amount"`
		Currency string          `json:"currency"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		c.metrics.ObserveGateway("validate", "transport_error", time.Since(start))
		return Validation{}, &Error{Op: "validate", Reason: "invalid gateway response", Transport: true, Err: err}
	}

	c.metrics.ObserveGateway("validate", "ok", time.Since(start))
	return Validation{
		Status:   body.Status,
		TranID:   body.TranID,
		ValID:    body.ValID,
		Amount:   body.Amount,
		Currency: body.Currency,
	}, nil
}

// 5xxと通信エラーだけブレーカーの失敗に数える
func (c *Client) call(ctx context.Context, op string, do func() (*resty.Response, error)) (*resty.Response, error) {
	resp, err := c.breaker.Execute(func() (*resty.Response, error) {
		r, err := do()
		if err != nil {
			return nil, err
		}
		if r.StatusCode() >= 500 {
			return r, fmt.Errorf("gateway status %d", r.StatusCode())
		}
		return r, nil
	})
	if err == nil {
		return resp, nil
	}

	reason := "gateway unreachable"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		reason = "gateway temporarily unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		reason = "gateway timeout"
	}
	c.log.ErrorContext(ctx, "gateway call failed", "op", op, "error", err)
	return nil, &Error{Op: op, Reason: reason, Transport: true, Err: err}
}

func (c *Client) sessionForm(req SessionRequest) map[string]string {
	cus := req.Customer
	q := url.QueryEscape(req.TranID)
	base := c.cfg.CallbackBaseURL

	return map[string]string{
		"store_id":         c.cfg.StoreID,
		"store_passwd":     c.cfg.StorePassword,
		"total_amount":     req.Amount.StringFixed(2),
		"currency":         req.Currency,
		"tran_id":          req.TranID,
		"success_url":      base + "/payment/success?orderId=" + q,
		"fail_url":         base + "/payment/fail?orderId=" + q,
		"cancel_url":       base + "/payment/cancel?orderId=" + q,
		"ipn_url":          base + "/payment/ipn?orderId=" + q,
		"shipping_method":  "NO",
		"product_name":     "Jewelry",
		"product_category": "Jewelry",
		"product_profile":  "general",

		"cus_name":     cus.Name,
		"cus_email":    cus.Email,
		"cus_add1":     cus.Address,
		"cus_add2":     "",
		"cus_city":     cus.City,
		"cus_state":    cus.City,
		"cus_postcode": cus.PostalCode,
		"cus_country":  cus.Country,
		"cus_phone":    cus.Phone,
		"cus_fax":      cus.Phone,

		"ship_name":     cus.Name,
		"ship_add1":     cus.Address,
		"ship_add2":     "",
		"ship_city":     cus.City,
		"ship_state":    cus.City,
		"ship_postcode": cus.PostalCode,
		"ship_country":  cus.Country,
	}
}
