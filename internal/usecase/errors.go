package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"storefront/internal/logger"
)

// エラーの種類。HTTPErrorはこのどれかにUnwrapされる
var (
	//400 入力不正・空カート・在庫切れ
	ErrValidation = errors.New("validation error")
	//401 ログインが必要
	ErrAuthRequired = errors.New("auth required")
	//403 権限
	ErrForbidden = errors.New("forbidden")
	//404
	ErrNotFound = errors.New("not found")
	//409
	ErrConflict = errors.New("conflict")
	//500 DBの失敗（握りつぶさない）
	ErrPersistence = errors.New("persistence error")
	//決済ゲートウェイの失敗
	ErrGateway = errors.New("gateway error")
	//コールバックと注文が合わない
	ErrReconciliationMismatch = errors.New("reconciliation mismatch")
)

type HTTPError struct {
	Status  int
	Message string
	// 詳細（ゲートウェイの理由など。短い文字列だけ）
	Details string
	Kind    error
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func (e *HTTPError) Unwrap() error { return e.Kind }

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
		Kind:    kindForStatus(status),
	}
}

func newGatewayHTTPError(status int, details string) error {
	return &HTTPError{
		Status:  status,
		Message: "Failed to initiate payment",
		Details: details,
		Kind:    ErrGateway,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

func kindForStatus(status int) error {
	switch status {
	case http.StatusBadRequest:
		return ErrValidation
	case http.StatusUnauthorized:
		return ErrAuthRequired
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	default:
		return ErrPersistence
	}
}

// DBエラーはログに残してから500にする
func dbError(ctx context.Context, log *slog.Logger, op string, err error) error {
	logger.FromContext(ctx, log).ErrorContext(ctx, "db error", "op", op, "error", err)
	return NewHTTPError(http.StatusInternalServerError, "db error")
}
