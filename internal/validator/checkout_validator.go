package validator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"storefront/internal/usecase"
)

// 入力が不正
var ErrInvalidInput = errors.New("invalid input")

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe = regexp.MustCompile(`^\+?[0-9][0-9\- ]{5,19}$`)
)

type checkoutValidator struct{}

// Usecaseは interface を依存注入
func NewCheckoutValidator() usecase.ShippingValidator {
	return &checkoutValidator{}
}

// 配送先と連絡先を検証
func (v *checkoutValidator) ValidateShipping(ctx context.Context, in usecase.ShippingInput) error {
	// 必須チェック
	required := []struct {
		name  string
		value string
		max   int
	}{
		{"full_name", in.FullName, 255},
		{"email", in.Email, 255},
		{"phone", in.Phone, 50},
		{"address", in.Address, 1000},
		{"city", in.City, 100},
		{"postal_code", in.PostalCode, 20},
		{"country", in.Country, 100},
	}
	for _, f := range required {
		s := strings.TrimSpace(f.value)
		if s == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidInput, f.name)
		}
		if len(s) > f.max {
			return fmt.Errorf("%w: %s is too long", ErrInvalidInput, f.name)
		}
	}

	// email形式
	if !emailRe.MatchString(strings.TrimSpace(in.Email)) {
		return fmt.Errorf("%w: email is invalid", ErrInvalidInput)
	}
	if !phoneRe.MatchString(strings.TrimSpace(in.Phone)) {
		return fmt.Errorf("%w: phone is invalid", ErrInvalidInput)
	}

	return nil
}
