package validator

import (
	"context"
	"testing"

	"storefront/internal/usecase"

	"github.com/stretchr/testify/assert"
)

func validShipping() usecase.ShippingInput {
	return usecase.ShippingInput{
		FullName:   "Ayesha Rahman",
		Email:      "ayesha@example.com",
		Phone:      "+880 1700-000000",
		Address:    "House 1, Road 2",
		City:       "Dhaka",
		PostalCode: "1207",
		Country:    "Bangladesh",
	}
}

func TestValidateShipping_OK(t *testing.T) {
	v := NewCheckoutValidator()
	assert.NoError(t, v.ValidateShipping(context.Background(), validShipping()))
}

func TestValidateShipping_Errors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(in *usecase.ShippingInput)
		msg    string
	}{
		{"missing name", func(in *usecase.ShippingInput) { in.FullName = "  " }, "full_name is required"},
		{"missing city", func(in *usecase.ShippingInput) { in.City = "" }, "city is required"},
		{"bad email", func(in *usecase.ShippingInput) { in.Email = "nope" }, "email is invalid"},
		{"bad phone", func(in *usecase.ShippingInput) { in.Phone = "call me" }, "phone is invalid"},
	}

	v := NewCheckoutValidator()
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			in := validShipping()
			c.mutate(&in)

			err := v.ValidateShipping(context.Background(), in)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.ErrorContains(t, err, c.msg)
		})
	}
}
