// Package pricing は小計・送料・税・合計を計算する。
// カート表示と注文作成は同じCalculatorを使う。
package pricing

import "github.com/shopspring/decimal"

// 1行分（単価×数量）
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int64
}

type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

type Calculator struct {
	FreeShippingThreshold decimal.Decimal
	ShippingFee           decimal.Decimal
	TaxRate               decimal.Decimal
}

// 100以上で送料無料、送料10、税10%
func Default() Calculator {
	return Calculator{
		FreeShippingThreshold: decimal.NewFromInt(100),
		ShippingFee:           decimal.NewFromInt(10),
		TaxRate:               decimal.NewFromFloat(0.10),
	}
}

// Compute は純粋関数。数量1以上の行が無ければ全部0
func (c Calculator) Compute(lines []Line) Totals {
	subtotal := decimal.Zero
	counted := 0
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		counted++
		subtotal = subtotal.Add(l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity)))
	}

	//小計0でも行があれば送料はかかる
	if counted == 0 {
		return Totals{Subtotal: decimal.Zero, Shipping: decimal.Zero, Tax: decimal.Zero, Total: decimal.Zero}
	}

	shipping := c.ShippingFee
	if subtotal.GreaterThanOrEqual(c.FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	//税は小数2桁で四捨五入
	tax := subtotal.Mul(c.TaxRate).Round(2)

	return Totals{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Total:    subtotal.Add(shipping).Add(tax),
	}
}
