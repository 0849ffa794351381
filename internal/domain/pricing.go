package domain

import "github.com/shopspring/decimal"

// Pricing holds the checkout rules applied when a cart becomes an order.
type Pricing struct {
	TaxRate               decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	ShippingFee           decimal.Decimal
	// TaxPlaces is the number of decimal places tax is rounded to, half
	// away from zero. A negative value keeps the exact product.
	TaxPlaces int32
}

type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

func DefaultPricing() Pricing {
	return Pricing{
		TaxRate:               decimal.RequireFromString("0.10"),
		FreeShippingThreshold: decimal.NewFromInt(100),
		ShippingFee:           decimal.NewFromInt(10),
		TaxPlaces:             2,
	}
}

// Quote computes order totals for a subtotal. Shipping is free only
// strictly above the threshold.
func (p Pricing) Quote(subtotal decimal.Decimal) Totals {
	tax := subtotal.Mul(p.TaxRate)
	if p.TaxPlaces >= 0 {
		tax = tax.Round(p.TaxPlaces)
	}

	shipping := p.ShippingFee
	if subtotal.GreaterThan(p.FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	discount := decimal.Zero
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Discount: discount,
		Total:    subtotal.Add(tax).Add(shipping).Sub(discount),
	}
}

func (t Totals) Apply(o *Order) {
	o.Subtotal = t.Subtotal
	o.Tax = t.Tax
	o.Shipping = t.Shipping
	o.Discount = t.Discount
	o.Total = t.Total
}
