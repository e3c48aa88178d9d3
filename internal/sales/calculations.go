package sales

import "math"

// Totals is the money breakdown of a transaction.
type Totals struct {
	Subtotal       float64
	DiscountAmount float64
	TaxAmount      float64
	Total          float64
}

// CalculateLine prices one cart line. A percentage discount is applied first,
// then the flat discount; the final price never drops below zero.
func CalculateLine(quantity int, unitPrice, discountPercent, discountAmount float64) (gross, discount, final float64) {
	gross = round2(float64(quantity) * unitPrice)
	discount = round2(gross*(discountPercent/100) + discountAmount)
	if discount > gross {
		discount = gross
	}
	final = round2(gross - discount)
	return
}

// CalculateTotals sums line final prices, applies the transaction discount
// and taxes the discounted taxable portion.
func CalculateTotals(items []Item, discountPercent, taxPercent float64) Totals {
	var subtotal, taxable float64
	for _, it := range items {
		subtotal += it.FinalPrice
		if it.Taxable {
			taxable += it.FinalPrice
		}
	}
	subtotal = round2(subtotal)
	discount := round2(subtotal * (discountPercent / 100))
	tax := round2(taxable * (1 - discountPercent/100) * (taxPercent / 100))
	return Totals{
		Subtotal:       subtotal,
		DiscountAmount: discount,
		TaxAmount:      tax,
		Total:          round2(subtotal - discount + tax),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
