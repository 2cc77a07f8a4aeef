package invoice

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Recompute restores every derived field from the editable ones.
// Applying it twice yields the same invoice.
func Recompute(inv *Invoice) {
	subtotal := decimal.Zero
	for i := range inv.Items {
		inv.Items[i].Amount = inv.Items[i].Quantity.Mul(inv.Items[i].Rate)
		subtotal = subtotal.Add(inv.Items[i].Amount)
	}
	inv.Subtotal = subtotal
	inv.TaxAmount = subtotal.Mul(inv.TaxRate).Div(hundred)
	inv.DiscountAmount = subtotal.Mul(inv.DiscountRate).Div(hundred)
	inv.Total = subtotal.Add(inv.TaxAmount).Sub(inv.DiscountAmount)
}
