package invoice

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultInvoiceNumber = "INV-001"
	DefaultDueInDays     = 7
	DefaultNotes         = "Thank you for your business!"
	DefaultTerms         = "Payment due within 14 days."
)

// Default returns the starting template dated at now. Derived fields are already consistent.
func Default(now time.Time) *Invoice {
	today := NewDate(now)
	inv := &Invoice{
		InvoiceNumber: DefaultInvoiceNumber,
		Date:          today,
		DueDate:       today.AddDays(DefaultDueInDays),
		Items: []LineItem{{
			ID:          "1",
			Description: "Web Development Services",
			Quantity:    decimal.NewFromInt(1),
			Rate:        decimal.NewFromInt(100),
		}},
		Currency: USD,
		Notes:    DefaultNotes,
		Terms:    DefaultTerms,
	}
	Recompute(inv)
	return inv
}
