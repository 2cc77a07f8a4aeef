package invoice

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

var ErrInvalidValue = errors.New("invoice: invalid value")

// InvoiceUpdate sets one direct Invoice field. The set of implementations is closed.
type InvoiceUpdate interface {
	applyInvoice(inv *Invoice)
}

type (
	SetInvoiceNumber struct{ Value string }
	SetDate          struct{ Value Date }
	SetDueDate       struct{ Value Date }
	SetCurrency      struct{ Value Currency }
	SetTaxRate       struct{ Value decimal.Decimal }
	SetDiscountRate  struct{ Value decimal.Decimal }
	SetNotes         struct{ Value string }
	SetTerms         struct{ Value string }
)

func (u SetInvoiceNumber) applyInvoice(inv *Invoice) { inv.InvoiceNumber = u.Value }
func (u SetDate) applyInvoice(inv *Invoice)          { inv.Date = u.Value }
func (u SetDueDate) applyInvoice(inv *Invoice)       { inv.DueDate = u.Value }
func (u SetCurrency) applyInvoice(inv *Invoice)      { inv.Currency = u.Value }
func (u SetTaxRate) applyInvoice(inv *Invoice)       { inv.TaxRate = u.Value }
func (u SetDiscountRate) applyInvoice(inv *Invoice)  { inv.DiscountRate = u.Value }
func (u SetNotes) applyInvoice(inv *Invoice)         { inv.Notes = u.Value }
func (u SetTerms) applyInvoice(inv *Invoice)         { inv.Terms = u.Value }

// PartyUpdate sets one field shared by sender and client.
type PartyUpdate interface {
	SenderUpdate
	applyParty(p *Party)
}

// SenderUpdate is any PartyUpdate plus the sender-only logo.
type SenderUpdate interface {
	applySender(s *Sender)
}

type (
	SetPartyName    struct{ Value string }
	SetPartyAddress struct{ Value string }
	SetPartyEmail   struct{ Value string }
	SetSenderLogo   struct{ Value string }
)

func (u SetPartyName) applyParty(p *Party)    { p.Name = u.Value }
func (u SetPartyAddress) applyParty(p *Party) { p.Address = u.Value }
func (u SetPartyEmail) applyParty(p *Party)   { p.Email = u.Value }

func (u SetPartyName) applySender(s *Sender)    { u.applyParty(&s.Party) }
func (u SetPartyAddress) applySender(s *Sender) { u.applyParty(&s.Party) }
func (u SetPartyEmail) applySender(s *Sender)   { u.applyParty(&s.Party) }
func (u SetSenderLogo) applySender(s *Sender)   { s.Logo = u.Value }

// ItemUpdate sets one field of a LineItem.
type ItemUpdate interface {
	applyItem(item *LineItem)
	touchesAmount() bool
}

type (
	SetItemID          struct{ Value string }
	SetItemDescription struct{ Value string }
	SetItemQuantity    struct{ Value decimal.Decimal }
	SetItemRate        struct{ Value decimal.Decimal }
)

func (u SetItemID) applyItem(item *LineItem)          { item.ID = u.Value }
func (u SetItemDescription) applyItem(item *LineItem) { item.Description = u.Value }
func (u SetItemQuantity) applyItem(item *LineItem)    { item.Quantity = u.Value }
func (u SetItemRate) applyItem(item *LineItem)        { item.Rate = u.Value }

func (SetItemID) touchesAmount() bool          { return false }
func (SetItemDescription) touchesAmount() bool { return false }
func (SetItemQuantity) touchesAmount() bool    { return true }
func (SetItemRate) touchesAmount() bool        { return true }

//---- Boundary parsing ----
// Field names follow the persisted JSON schema. Numeric input that does not parse
// is coerced to zero and flows through arithmetic unchanged.

func ParseInvoiceUpdate(field string, value any) (InvoiceUpdate, error) {
	switch field {
	case "invoiceNumber":
		return SetInvoiceNumber{Value: coerceString(value)}, nil
	case "date":
		d, err := coerceDate(value)
		if err != nil {
			return nil, err
		}
		return SetDate{Value: d}, nil
	case "dueDate":
		d, err := coerceDate(value)
		if err != nil {
			return nil, err
		}
		return SetDueDate{Value: d}, nil
	case "currency":
		c, err := ParseCurrency(coerceString(value))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return SetCurrency{Value: c}, nil
	case "taxRate":
		return SetTaxRate{Value: CoerceDecimal(value)}, nil
	case "discountRate":
		return SetDiscountRate{Value: CoerceDecimal(value)}, nil
	case "notes":
		return SetNotes{Value: coerceString(value)}, nil
	case "terms":
		return SetTerms{Value: coerceString(value)}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownField, field)
}

func ParsePartyUpdate(field string, value any) (PartyUpdate, error) {
	switch field {
	case "name":
		return SetPartyName{Value: coerceString(value)}, nil
	case "address":
		return SetPartyAddress{Value: coerceString(value)}, nil
	case "email":
		return SetPartyEmail{Value: coerceString(value)}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownField, field)
}

func ParseSenderUpdate(field string, value any) (SenderUpdate, error) {
	if field == "logo" {
		return SetSenderLogo{Value: coerceString(value)}, nil
	}
	return ParsePartyUpdate(field, value)
}

func ParseItemUpdate(field string, value any) (ItemUpdate, error) {
	switch field {
	case "id":
		return SetItemID{Value: coerceString(value)}, nil
	case "description":
		return SetItemDescription{Value: coerceString(value)}, nil
	case "quantity":
		return SetItemQuantity{Value: CoerceDecimal(value)}, nil
	case "rate":
		return SetItemRate{Value: CoerceDecimal(value)}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownField, field)
}

// CoerceDecimal converts loosely-typed input to a decimal. Anything unparsable is zero.
func CoerceDecimal(value any) decimal.Decimal {
	switch v := value.(type) {
	case decimal.Decimal:
		return v
	case float64:
		return decimal.NewFromFloat(v)
	case float32:
		return decimal.NewFromFloat32(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero
		}
		return d
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Zero
		}
		return d
	}
	return decimal.Zero
}

func coerceString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	}
	return fmt.Sprint(value)
}

func coerceDate(value any) (Date, error) {
	s := coerceString(value)
	if strings.TrimSpace(s) == "" {
		return Date{}, nil
	}
	d, err := ParseDate(s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return d, nil
}
