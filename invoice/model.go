package invoice

import (
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

const DateLayout = "2006-01-02"

func init() {
	// amounts and rates are persisted as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

// Date is a calendar date without time-of-day. Serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Party is a billing party. Address is free text and keeps its line breaks.
type Party struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Email   string `json:"email"`
}

type Sender struct {
	Party
	Logo string `json:"logo,omitempty"` // image reference: URL or data URI
}

// LineItem - one billable row. Amount is derived from Quantity x Rate
type LineItem struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
	Amount      decimal.Decimal `json:"amount"`
}

// Invoice is the aggregate root being edited and exported.
// Subtotal, TaxAmount, DiscountAmount and Total are derived and only ever written by Recompute.
type Invoice struct {
	ID            string `json:"id"`
	InvoiceNumber string `json:"invoiceNumber"`
	Date          Date   `json:"date"`
	DueDate       Date   `json:"dueDate"`

	Sender Sender `json:"sender"`
	Client Party  `json:"client"`

	Items []LineItem `json:"items"`

	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxRate        decimal.Decimal `json:"taxRate"`
	TaxAmount      decimal.Decimal `json:"taxAmount"`
	DiscountRate   decimal.Decimal `json:"discountRate"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	Total          decimal.Decimal `json:"total"`

	Currency Currency `json:"currency"`
	Notes    string   `json:"notes"`
	Terms    string   `json:"terms"`
}

// Clone returns a deep copy. Items are copied so the clone can be read while the original is mutated.
func (inv *Invoice) Clone() *Invoice {
	c := *inv
	c.Items = make([]LineItem, len(inv.Items))
	copy(c.Items, inv.Items)
	return &c
}

func (inv *Invoice) indexOfItemID(id string) int {
	for i, item := range inv.Items {
		if item.ID == id {
			return i
		}
	}
	return -1
}
