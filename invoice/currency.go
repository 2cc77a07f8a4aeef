package invoice

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
)

type currencyInfo struct {
	Symbol string
	Label  string
}

var currencies = map[Currency]currencyInfo{
	USD: {Symbol: "$", Label: "US Dollar"},
	EUR: {Symbol: "€", Label: "Euro"},
	GBP: {Symbol: "£", Label: "British Pound"},
}

// Currencies in display order
func Currencies() []Currency {
	return []Currency{USD, EUR, GBP}
}

func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := currencies[c]; !ok {
		return "", fmt.Errorf("unsupported currency %q", s)
	}
	return c, nil
}

func (c Currency) Valid() bool {
	_, ok := currencies[c]
	return ok
}

// Symbol returns the display symbol. Unknown codes display as the code itself.
func (c Currency) Symbol() string {
	if info, ok := currencies[c]; ok {
		return info.Symbol
	}
	return string(c)
}

func (c Currency) Label() string {
	return currencies[c].Label
}

var amountPrinter = message.NewPrinter(language.AmericanEnglish)

// FormatAmount renders an amount for display: symbol, thousands grouping, 2 decimals.
// Negative amounts put the sign before the symbol, e.g. -$6.50
func FormatAmount(amount decimal.Decimal, c Currency) string {
	f, _ := amount.Round(2).Float64()
	sign := ""
	if f < 0 {
		sign = "-"
		f = -f
	}
	return sign + c.Symbol() + amountPrinter.Sprint(number.Decimal(f, number.Scale(2)))
}
