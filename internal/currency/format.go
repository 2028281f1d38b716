package currency

import (
	"strings"

	"github.com/shopspring/decimal"

	"hisob/internal/core"
)

// Info describes a supported currency for pickers and exports.
type Info struct {
	Code   core.Currency `json:"code"`
	Name   string        `json:"name"`
	Symbol string        `json:"symbol"`
}

var infos = map[core.Currency]Info{
	core.UZS: {core.UZS, "Oʻzbek soʻmi", "soʻm"},
	core.USD: {core.USD, "AQSH dollari", "$"},
	core.EUR: {core.EUR, "Yevro", "€"},
	core.RUB: {core.RUB, "Rus rubli", "₽"},
	core.GBP: {core.GBP, "Funt sterling", "£"},
	core.CNY: {core.CNY, "Xitoy yuani", "¥"},
	core.JPY: {core.JPY, "Yapon iyenasi", "¥"},
	core.KRW: {core.KRW, "Janubiy Koreya voni", "₩"},
	core.KZT: {core.KZT, "Qozoq tengesi", "₸"},
	core.TRY: {core.TRY, "Turk lirasi", "₺"},
}

// Supported returns metadata for every supported currency, base first.
func Supported() []Info {
	out := make([]Info, 0, len(core.SupportedCurrencies))
	for _, c := range core.SupportedCurrencies {
		out = append(out, infos[c])
	}
	return out
}

// Symbol returns the display symbol of c, or the code itself when unknown.
func Symbol(c core.Currency) string {
	if i, ok := infos[c]; ok {
		return i.Symbol
	}
	return string(c)
}

// Format renders amount the Uzbek way: space thousands separator, decimal
// comma, no fraction for UZS. Dollar, euro and pound put the symbol first.
//
//	Format(1250000, UZS) -> "1 250 000 soʻm"
//	Format(1234.5, USD)  -> "$1 234,50"
//	Format(99.9, RUB)    -> "99,90 ₽"
func Format(amount decimal.Decimal, c core.Currency) string {
	places := c.MinorUnits()
	if c != core.UZS {
		places = 2
	}
	neg := amount.IsNegative()
	fixed := core.RoundHalfUp(amount.Abs(), places).StringFixed(places)

	intPart, fracPart, _ := strings.Cut(fixed, ".")
	num := groupThousands(intPart)
	if fracPart != "" {
		num += "," + fracPart
	}
	sign := ""
	if neg && !core.RoundHalfUp(amount.Abs(), places).IsZero() {
		sign = "-"
	}

	switch c {
	case core.USD, core.EUR, core.GBP:
		return sign + Symbol(c) + num
	default:
		return sign + num + " " + Symbol(c)
	}
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// TaxResult is the outcome of CalculateTax.
type TaxResult struct {
	Gross     decimal.Decimal `json:"gross"`
	Rate      decimal.Decimal `json:"rate"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
	Net       decimal.Decimal `json:"net"`
	Currency  core.Currency   `json:"currency"`
}

var defaultTaxRates = map[core.Currency]decimal.Decimal{
	core.UZS: decimal.NewFromInt(12),
	core.USD: decimal.NewFromInt(10),
	core.EUR: decimal.NewFromInt(20),
	core.RUB: decimal.NewFromInt(20),
}

// DefaultTaxRate returns the percentage applied when no explicit rate is given.
func DefaultTaxRate(c core.Currency) decimal.Decimal {
	if r, ok := defaultTaxRates[c]; ok {
		return r
	}
	return decimal.NewFromInt(10)
}

// CalculateTax applies rate percent to amount, rounding the tax half-up to
// cents. A nil rate selects the currency default.
func CalculateTax(amount decimal.Decimal, rate *decimal.Decimal, c core.Currency) TaxResult {
	r := DefaultTaxRate(c)
	if rate != nil {
		r = *rate
	}
	tax := core.RoundHalfUp(amount.Mul(r).Div(decimal.NewFromInt(100)), 2)
	return TaxResult{
		Gross:     amount,
		Rate:      r,
		TaxAmount: tax,
		Net:       amount.Sub(tax),
		Currency:  c,
	}
}
