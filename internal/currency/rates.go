// Package currency normalizes amounts between currencies.
//
// Every conversion goes through a RateTable: an immutable snapshot of
// "base units per one unit of currency" quotes. The canonical base is UZS.
package currency

import (
	"time"

	"github.com/shopspring/decimal"

	"hisob/internal/core"
)

// RateTable is an immutable set of quotes expressed against one base currency.
type RateTable struct {
	base  core.Currency
	rates map[core.Currency]decimal.Decimal
	asOf  time.Time
}

// NewRateTable copies rates into a new table. The base currency always quotes 1.
func NewRateTable(base core.Currency, rates map[core.Currency]decimal.Decimal, asOf time.Time) RateTable {
	cp := make(map[core.Currency]decimal.Decimal, len(rates)+1)
	for c, r := range rates {
		if r.IsPositive() {
			cp[c] = r
		}
	}
	cp[base] = decimal.NewFromInt(1)
	return RateTable{base: base, rates: cp, asOf: asOf}
}

// staticRates are the fallback quotes in UZS. USD, EUR, CNY and RUB follow the
// dashboard constants; the rest are derived from the USD cross rates.
var staticRates = map[core.Currency]string{
	core.UZS: "1",
	core.USD: "12500",
	core.EUR: "13500",
	core.RUB: "130",
	core.GBP: "15822.78",
	core.CNY: "1740",
	core.JPY: "84.46",
	core.KRW: "9.47",
	core.KZT: "27.17",
	core.TRY: "390.63",
}

// StaticTable returns the built-in fallback table with UZS as base.
func StaticTable() RateTable {
	rates := make(map[core.Currency]decimal.Decimal, len(staticRates))
	for c, s := range staticRates {
		rates[c] = decimal.RequireFromString(s)
	}
	return NewRateTable(core.UZS, rates, time.Time{})
}

// Base returns the reference currency of the table.
func (t RateTable) Base() core.Currency {
	if t.base == "" {
		return core.UZS
	}
	return t.base
}

// AsOf returns when the quotes were taken. Zero for the static table.
func (t RateTable) AsOf() time.Time {
	return t.asOf
}

// Rate returns base units per one unit of c. Unknown codes quote 1.
func (t RateTable) Rate(c core.Currency) decimal.Decimal {
	if r, ok := t.rates[c]; ok {
		return r
	}
	return decimal.NewFromInt(1)
}

// Has reports whether c is quoted explicitly.
func (t RateTable) Has(c core.Currency) bool {
	_, ok := t.rates[c]
	return ok
}

// Rates returns a copy of all explicit quotes.
func (t RateTable) Rates() map[core.Currency]decimal.Decimal {
	cp := make(map[core.Currency]decimal.Decimal, len(t.rates))
	for c, r := range t.rates {
		cp[c] = r
	}
	return cp
}

// With returns a copy of the table with c quoted at rate.
func (t RateTable) With(c core.Currency, rate decimal.Decimal) RateTable {
	rates := t.Rates()
	rates[c] = rate
	return NewRateTable(t.Base(), rates, t.asOf)
}

// Rebase expresses the table against a different base currency.
func (t RateTable) Rebase(base core.Currency) RateTable {
	if base == t.Base() {
		return t
	}
	pivot := t.Rate(base)
	rates := make(map[core.Currency]decimal.Decimal, len(t.rates))
	for c, r := range t.rates {
		rates[c] = r.Div(pivot)
	}
	return NewRateTable(base, rates, t.asOf)
}

// FromQuotes builds a UZS table from provider quotes expressed as "units of
// currency per one quoteBase" (the shape returned by public rate APIs).
// Currencies the provider does not quote keep their fallback rate, and so does
// the UZS/quoteBase cross when the provider omits UZS.
func FromQuotes(quoteBase core.Currency, quotes map[core.Currency]decimal.Decimal, fallback RateTable, asOf time.Time) RateTable {
	fallback = fallback.Rebase(core.UZS)

	basePerQuote := fallback.Rate(quoteBase)
	if uzs, ok := quotes[core.UZS]; ok && uzs.IsPositive() {
		basePerQuote = uzs
	}

	rates := fallback.Rates()
	rates[quoteBase] = basePerQuote
	for c, perQuote := range quotes {
		if c == core.UZS || c == quoteBase || !perQuote.IsPositive() || !c.IsSupported() {
			continue
		}
		rates[c] = basePerQuote.Div(perQuote)
	}
	return NewRateTable(core.UZS, rates, asOf)
}
