package core

import (
	"strings"
)

// Currency is an ISO 4217 code.
type Currency string

const (
	UZS Currency = "UZS"
	USD Currency = "USD"
	EUR Currency = "EUR"
	RUB Currency = "RUB"
	GBP Currency = "GBP"
	CNY Currency = "CNY"
	JPY Currency = "JPY"
	KRW Currency = "KRW"
	KZT Currency = "KZT"
	TRY Currency = "TRY"
)

// SupportedCurrencies lists every currency the system quotes, base first.
var SupportedCurrencies = []Currency{UZS, USD, EUR, RUB, GBP, CNY, JPY, KRW, KZT, TRY}

// IsSupported reports whether c belongs to the supported set.
func (c Currency) IsSupported() bool {
	for _, s := range SupportedCurrencies {
		if s == c {
			return true
		}
	}
	return false
}

// MinorUnits is the number of decimal places used when rounding amounts in c.
// The sum is displayed without tiyin, yen and won have no minor unit.
func (c Currency) MinorUnits() int32 {
	switch c {
	case UZS, JPY, KRW:
		return 0
	default:
		return 2
	}
}

func (c Currency) String() string {
	return string(c)
}

// ParseCurrency normalizes s and validates it against the supported set.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsSupported() {
		return "", ErrUnsupportedCurrency
	}
	return c, nil
}
