package currency

import (
	"github.com/shopspring/decimal"

	"hisob/internal/core"
)

// ConvertExact converts amount between currencies at full precision.
func ConvertExact(amount decimal.Decimal, from, to core.Currency, table RateTable) decimal.Decimal {
	if from == to {
		return amount
	}
	return amount.Mul(table.Rate(from)).Div(table.Rate(to))
}

// Convert converts amount and rounds half-up to the minor units of to.
// Same-currency conversions return amount untouched.
func Convert(amount decimal.Decimal, from, to core.Currency, table RateTable) decimal.Decimal {
	if from == to {
		return amount
	}
	return core.RoundHalfUp(ConvertExact(amount, from, to, table), to.MinorUnits())
}

// ConvertBulk converts every amount with one rate ratio resolved up front.
func ConvertBulk(amounts []decimal.Decimal, from, to core.Currency, table RateTable) []decimal.Decimal {
	out := make([]decimal.Decimal, len(amounts))
	if from == to {
		copy(out, amounts)
		return out
	}
	fromRate, toRate := table.Rate(from), table.Rate(to)
	places := to.MinorUnits()
	for i, a := range amounts {
		out[i] = core.RoundHalfUp(a.Mul(fromRate).Div(toRate), places)
	}
	return out
}

// Value returns the exact worth of tx in target: its base value from ToBase,
// converted once from base into target with table. Callers round after
// summing.
func Value(tx core.Transaction, target core.Currency, table RateTable) decimal.Decimal {
	return ConvertExact(ToBase(tx, table), table.Base(), target, table)
}

// ToBase returns the base-currency value of a transaction. The rate captured
// at write time wins; the table rate is used when none was stored.
func ToBase(tx core.Transaction, table RateTable) decimal.Decimal {
	if base, ok := tx.BaseAmount(); ok && table.Base() == core.UZS {
		return base
	}
	return ConvertExact(tx.Amount, tx.Currency, table.Base(), table)
}
