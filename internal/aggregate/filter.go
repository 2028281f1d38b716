// Package aggregate computes totals, breakdowns and trend series over a
// filtered set of transactions.
//
// Every function is pure: transactions are supplied by the caller, and all
// currency normalization goes through the RateTable passed in. Amounts in
// different currencies are never summed raw.
package aggregate

import (
	"strings"

	"github.com/shopspring/decimal"

	"hisob/internal/core"
	"hisob/internal/period"
)

// FilterSpec selects transactions. Zero-valued fields match everything.
type FilterSpec struct {
	Range         period.Range
	Kind          core.Kind
	CategoryIDs   []int64
	Tags          []string
	PaymentMethod core.PaymentMethod
	Currency      core.Currency
	// Status restricts by status. When empty, pending and cancelled
	// incomes are left out.
	Status    core.TransactionStatus
	Search    string
	MinAmount decimal.Decimal
	MaxAmount decimal.Decimal
}

// Match reports whether tx satisfies every set criterion. A range whose end
// precedes its start matches nothing.
func (f FilterSpec) Match(tx core.Transaction) bool {
	if !f.Range.IsZero() {
		if !f.Range.Valid() || !f.Range.Contains(tx.Date.Time) {
			return false
		}
	}
	if f.Kind != "" && tx.Kind != f.Kind {
		return false
	}
	if f.Status != "" {
		if tx.Status != f.Status {
			return false
		}
	} else if !tx.Counts() {
		return false
	}
	if len(f.CategoryIDs) > 0 && !containsID(f.CategoryIDs, tx.CategoryID) {
		return false
	}
	if len(f.Tags) > 0 && !hasAnyTag(tx, f.Tags) {
		return false
	}
	if f.PaymentMethod != "" && tx.PaymentMethod != f.PaymentMethod {
		return false
	}
	if f.Currency != "" && tx.Currency != f.Currency {
		return false
	}
	if f.MinAmount.IsPositive() && tx.Amount.LessThan(f.MinAmount) {
		return false
	}
	if f.MaxAmount.IsPositive() && tx.Amount.GreaterThan(f.MaxAmount) {
		return false
	}
	if q := strings.TrimSpace(f.Search); q != "" && !matchesSearch(tx, q) {
		return false
	}
	return true
}

// Apply returns the transactions matching f, preserving order.
func Apply(txs []core.Transaction, f FilterSpec) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if f.Match(tx) {
			out = append(out, tx)
		}
	}
	return out
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func hasAnyTag(tx core.Transaction, tags []string) bool {
	for _, tag := range tags {
		if tx.HasTag(tag) {
			return true
		}
	}
	return false
}

func matchesSearch(tx core.Transaction, q string) bool {
	q = strings.ToLower(q)
	for _, field := range []string{tx.Description, tx.Source, tx.CategoryName, tx.ID} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}
