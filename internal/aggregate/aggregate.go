package aggregate

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"hisob/internal/core"
	"hisob/internal/currency"
)

// GroupBy selects the breakdown dimension.
type GroupBy string

const (
	None            GroupBy = "none"
	ByCategory      GroupBy = "category"
	ByPaymentMethod GroupBy = "payment_method"
	ByCurrency      GroupBy = "currency"
	ByTag           GroupBy = "tag"
)

var ErrInvalidGroupBy = errors.New("invalid group by")

// ParseGroupBy validates a dimension name. Empty means None.
func ParseGroupBy(s string) (GroupBy, error) {
	g := GroupBy(strings.ToLower(strings.TrimSpace(s)))
	switch g {
	case "":
		return None, nil
	case None, ByCategory, ByPaymentMethod, ByCurrency, ByTag:
		return g, nil
	}
	return None, fmt.Errorf("%w: %q", ErrInvalidGroupBy, s)
}

// Group is one breakdown bucket.
type Group struct {
	Key        string          `json:"key"`
	Label      string          `json:"label"`
	Total      decimal.Decimal `json:"total"`
	Count      int             `json:"count"`
	Percentage decimal.Decimal `json:"percentage"`
}

// Result is the normalized aggregate of a filtered set.
type Result struct {
	Currency  core.Currency                     `json:"currency"`
	Total     decimal.Decimal                   `json:"total"`
	Count     int                               `json:"count"`
	Average   decimal.Decimal                   `json:"average"`
	Raw       map[core.Currency]decimal.Decimal `json:"raw_totals"`
	Breakdown []Group                           `json:"breakdown"`
}

// Normalize is the unrounded value of tx in target, taken at the rate
// captured when it was recorded. Totals built from it are rounded once.
func Normalize(tx core.Transaction, target core.Currency, table currency.RateTable) decimal.Decimal {
	return currency.Value(tx, target, table)
}

// Sum is the unrounded total of the transactions matching filter in target.
func Sum(txs []core.Transaction, filter FilterSpec, target core.Currency, table currency.RateTable) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		if filter.Match(tx) {
			total = total.Add(Normalize(tx, target, table))
		}
	}
	return total
}

// Aggregate sums the transactions matching filter after converting each one
// to target, and optionally breaks the total down by a dimension. Sums are
// kept at full precision and rounded to the minor units of target at the end.
func Aggregate(txs []core.Transaction, filter FilterSpec, by GroupBy, target core.Currency, table currency.RateTable) Result {
	res := Result{
		Currency:  target,
		Total:     decimal.Zero,
		Average:   decimal.Zero,
		Raw:       make(map[core.Currency]decimal.Decimal),
		Breakdown: []Group{},
	}

	groups := newGrouper()
	for _, tx := range txs {
		if !filter.Match(tx) {
			continue
		}
		amount := Normalize(tx, target, table)
		res.Total = res.Total.Add(amount)
		res.Count++
		res.Raw[tx.Currency] = res.Raw[tx.Currency].Add(tx.Amount)

		for _, k := range keysFor(tx, by) {
			groups.add(k.key, k.label, amount)
		}
	}

	places := target.MinorUnits()
	if res.Count > 0 {
		res.Average = core.RoundHalfUp(res.Total.Div(decimal.NewFromInt(int64(res.Count))), places)
	}
	res.Total = core.RoundHalfUp(res.Total, places)
	res.Breakdown = groups.finish(places)
	return res
}

type groupKey struct {
	key, label string
}

func keysFor(tx core.Transaction, by GroupBy) []groupKey {
	switch by {
	case ByCategory:
		if tx.CategoryID == 0 {
			return []groupKey{{"0", "Uncategorized"}}
		}
		label := tx.CategoryName
		if label == "" {
			label = "Category " + strconv.FormatInt(tx.CategoryID, 10)
		}
		return []groupKey{{strconv.FormatInt(tx.CategoryID, 10), label}}
	case ByPaymentMethod:
		pm := tx.PaymentMethod
		if pm == "" {
			pm = core.PaymentOther
		}
		return []groupKey{{string(pm), string(pm)}}
	case ByCurrency:
		return []groupKey{{string(tx.Currency), string(tx.Currency)}}
	case ByTag:
		if len(tx.Tags) == 0 {
			return []groupKey{{"", "Untagged"}}
		}
		keys := make([]groupKey, 0, len(tx.Tags))
		seen := make(map[string]struct{}, len(tx.Tags))
		for _, tag := range tx.Tags {
			k := strings.ToLower(strings.TrimSpace(tag))
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, groupKey{k, tag})
		}
		return keys
	}
	return nil
}

// grouper accumulates groups in first-seen order.
type grouper struct {
	index  map[string]int
	groups []Group
}

func newGrouper() *grouper {
	return &grouper{index: make(map[string]int)}
}

func (g *grouper) add(key, label string, amount decimal.Decimal) {
	i, ok := g.index[key]
	if !ok {
		i = len(g.groups)
		g.index[key] = i
		g.groups = append(g.groups, Group{Key: key, Label: label, Total: decimal.Zero})
	}
	g.groups[i].Total = g.groups[i].Total.Add(amount)
	g.groups[i].Count++
}

// finish computes percentages against the exact sum of group totals, rounds
// the totals to places and sorts descending by total. Ties keep first-seen
// order.
func (g *grouper) finish(places int32) []Group {
	sum := decimal.Zero
	for _, grp := range g.groups {
		sum = sum.Add(grp.Total)
	}
	out := make([]Group, len(g.groups))
	for i, grp := range g.groups {
		grp.Percentage = core.RoundHalfUp(core.Percent(grp.Total, sum), 2)
		grp.Total = core.RoundHalfUp(grp.Total, places)
		out[i] = grp
	}
	slices.SortStableFunc(out, func(a, b Group) int {
		return b.Total.Cmp(a.Total)
	})
	return out
}
