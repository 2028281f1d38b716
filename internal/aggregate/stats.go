package aggregate

import (
	"time"

	"github.com/shopspring/decimal"

	"hisob/internal/core"
	"hisob/internal/currency"
)

// Stats summarizes the distribution of matching amounts.
type Stats struct {
	Currency     core.Currency      `json:"currency"`
	Total        decimal.Decimal    `json:"total"`
	Count        int                `json:"count"`
	Average      decimal.Decimal    `json:"average"`
	Max          decimal.Decimal    `json:"max"`
	Min          decimal.Decimal    `json:"min"`
	DailyAverage decimal.Decimal    `json:"daily_average"`
	ByWeekday    [7]decimal.Decimal `json:"by_weekday"` // indexed by time.Weekday
}

// Summarize computes Stats for the transactions matching filter in target.
// DailyAverage divides by the number of days in filter.Range.
func Summarize(txs []core.Transaction, filter FilterSpec, target core.Currency, table currency.RateTable) Stats {
	s := Stats{Currency: target, Total: decimal.Zero, Average: decimal.Zero, Max: decimal.Zero, Min: decimal.Zero, DailyAverage: decimal.Zero}
	for i := range s.ByWeekday {
		s.ByWeekday[i] = decimal.Zero
	}

	for _, tx := range txs {
		if !filter.Match(tx) {
			continue
		}
		amount := Normalize(tx, target, table)
		if s.Count == 0 || amount.GreaterThan(s.Max) {
			s.Max = amount
		}
		if s.Count == 0 || amount.LessThan(s.Min) {
			s.Min = amount
		}
		s.Total = s.Total.Add(amount)
		s.Count++
		wd := tx.Date.Weekday()
		s.ByWeekday[wd] = s.ByWeekday[wd].Add(amount)
	}

	places := target.MinorUnits()
	if s.Count > 0 {
		s.Average = core.RoundHalfUp(s.Total.Div(decimal.NewFromInt(int64(s.Count))), places)
	}
	if days := filter.Range.Days(); days > 0 && !filter.Range.Start.IsZero() {
		s.DailyAverage = core.RoundHalfUp(s.Total.Div(decimal.NewFromInt(int64(days))), places)
	}
	s.Total = core.RoundHalfUp(s.Total, places)
	s.Max = core.RoundHalfUp(s.Max, places)
	s.Min = core.RoundHalfUp(s.Min, places)
	for i := range s.ByWeekday {
		s.ByWeekday[i] = core.RoundHalfUp(s.ByWeekday[i], places)
	}
	return s
}

// weekdayOrder lists weekdays starting on Monday, for presentation.
var weekdayOrder = [7]time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

// WeekdayTotals returns ByWeekday reordered Monday first, keyed by day name.
func (s Stats) WeekdayTotals() []WeekdayTotal {
	out := make([]WeekdayTotal, 0, 7)
	for _, wd := range weekdayOrder {
		out = append(out, WeekdayTotal{Weekday: wd.String(), Total: s.ByWeekday[wd]})
	}
	return out
}

type WeekdayTotal struct {
	Weekday string          `json:"weekday"`
	Total   decimal.Decimal `json:"total"`
}
