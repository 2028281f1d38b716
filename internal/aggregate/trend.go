package aggregate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"hisob/internal/core"
	"hisob/internal/currency"
	"hisob/internal/period"
)

// Granularity is the calendar unit of a trend series.
type Granularity string

const (
	Day   Granularity = "day"
	Week  Granularity = "week"
	Month Granularity = "month"
)

// MaxPoints bounds the length of a trend series.
const MaxPoints = 3700

var (
	ErrInvalidGranularity = errors.New("invalid granularity")
	ErrTooManyPoints      = errors.New("trend range too large")
)

// ParseGranularity validates a unit name. Empty means Day.
func ParseGranularity(s string) (Granularity, error) {
	g := Granularity(strings.ToLower(strings.TrimSpace(s)))
	switch g {
	case "":
		return Day, nil
	case Day, Week, Month:
		return g, nil
	}
	return Day, fmt.Errorf("%w: %q", ErrInvalidGranularity, s)
}

// Point is one calendar unit of a trend series.
type Point struct {
	Start time.Time       `json:"start"`
	End   time.Time       `json:"end"`
	Label string          `json:"label"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

// Trend returns one point per calendar unit overlapping filter.Range, in
// chronological order. Units without matching transactions are present with
// a zero total. The first and last units are clipped to the range.
func Trend(txs []core.Transaction, filter FilterSpec, g Granularity, target core.Currency, table currency.RateTable) ([]Point, error) {
	r := filter.Range
	if !r.Valid() || r.Start.IsZero() {
		return []Point{}, nil
	}

	var points []Point
	index := make(map[time.Time]int)
	for start := unitStart(r.Start, g); !start.After(r.End); start = nextUnit(start, g) {
		if len(points) == MaxPoints {
			return nil, fmt.Errorf("%w: more than %d %s points", ErrTooManyPoints, MaxPoints, g)
		}
		end := nextUnit(start, g).AddDate(0, 0, -1)
		p := Point{Start: maxTime(start, r.Start), End: minTime(end, r.End), Label: label(start, g), Total: decimal.Zero}
		index[start] = len(points)
		points = append(points, p)
	}

	for _, tx := range txs {
		if !filter.Match(tx) {
			continue
		}
		i, ok := index[unitStart(period.Day(tx.Date.Time), g)]
		if !ok {
			continue
		}
		points[i].Total = points[i].Total.Add(Normalize(tx, target, table))
		points[i].Count++
	}
	places := target.MinorUnits()
	for i := range points {
		points[i].Total = core.RoundHalfUp(points[i].Total, places)
	}
	return points, nil
}

func unitStart(d time.Time, g Granularity) time.Time {
	d = period.Day(d)
	switch g {
	case Week:
		return period.WeekRange(d).Start
	case Month:
		return period.MonthRange(d.Year(), d.Month()).Start
	}
	return d
}

func nextUnit(start time.Time, g Granularity) time.Time {
	switch g {
	case Week:
		return start.AddDate(0, 0, 7)
	case Month:
		return start.AddDate(0, 1, 0)
	}
	return start.AddDate(0, 0, 1)
}

func label(start time.Time, g Granularity) string {
	switch g {
	case Week:
		y, w := start.ISOWeek()
		return fmt.Sprintf("%d-W%02d", y, w)
	case Month:
		return start.Format("2006-01")
	}
	return start.Format(time.DateOnly)
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
