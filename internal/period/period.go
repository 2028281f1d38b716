// Package period maps logical period tokens to concrete date ranges.
//
// All functions are pure: given the same token and reference date they
// return the same range. Dates are calendar days at midnight UTC and ranges
// are inclusive on both ends. Weeks start on Monday.
package period

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Recognized tokens. last_N_days and custom:YYYY-MM-DD:YYYY-MM-DD are parsed.
const (
	Today     = "today"
	Yesterday = "yesterday"
	ThisWeek  = "this_week"
	LastWeek  = "last_week"
	ThisMonth = "this_month"
	LastMonth = "last_month"
	ThisYear  = "this_year"
	LastYear  = "last_year"
	Custom    = "custom"

	// Default is used whenever a token cannot be resolved.
	Default = ThisMonth
)

var (
	// ErrInvalidPeriodToken means the token was not recognized. The range
	// returned alongside it is the Default period for the reference date.
	ErrInvalidPeriodToken = errors.New("invalid period token")
	// ErrMissingCustomRange means "custom" was requested without dates.
	ErrMissingCustomRange = errors.New("custom period requires start and end dates")
)

var lastNDays = regexp.MustCompile(`^last_(\d+)_days$`)

// Range is an inclusive span of calendar days.
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewRange builds a range from two instants, truncating both to days.
func NewRange(start, end time.Time) Range {
	return Range{Start: Day(start), End: Day(end)}
}

// Valid reports whether the range is non-empty (end not before start).
func (r Range) Valid() bool {
	return !r.End.Before(r.Start)
}

// IsZero reports whether neither bound is set, meaning "no date restriction".
func (r Range) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Contains reports whether the calendar day of t lies within the range.
func (r Range) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(r.Start) && !d.After(r.End)
}

// Days returns the number of calendar days covered, zero for invalid ranges.
func (r Range) Days() int {
	if !r.Valid() {
		return 0
	}
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

func (r Range) String() string {
	return r.Start.Format(time.DateOnly) + ".." + r.End.Format(time.DateOnly)
}

// Resolve maps token to a concrete range relative to ref. custom is only
// consulted for the "custom" token and is returned unchanged, even when its
// end precedes its start. Unknown tokens resolve to the Default period and
// return ErrInvalidPeriodToken so callers can log and carry on.
func Resolve(token string, ref time.Time, custom *Range) (Range, error) {
	ref = Day(ref)
	token = strings.ToLower(strings.TrimSpace(token))

	switch token {
	case "":
		return monthToDate(ref), nil
	case Today:
		return Range{Start: ref, End: ref}, nil
	case Yesterday:
		y := ref.AddDate(0, 0, -1)
		return Range{Start: y, End: y}, nil
	case ThisWeek:
		return Range{Start: weekStart(ref), End: ref}, nil
	case LastWeek:
		start := weekStart(ref).AddDate(0, 0, -7)
		return Range{Start: start, End: start.AddDate(0, 0, 6)}, nil
	case ThisMonth:
		return monthToDate(ref), nil
	case LastMonth:
		first := monthStart(ref)
		return Range{Start: first.AddDate(0, -1, 0), End: first.AddDate(0, 0, -1)}, nil
	case ThisYear:
		return Range{Start: time.Date(ref.Year(), time.January, 1, 0, 0, 0, 0, time.UTC), End: ref}, nil
	case LastYear:
		y := ref.Year() - 1
		return Range{
			Start: time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(y, time.December, 31, 0, 0, 0, 0, time.UTC),
		}, nil
	case Custom:
		if custom == nil || custom.Start.IsZero() || custom.End.IsZero() {
			return monthToDate(ref), ErrMissingCustomRange
		}
		return NewRange(custom.Start, custom.End), nil
	}

	if m := lastNDays.FindStringSubmatch(token); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n >= 1 && n <= 3660 {
			return Range{Start: ref.AddDate(0, 0, -n), End: ref}, nil
		}
	}

	if rest, ok := strings.CutPrefix(token, Custom+":"); ok {
		if r, err := parseCustom(rest); err == nil {
			return r, nil
		}
	}

	return monthToDate(ref), fmt.Errorf("%w: %q", ErrInvalidPeriodToken, token)
}

// MustResolve resolves token and drops the error, relying on the Default
// range returned for unrecognized tokens.
func MustResolve(token string, ref time.Time) Range {
	r, _ := Resolve(token, ref, nil)
	return r
}

// Previous returns the comparison period for token: the preceding calendar
// unit for calendar tokens, otherwise a same-length span ending the day
// before r starts.
func Previous(token string, ref time.Time, r Range) Range {
	ref = Day(ref)
	switch strings.ToLower(strings.TrimSpace(token)) {
	case Today:
		return MustResolve(Yesterday, ref)
	case ThisWeek:
		return MustResolve(LastWeek, ref)
	case LastWeek:
		return MustResolve(LastWeek, ref.AddDate(0, 0, -7))
	case "", ThisMonth:
		return MustResolve(LastMonth, ref)
	case LastMonth:
		return MustResolve(LastMonth, monthStart(ref).AddDate(0, 0, -1))
	case ThisYear:
		return MustResolve(LastYear, ref)
	case LastYear:
		return MustResolve(LastYear, time.Date(ref.Year()-1, time.January, 1, 0, 0, 0, 0, time.UTC))
	}
	return Shift(r)
}

// Shift returns the same-length range immediately before r.
func Shift(r Range) Range {
	days := r.Days()
	if days == 0 {
		return r
	}
	end := r.Start.AddDate(0, 0, -1)
	return Range{Start: end.AddDate(0, 0, -(days - 1)), End: end}
}

// MonthRange returns the full calendar month.
func MonthRange(year int, month time.Month) Range {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Range{Start: start, End: start.AddDate(0, 1, -1)}
}

// QuarterRange returns the full calendar quarter (1-4).
func QuarterRange(year, quarter int) (Range, error) {
	if quarter < 1 || quarter > 4 {
		return Range{}, fmt.Errorf("invalid quarter %d", quarter)
	}
	start := time.Date(year, time.Month(3*(quarter-1)+1), 1, 0, 0, 0, 0, time.UTC)
	return Range{Start: start, End: start.AddDate(0, 3, -1)}, nil
}

// WeekRange returns Monday through Sunday of the week containing day.
func WeekRange(day time.Time) Range {
	start := weekStart(Day(day))
	return Range{Start: start, End: start.AddDate(0, 0, 6)}
}

// AddMonths moves d by n months, clamping the day to the target month length
// (Jan 31 + 1 month = Feb 28/29).
func AddMonths(d time.Time, n int) time.Time {
	d = Day(d)
	first := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	last := first.AddDate(0, 1, -1).Day()
	day := d.Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

func parseCustom(s string) (Range, error) {
	from, to, ok := strings.Cut(s, ":")
	if !ok {
		return Range{}, ErrMissingCustomRange
	}
	start, err := time.Parse(time.DateOnly, from)
	if err != nil {
		return Range{}, err
	}
	end, err := time.Parse(time.DateOnly, to)
	if err != nil {
		return Range{}, err
	}
	return Range{Start: start, End: end}, nil
}

func weekStart(d time.Time) time.Time {
	offset := (int(d.Weekday()) + 6) % 7 // Monday = 0
	return d.AddDate(0, 0, -offset)
}

func monthStart(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func monthToDate(ref time.Time) Range {
	return Range{Start: monthStart(ref), End: ref}
}
