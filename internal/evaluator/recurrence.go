package evaluator

// This file implements the Strategy Pattern for recurring income scheduling.
// Each recurrence type has its own strategy that computes an occurrence a
// number of units after the schedule anchor.

import (
	"fmt"
	"time"

	"hisob/internal/core"
	"hisob/internal/period"
)

// NextDater is the strategy interface for advancing a recurring schedule.
type NextDater interface {
	// Next returns the occurrence interval units after from.
	Next(from time.Time, interval int) time.Time
}

// DayStepper advances by a fixed number of days per interval.
type DayStepper struct {
	Days int
}

func (s DayStepper) Next(from time.Time, interval int) time.Time {
	return period.Day(from).AddDate(0, 0, s.Days*interval)
}

// MonthStepper advances by whole months, clamping the day to the length of
// the target month. Yearly schedules are 12 months, so Feb 29 lands on Feb 28.
type MonthStepper struct {
	Months int
}

func (s MonthStepper) Next(from time.Time, interval int) time.Time {
	return period.AddMonths(from, s.Months*interval)
}

// recurrenceStrategies maps recurrence types to their steppers.
var recurrenceStrategies = map[core.Recurrence]NextDater{
	core.Daily:     DayStepper{Days: 1},
	core.Weekly:    DayStepper{Days: 7},
	core.Biweekly:  DayStepper{Days: 14},
	core.Monthly:   MonthStepper{Months: 1},
	core.Quarterly: MonthStepper{Months: 3},
	core.Yearly:    MonthStepper{Months: 12},
}

// GetNextDater returns the strategy for a recurrence type.
func GetNextDater(r core.Recurrence) (NextDater, error) {
	s, ok := recurrenceStrategies[r]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrInvalidRecurrence, r)
	}
	return s, nil
}

// NextOccurrence returns the occurrence after from. An interval below one is
// treated as one.
func NextOccurrence(r core.Recurrence, interval int, from time.Time) (time.Time, error) {
	s, err := GetNextDater(r)
	if err != nil {
		return time.Time{}, err
	}
	if interval < 1 {
		interval = 1
	}
	return s.Next(from, interval), nil
}

// DueOccurrences lists every occurrence of ri on or before asOf, starting at
// NextDate, stopping at EndDate when set. The returned next value is the first
// occurrence after asOf. limit bounds the catch-up for long-idle schedules.
//
// Occurrence k is k intervals after ri.Anchor(), never one interval after the
// previous occurrence, so a schedule on the 31st returns to the 31st after
// February.
func DueOccurrences(ri core.RecurringIncome, asOf time.Time, limit int) (due []time.Time, next time.Time, err error) {
	s, err := GetNextDater(ri.Recurrence)
	if err != nil {
		return nil, time.Time{}, err
	}
	interval := max(ri.Interval, 1)
	from := period.Day(ri.NextDate.Time)
	anchor := period.Day(ri.Anchor().Time)
	if anchor.After(from) {
		anchor = from
	}

	// Skip the occurrences produced before NextDate.
	k := 0
	next = anchor
	for next.Before(from) {
		k++
		next = s.Next(anchor, k*interval)
	}

	asOf = period.Day(asOf)
	for !next.After(asOf) && len(due) < limit {
		if !ri.EndDate.IsZero() && next.After(ri.EndDate.Time) {
			break
		}
		due = append(due, next)
		k++
		next = s.Next(anchor, k*interval)
	}
	return due, next, nil
}
