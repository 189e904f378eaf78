// Package services contains the materialization engine: recurrence
// expansion, card obligation amortization, ledger rebuild, statement
// aggregation and balance forecasting.
//
// This file implements the Strategy Pattern for recurrence expansion. Each
// frequency (monthly, yearly, monthly_interval, weekly_interval) has its own
// rule that produces the anchor dates inside a bounded window.
package services

import (
	"fmt"

	"kakeibo/internal/core"
)

// Occurrence is one expanded (date, amount) pair.
type Occurrence struct {
	Date      core.Date
	AmountYen int64
}

// OccurrenceRule is the strategy interface for one recurrence frequency.
// Implementations return the anchor dates within [lo, hi], ascending. The
// window is always finite, so rules never produce unbounded sequences.
type OccurrenceRule interface {
	Occurrences(rec core.Recurrence, lo, hi core.Date) []core.Date
}

// MonthlyRule emits one occurrence per month on the anchor day, clamped to
// the month's last day.
type MonthlyRule struct{}

func (MonthlyRule) Occurrences(rec core.Recurrence, lo, hi core.Date) []core.Date {
	var out []core.Date
	y, m := lo.Year(), lo.Month()
	for core.MonthIndex(y, m) <= core.MonthIndex(hi.Year(), hi.Month()) {
		d := core.ClampDay(y, m, rec.Day)
		if !d.Before(lo) && !d.After(hi) {
			out = append(out, d)
		}
		y, m = core.AddToYearMonth(y, m, 1)
	}
	return out
}

// YearlyRule emits one occurrence per year on the anchor month and day.
// Feb 29 anchors clamp to Feb 28 in common years.
type YearlyRule struct{}

func (YearlyRule) Occurrences(rec core.Recurrence, lo, hi core.Date) []core.Date {
	var out []core.Date
	for y := lo.Year(); y <= hi.Year(); y++ {
		d := core.ClampDay(y, rec.Month, rec.Day)
		if !d.Before(lo) && !d.After(hi) {
			out = append(out, d)
		}
	}
	return out
}

// MonthlyIntervalRule emits occurrences every IntervalMonths months, counted
// from the month of the effective start.
type MonthlyIntervalRule struct{}

func (MonthlyIntervalRule) Occurrences(rec core.Recurrence, lo, hi core.Date) []core.Date {
	anchor := core.MonthIndex(rec.EffectiveStart.Year(), rec.EffectiveStart.Month())
	var out []core.Date
	y, m := lo.Year(), lo.Month()
	for core.MonthIndex(y, m) <= core.MonthIndex(hi.Year(), hi.Month()) {
		idx := core.MonthIndex(y, m)
		if idx >= anchor && (idx-anchor)%rec.IntervalMonths == 0 {
			d := core.ClampDay(y, m, rec.Day)
			if !d.Before(lo) && !d.After(hi) {
				out = append(out, d)
			}
		}
		y, m = core.AddToYearMonth(y, m, 1)
	}
	return out
}

// WeeklyIntervalRule emits occurrences every IntervalWeeks weeks from the
// effective start date. Week steps are literal 7-day additions.
type WeeklyIntervalRule struct{}

func (WeeklyIntervalRule) Occurrences(rec core.Recurrence, lo, hi core.Date) []core.Date {
	step := 7 * rec.IntervalWeeks
	d := rec.EffectiveStart
	if d.Before(lo) {
		// Skip whole periods up to the first anchor on or after lo.
		gap := int(lo.Time.Sub(d.Time).Hours() / 24)
		d = d.AddDays((gap + step - 1) / step * step)
	}
	var out []core.Date
	for !d.After(hi) {
		out = append(out, d)
		d = d.AddDays(step)
	}
	return out
}

// occurrenceRules maps each frequency to its expansion strategy.
var occurrenceRules = map[core.Frequency]OccurrenceRule{
	core.Monthly:         MonthlyRule{},
	core.Yearly:          YearlyRule{},
	core.MonthlyInterval: MonthlyIntervalRule{},
	core.WeeklyInterval:  WeeklyIntervalRule{},
}

// GetOccurrenceRule returns the expansion strategy for a frequency.
func GetOccurrenceRule(freq core.Frequency) (OccurrenceRule, error) {
	rule, ok := occurrenceRules[freq]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrInvalidFrequency, freq)
	}
	return rule, nil
}

// Expand produces the ordered (date, amount) pairs of one recurrence rule
// inside [horizonStart, horizonEnd], restricted to the rule's effective
// window. The first occurrence is the first anchor date on or after the
// effective start; the last is the last anchor date on or before the
// effective end.
//
// Invalid rules (unknown frequency, interval < 1, inverted range) are
// rejected here again even though definitions are validated at save time, so
// bad data can never make expansion loop.
func Expand(rec core.Recurrence, amountYen int64, horizonStart, horizonEnd core.Date) ([]Occurrence, error) {
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("expand recurrence: %w", err)
	}
	if horizonEnd.Before(horizonStart) {
		return nil, fmt.Errorf("expand recurrence: horizon end %s before start %s", horizonEnd, horizonStart)
	}

	lo := horizonStart
	if rec.EffectiveStart.After(lo) {
		lo = rec.EffectiveStart
	}
	hi := horizonEnd
	if !rec.EffectiveEnd.IsZero() && rec.EffectiveEnd.Before(hi) {
		hi = rec.EffectiveEnd
	}
	if hi.Before(lo) {
		return nil, nil
	}

	rule, err := GetOccurrenceRule(rec.Freq)
	if err != nil {
		return nil, err
	}

	dates := rule.Occurrences(rec, lo, hi)
	out := make([]Occurrence, len(dates))
	for i, d := range dates {
		out[i] = Occurrence{Date: d, AmountYen: amountYen}
	}
	return out, nil
}
