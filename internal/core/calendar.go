// Package core holds the domain model: dates, money, the recurring
// definitions and the events they materialize into.
package core

import (
	"fmt"
	"strings"
	"time"
)

// Date is a calendar day without a time of day. All dates are UTC midnights
// so that comparisons and day arithmetic never cross DST boundaries.
type Date struct {
	time.Time
}

// NewDate builds the given calendar day. Out-of-range values normalize the
// way time.Date does; validated input never relies on that.
func NewDate(year, month, day int) Date {
	return Date{time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

var dateLayouts = []string{"2006-01-02", "2006/1/2"}

// ParseDate reads an ISO date, also accepting the slash form card companies
// export ("2025/3/10").
func ParseDate(s string) (Date, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// Month returns the month as an int.
func (d Date) Month() int { return int(d.Time.Month()) }

// Before reports whether d is an earlier day than other.
func (d Date) Before(other Date) bool { return d.Time.Before(other.Time) }

// After reports whether d is a later day than other.
func (d Date) After(other Date) bool { return d.Time.After(other.Time) }

// Equal reports whether d and other are the same day.
func (d Date) Equal(other Date) bool { return d.Time.Equal(other.Time) }

// AddDays shifts the date by n literal days.
func (d Date) AddDays(n int) Date { return Date{d.Time.AddDate(0, 0, n)} }

// String formats the date as YYYY-MM-DD.
func (d Date) String() string { return d.Time.Format("2006-01-02") }

// MarshalJSON renders the date as "YYYY-MM-DD". The zero date becomes an
// empty string, matching the open-ended effective windows.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts "YYYY-MM-DD", the slash form, or an empty string for
// the zero date.
func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year, month int) int {
	// Day zero of the next month is the last day of this one.
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MonthStart returns the first day of the date's month.
func MonthStart(d Date) Date {
	return NewDate(d.Year(), d.Month(), 1)
}

// MonthEnd returns the last day of the given month.
func MonthEnd(year, month int) Date {
	return NewDate(year, month, DaysInMonth(year, month))
}

// ClampDay builds the date (year, month, day), pulling day back to the
// month's last day when the month is shorter.
func ClampDay(year, month, day int) Date {
	if max := DaysInMonth(year, month); day > max {
		day = max
	}
	return NewDate(year, month, day)
}

// MonthIndex maps (year, month) onto a single month counter so that month
// distances are plain subtractions.
func MonthIndex(year, month int) int {
	return year*12 + month - 1
}

// AddToYearMonth shifts (year, month) by n months.
func AddToYearMonth(year, month, n int) (int, int) {
	idx := MonthIndex(year, month) + n
	return idx / 12, idx%12 + 1
}

// AddMonths shifts the date by n months, clamping the day to the target
// month's end: Jan 31 plus one month is Feb 29 in a leap year, Feb 28
// otherwise.
func AddMonths(d Date, n int) Date {
	y, m := AddToYearMonth(d.Year(), d.Month(), n)
	return ClampDay(y, m, d.Day())
}

// AddWeeks shifts the date by n literal 7-day weeks.
func AddWeeks(d Date, n int) Date {
	return d.AddDays(7 * n)
}
