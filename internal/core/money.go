// Money parsing and formatting. All amounts in the ledger are integer yen;
// there is no fractional unit and no floating point anywhere in the
// arithmetic.
package core

import (
	"strconv"
	"strings"
)

// Money is a signed amount of yen. Negative is an expense, positive income.
type Money struct {
	Yen int64
}

// ParseYen converts a statement-style amount string to signed yen.
//
// It accepts thousands separators, currency marks and a few accounting
// conventions:
//
//	ParseYen("1,234")  -> 1234
//	ParseYen("¥1234")  -> 1234
//	ParseYen("-500")   -> -500
//	ParseYen("(500)")  -> -500 (accounting negative)
//	ParseYen("1200円") -> 1200
//
// Returns ErrInvalidAmount for empty, fractional or non-numeric input.
func ParseYen(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}
	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimPrefix(s, "-")
	}
	s = strings.TrimPrefix(s, "+")

	for _, mark := range []string{"¥", "￥", "円", ",", " "} {
		s = strings.ReplaceAll(s, mark, "")
	}
	if s == "" {
		return 0, ErrInvalidAmount
	}

	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if negative {
		v = -v
	}
	return v, nil
}

// Abs returns the magnitude of the amount.
func (m Money) Abs() int64 {
	if m.Yen < 0 {
		return -m.Yen
	}
	return m.Yen
}

// IsExpense reports whether the amount flows out.
func (m Money) IsExpense() bool { return m.Yen < 0 }
