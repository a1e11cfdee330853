// Package dates handles the ISO calendar dates (YYYY-MM-DD) that flow
// through the schedule. Dates are carried as strings: the format orders
// lexicographically, so min/max folds and comparisons against "today"
// need no parsing. Parsing happens only for day arithmetic.
package dates

import (
	"fmt"
	"time"
)

const Layout = "2006-01-02"

// Clean normalizes raw user input. Empty or unparseable strings become
// nil, never an error.
func Clean(raw string) *string {
	t, err := time.Parse(Layout, raw)
	if err != nil {
		return nil
	}
	s := t.Format(Layout)
	return &s
}

// Valid reports whether s is a well-formed calendar date.
func Valid(s string) bool {
	_, err := time.Parse(Layout, s)
	return err == nil
}

// Ordered reports whether start <= end; nil on either side passes.
func Ordered(start, end *string) bool {
	if start == nil || end == nil {
		return true
	}
	return *start <= *end
}

// DiffDays returns b - a in whole days.
func DiffDays(a, b string) (int, error) {
	ta, err := time.Parse(Layout, a)
	if err != nil {
		return 0, fmt.Errorf("parse date %q: %w", a, err)
	}
	tb, err := time.Parse(Layout, b)
	if err != nil {
		return 0, fmt.Errorf("parse date %q: %w", b, err)
	}
	return int(tb.Sub(ta).Hours() / 24), nil
}

// AddDays shifts a date by a (possibly negative) number of days.
func AddDays(s string, days int) (string, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return "", fmt.Errorf("parse date %q: %w", s, err)
	}
	return t.AddDate(0, 0, days).Format(Layout), nil
}

// ShiftPtr applies AddDays to an optional date, passing nil through.
func ShiftPtr(s *string, days int) (*string, error) {
	if s == nil {
		return nil, nil
	}
	shifted, err := AddDays(*s, days)
	if err != nil {
		return nil, err
	}
	return &shifted, nil
}

// Today formats a wall-clock time as a calendar date.
func Today(now time.Time) string {
	return now.Format(Layout)
}
