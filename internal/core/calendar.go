package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

type Date struct {
	time.Time
}

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidLedgerKey = errors.New("invalid ledger key")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 instant.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return Date{Time: t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return NewDateFromTime(t), nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
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

// LedgerKey returns the "YYYY-MM" key of the ledger holding d.
func (d Date) LedgerKey() string {
	return LedgerKey(d.Year(), d.Month())
}

func LedgerKey(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(month))
}

// ParseLedgerKey splits a "YYYY-MM" key into its year and month.
func ParseLedgerKey(key string) (int, time.Month, error) {
	t, err := time.Parse("2006-01", key)
	if err != nil || len(key) != 7 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidLedgerKey, key)
	}
	return t.Year(), t.Month(), nil
}

// DaysIn returns the number of days of month in year.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AddMonthsClamped moves d by n calendar months, keeping the day of month when
// possible and clamping to the last day of shorter months (Jan 31 + 1 = Feb 28/29).
func AddMonthsClamped(d Date, n int) Date {
	return monthsFromAnchor(d, d.Day(), n)
}

func monthsFromAnchor(d Date, anchorDay, n int) Date {
	first := time.Date(d.Year(), d.Month()+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	day := anchorDay
	if last := DaysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return Date{Time: first.AddDate(0, 0, day-1)}
}

// MonthsBetween returns the number of whole calendar months from a to b,
// ignoring the day of month.
func MonthsBetween(a, b Date) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

// NthMonthlyPeriod returns the date of the n-th monthly period anchored on
// start's day of month. Computing from the anchor keeps a rule that starts on
// the 31st on month-ends instead of drifting to the 28th/29th after February.
func NthMonthlyPeriod(start Date, n int) Date {
	return monthsFromAnchor(start, start.Day(), n)
}

// FirstOfMonth returns the first day of d's month.
func FirstOfMonth(d Date) Date {
	return NewDate(d.Year(), int(d.Month()), 1)
}

// OnMonthlyAnchor reports whether d falls on start's day of month, clamped to
// the length of d's month (Feb 29 is on the anchor of a rule starting Jan 31).
func OnMonthlyAnchor(start, d Date) bool {
	day := start.Day()
	if last := DaysIn(d.Year(), d.Month()); day > last {
		day = last
	}
	return d.Day() == day
}
