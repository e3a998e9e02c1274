package core

import (
	"testing"
	"time"
)

func TestAddMonthsClamped(t *testing.T) {
	tests := []struct {
		from Date
		n    int
		want string
	}{
		{NewDate(2024, 1, 15), 1, "2024-02-15"},
		{NewDate(2024, 1, 31), 1, "2024-02-29"},
		{NewDate(2023, 1, 31), 1, "2023-02-28"},
		{NewDate(2024, 3, 31), 1, "2024-04-30"},
		{NewDate(2024, 11, 30), 2, "2025-01-30"},
		{NewDate(2024, 12, 31), 14, "2026-02-28"},
	}
	for _, tt := range tests {
		t.Run(tt.from.String(), func(t *testing.T) {
			if got := AddMonthsClamped(tt.from, tt.n).String(); got != tt.want {
				t.Errorf("AddMonthsClamped(%s, %d) = %s, want %s", tt.from, tt.n, got, tt.want)
			}
		})
	}
}

func TestNthMonthlyPeriodDoesNotDrift(t *testing.T) {
	start := NewDate(2024, 1, 31)
	want := []string{"2024-01-31", "2024-02-29", "2024-03-31", "2024-04-30", "2024-05-31"}
	for n, w := range want {
		if got := NthMonthlyPeriod(start, n).String(); got != w {
			t.Errorf("period %d = %s, want %s", n, got, w)
		}
	}
}

func TestOnMonthlyAnchor(t *testing.T) {
	tests := []struct {
		start, d Date
		want     bool
	}{
		{NewDate(2024, 1, 31), NewDate(2024, 2, 29), true},
		{NewDate(2024, 1, 31), NewDate(2024, 2, 28), false},
		{NewDate(2024, 1, 31), NewDate(2024, 4, 30), true},
		{NewDate(2023, 6, 10), NewDate(2024, 1, 10), true},
		{NewDate(2023, 6, 10), NewDate(2024, 1, 1), false},
	}
	for _, tt := range tests {
		if got := OnMonthlyAnchor(tt.start, tt.d); got != tt.want {
			t.Errorf("OnMonthlyAnchor(%s, %s) = %v, want %v", tt.start, tt.d, got, tt.want)
		}
	}
}

func TestLedgerKeys(t *testing.T) {
	if got := NewDate(2024, 3, 9).LedgerKey(); got != "2024-03" {
		t.Fatalf("LedgerKey = %s", got)
	}
	y, m, err := ParseLedgerKey("2025-11")
	if err != nil || y != 2025 || m != time.November {
		t.Fatalf("ParseLedgerKey = %d %v %v", y, m, err)
	}
	for _, bad := range []string{"2025-13", "2025/11", "25-11", ""} {
		if _, _, err := ParseLedgerKey(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestMonthsBetween(t *testing.T) {
	if got := MonthsBetween(NewDate(2024, 1, 31), NewDate(2024, 3, 1)); got != 2 {
		t.Fatalf("MonthsBetween = %d, want 2", got)
	}
	if got := MonthsBetween(NewDate(2023, 11, 5), NewDate(2024, 2, 5)); got != 3 {
		t.Fatalf("MonthsBetween = %d, want 3", got)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-01-15T18:30:00+02:00")
	if err != nil || d.String() != "2024-01-15" {
		t.Fatalf("ParseDate instant = %s, %v", d, err)
	}
	if _, err := ParseDate("15/01/2024"); err == nil {
		t.Fatal("expected error for unsupported layout")
	}
}
