package services

import (
	"testing"

	"bilancio/internal/core"
)

func TestMonthlySchedule_Next(t *testing.T) {
	tests := []struct {
		name   string
		start  core.Date
		cursor core.Date
		want   string
	}{
		{"plain month", core.NewDate(2024, 1, 15), core.NewDate(2024, 1, 15), "2024-02-15"},
		{"31st into leap february", core.NewDate(2024, 1, 31), core.NewDate(2024, 1, 31), "2024-02-29"},
		{"back to 31st after february", core.NewDate(2024, 1, 31), core.NewDate(2024, 2, 29), "2024-03-31"},
		{"31st into april", core.NewDate(2024, 1, 31), core.NewDate(2024, 3, 31), "2024-04-30"},
		{"30th into common february", core.NewDate(2023, 1, 30), core.NewDate(2023, 1, 30), "2023-02-28"},
		{"year boundary", core.NewDate(2023, 6, 1), core.NewDate(2023, 12, 1), "2024-01-01"},
		{"cursor off the start day", core.NewDate(2023, 6, 10), core.NewDate(2024, 1, 1), "2024-02-01"},
		{"cursor off the start day into february", core.NewDate(2023, 6, 10), core.NewDate(2024, 1, 30), "2024-02-29"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MonthlySchedule{}.Next(tt.start, tt.cursor)
			if got.String() != tt.want {
				t.Errorf("Next() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMonthlySchedule_NoDriftOverAYear(t *testing.T) {
	start := core.NewDate(2024, 1, 31)
	cursor := start
	want := []string{
		"2024-02-29", "2024-03-31", "2024-04-30", "2024-05-31", "2024-06-30", "2024-07-31",
		"2024-08-31", "2024-09-30", "2024-10-31", "2024-11-30", "2024-12-31", "2025-01-31",
	}
	for i, w := range want {
		cursor = MonthlySchedule{}.Next(start, cursor)
		if cursor.String() != w {
			t.Fatalf("step %d = %s, want %s", i+1, cursor, w)
		}
	}
}

func TestWeeklySchedule_Next(t *testing.T) {
	got := WeeklySchedule{}.Next(core.NewDate(2024, 2, 26), core.NewDate(2024, 2, 26))
	if got.String() != "2024-03-04" {
		t.Errorf("Next() = %s, want 2024-03-04", got)
	}
}

func TestYearlySchedule_Next(t *testing.T) {
	start := core.NewDate(2024, 2, 29)
	got := YearlySchedule{}.Next(start, start)
	if got.String() != "2025-02-28" {
		t.Errorf("Next() = %s, want 2025-02-28", got)
	}
	got = YearlySchedule{}.Next(start, core.NewDate(2027, 2, 28))
	if got.String() != "2028-02-29" {
		t.Errorf("Next() = %s, want 2028-02-29", got)
	}
	got = YearlySchedule{}.Next(core.NewDate(2020, 6, 10), core.NewDate(2024, 1, 1))
	if got.String() != "2025-01-01" {
		t.Errorf("Next() off anchor = %s, want 2025-01-01", got)
	}
}

func TestGetPeriodSchedule(t *testing.T) {
	for _, f := range []core.Frequency{core.Monthly, core.Weekly, core.Yearly} {
		if _, err := GetPeriodSchedule(f); err != nil {
			t.Errorf("GetPeriodSchedule(%s) error = %v", f, err)
		}
	}
	if _, err := GetPeriodSchedule("daily"); err == nil {
		t.Error("GetPeriodSchedule(daily) should fail")
	}
}
