// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for advancing a recurring rule's
// cursor. Each frequency has its own schedule that computes the period that
// follows a given one. A cursor on the start date's day (clamped to the month
// length) stays on that anchor so month-end rules never drift; any other
// cursor steps from itself.
package services

import (
	"fmt"

	"bilancio/internal/core"
)

// PeriodSchedule is the strategy interface for stepping through a rule's periods.
type PeriodSchedule interface {
	// Next returns the period after cursor for a rule anchored on start.
	Next(start, cursor core.Date) core.Date
}

// MonthlySchedule steps one calendar month, clamping to shorter months.
type MonthlySchedule struct{}

func (MonthlySchedule) Next(start, cursor core.Date) core.Date {
	if core.OnMonthlyAnchor(start, cursor) {
		return core.NthMonthlyPeriod(start, core.MonthsBetween(start, cursor)+1)
	}
	return core.AddMonthsClamped(cursor, 1)
}

// WeeklySchedule steps seven days.
type WeeklySchedule struct{}

func (WeeklySchedule) Next(_, cursor core.Date) core.Date {
	return core.Date{Time: cursor.AddDate(0, 0, 7)}
}

// YearlySchedule steps one year; a Feb 29 anchor lands on Feb 28 in common years.
type YearlySchedule struct{}

func (YearlySchedule) Next(start, cursor core.Date) core.Date {
	if cursor.Month() == start.Month() && core.OnMonthlyAnchor(start, cursor) {
		years := cursor.Year() - start.Year() + 1
		return core.NthMonthlyPeriod(start, 12*years)
	}
	return core.AddMonthsClamped(cursor, 12)
}

// scheduleStrategies maps frequencies to their schedules.
var scheduleStrategies = map[core.Frequency]PeriodSchedule{
	core.Monthly: MonthlySchedule{},
	core.Weekly:  WeeklySchedule{},
	core.Yearly:  YearlySchedule{},
}

// GetPeriodSchedule returns the schedule for a frequency.
func GetPeriodSchedule(frequency core.Frequency) (PeriodSchedule, error) {
	s, ok := scheduleStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown frequency: %s", frequency)
	}
	return s, nil
}
