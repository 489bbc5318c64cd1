package services

import (
	"fmt"
	"time"

	"fintrack/internal/core"
)

// PeriodWindow computes the date range a budget's spending is tracked over.
// Zero bounds are open.
type PeriodWindow interface {
	Window(now time.Time) (from, to core.Date)
}

type AllTimeWindow struct{}

func (AllTimeWindow) Window(time.Time) (core.Date, core.Date) {
	return core.Date{}, core.Date{}
}

// WeeklyWindow is the ISO week containing now, Monday to Sunday.
type WeeklyWindow struct{}

func (WeeklyWindow) Window(now time.Time) (core.Date, core.Date) {
	today := core.DateOf(now)
	offset := (int(today.Weekday()) + 6) % 7
	monday := today.AddDays(-offset)
	return monday, monday.AddDays(6)
}

type MonthlyWindow struct{}

func (MonthlyWindow) Window(now time.Time) (core.Date, core.Date) {
	return core.MonthBounds(now)
}

type YearlyWindow struct{}

func (YearlyWindow) Window(now time.Time) (core.Date, core.Date) {
	y := core.DateOf(now).Year()
	return core.NewDate(y, 1, 1), core.NewDate(y, 12, 31)
}

var periodWindows = map[core.BudgetPeriod]PeriodWindow{
	core.PeriodAll:     AllTimeWindow{},
	core.PeriodWeekly:  WeeklyWindow{},
	core.PeriodMonthly: MonthlyWindow{},
	core.PeriodYearly:  YearlyWindow{},
}

func GetPeriodWindow(p core.BudgetPeriod) (PeriodWindow, error) {
	if p == "" {
		p = core.PeriodAll
	}
	w, ok := periodWindows[p]
	if !ok {
		return nil, fmt.Errorf("unknown budget period: %s", p)
	}
	return w, nil
}

// RegisterPeriodWindow adds or replaces the window for a period. Not safe
// for use once services are running.
func RegisterPeriodWindow(p core.BudgetPeriod, w PeriodWindow) {
	periodWindows[p] = w
}
