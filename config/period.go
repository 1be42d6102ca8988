package config

import (
	"fmt"
	"time"
)

// Period is the calendar unit a streak type counts in.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

func (p Period) valid() bool {
	switch p {
	case PeriodDay, PeriodWeek, PeriodMonth:
		return true
	}
	return false
}

// Start returns the first calendar day of the period containing date.
// date must already be a calendar day (midnight UTC, see Progression.Today).
// Weeks start on Monday.
func (p Period) Start(date time.Time) time.Time {
	switch p {
	case PeriodWeek:
		offset := (int(date.Weekday()) + 6) % 7
		return date.AddDate(0, 0, -offset)
	case PeriodMonth:
		return time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return date
	}
}

// Previous returns the start of the period immediately before the one
// starting at start.
func (p Period) Previous(start time.Time) time.Time {
	switch p {
	case PeriodWeek:
		return start.AddDate(0, 0, -7)
	case PeriodMonth:
		return start.AddDate(0, -1, 0)
	default:
		return start.AddDate(0, 0, -1)
	}
}

// Next returns the start of the period immediately after the one starting at start.
func (p Period) Next(start time.Time) time.Time {
	switch p {
	case PeriodWeek:
		return start.AddDate(0, 0, 7)
	case PeriodMonth:
		return start.AddDate(0, 1, 0)
	default:
		return start.AddDate(0, 0, 1)
	}
}

// SchedulePolicy decides what a streak bonus schedule pays once the streak
// count runs past the end of the configured list.
type SchedulePolicy string

const (
	// ScheduleStop pays nothing past the end of the list.
	ScheduleStop SchedulePolicy = "stop"
	// ScheduleCycle starts over from the first entry.
	ScheduleCycle SchedulePolicy = "cycle"
	// ScheduleRepeatLast keeps paying the final entry.
	ScheduleRepeatLast SchedulePolicy = "repeat_last"
)

func parsePolicy(s SchedulePolicy) (SchedulePolicy, error) {
	switch s {
	case "":
		return ScheduleStop, nil
	case ScheduleStop, ScheduleCycle, ScheduleRepeatLast:
		return s, nil
	}
	return "", fmt.Errorf("unknown after_schedule policy %q", s)
}
