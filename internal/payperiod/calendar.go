package payperiod

import (
	"time"
)

// HolidayCalendar is an explicit, caller-owned set of non-banking dates.
// It is injected into schedules that want pay dates moved off weekends
// and holidays; there is no process-global holiday state.
type HolidayCalendar struct {
	dates map[string]struct{}
}

const dateKeyLayout = "2006-01-02"

func NewHolidayCalendar(dates []time.Time) *HolidayCalendar {
	c := &HolidayCalendar{dates: make(map[string]struct{}, len(dates))}
	for _, d := range dates {
		c.dates[d.Format(dateKeyLayout)] = struct{}{}
	}
	return c
}

// ParseHolidayCalendar builds a calendar from YYYY-MM-DD strings, the
// shape they arrive in from configuration.
func ParseHolidayCalendar(dates []string) (*HolidayCalendar, error) {
	parsed := make([]time.Time, 0, len(dates))
	for _, s := range dates {
		d, err := time.Parse(dateKeyLayout, s)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, d)
	}
	return NewHolidayCalendar(parsed), nil
}

func (c *HolidayCalendar) IsHoliday(t time.Time) bool {
	if c == nil {
		return false
	}
	_, ok := c.dates[t.Format(dateKeyLayout)]
	return ok
}

// IsBusinessDay reports whether t is neither a weekend nor a holiday.
func (c *HolidayCalendar) IsBusinessDay(t time.Time) bool {
	wd := t.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return !c.IsHoliday(t)
}

// NextBusinessDay returns t unchanged when it already is a business day,
// otherwise the first business day after it.
func (c *HolidayCalendar) NextBusinessDay(t time.Time) time.Time {
	day := t
	for !c.IsBusinessDay(day) {
		day = addDays(day, 1)
	}
	return day
}
