package payperiod

import (
	"errors"
	"fmt"
	"time"
)

type Frequency string

const (
	FrequencyWeekly      Frequency = "WEEKLY"
	FrequencyBiweekly    Frequency = "BIWEEKLY"
	FrequencySemimonthly Frequency = "SEMIMONTHLY"
	FrequencyMonthly     Frequency = "MONTHLY"
)

// biweeklyEpoch anchors all biweekly plans to the same global two-week
// grid. Monday 2007-01-01. Plans created at different times land on the
// same boundaries; only the weekday offset of the plan shifts the grid.
var biweeklyEpoch = time.Date(2007, time.January, 1, 0, 0, 0, 0, time.UTC)

// periodEndSlack is how far before midnight the stored period end sits.
const periodEndSlack = time.Millisecond

// Period is one pay period. Start is local midnight; End is the last
// valid instant of the period (start of next period minus 1ms); PayDate
// is local midnight of the day the payee is paid.
type Period struct {
	Start   time.Time
	End     time.Time
	PayDate time.Time
}

// Contains reports whether t falls inside [Start, End].
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

func (p Period) String() string {
	return fmt.Sprintf("[%s, %s]", p.Start.Format("2006-01-02"), p.End.Format("2006-01-02"))
}

// Schedule is the pay-period policy of a single plan, reduced to what the
// calculator needs. It carries no database state; the same schedule and
// reference instant always produce the same period.
type Schedule struct {
	Frequency        Frequency
	AnchorDayOfWeek  time.Weekday // WEEKLY and BIWEEKLY
	AnchorDayOfMonth int          // MONTHLY, 1-28
	Location         *time.Location
	PaymentLagDays   int

	// Calendar, when set, rolls the pay date forward past weekends and
	// holidays. Nil means pay dates land wherever the arithmetic puts them.
	Calendar *HolidayCalendar
}

func (s Schedule) Validate() error {
	switch s.Frequency {
	case FrequencyWeekly, FrequencyBiweekly, FrequencySemimonthly:
	case FrequencyMonthly:
		if s.AnchorDayOfMonth < 1 || s.AnchorDayOfMonth > 28 {
			return fmt.Errorf("monthly anchor day %d out of range 1-28", s.AnchorDayOfMonth)
		}
	default:
		return fmt.Errorf("unknown pay frequency %q", s.Frequency)
	}
	if s.PaymentLagDays < 0 {
		return errors.New("payment lag days cannot be negative")
	}
	return nil
}

func (s Schedule) location() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.UTC
}

// PeriodFor returns the period enclosing the reference instant.
func (s Schedule) PeriodFor(ref time.Time) (Period, error) {
	if err := s.Validate(); err != nil {
		return Period{}, err
	}

	loc := s.location()
	local := ref.In(loc)

	var start, nextStart time.Time
	switch s.Frequency {
	case FrequencyWeekly:
		start = s.weekStart(local, loc)
		nextStart = addDays(start, 7)
	case FrequencyBiweekly:
		start = s.biweekStart(local, loc)
		nextStart = addDays(start, 14)
	case FrequencySemimonthly:
		start, nextStart = semimonthlyBounds(local, loc)
	case FrequencyMonthly:
		start, nextStart = s.monthlyBounds(local, loc)
	}

	end := nextStart.Add(-periodEndSlack)
	return Period{
		Start:   start,
		End:     end,
		PayDate: s.payDate(nextStart),
	}, nil
}

// NextPeriods returns the n periods following the one enclosing ref, the
// enclosing period included as the first element. Feeding each period's
// end plus 1ms back in guarantees no gaps and no overlaps.
func (s Schedule) NextPeriods(ref time.Time, n int) ([]Period, error) {
	if n <= 0 {
		return nil, nil
	}
	periods := make([]Period, 0, n)
	cursor := ref
	for i := 0; i < n; i++ {
		p, err := s.PeriodFor(cursor)
		if err != nil {
			return nil, err
		}
		periods = append(periods, p)
		cursor = p.End.Add(periodEndSlack)
	}
	return periods, nil
}

// weekStart finds the most recent occurrence of the anchor weekday on or
// before the reference date, at local midnight.
func (s Schedule) weekStart(local time.Time, loc *time.Location) time.Time {
	day := midnight(local, loc)
	back := (int(day.Weekday()) - int(s.AnchorDayOfWeek) + 7) % 7
	return addDays(day, -back)
}

// biweekStart measures whole two-week blocks from the global epoch so
// period boundaries never depend on when the plan was created. The epoch
// is a Monday; the plan's weekday offset shifts the grid before counting.
func (s Schedule) biweekStart(local time.Time, loc *time.Location) time.Time {
	offset := (int(s.AnchorDayOfWeek) - int(time.Monday) + 7) % 7
	epoch := time.Date(biweeklyEpoch.Year(), biweeklyEpoch.Month(), biweeklyEpoch.Day()+offset, 0, 0, 0, 0, loc)

	day := midnight(local, loc)
	elapsed := daysBetween(epoch, day)
	blocks := floorDiv(elapsed, 14)
	return addDays(epoch, blocks*14)
}

// semimonthlyBounds splits every month into fixed halves: the 1st through
// the 15th, and the 16th through end of month.
func semimonthlyBounds(local time.Time, loc *time.Location) (start, nextStart time.Time) {
	y, m, d := local.Date()
	if d <= 15 {
		start = time.Date(y, m, 1, 0, 0, 0, 0, loc)
		nextStart = time.Date(y, m, 16, 0, 0, 0, 0, loc)
	} else {
		start = time.Date(y, m, 16, 0, 0, 0, 0, loc)
		nextStart = time.Date(y, m+1, 1, 0, 0, 0, 0, loc)
	}
	return start, nextStart
}

func (s Schedule) monthlyBounds(local time.Time, loc *time.Location) (start, nextStart time.Time) {
	y, m, d := local.Date()
	anchor := clampToMonth(s.AnchorDayOfMonth, y, m)
	if d < anchor {
		// before this month's anchor: the period started last month
		y, m = rollBackMonth(y, m)
		anchor = clampToMonth(s.AnchorDayOfMonth, y, m)
	}
	start = time.Date(y, m, anchor, 0, 0, 0, 0, loc)

	ny, nm := rollForwardMonth(y, m)
	nextStart = time.Date(ny, nm, clampToMonth(s.AnchorDayOfMonth, ny, nm), 0, 0, 0, 0, loc)
	return start, nextStart
}

// payDate is local midnight of the day after the period ends, pushed out
// by the payment lag and optionally rolled to the next business day.
func (s Schedule) payDate(nextStart time.Time) time.Time {
	pay := addDays(nextStart, s.PaymentLagDays)
	if s.Calendar != nil {
		pay = s.Calendar.NextBusinessDay(pay)
	}
	return pay
}

// ----------------- date helpers -----------------

func midnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// addDays advances by whole calendar days, staying at local midnight even
// across DST transitions.
func addDays(t time.Time, n int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+n, 0, 0, 0, 0, t.Location())
}

// daysBetween counts calendar days from a to b; negative when b precedes a.
func daysBetween(a, b time.Time) int {
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

// floorDiv rounds toward negative infinity, unlike Go's truncating /.
func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func clampToMonth(day, year int, month time.Month) int {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		return last
	}
	return day
}

func rollBackMonth(y int, m time.Month) (int, time.Month) {
	if m == time.January {
		return y - 1, time.December
	}
	return y, m - 1
}

func rollForwardMonth(y int, m time.Month) (int, time.Month) {
	if m == time.December {
		return y + 1, time.January
	}
	return y, m + 1
}
