package payperiod

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chicago(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	return loc
}

func TestWeeklyPeriodAnchoredMonday(t *testing.T) {
	loc := chicago(t)
	s := Schedule{Frequency: FrequencyWeekly, AnchorDayOfWeek: time.Monday, Location: loc}

	// Wednesday 2024-06-12
	ref := time.Date(2024, time.June, 12, 10, 30, 0, 0, loc)
	p, err := s.PeriodFor(ref)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, time.June, 10, 0, 0, 0, 0, loc), p.Start)
	assert.Equal(t, time.Date(2024, time.June, 17, 0, 0, 0, 0, loc).Add(-time.Millisecond), p.End)
	assert.Equal(t, time.Date(2024, time.June, 17, 0, 0, 0, 0, loc), p.PayDate)
}

func TestWeeklyReferenceOnAnchorDay(t *testing.T) {
	loc := chicago(t)
	s := Schedule{Frequency: FrequencyWeekly, AnchorDayOfWeek: time.Monday, Location: loc}

	ref := time.Date(2024, time.June, 10, 0, 0, 0, 0, loc)
	p, err := s.PeriodFor(ref)
	require.NoError(t, err)
	assert.Equal(t, ref, p.Start, "a reference on the anchor day starts its own period")
}

func TestPeriodCalculationIsIdempotent(t *testing.T) {
	loc := chicago(t)
	schedules := []Schedule{
		{Frequency: FrequencyWeekly, AnchorDayOfWeek: time.Friday, Location: loc},
		{Frequency: FrequencyBiweekly, AnchorDayOfWeek: time.Monday, Location: loc},
		{Frequency: FrequencySemimonthly, Location: loc},
		{Frequency: FrequencyMonthly, AnchorDayOfMonth: 5, Location: loc},
	}
	ref := time.Date(2025, time.March, 19, 14, 0, 0, 0, loc)

	for _, s := range schedules {
		first, err := s.PeriodFor(ref)
		require.NoError(t, err)
		second, err := s.PeriodFor(ref)
		require.NoError(t, err)
		assert.True(t, first.Start.Equal(second.Start), "%s start", s.Frequency)
		assert.True(t, first.End.Equal(second.End), "%s end", s.Frequency)
		assert.True(t, first.PayDate.Equal(second.PayDate), "%s pay date", s.Frequency)
	}
}

func TestBiweeklyBoundariesDoNotDriftWithReference(t *testing.T) {
	loc := chicago(t)
	s := Schedule{Frequency: FrequencyBiweekly, AnchorDayOfWeek: time.Monday, Location: loc}

	// Two references a year apart must land on the same global grid:
	// their period starts differ by a whole number of 14-day blocks.
	a, err := s.PeriodFor(time.Date(2024, time.February, 7, 12, 0, 0, 0, loc))
	require.NoError(t, err)
	b, err := s.PeriodFor(time.Date(2025, time.February, 7, 12, 0, 0, 0, loc))
	require.NoError(t, err)

	days := daysBetween(a.Start, b.Start)
	assert.Zero(t, days%14, "starts %s and %s are not on the same biweekly grid", a.Start, b.Start)
	assert.Equal(t, time.Monday, a.Start.Weekday())
	assert.Equal(t, time.Monday, b.Start.Weekday())
}

func TestBiweeklyRespectsConfiguredWeekday(t *testing.T) {
	loc := chicago(t)
	s := Schedule{Frequency: FrequencyBiweekly, AnchorDayOfWeek: time.Wednesday, Location: loc}

	p, err := s.PeriodFor(time.Date(2024, time.August, 2, 9, 0, 0, 0, loc))
	require.NoError(t, err)
	assert.Equal(t, time.Wednesday, p.Start.Weekday())
	assert.True(t, p.Contains(time.Date(2024, time.August, 2, 9, 0, 0, 0, loc)))
}

func TestSemimonthlySecondHalf(t *testing.T) {
	loc := chicago(t)
	s := Schedule{Frequency: FrequencySemimonthly, Location: loc}

	// the 20th falls in [16th, end-of-month]
	p, err := s.PeriodFor(time.Date(2024, time.April, 20, 8, 0, 0, 0, loc))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.April, 16, 0, 0, 0, 0, loc), p.Start)
	assert.Equal(t, time.Date(2024, time.May, 1, 0, 0, 0, 0, loc).Add(-time.Millisecond), p.End)
}

func TestSemimonthlyFirstHalf(t *testing.T) {
	loc := chicago(t)
	s := Schedule{Frequency: FrequencySemimonthly, Location: loc}

	p, err := s.PeriodFor(time.Date(2024, time.April, 15, 23, 0, 0, 0, loc))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.April, 1, 0, 0, 0, 0, loc), p.Start)
	assert.Equal(t, time.Date(2024, time.April, 16, 0, 0, 0, 0, loc).Add(-time.Millisecond), p.End)
}

func TestMonthlyAnchorClampedInFebruary(t *testing.T) {
	loc := chicago(t)
	s := Schedule{Frequency: FrequencyMonthly, AnchorDayOfMonth: 28, Location: loc}

	// Feb 2023 is a 28-day month; reference on the 10th rolls back to Jan 28
	p, err := s.PeriodFor(time.Date(2023, time.February, 10, 0, 0, 0, 0, loc))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, time.January, 28, 0, 0, 0, 0, loc), p.Start)
	assert.Equal(t, time.Date(2023, time.February, 28, 0, 0, 0, 0, loc).Add(-time.Millisecond), p.End)
}

func TestMonthlyRollsBackBeforeAnchor(t *testing.T) {
	loc := chicago(t)
	s := Schedule{Frequency: FrequencyMonthly, AnchorDayOfMonth: 15, Location: loc}

	p, err := s.PeriodFor(time.Date(2024, time.July, 3, 0, 0, 0, 0, loc))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.June, 15, 0, 0, 0, 0, loc), p.Start)
}

func TestNextPeriodsAreContiguous(t *testing.T) {
	loc := chicago(t)
	schedules := []Schedule{
		{Frequency: FrequencyWeekly, AnchorDayOfWeek: time.Monday, Location: loc},
		{Frequency: FrequencyBiweekly, AnchorDayOfWeek: time.Friday, Location: loc},
		{Frequency: FrequencySemimonthly, Location: loc},
		{Frequency: FrequencyMonthly, AnchorDayOfMonth: 1, Location: loc},
	}

	for _, s := range schedules {
		periods, err := s.NextPeriods(time.Date(2024, time.January, 20, 6, 0, 0, 0, loc), 26)
		require.NoError(t, err)
		require.Len(t, periods, 26)

		for i := 1; i < len(periods); i++ {
			prev, cur := periods[i-1], periods[i]
			assert.True(t, cur.Start.Equal(prev.End.Add(time.Millisecond)),
				"%s: period %d start %s does not follow previous end %s", s.Frequency, i, cur.Start, prev.End)
			assert.True(t, cur.End.After(cur.Start))
		}
	}
}

func TestNextPeriodsSpanDSTTransition(t *testing.T) {
	loc := chicago(t)
	s := Schedule{Frequency: FrequencyWeekly, AnchorDayOfWeek: time.Sunday, Location: loc}

	// US DST starts 2024-03-10; the grid must stay on local midnights.
	periods, err := s.NextPeriods(time.Date(2024, time.March, 1, 12, 0, 0, 0, loc), 4)
	require.NoError(t, err)
	for _, p := range periods {
		h, m, sec := p.Start.Clock()
		assert.Zero(t, h)
		assert.Zero(t, m)
		assert.Zero(t, sec)
	}
}

func TestPayDateAppliesPaymentLag(t *testing.T) {
	loc := chicago(t)
	s := Schedule{Frequency: FrequencyWeekly, AnchorDayOfWeek: time.Monday, PaymentLagDays: 3, Location: loc}

	p, err := s.PeriodFor(time.Date(2024, time.June, 12, 0, 0, 0, 0, loc))
	require.NoError(t, err)
	// period ends Sunday night; pay date = Monday + 3 days = Thursday
	assert.Equal(t, time.Date(2024, time.June, 20, 0, 0, 0, 0, loc), p.PayDate)
}

func TestPayDateRollsPastWeekendAndHoliday(t *testing.T) {
	loc := chicago(t)
	cal := NewHolidayCalendar([]time.Time{
		time.Date(2024, time.June, 17, 0, 0, 0, 0, loc),
	})
	s := Schedule{
		Frequency:       FrequencyWeekly,
		AnchorDayOfWeek: time.Wednesday,
		Location:        loc,
		Calendar:        cal,
	}

	// period ends Tuesday night 2024-06-11; raw pay date Wed 2024-06-12 is
	// a business day and sticks
	p, err := s.PeriodFor(time.Date(2024, time.June, 6, 0, 0, 0, 0, loc))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.June, 12, 0, 0, 0, 0, loc), p.PayDate)

	// lag pushes the raw pay date to Saturday 2024-06-15; the Monday after
	// is a holiday, so payment lands on Tuesday
	s.PaymentLagDays = 3
	p, err = s.PeriodFor(time.Date(2024, time.June, 6, 0, 0, 0, 0, loc))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.June, 18, 0, 0, 0, 0, loc), p.PayDate)
}

func TestScheduleValidation(t *testing.T) {
	cases := []struct {
		name string
		s    Schedule
		ok   bool
	}{
		{"unknown frequency", Schedule{Frequency: "DAILY"}, false},
		{"monthly anchor too low", Schedule{Frequency: FrequencyMonthly, AnchorDayOfMonth: 0}, false},
		{"monthly anchor too high", Schedule{Frequency: FrequencyMonthly, AnchorDayOfMonth: 29}, false},
		{"negative lag", Schedule{Frequency: FrequencyWeekly, PaymentLagDays: -1}, false},
		{"valid weekly", Schedule{Frequency: FrequencyWeekly, AnchorDayOfWeek: time.Monday}, true},
		{"valid monthly", Schedule{Frequency: FrequencyMonthly, AnchorDayOfMonth: 28}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.s.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestFloorDiv(t *testing.T) {
	assert.Equal(t, 0, floorDiv(13, 14))
	assert.Equal(t, 1, floorDiv(14, 14))
	assert.Equal(t, -1, floorDiv(-1, 14))
	assert.Equal(t, -1, floorDiv(-14, 14))
	assert.Equal(t, -2, floorDiv(-15, 14))
}
