package settlement

import (
	"time"

	"github.com/freightops/settlements/internal/freight"
	"github.com/freightops/settlements/internal/payable"
	"github.com/freightops/settlements/internal/payperiod"
)

// PeriodPolicy is everything eligibility needs besides the candidate
// lines themselves: the window, the cutoff clock, and the plan flags.
type PeriodPolicy struct {
	Period             payperiod.Period
	Location           *time.Location
	CutoffHour         int
	CutoffMinute       int
	Trigger            string
	IncludeHeld        bool
	IncludeStandalones bool
}

// FilterResult buckets the candidate pool. Held and Unresolved are kept
// so operators can see what generation left out and why.
type FilterResult struct {
	Eligible   []*payable.Payable
	Held       []*payable.Payable
	Unresolved []*payable.Payable
}

// FilterEligible decides period membership for a set of unassigned
// payables. snaps maps load ID to its dispatch snapshot; load-linked
// payables with no snapshot are unresolved.
func FilterEligible(pool []*payable.Payable, snaps map[int64]*freight.Snapshot, policy PeriodPolicy) FilterResult {
	var result FilterResult

	for _, p := range pool {
		if p.IsStandalone() {
			// standalone adjustments follow the simpler creation-time rule
			// and skip the cutoff check; plans can opt out of them entirely
			if policy.IncludeStandalones && policy.Period.Contains(p.CreatedAt) {
				result.Eligible = append(result.Eligible, p)
			}
			continue
		}

		snap := snaps[*p.LoadID]
		if snap != nil && snap.Load != nil && snap.Load.IsHeld && !policy.IncludeHeld {
			result.Held = append(result.Held, p)
			continue
		}

		trigger, ok := ResolveTrigger(p, snap, policy.Trigger)
		if !ok {
			result.Unresolved = append(result.Unresolved, p)
			continue
		}

		if policy.admits(trigger) {
			result.Eligible = append(result.Eligible, p)
		}
	}

	return result
}

// admits applies the window and cutoff rules. The effective window runs
// cutoff to cutoff: an event on the final calendar day after the cutoff
// clock is rejected here, and the matching spillover from the day just
// before the window start is admitted, so a late boundary-day event lands
// in exactly one period.
func (policy PeriodPolicy) admits(trigger time.Time) bool {
	loc := policy.Location
	if loc == nil {
		loc = time.UTC
	}
	local := trigger.In(loc)
	h, m, _ := local.Clock()
	afterCutoff := h > policy.CutoffHour || (h == policy.CutoffHour && m > policy.CutoffMinute)

	if policy.Period.Contains(trigger) {
		if afterCutoff && sameCalendarDay(local, policy.Period.End.In(loc)) {
			return false
		}
		return true
	}

	if trigger.Before(policy.Period.Start) {
		prevDay := policy.Period.Start.In(loc).AddDate(0, 0, -1)
		return afterCutoff && sameCalendarDay(local, prevDay)
	}
	return false
}

func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
