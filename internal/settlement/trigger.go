package settlement

import (
	"time"

	"github.com/freightops/settlements/internal/freight"
	"github.com/freightops/settlements/internal/payable"
	"github.com/freightops/settlements/internal/payplan"
)

// Trigger resolution decides the single timestamp that places a payable
// into a period. Load-linked payables walk an ordered list of resolver
// steps; the first step that produces a value wins, and a chain that
// produces nothing leaves the payable unresolved. Unresolved payables are
// excluded from generation and surfaced separately, never guessed.

type resolverStep func(snap *freight.Snapshot) *time.Time

func legCompletion(snap *freight.Snapshot) *time.Time {
	if snap.Leg == nil {
		return nil
	}
	return snap.Leg.CompletedAt
}

func legDestinationCheckout(snap *freight.Snapshot) *time.Time {
	if snap.LegDestination == nil {
		return nil
	}
	return snap.LegDestination.CheckedOutAt
}

func lastDeliveryCheckout(snap *freight.Snapshot) *time.Time {
	if snap.LastDeliveryStop == nil {
		return nil
	}
	return snap.LastDeliveryStop.CheckedOutAt
}

func lastDeliveryWindowEnd(snap *freight.Snapshot) *time.Time {
	if snap.LastDeliveryStop == nil {
		return nil
	}
	return snap.LastDeliveryStop.WindowEndsAt
}

func lastDeliveryWindowBegin(snap *freight.Snapshot) *time.Time {
	if snap.LastDeliveryStop == nil {
		return nil
	}
	return snap.LastDeliveryStop.WindowBeginsAt
}

// loadLinkedChain returns the resolver steps for a load-linked payable in
// strict priority order. COMPLETION_DATE promotes the leg completion
// timestamp to the front; it also remains in its secondary slot, which is
// harmless. There is deliberately no creation-time fallback here: a load
// with no real delivery signal must not drift into the current period.
func loadLinkedChain(trigger string) []resolverStep {
	steps := make([]resolverStep, 0, 6)
	if trigger == payplan.TriggerCompletionDate {
		steps = append(steps, legCompletion)
	}
	return append(steps,
		legDestinationCheckout,
		legCompletion,
		lastDeliveryCheckout,
		lastDeliveryWindowEnd,
		lastDeliveryWindowBegin,
	)
}

// ResolveTrigger returns the payable's trigger timestamp, or ok=false
// when it cannot be determined.
func ResolveTrigger(p *payable.Payable, snap *freight.Snapshot, trigger string) (time.Time, bool) {
	if trigger == payplan.TriggerApprovalDate {
		// only items that have been through an approved settlement resolve
		if p.ApprovedAt == nil {
			return time.Time{}, false
		}
		return *p.ApprovedAt, true
	}

	if p.IsStandalone() {
		return p.CreatedAt, true
	}

	if snap == nil || snap.Load == nil {
		return time.Time{}, false
	}
	for _, step := range loadLinkedChain(trigger) {
		if ts := step(snap); ts != nil {
			return *ts, true
		}
	}
	return time.Time{}, false
}
