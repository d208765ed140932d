package settlement

import (
	"testing"
	"time"

	"github.com/freightops/settlements/internal/freight"
	"github.com/freightops/settlements/internal/payable"
	"github.com/freightops/settlements/internal/payplan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(day int, hour int) *time.Time {
	t := time.Date(2026, time.June, day, hour, 0, 0, 0, time.UTC)
	return &t
}

func loadLinkedPayable() *payable.Payable {
	loadID := int64(1)
	return &payable.Payable{ID: 1, LoadID: &loadID, CreatedAt: time.Date(2026, time.June, 20, 8, 0, 0, 0, time.UTC)}
}

func TestResolveTriggerPrefersLegDestinationCheckout(t *testing.T) {
	snap := &freight.Snapshot{
		Load:             &freight.Load{ID: 1},
		Leg:              &freight.Leg{CompletedAt: ts(12, 10)},
		LegDestination:   &freight.Stop{CheckedOutAt: ts(11, 14)},
		LastDeliveryStop: &freight.Stop{CheckedOutAt: ts(10, 9)},
	}

	got, ok := ResolveTrigger(loadLinkedPayable(), snap, payplan.TriggerDeliveryDate)

	require.True(t, ok)
	assert.True(t, got.Equal(*ts(11, 14)), "checkout should beat leg completion for delivery-date plans")
}

func TestResolveTriggerCompletionDatePromotesLegCompletion(t *testing.T) {
	snap := &freight.Snapshot{
		Load:           &freight.Load{ID: 1},
		Leg:            &freight.Leg{CompletedAt: ts(12, 10)},
		LegDestination: &freight.Stop{CheckedOutAt: ts(11, 14)},
	}

	got, ok := ResolveTrigger(loadLinkedPayable(), snap, payplan.TriggerCompletionDate)

	require.True(t, ok)
	assert.True(t, got.Equal(*ts(12, 10)))
}

func TestResolveTriggerFallbackOrder(t *testing.T) {
	cases := []struct {
		name string
		snap *freight.Snapshot
		want time.Time
	}{
		{
			name: "leg completion when no checkout",
			snap: &freight.Snapshot{
				Load: &freight.Load{ID: 1},
				Leg:  &freight.Leg{CompletedAt: ts(12, 10)},
			},
			want: *ts(12, 10),
		},
		{
			name: "last delivery checkout",
			snap: &freight.Snapshot{
				Load:             &freight.Load{ID: 1},
				LastDeliveryStop: &freight.Stop{CheckedOutAt: ts(10, 9), WindowEndsAt: ts(10, 17)},
			},
			want: *ts(10, 9),
		},
		{
			name: "window end when never checked out",
			snap: &freight.Snapshot{
				Load:             &freight.Load{ID: 1},
				LastDeliveryStop: &freight.Stop{WindowEndsAt: ts(10, 17), WindowBeginsAt: ts(10, 8)},
			},
			want: *ts(10, 17),
		},
		{
			name: "window begin as the last resort",
			snap: &freight.Snapshot{
				Load:             &freight.Load{ID: 1},
				LastDeliveryStop: &freight.Stop{WindowBeginsAt: ts(10, 8)},
			},
			want: *ts(10, 8),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ResolveTrigger(loadLinkedPayable(), tc.snap, payplan.TriggerDeliveryDate)
			require.True(t, ok)
			assert.True(t, got.Equal(tc.want))
		})
	}
}

func TestResolveTriggerLoadLinkedWithoutSignalIsUnresolved(t *testing.T) {
	// no creation-time fallback: a load with no delivery signal must not
	// drift into the current period
	snap := &freight.Snapshot{
		Load:             &freight.Load{ID: 1},
		LastDeliveryStop: &freight.Stop{},
	}

	_, ok := ResolveTrigger(loadLinkedPayable(), snap, payplan.TriggerDeliveryDate)
	assert.False(t, ok)

	_, ok = ResolveTrigger(loadLinkedPayable(), nil, payplan.TriggerDeliveryDate)
	assert.False(t, ok)
}

func TestResolveTriggerStandaloneUsesCreation(t *testing.T) {
	created := time.Date(2026, time.June, 20, 8, 0, 0, 0, time.UTC)
	p := &payable.Payable{ID: 2, CreatedAt: created}

	got, ok := ResolveTrigger(p, nil, payplan.TriggerDeliveryDate)

	require.True(t, ok)
	assert.True(t, got.Equal(created))
}

func TestResolveTriggerApprovalDate(t *testing.T) {
	p := loadLinkedPayable()
	_, ok := ResolveTrigger(p, nil, payplan.TriggerApprovalDate)
	assert.False(t, ok, "never-approved payable has no approval trigger")

	p.ApprovedAt = ts(5, 12)
	got, ok := ResolveTrigger(p, nil, payplan.TriggerApprovalDate)
	require.True(t, ok)
	assert.True(t, got.Equal(*ts(5, 12)))
}
