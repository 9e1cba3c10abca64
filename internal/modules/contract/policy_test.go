package contract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(n int) *int { return &n }

func TestBillingPolicyValidate(t *testing.T) {
	tests := []struct {
		name    string
		policy  BillingPolicy
		wantErr string
	}{
		{
			name:   "monthly with monthday anchor",
			policy: BillingPolicy{Interval: IntervalMonth, IntervalCount: 1, Anchors: []Anchor{{Type: AnchorMonthday, Day: 31}}},
		},
		{
			name:   "daily without anchors",
			policy: BillingPolicy{Interval: IntervalDay, IntervalCount: 7},
		},
		{
			name:   "yearly with yearday anchor",
			policy: BillingPolicy{Interval: IntervalYear, IntervalCount: 1, Anchors: []Anchor{{Type: AnchorYearday, Month: 2, Day: 29}}},
		},
		{
			name:    "unknown interval",
			policy:  BillingPolicy{Interval: "FORTNIGHT", IntervalCount: 1},
			wantErr: "unknown interval",
		},
		{
			name:    "zero interval count",
			policy:  BillingPolicy{Interval: IntervalMonth, IntervalCount: 0},
			wantErr: "interval_count",
		},
		{
			name:    "day interval rejects anchors",
			policy:  BillingPolicy{Interval: IntervalDay, IntervalCount: 1, Anchors: []Anchor{{Type: AnchorWeekday, Day: 1}}},
			wantErr: "does not take anchors",
		},
		{
			name:    "anchor type must match interval",
			policy:  BillingPolicy{Interval: IntervalMonth, IntervalCount: 1, Anchors: []Anchor{{Type: AnchorWeekday, Day: 1}}},
			wantErr: "does not match",
		},
		{
			name:    "weekday out of range",
			policy:  BillingPolicy{Interval: IntervalWeek, IntervalCount: 1, Anchors: []Anchor{{Type: AnchorWeekday, Day: 8}}},
			wantErr: "weekday anchor",
		},
		{
			name:    "monthday out of range",
			policy:  BillingPolicy{Interval: IntervalMonth, IntervalCount: 1, Anchors: []Anchor{{Type: AnchorMonthday, Day: 32}}},
			wantErr: "monthday anchor",
		},
		{
			name:    "yearday month out of range",
			policy:  BillingPolicy{Interval: IntervalYear, IntervalCount: 1, Anchors: []Anchor{{Type: AnchorYearday, Month: 13, Day: 1}}},
			wantErr: "yearday anchor month",
		},
		{
			name:    "negative min cycles",
			policy:  BillingPolicy{Interval: IntervalMonth, IntervalCount: 1, MinCycles: -1},
			wantErr: "min_cycles",
		},
		{
			name:    "max cycles below one",
			policy:  BillingPolicy{Interval: IntervalMonth, IntervalCount: 1, MaxCycles: intPtr(0)},
			wantErr: "max_cycles",
		},
		{
			name:    "min exceeds max",
			policy:  BillingPolicy{Interval: IntervalMonth, IntervalCount: 1, MinCycles: 5, MaxCycles: intPtr(3)},
			wantErr: "exceeds max_cycles",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestDeliveryPolicyValidate(t *testing.T) {
	ok := DeliveryPolicy{Interval: IntervalWeek, IntervalCount: 2, Anchors: []Anchor{{Type: AnchorWeekday, Day: 5}}}
	assert.NoError(t, ok.Validate())

	bad := DeliveryPolicy{Interval: IntervalWeek, IntervalCount: 0}
	assert.Error(t, bad.Validate())
}
