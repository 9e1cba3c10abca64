package cycle

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkabwe/subcycle-backend/internal/modules/contract"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func monthly(count, anchorDay int) contract.BillingPolicy {
	return contract.BillingPolicy{
		Interval:      contract.IntervalMonth,
		IntervalCount: count,
		Anchors:       []contract.Anchor{{Type: contract.AnchorMonthday, Day: anchorDay}},
	}
}

func TestCycleAtMonthlyAnchorClamped(t *testing.T) {
	// Day-31 anchor, activated mid-April: the stub first cycle runs from
	// activation to April 30 (31 clamped to the month length), then the
	// schedule locks onto the last day of each month without drifting.
	activation := date(2024, time.April, 10)
	p := monthly(1, 31)

	c0, err := CycleAt(p, activation, 0)
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.April, 10), c0.StartAt)
	assert.Equal(t, date(2024, time.April, 30), c0.EndAt)

	c1, err := CycleAt(p, activation, 1)
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.April, 30), c1.StartAt)
	assert.Equal(t, date(2024, time.May, 31), c1.EndAt)
}

func TestCycleAtMonthlyNoDrift(t *testing.T) {
	// A day-31 anchor passing through February must come back to the 31st in
	// March, not stay stuck on the 28th.
	activation := date(2025, time.January, 15)
	p := monthly(1, 31)

	boundaries := []time.Time{
		date(2025, time.January, 31),
		date(2025, time.February, 28),
		date(2025, time.March, 31),
		date(2025, time.April, 30),
		date(2025, time.May, 31),
	}
	for i, want := range boundaries {
		c, err := CycleAt(p, activation, i)
		require.NoError(t, err)
		assert.Equal(t, want, c.EndAt, "cycle %d end", i)
	}
}

func TestCycleAtWeeklyStartsOnAnchorWeekday(t *testing.T) {
	// Activation on a Wednesday with a Monday anchor: the first cycle starts
	// on the following Monday and weeks step from there.
	activation := date(2024, time.June, 5) // Wednesday
	p := contract.BillingPolicy{
		Interval:      contract.IntervalWeek,
		IntervalCount: 2,
		Anchors:       []contract.Anchor{{Type: contract.AnchorWeekday, Day: 1}},
	}

	c0, err := CycleAt(p, activation, 0)
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.June, 10), c0.StartAt)
	assert.Equal(t, date(2024, time.June, 24), c0.EndAt)
}

func TestCycleAtDailyStepsFromActivation(t *testing.T) {
	activation := date(2024, time.February, 27)
	p := contract.BillingPolicy{Interval: contract.IntervalDay, IntervalCount: 3}

	c2, err := CycleAt(p, activation, 2)
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.March, 4), c2.StartAt)
	assert.Equal(t, date(2024, time.March, 7), c2.EndAt)
}

func TestCycleAtYearlyLeapDayAnchor(t *testing.T) {
	activation := date(2023, time.June, 1)
	p := contract.BillingPolicy{
		Interval:      contract.IntervalYear,
		IntervalCount: 1,
		Anchors:       []contract.Anchor{{Type: contract.AnchorYearday, Month: 2, Day: 29}},
	}

	c1, err := CycleAt(p, activation, 1)
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.February, 29), c1.StartAt)
	assert.Equal(t, date(2025, time.February, 28), c1.EndAt)
}

func TestCycleAtNoAnchorFallsBackToActivation(t *testing.T) {
	activation := date(2024, time.March, 14)
	p := contract.BillingPolicy{Interval: contract.IntervalMonth, IntervalCount: 1}

	c0, err := CycleAt(p, activation, 0)
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.March, 14), c0.StartAt)
	assert.Equal(t, date(2024, time.April, 14), c0.EndAt)

	c1, err := CycleAt(p, activation, 1)
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.May, 14), c1.EndAt)
}

func TestCycleAtNegativeIndex(t *testing.T) {
	_, err := CycleAt(monthly(1, 1), date(2024, time.January, 1), -1)
	assert.Error(t, err)
}

func TestCycleForDateBeforeActivation(t *testing.T) {
	_, err := CycleForDate(monthly(1, 1), date(2024, time.June, 1), date(2024, time.May, 20))
	assert.Error(t, err)
}

func TestCycleForDateBoundaryBelongsToNextCycle(t *testing.T) {
	activation := date(2024, time.January, 10)
	p := monthly(1, 10)

	// The shared boundary date is the start of the next cycle, never the end
	// of the previous one.
	c, err := CycleForDate(p, activation, date(2024, time.February, 10))
	require.NoError(t, err)
	assert.Equal(t, 1, c.Index)

	c, err = CycleForDate(p, activation, date(2024, time.February, 9))
	require.NoError(t, err)
	assert.Equal(t, 0, c.Index)
}

func genPolicy() gopter.Gen {
	intervals := gen.OneConstOf(
		contract.IntervalDay, contract.IntervalWeek,
		contract.IntervalMonth, contract.IntervalYear,
	)
	return gopter.CombineGens(intervals, gen.IntRange(1, 4), gen.IntRange(1, 31)).
		Map(func(vs []interface{}) contract.BillingPolicy {
			p := contract.BillingPolicy{
				Interval:      vs[0].(contract.Interval),
				IntervalCount: vs[1].(int),
			}
			day := vs[2].(int)
			switch p.Interval {
			case contract.IntervalWeek:
				p.Anchors = []contract.Anchor{{Type: contract.AnchorWeekday, Day: (day-1)%7 + 1}}
			case contract.IntervalMonth:
				p.Anchors = []contract.Anchor{{Type: contract.AnchorMonthday, Day: day}}
			case contract.IntervalYear:
				p.Anchors = []contract.Anchor{{Type: contract.AnchorYearday, Month: (day-1)%12 + 1, Day: day}}
			}
			return p
		})
}

func genActivation() gopter.Gen {
	return gen.IntRange(0, 3650).Map(func(offset int) time.Time {
		return date(2020, time.January, 1).AddDate(0, 0, offset)
	})
}

func TestCycleSequenceProperties(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 300
	properties := gopter.NewProperties(params)

	properties.Property("cycles are gapless and strictly increasing", prop.ForAll(
		func(p contract.BillingPolicy, activation time.Time, index int) bool {
			cur, err := CycleAt(p, activation, index)
			if err != nil {
				return false
			}
			next, err := CycleAt(p, activation, index+1)
			if err != nil {
				return false
			}
			return cur.StartAt.Before(cur.EndAt) && cur.EndAt.Equal(next.StartAt)
		},
		genPolicy(), genActivation(), gen.IntRange(0, 60),
	))

	properties.Property("every in-range date maps back to its cycle", prop.ForAll(
		func(p contract.BillingPolicy, activation time.Time, offset int) bool {
			first, err := CycleAt(p, activation, 0)
			if err != nil {
				return false
			}
			probe := first.StartAt.AddDate(0, 0, offset)
			c, err := CycleForDate(p, activation, probe)
			if err != nil {
				return false
			}
			return !probe.Before(c.StartAt) && probe.Before(c.EndAt)
		},
		genPolicy(), genActivation(), gen.IntRange(0, 2000),
	))

	properties.TestingRun(t)
}
