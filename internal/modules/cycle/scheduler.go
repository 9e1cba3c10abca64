package cycle

import (
	"context"
	"time"

	"github.com/tkabwe/subcycle-backend/internal/modules/contract"
)

// Scheduler derives the next billing date for a contract: the expected billing
// date of the earliest cycle that is neither billed nor skipped and whose
// window has not fully elapsed. Returns nil when max_cycles leaves nothing to
// bill. Satisfies contract.Scheduler.
type Scheduler struct{ repo Repository }

func NewScheduler(repo Repository) *Scheduler { return &Scheduler{repo: repo} }

func (s *Scheduler) NextBillingDate(ctx context.Context, c *contract.SubscriptionContract, from time.Time) (*time.Time, error) {
	start := 0
	if cyc, err := CycleForDate(c.BillingPolicy, c.ActivatedAt, from); err == nil {
		start = cyc.Index
	}

	stored, err := s.repo.ListTouchedFrom(ctx, c.ID.String(), start)
	if err != nil {
		return nil, err
	}
	byIndex := make(map[int]*BillingCycle, len(stored))
	highest := start
	for _, row := range stored {
		byIndex[row.CycleIndex] = row
		if row.CycleIndex > highest {
			highest = row.CycleIndex
		}
	}

	// Every index above the highest touched row is untouched, hence billable,
	// so the walk is bounded.
	for i := start; i <= highest+1; i++ {
		if max := c.BillingPolicy.MaxCycles; max != nil && i >= *max {
			return nil, nil
		}
		if row, ok := byIndex[i]; ok && (row.Skipped || row.Status == CycleBilled) {
			continue
		}
		cyc, err := CycleAt(c.BillingPolicy, c.ActivatedAt, i)
		if err != nil {
			return nil, err
		}
		next := cyc.BillingAttemptExpectedDate
		return &next, nil
	}
	return nil, nil
}
