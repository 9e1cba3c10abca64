package cycle

import (
	"context"
	"time"
)

// Repository defines data access for materialized cycle rows, the skip
// ledger and billing attempts. Cycle rows are created lazily via
// MaterializeCycle and never deleted.
type Repository interface {
	// MaterializeCycle inserts the row for (contractID, index) if it does not
	// exist yet and returns the stored row either way.
	MaterializeCycle(ctx context.Context, c *BillingCycle) (*BillingCycle, error)

	// GetCycle returns the stored row, or nil (no error) when the cycle has
	// never been materialized.
	GetCycle(ctx context.Context, contractID string, index int) (*BillingCycle, error)

	// ListTouchedFrom returns materialized rows with index >= from, ordered by
	// index. Used when walking the schedule for the next billable cycle.
	ListTouchedFrom(ctx context.Context, contractID string, from int) ([]*BillingCycle, error)

	SetSkipped(ctx context.Context, contractID string, index int, skipped bool) error
	MarkBilled(ctx context.Context, contractID string, index int) error

	SetEdit(ctx context.Context, contractID string, index int, payload []byte) error
	ClearEdit(ctx context.Context, contractID string, index int) error
	HasFutureEdits(ctx context.Context, contractID string, after time.Time) (bool, error)

	RecordAttempt(ctx context.Context, a *BillingAttempt) error
	// ConsecutiveFailures counts FAILED attempts for a contract since its most
	// recent successful attempt.
	ConsecutiveFailures(ctx context.Context, contractID string) (int, error)
}
