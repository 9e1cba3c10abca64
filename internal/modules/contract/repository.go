package contract

import (
	"context"
	"errors"
	"time"
)

// ErrRevisionConflict is returned by compare-and-swap updates when the stored
// revision no longer matches the one the caller read.
var ErrRevisionConflict = errors.New("contract revision conflict")

// Repository defines data access for subscription contracts. All writes after
// creation are compare-and-swap on the revision the caller read; a lost race
// surfaces as ErrRevisionConflict and is never merged.
type Repository interface {
	CreateContract(ctx context.Context, c *SubscriptionContract) error
	GetContractByID(ctx context.Context, id string) (*SubscriptionContract, error)
	ListContractsByCustomer(ctx context.Context, customerID string) ([]*SubscriptionContract, error)

	// UpdateContractCAS persists the mutable fields of c and bumps the stored
	// revision to expectedRevision+1, provided the stored revision still equals
	// expectedRevision.
	UpdateContractCAS(ctx context.Context, c *SubscriptionContract, expectedRevision uint64) error

	// ListInactiveSince returns non-terminal contracts not updated since the cutoff,
	// candidates for the staleness sweep.
	ListInactiveSince(ctx context.Context, cutoff time.Time) ([]*SubscriptionContract, error)
}
