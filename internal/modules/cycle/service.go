package cycle

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tkabwe/subcycle-backend/internal/modules/contract"
)

// ContractDirectory is the slice of the contract gateway the cycle module
// drives: loading contracts and pushing schedule/status consequences back
// through the revision-checked writer.
type ContractDirectory interface {
	GetContract(ctx context.Context, id string) (*contract.SubscriptionContract, error)
	SetNextBillingDate(ctx context.Context, id string, next *time.Time) error
	Touch(ctx context.Context, id string) (*contract.SubscriptionContract, error)
	MarkExpired(ctx context.Context, id string) (*contract.SubscriptionContract, error)
	MarkFailed(ctx context.Context, id string) (*contract.SubscriptionContract, error)
}

// Service owns the skip ledger, cycle edits and billing attempt intake.
type Service interface {
	// Skip marks the selected cycle skipped. Skipping an already-skipped cycle
	// returns the existing record unchanged; retries are safe.
	Skip(ctx context.Context, req SkipRequest) (*BillingCycle, error)
	// Unskip is the exact inverse of Skip and a no-op if the cycle was never
	// skipped.
	Unskip(ctx context.Context, req SkipRequest) (*BillingCycle, error)

	// GetCycle resolves a selector to the cycle's current state.
	GetCycle(ctx context.Context, contractID string, sel CycleSelector) (*BillingCycle, error)
	// ListCycles returns up to limit cycles after the given index, stored rows
	// overlaid on computed ones.
	ListCycles(ctx context.Context, contractID string, afterIndex int, limit int) ([]*BillingCycle, error)

	ScheduleEdit(ctx context.Context, req ScheduleEditRequest) (*BillingCycle, error)
	DiscardEdit(ctx context.Context, contractID string, sel CycleSelector) (*BillingCycle, error)

	// RecordBillingAttempt applies an external billing outcome: a success bills
	// the cycle exactly once and may expire the contract at max_cycles; enough
	// consecutive failures fail the contract.
	RecordBillingAttempt(ctx context.Context, req BillingAttemptRequest) (*BillingCycle, error)
}

type service struct {
	repo             Repository
	contracts        ContractDirectory
	failureThreshold int
}

// NewService builds the cycle service. failureThreshold is the number of
// consecutive failed billing attempts after which a contract is marked FAILED.
func NewService(repo Repository, contracts ContractDirectory, failureThreshold int) Service {
	if failureThreshold < 1 {
		failureThreshold = 3
	}
	return &service{repo: repo, contracts: contracts, failureThreshold: failureThreshold}
}

// ── Skip ledger ───────────────────────────────────────────────────────────────

func (s *service) Skip(ctx context.Context, req SkipRequest) (*BillingCycle, error) {
	c, row, err := s.resolve(ctx, req.ContractID, req.Selector, false)
	if err != nil {
		return nil, err
	}
	if row.Status == CycleBilled {
		return nil, contract.Errf(contract.CodeInvalid, "cycle %d is already billed and cannot be skipped", row.CycleIndex)
	}
	if row.Skipped {
		return row, nil
	}
	if err := s.repo.SetSkipped(ctx, req.ContractID, row.CycleIndex, true); err != nil {
		return nil, err
	}
	row.Skipped = true
	if err := s.refreshSchedule(ctx, c); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *service) Unskip(ctx context.Context, req SkipRequest) (*BillingCycle, error) {
	c, row, err := s.resolve(ctx, req.ContractID, req.Selector, false)
	if err != nil {
		return nil, err
	}
	if !row.Skipped {
		return row, nil
	}
	if err := s.repo.SetSkipped(ctx, req.ContractID, row.CycleIndex, false); err != nil {
		return nil, err
	}
	row.Skipped = false
	if err := s.refreshSchedule(ctx, c); err != nil {
		return nil, err
	}
	return row, nil
}

// ── Reads ─────────────────────────────────────────────────────────────────────

func (s *service) GetCycle(ctx context.Context, contractID string, sel CycleSelector) (*BillingCycle, error) {
	c, err := s.contracts.GetContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	index, uerr := s.selectIndex(c, sel)
	if uerr != nil {
		return nil, uerr
	}
	return s.cycleState(ctx, c, index)
}

func (s *service) ListCycles(ctx context.Context, contractID string, afterIndex int, limit int) ([]*BillingCycle, error) {
	c, err := s.contracts.GetContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if limit < 1 || limit > 100 {
		limit = 25
	}
	stored, err := s.repo.ListTouchedFrom(ctx, contractID, afterIndex+1)
	if err != nil {
		return nil, err
	}
	byIndex := make(map[int]*BillingCycle, len(stored))
	for _, row := range stored {
		byIndex[row.CycleIndex] = row
	}

	cycles := make([]*BillingCycle, 0, limit)
	for i := afterIndex + 1; len(cycles) < limit; i++ {
		if max := c.BillingPolicy.MaxCycles; max != nil && i >= *max {
			break
		}
		if row, ok := byIndex[i]; ok {
			cycles = append(cycles, row)
			continue
		}
		computed, err := CycleAt(c.BillingPolicy, c.ActivatedAt, i)
		if err != nil {
			return nil, err
		}
		cycles = append(cycles, virtualRow(c.ID, computed))
	}
	return cycles, nil
}

// ── Cycle edits ───────────────────────────────────────────────────────────────

func (s *service) ScheduleEdit(ctx context.Context, req ScheduleEditRequest) (*BillingCycle, error) {
	_, row, err := s.resolve(ctx, req.ContractID, req.Selector, false)
	if err != nil {
		return nil, err
	}
	if row.Status == CycleBilled {
		return nil, contract.Errf(contract.CodeInvalid, "cycle %d is already billed and cannot be edited", row.CycleIndex)
	}
	if !row.CycleStartAt.After(time.Now().UTC()) {
		return nil, contract.Errf(contract.CodeInvalid, "only not-yet-reached cycles can be edited")
	}
	if len(req.Payload) == 0 {
		return nil, contract.NewUserError(contract.CodeInvalid, "edit payload is required", "payload")
	}
	if err := s.repo.SetEdit(ctx, req.ContractID, row.CycleIndex, req.Payload); err != nil {
		return nil, err
	}
	row.Edited = true
	row.EditPayload = req.Payload
	if _, err := s.contracts.Touch(ctx, req.ContractID); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *service) DiscardEdit(ctx context.Context, contractID string, sel CycleSelector) (*BillingCycle, error) {
	_, row, err := s.resolve(ctx, contractID, sel, true)
	if err != nil {
		return nil, err
	}
	if !row.Edited {
		return row, nil
	}
	if err := s.repo.ClearEdit(ctx, contractID, row.CycleIndex); err != nil {
		return nil, err
	}
	row.Edited = false
	row.EditPayload = nil
	if _, err := s.contracts.Touch(ctx, contractID); err != nil {
		return nil, err
	}
	return row, nil
}

// ── Billing attempt intake ────────────────────────────────────────────────────

func (s *service) RecordBillingAttempt(ctx context.Context, req BillingAttemptRequest) (*BillingCycle, error) {
	c, err := s.contracts.GetContract(ctx, req.ContractID)
	if err != nil {
		return nil, err
	}
	if c.Status != contract.StatusActive {
		return nil, contract.Errf(contract.CodeInvalid, "billing attempts only apply to active contracts, contract is %s", c.Status)
	}
	index, uerr := s.selectIndex(c, req.Selector)
	if uerr != nil {
		return nil, uerr
	}
	row, err := s.materialize(ctx, c, index)
	if err != nil {
		return nil, err
	}
	if row.Skipped {
		return nil, contract.Errf(contract.CodeInvalid, "cycle %d is skipped and cannot be billed", index)
	}

	switch req.Outcome {
	case AttemptSucceeded:
		if row.Status == CycleBilled {
			return nil, contract.Errf(contract.CodeInvalid, "cycle %d is already billed", index)
		}
	case AttemptFailed:
	default:
		return nil, contract.NewUserError(contract.CodeInvalid, "outcome must be SUCCEEDED or FAILED", "outcome")
	}

	attempt := &BillingAttempt{
		ID:         uuid.New(),
		ContractID: c.ID,
		CycleIndex: index,
		Outcome:    req.Outcome,
		Reference:  req.Reference,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.repo.RecordAttempt(ctx, attempt); err != nil {
		return nil, err
	}

	if req.Outcome == AttemptFailed {
		failures, err := s.repo.ConsecutiveFailures(ctx, req.ContractID)
		if err != nil {
			return nil, err
		}
		if failures >= s.failureThreshold {
			if _, err := s.contracts.MarkFailed(ctx, req.ContractID); err != nil {
				return nil, err
			}
		}
		return row, nil
	}

	if err := s.repo.MarkBilled(ctx, req.ContractID, index); err != nil {
		return nil, err
	}
	row.Status = CycleBilled

	if max := c.BillingPolicy.MaxCycles; max != nil && index+1 >= *max {
		if _, err := s.contracts.MarkExpired(ctx, req.ContractID); err != nil {
			return nil, err
		}
		return row, nil
	}
	if err := s.refreshSchedule(ctx, c); err != nil {
		return nil, err
	}
	return row, nil
}

// ── Internals ─────────────────────────────────────────────────────────────────

// resolve loads the contract, rejects ones that no longer accept cycle
// changes, and materializes the selected cycle. allowFailed keeps DiscardEdit
// open on FAILED contracts: a pending edit blocks reactivation, so discarding
// it must not itself be blocked.
func (s *service) resolve(ctx context.Context, contractID string, sel CycleSelector, allowFailed bool) (*contract.SubscriptionContract, *BillingCycle, error) {
	c, err := s.contracts.GetContract(ctx, contractID)
	if err != nil {
		return nil, nil, err
	}
	if contract.IsTerminal(c.Status) {
		return nil, nil, contract.Errf(contract.CodeContractTerminated, "contract %s no longer accepts cycle changes", contractID)
	}
	if c.Status == contract.StatusFailed && !allowFailed {
		return nil, nil, contract.Errf(contract.CodeContractFailed, "contract %s has failed; activate or cancel it before changing cycles", contractID)
	}
	if c.Status == contract.StatusStale {
		return nil, nil, contract.Errf(contract.CodeInvalid, "contract %s is stale", contractID)
	}
	index, uerr := s.selectIndex(c, sel)
	if uerr != nil {
		return nil, nil, uerr
	}
	row, err := s.materialize(ctx, c, index)
	if err != nil {
		return nil, nil, err
	}
	return c, row, nil
}

// selectIndex validates a selector against the policy. Selectors past
// max_cycles are invalid.
func (s *service) selectIndex(c *contract.SubscriptionContract, sel CycleSelector) (int, *contract.UserError) {
	if (sel.Date == nil) == (sel.Index == nil) {
		return 0, contract.NewUserError(contract.CodeInvalid, "selector must set exactly one of date or index", "selector")
	}
	var index int
	if sel.Index != nil {
		index = *sel.Index
		if index < 0 {
			return 0, contract.NewUserError(contract.CodeInvalid, "cycle index must not be negative", "selector", "index")
		}
	} else {
		cyc, err := CycleForDate(c.BillingPolicy, c.ActivatedAt, *sel.Date)
		if err != nil {
			return 0, contract.NewUserError(contract.CodeInvalid, err.Error(), "selector", "date")
		}
		index = cyc.Index
	}
	if max := c.BillingPolicy.MaxCycles; max != nil && index >= *max {
		return 0, contract.Errf(contract.CodeInvalid, "cycle %d is beyond the contract's max_cycles of %d", index, *max)
	}
	return index, nil
}

func (s *service) materialize(ctx context.Context, c *contract.SubscriptionContract, index int) (*BillingCycle, error) {
	computed, err := CycleAt(c.BillingPolicy, c.ActivatedAt, index)
	if err != nil {
		return nil, contract.NewUserError(contract.CodeInvalid, err.Error(), "selector", "index")
	}
	return s.repo.MaterializeCycle(ctx, virtualRow(c.ID, computed))
}

func (s *service) cycleState(ctx context.Context, c *contract.SubscriptionContract, index int) (*BillingCycle, error) {
	row, err := s.repo.GetCycle(ctx, c.ID.String(), index)
	if err != nil {
		return nil, err
	}
	if row != nil {
		return row, nil
	}
	computed, err := CycleAt(c.BillingPolicy, c.ActivatedAt, index)
	if err != nil {
		return nil, contract.NewUserError(contract.CodeInvalid, err.Error(), "selector", "index")
	}
	return virtualRow(c.ID, computed), nil
}

// refreshSchedule recomputes the contract's next billing date after the skip
// ledger or billing state moved.
func (s *service) refreshSchedule(ctx context.Context, c *contract.SubscriptionContract) error {
	sched := &Scheduler{repo: s.repo}
	next, err := sched.NextBillingDate(ctx, c, time.Now().UTC())
	if err != nil {
		return err
	}
	return s.contracts.SetNextBillingDate(ctx, c.ID.String(), next)
}

func virtualRow(contractID uuid.UUID, computed Cycle) *BillingCycle {
	return &BillingCycle{
		ContractID:                 contractID,
		CycleIndex:                 computed.Index,
		CycleStartAt:               computed.StartAt,
		CycleEndAt:                 computed.EndAt,
		BillingAttemptExpectedDate: computed.BillingAttemptExpectedDate,
		Status:                     CycleUnbilled,
	}
}
