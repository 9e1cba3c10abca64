package contract

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EditChecker reports whether a contract has uncommitted cycle edits scheduled
// for a not-yet-reached cycle. Implemented by the cycle module's repository.
type EditChecker interface {
	HasFutureEdits(ctx context.Context, contractID string, after time.Time) (bool, error)
}

// Scheduler derives the next billing date for a contract from its billing
// policy and skip ledger. Implemented by the cycle module.
type Scheduler interface {
	NextBillingDate(ctx context.Context, c *SubscriptionContract, from time.Time) (*time.Time, error)
}

// InstrumentDirectory is the narrow view of the payment collaborator this
// engine needs: existence checks only, never instrument contents.
type InstrumentDirectory interface {
	InstrumentExists(ctx context.Context, id string) (bool, error)
}

// Service is the single entry point for contract mutations. Every
// state-changing call loads the contract, validates the requested transition,
// and persists with a compare-and-swap on the revision it read. Losers of a
// concurrent race are rejected, never merged.
type Service interface {
	CreateContract(ctx context.Context, req CreateContractRequest) (*SubscriptionContract, error)
	GetContract(ctx context.Context, id string) (*SubscriptionContract, error)
	ListCustomerContracts(ctx context.Context, customerID string) ([]*SubscriptionContract, error)

	Activate(ctx context.Context, id string) (*SubscriptionContract, error)
	Pause(ctx context.Context, id string) (*SubscriptionContract, error)
	Cancel(ctx context.Context, id string) (*SubscriptionContract, error)
	ChangePaymentInstrument(ctx context.Context, id string, req ChangePaymentInstrumentRequest) (*SubscriptionContract, error)

	// SetDeliveryMethod is called by the delivery module once a quote token has
	// been redeemed.
	SetDeliveryMethod(ctx context.Context, id string, method DeliveryMethod) (*SubscriptionContract, error)

	// SetNextBillingDate is called by the cycle module after skip bookkeeping
	// or a billing outcome moves the schedule.
	SetNextBillingDate(ctx context.Context, id string, next *time.Time) error

	// Touch bumps the revision without changing contract fields. Cycle edits
	// route through it so they stay bounded by the same compare-and-swap as
	// every other mutation.
	Touch(ctx context.Context, id string) (*SubscriptionContract, error)

	// MarkExpired and MarkFailed apply billing-collaborator signals.
	MarkExpired(ctx context.Context, id string) (*SubscriptionContract, error)
	MarkFailed(ctx context.Context, id string) (*SubscriptionContract, error)

	// MarkStaleContracts sweeps non-terminal contracts inactive for longer than
	// the cutoff into STALE. Returns the number of contracts transitioned.
	MarkStaleContracts(ctx context.Context, inactiveFor time.Duration) (int, error)
}

type service struct {
	repo        Repository
	edits       EditChecker
	sched       Scheduler
	instruments InstrumentDirectory
}

func NewService(repo Repository, edits EditChecker, sched Scheduler, instruments InstrumentDirectory) Service {
	return &service{repo: repo, edits: edits, sched: sched, instruments: instruments}
}

// ── Reads ─────────────────────────────────────────────────────────────────────

func (s *service) GetContract(ctx context.Context, id string) (*SubscriptionContract, error) {
	return s.load(ctx, id)
}

func (s *service) ListCustomerContracts(ctx context.Context, customerID string) ([]*SubscriptionContract, error) {
	if _, err := uuid.Parse(customerID); err != nil {
		return nil, NewUserError(CodeInvalid, "customer_id is not a valid id", "customer_id")
	}
	return s.repo.ListContractsByCustomer(ctx, customerID)
}

// ── Create ────────────────────────────────────────────────────────────────────

func (s *service) CreateContract(ctx context.Context, req CreateContractRequest) (*SubscriptionContract, error) {
	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		return nil, NewUserError(CodeInvalid, "customer_id is not a valid id", "customer_id")
	}
	if err := req.BillingPolicy.Validate(); err != nil {
		return nil, NewUserError(CodeInvalid, err.Error(), "billing_policy")
	}
	if err := req.DeliveryPolicy.Validate(); err != nil {
		return nil, NewUserError(CodeInvalid, err.Error(), "delivery_policy")
	}
	if len(req.Lines) == 0 {
		return nil, NewUserError(CodeInvalid, "at least one line is required", "lines")
	}

	now := time.Now().UTC()
	c := &SubscriptionContract{
		ID:             uuid.New(),
		CustomerID:     customerID,
		Status:         StatusActive,
		Revision:       1,
		BillingPolicy:  req.BillingPolicy,
		DeliveryPolicy: req.DeliveryPolicy,
		ActivatedAt:    now,
		Lines:          make([]ContractLine, 0, len(req.Lines)),
	}

	if req.OriginOrderID != "" {
		orderID, err := uuid.Parse(req.OriginOrderID)
		if err != nil {
			return nil, NewUserError(CodeInvalid, "origin_order_id is not a valid id", "origin_order_id")
		}
		c.OriginOrderID = &orderID
	}

	for i, in := range req.Lines {
		productID, err := uuid.Parse(in.ProductID)
		if err != nil {
			return nil, NewUserError(CodeInvalid, "product_id is not a valid id", "lines", fmt.Sprint(i), "product_id")
		}
		if in.Quantity < 1 {
			return nil, NewUserError(CodeInvalid, "quantity must be at least 1", "lines", fmt.Sprint(i), "quantity")
		}
		c.Lines = append(c.Lines, ContractLine{
			ID:           uuid.New(),
			ProductID:    productID,
			Title:        in.Title,
			Quantity:     in.Quantity,
			CurrentPrice: in.Price,
			Currency:     in.Currency,
		})
	}

	if req.PaymentInstrumentID != "" {
		instrumentID, uerr := s.resolveInstrument(ctx, req.PaymentInstrumentID)
		if uerr != nil {
			return nil, uerr
		}
		c.PaymentInstrumentID = instrumentID
	}

	next, err := s.sched.NextBillingDate(ctx, c, now)
	if err != nil {
		return nil, err
	}
	c.NextBillingDate = next

	if err := s.repo.CreateContract(ctx, c); err != nil {
		return nil, err
	}
	return s.load(ctx, c.ID.String())
}

// ── Status transitions ────────────────────────────────────────────────────────

func (s *service) Activate(ctx context.Context, id string) (*SubscriptionContract, error) {
	return s.transition(ctx, id, StatusActive, "activate", func(c *SubscriptionContract, now time.Time) error {
		c.PausedAt = nil
		next, err := s.sched.NextBillingDate(ctx, c, now)
		if err != nil {
			return err
		}
		c.NextBillingDate = next
		return nil
	})
}

func (s *service) Pause(ctx context.Context, id string) (*SubscriptionContract, error) {
	return s.transition(ctx, id, StatusPaused, "pause", func(c *SubscriptionContract, now time.Time) error {
		c.PausedAt = &now
		c.NextBillingDate = nil
		return nil
	})
}

func (s *service) Cancel(ctx context.Context, id string) (*SubscriptionContract, error) {
	return s.transition(ctx, id, StatusCancelled, "cancel", func(c *SubscriptionContract, now time.Time) error {
		c.CancelledAt = &now
		c.NextBillingDate = nil
		return nil
	})
}

// transition runs the shared load → guard → mutate → CAS pipeline for the
// caller-facing status changes.
func (s *service) transition(ctx context.Context, id string, next ContractStatus, verb string,
	apply func(c *SubscriptionContract, now time.Time) error) (*SubscriptionContract, error) {

	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if uerr := transitionGuard(c, next, verb); uerr != nil {
		return nil, uerr
	}
	pending, err := s.edits.HasFutureEdits(ctx, c.ID.String(), time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, Errf(CodeHasFutureEdits, "contract has pending cycle edits; commit or discard them before %s", verb)
	}

	now := time.Now().UTC()
	c.Status = next
	if err := apply(c, now); err != nil {
		return nil, err
	}
	return s.persist(ctx, c)
}

// ── Reference changes ─────────────────────────────────────────────────────────

func (s *service) ChangePaymentInstrument(ctx context.Context, id string, req ChangePaymentInstrumentRequest) (*SubscriptionContract, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if uerr := mutationGuard(c, "change the payment instrument of"); uerr != nil {
		return nil, uerr
	}
	instrumentID, uerr := s.resolveInstrument(ctx, req.PaymentInstrumentID)
	if uerr != nil {
		return nil, uerr
	}
	c.PaymentInstrumentID = instrumentID
	return s.persist(ctx, c)
}

func (s *service) SetDeliveryMethod(ctx context.Context, id string, method DeliveryMethod) (*SubscriptionContract, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if uerr := mutationGuard(c, "change the delivery method of"); uerr != nil {
		return nil, uerr
	}
	c.DeliveryMethod = &method
	return s.persist(ctx, c)
}

func (s *service) Touch(ctx context.Context, id string) (*SubscriptionContract, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.persist(ctx, c)
}

func (s *service) SetNextBillingDate(ctx context.Context, id string, next *time.Time) error {
	c, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	c.NextBillingDate = next
	_, err = s.persist(ctx, c)
	return err
}

// ── Billing collaborator signals ──────────────────────────────────────────────

func (s *service) MarkExpired(ctx context.Context, id string) (*SubscriptionContract, error) {
	return s.signal(ctx, id, StatusExpired)
}

func (s *service) MarkFailed(ctx context.Context, id string) (*SubscriptionContract, error) {
	return s.signal(ctx, id, StatusFailed)
}

func (s *service) signal(ctx context.Context, id string, next ContractStatus) (*SubscriptionContract, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(c.Status, next) {
		return nil, Errf(CodeInvalid, "cannot move a %s contract to %s", strings.ToLower(string(c.Status)), next)
	}
	c.Status = next
	c.NextBillingDate = nil
	return s.persist(ctx, c)
}

func (s *service) MarkStaleContracts(ctx context.Context, inactiveFor time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-inactiveFor)
	candidates, err := s.repo.ListInactiveSince(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, c := range candidates {
		if !CanTransition(c.Status, StatusStale) {
			continue
		}
		c.Status = StatusStale
		c.NextBillingDate = nil
		if _, err := s.persist(ctx, c); err != nil {
			if isConcurrencyError(err) {
				// Someone touched the contract mid-sweep: it is not inactive.
				continue
			}
			return count, err
		}
		count++
	}
	return count, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func (s *service) load(ctx context.Context, id string) (*SubscriptionContract, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, NewUserError(CodeInvalid, "contract id is not a valid id", "subscription_contract_id")
	}
	c, err := s.repo.GetContractByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, Errf(CodeContractNotFound, "subscription contract %s does not exist", id)
		}
		return nil, err
	}
	return c, nil
}

// persist CAS-writes c against the revision it was loaded with and reflects
// the bump on the returned contract.
func (s *service) persist(ctx context.Context, c *SubscriptionContract) (*SubscriptionContract, error) {
	if err := s.repo.UpdateContractCAS(ctx, c, c.Revision); err != nil {
		if errors.Is(err, ErrRevisionConflict) {
			return nil, Errf(CodeConcurrentModification, "contract was modified concurrently; reload and retry")
		}
		return nil, err
	}
	c.Revision++
	c.UpdatedAt = time.Now().UTC()
	return c, nil
}

func (s *service) resolveInstrument(ctx context.Context, id string) (*uuid.UUID, *UserError) {
	instrumentID, err := uuid.Parse(id)
	if err != nil {
		return nil, NewUserError(CodeInvalid, "payment_instrument_id is not a valid id", "payment_instrument_id")
	}
	ok, err := s.instruments.InstrumentExists(ctx, id)
	if err != nil {
		return nil, Errf(CodePaymentInstrumentNotFound, "could not verify payment instrument %s", id)
	}
	if !ok {
		return nil, NewUserError(CodePaymentInstrumentNotFound,
			fmt.Sprintf("payment instrument %s does not exist", id), "payment_instrument_id")
	}
	return &instrumentID, nil
}

// transitionGuard rejects status changes the state machine does not allow.
// Terminal contracts answer CONTRACT_TERMINATED, failed contracts answer
// CONTRACT_FAILED for anything but reactivation or cancellation, and every
// other illegal request answers INVALID.
func transitionGuard(c *SubscriptionContract, next ContractStatus, verb string) *UserError {
	switch {
	case IsTerminal(c.Status):
		return Errf(CodeContractTerminated, "cannot %s a %s contract", verb, strings.ToLower(string(c.Status)))
	case c.Status == StatusFailed && next != StatusActive && next != StatusCancelled:
		return Errf(CodeContractFailed, "contract has failed; activate or cancel it instead of %s", verb)
	case !CanTransition(c.Status, next):
		return Errf(CodeInvalid, "cannot %s a contract in %s status", verb, c.Status)
	}
	return nil
}

// mutationGuard rejects non-status mutations on contracts that no longer
// accept writes.
func mutationGuard(c *SubscriptionContract, verb string) *UserError {
	switch {
	case IsTerminal(c.Status):
		return Errf(CodeContractTerminated, "cannot %s a %s contract", verb, strings.ToLower(string(c.Status)))
	case c.Status == StatusFailed:
		return Errf(CodeContractFailed, "cannot %s a failed contract", verb)
	case c.Status == StatusStale:
		return Errf(CodeInvalid, "cannot %s a stale contract", verb)
	}
	return nil
}

func isConcurrencyError(err error) bool {
	var uerr *UserError
	return errors.As(err, &uerr) && uerr.Code == CodeConcurrentModification
}
