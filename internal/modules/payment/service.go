package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Service defines payment instrument business logic. It is a thin collaborator
// of the subscription engine: vault, look up, revoke. Charging is entirely the
// billing collaborator's job.
type Service interface {
	CreateInstrument(ctx context.Context, req CreateInstrumentRequest) (*PaymentInstrument, error)
	GetInstrument(ctx context.Context, id string) (*PaymentInstrument, error)
	ListCustomerInstruments(ctx context.Context, customerID string) ([]*PaymentInstrument, error)
	RevokeInstrument(ctx context.Context, id string) (*PaymentInstrument, error)

	// InstrumentExists satisfies the contract module's instrument directory.
	InstrumentExists(ctx context.Context, id string) (bool, error)
}

type service struct {
	repo     Repository
	gateways GatewayRegistry
}

func NewService(repo Repository, gateways GatewayRegistry) Service {
	return &service{repo: repo, gateways: gateways}
}

func (s *service) CreateInstrument(ctx context.Context, req CreateInstrumentRequest) (*PaymentInstrument, error) {
	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("customer_id is not a valid id")
	}
	gateway, ok := s.gateways[req.Provider]
	if !ok {
		return nil, fmt.Errorf("unsupported payment provider %q", req.Provider)
	}
	result, err := gateway.Vault(ctx, req.CustomerID, req.Nonce)
	if err != nil {
		return nil, fmt.Errorf("vaulting failed: %w", err)
	}

	in := &PaymentInstrument{
		ID:          uuid.New(),
		CustomerID:  customerID,
		Provider:    req.Provider,
		VaultRef:    result.VaultRef,
		Brand:       result.Brand,
		Last4:       result.Last4,
		ExpiryMonth: result.ExpiryMonth,
		ExpiryYear:  result.ExpiryYear,
	}
	if err := s.repo.CreateInstrument(ctx, in); err != nil {
		return nil, err
	}
	return s.repo.GetInstrumentByID(ctx, in.ID.String())
}

func (s *service) GetInstrument(ctx context.Context, id string) (*PaymentInstrument, error) {
	in, err := s.repo.GetInstrumentByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("payment instrument %s not found", id)
		}
		return nil, err
	}
	return in, nil
}

func (s *service) ListCustomerInstruments(ctx context.Context, customerID string) ([]*PaymentInstrument, error) {
	return s.repo.ListInstrumentsByCustomer(ctx, customerID)
}

func (s *service) RevokeInstrument(ctx context.Context, id string) (*PaymentInstrument, error) {
	in, err := s.GetInstrument(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Revoked {
		return in, nil
	}
	if gateway, ok := s.gateways[in.Provider]; ok {
		if err := gateway.Revoke(ctx, in.VaultRef); err != nil {
			return nil, fmt.Errorf("provider revoke failed: %w", err)
		}
	}
	if err := s.repo.RevokeInstrument(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.GetInstrumentByID(ctx, id)
}

func (s *service) InstrumentExists(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}
	return s.repo.InstrumentExists(ctx, id)
}
