package delivery

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tkabwe/subcycle-backend/internal/modules/contract"
)

// DefaultQuoteTTL bounds how long a fetched option set stays selectable.
// Quotes are deliberately short-lived so stale carrier prices are never
// applied at selection time.
const DefaultQuoteTTL = 10 * time.Minute

// ContractDirectory is the slice of the contract gateway the delivery module
// needs.
type ContractDirectory interface {
	GetContract(ctx context.Context, id string) (*contract.SubscriptionContract, error)
	SetDeliveryMethod(ctx context.Context, id string, method contract.DeliveryMethod) (*contract.SubscriptionContract, error)
}

// Service implements the two-phase delivery option protocol: fetch quotes a
// candidate option set and binds it to a single-use token; select redeems the
// token exactly once and applies the chosen option to the contract.
type Service interface {
	FetchDeliveryOptions(ctx context.Context, contractID string, req FetchOptionsRequest) (*DeliveryOptionsResult, error)
	SelectDeliveryMethod(ctx context.Context, contractID string, req SelectMethodRequest) (*contract.SubscriptionContract, error)
}

type service struct {
	contracts ContractDirectory
	sources   RateSourceRegistry
	tokens    TokenStore
	quoteTTL  time.Duration
}

func NewService(contracts ContractDirectory, sources RateSourceRegistry, tokens TokenStore, quoteTTL time.Duration) Service {
	if quoteTTL <= 0 {
		quoteTTL = DefaultQuoteTTL
	}
	return &service{contracts: contracts, sources: sources, tokens: tokens, quoteTTL: quoteTTL}
}

func (s *service) FetchDeliveryOptions(ctx context.Context, contractID string, req FetchOptionsRequest) (*DeliveryOptionsResult, error) {
	c, err := s.contracts.GetContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if contract.IsTerminal(c.Status) {
		return nil, contract.Errf(contract.CodeContractTerminated,
			"cannot fetch delivery options for a %s contract", strings.ToLower(string(c.Status)))
	}
	if req.Address.Line1 == "" {
		return nil, contract.NewUserError(contract.CodeInvalid, "address line1 is required", "address", "line1")
	}
	if req.Address.CountryCode == "" {
		return nil, contract.NewUserError(contract.CodeInvalid, "address country_code is required", "address", "country_code")
	}

	var options []DeliveryOption
	for _, source := range s.sources {
		quoted, err := source.Quote(ctx, req.Address)
		if err != nil {
			return nil, err
		}
		options = append(options, quoted...)
	}
	if len(options) == 0 {
		return &DeliveryOptionsResult{Failure: &DeliveryOptionsFailure{
			Message: "no delivery options are available for this destination",
		}}, nil
	}

	token, err := s.tokens.Issue(ctx, quotePayload{
		ContractID: c.ID.String(),
		Address:    req.Address,
		Options:    options,
	}, s.quoteTTL)
	if err != nil {
		return nil, err
	}
	return &DeliveryOptionsResult{Success: &DeliveryOptionsSuccess{Token: token, Options: options}}, nil
}

func (s *service) SelectDeliveryMethod(ctx context.Context, contractID string, req SelectMethodRequest) (*contract.SubscriptionContract, error) {
	if req.Token == "" {
		return nil, contract.NewUserError(contract.CodeInvalid, "token is required", "token")
	}
	if req.OptionCode == "" {
		return nil, contract.NewUserError(contract.CodeInvalid, "option_code is required", "option_code")
	}

	payload, err := s.tokens.Redeem(ctx, contractID, req.Token)
	if err != nil {
		if errors.Is(err, ErrTokenInvalid) {
			return nil, contract.NewUserError(contract.CodeInvalid,
				"delivery options token is unknown, expired or already used", "token")
		}
		return nil, err
	}

	var chosen *DeliveryOption
	for i := range payload.Options {
		if payload.Options[i].Code == req.OptionCode {
			chosen = &payload.Options[i]
			break
		}
	}
	if chosen == nil {
		return nil, contract.NewUserError(contract.CodeInvalid,
			"option_code does not match any quoted option", "option_code")
	}

	method := methodFromOption(*chosen, payload.Address, req)
	return s.contracts.SetDeliveryMethod(ctx, contractID, method)
}

// methodFromOption turns a quoted option back into the contract's delivery
// method union.
func methodFromOption(opt DeliveryOption, addr contract.Address, req SelectMethodRequest) contract.DeliveryMethod {
	switch opt.Type {
	case contract.DeliveryPickup:
		return contract.DeliveryMethod{
			Type: contract.DeliveryPickup,
			Pickup: &contract.PickupMethodDetails{
				LocationID:   opt.LocationID,
				LocationName: opt.LocationName,
			},
		}
	case contract.DeliveryLocalDelivery:
		return contract.DeliveryMethod{
			Type: contract.DeliveryLocalDelivery,
			Local: &contract.LocalDeliveryDetails{
				Price:        opt.Price,
				Currency:     opt.Currency,
				Address:      addr,
				Instructions: req.Instructions,
				Phone:        req.Phone,
			},
		}
	default:
		return contract.DeliveryMethod{
			Type: contract.DeliveryShipping,
			Shipping: &contract.ShippingMethodDetails{
				CarrierCode: opt.CarrierCode,
				ServiceName: opt.Title,
				Price:       opt.Price,
				Currency:    opt.Currency,
				Address:     addr,
			},
		}
	}
}
