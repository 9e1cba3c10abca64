package delivery

import (
	"github.com/shopspring/decimal"

	"github.com/tkabwe/subcycle-backend/internal/modules/contract"
)

// DeliveryOption is one candidate way to fulfil a contract's deliveries,
// quoted for a specific destination. The Type discriminator decides which of
// the optional fields are meaningful.
type DeliveryOption struct {
	Type         contract.DeliveryMethodType `json:"type"`
	Code         string                      `json:"code"`
	Title        string                      `json:"title"`
	Price        decimal.Decimal             `json:"price"`
	Currency     string                      `json:"currency"`
	CarrierCode  string                      `json:"carrier_code,omitempty"`  // SHIPPING
	LocationID   string                      `json:"location_id,omitempty"`   // PICKUP
	LocationName string                      `json:"location_name,omitempty"` // PICKUP
}

// DeliveryOptionsResult is the two-armed result of a fetch: exactly one of
// Success or Failure is set. A Failure is a quotable outcome (unserviceable
// destination, no options), not an error.
type DeliveryOptionsResult struct {
	Success *DeliveryOptionsSuccess `json:"success,omitempty"`
	Failure *DeliveryOptionsFailure `json:"failure,omitempty"`
}

// DeliveryOptionsSuccess carries the quoted options and the single-use token
// that binds a later selection to this exact quote.
type DeliveryOptionsSuccess struct {
	Token   string           `json:"token"`
	Options []DeliveryOption `json:"options"`
}

// DeliveryOptionsFailure explains why no options could be quoted.
type DeliveryOptionsFailure struct {
	Message string `json:"message"`
}

// ── Request payloads ──────────────────────────────────────────────────────────

// FetchOptionsRequest asks for delivery options to a destination.
type FetchOptionsRequest struct {
	Address contract.Address `json:"address"`
}

// SelectMethodRequest redeems a quote token and picks one of its options.
type SelectMethodRequest struct {
	Token      string `json:"token"`
	OptionCode string `json:"option_code"`
	// Instructions and Phone only apply to local delivery selections.
	Instructions string `json:"instructions,omitempty"`
	Phone        string `json:"phone,omitempty"`
}

// quotePayload is what the token store keeps per issued token.
type quotePayload struct {
	ContractID string           `json:"contract_id"`
	Address    contract.Address `json:"address"`
	Options    []DeliveryOption `json:"options"`
}
