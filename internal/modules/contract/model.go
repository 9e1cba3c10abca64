package contract

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ── Contract ──────────────────────────────────────────────────────────────────

// ContractStatus represents the lifecycle state of a subscription contract.
type ContractStatus string

const (
	StatusActive    ContractStatus = "ACTIVE"
	StatusPaused    ContractStatus = "PAUSED"
	StatusCancelled ContractStatus = "CANCELLED"
	StatusFailed    ContractStatus = "FAILED"
	StatusExpired   ContractStatus = "EXPIRED"
	StatusStale     ContractStatus = "STALE"
)

// validTransitions defines allowed contract state machine transitions.
// CANCELLED, EXPIRED and STALE have no outgoing transitions. FAILED may be
// reactivated or cancelled but nothing else.
var validTransitions = map[ContractStatus][]ContractStatus{
	StatusActive:    {StatusPaused, StatusCancelled, StatusFailed, StatusExpired, StatusStale},
	StatusPaused:    {StatusActive, StatusCancelled, StatusStale},
	StatusFailed:    {StatusActive, StatusCancelled, StatusStale},
	StatusCancelled: {},
	StatusExpired:   {},
	StatusStale:     {},
}

// CanTransition returns true if the contract transition is valid.
func CanTransition(current, next ContractStatus) bool {
	allowed, ok := validTransitions[current]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status permits no further mutations at all.
func IsTerminal(s ContractStatus) bool {
	return s == StatusCancelled || s == StatusExpired
}

// ── Delivery method ───────────────────────────────────────────────────────────

// DeliveryMethodType discriminates the delivery method union.
type DeliveryMethodType string

const (
	DeliveryShipping      DeliveryMethodType = "SHIPPING"
	DeliveryLocalDelivery DeliveryMethodType = "LOCAL_DELIVERY"
	DeliveryPickup        DeliveryMethodType = "PICKUP"
)

// DeliveryMethod is a tagged union: exactly one of the detail structs is set,
// matching the Type discriminator.
type DeliveryMethod struct {
	Type     DeliveryMethodType      `json:"type"`
	Shipping *ShippingMethodDetails  `json:"shipping,omitempty"`
	Local    *LocalDeliveryDetails   `json:"local_delivery,omitempty"`
	Pickup   *PickupMethodDetails    `json:"pickup,omitempty"`
}

// ShippingMethodDetails describes carrier shipping to a destination address.
type ShippingMethodDetails struct {
	CarrierCode string          `json:"carrier_code"`
	ServiceName string          `json:"service_name"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	Address     Address         `json:"address"`
}

// LocalDeliveryDetails describes merchant-operated local delivery.
type LocalDeliveryDetails struct {
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
	Address      Address         `json:"address"`
	Instructions string          `json:"instructions,omitempty"`
	Phone        string          `json:"phone,omitempty"`
}

// PickupMethodDetails describes customer pickup at a named location.
type PickupMethodDetails struct {
	LocationID   string `json:"location_id"`
	LocationName string `json:"location_name"`
}

// Address is a delivery destination.
type Address struct {
	Line1       string `json:"line1"`
	Line2       string `json:"line2,omitempty"`
	City        string `json:"city"`
	Province    string `json:"province,omitempty"`
	CountryCode string `json:"country_code"`
	PostalCode  string `json:"postal_code,omitempty"`
}

// ── Lines ─────────────────────────────────────────────────────────────────────

// ContractLine is one ordered line of a contract with a price snapshot taken
// at the time the line was added or last edited.
type ContractLine struct {
	ID           uuid.UUID       `json:"id"`
	ProductID    uuid.UUID       `json:"product_id"`
	Title        string          `json:"title"`
	Quantity     int             `json:"quantity"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	Currency     string          `json:"currency"`
}

// SubscriptionContract is the aggregate root of the billing engine. It owns
// its cycle sequence and skip ledger; payment instrument and origin order are
// held as non-owning references.
type SubscriptionContract struct {
	ID                  uuid.UUID       `json:"id"`
	CustomerID          uuid.UUID       `json:"customer_id"`
	OriginOrderID       *uuid.UUID      `json:"origin_order_id,omitempty"`
	Status              ContractStatus  `json:"status"`
	Revision            uint64          `json:"revision_id"`
	BillingPolicy       BillingPolicy   `json:"billing_policy"`
	DeliveryPolicy      DeliveryPolicy  `json:"delivery_policy"`
	DeliveryMethod      *DeliveryMethod `json:"delivery_method,omitempty"`
	PaymentInstrumentID *uuid.UUID      `json:"payment_instrument_id,omitempty"`
	Lines               []ContractLine  `json:"lines"`
	NextBillingDate     *time.Time      `json:"next_billing_date,omitempty"`
	ActivatedAt         time.Time       `json:"activated_at"`
	PausedAt            *time.Time      `json:"paused_at,omitempty"`
	CancelledAt         *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// ── Request payloads ──────────────────────────────────────────────────────────

// CreateContractRequest is the payload for creating (and activating) a contract.
type CreateContractRequest struct {
	CustomerID          string             `json:"customer_id"`
	OriginOrderID       string             `json:"origin_order_id,omitempty"`
	BillingPolicy       BillingPolicy      `json:"billing_policy"`
	DeliveryPolicy      DeliveryPolicy     `json:"delivery_policy"`
	PaymentInstrumentID string             `json:"payment_instrument_id,omitempty"`
	Lines               []CreateLineInput  `json:"lines"`
}

// CreateLineInput is one line of a contract creation payload.
type CreateLineInput struct {
	ProductID string          `json:"product_id"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
}

// ChangePaymentInstrumentRequest swaps the payment instrument reference.
type ChangePaymentInstrumentRequest struct {
	PaymentInstrumentID string `json:"payment_instrument_id"`
}
