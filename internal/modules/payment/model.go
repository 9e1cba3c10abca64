package payment

import (
	"time"

	"github.com/google/uuid"
)

// Provider identifies where a payment instrument is vaulted.
type Provider string

const (
	ProviderCard      Provider = "CREDIT_CARD"
	ProviderPayPal    Provider = "PAYPAL"
	ProviderApplePay  Provider = "APPLE_PAY"
	ProviderGooglePay Provider = "GOOGLE_PAY"
)

// PaymentInstrument is a vaulted payment method reference. The engine never
// sees raw card data; VaultRef points at the provider-held token.
type PaymentInstrument struct {
	ID          uuid.UUID `json:"id"`
	CustomerID  uuid.UUID `json:"customer_id"`
	Provider    Provider  `json:"provider"`
	VaultRef    string    `json:"vault_ref"`
	Brand       string    `json:"brand,omitempty"`
	Last4       string    `json:"last4,omitempty"`
	ExpiryMonth int       `json:"expiry_month,omitempty"`
	ExpiryYear  int       `json:"expiry_year,omitempty"`
	Revoked     bool      `json:"revoked"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateInstrumentRequest vaults a new instrument for a customer.
type CreateInstrumentRequest struct {
	CustomerID string   `json:"customer_id"`
	Provider   Provider `json:"provider"`
	// Nonce is the one-time client token produced by the provider's SDK.
	Nonce string `json:"nonce"`
}
