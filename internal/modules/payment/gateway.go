package payment

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// VaultGateway is the provider-agnostic interface every vault adapter must
// implement. To add a new wallet provider, implement this interface and
// register it.
type VaultGateway interface {
	// Vault exchanges a one-time client nonce for a durable vault reference
	// plus displayable instrument details.
	Vault(ctx context.Context, customerID, nonce string) (*VaultResult, error)
	// Revoke releases the vaulted reference at the provider.
	Revoke(ctx context.Context, vaultRef string) error
}

// VaultResult is what a provider hands back after vaulting.
type VaultResult struct {
	VaultRef    string
	Brand       string
	Last4       string
	ExpiryMonth int
	ExpiryYear  int
}

// GatewayRegistry maps providers to their VaultGateway implementations.
type GatewayRegistry map[Provider]VaultGateway

// ── Card vault adapter ────────────────────────────────────────────────────────
// In production, replace the stub with the PSP's vault API (exchange nonce,
// store the returned multi-use token as vault_ref).

type cardVaultGateway struct {
	apiKey  string
	baseURL string
	env     string // sandbox | production
}

func NewCardVaultGateway(apiKey, baseURL, env string) VaultGateway {
	return &cardVaultGateway{apiKey: apiKey, baseURL: baseURL, env: env}
}

func (g *cardVaultGateway) Vault(ctx context.Context, customerID, nonce string) (*VaultResult, error) {
	if nonce == "" {
		return nil, fmt.Errorf("nonce is required to vault a card")
	}
	// Sandbox stub: derive a stable-looking reference
	ref := fmt.Sprintf("CARD-%s-%04d", time.Now().Format("20060102150405"), rand.Intn(10000))
	return &VaultResult{
		VaultRef:    ref,
		Brand:       "visa",
		Last4:       nonce[maxInt(0, len(nonce)-4):],
		ExpiryMonth: 12,
		ExpiryYear:  time.Now().Year() + 3,
	}, nil
}

func (g *cardVaultGateway) Revoke(ctx context.Context, vaultRef string) error {
	if !strings.HasPrefix(vaultRef, "CARD-") {
		return fmt.Errorf("unknown vault reference %s", vaultRef)
	}
	return nil
}

// ── Wallet vault adapter ──────────────────────────────────────────────────────
// Covers PayPal, Apple Pay and Google Pay; wallets vault on the provider side,
// so the adapter only records the resulting billing agreement reference.

type walletVaultGateway struct {
	provider Provider
	clientID string
	secret   string
	env      string
}

func NewWalletVaultGateway(provider Provider, clientID, secret, env string) VaultGateway {
	return &walletVaultGateway{provider: provider, clientID: clientID, secret: secret, env: env}
}

func (g *walletVaultGateway) Vault(ctx context.Context, customerID, nonce string) (*VaultResult, error) {
	if nonce == "" {
		return nil, fmt.Errorf("nonce is required to vault a %s instrument", g.provider)
	}
	prefix := map[Provider]string{
		ProviderPayPal:    "PP",
		ProviderApplePay:  "AP",
		ProviderGooglePay: "GP",
	}[g.provider]
	ref := fmt.Sprintf("%s-%s-%04d", prefix, time.Now().Format("20060102150405"), rand.Intn(10000))
	return &VaultResult{VaultRef: ref, Brand: strings.ToLower(string(g.provider))}, nil
}

func (g *walletVaultGateway) Revoke(ctx context.Context, vaultRef string) error {
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
