package delivery

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tkabwe/subcycle-backend/internal/modules/contract"
)

// RateSource is the provider-agnostic interface every delivery quoting adapter
// must implement. To add a new carrier or availability source, implement this
// interface and register it.
type RateSource interface {
	// Quote returns the candidate options for the destination, or an empty
	// slice when the source cannot serve it. Errors are reserved for the
	// source being unreachable.
	Quote(ctx context.Context, address contract.Address) ([]DeliveryOption, error)
}

// RateSourceRegistry maps delivery method types to their RateSource adapters.
type RateSourceRegistry map[contract.DeliveryMethodType]RateSource

// ── Flat-rate shipping adapter ────────────────────────────────────────────────
// In production, replace the table lookup with carrier rate API calls
// (the quote request/response shapes stay the same).

type flatRateShippingSource struct {
	currency      string
	domesticRate  decimal.Decimal
	overseasRate  decimal.Decimal
	homeCountry   string
	excludedCodes map[string]bool
}

func NewFlatRateShippingSource(currency, homeCountry string, domestic, overseas decimal.Decimal, excluded ...string) RateSource {
	ex := make(map[string]bool, len(excluded))
	for _, code := range excluded {
		ex[strings.ToUpper(code)] = true
	}
	return &flatRateShippingSource{
		currency:      currency,
		domesticRate:  domestic,
		overseasRate:  overseas,
		homeCountry:   strings.ToUpper(homeCountry),
		excludedCodes: ex,
	}
}

func (g *flatRateShippingSource) Quote(ctx context.Context, address contract.Address) ([]DeliveryOption, error) {
	country := strings.ToUpper(address.CountryCode)
	if country == "" {
		return nil, fmt.Errorf("destination country_code is required")
	}
	if g.excludedCodes[country] {
		return nil, nil
	}
	if country == g.homeCountry {
		return []DeliveryOption{
			{
				Type:        contract.DeliveryShipping,
				Code:        "standard-domestic",
				Title:       "Standard shipping",
				Price:       g.domesticRate,
				Currency:    g.currency,
				CarrierCode: "standard",
			},
			{
				Type:        contract.DeliveryShipping,
				Code:        "express-domestic",
				Title:       "Express shipping",
				Price:       g.domesticRate.Mul(decimal.NewFromInt(2)),
				Currency:    g.currency,
				CarrierCode: "express",
			},
		}, nil
	}
	return []DeliveryOption{
		{
			Type:        contract.DeliveryShipping,
			Code:        "standard-international",
			Title:       "International shipping",
			Price:       g.overseasRate,
			Currency:    g.currency,
			CarrierCode: "standard",
		},
	}, nil
}

// ── Pickup location adapter ───────────────────────────────────────────────────
// In production, back this with the location service's availability API.

// PickupLocation is one configured pickup point.
type PickupLocation struct {
	ID          string
	Name        string
	City        string
	CountryCode string
}

type pickupLocationSource struct {
	currency  string
	locations []PickupLocation
}

func NewPickupLocationSource(currency string, locations []PickupLocation) RateSource {
	return &pickupLocationSource{currency: currency, locations: locations}
}

func (g *pickupLocationSource) Quote(ctx context.Context, address contract.Address) ([]DeliveryOption, error) {
	var options []DeliveryOption
	for _, loc := range g.locations {
		if !strings.EqualFold(loc.CountryCode, address.CountryCode) {
			continue
		}
		if address.City != "" && !strings.EqualFold(loc.City, address.City) {
			continue
		}
		options = append(options, DeliveryOption{
			Type:         contract.DeliveryPickup,
			Code:         "pickup-" + loc.ID,
			Title:        "Pickup at " + loc.Name,
			Price:        decimal.Zero,
			Currency:     g.currency,
			LocationID:   loc.ID,
			LocationName: loc.Name,
		})
	}
	return options, nil
}

// ── Local delivery adapter ────────────────────────────────────────────────────

type localDeliverySource struct {
	currency string
	fee      decimal.Decimal
	cities   map[string]bool
}

func NewLocalDeliverySource(currency string, fee decimal.Decimal, cities ...string) RateSource {
	set := make(map[string]bool, len(cities))
	for _, c := range cities {
		set[strings.ToLower(c)] = true
	}
	return &localDeliverySource{currency: currency, fee: fee, cities: set}
}

func (g *localDeliverySource) Quote(ctx context.Context, address contract.Address) ([]DeliveryOption, error) {
	if !g.cities[strings.ToLower(address.City)] {
		return nil, nil
	}
	return []DeliveryOption{
		{
			Type:     contract.DeliveryLocalDelivery,
			Code:     "local-" + strings.ToLower(address.City),
			Title:    "Local delivery",
			Price:    g.fee,
			Currency: g.currency,
		},
	}, nil
}
