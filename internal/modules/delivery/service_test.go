package delivery

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkabwe/subcycle-backend/internal/modules/contract"
)

type fakeDirectory struct {
	byID    map[string]*contract.SubscriptionContract
	applied map[string]contract.DeliveryMethod
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		byID:    map[string]*contract.SubscriptionContract{},
		applied: map[string]contract.DeliveryMethod{},
	}
}

func (f *fakeDirectory) GetContract(_ context.Context, id string) (*contract.SubscriptionContract, error) {
	c, ok := f.byID[id]
	if !ok {
		return nil, contract.Errf(contract.CodeContractNotFound, "subscription contract %s does not exist", id)
	}
	return c, nil
}

func (f *fakeDirectory) SetDeliveryMethod(_ context.Context, id string, method contract.DeliveryMethod) (*contract.SubscriptionContract, error) {
	c := f.byID[id]
	c.DeliveryMethod = &method
	c.Revision++
	f.applied[id] = method
	return c, nil
}

func (f *fakeDirectory) seed(status contract.ContractStatus) *contract.SubscriptionContract {
	c := &contract.SubscriptionContract{ID: uuid.New(), Status: status, Revision: 1}
	f.byID[c.ID.String()] = c
	return c
}

func newDeliveryService(dir *fakeDirectory) Service {
	sources := RateSourceRegistry{
		contract.DeliveryShipping: NewFlatRateShippingSource(
			"USD", "US", decimal.NewFromInt(5), decimal.NewFromInt(20)),
		contract.DeliveryLocalDelivery: NewLocalDeliverySource(
			"USD", decimal.NewFromInt(3), "Portland"),
		contract.DeliveryPickup: NewPickupLocationSource("USD", []PickupLocation{
			{ID: "pdx-1", Name: "Downtown", City: "Portland", CountryCode: "US"},
		}),
	}
	return NewService(dir, sources, NewMemoryTokenStore(), DefaultQuoteTTL)
}

func domesticAddress() contract.Address {
	return contract.Address{Line1: "1 Main St", City: "Portland", CountryCode: "US"}
}

func TestFetchDeliveryOptions(t *testing.T) {
	dir := newFakeDirectory()
	svc := newDeliveryService(dir)
	c := dir.seed(contract.StatusActive)

	result, err := svc.FetchDeliveryOptions(context.Background(), c.ID.String(),
		FetchOptionsRequest{Address: domesticAddress()})
	require.NoError(t, err)
	require.NotNil(t, result.Success)
	assert.Nil(t, result.Failure)
	assert.NotEmpty(t, result.Success.Token)

	codes := map[string]bool{}
	for _, opt := range result.Success.Options {
		codes[opt.Code] = true
	}
	assert.True(t, codes["standard-domestic"])
	assert.True(t, codes["express-domestic"])
	assert.True(t, codes["local-portland"])
	assert.True(t, codes["pickup-pdx-1"])
}

func TestFetchDeliveryOptionsNoCoverage(t *testing.T) {
	dir := newFakeDirectory()
	c := dir.seed(contract.StatusActive)
	// Only a pickup source, and no locations in the destination country.
	svc := NewService(dir, RateSourceRegistry{
		contract.DeliveryPickup: NewPickupLocationSource("USD", nil),
	}, NewMemoryTokenStore(), DefaultQuoteTTL)

	result, err := svc.FetchDeliveryOptions(context.Background(), c.ID.String(),
		FetchOptionsRequest{Address: domesticAddress()})
	require.NoError(t, err)
	require.NotNil(t, result.Failure)
	assert.Nil(t, result.Success)
	assert.NotEmpty(t, result.Failure.Message)
}

func TestFetchDeliveryOptionsValidation(t *testing.T) {
	dir := newFakeDirectory()
	svc := newDeliveryService(dir)

	cancelled := dir.seed(contract.StatusCancelled)
	_, err := svc.FetchDeliveryOptions(context.Background(), cancelled.ID.String(),
		FetchOptionsRequest{Address: domesticAddress()})
	var uerr *contract.UserError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, contract.CodeContractTerminated, uerr.Code)

	active := dir.seed(contract.StatusActive)
	_, err = svc.FetchDeliveryOptions(context.Background(), active.ID.String(),
		FetchOptionsRequest{Address: contract.Address{CountryCode: "US"}})
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, contract.CodeInvalid, uerr.Code)
}

func TestSelectDeliveryMethod(t *testing.T) {
	dir := newFakeDirectory()
	svc := newDeliveryService(dir)
	c := dir.seed(contract.StatusActive)

	result, err := svc.FetchDeliveryOptions(context.Background(), c.ID.String(),
		FetchOptionsRequest{Address: domesticAddress()})
	require.NoError(t, err)

	updated, err := svc.SelectDeliveryMethod(context.Background(), c.ID.String(), SelectMethodRequest{
		Token:      result.Success.Token,
		OptionCode: "express-domestic",
	})
	require.NoError(t, err)
	require.NotNil(t, updated.DeliveryMethod)
	assert.Equal(t, contract.DeliveryShipping, updated.DeliveryMethod.Type)
	require.NotNil(t, updated.DeliveryMethod.Shipping)
	assert.Equal(t, "express", updated.DeliveryMethod.Shipping.CarrierCode)
	assert.True(t, updated.DeliveryMethod.Shipping.Price.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, domesticAddress(), updated.DeliveryMethod.Shipping.Address)
}

func TestSelectDeliveryMethodTokenIsSingleUse(t *testing.T) {
	dir := newFakeDirectory()
	svc := newDeliveryService(dir)
	c := dir.seed(contract.StatusActive)

	result, err := svc.FetchDeliveryOptions(context.Background(), c.ID.String(),
		FetchOptionsRequest{Address: domesticAddress()})
	require.NoError(t, err)

	req := SelectMethodRequest{Token: result.Success.Token, OptionCode: "standard-domestic"}
	_, err = svc.SelectDeliveryMethod(context.Background(), c.ID.String(), req)
	require.NoError(t, err)

	_, err = svc.SelectDeliveryMethod(context.Background(), c.ID.String(), req)
	var uerr *contract.UserError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, contract.CodeInvalid, uerr.Code)
}

func TestSelectDeliveryMethodUnknownToken(t *testing.T) {
	dir := newFakeDirectory()
	svc := newDeliveryService(dir)
	c := dir.seed(contract.StatusActive)

	_, err := svc.SelectDeliveryMethod(context.Background(), c.ID.String(), SelectMethodRequest{
		Token:      "never-issued",
		OptionCode: "standard-domestic",
	})
	var uerr *contract.UserError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, contract.CodeInvalid, uerr.Code)
}

func TestSelectDeliveryMethodWrongContract(t *testing.T) {
	dir := newFakeDirectory()
	svc := newDeliveryService(dir)
	quoted := dir.seed(contract.StatusActive)
	other := dir.seed(contract.StatusActive)

	result, err := svc.FetchDeliveryOptions(context.Background(), quoted.ID.String(),
		FetchOptionsRequest{Address: domesticAddress()})
	require.NoError(t, err)

	// A token is bound to the contract it was quoted for.
	_, err = svc.SelectDeliveryMethod(context.Background(), other.ID.String(), SelectMethodRequest{
		Token:      result.Success.Token,
		OptionCode: "standard-domestic",
	})
	var uerr *contract.UserError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, contract.CodeInvalid, uerr.Code)
}

func TestSelectDeliveryMethodUnknownOptionCode(t *testing.T) {
	dir := newFakeDirectory()
	svc := newDeliveryService(dir)
	c := dir.seed(contract.StatusActive)

	result, err := svc.FetchDeliveryOptions(context.Background(), c.ID.String(),
		FetchOptionsRequest{Address: domesticAddress()})
	require.NoError(t, err)

	_, err = svc.SelectDeliveryMethod(context.Background(), c.ID.String(), SelectMethodRequest{
		Token:      result.Success.Token,
		OptionCode: "carrier-pigeon",
	})
	var uerr *contract.UserError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, contract.CodeInvalid, uerr.Code)
	// A bad option code still burns the token.
	_, err = svc.SelectDeliveryMethod(context.Background(), c.ID.String(), SelectMethodRequest{
		Token:      result.Success.Token,
		OptionCode: "standard-domestic",
	})
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, contract.CodeInvalid, uerr.Code)
}

func TestSelectLocalDeliveryCarriesInstructions(t *testing.T) {
	dir := newFakeDirectory()
	svc := newDeliveryService(dir)
	c := dir.seed(contract.StatusActive)

	result, err := svc.FetchDeliveryOptions(context.Background(), c.ID.String(),
		FetchOptionsRequest{Address: domesticAddress()})
	require.NoError(t, err)

	updated, err := svc.SelectDeliveryMethod(context.Background(), c.ID.String(), SelectMethodRequest{
		Token:        result.Success.Token,
		OptionCode:   "local-portland",
		Instructions: "leave at the back door",
		Phone:        "+1 555 0100",
	})
	require.NoError(t, err)
	require.NotNil(t, updated.DeliveryMethod.Local)
	assert.Equal(t, "leave at the back door", updated.DeliveryMethod.Local.Instructions)
	assert.Equal(t, "+1 555 0100", updated.DeliveryMethod.Local.Phone)
}

func TestQuoteExpiry(t *testing.T) {
	dir := newFakeDirectory()
	c := dir.seed(contract.StatusActive)

	current := time.Now()
	store := &memoryTokenStore{
		tokens: map[string]memoryEntry{},
		now:    func() time.Time { return current },
	}
	svc := NewService(dir, RateSourceRegistry{
		contract.DeliveryShipping: NewFlatRateShippingSource(
			"USD", "US", decimal.NewFromInt(5), decimal.NewFromInt(20)),
	}, store, 10*time.Minute)

	result, err := svc.FetchDeliveryOptions(context.Background(), c.ID.String(),
		FetchOptionsRequest{Address: domesticAddress()})
	require.NoError(t, err)

	current = current.Add(11 * time.Minute)

	_, err = svc.SelectDeliveryMethod(context.Background(), c.ID.String(), SelectMethodRequest{
		Token:      result.Success.Token,
		OptionCode: "standard-domestic",
	})
	var uerr *contract.UserError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, contract.CodeInvalid, uerr.Code)
}
