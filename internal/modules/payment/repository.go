package payment

import "context"

// Repository defines data access for payment instruments.
type Repository interface {
	CreateInstrument(ctx context.Context, in *PaymentInstrument) error
	GetInstrumentByID(ctx context.Context, id string) (*PaymentInstrument, error)
	ListInstrumentsByCustomer(ctx context.Context, customerID string) ([]*PaymentInstrument, error)
	RevokeInstrument(ctx context.Context, id string) error
	InstrumentExists(ctx context.Context, id string) (bool, error)
}
