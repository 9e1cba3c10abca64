package payment

import (
	"context"
	"database/sql"
	"time"
)

type postgresRepo struct{ db *sql.DB }

func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

const instrumentColumns = `id, customer_id, provider, vault_ref, brand, last4,
	       expiry_month, expiry_year, revoked, created_at, updated_at`

func (r *postgresRepo) CreateInstrument(ctx context.Context, in *PaymentInstrument) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payment_instruments
		  (id, customer_id, provider, vault_ref, brand, last4, expiry_month, expiry_year)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		in.ID, in.CustomerID, in.Provider, in.VaultRef, in.Brand, in.Last4,
		in.ExpiryMonth, in.ExpiryYear)
	return err
}

func (r *postgresRepo) GetInstrumentByID(ctx context.Context, id string) (*PaymentInstrument, error) {
	return r.scanInstrument(r.db.QueryRowContext(ctx, `
		SELECT `+instrumentColumns+`
		FROM payment_instruments WHERE id=$1`, id))
}

func (r *postgresRepo) ListInstrumentsByCustomer(ctx context.Context, customerID string) ([]*PaymentInstrument, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+instrumentColumns+`
		FROM payment_instruments WHERE customer_id=$1 AND revoked=FALSE
		ORDER BY created_at DESC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var instruments []*PaymentInstrument
	for rows.Next() {
		in, err := r.scanInstrument(rows)
		if err != nil {
			return nil, err
		}
		instruments = append(instruments, in)
	}
	return instruments, rows.Err()
}

func (r *postgresRepo) RevokeInstrument(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE payment_instruments SET revoked=TRUE, updated_at=$1 WHERE id=$2`,
		time.Now(), id)
	return err
}

func (r *postgresRepo) InstrumentExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM payment_instruments WHERE id=$1 AND revoked=FALSE)`,
		id).Scan(&exists)
	return exists, err
}

// ── Scanners ──────────────────────────────────────────────────────────────────

type rowScanner interface{ Scan(dest ...interface{}) error }

func (r *postgresRepo) scanInstrument(row rowScanner) (*PaymentInstrument, error) {
	in := &PaymentInstrument{}
	var brand, last4 sql.NullString
	var expMonth, expYear sql.NullInt64
	err := row.Scan(&in.ID, &in.CustomerID, &in.Provider, &in.VaultRef, &brand, &last4,
		&expMonth, &expYear, &in.Revoked, &in.CreatedAt, &in.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if brand.Valid {
		in.Brand = brand.String
	}
	if last4.Valid {
		in.Last4 = last4.String
	}
	if expMonth.Valid {
		in.ExpiryMonth = int(expMonth.Int64)
	}
	if expYear.Valid {
		in.ExpiryYear = int(expYear.Int64)
	}
	return in, nil
}
