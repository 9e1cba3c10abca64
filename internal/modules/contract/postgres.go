package contract

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

type postgresRepo struct{ db *sql.DB }

func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

const contractColumns = `id, customer_id, origin_order_id, status, revision,
	       billing_policy, delivery_policy, delivery_method, payment_instrument_id,
	       lines, next_billing_date, activated_at, paused_at, cancelled_at,
	       created_at, updated_at`

func (r *postgresRepo) CreateContract(ctx context.Context, c *SubscriptionContract) error {
	billingJSON, err := json.Marshal(c.BillingPolicy)
	if err != nil {
		return err
	}
	deliveryJSON, err := json.Marshal(c.DeliveryPolicy)
	if err != nil {
		return err
	}
	linesJSON, err := json.Marshal(c.Lines)
	if err != nil {
		return err
	}
	var methodJSON []byte
	if c.DeliveryMethod != nil {
		if methodJSON, err = json.Marshal(c.DeliveryMethod); err != nil {
			return err
		}
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO subscription_contracts
		  (id, customer_id, origin_order_id, status, revision,
		   billing_policy, delivery_policy, delivery_method, payment_instrument_id,
		   lines, next_billing_date, activated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		c.ID, c.CustomerID, c.OriginOrderID, c.Status, c.Revision,
		billingJSON, deliveryJSON, nullableJSON(methodJSON), c.PaymentInstrumentID,
		linesJSON, c.NextBillingDate, c.ActivatedAt)
	return err
}

func (r *postgresRepo) GetContractByID(ctx context.Context, id string) (*SubscriptionContract, error) {
	return r.scanContract(r.db.QueryRowContext(ctx, `
		SELECT `+contractColumns+`
		FROM subscription_contracts WHERE id=$1`, id))
}

func (r *postgresRepo) ListContractsByCustomer(ctx context.Context, customerID string) ([]*SubscriptionContract, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+contractColumns+`
		FROM subscription_contracts WHERE customer_id=$1 ORDER BY created_at DESC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var contracts []*SubscriptionContract
	for rows.Next() {
		c, err := r.scanContract(rows)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, c)
	}
	return contracts, rows.Err()
}

func (r *postgresRepo) UpdateContractCAS(ctx context.Context, c *SubscriptionContract, expectedRevision uint64) error {
	linesJSON, err := json.Marshal(c.Lines)
	if err != nil {
		return err
	}
	var methodJSON []byte
	if c.DeliveryMethod != nil {
		if methodJSON, err = json.Marshal(c.DeliveryMethod); err != nil {
			return err
		}
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE subscription_contracts
		SET status=$1, delivery_method=$2, payment_instrument_id=$3, lines=$4,
		    next_billing_date=$5, paused_at=$6, cancelled_at=$7,
		    revision=$8, updated_at=$9
		WHERE id=$10 AND revision=$11`,
		c.Status, nullableJSON(methodJSON), c.PaymentInstrumentID, linesJSON,
		c.NextBillingDate, c.PausedAt, c.CancelledAt,
		expectedRevision+1, time.Now(), c.ID, expectedRevision)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRevisionConflict
	}
	return nil
}

func (r *postgresRepo) ListInactiveSince(ctx context.Context, cutoff time.Time) ([]*SubscriptionContract, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+contractColumns+`
		FROM subscription_contracts
		WHERE updated_at < $1 AND status IN ('ACTIVE','PAUSED','FAILED')`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var contracts []*SubscriptionContract
	for rows.Next() {
		c, err := r.scanContract(rows)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, c)
	}
	return contracts, rows.Err()
}

// ── Scanners ──────────────────────────────────────────────────────────────────

type rowScanner interface{ Scan(dest ...interface{}) error }

func (r *postgresRepo) scanContract(row rowScanner) (*SubscriptionContract, error) {
	c := &SubscriptionContract{}
	var billingJSON, deliveryJSON, linesJSON []byte
	var methodJSON []byte
	var nextBilling, pausedAt, cancelledAt sql.NullTime
	err := row.Scan(&c.ID, &c.CustomerID, &c.OriginOrderID, &c.Status, &c.Revision,
		&billingJSON, &deliveryJSON, &methodJSON, &c.PaymentInstrumentID,
		&linesJSON, &nextBilling, &c.ActivatedAt, &pausedAt, &cancelledAt,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(billingJSON, &c.BillingPolicy); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(deliveryJSON, &c.DeliveryPolicy); err != nil {
		return nil, err
	}
	if len(methodJSON) > 0 {
		c.DeliveryMethod = &DeliveryMethod{}
		if err := json.Unmarshal(methodJSON, c.DeliveryMethod); err != nil {
			return nil, err
		}
	}
	if len(linesJSON) > 0 {
		if err := json.Unmarshal(linesJSON, &c.Lines); err != nil {
			return nil, err
		}
	}
	// Ensure non-nil slice for JSON output
	if c.Lines == nil {
		c.Lines = []ContractLine{}
	}
	if nextBilling.Valid {
		c.NextBillingDate = &nextBilling.Time
	}
	if pausedAt.Valid {
		c.PausedAt = &pausedAt.Time
	}
	if cancelledAt.Valid {
		c.CancelledAt = &cancelledAt.Time
	}
	return c, nil
}

func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}
