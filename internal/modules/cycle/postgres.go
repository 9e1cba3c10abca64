package cycle

import (
	"context"
	"database/sql"
	"time"
)

type postgresRepo struct{ db *sql.DB }

func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

const cycleColumns = `contract_id, cycle_index, cycle_start_at, cycle_end_at,
	       billing_attempt_expected_date, status, skipped, edited, edit_payload,
	       created_at, updated_at`

func (r *postgresRepo) MaterializeCycle(ctx context.Context, c *BillingCycle) (*BillingCycle, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subscription_billing_cycles
		  (contract_id, cycle_index, cycle_start_at, cycle_end_at,
		   billing_attempt_expected_date, status, skipped, edited)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (contract_id, cycle_index) DO NOTHING`,
		c.ContractID, c.CycleIndex, c.CycleStartAt, c.CycleEndAt,
		c.BillingAttemptExpectedDate, CycleUnbilled, false, false)
	if err != nil {
		return nil, err
	}
	return r.GetCycle(ctx, c.ContractID.String(), c.CycleIndex)
}

func (r *postgresRepo) GetCycle(ctx context.Context, contractID string, index int) (*BillingCycle, error) {
	c, err := r.scanCycle(r.db.QueryRowContext(ctx, `
		SELECT `+cycleColumns+`
		FROM subscription_billing_cycles WHERE contract_id=$1 AND cycle_index=$2`,
		contractID, index))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

func (r *postgresRepo) ListTouchedFrom(ctx context.Context, contractID string, from int) ([]*BillingCycle, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+cycleColumns+`
		FROM subscription_billing_cycles
		WHERE contract_id=$1 AND cycle_index >= $2
		ORDER BY cycle_index ASC`, contractID, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *postgresRepo) SetSkipped(ctx context.Context, contractID string, index int, skipped bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE subscription_billing_cycles
		SET skipped=$1, updated_at=$2
		WHERE contract_id=$3 AND cycle_index=$4`,
		skipped, time.Now(), contractID, index)
	return err
}

func (r *postgresRepo) MarkBilled(ctx context.Context, contractID string, index int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE subscription_billing_cycles
		SET status='BILLED', updated_at=$1
		WHERE contract_id=$2 AND cycle_index=$3`,
		time.Now(), contractID, index)
	return err
}

func (r *postgresRepo) SetEdit(ctx context.Context, contractID string, index int, payload []byte) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE subscription_billing_cycles
		SET edited=TRUE, edit_payload=$1, updated_at=$2
		WHERE contract_id=$3 AND cycle_index=$4`,
		payload, time.Now(), contractID, index)
	return err
}

func (r *postgresRepo) ClearEdit(ctx context.Context, contractID string, index int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE subscription_billing_cycles
		SET edited=FALSE, edit_payload=NULL, updated_at=$1
		WHERE contract_id=$2 AND cycle_index=$3`,
		time.Now(), contractID, index)
	return err
}

func (r *postgresRepo) HasFutureEdits(ctx context.Context, contractID string, after time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
		  SELECT 1 FROM subscription_billing_cycles
		  WHERE contract_id=$1 AND edited=TRUE AND status='UNBILLED' AND cycle_start_at > $2
		)`, contractID, after).Scan(&exists)
	return exists, err
}

func (r *postgresRepo) RecordAttempt(ctx context.Context, a *BillingAttempt) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subscription_billing_attempts
		  (id, contract_id, cycle_index, outcome, reference, occurred_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		a.ID, a.ContractID, a.CycleIndex, a.Outcome, a.Reference, a.OccurredAt)
	return err
}

func (r *postgresRepo) ConsecutiveFailures(ctx context.Context, contractID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM subscription_billing_attempts
		WHERE contract_id=$1 AND outcome='FAILED'
		  AND occurred_at > COALESCE(
		    (SELECT MAX(occurred_at) FROM subscription_billing_attempts
		     WHERE contract_id=$1 AND outcome='SUCCEEDED'),
		    'epoch'::timestamptz)`, contractID).Scan(&count)
	return count, err
}

// ── Scanners ──────────────────────────────────────────────────────────────────

type rowScanner interface{ Scan(dest ...interface{}) error }

func (r *postgresRepo) scanCycle(row rowScanner) (*BillingCycle, error) {
	c := &BillingCycle{}
	var payload []byte
	err := row.Scan(&c.ContractID, &c.CycleIndex, &c.CycleStartAt, &c.CycleEndAt,
		&c.BillingAttemptExpectedDate, &c.Status, &c.Skipped, &c.Edited, &payload,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		c.EditPayload = payload
	}
	return c, nil
}

func (r *postgresRepo) collect(rows *sql.Rows) ([]*BillingCycle, error) {
	var cycles []*BillingCycle
	for rows.Next() {
		c, err := r.scanCycle(rows)
		if err != nil {
			return nil, err
		}
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}
