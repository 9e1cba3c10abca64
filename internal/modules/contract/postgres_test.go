package contract

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateContractCASWinner(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresRepository(db)
	c := &SubscriptionContract{ID: uuid.New(), Status: StatusPaused, Revision: 3}

	mock.ExpectExec("UPDATE subscription_contracts").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.UpdateContractCAS(context.Background(), c, 3)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateContractCASLoser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresRepository(db)
	c := &SubscriptionContract{ID: uuid.New(), Status: StatusPaused, Revision: 3}

	// Another writer already bumped the revision: the guarded UPDATE matches
	// zero rows and the write must surface as a conflict.
	mock.ExpectExec("UPDATE subscription_contracts").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.UpdateContractCAS(context.Background(), c, 3)
	assert.ErrorIs(t, err, ErrRevisionConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetContractByIDScansPolicies(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresRepository(db)
	id := uuid.New()
	customerID := uuid.New()
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"id", "customer_id", "origin_order_id", "status", "revision",
		"billing_policy", "delivery_policy", "delivery_method", "payment_instrument_id",
		"lines", "next_billing_date", "activated_at", "paused_at", "cancelled_at",
		"created_at", "updated_at",
	}).AddRow(
		id.String(), customerID.String(), nil, "ACTIVE", 2,
		[]byte(`{"interval":"MONTH","interval_count":1,"anchors":[{"type":"MONTHDAY","day":31}]}`),
		[]byte(`{"interval":"MONTH","interval_count":1}`), nil, nil,
		[]byte(`[]`), now, now, nil, nil,
		now, now,
	)
	mock.ExpectQuery("SELECT (.+) FROM subscription_contracts WHERE id=").
		WithArgs(id.String()).
		WillReturnRows(rows)

	c, err := repo.GetContractByID(context.Background(), id.String())
	require.NoError(t, err)
	assert.Equal(t, StatusActive, c.Status)
	assert.Equal(t, uint64(2), c.Revision)
	assert.Equal(t, IntervalMonth, c.BillingPolicy.Interval)
	require.Len(t, c.BillingPolicy.Anchors, 1)
	assert.Equal(t, 31, c.BillingPolicy.Anchors[0].Day)
	require.NotNil(t, c.NextBillingDate)
	assert.NotNil(t, c.Lines)
	assert.NoError(t, mock.ExpectationsWereMet())
}
