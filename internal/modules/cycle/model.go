package cycle

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ── Billing cycle records ─────────────────────────────────────────────────────

// CycleStatus tracks whether a cycle has been billed. UNBILLED moves to BILLED
// exactly once, when the billing collaborator reports success.
type CycleStatus string

const (
	CycleUnbilled CycleStatus = "UNBILLED"
	CycleBilled   CycleStatus = "BILLED"
)

// BillingCycle is a lazily materialized cycle row. Rows exist only for cycles
// something has touched (a skip, an edit, a billing attempt); untouched cycles
// are computed on demand from the policy and carry default state.
type BillingCycle struct {
	ContractID                 uuid.UUID       `json:"contract_id"`
	CycleIndex                 int             `json:"cycle_index"`
	CycleStartAt               time.Time       `json:"cycle_start_at"`
	CycleEndAt                 time.Time       `json:"cycle_end_at"`
	BillingAttemptExpectedDate time.Time       `json:"billing_attempt_expected_date"`
	Status                     CycleStatus     `json:"status"`
	Skipped                    bool            `json:"skipped"`
	Edited                     bool            `json:"edited"`
	EditPayload                json.RawMessage `json:"edit_payload,omitempty"`
	CreatedAt                  time.Time       `json:"created_at"`
	UpdatedAt                  time.Time       `json:"updated_at"`
}

// ── Selectors and payloads ────────────────────────────────────────────────────

// CycleSelector addresses a cycle either by absolute date or by index.
// Exactly one field must be set.
type CycleSelector struct {
	Date  *time.Time `json:"date,omitempty"`
	Index *int       `json:"index,omitempty"`
}

// SkipRequest is the payload for skipping or unskipping a cycle.
type SkipRequest struct {
	ContractID string        `json:"contract_id"`
	Selector   CycleSelector `json:"selector"`
}

// ScheduleEditRequest schedules a line/price change on an upcoming cycle. The
// pending edit blocks contract status changes until committed or discarded.
type ScheduleEditRequest struct {
	ContractID string          `json:"contract_id"`
	Selector   CycleSelector   `json:"selector"`
	Payload    json.RawMessage `json:"payload"`
}

// AttemptOutcome is the billing collaborator's verdict for one attempt.
type AttemptOutcome string

const (
	AttemptSucceeded AttemptOutcome = "SUCCEEDED"
	AttemptFailed    AttemptOutcome = "FAILED"
)

// BillingAttemptRequest reports the outcome of an external billing attempt
// against a cycle.
type BillingAttemptRequest struct {
	ContractID string         `json:"contract_id"`
	Selector   CycleSelector  `json:"selector"`
	Outcome    AttemptOutcome `json:"outcome"`
	Reference  string         `json:"reference,omitempty"`
}

// BillingAttempt is the persisted record of one reported attempt.
type BillingAttempt struct {
	ID         uuid.UUID      `json:"id"`
	ContractID uuid.UUID      `json:"contract_id"`
	CycleIndex int            `json:"cycle_index"`
	Outcome    AttemptOutcome `json:"outcome"`
	Reference  string         `json:"reference,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}
