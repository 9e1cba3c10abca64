package contract

import "fmt"

// ErrorCode is the closed set of user-facing error codes. Handlers must not
// invent codes outside this set.
type ErrorCode string

const (
	CodeInvalid                   ErrorCode = "INVALID"
	CodeContractFailed            ErrorCode = "CONTRACT_FAILED"
	CodeContractTerminated        ErrorCode = "CONTRACT_TERMINATED"
	CodeHasFutureEdits            ErrorCode = "HAS_FUTURE_EDITS"
	CodeContractNotFound          ErrorCode = "SUBSCRIPTION_CONTRACT_DOES_NOT_EXIST"
	CodePaymentInstrumentNotFound ErrorCode = "PAYMENT_INSTRUMENT_DOES_NOT_EXIST"
	CodeConcurrentModification    ErrorCode = "CONCURRENT_MODIFICATION"
)

// UserError is a displayable, recoverable domain failure. It travels through
// the service layer as an error and is rendered into the user_errors list at
// the HTTP boundary, never as a transport-level failure.
type UserError struct {
	Code    ErrorCode `json:"code"`
	Field   []string  `json:"field,omitempty"`
	Message string    `json:"message"`
}

func (e *UserError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewUserError builds a UserError with an optional field path.
func NewUserError(code ErrorCode, message string, field ...string) *UserError {
	return &UserError{Code: code, Field: field, Message: message}
}

// Errf builds a UserError with a formatted message.
func Errf(code ErrorCode, format string, args ...interface{}) *UserError {
	return &UserError{Code: code, Message: fmt.Sprintf(format, args...)}
}
