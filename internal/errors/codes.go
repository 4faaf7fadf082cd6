package errors

// ErrorCode represents a machine-readable error identifier for client error handling.
type ErrorCode string

// Payment errors surfaced by the purchase flow.
const (
	ErrCodeInvalidAmount        ErrorCode = "invalid_amount"
	ErrCodeCardExpired          ErrorCode = "card_expired"
	ErrCodeCardDeclined         ErrorCode = "card_declined"
	ErrCodeInsufficientFunds    ErrorCode = "insufficient_funds"
	ErrCodePaymentIntentInvalid ErrorCode = "payment_intent_invalid"
	ErrCodePaymentFailed        ErrorCode = "payment_failed"
)

// Validation Errors (Request input validation)
const (
	ErrCodeMissingField ErrorCode = "missing_field"
	ErrCodeInvalidField ErrorCode = "invalid_field"
)

// Resource/State Errors
const (
	ErrCodeResourceNotFound ErrorCode = "resource_not_found"
	ErrCodeSongNotFound     ErrorCode = "song_not_found"
)

// Access Errors
const (
	ErrCodeUnauthorized ErrorCode = "unauthorized"
	ErrCodeRateLimited  ErrorCode = "rate_limited"
)

// Internal/System Errors
const (
	ErrCodeInternalError ErrorCode = "internal_error"
	ErrCodeDatabaseError ErrorCode = "database_error"
	ErrCodeUnavailable   ErrorCode = "service_unavailable"
)

// IsRetryable returns whether an error code represents a transient failure.
// Card failures are never retryable with the same details: the client must
// submit a different payment method.
func (e ErrorCode) IsRetryable() bool {
	switch e {
	case ErrCodeDatabaseError,
		ErrCodeUnavailable,
		ErrCodeRateLimited:
		return true
	default:
		return false
	}
}

// HTTPStatus returns the appropriate HTTP status code for this error.
func (e ErrorCode) HTTPStatus() int {
	switch e {
	// 400 Bad Request - Client validation errors
	case ErrCodeMissingField,
		ErrCodeInvalidField,
		ErrCodeInvalidAmount,
		ErrCodePaymentIntentInvalid:
		return 400

	// 401 Unauthorized
	case ErrCodeUnauthorized:
		return 401

	// 402 Payment Required - card rejected by the processor
	case ErrCodeCardExpired,
		ErrCodeCardDeclined,
		ErrCodeInsufficientFunds:
		return 402

	// 404 Not Found
	case ErrCodeResourceNotFound,
		ErrCodeSongNotFound:
		return 404

	case ErrCodeRateLimited:
		return 429

	case ErrCodeUnavailable:
		return 503

	// 500 Internal Server Error - payment_failed, database and internal errors
	default:
		return 500
	}
}
