package payments

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	apierrors "github.com/musichub/server/internal/errors"
)

// IntentStatus is the lifecycle state of a PaymentIntent.
type IntentStatus string

const (
	IntentPending    IntentStatus = "pending"
	IntentProcessing IntentStatus = "processing"
	IntentSucceeded  IntentStatus = "succeeded"
	IntentFailed     IntentStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s IntentStatus) Terminal() bool {
	return s == IntentSucceeded || s == IntentFailed
}

// PaymentIntent is a request to charge an amount. Only Status changes
// after creation.
type PaymentIntent struct {
	ID        string          `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Status    IntentStatus    `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Card holds the card details the mock processor inspects. ExpiryYear is
// two digits.
type Card struct {
	Brand       string `json:"brand"`
	Last4       string `json:"last4" validate:"required,len=4,numeric"`
	ExpiryMonth int    `json:"expiryMonth" validate:"min=1,max=12"`
	ExpiryYear  int    `json:"expiryYear" validate:"min=0,max=99"`
}

// PaymentMethod is passed by value and never mutated.
type PaymentMethod struct {
	ID   string `json:"id"`
	Type string `json:"type" validate:"omitempty,eq=card"`
	Card Card   `json:"card"`
}

// PaymentError is the only error kind the payment flow surfaces.
type PaymentError struct {
	Code    apierrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
	cause   error
}

func (e *PaymentError) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Unwrap exposes the wrapped fault, if any.
func (e *PaymentError) Unwrap() error {
	return e.cause
}

// Messages shown to the purchaser for each code.
var messages = map[apierrors.ErrorCode]string{
	apierrors.ErrCodeInvalidAmount:        "Payment amount must be greater than 0",
	apierrors.ErrCodeCardExpired:          "Your card has expired. Please use a valid card.",
	apierrors.ErrCodeCardDeclined:         "Your card was declined. Please try a different card.",
	apierrors.ErrCodeInsufficientFunds:    "Insufficient funds. Please try a different card.",
	apierrors.ErrCodePaymentIntentInvalid: "This payment has already been processed",
	apierrors.ErrCodePaymentFailed:        "Payment processing failed. Please try again.",
}

// NewPaymentError builds an error with the standard message for code.
func NewPaymentError(code apierrors.ErrorCode) *PaymentError {
	msg, ok := messages[code]
	if !ok {
		code = apierrors.ErrCodePaymentFailed
		msg = messages[code]
	}
	return &PaymentError{Code: code, Message: msg}
}

// AsPaymentError returns err as a PaymentError, wrapping anything else as
// payment_failed. A nil err yields nil.
func AsPaymentError(err error) *PaymentError {
	if err == nil {
		return nil
	}
	var perr *PaymentError
	if errors.As(err, &perr) {
		return perr
	}
	wrapped := NewPaymentError(apierrors.ErrCodePaymentFailed)
	wrapped.cause = err
	return wrapped
}
