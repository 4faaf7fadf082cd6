package payments

import (
	"strings"
	"time"

	apierrors "github.com/musichub/server/internal/errors"
)

// TestCards are the 16 digit numbers that script the mock processor's
// outcomes. Any other number succeeds.
type TestCards struct {
	Success      string
	Expired      string
	Declined     string
	Insufficient string
}

// DefaultTestCards returns the shipped scripted numbers. They are written
// in the padded form the validator reconstructs from last4.
func DefaultTestCards() TestCards {
	return TestCards{
		Success:      "4444444444444242",
		Expired:      "4444444444440069",
		Declined:     "4444444444440002",
		Insufficient: "4444444444449995",
	}
}

// ValidateCard checks card against DefaultTestCards at now.
func ValidateCard(card Card, now time.Time) *PaymentError {
	return DefaultTestCards().ValidateCard(card, now)
}

// ValidateCard applies the expiry rule then the scripted-number rule.
// First match wins; nil means the card is acceptable.
func (tc TestCards) ValidateCard(card Card, now time.Time) *PaymentError {
	year := now.Year() % 100
	month := int(now.Month())

	if card.ExpiryYear < year || (card.ExpiryYear == year && card.ExpiryMonth < month) {
		return NewPaymentError(apierrors.ErrCodeCardExpired)
	}

	switch reconstructNumber(card.Last4) {
	case tc.Expired:
		return NewPaymentError(apierrors.ErrCodeCardExpired)
	case tc.Declined:
		return NewPaymentError(apierrors.ErrCodeCardDeclined)
	case tc.Insufficient:
		return NewPaymentError(apierrors.ErrCodeInsufficientFunds)
	}
	return nil
}

// reconstructNumber left-pads last4 with '4' to 16 digits.
func reconstructNumber(last4 string) string {
	if len(last4) >= 16 {
		return last4
	}
	return strings.Repeat("4", 16-len(last4)) + last4
}
