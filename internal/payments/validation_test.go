package payments

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/musichub/server/internal/errors"
)

var june2025 = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

func TestValidateCard(t *testing.T) {
	tests := []struct {
		name string
		card Card
		want apierrors.ErrorCode // empty means valid
	}{
		{"valid future card", Card{Last4: "4242", ExpiryMonth: 12, ExpiryYear: 30}, ""},
		{"expires this month", Card{Last4: "4242", ExpiryMonth: 6, ExpiryYear: 25}, ""},
		{"expired last month", Card{Last4: "4242", ExpiryMonth: 5, ExpiryYear: 25}, apierrors.ErrCodeCardExpired},
		{"expired last year", Card{Last4: "4242", ExpiryMonth: 12, ExpiryYear: 24}, apierrors.ErrCodeCardExpired},
		{"scripted expired number", Card{Last4: "0069", ExpiryMonth: 12, ExpiryYear: 30}, apierrors.ErrCodeCardExpired},
		{"scripted decline", Card{Last4: "0002", ExpiryMonth: 12, ExpiryYear: 30}, apierrors.ErrCodeCardDeclined},
		{"scripted insufficient funds", Card{Last4: "9995", ExpiryMonth: 12, ExpiryYear: 30}, apierrors.ErrCodeInsufficientFunds},
		{"expiry checked before number", Card{Last4: "0002", ExpiryMonth: 1, ExpiryYear: 20}, apierrors.ErrCodeCardExpired},
		{"unknown number succeeds", Card{Last4: "1111", ExpiryMonth: 1, ExpiryYear: 26}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perr := ValidateCard(tt.card, june2025)
			if tt.want == "" {
				assert.Nil(t, perr)
				return
			}
			require.NotNil(t, perr)
			assert.Equal(t, tt.want, perr.Code)
			assert.Equal(t, messages[tt.want], perr.Message)
		})
	}
}

func TestValidateCard_Deterministic(t *testing.T) {
	card := Card{Last4: "0002", ExpiryMonth: 12, ExpiryYear: 30}
	first := ValidateCard(card, june2025)
	second := ValidateCard(card, june2025)
	assert.Equal(t, first, second)
}

func TestValidateCard_CustomTestCards(t *testing.T) {
	cards := TestCards{
		Success:      "4444444444444242",
		Expired:      "4444444444441234",
		Declined:     "4444444444445678",
		Insufficient: "4444444444449999",
	}

	perr := cards.ValidateCard(Card{Last4: "5678", ExpiryMonth: 1, ExpiryYear: 99}, june2025)
	require.NotNil(t, perr)
	assert.Equal(t, apierrors.ErrCodeCardDeclined, perr.Code)

	assert.Nil(t, cards.ValidateCard(Card{Last4: "0002", ExpiryMonth: 1, ExpiryYear: 99}, june2025))
}

func TestReconstructNumber(t *testing.T) {
	assert.Equal(t, "4444444444440069", reconstructNumber("0069"))
	assert.Equal(t, "4444444444444242", reconstructNumber("4242"))
	assert.Equal(t, "4444444444444444", reconstructNumber(""))
}

func TestAsPaymentError(t *testing.T) {
	assert.Nil(t, AsPaymentError(nil))

	declined := NewPaymentError(apierrors.ErrCodeCardDeclined)
	assert.Same(t, declined, AsPaymentError(declined))

	wrapped := AsPaymentError(assert.AnError)
	assert.Equal(t, apierrors.ErrCodePaymentFailed, wrapped.Code)
	assert.Equal(t, "Payment processing failed. Please try again.", wrapped.Message)
	assert.ErrorIs(t, wrapped, assert.AnError)

	unknown := NewPaymentError(apierrors.ErrorCode("mystery"))
	assert.Equal(t, apierrors.ErrCodePaymentFailed, unknown.Code)
}
