package payments

import (
	"github.com/shopspring/decimal"

	"github.com/musichub/server/internal/storage"
)

// TransactionStatus is the persisted purchase status.
type TransactionStatus string

const (
	TransactionCompleted TransactionStatus = "completed"
	TransactionPending   TransactionStatus = "pending"
	TransactionFailed    TransactionStatus = "failed"
)

// RefundStatus tracks refunds. Nothing in the server moves it past none.
type RefundStatus string

const (
	RefundNone      RefundStatus = "none"
	RefundPending   RefundStatus = "pending"
	RefundCompleted RefundStatus = "completed"
)

// Purchase types recorded in transaction metadata.
const (
	PurchasePremium  = "premium"
	PurchaseStandard = "standard"
)

// PaymentDetails is the card summary stored with a transaction.
type PaymentDetails struct {
	PaymentIntentID   string `json:"paymentIntentId" validate:"required"`
	PaymentMethodID   string `json:"paymentMethodId" validate:"required"`
	PaymentMethodType string `json:"paymentMethodType" validate:"required"`
	Last4             string `json:"last4" validate:"required,len=4"`
	CardBrand         string `json:"cardBrand"`
}

// TransactionMetadata denormalises song, buyer and device context.
type TransactionMetadata struct {
	SongTitle    string  `json:"songTitle" validate:"required"`
	SongArtist   string  `json:"songArtist" validate:"required"`
	ArtistID     string  `json:"artistId,omitempty"`
	UserEmail    string  `json:"userEmail" validate:"required,email"`
	UserName     string  `json:"userName"`
	PurchaseType string  `json:"purchaseType" validate:"oneof=premium standard"`
	Platform     string  `json:"platform" validate:"required"`
	DeviceInfo   string  `json:"deviceInfo"`
	IPAddress    *string `json:"ipAddress"`
}

// Transaction is the durable record of a completed purchase.
type Transaction struct {
	ID             string              `json:"id,omitempty"`
	UserID         string              `json:"userId" validate:"required"`
	SongID         string              `json:"songId" validate:"required"`
	Amount         decimal.Decimal     `json:"amount" validate:"gt=0"`
	Status         TransactionStatus   `json:"status" validate:"oneof=completed pending failed"`
	PaymentDetails PaymentDetails      `json:"paymentDetails"`
	Metadata       TransactionMetadata `json:"metadata"`
	CreatedAt      storage.Timestamp   `json:"createdAt"`
	RefundStatus   RefundStatus        `json:"refundStatus" validate:"oneof=none pending completed"`
	RefundReason   string              `json:"refundReason,omitempty"`
	RefundedAt     *storage.Timestamp  `json:"refundedAt,omitempty"`
}
