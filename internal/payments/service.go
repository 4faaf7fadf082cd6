package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/musichub/server/internal/device"
	apierrors "github.com/musichub/server/internal/errors"
	"github.com/musichub/server/internal/schema"
	"github.com/musichub/server/internal/storage"
)

// Processor creates and authorizes payment intents.
type Processor interface {
	CreateIntent(ctx context.Context, amount decimal.Decimal) (*PaymentIntent, error)
	Authorize(ctx context.Context, intent *PaymentIntent, method PaymentMethod) (*PaymentIntent, error)
}

// TransactionWriter is the slice of the record store the service needs.
type TransactionWriter interface {
	Insert(ctx context.Context, collection string, doc storage.Document) (string, error)
}

// Song is what the purchase flow needs to know about the item sold.
type Song struct {
	ID        string
	Title     string
	Artist    string
	ArtistID  string
	Price     decimal.Decimal
	IsPremium bool
}

// Buyer identifies the purchaser.
type Buyer struct {
	ID    string
	Email string
	Name  string
}

// PurchaseResult identifies the stored transaction and the intent behind it.
type PurchaseResult struct {
	TransactionID   string `json:"transactionId"`
	PaymentIntentID string `json:"paymentIntentId"`
}

// Observer is told about every purchase outcome. Implementations must not
// block.
type Observer interface {
	PurchaseCompleted(ctx context.Context, tx Transaction, duration time.Duration)
	PurchaseFailed(ctx context.Context, song Song, buyer Buyer, err *PaymentError, duration time.Duration)
}

// Service runs the purchase flow: intent, authorization, then exactly one
// transaction record on success and none on failure.
type Service struct {
	processor  Processor
	store      TransactionWriter
	collection string
	validate   *validator.Validate
	observer   Observer
	now        func() time.Time
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithObserver attaches an outcome observer.
func WithObserver(o Observer) ServiceOption {
	return func(s *Service) { s.observer = o }
}

// WithClock overrides the clock used for createdAt.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithCollection overrides the transactions collection name.
func WithCollection(name string) ServiceOption {
	return func(s *Service) {
		if name != "" {
			s.collection = name
		}
	}
}

// NewService wires a purchase service.
func NewService(processor Processor, store TransactionWriter, opts ...ServiceOption) *Service {
	s := &Service{
		processor:  processor,
		store:      store,
		collection: "transactions",
		validate:   schema.NewValidator(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessPayment charges buyer for song with method. Every failure is a
// *PaymentError; faults without a code surface as payment_failed. Two
// calls with the same inputs create two transactions.
func (s *Service) ProcessPayment(ctx context.Context, song Song, buyer Buyer, method PaymentMethod) (PurchaseResult, error) {
	start := time.Now()

	result, tx, perr := s.process(ctx, song, buyer, method)
	if perr != nil {
		if s.observer != nil {
			s.observer.PurchaseFailed(ctx, song, buyer, perr, time.Since(start))
		}
		return PurchaseResult{}, perr
	}

	if s.observer != nil {
		s.observer.PurchaseCompleted(ctx, tx, time.Since(start))
	}
	return result, nil
}

func (s *Service) process(ctx context.Context, song Song, buyer Buyer, method PaymentMethod) (PurchaseResult, Transaction, *PaymentError) {
	intent, err := s.processor.CreateIntent(ctx, song.Price)
	if err != nil {
		return PurchaseResult{}, Transaction{}, AsPaymentError(err)
	}

	intent, err = s.processor.Authorize(ctx, intent, method)
	if err != nil {
		return PurchaseResult{}, Transaction{}, AsPaymentError(err)
	}
	if intent.Status != IntentSucceeded {
		return PurchaseResult{}, Transaction{}, NewPaymentError(apierrors.ErrCodePaymentFailed)
	}

	tx := s.buildTransaction(ctx, song, buyer, method, intent)
	if err := s.validate.Struct(tx); err != nil {
		return PurchaseResult{}, Transaction{}, AsPaymentError(fmt.Errorf("validate transaction: %w", err))
	}

	doc, err := storage.Encode(tx)
	if err != nil {
		return PurchaseResult{}, Transaction{}, AsPaymentError(err)
	}
	id, err := s.store.Insert(ctx, s.collection, doc)
	if err != nil {
		return PurchaseResult{}, Transaction{}, AsPaymentError(fmt.Errorf("store transaction: %w", err))
	}
	tx.ID = id

	return PurchaseResult{TransactionID: id, PaymentIntentID: intent.ID}, tx, nil
}

func (s *Service) buildTransaction(ctx context.Context, song Song, buyer Buyer, method PaymentMethod, intent *PaymentIntent) Transaction {
	info := device.FromContext(ctx)

	methodID := method.ID
	if methodID == "" {
		methodID = "pm_" + uuid.NewString()
	}
	methodType := method.Type
	if methodType == "" {
		methodType = "card"
	}
	purchaseType := PurchaseStandard
	if song.IsPremium {
		purchaseType = PurchasePremium
	}
	var ip *string
	if info.IPAddress != "" {
		addr := info.IPAddress
		ip = &addr
	}

	return Transaction{
		UserID: buyer.ID,
		SongID: song.ID,
		Amount: intent.Amount,
		Status: TransactionCompleted,
		PaymentDetails: PaymentDetails{
			PaymentIntentID:   intent.ID,
			PaymentMethodID:   methodID,
			PaymentMethodType: methodType,
			Last4:             method.Card.Last4,
			CardBrand:         method.Card.Brand,
		},
		Metadata: TransactionMetadata{
			SongTitle:    song.Title,
			SongArtist:   song.Artist,
			ArtistID:     song.ArtistID,
			UserEmail:    buyer.Email,
			UserName:     buyer.Name,
			PurchaseType: purchaseType,
			Platform:     info.Platform,
			DeviceInfo:   info.UserAgent,
			IPAddress:    ip,
		},
		CreatedAt:    storage.NewTimestamp(s.now()),
		RefundStatus: RefundNone,
	}
}
