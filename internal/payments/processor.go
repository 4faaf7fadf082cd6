package payments

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	apierrors "github.com/musichub/server/internal/errors"
)

// DefaultProcessingDelay simulates network latency to the card network.
const DefaultProcessingDelay = 1500 * time.Millisecond

// ProcessorConfig configures MockProcessor.
type ProcessorConfig struct {
	ProcessingDelay time.Duration
	Currency        string
	TestCards       TestCards
}

// MockProcessor authorizes cards against scripted test numbers. It holds
// no per-intent state; every call works on the intent it is given.
type MockProcessor struct {
	cfg   ProcessorConfig
	now   func() time.Time
	sleep func(time.Duration)
}

// ProcessorOption customises a MockProcessor.
type ProcessorOption func(*MockProcessor)

// WithProcessorClock overrides the clock used for expiry checks and
// intent timestamps.
func WithProcessorClock(now func() time.Time) ProcessorOption {
	return func(p *MockProcessor) { p.now = now }
}

// WithSleeper overrides how the processing delay is waited out.
func WithSleeper(sleep func(time.Duration)) ProcessorOption {
	return func(p *MockProcessor) { p.sleep = sleep }
}

// NewMockProcessor creates a processor. Empty config fields take defaults.
func NewMockProcessor(cfg ProcessorConfig, opts ...ProcessorOption) *MockProcessor {
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if cfg.TestCards == (TestCards{}) {
		cfg.TestCards = DefaultTestCards()
	}
	if cfg.ProcessingDelay < 0 {
		cfg.ProcessingDelay = 0
	}
	p := &MockProcessor{cfg: cfg, now: time.Now, sleep: time.Sleep}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Currency returns the currency intents are created in.
func (p *MockProcessor) Currency() string {
	return p.cfg.Currency
}

// CreateIntent creates a pending intent for amount.
func (p *MockProcessor) CreateIntent(_ context.Context, amount decimal.Decimal) (*PaymentIntent, error) {
	if !amount.IsPositive() {
		return nil, NewPaymentError(apierrors.ErrCodeInvalidAmount)
	}
	id, err := newIntentID()
	if err != nil {
		return nil, AsPaymentError(err)
	}
	return &PaymentIntent{
		ID:        id,
		Amount:    amount,
		Currency:  p.cfg.Currency,
		Status:    IntentPending,
		CreatedAt: p.now(),
	}, nil
}

// Authorize waits out the processing delay, then settles the intent.
//
// The wait ignores ctx: once authorization starts it runs to completion.
// The card is validated before the double-charge guard, so a bad card on
// an already-settled intent reports the card error. A card failure moves
// a non-terminal intent to failed; a settled intent is never changed.
func (p *MockProcessor) Authorize(_ context.Context, intent *PaymentIntent, method PaymentMethod) (*PaymentIntent, error) {
	if intent == nil {
		return nil, NewPaymentError(apierrors.ErrCodePaymentFailed)
	}

	prior := intent.Status
	if prior == IntentPending {
		intent.Status = IntentProcessing
	}

	if p.cfg.ProcessingDelay > 0 {
		p.sleep(p.cfg.ProcessingDelay)
	}

	if perr := p.cfg.TestCards.ValidateCard(method.Card, p.now()); perr != nil {
		if !prior.Terminal() {
			intent.Status = IntentFailed
		}
		return intent, perr
	}

	if prior.Terminal() {
		return intent, NewPaymentError(apierrors.ErrCodePaymentIntentInvalid)
	}

	intent.Status = IntentSucceeded
	return intent, nil
}

const intentIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// newIntentID returns "pi_" followed by 24 random base36 characters.
func newIntentID() (string, error) {
	buf := make([]byte, 24)
	max := big.NewInt(int64(len(intentIDAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = intentIDAlphabet[n.Int64()]
	}
	return "pi_" + string(buf), nil
}
