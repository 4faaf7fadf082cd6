package payments

import (
	"context"
	"time"

	"github.com/musichub/server/internal/logger"
	"github.com/musichub/server/internal/metrics"
)

// MetricsObserver records purchase outcomes as Prometheus metrics and
// structured log events on the request logger.
type MetricsObserver struct {
	metrics  *metrics.Metrics
	currency string
}

// NewMetricsObserver creates an observer. m may be nil to log only.
func NewMetricsObserver(m *metrics.Metrics, currency string) *MetricsObserver {
	return &MetricsObserver{metrics: m, currency: currency}
}

// PurchaseCompleted implements Observer.
func (o *MetricsObserver) PurchaseCompleted(ctx context.Context, tx Transaction, duration time.Duration) {
	amount, _ := tx.Amount.Float64()
	if o.metrics != nil {
		o.metrics.ObservePurchase(tx.Metadata.PurchaseType, tx.Metadata.Platform, o.currency, amount, duration)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("transaction_id", tx.ID).
		Str("payment_intent_id", tx.PaymentDetails.PaymentIntentID).
		Str("song_id", tx.SongID).
		Str("user_id", tx.UserID).
		Str("user_email", logger.RedactEmail(tx.Metadata.UserEmail)).
		Str("card", logger.MaskCard(tx.PaymentDetails.Last4)).
		Str("amount", tx.Amount.StringFixed(2)).
		Str("platform", tx.Metadata.Platform).
		Dur("duration", duration).
		Msg("purchase.completed")
}

// PurchaseFailed implements Observer.
func (o *MetricsObserver) PurchaseFailed(ctx context.Context, song Song, buyer Buyer, err *PaymentError, duration time.Duration) {
	if o.metrics != nil {
		o.metrics.ObservePurchaseFailure(string(err.Code), duration)
	}

	log := logger.FromContext(ctx)
	evt := log.Warn()
	if err.Unwrap() != nil {
		evt = log.Error().Err(err.Unwrap())
	}
	evt.Str("code", string(err.Code)).
		Str("song_id", song.ID).
		Str("user_id", buyer.ID).
		Dur("duration", duration).
		Msg("purchase.failed")
}
