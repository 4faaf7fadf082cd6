package httpserver

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/musichub/server/internal/analytics"
	"github.com/musichub/server/internal/catalog"
	"github.com/musichub/server/internal/circuitbreaker"
	apierrors "github.com/musichub/server/internal/errors"
	"github.com/musichub/server/internal/logger"
	"github.com/musichub/server/internal/payments"
	"github.com/musichub/server/internal/schema"
	"github.com/musichub/server/internal/storage"
)

var errTrailingData = errors.New("unexpected data after JSON body")

// badRequest reports a malformed body or parameter.
func badRequest(w http.ResponseWriter, message string) {
	apierrors.WriteSimpleError(w, apierrors.ErrCodeInvalidField, message)
}

// writePaymentError renders a payment failure with its own code.
func writePaymentError(w http.ResponseWriter, perr *payments.PaymentError) {
	apierrors.WriteSimpleError(w, perr.Code, perr.Message)
}

// writeServiceError maps service errors onto API error codes. Anything
// unrecognised is logged and reported as internal_error.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *catalog.ValidationError
	var fieldErrs validator.ValidationErrors
	switch {
	case errors.Is(err, catalog.ErrSongNotFound):
		apierrors.WriteSimpleError(w, apierrors.ErrCodeSongNotFound, "Song not found")
	case errors.As(err, &verr):
		apierrors.WriteFieldErrors(w, "Invalid song", verr.Fields)
	case errors.Is(err, analytics.ErrInvalidSession) && errors.As(err, &fieldErrs):
		apierrors.WriteFieldErrors(w, "Invalid listening session", schema.FieldErrors(err))
	case errors.Is(err, analytics.ErrInvalidSession):
		apierrors.WriteSimpleError(w, apierrors.ErrCodeInvalidField, "Invalid listening session")
	case errors.Is(err, storage.ErrInvalidQuery):
		apierrors.WriteSimpleError(w, apierrors.ErrCodeInvalidField, "Invalid query")
	case circuitbreaker.IsOpen(err):
		apierrors.WriteSimpleError(w, apierrors.ErrCodeUnavailable, "Storage temporarily unavailable")
	default:
		log := logger.FromContext(r.Context())
		log.Error().Err(err).
			Str("path", r.URL.Path).
			Msg("http.request_failed")
		apierrors.WriteSimpleError(w, apierrors.ErrCodeInternalError, "Internal server error")
	}
}
