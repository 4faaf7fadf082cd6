package httpserver

import (
	"net/http"

	"github.com/musichub/server/internal/catalog"
	apierrors "github.com/musichub/server/internal/errors"
	"github.com/musichub/server/internal/payments"
	"github.com/musichub/server/internal/schema"
	"github.com/musichub/server/pkg/responders"
)

type purchaseBuyer struct {
	ID    string `json:"id" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name"`
}

type purchaseRequest struct {
	SongID        string                 `json:"songId" validate:"required"`
	User          purchaseBuyer          `json:"user"`
	PaymentMethod payments.PaymentMethod `json:"paymentMethod"`
}

// purchase charges the buyer the catalog price of the song. The client
// never supplies the amount, and a malformed buyer or card is rejected
// before the processor sees it.
func (h *handlers) purchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		apierrors.WriteFieldErrors(w, "Invalid purchase request", schema.FieldErrors(err))
		return
	}

	song, err := h.catalog.GetSong(r.Context(), req.SongID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	result, err := h.payments.ProcessPayment(r.Context(), saleItem(song), payments.Buyer{
		ID:    req.User.ID,
		Email: req.User.Email,
		Name:  req.User.Name,
	}, req.PaymentMethod)
	if err != nil {
		writePaymentError(w, payments.AsPaymentError(err))
		return
	}
	responders.JSON(w, http.StatusCreated, result)
}

// verifyPurchase reports whether the user holds a completed purchase of
// the song. The answer is advisory; it does not reserve anything.
func (h *handlers) verifyPurchase(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	songID := r.URL.Query().Get("songId")
	if userID == "" || songID == "" {
		badRequest(w, "userId and songId are required")
		return
	}
	owned, err := h.catalog.HasPurchased(r.Context(), userID, songID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	responders.JSON(w, http.StatusOK, map[string]bool{"hasPurchased": owned})
}

func saleItem(song catalog.Song) payments.Song {
	return payments.Song{
		ID:        song.ID,
		Title:     song.Title,
		Artist:    song.Artist,
		ArtistID:  song.ArtistID,
		Price:     song.Price,
		IsPremium: song.IsPremium,
	}
}
