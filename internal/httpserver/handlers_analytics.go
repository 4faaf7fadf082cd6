package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/musichub/server/internal/analytics"
	"github.com/musichub/server/internal/device"
	"github.com/musichub/server/internal/storage"
	"github.com/musichub/server/pkg/responders"
)

type sessionRequest struct {
	UserID    string             `json:"userId"`
	SongID    string             `json:"songId"`
	StartTime storage.Timestamp  `json:"startTime"`
	EndTime   *storage.Timestamp `json:"endTime,omitempty"`
	Duration  float64            `json:"duration"`
	Completed bool               `json:"completed"`
}

// trackSession records a playback. Platform and device come from the
// request, not the body.
func (h *handlers) trackSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	info := device.FromContext(r.Context())
	id, err := h.analytics.TrackSession(r.Context(), analytics.ListeningSession{
		UserID:     req.UserID,
		SongID:     req.SongID,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		Duration:   req.Duration,
		Completed:  req.Completed,
		Platform:   info.Platform,
		DeviceInfo: info.UserAgent,
	})
	if err != nil && id == "" {
		writeServiceError(w, r, err)
		return
	}
	if err != nil {
		// Session stored; only the song counters lag.
		log := h.logger.With().Str("session_id", id).Logger()
		log.Warn().Err(err).Msg("listening.session_counters_stale")
	}
	responders.JSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *handlers) dashboardMetrics(w http.ResponseWriter, r *http.Request) {
	opts := analytics.MetricsOptions{ArtistID: r.URL.Query().Get("artistId")}
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, ok := parseSince(raw)
		if !ok {
			badRequest(w, "since must be RFC 3339 or YYYY-MM-DD")
			return
		}
		opts.Since = since
	}
	m, err := h.analytics.Metrics(r.Context(), opts)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	responders.JSON(w, http.StatusOK, m)
}

func (h *handlers) listeningMetrics(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.catalog.GetSong(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	m, err := h.analytics.ListeningMetrics(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	responders.JSON(w, http.StatusOK, m)
}

func (h *handlers) featuredArtists(w http.ResponseWriter, r *http.Request) {
	artists, err := h.analytics.FeaturedArtists(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	responders.List(w, "artists", artists)
}

func parseSince(raw string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, true
	}
	return time.Time{}, false
}
