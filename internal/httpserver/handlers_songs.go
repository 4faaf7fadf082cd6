package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/musichub/server/internal/catalog"
	"github.com/musichub/server/pkg/responders"
)

func (h *handlers) listSongs(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit")
	if !ok {
		badRequest(w, "limit must be a non-negative integer")
		return
	}
	songs, err := h.catalog.ListSongs(r.Context(), catalog.ListOptions{
		Genre:    r.URL.Query().Get("genre"),
		ArtistID: r.URL.Query().Get("artistId"),
		Limit:    limit,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	responders.List(w, "songs", songs)
}

func (h *handlers) getSong(w http.ResponseWriter, r *http.Request) {
	song, err := h.catalog.GetSong(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	responders.JSON(w, http.StatusOK, song)
}

// userSongs lists the songs the user has bought.
func (h *handlers) userSongs(w http.ResponseWriter, r *http.Request) {
	songs, err := h.catalog.SongsForUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	responders.List(w, "songs", songs)
}

func (h *handlers) createSong(w http.ResponseWriter, r *http.Request) {
	var in catalog.SongInput
	if err := decodeJSON(w, r, &in); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	id, err := h.catalog.CreateSong(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	responders.JSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *handlers) updateSong(w http.ResponseWriter, r *http.Request) {
	var u catalog.SongUpdate
	if err := decodeJSON(w, r, &u); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.catalog.UpdateSong(r.Context(), id, u); err != nil {
		writeServiceError(w, r, err)
		return
	}
	song, err := h.catalog.GetSong(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	responders.JSON(w, http.StatusOK, song)
}

func (h *handlers) deleteSong(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteSong(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	responders.NoContent(w)
}
