// Package responders writes JSON success responses. Error bodies are
// written by internal/errors.
package responders

import (
	"encoding/json"
	"net/http"
)

// JSON writes payload as application/json with status. A nil payload
// writes headers only.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

// List writes {key: items} with 200. A nil slice is rendered as [] so
// clients never see null for an empty collection.
func List[T any](w http.ResponseWriter, key string, items []T) {
	if items == nil {
		items = []T{}
	}
	JSON(w, http.StatusOK, map[string][]T{key: items})
}

// NoContent writes 204.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
