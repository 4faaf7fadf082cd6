package responders

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusCreated, map[string]string{"url": "https://cdn.musichub.test/a?b=1&c=2"})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "&c=2") {
		t.Fatalf("HTML escaping should be off: %s", rec.Body.String())
	}
}

func TestList_NilIsEmptyArray(t *testing.T) {
	rec := httptest.NewRecorder()
	var songs []string
	List(rec, "songs", songs)

	if got := strings.TrimSpace(rec.Body.String()); got != `{"songs":[]}` {
		t.Fatalf("unexpected body %s", got)
	}
}

func TestNoContent(t *testing.T) {
	rec := httptest.NewRecorder()
	NoContent(rec)
	if rec.Code != http.StatusNoContent || rec.Body.Len() != 0 {
		t.Fatalf("expected empty 204, got %d %q", rec.Code, rec.Body.String())
	}
}
