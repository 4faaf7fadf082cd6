package musichub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/musichub/server/internal/catalog"
	"github.com/musichub/server/internal/config"
	"github.com/musichub/server/internal/storage"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Storage.Backend = config.BackendMemory
	cfg.Storage.Collections = config.CollectionsConfig{
		Transactions:      "sales",
		Songs:             "tracks",
		Users:             "accounts",
		ListeningSessions: "plays",
	}
	return cfg
}

func TestNewApp_RequiresConfig(t *testing.T) {
	if _, err := NewApp(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestNewApp_ServesPurchases(t *testing.T) {
	app, err := NewApp(testConfig(),
		WithRegistry(prometheus.NewRegistry()),
		WithLogger(zerolog.Nop()),
	)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	defer app.Close()

	ctx := context.Background()
	songID, err := app.Catalog.CreateSong(ctx, catalog.SongInput{
		Title:    "Tidewater",
		Artist:   "Harbor Lights",
		ArtistID: "artist-9",
		CoverURL: "https://cdn.musichub.test/t.jpg",
		AudioURL: "https://cdn.musichub.test/t.mp3",
		Price:    decimal.RequireFromString("0.99"),
	})
	if err != nil {
		t.Fatalf("CreateSong: %v", err)
	}

	body := `{"songId":"` + songID + `","user":{"id":"u1","email":"u1@musichub.test","name":"U"},` +
		`"paymentMethod":{"type":"card","card":{"brand":"visa","last4":"4242","expiryMonth":1,"expiryYear":99}}}`
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/purchases", strings.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	recs, err := app.Store.Query(ctx, "sales", storage.Query{})
	if err != nil || len(recs) != 1 {
		t.Fatalf("expected one transaction in the configured collection, got %d (%v)", len(recs), err)
	}
}

func TestNewApp_ExternalRouter(t *testing.T) {
	router := chi.NewRouter()
	app, err := NewApp(testConfig(),
		WithRouter(router),
		WithStore(storage.NewMemoryStore()),
		WithRegistry(prometheus.NewRegistry()),
		WithLogger(zerolog.Nop()),
	)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected health on the external router, got %d", rec.Code)
	}
	if err := app.ListenAndServe(); err == nil {
		t.Fatal("ListenAndServe should refuse when routes live on an external router")
	}
}
