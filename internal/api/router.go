// Package api exposes the wardrobe tracker over JSON HTTP.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/vestique/internal/tracker"
)

// ClaimSettings configures listing claim tokens.
type ClaimSettings struct {
	Secret string
	TTL    time.Duration
}

// NewRouter creates the API router with all endpoints registered. The
// returned handler includes request-id and access-log middleware.
func NewRouter(t *tracker.Tracker, claims ClaimSettings, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	captureHandler := &CaptureHandler{Tracker: t, Logger: logger, now: time.Now}
	itemsHandler := &ItemsHandler{Tracker: t, Logger: logger, now: time.Now}
	listingsHandler := &ListingsHandler{Tracker: t, Claims: claims, Logger: logger, now: time.Now}

	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Capture: identity resolution and wear tracking.
	mux.HandleFunc("POST /api/capture/{collection}", captureHandler.Capture)

	// Listings: marketplace hand-off.
	mux.HandleFunc("POST /api/listings/migrate", listingsHandler.Migrate)
	mux.HandleFunc("POST /api/listings/claim", listingsHandler.Claim)
	mux.HandleFunc("POST /api/listings/{id}/claim-token", listingsHandler.IssueToken)

	// Catalog entries of any collection.
	mux.HandleFunc("GET /api/{collection}", itemsHandler.List)
	mux.HandleFunc("POST /api/{collection}", itemsHandler.Create)
	mux.HandleFunc("GET /api/{collection}/{id}", itemsHandler.Get)
	mux.HandleFunc("PUT /api/{collection}/{id}", itemsHandler.Update)
	mux.HandleFunc("DELETE /api/{collection}/{id}", itemsHandler.Delete)
	mux.HandleFunc("GET /api/{collection}/{id}/image", itemsHandler.GetImage)
	mux.HandleFunc("POST /api/{collection}/{id}/views", itemsHandler.AddView)
	mux.HandleFunc("POST /api/{collection}/{id}/annotate", itemsHandler.Annotate)

	return RequestIDMiddleware(LoggingMiddleware(logger, mux))
}
