package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/vestique/internal/tracker"
)

// CaptureHandler resolves captured photos against the wardrobe.
type CaptureHandler struct {
	Tracker *tracker.Tracker
	Logger  *slog.Logger
	now     func() time.Time
}

// Capture handles POST /api/capture/{collection}. Every outcome, ERROR
// included, is reported in the same body shape; ERROR uses status 422.
func (h *CaptureHandler) Capture(w http.ResponseWriter, r *http.Request) {
	collection, ok := pathCollection(w, r)
	if !ok {
		return
	}
	if !collection.Wardrobe() {
		jsonError(w, http.StatusBadRequest, "captures are only accepted for items and outfits")
		return
	}
	upload, ok := readImage(w, r)
	if !ok {
		return
	}

	res, err := h.Tracker.Capture(r.Context(), upload.Image, collection)
	if err != nil {
		writeTrackerError(w, h.Logger, err, "failed to capture")
		return
	}

	status := http.StatusOK
	if res.State == tracker.StateError {
		status = http.StatusUnprocessableEntity
	}
	jsonResponse(w, status, toResultResponse(res, h.now()))
}
