package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/erazemk/vestique/internal/annotate"
	"github.com/erazemk/vestique/internal/features"
	"github.com/erazemk/vestique/internal/imaging"
	"github.com/erazemk/vestique/internal/model"
	"github.com/erazemk/vestique/internal/tracker"
)

// ItemsHandler handles catalog CRUD endpoints for every collection.
type ItemsHandler struct {
	Tracker *tracker.Tracker
	Logger  *slog.Logger
	now     func() time.Time
}

type updateItemRequest struct {
	LastWorn    *time.Time `json:"last_worn"`
	WearCount   *int       `json:"wear_count"`
	ResetPeriod *int       `json:"reset_period"`
	Name        *string    `json:"name"`
	Type        *string    `json:"type"`
}

// List handles GET /api/{collection}.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	collection, ok := pathCollection(w, r)
	if !ok {
		return
	}
	items, err := h.Tracker.List(collection)
	if err != nil {
		writeTrackerError(w, h.Logger, err, "failed to list items")
		return
	}

	now := h.now()
	resp := make([]itemResponse, 0, len(items))
	for _, it := range items {
		resp = append(resp, toItemResponse(it, now))
	}
	jsonResponse(w, http.StatusOK, resp)
}

// Create handles POST /api/{collection}. The body is multipart with an
// image part and type, name and reset_period fields.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	collection, ok := pathCollection(w, r)
	if !ok {
		return
	}
	upload, ok := readImage(w, r)
	if !ok {
		return
	}

	resetPeriod := 0
	if v := strings.TrimSpace(r.FormValue("reset_period")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			jsonError(w, http.StatusBadRequest, "reset_period must be a positive number of days")
			return
		}
		resetPeriod = n
	}

	res, err := h.Tracker.Create(r.Context(), tracker.CreateRequest{
		Collection:  collection,
		Image:       upload.Image,
		Blob:        upload.Data,
		Type:        r.FormValue("type"),
		Name:        r.FormValue("name"),
		ResetPeriod: resetPeriod,
	})
	if err != nil {
		writeTrackerError(w, h.Logger, err, "failed to create item")
		return
	}
	jsonResponse(w, http.StatusCreated, toResultResponse(res, h.now()))
}

// Get handles GET /api/{collection}/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	collection, id, ok := pathItem(w, r)
	if !ok {
		return
	}
	it, err := h.Tracker.Get(collection, id)
	if err != nil {
		writeTrackerError(w, h.Logger, err, "failed to get item")
		return
	}
	jsonResponse(w, http.StatusOK, toItemResponse(it, h.now()))
}

// Update handles PUT /api/{collection}/{id}. Fields left out of the body
// are unchanged.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	collection, id, ok := pathItem(w, r)
	if !ok {
		return
	}

	var req updateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	it, err := h.Tracker.Update(r.Context(), collection, id, tracker.Edit{
		LastWorn:    req.LastWorn,
		WearCount:   req.WearCount,
		ResetPeriod: req.ResetPeriod,
		Name:        req.Name,
		Type:        req.Type,
	})
	if err != nil {
		writeTrackerError(w, h.Logger, err, "failed to update item")
		return
	}
	jsonResponse(w, http.StatusOK, toItemResponse(it, h.now()))
}

// Delete handles DELETE /api/{collection}/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	collection, id, ok := pathItem(w, r)
	if !ok {
		return
	}
	if _, err := h.Tracker.Delete(r.Context(), collection, id); err != nil {
		writeTrackerError(w, h.Logger, err, "failed to delete item")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

// GetImage handles GET /api/{collection}/{id}/image.
func (h *ItemsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	collection, id, ok := pathItem(w, r)
	if !ok {
		return
	}
	it, err := h.Tracker.Get(collection, id)
	if err != nil {
		writeTrackerError(w, h.Logger, err, "failed to get item")
		return
	}

	data := it.Image
	if v := r.URL.Query().Get("view"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n >= len(it.ReferenceImages) {
			jsonError(w, http.StatusNotFound, "view not found")
			return
		}
		data = it.ReferenceImages[n]
	}
	if len(data) == 0 {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}

// AddView handles POST /api/{collection}/{id}/views.
func (h *ItemsHandler) AddView(w http.ResponseWriter, r *http.Request) {
	collection, id, ok := pathItem(w, r)
	if !ok {
		return
	}
	upload, ok := readImage(w, r)
	if !ok {
		return
	}

	it, err := h.Tracker.AddView(r.Context(), collection, id, upload.Image, upload.Data)
	if err != nil {
		writeTrackerError(w, h.Logger, err, "failed to add view")
		return
	}
	jsonResponse(w, http.StatusOK, toItemResponse(it, h.now()))
}

// Annotate handles POST /api/{collection}/{id}/annotate.
func (h *ItemsHandler) Annotate(w http.ResponseWriter, r *http.Request) {
	collection, id, ok := pathItem(w, r)
	if !ok {
		return
	}
	it, err := h.Tracker.Annotate(r.Context(), collection, id)
	if err != nil {
		writeTrackerError(w, h.Logger, err, "failed to annotate item")
		return
	}
	jsonResponse(w, http.StatusOK, toItemResponse(it, h.now()))
}

func pathCollection(w http.ResponseWriter, r *http.Request) (model.Collection, bool) {
	collection, err := model.ParseCollection(r.PathValue("collection"))
	if err != nil {
		jsonError(w, http.StatusNotFound, "unknown collection")
		return "", false
	}
	return collection, true
}

func pathItem(w http.ResponseWriter, r *http.Request) (model.Collection, int64, bool) {
	collection, ok := pathCollection(w, r)
	if !ok {
		return "", 0, false
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 0 {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return "", 0, false
	}
	return collection, id, true
}

// readImage parses the multipart "image" part and normalizes it to the
// stored JPEG form.
func readImage(w http.ResponseWriter, r *http.Request) (*imaging.ProcessResult, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "expected multipart form with an image")
		return nil, false
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return nil, false
	}
	defer file.Close()

	upload, err := imaging.Process(file)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return upload, true
}

// writeTrackerError maps tracker and catalog errors onto HTTP statuses.
func writeTrackerError(w http.ResponseWriter, logger *slog.Logger, err error, fallback string) {
	switch {
	case tracker.IsNotFound(err):
		jsonError(w, http.StatusNotFound, "item not found")
	case errors.Is(err, tracker.ErrInvalid), errors.Is(err, tracker.ErrNotWardrobe):
		jsonError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, features.ErrExtraction):
		jsonError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, tracker.ErrAnnotationDisabled), errors.Is(err, annotate.ErrDisabled):
		jsonError(w, http.StatusServiceUnavailable, "annotation is not configured")
	case errors.Is(err, annotate.ErrInvalidResponse):
		jsonError(w, http.StatusBadGateway, err.Error())
	default:
		logger.Error(fallback, "error", err)
		jsonError(w, http.StatusInternalServerError, fallback)
	}
}
