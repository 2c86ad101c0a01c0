package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/erazemk/vestique/internal/marketplace"
	"github.com/erazemk/vestique/internal/model"
	"github.com/erazemk/vestique/internal/tracker"
)

// ListingsHandler handles marketplace endpoints.
type ListingsHandler struct {
	Tracker *tracker.Tracker
	Claims  ClaimSettings
	Logger  *slog.Logger
	now     func() time.Time
}

type claimRequest struct {
	Token string `json:"token"`
}

type claimTokenResponse struct {
	Token     string    `json:"token"`
	ListingID int64     `json:"listing_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Migrate handles POST /api/listings/migrate.
func (h *ListingsHandler) Migrate(w http.ResponseWriter, r *http.Request) {
	moved, err := h.Tracker.MigrateListings(r.Context())
	if err != nil {
		writeTrackerError(w, h.Logger, err, "failed to migrate listings")
		return
	}

	now := h.now()
	resp := make([]itemResponse, 0, len(moved))
	for _, it := range moved {
		resp = append(resp, toItemResponse(it, now))
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"moved":    len(resp),
		"listings": resp,
	})
}

// IssueToken handles POST /api/listings/{id}/claim-token.
func (h *ListingsHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	if h.Claims.Secret == "" {
		jsonError(w, http.StatusServiceUnavailable, "claim tokens are not configured")
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 0 {
		jsonError(w, http.StatusBadRequest, "invalid listing id")
		return
	}
	if _, err := h.Tracker.Get(model.CollectionListings, id); err != nil {
		writeTrackerError(w, h.Logger, err, "failed to get listing")
		return
	}

	ttl := h.Claims.TTL
	if ttl <= 0 {
		ttl = marketplace.DefaultClaimTTL
	}
	token, err := marketplace.IssueClaim(h.Claims.Secret, id, ttl)
	if err != nil {
		h.Logger.Error("failed to issue claim token", "listing_id", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to issue claim token")
		return
	}
	jsonResponse(w, http.StatusCreated, claimTokenResponse{
		Token:     token,
		ListingID: id,
		ExpiresAt: h.now().Add(ttl).UTC(),
	})
}

// Claim handles POST /api/listings/claim. A valid token removes its listing;
// presenting it again finds nothing to claim.
func (h *ListingsHandler) Claim(w http.ResponseWriter, r *http.Request) {
	if h.Claims.Secret == "" {
		jsonError(w, http.StatusServiceUnavailable, "claim tokens are not configured")
		return
	}

	var req claimRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Token) == "" {
		jsonError(w, http.StatusBadRequest, "token required")
		return
	}

	claims, err := marketplace.ValidateClaim(h.Claims.Secret, strings.TrimSpace(req.Token))
	if err != nil {
		jsonError(w, http.StatusUnauthorized, "invalid claim token")
		return
	}

	claimed, err := h.Tracker.ClaimListing(r.Context(), claims.ListingID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			jsonError(w, http.StatusConflict, "listing already claimed or removed")
			return
		}
		writeTrackerError(w, h.Logger, err, "failed to claim listing")
		return
	}
	jsonResponse(w, http.StatusOK, toItemResponse(claimed, h.now()))
}
