package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/vestique/internal/model"
	"github.com/erazemk/vestique/internal/tracker"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("error encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// itemResponse is the wire form of an item. Image blobs and descriptors are
// left out; images are served by the image endpoint.
type itemResponse struct {
	ID            int64            `json:"id"`
	Name          string           `json:"name"`
	Type          string           `json:"type"`
	Kind          model.Kind       `json:"kind"`
	LastWorn      *time.Time       `json:"last_worn,omitempty"`
	DaysSinceWorn int              `json:"days_since_worn"`
	WearCount     int              `json:"wear_count"`
	ResetPeriod   int              `json:"reset_period,omitempty"`
	Views         int              `json:"views"`
	Recognizable  bool             `json:"recognizable"`
	HasImage      bool             `json:"has_image"`
	AIAnalysis    json.RawMessage  `json:"ai_analysis,omitempty"`
	CreatedAt     *time.Time       `json:"created_at,omitempty"`
	ListedFrom    model.Collection `json:"listed_from,omitempty"`
	SourceID      *int64           `json:"source_id,omitempty"`
	DateListed    *time.Time       `json:"date_listed,omitempty"`
}

func toItemResponse(it model.Item, now time.Time) itemResponse {
	resp := itemResponse{
		ID:            it.ID,
		Name:          it.DisplayName(),
		Type:          it.Type,
		Kind:          it.Kind,
		DaysSinceWorn: it.DaysSinceWorn(now),
		WearCount:     it.WearCount,
		ResetPeriod:   it.ResetPeriod,
		Views:         it.ViewCount(),
		Recognizable:  len(it.References()) > 0,
		HasImage:      len(it.Image) > 0,
		AIAnalysis:    it.AIAnalysis,
		ListedFrom:    it.ListedFrom,
		SourceID:      it.SourceID,
		DateListed:    it.DateListed,
	}
	if !it.LastWorn.IsZero() {
		lw := it.LastWorn
		resp.LastWorn = &lw
	}
	if !it.CreatedAt.IsZero() {
		ca := it.CreatedAt
		resp.CreatedAt = &ca
	}
	return resp
}

// resultResponse is the wire form of a capture or create outcome.
type resultResponse struct {
	State         tracker.State    `json:"state"`
	Collection    model.Collection `json:"collection"`
	Item          *itemResponse    `json:"item,omitempty"`
	Score         float64          `json:"score"`
	DaysSince     int              `json:"days_since"`
	DaysRemaining int              `json:"days_remaining"`
	Error         string           `json:"error,omitempty"`
	Warnings      []string         `json:"warnings,omitempty"`
}

func toResultResponse(res tracker.Result, now time.Time) resultResponse {
	resp := resultResponse{
		State:         res.State,
		Collection:    res.Collection,
		Score:         res.Score,
		DaysSince:     res.DaysSince,
		DaysRemaining: res.DaysRemaining,
		Warnings:      res.Warnings,
	}
	if res.Item != nil {
		item := toItemResponse(*res.Item, now)
		resp.Item = &item
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	return resp
}
