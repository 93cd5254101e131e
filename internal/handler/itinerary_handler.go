package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/tripplanner/internal/middleware"
	"github.com/hitoshi/tripplanner/internal/model"
)

// TravelWarningsToggler は旅程の渡航警告を切り替える。
type TravelWarningsToggler interface {
	ToggleTravelWarnings(ctx context.Context, itineraryID int64, enabled bool) error
}

// ItineraryHandler は旅程のHTTPハンドラー。
type ItineraryHandler struct {
	itineraries TravelWarningsToggler
}

// NewItineraryHandler はItineraryHandlerを生成する。
func NewItineraryHandler(itineraries TravelWarningsToggler) *ItineraryHandler {
	return &ItineraryHandler{itineraries: itineraries}
}

// travelWarningsRequest は渡航警告切り替えリクエストのボディ。
type travelWarningsRequest struct {
	Enabled *bool `json:"enabled"`
}

// travelWarningsResponse は渡航警告切り替えのAPIレスポンス。
type travelWarningsResponse struct {
	ItineraryID int64 `json:"itineraryId"`
	Enabled     bool  `json:"enabled"`
}

// ToggleTravelWarnings は旅程の渡航警告を有効/無効にする。
// PUT /api/itineraries/{id}/travel-warnings
func (h *ItineraryHandler) ToggleTravelWarnings(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, "INVALID_ID", "itinerary id must be a positive integer")
		return
	}

	var req travelWarningsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", `request body must be {"enabled": bool}`)
		return
	}

	if h.itineraries == nil {
		middleware.WriteErrorResponse(w, http.StatusServiceUnavailable, "UNAVAILABLE", "travel warnings are not available")
		return
	}

	if err := h.itineraries.ToggleTravelWarnings(r.Context(), id, *req.Enabled); err != nil {
		if errors.Is(err, model.ErrNotAuthenticated) {
			middleware.WriteErrorResponse(w, http.StatusUnauthorized, "UNAUTHORIZED", "sign in is required")
			return
		}
		middleware.WriteDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, travelWarningsResponse{ItineraryID: id, Enabled: *req.Enabled})
}
