package busy

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/meetsync/internal/kvstore"
	"github.com/fkhayef/meetsync/pkg/middleware"
	"github.com/fkhayef/meetsync/pkg/response"
)

// FeedRequest represents the request to set the profile's calendar feed
type FeedRequest struct {
	URL string `json:"url"`
}

// FeedResponse represents the stored calendar feed; an empty URL means none
type FeedResponse struct {
	URL string `json:"url"`
}

// Handler handles HTTP requests for profile settings
type Handler struct {
	backend kvstore.Backend
}

// NewHandler creates a new profile handler
func NewHandler(backend kvstore.Backend) *Handler {
	return &Handler{backend: backend}
}

// Routes returns the router for profile endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Put("/calendar-feed", h.SetFeed)

	return r
}

// SetFeed handles PUT /profile/calendar-feed
// @Summary      Set my calendar feed
// @Description  ICS feed whose events are shown as busy time; an empty URL removes it
// @Tags         profile
// @Accept       json
// @Produce      json
// @Param        X-Client-ID header string false "Browser profile ID"
// @Param        request body FeedRequest true "Feed URL"
// @Success      200 {object} response.APIResponse{data=FeedResponse}
// @Failure      400 {object} response.APIResponse
// @Router       /profile/calendar-feed [put]
func (h *Handler) SetFeed(w http.ResponseWriter, r *http.Request) {
	clientID, ok := middleware.GetClientID(r.Context())
	if !ok {
		response.BadRequest(w, "Client ID required")
		return
	}

	var req FeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	feedURL, err := SetFeedURL(r.Context(), kvstore.Scoped(h.backend, clientID), req.URL)
	if err != nil {
		if errors.Is(err, ErrInvalidFeedURL) || errors.Is(err, ErrForbiddenHost) {
			response.BadRequest(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to save calendar feed")
		return
	}

	response.JSON(w, http.StatusOK, &FeedResponse{URL: feedURL})
}
