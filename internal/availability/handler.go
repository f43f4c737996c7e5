package availability

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/meetsync/internal/event"
	"github.com/fkhayef/meetsync/pkg/middleware"
	"github.com/fkhayef/meetsync/pkg/response"
)

// Handler handles HTTP requests for availability operations
type Handler struct {
	service *Service
	limiter func(http.Handler) http.Handler
}

// NewHandler creates a new availability handler. limiter guards the submission
// endpoint and may be nil.
func NewHandler(service *Service, limiter func(http.Handler) http.Handler) *Handler {
	return &Handler{service: service, limiter: limiter}
}

// Register adds the availability routes to an event router
func (h *Handler) Register(r chi.Router) {
	r.Get("/availability", h.List)
	if h.limiter != nil {
		r.With(h.limiter).Post("/availability", h.Submit)
	} else {
		r.Post("/availability", h.Submit)
	}
	r.Delete("/participants/{participantId}", h.DeleteParticipant)
}

// List handles GET /events/{eventId}/availability
// @Summary      List availability records
// @Description  Raw availability records of every participant; empty unless the caller organizes the event
// @Tags         availability
// @Produce      json
// @Security     BearerAuth
// @Param        eventId path string true "Event ID"
// @Success      200 {object} response.APIResponse{data=[]RecordResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /events/{eventId}/availability [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	viewerID, _ := middleware.GetUserID(r.Context())

	records, err := h.service.ListRecords(r.Context(), chi.URLParam(r, "eventId"), viewerID)
	if err != nil {
		if errors.Is(err, event.ErrEventNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to load participant availability")
		return
	}

	recordResponses := make([]*RecordResponse, len(records))
	for i := range records {
		recordResponses[i] = records[i].ToResponse()
	}

	response.JSON(w, http.StatusOK, recordResponses)
}

// Submit handles POST /events/{eventId}/availability
// @Summary      Submit availability
// @Description  Store a participant's available time ranges, replacing an earlier submission with the same email
// @Tags         availability
// @Accept       json
// @Produce      json
// @Param        eventId path string true "Event ID"
// @Param        request body SubmitAvailabilityRequest true "Availability submission"
// @Success      201 {object} response.APIResponse{data=RecordResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Failure      429 {object} response.APIResponse
// @Router       /events/{eventId}/availability [post]
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	rec, err := h.service.Submit(r.Context(), chi.URLParam(r, "eventId"), &req)
	if err != nil {
		switch {
		case errors.Is(err, event.ErrEventNotFound):
			response.NotFound(w, err.Error())
		case errors.Is(err, ErrMissingFields), errors.Is(err, ErrInvalidEntry):
			response.BadRequest(w, err.Error())
		default:
			response.InternalError(w, "Failed to submit availability")
		}
		return
	}

	response.JSON(w, http.StatusCreated, rec.ToResponse())
}

// DeleteParticipant handles DELETE /events/{eventId}/participants/{participantId}
// @Summary      Delete a participant
// @Description  Remove a participant and their availability (organizer only)
// @Tags         availability
// @Security     BearerAuth
// @Param        eventId path string true "Event ID"
// @Param        participantId path string true "Participant ID"
// @Success      204
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /events/{eventId}/participants/{participantId} [delete]
func (h *Handler) DeleteParticipant(w http.ResponseWriter, r *http.Request) {
	viewerID, _ := middleware.GetUserID(r.Context())

	err := h.service.DeleteParticipant(r.Context(), chi.URLParam(r, "eventId"), viewerID, chi.URLParam(r, "participantId"))
	if err != nil {
		switch {
		case errors.Is(err, event.ErrEventNotFound), errors.Is(err, ErrParticipantNotFound):
			response.NotFound(w, err.Error())
		case errors.Is(err, ErrNotOrganizer):
			response.Forbidden(w, err.Error())
		default:
			response.InternalError(w, "Failed to delete participant")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
