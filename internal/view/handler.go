package view

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/meetsync/internal/availability"
	"github.com/fkhayef/meetsync/internal/draft"
	"github.com/fkhayef/meetsync/internal/event"
	"github.com/fkhayef/meetsync/pkg/middleware"
	"github.com/fkhayef/meetsync/pkg/response"
)

// Handler handles HTTP requests for the calendar page and the viewer's draft
type Handler struct {
	service *Service
	limiter func(http.Handler) http.Handler
}

// NewHandler creates a new view handler. limiter guards submission and may be nil.
func NewHandler(service *Service, limiter func(http.Handler) http.Handler) *Handler {
	return &Handler{service: service, limiter: limiter}
}

// Register adds the view and draft routes to an event router
func (h *Handler) Register(r chi.Router) {
	r.Get("/view", h.Get)
	r.Post("/view/toggle/{participantId}", h.Toggle)
	r.Post("/view/participants/{participantId}/delete", h.DeleteParticipant)

	r.Get("/draft", h.GetDraft)
	r.Put("/draft", h.ReplaceDraft)
	r.Delete("/draft", h.ClearDraft)
	r.Post("/draft/ranges", h.AddRange)
	r.Put("/draft/ranges/{entryId}", h.ResizeRange)
	r.Delete("/draft/ranges/{entryId}", h.RemoveRange)

	if h.limiter != nil {
		r.With(h.limiter).Post("/draft/submit", h.Submit)
	} else {
		r.Post("/draft/submit", h.Submit)
	}
}

func viewer(w http.ResponseWriter, r *http.Request) (Viewer, bool) {
	clientID, ok := middleware.GetClientID(r.Context())
	if !ok {
		response.BadRequest(w, "Client ID required")
		return Viewer{}, false
	}
	userID, _ := middleware.GetUserID(r.Context())
	return Viewer{ClientID: clientID, UserID: userID}, true
}

// writeError maps service errors to responses
func writeError(w http.ResponseWriter, err error, fallback string) {
	var verr *draft.ValidationError
	switch {
	case errors.As(err, &verr):
		response.ValidationFailed(w, "Please correct the highlighted fields", verr.Fields)
	case errors.Is(err, event.ErrEventNotFound), errors.Is(err, draft.ErrEntryNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, availability.ErrNotOrganizer):
		response.Forbidden(w, err.Error())
	case errors.Is(err, ErrDeletionInProgress):
		response.Conflict(w, err.Error())
	case errors.Is(err, draft.ErrInvalidRange),
		errors.Is(err, ErrOutsideWindow),
		errors.Is(err, availability.ErrMissingFields),
		errors.Is(err, availability.ErrInvalidEntry):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrSubmitFailed):
		response.BadGateway(w, err.Error())
	default:
		response.InternalError(w, fallback)
	}
}

// Get handles GET /events/{eventId}/view
// @Summary      Render the calendar page
// @Description  Roster, visible availability, own draft and busy time for this browser profile
// @Tags         view
// @Produce      json
// @Param        eventId path string true "Event ID"
// @Param        X-Client-ID header string false "Browser profile ID"
// @Success      200 {object} response.APIResponse{data=Snapshot}
// @Failure      404 {object} response.APIResponse
// @Router       /events/{eventId}/view [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	v, ok := viewer(w, r)
	if !ok {
		return
	}

	snap, err := h.service.Render(r.Context(), v, chi.URLParam(r, "eventId"))
	if err != nil {
		writeError(w, err, "Failed to render calendar")
		return
	}

	response.JSON(w, http.StatusOK, snap)
}

// Toggle handles POST /events/{eventId}/view/toggle/{participantId}
// @Summary      Toggle a participant's visibility
// @Tags         view
// @Produce      json
// @Param        eventId path string true "Event ID"
// @Param        participantId path string true "Participant ID"
// @Success      200 {object} response.APIResponse{data=Snapshot}
// @Failure      404 {object} response.APIResponse
// @Router       /events/{eventId}/view/toggle/{participantId} [post]
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	v, ok := viewer(w, r)
	if !ok {
		return
	}

	snap, err := h.service.Toggle(r.Context(), v, chi.URLParam(r, "eventId"), chi.URLParam(r, "participantId"))
	if err != nil {
		writeError(w, err, "Failed to toggle participant")
		return
	}

	response.JSON(w, http.StatusOK, snap)
}

// DeleteParticipant handles POST /events/{eventId}/view/participants/{participantId}/delete
// @Summary      Delete a participant optimistically
// @Description  Hides the participant at once; the outcome arrives over the websocket
// @Tags         view
// @Produce      json
// @Security     BearerAuth
// @Param        eventId path string true "Event ID"
// @Param        participantId path string true "Participant ID"
// @Success      202 {object} response.APIResponse{data=Snapshot}
// @Failure      403 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /events/{eventId}/view/participants/{participantId}/delete [post]
func (h *Handler) DeleteParticipant(w http.ResponseWriter, r *http.Request) {
	v, ok := viewer(w, r)
	if !ok {
		return
	}

	snap, err := h.service.DeleteParticipant(r.Context(), v, chi.URLParam(r, "eventId"), chi.URLParam(r, "participantId"))
	if err != nil {
		writeError(w, err, "Failed to delete participant")
		return
	}

	response.JSON(w, http.StatusAccepted, snap)
}

// GetDraft handles GET /events/{eventId}/draft
// @Summary      Get my draft
// @Tags         draft
// @Produce      json
// @Param        eventId path string true "Event ID"
// @Success      200 {object} response.APIResponse{data=DraftResponse}
// @Router       /events/{eventId}/draft [get]
func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	v, ok := viewer(w, r)
	if !ok {
		return
	}

	d, err := h.service.Draft(r.Context(), v, chi.URLParam(r, "eventId"))
	if err != nil {
		writeError(w, err, "Failed to load draft")
		return
	}

	response.JSON(w, http.StatusOK, toDraftResponse(d))
}

// ReplaceDraft handles PUT /events/{eventId}/draft
// @Summary      Replace my draft
// @Tags         draft
// @Accept       json
// @Produce      json
// @Param        eventId path string true "Event ID"
// @Param        request body ReplaceDraftRequest true "Draft entries"
// @Success      200 {object} response.APIResponse{data=[]availability.CalendarEntry}
// @Failure      400 {object} response.APIResponse
// @Router       /events/{eventId}/draft [put]
func (h *Handler) ReplaceDraft(w http.ResponseWriter, r *http.Request) {
	v, ok := viewer(w, r)
	if !ok {
		return
	}

	var req ReplaceDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	entries, err := h.service.ReplaceDraft(r.Context(), v, chi.URLParam(r, "eventId"), req.Entries)
	if err != nil {
		writeError(w, err, "Failed to save draft")
		return
	}

	response.JSON(w, http.StatusOK, entries)
}

// ClearDraft handles DELETE /events/{eventId}/draft
// @Summary      Clear my draft
// @Tags         draft
// @Param        eventId path string true "Event ID"
// @Success      204
// @Router       /events/{eventId}/draft [delete]
func (h *Handler) ClearDraft(w http.ResponseWriter, r *http.Request) {
	v, ok := viewer(w, r)
	if !ok {
		return
	}

	if err := h.service.ClearDraft(r.Context(), v, chi.URLParam(r, "eventId")); err != nil {
		writeError(w, err, "Failed to clear draft")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AddRange handles POST /events/{eventId}/draft/ranges
// @Summary      Add a range to my draft
// @Tags         draft
// @Accept       json
// @Produce      json
// @Param        eventId path string true "Event ID"
// @Param        request body RangeRequest true "Selected range"
// @Success      201 {object} response.APIResponse{data=[]availability.CalendarEntry}
// @Failure      400 {object} response.APIResponse
// @Router       /events/{eventId}/draft/ranges [post]
func (h *Handler) AddRange(w http.ResponseWriter, r *http.Request) {
	v, ok := viewer(w, r)
	if !ok {
		return
	}

	var req RangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	entries, err := h.service.AddRange(r.Context(), v, chi.URLParam(r, "eventId"), req.Start, req.End)
	if err != nil {
		writeError(w, err, "Failed to add range")
		return
	}

	response.JSON(w, http.StatusCreated, entries)
}

// ResizeRange handles PUT /events/{eventId}/draft/ranges/{entryId}
// @Summary      Move or resize a range of my draft
// @Tags         draft
// @Accept       json
// @Produce      json
// @Param        eventId path string true "Event ID"
// @Param        entryId path string true "Entry ID"
// @Param        request body RangeRequest true "New bounds"
// @Success      200 {object} response.APIResponse{data=[]availability.CalendarEntry}
// @Failure      400 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /events/{eventId}/draft/ranges/{entryId} [put]
func (h *Handler) ResizeRange(w http.ResponseWriter, r *http.Request) {
	v, ok := viewer(w, r)
	if !ok {
		return
	}

	var req RangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	entries, err := h.service.ResizeRange(r.Context(), v, chi.URLParam(r, "eventId"), chi.URLParam(r, "entryId"), req.Start, req.End)
	if err != nil {
		writeError(w, err, "Failed to resize range")
		return
	}

	response.JSON(w, http.StatusOK, entries)
}

// RemoveRange handles DELETE /events/{eventId}/draft/ranges/{entryId}
// @Summary      Remove a range from my draft
// @Tags         draft
// @Produce      json
// @Param        eventId path string true "Event ID"
// @Param        entryId path string true "Entry ID"
// @Success      200 {object} response.APIResponse{data=[]availability.CalendarEntry}
// @Router       /events/{eventId}/draft/ranges/{entryId} [delete]
func (h *Handler) RemoveRange(w http.ResponseWriter, r *http.Request) {
	v, ok := viewer(w, r)
	if !ok {
		return
	}

	entries, err := h.service.RemoveRange(r.Context(), v, chi.URLParam(r, "eventId"), chi.URLParam(r, "entryId"))
	if err != nil {
		writeError(w, err, "Failed to remove range")
		return
	}

	response.JSON(w, http.StatusOK, entries)
}

// Submit handles POST /events/{eventId}/draft/submit
// @Summary      Submit my draft
// @Description  Validates the form, titles every range with the submitter and stores the availability
// @Tags         draft
// @Accept       json
// @Produce      json
// @Param        eventId path string true "Event ID"
// @Param        request body SubmitRequest true "Submitter identity"
// @Success      201 {object} response.APIResponse{data=availability.RecordResponse}
// @Failure      422 {object} response.APIResponse
// @Failure      502 {object} response.APIResponse
// @Router       /events/{eventId}/draft/submit [post]
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	v, ok := viewer(w, r)
	if !ok {
		return
	}

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	rec, err := h.service.Submit(r.Context(), v, chi.URLParam(r, "eventId"), req.Name, req.Email)
	if err != nil {
		writeError(w, err, "Failed to submit availability")
		return
	}

	response.JSON(w, http.StatusCreated, rec.ToResponse())
}
