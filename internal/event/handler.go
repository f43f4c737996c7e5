package event

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/meetsync/pkg/middleware"
	"github.com/fkhayef/meetsync/pkg/response"
)

// Handler handles HTTP requests for event operations
type Handler struct {
	service *Service
}

// NewHandler creates a new event handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for event endpoints. Each child registers its
// routes beneath /{eventId}.
func (h *Handler) Routes(children ...func(r chi.Router)) chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/", h.List)

	r.Route("/{eventId}", func(r chi.Router) {
		r.Get("/", h.GetByID)
		for _, register := range children {
			register(r)
		}
	})

	return r
}

// Create handles POST /events
// @Summary      Create a new event
// @Description  Create a scheduling poll owned by the current user
// @Tags         events
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body CreateEventRequest true "Event creation request"
// @Success      201 {object} response.APIResponse{data=EventResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      401 {object} response.APIResponse
// @Router       /events [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	organizer, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Sign in to create an event")
		return
	}

	var req CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	event, err := h.service.Create(r.Context(), organizer, &req)
	if err != nil {
		if errors.Is(err, ErrInvalidRequest) || errors.Is(err, ErrInvalidWindow) {
			response.BadRequest(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to create event")
		return
	}

	response.JSON(w, http.StatusCreated, event.ToResponse())
}

// GetByID handles GET /events/{eventId}
// @Summary      Get event by ID
// @Tags         events
// @Produce      json
// @Param        eventId path string true "Event ID"
// @Success      200 {object} response.APIResponse{data=EventResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /events/{eventId} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	event, err := h.service.GetByID(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to get event")
		return
	}

	response.JSON(w, http.StatusOK, event.ToResponse())
}

// List handles GET /events
// @Summary      List my events
// @Description  Get a paginated list of events the current user organizes
// @Tags         events
// @Produce      json
// @Security     BearerAuth
// @Param        page query int false "Page number" default(1)
// @Param        per_page query int false "Items per page" default(20)
// @Success      200 {object} response.APIResponse{data=[]EventResponse}
// @Failure      401 {object} response.APIResponse
// @Router       /events [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	organizer, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Sign in to list your events")
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	events, total, err := h.service.ListByOrganizer(r.Context(), organizer, page, perPage)
	if err != nil {
		response.InternalError(w, "Failed to list events")
		return
	}

	eventResponses := make([]*EventResponse, len(events))
	for i, event := range events {
		eventResponses[i] = event.ToResponse()
	}

	totalPages := (total + perPage - 1) / perPage
	meta := &response.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	}

	response.JSONWithMeta(w, http.StatusOK, eventResponses, meta)
}
