package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lorrc/front-desk-backend/internal/adapters/primary/validation"
	"github.com/lorrc/front-desk-backend/internal/core/domain"
	apperrors "github.com/lorrc/front-desk-backend/internal/core/errors"
	"github.com/lorrc/front-desk-backend/internal/core/ports"
)

const (
	maxNameLength     = 120
	maxCategoryLength = 60
	maxReasonLength   = 240
	maxServiceLength  = 60
	maxPlanLength     = 10
)

// TicketHandler handles HTTP requests for the ticket lifecycle
type TicketHandler struct {
	queueService ports.QueueService
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewTicketHandler creates a new ticket handler
func NewTicketHandler(
	queueService ports.QueueService,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *TicketHandler {
	return &TicketHandler{
		queueService: queueService,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "ticket"),
	}
}

// RegisterPublicRoutes sets up the routing for visitor-facing ticket
// endpoints.
func (h *TicketHandler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/", h.HandleCreateTicket)
	r.Get("/{ticketID}", h.HandleGetTicket)
	r.Post("/{ticketID}/request-cancel", h.HandleRequestCancel)
}

// RegisterStaffRoutes sets up the routing for staff-only ticket endpoints.
// The caller is expected to wrap these behind the staff key middleware.
func (h *TicketHandler) RegisterStaffRoutes(r chi.Router) {
	r.Post("/{ticketID}/serve", h.HandleServeTicket)
	r.Post("/{ticketID}/hold", h.HandleHoldTicket)
	r.Post("/{ticketID}/recall", h.HandleRecallTicket)
	r.Post("/{ticketID}/reassign", h.HandleReassignTicket)
	r.Post("/{ticketID}/clear-cancel", h.HandleClearCancel)
	r.Delete("/{ticketID}", h.HandleDeleteTicket)
}

// --- Request/Response DTOs ---

// CreateTicketRequest defines the expected JSON body for taking a ticket
type CreateTicketRequest struct {
	Name     string   `json:"name"`
	Services []string `json:"services"`
	Category string   `json:"category"`
}

// Validate validates the create ticket request
func (r *CreateTicketRequest) Validate() error {
	v := validation.NewValidator()

	v.MaxLength("name", r.Name, maxNameLength)
	v.MaxLength("category", r.Category, maxCategoryLength)

	v.NotEmpty("services", r.Services).
		MaxItems("services", r.Services, maxPlanLength)

	for _, s := range r.Services {
		if len(s) > maxServiceLength {
			v.Custom("services", false, "Service names must be at most "+strconv.Itoa(maxServiceLength)+" characters")
			break
		}
	}

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// StationRequest defines the JSON body for operations acting on behalf of a
// station (serve, reassign)
type StationRequest struct {
	Station string `json:"station"`
}

// Validate validates the station request
func (r *StationRequest) Validate() error {
	v := validation.NewValidator()

	v.Required("station", r.Station).
		MaxLength("station", r.Station, maxServiceLength)

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// RequestCancelRequest defines the JSON body for a visitor cancellation
// request. The body is optional; an empty reason is valid.
type RequestCancelRequest struct {
	Reason string `json:"reason"`
}

// TicketDTO defines the JSON response for tickets.
type TicketDTO struct {
	ID                int64    `json:"id"`
	Token             string   `json:"token"`
	DisplayToken      string   `json:"displayToken"`
	Name              string   `json:"name"`
	Category          string   `json:"category,omitempty"`
	Services          []string `json:"services"`
	ServiceIndex      int      `json:"serviceIndex"`
	CurrentStation    *string  `json:"currentStation"`
	Status            string   `json:"status"`
	CalledService     string   `json:"calledService,omitempty"`
	CancelRequested   bool     `json:"cancelRequested"`
	CancelReason      string   `json:"cancelReason,omitempty"`
	ServiceArrival    string   `json:"serviceArrival"`
	CreatedAt         string   `json:"createdAt"`
	UpdatedAt         *string  `json:"updatedAt"`
	ServedAt          *string  `json:"servedAt"`
	CancelRequestedAt *string  `json:"cancelRequestedAt"`
	Version           int64    `json:"version"`
}

func toTicketDTO(ticket *domain.Ticket) TicketDTO {
	var currentStation *string
	if station, ok := ticket.CurrentStation(); ok {
		currentStation = &station
	}

	return TicketDTO{
		ID:                ticket.ID,
		Token:             ticket.Token(),
		DisplayToken:      ticket.DisplayToken(),
		Name:              ticket.Name,
		Category:          ticket.Category,
		Services:          ticket.Services,
		ServiceIndex:      ticket.ServiceIndex,
		CurrentStation:    currentStation,
		Status:            string(ticket.Status),
		CalledService:     ticket.CalledService,
		CancelRequested:   ticket.CancelRequested,
		CancelReason:      ticket.CancelReason,
		ServiceArrival:    ticket.ServiceArrival.Format(time.RFC3339),
		CreatedAt:         ticket.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         formatTimePtr(ticket.UpdatedAt),
		ServedAt:          formatTimePtr(ticket.ServedAt),
		CancelRequestedAt: formatTimePtr(ticket.CancelRequestedAt),
		Version:           ticket.Version,
	}
}

func toTicketDTOs(tickets []*domain.Ticket) []TicketDTO {
	response := make([]TicketDTO, 0, len(tickets))
	for _, ticket := range tickets {
		response = append(response, toTicketDTO(ticket))
	}
	return response
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	value := t.Format(time.RFC3339)
	return &value
}

// ServeResultDTO defines the JSON response for a serve operation.
type ServeResultDTO struct {
	Completed    bool   `json:"completed"`
	NextStation  string `json:"nextStation,omitempty"`
	ServiceIndex int    `json:"serviceIndex"`
}

// parseTicketID extracts and parses the ticketID URL parameter
func parseTicketID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "ticketID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.ErrInvalidTicketID
	}
	return id, nil
}

// --- Handlers ---

// HandleCreateTicket handles POST /tickets
func (h *TicketHandler) HandleCreateTicket(w http.ResponseWriter, r *http.Request) {
	req, err := validation.DecodeAndValidate[CreateTicketRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	ticket, err := h.queueService.Create(r.Context(), ports.CreateTicketParams{
		Name:     req.Name,
		Services: req.Services,
		Category: req.Category,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("ticket created",
		"request_id", GetRequestID(r.Context()),
		"ticket_id", ticket.ID,
		"services", ticket.Services,
	)

	WriteCreated(w, toTicketDTO(ticket))
}

// HandleGetTicket handles GET /tickets/{ticketID}
func (h *TicketHandler) HandleGetTicket(w http.ResponseWriter, r *http.Request) {
	id, err := parseTicketID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	ticket, err := h.queueService.GetTicket(r.Context(), id)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, toTicketDTO(ticket))
}

// HandleServeTicket handles POST /tickets/{ticketID}/serve
func (h *TicketHandler) HandleServeTicket(w http.ResponseWriter, r *http.Request) {
	id, err := parseTicketID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	req, err := validation.DecodeAndValidate[StationRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	result, err := h.queueService.Serve(r.Context(), ports.ServeParams{
		TicketID: id,
		Station:  req.Station,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("ticket served",
		"request_id", GetRequestID(r.Context()),
		"ticket_id", id,
		"station", req.Station,
		"completed", result.Completed,
	)

	WriteJSON(w, http.StatusOK, ServeResultDTO{
		Completed:    result.Completed,
		NextStation:  result.NextStation,
		ServiceIndex: result.ServiceIndex,
	})
}

// HandleHoldTicket handles POST /tickets/{ticketID}/hold
func (h *TicketHandler) HandleHoldTicket(w http.ResponseWriter, r *http.Request) {
	id, err := parseTicketID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := h.queueService.Hold(r.Context(), id); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, SuccessResponse{Message: "Ticket placed on hold"})
}

// HandleRecallTicket handles POST /tickets/{ticketID}/recall
func (h *TicketHandler) HandleRecallTicket(w http.ResponseWriter, r *http.Request) {
	id, err := parseTicketID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := h.queueService.Recall(r.Context(), id); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, SuccessResponse{Message: "Ticket recalled"})
}

// HandleReassignTicket handles POST /tickets/{ticketID}/reassign
func (h *TicketHandler) HandleReassignTicket(w http.ResponseWriter, r *http.Request) {
	id, err := parseTicketID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	req, err := validation.DecodeAndValidate[StationRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	ticket, err := h.queueService.Reassign(r.Context(), ports.ReassignParams{
		TicketID: id,
		Station:  req.Station,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("ticket reassigned",
		"request_id", GetRequestID(r.Context()),
		"ticket_id", id,
		"station", req.Station,
	)

	WriteJSON(w, http.StatusOK, toTicketDTO(ticket))
}

// HandleRequestCancel handles POST /tickets/{ticketID}/request-cancel
func (h *TicketHandler) HandleRequestCancel(w http.ResponseWriter, r *http.Request) {
	id, err := parseTicketID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	// The body is optional for this endpoint
	var req RequestCancelRequest
	if r.Body != nil && r.ContentLength != 0 {
		decoded, err := validation.DecodeAndValidate[RequestCancelRequest](r)
		if err != nil {
			h.errorHandler.Handle(w, r, err)
			return
		}
		req = *decoded
	}

	if len(req.Reason) > maxReasonLength {
		v := validation.NewValidator()
		v.MaxLength("reason", req.Reason, maxReasonLength)
		h.errorHandler.Handle(w, r, v.Errors())
		return
	}

	if err := h.queueService.RequestCancel(r.Context(), ports.RequestCancelParams{
		TicketID: id,
		Reason:   req.Reason,
	}); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, SuccessResponse{Message: "Cancellation requested"})
}

// HandleClearCancel handles POST /tickets/{ticketID}/clear-cancel
func (h *TicketHandler) HandleClearCancel(w http.ResponseWriter, r *http.Request) {
	id, err := parseTicketID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := h.queueService.ClearCancel(r.Context(), id); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, SuccessResponse{Message: "Cancellation request cleared"})
}

// HandleDeleteTicket handles DELETE /tickets/{ticketID}
func (h *TicketHandler) HandleDeleteTicket(w http.ResponseWriter, r *http.Request) {
	id, err := parseTicketID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := h.queueService.Delete(r.Context(), id); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("ticket deleted",
		"request_id", GetRequestID(r.Context()),
		"ticket_id", id,
	)

	WriteNoContent(w)
}
