package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lorrc/front-desk-backend/internal/adapters/primary/validation"
	"github.com/lorrc/front-desk-backend/internal/core/ports"
)

// QueueHandler handles HTTP requests for dispatch and queue projections
type QueueHandler struct {
	queueService    ports.QueueService
	snapshotService ports.SnapshotService
	errorHandler    *ErrorHandler
	logger          *slog.Logger
}

// NewQueueHandler creates a new queue handler
func NewQueueHandler(
	queueService ports.QueueService,
	snapshotService ports.SnapshotService,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *QueueHandler {
	return &QueueHandler{
		queueService:    queueService,
		snapshotService: snapshotService,
		errorHandler:    errorHandler,
		logger:          logger.With("handler", "queue"),
	}
}

// RegisterPublicRoutes sets up the read-only projection endpoints.
func (h *QueueHandler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/queue", h.HandleQueue)
	r.Get("/stats", h.HandleStats)
	r.Get("/export.csv", h.HandleExportCSV)
}

// RegisterStaffRoutes sets up the dispatch endpoint. The caller is expected
// to wrap these behind the staff key middleware.
func (h *QueueHandler) RegisterStaffRoutes(r chi.Router) {
	r.Post("/next", h.HandleCallNext)
}

// CallNextRequest defines the JSON body for claiming a station's next ticket
type CallNextRequest struct {
	Station string `json:"station"`
}

// Validate validates the call next request
func (r *CallNextRequest) Validate() error {
	v := validation.NewValidator()

	v.Required("station", r.Station).
		MaxLength("station", r.Station, maxServiceLength)

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// CallNextResponse is the JSON response for a dispatch attempt. Ticket is
// null when the station's queue was empty.
type CallNextResponse struct {
	Found  bool       `json:"found"`
	Ticket *TicketDTO `json:"ticket"`
}

// StatsDTO is the JSON response for queue counters
type StatsDTO struct {
	Waiting int64 `json:"waiting"`
	Served  int64 `json:"served"`
}

// HandleCallNext handles POST /next
func (h *QueueHandler) HandleCallNext(w http.ResponseWriter, r *http.Request) {
	req, err := validation.DecodeAndValidate[CallNextRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	result, err := h.queueService.CallNext(r.Context(), req.Station)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if !result.Found {
		WriteJSON(w, http.StatusOK, CallNextResponse{Found: false})
		return
	}

	h.logger.Info("ticket called",
		"request_id", GetRequestID(r.Context()),
		"ticket_id", result.Ticket.ID,
		"station", req.Station,
	)

	dto := toTicketDTO(result.Ticket)
	WriteJSON(w, http.StatusOK, CallNextResponse{Found: true, Ticket: &dto})
}

// HandleQueue handles GET /queue
func (h *QueueHandler) HandleQueue(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.snapshotService.Queue(r.Context())
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteList(w, toTicketDTOs(tickets))
}

// HandleStats handles GET /stats
func (h *QueueHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.snapshotService.Stats(r.Context())
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, StatsDTO{
		Waiting: stats.Waiting,
		Served:  stats.Served,
	})
}

// HandleExportCSV handles GET /export.csv
func (h *QueueHandler) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="tickets.csv"`)

	if err := h.snapshotService.ExportCSV(r.Context(), w); err != nil {
		// Headers are already sent; log instead of rewriting the response
		h.logger.Error("csv export failed",
			"request_id", GetRequestID(r.Context()),
			"error", err,
		)
	}
}
