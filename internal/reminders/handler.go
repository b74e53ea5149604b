package reminders

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerline/ledgerline/internal/platform/httpx"
)

// Handler exposes the reminder schedule of an invoice over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a reminders handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes attaches reminder routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
}

type reminderResponse struct {
	ID          string  `json:"id"`
	InvoiceID   string  `json:"invoice_id"`
	Kind        Kind    `json:"kind"`
	OverdueDays int     `json:"overdue_days"`
	ScheduledAt string  `json:"scheduled_at"`
	Status      string  `json:"status"`
	EmailID     *string `json:"email_id,omitempty"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	invoiceID := chi.URLParam(r, "invoiceID")
	if invoiceID == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invoice id required")
		return
	}

	rows, err := h.service.List(r.Context(), invoiceID)
	if err != nil {
		h.logger.Error("list reminders", slog.String("invoice_id", invoiceID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	out := make([]reminderResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, reminderResponse{
			ID:          row.ID,
			InvoiceID:   row.InvoiceID,
			Kind:        row.Kind,
			OverdueDays: row.OverdueDays,
			ScheduledAt: row.ScheduledAt.Format(time.DateOnly),
			Status:      string(row.Status),
			EmailID:     row.EmailID,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"reminders": out})
}
