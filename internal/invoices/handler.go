package invoices

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ledgerline/ledgerline/internal/platform/httpx"
	"github.com/ledgerline/ledgerline/internal/reminders"
)

// Handler exposes invoice lifecycle operations over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs an invoices handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// MountRoutes attaches invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/summary", h.summary)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Post("/{id}/send", h.send)
	r.Post("/{id}/pay", h.markPaid)
}

type invoiceResponse struct {
	ID               string                      `json:"id"`
	Number           string                      `json:"number"`
	CustomerName     string                      `json:"customer_name"`
	CustomerEmail    string                      `json:"customer_email"`
	Status           string                      `json:"status"`
	IssueDate        string                      `json:"issue_date"`
	DueDate          string                      `json:"due_date"`
	Currency         string                      `json:"currency"`
	Total            float64                     `json:"total"`
	Notes            *string                     `json:"notes,omitempty"`
	PaymentTerms     *reminders.PaymentTerms     `json:"payment_terms,omitempty"`
	LateFees         *reminders.LateFeePolicy    `json:"late_fees,omitempty"`
	ReminderSettings *reminders.ReminderSettings `json:"reminder_settings,omitempty"`
	DueStatus        reminders.DueDateStatus     `json:"due_status"`
	Charges          reminders.Charges           `json:"charges"`
	CreatedAt        time.Time                   `json:"created_at"`
	UpdatedAt        time.Time                   `json:"updated_at"`
}

func toResponse(view InvoiceView) invoiceResponse {
	return invoiceResponse{
		ID:               view.ID,
		Number:           view.Number,
		CustomerName:     view.CustomerName,
		CustomerEmail:    view.CustomerEmail,
		Status:           string(view.Status),
		IssueDate:        view.IssueDate.Format(time.DateOnly),
		DueDate:          view.DueDate.Format(time.DateOnly),
		Currency:         view.Currency,
		Total:            view.Total,
		Notes:            view.Notes,
		PaymentTerms:     view.PaymentTerms,
		LateFees:         view.LateFees,
		ReminderSettings: view.ReminderSettings,
		DueStatus:        view.DueStatus,
		Charges:          view.Charges,
		CreatedAt:        view.CreatedAt,
		UpdatedAt:        view.UpdatedAt,
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	view, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.respondError(w, "create invoice", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(*view))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req UpdateInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	view, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.respondError(w, "update invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(*view))
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Send(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, "send invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(*view))
}

func (h *Handler) markPaid(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.MarkPaid(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, "mark invoice paid", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(*view))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, "get invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(*view))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	req := ListInvoicesRequest{
		Status: r.URL.Query().Get("status"),
		Search: r.URL.Query().Get("search"),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	views, err := h.service.List(r.Context(), req)
	if err != nil {
		h.respondError(w, "list invoices", err)
		return
	}

	out := make([]invoiceResponse, 0, len(views))
	for _, view := range views {
		out = append(out, toResponse(view))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoices": out})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		h.respondError(w, "invoice summary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "invoice not found")
	case errors.Is(err, ErrInvalidStatus):
		httpx.Problem(w, http.StatusConflict, "Invalid Status", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
