package receipt

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/bdzhonsoniuk/backend-receipts/internal/common"
)

// DefaultLineWidth is used when a public render request omits line_width.
const DefaultLineWidth = 40

// Handler wires receipt services to HTTP.
type Handler struct {
	Svc          *Service
	Validate     *validator.Validate
	DefaultLimit int
	MaxLimit     int
}

type createItemRequest struct {
	Name     string          `json:"name" validate:"required"`
	Price    decimal.Decimal `json:"price" validate:"required"`
	Quantity int64           `json:"quantity" validate:"required,gt=0"`
}

type createPaymentRequest struct {
	Type   string          `json:"type" validate:"required,oneof=cash cashless"`
	Amount decimal.Decimal `json:"amount" validate:"required"`
}

type createReceiptRequest struct {
	Products []createItemRequest  `json:"products" validate:"required,min=1,dive"`
	Payment  createPaymentRequest `json:"payment" validate:"required"`
}

// Create handles POST /api/v1/receipts.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "receipt service not configured", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var req createReceiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(req); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid receipt payload", validationDetails(err))
			return
		}
	}
	items := make([]LineItem, 0, len(req.Products))
	for _, p := range req.Products {
		items = append(items, LineItem{Name: strings.TrimSpace(p.Name), Price: p.Price, Quantity: p.Quantity})
	}
	kind, err := ParsePaymentKind(req.Payment.Type)
	if err != nil {
		h.writeError(w, err)
		return
	}
	rc, err := h.Svc.CreateReceipt(r.Context(), userID, items, Payment{Kind: kind, Amount: req.Payment.Amount})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": rc})
}

// Get handles GET /api/v1/receipts/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "receipt service not configured", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	rc, err := h.Svc.GetReceipt(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rc})
}

// List handles GET /api/v1/receipts with optional filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "receipt service not configured", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	defaultLimit := h.DefaultLimit
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	maxLimit := h.MaxLimit
	if maxLimit <= 0 {
		maxLimit = 100
	}
	limit, offset := common.ParseLimitOffset(r, defaultLimit, maxLimit)
	receipts, total, err := h.Svc.ListReceipts(r.Context(), userID, filter, limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": receipts,
		"meta": map[string]any{
			"total":  total,
			"limit":  limit,
			"offset": offset,
		},
	})
}

// RenderPublic handles GET /receipts/public/{publicId} and writes plain text.
func (h *Handler) RenderPublic(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "receipt service not configured", nil)
		return
	}
	lineWidth := DefaultLineWidth
	if raw := strings.TrimSpace(r.URL.Query().Get("line_width")); raw != "" {
		parsed, err := parseLineWidth(raw)
		if err != nil {
			h.writeError(w, err)
			return
		}
		lineWidth = parsed
	}
	text, err := h.Svc.RenderByPublicID(r.Context(), chi.URLParam(r, "publicId"), lineWidth)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.PlainText(w, http.StatusOK, text)
}

func parseLineWidth(raw string) (int, error) {
	width := common.AtoiDefault(raw, -1)
	if width < 0 {
		return 0, &common.AppError{
			Code:       "VALIDATION_ERROR",
			Message:    "line_width must be an integer",
			HTTPStatus: http.StatusUnprocessableEntity,
		}
	}
	return width, nil
}

func parseFilter(r *http.Request) (Filter, error) {
	q := r.URL.Query()
	var f Filter
	if raw := strings.TrimSpace(q.Get("date_from")); raw != "" {
		t, err := parseFilterTime(raw)
		if err != nil {
			return Filter{}, common.NewValidationError("date_from must be a date or RFC 3339 timestamp")
		}
		f.DateFrom = &t
	}
	if raw := strings.TrimSpace(q.Get("date_to")); raw != "" {
		t, err := parseFilterTime(raw)
		if err != nil {
			return Filter{}, common.NewValidationError("date_to must be a date or RFC 3339 timestamp")
		}
		f.DateTo = &t
	}
	if raw := strings.TrimSpace(q.Get("min_amount")); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil || d.IsNegative() {
			return Filter{}, common.NewValidationError("min_amount must be a non-negative number")
		}
		f.MinAmount = &d
	}
	if raw := strings.TrimSpace(q.Get("max_amount")); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil || d.IsNegative() {
			return Filter{}, common.NewValidationError("max_amount must be a non-negative number")
		}
		f.MaxAmount = &d
	}
	if raw := strings.TrimSpace(q.Get("payment_type")); raw != "" {
		kind, err := ParsePaymentKind(raw)
		if err != nil {
			return Filter{}, err
		}
		f.PaymentKind = &kind
	}
	return f, nil
}

func parseFilterTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

func validationDetails(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[fe.Namespace()] = fe.Tag()
	}
	return details
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		code := appErr.Code
		if code == "" {
			code = "INTERNAL"
		}
		message := appErr.Message
		if message == "" {
			message = "internal error"
		}
		common.JSONError(w, status, code, message, appErr.Details)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
