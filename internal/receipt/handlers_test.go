package receipt_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/bdzhonsoniuk/backend-receipts/internal/common"
	"github.com/bdzhonsoniuk/backend-receipts/internal/receipt"
)

type memStore struct {
	receipts map[string]receipt.Receipt
	nextID   string
	nextPub  string
}

func newMemStore() *memStore {
	return &memStore{
		receipts: map[string]receipt.Receipt{},
		nextID:   "33333333-3333-3333-3333-333333333333",
		nextPub:  "a1b2c3d4-public",
	}
}

func (m *memStore) Create(_ context.Context, rc receipt.Receipt) (receipt.Receipt, error) {
	rc.ID = m.nextID
	rc.PublicID = m.nextPub
	m.receipts[rc.ID] = rc
	return rc, nil
}

func (m *memStore) GetByID(_ context.Context, id, userID string) (receipt.Receipt, error) {
	rc, ok := m.receipts[id]
	if !ok || rc.UserID != userID {
		return receipt.Receipt{}, common.NewNotFound("receipt not found")
	}
	return rc, nil
}

func (m *memStore) GetByPublicID(_ context.Context, publicID string) (receipt.Receipt, error) {
	for _, rc := range m.receipts {
		if rc.PublicID == publicID {
			return rc, nil
		}
	}
	return receipt.Receipt{}, common.NewNotFound("receipt not found")
}

func (m *memStore) List(_ context.Context, userID string, f receipt.Filter, limit, offset int) ([]receipt.Receipt, int64, error) {
	var out []receipt.Receipt
	for _, rc := range m.receipts {
		if rc.UserID != userID {
			continue
		}
		if f.PaymentKind != nil && rc.PaymentKind != *f.PaymentKind {
			continue
		}
		if f.MinAmount != nil && rc.TotalAmount.LessThan(*f.MinAmount) {
			continue
		}
		out = append(out, rc)
	}
	total := int64(len(out))
	if offset >= len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func newTestRouter(store receipt.Store) chi.Router {
	handler := &receipt.Handler{
		Svc:          &receipt.Service{Store: store, Now: func() time.Time { return time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC) }},
		Validate:     validator.New(),
		DefaultLimit: 10,
		MaxLimit:     100,
	}
	r := chi.NewRouter()
	r.Route("/api/v1/receipts", func(r chi.Router) {
		r.Post("/", handler.Create)
		r.Get("/", handler.List)
		r.Get("/{id}", handler.Get)
	})
	r.Get("/receipts/public/{publicId}", handler.RenderPublic)
	return r
}

func asUser(req *http.Request, userID string) *http.Request {
	return req.WithContext(common.WithUserID(req.Context(), userID))
}

func TestCreateReceiptEndpoint(t *testing.T) {
	store := newMemStore()
	router := newTestRouter(store)

	body := `{
		"products": [
			{"name": "Bread", "price": 10.50, "quantity": 2},
			{"name": "Milk", "price": 25.75, "quantity": 1}
		],
		"payment": {"type": "cash", "amount": 50.00}
	}`
	req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/receipts", strings.NewReader(body)), "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data receipt.Receipt `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.ID)
	require.NotEmpty(t, resp.Data.PublicID)
	require.Equal(t, "46.75", resp.Data.TotalAmount.StringFixed(2))
	require.Equal(t, "3.25", resp.Data.RestAmount.StringFixed(2))
	require.Len(t, resp.Data.Items, 2)
	require.Equal(t, "21.00", resp.Data.Items[0].Total.StringFixed(2))
}

func TestCreateReceiptEndpointRejectsEmptyCart(t *testing.T) {
	router := newTestRouter(newMemStore())
	body := `{"products": [], "payment": {"type": "cash", "amount": 10}}`
	req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/receipts", strings.NewReader(body)), "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
}

func TestCreateReceiptEndpointRequiresAuth(t *testing.T) {
	router := newTestRouter(newMemStore())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/receipts", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetReceiptEndpointOwnerScoped(t *testing.T) {
	store := newMemStore()
	router := newTestRouter(store)

	rc, err := store.Create(context.Background(), receipt.Receipt{
		UserID:        "owner",
		PaymentKind:   receipt.PaymentCash,
		PaymentAmount: decimal.RequireFromString("50.00"),
		TotalAmount:   decimal.RequireFromString("46.75"),
		RestAmount:    decimal.RequireFromString("3.25"),
		CreatedAt:     time.Now(),
	})
	require.NoError(t, err)

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/v1/receipts/"+rc.ID, nil), "owner")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = asUser(httptest.NewRequest(http.MethodGet, "/api/v1/receipts/"+rc.ID, nil), "intruder")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListReceiptsEndpoint(t *testing.T) {
	store := newMemStore()
	router := newTestRouter(store)

	_, err := store.Create(context.Background(), receipt.Receipt{
		UserID:        "user-1",
		PaymentKind:   receipt.PaymentCash,
		TotalAmount:   decimal.RequireFromString("46.75"),
		PaymentAmount: decimal.RequireFromString("50.00"),
		CreatedAt:     time.Now(),
	})
	require.NoError(t, err)

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/v1/receipts?payment_type=cash&min_amount=10&limit=5", nil), "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Data []receipt.Receipt `json:"data"`
		Meta struct {
			Total  int64 `json:"total"`
			Limit  int   `json:"limit"`
			Offset int   `json:"offset"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	require.EqualValues(t, 1, resp.Meta.Total)
	require.Equal(t, 5, resp.Meta.Limit)
}

func TestListReceiptsEndpointBadFilter(t *testing.T) {
	router := newTestRouter(newMemStore())
	req := asUser(httptest.NewRequest(http.MethodGet, "/api/v1/receipts?payment_type=crypto", nil), "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRenderPublicEndpoint(t *testing.T) {
	store := newMemStore()
	router := newTestRouter(store)

	rc, err := store.Create(context.Background(), receipt.Receipt{
		UserID:      "user-1",
		PaymentKind: receipt.PaymentCash,
		Items: []receipt.LineItemTotal{{
			Name:     "Bread",
			Price:    decimal.RequireFromString("10.50"),
			Quantity: 2,
			Total:    decimal.RequireFromString("21.00"),
		}},
		TotalAmount:   decimal.RequireFromString("21.00"),
		PaymentAmount: decimal.RequireFromString("50.00"),
		RestAmount:    decimal.RequireFromString("29.00"),
		CreatedAt:     time.Date(2026, 8, 1, 14, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/receipts/public/"+rc.PublicID+"?line_width=32", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	require.Contains(t, rec.Body.String(), "ФОП Джонсонюк Борис")
	require.Contains(t, rec.Body.String(), "Дякуємо за покупку!")
	require.Contains(t, rec.Body.String(), "01.08.2026 14:30")
}

func TestRenderPublicEndpointWidthBounds(t *testing.T) {
	store := newMemStore()
	router := newTestRouter(store)
	rc, err := store.Create(context.Background(), receipt.Receipt{
		UserID:        "user-1",
		PaymentKind:   receipt.PaymentCash,
		TotalAmount:   decimal.RequireFromString("1.00"),
		PaymentAmount: decimal.RequireFromString("1.00"),
		CreatedAt:     time.Now(),
	})
	require.NoError(t, err)

	for _, width := range []string{"19", "101", "abc"} {
		req := httptest.NewRequest(http.MethodGet, "/receipts/public/"+rc.PublicID+"?line_width="+width, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code, "width %s", width)
	}
}

func TestRenderPublicEndpointUnknownID(t *testing.T) {
	router := newTestRouter(newMemStore())
	req := httptest.NewRequest(http.MethodGet, "/receipts/public/ghost?line_width=32", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRenderPublicEndpointDefaultWidth(t *testing.T) {
	store := newMemStore()
	router := newTestRouter(store)
	rc, err := store.Create(context.Background(), receipt.Receipt{
		UserID:        "user-1",
		PaymentKind:   receipt.PaymentCash,
		TotalAmount:   decimal.RequireFromString("1.00"),
		PaymentAmount: decimal.RequireFromString("1.00"),
		CreatedAt:     time.Now(),
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/receipts/public/"+rc.PublicID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), strings.Repeat("=", receipt.DefaultLineWidth))
}
