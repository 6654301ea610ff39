package http

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"caisse/internal/lock"
	"caisse/internal/logging"
	"caisse/internal/service"
	"caisse/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type api struct {
	t      *testing.T
	router http.Handler
}

func newAPI(t *testing.T, opts RouterOptions) *api {
	t.Helper()
	logger := logging.Discard()
	svc := service.New(store.NewMemory(), lock.NewMemory(), logger, service.Options{
		Now: func() time.Time { return time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC) },
	})
	handler := NewHandler(svc, logger)
	handler.now = func() time.Time { return time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC) }
	opts.Logger = logger
	return &api{t: t, router: NewRouter(handler, opts)}
}

func (a *api) do(method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *api) create(path string, body any) map[string]any {
	a.t.Helper()
	rec := a.do(http.MethodPost, path, body)
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody(a.t, rec)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthAndSecurityHeaders(t *testing.T) {
	a := newAPI(t, RouterOptions{})
	rec := a.do(http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestInvoiceFlow(t *testing.T) {
	a := newAPI(t, RouterOptions{})
	client := a.create("/api/v1/clients", map[string]any{"name": "Boutique Amine"})
	product := a.create("/api/v1/products", map[string]any{
		"name": "Stylo", "retail_price": "100", "vat": "19", "current_quantity": "10",
	})

	invoice := a.create("/api/v1/invoices", map[string]any{
		"counterparty_id": client["id"],
		"payed_amount":    "100",
		"lines":           []map[string]any{{"product_id": product["id"], "quantity": "3"}},
	})
	doc := invoice["document"].(map[string]any)
	assert.Equal(t, "001-2026", doc["number"])
	assert.Equal(t, "partielement-payer", doc["status"])
	assert.Equal(t, "357", doc["total_ttc"])
	id := doc["id"].(string)

	rec := a.do(http.MethodGet, "/api/v1/invoices/"+id+"/amount-in-words", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "trois cent cinquante-sept dinars", decodeBody(t, rec)["words"])

	rec = a.do(http.MethodPost, "/api/v1/invoices/"+id+"/status", map[string]any{"status": "partielement-payer"})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = a.do(http.MethodPost, "/api/v1/invoices/"+id+"/status", map[string]any{"status": "completement-payer"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "0", decodeBody(t, rec)["document"].(map[string]any)["remaining"])

	rec = a.do(http.MethodGet, "/api/v1/sales?invoice_id="+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decodeBody(t, rec)["count"])

	rec = a.do(http.MethodGet, "/api/v1/numbers/next?kind=invoice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "002-2026", decodeBody(t, rec)["number"])

	rec = a.do(http.MethodDelete, "/api/v1/invoices/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(http.MethodGet, "/api/v1/products/"+product["id"].(string), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "10", decodeBody(t, rec)["current_quantity"])
}

func TestErrorMapping(t *testing.T) {
	a := newAPI(t, RouterOptions{})
	client := a.create("/api/v1/clients", map[string]any{"name": "Boutique Amine"})
	product := a.create("/api/v1/products", map[string]any{"name": "Stylo", "retail_price": "100", "current_quantity": "1"})

	rec := a.do(http.MethodPost, "/api/v1/sales", map[string]any{
		"counterparty_id": client["id"],
		"lines":           []map[string]any{{"product_id": product["id"], "quantity": "2"}},
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	shortfalls := decodeBody(t, rec)["shortfalls"].([]any)
	require.Len(t, shortfalls, 1)

	rec = a.do(http.MethodPost, "/api/v1/sales", map[string]any{"counterparty_id": client["id"], "lines": []any{}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["fields"], "lines")

	rec = a.do(http.MethodPost, "/api/v1/sales", map[string]any{
		"counterparty_id": "ghost",
		"lines":           []map[string]any{{"product_id": product["id"], "quantity": "1"}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "counterparty_id", decodeBody(t, rec)["field"])

	rec = a.do(http.MethodPost, "/api/v1/sales", map[string]any{"unexpected": true})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodGet, "/api/v1/invoices/missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(http.MethodPost, "/api/v1/products", map[string]any{"name": "stylo"})
	require.Equal(t, http.StatusConflict, rec.Code)

	proforma := a.create("/api/v1/proformas", map[string]any{
		"counterparty_id": client["id"],
		"lines":           []map[string]any{{"product_id": product["id"], "quantity": "1"}},
	})
	id := proforma["document"].(map[string]any)["id"].(string)
	rec = a.do(http.MethodPost, "/api/v1/proformas/"+id+"/payment", map[string]any{"amount": "1"})
	assert.Contains(t, []int{http.StatusNotFound, http.StatusMethodNotAllowed}, rec.Code)

	rec = a.do(http.MethodPost, "/api/v1/proformas/"+id+"/convert", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = a.do(http.MethodPost, "/api/v1/proformas/"+id+"/convert", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestPurchaseOrderWithNewProduct(t *testing.T) {
	a := newAPI(t, RouterOptions{})
	supplier := a.create("/api/v1/suppliers", map[string]any{"name": "Grossiste Nord"})

	po := a.create("/api/v1/purchase-orders", map[string]any{
		"counterparty_id": supplier["id"],
		"lines": []map[string]any{{
			"quantity":    "5",
			"unit_price":  "12",
			"new_product": map[string]any{"name": "Câble USB", "retail_price": "25"},
		}},
	})
	doc := po["document"].(map[string]any)
	assert.Equal(t, "BA-001-2026", doc["number"])

	rec := a.do(http.MethodGet, "/api/v1/products?search=usb", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decodeBody(t, rec)["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "5", items[0].(map[string]any)["current_quantity"])

	client := a.create("/api/v1/clients", map[string]any{"name": "Boutique Amine"})
	rec = a.do(http.MethodPost, "/api/v1/sales", map[string]any{
		"counterparty_id": client["id"],
		"lines": []map[string]any{{
			"quantity":    "1",
			"new_product": map[string]any{"name": "Autre"},
		}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportCatalog(t *testing.T) {
	a := newAPI(t, RouterOptions{})

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "catalogue.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("name,quantity,retail_price\nStylo,10,100\nCahier,4,30\n"))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/import-excel", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decodeBody(t, rec)
	assert.EqualValues(t, 2, out["created"])
	assert.EqualValues(t, 2, out["total_rows"])
}

func TestRateLimit(t *testing.T) {
	a := newAPI(t, RouterOptions{RateLimitPerMinute: 2})
	for range 2 {
		require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/healthz", nil).Code)
	}
	require.Equal(t, http.StatusTooManyRequests, a.do(http.MethodGet, "/healthz", nil).Code)
}
