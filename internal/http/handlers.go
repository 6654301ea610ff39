package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"caisse/internal/excel"
	"caisse/internal/repository"
	"caisse/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const maxUploadSize = 32 << 20

type Handler struct {
	svc      *service.Service
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

func NewHandler(svc *service.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	validate := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names in validation errors.
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{svc: svc, logger: logger, validate: validate, now: time.Now}
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type productRequest struct {
	Name           string          `json:"name" validate:"required,max=200"`
	Unit           string          `json:"unit" validate:"max=50"`
	Category       string          `json:"category" validate:"max=100"`
	PurchasePrice  decimal.Decimal `json:"purchase_price"`
	RetailPrice    decimal.Decimal `json:"retail_price"`
	WholesalePrice decimal.Decimal `json:"wholesale_price"`
	VAT            decimal.Decimal `json:"vat"`
	Quantity       decimal.Decimal `json:"current_quantity"`
	AlertQuantity  decimal.Decimal `json:"alert_quantity"`
}

type productPatchRequest struct {
	Name           *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Unit           *string          `json:"unit" validate:"omitempty,max=50"`
	Category       *string          `json:"category" validate:"omitempty,max=100"`
	PurchasePrice  *decimal.Decimal `json:"purchase_price"`
	RetailPrice    *decimal.Decimal `json:"retail_price"`
	WholesalePrice *decimal.Decimal `json:"wholesale_price"`
	VAT            *decimal.Decimal `json:"vat"`
	AlertQuantity  *decimal.Decimal `json:"alert_quantity"`
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, offset, err := parsePaging(query.Get("limit"), query.Get("offset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	lowStock := false
	if raw := strings.TrimSpace(query.Get("low_stock")); raw != "" {
		lowStock, err = strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "low_stock must be true or false")
			return
		}
	}

	items, err := h.svc.ListProducts(r.Context(), repository.ProductListFilter{
		Search:   query.Get("search"),
		LowStock: lowStock,
		Category: strings.TrimSpace(query.Get("category")),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.svc.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	created, err := h.svc.CreateProduct(r.Context(), service.ProductInput(req))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) PatchProduct(w http.ResponseWriter, r *http.Request) {
	var req productPatchRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	updated, err := h.svc.PatchProduct(r.Context(), chi.URLParam(r, "id"), service.ProductPatch(req))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) ImportCatalog(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	rows, err := excel.ParseCatalog(header.Filename, file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.svc.ImportCatalog(r.Context(), rows)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"file_name":  header.Filename,
		"total_rows": len(rows),
		"created":    result.Created,
		"updated":    result.Updated,
		"skipped":    result.Skipped,
	})
}

type counterpartyRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Phone   string `json:"phone" validate:"max=50"`
	Address string `json:"address" validate:"max=500"`
	TaxID   string `json:"tax_id" validate:"max=50"`
}

func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req counterpartyRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	created, err := h.svc.CreateClient(r.Context(), service.CounterpartyInput(req))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	client, err := h.svc.GetClient(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, offset, err := parsePaging(query.Get("limit"), query.Get("offset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := h.svc.ListClients(r.Context(), query.Get("search"), limit, offset)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (h *Handler) CreateSupplier(w http.ResponseWriter, r *http.Request) {
	var req counterpartyRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	created, err := h.svc.CreateSupplier(r.Context(), service.CounterpartyInput(req))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) GetSupplier(w http.ResponseWriter, r *http.Request) {
	supplier, err := h.svc.GetSupplier(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, supplier)
}

func (h *Handler) ListSuppliers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, offset, err := parsePaging(query.Get("limit"), query.Get("offset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := h.svc.ListSuppliers(r.Context(), query.Get("search"), limit, offset)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

// decodeValid decodes and validates the request body, answering 400 itself
// when either step fails.
func (h *Handler) decodeValid(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := decodeJSON(r, out); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	if err := h.validate.Struct(out); err != nil {
		fields := make(map[string]string)
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fieldErr := range verrs {
				key := fieldErr.Namespace()
				if _, rest, ok := strings.Cut(key, "."); ok {
					key = rest
				}
				fields[key] = fieldErr.Tag()
			}
		}
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "validation failed", "fields": fields})
		return false
	}
	return true
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func parseOptionalInt(raw string, defaultValue int) (int, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer: %s", raw)
	}
	if parsed < 0 {
		return 0, fmt.Errorf("value cannot be negative")
	}
	return parsed, nil
}

func parsePaging(rawLimit, rawOffset string) (limit, offset int, err error) {
	limit, err = parseOptionalInt(rawLimit, 200)
	if err != nil {
		return 0, 0, err
	}
	offset, err = parseOptionalInt(rawOffset, 0)
	if err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func parseOptionalTime(raw string) (*time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return &parsed, nil
		}
	}
	return nil, fmt.Errorf("invalid time: %s", raw)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
