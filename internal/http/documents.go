package http

import (
	"net/http"
	"strconv"
	"strings"

	"caisse/internal/domain"
	"caisse/internal/repository"
	"caisse/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type lineRequest struct {
	ProductID   string                   `json:"product_id" validate:"max=64"`
	ProductName string                   `json:"product_name" validate:"max=200"`
	Quantity    decimal.Decimal          `json:"quantity"`
	UnitPrice   *decimal.Decimal         `json:"unit_price"`
	VAT         *decimal.Decimal         `json:"vat"`
	NewProduct  *service.NewProductInput `json:"new_product"`
}

type documentRequest struct {
	CounterpartyID string        `json:"counterparty_id" validate:"required,max=64"`
	IssueDate      string        `json:"issue_date"`
	PriceTier      string        `json:"price_tier" validate:"omitempty,oneof=retail wholesale"`
	Notes          string        `json:"notes" validate:"max=2000"`
	PayedAmount    string        `json:"payed_amount" validate:"max=50"`
	Lines          []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (line lineRequest) input() service.LineInput {
	return service.LineInput{
		ProductID:   line.ProductID,
		ProductName: line.ProductName,
		Quantity:    line.Quantity,
		UnitPrice:   line.UnitPrice,
		VAT:         line.VAT,
	}
}

func (req documentRequest) header() (service.DocumentHeader, error) {
	issued, err := parseOptionalTime(req.IssueDate)
	if err != nil {
		return service.DocumentHeader{}, err
	}
	return service.DocumentHeader{
		CounterpartyID: req.CounterpartyID,
		IssueDate:      issued,
		PriceTier:      domain.PriceTier(req.PriceTier),
		Notes:          req.Notes,
		PayedAmount:    req.PayedAmount,
	}, nil
}

func (req documentRequest) salesInput() (service.DocumentInput, error) {
	header, err := req.header()
	if err != nil {
		return service.DocumentInput{}, err
	}
	in := service.DocumentInput{DocumentHeader: header}
	for _, line := range req.Lines {
		if line.NewProduct != nil {
			return service.DocumentInput{}, errNewProductOnSale
		}
		in.Lines = append(in.Lines, line.input())
	}
	return in, nil
}

func (req documentRequest) purchaseInput() (service.PurchaseOrderInput, error) {
	header, err := req.header()
	if err != nil {
		return service.PurchaseOrderInput{}, err
	}
	in := service.PurchaseOrderInput{DocumentHeader: header}
	for _, line := range req.Lines {
		in.Lines = append(in.Lines, service.PurchaseLineInput{LineInput: line.input(), NewProduct: line.NewProduct})
	}
	return in, nil
}

func (h *Handler) CreateDocument(kind domain.DocumentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req documentRequest
		if !h.decodeValid(w, r, &req) {
			return
		}
		result, err := h.saveDocument(r, kind, "", req)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, result)
	}
}

func (h *Handler) UpdateDocument(kind domain.DocumentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req documentRequest
		if !h.decodeValid(w, r, &req) {
			return
		}
		result, err := h.saveDocument(r, kind, chi.URLParam(r, "id"), req)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// saveDocument creates the document when id is empty and updates it otherwise.
func (h *Handler) saveDocument(r *http.Request, kind domain.DocumentKind, id string, req documentRequest) (service.DocumentResult, error) {
	ctx := r.Context()
	if kind == domain.KindPurchaseOrder {
		in, err := req.purchaseInput()
		if err != nil {
			return service.DocumentResult{}, badRequest(err)
		}
		if id == "" {
			return h.svc.CreatePurchaseOrder(ctx, in)
		}
		return h.svc.UpdatePurchaseOrder(ctx, id, in)
	}

	in, err := req.salesInput()
	if err != nil {
		return service.DocumentResult{}, badRequest(err)
	}
	switch {
	case kind == domain.KindSale && id == "":
		return h.svc.CreateSale(ctx, in)
	case kind == domain.KindSale:
		return h.svc.UpdateSale(ctx, id, in)
	case kind == domain.KindInvoice && id == "":
		return h.svc.CreateInvoice(ctx, in)
	case kind == domain.KindInvoice:
		return h.svc.UpdateInvoice(ctx, id, in)
	case id == "":
		return h.svc.CreateProforma(ctx, in)
	default:
		return h.svc.UpdateProforma(ctx, id, in)
	}
}

func (h *Handler) GetDocument(kind domain.DocumentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := h.svc.GetDocument(r.Context(), kind, chi.URLParam(r, "id"))
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

func (h *Handler) ListDocuments(kind domain.DocumentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		limit, offset, err := parsePaging(query.Get("limit"), query.Get("offset"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		from, err := parseOptionalTime(query.Get("from"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		to, err := parseOptionalTime(query.Get("to"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		items, err := h.svc.ListDocuments(r.Context(), kind, repository.DocumentListFilter{
			CounterpartyID: strings.TrimSpace(query.Get("counterparty_id")),
			Status:         domain.PaymentStatus(strings.TrimSpace(query.Get("status"))),
			InvoiceID:      strings.TrimSpace(query.Get("invoice_id")),
			From:           from,
			To:             to,
			Limit:          limit,
			Offset:         offset,
		})
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
	}
}

func (h *Handler) DeleteDocument(kind domain.DocumentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		result, err := h.svc.DeleteDocument(r.Context(), kind, id)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": id, "warnings": result.Warnings})
	}
}

type paymentRequest struct {
	Amount string `json:"amount" validate:"max=50"`
}

func (h *Handler) RecordPayment(kind domain.DocumentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req paymentRequest
		if !h.decodeValid(w, r, &req) {
			return
		}
		result, err := h.svc.RecordPayment(r.Context(), kind, chi.URLParam(r, "id"), req.Amount)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

type statusRequest struct {
	Status string  `json:"status" validate:"required,oneof=non-payer partielement-payer completement-payer"`
	Amount *string `json:"amount" validate:"omitempty,max=50"`
}

func (h *Handler) SetPaymentStatus(kind domain.DocumentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req statusRequest
		if !h.decodeValid(w, r, &req) {
			return
		}
		result, err := h.svc.SetPaymentStatus(r.Context(), kind, chi.URLParam(r, "id"), domain.PaymentStatus(req.Status), req.Amount)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

type convertRequest struct {
	IssueDate string `json:"issue_date"`
}

func (h *Handler) ConvertProforma(w http.ResponseWriter, r *http.Request) {
	var req convertRequest
	if r.ContentLength != 0 && !h.decodeValid(w, r, &req) {
		return
	}
	issued, err := parseOptionalTime(req.IssueDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.svc.ConvertProforma(r.Context(), chi.URLParam(r, "id"), issued)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) InvoiceAmountInWords(w http.ResponseWriter, r *http.Request) {
	words, err := h.svc.InvoiceAmountInWords(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, words)
}

func (h *Handler) PreviewNumber(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	kind := domain.DocumentKind(strings.TrimSpace(query.Get("kind")))
	year := h.now().Year()
	if raw := strings.TrimSpace(query.Get("year")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid year: "+raw)
			return
		}
		year = parsed
	}
	number, err := h.svc.PreviewNumber(r.Context(), kind, year)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"kind": kind, "year": year, "number": number})
}
