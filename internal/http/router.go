package http

import (
	"log/slog"
	"net/http"
	"time"

	"caisse/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterOptions struct {
	Logger             *slog.Logger
	RequestTimeout     time.Duration
	RateLimitPerMinute int
}

// documentRoutes maps URL segments onto document kinds.
var documentRoutes = []struct {
	path string
	kind domain.DocumentKind
}{
	{"purchase-orders", domain.KindPurchaseOrder},
	{"sales", domain.KindSale},
	{"invoices", domain.KindInvoice},
	{"proformas", domain.KindProforma},
}

func NewRouter(handler *Handler, opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(Logger(logger))
	r.Use(Recoverer(logger))
	r.Use(Timeout(opts.RequestTimeout))
	r.Use(SecureHeaders(logger))
	r.Use(CORS)
	r.Use(RateLimit(opts.RateLimitPerMinute))

	r.Get("/healthz", handler.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", handler.ListProducts)
		r.Post("/products", handler.CreateProduct)
		r.Post("/products/import-excel", handler.ImportCatalog)
		r.Get("/products/{id}", handler.GetProduct)
		r.Patch("/products/{id}", handler.PatchProduct)

		r.Get("/clients", handler.ListClients)
		r.Post("/clients", handler.CreateClient)
		r.Get("/clients/{id}", handler.GetClient)
		r.Get("/suppliers", handler.ListSuppliers)
		r.Post("/suppliers", handler.CreateSupplier)
		r.Get("/suppliers/{id}", handler.GetSupplier)

		for _, route := range documentRoutes {
			kind := route.kind
			r.Route("/"+route.path, func(r chi.Router) {
				r.Get("/", handler.ListDocuments(kind))
				r.Post("/", handler.CreateDocument(kind))
				r.Get("/{id}", handler.GetDocument(kind))
				r.Put("/{id}", handler.UpdateDocument(kind))
				r.Delete("/{id}", handler.DeleteDocument(kind))
				if kind.Payable() {
					r.Post("/{id}/payment", handler.RecordPayment(kind))
					r.Post("/{id}/status", handler.SetPaymentStatus(kind))
				}
				switch kind {
				case domain.KindInvoice:
					r.Get("/{id}/amount-in-words", handler.InvoiceAmountInWords)
				case domain.KindProforma:
					r.Post("/{id}/convert", handler.ConvertProforma)
				}
			})
		}

		r.Get("/numbers/next", handler.PreviewNumber)
	})

	return r
}
