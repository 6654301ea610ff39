package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"caisse/internal/ledger"
	"caisse/internal/service"
	"caisse/internal/stock"
)

var errNewProductOnSale = errors.New("new_product is only accepted on purchase order lines")

type requestError struct {
	err error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func badRequest(err error) error {
	return &requestError{err: err}
}

// writeServiceError maps service errors onto HTTP statuses. Anything
// unrecognized is logged and reported as a 500 without details.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		reqErr   *requestError
		validErr *service.ValidationError
		shortage *stock.InsufficientStockError
	)
	switch {
	case errors.As(err, &reqErr):
		writeError(w, http.StatusBadRequest, reqErr.Error())
	case errors.As(err, &validErr):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": validErr.Error(), "field": validErr.Field})
	case errors.As(err, &shortage):
		writeJSON(w, http.StatusConflict, map[string]any{"error": shortage.Error(), "shortfalls": shortage.Shortfalls})
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrConflict), errors.Is(err, service.ErrDuplicate), errors.Is(err, stock.ErrProductNotFound):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrNoPaymentSemantics),
		errors.Is(err, ledger.ErrUnknownStatus),
		errors.Is(err, ledger.ErrAmountRequired),
		errors.Is(err, ledger.ErrInconsistentAmount),
		errors.Is(err, ledger.ErrConflictingInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		h.logger.WarnContext(r.Context(), "request timed out", slog.String("path", r.URL.Path), slog.Any("error", err))
		writeError(w, http.StatusServiceUnavailable, "busy, try again")
	default:
		h.logger.ErrorContext(r.Context(), "request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
