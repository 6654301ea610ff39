package stock

import (
	"fmt"
	"strings"

	"caisse/internal/domain"

	"github.com/shopspring/decimal"
)

// PurchaseLine is either an ExistingProductLine or a NewProductLine.
type PurchaseLine interface {
	purchaseLine()
}

// ExistingProductLine buys more of a product already in the catalog.
type ExistingProductLine struct {
	Line domain.LineItem
}

// NewProductLine introduces a product with its first purchase. Product holds
// the catalog fields; its quantity is taken from Line.
type NewProductLine struct {
	Product domain.Product
	Line    domain.LineItem
}

func (ExistingProductLine) purchaseLine() {}
func (NewProductLine) purchaseLine()      {}

type WarningKind string

const (
	WarnMissingProduct WarningKind = "missing_product"
	WarnClamped        WarningKind = "clamped"
)

// Warning reports a stock change that was skipped or altered without
// aborting the enclosing operation.
type Warning struct {
	Kind      WarningKind      `json:"kind"`
	ProductID string           `json:"product_id,omitempty"`
	Message   string           `json:"message"`
	Deficit   *decimal.Decimal `json:"deficit,omitempty"`
}

type Result struct {
	Warnings []Warning
	Created  []domain.Product
}

func (r Result) merge(other Result) Result {
	r.Warnings = append(r.Warnings, other.Warnings...)
	r.Created = append(r.Created, other.Created...)
	return r
}

type Shortfall struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Requested   decimal.Decimal `json:"requested"`
	Available   decimal.Decimal `json:"available"`
}

type InsufficientStockError struct {
	Shortfalls []Shortfall
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		parts = append(parts, fmt.Sprintf("%s: requested %s, available %s",
			s.ProductName, s.Requested.StringFixed(2), s.Available.StringFixed(2)))
	}
	return "insufficient stock: " + strings.Join(parts, "; ")
}
