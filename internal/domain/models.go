package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	StatusUnpaid  PaymentStatus = "non-payer"
	StatusPartial PaymentStatus = "partielement-payer"
	StatusPaid    PaymentStatus = "completement-payer"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case StatusUnpaid, StatusPartial, StatusPaid:
		return true
	}
	return false
}

type DocumentKind string

const (
	KindPurchaseOrder DocumentKind = "purchase_order"
	KindSale          DocumentKind = "sale"
	KindInvoice       DocumentKind = "invoice"
	KindProforma      DocumentKind = "proforma"
)

func (k DocumentKind) Valid() bool {
	switch k {
	case KindPurchaseOrder, KindSale, KindInvoice, KindProforma:
		return true
	}
	return false
}

// AffectsStock reports whether documents of this kind move product quantities.
// Proformas never do.
func (k DocumentKind) AffectsStock() bool {
	return k == KindPurchaseOrder || k == KindSale || k == KindInvoice
}

// Payable reports whether documents of this kind carry a payment status.
func (k DocumentKind) Payable() bool {
	return k.AffectsStock()
}

type PriceTier string

const (
	PriceRetail    PriceTier = "retail"
	PriceWholesale PriceTier = "wholesale"
)

type Product struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Unit           string          `json:"unit,omitempty"`
	PurchasePrice  decimal.Decimal `json:"purchase_price"`
	RetailPrice    decimal.Decimal `json:"retail_price"`
	WholesalePrice decimal.Decimal `json:"wholesale_price"`
	VAT            decimal.Decimal `json:"vat"`
	Quantity       decimal.Decimal `json:"current_quantity"`
	AlertQuantity  decimal.Decimal `json:"alert_quantity"`
	Category       string          `json:"category,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// LowStock reports whether the quantity on hand reached the alert threshold.
func (p Product) LowStock() bool {
	return p.AlertQuantity.IsPositive() && p.Quantity.LessThanOrEqual(p.AlertQuantity)
}

type LineItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	VAT         decimal.Decimal `json:"vat"`
	SubtotalHT  decimal.Decimal `json:"subtotal_ht"`
	SubtotalTTC decimal.Decimal `json:"subtotal_ttc"`
}

type Totals struct {
	TotalHT  decimal.Decimal `json:"total_ht"`
	TotalTVA decimal.Decimal `json:"total_tva"`
	TotalTTC decimal.Decimal `json:"total_ttc"`
}

type Document struct {
	ID             string          `json:"id"`
	Kind           DocumentKind    `json:"kind"`
	Number         string          `json:"number,omitempty"`
	IssueDate      time.Time       `json:"issue_date"`
	CounterpartyID string          `json:"counterparty_id"`
	Lines          []LineItem      `json:"lines"`
	PriceTier      PriceTier       `json:"price_tier,omitempty"`
	Totals                         // flattened total_ht / total_tva / total_ttc
	PayedAmount    decimal.Decimal `json:"payed_amount"`
	Status         PaymentStatus   `json:"status,omitempty"`
	Remaining      decimal.Decimal `json:"remaining"`
	Notes          string          `json:"notes,omitempty"`
	InvoiceID      string          `json:"invoice_id,omitempty"`
	ProformaID     string          `json:"proforma_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ProductIDs lists the distinct product ids referenced by the document lines, in line order.
func (d Document) ProductIDs() []string {
	return LineProductIDs(d.Lines)
}

func LineProductIDs(lines []LineItem) []string {
	seen := make(map[string]struct{}, len(lines))
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		if line.ProductID == "" {
			continue
		}
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}
	return ids
}

type Client struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	TaxID     string    `json:"tax_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Supplier struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	TaxID     string    `json:"tax_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CatalogImportRow struct {
	Name           string          `json:"name"`
	Unit           string          `json:"unit,omitempty"`
	Category       string          `json:"category,omitempty"`
	Quantity       decimal.Decimal `json:"quantity"`
	PurchasePrice  decimal.Decimal `json:"purchase_price"`
	RetailPrice    decimal.Decimal `json:"retail_price"`
	WholesalePrice decimal.Decimal `json:"wholesale_price"`
	VAT            decimal.Decimal `json:"vat"`
	AlertQuantity  decimal.Decimal `json:"alert_quantity"`
}

type CatalogImportResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}
