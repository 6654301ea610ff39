package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"caisse/internal/domain"
	"caisse/internal/store"
)

type DocumentListFilter struct {
	CounterpartyID string
	Status         domain.PaymentStatus
	InvoiceID      string
	From           *time.Time
	To             *time.Time
	Limit          int
	Offset         int
}

var documentKinds = map[domain.DocumentKind]store.Kind{
	domain.KindPurchaseOrder: store.PurchaseOrders,
	domain.KindSale:          store.Sales,
	domain.KindInvoice:       store.Invoices,
	domain.KindProforma:      store.ProformaInvoices,
}

// documentOptional are the omitempty fields of domain.Document.
var documentOptional = []string{"number", "price_tier", "status", "notes", "invoice_id", "proforma_id"}

// StoreKind maps a document kind onto the store collection holding it.
func StoreKind(kind domain.DocumentKind) (store.Kind, error) {
	k, ok := documentKinds[kind]
	if !ok {
		return "", fmt.Errorf("unknown document kind %q", kind)
	}
	return k, nil
}

func stampDocument(kind domain.DocumentKind) func(*domain.Document, store.Record) {
	return func(d *domain.Document, rec store.Record) {
		d.ID = rec.ID
		d.Kind = kind
		d.CreatedAt = rec.CreatedAt
		d.UpdatedAt = rec.UpdatedAt
	}
}

func (r *Repository) CreateDocument(ctx context.Context, doc domain.Document) (domain.Document, error) {
	kind, err := StoreKind(doc.Kind)
	if err != nil {
		return domain.Document{}, err
	}
	rec, err := r.insert(ctx, kind, doc)
	if err != nil {
		return domain.Document{}, fmt.Errorf("create %s: %w", doc.Kind, err)
	}
	return decode(rec, stampDocument(doc.Kind))
}

func (r *Repository) GetDocument(ctx context.Context, kind domain.DocumentKind, id string) (domain.Document, error) {
	storeKind, err := StoreKind(kind)
	if err != nil {
		return domain.Document{}, err
	}
	rec, err := r.tx.Get(ctx, storeKind, id)
	if err != nil {
		return domain.Document{}, err
	}
	return decode(rec, stampDocument(kind))
}

// SaveDocument overwrites the stored body of doc.
func (r *Repository) SaveDocument(ctx context.Context, doc domain.Document) (domain.Document, error) {
	kind, err := StoreKind(doc.Kind)
	if err != nil {
		return domain.Document{}, err
	}
	rec, err := r.replace(ctx, kind, doc.ID, doc, documentOptional)
	if err != nil {
		return domain.Document{}, fmt.Errorf("save %s %s: %w", doc.Kind, doc.ID, err)
	}
	return decode(rec, stampDocument(doc.Kind))
}

func (r *Repository) DeleteDocument(ctx context.Context, kind domain.DocumentKind, id string) error {
	storeKind, err := StoreKind(kind)
	if err != nil {
		return err
	}
	if err := r.tx.Remove(ctx, storeKind, id); err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, id, err)
	}
	return nil
}

// ListDocuments returns the newest documents first.
func (r *Repository) ListDocuments(ctx context.Context, kind domain.DocumentKind, filter DocumentListFilter) ([]domain.Document, error) {
	storeKind, err := StoreKind(kind)
	if err != nil {
		return nil, err
	}
	query := store.Query{}
	if filter.CounterpartyID != "" {
		query["counterparty_id"] = filter.CounterpartyID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.InvoiceID != "" {
		query["invoice_id"] = filter.InvoiceID
	}
	records, err := r.tx.Find(ctx, storeKind, query)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	docs, err := decodeAll(records, stampDocument(kind))
	if err != nil {
		return nil, err
	}

	filtered := docs[:0]
	for _, d := range docs {
		if filter.From != nil && d.IssueDate.Before(*filter.From) {
			continue
		}
		if filter.To != nil && d.IssueDate.After(*filter.To) {
			continue
		}
		filtered = append(filtered, d)
	}
	newestFirst(filtered,
		func(d domain.Document) time.Time { return d.IssueDate },
		func(d domain.Document) string { return d.ID })
	return page(filtered, filter.Limit, filter.Offset), nil
}

// SalesForInvoice returns the sales mirrored from an invoice.
func (r *Repository) SalesForInvoice(ctx context.Context, invoiceID string) ([]domain.Document, error) {
	records, err := r.tx.Find(ctx, store.Sales, store.Query{"invoice_id": invoiceID})
	if err != nil {
		return nil, fmt.Errorf("find sales of invoice %s: %w", invoiceID, err)
	}
	return decodeAll(records, stampDocument(domain.KindSale))
}

// DocumentNumbers lists every number issued for kind, including empty ones.
func (r *Repository) DocumentNumbers(ctx context.Context, kind domain.DocumentKind) ([]string, error) {
	storeKind, err := StoreKind(kind)
	if err != nil {
		return nil, err
	}
	records, err := r.tx.Find(ctx, storeKind, nil)
	if err != nil {
		return nil, fmt.Errorf("list %s numbers: %w", kind, err)
	}
	numbers := make([]string, 0, len(records))
	for _, rec := range records {
		var head struct {
			Number string `json:"number"`
		}
		if err := json.Unmarshal(rec.Data, &head); err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", kind, rec.ID, err)
		}
		numbers = append(numbers, head.Number)
	}
	return numbers, nil
}
