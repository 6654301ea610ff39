package service

import (
	"context"
	"fmt"

	"caisse/internal/domain"
	"caisse/internal/ledger"
	"caisse/internal/sequence"

	"github.com/shopspring/decimal"
)

// RecordPayment sets the amount paid on a purchase order, sale or invoice.
// Unreadable amounts count as zero and the amount is clamped to the total.
func (s *Service) RecordPayment(ctx context.Context, kind domain.DocumentKind, id, amount string) (DocumentResult, error) {
	return s.updatePayment(ctx, kind, id, "record payment", func(doc domain.Document) (domain.Document, error) {
		return ledger.ApplyPayment(doc, ledger.ParseAmount(amount))
	})
}

// SetPaymentStatus forces the status of a document. A partial status needs
// the amount actually paid; the other two derive it.
func (s *Service) SetPaymentStatus(ctx context.Context, kind domain.DocumentKind, id string, status domain.PaymentStatus, amount *string) (DocumentResult, error) {
	var value *decimal.Decimal
	if amount != nil {
		parsed := ledger.ParseAmount(*amount)
		value = &parsed
	}
	return s.updatePayment(ctx, kind, id, "set payment status", func(doc domain.Document) (domain.Document, error) {
		return ledger.SetStatus(doc, status, value)
	})
}

func (s *Service) updatePayment(ctx context.Context, kind domain.DocumentKind, id, op string, apply func(domain.Document) (domain.Document, error)) (DocumentResult, error) {
	if kind.Valid() && !kind.Payable() {
		return DocumentResult{}, fmt.Errorf("%s: %w", kind, ledger.ErrNoPaymentSemantics)
	}
	current, unlock, err := s.lockDocument(ctx, kind, id)
	if err != nil {
		return DocumentResult{}, err
	}
	defer unlock()
	if mirroredSale(current) {
		return DocumentResult{}, fmt.Errorf("sale %s is paid through invoice %s: %w", id, current.InvoiceID, ErrConflict)
	}

	var saved domain.Document
	warnings, err := s.write(ctx, op, nil, func(tx *txScope) error {
		doc, err := tx.repo.GetDocument(ctx, kind, id)
		if err != nil {
			return err
		}
		next, err := apply(doc)
		if err != nil {
			return err
		}
		saved, err = tx.repo.SaveDocument(ctx, next)
		if err != nil {
			return err
		}
		if kind == domain.KindInvoice {
			return s.syncMirroredSales(ctx, tx, saved)
		}
		return nil
	})
	if err != nil {
		return DocumentResult{}, err
	}
	return DocumentResult{Document: saved, Warnings: warnings}, nil
}

// PreviewNumber returns the number the next document of kind issued in year
// would get. Nothing is reserved.
func (s *Service) PreviewNumber(ctx context.Context, kind domain.DocumentKind, year int) (string, error) {
	if !sequence.Numbered(kind) {
		return "", invalid("kind", "%q documents are not numbered", kind)
	}
	if year < 1 || year > 9999 {
		return "", invalid("year", "must be between 1 and 9999")
	}
	numbers, err := s.reader().DocumentNumbers(ctx, kind)
	if err != nil {
		return "", err
	}
	return sequence.Next(issuedNumbers(numbers), kind, year), nil
}

type AmountInWords struct {
	InvoiceID string          `json:"invoice_id"`
	Number    string          `json:"number"`
	Total     decimal.Decimal `json:"total_ttc"`
	Figures   string          `json:"figures"`
	Words     string          `json:"words"`
}

// InvoiceAmountInWords spells out the invoice total for printing.
func (s *Service) InvoiceAmountInWords(ctx context.Context, id string) (AmountInWords, error) {
	invoice, err := s.GetDocument(ctx, domain.KindInvoice, id)
	if err != nil {
		return AmountInWords{}, err
	}
	words, err := s.words.Words(invoice.TotalTTC)
	if err != nil {
		return AmountInWords{}, fmt.Errorf("spell invoice %s total: %w", id, err)
	}
	return AmountInWords{
		InvoiceID: invoice.ID,
		Number:    invoice.Number,
		Total:     invoice.TotalTTC,
		Figures:   s.words.Figures(invoice.TotalTTC),
		Words:     words,
	}, nil
}
