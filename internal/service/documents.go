package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"caisse/internal/domain"
	"caisse/internal/ledger"
	"caisse/internal/repository"
	"caisse/internal/sequence"
	"caisse/internal/stock"

	"github.com/shopspring/decimal"
)

var maxVAT = decimal.NewFromInt(100)

// LineInput is one line as typed at the till. UnitPrice and VAT default from
// the product when omitted.
type LineInput struct {
	ProductID   string           `json:"product_id"`
	ProductName string           `json:"product_name,omitempty"`
	Quantity    decimal.Decimal  `json:"quantity"`
	UnitPrice   *decimal.Decimal `json:"unit_price,omitempty"`
	VAT         *decimal.Decimal `json:"vat,omitempty"`
}

// NewProductInput carries the catalog fields of a product introduced by a
// purchase order line. Its purchase price is the line's unit price.
type NewProductInput struct {
	Name           string          `json:"name"`
	Unit           string          `json:"unit,omitempty"`
	Category       string          `json:"category,omitempty"`
	RetailPrice    decimal.Decimal `json:"retail_price"`
	WholesalePrice decimal.Decimal `json:"wholesale_price"`
	AlertQuantity  decimal.Decimal `json:"alert_quantity"`
}

type PurchaseLineInput struct {
	LineInput
	NewProduct *NewProductInput `json:"new_product,omitempty"`
}

type DocumentHeader struct {
	CounterpartyID string           `json:"counterparty_id"`
	IssueDate      *time.Time       `json:"issue_date,omitempty"`
	PriceTier      domain.PriceTier `json:"price_tier,omitempty"`
	Notes          string           `json:"notes,omitempty"`
	// PayedAmount is only read on creation. Later payments go through
	// RecordPayment and SetPaymentStatus.
	PayedAmount string `json:"payed_amount,omitempty"`
}

type DocumentInput struct {
	DocumentHeader
	Lines []LineInput `json:"lines"`
}

type PurchaseOrderInput struct {
	DocumentHeader
	Lines []PurchaseLineInput `json:"lines"`
}

func validateHeader(kind domain.DocumentKind, h *DocumentHeader) error {
	h.CounterpartyID = normalizeText(h.CounterpartyID)
	if h.CounterpartyID == "" {
		return invalid("counterparty_id", "is required")
	}
	if kind == domain.KindPurchaseOrder {
		h.PriceTier = ""
		return nil
	}
	switch h.PriceTier {
	case "":
		h.PriceTier = domain.PriceRetail
	case domain.PriceRetail, domain.PriceWholesale:
	default:
		return invalid("price_tier", "unknown price tier %q", h.PriceTier)
	}
	return nil
}

// checkBounded rejects numbers too large or too precise to be real input.
// It runs before any rounding.
func checkBounded(field string, value decimal.Decimal) error {
	if !ledger.Bounded(value) {
		return invalid(field, "must have at most %d integer digits and %d decimals", ledger.MaxIntegerDigits, ledger.MaxScale)
	}
	return nil
}

func validateLine(i int, line *LineInput) error {
	field := fmt.Sprintf("lines[%d]", i)
	line.ProductID = normalizeText(line.ProductID)
	line.ProductName = normalizeText(line.ProductName)
	if err := checkBounded(field+".quantity", line.Quantity); err != nil {
		return err
	}
	if line.UnitPrice != nil {
		if err := checkBounded(field+".unit_price", *line.UnitPrice); err != nil {
			return err
		}
	}
	if line.VAT != nil {
		if err := checkBounded(field+".vat", *line.VAT); err != nil {
			return err
		}
	}
	if !line.Quantity.Round(2).IsPositive() {
		return invalid(field+".quantity", "must be greater than zero")
	}
	if line.UnitPrice != nil && line.UnitPrice.IsNegative() {
		return invalid(field+".unit_price", "must not be negative")
	}
	if line.VAT != nil && (line.VAT.IsNegative() || line.VAT.GreaterThan(maxVAT)) {
		return invalid(field+".vat", "must be between 0 and 100")
	}
	return nil
}

func validateDocumentInput(kind domain.DocumentKind, in *DocumentInput) error {
	if err := validateHeader(kind, &in.DocumentHeader); err != nil {
		return err
	}
	if len(in.Lines) == 0 {
		return invalid("lines", "at least one line is required")
	}
	for i := range in.Lines {
		if err := validateLine(i, &in.Lines[i]); err != nil {
			return err
		}
		if in.Lines[i].ProductID == "" {
			return invalid(fmt.Sprintf("lines[%d].product_id", i), "is required")
		}
	}
	return nil
}

func validatePurchaseOrderInput(in *PurchaseOrderInput) error {
	if err := validateHeader(domain.KindPurchaseOrder, &in.DocumentHeader); err != nil {
		return err
	}
	if len(in.Lines) == 0 {
		return invalid("lines", "at least one line is required")
	}
	newNames := make(map[string]struct{})
	for i := range in.Lines {
		line := &in.Lines[i]
		if err := validateLine(i, &line.LineInput); err != nil {
			return err
		}
		field := fmt.Sprintf("lines[%d]", i)
		switch {
		case line.NewProduct != nil && line.ProductID != "":
			return invalid(field, "either product_id or new_product, not both")
		case line.NewProduct != nil:
			np := line.NewProduct
			np.Name = normalizeText(np.Name)
			if np.Name == "" {
				return invalid(field+".new_product.name", "is required")
			}
			key := strings.ToLower(np.Name)
			if _, dup := newNames[key]; dup {
				return invalid(field+".new_product.name", "product %q is duplicated in this order", np.Name)
			}
			newNames[key] = struct{}{}
			for name, value := range map[string]decimal.Decimal{
				"retail_price":    np.RetailPrice,
				"wholesale_price": np.WholesalePrice,
				"alert_quantity":  np.AlertQuantity,
			} {
				if err := checkBounded(field+".new_product."+name, value); err != nil {
					return err
				}
				if value.IsNegative() {
					return invalid(field+".new_product."+name, "must not be negative")
				}
			}
		case line.ProductID == "":
			return invalid(field+".product_id", "is required")
		}
	}
	return nil
}

func inputProductIDs(lines []LineInput) []string {
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	return ids
}

func (s *Service) issueDate(value *time.Time) time.Time {
	if value == nil || value.IsZero() {
		return s.now()
	}
	return *value
}

func sequenceKeys(kind domain.DocumentKind, issued time.Time) []string {
	if !sequence.Numbered(kind) {
		return nil
	}
	return []string{sequence.LockKey(kind, issued.Year())}
}

func (s *Service) checkCounterparty(ctx context.Context, repo *repository.Repository, kind domain.DocumentKind, id string) error {
	var err error
	what := "client"
	if kind == domain.KindPurchaseOrder {
		what = "supplier"
		_, err = repo.GetSupplier(ctx, id)
	} else {
		_, err = repo.GetClient(ctx, id)
	}
	if errors.Is(err, ErrNotFound) {
		return invalid("counterparty_id", "unknown %s %s", what, id)
	}
	return err
}

// resolveLine snapshots name, price and VAT from the product. A line whose
// product is gone keeps what the caller sent unless lookups are strict.
func (s *Service) resolveLine(ctx context.Context, repo *repository.Repository, kind domain.DocumentKind, tier domain.PriceTier, i int, in LineInput) (domain.LineItem, error) {
	line := domain.LineItem{
		ProductID:   in.ProductID,
		ProductName: in.ProductName,
		Quantity:    in.Quantity,
	}
	product, err := repo.GetProduct(ctx, in.ProductID)
	switch {
	case errors.Is(err, ErrNotFound):
		if s.strict {
			return line, invalid(fmt.Sprintf("lines[%d].product_id", i), "unknown product %s", in.ProductID)
		}
		if line.ProductName == "" {
			line.ProductName = in.ProductID
		}
	case err != nil:
		return line, err
	default:
		line.ProductName = product.Name
		line.UnitPrice = defaultPrice(kind, tier, product)
		line.VAT = product.VAT
	}
	if in.UnitPrice != nil {
		line.UnitPrice = *in.UnitPrice
	}
	if in.VAT != nil {
		line.VAT = *in.VAT
	}
	return ledger.PriceLine(line), nil
}

func defaultPrice(kind domain.DocumentKind, tier domain.PriceTier, product domain.Product) decimal.Decimal {
	switch {
	case kind == domain.KindPurchaseOrder:
		return product.PurchasePrice
	case tier == domain.PriceWholesale:
		return product.WholesalePrice
	default:
		return product.RetailPrice
	}
}

func (s *Service) resolveLines(ctx context.Context, repo *repository.Repository, kind domain.DocumentKind, tier domain.PriceTier, inputs []LineInput) ([]domain.LineItem, error) {
	lines := make([]domain.LineItem, 0, len(inputs))
	for i, in := range inputs {
		line, err := s.resolveLine(ctx, repo, kind, tier, i, in)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func (s *Service) resolvePurchaseLines(ctx context.Context, repo *repository.Repository, inputs []PurchaseLineInput) ([]stock.PurchaseLine, error) {
	lines := make([]stock.PurchaseLine, 0, len(inputs))
	for i, in := range inputs {
		if in.NewProduct == nil {
			line, err := s.resolveLine(ctx, repo, domain.KindPurchaseOrder, "", i, in.LineInput)
			if err != nil {
				return nil, err
			}
			lines = append(lines, stock.ExistingProductLine{Line: line})
			continue
		}

		np := in.NewProduct
		_, err := repo.FindProductByName(ctx, np.Name)
		if err == nil {
			return nil, invalid(fmt.Sprintf("lines[%d].new_product.name", i), "product %q already exists", np.Name)
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		line := domain.LineItem{ProductName: np.Name, Quantity: in.Quantity}
		if in.UnitPrice != nil {
			line.UnitPrice = *in.UnitPrice
		}
		if in.VAT != nil {
			line.VAT = *in.VAT
		}
		line = ledger.PriceLine(line)
		lines = append(lines, stock.NewProductLine{
			Product: domain.Product{
				Name:           np.Name,
				Unit:           normalizeText(np.Unit),
				Category:       normalizeText(np.Category),
				PurchasePrice:  line.UnitPrice,
				RetailPrice:    np.RetailPrice,
				WholesalePrice: np.WholesalePrice,
				VAT:            line.VAT,
				AlertQuantity:  np.AlertQuantity,
			},
			Line: line,
		})
	}
	return lines, nil
}

func purchaseInputLockKeys(lines []PurchaseLineInput) []string {
	var keys []string
	creates := false
	for _, line := range lines {
		if line.NewProduct != nil {
			creates = true
			continue
		}
		keys = append(keys, line.ProductID)
	}
	out := productLockKeys(keys)
	if creates {
		out = append(out, catalogLockKey)
	}
	return out
}

// issuedNumbers drops documents stored without a number.
func issuedNumbers(numbers []string) []string {
	out := numbers[:0]
	for _, n := range numbers {
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

// insertDocument numbers doc when its kind is numbered and stores it.
func (s *Service) insertDocument(ctx context.Context, tx *txScope, doc domain.Document) (domain.Document, error) {
	if sequence.Numbered(doc.Kind) {
		numbers, err := tx.repo.DocumentNumbers(ctx, doc.Kind)
		if err != nil {
			return domain.Document{}, err
		}
		year := doc.IssueDate.Year()
		scan := sequence.Scan(issuedNumbers(numbers), doc.Kind, year)
		for _, bad := range scan.Malformed {
			tx.warnings = append(tx.warnings, stock.Warning{
				Kind:    WarnMalformedNumber,
				Message: fmt.Sprintf("%s number %q does not match the expected pattern and was ignored", doc.Kind, bad),
			})
		}
		doc.Number = sequence.Format(doc.Kind, scan.Max+1, year)
	}
	return tx.repo.CreateDocument(ctx, ledger.Recompute(doc))
}

// commitNew applies the stock effect of a new document, stores it and, for
// invoices, records the sale that mirrors it.
func (s *Service) commitNew(ctx context.Context, tx *txScope, doc domain.Document) (domain.Document, error) {
	doc = ledger.Recompute(doc)
	if doc.Kind == domain.KindSale || doc.Kind == domain.KindInvoice {
		result, err := tx.stock.SaleCreated(ctx, doc.Lines)
		if err != nil {
			return domain.Document{}, err
		}
		tx.warn(result)
	}
	created, err := s.insertDocument(ctx, tx, doc)
	if err != nil {
		return domain.Document{}, err
	}
	if created.Kind == domain.KindInvoice {
		if _, err := tx.repo.CreateDocument(ctx, mirrorSale(created, domain.Document{})); err != nil {
			return domain.Document{}, err
		}
	}
	return created, nil
}

// mirrorSale copies an invoice onto the sale that records it in the sales
// history. The sale never moves stock itself.
func mirrorSale(invoice, sale domain.Document) domain.Document {
	sale.Kind = domain.KindSale
	sale.InvoiceID = invoice.ID
	sale.IssueDate = invoice.IssueDate
	sale.CounterpartyID = invoice.CounterpartyID
	sale.Lines = invoice.Lines
	sale.PriceTier = invoice.PriceTier
	sale.Notes = invoice.Notes
	sale.PayedAmount = invoice.PayedAmount
	return ledger.Recompute(sale)
}

func (s *Service) syncMirroredSales(ctx context.Context, tx *txScope, invoice domain.Document) error {
	sales, err := tx.repo.SalesForInvoice(ctx, invoice.ID)
	if err != nil {
		return err
	}
	for _, sale := range sales {
		if _, err := tx.repo.SaveDocument(ctx, mirrorSale(invoice, sale)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) CreateSale(ctx context.Context, in DocumentInput) (DocumentResult, error) {
	return s.createSalesDocument(ctx, domain.KindSale, in)
}

// CreateInvoice takes the lines out of stock, numbers the invoice and records
// the sale mirroring it.
func (s *Service) CreateInvoice(ctx context.Context, in DocumentInput) (DocumentResult, error) {
	return s.createSalesDocument(ctx, domain.KindInvoice, in)
}

// CreateProforma numbers a quote. Proformas never touch stock or payments.
func (s *Service) CreateProforma(ctx context.Context, in DocumentInput) (DocumentResult, error) {
	return s.createSalesDocument(ctx, domain.KindProforma, in)
}

func (s *Service) createSalesDocument(ctx context.Context, kind domain.DocumentKind, in DocumentInput) (DocumentResult, error) {
	if err := validateDocumentInput(kind, &in); err != nil {
		return DocumentResult{}, err
	}
	issued := s.issueDate(in.IssueDate)
	keys := append(productLockKeys(inputProductIDs(in.Lines)), sequenceKeys(kind, issued)...)

	var created domain.Document
	warnings, err := s.write(ctx, "create "+string(kind), keys, func(tx *txScope) error {
		if err := s.checkCounterparty(ctx, tx.repo, kind, in.CounterpartyID); err != nil {
			return err
		}
		lines, err := s.resolveLines(ctx, tx.repo, kind, in.PriceTier, in.Lines)
		if err != nil {
			return err
		}
		created, err = s.commitNew(ctx, tx, domain.Document{
			Kind:           kind,
			IssueDate:      issued,
			CounterpartyID: in.CounterpartyID,
			Lines:          lines,
			PriceTier:      in.PriceTier,
			Notes:          in.Notes,
			PayedAmount:    ledger.ParseAmount(in.PayedAmount),
		})
		return err
	})
	if err != nil {
		return DocumentResult{}, err
	}
	return DocumentResult{Document: created, Warnings: warnings}, nil
}

// CreatePurchaseOrder adds the purchased quantities to stock, creating the
// products introduced by new-product lines.
func (s *Service) CreatePurchaseOrder(ctx context.Context, in PurchaseOrderInput) (DocumentResult, error) {
	if err := validatePurchaseOrderInput(&in); err != nil {
		return DocumentResult{}, err
	}
	issued := s.issueDate(in.IssueDate)
	keys := append(purchaseInputLockKeys(in.Lines), sequenceKeys(domain.KindPurchaseOrder, issued)...)

	var created domain.Document
	warnings, err := s.write(ctx, "create purchase order", keys, func(tx *txScope) error {
		if err := s.checkCounterparty(ctx, tx.repo, domain.KindPurchaseOrder, in.CounterpartyID); err != nil {
			return err
		}
		lines, err := s.resolvePurchaseLines(ctx, tx.repo, in.Lines)
		if err != nil {
			return err
		}
		resolved, result, err := tx.stock.PurchaseCreated(ctx, lines)
		if err != nil {
			return err
		}
		tx.warn(result)
		created, err = s.insertDocument(ctx, tx, domain.Document{
			Kind:           domain.KindPurchaseOrder,
			IssueDate:      issued,
			CounterpartyID: in.CounterpartyID,
			Lines:          resolved,
			Notes:          in.Notes,
			PayedAmount:    ledger.ParseAmount(in.PayedAmount),
		})
		return err
	})
	if err != nil {
		return DocumentResult{}, err
	}
	return DocumentResult{Document: created, Warnings: warnings}, nil
}

// lockDocument holds the document's own key and reads it. Writers always
// take document keys before product and sequence keys.
func (s *Service) lockDocument(ctx context.Context, kind domain.DocumentKind, id string) (domain.Document, func(), error) {
	if !kind.Valid() {
		return domain.Document{}, nil, invalid("kind", "unknown document kind %q", kind)
	}
	unlock, err := s.lock(ctx, documentLockKey(kind, id))
	if err != nil {
		return domain.Document{}, nil, err
	}
	current, err := s.reader().GetDocument(ctx, kind, id)
	if err != nil {
		unlock()
		return domain.Document{}, nil, err
	}
	return current, unlock, nil
}

func mirroredSale(doc domain.Document) bool {
	return doc.Kind == domain.KindSale && doc.InvoiceID != ""
}

func (s *Service) UpdateSale(ctx context.Context, id string, in DocumentInput) (DocumentResult, error) {
	return s.updateSalesDocument(ctx, domain.KindSale, id, in)
}

// UpdateInvoice reconciles stock against the previous lines and carries the
// change over to the mirrored sale.
func (s *Service) UpdateInvoice(ctx context.Context, id string, in DocumentInput) (DocumentResult, error) {
	return s.updateSalesDocument(ctx, domain.KindInvoice, id, in)
}

func (s *Service) UpdateProforma(ctx context.Context, id string, in DocumentInput) (DocumentResult, error) {
	return s.updateSalesDocument(ctx, domain.KindProforma, id, in)
}

func (s *Service) updateSalesDocument(ctx context.Context, kind domain.DocumentKind, id string, in DocumentInput) (DocumentResult, error) {
	if err := validateDocumentInput(kind, &in); err != nil {
		return DocumentResult{}, err
	}
	current, unlock, err := s.lockDocument(ctx, kind, id)
	if err != nil {
		return DocumentResult{}, err
	}
	defer unlock()
	if mirroredSale(current) {
		return DocumentResult{}, fmt.Errorf("sale %s belongs to invoice %s: %w", id, current.InvoiceID, ErrConflict)
	}

	keys := productLockKeys(current.ProductIDs(), inputProductIDs(in.Lines))
	var saved domain.Document
	warnings, err := s.write(ctx, "update "+string(kind), keys, func(tx *txScope) error {
		old, err := tx.repo.GetDocument(ctx, kind, id)
		if err != nil {
			return err
		}
		if err := s.checkCounterparty(ctx, tx.repo, kind, in.CounterpartyID); err != nil {
			return err
		}
		lines, err := s.resolveLines(ctx, tx.repo, kind, in.PriceTier, in.Lines)
		if err != nil {
			return err
		}

		next := old
		next.CounterpartyID = in.CounterpartyID
		next.PriceTier = in.PriceTier
		next.Notes = in.Notes
		next.Lines = lines
		if in.IssueDate != nil && !in.IssueDate.IsZero() {
			next.IssueDate = *in.IssueDate
		}
		next = ledger.Recompute(next)

		if kind.AffectsStock() {
			result, err := tx.stock.SaleEdited(ctx, old.Lines, next.Lines)
			if err != nil {
				return err
			}
			tx.warn(result)
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

// UpdatePurchaseOrder takes the previous lines back out of stock and applies
// the new ones. Products created by the original order stay in the catalog.
func (s *Service) UpdatePurchaseOrder(ctx context.Context, id string, in PurchaseOrderInput) (DocumentResult, error) {
	if err := validatePurchaseOrderInput(&in); err != nil {
		return DocumentResult{}, err
	}
	current, unlock, err := s.lockDocument(ctx, domain.KindPurchaseOrder, id)
	if err != nil {
		return DocumentResult{}, err
	}
	defer unlock()

	keys := append(productLockKeys(current.ProductIDs()), purchaseInputLockKeys(in.Lines)...)
	var saved domain.Document
	warnings, err := s.write(ctx, "update purchase order", keys, func(tx *txScope) error {
		old, err := tx.repo.GetDocument(ctx, domain.KindPurchaseOrder, id)
		if err != nil {
			return err
		}
		if err := s.checkCounterparty(ctx, tx.repo, domain.KindPurchaseOrder, in.CounterpartyID); err != nil {
			return err
		}
		lines, err := s.resolvePurchaseLines(ctx, tx.repo, in.Lines)
		if err != nil {
			return err
		}
		resolved, result, err := tx.stock.PurchaseEdited(ctx, old.Lines, lines)
		if err != nil {
			return err
		}
		tx.warn(result)

		next := old
		next.CounterpartyID = in.CounterpartyID
		next.Notes = in.Notes
		next.Lines = resolved
		if in.IssueDate != nil && !in.IssueDate.IsZero() {
			next.IssueDate = *in.IssueDate
		}
		saved, err = tx.repo.SaveDocument(ctx, ledger.Recompute(next))
		return err
	})
	if err != nil {
		return DocumentResult{}, err
	}
	return DocumentResult{Document: saved, Warnings: warnings}, nil
}

// DeleteDocument removes a document and reverses its stock effect. Deleting
// an invoice keeps its mirrored sale as history; that sale, and proformas,
// never move stock.
func (s *Service) DeleteDocument(ctx context.Context, kind domain.DocumentKind, id string) (DocumentResult, error) {
	current, unlock, err := s.lockDocument(ctx, kind, id)
	if err != nil {
		return DocumentResult{}, err
	}
	defer unlock()

	var keys []string
	if kind.AffectsStock() && !mirroredSale(current) {
		keys = productLockKeys(current.ProductIDs())
	}
	if mirroredSale(current) {
		keys = append(keys, documentLockKey(domain.KindInvoice, current.InvoiceID))
	}
	if kind == domain.KindInvoice && current.ProformaID != "" {
		keys = append(keys, documentLockKey(domain.KindProforma, current.ProformaID))
	}

	warnings, err := s.write(ctx, "delete "+string(kind), keys, func(tx *txScope) error {
		doc, err := tx.repo.GetDocument(ctx, kind, id)
		if err != nil {
			return err
		}
		var result stock.Result
		switch {
		case kind == domain.KindPurchaseOrder:
			result, err = tx.stock.PurchaseDeleted(ctx, doc.Lines)
		case kind == domain.KindInvoice, kind == domain.KindSale && !mirroredSale(doc):
			result, err = tx.stock.SaleDeleted(ctx, doc.Lines)
		}
		if err != nil {
			return err
		}
		tx.warn(result)

		if kind == domain.KindInvoice && doc.ProformaID != "" {
			if err := releaseProforma(ctx, tx, doc); err != nil {
				return err
			}
		}
		return tx.repo.DeleteDocument(ctx, kind, id)
	})
	if err != nil {
		return DocumentResult{}, err
	}
	return DocumentResult{Document: current, Warnings: warnings}, nil
}

// releaseProforma lets a proforma be converted again once the invoice made
// from it is gone.
func releaseProforma(ctx context.Context, tx *txScope, invoice domain.Document) error {
	proforma, err := tx.repo.GetDocument(ctx, domain.KindProforma, invoice.ProformaID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if proforma.InvoiceID != invoice.ID {
		return nil
	}
	proforma.InvoiceID = ""
	_, err = tx.repo.SaveDocument(ctx, proforma)
	return err
}

// ConvertProforma issues an invoice carrying the proforma's lines at their
// captured prices. The stock check applies as for any invoice.
func (s *Service) ConvertProforma(ctx context.Context, id string, issueDate *time.Time) (DocumentResult, error) {
	current, unlock, err := s.lockDocument(ctx, domain.KindProforma, id)
	if err != nil {
		return DocumentResult{}, err
	}
	defer unlock()
	if current.InvoiceID != "" {
		return DocumentResult{}, fmt.Errorf("proforma %s already converted to invoice %s: %w", id, current.InvoiceID, ErrConflict)
	}

	issued := s.issueDate(issueDate)
	keys := append(productLockKeys(current.ProductIDs()), sequenceKeys(domain.KindInvoice, issued)...)
	var invoice domain.Document
	warnings, err := s.write(ctx, "convert proforma", keys, func(tx *txScope) error {
		proforma, err := tx.repo.GetDocument(ctx, domain.KindProforma, id)
		if err != nil {
			return err
		}
		invoice, err = s.commitNew(ctx, tx, domain.Document{
			Kind:           domain.KindInvoice,
			IssueDate:      issued,
			CounterpartyID: proforma.CounterpartyID,
			Lines:          proforma.Lines,
			PriceTier:      proforma.PriceTier,
			Notes:          proforma.Notes,
			ProformaID:     proforma.ID,
		})
		if err != nil {
			return err
		}
		proforma.InvoiceID = invoice.ID
		_, err = tx.repo.SaveDocument(ctx, proforma)
		return err
	})
	if err != nil {
		return DocumentResult{}, err
	}
	return DocumentResult{Document: invoice, Warnings: warnings}, nil
}

func (s *Service) GetDocument(ctx context.Context, kind domain.DocumentKind, id string) (domain.Document, error) {
	if !kind.Valid() {
		return domain.Document{}, invalid("kind", "unknown document kind %q", kind)
	}
	doc, err := s.reader().GetDocument(ctx, kind, id)
	if err != nil {
		return domain.Document{}, err
	}
	return ledger.Recompute(doc), nil
}

func (s *Service) ListDocuments(ctx context.Context, kind domain.DocumentKind, filter repository.DocumentListFilter) ([]domain.Document, error) {
	if !kind.Valid() {
		return nil, invalid("kind", "unknown document kind %q", kind)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, invalid("status", "unknown payment status %q", filter.Status)
	}
	docs, err := s.reader().ListDocuments(ctx, kind, filter)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		docs[i] = ledger.Recompute(docs[i])
	}
	return docs, nil
}
