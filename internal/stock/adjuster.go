// Package stock keeps product quantities consistent with the net effect of
// every active purchase order, sale and invoice.
package stock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"caisse/internal/domain"

	"github.com/shopspring/decimal"
)

var ErrProductNotFound = errors.New("product not found")

// ProductStore is the slice of the product repository the adjuster needs.
// Implementations are expected to be bound to the caller's transaction.
// GetProduct must return an error wrapping ErrProductNotFound for unknown ids.
type ProductStore interface {
	GetProduct(ctx context.Context, id string) (domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error)
	SetProductQuantity(ctx context.Context, id string, quantity decimal.Decimal) error
}

type Config struct {
	// StrictProductLookup fails the whole operation when a line references a
	// product that no longer exists instead of skipping that line.
	StrictProductLookup bool
}

type Adjuster struct {
	products ProductStore
	strict   bool
}

func New(products ProductStore, cfg Config) *Adjuster {
	return &Adjuster{products: products, strict: cfg.StrictProductLookup}
}

// PurchaseCreated adds purchased quantities to stock. New-product lines
// create their product with the purchased quantity on hand. The returned
// lines all reference a concrete product id.
func (a *Adjuster) PurchaseCreated(ctx context.Context, lines []PurchaseLine) ([]domain.LineItem, Result, error) {
	var result Result
	resolved := make([]domain.LineItem, 0, len(lines))
	existing := make([]domain.LineItem, 0, len(lines))

	for _, line := range lines {
		switch l := line.(type) {
		case NewProductLine:
			product := l.Product
			product.Name = strings.TrimSpace(product.Name)
			product.Quantity = l.Line.Quantity
			created, err := a.products.CreateProduct(ctx, product)
			if err != nil {
				return nil, Result{}, fmt.Errorf("create product %q from purchase line: %w", product.Name, err)
			}
			result.Created = append(result.Created, created)
			item := l.Line
			item.ProductID = created.ID
			item.ProductName = created.Name
			resolved = append(resolved, item)
		case ExistingProductLine:
			resolved = append(resolved, l.Line)
			existing = append(existing, l.Line)
		default:
			return nil, Result{}, fmt.Errorf("unsupported purchase line %T", line)
		}
	}

	if err := a.applyAll(ctx, existing, decimal.NewFromInt(1), &result); err != nil {
		return nil, Result{}, err
	}
	return resolved, result, nil
}

// PurchaseDeleted takes the purchased quantities back out of stock. Products
// created by the purchase order stay in the catalog.
func (a *Adjuster) PurchaseDeleted(ctx context.Context, lines []domain.LineItem) (Result, error) {
	var result Result
	if err := a.applyAll(ctx, lines, decimal.NewFromInt(-1), &result); err != nil {
		return Result{}, err
	}
	return result, nil
}

// PurchaseEdited removes the old lines' effect, then applies the new lines.
func (a *Adjuster) PurchaseEdited(ctx context.Context, oldLines []domain.LineItem, newLines []PurchaseLine) ([]domain.LineItem, Result, error) {
	removed, err := a.PurchaseDeleted(ctx, oldLines)
	if err != nil {
		return nil, Result{}, err
	}
	resolved, applied, err := a.PurchaseCreated(ctx, newLines)
	if err != nil {
		return nil, Result{}, err
	}
	return resolved, removed.merge(applied), nil
}

// ValidateSale checks that every product has enough stock for the lines.
// Quantities of restore are counted as available, which is how an edit sees
// the stock it is about to give back. Nothing is written.
func (a *Adjuster) ValidateSale(ctx context.Context, lines, restore []domain.LineItem) error {
	needed := aggregate(lines)
	returned := aggregate(restore)

	var shortfalls []Shortfall
	for _, id := range needed.keys {
		entry := needed.entries[id]
		product, err := a.products.GetProduct(ctx, id)
		if errors.Is(err, ErrProductNotFound) {
			if a.strict {
				return fmt.Errorf("%s (%s): %w", entry.name, id, ErrProductNotFound)
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("load product %s: %w", id, err)
		}

		available := product.Quantity
		if back, ok := returned.entries[id]; ok {
			available = available.Add(back.qty)
		}
		if entry.qty.GreaterThan(available) {
			shortfalls = append(shortfalls, Shortfall{
				ProductID:   id,
				ProductName: product.Name,
				Requested:   entry.qty,
				Available:   available,
			})
		}
	}
	if len(shortfalls) > 0 {
		return &InsufficientStockError{Shortfalls: shortfalls}
	}
	return nil
}

// SaleCreated validates, then takes the sold quantities out of stock.
func (a *Adjuster) SaleCreated(ctx context.Context, lines []domain.LineItem) (Result, error) {
	if err := a.ValidateSale(ctx, lines, nil); err != nil {
		return Result{}, err
	}
	var result Result
	if err := a.applyAll(ctx, lines, decimal.NewFromInt(-1), &result); err != nil {
		return Result{}, err
	}
	return result, nil
}

// SaleEdited gives back every old line, then takes every new line, in two
// complete passes. Validation runs first against the post-restore stock.
func (a *Adjuster) SaleEdited(ctx context.Context, oldLines, newLines []domain.LineItem) (Result, error) {
	if err := a.ValidateSale(ctx, newLines, oldLines); err != nil {
		return Result{}, err
	}
	var result Result
	if err := a.applyAll(ctx, oldLines, decimal.NewFromInt(1), &result); err != nil {
		return Result{}, err
	}
	if err := a.applyAll(ctx, newLines, decimal.NewFromInt(-1), &result); err != nil {
		return Result{}, err
	}
	return result, nil
}

// SaleDeleted gives the sold quantities back to stock.
func (a *Adjuster) SaleDeleted(ctx context.Context, lines []domain.LineItem) (Result, error) {
	var result Result
	if err := a.applyAll(ctx, lines, decimal.NewFromInt(1), &result); err != nil {
		return Result{}, err
	}
	return result, nil
}

func (a *Adjuster) applyAll(ctx context.Context, lines []domain.LineItem, sign decimal.Decimal, result *Result) error {
	agg := aggregate(lines)
	for _, id := range agg.keys {
		entry := agg.entries[id]
		if entry.qty.IsZero() {
			continue
		}
		if err := a.adjust(ctx, id, entry.name, entry.qty.Mul(sign), result); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adjuster) adjust(ctx context.Context, id, name string, delta decimal.Decimal, result *Result) error {
	product, err := a.products.GetProduct(ctx, id)
	if errors.Is(err, ErrProductNotFound) {
		if a.strict {
			return fmt.Errorf("%s (%s): %w", name, id, ErrProductNotFound)
		}
		result.Warnings = append(result.Warnings, Warning{
			Kind:      WarnMissingProduct,
			ProductID: id,
			Message:   fmt.Sprintf("product %q no longer exists; stock change of %s skipped", name, delta.StringFixed(2)),
		})
		return nil
	}
	if err != nil {
		return fmt.Errorf("load product %s: %w", id, err)
	}

	updated := product.Quantity.Add(delta)
	if updated.IsNegative() {
		deficit := updated.Neg()
		result.Warnings = append(result.Warnings, Warning{
			Kind:      WarnClamped,
			ProductID: id,
			Message:   fmt.Sprintf("stock of %q would drop to %s; stored as 0", product.Name, updated.StringFixed(2)),
			Deficit:   &deficit,
		})
		updated = decimal.Zero
	}
	if err := a.products.SetProductQuantity(ctx, id, updated); err != nil {
		return fmt.Errorf("update stock of %s: %w", id, err)
	}
	return nil
}

type aggregateLine struct {
	name string
	qty  decimal.Decimal
}

type aggregation struct {
	keys    []string
	entries map[string]*aggregateLine
}

// aggregate sums quantities per product so a product listed on several lines
// is validated and adjusted once.
func aggregate(lines []domain.LineItem) aggregation {
	agg := aggregation{entries: make(map[string]*aggregateLine, len(lines))}
	for _, line := range lines {
		id := strings.TrimSpace(line.ProductID)
		if id == "" {
			continue
		}
		entry, ok := agg.entries[id]
		if !ok {
			entry = &aggregateLine{name: line.ProductName}
			agg.entries[id] = entry
			agg.keys = append(agg.keys, id)
		}
		entry.qty = entry.qty.Add(line.Quantity)
	}
	sort.Strings(agg.keys)
	return agg
}
