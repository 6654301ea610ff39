package service

import (
	"context"
	"errors"
	"fmt"

	"caisse/internal/domain"
	"caisse/internal/lock"
	"caisse/internal/repository"

	"github.com/shopspring/decimal"
)

type ProductInput struct {
	Name           string          `json:"name"`
	Unit           string          `json:"unit,omitempty"`
	Category       string          `json:"category,omitempty"`
	PurchasePrice  decimal.Decimal `json:"purchase_price"`
	RetailPrice    decimal.Decimal `json:"retail_price"`
	WholesalePrice decimal.Decimal `json:"wholesale_price"`
	VAT            decimal.Decimal `json:"vat"`
	Quantity       decimal.Decimal `json:"current_quantity"`
	AlertQuantity  decimal.Decimal `json:"alert_quantity"`
}

// ProductPatch changes catalog fields only. The quantity on hand follows
// the documents and cannot be patched.
type ProductPatch struct {
	Name           *string          `json:"name,omitempty"`
	Unit           *string          `json:"unit,omitempty"`
	Category       *string          `json:"category,omitempty"`
	PurchasePrice  *decimal.Decimal `json:"purchase_price,omitempty"`
	RetailPrice    *decimal.Decimal `json:"retail_price,omitempty"`
	WholesalePrice *decimal.Decimal `json:"wholesale_price,omitempty"`
	VAT            *decimal.Decimal `json:"vat,omitempty"`
	AlertQuantity  *decimal.Decimal `json:"alert_quantity,omitempty"`
}

func validateProduct(p domain.Product) error {
	if p.Name == "" {
		return invalid("name", "is required")
	}
	for field, value := range map[string]decimal.Decimal{
		"purchase_price":   p.PurchasePrice,
		"retail_price":     p.RetailPrice,
		"wholesale_price":  p.WholesalePrice,
		"vat":              p.VAT,
		"current_quantity": p.Quantity,
		"alert_quantity":   p.AlertQuantity,
	} {
		if err := checkBounded(field, value); err != nil {
			return err
		}
		if value.IsNegative() {
			return invalid(field, "must not be negative")
		}
	}
	if p.VAT.IsNegative() || p.VAT.GreaterThan(maxVAT) {
		return invalid("vat", "must be between 0 and 100")
	}
	return nil
}

func (in ProductInput) product() domain.Product {
	return domain.Product{
		Name:           normalizeText(in.Name),
		Unit:           normalizeText(in.Unit),
		Category:       normalizeText(in.Category),
		PurchasePrice:  in.PurchasePrice,
		RetailPrice:    in.RetailPrice,
		WholesalePrice: in.WholesalePrice,
		VAT:            in.VAT,
		Quantity:       in.Quantity,
		AlertQuantity:  in.AlertQuantity,
	}
}

func (p ProductPatch) apply(product domain.Product) domain.Product {
	if p.Name != nil {
		product.Name = normalizeText(*p.Name)
	}
	if p.Unit != nil {
		product.Unit = normalizeText(*p.Unit)
	}
	if p.Category != nil {
		product.Category = normalizeText(*p.Category)
	}
	if p.PurchasePrice != nil {
		product.PurchasePrice = *p.PurchasePrice
	}
	if p.RetailPrice != nil {
		product.RetailPrice = *p.RetailPrice
	}
	if p.WholesalePrice != nil {
		product.WholesalePrice = *p.WholesalePrice
	}
	if p.VAT != nil {
		product.VAT = *p.VAT
	}
	if p.AlertQuantity != nil {
		product.AlertQuantity = *p.AlertQuantity
	}
	return product
}

// nameTaken reports whether another product already uses name.
func nameTaken(ctx context.Context, repo *repository.Repository, name, exceptID string) (bool, error) {
	existing, err := repo.FindProductByName(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return existing.ID != exceptID, nil
}

func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (domain.Product, error) {
	product := in.product()
	if err := validateProduct(product); err != nil {
		return domain.Product{}, err
	}
	product.Quantity = product.Quantity.Round(2)
	var created domain.Product
	_, err := s.write(ctx, "create product", []string{catalogLockKey}, func(tx *txScope) error {
		taken, err := nameTaken(ctx, tx.repo, product.Name, "")
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("product %q: %w", product.Name, ErrConflict)
		}
		created, err = tx.repo.CreateProduct(ctx, product)
		return err
	})
	return created, err
}

func (s *Service) PatchProduct(ctx context.Context, id string, patch ProductPatch) (domain.Product, error) {
	keys := []string{catalogLockKey, lock.ProductKey(id)}
	var saved domain.Product
	_, err := s.write(ctx, "patch product", keys, func(tx *txScope) error {
		current, err := tx.repo.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		next := patch.apply(current)
		if err := validateProduct(next); err != nil {
			return err
		}
		if next.Name != current.Name {
			taken, err := nameTaken(ctx, tx.repo, next.Name, id)
			if err != nil {
				return err
			}
			if taken {
				return fmt.Errorf("product %q: %w", next.Name, ErrConflict)
			}
		}
		saved, err = tx.repo.SaveProduct(ctx, next)
		return err
	})
	return saved, err
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	return s.reader().GetProduct(ctx, id)
}

func (s *Service) ListProducts(ctx context.Context, filter repository.ProductListFilter) ([]domain.Product, error) {
	return s.reader().ListProducts(ctx, filter)
}

// ImportCatalog upserts products by name. Prices and descriptive fields of
// existing products are overwritten; the imported quantity only seeds new
// products because stock on hand is owned by the documents. Rows without a
// name or with invalid values are skipped.
func (s *Service) ImportCatalog(ctx context.Context, rows []domain.CatalogImportRow) (domain.CatalogImportResult, error) {
	var result domain.CatalogImportResult
	_, err := s.write(ctx, "import catalog", []string{catalogLockKey}, func(tx *txScope) error {
		result = domain.CatalogImportResult{}
		for _, row := range rows {
			incoming := ProductInput{
				Name:           row.Name,
				Unit:           row.Unit,
				Category:       row.Category,
				PurchasePrice:  row.PurchasePrice,
				RetailPrice:    row.RetailPrice,
				WholesalePrice: row.WholesalePrice,
				VAT:            row.VAT,
				Quantity:       row.Quantity,
				AlertQuantity:  row.AlertQuantity,
			}.product()
			if validateProduct(incoming) != nil {
				result.Skipped++
				continue
			}
			incoming.Quantity = incoming.Quantity.Round(2)

			existing, err := tx.repo.FindProductByName(ctx, incoming.Name)
			if errors.Is(err, ErrNotFound) {
				if _, err := tx.repo.CreateProduct(ctx, incoming); err != nil {
					return err
				}
				result.Created++
				continue
			}
			if err != nil {
				return err
			}

			next := existing
			next.PurchasePrice = incoming.PurchasePrice
			next.RetailPrice = incoming.RetailPrice
			next.WholesalePrice = incoming.WholesalePrice
			next.VAT = incoming.VAT
			next.AlertQuantity = incoming.AlertQuantity
			if incoming.Unit != "" {
				next.Unit = incoming.Unit
			}
			if incoming.Category != "" {
				next.Category = incoming.Category
			}
			if _, err := tx.repo.SaveProduct(ctx, next); err != nil {
				return err
			}
			result.Updated++
		}
		return nil
	})
	if err != nil {
		return domain.CatalogImportResult{}, err
	}
	s.logger.InfoContext(ctx, "catalog imported",
		"created", result.Created,
		"updated", result.Updated,
		"skipped", result.Skipped,
	)
	return result, nil
}
