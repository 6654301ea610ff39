package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"caisse/internal/domain"
	"caisse/internal/store"

	"github.com/shopspring/decimal"
)

type ProductListFilter struct {
	Search   string
	LowStock bool
	Category string
	Limit    int
	Offset   int
}

func stampProduct(p *domain.Product, rec store.Record) {
	p.ID = rec.ID
	p.CreatedAt = rec.CreatedAt
	p.UpdatedAt = rec.UpdatedAt
}

func (r *Repository) CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	rec, err := r.insert(ctx, store.Products, product)
	if err != nil {
		return domain.Product{}, fmt.Errorf("create product: %w", err)
	}
	return decode(rec, stampProduct)
}

func (r *Repository) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	rec, err := r.tx.Get(ctx, store.Products, id)
	if err != nil {
		return domain.Product{}, err
	}
	return decode(rec, stampProduct)
}

// ListProducts returns products sorted by name.
func (r *Repository) ListProducts(ctx context.Context, filter ProductListFilter) ([]domain.Product, error) {
	query := store.Query{}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	records, err := r.tx.Find(ctx, store.Products, query)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	products, err := decodeAll(records, stampProduct)
	if err != nil {
		return nil, err
	}

	search := normalizeName(filter.Search)
	filtered := products[:0]
	for _, p := range products {
		if search != "" && !strings.Contains(normalizeName(p.Name), search) {
			continue
		}
		if filter.LowStock && !p.LowStock() {
			continue
		}
		filtered = append(filtered, p)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return normalizeName(filtered[i].Name) < normalizeName(filtered[j].Name)
	})
	return page(filtered, filter.Limit, filter.Offset), nil
}

// FindProductByName matches names case-insensitively, ignoring surrounding
// spaces. It returns ErrNotFound when nothing matches.
func (r *Repository) FindProductByName(ctx context.Context, name string) (domain.Product, error) {
	key := normalizeName(name)
	records, err := r.tx.Find(ctx, store.Products, nil)
	if err != nil {
		return domain.Product{}, fmt.Errorf("find product %q: %w", name, err)
	}
	for _, rec := range records {
		p, err := decode(rec, stampProduct)
		if err != nil {
			return domain.Product{}, err
		}
		if normalizeName(p.Name) == key {
			return p, nil
		}
	}
	return domain.Product{}, fmt.Errorf("product %q: %w", name, ErrNotFound)
}

// SaveProduct writes the catalog fields of product. The quantity on hand is
// only ever changed through SetProductQuantity.
func (r *Repository) SaveProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	rec, err := r.replace(ctx, store.Products, product.ID, product, []string{"unit", "category"}, "current_quantity")
	if err != nil {
		return domain.Product{}, fmt.Errorf("save product %s: %w", product.ID, err)
	}
	return decode(rec, stampProduct)
}

func (r *Repository) SetProductQuantity(ctx context.Context, id string, quantity decimal.Decimal) error {
	body, err := encode(map[string]decimal.Decimal{"current_quantity": quantity})
	if err != nil {
		return err
	}
	if _, err := r.tx.Update(ctx, store.Products, id, body); err != nil {
		return fmt.Errorf("set quantity of product %s: %w", id, err)
	}
	return nil
}
