package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"caisse/internal/domain"
	"caisse/internal/store"
)

func stampClient(c *domain.Client, rec store.Record) {
	c.ID = rec.ID
	c.CreatedAt = rec.CreatedAt
	c.UpdatedAt = rec.UpdatedAt
}

func stampSupplier(s *domain.Supplier, rec store.Record) {
	s.ID = rec.ID
	s.CreatedAt = rec.CreatedAt
	s.UpdatedAt = rec.UpdatedAt
}

func (r *Repository) CreateClient(ctx context.Context, client domain.Client) (domain.Client, error) {
	rec, err := r.insert(ctx, store.Clients, client)
	if err != nil {
		return domain.Client{}, fmt.Errorf("create client: %w", err)
	}
	return decode(rec, stampClient)
}

func (r *Repository) GetClient(ctx context.Context, id string) (domain.Client, error) {
	rec, err := r.tx.Get(ctx, store.Clients, id)
	if err != nil {
		return domain.Client{}, err
	}
	return decode(rec, stampClient)
}

func (r *Repository) ListClients(ctx context.Context, search string, limit, offset int) ([]domain.Client, error) {
	records, err := r.tx.Find(ctx, store.Clients, nil)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	clients, err := decodeAll(records, stampClient)
	if err != nil {
		return nil, err
	}
	clients = filterByName(clients, search, func(c domain.Client) string { return c.Name })
	return page(clients, limit, offset), nil
}

func (r *Repository) CreateSupplier(ctx context.Context, supplier domain.Supplier) (domain.Supplier, error) {
	rec, err := r.insert(ctx, store.Suppliers, supplier)
	if err != nil {
		return domain.Supplier{}, fmt.Errorf("create supplier: %w", err)
	}
	return decode(rec, stampSupplier)
}

func (r *Repository) GetSupplier(ctx context.Context, id string) (domain.Supplier, error) {
	rec, err := r.tx.Get(ctx, store.Suppliers, id)
	if err != nil {
		return domain.Supplier{}, err
	}
	return decode(rec, stampSupplier)
}

func (r *Repository) ListSuppliers(ctx context.Context, search string, limit, offset int) ([]domain.Supplier, error) {
	records, err := r.tx.Find(ctx, store.Suppliers, nil)
	if err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	suppliers, err := decodeAll(records, stampSupplier)
	if err != nil {
		return nil, err
	}
	suppliers = filterByName(suppliers, search, func(s domain.Supplier) string { return s.Name })
	return page(suppliers, limit, offset), nil
}

// filterByName keeps items whose name contains search and sorts them by name.
func filterByName[T any](items []T, search string, name func(T) string) []T {
	search = normalizeName(search)
	out := items[:0]
	for _, item := range items {
		if search == "" || strings.Contains(normalizeName(name(item)), search) {
			out = append(out, item)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return normalizeName(name(out[i])) < normalizeName(name(out[j]))
	})
	return out
}
