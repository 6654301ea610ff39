package service

import (
	"context"

	"caisse/internal/domain"
)

type CounterpartyInput struct {
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	TaxID   string `json:"tax_id,omitempty"`
}

func (in *CounterpartyInput) normalize() error {
	in.Name = normalizeText(in.Name)
	in.Phone = normalizeText(in.Phone)
	in.Address = normalizeText(in.Address)
	in.TaxID = normalizeText(in.TaxID)
	if in.Name == "" {
		return invalid("name", "is required")
	}
	return nil
}

func (s *Service) CreateClient(ctx context.Context, in CounterpartyInput) (domain.Client, error) {
	if err := in.normalize(); err != nil {
		return domain.Client{}, err
	}
	return s.reader().CreateClient(ctx, domain.Client{
		Name:    in.Name,
		Phone:   in.Phone,
		Address: in.Address,
		TaxID:   in.TaxID,
	})
}

func (s *Service) GetClient(ctx context.Context, id string) (domain.Client, error) {
	return s.reader().GetClient(ctx, id)
}

func (s *Service) ListClients(ctx context.Context, search string, limit, offset int) ([]domain.Client, error) {
	return s.reader().ListClients(ctx, search, limit, offset)
}

func (s *Service) CreateSupplier(ctx context.Context, in CounterpartyInput) (domain.Supplier, error) {
	if err := in.normalize(); err != nil {
		return domain.Supplier{}, err
	}
	return s.reader().CreateSupplier(ctx, domain.Supplier{
		Name:    in.Name,
		Phone:   in.Phone,
		Address: in.Address,
		TaxID:   in.TaxID,
	})
}

func (s *Service) GetSupplier(ctx context.Context, id string) (domain.Supplier, error) {
	return s.reader().GetSupplier(ctx, id)
}

func (s *Service) ListSuppliers(ctx context.Context, search string, limit, offset int) ([]domain.Supplier, error) {
	return s.reader().ListSuppliers(ctx, search, limit, offset)
}
