package repository

import (
	"context"
	"testing"
	"time"

	"caisse/internal/domain"
	"caisse/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func TestProductLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := New(store.NewMemory())

	created, err := repo.CreateProduct(ctx, domain.Product{
		Name:          "Huile 5L",
		RetailPrice:   dec("950"),
		Quantity:      dec("12"),
		AlertQuantity: dec("5"),
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.False(t, created.CreatedAt.IsZero())

	require.NoError(t, repo.SetProductQuantity(ctx, created.ID, dec("4")))
	got, err := repo.GetProduct(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, got.Quantity.Equal(dec("4")))
	require.True(t, got.RetailPrice.Equal(dec("950")))
	require.Equal(t, "Huile 5L", got.Name)

	byName, err := repo.FindProductByName(ctx, "  huile 5l ")
	require.NoError(t, err)
	require.Equal(t, created.ID, byName.ID)

	_, err = repo.FindProductByName(ctx, "sucre")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = repo.GetProduct(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListProductsFiltersAndSorts(t *testing.T) {
	ctx := context.Background()
	repo := New(store.NewMemory())
	for _, p := range []domain.Product{
		{Name: "Sucre", Quantity: dec("2"), AlertQuantity: dec("5")},
		{Name: "café moulu", Quantity: dec("20"), AlertQuantity: dec("5"), Category: "épicerie"},
		{Name: "Café grain", Quantity: dec("1"), AlertQuantity: dec("3"), Category: "épicerie"},
	} {
		_, err := repo.CreateProduct(ctx, p)
		require.NoError(t, err)
	}

	all, err := repo.ListProducts(ctx, ProductListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "Café grain", all[0].Name)
	require.Equal(t, "Sucre", all[2].Name)

	low, err := repo.ListProducts(ctx, ProductListFilter{LowStock: true})
	require.NoError(t, err)
	require.Len(t, low, 2)

	cafe, err := repo.ListProducts(ctx, ProductListFilter{Search: "CAFÉ", Category: "épicerie"})
	require.NoError(t, err)
	require.Len(t, cafe, 2)

	paged, err := repo.ListProducts(ctx, ProductListFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	require.Equal(t, "café moulu", paged[0].Name)
}

func TestDocumentsRoundTripThroughStore(t *testing.T) {
	ctx := context.Background()
	repo := New(store.NewMemory())
	jan := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	invoice, err := repo.CreateDocument(ctx, domain.Document{
		Kind:           domain.KindInvoice,
		Number:         "001-2026",
		IssueDate:      jan,
		CounterpartyID: "c1",
		Lines:          []domain.LineItem{{ProductID: "p1", Quantity: dec("2"), UnitPrice: dec("10")}},
		Totals:         domain.Totals{TotalTTC: dec("20")},
		Status:         domain.StatusUnpaid,
	})
	require.NoError(t, err)
	require.Equal(t, domain.KindInvoice, invoice.Kind)

	_, err = repo.CreateDocument(ctx, domain.Document{Kind: domain.KindInvoice, Number: "002-2026", IssueDate: feb, CounterpartyID: "c2"})
	require.NoError(t, err)
	_, err = repo.CreateDocument(ctx, domain.Document{Kind: domain.KindSale, InvoiceID: invoice.ID, IssueDate: jan})
	require.NoError(t, err)

	got, err := repo.GetDocument(ctx, domain.KindInvoice, invoice.ID)
	require.NoError(t, err)
	require.True(t, got.TotalTTC.Equal(dec("20")))
	require.Len(t, got.Lines, 1)

	list, err := repo.ListDocuments(ctx, domain.KindInvoice, DocumentListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "002-2026", list[0].Number)

	byClient, err := repo.ListDocuments(ctx, domain.KindInvoice, DocumentListFilter{CounterpartyID: "c1"})
	require.NoError(t, err)
	require.Len(t, byClient, 1)

	from := feb.AddDate(0, 0, -1)
	recent, err := repo.ListDocuments(ctx, domain.KindInvoice, DocumentListFilter{From: &from})
	require.NoError(t, err)
	require.Len(t, recent, 1)

	sales, err := repo.SalesForInvoice(ctx, invoice.ID)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	require.Equal(t, domain.KindSale, sales[0].Kind)

	numbers, err := repo.DocumentNumbers(ctx, domain.KindInvoice)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"001-2026", "002-2026"}, numbers)

	got.Notes = "livré"
	saved, err := repo.SaveDocument(ctx, got)
	require.NoError(t, err)
	require.Equal(t, "livré", saved.Notes)

	require.NoError(t, repo.DeleteDocument(ctx, domain.KindInvoice, invoice.ID))
	_, err = repo.GetDocument(ctx, domain.KindInvoice, invoice.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCounterparties(t *testing.T) {
	ctx := context.Background()
	repo := New(store.NewMemory())

	client, err := repo.CreateClient(ctx, domain.Client{Name: "Boulangerie Amrani", Phone: "0550"})
	require.NoError(t, err)
	_, err = repo.CreateClient(ctx, domain.Client{Name: "Alimentation Générale"})
	require.NoError(t, err)

	got, err := repo.GetClient(ctx, client.ID)
	require.NoError(t, err)
	require.Equal(t, "0550", got.Phone)

	clients, err := repo.ListClients(ctx, "", 0, 0)
	require.NoError(t, err)
	require.Len(t, clients, 2)
	require.Equal(t, "Alimentation Générale", clients[0].Name)

	supplier, err := repo.CreateSupplier(ctx, domain.Supplier{Name: "Grossiste Sud"})
	require.NoError(t, err)
	found, err := repo.ListSuppliers(ctx, "sud", 0, 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, supplier.ID, found[0].ID)

	_, err = repo.GetSupplier(ctx, client.ID)
	require.ErrorIs(t, err, ErrNotFound)
}
