package excel

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, rows ...[]any) *bytes.Buffer {
	t.Helper()
	file := excelize.NewFile()
	defer file.Close()
	sheet := file.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, file.SetSheetRow(sheet, cell, &row))
	}
	buf, err := file.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestParseCatalogWorkbook(t *testing.T) {
	buf := workbook(t,
		[]any{"Désignation", "Catégorie", "Quantité", "Prix d'achat", "Prix de vente", "Prix de gros", "TVA %", "Seuil", "Notes"},
		[]any{"Stylo bleu", "Papeterie", 120, "35", "60", "50", 19, 10, "ignored"},
		[]any{"", "", "", "", "", "", "", "", ""},
		[]any{" Cahier 96p ", "", "4,5", "", "1 250,75", "", "", "", ""},
	)

	rows, err := ParseCatalog("catalogue.xlsx", buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "Stylo bleu", rows[0].Name)
	assert.Equal(t, "Papeterie", rows[0].Category)
	assert.True(t, decimal.NewFromInt(120).Equal(rows[0].Quantity))
	assert.True(t, decimal.NewFromInt(35).Equal(rows[0].PurchasePrice))
	assert.True(t, decimal.NewFromInt(60).Equal(rows[0].RetailPrice))
	assert.True(t, decimal.NewFromInt(50).Equal(rows[0].WholesalePrice))
	assert.True(t, decimal.NewFromInt(19).Equal(rows[0].VAT))
	assert.True(t, decimal.NewFromInt(10).Equal(rows[0].AlertQuantity))

	assert.Equal(t, "Cahier 96p", rows[1].Name)
	assert.True(t, decimal.RequireFromString("4.5").Equal(rows[1].Quantity))
	assert.True(t, decimal.RequireFromString("1250.75").Equal(rows[1].RetailPrice))
	assert.True(t, rows[1].PurchasePrice.IsZero())
}

func TestParseCatalogCSVWithSemicolons(t *testing.T) {
	data := "name;unit;quantity;retail_price\nCâble USB;pièce;5;25,50\n"
	rows, err := ParseCatalog("export.csv", strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "pièce", rows[0].Unit)
	assert.True(t, decimal.RequireFromString("25.5").Equal(rows[0].RetailPrice))
}

func TestParseCatalogMixedSeparators(t *testing.T) {
	data := "name;retail_price;wholesale_price\nFarine 25kg;1.234,50;1,100.25\n"
	rows, err := ParseCatalog("export.csv", strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, decimal.RequireFromString("1234.5").Equal(rows[0].RetailPrice))
	assert.True(t, decimal.RequireFromString("1100.25").Equal(rows[0].WholesalePrice))
}

func TestParseCatalogErrors(t *testing.T) {
	_, err := ParseCatalog("empty.csv", strings.NewReader(""))
	require.ErrorContains(t, err, "empty")

	_, err = ParseCatalog("x.csv", strings.NewReader("quantity,retail_price\n1,2\n"))
	require.ErrorContains(t, err, "missing required column: name")

	_, err = ParseCatalog("x.csv", strings.NewReader("name,quantity\nStylo,beaucoup\n"))
	require.ErrorContains(t, err, "row 2 invalid quantity")

	_, err = ParseCatalog("x.csv", strings.NewReader("name,quantity\n,3\n"))
	require.ErrorIs(t, err, ErrNoRows)

	_, err = ParseCatalog("x.xlsx", strings.NewReader("not a workbook"))
	require.ErrorContains(t, err, "open excel file")
}
