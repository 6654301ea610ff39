// Package excel reads product catalogs exported from spreadsheets.
package excel

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"caisse/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var ErrNoRows = errors.New("file has no valid data rows")

var headerAliases = map[string]string{
	"name":              "name",
	"product":           "name",
	"product name":      "name",
	"produit":           "name",
	"designation":       "name",
	"désignation":       "name",
	"libelle":           "name",
	"libellé":           "name",
	"unit":              "unit",
	"unite":             "unit",
	"unité":             "unit",
	"category":          "category",
	"categorie":         "category",
	"catégorie":         "category",
	"famille":           "category",
	"quantity":          "quantity",
	"qty":               "quantity",
	"quantite":          "quantity",
	"quantité":          "quantity",
	"stock":             "quantity",
	"purchase price":    "purchase_price",
	"prix achat":        "purchase_price",
	"prix d'achat":      "purchase_price",
	"retail price":      "retail_price",
	"sell price":        "retail_price",
	"prix vente":        "retail_price",
	"prix de vente":     "retail_price",
	"prix detail":       "retail_price",
	"prix détail":       "retail_price",
	"wholesale price":   "wholesale_price",
	"prix gros":         "wholesale_price",
	"prix de gros":      "wholesale_price",
	"vat":               "vat",
	"tva":               "vat",
	"alert quantity":    "alert_quantity",
	"alert":             "alert_quantity",
	"alerte":            "alert_quantity",
	"seuil":             "alert_quantity",
	"quantite alerte":   "alert_quantity",
	"quantité alerte":   "alert_quantity",
	"quantité d'alerte": "alert_quantity",
}

var decimalColumns = []string{"quantity", "purchase_price", "retail_price", "wholesale_price", "vat", "alert_quantity"}

// ParseCatalog reads the first sheet of an .xlsx workbook, or a .csv file,
// into import rows. The header row names the columns; only the product name
// is required. Unknown columns are ignored.
func ParseCatalog(fileName string, reader io.Reader) ([]domain.CatalogImportRow, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("input file is empty")
	}

	var rows [][]string
	switch strings.ToLower(filepath.Ext(strings.TrimSpace(fileName))) {
	case ".csv":
		rows, err = parseCSVRows(data)
	default:
		rows, err = parseExcelRows(data)
	}
	if err != nil {
		return nil, err
	}
	return parseCatalogTable(rows)
}

func parseCSVRows(data []byte) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	// Spreadsheets saved with a French locale separate fields with ';'.
	header, _, _ := bytes.Cut(data, []byte("\n"))
	if bytes.Count(header, []byte(";")) > bytes.Count(header, []byte(",")) {
		reader.Comma = ';'
	}
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("csv file is empty")
	}
	return rows, nil
}

func parseExcelRows(data []byte) ([][]string, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open excel file: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("excel file has no sheets")
	}
	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("excel file is empty")
	}
	return rows, nil
}

func parseCatalogTable(rows [][]string) ([]domain.CatalogImportRow, error) {
	colMap := mapColumns(rows[0])
	if _, ok := colMap["name"]; !ok {
		return nil, fmt.Errorf("missing required column: name")
	}

	result := make([]domain.CatalogImportRow, 0, len(rows)-1)
	for index := 1; index < len(rows); index++ {
		cells := rows[index]
		name := strings.TrimSpace(readCell(cells, colMap["name"]))
		if name == "" {
			continue
		}

		values := make(map[string]decimal.Decimal, len(decimalColumns))
		for _, column := range decimalColumns {
			idx, ok := colMap[column]
			if !ok {
				continue
			}
			value, err := parseDecimal(readCell(cells, idx))
			if err != nil {
				return nil, fmt.Errorf("row %d invalid %s: %w", index+1, column, err)
			}
			values[column] = value
		}

		result = append(result, domain.CatalogImportRow{
			Name:           name,
			Unit:           strings.TrimSpace(readOptionalCell(cells, colMap, "unit")),
			Category:       strings.TrimSpace(readOptionalCell(cells, colMap, "category")),
			Quantity:       values["quantity"],
			PurchasePrice:  values["purchase_price"],
			RetailPrice:    values["retail_price"],
			WholesalePrice: values["wholesale_price"],
			VAT:            values["vat"],
			AlertQuantity:  values["alert_quantity"],
		})
	}

	if len(result) == 0 {
		return nil, ErrNoRows
	}
	return result, nil
}

func mapColumns(header []string) map[string]int {
	mapped := make(map[string]int)
	for idx, col := range header {
		canonical, ok := headerAliases[normalizeHeader(col)]
		if !ok {
			continue
		}
		if _, exists := mapped[canonical]; !exists {
			mapped[canonical] = idx
		}
	}
	return mapped
}

func normalizeHeader(raw string) string {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(value, "\ufeff")
	value = strings.ToLower(value)
	value = strings.TrimSuffix(value, "%")
	value = strings.ReplaceAll(value, "_", " ")
	value = strings.Join(strings.Fields(value), " ")
	return value
}

func readCell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func readOptionalCell(row []string, colMap map[string]int, column string) string {
	idx, ok := colMap[column]
	if !ok {
		return ""
	}
	return readCell(row, idx)
}

// parseDecimal accepts "1234.5", "1 234,5", "1,234.50" and "1.234,50". The
// last separator is the decimal one. Empty cells are zero.
func parseDecimal(raw string) (decimal.Decimal, error) {
	value := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f', '%':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))
	if value == "" {
		return decimal.Zero, nil
	}
	dot, comma := strings.LastIndex(value, "."), strings.LastIndex(value, ",")
	switch {
	case dot >= 0 && comma > dot:
		value = strings.ReplaceAll(value, ".", "")
		value = strings.Replace(value, ",", ".", 1)
	case dot >= 0:
		value = strings.ReplaceAll(value, ",", "")
	default:
		value = strings.Replace(value, ",", ".", 1)
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("not a number: %q", raw)
	}
	return parsed, nil
}
