package sequence

import (
	"testing"

	"caisse/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestNextInvoiceNumber(t *testing.T) {
	existing := []string{"001-2025", "002-2025", "005-2026"}

	require.Equal(t, "006-2026", Next(existing, domain.KindInvoice, 2026))
	require.Equal(t, "003-2025", Next(existing, domain.KindInvoice, 2025))
	require.Equal(t, "001-2027", Next(existing, domain.KindInvoice, 2027))
	require.Equal(t, "001-2027", Next(nil, domain.KindInvoice, 2027))
}

func TestNextPurchaseOrderNumber(t *testing.T) {
	existing := []string{"BA-009-2026", "BA-010-2026", "BA-120-2025"}

	require.Equal(t, "BA-011-2026", Next(existing, domain.KindPurchaseOrder, 2026))
	require.Equal(t, "BA-001-2024", Next(existing, domain.KindPurchaseOrder, 2024))
}

func TestNextGrowsPastThreeDigits(t *testing.T) {
	require.Equal(t, "1000-2026", Next([]string{"999-2026"}, domain.KindProforma, 2026))
	require.Equal(t, "1001-2026", Next([]string{"1000-2026"}, domain.KindProforma, 2026))
}

func TestScanIgnoresMalformedNumbers(t *testing.T) {
	existing := []string{"007-2026", "", "FACT-12", "12-26", "BA-003-2026", "abc-2026"}

	result := Scan(existing, domain.KindInvoice, 2026)
	require.Equal(t, 7, result.Max)
	require.ElementsMatch(t, []string{"", "FACT-12", "12-26", "BA-003-2026", "abc-2026"}, result.Malformed)
	require.Equal(t, "008-2026", Next(existing, domain.KindInvoice, 2026))
}

func TestParse(t *testing.T) {
	seq, year, ok := Parse(domain.KindPurchaseOrder, "BA-042-2026")
	require.True(t, ok)
	require.Equal(t, 42, seq)
	require.Equal(t, 2026, year)

	_, _, ok = Parse(domain.KindPurchaseOrder, "042-2026")
	require.False(t, ok)
}

func TestNumbered(t *testing.T) {
	require.True(t, Numbered(domain.KindInvoice))
	require.True(t, Numbered(domain.KindPurchaseOrder))
	require.True(t, Numbered(domain.KindProforma))
	require.False(t, Numbered(domain.KindSale))
}
