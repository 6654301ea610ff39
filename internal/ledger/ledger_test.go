package ledger

import (
	"testing"
	"time"

	"caisse/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s got %s", want, got.String())
}

func invoiceWithTotal(total string) domain.Document {
	return Recompute(domain.Document{
		Kind: domain.KindInvoice,
		Lines: []domain.LineItem{
			{ProductID: "p1", Quantity: dec("1"), UnitPrice: dec(total), VAT: decimal.Zero},
		},
	})
}

func TestPriceLineRoundsEachSubtotal(t *testing.T) {
	line := PriceLine(domain.LineItem{Quantity: dec("3"), UnitPrice: dec("19.99"), VAT: dec("19")})
	requireDecimal(t, "59.97", line.SubtotalHT)
	requireDecimal(t, "71.36", line.SubtotalTTC)

	line = PriceLine(domain.LineItem{Quantity: dec("1.5"), UnitPrice: dec("10.333"), VAT: dec("9")})
	requireDecimal(t, "15.5", line.SubtotalHT)
	requireDecimal(t, "16.9", line.SubtotalTTC)
}

func TestComputeTotalsSumsRoundedLines(t *testing.T) {
	lines := []domain.LineItem{
		{Quantity: dec("3"), UnitPrice: dec("19.99"), VAT: dec("19")},
		{Quantity: dec("1.5"), UnitPrice: dec("10.333"), VAT: dec("9")},
		{Quantity: dec("7"), UnitPrice: dec("0.335"), VAT: dec("19")},
	}
	totals := ComputeTotals(lines)

	require.True(t, totals.TotalTTC.Equal(totals.TotalHT.Add(totals.TotalTVA)))

	sumTTC := decimal.Zero
	for _, line := range PriceLines(lines) {
		sumTTC = sumTTC.Add(line.SubtotalTTC)
	}
	require.True(t, totals.TotalTTC.Equal(sumTTC), "ttc %s sum %s", totals.TotalTTC, sumTTC)
	requireDecimal(t, "77.82", totals.TotalHT)
}

func TestComputeTotalsEmpty(t *testing.T) {
	totals := ComputeTotals(nil)
	require.True(t, totals.TotalHT.IsZero())
	require.True(t, totals.TotalTVA.IsZero())
	require.True(t, totals.TotalTTC.IsZero())
}

func TestPaymentStatusFollowsAmount(t *testing.T) {
	doc := invoiceWithTotal("1000.00")

	cases := []struct {
		paid      string
		status    domain.PaymentStatus
		remaining string
	}{
		{"0", domain.StatusUnpaid, "1000"},
		{"400", domain.StatusPartial, "600"},
		{"999.99", domain.StatusPartial, "0.01"},
		{"1000", domain.StatusPaid, "0"},
	}
	for _, tc := range cases {
		t.Run(tc.paid, func(t *testing.T) {
			updated, err := ApplyPayment(doc, dec(tc.paid))
			require.NoError(t, err)
			require.Equal(t, tc.status, updated.Status)
			requireDecimal(t, tc.remaining, updated.Remaining)
		})
	}
}

func TestApplyPaymentClamps(t *testing.T) {
	doc := invoiceWithTotal("250.50")

	updated, err := ApplyPayment(doc, dec("-50"))
	require.NoError(t, err)
	requireDecimal(t, "0", updated.PayedAmount)
	require.Equal(t, domain.StatusUnpaid, updated.Status)

	updated, err = ApplyPayment(doc, doc.TotalTTC.Add(dec("999")))
	require.NoError(t, err)
	requireDecimal(t, "250.50", updated.PayedAmount)
	require.Equal(t, domain.StatusPaid, updated.Status)
	requireDecimal(t, "0", updated.Remaining)
}

func TestApplyPaymentRejectsProforma(t *testing.T) {
	doc := invoiceWithTotal("10")
	doc.Kind = domain.KindProforma
	_, err := ApplyPayment(doc, dec("5"))
	require.ErrorIs(t, err, ErrNoPaymentSemantics)
}

func TestRecomputeIgnoresCachedFields(t *testing.T) {
	doc := invoiceWithTotal("100")
	doc.TotalTTC = dec("5")
	doc.Status = domain.StatusPaid
	doc.Remaining = dec("42")
	doc.PayedAmount = dec("150")

	doc = Recompute(doc)
	requireDecimal(t, "100", doc.TotalTTC)
	requireDecimal(t, "100", doc.PayedAmount)
	require.Equal(t, domain.StatusPaid, doc.Status)
	requireDecimal(t, "0", doc.Remaining)
}

func TestSetStatus(t *testing.T) {
	doc, err := ApplyPayment(invoiceWithTotal("300"), dec("120"))
	require.NoError(t, err)

	paid, err := SetStatus(doc, domain.StatusPaid, nil)
	require.NoError(t, err)
	requireDecimal(t, "300", paid.PayedAmount)
	require.Equal(t, domain.StatusPaid, paid.Status)

	unpaid, err := SetStatus(doc, domain.StatusUnpaid, nil)
	require.NoError(t, err)
	requireDecimal(t, "0", unpaid.PayedAmount)
	require.Equal(t, domain.StatusUnpaid, unpaid.Status)

	amount := dec("75.5")
	partial, err := SetStatus(doc, domain.StatusPartial, &amount)
	require.NoError(t, err)
	requireDecimal(t, "75.5", partial.PayedAmount)
	require.Equal(t, domain.StatusPartial, partial.Status)
	requireDecimal(t, "224.5", partial.Remaining)
}

func TestSetStatusRejectsAmbiguousInput(t *testing.T) {
	doc := invoiceWithTotal("300")

	_, err := SetStatus(doc, domain.StatusPartial, nil)
	require.ErrorIs(t, err, ErrAmountRequired)

	zero := decimal.Zero
	_, err = SetStatus(doc, domain.StatusPartial, &zero)
	require.ErrorIs(t, err, ErrInconsistentAmount)

	full := dec("300")
	_, err = SetStatus(doc, domain.StatusPartial, &full)
	require.ErrorIs(t, err, ErrInconsistentAmount)

	some := dec("10")
	_, err = SetStatus(doc, domain.StatusPaid, &some)
	require.ErrorIs(t, err, ErrConflictingInput)

	_, err = SetStatus(doc, domain.PaymentStatus("payé"), nil)
	require.ErrorIs(t, err, ErrUnknownStatus)
}

func TestParseAmount(t *testing.T) {
	cases := map[string]string{
		"":              "0",
		"abc":           "0",
		"12.5":          "12.5",
		" 1 234,50":     "1234.5",
		"1,234.50":      "1234.5",
		"1.234,50":      "1234.5",
		"1.234.567,89":  "1234567.89",
		"-3":            "-3",
		"NaN":           "0",
		"1e200000000":   "0",
		"2E3":           "0",
		"1234567890123": "0",
		"0.1234567":     "0",
	}
	for raw, want := range cases {
		requireDecimal(t, want, ParseAmount(raw))
	}
}

func TestBounded(t *testing.T) {
	for raw, want := range map[string]bool{
		"0":             true,
		"999999999999":  true,
		"1000000000000": false,
		"12.345678":     true,
		"12.3456789":    false,
		"0.000001":      true,
		"1e12":          false,
		"1e11":          true,
		"1e200000000":   false,
		"1e-200000000":  false,
	} {
		require.Equal(t, want, Bounded(dec(raw)), raw)
	}
}

func TestHugeExponentPaymentDegradesToZero(t *testing.T) {
	huge := dec("1e200000000")
	done := make(chan domain.Document, 1)
	go func() {
		doc, _ := ApplyPayment(invoiceWithTotal("1000"), huge)
		done <- doc
	}()

	select {
	case doc := <-done:
		requireDecimal(t, "0", doc.PayedAmount)
		require.Equal(t, domain.StatusUnpaid, doc.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("payment with a huge exponent did not return")
	}

	_, err := SetStatus(invoiceWithTotal("1000"), domain.StatusPartial, &huge)
	require.ErrorIs(t, err, ErrInconsistentAmount)
}
