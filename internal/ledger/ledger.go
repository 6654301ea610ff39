// Package ledger computes and maintains the derived financial fields of a
// document: line subtotals, HT/TVA/TTC totals, the amount paid and the
// payment status derived from it.
//
// Every function is pure. Out-of-range numeric input is clamped rather than
// rejected so a bad keystroke at the till never blocks a sale.
package ledger

import (
	"errors"
	"fmt"
	"strings"

	"caisse/internal/domain"

	"github.com/shopspring/decimal"
)

var (
	ErrNoPaymentSemantics = errors.New("document kind has no payment status")
	ErrUnknownStatus      = errors.New("unknown payment status")
	ErrAmountRequired     = errors.New("an explicit amount is required for a partial payment")
	ErrInconsistentAmount = errors.New("amount does not match a partial payment")
	ErrConflictingInput   = errors.New("amount is derived from the status and cannot be supplied")
)

var hundred = decimal.NewFromInt(100)

const (
	// MaxIntegerDigits bounds the integer part of any amount, price or
	// quantity taken from input.
	MaxIntegerDigits = 12
	// MaxScale bounds the number of decimals taken from input.
	MaxScale = 6
)

// Bounded reports whether value fits MaxIntegerDigits and MaxScale. It only
// looks at the representation, so "1e200000000" is rejected without being
// expanded.
func Bounded(value decimal.Decimal) bool {
	exp := int(value.Exponent())
	if exp < -MaxScale || exp > MaxIntegerDigits {
		return false
	}
	return value.NumDigits()+exp <= MaxIntegerDigits
}

func round2(value decimal.Decimal) decimal.Decimal {
	return value.Round(2)
}

// PriceLine fills the subtotals of a line from its quantity, unit price and VAT.
func PriceLine(line domain.LineItem) domain.LineItem {
	line.Quantity = round2(line.Quantity)
	line.SubtotalHT = round2(line.Quantity.Mul(line.UnitPrice))
	rate := decimal.NewFromInt(1).Add(line.VAT.Div(hundred))
	line.SubtotalTTC = round2(line.SubtotalHT.Mul(rate))
	return line
}

func PriceLines(lines []domain.LineItem) []domain.LineItem {
	priced := make([]domain.LineItem, len(lines))
	for i, line := range lines {
		priced[i] = PriceLine(line)
	}
	return priced
}

// ComputeTotals sums independently rounded line subtotals.
func ComputeTotals(lines []domain.LineItem) domain.Totals {
	totalHT := decimal.Zero
	totalTVA := decimal.Zero
	for _, line := range lines {
		priced := PriceLine(line)
		totalHT = totalHT.Add(priced.SubtotalHT)
		totalTVA = totalTVA.Add(priced.SubtotalTTC.Sub(priced.SubtotalHT))
	}
	return domain.Totals{
		TotalHT:  totalHT,
		TotalTVA: totalTVA,
		TotalTTC: totalHT.Add(totalTVA),
	}
}

func DeriveStatus(paid, total decimal.Decimal) domain.PaymentStatus {
	switch {
	case paid.IsZero():
		return domain.StatusUnpaid
	case paid.GreaterThanOrEqual(total):
		return domain.StatusPaid
	default:
		return domain.StatusPartial
	}
}

func Remaining(total, paid decimal.Decimal) decimal.Decimal {
	return decimal.Max(decimal.Zero, total.Sub(paid))
}

// ClampPayment bounds an amount to [0, total], rounded to the cent.
func ClampPayment(amount, total decimal.Decimal) decimal.Decimal {
	amount = round2(amount)
	if amount.IsNegative() {
		return decimal.Zero
	}
	if amount.GreaterThan(total) {
		return total
	}
	return amount
}

// ParseAmount reads a user-typed amount. Anything that is not a plain
// bounded number becomes zero. "1234.5", "1 234,5", "1.234,50" and
// "1,234.50" are accepted; the last separator is the decimal one.
func ParseAmount(raw string) decimal.Decimal {
	value := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f', '\t':
			return -1
		}
		return r
	}, raw)
	if value == "" || strings.ContainsAny(value, "eE") {
		return decimal.Zero
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
	if err != nil || !Bounded(parsed) {
		return decimal.Zero
	}
	return parsed
}

// Recompute rebuilds every derived field of the document. Cached totals,
// status and remaining values from the input are discarded.
func Recompute(doc domain.Document) domain.Document {
	doc.Lines = PriceLines(doc.Lines)
	doc.Totals = ComputeTotals(doc.Lines)
	if !doc.Kind.Payable() {
		doc.PayedAmount = decimal.Zero
		doc.Status = ""
		doc.Remaining = doc.TotalTTC
		return doc
	}
	doc.PayedAmount = ClampPayment(doc.PayedAmount, doc.TotalTTC)
	doc.Status = DeriveStatus(doc.PayedAmount, doc.TotalTTC)
	doc.Remaining = Remaining(doc.TotalTTC, doc.PayedAmount)
	return doc
}

// ApplyPayment records a new amount paid on the document. An amount outside
// the Bounded range counts as zero.
func ApplyPayment(doc domain.Document, amount decimal.Decimal) (domain.Document, error) {
	if !doc.Kind.Payable() {
		return doc, fmt.Errorf("%s: %w", doc.Kind, ErrNoPaymentSemantics)
	}
	if !Bounded(amount) {
		amount = decimal.Zero
	}
	return settle(Recompute(doc), amount), nil
}

func settle(doc domain.Document, amount decimal.Decimal) domain.Document {
	doc.PayedAmount = ClampPayment(amount, doc.TotalTTC)
	doc.Status = DeriveStatus(doc.PayedAmount, doc.TotalTTC)
	doc.Remaining = Remaining(doc.TotalTTC, doc.PayedAmount)
	return doc
}

// SetStatus forces the payment status. The status is the authoritative input:
// paid and unpaid derive the amount themselves, while a partial payment needs
// the caller to state how much was paid.
func SetStatus(doc domain.Document, status domain.PaymentStatus, amount *decimal.Decimal) (domain.Document, error) {
	if !doc.Kind.Payable() {
		return doc, fmt.Errorf("%s: %w", doc.Kind, ErrNoPaymentSemantics)
	}
	if !status.Valid() {
		return doc, fmt.Errorf("%q: %w", status, ErrUnknownStatus)
	}
	doc = Recompute(doc)

	switch status {
	case domain.StatusPaid:
		if amount != nil {
			return doc, ErrConflictingInput
		}
		return settle(doc, doc.TotalTTC), nil
	case domain.StatusUnpaid:
		if amount != nil {
			return doc, ErrConflictingInput
		}
		return settle(doc, decimal.Zero), nil
	}

	if amount == nil {
		return doc, ErrAmountRequired
	}
	if !Bounded(*amount) {
		return doc, ErrInconsistentAmount
	}
	value := round2(*amount)
	if !value.IsPositive() || value.GreaterThanOrEqual(doc.TotalTTC) {
		return doc, fmt.Errorf("%s of %s: %w", value.StringFixed(2), doc.TotalTTC.StringFixed(2), ErrInconsistentAmount)
	}
	return settle(doc, value), nil
}
