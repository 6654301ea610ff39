// Package amountwords spells out amounts in French for printed invoices,
// e.g. "mille deux cent trente-quatre dinars et cinquante centimes".
package amountwords

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var (
	ErrNegative   = errors.New("amount must not be negative")
	ErrOutOfRange = errors.New("amount too large to spell out")
)

// maxInteger bounds the integer part to below one thousand milliards.
const maxInteger = 999_999_999_999

// maxAmount is the first amount whose integer part no longer fits.
var maxAmount = decimal.NewFromInt(maxInteger + 1)

type Currency struct {
	Unit          string
	UnitPlural    string
	Subunit       string
	SubunitPlural string
}

var DefaultCurrency = Currency{
	Unit:          "dinar",
	UnitPlural:    "dinars",
	Subunit:       "centime",
	SubunitPlural: "centimes",
}

type Formatter struct {
	currency Currency
	printer  *message.Printer
}

// New returns a formatter for currency. Empty names fall back to
// DefaultCurrency.
func New(currency Currency) *Formatter {
	if currency.Unit == "" {
		currency.Unit = DefaultCurrency.Unit
	}
	if currency.UnitPlural == "" {
		currency.UnitPlural = currency.Unit + "s"
	}
	if currency.Subunit == "" {
		currency.Subunit = DefaultCurrency.Subunit
	}
	if currency.SubunitPlural == "" {
		currency.SubunitPlural = currency.Subunit + "s"
	}
	return &Formatter{currency: currency, printer: message.NewPrinter(language.French)}
}

// Words spells out amount rounded to the cent. The cents clause is omitted
// when the amount is whole.
func (f *Formatter) Words(amount decimal.Decimal) (string, error) {
	if amount.IsNegative() {
		return "", ErrNegative
	}
	if amount.GreaterThanOrEqual(maxAmount) {
		return "", fmt.Errorf("%s: %w", amount.Truncate(0).String(), ErrOutOfRange)
	}
	rounded := amount.Round(2)
	whole := rounded.IntPart()
	if whole > maxInteger {
		return "", fmt.Errorf("%s: %w", rounded.String(), ErrOutOfRange)
	}
	cents := rounded.Sub(decimal.NewFromInt(whole)).Mul(decimal.NewFromInt(100)).IntPart()

	var b strings.Builder
	b.WriteString(Integer(whole))
	unit := pick(whole, f.currency.Unit, f.currency.UnitPlural)
	if whole >= 1_000_000 && whole%1_000_000 == 0 {
		// "un million de dinars", "deux milliards d'euros"
		if startsWithVowel(unit) {
			b.WriteString(" d'")
		} else {
			b.WriteString(" de ")
		}
	} else {
		b.WriteByte(' ')
	}
	b.WriteString(unit)

	if cents > 0 {
		b.WriteString(" et ")
		b.WriteString(Integer(cents))
		b.WriteByte(' ')
		b.WriteString(pick(cents, f.currency.Subunit, f.currency.SubunitPlural))
	}
	return b.String(), nil
}

// Figures formats amount with French grouping and a decimal comma.
func (f *Formatter) Figures(amount decimal.Decimal) string {
	return f.printer.Sprint(number.Decimal(amount.Round(2).InexactFloat64(), number.Scale(2)))
}

// Integer spells out n in French. n must be in [0, 999 999 999 999].
func Integer(n int64) string {
	if n == 0 {
		return "zéro"
	}

	var parts []string
	if billions := n / 1_000_000_000; billions > 0 {
		parts = append(parts, below1000(int(billions), true), pick(billions, "milliard", "milliards"))
		n %= 1_000_000_000
	}
	if millions := n / 1_000_000; millions > 0 {
		parts = append(parts, below1000(int(millions), true), pick(millions, "million", "millions"))
		n %= 1_000_000
	}
	if thousands := n / 1000; thousands > 0 {
		if thousands > 1 {
			// mille is invariable and takes no "s" on the words before it
			parts = append(parts, below1000(int(thousands), false))
		}
		parts = append(parts, "mille")
		n %= 1000
	}
	if n > 0 {
		parts = append(parts, below1000(int(n), true))
	}
	return strings.Join(parts, " ")
}

var units = [...]string{
	"zéro", "un", "deux", "trois", "quatre", "cinq", "six", "sept", "huit", "neuf",
	"dix", "onze", "douze", "treize", "quatorze", "quinze", "seize",
}

var tens = [...]string{2: "vingt", 3: "trente", 4: "quarante", 5: "cinquante", 6: "soixante"}

// below1000 spells 1..999. final is false when "mille" follows, which
// drops the plural of "cents" and "quatre-vingts".
func below1000(n int, final bool) string {
	hundreds, rest := n/100, n%100
	if hundreds == 0 {
		return below100(rest, final)
	}

	prefix := "cent"
	if hundreds > 1 {
		prefix = units[hundreds] + " cent"
		if rest == 0 && final {
			prefix += "s"
		}
	}
	if rest == 0 {
		return prefix
	}
	return prefix + " " + below100(rest, final)
}

func below100(n int, final bool) string {
	switch {
	case n <= 16:
		return units[n]
	case n < 20:
		return "dix-" + units[n-10]
	case n < 70:
		word, unit := tens[n/10], n%10
		switch unit {
		case 0:
			return word
		case 1:
			return word + " et un"
		}
		return word + "-" + units[unit]
	case n < 80:
		if n == 71 {
			return "soixante et onze"
		}
		return "soixante-" + below100(n-60, true)
	case n == 80:
		if final {
			return "quatre-vingts"
		}
		return "quatre-vingt"
	default:
		return "quatre-vingt-" + below100(n-80, true)
	}
}

func pick(n int64, singular, plural string) string {
	if n >= 2 {
		return plural
	}
	return singular
}

func startsWithVowel(word string) bool {
	if word == "" {
		return false
	}
	return strings.ContainsRune("aeiouyéèêh", []rune(strings.ToLower(word))[0])
}
