package amountwords

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInteger(t *testing.T) {
	cases := map[int64]string{
		0:             "zéro",
		1:             "un",
		16:            "seize",
		17:            "dix-sept",
		21:            "vingt et un",
		22:            "vingt-deux",
		70:            "soixante-dix",
		71:            "soixante et onze",
		77:            "soixante-dix-sept",
		80:            "quatre-vingts",
		81:            "quatre-vingt-un",
		91:            "quatre-vingt-onze",
		99:            "quatre-vingt-dix-neuf",
		100:           "cent",
		101:           "cent un",
		200:           "deux cents",
		201:           "deux cent un",
		1000:          "mille",
		1001:          "mille un",
		2000:          "deux mille",
		21000:         "vingt et un mille",
		80000:         "quatre-vingt mille",
		200000:        "deux cent mille",
		1_000_000:     "un million",
		2_500_000:     "deux millions cinq cent mille",
		200_000_000:   "deux cents millions",
		1_000_000_000: "un milliard",
	}
	for n, want := range cases {
		assert.Equal(t, want, Integer(n), "n=%d", n)
	}
}

func TestWords(t *testing.T) {
	f := New(DefaultCurrency)
	cases := map[string]string{
		"0":          "zéro dinar",
		"1":          "un dinar",
		"2":          "deux dinars",
		"0.01":       "zéro dinar et un centime",
		"1234.56":    "mille deux cent trente-quatre dinars et cinquante-six centimes",
		"1234.5":     "mille deux cent trente-quatre dinars et cinquante centimes",
		"99.999":     "cent dinars",
		"1000000":    "un million de dinars",
		"3000000.20": "trois millions de dinars et vingt centimes",
	}
	for raw, want := range cases {
		got, err := f.Words(decimal.RequireFromString(raw))
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
}

func TestWordsElidesBeforeVowel(t *testing.T) {
	f := New(Currency{Unit: "euro", Subunit: "centime"})
	got, err := f.Words(decimal.NewFromInt(2_000_000))
	require.NoError(t, err)
	require.Equal(t, "deux millions d'euros", got)
}

func TestWordsRejectsOutOfRange(t *testing.T) {
	f := New(DefaultCurrency)
	_, err := f.Words(decimal.NewFromInt(-1))
	require.ErrorIs(t, err, ErrNegative)

	_, err = f.Words(decimal.NewFromInt(1_000_000_000_000))
	require.ErrorIs(t, err, ErrOutOfRange)

	// Past int64 the integer part would wrap to a negative number.
	for _, raw := range []string{"1e19", "18446744073709551617.5", "999999999999.999"} {
		_, err = f.Words(decimal.RequireFromString(raw))
		require.ErrorIs(t, err, ErrOutOfRange, raw)
	}
}

func TestFigures(t *testing.T) {
	got := New(DefaultCurrency).Figures(decimal.RequireFromString("1234.5"))
	require.True(t, strings.HasSuffix(got, "234,50"), got)
	require.True(t, strings.HasPrefix(got, "1"), got)
}
