package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Processor amounts travel in minor units. Most ISO currencies carry two
// decimal places; the lists below mirror the processor's exceptions.
var threeDecimalCurrencies = map[string]struct{}{
	"BHD": {}, "LYD": {}, "JOD": {}, "IQD": {}, "KWD": {}, "OMR": {}, "TND": {},
}

var zeroDecimalCurrencies = map[string]struct{}{
	"BYR": {}, "XOF": {}, "BIF": {}, "XAF": {}, "KMF": {}, "DJF": {},
	"XPF": {}, "GNF": {}, "JPY": {}, "KRW": {}, "PYG": {}, "RWF": {},
	"VUV": {}, "VND": {},
}

// Exponent returns the number of minor-unit decimal places for a currency.
func Exponent(currency string) int {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if _, ok := threeDecimalCurrencies[code]; ok {
		return 3
	}
	if _, ok := zeroDecimalCurrencies[code]; ok {
		return 0
	}
	return 2
}

// Major converts a minor-unit amount into a major-unit decimal,
// e.g. Major(1050, "USD") == 10.50, Major(1050, "JPY") == 1050.
func Major(amount int64, currency string) decimal.Decimal {
	return decimal.NewFromInt(amount).Shift(int32(-Exponent(currency)))
}

// Format renders a minor-unit amount as a major-unit decimal string at
// the currency's full precision.
func Format(amount int64, currency string) string {
	return Major(amount, currency).StringFixed(int32(Exponent(currency)))
}

// FormatWithCurrency renders a minor-unit amount together with its ISO code.
func FormatWithCurrency(amount int64, currency string) string {
	return fmt.Sprintf("%s %s", Format(amount, currency), strings.ToUpper(strings.TrimSpace(currency)))
}
