package magic

import (
	"math"
	"strings"
)

// zeroDecimalCurrencies are the ISO 4217 currencies with no minor unit;
// their amounts go over the wire unscaled.
var zeroDecimalCurrencies = map[string]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {},
	"JPY": {}, "KMF": {}, "KRW": {}, "MGA": {},
	"PYG": {}, "RWF": {}, "UGX": {}, "VND": {},
	"VUV": {}, "XAF": {}, "XOF": {}, "XPF": {},
}

// MinorUnits converts a major-unit amount to the currency's smallest unit:
// 120.00 NGN becomes 12000, 500 JPY stays 500. Currency codes are matched
// case-insensitively.
func MinorUnits(amount float64, currency string) int64 {
	if _, ok := zeroDecimalCurrencies[strings.ToUpper(currency)]; ok {
		return int64(math.Round(amount))
	}
	return int64(math.Round(amount * 100))
}
