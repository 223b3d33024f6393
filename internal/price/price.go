// Package price normalizes menu prices into decimal amounts.
//
// Menu pages hand prices around in whatever shape the markup happens to
// carry: plain numbers, "48.00", "R$ 48,00", "R$ 1.234,50". Parse folds all of
// them into a non-negative decimal.Decimal and never fails; anything it cannot
// read becomes zero.
package price

import (
	"encoding/json"
	"math"
	"math/big"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// CurrencySymbol prefixes displayed amounts.
const CurrencySymbol = "R$"

// Parse converts raw into a non-negative amount. Unparseable, negative or
// non-finite input yields zero.
func Parse(raw any) decimal.Decimal {
	var d decimal.Decimal
	switch v := raw.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		d = v
	case *decimal.Decimal:
		if v == nil {
			return decimal.Zero
		}
		d = *v
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero
		}
		d = decimal.NewFromFloat(v)
	case float32:
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Zero
		}
		d = decimal.NewFromFloat32(v)
	case int:
		d = decimal.NewFromInt(int64(v))
	case int32:
		d = decimal.NewFromInt32(v)
	case int64:
		d = decimal.NewFromInt(v)
	case uint:
		d = fromUint(uint64(v))
	case uint32:
		d = fromUint(uint64(v))
	case uint64:
		d = fromUint(v)
	case json.Number:
		return parseString(v.String())
	case string:
		return parseString(v)
	case []byte:
		return parseString(string(v))
	default:
		return decimal.Zero
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func fromUint(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

func parseString(s string) decimal.Decimal {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	// Drop currency prefix and suffix: keep the span from the first to the
	// last digit, plus a leading separator (".50").
	start := strings.IndexFunc(s, isNumeric)
	end := strings.LastIndexFunc(s, unicode.IsDigit)
	if start < 0 || end < 0 || end < start {
		return decimal.Zero
	}
	if start > 0 && s[start-1] == '-' {
		return decimal.Zero
	}
	s = s[start : end+1]

	s = normalizeSeparators(s)
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func isNumeric(r rune) bool {
	return unicode.IsDigit(r) || r == ',' || r == '.'
}

// normalizeSeparators rewrites "1.234,50", "1,234.50", "48,00" and
// "1.234.567" into plain dot-decimal notation.
func normalizeSeparators(s string) string {
	comma := strings.LastIndex(s, ",")
	dot := strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot >= 0:
		if comma > dot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		if strings.Count(s, ",") > 1 {
			return strings.ReplaceAll(s, ",", "")
		}
		return strings.Replace(s, ",", ".", 1)
	case strings.Count(s, ".") > 1:
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}

// Format renders d with two decimal places ("48.00").
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// Display renders d the way the cart page shows it ("R$ 48.00").
func Display(d decimal.Decimal) string {
	return CurrencySymbol + " " + Format(d)
}
