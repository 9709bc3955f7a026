// Package types holds value conversions shared by the codec and the validation engine.
package types

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxExponent bounds the decimal exponent a number may carry and still be rendered in
// positional form. Rendering 1e999999999 digit by digit would cost a gigabyte, so such
// values are kept as the text they were written in.
const MaxExponent = 64

var (
	// integralText matches a spreadsheet-rendered integer such as "7.0" or "007.00".
	integralText = regexp.MustCompile(`^-?\d+\.0+$`)
	// numberText is JSON number syntax: no leading zeros, so codes like "007" stay text.
	numberText = regexp.MustCompile(`^-?(0|[1-9]\d*)(\.\d+)?([eE][+-]?\d+)?$`)
)

// NormalizeID converts a cell value into the canonical string form used to compare identifiers.
// Numbers, and text written like a JSON number, take their shortest decimal form
// (7.0 -> "7", "7.50" -> "7.5", 1e3 -> "1000"). Other strings are trimmed and otherwise kept
// verbatim, so "007" stays "007".
// The second return is false when the value carries no usable id: nil, empty text, NaN,
// infinities, objects and lists.
func NormalizeID(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return normalizeIDText(x)
	case json.Number:
		return normalizeIDText(string(x))
	case decimal.Decimal:
		if s, ok := canonical(x); ok {
			return s, true
		}
		return x.Coefficient().String() + "e" + strconv.Itoa(int(x.Exponent())), true
	case float64:
		return normalizeFloat(x)
	case float32:
		return normalizeFloat(float64(x))
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case int32:
		return strconv.FormatInt(int64(x), 10), true
	case uint64:
		return strconv.FormatUint(x, 10), true
	case uint32:
		return strconv.FormatUint(uint64(x), 10), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		return "", false
	}
}

func normalizeIDText(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if numberText.MatchString(s) {
		if d, err := decimal.NewFromString(s); err == nil {
			if out, ok := canonical(d); ok {
				return out, true
			}
		}
		return s, true
	}
	if integralText.MatchString(s) {
		return s[:strings.IndexByte(s, '.')], true
	}
	return s, true
}

// canonical renders d positionally when its exponent is within MaxExponent.
func canonical(d decimal.Decimal) (string, bool) {
	if exp := d.Exponent(); exp > MaxExponent || exp < -MaxExponent {
		return "", false
	}
	return d.String(), true
}

func normalizeFloat(f float64) (string, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", false
	}
	return decimal.NewFromFloat(f).String(), true
}

// NumberValue converts a JSON number into the most specific Go number: int64 when the
// value is integral and fits, float64 otherwise. Values outside the float64 range
// report false. Writers that keep cell types use it.
func NumberValue(n json.Number) (any, bool) {
	s := strings.TrimSpace(string(n))
	if !numberText.MatchString(s) {
		return nil, false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, true
	}
	if d, err := decimal.NewFromString(s); err == nil {
		if out, ok := canonical(d); ok && d.IsInteger() {
			if i, err := strconv.ParseInt(out, 10, 64); err == nil {
				return i, true
			}
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, false
	}
	return f, true
}

// ParseNumber reads a plain-text cell as a JSON number when it is written like one.
// Readers of typed sources (xlsx, SQL) use it to restore numeric cells.
func ParseNumber(s string) (json.Number, bool) {
	s = strings.TrimSpace(s)
	if !numberText.MatchString(s) {
		return "", false
	}
	return json.Number(s), true
}
