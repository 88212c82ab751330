// Package core provides the board model, amount parsing and category rules.
//
// This file contains the amount parser used for user input, custom field
// prefill and persisted records.
package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var half = decimal.New(5, -1)

// ParseAmount normalizes a free-form amount string into a value rounded to
// two decimals. It never fails: input that holds no number yields zero.
//
// Every character other than digits, '.', ',' and '-' is dropped. When both
// separators appear, the rightmost one is the decimal point and the other is
// removed as a thousands separator. A lone ',' is a decimal point.
//
// Examples:
//
//	ParseAmount("1.234,56")  -> 1234.56
//	ParseAmount("1,234.56")  -> 1234.56
//	ParseAmount("$ 12,5")    -> 12.5
//	ParseAmount("abc")       -> 0
func ParseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	s = strings.Map(func(r rune) rune {
		if isDigit(r) || r == '.' || r == ',' || r == '-' {
			return r
		}
		return -1
	}, s)

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		s = strings.ReplaceAll(s, ",", ".")
	}

	d, ok := leadingDecimal(s)
	if !ok {
		return decimal.Zero
	}
	return RoundCents(d)
}

// AmountFromValue resolves a decoded JSON value into an amount.
// Numbers are returned as they are, strings go through ParseAmount and
// anything else (nil, bools, objects) is zero.
func AmountFromValue(v any) decimal.Decimal {
	switch x := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return x
	case float64:
		return fromFloat(x)
	case float32:
		return fromFloat(float64(x))
	case int:
		return decimal.NewFromInt(int64(x))
	case int64:
		return decimal.NewFromInt(x)
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		if err != nil {
			return decimal.Zero
		}
		return d
	case string:
		return ParseAmount(x)
	default:
		return decimal.Zero
	}
}

// RoundCents rounds to two decimals, halves going towards positive infinity.
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Shift(2).Add(half).Floor().Shift(-2)
}

func fromFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

// leadingDecimal reads the longest "-?digits[.digits]" prefix of s.
func leadingDecimal(s string) (decimal.Decimal, bool) {
	i := 0
	neg := false
	if i < len(s) && s[i] == '-' {
		neg = true
		i++
	}
	start := i
	for i < len(s) && isDigit(rune(s[i])) {
		i++
	}
	intPart := s[start:i]
	fracPart := ""
	if i < len(s) && s[i] == '.' {
		j := i + 1
		for j < len(s) && isDigit(rune(s[j])) {
			j++
		}
		fracPart = s[i+1 : j]
	}
	if intPart == "" && fracPart == "" {
		return decimal.Zero, false
	}
	if intPart == "" {
		intPart = "0"
	}
	num := intPart
	if fracPart != "" {
		num += "." + fracPart
	}
	if neg {
		num = "-" + num
	}
	d, err := decimal.NewFromString(num)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// scalarString renders a decoded JSON scalar the way it was written, so
// custom field numbers go through the same string path as typed input.
func scalarString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
