// Package core provides amount parsing and handling utilities.
//
// Amounts are whole currency units with no minor part, typed by the user
// one keystroke at a time.
package core

import (
	"strconv"
	"strings"
	"unicode"
)

// SanitizeAmount keeps only the ASCII digits of s.
//
// Examples:
//   SanitizeAmount("4,500원") -> "4500"
//   SanitizeAmount("-12")     -> "12"
//   SanitizeAmount("abc")     -> ""
func SanitizeAmount(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < unicode.MaxASCII && unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParseAmount converts a sanitized amount to a non-negative integer.
// Any parse failure, including overflow, yields 0.
func ParseAmount(s string) int64 {
	v, err := strconv.ParseInt(SanitizeAmount(s), 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// FormatAmount renders an amount with thousands separators, e.g. 4500 -> "4,500".
func FormatAmount(v int64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	digits := strconv.FormatInt(v, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
