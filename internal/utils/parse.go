// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import (
	"strconv"
	"strings"
)

// AtoiDefault converts a string to an int using strconv.Atoi.
// If the string is empty or cannot be parsed as an integer,
// it returns the provided default value instead.
//
// Example:
//
//	n := utils.AtoiDefault("42", 0) // returns 42
//	n = utils.AtoiDefault("", 10)   // returns 10
//	n = utils.AtoiDefault("x", 5)   // returns 5
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Clip truncates s to at most max bytes, appending a continuation marker
// when anything was removed. Telegram rejects messages above 4096 bytes,
// so long renders (transaction history, server logs) pass through this.
func Clip(s string, max int) string {
	const marker = "\n\n…"
	if len(s) <= max {
		return s
	}
	if max <= len(marker) {
		return s[:max]
	}
	cut := max - len(marker)
	// Do not split a multi-byte rune.
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut] + marker
}

// SuffixID extracts the trailing identifier of an underscore-delimited
// callback action, e.g. SuffixID("buy_product_42") == "42".
func SuffixID(data string) string {
	if i := strings.LastIndex(data, "_"); i >= 0 {
		return data[i+1:]
	}
	return data
}
