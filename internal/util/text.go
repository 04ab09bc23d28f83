// Package util provides small shared helpers.
package util

import "unicode/utf8"

// Truncate shortens s to at most max bytes, appending an ellipsis when
// anything was cut. The cut never splits a multi-byte rune, so the result is
// always valid UTF-8. Used to bound notification payload sizes.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
