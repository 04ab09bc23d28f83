// Package symbols maps exchange-native tickers to the quote vendor's format.
package symbols

import "strings"

// Normalize converts an exchange-native ticker to the vendor's canonical
// "BASE/USD" form. Rules, applied in order to the uppercased trimmed input:
//
//  1. Strip a trailing ".XXXX" suffix (perpetual/spot venue markers).
//  2. "...USDT" / "...BUSD" -> "BASE/USD".
//  3. "...USD" with a 2-5 letter prefix -> "BASE/USD".
//  4. Anything else is returned uppercased, unchanged.
//
// The function is pure and total: every non-empty input yields a non-empty
// uppercase output, and inputs already in X/USD form pass through untouched.
func Normalize(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))

	if i := strings.LastIndex(s, "."); i > 0 {
		s = s[:i]
	}

	switch {
	case strings.HasSuffix(s, "USDT"):
		return strings.TrimSuffix(s, "USDT") + "/USD"
	case strings.HasSuffix(s, "BUSD"):
		return strings.TrimSuffix(s, "BUSD") + "/USD"
	case strings.HasSuffix(s, "USD") && len(s) >= 6 && isAlpha(s[:len(s)-3]):
		base := s[:len(s)-3]
		if len(base) >= 2 && len(base) <= 5 {
			return base + "/USD"
		}
	}

	return s
}

// Base returns the part before the first "/" of a canonical symbol.
// Used by admission to match against the allowed base-symbol list.
func Base(symbol string) string {
	if i := strings.Index(symbol, "/"); i >= 0 {
		return symbol[:i]
	}
	return symbol
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return len(s) > 0
}
