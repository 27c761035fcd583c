// Package phone canonicalizes Bangladeshi mobile numbers so that lookups
// can use a single equality match instead of per-variant OR chains.
package phone

import "strings"

// Normalize converts the common input forms of a BD mobile number
// ("+8801XXXXXXXXX", "8801XXXXXXXXX", "01XXXXXXXXX") to the canonical
// "8801XXXXXXXXX" form. Input that does not look like a BD mobile number
// is returned stripped of spaces and dashes but otherwise unchanged.
func Normalize(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, strings.TrimSpace(s))

	switch {
	case strings.HasPrefix(cleaned, "+880"):
		return cleaned[1:]
	case strings.HasPrefix(cleaned, "880"):
		return cleaned
	case strings.HasPrefix(cleaned, "01") && len(cleaned) == 11:
		return "88" + cleaned
	}
	return cleaned
}

// Valid reports whether s normalizes to a well-formed BD mobile number
// (880 followed by a ten-digit subscriber part starting with 1).
func Valid(s string) bool {
	n := Normalize(s)
	if len(n) != 13 || !strings.HasPrefix(n, "8801") {
		return false
	}
	for _, r := range n {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
