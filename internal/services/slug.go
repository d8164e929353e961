// internal/services/slug.go
package services

import "strings"

// NormalizeProductID maps a display name to its stable product id: the name
// is lower-cased and every character outside [a-z0-9] is replaced with '-',
// one hyphen per character. Consecutive hyphens are not collapsed and
// leading/trailing hyphens are not trimmed; the mapping must stay exact so
// ids remain stable across releases.
//
// Distinct display names can normalize to the same id; such names are
// treated as the same product.
func NormalizeProductID(displayName string) string {
	lowered := strings.ToLower(displayName)

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}
