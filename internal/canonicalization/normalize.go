// Package canonicalization provides name and identifier normalization for the load engine.
package canonicalization

import (
	"strings"
	"unicode"
)

// NormalizeDimensionName cleans a dimension display name before it is stored.
//
// Normalization rules:
//  1. Leading and trailing whitespace (including non-breaking spaces) is removed.
//  2. Any internal run of whitespace collapses to a single ASCII space.
//  3. Case is preserved: the first spelling seen becomes the display name.
//
// Examples:
//   - NormalizeDimensionName("  Kubernetes ") → "Kubernetes"
//   - NormalizeDimensionName("Google\tCloud   Platform") → "Google Cloud Platform"
//   - NormalizeDimensionName("   ") → ""
//
// Returns: Cleaned display name, or "" when nothing but whitespace was supplied.
func NormalizeDimensionName(name string) string {
	return strings.Join(strings.FieldsFunc(name, unicode.IsSpace), " ")
}

// DimensionKey returns the case- and whitespace-insensitive key a dimension is unique on.
//
// Two names that differ only by case or whitespace produce the same key, so
// "Kubernetes", " kubernetes " and "KUBERNETES" resolve to one dimension row.
//
// Examples:
//   - DimensionKey(" Kubernetes ") → "kubernetes"
//   - DimensionKey("Google  Cloud") → "google cloud"
func DimensionKey(name string) string {
	return strings.ToLower(NormalizeDimensionName(name))
}

// NormalizeEmail lowercases and trims an address for fallback person matching.
// The original export mixes case freely ("Jane.Doe@Example.com" vs "jane.doe@example.com").
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeNaturalKey trims whitespace around an external identifier.
// Natural keys are otherwise opaque and compared byte-for-byte.
func NormalizeNaturalKey(key string) string {
	return strings.TrimSpace(key)
}
