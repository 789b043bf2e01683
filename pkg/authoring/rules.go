// Package authoring holds the rules and the editable model used while
// writing a config document, before it is marshaled back to JSON.
package authoring

import "strings"

// KeyIsUnique reports whether key may be accepted into a scope whose
// accepted keys are taken. An empty key is never valid.
func KeyIsUnique(key string, taken map[string]bool) bool {
	return key != "" && !taken[key]
}

// RespectsPrefix reports whether key follows the prefix configured for
// category. Uncategorized entries and categories without a prefix always
// comply.
func RespectsPrefix(key, category string, prefixes map[string]string) bool {
	if category == "" {
		return true
	}
	prefix := prefixes[category]
	if prefix == "" {
		return true
	}
	return strings.HasPrefix(key, prefix)
}
