package oauth

import "strings"

// ScopeToList splits a space-delimited scope string. An empty scope yields nil.
func ScopeToList(scope string) []string {
	return strings.Fields(scope)
}

// ListToScope joins scopes with single spaces.
func ListToScope(scopes []string) string {
	return strings.Join(scopes, " ")
}

// ScopeIsSubset reports whether every scope in requested is present in granted.
func ScopeIsSubset(requested, granted string) bool {
	allowed := make(map[string]struct{})
	for _, s := range ScopeToList(granted) {
		allowed[s] = struct{}{}
	}
	for _, s := range ScopeToList(requested) {
		if _, ok := allowed[s]; !ok {
			return false
		}
	}
	return true
}
