package model

import "strings"

// Capability sets, job requirements, and failed-node lists are stored as
// space-delimited token columns rather than join tables. These helpers keep
// the delimiting in one place; comparisons are always case-sensitive.

// SplitTokens splits a delimited token column into its tokens.
func SplitTokens(s string) []string {
	return strings.Fields(s)
}

// JoinTokens joins tokens back into column form.
func JoinTokens(tokens []string) string {
	return strings.Join(tokens, " ")
}

// HasToken reports whether the delimited column contains the exact token.
func HasToken(s, token string) bool {
	for _, t := range strings.Fields(s) {
		if t == token {
			return true
		}
	}
	return false
}

// AddToken appends a token to the delimited column. Adding a token that is
// already present is a no-op.
func AddToken(s, token string) string {
	if token == "" || HasToken(s, token) {
		return s
	}
	if s == "" {
		return token
	}
	return s + " " + token
}
