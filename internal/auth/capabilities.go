// ABOUTME: Capability sets answering whether a caller may see a visibility token
// ABOUTME: Supports exact tokens, "*" for everything, and dotted prefix wildcards like "waypoints.*"

package auth

import (
	"sort"
	"strings"
)

// Wildcard grants every token.
const Wildcard = "*"

// Set is a set of capability tokens. The zero value grants nothing.
type Set map[string]struct{}

// NewSet builds a set from tokens, skipping blanks.
func NewSet(tokens ...string) Set {
	s := make(Set, len(tokens))
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			s[tok] = struct{}{}
		}
	}
	return s
}

// ParseSet builds a set from a comma-separated list.
func ParseSet(list string) Set {
	return NewSet(strings.Split(list, ",")...)
}

// Has reports whether the set grants token. A token "a.b.c" is granted by
// "a.b.c", "a.b.*", "a.*" or "*".
func (s Set) Has(token string) bool {
	if len(s) == 0 {
		return false
	}
	if _, ok := s[token]; ok {
		return true
	}
	if _, ok := s[Wildcard]; ok {
		return true
	}
	for i := strings.LastIndex(token, "."); i > 0; i = strings.LastIndex(token[:i], ".") {
		if _, ok := s[token[:i]+".*"]; ok {
			return true
		}
	}
	return false
}

// Tokens returns the tokens in sorted order.
func (s Set) Tokens() []string {
	out := make([]string, 0, len(s))
	for tok := range s {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}
