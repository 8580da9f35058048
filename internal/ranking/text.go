// Package ranking holds the candidate narrowing and scoring pipeline:
// token normalization, alias expansion, SmartSearch and the Recommender.
// Everything here is pure and safe for concurrent use.
package ranking

import "strings"

// Normalize lowercases s, turns every character outside [a-z0-9-] into a
// separator, collapses separator runs to one space and trims both ends.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pending := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			if pending && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}

// Tokenize returns the non-empty space separated tokens of Normalize(s).
func Tokenize(s string) []string {
	return strings.Fields(Normalize(s))
}

// TokenSet is an unordered set of normalized tokens.
type TokenSet map[string]struct{}

func NewTokenSet(tokens ...string) TokenSet {
	set := make(TokenSet, len(tokens))
	for _, t := range tokens {
		if t != "" {
			set[t] = struct{}{}
		}
	}
	return set
}

// TokensOf tokenizes every text and unions the results.
func TokensOf(texts ...string) TokenSet {
	set := TokenSet{}
	for _, s := range texts {
		for _, t := range Tokenize(s) {
			set[t] = struct{}{}
		}
	}
	return set
}

func (s TokenSet) Has(t string) bool {
	_, ok := s[t]
	return ok
}

func (s TokenSet) Clone() TokenSet {
	out := make(TokenSet, len(s))
	for t := range s {
		out[t] = struct{}{}
	}
	return out
}

// Jaccard is |a∩b| / |a∪b|, and 0 when both sets are empty.
func Jaccard(a, b TokenSet) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for t := range small {
		if large.Has(t) {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
