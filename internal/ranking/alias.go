package ranking

import (
	"sort"
	"strings"
)

// defaultAliases maps a canonical tag to the informal terms people use for it.
var defaultAliases = map[string][]string{
	"hot tub":  {"hottub", "jacuzzi"},
	"pool":     {"swimming pool"},
	"wifi":     {"wi-fi", "internet"},
	"beach":    {"oceanfront", "seaside", "coastal", "sea", "ocean", "coast"},
	"city":     {"downtown", "urban"},
	"mountain": {"alpine", "mountains"},
	"lake":     {"lakeside"},
}

type aliasGroup struct {
	canonical string
	phrases   [][]string // canonical first, then aliases; each phrase tokenized
	tokens    []string   // every token of every phrase
}

// AliasTable canonicalizes informal terms and expands token sets so a query
// and a catalog row match whichever side used the alias.
type AliasTable struct {
	groups []aliasGroup
}

// DefaultAliases returns the built-in vacation-rental vocabulary.
func DefaultAliases() *AliasTable { return NewAliasTable(defaultAliases) }

func NewAliasTable(m map[string][]string) *AliasTable {
	canons := make([]string, 0, len(m))
	for c := range m {
		canons = append(canons, c)
	}
	sort.Strings(canons)

	t := &AliasTable{}
	for _, canon := range canons {
		aliases := m[canon]
		g := aliasGroup{canonical: Normalize(canon)}
		seen := map[string]struct{}{}
		for _, phrase := range append([]string{canon}, aliases...) {
			toks := Tokenize(phrase)
			if len(toks) == 0 {
				continue
			}
			g.phrases = append(g.phrases, toks)
			for _, tok := range toks {
				if _, ok := seen[tok]; !ok {
					seen[tok] = struct{}{}
					g.tokens = append(g.tokens, tok)
				}
			}
		}
		if len(g.phrases) > 0 {
			t.groups = append(t.groups, g)
		}
	}
	return t
}

func (g aliasGroup) matches(set TokenSet) bool {
	for _, phrase := range g.phrases {
		all := true
		for _, tok := range phrase {
			if !set.Has(tok) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

// Expand returns tokens plus the canonical tag and every alias of each group
// present in tokens. A multi-word phrase is present when all of its tokens
// are. Groups are applied until nothing changes, so Expand(Expand(t)) equals
// Expand(t) and the input is never shrunk. The input set is not modified.
func (t *AliasTable) Expand(tokens TokenSet) TokenSet {
	out := tokens.Clone()
	if t == nil {
		return out
	}
	applied := make([]bool, len(t.groups))
	for changed := true; changed; {
		changed = false
		for i, g := range t.groups {
			if applied[i] || !g.matches(out) {
				continue
			}
			applied[i] = true
			changed = true
			for _, tok := range g.tokens {
				out[tok] = struct{}{}
			}
		}
	}
	return out
}

// Canonical maps an informal term to its canonical tag ("jacuzzi" -> "hot tub").
// Unknown terms come back normalized.
func (t *AliasTable) Canonical(term string) string {
	n := Normalize(term)
	if t == nil {
		return n
	}
	for _, g := range t.groups {
		for _, phrase := range g.phrases {
			if strings.Join(phrase, " ") == n {
				return g.canonical
			}
		}
	}
	return n
}
