package ranking

import (
	"sort"
	"strings"

	"stayfinder/internal/domain"
)

// DefaultSearchTopK is the pre-filter size handed to the Recommender.
const DefaultSearchTopK = 300

// Fulltext concatenates the searchable columns of p and normalizes the result.
// It is used only for search and scoring, never displayed.
func Fulltext(p domain.Property) string {
	return Normalize(strings.Join([]string{
		p.Location,
		p.PropertyType,
		p.Features,
		p.Tags,
		p.Environment,
		p.Description,
	}, " | "))
}

type indexedRow struct {
	prop   domain.Property
	tokens TokenSet // alias-expanded fulltext tokens
}

// SmartSearch narrows a catalog to the rows whose text overlaps a free-text
// query the most. Row tokens are computed once at construction; the index is
// read-only afterwards.
type SmartSearch struct {
	rows    []indexedRow
	aliases *AliasTable
}

// NewSmartSearch indexes props. A nil alias table uses DefaultAliases.
func NewSmartSearch(props []domain.Property, aliases *AliasTable) *SmartSearch {
	if aliases == nil {
		aliases = DefaultAliases()
	}
	s := &SmartSearch{rows: make([]indexedRow, len(props)), aliases: aliases}
	for i, p := range props {
		s.rows[i] = indexedRow{
			prop:   p,
			tokens: aliases.Expand(TokensOf(Fulltext(p))),
		}
	}
	return s
}

func (s *SmartSearch) Len() int { return len(s.rows) }

// Search scores every row against query and returns the best topK.
func (s *SmartSearch) Search(query string, topK int) []domain.Candidate {
	return s.SearchWhere(query, topK, nil)
}

// SearchWhere is Search restricted to rows accepted by keep (nil keeps all).
// Scores are Jaccard similarities between the alias-expanded query and row
// tokens. Ties, including the all-zero empty query, keep catalog order.
func (s *SmartSearch) SearchWhere(query string, topK int, keep func(domain.Property) bool) []domain.Candidate {
	if topK <= 0 {
		topK = DefaultSearchTopK
	}
	q := TokensOf(query)
	if len(q) > 0 {
		q = s.aliases.Expand(q)
	}

	out := make([]domain.Candidate, 0, len(s.rows))
	for _, row := range s.rows {
		if keep != nil && !keep(row.prop) {
			continue
		}
		score := 0.0
		if len(q) > 0 {
			score = Jaccard(q, row.tokens)
		}
		out = append(out, domain.Candidate{Property: row.prop, SemanticScore: score})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].SemanticScore > out[j].SemanticScore })
	if len(out) > topK {
		out = out[:topK]
	}
	return out
}

// Properties strips the scores from a candidate list, preserving order.
func Properties(cs []domain.Candidate) []domain.Property {
	out := make([]domain.Property, len(cs))
	for i, c := range cs {
		out[i] = c.Property
	}
	return out
}
