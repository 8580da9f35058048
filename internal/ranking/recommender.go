package ranking

import (
	"math"
	"sort"
	"strings"

	"stayfinder/internal/domain"
)

// DefaultTopK is the number of recommendations returned when the caller does
// not ask for a specific count.
const DefaultTopK = 5

// neutral is used for sub-scores whose signal is inactive; its weight is 0.
const neutral = 0.5

// Recommender ranks properties by a weighted blend of independent sub-scores
// whose weights follow the signals actually present in the request.
// It keeps no per-call state.
type Recommender struct {
	weights Weights
	aliases *AliasTable
	topK    int
}

func NewRecommender(w Weights, topK int) *Recommender {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Recommender{weights: w, aliases: DefaultAliases(), topK: topK}
}

// request is the per-call view of the inputs, tokenized once.
type request struct {
	envWants     TokenSet
	bmin, bmax   float64
	groupSize    int
	tagWants     TokenSet
	locations    []string
	locTokens    TokenSet
	llmPool      TokenSet
	ids          map[string]struct{}
	budgetActive bool
}

func (r *Recommender) prepare(q domain.QueryContext, h domain.Hints) request {
	req := request{groupSize: q.GroupSize}

	req.envWants = r.expand(TokensOf(append([]string{q.Environment}, h.Environments...)...))

	req.bmin, req.bmax = sanitize(q.BudgetMin), sanitize(q.BudgetMax)
	if req.bmin > req.bmax {
		req.bmin, req.bmax = req.bmax, req.bmin
	}
	req.budgetActive = !(req.bmin == 0 && req.bmax == 0)

	tagFeat := append(append([]string{}, h.Tags...), h.Features...)
	req.tagWants = r.expand(TokensOf(tagFeat...))
	req.llmPool = r.expand(TokensOf(append(tagFeat, h.Environments...)...))

	for _, l := range append(append([]string{}, q.Locations...), h.Locations...) {
		if l = strings.TrimSpace(l); l != "" {
			req.locations = append(req.locations, l)
		}
	}
	req.locTokens = TokensOf(req.locations...)

	for _, id := range h.PropertyIDs {
		if id = strings.TrimSpace(id); id != "" {
			if req.ids == nil {
				req.ids = map[string]struct{}{}
			}
			req.ids[id] = struct{}{}
		}
	}
	return req
}

func (req request) active() ActiveSet {
	var a ActiveSet
	a[SignalEnv] = len(req.envWants) > 0
	a[SignalBudget] = req.budgetActive
	a[SignalGroup] = req.groupSize > 0
	a[SignalTagFeature] = len(req.tagWants) > 0
	a[SignalLocation] = len(req.locations) > 0
	a[SignalLLMSimilarity] = len(req.llmPool) > 0
	return a
}

// EffectiveWeights reports the blend Recommend would use for these inputs.
func (r *Recommender) EffectiveWeights(q domain.QueryContext, h domain.Hints) Blend {
	return r.weights.Normalize(r.prepare(q, h).active())
}

// Recommend scores every property and returns the best topK (the
// recommender's default when topK <= 0) by descending fit score. Equal scores
// keep input order. An empty input yields an empty, non-nil result.
func (r *Recommender) Recommend(q domain.QueryContext, props []domain.Property, h domain.Hints, topK int) []domain.Recommendation {
	if topK <= 0 {
		topK = r.topK
	}
	out := make([]domain.Recommendation, 0, len(props))
	if len(props) == 0 {
		return out
	}

	req := r.prepare(q, h)
	blend := r.weights.Normalize(req.active())

	for _, p := range props {
		s := r.score(req, p)
		fit := blend[SignalEnv]*s.Env +
			blend[SignalBudget]*s.Budget +
			blend[SignalGroup]*s.Group +
			blend[SignalTagFeature]*s.TagFeature +
			blend[SignalLocation]*s.Location +
			blend[SignalLLMSimilarity]*s.LLMSimilarity +
			r.weights.IDBoost*s.LLMIDHit +
			r.weights.ValueBoost*s.Value
		out = append(out, domain.Recommendation{Property: p, FitScore: fit, Scores: s})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].FitScore > out[j].FitScore })
	if len(out) > topK {
		out = out[:topK]
	}
	return out
}

func (r *Recommender) score(req request, p domain.Property) domain.Scores {
	price := sanitize(p.NightlyPrice)
	var s domain.Scores

	s.Env = neutral
	if len(req.envWants) > 0 {
		s.Env = Jaccard(r.envTokens(p, req.envWants), req.envWants)
	}

	s.Budget = neutral
	if req.budgetActive {
		s.Budget = BudgetScore(price, req.bmin, req.bmax)
		s.Value = valueScore(price, req.bmin, req.bmax)
	}

	s.Group = GroupScore(req.groupSize, p.MinGuests, p.MaxGuests)

	if len(req.tagWants) > 0 || len(req.llmPool) > 0 {
		row := r.expand(TokensOf(Fulltext(p), p.Tags, p.Features, p.Environment, p.PropertyType))
		if len(req.tagWants) > 0 {
			s.TagFeature = Jaccard(row, req.tagWants)
		}
		if len(req.llmPool) > 0 {
			s.LLMSimilarity = Jaccard(row, req.llmPool)
		}
	}

	s.Location = locationScore(p.Location, req.locations, req.locTokens)

	if req.ids != nil {
		if _, ok := req.ids[strings.TrimSpace(p.ID)]; ok {
			s.LLMIDHit = 1
		}
	}
	return s
}

// envTokens is the row's expanded environment plus only those tag and type
// tokens that hit the wanted set, so a listing's tag count cannot dilute an
// exact environment match.
func (r *Recommender) envTokens(p domain.Property, wants TokenSet) TokenSet {
	row := r.expand(TokensOf(p.Environment))
	for t := range r.expand(TokensOf(p.Tags, p.PropertyType)) {
		if wants.Has(t) {
			row[t] = struct{}{}
		}
	}
	return row
}

func (r *Recommender) expand(t TokenSet) TokenSet {
	if len(t) == 0 {
		return t
	}
	return r.aliases.Expand(t)
}

// BudgetScore is 1 anywhere inside [lo, hi] (either order) and decays as a
// Gaussian of the distance to the nearest edge outside it. A point budget
// (lo == hi) is a Gaussian around the target. No budget (0, 0) is neutral.
func BudgetScore(price, bmin, bmax float64) float64 {
	lo, hi := math.Min(bmin, bmax), math.Max(bmin, bmax)
	if lo == 0 && hi == 0 {
		return neutral
	}
	if lo == hi {
		sigma := math.Max(0.15*math.Max(hi, 1), 1)
		z := (price - hi) / sigma
		return math.Exp(-0.5 * z * z)
	}
	if price >= lo && price <= hi {
		return 1
	}
	dist := price - hi
	if price < lo {
		dist = lo - price
	}
	sigma := math.Max(0.35*(hi-lo), 1)
	z := dist / sigma
	return math.Exp(-0.5 * z * z)
}

// valueScore rewards cheaper prices within the band: 1 at or below lo,
// falling linearly to 0 at hi and beyond.
func valueScore(price, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	return clamp01((hi - price) / (hi - lo))
}

// GroupScore is 1 when size fits [minGuests, maxGuests] and exp(-distance)
// otherwise. size <= 0 and unknown capacity (both bounds 0) are neutral.
// maxGuests == 0 with minGuests > 0 means no upper bound.
func GroupScore(size, minGuests, maxGuests int) float64 {
	if size <= 0 || (minGuests <= 0 && maxGuests <= 0) {
		return neutral
	}
	lo, hi := minGuests, maxGuests
	if hi > 0 && lo > hi {
		lo, hi = hi, lo
	}
	switch {
	case size < lo:
		return math.Exp(-float64(lo - size))
	case hi > 0 && size > hi:
		return math.Exp(-float64(size - hi))
	default:
		return 1
	}
}

func locationScore(rowLoc string, wanted []string, wantTokens TokenSet) float64 {
	if len(wanted) == 0 {
		return 0
	}
	rl := strings.ToLower(strings.TrimSpace(rowLoc))
	if rl == "" {
		return 0
	}
	for _, w := range wanted {
		if w = strings.ToLower(w); w != "" && strings.Contains(rl, w) {
			return 1
		}
	}
	return Jaccard(TokensOf(rl), wantTokens)
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
