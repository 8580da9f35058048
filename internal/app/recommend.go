package app

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"stayfinder/internal/domain"
	"stayfinder/internal/ranking"
)

// Where the hints of a run came from.
const (
	HintsNone        = "none"        // no free text or no provider configured
	HintsLLM         = "llm"         // fresh provider call
	HintsCache       = "cache"       // cached provider answer
	HintsUnavailable = "unavailable" // provider failed; ranked without hints
)

type RecommendRequest struct {
	Username  string
	FirstName string
	Context   domain.QueryContext
	// LocationContains is a hard, case-insensitive substring filter applied
	// before search. Context.Locations stays a soft signal.
	LocationContains string
	TopK             int
	WithBlurb        bool
}

type RecommendResult struct {
	RunID       string                  `json:"run_id,omitempty"`
	Items       []domain.Recommendation `json:"items"`
	Hints       domain.Hints            `json:"hints"`
	HintsSource string                  `json:"hints_source"`
	Weights     map[string]float64      `json:"weights"`
	Candidates  int                     `json:"candidates"`
	Blurb       string                  `json:"blurb,omitempty"`
}

type RecommendationService struct {
	catalog *CatalogService
	rec     *ranking.Recommender

	// all optional
	hints   domain.HintProvider
	blurbs  domain.BlurbWriter
	history domain.HistoryRepository
	cache   domain.Cache

	cacheTTL    time.Duration
	searchTopK  int
	hintTimeout time.Duration
}

type RecommendOption func(*RecommendationService)

func WithHintProvider(p domain.HintProvider) RecommendOption {
	return func(s *RecommendationService) { s.hints = p }
}
func WithBlurbWriter(b domain.BlurbWriter) RecommendOption {
	return func(s *RecommendationService) { s.blurbs = b }
}
func WithHistory(h domain.HistoryRepository) RecommendOption {
	return func(s *RecommendationService) { s.history = h }
}
func WithHintCache(c domain.Cache, ttl time.Duration) RecommendOption {
	return func(s *RecommendationService) { s.cache, s.cacheTTL = c, ttl }
}
func WithSearchTopK(k int) RecommendOption {
	return func(s *RecommendationService) { s.searchTopK = k }
}
func WithHintTimeout(d time.Duration) RecommendOption {
	return func(s *RecommendationService) { s.hintTimeout = d }
}

func NewRecommendationService(c *CatalogService, r *ranking.Recommender, opts ...RecommendOption) *RecommendationService {
	s := &RecommendationService{
		catalog:     c,
		rec:         r,
		searchTopK:  ranking.DefaultSearchTopK,
		hintTimeout: 8 * time.Second,
		cacheTTL:    15 * time.Minute,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Recommend runs the full pipeline: optional location filter, SmartSearch
// pre-filter (only when there is free text), best-effort LLM hints, final
// ranking and history. Provider and history failures never fail the call.
func (s *RecommendationService) Recommend(ctx context.Context, req RecommendRequest) (RecommendResult, error) {
	snap := s.catalog.Snapshot()
	q := req.Context
	query := strings.TrimSpace(q.Query)

	var keep func(domain.Property) bool
	if loc := strings.ToLower(strings.TrimSpace(req.LocationContains)); loc != "" {
		keep = func(p domain.Property) bool { return strings.Contains(strings.ToLower(p.Location), loc) }
	}

	var (
		g          errgroup.Group
		candidates []domain.Property
		hints      domain.Hints
		source     = HintsNone
	)
	g.Go(func() error {
		if query == "" {
			candidates = filterProperties(snap.Properties, keep)
			return nil
		}
		candidates = ranking.Properties(snap.Search.SearchWhere(query, s.searchTopK, keep))
		return nil
	})
	if query != "" && s.hints != nil {
		g.Go(func() error {
			hints, source = s.fetchHints(ctx, query)
			return nil
		})
	}
	_ = g.Wait()

	items := s.rec.Recommend(q, candidates, hints, req.TopK)
	res := RecommendResult{
		Items:       items,
		Hints:       hints,
		HintsSource: source,
		Weights:     s.rec.EffectiveWeights(q, hints).Map(),
		Candidates:  len(candidates),
	}

	if req.WithBlurb {
		res.Blurb = s.blurb(ctx, req)
	}

	if s.history != nil && req.Username != "" {
		run := domain.RecommendationRun{
			ID:        uuid.NewString(),
			Username:  strings.ToLower(strings.TrimSpace(req.Username)),
			Query:     q,
			Items:     items,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.history.SaveRun(ctx, run); err != nil {
			log.Warn().Err(err).Str("username", run.Username).Msg("save recommendation run failed")
		} else {
			res.RunID = run.ID
		}
	}
	return res, nil
}

// fetchHints asks the provider for hints, through the cache when present.
// Every failure degrades to empty hints.
func (s *RecommendationService) fetchHints(ctx context.Context, query string) (domain.Hints, string) {
	key := hintsKey(query)
	var h domain.Hints
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &h); ok {
			return h, HintsCache
		}
	}

	hctx, cancel := context.WithTimeout(ctx, s.hintTimeout)
	defer cancel()
	h, err := s.hints.ExtractHints(hctx, query)
	if err != nil {
		log.Warn().Err(err).Msg("llm hints unavailable, ranking without them")
		return domain.Hints{}, HintsUnavailable
	}
	h = cleanHints(h)
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, h, int(s.cacheTTL.Seconds()))
	}
	return h, HintsLLM
}

func (s *RecommendationService) blurb(ctx context.Context, req RecommendRequest) string {
	if s.blurbs != nil {
		bctx, cancel := context.WithTimeout(ctx, s.hintTimeout)
		defer cancel()
		out, err := s.blurbs.Blurb(bctx, BlurbPrompt(req))
		if err == nil && strings.TrimSpace(out) != "" {
			return strings.TrimSpace(out)
		}
		if err != nil {
			log.Warn().Err(err).Msg("llm blurb unavailable, using fallback")
		}
	}
	return FallbackBlurb(req)
}

func filterProperties(props []domain.Property, keep func(domain.Property) bool) []domain.Property {
	if keep == nil {
		return props
	}
	out := make([]domain.Property, 0, len(props))
	for _, p := range props {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func cleanHints(h domain.Hints) domain.Hints {
	return domain.Hints{
		Tags:         cleanList(h.Tags),
		Features:     cleanList(h.Features),
		Locations:    cleanList(h.Locations),
		Environments: cleanList(h.Environments),
		PropertyIDs:  cleanList(h.PropertyIDs),
	}
}

func hintsKey(query string) string {
	sum := sha1.Sum([]byte(ranking.Normalize(query)))
	return fmt.Sprintf("hints:%s", hex.EncodeToString(sum[:]))
}
