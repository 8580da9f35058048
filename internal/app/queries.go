package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"stayfinder/internal/domain"
	"stayfinder/internal/ranking"
)

// Snapshot is an immutable view of the catalog with its search index.
// Ranking calls read it concurrently without locks.
type Snapshot struct {
	Properties []domain.Property
	Search     *ranking.SmartSearch
	LoadedAt   time.Time
	byID       map[string]int
}

func NewSnapshot(props []domain.Property, aliases *ranking.AliasTable) *Snapshot {
	s := &Snapshot{
		Properties: props,
		Search:     ranking.NewSmartSearch(props, aliases),
		LoadedAt:   time.Now().UTC(),
		byID:       make(map[string]int, len(props)),
	}
	for i, p := range props {
		s.byID[strings.TrimSpace(p.ID)] = i
	}
	return s
}

func (s *Snapshot) Lookup(id string) (domain.Property, bool) {
	i, ok := s.byID[strings.TrimSpace(id)]
	if !ok {
		return domain.Property{}, false
	}
	return s.Properties[i], true
}

// CatalogService owns the current snapshot and serves property reads.
type CatalogService struct {
	src      domain.CatalogSource
	repo     domain.PropertyRepository // optional; enables cache -> repo reads
	cache    domain.Cache              // optional
	cacheTTL time.Duration
	aliases  *ranking.AliasTable

	snap atomic.Pointer[Snapshot]
}

func NewCatalogService(src domain.CatalogSource, repo domain.PropertyRepository, c domain.Cache, ttl time.Duration) *CatalogService {
	s := &CatalogService{src: src, repo: repo, cache: c, cacheTTL: ttl, aliases: ranking.DefaultAliases()}
	s.snap.Store(NewSnapshot(nil, s.aliases))
	return s
}

// Reload pulls the catalog from the source and swaps the snapshot atomically.
// On error the previous snapshot stays in place.
func (s *CatalogService) Reload(ctx context.Context) (*Snapshot, error) {
	props, err := s.src.LoadCatalog(ctx)
	if err != nil {
		return s.Snapshot(), fmt.Errorf("load catalog: %w", err)
	}
	next := NewSnapshot(props, s.aliases)
	s.snap.Store(next)
	return next, nil
}

func (s *CatalogService) Snapshot() *Snapshot { return s.snap.Load() }

func (s *CatalogService) GetProperty(ctx context.Context, id string) (domain.Property, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Property{}, fmt.Errorf("empty property id: %w", domain.ErrInvalidInput)
	}
	if s.repo == nil {
		if p, ok := s.Snapshot().Lookup(id); ok {
			return p, nil
		}
		return domain.Property{}, domain.ErrNotFound
	}

	key := propertyKey(id)
	var p domain.Property
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &p); ok {
			return p, nil
		}
	}
	p, err := s.repo.GetProperty(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// not persisted yet, but may be in the loaded snapshot
			if sp, ok := s.Snapshot().Lookup(id); ok {
				return sp, nil
			}
		}
		return domain.Property{}, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, p, int(s.cacheTTL.Seconds()))
	}
	return p, nil
}

// ListProperties pages through the current snapshot in catalog order.
func (s *CatalogService) ListProperties(limit, offset int) domain.PropertiesPage {
	props := s.Snapshot().Properties
	total := len(props)
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	items := make([]domain.Property, end-offset)
	copy(items, props[offset:end])
	return domain.PropertiesPage{Items: items, Total: total, Limit: limit, Offset: offset}
}

// Search runs SmartSearch over the current snapshot.
func (s *CatalogService) Search(query string, topK int) []domain.Candidate {
	return s.Snapshot().Search.Search(query, topK)
}

func propertyKey(id string) string { return fmt.Sprintf("property:%s", strings.TrimSpace(id)) }
