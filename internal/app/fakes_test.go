package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"stayfinder/internal/domain"
)

// ---- fakes ----

type fakeSource struct {
	props []domain.Property
	err   error
	calls int
}

func (f *fakeSource) LoadCatalog(ctx context.Context) ([]domain.Property, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.props, nil
}

type fakeReader struct {
	recs []map[string]string
	err  error
}

func (f *fakeReader) ReadRecords(ctx context.Context) ([]map[string]string, error) {
	return f.recs, f.err
}

type fakeRepo struct {
	mu      sync.Mutex
	byID    map[string]domain.Property
	upserts int
	fail    error
}

func (f *fakeRepo) UpsertProperties(ctx context.Context, ps []domain.Property) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	if f.byID == nil {
		f.byID = map[string]domain.Property{}
	}
	for _, p := range ps {
		f.byID[p.ID] = p
	}
	f.upserts++
	return nil
}
func (f *fakeRepo) GetProperty(ctx context.Context, id string) (domain.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return domain.Property{}, domain.ErrNotFound
	}
	return p, nil
}
func (f *fakeRepo) ListProperties(ctx context.Context) ([]domain.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Property, 0, len(f.byID))
	for _, p := range f.byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// fakeCache round-trips through JSON like the real cache does.
type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
	dels  []string
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}
func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.store[key] = b
	return nil
}
func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	c.dels = append(c.dels, key)
	return nil
}

type fakeHints struct {
	mu    sync.Mutex
	h     domain.Hints
	err   error
	calls int
}

func (f *fakeHints) ExtractHints(ctx context.Context, text string) (domain.Hints, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.h, f.err
}

type fakeBlurbs struct {
	out    string
	err    error
	prompt string
}

func (f *fakeBlurbs) Blurb(ctx context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.out, f.err
}

type fakeUsers struct {
	byName map[string]domain.User
}

func newFakeUsers() *fakeUsers { return &fakeUsers{byName: map[string]domain.User{}} }

func (f *fakeUsers) CreateUser(ctx context.Context, u domain.User) error {
	if _, ok := f.byName[u.Username]; ok {
		return domain.ErrConflict
	}
	f.byName[u.Username] = u
	return nil
}
func (f *fakeUsers) GetUser(ctx context.Context, username string) (domain.User, error) {
	u, ok := f.byName[username]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}
func (f *fakeUsers) UpdateUser(ctx context.Context, username string, u domain.User) error {
	if _, ok := f.byName[username]; !ok {
		return domain.ErrNotFound
	}
	delete(f.byName, username)
	f.byName[u.Username] = u
	return nil
}
func (f *fakeUsers) DeleteUser(ctx context.Context, username string) error {
	if _, ok := f.byName[username]; !ok {
		return domain.ErrNotFound
	}
	delete(f.byName, username)
	return nil
}

type fakeHistory struct {
	runs []domain.RecommendationRun
	fail error
}

func (f *fakeHistory) SaveRun(ctx context.Context, run domain.RecommendationRun) error {
	if f.fail != nil {
		return f.fail
	}
	f.runs = append(f.runs, run)
	return nil
}
func (f *fakeHistory) LatestRun(ctx context.Context, username string) (domain.RecommendationRun, error) {
	for i := len(f.runs) - 1; i >= 0; i-- {
		if f.runs[i].Username == username {
			return f.runs[i], nil
		}
	}
	return domain.RecommendationRun{}, domain.ErrNotFound
}

var errBoom = errors.New("boom")

func ptr[T any](v T) *T { return &v }

func sampleCatalog() []domain.Property {
	return []domain.Property{
		{ID: "A", Location: "Miami", Environment: "beach", PropertyType: "condo", NightlyPrice: 100,
			Features: "wifi,pool", Tags: "family,relaxing", MinGuests: 2, MaxGuests: 4},
		{ID: "B", Location: "Aspen", Environment: "mountain", PropertyType: "cabin", NightlyPrice: 500,
			Features: "fireplace,hot tub", Tags: "ski,cozy", MinGuests: 6, MaxGuests: 8},
		{ID: "C", Location: "Miami Beach", Environment: "beach", PropertyType: "apartment", NightlyPrice: 150,
			Features: "wifi,balcony", Tags: "nightlife", MinGuests: 2, MaxGuests: 4},
	}
}
