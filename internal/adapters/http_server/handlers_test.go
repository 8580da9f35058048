package httpserver_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	httpserver "stayfinder/internal/adapters/http_server"
	"stayfinder/internal/app"
	"stayfinder/internal/domain"
	"stayfinder/internal/ranking"
)

// ---- in-memory fakes ----

type memSource struct {
	mu    sync.Mutex
	props []domain.Property
}

func (m *memSource) LoadCatalog(ctx context.Context) ([]domain.Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Property(nil), m.props...), nil
}

type memUsers struct {
	mu     sync.Mutex
	byName map[string]domain.User
}

func (m *memUsers) CreateUser(ctx context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[u.Username]; ok {
		return domain.ErrConflict
	}
	m.byName[u.Username] = u
	return nil
}
func (m *memUsers) GetUser(ctx context.Context, username string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byName[username]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}
func (m *memUsers) UpdateUser(ctx context.Context, username string, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byName, username)
	m.byName[u.Username] = u
	return nil
}
func (m *memUsers) DeleteUser(ctx context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byName, username)
	return nil
}

type memHistory struct {
	mu   sync.Mutex
	runs []domain.RecommendationRun
}

func (m *memHistory) SaveRun(ctx context.Context, run domain.RecommendationRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}
func (m *memHistory) LatestRun(ctx context.Context, username string) (domain.RecommendationRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.runs) - 1; i >= 0; i-- {
		if m.runs[i].Username == username {
			return m.runs[i], nil
		}
	}
	return domain.RecommendationRun{}, domain.ErrNotFound
}

// ---- harness ----

type harness struct {
	srv *httptest.Server
	src *memSource
}

func newHarness(t *testing.T, adminToken string) *harness {
	t.Helper()
	src := &memSource{props: []domain.Property{
		{ID: "A", Location: "Miami", Environment: "beach", PropertyType: "condo", NightlyPrice: 100,
			Features: "wifi,pool", Tags: "family", MinGuests: 2, MaxGuests: 4},
		{ID: "B", Location: "Aspen", Environment: "mountain", PropertyType: "cabin", NightlyPrice: 500,
			Features: "fireplace,hot tub", Tags: "ski,cozy", MinGuests: 6, MaxGuests: 8},
		{ID: "C", Location: "Miami Beach", Environment: "beach", PropertyType: "apartment", NightlyPrice: 150,
			Features: "wifi", Tags: "nightlife", MinGuests: 2, MaxGuests: 4},
	}}
	catalog := app.NewCatalogService(src, nil, nil, time.Minute)
	if _, err := catalog.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	hist := &memHistory{}
	accounts := app.NewAccountService(&memUsers{byName: map[string]domain.User{}}, hist).WithHashCost(bcrypt.MinCost)
	recs := app.NewRecommendationService(catalog,
		ranking.NewRecommender(ranking.DefaultWeights(), ranking.DefaultTopK),
		app.WithHistory(hist))

	s := httpserver.New(5 * time.Second)
	s.MountHandlers(&httpserver.Handlers{
		Catalog: catalog, Recs: recs, Accounts: accounts, AdminToken: adminToken, TopK: ranking.DefaultTopK,
	})
	ts := httptest.NewServer(s.Mux())
	t.Cleanup(ts.Close)
	return &harness{srv: ts, src: src}
}

func (h *harness) do(t *testing.T, method, path string, body any, auth ...string) *http.Response {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if len(auth) == 2 {
		req.SetBasicAuth(auth[0], auth[1])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

// ---- tests ----

func TestHealthz(t *testing.T) {
	h := newHarness(t, "")
	if resp := h.do(t, "GET", "/healthz", nil); resp.StatusCode != 200 {
		t.Fatalf("healthz: %d", resp.StatusCode)
	}
}

func TestProperties_ListGetAndETag(t *testing.T) {
	h := newHarness(t, "")

	resp := h.do(t, "GET", "/v1/properties?limit=2&offset=1", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("list: %d", resp.StatusCode)
	}
	var page domain.PropertiesPage
	decodeBody(t, resp, &page)
	if page.Total != 3 || len(page.Items) != 2 || page.Items[0].ID != "B" {
		t.Fatalf("unexpected page: %+v", page)
	}

	if resp := h.do(t, "GET", "/v1/properties?limit=0", nil); resp.StatusCode != 400 {
		t.Fatalf("expected 400 for bad limit, got %d", resp.StatusCode)
	}

	resp = h.do(t, "GET", "/v1/properties/A", nil)
	etag := resp.Header.Get("ETag")
	if resp.StatusCode != 200 || etag == "" {
		t.Fatalf("get: %d etag=%q", resp.StatusCode, etag)
	}

	req, _ := http.NewRequest("GET", h.srv.URL+"/v1/properties/A", nil)
	req.Header.Set("If-None-Match", etag)
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("conditional get: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", resp2.StatusCode)
	}

	resp = h.do(t, "GET", "/v1/properties/ZZZ", nil)
	if resp.StatusCode != 404 || !strings.HasPrefix(resp.Header.Get("Content-Type"), "application/problem+json") {
		t.Fatalf("expected problem 404, got %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
}

func TestSearch(t *testing.T) {
	h := newHarness(t, "")
	resp := h.do(t, "POST", "/v1/search", map[string]any{"query": "ski cabin with a jacuzzi", "top_k": 2})
	if resp.StatusCode != 200 {
		t.Fatalf("search: %d", resp.StatusCode)
	}
	var out struct {
		Items []domain.Candidate `json:"items"`
	}
	decodeBody(t, resp, &out)
	if len(out.Items) != 2 || out.Items[0].Property.ID != "B" || out.Items[0].SemanticScore <= 0 {
		t.Fatalf("unexpected search result: %+v", out.Items)
	}

	if resp := h.do(t, "POST", "/v1/search", map[string]any{"query": "x", "bogus": 1}); resp.StatusCode != 400 {
		t.Fatalf("expected 400 for unknown field, got %d", resp.StatusCode)
	}
}

func TestRecommend_Anonymous(t *testing.T) {
	h := newHarness(t, "")
	resp := h.do(t, "POST", "/v1/recommendations", map[string]any{
		"environment": "beach", "budget_min": 80, "budget_max": 200, "group_size": 3, "blurb": true,
	})
	if resp.StatusCode != 200 {
		t.Fatalf("recommend: %d", resp.StatusCode)
	}
	var out app.RecommendResult
	decodeBody(t, resp, &out)
	if len(out.Items) != 3 || out.Items[0].Property.ID != "A" || out.Items[1].Property.ID != "C" {
		t.Fatalf("unexpected ranking: %+v", out.Items)
	}
	if out.RunID != "" || out.HintsSource != app.HintsNone || !strings.HasPrefix(out.Blurb, "Hi Guest") {
		t.Fatalf("unexpected meta: run=%q source=%s blurb=%q", out.RunID, out.HintsSource, out.Blurb)
	}

	if resp := h.do(t, "POST", "/v1/recommendations", map[string]any{"top_k": 1000}); resp.StatusCode != 400 {
		t.Fatalf("expected 400 for top_k, got %d", resp.StatusCode)
	}
	if resp := h.do(t, "POST", "/v1/recommendations", map[string]any{"username": "ana"}); resp.StatusCode != 401 {
		t.Fatalf("expected 401 for unauthenticated username, got %d", resp.StatusCode)
	}
}

func TestAccountsFlowAndExport(t *testing.T) {
	h := newHarness(t, "")
	const pw = "Str0ng!pw"

	resp := h.do(t, "POST", "/v1/users", map[string]any{"username": "Ana", "first_name": "Ana", "password": pw})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("sign up: %d", resp.StatusCode)
	}
	if resp := h.do(t, "POST", "/v1/users", map[string]any{"username": "ana", "password": pw}); resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	if resp := h.do(t, "POST", "/v1/users", map[string]any{"username": "bob", "password": "weak"}); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	if resp := h.do(t, "POST", "/v1/users/ana/session", map[string]any{"password": "nope"}); resp.StatusCode != 401 {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if resp := h.do(t, "POST", "/v1/users/ana/session", map[string]any{"password": pw}); resp.StatusCode != 200 {
		t.Fatalf("sign in: %d", resp.StatusCode)
	}

	resp = h.do(t, "GET", "/v1/users/ana", nil, "ana", pw)
	var u map[string]any
	decodeBody(t, resp, &u)
	if resp.StatusCode != 200 || u["username"] != "ana" || u["password_hash"] != nil {
		t.Fatalf("profile: %d %v", resp.StatusCode, u)
	}
	if resp := h.do(t, "GET", "/v1/users/ana", nil, "bob", pw); resp.StatusCode != 401 {
		t.Fatalf("expected 401 for mismatched user, got %d", resp.StatusCode)
	}

	if resp := h.do(t, "GET", "/v1/users/ana/recommendations.csv", nil, "ana", pw); resp.StatusCode != 404 {
		t.Fatalf("expected 404 before any run, got %d", resp.StatusCode)
	}

	resp = h.do(t, "POST", "/v1/recommendations", map[string]any{
		"username": "ana", "query": "beach condo", "environment": "beach", "blurb": true,
	}, "ana", pw)
	var rec app.RecommendResult
	decodeBody(t, resp, &rec)
	if resp.StatusCode != 200 || rec.RunID == "" || !strings.HasPrefix(rec.Blurb, "Hi Ana") {
		t.Fatalf("recommend: %d run=%q blurb=%q", resp.StatusCode, rec.RunID, rec.Blurb)
	}

	resp = h.do(t, "GET", "/v1/users/ana/recommendations.csv", nil, "ana", pw)
	if resp.StatusCode != 200 || !strings.Contains(resp.Header.Get("Content-Disposition"), "recommendations_ana.csv") {
		t.Fatalf("export: %d %q", resp.StatusCode, resp.Header.Get("Content-Disposition"))
	}
	rows, err := csv.NewReader(resp.Body).ReadAll()
	if err != nil || len(rows) != len(rec.Items)+1 || rows[1][1] != rec.Items[0].Property.ID {
		t.Fatalf("unexpected csv: %v %v", rows, err)
	}

	resp = h.do(t, "PATCH", "/v1/users/ana", map[string]any{"username": "anna"}, "ana", pw)
	if resp.StatusCode != 200 {
		t.Fatalf("rename: %d", resp.StatusCode)
	}
	if resp := h.do(t, "DELETE", "/v1/users/anna", nil, "anna", "bad"); resp.StatusCode != 401 {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if resp := h.do(t, "DELETE", "/v1/users/anna", nil, "anna", pw); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: %d", resp.StatusCode)
	}
}

func TestAdminReload(t *testing.T) {
	h := newHarness(t, "s3cret")

	if resp := h.do(t, "POST", "/v1/admin/catalog/reload", nil); resp.StatusCode != 401 {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	for _, hdr := range []string{"s3cret", "Basic s3cret", "bearer s3cret", "Bearer wrong"} {
		req, _ := http.NewRequest("POST", h.srv.URL+"/v1/admin/catalog/reload", nil)
		req.Header.Set("Authorization", hdr)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("reload: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != 401 {
			t.Fatalf("Authorization %q: expected 401, got %d", hdr, resp.StatusCode)
		}
	}

	h.src.mu.Lock()
	h.src.props = append(h.src.props, domain.Property{ID: "D", Location: "Lisbon"})
	h.src.mu.Unlock()

	req, _ := http.NewRequest("POST", h.srv.URL+"/v1/admin/catalog/reload", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	defer resp.Body.Close()
	var out struct {
		Properties int `json:"properties"`
	}
	decodeBody(t, resp, &out)
	if resp.StatusCode != 200 || out.Properties != 4 {
		t.Fatalf("reload: %d %+v", resp.StatusCode, out)
	}
	if resp := h.do(t, "GET", "/v1/properties/D", nil); resp.StatusCode != 200 {
		t.Fatalf("new property should be visible, got %d", resp.StatusCode)
	}
}
