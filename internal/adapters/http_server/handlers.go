package httpserver

import (
	"bytes"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"stayfinder/internal/adapters/catalogcsv"
	"stayfinder/internal/adapters/observability"
	"stayfinder/internal/app"
	"stayfinder/internal/domain"
)

type Handlers struct {
	Catalog    *app.CatalogService
	Recs       *app.RecommendationService
	Accounts   *app.AccountService
	AdminToken string
	// TopK is used when a recommendation request does not set top_k.
	TopK int
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Get("/v1/properties", h.listProperties)
	s.mux.Get("/v1/properties/{id}", h.getProperty)
	s.mux.Post("/v1/search", h.search)
	s.mux.Post("/v1/recommendations", h.recommend)

	s.mux.Post("/v1/users", h.signUp)
	s.mux.Post("/v1/users/{username}/session", h.signIn)
	s.mux.Get("/v1/users/{username}", h.profile)
	s.mux.Patch("/v1/users/{username}", h.updateProfile)
	s.mux.Delete("/v1/users/{username}", h.deleteUser)
	s.mux.Get("/v1/users/{username}/recommendations.csv", h.exportLatest)

	s.mux.Post("/v1/admin/catalog/reload", h.reloadCatalog)
}

/********** response helpers **********/

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps domain errors onto problem responses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeProblem(w, http.StatusBadRequest, "Invalid Input", err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials):
		w.Header().Set("WWW-Authenticate", `Basic realm="stayfinder"`)
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "invalid credentials")
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeProblem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		log.Error().Err(err).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeCached writes v as JSON with a weak ETag, answering 304 on a match.
func writeCached(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag) // include ETag on 304
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write body")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write body")
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return false
	}
	return true
}

func queryInt(r *http.Request, key string, def, min, max int) (int, bool) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < min || n > max {
		return 0, false
	}
	return n, true
}

/********** catalog **********/

func (h *Handlers) listProperties(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", 50, 1, 200)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 200")
		return
	}
	offset, ok := queryInt(r, "offset", 0, 0, 1<<30)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid offset", "offset must be a non-negative integer")
		return
	}
	writeCached(w, r, h.Catalog.ListProperties(limit, offset))
}

func (h *Handlers) getProperty(w http.ResponseWriter, r *http.Request) {
	p, err := h.Catalog.GetProperty(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Not Found", "property not found")
			return
		}
		writeError(w, err)
		return
	}
	writeCached(w, r, p)
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

func (h *Handlers) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decode(w, r, &req) {
		return
	}
	if req.TopK < 0 || req.TopK > 300 {
		writeProblem(w, http.StatusBadRequest, "Invalid top_k", "top_k must be between 0 and 300")
		return
	}
	if req.TopK == 0 {
		req.TopK = 20
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": h.Catalog.Search(req.Query, req.TopK)})
}

/********** recommendations **********/

type recommendRequest struct {
	Username         string   `json:"username"`
	FirstName        string   `json:"first_name"`
	Query            string   `json:"query"`
	Environment      string   `json:"environment"`
	BudgetMin        float64  `json:"budget_min"`
	BudgetMax        float64  `json:"budget_max"`
	GroupSize        int      `json:"group_size"`
	Locations        []string `json:"locations"`
	LocationContains string   `json:"location_contains"`
	TopK             int      `json:"top_k"`
	Blurb            bool     `json:"blurb"`
}

func (h *Handlers) recommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if !decode(w, r, &req) {
		return
	}
	if req.TopK < 0 || req.TopK > 100 {
		writeProblem(w, http.StatusBadRequest, "Invalid top_k", "top_k must be between 0 and 100")
		return
	}
	if req.TopK == 0 {
		req.TopK = h.TopK
	}

	// runs are stored only for a signed-in user, who also lends a first name
	if req.Username != "" {
		user, pass, ok := r.BasicAuth()
		if !ok || h.Accounts == nil || !strings.EqualFold(strings.TrimSpace(user), strings.TrimSpace(req.Username)) {
			writeError(w, domain.ErrInvalidCredentials)
			return
		}
		u, err := h.Accounts.SignIn(r.Context(), user, pass)
		if err != nil {
			writeError(w, err)
			return
		}
		req.Username = u.Username
		if req.FirstName == "" {
			req.FirstName = u.FirstName
		}
	}

	start := time.Now()
	res, err := h.Recs.Recommend(r.Context(), app.RecommendRequest{
		Username:  req.Username,
		FirstName: req.FirstName,
		Context: domain.QueryContext{
			Query:       req.Query,
			Environment: req.Environment,
			BudgetMin:   req.BudgetMin,
			BudgetMax:   req.BudgetMax,
			GroupSize:   req.GroupSize,
			Locations:   req.Locations,
		},
		LocationContains: req.LocationContains,
		TopK:             req.TopK,
		WithBlurb:        req.Blurb,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	observability.ObserveRanking(res.HintsSource, res.Candidates, time.Since(start))
	writeJSON(w, http.StatusOK, res)
}

/********** accounts **********/

type signUpRequest struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	Password  string `json:"password"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

type updateProfileRequest struct {
	FirstName   *string `json:"first_name"`
	Username    *string `json:"username"`
	NewPassword *string `json:"new_password"`
}

func (h *Handlers) signUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := h.Accounts.SignUp(r.Context(), req.Username, req.FirstName, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/v1/users/"+u.Username)
	writeJSON(w, http.StatusCreated, u)
}

func (h *Handlers) signIn(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := h.Accounts.SignIn(r.Context(), chi.URLParam(r, "username"), req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// credentials returns the Basic auth password when its user matches the path.
func credentials(r *http.Request) (username, password string, ok bool) {
	username = chi.URLParam(r, "username")
	user, pass, ok := r.BasicAuth()
	if !ok || !strings.EqualFold(strings.TrimSpace(user), strings.TrimSpace(username)) {
		return "", "", false
	}
	return username, pass, true
}

// authenticated checks Basic auth against the path user.
func (h *Handlers) authenticated(w http.ResponseWriter, r *http.Request) (domain.User, bool) {
	username, password, ok := credentials(r)
	if !ok {
		writeError(w, domain.ErrInvalidCredentials)
		return domain.User{}, false
	}
	u, err := h.Accounts.SignIn(r.Context(), username, password)
	if err != nil {
		writeError(w, err)
		return domain.User{}, false
	}
	return u, true
}

func (h *Handlers) profile(w http.ResponseWriter, r *http.Request) {
	u, ok := h.authenticated(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	username, password, ok := credentials(r)
	if !ok {
		writeError(w, domain.ErrInvalidCredentials)
		return
	}
	var req updateProfileRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := h.Accounts.UpdateProfile(r.Context(), username, password, app.ProfileUpdate{
		FirstName:   req.FirstName,
		Username:    req.Username,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	username, password, ok := credentials(r)
	if !ok {
		writeError(w, domain.ErrInvalidCredentials)
		return
	}
	if err := h.Accounts.Delete(r.Context(), username, password); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) exportLatest(w http.ResponseWriter, r *http.Request) {
	u, ok := h.authenticated(w, r)
	if !ok {
		return
	}
	run, err := h.Accounts.LatestRun(r.Context(), u.Username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Not Found", "no recommendations yet")
			return
		}
		writeError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := catalogcsv.Export(&buf, run); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+catalogcsv.ExportFilename(u.Username)+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Error().Err(err).Msg("failed to write csv body")
	}
}

/********** admin **********/

func (h *Handlers) reloadCatalog(w http.ResponseWriter, r *http.Request) {
	if h.AdminToken != "" {
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(h.AdminToken)) != 1 {
			writeProblem(w, http.StatusUnauthorized, "Unauthorized", "admin token required")
			return
		}
	}
	snap, err := h.Catalog.Reload(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("catalog reload failed, keeping previous snapshot")
		writeProblem(w, http.StatusInternalServerError, "Reload Failed", "catalog reload failed; previous snapshot kept")
		return
	}
	log.Info().Int("properties", len(snap.Properties)).Msg("catalog reloaded")
	writeJSON(w, http.StatusOK, map[string]any{"properties": len(snap.Properties), "loaded_at": snap.LoadedAt})
}
