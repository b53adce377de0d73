package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/dlp-guard/internal/domain"
	"go.uber.org/zap"
)

type stubProjects struct {
	created domain.ProjectCreate
	deleted int64
}

func (s *stubProjects) List(context.Context) ([]domain.Project, error) { return nil, nil }

func (s *stubProjects) Get(_ context.Context, id int64) (*domain.Project, error) {
	if id != 1 {
		return nil, domain.NotFound("project", id)
	}
	return &domain.Project{ID: 1, Name: "chatbot"}, nil
}

func (s *stubProjects) Create(_ context.Context, in domain.ProjectCreate) (*domain.Project, error) {
	if in.Name == "dup" {
		return nil, domain.Conflict("project with name %q already exists", in.Name)
	}
	s.created = in
	return &domain.Project{ID: 2, Name: in.Name}, nil
}

func (s *stubProjects) Update(_ context.Context, id int64, _ domain.ProjectUpdate) (*domain.Project, error) {
	return &domain.Project{ID: id}, nil
}

func (s *stubProjects) Delete(_ context.Context, id int64) error {
	s.deleted = id
	return nil
}

func projectRouter(svc ProjectManager) http.Handler {
	h := NewProjectHandler(svc, zap.NewNop())
	r := chi.NewRouter()
	r.Get("/projects", h.List)
	r.Post("/projects", h.Create)
	r.Get("/projects/{id}", h.Get)
	r.Patch("/projects/{id}", h.Update)
	r.Delete("/projects/{id}", h.Delete)
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

func TestProjectRoutes(t *testing.T) {
	svc := &stubProjects{}
	r := projectRouter(svc)

	rec := do(t, r, http.MethodGet, "/projects", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, r, http.MethodPost, "/projects", `{"name":"crm","owner":"kim"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "crm", svc.created.Name)

	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodPost, "/projects", `{"name":"dup"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodPost, "/projects", `{"name":`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodPost, "/projects", `{"nam":"x"}`).Code)

	assert.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/projects/1", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, "/projects/7", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodGet, "/projects/abc", "").Code)

	assert.Equal(t, http.StatusOK, do(t, r, http.MethodPatch, "/projects/1", `{"status":"ARCHIVED"}`).Code)

	rec = do(t, r, http.MethodDelete, "/projects/3", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int64(3), svc.deleted)
}

type stubLogs struct {
	req     domain.LogSearchRequest
	healthy bool
}

func (s *stubLogs) Search(_ context.Context, req domain.LogSearchRequest) (*domain.LogSearchResponse, error) {
	s.req = req
	return &domain.LogSearchResponse{Logs: []domain.DetectionRecord{}, Page: req.Page, Size: req.Size}, nil
}

func (s *stubLogs) Get(_ context.Context, id string) (*domain.DetectionRecord, error) {
	return nil, domain.NotFound("log", id)
}

func (s *stubLogs) Stats(_ context.Context, days int) (*domain.LogStats, error) {
	if days < 1 {
		return nil, domain.InvalidArgument("days must be between 1 and 365")
	}
	st := domain.EmptyLogStats()
	return &st, nil
}

func (s *stubLogs) Recent(_ context.Context, limit int) (*domain.LogSearchResponse, error) {
	return &domain.LogSearchResponse{Logs: []domain.DetectionRecord{}, Page: 1, Size: limit, Stats: domain.EmptyLogStats()}, nil
}

func (s *stubLogs) Health(context.Context) domain.StoreHealth {
	if s.healthy {
		return domain.StoreHealth{Status: "healthy", Elasticsearch: "connected"}
	}
	return domain.StoreHealth{Status: "unhealthy", Elasticsearch: "disconnected"}
}

func (s *stubLogs) BlocksToday(_ context.Context, tz string) (*domain.BlockCount, error) {
	return &domain.BlockCount{Count: 3, Timezone: tz}, nil
}

func TestLogSearch_ParsesQuery(t *testing.T) {
	svc := &stubLogs{}
	h := NewLogHandler(svc, zap.NewNop())

	rec := httptest.NewRecorder()
	h.Search(rec, httptest.NewRequest(http.MethodGet,
		"/api/v1/logs/search?start_time=2024-01-01T00:00:00Z&has_pii=true&entity_types=PHONE,%20EMAIL&level=WARNING&page=2&size=50&sort_order=asc", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.req.StartTime)
	assert.Nil(t, svc.req.EndTime)
	require.NotNil(t, svc.req.HasPII)
	assert.True(t, *svc.req.HasPII)
	assert.Equal(t, []string{"PHONE", "EMAIL"}, svc.req.EntityTypes)
	assert.Equal(t, domain.LevelWarning, svc.req.Level)
	assert.Equal(t, 2, svc.req.Page)
	assert.Equal(t, 50, svc.req.Size)
	assert.Equal(t, "asc", svc.req.SortOrder)

	for _, bad := range []string{"start_time=yesterday", "has_pii=maybe", "page=x"} {
		rec := httptest.NewRecorder()
		h.Search(rec, httptest.NewRequest(http.MethodGet, "/api/v1/logs/search?"+bad, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

func TestLogRoutes(t *testing.T) {
	svc := &stubLogs{}
	h := NewLogHandler(svc, zap.NewNop())
	r := chi.NewRouter()
	r.Get("/logs/stats", h.Stats)
	r.Get("/logs/recent", h.Recent)
	r.Get("/logs/health", h.Health)
	r.Get("/logs/{id}", h.Get)
	r.Get("/metrics/blocks/today", h.BlocksToday)

	assert.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/logs/stats", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodGet, "/logs/stats?days=0", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, "/logs/missing", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, r, http.MethodGet, "/logs/health", "").Code)
	svc.healthy = true
	assert.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/logs/health", "").Code)

	rec := do(t, r, http.MethodGet, "/logs/stats", "")
	for _, field := range []string{`"entity_type_stats":{}`, `"hourly_stats":{}`, `"avg_processing_time":0`, `"top_ips":[]`} {
		assert.Contains(t, rec.Body.String(), field)
	}

	// Последние записи отдаются тем же конвертом, что и поиск
	rec = do(t, r, http.MethodGet, "/logs/recent?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	for _, field := range []string{`"logs":[]`, `"total":0`, `"size":5`, `"avg_processing_time":0`} {
		assert.Contains(t, rec.Body.String(), field)
	}

	rec = do(t, r, http.MethodGet, "/metrics/blocks/today", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"timezone":"UTC"`)
}

type stubIssuer struct{}

func (stubIssuer) GenerateToken(_ context.Context, username, password string) (*domain.TokenResponse, error) {
	if username != "admin" || password != "s3cret" {
		return nil, domain.ErrUnauthorized
	}
	return &domain.TokenResponse{AccessToken: "tok", TokenType: "Bearer", ExpiresIn: 1800}, nil
}

func TestAuthToken(t *testing.T) {
	h := http.HandlerFunc(NewAuthHandler(stubIssuer{}, zap.NewNop()).Token)

	rec := do(t, h, http.MethodPost, "/auth/token", `{"username":"admin","password":"s3cret"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"access_token":"tok","token_type":"Bearer","expires_in":1800}`, rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/auth/token", `{"username":"admin","password":"x"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/auth/token", `not json`).Code)
}
