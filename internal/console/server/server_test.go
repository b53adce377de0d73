package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/xela07ax/dlp-guard/internal/console/handler"
	"github.com/xela07ax/dlp-guard/internal/domain"
	"go.uber.org/zap"
)

type staticValidator struct{}

func (staticValidator) VerifyToken(_ context.Context, tok string) (*domain.CustomClaims, error) {
	if tok != "Bearer good" {
		return nil, domain.ErrUnauthorized
	}
	return &domain.CustomClaims{Username: "admin"}, nil
}

type emptyRules struct{}

func (emptyRules) List(context.Context) ([]domain.DetectionRule, error) { return nil, nil }

func (emptyRules) Update(_ context.Context, id int64, _ domain.DetectionRuleUpdate) (*domain.DetectionRule, error) {
	return nil, domain.NotFound("detection rule", id)
}

func newTestServer() *ConsoleServer {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "dlp_test_total"}))
	return NewConsoleServer(zap.NewNop(), staticValidator{}, reg, Handlers{
		Rules: handler.NewRuleHandler(emptyRules{}, zap.NewNop()),
	})
}

func serve(s http.Handler, method, target, token string, body ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(strings.Join(body, "")))
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestPublicRoutes(t *testing.T) {
	s := newTestServer()

	assert.Equal(t, http.StatusOK, serve(s, http.MethodGet, "/health", "").Code)

	rec := serve(s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dlp_test_total")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer()

	rec := serve(s, http.MethodGet, "/api/v1/detection-rules", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

	assert.Equal(t, http.StatusUnauthorized, serve(s, http.MethodGet, "/api/v1/detection-rules", "Bearer bad").Code)

	rec = serve(s, http.MethodGet, "/api/v1/detection-rules", "Bearer good")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, serve(s, http.MethodPatch, "/api/v1/detection-rules/9", "Bearer good", `{"is_active":true}`).Code)
}
