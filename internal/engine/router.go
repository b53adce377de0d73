package engine

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/xela07ax/dlp-guard/internal/infra/auth"
	"github.com/xela07ax/dlp-guard/internal/policy"
	"go.uber.org/zap"
)

// HealthReporter - состояние предохранителя детектора (ReliabilityWrapper).
type HealthReporter interface {
	State() string
}

type RouterDeps struct {
	Core      *DetectionCore
	Policies  policy.Enforcer
	Validator auth.TokenValidator // nil - HTTP без аутентификации
	Breaker   HealthReporter      // nil - детектор без предохранителя (заглушка)
	ModelName string
	Logger    *zap.Logger
}

// NewHTTPHandler собирает HTTP-поверхность шлюза.
// Порядок: RealIP -> Trace -> Recoverer -> Auth -> Maintenance -> Detect.
func NewHTTPHandler(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(TracingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api/v1/pii", func(r chi.Router) {
		if d.Validator != nil {
			r.Use(auth.NewMiddleware(d.Validator, d.Logger))
		}
		r.With(MaintenanceMiddleware(d.Policies, d.Logger)).Post("/detect", d.Core.HandleHTTPRequest)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			body := map[string]any{
				"status":      "healthy",
				"model_name":  d.ModelName,
				"maintenance": d.Policies.MaintenanceMode(),
			}
			if d.Breaker != nil {
				body["circuit_breaker"] = d.Breaker.State()
			}
			writeJSON(w, http.StatusOK, body)
		})
	})
	return r
}
