package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xela07ax/dlp-guard/internal/console/handler"
	"github.com/xela07ax/dlp-guard/internal/infra/auth"
	"go.uber.org/zap"
)

// Handlers - набор обработчиков бизнес-доменов консоли.
type Handlers struct {
	Auth      *handler.AuthHandler      // /auth/token
	Dashboard *handler.DashboardHandler // /api/v1/dashboard
	Logs      *handler.LogHandler       // /api/v1/logs, /api/v1/metrics
	Projects  *handler.ProjectHandler   // /api/v1/projects
	Rules     *handler.RuleHandler      // /api/v1/detection-rules
	Settings  *handler.SettingsHandler  // /api/v1/detection-settings, /api/v1/system-settings
}

type ConsoleServer struct {
	router *chi.Mux
	logger *zap.Logger

	// Проверка токенов (RS256). Реализуется через embedding BaseValidator в AuthService
	authValidator auth.TokenValidator
	gatherer      prometheus.Gatherer
	h             Handlers
}

// NewConsoleServer инициализирует сервер админки со всеми зависимостями
func NewConsoleServer(logger *zap.Logger, validator auth.TokenValidator, gatherer prometheus.Gatherer, h Handlers) *ConsoleServer {
	s := &ConsoleServer{
		router:        chi.NewRouter(),
		logger:        logger.Named("console-api"),
		authValidator: validator,
		gatherer:      gatherer,
		h:             h,
	}
	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ ---
	r.Group(func(r chi.Router) {
		r.Post("/auth/token", s.h.Auth.Token)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	})

	// --- 3. ЗАЩИЩЕННЫЙ ПЕРИМЕТР (RS256 токен) ---
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.NewMiddleware(s.authValidator, s.logger))

		r.Get("/dashboard/summary", s.h.Dashboard.Summary)

		r.Route("/logs", func(r chi.Router) {
			r.Get("/search", s.h.Logs.Search)
			r.Get("/stats", s.h.Logs.Stats)
			r.Get("/recent", s.h.Logs.Recent)
			r.Get("/health", s.h.Logs.Health)
			r.Get("/{id}", s.h.Logs.Get)
		})
		r.Get("/metrics/blocks/today", s.h.Logs.BlocksToday)

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", s.h.Projects.List)
			r.Post("/", s.h.Projects.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.h.Projects.Get)
				r.Patch("/", s.h.Projects.Update)
				r.Delete("/", s.h.Projects.Delete)
			})
		})

		r.Route("/detection-rules", func(r chi.Router) {
			r.Get("/", s.h.Rules.List)
			r.Patch("/{id}", s.h.Rules.Update)
		})

		r.Route("/detection-settings", func(r chi.Router) {
			r.Get("/labels", s.h.Settings.ListLabels)
			r.Put("/labels/{label}", s.h.Settings.UpsertLabel)
			r.Get("/toggles", s.h.Settings.Toggles)
			r.Patch("/toggles", s.h.Settings.UpdateToggles)
		})

		r.Get("/system-settings", s.h.Settings.System)
		r.Patch("/system-settings", s.h.Settings.UpdateSystem)
	})
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
