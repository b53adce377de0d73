package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/dlp-guard/internal/console/service"
	"github.com/xela07ax/dlp-guard/internal/domain"
	"go.uber.org/zap"
)

type LogReader interface {
	Search(ctx context.Context, req domain.LogSearchRequest) (*domain.LogSearchResponse, error)
	Get(ctx context.Context, id string) (*domain.DetectionRecord, error)
	Stats(ctx context.Context, days int) (*domain.LogStats, error)
	Recent(ctx context.Context, limit int) (*domain.LogSearchResponse, error)
	Health(ctx context.Context) domain.StoreHealth
	BlocksToday(ctx context.Context, tz string) (*domain.BlockCount, error)
}

type LogHandler struct {
	svc    LogReader
	logger *zap.Logger
}

func NewLogHandler(svc LogReader, logger *zap.Logger) *LogHandler {
	return &LogHandler{svc: svc, logger: logger.Named("log-handler")}
}

func (h *LogHandler) Search(w http.ResponseWriter, r *http.Request) {
	req, err := parseSearchRequest(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	resp, err := h.svc.Search(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseSearchRequest(r *http.Request) (domain.LogSearchRequest, error) {
	q := r.URL.Query()
	req := domain.LogSearchRequest{
		ClientIP:    q.Get("client_ip"),
		EntityTypes: queryList(r, "entity_types"),
		Level:       domain.LogLevel(q.Get("level")),
		SearchText:  q.Get("search_text"),
		SortBy:      q.Get("sort_by"),
		SortOrder:   q.Get("sort_order"),
	}

	var err error
	if req.StartTime, err = queryTime(r, "start_time"); err != nil {
		return req, err
	}
	if req.EndTime, err = queryTime(r, "end_time"); err != nil {
		return req, err
	}
	if req.HasPII, err = queryBool(r, "has_pii"); err != nil {
		return req, err
	}
	if req.Page, err = queryInt(r, "page", domain.DefaultPage); err != nil {
		return req, err
	}
	if req.Size, err = queryInt(r, "size", domain.DefaultPageSize); err != nil {
		return req, err
	}
	return req, nil
}

func (h *LogHandler) Stats(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", service.DefaultStatsDays)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	stats, err := h.svc.Stats(r.Context(), days)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *LogHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", service.DefaultRecentLogs)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	resp, err := h.svc.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *LogHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *LogHandler) Health(w http.ResponseWriter, r *http.Request) {
	health := h.svc.Health(r.Context())
	status := http.StatusOK
	if health.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// BlocksToday - GET /api/v1/metrics/blocks/today?tz=
func (h *LogHandler) BlocksToday(w http.ResponseWriter, r *http.Request) {
	tz := r.URL.Query().Get("tz")
	if tz == "" {
		tz = "UTC"
	}
	got, err := h.svc.BlocksToday(r.Context(), tz)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, got)
}
