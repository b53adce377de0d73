package handler

import (
	"context"
	"net/http"

	"github.com/xela07ax/dlp-guard/internal/dashboard"
	"github.com/xela07ax/dlp-guard/internal/domain"
	"go.uber.org/zap"
)

type SummaryProvider interface {
	Summary(ctx context.Context, days int, tz string, recentLimit int) (*domain.DashboardSummary, error)
}

type DashboardHandler struct {
	svc    SummaryProvider
	logger *zap.Logger
}

func NewDashboardHandler(svc SummaryProvider, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{svc: svc, logger: logger.Named("dashboard-handler")}
}

// Summary - GET /api/v1/dashboard/summary?days=&tz=&recent_limit=
func (h *DashboardHandler) Summary(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", dashboard.DefaultDays)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	limit, err := queryInt(r, "recent_limit", dashboard.DefaultRecentLimit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	tz := r.URL.Query().Get("tz")
	if tz == "" {
		tz = dashboard.DefaultTimezone
	}

	summary, err := h.svc.Summary(r.Context(), days, tz, limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
