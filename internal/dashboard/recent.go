package dashboard

import (
	"context"
	"sort"
	"time"

	"github.com/xela07ax/dlp-guard/internal/domain"
	"go.uber.org/zap"
)

// RecentSource - выборка последних записей журнала без окна по времени.
type RecentSource interface {
	Recent(ctx context.Context, limit int, before time.Time) ([]domain.DetectionRecord, error)
}

// RecentFetcher достаёт N самых свежих детекций для списка на дашборде.
type RecentFetcher struct {
	source  RecentSource
	timeout time.Duration
	metrics *Metrics
	logger  *zap.Logger
}

func NewRecentFetcher(source RecentSource, timeout time.Duration, metrics *Metrics, logger *zap.Logger) *RecentFetcher {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &RecentFetcher{
		source:  source,
		timeout: timeout,
		metrics: metrics,
		logger:  logger.Named("dashboard_recent"),
	}
}

// Fetch возвращает не больше limit записей с меткой не позже now, от новых к старым.
func (r *RecentFetcher) Fetch(ctx context.Context, limit int, now time.Time) Facet[[]domain.DetectionRecord] {
	if limit <= 0 {
		return Ready([]domain.DetectionRecord{})
	}

	qctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	records, err := r.source.Recent(qctx, limit, now)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Warn("recent detections unavailable", zap.Error(err))
			r.metrics.FacetUnavailable.WithLabelValues(FacetRecent).Inc()
		}
		return Failed[[]domain.DetectionRecord](err)
	}

	out := make([]domain.DetectionRecord, 0, len(records))
	for _, rec := range records {
		if rec.Timestamp.After(now) {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return Ready(out)
}
