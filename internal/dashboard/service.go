package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/xela07ax/dlp-guard/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultDays        = 90
	MaxDays            = 365
	DefaultRecentLimit = 10
	MaxRecentLimit     = 100
	DefaultTimezone    = "UTC"
)

// Service собирает сводку дашборда из агрегатов, локализации и свежих записей.
type Service struct {
	aggregator *Aggregator
	recent     *RecentFetcher
	metrics    *Metrics
	logger     *zap.Logger
	now        func() time.Time
}

func NewService(aggregator *Aggregator, recent *RecentFetcher, metrics *Metrics, logger *zap.Logger) *Service {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Service{
		aggregator: aggregator,
		recent:     recent,
		metrics:    metrics,
		logger:     logger.Named("dashboard"),
		now:        time.Now,
	}
}

// Summary строит сводку за последние days суток с подписями в поясе tz.
// Параметры и пояс проверяются до первого обращения к журналу.
func (s *Service) Summary(ctx context.Context, days int, tz string, recentLimit int) (*domain.DashboardSummary, error) {
	if days < 1 || days > MaxDays {
		return nil, domain.InvalidArgument("days must be between 1 and %d", MaxDays)
	}
	if recentLimit < 1 || recentLimit > MaxRecentLimit {
		return nil, domain.InvalidArgument("recent_limit must be between 1 and %d", MaxRecentLimit)
	}
	loc, err := LoadTimezone(tz)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	defer func() { s.metrics.SummaryDuration.Observe(time.Since(started).Seconds()) }()

	end := s.now().UTC()
	start := end.Add(-time.Duration(days) * 24 * time.Hour)

	var (
		bundle *Bundle
		recent Facet[[]domain.DetectionRecord]
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		bundle, err = s.aggregator.Compute(gctx, start, end)
		return err
	})
	g.Go(func() error {
		recent = s.recent.Fetch(gctx, recentLimit, end)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("dashboard: summary: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("dashboard: summary: %w", err)
	}

	return assemble(bundle, recent, loc, tz, days, end), nil
}

// assemble - единственное место, где недоступные фасеты сворачиваются в ноль.
func assemble(b *Bundle, recent Facet[[]domain.DetectionRecord], loc *time.Location, tz string, days int, now time.Time) *domain.DashboardSummary {
	overview := b.Overview.Or(OverviewCounts{})
	hourly, lastHour := LocalizeHourly(b.Hourly.Or(nil), loc)

	return &domain.DashboardSummary{
		Overview: domain.Overview{
			TotalLogs:           overview.TotalLogs,
			PIIDetectedCount:    overview.PIIDetected,
			PIIDetectionRate:    domain.DetectionRate(overview.PIIDetected, overview.TotalLogs),
			AvgProcessingTimeMs: overview.AvgProcessingTimeMs,
		},
		RealTime: domain.RealTimeStats{
			HourlyCounts:  hourly,
			TotalLastHour: lastHour,
			Timezone:      tz,
			LastUpdated:   now.In(loc),
		},
		QuarterlyStats:       LocalizeQuarterly(b.Monthly.Or(nil), loc),
		TopIPs:               nonNil(b.TopIPs.Or(nil)),
		LabelStats:           nonNilMap(b.EntityTypes.Or(nil)),
		LabelActionBreakdown: nonNilMap(b.LabelActions.Or(nil)),
		LogStatusStats:       nonNilMap(b.LogStatus.Or(nil)),
		ProjectStats:         nonNil(b.Projects.Or(nil)),
		AIServiceStats:       nonNilMap(b.AIServices.Or(nil)),
		Detections:           nonNil(recent.Or(nil)),
		Timezone:             tz,
		RangeDays:            days,
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func nonNilMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return map[K]V{}
	}
	return m
}
