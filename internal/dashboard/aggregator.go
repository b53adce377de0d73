package dashboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/xela07ax/dlp-guard/internal/domain"
	"github.com/xela07ax/dlp-guard/internal/logstore"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Имена фасетов: они же значения label у метрики недоступности.
const (
	FacetOverview     = "overview"
	FacetEntityTypes  = "entity_types"
	FacetHourly       = "hourly"
	FacetQuarterly    = "quarterly"
	FacetLabelActions = "label_actions"
	FacetLogStatus    = "log_status"
	FacetProjects     = "projects"
	FacetAIServices   = "ai_services"
	FacetTopIPs       = "top_ips"
	FacetRecent       = "recent"
)

const (
	entityTypesSize = 20
	breakdownSize   = 50
	actionsSize     = 10
	metadataSize    = 20
	topIPsSize      = 10
)

// AggregateSource - то, что агрегатору нужно от журнала.
type AggregateSource interface {
	Aggregate(ctx context.Context, f logstore.Filter, aggs map[string]logstore.Agg) (*logstore.AggResult, error)
}

// OverviewCounts - общие счётчики окна, приходят одним запросом.
type OverviewCounts struct {
	TotalLogs           int64
	PIIDetected         int64
	AvgProcessingTimeMs float64
}

// Bundle - результат Compute. Каждый фасет независим и может быть недоступен.
type Bundle struct {
	Overview     Facet[OverviewCounts]
	EntityTypes  Facet[map[string]int64]
	Hourly       Facet[[]TimeBucket]
	Monthly      Facet[[]PeriodBucket]
	LabelActions Facet[map[string]map[string]int64]
	LogStatus    Facet[map[string]int64]
	Projects     Facet[[]domain.ProjectCount]
	AIServices   Facet[map[string]int64]
	TopIPs       Facet[[]domain.IPCount]
}

type Aggregator struct {
	source       AggregateSource
	facetTimeout time.Duration
	concurrency  int
	metrics      *Metrics
	logger       *zap.Logger
}

func NewAggregator(source AggregateSource, facetTimeout time.Duration, concurrency int, metrics *Metrics, logger *zap.Logger) *Aggregator {
	if facetTimeout <= 0 {
		facetTimeout = 3 * time.Second
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Aggregator{
		source:       source,
		facetTimeout: facetTimeout,
		concurrency:  concurrency,
		metrics:      metrics,
		logger:       logger.Named("dashboard_aggregator"),
	}
}

// Compute считает все фасеты окна [start, end] параллельными size=0 запросами.
// Ошибка фасета не прерывает остальные. Ошибку возвращает только отмена ctx:
// частичный результат в этом случае не отдаётся.
func (a *Aggregator) Compute(ctx context.Context, start, end time.Time) (*Bundle, error) {
	f := logstore.Filter{From: start, To: end}
	b := &Bundle{}

	g := new(errgroup.Group)
	g.SetLimit(a.concurrency)

	g.Go(func() error {
		b.Overview = runFacet(ctx, a, FacetOverview, f, map[string]logstore.Agg{
			"pii":      logstore.FilterTerm(logstore.FieldHasPII, true),
			"avg_time": logstore.Avg(logstore.FieldProcessingTime),
		}, parseOverview)
		return nil
	})
	g.Go(func() error {
		b.EntityTypes = runFacet(ctx, a, FacetEntityTypes, f, map[string]logstore.Agg{
			"entity_types": logstore.Terms(logstore.FieldEntityTypes, entityTypesSize),
		}, countsOf("entity_types"))
		return nil
	})
	g.Go(func() error {
		b.Hourly = runFacet(ctx, a, FacetHourly, f, map[string]logstore.Agg{
			"hourly": logstore.DateHistogram(logstore.FieldTimestamp, "hour"),
		}, parseHourly)
		return nil
	})
	g.Go(func() error {
		b.Monthly = runFacet(ctx, a, FacetQuarterly, f, map[string]logstore.Agg{
			"monthly": logstore.DateHistogram(logstore.FieldTimestamp, "month").
				With("pii", logstore.FilterTerm(logstore.FieldHasPII, true)),
		}, parseMonthly)
		return nil
	})
	g.Go(func() error {
		b.LabelActions = runFacet(ctx, a, FacetLabelActions, f, map[string]logstore.Agg{
			"labels": logstore.Terms(logstore.FieldEntityTypes, breakdownSize).
				With("actions", logstore.Terms(logstore.FieldAction, actionsSize)),
		}, parseLabelActions)
		return nil
	})
	g.Go(func() error {
		b.LogStatus = runFacet(ctx, a, FacetLogStatus, f, map[string]logstore.Agg{
			"log_status": logstore.Terms(logstore.FieldLogStatus, metadataSize),
		}, countsOf("log_status"))
		return nil
	})
	g.Go(func() error {
		b.Projects = runFacet(ctx, a, FacetProjects, f, map[string]logstore.Agg{
			"projects": logstore.Terms(logstore.FieldProject, metadataSize),
		}, parseProjects)
		return nil
	})
	g.Go(func() error {
		b.AIServices = runFacet(ctx, a, FacetAIServices, f, map[string]logstore.Agg{
			"services": logstore.Terms(logstore.FieldService, metadataSize),
		}, countsOf("services"))
		return nil
	})
	g.Go(func() error {
		b.TopIPs = runFacet(ctx, a, FacetTopIPs, f, map[string]logstore.Agg{
			"top_ips": logstore.Terms(logstore.FieldClientIP, topIPsSize),
		}, parseTopIPs)
		return nil
	})

	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("dashboard: compute aggregates: %w", err)
	}
	return b, nil
}

func runFacet[T any](
	ctx context.Context,
	a *Aggregator,
	facet string,
	f logstore.Filter,
	aggs map[string]logstore.Agg,
	parse func(*logstore.AggResult) (T, error),
) Facet[T] {
	qctx, cancel := context.WithTimeout(ctx, a.facetTimeout)
	defer cancel()

	res, err := a.source.Aggregate(qctx, f, aggs)
	if err == nil {
		var v T
		if v, err = parse(res); err == nil {
			return Ready(v)
		}
	}

	// Отмена запроса целиком не считается деградацией фасета
	if ctx.Err() == nil {
		a.logger.Warn("facet unavailable", zap.String("facet", facet), zap.Error(err))
		a.metrics.FacetUnavailable.WithLabelValues(facet).Inc()
	}
	return Failed[T](err)
}

func parseOverview(res *logstore.AggResult) (OverviewCounts, error) {
	pii, err := res.DocCount("pii")
	if err != nil {
		return OverviewCounts{}, err
	}
	avg, _, err := res.Value("avg_time")
	if err != nil {
		return OverviewCounts{}, err
	}
	return OverviewCounts{TotalLogs: res.Total, PIIDetected: pii, AvgProcessingTimeMs: avg}, nil
}

func countsOf(name string) func(*logstore.AggResult) (map[string]int64, error) {
	return func(res *logstore.AggResult) (map[string]int64, error) {
		buckets, err := res.Buckets(name)
		if err != nil {
			return nil, err
		}
		return logstore.CountsByKey(buckets), nil
	}
}

func parseHourly(res *logstore.AggResult) ([]TimeBucket, error) {
	buckets, err := res.Buckets("hourly")
	if err != nil {
		return nil, err
	}
	out := make([]TimeBucket, 0, len(buckets))
	for _, b := range buckets {
		ms, ok := b.KeyMillis()
		if !ok {
			return nil, fmt.Errorf("hourly bucket key %v is not epoch millis", b.Key)
		}
		out = append(out, TimeBucket{EpochMillis: ms, Count: b.DocCount})
	}
	return out, nil
}

func parseMonthly(res *logstore.AggResult) ([]PeriodBucket, error) {
	buckets, err := res.Buckets("monthly")
	if err != nil {
		return nil, err
	}
	out := make([]PeriodBucket, 0, len(buckets))
	for _, b := range buckets {
		ms, ok := b.KeyMillis()
		if !ok {
			return nil, fmt.Errorf("monthly bucket key %v is not epoch millis", b.Key)
		}
		pii, err := logstore.ParseDocCount(b.Aggs, "pii")
		if err != nil {
			return nil, err
		}
		out = append(out, PeriodBucket{EpochMillis: ms, Total: b.DocCount, PIIDetected: pii})
	}
	return out, nil
}

func parseLabelActions(res *logstore.AggResult) (map[string]map[string]int64, error) {
	buckets, err := res.Buckets("labels")
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]int64, len(buckets))
	for _, b := range buckets {
		actions, err := logstore.ParseBuckets(b.Aggs, "actions")
		if err != nil {
			return nil, err
		}
		out[b.KeyString()] = logstore.CountsByKey(actions)
	}
	return out, nil
}

func parseProjects(res *logstore.AggResult) ([]domain.ProjectCount, error) {
	buckets, err := res.Buckets("projects")
	if err != nil {
		return nil, err
	}
	out := make([]domain.ProjectCount, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, domain.ProjectCount{Project: b.KeyString(), Count: b.DocCount})
	}
	return out, nil
}

func parseTopIPs(res *logstore.AggResult) ([]domain.IPCount, error) {
	buckets, err := res.Buckets("top_ips")
	if err != nil {
		return nil, err
	}
	out := make([]domain.IPCount, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, domain.IPCount{IP: b.KeyString(), Count: b.DocCount})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out, nil
}
