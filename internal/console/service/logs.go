package service

import (
	"context"
	"time"

	"github.com/xela07ax/dlp-guard/internal/dashboard"
	"github.com/xela07ax/dlp-guard/internal/domain"
	"github.com/xela07ax/dlp-guard/internal/logstore"
	"go.uber.org/zap"
)

const (
	DefaultStatsDays   = 7
	DefaultRecentLogs  = 50
	MaxRecentLogs      = 200
	defaultSearchRange = 24 * time.Hour
)

// LogStore - операции журнала, нужные консоли.
type LogStore interface {
	Ping(ctx context.Context) error
	Get(ctx context.Context, id string) (*domain.DetectionRecord, error)
	Search(ctx context.Context, q logstore.SearchQuery) (*logstore.SearchResult, error)
	Aggregate(ctx context.Context, f logstore.Filter, aggs map[string]logstore.Agg) (*logstore.AggResult, error)
	CountBlocksSince(ctx context.Context, since time.Time) (int64, error)
}

// LogService - чтение журнала детекций. Ошибки хранилища на чтении сводятся к пустому результату.
type LogService struct {
	store  LogStore
	logger *zap.Logger
	now    func() time.Time
}

func NewLogService(store LogStore, logger *zap.Logger) *LogService {
	return &LogService{
		store:  store,
		logger: logger.Named("log-service"),
		now:    time.Now,
	}
}

// Search возвращает страницу журнала и сводку по тому же фильтру.
// Без явного окна ищет за последние сутки.
func (s *LogService) Search(ctx context.Context, req domain.LogSearchRequest) (*domain.LogSearchResponse, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	if _, ok := logstore.SortableFields[req.SortBy]; !ok {
		return nil, domain.InvalidArgument("sort_by %q is not supported", req.SortBy)
	}

	sort := []logstore.SortField{{Field: req.SortBy, Desc: req.SortOrder == "desc"}}
	return s.page(ctx, s.searchFilter(req), req.Page, req.Size, sort), nil
}

// page - одна страница журнала со сводкой. Ошибка хранилища даёт пустую страницу.
func (s *LogService) page(ctx context.Context, filter logstore.Filter, page, size int, sort []logstore.SortField) *domain.LogSearchResponse {
	resp := &domain.LogSearchResponse{
		Logs:  []domain.DetectionRecord{},
		Page:  page,
		Size:  size,
		Stats: domain.EmptyLogStats(),
	}

	res, err := s.store.Search(ctx, logstore.SearchQuery{
		Filter: filter,
		From:   (page - 1) * size,
		Size:   size,
		Sort:   sort,
	})
	if err != nil {
		s.logger.Warn("log search failed", zap.Error(err))
		return resp
	}

	resp.Logs = res.Records
	resp.Total = res.Total
	resp.TotalPages = int((res.Total + int64(size) - 1) / int64(size))
	resp.Stats = s.stats(ctx, filter, false)
	return resp
}

func (s *LogService) searchFilter(req domain.LogSearchRequest) logstore.Filter {
	end := s.now().UTC()
	if req.EndTime != nil {
		end = req.EndTime.UTC()
	}
	start := end.Add(-defaultSearchRange)
	if req.StartTime != nil {
		start = req.StartTime.UTC()
	}

	f := logstore.Filter{
		From:  start,
		To:    end,
		Terms: map[string]any{},
		AnyOf: map[string][]string{},
		Match: map[string]string{},
	}
	if req.ClientIP != "" {
		f.Terms[logstore.FieldClientIP] = req.ClientIP
	}
	if req.HasPII != nil {
		f.Terms[logstore.FieldHasPII] = *req.HasPII
	}
	if req.Level != "" {
		f.Terms[logstore.FieldLevel] = string(req.Level)
	}
	if len(req.EntityTypes) > 0 {
		f.AnyOf[logstore.FieldEntityTypes] = req.EntityTypes
	}
	if req.SearchText != "" {
		f.Match[logstore.FieldInputText] = req.SearchText
	}
	return f
}

// Get возвращает запись журнала. Отсутствие - domain.ErrNotFound.
func (s *LogService) Get(ctx context.Context, id string) (*domain.DetectionRecord, error) {
	if id == "" {
		return nil, domain.InvalidArgument("log id is required")
	}
	return s.store.Get(ctx, id)
}

// Stats - сводка за последние days суток. Независима от сводки дашборда.
func (s *LogService) Stats(ctx context.Context, days int) (*domain.LogStats, error) {
	if days < 1 || days > dashboard.MaxDays {
		return nil, domain.InvalidArgument("days must be between 1 and %d", dashboard.MaxDays)
	}
	end := s.now().UTC()
	stats := s.stats(ctx, logstore.Filter{From: end.Add(-time.Duration(days) * 24 * time.Hour), To: end}, true)
	return &stats, nil
}

func (s *LogService) stats(ctx context.Context, f logstore.Filter, withTopIPs bool) domain.LogStats {
	aggs := map[string]logstore.Agg{
		"pii":          logstore.FilterTerm(logstore.FieldHasPII, true),
		"avg_time":     logstore.Avg(logstore.FieldProcessingTime),
		"entity_types": logstore.Terms(logstore.FieldEntityTypes, 20),
		"hourly":       logstore.DateHistogram(logstore.FieldTimestamp, "hour"),
	}
	if withTopIPs {
		aggs["top_ips"] = logstore.Terms(logstore.FieldClientIP, 10)
	}

	out := domain.EmptyLogStats()
	res, err := s.store.Aggregate(ctx, f, aggs)
	if err != nil {
		s.logger.Warn("log stats unavailable", zap.Error(err))
		return out
	}

	out.TotalLogs = res.Total
	if out.PIIDetectedCount, err = res.DocCount("pii"); err != nil {
		s.logger.Warn("malformed pii aggregation", zap.Error(err))
	}
	if avg, ok, err := res.Value("avg_time"); err == nil && ok {
		out.AvgProcessingTime = avg
	}
	out.PIIDetectionRate = domain.DetectionRate(out.PIIDetectedCount, out.TotalLogs)

	if buckets, err := res.Buckets("entity_types"); err == nil {
		out.EntityTypeStats = logstore.CountsByKey(buckets)
	}
	if buckets, err := res.Buckets("hourly"); err == nil {
		hourly := make([]dashboard.TimeBucket, 0, len(buckets))
		for _, b := range buckets {
			if ms, ok := b.KeyMillis(); ok {
				hourly = append(hourly, dashboard.TimeBucket{EpochMillis: ms, Count: b.DocCount})
			}
		}
		out.HourlyStats, _ = dashboard.LocalizeHourly(hourly, time.UTC)
	}
	if buckets, err := res.Buckets("top_ips"); err == nil {
		for _, b := range buckets {
			out.TopIPs = append(out.TopIPs, domain.IPCount{IP: b.KeyString(), Count: b.DocCount})
		}
	}
	return out
}

// Recent - первая страница журнала за последние сутки, свежие записи первыми.
func (s *LogService) Recent(ctx context.Context, limit int) (*domain.LogSearchResponse, error) {
	if limit < 1 || limit > MaxRecentLogs {
		return nil, domain.InvalidArgument("limit must be between 1 and %d", MaxRecentLogs)
	}
	end := s.now().UTC()
	filter := logstore.Filter{From: end.Add(-defaultSearchRange), To: end}
	sort := []logstore.SortField{{Field: logstore.FieldTimestamp, Desc: true}}
	return s.page(ctx, filter, 1, limit, sort), nil
}

// Health сообщает состояние хранилища журнала.
func (s *LogService) Health(ctx context.Context) domain.StoreHealth {
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("log store unhealthy", zap.Error(err))
		return domain.StoreHealth{Status: "unhealthy", Elasticsearch: "disconnected"}
	}
	return domain.StoreHealth{Status: "healthy", Elasticsearch: "connected"}
}

// BlocksToday считает блокировки с локальной полуночи в поясе tz.
func (s *LogService) BlocksToday(ctx context.Context, tz string) (*domain.BlockCount, error) {
	loc, err := dashboard.LoadTimezone(tz)
	if err != nil {
		return nil, err
	}

	local := s.now().In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	count, err := s.store.CountBlocksSince(ctx, midnight.UTC())
	if err != nil {
		s.logger.Warn("block count unavailable", zap.Error(err))
		count = 0
	}
	return &domain.BlockCount{
		Count:      count,
		StartOfDay: midnight.Format(time.RFC3339),
		Timezone:   tz,
	}, nil
}
