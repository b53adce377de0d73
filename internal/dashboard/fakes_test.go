package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/xela07ax/dlp-guard/internal/domain"
	"github.com/xela07ax/dlp-guard/internal/logstore"
)

var errStoreDown = errors.New("connection refused")

// fakeStore отвечает на агрегации по имени корневой агрегации запроса.
type fakeStore struct {
	mu      sync.Mutex
	total   int64
	aggs    map[string]string // имя агрегации -> JSON
	failing map[string]bool
	block   bool
	calls   int
	filters []logstore.Filter

	recent    []domain.DetectionRecord
	recentErr error
	before    time.Time
}

func (f *fakeStore) Aggregate(ctx context.Context, filter logstore.Filter, aggs map[string]logstore.Agg) (*logstore.AggResult, error) {
	f.mu.Lock()
	f.calls++
	f.filters = append(f.filters, filter)
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	raw := make(map[string]json.RawMessage, len(aggs))
	for name := range aggs {
		if f.failing[name] {
			return nil, errStoreDown
		}
		if body, ok := f.aggs[name]; ok {
			raw[name] = json.RawMessage(body)
		}
	}
	return &logstore.AggResult{Total: f.total, Aggregations: raw}, nil
}

func (f *fakeStore) Recent(ctx context.Context, limit int, before time.Time) ([]domain.DetectionRecord, error) {
	f.mu.Lock()
	f.calls++
	f.before = before
	f.mu.Unlock()

	if f.recentErr != nil {
		return nil, f.recentErr
	}
	if len(f.recent) > limit {
		return f.recent[:limit], nil
	}
	return f.recent, nil
}

func (f *fakeStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func unreachableStore() *fakeStore {
	return &fakeStore{
		failing: map[string]bool{
			"pii": true, "avg_time": true, "entity_types": true, "hourly": true, "monthly": true,
			"labels": true, "log_status": true, "projects": true, "services": true, "top_ips": true,
		},
		recentErr: errStoreDown,
	}
}

// populatedStore - 100 записей в окне, из них 40 с ПДн.
func populatedStore() *fakeStore {
	return &fakeStore{
		total: 100,
		aggs: map[string]string{
			"pii":          `{"doc_count": 40}`,
			"avg_time":     `{"value": 42.5}`,
			"entity_types": `{"buckets": [{"key": "PHONE", "doc_count": 30}, {"key": "NAME", "doc_count": 15}]}`,
			"hourly": `{"buckets": [
				{"key": 1705327200000, "key_as_string": "2024-01-15T14:00:00.000Z", "doc_count": 60},
				{"key": 1705330800000, "key_as_string": "2024-01-15T15:00:00.000Z", "doc_count": 40}
			]}`,
			"monthly": `{"buckets": [
				{"key": 1704067200000, "doc_count": 100, "pii": {"doc_count": 40}}
			]}`,
			"labels": `{"buckets": [
				{"key": "PHONE", "doc_count": 30, "actions": {"buckets": [{"key": "BLOCK", "doc_count": 25}, {"key": "ALLOW", "doc_count": 5}]}},
				{"key": "NAME", "doc_count": 15, "actions": {"buckets": []}}
			]}`,
			"log_status": `{"buckets": [{"key": "processed", "doc_count": 100}]}`,
			"projects":   `{"buckets": [{"key": "chatbot", "doc_count": 70}, {"key": "crm", "doc_count": 30}]}`,
			"services":   `{"buckets": [{"key": "gpt", "doc_count": 100}]}`,
			"top_ips":    `{"buckets": [{"key": "10.0.0.2", "doc_count": 20}, {"key": "10.0.0.1", "doc_count": 80}]}`,
		},
	}
}
