package logstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/xela07ax/dlp-guard/internal/domain"
	"go.uber.org/zap"
)

// SearchQuery - постраничная выборка записей.
type SearchQuery struct {
	Filter Filter
	From   int
	Size   int
	Sort   []SortField
}

type SearchResult struct {
	Records []domain.DetectionRecord
	Total   int64
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source domain.DetectionRecord `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Index добавляет запись в журнал. Запись только дописывается и не изменяется.
func (s *Store) Index(ctx context.Context, rec domain.DetectionRecord) error {
	body, err := encodeBody(rec)
	if err != nil {
		return fmt.Errorf("logstore: encode record: %w", err)
	}

	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	res, err := s.es.Index(
		s.index,
		body,
		s.es.Index.WithDocumentID(rec.ID),
		s.es.Index.WithContext(ctx),
	)
	if err != nil {
		return unavailable("index", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return unavailable("index", decodeError(res))
	}
	return nil
}

// WriteBatch пишет пачку записей одним _bulk запросом.
func (s *Store) WriteBatch(ctx context.Context, records []domain.DetectionRecord) error {
	if len(records) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rec := range records {
		meta := map[string]any{"index": map[string]any{"_index": s.index, "_id": rec.ID}}
		if err := enc.Encode(meta); err != nil {
			return fmt.Errorf("logstore: encode bulk meta: %w", err)
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("logstore: encode bulk record: %w", err)
		}
	}

	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	res, err := s.es.Bulk(bytes.NewReader(buf.Bytes()), s.es.Bulk.WithContext(ctx))
	if err != nil {
		return unavailable("bulk", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return unavailable("bulk", decodeError(res))
	}

	var payload struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int `json:"status"`
			Error  struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return fmt.Errorf("logstore: decode bulk response: %w", err)
	}
	if !payload.Errors {
		return nil
	}

	failed := 0
	var first *responseError
	for _, item := range payload.Items {
		for _, op := range item {
			if op.Status < 300 {
				continue
			}
			failed++
			if first == nil {
				first = &responseError{Status: op.Status, Type: op.Error.Type, Reason: op.Error.Reason}
			}
		}
	}
	if first == nil {
		return nil
	}
	return fmt.Errorf("logstore: bulk: %d of %d items failed: %w", failed, len(records), first)
}

// Get возвращает запись по идентификатору.
func (s *Store) Get(ctx context.Context, id string) (*domain.DetectionRecord, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	res, err := s.es.Get(s.index, id, s.es.Get.WithContext(ctx))
	if err != nil {
		return nil, unavailable("get", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, domain.NotFound("log", id)
	}
	if res.IsError() {
		return nil, unavailable("get", decodeError(res))
	}

	var doc struct {
		Found  bool                   `json:"found"`
		Source domain.DetectionRecord `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("logstore: decode document: %w", err)
	}
	if !doc.Found {
		return nil, domain.NotFound("log", id)
	}
	return &doc.Source, nil
}

// Search выполняет постраничный поиск с сортировкой.
func (s *Store) Search(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	body := map[string]any{
		"query":            BuildQuery(q.Filter),
		"from":             q.From,
		"size":             q.Size,
		"track_total_hits": true,
	}
	if len(q.Sort) > 0 {
		body["sort"] = buildSort(q.Sort)
	}

	reader, err := encodeBody(body)
	if err != nil {
		return nil, fmt.Errorf("logstore: encode search: %w", err)
	}

	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex(s.index),
		s.es.Search.WithBody(reader),
	)
	if err != nil {
		return nil, unavailable("search", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, unavailable("search", decodeError(res))
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("logstore: decode search: %w", err)
	}

	out := &SearchResult{
		Records: make([]domain.DetectionRecord, 0, len(sr.Hits.Hits)),
		Total:   sr.Hits.Total.Value,
	}
	for _, hit := range sr.Hits.Hits {
		out.Records = append(out.Records, hit.Source)
	}
	return out, nil
}

// Recent возвращает последние limit записей без окна по времени.
// Ненулевой before отсекает записи с меткой позже него.
func (s *Store) Recent(ctx context.Context, limit int, before time.Time) ([]domain.DetectionRecord, error) {
	res, err := s.Search(ctx, SearchQuery{
		Filter: Filter{To: before},
		Size:   limit,
		Sort:   []SortField{{Field: FieldTimestamp, Desc: true}},
	})
	if err != nil {
		return nil, err
	}
	return res.Records, nil
}

// Aggregate выполняет size=0 запрос с набором агрегаций по фильтру.
func (s *Store) Aggregate(ctx context.Context, f Filter, aggs map[string]Agg) (*AggResult, error) {
	body := map[string]any{
		"size":             0,
		"track_total_hits": true,
		"query":            BuildQuery(f),
	}
	if len(aggs) > 0 {
		body["aggs"] = aggs
	}

	reader, err := encodeBody(body)
	if err != nil {
		return nil, fmt.Errorf("logstore: encode aggregation: %w", err)
	}

	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex(s.index),
		s.es.Search.WithBody(reader),
	)
	if err != nil {
		return nil, unavailable("aggregate", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, unavailable("aggregate", decodeError(res))
	}

	var ar aggregationResponse
	if err := json.NewDecoder(res.Body).Decode(&ar); err != nil {
		return nil, fmt.Errorf("logstore: decode aggregation: %w", err)
	}
	if ar.Aggregations == nil {
		ar.Aggregations = map[string]json.RawMessage{}
	}
	return &AggResult{Total: ar.Hits.Total.Value, Aggregations: ar.Aggregations}, nil
}

// Count возвращает количество документов по фильтру.
func (s *Store) Count(ctx context.Context, f Filter) (int64, error) {
	reader, err := encodeBody(map[string]any{"query": BuildQuery(f)})
	if err != nil {
		return 0, fmt.Errorf("logstore: encode count: %w", err)
	}

	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	res, err := s.es.Count(
		s.es.Count.WithContext(ctx),
		s.es.Count.WithIndex(s.index),
		s.es.Count.WithBody(reader),
	)
	if err != nil {
		return 0, unavailable("count", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, unavailable("count", decodeError(res))
	}

	var cr struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&cr); err != nil {
		return 0, fmt.Errorf("logstore: decode count: %w", err)
	}
	return cr.Count, nil
}

// CountBlocksSince считает записи с metadata.action=BLOCK начиная с момента since.
func (s *Store) CountBlocksSince(ctx context.Context, since time.Time) (int64, error) {
	return s.Count(ctx, Filter{
		From:  since,
		Terms: map[string]any{FieldAction: domain.ActionBlock},
	})
}

// DeleteOlderThan удаляет записи старше cutoff и возвращает их количество.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	reader, err := encodeBody(map[string]any{
		"query": map[string]any{"range": map[string]any{
			FieldTimestamp: map[string]any{"lt": cutoff.UTC().Format(time.RFC3339Nano)},
		}},
	})
	if err != nil {
		return 0, fmt.Errorf("logstore: encode delete: %w", err)
	}

	// Без queryCtx: длительность удаления ограничивает вызывающий
	res, err := s.es.DeleteByQuery(
		[]string{s.index},
		reader,
		s.es.DeleteByQuery.WithContext(ctx),
		s.es.DeleteByQuery.WithConflicts("proceed"),
	)
	if err != nil {
		return 0, unavailable("delete by query", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, unavailable("delete by query", decodeError(res))
	}

	var dr struct {
		Deleted int64 `json:"deleted"`
	}
	if err := json.NewDecoder(res.Body).Decode(&dr); err != nil {
		return 0, fmt.Errorf("logstore: decode delete: %w", err)
	}
	if dr.Deleted > 0 {
		s.logger.Info("expired records deleted", zap.Int64("deleted", dr.Deleted), zap.Time("cutoff", cutoff))
	}
	return dr.Deleted, nil
}
