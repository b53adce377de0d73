package logstore

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Agg - одна агрегация в DSL Elasticsearch.
type Agg map[string]any

// Terms - топ-N значений поля.
func Terms(field string, size int) Agg {
	return Agg{"terms": map[string]any{"field": field, "size": size}}
}

// DateHistogram - календарная гистограмма в UTC. Часовой пояс в запрос не передаётся:
// локализация подписей выполняется на стороне приложения.
func DateHistogram(field, interval string) Agg {
	return Agg{"date_histogram": map[string]any{
		"field":             field,
		"calendar_interval": interval,
		"min_doc_count":     0,
	}}
}

// FilterTerm - количество документов, у которых поле равно значению.
func FilterTerm(field string, value any) Agg {
	return Agg{"filter": map[string]any{"term": map[string]any{field: value}}}
}

func Avg(field string) Agg {
	return Agg{"avg": map[string]any{"field": field}}
}

// With добавляет вложенную агрегацию.
func (a Agg) With(name string, sub Agg) Agg {
	subs, ok := a["aggs"].(map[string]any)
	if !ok {
		subs = map[string]any{}
		a["aggs"] = subs
	}
	subs[name] = sub
	return a
}

// AggResult - разобранный ответ size=0 запроса.
type AggResult struct {
	Total        int64
	Aggregations map[string]json.RawMessage
}

type aggregationResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
	} `json:"hits"`
	Aggregations map[string]json.RawMessage `json:"aggregations"`
}

// Bucket - один бакет terms/date_histogram вместе с сырыми вложенными агрегациями.
type Bucket struct {
	Key         any
	KeyAsString string
	DocCount    int64
	Aggs        map[string]json.RawMessage
}

func (b *Bucket) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		var err error
		switch k {
		case "key":
			err = json.Unmarshal(v, &b.Key)
		case "key_as_string":
			err = json.Unmarshal(v, &b.KeyAsString)
		case "doc_count":
			err = json.Unmarshal(v, &b.DocCount)
		case "doc_count_error_upper_bound", "sum_other_doc_count":
		default:
			if b.Aggs == nil {
				b.Aggs = make(map[string]json.RawMessage)
			}
			b.Aggs[k] = v
		}
		if err != nil {
			return fmt.Errorf("bucket field %s: %w", k, err)
		}
	}
	return nil
}

// KeyString возвращает ключ бакета строкой. Для булевых terms это "true"/"false".
func (b Bucket) KeyString() string {
	if b.KeyAsString != "" {
		return b.KeyAsString
	}
	switch k := b.Key.(type) {
	case string:
		return k
	case float64:
		return strconv.FormatFloat(k, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(k)
	case nil:
		return ""
	}
	return fmt.Sprint(b.Key)
}

// KeyMillis возвращает числовой ключ date_histogram (epoch ms, UTC).
func (b Bucket) KeyMillis() (int64, bool) {
	k, ok := b.Key.(float64)
	if !ok {
		return 0, false
	}
	return int64(k), true
}

// ParseBuckets разбирает бакеты агрегации name. Отсутствующая агрегация - пустой список.
func ParseBuckets(aggs map[string]json.RawMessage, name string) ([]Bucket, error) {
	raw, ok := aggs[name]
	if !ok {
		return nil, nil
	}
	var res struct {
		Buckets []Bucket `json:"buckets"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("logstore: parse buckets %s: %w", name, err)
	}
	return res.Buckets, nil
}

// ParseDocCount разбирает doc_count одиночной filter-агрегации.
func ParseDocCount(aggs map[string]json.RawMessage, name string) (int64, error) {
	raw, ok := aggs[name]
	if !ok {
		return 0, nil
	}
	var res struct {
		DocCount int64 `json:"doc_count"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return 0, fmt.Errorf("logstore: parse filter %s: %w", name, err)
	}
	return res.DocCount, nil
}

// ParseValue разбирает метрическую агрегацию (avg). На пустом окне Elasticsearch отдаёт null.
func ParseValue(aggs map[string]json.RawMessage, name string) (float64, bool, error) {
	raw, ok := aggs[name]
	if !ok {
		return 0, false, nil
	}
	var res struct {
		Value *float64 `json:"value"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return 0, false, fmt.Errorf("logstore: parse metric %s: %w", name, err)
	}
	if res.Value == nil {
		return 0, false, nil
	}
	return *res.Value, true, nil
}

// CountsByKey сворачивает бакеты в карту ключ -> количество.
func CountsByKey(buckets []Bucket) map[string]int64 {
	out := make(map[string]int64, len(buckets))
	for _, b := range buckets {
		out[b.KeyString()] += b.DocCount
	}
	return out
}

func (r *AggResult) Buckets(name string) ([]Bucket, error) {
	return ParseBuckets(r.Aggregations, name)
}

func (r *AggResult) DocCount(name string) (int64, error) {
	return ParseDocCount(r.Aggregations, name)
}

func (r *AggResult) Value(name string) (float64, bool, error) {
	return ParseValue(r.Aggregations, name)
}
