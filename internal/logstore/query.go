package logstore

import (
	"sort"
	"time"
)

// Filter - структурированные предикаты запроса. Нулевое значение выбирает все документы.
type Filter struct {
	From time.Time // нулевое - без нижней границы
	To   time.Time // нулевое - без верхней границы

	Terms map[string]any      // точное совпадение: term
	AnyOf map[string][]string // членство: terms
	Match map[string]string   // полнотекстовый поиск: match
}

// SortField описывает один ключ сортировки выдачи.
type SortField struct {
	Field string
	Desc  bool
}

// BuildQuery переводит фильтр в bool-запрос Query DSL.
// Ключи обходятся в отсортированном порядке, чтобы тело запроса было детерминированным.
func BuildQuery(f Filter) map[string]any {
	var filters []any

	if !f.From.IsZero() || !f.To.IsZero() {
		rng := map[string]any{}
		if !f.From.IsZero() {
			rng["gte"] = f.From.UTC().Format(time.RFC3339Nano)
		}
		if !f.To.IsZero() {
			rng["lte"] = f.To.UTC().Format(time.RFC3339Nano)
		}
		filters = append(filters, map[string]any{"range": map[string]any{FieldTimestamp: rng}})
	}

	for _, field := range sortedKeys(f.Terms) {
		filters = append(filters, map[string]any{"term": map[string]any{field: f.Terms[field]}})
	}

	for _, field := range sortedKeys(f.AnyOf) {
		values := f.AnyOf[field]
		if len(values) == 0 {
			continue
		}
		filters = append(filters, map[string]any{"terms": map[string]any{field: values}})
	}

	var must []any
	for _, field := range sortedKeys(f.Match) {
		text := f.Match[field]
		if text == "" {
			continue
		}
		must = append(must, map[string]any{"match": map[string]any{field: text}})
	}

	if len(filters) == 0 && len(must) == 0 {
		return map[string]any{"match_all": map[string]any{}}
	}

	boolQuery := map[string]any{}
	if len(filters) > 0 {
		boolQuery["filter"] = filters
	}
	if len(must) > 0 {
		boolQuery["must"] = must
	}
	return map[string]any{"bool": boolQuery}
}

func buildSort(fields []SortField) []any {
	out := make([]any, 0, len(fields))
	for _, sf := range fields {
		order := "asc"
		if sf.Desc {
			order = "desc"
		}
		out = append(out, map[string]any{sf.Field: map[string]any{"order": order}})
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
