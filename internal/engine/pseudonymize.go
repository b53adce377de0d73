package engine

import (
	"sort"
	"strings"

	"github.com/xela07ax/dlp-guard/internal/domain"
)

// Pseudonymize заменяет найденные значения на [TYPE] в тексте и в самих сущностях.
// Длинные значения заменяются первыми, чтобы вложенные совпадения не рвали их.
func Pseudonymize(text string, entities []domain.Entity) (string, []domain.Entity) {
	masked := make([]domain.Entity, len(entities))
	byLen := make([]domain.Entity, 0, len(entities))
	for i, e := range entities {
		masked[i] = domain.Entity{Type: e.Type, Value: placeholder(e.Type), Confidence: e.Confidence}
		if e.Value != "" {
			byLen = append(byLen, e)
		}
	}
	sort.SliceStable(byLen, func(i, j int) bool { return len(byLen[i].Value) > len(byLen[j].Value) })

	for _, e := range byLen {
		text = strings.ReplaceAll(text, e.Value, placeholder(e.Type))
	}
	return text, masked
}

func placeholder(entityType string) string {
	return "[" + entityType + "]"
}
