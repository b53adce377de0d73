package detector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/xela07ax/dlp-guard/internal/domain"
)

// CachingDetector запоминает ответы модели по дайджесту текста.
// Ошибки не кэшируются.
type CachingDetector struct {
	next  Detector
	cache *lru.Cache[string, domain.DetectionResult]
}

func NewCachingDetector(next Detector, size int) (*CachingDetector, error) {
	if size <= 0 {
		size = 1024
	}
	c, err := lru.New[string, domain.DetectionResult](size)
	if err != nil {
		return nil, err
	}
	return &CachingDetector{next: next, cache: c}, nil
}

func (d *CachingDetector) Detect(ctx context.Context, text string) (*domain.DetectionResult, error) {
	sum := sha256.Sum256([]byte(text))
	key := hex.EncodeToString(sum[:])

	if hit, ok := d.cache.Get(key); ok {
		return cloneResult(hit), nil
	}

	res, err := d.next.Detect(ctx, text)
	if err != nil {
		return nil, err
	}
	d.cache.Add(key, *cloneResult(*res))
	return res, nil
}

func (d *CachingDetector) Len() int { return d.cache.Len() }

func cloneResult(r domain.DetectionResult) *domain.DetectionResult {
	out := r
	out.Entities = append([]domain.Entity(nil), r.Entities...)
	if out.Entities == nil {
		out.Entities = []domain.Entity{}
	}
	return &out
}
