package detector

import (
	"context"
	"fmt"
	"time"

	"github.com/xela07ax/dlp-guard/internal/domain"
)

// Detector - контракт модели PII: текст на входе, найденные сущности на выходе.
type Detector interface {
	Detect(ctx context.Context, text string) (*domain.DetectionResult, error)
}

// ThrottleError возвращается, когда сервис модели просит подождать.
type ThrottleError struct {
	RetryAfter time.Duration
	Cause      error
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("throttled: retry after %v (cause: %v)", e.RetryAfter, e.Cause)
}

func (e *ThrottleError) Unwrap() error { return e.Cause }

// Stub используется, когда адрес модели не настроен: персональных данных не находит.
type Stub struct{}

func (Stub) Detect(ctx context.Context, _ string) (*domain.DetectionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &domain.DetectionResult{HasPII: false, Entities: []domain.Entity{}}, nil
}

// ApplyThreshold отбрасывает сущности с уверенностью ниже порога.
// HasPII пересчитывается по оставшимся сущностям.
func ApplyThreshold(res *domain.DetectionResult, threshold float64) *domain.DetectionResult {
	kept := make([]domain.Entity, 0, len(res.Entities))
	for _, e := range res.Entities {
		if e.Confidence >= threshold {
			kept = append(kept, e)
		}
	}
	return &domain.DetectionResult{HasPII: len(kept) > 0, Entities: kept}
}
