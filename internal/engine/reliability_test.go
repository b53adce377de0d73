package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/dlp-guard/internal/detector"
	"github.com/xela07ax/dlp-guard/internal/domain"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// flakyDetector падает failures раз, затем отвечает успешно.
type flakyDetector struct {
	failures int32
	err      error
	calls    atomic.Int32
}

func (d *flakyDetector) Detect(context.Context, string) (*domain.DetectionResult, error) {
	n := d.calls.Add(1)
	if n <= d.failures {
		return nil, d.err
	}
	return &domain.DetectionResult{Entities: []domain.Entity{}}, nil
}

func TestReliability_RetriesTransientErrors(t *testing.T) {
	next := &flakyDetector{failures: 2, err: &detector.ThrottleError{RetryAfter: time.Millisecond, Cause: errors.New("busy")}}
	w := NewReliabilityWrapper(next, ReliabilityOptions{Attempts: 3}, NewMetrics(prometheus.NewRegistry()))

	res, err := w.Detect(context.Background(), "text")
	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Equal(t, int32(3), next.calls.Load())
}

func TestReliability_InvalidArgumentIsNotRetried(t *testing.T) {
	next := &flakyDetector{failures: 10, err: status.Error(codes.InvalidArgument, "text too long for model")}
	w := NewReliabilityWrapper(next, ReliabilityOptions{Attempts: 3, Failures: 1}, NewMetrics(prometheus.NewRegistry()))

	_, err := w.Detect(context.Background(), "text")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Equal(t, int32(1), next.calls.Load())

	// Ошибка клиента не размыкает предохранитель
	assert.Equal(t, "closed", w.State())
}

func TestReliability_BreakerOpens(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	next := &flakyDetector{failures: 100, err: errors.New("connection refused")}
	w := NewReliabilityWrapper(next, ReliabilityOptions{Attempts: 1, Failures: 2, OpenTimeout: time.Minute}, m)

	for i := 0; i < 2; i++ {
		_, err := w.Detect(context.Background(), "text")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrDetectorUnavailable)
	}
	assert.Equal(t, "open", w.State())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("pii-detector")))

	_, err := w.Detect(context.Background(), "text")
	assert.ErrorIs(t, err, ErrDetectorUnavailable)
	assert.Equal(t, int32(2), next.calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorTotal.WithLabelValues("circuit_open")))
}

func TestReliability_CancelledContext(t *testing.T) {
	w := NewReliabilityWrapper(&flakyDetector{}, ReliabilityOptions{RateLimit: 1, RateBurst: 1}, NewMetrics(prometheus.NewRegistry()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Detect(ctx, "text")
	assert.ErrorIs(t, err, ErrDetectorUnavailable)
}
