package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"github.com/xela07ax/dlp-guard/internal/detector"
	"github.com/xela07ax/dlp-guard/internal/domain"
	"golang.org/x/time/rate"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrDetectorUnavailable - предохранитель разомкнут или лимит запросов к модели исчерпан.
var ErrDetectorUnavailable = errors.New("pii detector unavailable")

type ReliabilityOptions struct {
	Name        string
	RateLimit   float64
	RateBurst   int
	MaxRequests uint32        // пробные запросы в полуоткрытом состоянии
	Interval    time.Duration // окно сброса счётчиков в закрытом состоянии
	OpenTimeout time.Duration // через сколько CB попробует "закрыться"
	Failures    uint32        // подряд идущих ошибок до размыкания
	Attempts    uint
	CallTimeout time.Duration
}

// ReliabilityWrapper: rate limiter -> circuit breaker -> retry -> таймаут на попытку.
type ReliabilityWrapper struct {
	next    detector.Detector
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	opts    ReliabilityOptions
	metrics *Metrics
}

func NewReliabilityWrapper(next detector.Detector, opts ReliabilityOptions, metrics *Metrics) *ReliabilityWrapper {
	if opts.Name == "" {
		opts.Name = "pii-detector"
	}
	if opts.Attempts == 0 {
		opts.Attempts = 3
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 10 * time.Second
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 100
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 20
	}
	if opts.Failures == 0 {
		opts.Failures = 5
	}

	breakerState := metrics.CircuitBreakerState.WithLabelValues(opts.Name)
	breakerState.Set(0)

	// Настройка предохранителя
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: opts.MaxRequests,
		Interval:    opts.Interval,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.Failures
		},
		// Ошибки клиента не должны размыкать предохранитель
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(_ string, _, to gobreaker.State) {
			switch to {
			case gobreaker.StateOpen:
				breakerState.Set(1)
			case gobreaker.StateHalfOpen:
				breakerState.Set(0.5)
			default:
				breakerState.Set(0)
			}
		},
	})

	return &ReliabilityWrapper{
		next:    next,
		cb:      cb,
		limiter: rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateBurst),
		opts:    opts,
		metrics: metrics,
	}
}

// State отдаётся в health-ручку шлюза.
func (w *ReliabilityWrapper) State() string {
	return w.cb.State().String()
}

func (w *ReliabilityWrapper) Detect(ctx context.Context, text string) (*domain.DetectionResult, error) {
	// 1. Rate Limiter
	if err := w.limiter.Wait(ctx); err != nil {
		w.metrics.ErrorTotal.WithLabelValues("rate_limit").Inc()
		return nil, fmt.Errorf("%w: rate limit exceeded: %v", ErrDetectorUnavailable, err)
	}

	// 2. Circuit Breaker
	out, err := w.cb.Execute(func() (interface{}, error) {
		var (
			result    *domain.DetectionResult
			permanent error // ошибки, которые бессмысленно повторять
		)

		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(w.opts.Attempts),
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				// Модель сама сказала, сколько ждать
				var tErr *detector.ThrottleError
				if errors.As(err, &tErr) {
					return tErr.RetryAfter
				}
				return retry.BackOffDelay(n, err, config)
			}),
		)

		retryErr := r.Do(func() error {
			tCtx, cancel := context.WithTimeout(ctx, w.opts.CallTimeout)
			defer cancel()

			res, callErr := w.next.Detect(tCtx, text)
			if callErr != nil && status.Code(callErr) == codes.InvalidArgument {
				permanent = fmt.Errorf("%w: %v", domain.ErrInvalidArgument, callErr)
				return nil
			}
			result = res
			return callErr
		})
		if permanent != nil {
			return nil, permanent
		}
		if retryErr != nil {
			return nil, retryErr
		}
		return result, nil
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			w.metrics.ErrorTotal.WithLabelValues("circuit_open").Inc()
			return nil, fmt.Errorf("%w: %v", ErrDetectorUnavailable, err)
		}
		return nil, err
	}

	return out.(*domain.DetectionResult), nil
}
