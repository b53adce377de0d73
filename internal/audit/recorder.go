package audit

/*
Recorder - асинхронная запись журнала детекций в хранилище логов.

- Non-blocking: шлюз кладёт запись в буферизованный канал и сразу отвечает клиенту.
- Batching: записи копятся в памяти и уходят одним bulk-запросом
  по таймеру или при достижении размера пачки.
- Drain: Stop закрывает вход, воркер вычитывает остаток и делает финальный flush.
- Load shedding: при переполнении буфера запись отбрасывается со счётчиком.
*/

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/xela07ax/dlp-guard/internal/domain"
	"go.uber.org/zap"
)

// Storage определяет, куда физически сохраняются записи
type Storage interface {
	// WriteBatch сохраняет пачку записей за один раз
	WriteBatch(ctx context.Context, records []domain.DetectionRecord) error
}

type Options struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	WriteTimeout  time.Duration
}

func (o *Options) withDefaults() {
	if o.BufferSize <= 0 {
		o.BufferSize = 10000
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = 500 * time.Millisecond
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
}

type Metrics struct {
	BufferFill    prometheus.Gauge
	Dropped       prometheus.Counter
	FlushFailures prometheus.Counter
	Written       prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		BufferFill: f.NewGauge(prometheus.GaugeOpts{
			Name: "dlp_recorder_buffer_utilization",
			Help: "Current number of detection records waiting in the recorder buffer.",
		}),
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Name: "dlp_recorder_dropped_total",
			Help: "Detection records dropped because the buffer was full or the recorder was stopping.",
		}),
		FlushFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "dlp_recorder_flush_failures_total",
			Help: "Failed bulk writes to the log store.",
		}),
		Written: f.NewCounter(prometheus.CounterOpts{
			Name: "dlp_recorder_written_total",
			Help: "Detection records written to the log store.",
		}),
	}
}

type Recorder struct {
	ch      chan domain.DetectionRecord
	repo    Storage
	opts    Options
	metrics *Metrics
	logger  *zap.Logger
	wg      sync.WaitGroup

	closed    atomic.Bool
	sendMu    sync.RWMutex // Record держит RLock, Stop берёт Lock перед close(ch)
	startOnce sync.Once
	stopOnce  sync.Once
}

func NewRecorder(repo Storage, opts Options, metrics *Metrics, logger *zap.Logger) *Recorder {
	opts.withDefaults()
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Recorder{
		ch:      make(chan domain.DetectionRecord, opts.BufferSize),
		repo:    repo,
		opts:    opts,
		metrics: metrics,
		logger:  logger.Named("recorder"),
	}
}

func (r *Recorder) Start() {
	r.startOnce.Do(func() {
		r.wg.Add(1)
		go r.worker()
	})
}

// Stop «запирает» вход в канал и ждет, пока воркер всё допишет.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() {
		r.logger.Info("stopping recorder: closing channel and flushing buffer...")
		r.sendMu.Lock()
		r.closed.Store(true)
		close(r.ch)
		r.sendMu.Unlock()
		r.wg.Wait()
		r.logger.Info("recorder stopped gracefully")
	})
}

// Record ставит запись в очередь, никогда не блокируясь.
// Возвращает false, если запись отброшена.
func (r *Recorder) Record(rec domain.DetectionRecord) bool {
	r.sendMu.RLock()
	defer r.sendMu.RUnlock()

	if r.closed.Load() {
		r.metrics.Dropped.Inc()
		r.logger.Warn("detection record dropped: recorder is stopping", zap.String("id", rec.ID))
		return false
	}

	select {
	case r.ch <- rec:
		r.metrics.BufferFill.Set(float64(len(r.ch)))
		return true
	default:
		r.metrics.Dropped.Inc()
		r.logger.Error("recorder_buffer_overflow",
			zap.String("id", rec.ID),
			zap.String("request_id", rec.RequestID))
		return false
	}
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	batch := make([]domain.DetectionRecord, 0, r.opts.BatchSize)
	ticker := time.NewTicker(r.opts.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Background: контекст запроса к этому моменту уже закрыт
		ctx, cancel := context.WithTimeout(context.Background(), r.opts.WriteTimeout)
		err := r.repo.WriteBatch(ctx, batch)
		cancel()
		if err != nil {
			r.metrics.FlushFailures.Inc()
			r.logger.Error("recorder flush failed", zap.Int("records", len(batch)), zap.Error(err))
		} else {
			r.metrics.Written.Add(float64(len(batch)))
		}
		batch = batch[:0]
		r.metrics.BufferFill.Set(float64(len(r.ch)))
	}

	for {
		select {
		case rec, ok := <-r.ch:
			if !ok {
				flush() // Финальный сброс
				r.logger.Info("recorder worker finished")
				return
			}
			batch = append(batch, rec)
			if len(batch) >= r.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
