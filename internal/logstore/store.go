package logstore

/*
Пакет logstore - адаптер журнала детекций поверх Elasticsearch.

- Переводит структурированные фильтры (диапазон времени, точные совпадения, членство,
  полнотекстовый поиск) в Query DSL и разбирает бакеты агрегаций в типизированные значения.
- Каждый вызов ограничен таймаутом (queryCtx), ни одна операция не висит бесконечно.
- Любая ошибка транспорта или ответа оборачивается в domain.ErrStoreUnavailable: читающие
  потребители сами сводят её к нулевым значениям, пишущие отдают вызывающему.
- Ping - единственная операция, которая обязана падать громко: её зовут при старте.
*/

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/xela07ax/dlp-guard/internal/domain"
	"go.uber.org/zap"
)

// Options описывает подключение к кластеру.
type Options struct {
	URL        string
	Username   string
	Password   string
	Index      string
	Timeout    time.Duration
	MaxRetries int
}

type Store struct {
	es        *elasticsearch.Client
	transport *http.Transport
	index     string
	timeout   time.Duration
	logger    *zap.Logger
}

// New создаёт клиента. Соединение не проверяется: для этого есть Ping.
func New(opts Options, logger *zap.Logger) (*Store, error) {
	if opts.Index == "" {
		return nil, fmt.Errorf("logstore: index name is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 20

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     []string{opts.URL},
		Username:      opts.Username,
		Password:      opts.Password,
		Transport:     transport,
		MaxRetries:    opts.MaxRetries,
		RetryOnStatus: []int{502, 503, 504},
	})
	if err != nil {
		return nil, fmt.Errorf("logstore: create client: %w", err)
	}

	return &Store{
		es:        es,
		transport: transport,
		index:     opts.Index,
		timeout:   opts.Timeout,
		logger:    logger.Named("logstore"),
	}, nil
}

// IndexName возвращает имя обслуживаемого индекса.
func (s *Store) IndexName() string {
	return s.index
}

// Close освобождает соединения транспорта.
func (s *Store) Close() {
	s.transport.CloseIdleConnections()
}

func (s *Store) queryCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// Ping проверяет доступность кластера. Ошибка здесь - признак неверной конфигурации.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	res, err := s.es.Ping(s.es.Ping.WithContext(ctx))
	if err != nil {
		return unavailable("ping", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return unavailable("ping", fmt.Errorf("status %d", res.StatusCode))
	}
	return nil
}

// Init готовит хранилище при старте: кластер должен отвечать, индекс создаётся с маппингом
// до первой записи, иначе Elasticsearch выведет типы полей динамически.
func (s *Store) Init(ctx context.Context) error {
	if err := s.Ping(ctx); err != nil {
		return err
	}
	return s.EnsureIndex(ctx)
}

// EnsureIndex создаёт индекс с маппингом, если его ещё нет. Повторный вызов - no-op.
func (s *Store) EnsureIndex(ctx context.Context) error {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	res, err := s.es.Indices.Exists([]string{s.index}, s.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return unavailable("index exists", err)
	}
	res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
	default:
		return unavailable("index exists", fmt.Errorf("status %d", res.StatusCode))
	}

	res, err = s.es.Indices.Create(
		s.index,
		s.es.Indices.Create.WithBody(bytes.NewReader(indexMapping)),
		s.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return unavailable("create index", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		esErr := decodeError(res)
		// Параллельный инстанс успел создать индекс раньше нас
		var typed *responseError
		if errors.As(esErr, &typed) && typed.Type == "resource_already_exists_exception" {
			return nil
		}
		return unavailable("create index", esErr)
	}

	s.logger.Info("index created", zap.String("index", s.index))
	return nil
}

// responseError - тело ошибки Elasticsearch.
type responseError struct {
	Status int
	Type   string
	Reason string
}

func (e *responseError) Error() string {
	return fmt.Sprintf("elasticsearch [%d] %s: %s", e.Status, e.Type, e.Reason)
}

func decodeError(res *esapi.Response) error {
	body, _ := io.ReadAll(res.Body)

	var payload struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Error.Type == "" {
		return &responseError{Status: res.StatusCode, Type: "unknown", Reason: string(body)}
	}
	return &responseError{Status: res.StatusCode, Type: payload.Error.Type, Reason: payload.Error.Reason}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("logstore: %s: %w: %w", op, domain.ErrStoreUnavailable, err)
}

func encodeBody(v any) (*bytes.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}
