package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xela07ax/dlp-guard/internal/audit"
	"github.com/xela07ax/dlp-guard/internal/detector"
	"github.com/xela07ax/dlp-guard/internal/domain"
	"github.com/xela07ax/dlp-guard/internal/events"
	"github.com/xela07ax/dlp-guard/internal/infra/auth"
	"github.com/xela07ax/dlp-guard/internal/policy"
	"go.uber.org/zap"
)

const (
	MaxTextLength    = 10000
	DefaultThreshold = 0.59
	DetectPath       = "/api/v1/pii/detect"
	unknownClientIP  = "0.0.0.0"
)

var ErrMaintenance = errors.New("service is under maintenance")

// DetectResponse - ответ шлюза клиенту.
type DetectResponse struct {
	HasPII    bool            `json:"has_pii"`
	Reason    string          `json:"reason"`
	Details   string          `json:"details"`
	Entities  []domain.Entity `json:"entities"`
	Action    string          `json:"action,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// RequestInfo - сведения о клиенте, которые попадают в журнал.
type RequestInfo struct {
	ClientIP  string
	UserAgent string
	RequestID string
	Path      string
	Username  string
}

// Recorder - асинхронная запись журнала (audit.Recorder).
type Recorder interface {
	Record(rec domain.DetectionRecord) bool
}

var _ Recorder = (*audit.Recorder)(nil)

type DetectionCore struct {
	detector  detector.Detector
	pdp       policy.Enforcer
	recorder  Recorder
	events    events.Publisher
	metrics   *Metrics
	threshold float64
	logger    *zap.Logger
	now       func() time.Time
}

func NewDetectionCore(
	det detector.Detector,
	pdp policy.Enforcer,
	recorder Recorder,
	publisher events.Publisher,
	metrics *Metrics,
	threshold float64,
	logger *zap.Logger,
) *DetectionCore {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &DetectionCore{
		detector:  det,
		pdp:       pdp,
		recorder:  recorder,
		events:    publisher,
		metrics:   metrics,
		threshold: threshold,
		logger:    logger.Named("detection-core"),
		now:       time.Now,
	}
}

// Detect - единый пайплайн для HTTP и gRPC.
func (c *DetectionCore) Detect(ctx context.Context, text string, info RequestInfo) (*DetectResponse, error) {
	start := c.now()
	outcome := "error"
	defer func() {
		c.metrics.RequestDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	// 0. Режим обслуживания
	if c.pdp.MaintenanceMode() {
		c.metrics.ErrorTotal.WithLabelValues("maintenance").Inc()
		return nil, ErrMaintenance
	}

	// 1. Валидация ввода
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		c.metrics.ErrorTotal.WithLabelValues("invalid_input").Inc()
		return nil, domain.InvalidArgument("text must not be empty")
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		c.metrics.ErrorTotal.WithLabelValues("invalid_input").Inc()
		return nil, domain.InvalidArgument("text must be at most %d characters", MaxTextLength)
	}

	// 2. Модель
	raw, err := c.detector.Detect(ctx, trimmed)
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidArgument) {
			c.metrics.ErrorTotal.WithLabelValues("detector").Inc()
		}
		return nil, fmt.Errorf("engine: detect: %w", err)
	}
	res := detector.ApplyThreshold(raw, c.threshold)
	elapsedMs := float64(c.now().Sub(start).Microseconds()) / 1000.0

	// 3. Решение по политикам меток
	types := domain.DistinctTypes(res.Entities)
	action := c.pdp.Decide(types)

	resp := &DetectResponse{
		HasPII:    res.HasPII,
		Reason:    Reason(res.HasPII, res.Entities),
		Details:   Details(res.HasPII, res.Entities),
		Entities:  res.Entities,
		Action:    action,
		RequestID: info.RequestID,
	}

	// 4. Журнал и события
	rec := c.buildRecord(trimmed, res.Entities, resp, info, elapsedMs)
	if c.pdp.Toggles().LoggingEnabled && c.recorder != nil {
		if !c.recorder.Record(rec) {
			c.metrics.ErrorTotal.WithLabelValues("record_dropped").Inc()
		}
	}
	if err := c.events.Publish(ctx, events.FromRecord(rec)); err != nil {
		c.metrics.ErrorTotal.WithLabelValues("event_publish").Inc()
		c.logger.Warn("detection event publish failed", zap.String("id", rec.ID), zap.Error(err))
	}

	outcome = "ok"
	actionLabel := action
	if actionLabel == "" {
		actionLabel = "NONE"
	}
	c.metrics.TotalRequests.WithLabelValues(actionLabel).Inc()

	c.logger.Info("pii detection completed",
		zap.String("request_id", info.RequestID),
		zap.Int("text_length", utf8.RuneCountInString(trimmed)),
		zap.Bool("has_pii", res.HasPII),
		zap.Int("entities", len(res.Entities)),
		zap.String("action", action),
		zap.Float64("processing_time_ms", elapsedMs))
	return resp, nil
}

func (c *DetectionCore) buildRecord(text string, entities []domain.Entity, resp *DetectResponse, info RequestInfo, elapsedMs float64) domain.DetectionRecord {
	stored, storedEntities := text, entities
	details := resp.Details
	if c.pdp.Toggles().PseudonymizeEnabled {
		stored, storedEntities = Pseudonymize(text, entities)
		details = Details(resp.HasPII, storedEntities)
	}

	extra := map[string]any{}
	if info.Path != "" {
		extra["path"] = info.Path
	}
	if info.Username != "" {
		extra["username"] = info.Username
	}

	return domain.NewDetectionRecord(domain.RecordInput{
		Timestamp:        c.now().UTC(),
		ClientIP:         NormalizeIP(info.ClientIP),
		UserAgent:        info.UserAgent,
		RequestID:        info.RequestID,
		InputText:        stored,
		Entities:         storedEntities,
		ProcessingTimeMs: &elapsedMs,
		Reason:           resp.Reason,
		Details:          details,
		Metadata:         domain.Metadata{Action: resp.Action, Extra: extra},
	})
}

// Reason - краткая причина решения для клиента и журнала.
func Reason(hasPII bool, entities []domain.Entity) string {
	if !hasPII || len(entities) == 0 {
		return "개인정보가 탐지되지 않았습니다"
	}
	if len(entities) == 1 {
		return fmt.Sprintf("개인정보 1개 탐지됨 (%s)", entities[0].Type)
	}
	return fmt.Sprintf("개인정보 %d개 탐지됨 (%s)", len(entities), strings.Join(domain.DistinctTypes(entities), ", "))
}

// Details перечисляет найденные значения с уверенностью модели.
func Details(hasPII bool, entities []domain.Entity) string {
	if !hasPII || len(entities) == 0 {
		return "입력된 텍스트에서 개인정보가 발견되지 않았습니다."
	}
	parts := make([]string, 0, len(entities))
	for _, e := range entities {
		parts = append(parts, fmt.Sprintf("%s '%s' (신뢰도: %.1f%%)", e.Type, e.Value, e.Confidence*100))
	}
	return "다음 개인정보가 탐지되었습니다: " + strings.Join(parts, ", ")
}

// NormalizeIP возвращает корректный IP или 0.0.0.0: поле client_ip в индексе имеет тип ip.
func NormalizeIP(raw string) string {
	raw = strings.TrimSpace(raw)
	if host, _, err := net.SplitHostPort(raw); err == nil {
		raw = host
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return unknownClientIP
	}
	return addr.Unmap().WithZone("").String()
}

type detectRequest struct {
	Text string `json:"text"`
}

type errorBody struct {
	Detail string `json:"detail"`
}

// HandleHTTPRequest - POST /api/v1/pii/detect
func (c *DetectionCore) HandleHTTPRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Detail: "only POST allowed"})
		return
	}

	var req detectRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "invalid request body"})
		return
	}

	info := RequestInfo{
		ClientIP:  r.RemoteAddr,
		UserAgent: r.UserAgent(),
		RequestID: RequestIDFrom(r.Context()),
		Path:      r.URL.Path,
	}
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		info.Username = claims.Subject
	}

	resp, err := c.Detect(r.Context(), req.Text, info)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (c *DetectionCore) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: err.Error()})
	case errors.Is(err, ErrMaintenance):
		w.Header().Set("Retry-After", "60")
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Detail: ErrMaintenance.Error()})
	case errors.Is(err, ErrDetectorUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Detail: ErrDetectorUnavailable.Error()})
	default:
		c.logger.Error("pii detection failed",
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Detail: "pii detection failed"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
