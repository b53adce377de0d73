package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/xela07ax/dlp-guard/internal/domain"
	"go.uber.org/zap"
)

// DetectionEvent - облегчённое уведомление о детекции. Исходный текст в событие не попадает.
type DetectionEvent struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Action      string    `json:"action,omitempty"`
	HasPII      bool      `json:"has_pii"`
	EntityTypes []string  `json:"entity_types"`
	EntityCount int       `json:"entity_count"`
	ClientIP    string    `json:"client_ip"`
	RequestID   string    `json:"request_id,omitempty"`
}

func FromRecord(rec domain.DetectionRecord) DetectionEvent {
	return DetectionEvent{
		ID:          rec.ID,
		Timestamp:   rec.Timestamp,
		Action:      rec.Metadata.Action,
		HasPII:      rec.HasPII,
		EntityTypes: rec.EntityTypes,
		EntityCount: rec.EntityCount,
		ClientIP:    rec.ClientIP,
		RequestID:   rec.RequestID,
	}
}

type Publisher interface {
	Publish(ctx context.Context, ev DetectionEvent) error
}

// Nop используется, когда NATS не настроен.
type Nop struct{}

func (Nop) Publish(context.Context, DetectionEvent) error { return nil }

// conn - часть *nats.Conn, которой пользуется публикатор.
type conn interface {
	Publish(subj string, data []byte) error
}

type NATSPublisher struct {
	nc     conn
	prefix string
	logger *zap.Logger
}

// Connect подключается к NATS с бесконечным переподключением.
func Connect(url string, timeout time.Duration, logger *zap.Logger) (*nats.Conn, error) {
	logger = logger.Named("nats")
	nc, err := nats.Connect(url,
		nats.Name("dlp-gateway"),
		nats.Timeout(timeout),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

func NewNATSPublisher(nc conn, prefix string, logger *zap.Logger) *NATSPublisher {
	if prefix == "" {
		prefix = "dlp.detections"
	}
	return &NATSPublisher{nc: nc, prefix: prefix, logger: logger.Named("events")}
}

// Subject: <prefix>.block | <prefix>.allow | <prefix>.clean
func (p *NATSPublisher) Subject(ev DetectionEvent) string {
	action := strings.ToLower(ev.Action)
	if action == "" {
		action = "clean"
	}
	return p.prefix + "." + action
}

func (p *NATSPublisher) Publish(ctx context.Context, ev DetectionEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: marshal: %w", err)
	}
	if err := p.nc.Publish(p.Subject(ev), data); err != nil {
		return fmt.Errorf("events: publish: %w", err)
	}
	return nil
}
