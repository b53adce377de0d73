package detector

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/xela07ax/dlp-guard/internal/domain"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// DetectMethod - полное имя метода сервиса модели.
// Запрос и ответ передаются как google.protobuf.Struct.
const DetectMethod = "/dlp.detector.v1.PiiDetector/Detect"

const defaultThrottleDelay = time.Second

type GRPCDetector struct {
	conn    grpc.ClientConnInterface
	model   string
	timeout time.Duration
}

// NewGRPCDetector создает экземпляр адаптера
func NewGRPCDetector(conn grpc.ClientConnInterface, model string, timeout time.Duration) *GRPCDetector {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &GRPCDetector{conn: conn, model: model, timeout: timeout}
}

func (d *GRPCDetector) Detect(ctx context.Context, text string) (*domain.DetectionResult, error) {
	// 1. Запрос в Protobuf Struct
	req, err := structpb.NewStruct(map[string]any{
		"text":  text,
		"model": d.model,
	})
	if err != nil {
		return nil, fmt.Errorf("detector: build request: %w", err)
	}

	// 2. Защитный таймаут на уровне вызова
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var trailer metadata.MD
	resp := &structpb.Struct{}
	if err := d.conn.Invoke(ctx, DetectMethod, req, resp, grpc.Trailer(&trailer)); err != nil {
		if status.Code(err) == codes.ResourceExhausted {
			return nil, &ThrottleError{RetryAfter: retryAfter(trailer), Cause: err}
		}
		return nil, fmt.Errorf("detector call failed: %w", err)
	}

	return decodeResult(resp)
}

// retryAfter читает задержку в секундах из trailer retry-after.
func retryAfter(md metadata.MD) time.Duration {
	if v := md.Get("retry-after"); len(v) > 0 {
		if secs, err := strconv.ParseFloat(v[0], 64); err == nil && secs > 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return defaultThrottleDelay
}

// decodeResult терпим к пропущенным полям: тип по умолчанию UNKNOWN, уверенность 0.
func decodeResult(resp *structpb.Struct) (*domain.DetectionResult, error) {
	fields := resp.GetFields()
	res := &domain.DetectionResult{
		HasPII:   fields["has_pii"].GetBoolValue(),
		Entities: []domain.Entity{},
	}

	for i, v := range fields["entities"].GetListValue().GetValues() {
		ef := v.GetStructValue().GetFields()
		if ef == nil {
			return nil, fmt.Errorf("detector: entity %d is not an object", i)
		}
		e := domain.Entity{
			Type:       ef["type"].GetStringValue(),
			Value:      ef["value"].GetStringValue(),
			Confidence: ef["confidence"].GetNumberValue(),
		}
		if e.Type == "" {
			e.Type = "UNKNOWN"
		}
		res.Entities = append(res.Entities, e)
	}
	return res, nil
}
