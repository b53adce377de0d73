package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/dlp-guard/internal/domain"
	"go.uber.org/zap"
)

type captureConn struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (c *captureConn) Publish(subj string, data []byte) error {
	c.subjects = append(c.subjects, subj)
	c.payloads = append(c.payloads, data)
	return c.err
}

func TestNATSPublisher_SubjectsAndPayload(t *testing.T) {
	nc := &captureConn{}
	p := NewNATSPublisher(nc, "", zap.NewNop())

	rec := domain.NewDetectionRecord(domain.RecordInput{
		InputText: "010-1234-5678로 연락주세요",
		ClientIP:  "10.0.0.1",
		Entities:  []domain.Entity{{Type: "PHONE", Value: "010-1234-5678", Confidence: 0.99}},
		Metadata:  domain.Metadata{Action: domain.ActionBlock},
	})
	require.NoError(t, p.Publish(context.Background(), FromRecord(rec)))
	require.NoError(t, p.Publish(context.Background(), DetectionEvent{Action: domain.ActionAllow}))
	require.NoError(t, p.Publish(context.Background(), DetectionEvent{}))

	assert.Equal(t, []string{"dlp.detections.block", "dlp.detections.allow", "dlp.detections.clean"}, nc.subjects)

	var got map[string]any
	require.NoError(t, json.Unmarshal(nc.payloads[0], &got))
	assert.Equal(t, []any{"PHONE"}, got["entity_types"])
	assert.Equal(t, "10.0.0.1", got["client_ip"])
	assert.NotContains(t, string(nc.payloads[0]), "010-1234-5678")
}

func TestNATSPublisher_Errors(t *testing.T) {
	p := NewNATSPublisher(&captureConn{err: errors.New("nats: connection closed")}, "x", zap.NewNop())
	assert.Error(t, p.Publish(context.Background(), DetectionEvent{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, DetectionEvent{}), context.Canceled)

	assert.NoError(t, Nop{}.Publish(context.Background(), DetectionEvent{}))
}
