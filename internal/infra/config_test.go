package infra

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9200", cfg.Elastic.URL)
	assert.Equal(t, "dlp-logs", cfg.Elastic.IndexName())
	assert.Equal(t, 5*time.Second, cfg.Elastic.QueryTimeout)
	assert.InDelta(t, 0.59, cfg.Detector.Threshold, 1e-9)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, 3*time.Second, cfg.Dashboard.FacetTimeout)
	assert.Equal(t, "dlp.detections", cfg.NATS.SubjectPrefix)
	assert.Equal(t, ":8000", cfg.Server.Addr())
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("ELASTIC_URL", "http://es.internal:9200")
	t.Setenv("ELASTIC_INDEX_PREFIX", "audit")
	t.Setenv("DASHBOARD_FACET_TIMEOUT", "750ms")
	t.Setenv("AUTH_PUBLIC_KEY_DATA", "-----BEGIN PUBLIC KEY-----")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "http://es.internal:9200", cfg.Elastic.URL)
	assert.Equal(t, "audit-logs", cfg.Elastic.IndexName())
	assert.Equal(t, 750*time.Millisecond, cfg.Dashboard.FacetTimeout)
	assert.Equal(t, []byte("-----BEGIN PUBLIC KEY-----"), cfg.Auth.PublicKey)
}

func TestNewLogger_RejectsUnknownLevel(t *testing.T) {
	_, err := NewLogger(LoggerConfig{Level: "loud", Format: "json"})
	assert.Error(t, err)

	logger, err := NewLogger(LoggerConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, logger)
}
