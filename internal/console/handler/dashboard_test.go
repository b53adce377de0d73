package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/dlp-guard/internal/dashboard"
	"github.com/xela07ax/dlp-guard/internal/domain"
	"github.com/xela07ax/dlp-guard/internal/logstore"
	"go.uber.org/zap"
)

var errRefused = errors.New("dial tcp 127.0.0.1:9200: connect: connection refused")

// downStore - хранилище логов, до которого нельзя достучаться.
type downStore struct{ calls int }

func (s *downStore) Aggregate(context.Context, logstore.Filter, map[string]logstore.Agg) (*logstore.AggResult, error) {
	s.calls++
	return nil, errRefused
}

func (s *downStore) Recent(context.Context, int, time.Time) ([]domain.DetectionRecord, error) {
	s.calls++
	return nil, errRefused
}

func newDashboardHandler(store *downStore) *DashboardHandler {
	m := dashboard.NewMetrics(prometheus.NewRegistry())
	agg := dashboard.NewAggregator(store, time.Second, 1, m, zap.NewNop())
	recent := dashboard.NewRecentFetcher(store, time.Second, m, zap.NewNop())
	return NewDashboardHandler(dashboard.NewService(agg, recent, m, zap.NewNop()), zap.NewNop())
}

func TestDashboardSummary_StoreDownStillOK(t *testing.T) {
	h := newDashboardHandler(&downStore{})

	rec := httptest.NewRecorder()
	h.Summary(rec, httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/summary?tz=Asia/Seoul", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, "Asia/Seoul", body["timezone"])
	assert.EqualValues(t, 90, body["range_days"])
	for _, key := range []string{"quarterly_stats", "top_ips", "project_stats", "detections"} {
		assert.Equal(t, []any{}, body[key], key)
	}
	for _, key := range []string{"label_stats", "label_action_breakdown", "log_status_stats", "ai_service_stats"} {
		assert.Equal(t, map[string]any{}, body[key], key)
	}
}

func TestDashboardSummary_BadRequest(t *testing.T) {
	for name, query := range map[string]string{
		"unknown timezone":  "tz=Mars/Olympus",
		"days zero":         "days=0",
		"days too large":    "days=366",
		"days not a number": "days=ninety",
		"limit too large":   "recent_limit=101",
	} {
		t.Run(name, func(t *testing.T) {
			store := &downStore{}
			rec := httptest.NewRecorder()
			newDashboardHandler(store).Summary(rec, httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/summary?"+query, nil))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"detail"`)
			assert.Zero(t, store.calls)
		})
	}
}

type failingSummary struct{}

func (failingSummary) Summary(context.Context, int, string, int) (*domain.DashboardSummary, error) {
	return nil, errors.New("boom: secret connection string")
}

func TestDashboardSummary_InternalErrorIsOpaque(t *testing.T) {
	rec := httptest.NewRecorder()
	NewDashboardHandler(failingSummary{}, zap.NewNop()).Summary(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"detail":"internal server error"}`, rec.Body.String())
}
