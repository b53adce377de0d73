package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDetectionRecord_DerivesConsistentFields(t *testing.T) {
	rec := NewDetectionRecord(RecordInput{
		ClientIP:  "10.0.0.1",
		InputText: "홍길동 010-1234-5678",
		Entities: []Entity{
			{Type: "PHONE", Value: "010-1234-5678", Confidence: 0.97},
			{Type: "NAME", Value: "홍길동", Confidence: 0.91},
			{Type: "PHONE", Value: "010-0000-0000", Confidence: 0.88},
		},
	})

	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.Timestamp.IsZero())
	assert.True(t, rec.HasPII)
	assert.Equal(t, 3, rec.EntityCount)
	assert.Equal(t, []string{"NAME", "PHONE"}, rec.EntityTypes)
	assert.Equal(t, LevelWarning, rec.Level)
	assert.Equal(t, 17, rec.TextLength)
	require.NotNil(t, rec.ModelConfidence)
	assert.InDelta(t, 0.97, *rec.ModelConfidence, 1e-9)
}

func TestNewDetectionRecord_NoEntities(t *testing.T) {
	ts := time.Date(2024, 1, 15, 15, 0, 0, 0, time.UTC)
	rec := NewDetectionRecord(RecordInput{ID: "fixed", Timestamp: ts, InputText: "안녕하세요"})

	assert.Equal(t, "fixed", rec.ID)
	assert.Equal(t, ts, rec.Timestamp)
	assert.False(t, rec.HasPII)
	assert.Zero(t, rec.EntityCount)
	assert.Equal(t, []string{}, rec.EntityTypes)
	assert.Equal(t, []Entity{}, rec.DetectedEntities)
	assert.Equal(t, LevelInfo, rec.Level)
	assert.Nil(t, rec.ModelConfidence)
}

func TestNewDetectionRecord_ExplicitLevelKept(t *testing.T) {
	rec := NewDetectionRecord(RecordInput{Level: LevelError})
	assert.Equal(t, LevelError, rec.Level)

	rec = NewDetectionRecord(RecordInput{Level: LevelDebug, InputText: "안녕하세요"})
	assert.Equal(t, LevelDebug, rec.Level)
}

func TestNewDetectionRecord_PIIForcesWarning(t *testing.T) {
	phone := []Entity{{Type: "PHONE", Value: "010-1234-5678", Confidence: 0.97}}

	for _, lvl := range []LogLevel{LevelInfo, LevelDebug, LevelWarning, "bogus"} {
		rec := NewDetectionRecord(RecordInput{Level: lvl, Entities: phone})
		assert.Equal(t, LevelWarning, rec.Level, lvl)
	}

	rec := NewDetectionRecord(RecordInput{Level: LevelError, Entities: phone})
	assert.Equal(t, LevelError, rec.Level)
}

func TestMetadata_KeepsUnknownKeys(t *testing.T) {
	var m Metadata
	require.NoError(t, json.Unmarshal([]byte(`{"action":"BLOCK","project":"crm","username":"admin","path":"/x"}`), &m))

	assert.Equal(t, "BLOCK", m.Action)
	assert.Equal(t, "crm", m.Project)
	assert.Empty(t, m.Service)
	assert.Equal(t, "admin", m.Extra["username"])

	out, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"BLOCK","project":"crm","username":"admin","path":"/x"}`, string(out))
}

func TestMetadata_NonStringKnownKeyGoesToExtra(t *testing.T) {
	var m Metadata
	require.NoError(t, json.Unmarshal([]byte(`{"service":42}`), &m))
	assert.Empty(t, m.Service)
	assert.Equal(t, float64(42), m.Extra["service"])
}

func TestDetectionRate(t *testing.T) {
	assert.Equal(t, 0.0, DetectionRate(0, 0))
	assert.Equal(t, 0.0, DetectionRate(5, 0))
	assert.InDelta(t, 40.0, DetectionRate(40, 100), 1e-9)
}

func TestCoerceBool(t *testing.T) {
	cases := []struct {
		in       any
		fallback bool
		want     bool
	}{
		{nil, true, true},
		{true, false, true},
		{"yes", false, true},
		{" ON ", false, true},
		{"1", false, true},
		{"off", true, false},
		{float64(0), true, false},
		{float64(1), false, true},
		{[]any{}, true, true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CoerceBool(tc.in, tc.fallback), "input %#v", tc.in)
	}
}

func TestMergeSettings(t *testing.T) {
	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s := MergeSettings([]SettingValue{
		{Key: SettingDefaultTimezone, Value: "Asia/Seoul", UpdatedAt: ts},
		{Key: SettingDataRetentionDays, Value: float64(30), UpdatedAt: ts.Add(time.Hour)},
		{Key: SettingMaintenanceMode, Value: "true", UpdatedAt: ts},
		{Key: SettingLoggingEnabled, Value: false, UpdatedAt: ts.Add(48 * time.Hour)},
	})

	assert.Equal(t, "Asia/Seoul", s.DefaultTimezone)
	assert.Equal(t, 30, s.DataRetentionDays)
	assert.True(t, s.MaintenanceMode)
	assert.Nil(t, s.AlertEmail)
	require.NotNil(t, s.UpdatedAt)
	assert.Equal(t, ts.Add(time.Hour), *s.UpdatedAt)
}

func TestProjectUpdateValidate(t *testing.T) {
	neg := int64(-1)
	u := ProjectUpdate{BlockedCount: &neg}
	assert.ErrorIs(t, u.Validate(), ErrInvalidArgument)

	blank := "  "
	u = ProjectUpdate{Name: &blank}
	assert.ErrorIs(t, u.Validate(), ErrInvalidArgument)

	name := " billing "
	u = ProjectUpdate{Name: &name}
	require.NoError(t, u.Validate())
	assert.Equal(t, "billing", *u.Name)
}
