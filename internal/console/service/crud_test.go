package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/dlp-guard/internal/domain"
	"github.com/xela07ax/dlp-guard/internal/infra"
	"go.uber.org/zap"
)

func ptr[T any](v T) *T { return &v }

func TestProjectLifecycle(t *testing.T) {
	svc := NewProjectService(newFakeRepo(), zap.NewNop())
	ctx := context.Background()

	p, err := svc.Create(ctx, domain.ProjectCreate{Name: "  chatbot  ", Owner: ptr("kim")})
	require.NoError(t, err)
	assert.Equal(t, "chatbot", p.Name)
	assert.Equal(t, domain.ProjectActive, p.Status)

	_, err = svc.Create(ctx, domain.ProjectCreate{Name: "chatbot"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = svc.Create(ctx, domain.ProjectCreate{Name: "   "})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	updated, err := svc.Update(ctx, p.ID, domain.ProjectUpdate{
		Status:       ptr(domain.ProjectArchived),
		BlockedCount: ptr(int64(3)),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ProjectArchived, updated.Status)
	assert.Equal(t, int64(3), updated.BlockedCount)
	assert.Equal(t, "kim", *updated.Owner)

	_, err = svc.Update(ctx, p.ID, domain.ProjectUpdate{TotalDetections: ptr(int64(-1))})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	other, err := svc.Create(ctx, domain.ProjectCreate{Name: "crm"})
	require.NoError(t, err)
	_, err = svc.Update(ctx, other.ID, domain.ProjectUpdate{Name: ptr("chatbot")})
	assert.ErrorIs(t, err, domain.ErrConflict)

	require.NoError(t, svc.Delete(ctx, p.ID))
	assert.ErrorIs(t, svc.Delete(ctx, p.ID), domain.ErrNotFound)
	_, err = svc.Get(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRuleUpdate(t *testing.T) {
	repo := newFakeRepo()
	repo.rules[1] = domain.DetectionRule{ID: 1, Name: "phone", IsActive: true}
	svc := NewRuleService(repo)

	r, err := svc.Update(context.Background(), 1, domain.DetectionRuleUpdate{IsActive: ptr(false)})
	require.NoError(t, err)
	assert.False(t, r.IsActive)

	_, err = svc.Update(context.Background(), 1, domain.DetectionRuleUpdate{})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = svc.Update(context.Background(), 99, domain.DetectionRuleUpdate{IsActive: ptr(true)})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpsertLabel_NormalizesAndNotifies(t *testing.T) {
	repo := newFakeRepo()
	n := &fakeNotifier{}
	svc := NewSettingsService(repo, n, zap.NewNop())

	p, err := svc.UpsertLabel(context.Background(), " phone ", domain.LabelPolicyUpdate{Block: false, UpdatedBy: ptr("admin")})
	require.NoError(t, err)
	assert.Equal(t, "PHONE", p.Label)
	assert.False(t, p.Block)
	assert.Equal(t, []string{infra.SignalLabels}, n.signals)

	_, err = svc.UpsertLabel(context.Background(), "  ", domain.LabelPolicyUpdate{})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	labels, err := svc.ListLabels(context.Background())
	require.NoError(t, err)
	assert.Len(t, labels, 1)
}

func TestToggles_DefaultsAndCoercion(t *testing.T) {
	repo := newFakeRepo()
	svc := NewSettingsService(repo, &fakeNotifier{}, zap.NewNop())

	got, err := svc.Toggles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultDetectionToggles(), got)

	repo.settings[domain.SettingPseudonymizeEnabled] = domain.SettingValue{Key: domain.SettingPseudonymizeEnabled, Value: "Yes"}
	got, err = svc.Toggles(context.Background())
	require.NoError(t, err)
	assert.True(t, got.PseudonymizeEnabled)

	got, err = svc.UpdateToggles(context.Background(), domain.DetectionTogglesUpdate{LoggingEnabled: ptr(false)})
	require.NoError(t, err)
	assert.False(t, got.LoggingEnabled)
	assert.True(t, got.PseudonymizeEnabled)
}

func TestUpdateSystem(t *testing.T) {
	repo := newFakeRepo()
	n := &fakeNotifier{}
	svc := NewSettingsService(repo, n, zap.NewNop())
	ctx := context.Background()

	got, err := svc.System(ctx)
	require.NoError(t, err)
	assert.Equal(t, "UTC", got.DefaultTimezone)
	assert.Equal(t, 90, got.DataRetentionDays)

	got, err = svc.UpdateSystem(ctx, domain.SystemSettingsUpdate{
		DefaultTimezone:   ptr("Asia/Seoul"),
		DataRetentionDays: ptr(30),
		AlertEmail:        ptr("sec@example.com"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Asia/Seoul", got.DefaultTimezone)
	assert.Equal(t, 30, got.DataRetentionDays)
	require.NotNil(t, got.AlertEmail)
	assert.Equal(t, "sec@example.com", *got.AlertEmail)
	assert.Equal(t, []string{infra.SignalSettings}, n.signals)

	got, err = svc.UpdateSystem(ctx, domain.SystemSettingsUpdate{AlertEmail: ptr("")})
	require.NoError(t, err)
	assert.Nil(t, got.AlertEmail)

	_, err = svc.UpdateSystem(ctx, domain.SystemSettingsUpdate{DefaultTimezone: ptr("Nowhere/City")})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = svc.UpdateSystem(ctx, domain.SystemSettingsUpdate{DataRetentionDays: ptr(0)})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestSettings_NotifyFailureDoesNotFailWrite(t *testing.T) {
	svc := NewSettingsService(newFakeRepo(), &fakeNotifier{err: errDown}, zap.NewNop())

	got, err := svc.UpdateSystem(context.Background(), domain.SystemSettingsUpdate{MaintenanceMode: ptr(true)})
	require.NoError(t, err)
	assert.True(t, got.MaintenanceMode)
}

func TestSettings_RepositoryErrorPropagates(t *testing.T) {
	repo := newFakeRepo()
	repo.err = errDown
	svc := NewSettingsService(repo, &fakeNotifier{}, zap.NewNop())

	_, err := svc.UpdateSystem(context.Background(), domain.SystemSettingsUpdate{MaintenanceMode: ptr(true)})
	assert.ErrorIs(t, err, errDown)
}
