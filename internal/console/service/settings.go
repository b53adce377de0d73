package service

import (
	"context"

	"github.com/xela07ax/dlp-guard/internal/dashboard"
	"github.com/xela07ax/dlp-guard/internal/domain"
	"github.com/xela07ax/dlp-guard/internal/infra"
	"go.uber.org/zap"
)

// SettingsRepository - политики меток и key-value настройки.
type SettingsRepository interface {
	ListLabelPolicies(ctx context.Context) ([]domain.LabelPolicy, error)
	UpsertLabelPolicy(ctx context.Context, label string, in domain.LabelPolicyUpdate) (*domain.LabelPolicy, error)
	GetSettings(ctx context.Context, keys ...string) ([]domain.SettingValue, error)
	UpsertSettings(ctx context.Context, values map[string]any) error
}

// Notifier рассылает шлюзам сигнал перечитать настройки.
type Notifier interface {
	Notify(ctx context.Context, signal string) error
}

var systemSettingKeys = []string{
	domain.SettingDefaultTimezone,
	domain.SettingDataRetentionDays,
	domain.SettingMaintenanceMode,
	domain.SettingAlertEmail,
}

type SettingsService struct {
	repo     SettingsRepository
	notifier Notifier
	logger   *zap.Logger
}

func NewSettingsService(repo SettingsRepository, notifier Notifier, logger *zap.Logger) *SettingsService {
	return &SettingsService{
		repo:     repo,
		notifier: notifier,
		logger:   logger.Named("settings-service"),
	}
}

func (s *SettingsService) ListLabels(ctx context.Context) ([]domain.LabelPolicy, error) {
	return s.repo.ListLabelPolicies(ctx)
}

// UpsertLabel сохраняет политику метки и уведомляет шлюзы.
func (s *SettingsService) UpsertLabel(ctx context.Context, label string, in domain.LabelPolicyUpdate) (*domain.LabelPolicy, error) {
	label, err := domain.NormalizeLabel(label)
	if err != nil {
		return nil, err
	}
	p, err := s.repo.UpsertLabelPolicy(ctx, label, in)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, infra.SignalLabels)
	return p, nil
}

func (s *SettingsService) Toggles(ctx context.Context) (domain.DetectionToggles, error) {
	rows, err := s.repo.GetSettings(ctx, domain.SettingLoggingEnabled, domain.SettingPseudonymizeEnabled)
	if err != nil {
		return domain.DetectionToggles{}, err
	}
	return domain.MergeToggles(rows), nil
}

func (s *SettingsService) UpdateToggles(ctx context.Context, in domain.DetectionTogglesUpdate) (domain.DetectionToggles, error) {
	values := map[string]any{}
	if in.LoggingEnabled != nil {
		values[domain.SettingLoggingEnabled] = *in.LoggingEnabled
	}
	if in.PseudonymizeEnabled != nil {
		values[domain.SettingPseudonymizeEnabled] = *in.PseudonymizeEnabled
	}
	if err := s.repo.UpsertSettings(ctx, values); err != nil {
		return domain.DetectionToggles{}, err
	}
	if len(values) > 0 {
		s.notify(ctx, infra.SignalToggles)
	}
	return s.Toggles(ctx)
}

func (s *SettingsService) System(ctx context.Context) (domain.SystemSettings, error) {
	rows, err := s.repo.GetSettings(ctx, systemSettingKeys...)
	if err != nil {
		return domain.SystemSettings{}, err
	}
	return domain.MergeSettings(rows), nil
}

// UpdateSystem проверяет и сохраняет частичное обновление системных настроек.
func (s *SettingsService) UpdateSystem(ctx context.Context, in domain.SystemSettingsUpdate) (domain.SystemSettings, error) {
	if err := in.Validate(); err != nil {
		return domain.SystemSettings{}, err
	}
	if in.DefaultTimezone != nil {
		if _, err := dashboard.LoadTimezone(*in.DefaultTimezone); err != nil {
			return domain.SystemSettings{}, err
		}
	}

	values := in.Values()
	if err := s.repo.UpsertSettings(ctx, values); err != nil {
		return domain.SystemSettings{}, err
	}
	if len(values) > 0 {
		s.notify(ctx, infra.SignalSettings)
	}
	return s.System(ctx)
}

// notify не роняет запрос: изменение уже сохранено, шлюзы подхватят его при следующем refresh.
func (s *SettingsService) notify(ctx context.Context, signal string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, signal); err != nil {
		s.logger.Warn("runtime signal delivery failed", zap.String("signal", signal), zap.Error(err))
	}
}
