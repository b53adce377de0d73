package policy

import (
	"context"
	"fmt"
	"sync"

	"github.com/xela07ax/dlp-guard/internal/domain"
	"go.uber.org/zap"
)

type PolicyRepository interface {
	ListLabelPolicies(ctx context.Context) ([]domain.LabelPolicy, error)
	GetSettings(ctx context.Context, keys ...string) ([]domain.SettingValue, error)
}

// MemoEnforcer - In-memory cache политик меток и переключателей.
// Синхронизируется с Postgres через Refresh, в рантайме шлюз обращается только к памяти.
type MemoEnforcer struct {
	mu          sync.RWMutex
	labels      map[string]bool // label -> block
	toggles     domain.DetectionToggles
	maintenance bool

	repo   PolicyRepository // Используется только для Refresh()
	logger *zap.Logger
}

func NewMemoEnforcer(repo PolicyRepository, logger *zap.Logger) *MemoEnforcer {
	return &MemoEnforcer{
		labels:  make(map[string]bool),
		toggles: domain.DefaultDetectionToggles(),
		repo:    repo,
		logger:  logger.Named("enforcer"),
	}
}

// Decide работает только с RAM. Это и есть "Hot Path".
func (e *MemoEnforcer) Decide(entityTypes []string) string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return decide(e.labels, entityTypes)
}

func (e *MemoEnforcer) Toggles() domain.DetectionToggles {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.toggles
}

func (e *MemoEnforcer) MaintenanceMode() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.maintenance
}

// Refresh выполняет «холодную загрузку» политик из PostgreSQL в память шлюза.
// При ошибке прежнее состояние сохраняется.
func (e *MemoEnforcer) Refresh(ctx context.Context) error {
	policies, err := e.repo.ListLabelPolicies(ctx)
	if err != nil {
		return fmt.Errorf("policy: load labels: %w", err)
	}
	rows, err := e.repo.GetSettings(ctx,
		domain.SettingLoggingEnabled,
		domain.SettingPseudonymizeEnabled,
		domain.SettingMaintenanceMode,
	)
	if err != nil {
		return fmt.Errorf("policy: load settings: %w", err)
	}

	labels := make(map[string]bool, len(policies))
	for _, p := range policies {
		labels[p.Label] = p.Block
	}
	toggles := domain.MergeToggles(rows)
	maintenance := domain.MergeSettings(rows).MaintenanceMode

	e.mu.Lock()
	e.labels = labels
	e.toggles = toggles
	e.maintenance = maintenance
	e.mu.Unlock()

	e.logger.Info("policy cache refreshed",
		zap.Int("labels", len(labels)),
		zap.Bool("logging", toggles.LoggingEnabled),
		zap.Bool("pseudonymize", toggles.PseudonymizeEnabled),
		zap.Bool("maintenance", maintenance))
	return nil
}
