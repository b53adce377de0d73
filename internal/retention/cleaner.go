package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/dlp-guard/internal/domain"
	"github.com/xela07ax/dlp-guard/internal/infra"
	"go.uber.org/zap"
)

type SettingsReader interface {
	GetSettings(ctx context.Context, keys ...string) ([]domain.SettingValue, error)
}

type LogDeleter interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Locker - распределённая блокировка, чтобы очистку выполнял один инстанс консоли.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisLocker - блокировка через SetNX с TTL. Снимается по истечении TTL.
type RedisLocker struct {
	rdb *redis.Client
}

func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{rdb: rdb}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.rdb.SetNX(ctx, key, "processing", ttl).Result()
}

// Cleaner периодически удаляет записи журнала старше data_retention_days.
type Cleaner struct {
	settings SettingsReader
	logs     LogDeleter
	locker   Locker
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func NewCleaner(settings SettingsReader, logs LogDeleter, locker Locker, interval time.Duration, logger *zap.Logger) *Cleaner {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Cleaner{
		settings: settings,
		logs:     logs,
		locker:   locker,
		interval: interval,
		logger:   logger.Named("retention"),
		now:      time.Now,
	}
}

// Start блокирует до отмены ctx. Первый проход выполняется сразу.
func (c *Cleaner) Start(ctx context.Context) {
	c.logger.Info("retention cleaner started", zap.Duration("interval", c.interval))
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if _, err := c.RunOnce(ctx); err != nil && ctx.Err() == nil {
			c.logger.Error("retention pass failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			c.logger.Info("retention cleaner stopped")
			return
		case <-ticker.C:
		}
	}
}

func (c *Cleaner) lockTTL() time.Duration {
	return c.interval - c.interval/10
}

// RunOnce выполняет один проход. Возвращает число удалённых записей;
// 0 без ошибки, если блокировку держит другой инстанс.
func (c *Cleaner) RunOnce(ctx context.Context) (int64, error) {
	// Блокировка истекает раньше следующего тика, иначе тот же инстанс пропустит свой проход
	ok, err := c.locker.TryLock(ctx, infra.RedisKeyLockRetention, c.lockTTL())
	if err != nil {
		return 0, fmt.Errorf("retention: acquire lock: %w", err)
	}
	if !ok {
		c.logger.Debug("retention lock held by another instance")
		return 0, nil
	}

	rows, err := c.settings.GetSettings(ctx, domain.SettingDataRetentionDays)
	if err != nil {
		return 0, fmt.Errorf("retention: load settings: %w", err)
	}
	days := domain.MergeSettings(rows).DataRetentionDays

	cutoff := c.now().UTC().AddDate(0, 0, -days)
	deleted, err := c.logs.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("retention: delete: %w", err)
	}

	c.logger.Info("retention pass completed",
		zap.Int("retention_days", days),
		zap.Time("cutoff", cutoff),
		zap.Int64("deleted", deleted))
	return deleted, nil
}
