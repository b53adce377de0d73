package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "dlp"
)

// Ключи блокировок
const (
	RedisKeyLockRetention = RedisNamespace + ":lock:retention"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanPolicyUpdate - консоль сообщает шлюзам, что метки, переключатели
	// или системные настройки изменились и кэш нужно перечитать.
	RedisChanPolicyUpdate = RedisNamespace + ":detection:policy-update"
)

// Сигналы, публикуемые в RedisChanPolicyUpdate
const (
	SignalLabels   = "labels"
	SignalToggles  = "toggles"
	SignalSettings = "settings"
)

// GetLockKey генерирует ключ распределённой блокировки для ресурса.
func GetLockKey(resource string) string {
	return fmt.Sprintf("%s:lock:%s", RedisNamespace, resource)
}
