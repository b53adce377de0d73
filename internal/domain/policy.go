package domain

import (
	"strings"
	"time"
)

// LabelPolicy определяет, блокировать ли запрос, в котором найдена сущность данного типа.
type LabelPolicy struct {
	ID        int64     `json:"id"`
	Label     string    `json:"label"`
	Block     bool      `json:"block"`
	UpdatedBy *string   `json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"`
}

type LabelPolicyUpdate struct {
	Block     bool    `json:"block"`
	UpdatedBy *string `json:"updated_by"`
}

// NormalizeLabel приводит метку к каноничному виду (PHONE, EMAIL, ...).
func NormalizeLabel(label string) (string, error) {
	label = strings.ToUpper(strings.TrimSpace(label))
	if label == "" {
		return "", InvalidArgument("label is required")
	}
	if len(label) > 100 {
		return "", InvalidArgument("label must be at most 100 characters")
	}
	return label, nil
}

// Ключи переключателей в таблице system_settings
const (
	SettingLoggingEnabled      = "logging_enabled"
	SettingPseudonymizeEnabled = "pseudonymize_enabled"
)

// DetectionToggles - глобальные переключатели конвейера детекции.
type DetectionToggles struct {
	LoggingEnabled      bool `json:"logging_enabled"`
	PseudonymizeEnabled bool `json:"pseudonymize_enabled"`
}

func DefaultDetectionToggles() DetectionToggles {
	return DetectionToggles{LoggingEnabled: true, PseudonymizeEnabled: false}
}

// MergeToggles накладывает сохранённые значения переключателей на значения по умолчанию.
func MergeToggles(rows []SettingValue) DetectionToggles {
	t := DefaultDetectionToggles()
	for _, row := range rows {
		switch row.Key {
		case SettingLoggingEnabled:
			t.LoggingEnabled = CoerceBool(row.Value, t.LoggingEnabled)
		case SettingPseudonymizeEnabled:
			t.PseudonymizeEnabled = CoerceBool(row.Value, t.PseudonymizeEnabled)
		}
	}
	return t
}

type DetectionTogglesUpdate struct {
	LoggingEnabled      *bool `json:"logging_enabled"`
	PseudonymizeEnabled *bool `json:"pseudonymize_enabled"`
}

// CoerceBool трактует сохранённое значение настройки как флаг.
// Строки "1", "true", "yes", "on" (без учёта регистра) считаются истиной.
func CoerceBool(v any, fallback bool) bool {
	switch t := v.(type) {
	case nil:
		return fallback
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "yes", "on":
			return true
		}
		return false
	}
	return fallback
}
