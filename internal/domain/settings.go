package domain

import (
	"net/mail"
	"strings"
	"time"
)

const (
	SettingDefaultTimezone   = "default_timezone"
	SettingDataRetentionDays = "data_retention_days"
	SettingMaintenanceMode   = "maintenance_mode"
	SettingAlertEmail        = "alert_email"
)

// SystemSettings - сводное представление строк system_settings.
type SystemSettings struct {
	DefaultTimezone   string     `json:"default_timezone"`
	DataRetentionDays int        `json:"data_retention_days"`
	MaintenanceMode   bool       `json:"maintenance_mode"`
	AlertEmail        *string    `json:"alert_email"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`
}

func DefaultSystemSettings() SystemSettings {
	return SystemSettings{
		DefaultTimezone:   "UTC",
		DataRetentionDays: 90,
	}
}

// SettingValue - сырое значение из JSONB-колонки.
type SettingValue struct {
	Key       string
	Value     any
	UpdatedAt time.Time
}

// MergeSettings накладывает сохранённые значения на значения по умолчанию.
func MergeSettings(rows []SettingValue) SystemSettings {
	s := DefaultSystemSettings()
	for _, row := range rows {
		switch row.Key {
		case SettingDefaultTimezone:
			if tz, ok := row.Value.(string); ok && tz != "" {
				s.DefaultTimezone = tz
			}
		case SettingDataRetentionDays:
			if n, ok := row.Value.(float64); ok && n >= 1 {
				s.DataRetentionDays = int(n)
			}
		case SettingMaintenanceMode:
			s.MaintenanceMode = CoerceBool(row.Value, false)
		case SettingAlertEmail:
			if email, ok := row.Value.(string); ok && email != "" {
				s.AlertEmail = &email
			}
		default:
			continue
		}
		if s.UpdatedAt == nil || row.UpdatedAt.After(*s.UpdatedAt) {
			ts := row.UpdatedAt
			s.UpdatedAt = &ts
		}
	}
	return s
}

// SystemSettingsUpdate - частичное обновление. Пустая строка в AlertEmail сбрасывает адрес.
type SystemSettingsUpdate struct {
	DefaultTimezone   *string `json:"default_timezone"`
	DataRetentionDays *int    `json:"data_retention_days"`
	MaintenanceMode   *bool   `json:"maintenance_mode"`
	AlertEmail        *string `json:"alert_email"`
}

// Validate проверяет всё, кроме часового пояса: его разбирает вызывающий слой.
func (u *SystemSettingsUpdate) Validate() error {
	if u.DataRetentionDays != nil && *u.DataRetentionDays < 1 {
		return InvalidArgument("data_retention_days must be >= 1")
	}
	if u.AlertEmail != nil {
		email := strings.TrimSpace(*u.AlertEmail)
		u.AlertEmail = &email
		if email != "" {
			if _, err := mail.ParseAddress(email); err != nil {
				return InvalidArgument("alert_email is not a valid address")
			}
		}
	}
	return nil
}

// Values раскладывает обновление в пары ключ-значение для upsert.
func (u SystemSettingsUpdate) Values() map[string]any {
	out := make(map[string]any, 4)
	if u.DefaultTimezone != nil {
		out[SettingDefaultTimezone] = *u.DefaultTimezone
	}
	if u.DataRetentionDays != nil {
		out[SettingDataRetentionDays] = *u.DataRetentionDays
	}
	if u.MaintenanceMode != nil {
		out[SettingMaintenanceMode] = *u.MaintenanceMode
	}
	if u.AlertEmail != nil {
		if *u.AlertEmail == "" {
			out[SettingAlertEmail] = nil
		} else {
			out[SettingAlertEmail] = *u.AlertEmail
		}
	}
	return out
}
