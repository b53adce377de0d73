package domain

import "time"

// DetectionRule - правило детекции для конкретного типа сущности.
type DetectionRule struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	EntityType  *string   `json:"entity_type"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type DetectionRuleUpdate struct {
	IsActive *bool `json:"is_active"`
}
