package domain

import (
	"strings"
	"time"
)

type ProjectStatus string

const (
	ProjectActive   ProjectStatus = "ACTIVE"
	ProjectInactive ProjectStatus = "INACTIVE"
	ProjectArchived ProjectStatus = "ARCHIVED"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectActive, ProjectInactive, ProjectArchived:
		return true
	}
	return false
}

// Project - проект, по имени которого группируется фасет project_stats (metadata.project).
type Project struct {
	ID              int64         `json:"id"`
	Name            string        `json:"name"`
	Description     *string       `json:"description"`
	Owner           *string       `json:"owner"`
	Status          ProjectStatus `json:"status"`
	TotalDetections int64         `json:"total_detections"`
	BlockedCount    int64         `json:"blocked_count"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

type ProjectCreate struct {
	Name        string        `json:"name"`
	Description *string       `json:"description"`
	Owner       *string       `json:"owner"`
	Status      ProjectStatus `json:"status"`
}

func (p *ProjectCreate) Validate() error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return InvalidArgument("name is required")
	}
	if len(p.Name) > 255 {
		return InvalidArgument("name must be at most 255 characters")
	}
	if p.Status == "" {
		p.Status = ProjectActive
	}
	if !p.Status.Valid() {
		return InvalidArgument("unknown project status %q", p.Status)
	}
	return nil
}

// ProjectUpdate - частичное обновление: nil означает «не менять».
type ProjectUpdate struct {
	Name            *string        `json:"name"`
	Description     *string        `json:"description"`
	Owner           *string        `json:"owner"`
	Status          *ProjectStatus `json:"status"`
	TotalDetections *int64         `json:"total_detections"`
	BlockedCount    *int64         `json:"blocked_count"`
}

func (p *ProjectUpdate) Validate() error {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return InvalidArgument("name must not be empty")
		}
		p.Name = &name
	}
	if p.Status != nil && !p.Status.Valid() {
		return InvalidArgument("unknown project status %q", *p.Status)
	}
	if p.TotalDetections != nil && *p.TotalDetections < 0 {
		return InvalidArgument("total_detections must be >= 0")
	}
	if p.BlockedCount != nil && *p.BlockedCount < 0 {
		return InvalidArgument("blocked_count must be >= 0")
	}
	return nil
}

// Apply накладывает изменения на проект.
func (p ProjectUpdate) Apply(dst *Project) {
	if p.Name != nil {
		dst.Name = *p.Name
	}
	if p.Description != nil {
		dst.Description = p.Description
	}
	if p.Owner != nil {
		dst.Owner = p.Owner
	}
	if p.Status != nil {
		dst.Status = *p.Status
	}
	if p.TotalDetections != nil {
		dst.TotalDetections = *p.TotalDetections
	}
	if p.BlockedCount != nil {
		dst.BlockedCount = *p.BlockedCount
	}
}
