package policy

import "github.com/xela07ax/dlp-guard/internal/domain"

// Enforcer - то, что шлюзу нужно знать о политиках на горячем пути.
type Enforcer interface {
	// Decide возвращает metadata.action для набора найденных типов
	// или пустую строку, если персональных данных нет.
	Decide(entityTypes []string) string
	Toggles() domain.DetectionToggles
	MaintenanceMode() bool
}

// Static - фиксированные политики для тестов и запуска без базы.
type Static struct {
	Labels      map[string]bool // label -> block
	Flags       domain.DetectionToggles
	Maintenance bool
}

func (s Static) Decide(entityTypes []string) string { return decide(s.Labels, entityTypes) }

func (s Static) Toggles() domain.DetectionToggles { return s.Flags }

func (s Static) MaintenanceMode() bool { return s.Maintenance }

// decide: BLOCK, если хотя бы у одной метки нет политики или политика блокирующая.
func decide(labels map[string]bool, entityTypes []string) string {
	if len(entityTypes) == 0 {
		return ""
	}
	for _, t := range entityTypes {
		block, ok := labels[t]
		if !ok || block {
			return domain.ActionBlock
		}
	}
	return domain.ActionAllow
}
