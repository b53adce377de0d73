package domain

import "time"

// DashboardSummary - вычисляемое представление для админки, нигде не хранится.
// Все поля всегда присутствуют в ответе: пустые фасеты отдаются как {} или [].
type DashboardSummary struct {
	Overview             Overview                    `json:"overview"`
	RealTime             RealTimeStats               `json:"real_time"`
	QuarterlyStats       []QuarterlyStat             `json:"quarterly_stats"`
	TopIPs               []IPCount                   `json:"top_ips"`
	LabelStats           map[string]int64            `json:"label_stats"`
	LabelActionBreakdown map[string]map[string]int64 `json:"label_action_breakdown"`
	LogStatusStats       map[string]int64            `json:"log_status_stats"`
	ProjectStats         []ProjectCount              `json:"project_stats"`
	AIServiceStats       map[string]int64            `json:"ai_service_stats"`
	Detections           []DetectionRecord           `json:"detections"`
	Timezone             string                      `json:"timezone"`
	RangeDays            int                         `json:"range_days"`
}

type Overview struct {
	TotalLogs           int64   `json:"total_logs"`
	PIIDetectedCount    int64   `json:"pii_detected_count"`
	PIIDetectionRate    float64 `json:"pii_detection_rate"`
	AvgProcessingTimeMs float64 `json:"avg_processing_time_ms"`
}

type RealTimeStats struct {
	HourlyCounts  map[string]int64 `json:"hourly_counts"`
	TotalLastHour int64            `json:"total_last_hour"`
	Timezone      string           `json:"timezone"`
	LastUpdated   time.Time        `json:"last_updated"`
}

type QuarterlyStat struct {
	Label            string `json:"label"` // 2024-Q1
	TotalCount       int64  `json:"total_count"`
	PIIDetectedCount int64  `json:"pii_detected_count"`
}

type IPCount struct {
	IP    string `json:"ip"`
	Count int64  `json:"count"`
}

type ProjectCount struct {
	Project string `json:"project"`
	Count   int64  `json:"count"`
}

// DetectionRate возвращает долю позитивных срабатываний в процентах; 0 при пустом окне.
func DetectionRate(positives, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(positives) / float64(total) * 100
}
