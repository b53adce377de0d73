package domain

import "time"

// LogSearchRequest - параметры поиска по журналу детекций.
type LogSearchRequest struct {
	StartTime   *time.Time
	EndTime     *time.Time
	ClientIP    string
	HasPII      *bool
	EntityTypes []string
	Level       LogLevel
	SearchText  string
	Page        int
	Size        int
	SortBy      string
	SortOrder   string
}

const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100

	// MaxResultWindow - предел from+size у индекса журнала (index.max_result_window).
	MaxResultWindow = 10000
)

// Normalize проставляет значения по умолчанию и проверяет границы.
func (r *LogSearchRequest) Normalize() error {
	if r.Page == 0 {
		r.Page = DefaultPage
	}
	if r.Size == 0 {
		r.Size = DefaultPageSize
	}
	if r.Page < 1 {
		return InvalidArgument("page must be >= 1")
	}
	if r.Size < 1 || r.Size > MaxPageSize {
		return InvalidArgument("size must be between 1 and %d", MaxPageSize)
	}
	if r.Page > MaxResultWindow/r.Size {
		return InvalidArgument("page * size must not exceed %d", MaxResultWindow)
	}
	if r.SortBy == "" {
		r.SortBy = "timestamp"
	}
	switch r.SortOrder {
	case "":
		r.SortOrder = "desc"
	case "asc", "desc":
	default:
		return InvalidArgument("sort_order must be asc or desc")
	}
	if r.Level != "" && !r.Level.Valid() {
		return InvalidArgument("unknown level %q", r.Level)
	}
	if r.StartTime != nil && r.EndTime != nil && r.StartTime.After(*r.EndTime) {
		return InvalidArgument("start_time must not be after end_time")
	}
	return nil
}

type LogSearchResponse struct {
	Logs       []DetectionRecord `json:"logs"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	Size       int               `json:"size"`
	TotalPages int               `json:"total_pages"`
	Stats      LogStats          `json:"stats"`
}

// LogStats - сводка по журналу за окно или по фильтру поиска.
type LogStats struct {
	TotalLogs         int64            `json:"total_logs"`
	PIIDetectedCount  int64            `json:"pii_detected_count"`
	PIIDetectionRate  float64          `json:"pii_detection_rate"`
	EntityTypeStats   map[string]int64 `json:"entity_type_stats"`
	HourlyStats       map[string]int64 `json:"hourly_stats"`
	AvgProcessingTime float64          `json:"avg_processing_time"` // мс
	TopIPs            []IPCount        `json:"top_ips"`
}

// EmptyLogStats - нулевая сводка с непустыми коллекциями.
func EmptyLogStats() LogStats {
	return LogStats{
		EntityTypeStats: map[string]int64{},
		HourlyStats:     map[string]int64{},
		TopIPs:          []IPCount{},
	}
}

type StoreHealth struct {
	Status        string `json:"status"`
	Elasticsearch string `json:"elasticsearch"`
}

type BlockCount struct {
	Count      int64  `json:"count"`
	StartOfDay string `json:"start_of_day"`
	Timezone   string `json:"timezone"`
}
