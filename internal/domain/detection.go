package domain

import (
	"encoding/json"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

type LogLevel string

const (
	LevelInfo    LogLevel = "INFO"
	LevelWarning LogLevel = "WARNING"
	LevelError   LogLevel = "ERROR"
	LevelDebug   LogLevel = "DEBUG"
)

// Valid сообщает, входит ли уровень в допустимый набор.
func (l LogLevel) Valid() bool {
	switch l {
	case LevelInfo, LevelWarning, LevelError, LevelDebug:
		return true
	}
	return false
}

// Действия, которые шлюз проставляет в metadata.action
const (
	ActionBlock = "BLOCK"
	ActionAllow = "ALLOW"
)

// Entity - один найденный фрагмент персональных данных.
type Entity struct {
	Type       string  `json:"type"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// DetectionResult - контракт внешнего детектора PII.
type DetectionResult struct {
	HasPII   bool     `json:"has_pii"`
	Entities []Entity `json:"entities"`
}

// Metadata - типизированные ключи, по которым строятся фасеты дашборда.
// Всё нераспознанное сохраняется в Extra и возвращается на провод без изменений.
type Metadata struct {
	Action    string `json:"action,omitempty"`
	Project   string `json:"project,omitempty"`
	Service   string `json:"service,omitempty"`
	LogStatus string `json:"log_status,omitempty"`

	Extra map[string]any `json:"-"`
}

var metadataKnownKeys = map[string]struct{}{
	"action": {}, "project": {}, "service": {}, "log_status": {},
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+4)
	for k, v := range m.Extra {
		if _, known := metadataKnownKeys[k]; known {
			continue
		}
		out[k] = v
	}
	if m.Action != "" {
		out["action"] = m.Action
	}
	if m.Project != "" {
		out["project"] = m.Project
	}
	if m.Service != "" {
		out["service"] = m.Service
	}
	if m.LogStatus != "" {
		out["log_status"] = m.LogStatus
	}
	return json.Marshal(out)
}

func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Metadata{}
	for k, v := range raw {
		s, isString := v.(string)
		switch {
		case k == "action" && isString:
			m.Action = s
		case k == "project" && isString:
			m.Project = s
		case k == "service" && isString:
			m.Service = s
		case k == "log_status" && isString:
			m.LogStatus = s
		default:
			if m.Extra == nil {
				m.Extra = make(map[string]any)
			}
			m.Extra[k] = v
		}
	}
	return nil
}

// DetectionRecord - единица журнала детекций в индексе.
// Производные поля (EntityCount, EntityTypes, HasPII) агрегатор читает как есть,
// поэтому создавать запись нужно через NewDetectionRecord.
type DetectionRecord struct {
	ID               string    `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	Level            LogLevel  `json:"level"`
	ClientIP         string    `json:"client_ip"`
	UserAgent        string    `json:"user_agent,omitempty"`
	RequestID        string    `json:"request_id,omitempty"`
	InputText        string    `json:"input_text"`
	TextLength       int       `json:"text_length"`
	HasPII           bool      `json:"has_pii"`
	DetectedEntities []Entity  `json:"detected_entities"`
	EntityCount      int       `json:"entity_count"`
	EntityTypes      []string  `json:"entity_types"`
	ProcessingTimeMs *float64  `json:"processing_time_ms,omitempty"`
	ModelConfidence  *float64  `json:"model_confidence,omitempty"`
	Reason           string    `json:"reason,omitempty"`
	Details          string    `json:"details,omitempty"`
	Metadata         Metadata  `json:"metadata"`
}

// RecordInput - исходные данные для построения записи.
type RecordInput struct {
	ID               string
	Timestamp        time.Time
	Level            LogLevel
	ClientIP         string
	UserAgent        string
	RequestID        string
	InputText        string
	Entities         []Entity
	ProcessingTimeMs *float64
	Reason           string
	Details          string
	Metadata         Metadata
}

// NewDetectionRecord собирает запись и выводит согласованные производные поля:
// entity_count = len(entities), entity_types = sorted(distinct(types)), has_pii = entity_count > 0.
func NewDetectionRecord(in RecordInput) DetectionRecord {
	entities := in.Entities
	if entities == nil {
		entities = []Entity{}
	}

	rec := DetectionRecord{
		ID:               in.ID,
		Timestamp:        in.Timestamp,
		Level:            in.Level,
		ClientIP:         in.ClientIP,
		UserAgent:        in.UserAgent,
		RequestID:        in.RequestID,
		InputText:        in.InputText,
		TextLength:       utf8.RuneCountInString(in.InputText),
		DetectedEntities: entities,
		EntityCount:      len(entities),
		EntityTypes:      DistinctTypes(entities),
		HasPII:           len(entities) > 0,
		ProcessingTimeMs: in.ProcessingTimeMs,
		Reason:           in.Reason,
		Details:          in.Details,
		Metadata:         in.Metadata,
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	// При PII уровень всегда WARNING, кроме явной ошибки
	switch {
	case rec.HasPII && rec.Level != LevelError:
		rec.Level = LevelWarning
	case !rec.Level.Valid():
		rec.Level = LevelInfo
	}
	if conf, ok := maxConfidence(entities); ok {
		rec.ModelConfidence = &conf
	}
	return rec
}

// DistinctTypes возвращает отсортированный список уникальных типов сущностей.
func DistinctTypes(entities []Entity) []string {
	seen := make(map[string]struct{}, len(entities))
	types := make([]string, 0, len(entities))
	for _, e := range entities {
		if _, ok := seen[e.Type]; ok {
			continue
		}
		seen[e.Type] = struct{}{}
		types = append(types, e.Type)
	}
	sort.Strings(types)
	return types
}

func maxConfidence(entities []Entity) (float64, bool) {
	if len(entities) == 0 {
		return 0, false
	}
	best := entities[0].Confidence
	for _, e := range entities[1:] {
		if e.Confidence > best {
			best = e.Confidence
		}
	}
	return best, true
}
