package logstore

// indexMapping - схема индекса журнала. Метаданные, по которым строятся фасеты,
// объявлены keyword явно; остальные ключи metadata маппятся динамически.
var indexMapping = []byte(`{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0
  },
  "mappings": {
    "properties": {
      "id":                 {"type": "keyword"},
      "timestamp":          {"type": "date"},
      "level":              {"type": "keyword"},
      "client_ip":          {"type": "ip"},
      "user_agent":         {"type": "text"},
      "request_id":         {"type": "keyword"},
      "input_text":         {"type": "text", "analyzer": "standard"},
      "text_length":        {"type": "integer"},
      "has_pii":            {"type": "boolean"},
      "detected_entities": {
        "type": "nested",
        "properties": {
          "type":       {"type": "keyword"},
          "value":      {"type": "text"},
          "confidence": {"type": "float"}
        }
      },
      "entity_count":       {"type": "integer"},
      "entity_types":       {"type": "keyword"},
      "processing_time_ms": {"type": "float"},
      "model_confidence":   {"type": "float"},
      "reason":             {"type": "text"},
      "details":            {"type": "text"},
      "metadata": {
        "type": "object",
        "dynamic": true,
        "properties": {
          "action":     {"type": "keyword"},
          "project":    {"type": "keyword"},
          "service":    {"type": "keyword"},
          "log_status": {"type": "keyword"}
        }
      }
    }
  }
}`)

// Поля индекса, на которые ссылаются запросы
const (
	FieldTimestamp      = "timestamp"
	FieldLevel          = "level"
	FieldClientIP       = "client_ip"
	FieldHasPII         = "has_pii"
	FieldEntityTypes    = "entity_types"
	FieldInputText      = "input_text"
	FieldProcessingTime = "processing_time_ms"
	FieldAction         = "metadata.action"
	FieldProject        = "metadata.project"
	FieldService        = "metadata.service"
	FieldLogStatus      = "metadata.log_status"
)

// SortableFields - поля, по которым разрешена сортировка выдачи.
var SortableFields = map[string]struct{}{
	"timestamp":          {},
	"level":              {},
	"client_ip":          {},
	"has_pii":            {},
	"entity_count":       {},
	"text_length":        {},
	"processing_time_ms": {},
}
