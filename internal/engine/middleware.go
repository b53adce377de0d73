package engine

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/xela07ax/dlp-guard/internal/policy"
	"go.uber.org/zap"
)

// Тип для ключа в контексте (избегаем коллизий)
type ctxKey string

const requestIDKey ctxKey = "request_id"

const RequestIDHeader = "X-Request-ID"

// TracingMiddleware инициализирует Request-ID для каждого запроса
func TracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 1. Пытаемся достать ID из заголовка (если пришел от клиента/прокси)
		id := r.Header.Get(RequestIDHeader)

		// 2. Если его нет - генерируем новый
		if id == "" {
			id = uuid.New().String()
		}

		// 3. Добавляем в ответ, чтобы клиент тоже знал ID своего запроса
		w.Header().Set(RequestIDHeader, id)

		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
	})
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFrom помогает безопасно достать ID в любом месте кода
func RequestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// MaintenanceMiddleware отвечает 503, пока в системных настройках включён режим обслуживания.
func MaintenanceMiddleware(pdp policy.Enforcer, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if pdp.MaintenanceMode() {
				logger.Debug("request rejected: maintenance mode", zap.String("path", r.URL.Path))
				w.Header().Set("Retry-After", "60")
				writeJSON(w, http.StatusServiceUnavailable, errorBody{Detail: ErrMaintenance.Error()})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
