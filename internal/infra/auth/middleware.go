package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/xela07ax/dlp-guard/internal/domain"
	"go.uber.org/zap"
)

// TokenValidator - интерфейс, который реализуют и шлюз, и консоль
type TokenValidator interface {
	VerifyToken(ctx context.Context, tokenStr string) (*domain.CustomClaims, error)
}

type ctxKey struct{}

// WithClaims кладёт проверенные claims в контекст.
func WithClaims(ctx context.Context, claims *domain.CustomClaims) context.Context {
	return context.WithValue(ctx, ctxKey{}, claims)
}

// ClaimsFromContext возвращает claims, положенные middleware или gRPC-интерцептором.
func ClaimsFromContext(ctx context.Context) (*domain.CustomClaims, bool) {
	claims, ok := ctx.Value(ctxKey{}).(*domain.CustomClaims)
	return claims, ok
}

func NewMiddleware(v TokenValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w)
				return
			}

			claims, err := v.VerifyToken(r.Context(), authHeader)
			if err != nil {
				logger.Warn("auth failure", zap.String("path", r.URL.Path), zap.Error(err))
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Could not validate credentials"})
}
