package service

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/xela07ax/dlp-guard/internal/domain"
	"github.com/xela07ax/dlp-guard/internal/infra/auth"
	"golang.org/x/crypto/bcrypt"
	"go.uber.org/zap"
)

var errInvalidCredentials = fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)

type AuthProvider interface {
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
}

// AuthService выпускает токены консоли и проверяет их с учётом состояния пользователя.
type AuthService struct {
	*auth.BaseValidator
	repo       AuthProvider
	privateKey *rsa.PrivateKey
	issuer     string
	ttl        time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

func NewAuthService(
	repo AuthProvider,
	validator *auth.BaseValidator,
	privateKey *rsa.PrivateKey,
	issuer string,
	ttl time.Duration,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		BaseValidator: validator,
		repo:          repo,
		privateKey:    privateKey,
		issuer:        issuer,
		ttl:           ttl,
		logger:        logger.Named("auth-service"),
		now:           time.Now,
	}
}

func (s *AuthService) GenerateToken(ctx context.Context, username, password string) (*domain.TokenResponse, error) {
	if username == "" || password == "" {
		return nil, errInvalidCredentials
	}

	// 1. Источник правды - Postgres
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, fmt.Errorf("auth: load user: %w", err)
	}
	if !user.IsActive {
		return nil, errInvalidCredentials
	}

	// 2. Проверка пароля
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errInvalidCredentials
	}

	// 3. Claims
	now := s.now()
	claims := &domain.CustomClaims{
		Username:    user.Username,
		IsSuperuser: user.IsSuperuser,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   user.Username,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	// 4. Подпись ЗАКРЫТЫМ КЛЮЧОМ (RS256)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("auth: sign token: %w", err)
	}

	s.logger.Info("token issued", zap.String("username", user.Username))
	return &domain.TokenResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.ttl.Seconds()),
	}, nil
}

// VerifyToken дополняет проверку подписи проверкой, что пользователь существует и активен.
func (s *AuthService) VerifyToken(ctx context.Context, tokenStr string) (*domain.CustomClaims, error) {
	claims, err := s.BaseValidator.VerifyToken(ctx, tokenStr)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown user", domain.ErrUnauthorized)
		}
		return nil, fmt.Errorf("auth: load user: %w", err)
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: inactive user", domain.ErrUnauthorized)
	}
	return claims, nil
}
