package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"recharge-backend/internal/domain"
)

type UserRepo interface {
	PutUser(ctx context.Context, u *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
}

type AuthService struct {
	Repo      UserRepo
	JWTSecret string
	TokenTTL  time.Duration
}

func (s *AuthService) ttl() time.Duration {
	if s.TokenTTL > 0 {
		return s.TokenTTL
	}
	return 7 * 24 * time.Hour
}

// Login finds or creates the user for email and issues a bearer token.
// Identity verification itself (password, OAuth) belongs to the managed
// auth collaborator in front of this service.
func (s *AuthService) Login(ctx context.Context, email string) (string, *domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return "", nil, domain.E(domain.KindUnauthenticated, "valid email required")
	}
	u, err := s.Repo.GetUserByEmail(ctx, email)
	if err != nil {
		if !domain.IsKind(err, domain.KindNotFound) {
			return "", nil, err
		}
		now := time.Now().UTC()
		u = &domain.User{
			UserID:    uuid.NewString(),
			Email:     email,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.Repo.PutUser(ctx, u); err != nil {
			return "", nil, err
		}
	}
	claims := jwt.MapClaims{
		"user_id": u.UserID,
		"email":   u.Email,
		"exp":     time.Now().Add(s.ttl()).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(s.JWTSecret))
	if err != nil {
		return "", nil, domain.Wrap(domain.KindUnauthenticated, "sign token", err)
	}
	return signed, u, nil
}

// Verify returns the user id and email carried by a valid token.
func (s *AuthService) Verify(token string) (string, string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.E(domain.KindUnauthenticated, "unexpected signing method")
		}
		return []byte(s.JWTSecret), nil
	})
	if err != nil || !parsed.Valid {
		return "", "", domain.Wrap(domain.KindUnauthenticated, "invalid token", err)
	}
	m, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", domain.E(domain.KindUnauthenticated, "invalid claims")
	}
	uid, _ := m["user_id"].(string)
	email, _ := m["email"].(string)
	if uid == "" {
		return "", "", domain.E(domain.KindUnauthenticated, "token missing user id")
	}
	return uid, email, nil
}
