package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recharge-backend/internal/domain"
	"recharge-backend/internal/store"
)

func TestAuth_LoginAndVerify(t *testing.T) {
	svc := &AuthService{Repo: store.NewMemory(), JWTSecret: "s3cret"}

	token, user, err := svc.Login(context.Background(), "Player@Example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, "player@example.com", user.Email)

	uid, email, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, user.UserID, uid)
	assert.Equal(t, user.Email, email)
}

func TestAuth_LoginIsStableForExistingUser(t *testing.T) {
	svc := &AuthService{Repo: store.NewMemory(), JWTSecret: "s3cret"}

	_, first, err := svc.Login(context.Background(), "p@example.com")
	require.NoError(t, err)
	_, second, err := svc.Login(context.Background(), "p@example.com")
	require.NoError(t, err)
	assert.Equal(t, first.UserID, second.UserID)
}

func TestAuth_InvalidEmail(t *testing.T) {
	svc := &AuthService{Repo: store.NewMemory(), JWTSecret: "s3cret"}

	for _, email := range []string{"", "   ", "not-an-email"} {
		_, _, err := svc.Login(context.Background(), email)
		require.Error(t, err, email)
		assert.Equal(t, domain.KindUnauthenticated, domain.KindOf(err))
	}
}

func TestAuth_VerifyRejectsForgedToken(t *testing.T) {
	svc := &AuthService{Repo: store.NewMemory(), JWTSecret: "s3cret"}
	other := &AuthService{Repo: store.NewMemory(), JWTSecret: "different"}

	token, _, err := other.Login(context.Background(), "p@example.com")
	require.NoError(t, err)

	_, _, err = svc.Verify(token)
	require.Error(t, err)
	assert.Equal(t, domain.KindUnauthenticated, domain.KindOf(err))

	_, _, err = svc.Verify("not.a.token")
	require.Error(t, err)
}

func TestAuth_VerifyRejectsExpiredToken(t *testing.T) {
	svc := &AuthService{Repo: store.NewMemory(), JWTSecret: "s3cret", TokenTTL: -time.Hour}

	token, _, err := svc.Login(context.Background(), "p@example.com")
	require.NoError(t, err)

	_, _, err = svc.Verify(token)
	require.Error(t, err)
}
