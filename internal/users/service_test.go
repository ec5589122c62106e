package users

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukanshop/dukan/internal/domain"
	"github.com/dukanshop/dukan/internal/testdb"
)

const testSecret = "test-secret"

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(testdb.Open(t), nil, testSecret, 10*time.Minute)
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterParams{
		Username: "aziza",
		Email:    "aziza@example.com",
		Password: "correct horse",
		Address:  "Khiva, Ichan Qala",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleClient, user.Role)
	assert.NotEqual(t, "correct horse", user.Password, "password must be hashed")

	_, err = svc.Register(ctx, RegisterParams{Username: "aziza", Password: "x"})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	token, got, err := svc.Login(ctx, "aziza", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	parsed, err := jwt.Parse(token, func(tk *jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.EqualValues(t, user.ID, claims["uid"])
	assert.Equal(t, "aziza", claims["username"])
	assert.Equal(t, domain.RoleClient, claims["role"])

	_, _, err = svc.Login(ctx, "aziza", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "nobody", "x")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestTelegramLoginFlow(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	code, err := svc.BeginTelegramLogin(ctx, 555, 999)
	require.NoError(t, err)
	require.Len(t, code, 6)

	token, user, err := svc.VerifyTelegramCode(ctx, code)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	require.NotNil(t, user.TelegramID)
	assert.EqualValues(t, 555, *user.TelegramID)
	assert.Equal(t, "tg_555", user.Username)

	// a code is one-shot
	_, _, err = svc.VerifyTelegramCode(ctx, code)
	assert.ErrorIs(t, err, ErrInvalidCode)

	// second login for the same telegram id reuses the account
	code, err = svc.BeginTelegramLogin(ctx, 555, 999)
	require.NoError(t, err)
	_, again, err := svc.VerifyTelegramCode(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
}

func TestTelegramCodeExpiry(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	code, err := svc.BeginTelegramLogin(ctx, 1, 1)
	require.NoError(t, err)

	// age the session past the TTL
	require.NoError(t, svc.db.Model(&domain.TelegramAuthSession{}).
		Where("code = ?", code).
		Update("created_at", time.Now().Add(-11*time.Minute)).Error)

	_, _, err = svc.VerifyTelegramCode(ctx, code)
	assert.ErrorIs(t, err, ErrInvalidCode)

	purged, err := svc.PurgeAuthSessions(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, purged)
}

func TestVerifyBadCode(t *testing.T) {
	svc := newTestService(t)
	_, _, err := svc.VerifyTelegramCode(context.Background(), "000000")
	assert.ErrorIs(t, err, ErrInvalidCode)
}
