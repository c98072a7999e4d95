package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go-realty-portal/internal/model"
	"go-realty-portal/internal/token"
)

func testUser(t *testing.T, id string, email string, role string, password string) model.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	now := time.Now().UTC()
	return model.User{
		ID:           id,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func newTestAuthService(t *testing.T, users *fakeUserStore, sessions *fakeSessionStore) *AuthService {
	t.Helper()

	codec, err := token.NewCodec("test-secret-0123456789", "realty-portal", "realty-portal-web")
	require.NoError(t, err)

	audit := NewAuditService(&fakeEventStore{})
	return NewAuthService(users, sessions, codec, audit, 15*time.Minute, 168*time.Hour)
}

func TestAuthService_LoginThenGetSessionUser(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserStore(testUser(t, "u1", "a@b.com", model.RoleBuyer, "hunter2!"))
	sessions := newFakeSessionStore()
	svc := newTestAuthService(t, users, sessions)

	pair, err := svc.Login(ctx, "a@b.com", "hunter2!", "ua", "1.2.3.4")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.NotEmpty(t, pair.SessionID)

	identity, err := svc.GetSessionUser(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", identity.UserID)
	assert.Equal(t, "a@b.com", identity.Email)
	assert.Equal(t, model.RoleBuyer, identity.Role)
	assert.Equal(t, pair.SessionID, identity.SessionID)
}

func TestAuthService_LoginNormalizesEmail(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserStore(testUser(t, "u1", "a@b.com", model.RoleBuyer, "hunter2!"))
	svc := newTestAuthService(t, users, newFakeSessionStore())

	_, err := svc.Login(ctx, "  A@B.Com ", "hunter2!", "", "")
	require.NoError(t, err)
}

func TestAuthService_LoginFailures(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserStore(testUser(t, "u1", "a@b.com", model.RoleBuyer, "hunter2!"))
	svc := newTestAuthService(t, users, newFakeSessionStore())

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, "a@b.com", "wrong", "", "")
		assert.ErrorIs(t, err, model.ErrInvalidCredentials)
	})

	t.Run("unknown account", func(t *testing.T) {
		_, err := svc.Login(ctx, "nobody@b.com", "hunter2!", "", "")
		assert.ErrorIs(t, err, model.ErrInvalidCredentials)
	})

	t.Run("soft-deleted account", func(t *testing.T) {
		deleted := testUser(t, "u2", "gone@b.com", model.RoleBuyer, "hunter2!")
		now := time.Now().UTC()
		deleted.DeletedAt = &now
		users.Create(ctx, deleted)

		_, err := svc.Login(ctx, "gone@b.com", "hunter2!", "", "")
		assert.ErrorIs(t, err, model.ErrInvalidCredentials)
	})
}

func TestAuthService_LoginStoresOnlyHash(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserStore(testUser(t, "u1", "a@b.com", model.RoleBuyer, "hunter2!"))
	sessions := newFakeSessionStore()
	svc := newTestAuthService(t, users, sessions)

	pair, err := svc.Login(ctx, "a@b.com", "hunter2!", "", "")
	require.NoError(t, err)

	stored := sessions.get(pair.SessionID)
	assert.NotEqual(t, pair.RefreshToken, stored.RefreshTokenHash)
	assert.Equal(t, HashRefreshToken(pair.RefreshToken), stored.RefreshTokenHash)
}

func TestAuthService_RefreshKeepsSessionAndTokenStable(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserStore(testUser(t, "u1", "a@b.com", model.RoleBuyer, "hunter2!"))
	sessions := newFakeSessionStore()
	svc := newTestAuthService(t, users, sessions)

	pair, err := svc.Login(ctx, "a@b.com", "hunter2!", "", "")
	require.NoError(t, err)

	result, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, pair.SessionID, result.SessionID)
	assert.Equal(t, pair.User, result.User)

	// The same refresh token keeps working after a refresh.
	again, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, pair.SessionID, again.SessionID)
}

func TestAuthService_RefreshAbsentOnUnknownToken(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserStore(), newFakeSessionStore())

	result, err := svc.Refresh(context.Background(), "never-issued")
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestAuthService_RefreshAbsentAfterRevoke(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserStore(testUser(t, "u1", "a@b.com", model.RoleBuyer, "hunter2!"))
	sessions := newFakeSessionStore()
	svc := newTestAuthService(t, users, sessions)

	pair, err := svc.Login(ctx, "a@b.com", "hunter2!", "", "")
	require.NoError(t, err)

	revoked, err := svc.RevokeSession(ctx, pair.SessionID, model.RevokeReasonManual)
	require.NoError(t, err)
	require.True(t, revoked)

	result, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Nil(t, result)

	// The recorded reason is untouched by the failed refresh.
	assert.Equal(t, model.RevokeReasonManual, sessions.get(pair.SessionID).RevokedReason)
}

func TestAuthService_RefreshExpiresAgedSession(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserStore(testUser(t, "u1", "a@b.com", model.RoleBuyer, "hunter2!"))
	sessions := newFakeSessionStore()
	svc := newTestAuthService(t, users, sessions)

	pair, err := svc.Login(ctx, "a@b.com", "hunter2!", "", "")
	require.NoError(t, err)

	sessions.setCreatedAt(pair.SessionID, time.Now().Add(-169*time.Hour))

	result, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Nil(t, result)

	stored := sessions.get(pair.SessionID)
	assert.True(t, stored.IsRevoked)
	assert.Equal(t, model.RevokeReasonExpired, stored.RevokedReason)
}

func TestAuthService_GetSessionUserDeniedAfterRevoke(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserStore(testUser(t, "u1", "a@b.com", model.RoleBuyer, "hunter2!"))
	sessions := newFakeSessionStore()
	svc := newTestAuthService(t, users, sessions)

	pair, err := svc.Login(ctx, "a@b.com", "hunter2!", "", "")
	require.NoError(t, err)

	_, err = svc.RevokeSession(ctx, pair.SessionID, model.RevokeReasonManual)
	require.NoError(t, err)

	// The token's signature is still valid for up to 15 minutes; the
	// liveness recheck must deny anyway.
	_, err = svc.GetSessionUser(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, model.ErrSessionRevoked)
}

func TestAuthService_GetSessionUserFailsClosedOnStoreError(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserStore(testUser(t, "u1", "a@b.com", model.RoleBuyer, "hunter2!"))
	sessions := newFakeSessionStore()
	svc := newTestAuthService(t, users, sessions)

	pair, err := svc.Login(ctx, "a@b.com", "hunter2!", "", "")
	require.NoError(t, err)

	sessions.failWith = errors.New("store timeout")

	_, err = svc.GetSessionUser(ctx, pair.AccessToken)
	require.Error(t, err)
}

func TestAuthService_LogoutRevokesCurrentSession(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserStore(testUser(t, "u1", "a@b.com", model.RoleBuyer, "hunter2!"))
	sessions := newFakeSessionStore()
	svc := newTestAuthService(t, users, sessions)

	pair, err := svc.Login(ctx, "a@b.com", "hunter2!", "", "")
	require.NoError(t, err)

	identity, err := svc.GetSessionUser(ctx, pair.AccessToken)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, *identity))

	stored := sessions.get(pair.SessionID)
	assert.True(t, stored.IsRevoked)
	assert.Equal(t, model.RevokeReasonManual, stored.RevokedReason)

	_, err = svc.GetSessionUser(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, model.ErrSessionRevoked)
}

func TestAuthService_RevokeSessionIdempotentAtStore(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserStore(testUser(t, "u1", "a@b.com", model.RoleBuyer, "hunter2!"))
	sessions := newFakeSessionStore()
	svc := newTestAuthService(t, users, sessions)

	pair, err := svc.Login(ctx, "a@b.com", "hunter2!", "", "")
	require.NoError(t, err)

	first, err := svc.RevokeSession(ctx, pair.SessionID, model.RevokeReasonManual)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := svc.RevokeSession(ctx, pair.SessionID, model.RevokeReasonLogoutAll)
	require.NoError(t, err)
	assert.False(t, second)
	assert.Equal(t, model.RevokeReasonManual, sessions.get(pair.SessionID).RevokedReason)
}

func TestAuthService_LogoutEverywhereScenario(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserStore(testUser(t, "u1", "a@b.com", model.RoleBuyer, "hunter2!"))
	sessions := newFakeSessionStore()
	svc := newTestAuthService(t, users, sessions)

	pair, err := svc.Login(ctx, "a@b.com", "hunter2!", "ua", "ip")
	require.NoError(t, err)

	count, err := svc.RevokeAllSessions(ctx, "u1", model.RevokeReasonLogoutAll, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	active, err := svc.ListSessions(ctx, "u1", "")
	require.NoError(t, err)
	assert.Empty(t, active)

	result, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestAuthService_RevokeAllSparesCurrentSession(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserStore(testUser(t, "u1", "a@b.com", model.RoleBuyer, "hunter2!"))
	sessions := newFakeSessionStore()
	svc := newTestAuthService(t, users, sessions)

	first, err := svc.Login(ctx, "a@b.com", "hunter2!", "", "")
	require.NoError(t, err)
	second, err := svc.Login(ctx, "a@b.com", "hunter2!", "", "")
	require.NoError(t, err)

	count, err := svc.RevokeAllSessions(ctx, "u1", model.RevokeReasonLogoutAll, second.SessionID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	infos, err := svc.ListSessions(ctx, "u1", second.SessionID)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, second.SessionID, infos[0].ID)
	assert.True(t, infos[0].IsCurrent)

	result, err := svc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.Nil(t, result)
}
