package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-realty-portal/internal/model"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()

	codec, err := NewCodec("test-secret-0123456789", "realty-portal", "realty-portal-web")
	require.NoError(t, err)
	return codec
}

func TestNewCodec_RequiresSecret(t *testing.T) {
	_, err := NewCodec("  ", "iss", "aud")
	require.Error(t, err)
}

func TestCodec_AccessRoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	user := model.AuthUser{ID: "u1", Email: "a@b.com", Role: model.RoleBuyer}
	raw, err := codec.IssueAccess(user, "s1", 15*time.Minute)
	require.NoError(t, err)

	claims, err := codec.VerifyAccess(raw)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "a@b.com", claims.Email)
	assert.Equal(t, model.RoleBuyer, claims.Role)
	assert.Equal(t, "s1", claims.SessionID)
}

func TestCodec_ExpiredAccessTokenRejected(t *testing.T) {
	codec := newTestCodec(t)

	raw, err := codec.IssueAccess(model.AuthUser{ID: "u1", Email: "a@b.com", Role: model.RoleBuyer}, "s1", 15*time.Minute)
	require.NoError(t, err)

	// Signature is still correct; only the clock has moved.
	codec.now = func() time.Time { return time.Now().Add(16 * time.Minute) }

	_, err = codec.VerifyAccess(raw)
	require.ErrorIs(t, err, model.ErrTokenExpired)
}

func TestCodec_KindDiscrimination(t *testing.T) {
	codec := newTestCodec(t)

	access, err := codec.IssueAccess(model.AuthUser{ID: "u1", Email: "a@b.com", Role: model.RoleBuyer}, "s1", time.Hour)
	require.NoError(t, err)
	reset, err := codec.IssuePasswordReset("u1", "a@b.com", time.Hour)
	require.NoError(t, err)
	invite, err := codec.IssueInvite("inv1", "a@b.com", time.Hour)
	require.NoError(t, err)

	t.Run("reset token rejected as access", func(t *testing.T) {
		_, err := codec.VerifyAccess(reset)
		assert.ErrorIs(t, err, model.ErrWrongTokenKind)
	})

	t.Run("access token rejected as reset", func(t *testing.T) {
		_, err := codec.VerifyPasswordReset(access)
		assert.ErrorIs(t, err, model.ErrWrongTokenKind)
	})

	t.Run("invite token rejected as access", func(t *testing.T) {
		_, err := codec.VerifyAccess(invite)
		assert.ErrorIs(t, err, model.ErrWrongTokenKind)
	})

	t.Run("access token rejected as invite", func(t *testing.T) {
		_, err := codec.VerifyInvite(access)
		assert.ErrorIs(t, err, model.ErrWrongTokenKind)
	})

	t.Run("each kind accepted by its own verifier", func(t *testing.T) {
		_, err := codec.VerifyAccess(access)
		assert.NoError(t, err)
		_, err = codec.VerifyPasswordReset(reset)
		assert.NoError(t, err)
		_, err = codec.VerifyInvite(invite)
		assert.NoError(t, err)
	})
}

func TestCodec_ForeignSignatureRejected(t *testing.T) {
	codec := newTestCodec(t)

	other, err := NewCodec("a-different-secret-value", "realty-portal", "realty-portal-web")
	require.NoError(t, err)

	raw, err := other.IssueAccess(model.AuthUser{ID: "u1", Email: "a@b.com", Role: model.RoleBuyer}, "s1", time.Hour)
	require.NoError(t, err)

	_, err = codec.VerifyAccess(raw)
	require.ErrorIs(t, err, model.ErrTokenSignature)
}

func TestCodec_GarbageIsMalformed(t *testing.T) {
	codec := newTestCodec(t)

	_, err := codec.VerifyAccess("not.a.token")
	require.ErrorIs(t, err, model.ErrTokenMalformed)
}

func TestFromAuthorizationHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
		ok     bool
	}{
		{"bearer token", "Bearer abc.def.ghi", "abc.def.ghi", true},
		{"empty header", "", "", false},
		{"lowercase scheme is absent", "bearer abc", "", false},
		{"basic scheme is absent", "Basic dXNlcjpwYXNz", "", false},
		{"prefix only", "Bearer ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FromAuthorizationHeader(tt.header)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
