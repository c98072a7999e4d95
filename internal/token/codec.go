package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"go-realty-portal/internal/model"
)

// Kind discriminates the single-purpose token variants. Every issued
// token carries its kind in the "typ" claim and verification asserts it
// before the claims are trusted, so a password-reset token can never be
// replayed where an access or invite token is expected.
type Kind string

const (
	KindAccess        Kind = "access"
	KindPasswordReset Kind = "password-reset"
	KindInvite        Kind = "invite"
)

type AccessClaims struct {
	jwt.RegisteredClaims
	Kind      Kind   `json:"typ"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"sid,omitempty"`
}

type ResetClaims struct {
	jwt.RegisteredClaims
	Kind  Kind   `json:"typ"`
	Email string `json:"email"`
}

type InviteClaims struct {
	jwt.RegisteredClaims
	Kind  Kind   `json:"typ"`
	Email string `json:"email"`
}

// Codec signs and verifies all token kinds with one symmetric secret
// and signer identity. It holds no other state and performs no I/O.
type Codec struct {
	secret   []byte
	issuer   string
	audience string
	now      func() time.Time
}

func NewCodec(secret string, issuer string, audience string) (*Codec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token codec: signing secret is required")
	}

	return &Codec{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		now:      time.Now,
	}, nil
}

func (c *Codec) IssueAccess(user model.AuthUser, sessionID string, ttl time.Duration) (string, error) {
	claims := AccessClaims{
		RegisteredClaims: c.registered(user.ID, ttl),
		Kind:             KindAccess,
		Email:            user.Email,
		Role:             user.Role,
		SessionID:        sessionID,
	}
	return c.sign(claims)
}

func (c *Codec) IssuePasswordReset(userID string, email string, ttl time.Duration) (string, error) {
	claims := ResetClaims{
		RegisteredClaims: c.registered(userID, ttl),
		Kind:             KindPasswordReset,
		Email:            email,
	}
	return c.sign(claims)
}

func (c *Codec) IssueInvite(inviteID string, email string, ttl time.Duration) (string, error) {
	claims := InviteClaims{
		RegisteredClaims: c.registered(inviteID, ttl),
		Kind:             KindInvite,
		Email:            email,
	}
	return c.sign(claims)
}

func (c *Codec) VerifyAccess(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := c.parse(raw, claims); err != nil {
		return nil, err
	}

	if claims.Kind != KindAccess {
		return nil, model.ErrWrongTokenKind
	}
	if claims.Subject == "" || claims.Email == "" || claims.Role == "" {
		return nil, model.ErrTokenMalformed
	}

	return claims, nil
}

func (c *Codec) VerifyPasswordReset(raw string) (*ResetClaims, error) {
	claims := &ResetClaims{}
	if err := c.parse(raw, claims); err != nil {
		return nil, err
	}

	if claims.Kind != KindPasswordReset {
		return nil, model.ErrWrongTokenKind
	}
	if claims.Subject == "" || claims.Email == "" {
		return nil, model.ErrTokenMalformed
	}

	return claims, nil
}

func (c *Codec) VerifyInvite(raw string) (*InviteClaims, error) {
	claims := &InviteClaims{}
	if err := c.parse(raw, claims); err != nil {
		return nil, err
	}

	if claims.Kind != KindInvite {
		return nil, model.ErrWrongTokenKind
	}
	if claims.Subject == "" || claims.Email == "" {
		return nil, model.ErrTokenMalformed
	}

	return claims, nil
}

func (c *Codec) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := c.now().UTC()
	return jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    c.issuer,
		Audience:  jwt.ClaimStrings{c.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
}

func (c *Codec) sign(claims jwt.Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

func (c *Codec) parse(raw string, claims jwt.Claims) error {
	parsed, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return model.ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return model.ErrTokenSignature
		case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenInvalidAudience):
			return model.ErrTokenSignature
		default:
			return model.ErrTokenMalformed
		}
	}

	if !parsed.Valid {
		return model.ErrTokenMalformed
	}

	return nil
}
