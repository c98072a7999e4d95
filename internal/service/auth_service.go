package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"go-realty-portal/internal/model"
	"go-realty-portal/internal/token"
)

// UserStore is the user-record collaborator. Credential storage and
// password hashing policy live behind it; this service only compares.
type UserStore interface {
	FindByID(ctx context.Context, id string) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
}

// SessionStore owns the session state machine.
type SessionStore interface {
	Create(ctx context.Context, userID string, refreshTokenHash string, userAgent string, ipAddress string) (model.Session, error)
	FindByID(ctx context.Context, sessionID string) (model.Session, error)
	FindActiveByTokenHash(ctx context.Context, tokenHash string) (model.Session, error)
	ListActive(ctx context.Context, userID string) ([]model.Session, error)
	Revoke(ctx context.Context, sessionID string, reason string) (bool, error)
	RevokeAll(ctx context.Context, userID string, reason string, exceptSessionID string) (int64, error)
	TouchLastUsed(ctx context.Context, sessionID string) error
}

// RefreshResult is what a successful refresh hands back. The refresh
// token itself is not rotated, so it never reappears here.
type RefreshResult struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	ExpiresIn   int64          `json:"expires_in"`
	SessionID   string         `json:"session_id"`
	User        model.AuthUser `json:"user"`
}

// AuthService orchestrates the token codec and the session store:
// login mints a session plus tokens, refresh reissues access tokens
// against a live session, and revocation kills sessions one at a time
// or wholesale.
type AuthService struct {
	users      UserStore
	sessions   SessionStore
	codec      *token.Codec
	audit      *AuditService
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewAuthService(users UserStore, sessions SessionStore, codec *token.Codec, audit *AuditService, accessTTL time.Duration, refreshTTL time.Duration) *AuthService {
	return &AuthService{
		users:      users,
		sessions:   sessions,
		codec:      codec,
		audit:      audit,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// Login verifies credentials, creates a session and mints the token
// pair. The raw refresh token leaves this function in cleartext exactly
// once; only its SHA-256 hash is stored.
func (s *AuthService) Login(ctx context.Context, email string, password string, userAgent string, ipAddress string) (model.TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			s.audit.Record(ctx, model.AuthEvent{Action: model.AuthEventLoginFailed, IPAddress: ipAddress, UserAgent: userAgent, Detail: "unknown account"})
			return model.TokenPair{}, model.ErrInvalidCredentials
		}
		return model.TokenPair{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.audit.Record(ctx, model.AuthEvent{UserID: user.ID, Action: model.AuthEventLoginFailed, IPAddress: ipAddress, UserAgent: userAgent})
		return model.TokenPair{}, model.ErrInvalidCredentials
	}

	refreshToken, err := generateRefreshToken()
	if err != nil {
		return model.TokenPair{}, err
	}

	session, err := s.sessions.Create(ctx, user.ID, HashRefreshToken(refreshToken), userAgent, ipAddress)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("create session: %w", err)
	}

	authUser := model.AuthUser{ID: user.ID, Email: user.Email, Role: user.Role}
	accessToken, err := s.codec.IssueAccess(authUser, session.ID, s.accessTTL)
	if err != nil {
		return model.TokenPair{}, err
	}

	s.audit.Record(ctx, model.AuthEvent{UserID: user.ID, Action: model.AuthEventLogin, IPAddress: ipAddress, UserAgent: userAgent})

	return model.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL.Seconds()),
		SessionID:    session.ID,
		User:         authUser,
	}, nil
}

// Refresh exchanges a live refresh token for a fresh access token bound
// to the same session. The refresh token and session id are stable
// across renewals. A nil result means the caller must clear cookies and
// force re-authentication; every failure mode collapses to absence.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	session, err := s.sessions.FindActiveByTokenHash(ctx, HashRefreshToken(refreshToken))
	if err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			return nil, nil
		}
		return nil, err
	}

	// Refresh tokens are long-lived but not immortal: a session past
	// its max age is revoked on the spot.
	if s.now().After(session.CreatedAt.Add(s.refreshTTL)) {
		if _, err := s.sessions.Revoke(ctx, session.ID, model.RevokeReasonExpired); err != nil {
			slog.Warn("failed to revoke expired session", "session_id", session.ID, "error", err)
		}
		return nil, nil
	}

	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, nil
		}
		return nil, err
	}

	authUser := model.AuthUser{ID: user.ID, Email: user.Email, Role: user.Role}
	accessToken, err := s.codec.IssueAccess(authUser, session.ID, s.accessTTL)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.TouchLastUsed(ctx, session.ID); err != nil {
		slog.Warn("failed to touch session", "session_id", session.ID, "error", err)
	}
	s.audit.Record(ctx, model.AuthEvent{UserID: user.ID, Action: model.AuthEventRefresh})

	return &RefreshResult{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.accessTTL.Seconds()),
		SessionID:   session.ID,
		User:        authUser,
	}, nil
}

// GetSessionUser resolves an access token to an identity. An access
// token stays cryptographically valid for its full lifetime even after
// its session is revoked, so when the token carries a session claim the
// session's liveness is rechecked against the store. Store failures
// deny (fail closed).
func (s *AuthService) GetSessionUser(ctx context.Context, accessToken string) (*model.Identity, error) {
	claims, err := s.codec.VerifyAccess(accessToken)
	if err != nil {
		return nil, err
	}

	if claims.SessionID != "" {
		session, err := s.sessions.FindByID(ctx, claims.SessionID)
		if err != nil {
			if errors.Is(err, model.ErrSessionNotFound) {
				return nil, model.ErrSessionRevoked
			}
			return nil, fmt.Errorf("session liveness check: %w", err)
		}
		if session.IsRevoked {
			return nil, model.ErrSessionRevoked
		}
	}

	return &model.Identity{
		UserID:    claims.Subject,
		Email:     claims.Email,
		Role:      claims.Role,
		SessionID: claims.SessionID,
	}, nil
}

// Logout revokes the caller's current session and records the logout.
func (s *AuthService) Logout(ctx context.Context, identity model.Identity) error {
	if identity.SessionID != "" {
		if _, err := s.sessions.Revoke(ctx, identity.SessionID, model.RevokeReasonManual); err != nil {
			return err
		}
	}
	s.audit.Record(ctx, model.AuthEvent{UserID: identity.UserID, Action: model.AuthEventLogout})
	return nil
}

// RevokeSession marks one session revoked. The bool reports whether
// this call performed the transition; callers decide whether an
// already-revoked session is a conflict.
func (s *AuthService) RevokeSession(ctx context.Context, sessionID string, reason string) (bool, error) {
	revoked, err := s.sessions.Revoke(ctx, sessionID, reason)
	if err != nil {
		return false, err
	}
	if revoked {
		s.audit.Record(ctx, model.AuthEvent{Action: model.AuthEventSessionRevoked, Detail: reason})
	}
	return revoked, nil
}

// RevokeAllSessions revokes every active session of a user, optionally
// sparing one, and returns how many were revoked.
func (s *AuthService) RevokeAllSessions(ctx context.Context, userID string, reason string, exceptSessionID string) (int64, error) {
	count, err := s.sessions.RevokeAll(ctx, userID, reason, exceptSessionID)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.audit.Record(ctx, model.AuthEvent{UserID: userID, Action: model.AuthEventSessionRevoked, Detail: reason})
	}
	return count, nil
}

// FindSession exposes a session row for ownership checks at the
// endpoint layer.
func (s *AuthService) FindSession(ctx context.Context, sessionID string) (model.Session, error) {
	return s.sessions.FindByID(ctx, sessionID)
}

// ListSessions returns the user-facing view of their active sessions,
// newest first, marking the one the requester is on.
func (s *AuthService) ListSessions(ctx context.Context, userID string, currentSessionID string) ([]model.SessionInfo, error) {
	sessions, err := s.sessions.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	infos := make([]model.SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, model.SessionInfo{
			ID:         s.ID,
			CreatedAt:  s.CreatedAt,
			LastUsedAt: s.LastUsedAt,
			UserAgent:  s.UserAgent,
			IPAddress:  s.IPAddress,
			IsCurrent:  s.ID == currentSessionID,
		})
	}
	return infos, nil
}

// HashRefreshToken computes the SHA-256 hex digest stored in place of
// the raw refresh token.
func HashRefreshToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// generateRefreshToken produces a 256-bit random token.
func generateRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
