package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-realty-portal/internal/model"
)

// SessionRepository owns session rows. Rows are never deleted; a
// revocation only flips is_revoked and records when and why, so the
// audit history of every device stays intact.
type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) Create(ctx context.Context, userID string, refreshTokenHash string, userAgent string, ipAddress string) (model.Session, error) {
	now := time.Now().UTC()
	s := model.Session{
		ID:               uuid.NewString(),
		UserID:           userID,
		RefreshTokenHash: refreshTokenHash,
		UserAgent:        userAgent,
		IPAddress:        ipAddress,
		CreatedAt:        now,
		LastUsedAt:       now,
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO sessions (id, user_id, refresh_token_hash, user_agent, ip_address, created_at, last_used_at, is_revoked)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE)`,
		s.ID, s.UserID, s.RefreshTokenHash, nullable(s.UserAgent), nullable(s.IPAddress), s.CreatedAt, s.LastUsedAt)
	if err != nil {
		return model.Session{}, fmt.Errorf("create session: %w", err)
	}
	return s, nil
}

func (r *SessionRepository) FindByID(ctx context.Context, sessionID string) (model.Session, error) {
	return r.scanOne(r.pool.QueryRow(ctx,
		`SELECT id, user_id, refresh_token_hash, user_agent, ip_address,
		        created_at, last_used_at, is_revoked, revoked_at, revoked_reason
		 FROM sessions WHERE id = $1`, sessionID))
}

// FindActiveByTokenHash resolves a presented refresh token (already
// hashed) to its live session. Revoked sessions never match.
func (r *SessionRepository) FindActiveByTokenHash(ctx context.Context, tokenHash string) (model.Session, error) {
	return r.scanOne(r.pool.QueryRow(ctx,
		`SELECT id, user_id, refresh_token_hash, user_agent, ip_address,
		        created_at, last_used_at, is_revoked, revoked_at, revoked_reason
		 FROM sessions WHERE refresh_token_hash = $1 AND is_revoked = FALSE`, tokenHash))
}

func (r *SessionRepository) ListActive(ctx context.Context, userID string) ([]model.Session, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, refresh_token_hash, user_agent, ip_address,
		        created_at, last_used_at, is_revoked, revoked_at, revoked_reason
		 FROM sessions WHERE user_id = $1 AND is_revoked = FALSE
		 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]model.Session, 0)
	for rows.Next() {
		s, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Revoke marks a session revoked. Revoking an already-revoked session
// is a no-op at this layer; the returned bool reports whether this call
// performed the transition, so endpoints can surface a conflict.
func (r *SessionRepository) Revoke(ctx context.Context, sessionID string, reason string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sessions SET is_revoked = TRUE, revoked_at = $2, revoked_reason = $3
		 WHERE id = $1 AND is_revoked = FALSE`,
		sessionID, time.Now().UTC(), reason)
	if err != nil {
		return false, fmt.Errorf("revoke session: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// RevokeAll revokes every active session of a user, optionally keeping
// one alive. Returns the number of sessions revoked.
func (r *SessionRepository) RevokeAll(ctx context.Context, userID string, reason string, exceptSessionID string) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sessions SET is_revoked = TRUE, revoked_at = $2, revoked_reason = $3
		 WHERE user_id = $1 AND is_revoked = FALSE
		   AND (NULLIF($4, '')::uuid IS NULL OR id <> NULLIF($4, '')::uuid)`,
		userID, time.Now().UTC(), reason, exceptSessionID)
	if err != nil {
		return 0, fmt.Errorf("revoke all sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *SessionRepository) TouchLastUsed(ctx context.Context, sessionID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE sessions SET last_used_at = $2 WHERE id = $1`,
		sessionID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SessionRepository) scanOne(row rowScanner) (model.Session, error) {
	s, err := r.scanRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Session{}, model.ErrSessionNotFound
	}
	return s, err
}

func (r *SessionRepository) scanRow(row rowScanner) (model.Session, error) {
	var s model.Session
	var userAgent, ipAddress, revokedReason *string
	err := row.Scan(&s.ID, &s.UserID, &s.RefreshTokenHash, &userAgent, &ipAddress,
		&s.CreatedAt, &s.LastUsedAt, &s.IsRevoked, &s.RevokedAt, &revokedReason)
	if err != nil {
		return model.Session{}, err
	}

	if userAgent != nil {
		s.UserAgent = *userAgent
	}
	if ipAddress != nil {
		s.IPAddress = *ipAddress
	}
	if revokedReason != nil {
		s.RevokedReason = *revokedReason
	}
	return s, nil
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
