package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"go-realty-portal/internal/model"
)

type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]model.User
}

func newFakeUserStore(users ...model.User) *fakeUserStore {
	s := &fakeUserStore{users: map[string]model.User{}}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *fakeUserStore) FindByID(_ context.Context, id string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.DeletedAt != nil {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (s *fakeUserStore) FindByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == strings.ToLower(strings.TrimSpace(email)) && u.DeletedAt == nil {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (s *fakeUserStore) ExistsByEmail(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == strings.ToLower(strings.TrimSpace(email)) {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeUserStore) Create(_ context.Context, u model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

func (s *fakeUserStore) UpdatePassword(_ context.Context, userID string, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return model.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	s.users[userID] = u
	return nil
}

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
	failWith error
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: map[string]*model.Session{}}
}

func (s *fakeSessionStore) Create(_ context.Context, userID string, refreshTokenHash string, userAgent string, ipAddress string) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return model.Session{}, s.failWith
	}
	now := time.Now().UTC()
	sess := &model.Session{
		ID:               uuid.NewString(),
		UserID:           userID,
		RefreshTokenHash: refreshTokenHash,
		UserAgent:        userAgent,
		IPAddress:        ipAddress,
		CreatedAt:        now,
		LastUsedAt:       now,
	}
	s.sessions[sess.ID] = sess
	return *sess, nil
}

func (s *fakeSessionStore) FindByID(_ context.Context, sessionID string) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return model.Session{}, s.failWith
	}
	sess, ok := s.sessions[sessionID]
	if !ok {
		return model.Session{}, model.ErrSessionNotFound
	}
	return *sess, nil
}

func (s *fakeSessionStore) FindActiveByTokenHash(_ context.Context, tokenHash string) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return model.Session{}, s.failWith
	}
	for _, sess := range s.sessions {
		if sess.RefreshTokenHash == tokenHash && !sess.IsRevoked {
			return *sess, nil
		}
	}
	return model.Session{}, model.ErrSessionNotFound
}

func (s *fakeSessionStore) ListActive(_ context.Context, userID string) ([]model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Session, 0)
	for _, sess := range s.sessions {
		if sess.UserID == userID && !sess.IsRevoked {
			out = append(out, *sess)
		}
	}
	return out, nil
}

func (s *fakeSessionStore) Revoke(_ context.Context, sessionID string, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok || sess.IsRevoked {
		return false, nil
	}
	now := time.Now().UTC()
	sess.IsRevoked = true
	sess.RevokedAt = &now
	sess.RevokedReason = reason
	return true, nil
}

func (s *fakeSessionStore) RevokeAll(_ context.Context, userID string, reason string, exceptSessionID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	now := time.Now().UTC()
	for _, sess := range s.sessions {
		if sess.UserID != userID || sess.IsRevoked || sess.ID == exceptSessionID {
			continue
		}
		sess.IsRevoked = true
		sess.RevokedAt = &now
		sess.RevokedReason = reason
		count++
	}
	return count, nil
}

func (s *fakeSessionStore) TouchLastUsed(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		sess.LastUsedAt = time.Now().UTC()
	}
	return nil
}

// setCreatedAt backdates a session for max-age tests.
func (s *fakeSessionStore) setCreatedAt(sessionID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		sess.CreatedAt = at
	}
}

func (s *fakeSessionStore) get(sessionID string) model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.sessions[sessionID]
}

type fakeInviteStore struct {
	mu      sync.Mutex
	invites map[string]*model.Invite
}

func newFakeInviteStore() *fakeInviteStore {
	return &fakeInviteStore{invites: map[string]*model.Invite{}}
}

func (s *fakeInviteStore) Create(_ context.Context, email string, role string, invitedBy string, ttl time.Duration) (model.Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	inv := &model.Invite{
		ID:        uuid.NewString(),
		Email:     strings.ToLower(strings.TrimSpace(email)),
		Role:      role,
		InvitedBy: invitedBy,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	s.invites[inv.ID] = inv
	return *inv, nil
}

func (s *fakeInviteStore) FindByID(_ context.Context, id string) (model.Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invites[id]
	if !ok {
		return model.Invite{}, model.ErrInviteNotFound
	}
	return *inv, nil
}

func (s *fakeInviteStore) MarkUsed(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invites[id]
	if !ok || inv.UsedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	inv.UsedAt = &now
	return true, nil
}

type fakeEventStore struct {
	mu     sync.Mutex
	events []model.AuthEvent
}

func (s *fakeEventStore) Insert(_ context.Context, event model.AuthEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *fakeEventStore) ListByUser(_ context.Context, userID string, _ int) ([]model.AuthEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.AuthEvent, 0)
	for _, e := range s.events {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeEventStore) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Action)
	}
	return out
}

type captureMailer struct {
	mu          sync.Mutex
	resetTokens map[string]string
	invites     map[string]string
}

func newCaptureMailer() *captureMailer {
	return &captureMailer{resetTokens: map[string]string{}, invites: map[string]string{}}
}

func (m *captureMailer) SendPasswordReset(_ context.Context, email string, resetToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetTokens[email] = resetToken
	return nil
}

func (m *captureMailer) SendInvite(_ context.Context, email string, inviteToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invites[email] = inviteToken
	return nil
}
