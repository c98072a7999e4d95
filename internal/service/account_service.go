package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"go-realty-portal/internal/model"
	"go-realty-portal/internal/token"
)

const bcryptCost = 12

// AccountStore extends the read-only user collaborator with the writes
// the account flows need.
type AccountStore interface {
	UserStore
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, u model.User) error
	UpdatePassword(ctx context.Context, userID string, passwordHash string) error
}

type InviteStore interface {
	Create(ctx context.Context, email string, role string, invitedBy string, ttl time.Duration) (model.Invite, error)
	FindByID(ctx context.Context, id string) (model.Invite, error)
	MarkUsed(ctx context.Context, id string) (bool, error)
}

// Mailer is the outbound-email collaborator. Delivery is out of scope
// for this service; LogMailer stands in where no provider is wired.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email string, resetToken string) error
	SendInvite(ctx context.Context, email string, inviteToken string) error
}

// LogMailer logs instead of sending. It never logs the token itself.
type LogMailer struct{}

func (LogMailer) SendPasswordReset(_ context.Context, email string, _ string) error {
	slog.Info("password reset issued", "email", email)
	return nil
}

func (LogMailer) SendInvite(_ context.Context, email string, _ string) error {
	slog.Info("invite issued", "email", email)
	return nil
}

// AccountService implements registration, the password-reset flow and
// realtor invites on top of the user collaborator and the token codec.
type AccountService struct {
	users     AccountStore
	sessions  SessionStore
	invites   InviteStore
	codec     *token.Codec
	mailer    Mailer
	audit     *AuditService
	resetTTL  time.Duration
	inviteTTL time.Duration
}

func NewAccountService(users AccountStore, sessions SessionStore, invites InviteStore, codec *token.Codec, mailer Mailer, audit *AuditService, resetTTL time.Duration, inviteTTL time.Duration) *AccountService {
	if mailer == nil {
		mailer = LogMailer{}
	}

	return &AccountService{
		users:     users,
		sessions:  sessions,
		invites:   invites,
		codec:     codec,
		mailer:    mailer,
		audit:     audit,
		resetTTL:  resetTTL,
		inviteTTL: inviteTTL,
	}
}

func (s *AccountService) Register(ctx context.Context, email string, password string, role string) (model.AuthUser, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	password = strings.TrimSpace(password)

	if email == "" || password == "" {
		return model.AuthUser{}, fmt.Errorf("%w: email and password are required", model.ErrInvalidInput)
	}
	if len(password) < 8 {
		return model.AuthUser{}, fmt.Errorf("%w: password must be at least 8 characters", model.ErrInvalidInput)
	}
	if role == "" {
		role = model.RoleBuyer
	}
	if !model.ValidRole(role) {
		return model.AuthUser{}, fmt.Errorf("%w: invalid role %q", model.ErrInvalidInput, role)
	}

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return model.AuthUser{}, err
	}
	if exists {
		return model.AuthUser{}, model.ErrUserAlreadyExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return model.AuthUser{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return model.AuthUser{}, err
	}

	return model.AuthUser{ID: user.ID, Email: user.Email, Role: user.Role}, nil
}

// ForgotPassword issues a reset token if the account exists. The
// response is identical either way so the endpoint cannot be used to
// enumerate registered addresses.
func (s *AccountService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil
		}
		return err
	}

	resetToken, err := s.codec.IssuePasswordReset(user.ID, user.Email, s.resetTTL)
	if err != nil {
		return err
	}

	if err := s.mailer.SendPasswordReset(ctx, user.Email, resetToken); err != nil {
		// Delivery failure must not become an enumeration oracle.
		slog.Error("failed to send password reset", "error", err)
	}
	return nil
}

// ResetPassword consumes a reset-kind token, updates the credential and
// revokes every session the user has.
func (s *AccountService) ResetPassword(ctx context.Context, rawToken string, newPassword string) error {
	claims, err := s.codec.VerifyPasswordReset(rawToken)
	if err != nil {
		return err
	}

	newPassword = strings.TrimSpace(newPassword)
	if len(newPassword) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", model.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, claims.Subject, string(hash)); err != nil {
		return err
	}

	if _, err := s.sessions.RevokeAll(ctx, claims.Subject, model.RevokeReasonManual, ""); err != nil {
		slog.Warn("failed to revoke sessions after password reset", "user_id", claims.Subject, "error", err)
	}

	s.audit.Record(ctx, model.AuthEvent{UserID: claims.Subject, Action: model.AuthEventPasswordReset})
	return nil
}

// CreateInvite records an invite row and returns it with its signed
// token for delivery.
func (s *AccountService) CreateInvite(ctx context.Context, email string, role string, invitedBy string) (model.Invite, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return model.Invite{}, "", fmt.Errorf("%w: email is required", model.ErrInvalidInput)
	}
	if role == "" {
		role = model.RoleBuyer
	}
	if !model.ValidRole(role) {
		return model.Invite{}, "", fmt.Errorf("%w: invalid role %q", model.ErrInvalidInput, role)
	}

	invite, err := s.invites.Create(ctx, email, role, invitedBy, s.inviteTTL)
	if err != nil {
		return model.Invite{}, "", err
	}

	inviteToken, err := s.codec.IssueInvite(invite.ID, invite.Email, s.inviteTTL)
	if err != nil {
		return model.Invite{}, "", err
	}

	if err := s.mailer.SendInvite(ctx, invite.Email, inviteToken); err != nil {
		slog.Error("failed to send invite", "error", err)
	}
	return invite, inviteToken, nil
}

// AcceptInvite consumes a single-use invite and creates the account it
// named.
func (s *AccountService) AcceptInvite(ctx context.Context, rawToken string, password string) (model.AuthUser, error) {
	claims, err := s.codec.VerifyInvite(rawToken)
	if err != nil {
		return model.AuthUser{}, err
	}

	invite, err := s.invites.FindByID(ctx, claims.Subject)
	if err != nil {
		return model.AuthUser{}, err
	}
	if invite.UsedAt != nil {
		return model.AuthUser{}, model.ErrInviteUsed
	}
	if time.Now().After(invite.ExpiresAt) {
		return model.AuthUser{}, model.ErrTokenExpired
	}
	if !strings.EqualFold(invite.Email, claims.Email) {
		return model.AuthUser{}, model.ErrTokenMalformed
	}

	user, err := s.Register(ctx, invite.Email, password, invite.Role)
	if err != nil {
		return model.AuthUser{}, err
	}

	used, err := s.invites.MarkUsed(ctx, invite.ID)
	if err != nil {
		return model.AuthUser{}, err
	}
	if !used {
		return model.AuthUser{}, model.ErrInviteUsed
	}

	s.audit.Record(ctx, model.AuthEvent{UserID: user.ID, Action: model.AuthEventInviteAccepted})
	return user, nil
}
