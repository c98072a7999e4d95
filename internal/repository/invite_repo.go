package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-realty-portal/internal/model"
)

type InviteRepository struct {
	pool *pgxpool.Pool
}

func NewInviteRepository(pool *pgxpool.Pool) *InviteRepository {
	return &InviteRepository{pool: pool}
}

func (r *InviteRepository) Create(ctx context.Context, email string, role string, invitedBy string, ttl time.Duration) (model.Invite, error) {
	now := time.Now().UTC()
	inv := model.Invite{
		ID:        uuid.NewString(),
		Email:     strings.ToLower(strings.TrimSpace(email)),
		Role:      role,
		InvitedBy: invitedBy,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO invites (id, email, role, invited_by, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		inv.ID, inv.Email, inv.Role, inv.InvitedBy, inv.CreatedAt, inv.ExpiresAt)
	if err != nil {
		return model.Invite{}, fmt.Errorf("create invite: %w", err)
	}
	return inv, nil
}

func (r *InviteRepository) FindByID(ctx context.Context, id string) (model.Invite, error) {
	var inv model.Invite
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, role, invited_by, created_at, expires_at, used_at
		 FROM invites WHERE id = $1`, id).
		Scan(&inv.ID, &inv.Email, &inv.Role, &inv.InvitedBy, &inv.CreatedAt, &inv.ExpiresAt, &inv.UsedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.Invite{}, model.ErrInviteNotFound
	}
	if err != nil {
		return model.Invite{}, fmt.Errorf("find invite: %w", err)
	}
	return inv, nil
}

// MarkUsed consumes an invite exactly once. The bool reports whether
// this call performed the transition.
func (r *InviteRepository) MarkUsed(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE invites SET used_at = $2 WHERE id = $1 AND used_at IS NULL`,
		id, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("mark invite used: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
