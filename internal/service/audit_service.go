package service

import (
	"context"
	"log/slog"
	"time"

	"go-realty-portal/internal/model"
)

type EventStore interface {
	Insert(ctx context.Context, event model.AuthEvent) error
	ListByUser(ctx context.Context, userID string, limit int) ([]model.AuthEvent, error)
}

// AuditService records authentication events. Recording is best-effort:
// a failed insert is logged and swallowed so auditing can never block
// an admission decision.
type AuditService struct {
	store EventStore
}

func NewAuditService(store EventStore) *AuditService {
	return &AuditService{store: store}
}

func (s *AuditService) Record(ctx context.Context, event model.AuthEvent) {
	if s == nil || s.store == nil {
		return
	}

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	if err := s.store.Insert(ctx, event); err != nil {
		slog.Warn("failed to record auth event", "action", event.Action, "error", err)
	}
}

func (s *AuditService) History(ctx context.Context, userID string, limit int) ([]model.AuthEvent, error) {
	return s.store.ListByUser(ctx, userID, limit)
}
