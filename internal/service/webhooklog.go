package service

import (
	"context"
	"time"

	"github.com/fjlabrie/gestiobill/internal/config"
	"github.com/fjlabrie/gestiobill/internal/domain"
	"github.com/google/uuid"
)

// WebhookStore is the append-only audit log contract.
type WebhookStore interface {
	Insert(ctx context.Context, l *domain.WebhookLog) error
	SetResult(ctx context.Context, id uuid.UUID, status int, errMsg *string) error
	AttachDebugInfo(ctx context.Context, id uuid.UUID, info string) error
	Cleanup(ctx context.Context, successBefore, failureBefore time.Time) (int64, int64, error)
	ListRecent(ctx context.Context, limit int) ([]domain.WebhookLog, error)
}

type WebhookLogService struct {
	store WebhookStore
}

func NewWebhookLogService(store WebhookStore) *WebhookLogService {
	return &WebhookLogService{store: store}
}

// CleanupResult reports how many entries each retention class purged.
type CleanupResult struct {
	SuccessDeleted int64 `json:"successDeleted"`
	FailureDeleted int64 `json:"failureDeleted"`
}

// Cleanup applies the retention policy relative to now: successful
// deliveries kept 30 days, failed ones 90.
func (s *WebhookLogService) Cleanup(ctx context.Context, now time.Time) (CleanupResult, error) {
	succ, fail, err := s.store.Cleanup(ctx,
		now.Add(-config.RetentionSuccess),
		now.Add(-config.RetentionFailure),
	)
	if err != nil {
		return CleanupResult{}, err
	}
	return CleanupResult{SuccessDeleted: succ, FailureDeleted: fail}, nil
}

// Recent returns the latest audit entries for operator inspection.
func (s *WebhookLogService) Recent(ctx context.Context) ([]domain.WebhookLog, error) {
	return s.store.ListRecent(ctx, config.WebhookLogPageSize)
}
