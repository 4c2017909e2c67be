package service

import (
	"context"
	"testing"
	"time"

	"github.com/fjlabrie/gestiobill/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupRetentionCutoffs(t *testing.T) {
	store := newMemWebhookStore()
	svc := NewWebhookLogService(store)
	ctx := context.Background()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	insert := func(age time.Duration, status int) {
		l := &domain.WebhookLog{Endpoint: "/webhooks/helcim", Method: "POST"}
		require.NoError(t, store.Insert(ctx, l))
		store.mu.Lock()
		store.logs[l.ID].ProcessedAt = now.Add(-age)
		store.logs[l.ID].ResponseStatus = status
		store.mu.Unlock()
	}

	insert(10*24*time.Hour, 200)  // recent success, kept
	insert(45*24*time.Hour, 200)  // stale success, purged
	insert(45*24*time.Hour, 401)  // failure inside the 90-day window, kept
	insert(120*24*time.Hour, 500) // stale failure, purged

	res, err := svc.Cleanup(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.SuccessDeleted)
	assert.Equal(t, int64(1), res.FailureDeleted)
	assert.Equal(t, 2, store.count())

	assert.Equal(t, now.AddDate(0, 0, -30), store.cleanupSuccessBefore)
	assert.Equal(t, now.AddDate(0, 0, -90), store.cleanupFailureBefore)
}
