package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/fjlabrie/gestiobill/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type WebhookStore struct {
	db *pgxpool.Pool
}

func NewWebhookStore(db *pgxpool.Pool) *WebhookStore {
	return &WebhookStore{db: db}
}

// Insert appends the delivery record. Called before any business
// processing so that failures stay diagnosable.
func (s *WebhookStore) Insert(ctx context.Context, l *domain.WebhookLog) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO webhook_logs (id, endpoint, method, headers, body, signature, response_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING processed_at`,
		l.ID, l.Endpoint, l.Method, l.Headers, l.Body, l.Signature, l.ResponseStatus,
	).Scan(&l.ProcessedAt)
	if err != nil {
		return fmt.Errorf("insert webhook log: %w", err)
	}
	return nil
}

func (s *WebhookStore) SetResult(ctx context.Context, id uuid.UUID, status int, errMsg *string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE webhook_logs SET response_status = $1, error = $2 WHERE id = $3`,
		status, errMsg, id,
	)
	if err != nil {
		return fmt.Errorf("set webhook result: %w", err)
	}
	return nil
}

// AttachDebugInfo appends follow-up diagnostics to an existing entry, the
// only mutation the append-only log permits.
func (s *WebhookStore) AttachDebugInfo(ctx context.Context, id uuid.UUID, info string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE webhook_logs
		SET debug_info = COALESCE(debug_info || E'\n', '') || $1
		WHERE id = $2`,
		info, id,
	)
	if err != nil {
		return fmt.Errorf("attach debug info: %w", err)
	}
	return nil
}

// Cleanup applies the retention policy: successful deliveries (2xx/3xx)
// are purged after the short window, failed ones (4xx/5xx) after the long
// one. Returns the per-class deletion counts.
func (s *WebhookStore) Cleanup(ctx context.Context, successBefore, failureBefore time.Time) (int64, int64, error) {
	succ, err := s.db.Exec(ctx, `
		DELETE FROM webhook_logs
		WHERE response_status BETWEEN 200 AND 399 AND processed_at < $1`,
		successBefore,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("cleanup successful webhook logs: %w", err)
	}
	fail, err := s.db.Exec(ctx, `
		DELETE FROM webhook_logs
		WHERE (response_status < 200 OR response_status >= 400) AND processed_at < $1`,
		failureBefore,
	)
	if err != nil {
		return succ.RowsAffected(), 0, fmt.Errorf("cleanup failed webhook logs: %w", err)
	}
	return succ.RowsAffected(), fail.RowsAffected(), nil
}

func (s *WebhookStore) ListRecent(ctx context.Context, limit int) ([]domain.WebhookLog, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, endpoint, method, headers, body, signature, response_status, error, debug_info, processed_at
		FROM webhook_logs ORDER BY processed_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list webhook logs: %w", err)
	}
	defer rows.Close()

	var out []domain.WebhookLog
	for rows.Next() {
		var l domain.WebhookLog
		if err := rows.Scan(&l.ID, &l.Endpoint, &l.Method, &l.Headers, &l.Body,
			&l.Signature, &l.ResponseStatus, &l.Error, &l.DebugInfo, &l.ProcessedAt); err != nil {
			return nil, fmt.Errorf("scan webhook log: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
