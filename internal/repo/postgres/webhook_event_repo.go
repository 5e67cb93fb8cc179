package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// WebhookEventRepo deduplicates provider webhook deliveries. The unique
// (provider, event_id) pair makes at-least-once delivery safe: a redelivered
// event is detected before any state transition runs. Quarantined events
// (amount mismatches, unknown references) keep their processing error for
// manual review.
type WebhookEventRepo struct {
	pool *pgxpool.Pool
}

func NewWebhookEventRepo(pool *pgxpool.Pool) *WebhookEventRepo {
	return &WebhookEventRepo{pool: pool}
}

// InsertIfAbsent records the delivery and reports whether this is the first
// time the event id has been seen.
func (r *WebhookEventRepo) InsertIfAbsent(ctx context.Context, provider, eventID, eventType string, payload []byte) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	eventID = strings.TrimSpace(eventID)
	if provider == "" || eventID == "" {
		return false, fmt.Errorf("invalid webhook event payload")
	}
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	tag, err := r.pool.Exec(ctx, `
INSERT INTO webhook_events (provider, event_id, event_type, payload, created_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (provider, event_id) DO NOTHING
`, provider, eventID, strings.TrimSpace(eventType), payload)
	if err != nil {
		return false, fmt.Errorf("insert webhook event: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// IsProcessed reports whether the event carries a processed stamp. A row
// without one marks a delivery that was recorded but never finished, which
// the confirmation flow re-runs on redelivery.
func (r *WebhookEventRepo) IsProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	eventID = strings.TrimSpace(eventID)
	if provider == "" || eventID == "" {
		return false, fmt.Errorf("invalid webhook event key")
	}

	var processed bool
	if err := r.pool.QueryRow(ctx, `
SELECT processed_at IS NOT NULL
FROM webhook_events
WHERE provider = $1
  AND event_id = $2
`, provider, eventID).Scan(&processed); err != nil {
		return false, fmt.Errorf("check webhook event processed: %w", err)
	}

	return processed, nil
}

// MarkProcessed stamps the event; a non-empty processingError flags it for
// manual review without blocking the provider's redelivery loop.
func (r *WebhookEventRepo) MarkProcessed(ctx context.Context, provider, eventID, processingError string) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	eventID = strings.TrimSpace(eventID)
	if provider == "" || eventID == "" {
		return fmt.Errorf("invalid webhook event key")
	}

	if _, err := r.pool.Exec(ctx, `
UPDATE webhook_events
SET
	processed_at = NOW(),
	processing_error = $3
WHERE provider = $1
  AND event_id = $2
`, provider, eventID, strings.TrimSpace(processingError)); err != nil {
		return fmt.Errorf("mark webhook event processed: %w", err)
	}

	return nil
}
