package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"billing-service/internal/domain/purchase"
	"billing-service/internal/domain/subscription"
	xerrors "billing-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

// SubscriptionRepository persists subscription aggregates keyed by
// user. The aggregate travels as its wire JSON; gateway, product id,
// expiry and the full Play Store token set are denormalized into
// columns for lookups.
//
// Schema:
//
//	CREATE TABLE subscriptions (
//	    user_id         TEXT PRIMARY KEY,
//	    gateway         TEXT NOT NULL,
//	    product_id      TEXT NOT NULL,
//	    expires_at      TIMESTAMPTZ,
//	    purchase_tokens TEXT[] NOT NULL DEFAULT '{}',
//	    payload         JSONB NOT NULL,
//	    created_at      TIMESTAMPTZ NOT NULL,
//	    updated_at      TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX idx_subscriptions_tokens ON subscriptions USING GIN (purchase_tokens);
type SubscriptionRepository struct {
	db *pgxpool.Pool
}

func NewSubscriptionRepository(db *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// FindByUserID retrieves a user's subscription.
func (r *SubscriptionRepository) FindByUserID(ctx context.Context, userID string) (*subscription.Subscription, error) {
	query := `
		SELECT payload
		FROM subscriptions
		WHERE user_id = $1
	`

	var payload []byte
	err := r.db.QueryRow(ctx, query, userID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}

	return decodePayload(payload)
}

// FindByPurchaseToken retrieves the subscription owning a Play Store
// purchase token, current or historical. Store notifications only carry
// a token, so this is how they are mapped back to a user.
func (r *SubscriptionRepository) FindByPurchaseToken(ctx context.Context, token string) (*subscription.Subscription, error) {
	query := `
		SELECT payload
		FROM subscriptions
		WHERE $1 = ANY(purchase_tokens)
	`

	var payload []byte
	err := r.db.QueryRow(ctx, query, token).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find subscription by token: %w", err)
	}

	return decodePayload(payload)
}

// Upsert writes the aggregate, replacing any previous state for the
// user.
func (r *SubscriptionRepository) Upsert(ctx context.Context, sub subscription.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			user_id, gateway, product_id, expires_at, purchase_tokens,
			payload, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			gateway = EXCLUDED.gateway,
			product_id = EXCLUDED.product_id,
			expires_at = EXCLUDED.expires_at,
			purchase_tokens = EXCLUDED.purchase_tokens,
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
	`

	payload, err := json.Marshal(sub.ToWire())
	if err != nil {
		return fmt.Errorf("failed to marshal subscription payload: %w", err)
	}

	active, err := sub.ActivePurchase()
	if err != nil {
		return err
	}

	tokens := pq.StringArray{}
	if play := sub.PlayStorePurchase(); play != nil {
		tokens = pq.StringArray(play.AllPurchaseTokens())
	}

	_, err = r.db.Exec(
		ctx, query,
		sub.UserID(), sub.Gateway().String(), active.ProductID(), active.ExpiresAt(), tokens,
		payload, sub.CreatedAt(), sub.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}

	return nil
}

// Delete removes a user's subscription, e.g. on account deletion.
func (r *SubscriptionRepository) Delete(ctx context.Context, userID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM subscriptions WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// ListExpiringBefore returns the user ids of auto-renewing store
// subscriptions whose nominal expiry falls before the cutoff, for
// background refresh of verification data.
func (r *SubscriptionRepository) ListExpiringBefore(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	query := `
		SELECT user_id
		FROM subscriptions
		WHERE expires_at IS NOT NULL AND expires_at < $1 AND gateway <> $2
		ORDER BY expires_at
		LIMIT $3
	`

	rows, err := r.db.Query(ctx, query, cutoff, purchase.GatewayFree.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring subscriptions: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		userIDs = append(userIDs, userID)
	}
	return userIDs, rows.Err()
}

func decodePayload(payload []byte) (*subscription.Subscription, error) {
	var wire map[string]interface{}
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("failed to unmarshal subscription payload: %w", err)
	}
	sub, err := subscription.FromWire(wire)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
