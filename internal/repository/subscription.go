package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahmousavi39/Learn-Ai-sub000/internal/domain"
	"github.com/jackc/pgx/v5"
)

var (
	// ErrSubscriptionNotFound means no row exists for the given id.
	ErrSubscriptionNotFound = errors.New("subscription not found")
	// ErrAlreadyLinked means the unlinked purchase was claimed by someone else first.
	ErrAlreadyLinked = errors.New("subscription already linked")
)

const purchaseColumns = `platform, product_id, transaction_id, original_transaction_id, order_id,
	purchase_time, expiry_time, auto_renewing, environment, is_mock`

const unlinkedColumns = `id, ` + purchaseColumns + `, user_email, sealed_receipt, awaiting_user_link, link_expiration_time, created_at`

const linkedColumns = `id, ` + purchaseColumns + `, linked_user_id, linked_email, linked_at, is_active, updated_at`

// SubscriptionRepository stores staged and linked purchases plus user profiles.
type SubscriptionRepository struct {
	db DBTX
}

// NewSubscriptionRepository creates a new SubscriptionRepository.
func NewSubscriptionRepository(db DBTX) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// CreateUnlinked persists a verified purchase awaiting a claim.
func (r *SubscriptionRepository) CreateUnlinked(ctx context.Context, sub *domain.UnlinkedSubscription) error {
	p := sub.Purchase
	_, err := r.db.Exec(ctx, `INSERT INTO unlinked_subscriptions (`+unlinkedColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		sub.ID, p.Platform, p.ProductID, p.TransactionID, p.OriginalTransactionID, p.OrderID,
		p.PurchaseTime, p.ExpiryTime, p.AutoRenewing, p.Environment, p.IsMockPurchase,
		sub.UserEmail, sub.SealedReceipt, sub.AwaitingUserLink, sub.LinkExpirationTime, sub.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create unlinked subscription: %w", err)
	}
	return nil
}

// FindUnlinked returns nil, nil when the staged purchase no longer exists.
func (r *SubscriptionRepository) FindUnlinked(ctx context.Context, id string) (*domain.UnlinkedSubscription, error) {
	row := r.db.QueryRow(ctx, `SELECT `+unlinkedColumns+` FROM unlinked_subscriptions WHERE id = $1`, id)
	sub, err := scanUnlinked(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find unlinked subscription: %w", err)
	}
	return sub, nil
}

// Claim links the staged purchase id to userID in one transaction.
//
// The awaiting_user_link flag is flipped with a conditional UPDATE before
// anything else is written, so when two claims race exactly one of them sees
// a row affected. The loser gets ErrAlreadyLinked, or ErrSubscriptionNotFound
// if the winner already committed the delete.
func (r *SubscriptionRepository) Claim(ctx context.Context, id, userID, email string, now time.Time) (*domain.Subscription, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE unlinked_subscriptions SET awaiting_user_link = FALSE WHERE id = $1 AND awaiting_user_link = TRUE`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to lock unlinked subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM unlinked_subscriptions WHERE id = $1)`, id).Scan(&exists); err != nil {
			return nil, fmt.Errorf("failed to check unlinked subscription: %w", err)
		}
		if !exists {
			return nil, ErrSubscriptionNotFound
		}
		return nil, ErrAlreadyLinked
	}

	unlinked, err := scanUnlinked(tx.QueryRow(ctx, `SELECT `+unlinkedColumns+` FROM unlinked_subscriptions WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to load unlinked subscription: %w", err)
	}

	sub := &domain.Subscription{
		ID:           unlinked.ID,
		Purchase:     unlinked.Purchase,
		LinkedUserID: userID,
		LinkedEmail:  email,
		LinkedAt:     now,
		IsActive:     true,
		UpdatedAt:    now,
	}
	if err := insertLinked(ctx, tx, sub); err != nil {
		return nil, err
	}
	if err := upsertProfile(ctx, tx, sub); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM unlinked_subscriptions WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("failed to delete unlinked subscription: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}
	return sub, nil
}

// CreateLinked stores a purchase that was verified by a signed-in user.
func (r *SubscriptionRepository) CreateLinked(ctx context.Context, sub *domain.Subscription) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin link: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertLinked(ctx, tx, sub); err != nil {
		return err
	}
	if err := upsertProfile(ctx, tx, sub); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// FindByID returns nil, nil when no linked subscription has that id.
func (r *SubscriptionRepository) FindByID(ctx context.Context, id string) (*domain.Subscription, error) {
	row := r.db.QueryRow(ctx, `SELECT `+linkedColumns+` FROM subscriptions WHERE id = $1`, id)
	sub, err := scanLinked(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}
	return sub, nil
}

// ListByUser returns a user's subscriptions, newest link first.
func (r *SubscriptionRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Subscription, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+linkedColumns+` FROM subscriptions WHERE linked_user_id = $1 ORDER BY linked_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*domain.Subscription
	for rows.Next() {
		sub, err := scanLinked(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// UpdateStatus applies a renewal or cancellation and mirrors it into the
// owner's profile. The owner itself is never changed.
func (r *SubscriptionRepository) UpdateStatus(ctx context.Context, id string, isActive bool, expiry *time.Time, now time.Time) (*domain.Subscription, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin status update: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `UPDATE subscriptions
		SET is_active = $2, expiry_time = COALESCE($3, expiry_time), updated_at = $4
		WHERE id = $1
		RETURNING `+linkedColumns, id, isActive, expiry, now)
	sub, err := scanLinked(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update subscription: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE user_profiles
		SET is_premium = $2, subscription_expiry = $3, updated_at = $4
		WHERE user_id = $1 AND subscription_id = $5`,
		sub.LinkedUserID, sub.Valid(now), sub.ExpiryTime, now, sub.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit status update: %w", err)
	}
	return sub, nil
}

// FindProfile returns nil, nil for users without a profile.
func (r *SubscriptionRepository) FindProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	var p domain.Profile
	err := r.db.QueryRow(ctx, `SELECT user_id, email, subscription_id, product_id, is_premium, subscription_expiry, updated_at
		FROM user_profiles WHERE user_id = $1`, userID).
		Scan(&p.UserID, &p.Email, &p.SubscriptionID, &p.ProductID, &p.IsPremium, &p.SubscriptionExpiry, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	return &p, nil
}

// Counts reports staged and active linked subscriptions.
func (r *SubscriptionRepository) Counts(ctx context.Context) (unlinked, active int, err error) {
	err = r.db.QueryRow(ctx, `SELECT
		(SELECT COUNT(*) FROM unlinked_subscriptions WHERE awaiting_user_link),
		(SELECT COUNT(*) FROM subscriptions WHERE is_active)`).Scan(&unlinked, &active)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count subscriptions: %w", err)
	}
	return unlinked, active, nil
}

func insertLinked(ctx context.Context, tx pgx.Tx, sub *domain.Subscription) error {
	p := sub.Purchase
	_, err := tx.Exec(ctx, `INSERT INTO subscriptions (`+linkedColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		sub.ID, p.Platform, p.ProductID, p.TransactionID, p.OriginalTransactionID, p.OrderID,
		p.PurchaseTime, p.ExpiryTime, p.AutoRenewing, p.Environment, p.IsMockPurchase,
		sub.LinkedUserID, sub.LinkedEmail, sub.LinkedAt, sub.IsActive, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

func upsertProfile(ctx context.Context, tx pgx.Tx, sub *domain.Subscription) error {
	_, err := tx.Exec(ctx, `INSERT INTO user_profiles (user_id, email, subscription_id, product_id, is_premium, subscription_expiry, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			email = CASE WHEN EXCLUDED.email = '' THEN user_profiles.email ELSE EXCLUDED.email END,
			subscription_id = EXCLUDED.subscription_id,
			product_id = EXCLUDED.product_id,
			is_premium = EXCLUDED.is_premium,
			subscription_expiry = EXCLUDED.subscription_expiry,
			updated_at = EXCLUDED.updated_at`,
		sub.LinkedUserID, sub.LinkedEmail, sub.ID, sub.ProductID, sub.Valid(sub.LinkedAt), sub.ExpiryTime, sub.LinkedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

func scanUnlinked(row pgx.Row) (*domain.UnlinkedSubscription, error) {
	var s domain.UnlinkedSubscription
	p := &s.Purchase
	err := row.Scan(&s.ID, &p.Platform, &p.ProductID, &p.TransactionID, &p.OriginalTransactionID, &p.OrderID,
		&p.PurchaseTime, &p.ExpiryTime, &p.AutoRenewing, &p.Environment, &p.IsMockPurchase,
		&s.UserEmail, &s.SealedReceipt, &s.AwaitingUserLink, &s.LinkExpirationTime, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func scanLinked(row pgx.Row) (*domain.Subscription, error) {
	var s domain.Subscription
	p := &s.Purchase
	err := row.Scan(&s.ID, &p.Platform, &p.ProductID, &p.TransactionID, &p.OriginalTransactionID, &p.OrderID,
		&p.PurchaseTime, &p.ExpiryTime, &p.AutoRenewing, &p.Environment, &p.IsMockPurchase,
		&s.LinkedUserID, &s.LinkedEmail, &s.LinkedAt, &s.IsActive, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
