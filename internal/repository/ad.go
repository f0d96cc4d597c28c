package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"rewardhub/internal/model"
)

// AdRepository handles popup ads and their views.
type AdRepository struct {
	db DBTX
}

// NewAdRepository creates a new AdRepository instance.
func NewAdRepository(db DBTX) *AdRepository {
	return &AdRepository{db: db}
}

// WithTx returns a copy bound to tx.
func (r *AdRepository) WithTx(tx pgx.Tx) *AdRepository {
	return &AdRepository{db: tx}
}

// Create inserts an ad.
func (r *AdRepository) Create(ctx context.Context, ad *model.PopupAd) (*model.PopupAd, error) {
	const query = `
		INSERT INTO popup_ads (id, html_content, duration_seconds, coin_reward, active, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, html_content, duration_seconds, coin_reward, active, created_at
	`

	var out model.PopupAd
	err := r.db.QueryRow(ctx, query, ad.ID, ad.HTMLContent, ad.DurationSeconds, ad.CoinReward, ad.Active).Scan(
		&out.ID, &out.HTMLContent, &out.DurationSeconds, &out.CoinReward, &out.Active, &out.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ad: %w", err)
	}
	return &out, nil
}

// SetActive toggles whether an ad is shown.
func (r *AdRepository) SetActive(ctx context.Context, id string, active bool) error {
	result, err := r.db.Exec(ctx, `UPDATE popup_ads SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("failed to update ad: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAdNotFound
	}
	return nil
}

// GetByID retrieves an ad.
func (r *AdRepository) GetByID(ctx context.Context, id string) (*model.PopupAd, error) {
	const query = `
		SELECT id, html_content, duration_seconds, coin_reward, active, created_at
		FROM popup_ads
		WHERE id = $1
	`

	var ad model.PopupAd
	err := r.db.QueryRow(ctx, query, id).Scan(
		&ad.ID, &ad.HTMLContent, &ad.DurationSeconds, &ad.CoinReward, &ad.Active, &ad.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAdNotFound
		}
		return nil, fmt.Errorf("failed to get ad: %w", err)
	}
	return &ad, nil
}

// ListActive returns the ads currently shown to users.
func (r *AdRepository) ListActive(ctx context.Context) ([]*model.PopupAd, error) {
	const query = `
		SELECT id, html_content, duration_seconds, coin_reward, active, created_at
		FROM popup_ads
		WHERE active
		ORDER BY created_at
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list ads: %w", err)
	}
	defer rows.Close()

	var ads []*model.PopupAd
	for rows.Next() {
		var ad model.PopupAd
		if err := rows.Scan(&ad.ID, &ad.HTMLContent, &ad.DurationSeconds, &ad.CoinReward, &ad.Active, &ad.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ad: %w", err)
		}
		ads = append(ads, &ad)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ads: %w", err)
	}
	return ads, nil
}

// CreateView records that a user started viewing an ad.
func (r *AdRepository) CreateView(ctx context.Context, id, userID, adID string, startedAt time.Time) (*model.AdView, error) {
	const query = `
		INSERT INTO ad_views (id, user_id, ad_id, started_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, ad_id, started_at, claimed_at
	`

	var v model.AdView
	err := r.db.QueryRow(ctx, query, id, userID, adID, startedAt).Scan(&v.ID, &v.UserID, &v.AdID, &v.StartedAt, &v.ClaimedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create ad view: %w", err)
	}
	return &v, nil
}

// GetViewForUpdate retrieves an ad view and locks its row.
func (r *AdRepository) GetViewForUpdate(ctx context.Context, id string) (*model.AdView, error) {
	const query = `
		SELECT id, user_id, ad_id, started_at, claimed_at
		FROM ad_views
		WHERE id = $1
		FOR UPDATE
	`

	var v model.AdView
	err := r.db.QueryRow(ctx, query, id).Scan(&v.ID, &v.UserID, &v.AdID, &v.StartedAt, &v.ClaimedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAdViewNotFound
		}
		return nil, fmt.Errorf("failed to get ad view: %w", err)
	}
	return &v, nil
}

// MarkClaimed stamps an unclaimed view as claimed.
func (r *AdRepository) MarkClaimed(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.Exec(ctx, `UPDATE ad_views SET claimed_at = $2 WHERE id = $1 AND claimed_at IS NULL`, id, at)
	if err != nil {
		return fmt.Errorf("failed to claim ad view: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAdViewNotFound
	}
	return nil
}

// CountClaimed returns the number of rewarded ad views.
func (r *AdRepository) CountClaimed(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM ad_views WHERE claimed_at IS NOT NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count ad views: %w", err)
	}
	return n, nil
}
