package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"rewardhub/internal/model"
)

const rewardColumns = `id, name, description, category, coin_cost, image_url, available,
	created_at, updated_at, deleted_at`

// RewardRepository handles the reward catalog.
type RewardRepository struct {
	db DBTX
}

// NewRewardRepository creates a new RewardRepository instance.
func NewRewardRepository(db DBTX) *RewardRepository {
	return &RewardRepository{db: db}
}

// WithTx returns a copy bound to tx.
func (r *RewardRepository) WithTx(tx pgx.Tx) *RewardRepository {
	return &RewardRepository{db: tx}
}

func scanReward(row pgx.Row) (*model.Reward, error) {
	var rw model.Reward
	err := row.Scan(
		&rw.ID,
		&rw.Name,
		&rw.Description,
		&rw.Category,
		&rw.CoinCost,
		&rw.ImageURL,
		&rw.Available,
		&rw.CreatedAt,
		&rw.UpdatedAt,
		&rw.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rw, nil
}

// Create inserts a reward.
func (r *RewardRepository) Create(ctx context.Context, rw *model.Reward) (*model.Reward, error) {
	query := `
		INSERT INTO rewards (id, name, description, category, coin_cost, image_url, available,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING ` + rewardColumns

	reward, err := scanReward(r.db.QueryRow(ctx, query,
		rw.ID, rw.Name, rw.Description, rw.Category, rw.CoinCost, rw.ImageURL, rw.Available,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create reward: %w", err)
	}
	return reward, nil
}

// Update overwrites the editable fields of a live reward.
func (r *RewardRepository) Update(ctx context.Context, rw *model.Reward) (*model.Reward, error) {
	query := `
		UPDATE rewards
		SET name = $2, description = $3, category = $4, coin_cost = $5, image_url = $6,
			available = $7, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING ` + rewardColumns

	reward, err := scanReward(r.db.QueryRow(ctx, query,
		rw.ID, rw.Name, rw.Description, rw.Category, rw.CoinCost, rw.ImageURL, rw.Available,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRewardNotFound
		}
		return nil, fmt.Errorf("failed to update reward: %w", err)
	}
	return reward, nil
}

// Delete hides a reward. Withdrawal requests keep their snapshot.
func (r *RewardRepository) Delete(ctx context.Context, id string) error {
	const query = `UPDATE rewards SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete reward: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrRewardNotFound
	}
	return nil
}

// GetByID retrieves a live reward.
func (r *RewardRepository) GetByID(ctx context.Context, id string) (*model.Reward, error) {
	query := `SELECT ` + rewardColumns + ` FROM rewards WHERE id = $1 AND deleted_at IS NULL`

	reward, err := scanReward(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRewardNotFound
		}
		return nil, fmt.Errorf("failed to get reward: %w", err)
	}
	return reward, nil
}

// List returns every live reward ordered by cost.
func (r *RewardRepository) List(ctx context.Context) ([]*model.Reward, error) {
	query := `SELECT ` + rewardColumns + ` FROM rewards WHERE deleted_at IS NULL ORDER BY coin_cost, name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list rewards: %w", err)
	}
	defer rows.Close()

	var rewards []*model.Reward
	for rows.Next() {
		reward, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reward: %w", err)
		}
		rewards = append(rewards, reward)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rewards: %w", err)
	}
	return rewards, nil
}
