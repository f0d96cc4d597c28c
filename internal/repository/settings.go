package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"rewardhub/internal/model"
)

// settingsID is the key of the singleton settings row.
const settingsID = "global"

// SettingsRepository handles the singleton system settings row.
type SettingsRepository struct {
	db DBTX
}

// NewSettingsRepository creates a new SettingsRepository instance.
func NewSettingsRepository(db DBTX) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// WithTx returns a copy bound to tx.
func (r *SettingsRepository) WithTx(tx pgx.Tx) *SettingsRepository {
	return &SettingsRepository{db: tx}
}

// EnsureDefaults inserts the settings row with s unless it already exists.
func (r *SettingsRepository) EnsureDefaults(ctx context.Context, s model.Settings) error {
	const query = `
		INSERT INTO settings (id, min_withdrawal_coins, referral_reward, inviter_reward,
			min_referrals_for_withdrawal, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.db.Exec(ctx, query, settingsID,
		s.MinWithdrawalCoins, s.ReferralReward, s.InviterReward, s.MinReferralsForWithdrawal)
	if err != nil {
		return fmt.Errorf("failed to seed settings: %w", err)
	}
	return nil
}

// Get reads the current settings.
func (r *SettingsRepository) Get(ctx context.Context) (*model.Settings, error) {
	const query = `
		SELECT min_withdrawal_coins, referral_reward, inviter_reward, min_referrals_for_withdrawal, updated_at
		FROM settings
		WHERE id = $1
	`

	var s model.Settings
	err := r.db.QueryRow(ctx, query, settingsID).Scan(
		&s.MinWithdrawalCoins,
		&s.ReferralReward,
		&s.InviterReward,
		&s.MinReferralsForWithdrawal,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return &s, nil
}

// Update overwrites the settings row.
func (r *SettingsRepository) Update(ctx context.Context, s model.Settings) (*model.Settings, error) {
	const query = `
		UPDATE settings
		SET min_withdrawal_coins = $2, referral_reward = $3, inviter_reward = $4,
			min_referrals_for_withdrawal = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING min_withdrawal_coins, referral_reward, inviter_reward, min_referrals_for_withdrawal, updated_at
	`

	var out model.Settings
	err := r.db.QueryRow(ctx, query, settingsID,
		s.MinWithdrawalCoins, s.ReferralReward, s.InviterReward, s.MinReferralsForWithdrawal,
	).Scan(
		&out.MinWithdrawalCoins,
		&out.ReferralReward,
		&out.InviterReward,
		&out.MinReferralsForWithdrawal,
		&out.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update settings: %w", err)
	}
	return &out, nil
}
