package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"rewardhub/internal/model"
)

const userColumns = `id, username, email, password_hash, coins, referral_code, referred_by,
	referral_count, is_admin, created_at, updated_at`

// UserRepository handles user data persistence.
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a new UserRepository instance.
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx returns a copy bound to tx.
func (r *UserRepository) WithTx(tx pgx.Tx) *UserRepository {
	return &UserRepository{db: tx}
}

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Coins,
		&user.ReferralCode,
		&user.ReferredBy,
		&user.ReferralCount,
		&user.IsAdmin,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create inserts a new user. Coins start at the value on u.
// Returns ErrDuplicate when the email or referral code is taken.
func (r *UserRepository) Create(ctx context.Context, u *model.User) (*model.User, error) {
	query := `
		INSERT INTO users (id, username, email, password_hash, coins, referral_code, referred_by,
			referral_count, is_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, NOW(), NOW())
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query,
		u.ID, u.Username, u.Email, u.PasswordHash, u.Coins, u.ReferralCode, u.ReferredBy, u.IsAdmin,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) getBy(ctx context.Context, where string, arg any) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where

	user, err := scanUser(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByID retrieves a user by id.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.getBy(ctx, "id = $1", id)
}

// GetByIDForUpdate retrieves a user and locks the row until the
// surrounding transaction ends. Must be called on a WithTx copy.
func (r *UserRepository) GetByIDForUpdate(ctx context.Context, id string) (*model.User, error) {
	return r.getBy(ctx, "id = $1 FOR UPDATE", id)
}

// GetByEmail retrieves a user by email, case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getBy(ctx, "lower(email) = lower($1)", email)
}

// GetByReferralCode retrieves the owner of a referral code.
func (r *UserRepository) GetByReferralCode(ctx context.Context, code string) (*model.User, error) {
	return r.getBy(ctx, "referral_code = $1", code)
}

// ReferralCodeExists reports whether code is already assigned.
func (r *UserRepository) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM users WHERE referral_code = $1)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check referral code: %w", err)
	}
	return exists, nil
}

// Credit adds amount to the user's coins and returns the updated user.
func (r *UserRepository) Credit(ctx context.Context, id string, amount int64) (*model.User, error) {
	query := `
		UPDATE users
		SET coins = coins + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query, id, amount))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to credit coins: %w", err)
	}
	return user, nil
}

// DebitIfSufficient subtracts amount only when the balance covers it.
// Returns ErrInsufficientCoins when it does not.
func (r *UserRepository) DebitIfSufficient(ctx context.Context, id string, amount int64) (*model.User, error) {
	query := `
		UPDATE users
		SET coins = coins - $2, updated_at = NOW()
		WHERE id = $1 AND coins >= $2
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query, id, amount))
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to debit coins: %w", err)
	}

	if _, err := r.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrInsufficientCoins
}

// IncrementReferralAndCredit bumps the referral count and pays reward to
// the referrer in a single statement.
func (r *UserRepository) IncrementReferralAndCredit(ctx context.Context, id string, reward int64) (*model.User, error) {
	query := `
		UPDATE users
		SET referral_count = referral_count + 1, coins = coins + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query, id, reward))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to increment referral count: %w", err)
	}
	return user, nil
}

// SetAdmin grants or revokes the admin flag for the user with email.
func (r *UserRepository) SetAdmin(ctx context.Context, email string, isAdmin bool) error {
	const query = `
		UPDATE users
		SET is_admin = $2, updated_at = NOW()
		WHERE lower(email) = lower($1)
	`

	result, err := r.db.Exec(ctx, query, email, isAdmin)
	if err != nil {
		return fmt.Errorf("failed to set admin flag: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// List returns users ordered by creation time, newest first.
func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// Totals returns the number of users and the sum of their coins.
func (r *UserRepository) Totals(ctx context.Context) (count int64, coins int64, err error) {
	const query = `SELECT COUNT(*), COALESCE(SUM(coins), 0)::BIGINT FROM users`

	if err := r.db.QueryRow(ctx, query).Scan(&count, &coins); err != nil {
		return 0, 0, fmt.Errorf("failed to total users: %w", err)
	}
	return count, coins, nil
}
