package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"rewardhub/internal/model"
)

const withdrawalColumns = `id, user_id, username, reward_id, reward_name, category, coin_amount, status,
	COALESCE(player_username, ''), COALESCE(player_id, ''), COALESCE(email, ''), COALESCE(phone_number, ''),
	created_at, decided_at, decided_by`

// WithdrawalRepository handles withdrawal request persistence.
type WithdrawalRepository struct {
	db DBTX
}

// NewWithdrawalRepository creates a new WithdrawalRepository instance.
func NewWithdrawalRepository(db DBTX) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

// WithTx returns a copy bound to tx.
func (r *WithdrawalRepository) WithTx(tx pgx.Tx) *WithdrawalRepository {
	return &WithdrawalRepository{db: tx}
}

func scanWithdrawal(row pgx.Row) (*model.WithdrawalRequest, error) {
	var w model.WithdrawalRequest
	err := row.Scan(
		&w.ID,
		&w.UserID,
		&w.Username,
		&w.RewardID,
		&w.RewardName,
		&w.Category,
		&w.CoinAmount,
		&w.Status,
		&w.Metadata.PlayerUsername,
		&w.Metadata.PlayerID,
		&w.Metadata.Email,
		&w.Metadata.PhoneNumber,
		&w.CreatedAt,
		&w.DecidedAt,
		&w.DecidedBy,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Create inserts a pending withdrawal request.
func (r *WithdrawalRepository) Create(ctx context.Context, w *model.WithdrawalRequest) (*model.WithdrawalRequest, error) {
	query := `
		INSERT INTO withdrawal_requests (id, user_id, username, reward_id, reward_name, category,
			coin_amount, status, player_username, player_id, email, phone_number, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', $8, $9, $10, $11, NOW())
		RETURNING ` + withdrawalColumns

	m := w.Metadata
	req, err := scanWithdrawal(r.db.QueryRow(ctx, query,
		w.ID, w.UserID, w.Username, w.RewardID, w.RewardName, w.Category, w.CoinAmount,
		nullIfEmpty(m.PlayerUsername), nullIfEmpty(m.PlayerID), nullIfEmpty(m.Email), nullIfEmpty(m.PhoneNumber),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create withdrawal request: %w", err)
	}
	return req, nil
}

func (r *WithdrawalRepository) get(ctx context.Context, query, id string) (*model.WithdrawalRequest, error) {
	req, err := scanWithdrawal(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("failed to get withdrawal request: %w", err)
	}
	return req, nil
}

// GetByID retrieves a withdrawal request.
func (r *WithdrawalRepository) GetByID(ctx context.Context, id string) (*model.WithdrawalRequest, error) {
	return r.get(ctx, `SELECT `+withdrawalColumns+` FROM withdrawal_requests WHERE id = $1`, id)
}

// GetByIDForUpdate retrieves a withdrawal request and locks its row.
func (r *WithdrawalRepository) GetByIDForUpdate(ctx context.Context, id string) (*model.WithdrawalRequest, error) {
	return r.get(ctx, `SELECT `+withdrawalColumns+` FROM withdrawal_requests WHERE id = $1 FOR UPDATE`, id)
}

// Decide moves a pending request to status. Returns ErrWithdrawalNotFound
// when no pending request with that id exists.
func (r *WithdrawalRepository) Decide(ctx context.Context, id string, status model.WithdrawalStatus, decidedBy string) (*model.WithdrawalRequest, error) {
	query := `
		UPDATE withdrawal_requests
		SET status = $2, decided_at = NOW(), decided_by = $3
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + withdrawalColumns

	req, err := scanWithdrawal(r.db.QueryRow(ctx, query, id, status, decidedBy))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("failed to update withdrawal status: %w", err)
	}
	return req, nil
}

func (r *WithdrawalRepository) list(ctx context.Context, query string, args ...any) ([]*model.WithdrawalRequest, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawal requests: %w", err)
	}
	defer rows.Close()

	var out []*model.WithdrawalRequest
	for rows.Next() {
		req, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal request: %w", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating withdrawal requests: %w", err)
	}
	return out, nil
}

// ListByUser returns a user's requests, newest first.
func (r *WithdrawalRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*model.WithdrawalRequest, error) {
	return r.list(ctx, `
		SELECT `+withdrawalColumns+`
		FROM withdrawal_requests
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
}

// ListByStatus returns requests with status, or all requests when status
// is empty, newest first.
func (r *WithdrawalRepository) ListByStatus(ctx context.Context, status model.WithdrawalStatus, limit int) ([]*model.WithdrawalRequest, error) {
	return r.list(ctx, `
		SELECT `+withdrawalColumns+`
		FROM withdrawal_requests
		WHERE $1::text = '' OR status = $1::text
		ORDER BY created_at DESC
		LIMIT $2`, string(status), limit)
}

// Counts returns the total and pending number of requests.
func (r *WithdrawalRepository) Counts(ctx context.Context) (total int64, pending int64, err error) {
	const query = `SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'pending') FROM withdrawal_requests`

	if err := r.db.QueryRow(ctx, query).Scan(&total, &pending); err != nil {
		return 0, 0, fmt.Errorf("failed to count withdrawal requests: %w", err)
	}
	return total, pending, nil
}
