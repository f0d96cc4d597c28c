package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"rewardhub/internal/metrics"
	"rewardhub/internal/model"
	"rewardhub/internal/pkg/lock"
	"rewardhub/internal/repository"
)

const notifyTimeout = 5 * time.Second

// WithdrawalService runs the withdrawal request lifecycle.
type WithdrawalService struct {
	runner      *Runner
	users       *repository.UserRepository
	rewards     *repository.RewardRepository
	settings    *repository.SettingsRepository
	withdrawals *repository.WithdrawalRepository
	ledger      *Ledger
	notifier    Notifier
	metrics     *metrics.Metrics
}

// NewWithdrawalService creates a new WithdrawalService instance.
func NewWithdrawalService(
	runner *Runner,
	users *repository.UserRepository,
	rewards *repository.RewardRepository,
	settings *repository.SettingsRepository,
	withdrawals *repository.WithdrawalRepository,
	ledger *Ledger,
	notifier Notifier,
	m *metrics.Metrics,
) *WithdrawalService {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &WithdrawalService{
		runner:      runner,
		users:       users,
		rewards:     rewards,
		settings:    settings,
		withdrawals: withdrawals,
		ledger:      ledger,
		notifier:    notifier,
		metrics:     m,
	}
}

// checkRequest runs the pre-debit checks in their fixed order: referral
// eligibility, funds, the minimum balance, reward availability, then the
// redemption details. A nil reward is missing or deleted.
func checkRequest(user *model.User, reward *model.Reward, settings *model.Settings, meta model.RedemptionMetadata) error {
	if !MeetsWithdrawalRequirements(user, settings) {
		return fmt.Errorf("%w: %d of %d referrals", ErrNotEligible, user.ReferralCount, settings.MinReferralsForWithdrawal)
	}
	if reward == nil {
		return invalid("reward is not available", "rewardId")
	}
	if user.Coins < reward.CoinCost {
		return ErrInsufficientFunds
	}
	if user.Coins < settings.MinWithdrawalCoins {
		return fmt.Errorf("%w: balance is below the minimum of %d coins", ErrNotEligible, settings.MinWithdrawalCoins)
	}
	if !reward.Available {
		return invalid("reward is not available", "rewardId")
	}
	if !reward.Category.Valid() {
		return invalid("reward has an unknown category", "category")
	}
	if bad := meta.Invalid(reward.Category); len(bad) > 0 {
		fields := make([]string, len(bad))
		for i, f := range bad {
			fields[i] = string(f)
		}
		return invalid("missing or invalid redemption details", fields...)
	}
	return nil
}

// Request debits the reward cost and creates a pending request. Both
// happen in one transaction, so a failed insert leaves the balance as it was.
func (s *WithdrawalService) Request(ctx context.Context, userID, rewardID string, meta model.RedemptionMetadata) (*model.WithdrawalRequest, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if err := checkID("reward", rewardID); err != nil {
		return nil, err
	}
	meta = meta.Normalized()

	var req *model.WithdrawalRequest
	err := s.runner.InTx(ctx, "withdrawal.request", []string{lock.UserKey(userID)}, func(ctx context.Context, tx pgx.Tx) error {
		user, err := s.users.WithTx(tx).GetByIDForUpdate(ctx, userID)
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUnauthenticated
		}
		if err != nil {
			return err
		}

		reward, err := s.rewards.WithTx(tx).GetByID(ctx, rewardID)
		if err != nil && !errors.Is(err, repository.ErrRewardNotFound) {
			return err
		}

		settings, err := s.settings.WithTx(tx).Get(ctx)
		if err != nil {
			return err
		}
		if err := checkRequest(user, reward, settings, meta); err != nil {
			return err
		}

		if _, err := s.ledger.debitTx(ctx, tx, userID, reward.CoinCost, model.TxTypeWithdrawal, "withdrawal: "+reward.Name); err != nil {
			return err
		}
		req, err = s.withdrawals.WithTx(tx).Create(ctx, &model.WithdrawalRequest{
			ID:         uuid.NewString(),
			UserID:     user.ID,
			Username:   user.Username,
			RewardID:   reward.ID,
			RewardName: reward.Name,
			Category:   reward.Category,
			CoinAmount: reward.CoinCost,
			Metadata:   meta,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Debit(model.TxTypeWithdrawal, req.CoinAmount)
	s.metrics.Withdrawal(string(model.WithdrawalPending))
	log.Info().
		Str("request_id", req.ID).
		Str("user_id", userID).
		Str("reward_id", rewardID).
		Int64("coins", req.CoinAmount).
		Msg("Withdrawal request created")
	s.notify(ctx, req, s.notifier.WithdrawalRequested)
	return req, nil
}

// SetStatus moves a pending request to approved or rejected. Only admins
// may decide, and a decided request is final. Rejection does not refund.
func (s *WithdrawalService) SetStatus(ctx context.Context, actor model.Actor, requestID string, status model.WithdrawalStatus) (*model.WithdrawalRequest, error) {
	if actor.ID == "" {
		return nil, ErrUnauthenticated
	}
	if !actor.IsAdmin {
		return nil, ErrForbidden
	}
	if !status.Terminal() {
		return nil, invalid("status must be approved or rejected", "status")
	}
	if err := checkID("withdrawal request", requestID); err != nil {
		return nil, err
	}

	var req *model.WithdrawalRequest
	err := s.runner.InTx(ctx, "withdrawal.set_status", nil, func(ctx context.Context, tx pgx.Tx) error {
		withdrawals := s.withdrawals.WithTx(tx)

		current, err := withdrawals.GetByIDForUpdate(ctx, requestID)
		if err != nil {
			return fromRepo(err)
		}
		if !current.Status.CanTransition(status) {
			return fmt.Errorf("%w: request is %s", ErrInvalidTransition, current.Status)
		}
		req, err = withdrawals.Decide(ctx, requestID, status, actor.ID)
		return fromRepo(err)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Withdrawal(string(status))
	log.Info().
		Str("request_id", req.ID).
		Str("status", string(status)).
		Str("actor", actor.ID).
		Msg("Withdrawal request decided")
	s.notify(ctx, req, s.notifier.WithdrawalDecided)
	return req, nil
}

// notify reports a committed event within notifyTimeout, even if the
// caller has gone away. A failure is logged only.
func (s *WithdrawalService) notify(ctx context.Context, req *model.WithdrawalRequest, fn func(context.Context, *model.WithdrawalRequest) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := fn(ctx, req); err != nil {
		log.Warn().Err(err).Str("request_id", req.ID).Msg("Failed to send withdrawal notification")
	}
}

// Get returns one request. Users may only read their own.
func (s *WithdrawalService) Get(ctx context.Context, actor model.Actor, requestID string) (*model.WithdrawalRequest, error) {
	if actor.ID == "" {
		return nil, ErrUnauthenticated
	}
	if err := checkID("withdrawal request", requestID); err != nil {
		return nil, err
	}

	var req *model.WithdrawalRequest
	err := s.runner.Read(ctx, "withdrawal.get", func(ctx context.Context) error {
		r, err := s.withdrawals.GetByID(ctx, requestID)
		if err != nil {
			return fromRepo(err)
		}
		if !actor.IsAdmin && r.UserID != actor.ID {
			return &NotFoundError{What: "withdrawal request"}
		}
		req = r
		return nil
	})
	return req, err
}

// ListMine returns the user's own requests, newest first.
func (s *WithdrawalService) ListMine(ctx context.Context, userID string, limit int) ([]*model.WithdrawalRequest, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	var out []*model.WithdrawalRequest
	err := s.runner.Read(ctx, "withdrawal.list_mine", func(ctx context.Context) error {
		var err error
		out, err = s.withdrawals.ListByUser(ctx, userID, clampLimit(limit))
		return err
	})
	return out, err
}

// ListAll returns requests of every user, optionally filtered by status.
func (s *WithdrawalService) ListAll(ctx context.Context, actor model.Actor, status model.WithdrawalStatus, limit int) ([]*model.WithdrawalRequest, error) {
	if !actor.IsAdmin {
		return nil, ErrForbidden
	}
	if status != "" && !status.Valid() {
		return nil, invalid("unknown status", "status")
	}
	var out []*model.WithdrawalRequest
	err := s.runner.Read(ctx, "withdrawal.list_all", func(ctx context.Context) error {
		var err error
		out, err = s.withdrawals.ListByStatus(ctx, status, clampLimit(limit))
		return err
	})
	return out, err
}
