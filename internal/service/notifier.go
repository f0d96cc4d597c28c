package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"rewardhub/internal/model"
)

// Notifier is told about withdrawal lifecycle events after they commit.
type Notifier interface {
	WithdrawalRequested(ctx context.Context, req *model.WithdrawalRequest) error
	WithdrawalDecided(ctx context.Context, req *model.WithdrawalRequest) error
}

// LogNotifier writes withdrawal events to the log.
type LogNotifier struct{}

// WithdrawalRequested implements Notifier.
func (LogNotifier) WithdrawalRequested(_ context.Context, req *model.WithdrawalRequest) error {
	log.Info().
		Str("request_id", req.ID).
		Str("user_id", req.UserID).
		Str("reward", req.RewardName).
		Int64("coins", req.CoinAmount).
		Msg("Withdrawal requested")
	return nil
}

// WithdrawalDecided implements Notifier.
func (LogNotifier) WithdrawalDecided(_ context.Context, req *model.WithdrawalRequest) error {
	log.Info().
		Str("request_id", req.ID).
		Str("status", string(req.Status)).
		Msg("Withdrawal decided")
	return nil
}
