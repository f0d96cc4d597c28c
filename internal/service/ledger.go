package service

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"rewardhub/internal/metrics"
	"rewardhub/internal/model"
	"rewardhub/internal/pkg/lock"
	"rewardhub/internal/repository"
)

// Ledger owns every change to a user's coin balance. Each change is
// journaled in the same transaction as the balance update.
type Ledger struct {
	runner  *Runner
	users   *repository.UserRepository
	txs     *repository.TransactionRepository
	metrics *metrics.Metrics
}

// NewLedger creates a new Ledger instance.
func NewLedger(runner *Runner, users *repository.UserRepository, txs *repository.TransactionRepository, m *metrics.Metrics) *Ledger {
	return &Ledger{runner: runner, users: users, txs: txs, metrics: m}
}

func checkAmount(amount int64) error {
	if amount <= 0 {
		return invalid("amount must be positive", "amount")
	}
	return nil
}

func note(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Credit adds amount to the user's balance and returns the updated user.
func (l *Ledger) Credit(ctx context.Context, userID string, amount int64, txType, description string) (*model.User, error) {
	if err := checkID("user", userID); err != nil {
		return nil, err
	}
	if err := checkAmount(amount); err != nil {
		return nil, err
	}

	var user *model.User
	err := l.runner.InTx(ctx, "ledger.credit", []string{lock.UserKey(userID)}, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := l.users.WithTx(tx).GetByIDForUpdate(ctx, userID); err != nil {
			return fromRepo(err)
		}
		var err error
		user, err = l.creditTx(ctx, tx, userID, amount, txType, description)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.metrics.Credit(txType, amount)
	log.Info().
		Str("user_id", userID).
		Int64("amount", amount).
		Str("type", txType).
		Int64("balance", user.Coins).
		Msg("Coins credited")
	return user, nil
}

// Debit removes amount from the user's balance. It fails with
// ErrInsufficientFunds when the balance does not cover amount.
func (l *Ledger) Debit(ctx context.Context, userID string, amount int64, txType, description string) (*model.User, error) {
	if err := checkID("user", userID); err != nil {
		return nil, err
	}
	if err := checkAmount(amount); err != nil {
		return nil, err
	}

	var user *model.User
	err := l.runner.InTx(ctx, "ledger.debit", []string{lock.UserKey(userID)}, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := l.users.WithTx(tx).GetByIDForUpdate(ctx, userID); err != nil {
			return fromRepo(err)
		}
		var err error
		user, err = l.debitTx(ctx, tx, userID, amount, txType, description)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.metrics.Debit(txType, amount)
	log.Info().
		Str("user_id", userID).
		Int64("amount", amount).
		Str("type", txType).
		Int64("balance", user.Coins).
		Msg("Coins debited")
	return user, nil
}

// AdminCredit lets an admin add coins to any user.
func (l *Ledger) AdminCredit(ctx context.Context, actor model.Actor, userID string, amount int64, reason string) (*model.User, error) {
	if !actor.IsAdmin {
		return nil, ErrForbidden
	}
	return l.Credit(ctx, userID, amount, model.TxTypeAdminCredit, adminNote(actor, reason))
}

// AdminDebit lets an admin remove coins from any user.
func (l *Ledger) AdminDebit(ctx context.Context, actor model.Actor, userID string, amount int64, reason string) (*model.User, error) {
	if !actor.IsAdmin {
		return nil, ErrForbidden
	}
	return l.Debit(ctx, userID, amount, model.TxTypeAdminDebit, adminNote(actor, reason))
}

func adminNote(actor model.Actor, reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "by " + actor.ID
	}
	return reason + " (by " + actor.ID + ")"
}

// History returns the user's most recent journal rows.
func (l *Ledger) History(ctx context.Context, userID string, limit int) ([]*model.Transaction, error) {
	if err := checkID("user", userID); err != nil {
		return nil, err
	}
	var out []*model.Transaction
	err := l.runner.Read(ctx, "ledger.history", func(ctx context.Context) error {
		var err error
		out, err = l.txs.GetByUserID(ctx, userID, clampLimit(limit))
		return err
	})
	return out, err
}

// creditTx credits inside tx. The caller holds the user lock.
func (l *Ledger) creditTx(ctx context.Context, tx pgx.Tx, userID string, amount int64, txType, description string) (*model.User, error) {
	user, err := l.users.WithTx(tx).Credit(ctx, userID, amount)
	if err != nil {
		return nil, fromRepo(err)
	}
	if _, err := l.txs.WithTx(tx).Create(ctx, userID, amount, txType, note(description)); err != nil {
		return nil, err
	}
	return user, nil
}

// debitTx debits inside tx with the conditional decrement. The journal
// row carries the negated amount.
func (l *Ledger) debitTx(ctx context.Context, tx pgx.Tx, userID string, amount int64, txType, description string) (*model.User, error) {
	user, err := l.users.WithTx(tx).DebitIfSufficient(ctx, userID, amount)
	if err != nil {
		return nil, fromRepo(err)
	}
	if _, err := l.txs.WithTx(tx).Create(ctx, userID, -amount, txType, note(description)); err != nil {
		return nil, err
	}
	return user, nil
}

// referralTx bumps the referrer's count and pays the inviter reward in a
// single statement, journaling the payment when there is one.
func (l *Ledger) referralTx(ctx context.Context, tx pgx.Tx, referrerID string, reward int64, newUsername string) (*model.User, error) {
	referrer, err := l.users.WithTx(tx).IncrementReferralAndCredit(ctx, referrerID, reward)
	if err != nil {
		return nil, fromRepo(err)
	}
	if reward > 0 {
		if _, err := l.txs.WithTx(tx).Create(ctx, referrerID, reward, model.TxTypeInviter, note("invited "+newUsername)); err != nil {
			return nil, err
		}
	}
	return referrer, nil
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
