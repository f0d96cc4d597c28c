package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rewardhub/internal/auth"
	"rewardhub/internal/model"
	"rewardhub/internal/pkg/lock"
	"rewardhub/internal/repository"
)

func TestClassify(t *testing.T) {
	assert.NoError(t, classify("op", nil))
	assert.Equal(t, ErrNotAvailable, classify("op", ErrNotAvailable))

	wrapped := fmt.Errorf("%w: 1 of 5 referrals", ErrNotEligible)
	assert.Equal(t, wrapped, classify("op", wrapped))

	var pe *PersistenceError
	err := classify("task.complete", errors.New("connection refused"))
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "task.complete", pe.Op)
	assert.Equal(t, "persistence", ErrorKind(err))

	err = classify("ledger.debit", lock.ErrLockTimeout)
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, lock.ErrLockTimeout)

	err = classify("ledger.debit", context.DeadlineExceeded)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, IsDomainError(err))

	// Already classified errors are not wrapped twice.
	assert.Same(t, pe, classify("other", pe))
}

func TestFromRepo(t *testing.T) {
	tests := []struct {
		in   error
		want error
	}{
		{repository.ErrInsufficientCoins, ErrInsufficientFunds},
		{repository.ErrDuplicate, ErrConflict},
		{repository.ErrUserNotFound, ErrNotFound},
		{repository.ErrTaskNotFound, ErrNotFound},
		{repository.ErrRewardNotFound, ErrNotFound},
		{repository.ErrWithdrawalNotFound, ErrNotFound},
		{repository.ErrAdViewNotFound, ErrNotFound},
	}
	for _, tt := range tests {
		assert.ErrorIs(t, fromRepo(tt.in), tt.want, tt.in.Error())
	}

	assert.NoError(t, fromRepo(nil))
	other := errors.New("boom")
	assert.Equal(t, other, fromRepo(other))
	assert.Equal(t, "task not found", fromRepo(repository.ErrTaskNotFound).Error())
}

func TestErrorKind_DistinctPerDomainError(t *testing.T) {
	seen := map[string]error{}
	for _, err := range domainErrors {
		kind := ErrorKind(err)
		if err == ErrInvalidCredentials {
			assert.Equal(t, "unauthenticated", kind)
			continue
		}
		if prev, ok := seen[kind]; ok {
			t.Fatalf("%v and %v share kind %q", prev, err, kind)
		}
		seen[kind] = err
	}
	assert.Equal(t, "none", ErrorKind(nil))
}

func TestValidationError(t *testing.T) {
	err := invalid("invalid registration", "email", "password")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "invalid registration: email, password", err.Error())
	assert.Equal(t, "bad", invalid("bad").Error())
}

func TestCheckID(t *testing.T) {
	assert.NoError(t, checkID("task", "5b0f9a4e-2a3c-4c1b-9d7e-0f1a2b3c4d5e"))
	assert.ErrorIs(t, checkID("task", "not-a-uuid"), ErrNotFound)
}

func TestRegistrationValidate(t *testing.T) {
	ok := Registration{Username: " alice ", Email: " Alice@Example.com ", Password: "secret1", ReferralCode: " ABC12 "}.normalized()
	assert.NoError(t, ok.validate())
	assert.Equal(t, "alice", ok.Username)
	assert.Equal(t, "alice@example.com", ok.Email)
	assert.Equal(t, "abc12", ok.ReferralCode)

	bad := Registration{Username: "al", Email: "nope", Password: "123"}.normalized()
	var verr *ValidationError
	require.ErrorAs(t, bad.validate(), &verr)
	assert.Equal(t, []string{"username", "email", "password"}, verr.Fields)
	assert.Equal(t, 6, auth.MinPasswordLength)

	long := Registration{Username: "alice", Email: strings.Repeat("a", 250) + "@example.com", Password: "secret1"}.normalized()
	require.ErrorAs(t, long.validate(), &verr)
	assert.Equal(t, []string{"email"}, verr.Fields)
}

func TestReferralBase(t *testing.T) {
	assert.Equal(t, "johndoe42", referralBase("John Doe_42!"))
	assert.Equal(t, "user", referralBase("ñ★"))
}

func TestTaskInputValidation(t *testing.T) {
	task, err := TaskInput{
		Title:      "Join channel",
		Type:       "Telegram",
		CoinReward: 100,
		TargetURL:  "https://t.me/example",
	}.toTask("id")
	require.NoError(t, err)
	assert.Equal(t, "once", string(task.Frequency))

	_, err = TaskInput{Type: "Email", TargetURL: "ftp://x", Frequency: "weekly"}.toTask("id")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"title", "type", "coinReward", "targetUrl", "frequency"}, verr.Fields)
}

func TestRewardInputValidation(t *testing.T) {
	off := false
	reward, err := RewardInput{Name: "Visa $10", Category: "Visa", CoinCost: 1000, Available: &off}.toReward("id")
	require.NoError(t, err)
	assert.False(t, reward.Available)

	reward, err = RewardInput{Name: "Visa $10", Category: "Visa", CoinCost: 1000}.toReward("id")
	require.NoError(t, err)
	assert.True(t, reward.Available)

	_, err = RewardInput{Category: "Steam"}.toReward("id")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"name", "category", "coinCost"}, verr.Fields)

	_, err = RewardInput{Name: strings.Repeat("x", 256), Category: "Visa", CoinCost: 1}.toReward("id")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"name"}, verr.Fields)
}

func TestLedgerRejectsMalformedUserID(t *testing.T) {
	ctx := context.Background()
	l := &Ledger{}

	_, err := l.Credit(ctx, "not-a-uuid", 10, "admin_credit", "")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = l.Debit(ctx, "42", 10, "admin_debit", "")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = l.AdminCredit(ctx, model.Actor{ID: "admin", IsAdmin: true}, "../users", 10, "")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = l.History(ctx, "me", 10)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "not_found", ErrorKind(err))
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, defaultListLimit, clampLimit(0))
	assert.Equal(t, 10, clampLimit(10))
	assert.Equal(t, maxListLimit, clampLimit(10_000))
}
