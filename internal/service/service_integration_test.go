package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"rewardhub/internal/auth"
	"rewardhub/internal/config"
	"rewardhub/internal/metrics"
	"rewardhub/internal/model"
	"rewardhub/internal/pkg/db/dbtest"
	"rewardhub/internal/pkg/lock"
	"rewardhub/internal/repository"
)

const baseCoins = 100

var admin = model.Actor{ID: "admin-1", IsAdmin: true}

type testEnv struct {
	pool        *pgxpool.Pool
	users       *repository.UserRepository
	ledger      *Ledger
	accounts    *AccountService
	tasks       *TaskService
	withdrawals *WithdrawalService
	catalog     *CatalogService
	ads         *AdService
	auditor     *Auditor
	notifier    *recordingNotifier
}

type recordingNotifier struct {
	mu        sync.Mutex
	requested []*model.WithdrawalRequest
	decided   []*model.WithdrawalRequest
}

func (n *recordingNotifier) WithdrawalRequested(_ context.Context, req *model.WithdrawalRequest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.requested = append(n.requested, req)
	return nil
}

func (n *recordingNotifier) WithdrawalDecided(_ context.Context, req *model.WithdrawalRequest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.decided = append(n.decided, req)
	return nil
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	pool := dbtest.NewPool(t)
	ctx := context.Background()

	m := metrics.New(prometheus.NewRegistry())
	runner := NewRunner(pool, lock.New(), 5*time.Second, 10*time.Second, m)

	users := repository.NewUserRepository(pool)
	txs := repository.NewTransactionRepository(pool)
	tasks := repository.NewTaskRepository(pool)
	rewards := repository.NewRewardRepository(pool)
	settings := repository.NewSettingsRepository(pool)
	withdrawals := repository.NewWithdrawalRepository(pool)
	ads := repository.NewAdRepository(pool)

	require.NoError(t, settings.EnsureDefaults(ctx, model.Settings{
		MinWithdrawalCoins:        1000,
		ReferralReward:            50,
		InviterReward:             25,
		MinReferralsForWithdrawal: 5,
	}))

	issuer, err := auth.NewTokenIssuer(strings.Repeat("k", 32), time.Hour)
	require.NoError(t, err)
	sessions := auth.NewSessions(issuer, auth.NewMemoryStore())

	cooldown, err := NewCooldown(config.TasksConfig{DailyPolicy: config.PolicyCalendarDay, Timezone: "UTC"})
	require.NoError(t, err)

	ledger := NewLedger(runner, users, txs, m)
	notifier := &recordingNotifier{}
	return &testEnv{
		pool:        pool,
		users:       users,
		ledger:      ledger,
		accounts:    NewAccountService(runner, users, settings, ledger, sessions, baseCoins, bcrypt.MinCost, m),
		tasks:       NewTaskService(runner, tasks, users, ledger, cooldown, m),
		withdrawals: NewWithdrawalService(runner, users, rewards, settings, withdrawals, ledger, notifier, m),
		catalog:     NewCatalogService(runner, tasks, rewards, settings, users, withdrawals, ads),
		ads:         NewAdService(runner, ads, ledger, m),
		auditor:     NewAuditor(runner, txs, m),
		notifier:    notifier,
	}
}

func (e *testEnv) register(t *testing.T, username, referralCode string) *SignIn {
	t.Helper()
	in, err := e.accounts.Register(context.Background(), Registration{
		Username:     username,
		Email:        username + "@example.com",
		Password:     "password1",
		ReferralCode: referralCode,
	})
	require.NoError(t, err)
	return in
}

// seedUser sets balance and referral count directly, journaling the
// difference so the audit stays clean.
func (e *testEnv) seedUser(t *testing.T, username string, coins int64, referrals int) *model.User {
	t.Helper()
	ctx := context.Background()
	user := e.register(t, username, "").User

	_, err := e.pool.Exec(ctx, `UPDATE users SET referral_count = $2 WHERE id = $1`, user.ID, referrals)
	require.NoError(t, err)
	switch {
	case coins > user.Coins:
		_, err = e.ledger.Credit(ctx, user.ID, coins-user.Coins, model.TxTypeAdminCredit, "seed")
	case coins < user.Coins:
		_, err = e.ledger.Debit(ctx, user.ID, user.Coins-coins, model.TxTypeAdminDebit, "seed")
	}
	require.NoError(t, err)

	fresh, err := e.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	return fresh
}

func (e *testEnv) balance(t *testing.T, userID string) int64 {
	t.Helper()
	user, err := e.users.GetByID(context.Background(), userID)
	require.NoError(t, err)
	return user.Coins
}

func (e *testEnv) reward(t *testing.T, category model.RewardCategory, cost int64) *model.Reward {
	t.Helper()
	r, err := e.catalog.CreateReward(context.Background(), admin, RewardInput{
		Name:     string(category) + " card",
		Category: category,
		CoinCost: cost,
	})
	require.NoError(t, err)
	return r
}

func (e *testEnv) task(t *testing.T, freq model.Frequency, reward int64) *model.Task {
	t.Helper()
	task, err := e.catalog.CreateTask(context.Background(), admin, TaskInput{
		Title:      "Join our channel",
		Type:       model.TaskTypeTelegram,
		CoinReward: reward,
		TargetURL:  "https://t.me/example",
		Frequency:  freq,
	})
	require.NoError(t, err)
	return task
}

func (e *testEnv) assertJournalConsistent(t *testing.T) {
	t.Helper()
	mismatches, err := e.auditor.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Empty(t, mismatches)
}

var giftCardMeta = model.RedemptionMetadata{Email: "player@example.com"}

func TestScenario_IneligibleBeforeInsufficientFunds(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "nobody", 0, 0)
	reward := env.reward(t, model.CategoryAmazon, 500)

	_, err := env.withdrawals.Request(context.Background(), user.ID, reward.ID, giftCardMeta)
	assert.ErrorIs(t, err, ErrNotEligible)
	assert.Equal(t, int64(0), env.balance(t, user.ID))
}

func TestScenario_SuccessfulWithdrawal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "winner", 1000, 5)
	reward := env.reward(t, model.CategoryAmazon, 500)

	req, err := env.withdrawals.Request(ctx, user.ID, reward.ID, giftCardMeta)
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalPending, req.Status)
	assert.Equal(t, "winner", req.Username)
	assert.Equal(t, reward.Name, req.RewardName)
	assert.Equal(t, int64(500), req.CoinAmount)
	assert.Equal(t, int64(500), env.balance(t, user.ID))

	mine, err := env.withdrawals.ListMine(ctx, user.ID, 0)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, req.ID, mine[0].ID)
	assert.Len(t, env.notifier.requested, 1)

	// Later edits do not change the snapshot.
	_, err = env.catalog.UpdateReward(ctx, admin, reward.ID, RewardInput{Name: "Renamed", Category: reward.Category, CoinCost: 700})
	require.NoError(t, err)
	got, err := env.withdrawals.Get(ctx, model.Actor{ID: user.ID}, req.ID)
	require.NoError(t, err)
	assert.Equal(t, reward.Name, got.RewardName)

	env.assertJournalConsistent(t)
}

func TestScenario_DecidedRequestIsFinal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "winner", 1000, 5)
	reward := env.reward(t, model.CategoryGoogle, 500)

	req, err := env.withdrawals.Request(ctx, user.ID, reward.ID, giftCardMeta)
	require.NoError(t, err)

	_, err = env.withdrawals.SetStatus(ctx, model.Actor{ID: user.ID}, req.ID, model.WithdrawalApproved)
	assert.ErrorIs(t, err, ErrForbidden)

	approved, err := env.withdrawals.SetStatus(ctx, admin, req.ID, model.WithdrawalApproved)
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalApproved, approved.Status)
	require.NotNil(t, approved.DecidedBy)
	assert.Equal(t, admin.ID, *approved.DecidedBy)

	_, err = env.withdrawals.SetStatus(ctx, admin, req.ID, model.WithdrawalApproved)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = env.withdrawals.SetStatus(ctx, admin, req.ID, model.WithdrawalRejected)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = env.withdrawals.SetStatus(ctx, admin, req.ID, model.WithdrawalPending)
	assert.ErrorIs(t, err, ErrValidation)

	assert.Len(t, env.notifier.decided, 1)
}

func TestRejectionKeepsCoinsDebited(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "winner", 1000, 5)
	reward := env.reward(t, model.CategoryVisa, 400)

	req, err := env.withdrawals.Request(ctx, user.ID, reward.ID, giftCardMeta)
	require.NoError(t, err)

	_, err = env.withdrawals.SetStatus(ctx, admin, req.ID, model.WithdrawalRejected)
	require.NoError(t, err)
	assert.Equal(t, int64(600), env.balance(t, user.ID))

	pending, err := env.withdrawals.ListAll(ctx, admin, model.WithdrawalPending, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestScenario_OnceTaskPaysOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.register(t, "tasker", "").User
	task := env.task(t, model.FrequencyOnce, 100)
	now := time.Now()

	result, err := env.tasks.Complete(ctx, user.ID, task.ID, now)
	require.NoError(t, err)
	assert.Equal(t, int64(baseCoins+100), result.NewBalance)

	_, err = env.tasks.Complete(ctx, user.ID, task.ID, now.Add(time.Minute))
	assert.ErrorIs(t, err, ErrNotAvailable)
	assert.Equal(t, int64(baseCoins+100), env.balance(t, user.ID))

	status, err := env.tasks.CanComplete(ctx, user.ID, task.ID, now.Add(365*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, model.TaskCompletedOnceLocked, status.State)

	env.assertJournalConsistent(t)
}

func TestDailyTaskResetsNextDay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.register(t, "daily", "").User
	task := env.task(t, model.FrequencyDaily, 10)
	morning := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	_, err := env.tasks.Complete(ctx, user.ID, task.ID, morning)
	require.NoError(t, err)

	_, err = env.tasks.Complete(ctx, user.ID, task.ID, morning.Add(15*time.Hour))
	assert.ErrorIs(t, err, ErrNotAvailable)

	_, err = env.tasks.Complete(ctx, user.ID, task.ID, morning.Add(16*time.Hour+time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(baseCoins+20), env.balance(t, user.ID))

	statuses, err := env.tasks.ListForUser(ctx, user.ID, morning.Add(17*time.Hour))
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, model.TaskCompletedTodayLocked, statuses[0].State)
	require.NotNil(t, statuses[0].AvailableAt)
}

func TestConcurrentCompletionCreditsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.register(t, "racer", "").User
	task := env.task(t, model.FrequencyOnce, 100)
	now := time.Now()

	const attempts = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.tasks.Complete(ctx, user.ID, task.ID, now); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, ErrNotAvailable)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(baseCoins+100), env.balance(t, user.ID))
}

func TestDeletedTaskKeepsCoins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.register(t, "keeper", "").User
	task := env.task(t, model.FrequencyDaily, 30)

	_, err := env.tasks.Complete(ctx, user.ID, task.ID, time.Now())
	require.NoError(t, err)
	require.NoError(t, env.catalog.DeleteTask(ctx, admin, task.ID))

	_, err = env.tasks.Complete(ctx, user.ID, task.ID, time.Now().Add(48*time.Hour))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int64(baseCoins+30), env.balance(t, user.ID))
}

func TestScenario_ReferralRegistration(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	referrer := env.register(t, "referrer", "").User
	require.Equal(t, int64(baseCoins), referrer.Coins)

	joined := env.register(t, "newbie", strings.ToUpper(referrer.ReferralCode))
	assert.True(t, joined.Referred)
	assert.Equal(t, int64(baseCoins+50), joined.User.Coins)
	require.NotNil(t, joined.User.ReferredBy)
	assert.Equal(t, referrer.ID, *joined.User.ReferredBy)

	after, err := env.users.GetByID(ctx, referrer.ID)
	require.NoError(t, err)
	assert.Equal(t, referrer.ReferralCount+1, after.ReferralCount)
	assert.Equal(t, referrer.Coins+25, after.Coins)

	env.assertJournalConsistent(t)
}

func TestRegistrationWithUnknownReferralCode(t *testing.T) {
	env := newTestEnv(t)
	joined := env.register(t, "loner", "doesnotexist42")
	assert.False(t, joined.Referred)
	assert.Nil(t, joined.User.ReferredBy)
	assert.Equal(t, int64(baseCoins), joined.User.Coins)
}

func TestRegistrationRejectsDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "")

	_, err := env.accounts.Register(context.Background(), Registration{
		Username: "alice2",
		Email:    "ALICE@example.com",
		Password: "password1",
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestLoginLogoutAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	joined := env.register(t, "alice", "")

	_, err := env.accounts.Login(ctx, "alice@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.accounts.Login(ctx, "nobody@example.com", "password1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	in, err := env.accounts.Login(ctx, "Alice@Example.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, joined.User.ID, in.User.ID)

	user, err := env.accounts.Authenticate(ctx, in.Session.Token)
	require.NoError(t, err)
	assert.Equal(t, joined.User.ID, user.ID)

	require.NoError(t, env.accounts.Logout(ctx, in.Session.Token))
	_, err = env.accounts.Authenticate(ctx, in.Session.Token)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	// The registration session is independent of the login session.
	_, err = env.accounts.Authenticate(ctx, joined.Session.Token)
	assert.NoError(t, err)
}

func TestWithdrawalAtomicity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "gamer", 1000, 5)
	reward := env.reward(t, model.CategoryPUBG, 500)

	// Fail the insert after every check and the debit have passed.
	_, err := env.pool.Exec(ctx, `
		CREATE FUNCTION reject_withdrawal() RETURNS trigger AS $$
		BEGIN
			RAISE EXCEPTION 'withdrawal insert rejected';
		END $$ LANGUAGE plpgsql;
		CREATE TRIGGER reject_withdrawal BEFORE INSERT ON withdrawal_requests
			FOR EACH ROW EXECUTE FUNCTION reject_withdrawal();`)
	require.NoError(t, err)

	_, err = env.withdrawals.Request(ctx, user.ID, reward.ID, model.RedemptionMetadata{PlayerUsername: "ace", PlayerID: "42"})
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, int64(1000), env.balance(t, user.ID))

	mine, err := env.withdrawals.ListMine(ctx, user.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, mine)
	env.assertJournalConsistent(t)
}

func TestWithdrawalRejectsOverlongDetails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "gamer", 1000, 5)
	reward := env.reward(t, model.CategoryPUBG, 500)

	meta := model.RedemptionMetadata{PlayerUsername: "ace", PlayerID: strings.Repeat("9", 200)}
	_, err := env.withdrawals.Request(ctx, user.ID, reward.ID, meta)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"playerId"}, verr.Fields)
	assert.Equal(t, int64(1000), env.balance(t, user.ID))
}

func TestIneligibleUserWithUnavailableReward(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "loner", 5000, 0)
	reward := env.reward(t, model.CategoryAmazon, 500)

	off := false
	_, err := env.catalog.UpdateReward(ctx, admin, reward.ID, RewardInput{Name: reward.Name, Category: reward.Category, CoinCost: 500, Available: &off})
	require.NoError(t, err)
	_, err = env.withdrawals.Request(ctx, user.ID, reward.ID, giftCardMeta)
	assert.ErrorIs(t, err, ErrNotEligible)

	require.NoError(t, env.catalog.DeleteReward(ctx, admin, reward.ID))
	_, err = env.withdrawals.Request(ctx, user.ID, reward.ID, giftCardMeta)
	assert.ErrorIs(t, err, ErrNotEligible)
	assert.Equal(t, int64(5000), env.balance(t, user.ID))
}

func TestUpdateRewardKeepsAvailabilityWhenOmitted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reward := env.reward(t, model.CategoryVisa, 500)

	off := false
	_, err := env.catalog.UpdateReward(ctx, admin, reward.ID, RewardInput{Name: reward.Name, Category: reward.Category, CoinCost: 500, Available: &off})
	require.NoError(t, err)

	got, err := env.catalog.UpdateReward(ctx, admin, reward.ID, RewardInput{Name: "Visa gift", Category: reward.Category, CoinCost: 600})
	require.NoError(t, err)
	assert.False(t, got.Available)
	assert.Equal(t, "Visa gift", got.Name)

	on := true
	got, err = env.catalog.UpdateReward(ctx, admin, reward.ID, RewardInput{Name: "Visa gift", Category: reward.Category, CoinCost: 600, Available: &on})
	require.NoError(t, err)
	assert.True(t, got.Available)
}

func TestWithdrawalValidatesBeforeDebit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "gamer", 1000, 5)
	reward := env.reward(t, model.CategoryFreeFire, 500)

	_, err := env.withdrawals.Request(ctx, user.ID, reward.ID, model.RedemptionMetadata{PlayerUsername: "ace"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"playerId"}, verr.Fields)
	assert.Equal(t, int64(1000), env.balance(t, user.ID))

	_, err = env.withdrawals.Request(ctx, "", reward.ID, giftCardMeta)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	off := false
	_, err = env.catalog.UpdateReward(ctx, admin, reward.ID, RewardInput{Name: reward.Name, Category: reward.Category, CoinCost: 500, Available: &off})
	require.NoError(t, err)
	_, err = env.withdrawals.Request(ctx, user.ID, reward.ID, model.RedemptionMetadata{PlayerUsername: "ace", PlayerID: "1"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.catalog.UpdateSettings(ctx, admin, model.Settings{MinReferralsForWithdrawal: 0})
	require.NoError(t, err)
	user := env.seedUser(t, "spender", 1000, 0)
	reward := env.reward(t, model.CategoryAmazon, 300)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = env.withdrawals.Request(ctx, user.ID, reward.ID, giftCardMeta)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(100), env.balance(t, user.ID))
	mine, err := env.withdrawals.ListMine(ctx, user.ID, 0)
	require.NoError(t, err)
	assert.Len(t, mine, 3)
	env.assertJournalConsistent(t)
}

func TestAdminAdjustments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.register(t, "alice", "").User

	_, err := env.ledger.AdminCredit(ctx, model.Actor{ID: user.ID}, user.ID, 10, "")
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := env.ledger.AdminCredit(ctx, admin, user.ID, 40, "contest prize")
	require.NoError(t, err)
	assert.Equal(t, int64(baseCoins+40), updated.Coins)

	_, err = env.ledger.AdminDebit(ctx, admin, user.ID, 1000, "")
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = env.ledger.AdminDebit(ctx, admin, user.ID, 0, "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.ledger.AdminCredit(ctx, admin, uuid.NewString(), 5, "")
	assert.ErrorIs(t, err, ErrNotFound)

	history, err := env.ledger.History(ctx, user.ID, 0)
	require.NoError(t, err)
	assert.Len(t, history, 2)
	env.assertJournalConsistent(t)
}

func TestAdViewClaim(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.register(t, "viewer", "").User

	ad, err := env.ads.CreateAd(ctx, admin, AdInput{HTMLContent: "<p>buy</p>", DurationSeconds: 15, CoinReward: 5})
	require.NoError(t, err)

	start := time.Now()
	view, err := env.ads.StartView(ctx, user.ID, ad.ID, start)
	require.NoError(t, err)

	_, err = env.ads.ClaimView(ctx, user.ID, view.ID, start.Add(5*time.Second))
	assert.ErrorIs(t, err, ErrNotAvailable)

	other := env.register(t, "other", "").User
	_, err = env.ads.ClaimView(ctx, other.ID, view.ID, start.Add(20*time.Second))
	assert.ErrorIs(t, err, ErrNotFound)

	result, err := env.ads.ClaimView(ctx, user.ID, view.ID, start.Add(20*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(baseCoins+5), result.NewBalance)

	_, err = env.ads.ClaimView(ctx, user.ID, view.ID, start.Add(30*time.Second))
	assert.ErrorIs(t, err, ErrNotAvailable)

	require.NoError(t, env.ads.SetAdActive(ctx, admin, ad.ID, false))
	_, err = env.ads.StartView(ctx, user.ID, ad.ID, time.Now())
	assert.ErrorIs(t, err, ErrNotAvailable)

	stats, err := env.catalog.Analytics(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalAdsViewed)
	assert.Equal(t, int64(2), stats.TotalUsers)
}

func TestEligibilityReadsCurrentSettings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "alice", 0, 2)

	e, err := env.accounts.Eligibility(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, e.Eligible)
	assert.Equal(t, 5, e.RequiredReferrals)

	_, err = env.catalog.UpdateSettings(ctx, admin, model.Settings{MinWithdrawalCoins: 0, MinReferralsForWithdrawal: 2})
	require.NoError(t, err)

	e, err = env.accounts.Eligibility(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, e.Eligible)

	_, err = env.catalog.UpdateSettings(ctx, model.Actor{ID: user.ID}, model.Settings{})
	assert.ErrorIs(t, err, ErrForbidden)
}
