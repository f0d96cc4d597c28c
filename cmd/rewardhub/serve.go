package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"rewardhub/internal/auth"
	"rewardhub/internal/bot"
	"rewardhub/internal/handler"
	"rewardhub/internal/metrics"
	"rewardhub/internal/model"
	"rewardhub/internal/pkg/db"
	"rewardhub/internal/repository"
	"rewardhub/internal/service"
)

const (
	housekeepingInterval = 10 * time.Minute
	maxRateLimitKeys     = 100_000
	shutdownTimeout      = 15 * time.Second
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the admin bot and the balance audit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	// Initialize database connection pool
	pool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := db.Migrate(cfg.Database.DSN()); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)
	metrics.RegisterPool(reg, pool.Snapshot)
	runner := newRunner(pool, m)

	// Initialize repositories
	userRepo := repository.NewUserRepository(pool.Pool)
	txRepo := repository.NewTransactionRepository(pool.Pool)
	taskRepo := repository.NewTaskRepository(pool.Pool)
	rewardRepo := repository.NewRewardRepository(pool.Pool)
	withdrawalRepo := repository.NewWithdrawalRepository(pool.Pool)
	settingsRepo := repository.NewSettingsRepository(pool.Pool)
	adRepo := repository.NewAdRepository(pool.Pool)

	if err := settingsRepo.EnsureDefaults(ctx, model.Settings{
		MinWithdrawalCoins:        cfg.Settings.MinWithdrawalCoins,
		ReferralReward:            cfg.Settings.ReferralReward,
		InviterReward:             cfg.Settings.InviterReward,
		MinReferralsForWithdrawal: cfg.Settings.MinReferralsForWithdrawal,
	}); err != nil {
		return fmt.Errorf("failed to seed settings: %w", err)
	}

	sessions, memStore, err := newSessions(ctx)
	if err != nil {
		return err
	}

	cooldown, err := service.NewCooldown(cfg.Tasks)
	if err != nil {
		return err
	}

	// Initialize services
	ledger := service.NewLedger(runner, userRepo, txRepo, m)
	accounts := service.NewAccountService(runner, userRepo, settingsRepo, ledger, sessions, cfg.Ledger.BaseCoins, cfg.Auth.BcryptCost, m)
	tasks := service.NewTaskService(runner, taskRepo, userRepo, ledger, cooldown, m)
	catalog := service.NewCatalogService(runner, taskRepo, rewardRepo, settingsRepo, userRepo, withdrawalRepo, adRepo)
	ads := service.NewAdService(runner, adRepo, ledger, m)

	var (
		adminBot *bot.Bot
		notifier service.Notifier = service.LogNotifier{}
	)
	if cfg.Telegram.Token != "" {
		adminBot, err = bot.New(&bot.Dependencies{Config: cfg})
		if err != nil {
			return err
		}
		notifier = adminBot.Notifier()
	}
	withdrawals := service.NewWithdrawalService(runner, userRepo, rewardRepo, settingsRepo, withdrawalRepo, ledger, notifier, m)

	limiter := handler.NewRateLimiter(cfg.HTTP.RateLimit.RPS, cfg.HTTP.RateLimit.Burst)
	srv := handler.NewServer(handler.Dependencies{
		Accounts:       accounts,
		Tasks:          tasks,
		Withdrawals:    withdrawals,
		Ledger:         ledger,
		Catalog:        catalog,
		Ads:            ads,
		Metrics:        m,
		Gatherer:       reg,
		Health:         pool.HealthCheck,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		RateLimit:      limiter,
	})

	// Background jobs
	housekeeping, err := startHousekeeping(memStore, limiter)
	if err != nil {
		return err
	}
	defer shutdownScheduler(housekeeping)

	if cfg.Audit.Interval > 0 {
		auditSched, err := service.NewAuditor(runner, txRepo, m).Start(cfg.Audit.Interval)
		if err != nil {
			return err
		}
		defer shutdownScheduler(auditSched)
	}

	if adminBot != nil {
		adminBot.HandleReviews(withdrawals)
		go adminBot.Start()
		defer adminBot.Stop()
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("HTTP server is starting...")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Received shutdown signal")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Server stopped gracefully")
	return nil
}

// newSessions builds the session manager on Redis when configured,
// otherwise on process memory. The memory store is returned for pruning.
func newSessions(ctx context.Context) (*auth.Sessions, *auth.MemoryStore, error) {
	tokens, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Redis.Addr == "" {
		log.Warn().Msg("No redis.addr configured, sessions are kept in memory")
		mem := auth.NewMemoryStore()
		return auth.NewSessions(tokens, mem), mem, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	log.Info().Str("addr", cfg.Redis.Addr).Msg("Session store connected to redis")
	return auth.NewSessions(tokens, auth.NewRedisStore(client)), nil, nil
}

// startHousekeeping prunes expired in-memory sessions and idle rate
// limiter buckets.
func startHousekeeping(mem *auth.MemoryStore, limiter *handler.RateLimiter) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(housekeepingInterval),
		gocron.NewTask(func() {
			pruned := 0
			if mem != nil {
				pruned = mem.Prune()
			}
			limiter.Prune(maxRateLimitKeys)
			log.Debug().Int("sessions_pruned", pruned).Msg("Housekeeping finished")
		}),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, err
	}

	sched.Start()
	return sched, nil
}

func shutdownScheduler(s gocron.Scheduler) {
	if err := s.Shutdown(); err != nil {
		log.Error().Err(err).Msg("Scheduler shutdown failed")
	}
}
