package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rewardhub/internal/metrics"
	"rewardhub/internal/pkg/db"
	"rewardhub/internal/pkg/lock"
	"rewardhub/internal/repository"
	"rewardhub/internal/service"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(promoteCmd)
	rootCmd.AddCommand(auditCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return db.Migrate(cfg.Database.DSN())
	},
}

var promoteCmd = &cobra.Command{
	Use:   "promote EMAIL",
	Short: "Grant admin rights to the account registered with EMAIL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pool, err := db.NewPool(ctx, &cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()

		accounts := service.NewAccountService(newRunner(pool, nil), repository.NewUserRepository(pool.Pool),
			repository.NewSettingsRepository(pool.Pool), nil, nil, cfg.Ledger.BaseCoins, cfg.Auth.BcryptCost, nil)
		return accounts.Promote(ctx, args[0])
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Compare every balance with its transaction journal once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pool, err := db.NewPool(ctx, &cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()

		auditor := service.NewAuditor(newRunner(pool, nil), repository.NewTransactionRepository(pool.Pool), nil)
		mismatches, err := auditor.Reconcile(ctx)
		if err != nil {
			return err
		}
		for _, m := range mismatches {
			fmt.Printf("%s\tcoins=%d\tjournal=%d\n", m.UserID, m.Coins, m.JournalSum)
		}
		if len(mismatches) > 0 {
			return fmt.Errorf("%d balances differ from their journal", len(mismatches))
		}
		fmt.Println("All balances match their journal")
		return nil
	},
}

func newRunner(pool *db.Pool, m *metrics.Metrics) *service.Runner {
	return service.NewRunner(pool.Pool, lock.New(), cfg.Ledger.LockTimeout, cfg.Database.QueryTimeout, m)
}
