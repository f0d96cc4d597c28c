package service

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"

	"rewardhub/internal/metrics"
	"rewardhub/internal/model"
	"rewardhub/internal/repository"
)

const auditLimit = 100

// Auditor compares every balance with the sum of its journal rows.
type Auditor struct {
	runner  *Runner
	txs     *repository.TransactionRepository
	metrics *metrics.Metrics
}

// NewAuditor creates a new Auditor instance.
func NewAuditor(runner *Runner, txs *repository.TransactionRepository, m *metrics.Metrics) *Auditor {
	return &Auditor{runner: runner, txs: txs, metrics: m}
}

// Reconcile returns the users whose balance disagrees with the journal.
func (a *Auditor) Reconcile(ctx context.Context) ([]*model.BalanceMismatch, error) {
	var out []*model.BalanceMismatch
	err := a.runner.Read(ctx, "audit.reconcile", func(ctx context.Context) error {
		var err error
		out, err = a.txs.Mismatches(ctx, auditLimit)
		return err
	})
	if err != nil {
		return nil, err
	}

	a.metrics.AuditMismatches(len(out))
	for _, m := range out {
		log.Error().
			Str("user_id", m.UserID).
			Int64("coins", m.Coins).
			Int64("journal_sum", m.JournalSum).
			Msg("Balance does not match ledger journal")
	}
	return out, nil
}

// Start runs Reconcile every interval until the returned scheduler is
// shut down.
func (a *Auditor) Start(interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			mismatches, err := a.Reconcile(ctx)
			if err != nil {
				return
			}
			log.Debug().Int("mismatches", len(mismatches)).Msg("Balance audit finished")
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, err
	}

	sched.Start()
	log.Info().Dur("interval", interval).Msg("Balance audit scheduled")
	return sched, nil
}
