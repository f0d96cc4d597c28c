package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"rewardhub/internal/metrics"
	"rewardhub/internal/model"
	"rewardhub/internal/pkg/lock"
	"rewardhub/internal/repository"
)

// TaskService tracks task completions and pays task rewards.
type TaskService struct {
	runner   *Runner
	tasks    *repository.TaskRepository
	users    *repository.UserRepository
	ledger   *Ledger
	cooldown Cooldown
	metrics  *metrics.Metrics
}

// NewTaskService creates a new TaskService instance.
func NewTaskService(runner *Runner, tasks *repository.TaskRepository, users *repository.UserRepository, ledger *Ledger, cooldown Cooldown, m *metrics.Metrics) *TaskService {
	return &TaskService{
		runner:   runner,
		tasks:    tasks,
		users:    users,
		ledger:   ledger,
		cooldown: cooldown,
		metrics:  m,
	}
}

// CompletionResult is returned by a successful completion.
type CompletionResult struct {
	Task        *model.Task `json:"task"`
	Reward      int64       `json:"reward"`
	NewBalance  int64       `json:"newBalance"`
	CompletedAt time.Time   `json:"completedAt"`
}

func (s *TaskService) status(task *model.Task, c *model.TaskCompletion, now time.Time) *model.TaskStatus {
	var last *time.Time
	if c != nil {
		last = &c.CompletedAt
	}
	state, availableAt := s.cooldown.Evaluate(task.Frequency, last, now)
	return &model.TaskStatus{
		Task:        task,
		State:       state,
		CompletedAt: last,
		AvailableAt: availableAt,
	}
}

// CanComplete reports the completion state of a task for a user at now.
func (s *TaskService) CanComplete(ctx context.Context, userID, taskID string, now time.Time) (*model.TaskStatus, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if err := checkID("task", taskID); err != nil {
		return nil, err
	}

	var status *model.TaskStatus
	err := s.runner.Read(ctx, "task.can_complete", func(ctx context.Context) error {
		task, err := s.tasks.GetByID(ctx, taskID)
		if err != nil {
			return fromRepo(err)
		}
		c, err := s.tasks.GetCompletion(ctx, userID, taskID)
		if err != nil {
			return err
		}
		status = s.status(task, c, now)
		return nil
	})
	return status, err
}

// ListForUser returns every live task with its state for the user.
func (s *TaskService) ListForUser(ctx context.Context, userID string, now time.Time) ([]*model.TaskStatus, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	var out []*model.TaskStatus
	err := s.runner.Read(ctx, "task.list", func(ctx context.Context) error {
		tasks, err := s.tasks.List(ctx)
		if err != nil {
			return err
		}
		completions, err := s.tasks.ListCompletions(ctx, userID)
		if err != nil {
			return err
		}
		out = make([]*model.TaskStatus, 0, len(tasks))
		for _, t := range tasks {
			out = append(out, s.status(t, completions[t.ID], now))
		}
		return nil
	})
	return out, err
}

// Complete records a completion at now and credits the task reward. The
// state check and both writes run under the (user, task) lock and the
// user's row lock, so a concurrent duplicate fails with ErrNotAvailable.
func (s *TaskService) Complete(ctx context.Context, userID, taskID string, now time.Time) (*CompletionResult, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if err := checkID("task", taskID); err != nil {
		return nil, err
	}

	var result *CompletionResult
	keys := []string{lock.UserKey(userID), lock.TaskKey(userID, taskID)}
	err := s.runner.InTx(ctx, "task.complete", keys, func(ctx context.Context, tx pgx.Tx) error {
		tasks := s.tasks.WithTx(tx)

		task, err := tasks.GetByID(ctx, taskID)
		if err != nil {
			return fromRepo(err)
		}
		if _, err := s.users.WithTx(tx).GetByIDForUpdate(ctx, userID); err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return ErrUnauthenticated
			}
			return err
		}

		c, err := tasks.GetCompletion(ctx, userID, taskID)
		if err != nil {
			return err
		}
		if st := s.status(task, c, now); !st.State.Completable() {
			return ErrNotAvailable
		}

		if _, err := tasks.RecordCompletion(ctx, userID, taskID, now); err != nil {
			return err
		}
		user, err := s.ledger.creditTx(ctx, tx, userID, task.CoinReward, model.TxTypeTask, "task: "+task.Title)
		if err != nil {
			return err
		}

		result = &CompletionResult{
			Task:        task,
			Reward:      task.CoinReward,
			NewBalance:  user.Coins,
			CompletedAt: now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Credit(model.TxTypeTask, result.Reward)
	s.metrics.TaskCompleted(string(result.Task.Frequency))
	log.Info().
		Str("user_id", userID).
		Str("task_id", taskID).
		Int64("reward", result.Reward).
		Int64("balance", result.NewBalance).
		Msg("Task completed")
	return result, nil
}
