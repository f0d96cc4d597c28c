package service

import (
	"context"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"rewardhub/internal/model"
	"rewardhub/internal/repository"
)

// maxTitleLength matches the task title and reward name columns.
const maxTitleLength = 255

// CatalogService manages tasks, rewards and settings, and serves the
// admin views over users and analytics.
type CatalogService struct {
	runner      *Runner
	tasks       *repository.TaskRepository
	rewards     *repository.RewardRepository
	settings    *repository.SettingsRepository
	users       *repository.UserRepository
	withdrawals *repository.WithdrawalRepository
	ads         *repository.AdRepository
}

// NewCatalogService creates a new CatalogService instance.
func NewCatalogService(
	runner *Runner,
	tasks *repository.TaskRepository,
	rewards *repository.RewardRepository,
	settings *repository.SettingsRepository,
	users *repository.UserRepository,
	withdrawals *repository.WithdrawalRepository,
	ads *repository.AdRepository,
) *CatalogService {
	return &CatalogService{
		runner:      runner,
		tasks:       tasks,
		rewards:     rewards,
		settings:    settings,
		users:       users,
		withdrawals: withdrawals,
		ads:         ads,
	}
}

// TaskInput is the editable part of a task.
type TaskInput struct {
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Type         model.TaskType  `json:"type"`
	CoinReward   int64           `json:"coinReward"`
	TargetURL    string          `json:"targetUrl"`
	ImageURL     *string         `json:"imageUrl,omitempty"`
	Requirements *string         `json:"requirements,omitempty"`
	Frequency    model.Frequency `json:"frequency,omitempty"`
}

func (in TaskInput) toTask(id string) (*model.Task, error) {
	t := &model.Task{
		ID:           id,
		Title:        strings.TrimSpace(in.Title),
		Description:  strings.TrimSpace(in.Description),
		Type:         in.Type,
		CoinReward:   in.CoinReward,
		TargetURL:    strings.TrimSpace(in.TargetURL),
		ImageURL:     in.ImageURL,
		Requirements: in.Requirements,
		Frequency:    in.Frequency,
	}
	if t.Frequency == "" {
		t.Frequency = model.FrequencyOnce
	}

	var fields []string
	if t.Title == "" || utf8.RuneCountInString(t.Title) > maxTitleLength {
		fields = append(fields, "title")
	}
	if !t.Type.Valid() {
		fields = append(fields, "type")
	}
	if t.CoinReward <= 0 {
		fields = append(fields, "coinReward")
	}
	if !validURL(t.TargetURL) {
		fields = append(fields, "targetUrl")
	}
	if !t.Frequency.Valid() {
		fields = append(fields, "frequency")
	}
	if len(fields) > 0 {
		return nil, invalid("invalid task", fields...)
	}
	return t, nil
}

func validURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// RewardInput is the editable part of a reward.
type RewardInput struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Category    model.RewardCategory `json:"category"`
	CoinCost    int64                `json:"coinCost"`
	ImageURL    *string              `json:"imageUrl,omitempty"`
	Available   *bool                `json:"available,omitempty"`
}

func (in RewardInput) toReward(id string) (*model.Reward, error) {
	r := &model.Reward{
		ID:          id,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Category:    in.Category,
		CoinCost:    in.CoinCost,
		ImageURL:    in.ImageURL,
		Available:   in.Available == nil || *in.Available,
	}

	var fields []string
	if r.Name == "" || utf8.RuneCountInString(r.Name) > maxTitleLength {
		fields = append(fields, "name")
	}
	if !r.Category.Valid() {
		fields = append(fields, "category")
	}
	if r.CoinCost <= 0 {
		fields = append(fields, "coinCost")
	}
	if len(fields) > 0 {
		return nil, invalid("invalid reward", fields...)
	}
	return r, nil
}

// ListTasks returns every live task.
func (s *CatalogService) ListTasks(ctx context.Context) ([]*model.Task, error) {
	var out []*model.Task
	err := s.runner.Read(ctx, "catalog.list_tasks", func(ctx context.Context) error {
		var err error
		out, err = s.tasks.List(ctx)
		return err
	})
	return out, err
}

// CreateTask adds a task to the catalog.
func (s *CatalogService) CreateTask(ctx context.Context, actor model.Actor, in TaskInput) (*model.Task, error) {
	if !actor.IsAdmin {
		return nil, ErrForbidden
	}
	task, err := in.toTask(uuid.NewString())
	if err != nil {
		return nil, err
	}

	var out *model.Task
	err = s.runner.Read(ctx, "catalog.create_task", func(ctx context.Context) error {
		out, err = s.tasks.Create(ctx, task)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("task_id", out.ID).Str("actor", actor.ID).Msg("Task created")
	return out, nil
}

// UpdateTask replaces the editable fields of a task.
func (s *CatalogService) UpdateTask(ctx context.Context, actor model.Actor, id string, in TaskInput) (*model.Task, error) {
	if !actor.IsAdmin {
		return nil, ErrForbidden
	}
	if err := checkID("task", id); err != nil {
		return nil, err
	}
	task, err := in.toTask(id)
	if err != nil {
		return nil, err
	}

	var out *model.Task
	err = s.runner.Read(ctx, "catalog.update_task", func(ctx context.Context) error {
		out, err = s.tasks.Update(ctx, task)
		return fromRepo(err)
	})
	return out, err
}

// DeleteTask hides a task. Past completions and coins stay.
func (s *CatalogService) DeleteTask(ctx context.Context, actor model.Actor, id string) error {
	if !actor.IsAdmin {
		return ErrForbidden
	}
	if err := checkID("task", id); err != nil {
		return err
	}
	return s.runner.Read(ctx, "catalog.delete_task", func(ctx context.Context) error {
		return fromRepo(s.tasks.Delete(ctx, id))
	})
}

// ListRewards returns live rewards. Unavailable ones are included only
// when all is set.
func (s *CatalogService) ListRewards(ctx context.Context, all bool) ([]*model.Reward, error) {
	var out []*model.Reward
	err := s.runner.Read(ctx, "catalog.list_rewards", func(ctx context.Context) error {
		rewards, err := s.rewards.List(ctx)
		if err != nil {
			return err
		}
		for _, r := range rewards {
			if all || r.Available {
				out = append(out, r)
			}
		}
		return nil
	})
	return out, err
}

// GetReward returns a live reward.
func (s *CatalogService) GetReward(ctx context.Context, id string) (*model.Reward, error) {
	if err := checkID("reward", id); err != nil {
		return nil, err
	}
	var out *model.Reward
	err := s.runner.Read(ctx, "catalog.get_reward", func(ctx context.Context) error {
		var err error
		out, err = s.rewards.GetByID(ctx, id)
		return fromRepo(err)
	})
	return out, err
}

// CreateReward adds a reward.
func (s *CatalogService) CreateReward(ctx context.Context, actor model.Actor, in RewardInput) (*model.Reward, error) {
	if !actor.IsAdmin {
		return nil, ErrForbidden
	}
	reward, err := in.toReward(uuid.NewString())
	if err != nil {
		return nil, err
	}

	var out *model.Reward
	err = s.runner.Read(ctx, "catalog.create_reward", func(ctx context.Context) error {
		out, err = s.rewards.Create(ctx, reward)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("reward_id", out.ID).Str("actor", actor.ID).Msg("Reward created")
	return out, nil
}

// UpdateReward replaces the editable fields of a reward. An omitted
// availability keeps the stored value. Existing withdrawal requests keep
// their snapshot of the old name.
func (s *CatalogService) UpdateReward(ctx context.Context, actor model.Actor, id string, in RewardInput) (*model.Reward, error) {
	if !actor.IsAdmin {
		return nil, ErrForbidden
	}
	if err := checkID("reward", id); err != nil {
		return nil, err
	}
	reward, err := in.toReward(id)
	if err != nil {
		return nil, err
	}

	var out *model.Reward
	err = s.runner.InTx(ctx, "catalog.update_reward", nil, func(ctx context.Context, tx pgx.Tx) error {
		rewards := s.rewards.WithTx(tx)
		if in.Available == nil {
			current, err := rewards.GetByID(ctx, id)
			if err != nil {
				return fromRepo(err)
			}
			reward.Available = current.Available
		}
		out, err = rewards.Update(ctx, reward)
		return fromRepo(err)
	})
	return out, err
}

// DeleteReward hides a reward.
func (s *CatalogService) DeleteReward(ctx context.Context, actor model.Actor, id string) error {
	if !actor.IsAdmin {
		return ErrForbidden
	}
	if err := checkID("reward", id); err != nil {
		return err
	}
	return s.runner.Read(ctx, "catalog.delete_reward", func(ctx context.Context) error {
		return fromRepo(s.rewards.Delete(ctx, id))
	})
}

// Settings returns the current system settings.
func (s *CatalogService) Settings(ctx context.Context) (*model.Settings, error) {
	var out *model.Settings
	err := s.runner.Read(ctx, "catalog.settings", func(ctx context.Context) error {
		var err error
		out, err = s.settings.Get(ctx)
		return err
	})
	return out, err
}

// UpdateSettings overwrites the system settings.
func (s *CatalogService) UpdateSettings(ctx context.Context, actor model.Actor, in model.Settings) (*model.Settings, error) {
	if !actor.IsAdmin {
		return nil, ErrForbidden
	}

	var fields []string
	if in.MinWithdrawalCoins < 0 {
		fields = append(fields, "minWithdrawalCoins")
	}
	if in.ReferralReward < 0 {
		fields = append(fields, "referralReward")
	}
	if in.InviterReward < 0 {
		fields = append(fields, "inviterReward")
	}
	if in.MinReferralsForWithdrawal < 0 {
		fields = append(fields, "minReferralsForWithdrawal")
	}
	if len(fields) > 0 {
		return nil, invalid("settings must not be negative", fields...)
	}

	var out *model.Settings
	err := s.runner.Read(ctx, "catalog.update_settings", func(ctx context.Context) error {
		var err error
		out, err = s.settings.Update(ctx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("actor", actor.ID).Interface("settings", out).Msg("Settings updated")
	return out, nil
}

// ListUsers returns a page of users for admins.
func (s *CatalogService) ListUsers(ctx context.Context, actor model.Actor, limit, offset int) ([]*model.User, error) {
	if !actor.IsAdmin {
		return nil, ErrForbidden
	}
	if offset < 0 {
		offset = 0
	}
	var out []*model.User
	err := s.runner.Read(ctx, "catalog.list_users", func(ctx context.Context) error {
		var err error
		out, err = s.users.List(ctx, clampLimit(limit), offset)
		return err
	})
	return out, err
}

// Analytics returns the admin dashboard counters.
func (s *CatalogService) Analytics(ctx context.Context, actor model.Actor) (*model.Analytics, error) {
	if !actor.IsAdmin {
		return nil, ErrForbidden
	}

	var out model.Analytics
	err := s.runner.Read(ctx, "catalog.analytics", func(ctx context.Context) error {
		var err error
		if out.TotalUsers, out.TotalCoins, err = s.users.Totals(ctx); err != nil {
			return err
		}
		if out.TotalWithdrawals, out.PendingWithdrawals, err = s.withdrawals.Counts(ctx); err != nil {
			return err
		}
		if out.CompletedTasks, err = s.tasks.CountCompletions(ctx); err != nil {
			return err
		}
		out.TotalAdsViewed, err = s.ads.CountClaimed(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
