package service

import (
	"time"

	"rewardhub/internal/config"
	"rewardhub/internal/model"
)

// Cooldown decides the completion state of a task from its frequency and
// the user's last completion. Once tasks lock forever. Daily tasks follow
// exactly one policy: calendar day in Location, or a rolling window.
type Cooldown struct {
	Policy   string
	Rolling  time.Duration
	Location *time.Location
}

// NewCooldown builds a Cooldown from the tasks configuration.
func NewCooldown(cfg config.TasksConfig) (Cooldown, error) {
	loc, err := cfg.Location()
	if err != nil {
		return Cooldown{}, err
	}
	return Cooldown{
		Policy:   cfg.DailyPolicy,
		Rolling:  time.Duration(cfg.RollingHours) * time.Hour,
		Location: loc,
	}, nil
}

// Evaluate returns the state at now and, for a cooldown lock, when the
// task becomes available again.
func (c Cooldown) Evaluate(freq model.Frequency, last *time.Time, now time.Time) (model.TaskState, *time.Time) {
	if last == nil {
		return model.TaskNeverCompleted, nil
	}
	if freq != model.FrequencyDaily {
		return model.TaskCompletedOnceLocked, nil
	}

	if c.Policy == config.PolicyRolling {
		until := last.Add(c.Rolling)
		if !now.Before(until) {
			return model.TaskAvailable, nil
		}
		return model.TaskCompletedTodayLocked, &until
	}

	lastDay := c.day(*last)
	if c.day(now).After(lastDay) {
		return model.TaskAvailable, nil
	}
	// An attempt dated on or before the last completion's day stays locked.
	next := lastDay.AddDate(0, 0, 1)
	return model.TaskCompletedTodayLocked, &next
}

func (c Cooldown) day(t time.Time) time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
