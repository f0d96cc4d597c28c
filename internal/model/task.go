package model

import "time"

// Frequency controls how often a task can be completed.
type Frequency string

const (
	FrequencyOnce  Frequency = "once"
	FrequencyDaily Frequency = "daily"
)

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	return f == FrequencyOnce || f == FrequencyDaily
}

// TaskType is a display-only category label.
type TaskType string

const (
	TaskTypeTelegram TaskType = "Telegram"
	TaskTypeYouTube  TaskType = "YouTube"
	TaskTypeDaily    TaskType = "Daily"
	TaskTypeCustom   TaskType = "Custom"
)

// Valid reports whether t is a known task type.
func (t TaskType) Valid() bool {
	switch t {
	case TaskTypeTelegram, TaskTypeYouTube, TaskTypeDaily, TaskTypeCustom:
		return true
	}
	return false
}

// Task is a user-facing action that pays coins on completion.
type Task struct {
	ID           string     `db:"id" json:"id"`
	Title        string     `db:"title" json:"title"`
	Description  string     `db:"description" json:"description"`
	Type         TaskType   `db:"type" json:"type"`
	CoinReward   int64      `db:"coin_reward" json:"coinReward"`
	TargetURL    string     `db:"target_url" json:"targetUrl"`
	ImageURL     *string    `db:"image_url" json:"imageUrl,omitempty"`
	Requirements *string    `db:"requirements" json:"requirements,omitempty"`
	Frequency    Frequency  `db:"frequency" json:"frequency"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
	DeletedAt    *time.Time `db:"deleted_at" json:"-"`
}

// TaskCompletion is the most recent completion of a task by a user.
type TaskCompletion struct {
	UserID      string    `db:"user_id" json:"userId"`
	TaskID      string    `db:"task_id" json:"taskId"`
	CompletedAt time.Time `db:"completed_at" json:"completedAt"`
	Count       int       `db:"completion_count" json:"count"`
}

// TaskState is the per-(user, task) completion state.
type TaskState string

const (
	TaskNeverCompleted       TaskState = "never_completed"
	TaskCompletedOnceLocked  TaskState = "completed_once_locked"
	TaskCompletedTodayLocked TaskState = "completed_today_locked"
	TaskAvailable            TaskState = "available"
)

// Completable reports whether a completion may be recorded in this state.
func (s TaskState) Completable() bool {
	return s == TaskNeverCompleted || s == TaskAvailable
}

// TaskStatus is the completion state of a task for one user.
type TaskStatus struct {
	Task        *Task      `json:"task"`
	State       TaskState  `json:"state"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	AvailableAt *time.Time `json:"availableAt,omitempty"`
}

// PopupAd is an interstitial ad that pays coins after it has been viewed.
type PopupAd struct {
	ID              string    `db:"id" json:"id"`
	HTMLContent     string    `db:"html_content" json:"htmlContent"`
	DurationSeconds int       `db:"duration_seconds" json:"durationSeconds"`
	CoinReward      int64     `db:"coin_reward" json:"coinReward"`
	Active          bool      `db:"active" json:"active"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
}

// AdView tracks a single viewing of a popup ad.
type AdView struct {
	ID        string     `db:"id" json:"id"`
	UserID    string     `db:"user_id" json:"userId"`
	AdID      string     `db:"ad_id" json:"adId"`
	StartedAt time.Time  `db:"started_at" json:"startedAt"`
	ClaimedAt *time.Time `db:"claimed_at" json:"claimedAt,omitempty"`
}
