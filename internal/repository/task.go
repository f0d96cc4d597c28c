package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"rewardhub/internal/model"
)

const taskColumns = `id, title, description, type, coin_reward, target_url, image_url, requirements,
	frequency, created_at, updated_at, deleted_at`

// TaskRepository handles the task catalog and per-user completions.
type TaskRepository struct {
	db DBTX
}

// NewTaskRepository creates a new TaskRepository instance.
func NewTaskRepository(db DBTX) *TaskRepository {
	return &TaskRepository{db: db}
}

// WithTx returns a copy bound to tx.
func (r *TaskRepository) WithTx(tx pgx.Tx) *TaskRepository {
	return &TaskRepository{db: tx}
}

func scanTask(row pgx.Row) (*model.Task, error) {
	var t model.Task
	err := row.Scan(
		&t.ID,
		&t.Title,
		&t.Description,
		&t.Type,
		&t.CoinReward,
		&t.TargetURL,
		&t.ImageURL,
		&t.Requirements,
		&t.Frequency,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create inserts a task.
func (r *TaskRepository) Create(ctx context.Context, t *model.Task) (*model.Task, error) {
	query := `
		INSERT INTO tasks (id, title, description, type, coin_reward, target_url, image_url,
			requirements, frequency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING ` + taskColumns

	task, err := scanTask(r.db.QueryRow(ctx, query,
		t.ID, t.Title, t.Description, t.Type, t.CoinReward, t.TargetURL, t.ImageURL, t.Requirements, t.Frequency,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return task, nil
}

// Update overwrites the editable fields of a live task.
func (r *TaskRepository) Update(ctx context.Context, t *model.Task) (*model.Task, error) {
	query := `
		UPDATE tasks
		SET title = $2, description = $3, type = $4, coin_reward = $5, target_url = $6,
			image_url = $7, requirements = $8, frequency = $9, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING ` + taskColumns

	task, err := scanTask(r.db.QueryRow(ctx, query,
		t.ID, t.Title, t.Description, t.Type, t.CoinReward, t.TargetURL, t.ImageURL, t.Requirements, t.Frequency,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return task, nil
}

// Delete hides a task from future completion. Past completions stay.
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	const query = `UPDATE tasks SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// GetByID retrieves a live task.
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 AND deleted_at IS NULL`

	task, err := scanTask(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// List returns every live task, oldest first.
func (r *TaskRepository) List(ctx context.Context) ([]*model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE deleted_at IS NULL ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*model.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

// GetCompletion returns the latest completion of a task by a user, or nil
// when the user never completed it.
func (r *TaskRepository) GetCompletion(ctx context.Context, userID, taskID string) (*model.TaskCompletion, error) {
	const query = `
		SELECT user_id, task_id, completed_at, completion_count
		FROM completed_tasks
		WHERE user_id = $1 AND task_id = $2
	`

	var c model.TaskCompletion
	err := r.db.QueryRow(ctx, query, userID, taskID).Scan(&c.UserID, &c.TaskID, &c.CompletedAt, &c.Count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get completion: %w", err)
	}
	return &c, nil
}

// ListCompletions returns all completions of a user keyed by task id.
func (r *TaskRepository) ListCompletions(ctx context.Context, userID string) (map[string]*model.TaskCompletion, error) {
	const query = `
		SELECT user_id, task_id, completed_at, completion_count
		FROM completed_tasks
		WHERE user_id = $1
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list completions: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*model.TaskCompletion)
	for rows.Next() {
		var c model.TaskCompletion
		if err := rows.Scan(&c.UserID, &c.TaskID, &c.CompletedAt, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan completion: %w", err)
		}
		out[c.TaskID] = &c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating completions: %w", err)
	}
	return out, nil
}

// RecordCompletion stores at as the latest completion time and bumps the
// completion count.
func (r *TaskRepository) RecordCompletion(ctx context.Context, userID, taskID string, at time.Time) (*model.TaskCompletion, error) {
	const query = `
		INSERT INTO completed_tasks (user_id, task_id, completed_at, completion_count)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (user_id, task_id)
		DO UPDATE SET completed_at = EXCLUDED.completed_at,
			completion_count = completed_tasks.completion_count + 1
		RETURNING user_id, task_id, completed_at, completion_count
	`

	var c model.TaskCompletion
	err := r.db.QueryRow(ctx, query, userID, taskID, at).Scan(&c.UserID, &c.TaskID, &c.CompletedAt, &c.Count)
	if err != nil {
		return nil, fmt.Errorf("failed to record completion: %w", err)
	}
	return &c, nil
}

// CountCompletions returns the total number of completions across users.
func (r *TaskRepository) CountCompletions(ctx context.Context) (int64, error) {
	const query = `SELECT COALESCE(SUM(completion_count), 0)::BIGINT FROM completed_tasks`

	var n int64
	if err := r.db.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count completions: %w", err)
	}
	return n, nil
}
