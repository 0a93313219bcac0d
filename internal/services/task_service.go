package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/rankedtodo/todo-service/internal/models"
	"github.com/rankedtodo/todo-service/internal/ranks"
)

type taskServiceImpl struct {
	logger      zerolog.Logger
	pgPool      *pgxpool.Pool
	progression *progressionCoordinator
}

func NewTaskService(
	logger zerolog.Logger,
	pgPool *pgxpool.Pool,
) TaskService {
	return &taskServiceImpl{
		logger:      logger,
		pgPool:      pgPool,
		progression: newProgressionCoordinator(logger),
	}
}

func (s *taskServiceImpl) CreateTask(ctx context.Context, params CreateTaskParams) (*models.Task, error) {
	text := strings.TrimSpace(params.Text)
	if text == "" {
		s.logger.Error().
			Str("user_id", params.UserID).
			Msg("empty task text")
		return nil, ErrEmptyTaskText
	}

	taskUUID, err := uuid.NewV7()
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to generate task uuid")
		return nil, err
	}

	now := time.Now()
	task := &models.Task{
		ID:        taskUUID.String(),
		UserID:    params.UserID,
		Text:      text,
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := s.pgPool.Begin(ctx)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to begin transaction")
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// The rank read path and the completion toggle both assume the
	// caller's projection row exists, so it is seeded alongside the
	// first task.
	const upsertUserRankQuery = `
INSERT INTO user_ranks (user_id, username)
VALUES ($1, $2)
ON CONFLICT (user_id) DO UPDATE SET username = EXCLUDED.username
`
	_, err = tx.Exec(
		ctx,
		upsertUserRankQuery,
		params.UserID,
		params.Username,
	)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to upsert user rank")
		return nil, err
	}

	const insertTaskQuery = `
INSERT INTO todos (id,
                   user_id,
                   task,
                   completed,
                   created_at,
                   updated_at)
VALUES ($1, $2, $3, FALSE, $4, $5)
`
	_, err = tx.Exec(
		ctx,
		insertTaskQuery,
		task.ID,
		task.UserID,
		task.Text,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to insert task")
		return nil, err
	}

	err = tx.Commit(ctx)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to commit transaction")
		return nil, err
	}
	s.logger.Debug().
		Str("task_id", task.ID).
		Msg("inserted task")

	s.logger.Info().
		Str("task_id", task.ID).
		Msg("created task")
	return task, nil
}

func (s *taskServiceImpl) GetTasks(ctx context.Context, userID string) ([]models.Task, error) {
	const selectTasksQuery = `
SELECT id,
       user_id,
       task,
       completed,
       completed_at,
       created_at,
       updated_at
FROM todos
WHERE user_id = $1
ORDER BY created_at DESC
`
	rows, err := s.pgPool.Query(
		ctx,
		selectTasksQuery,
		userID,
	)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to select tasks")
		return nil, err
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		var task models.Task
		err = rows.Scan(
			&task.ID,
			&task.UserID,
			&task.Text,
			&task.Completed,
			&task.CompletedAt,
			&task.CreatedAt,
			&task.UpdatedAt,
		)
		if err != nil {
			s.logger.Error().
				Err(err).
				Msg("failed to scan task")
			return nil, err
		}
		tasks = append(tasks, task)
	}

	err = rows.Err()
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to iterate over rows")
		return nil, err
	}
	s.logger.Debug().
		Int("count", len(tasks)).
		Msg("selected tasks")

	return tasks, nil
}

func (s *taskServiceImpl) GetTaskByID(ctx context.Context, userID, taskID string) (*models.Task, error) {
	task := &models.Task{
		ID: taskID,
	}

	// The task is fetched by id alone so a missing task and a foreign
	// task stay distinguishable.
	const selectTaskByIDQuery = `
SELECT user_id,
       task,
       completed,
       completed_at,
       created_at,
       updated_at
FROM todos
WHERE id = $1
`
	err := s.pgPool.QueryRow(
		ctx,
		selectTaskByIDQuery,
		task.ID,
	).Scan(
		&task.UserID,
		&task.Text,
		&task.Completed,
		&task.CompletedAt,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Error().
				Str("task_id", task.ID).
				Msg("task not found")
			return nil, ErrTaskNotFound
		}

		s.logger.Error().
			Err(err).
			Str("task_id", task.ID).
			Msg("failed to select task by id")
		return nil, err
	}

	if task.UserID != userID {
		s.logger.Error().
			Str("task_id", task.ID).
			Str("user_id", userID).
			Msg("task is owned by another user")
		return nil, ErrTaskForbidden
	}

	s.logger.Debug().
		Str("task_id", task.ID).
		Msg("selected task by id")
	return task, nil
}

func (s *taskServiceImpl) GetStats(ctx context.Context, userID string) (*models.TaskStats, error) {
	const selectStatsQuery = `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE completed),
       COUNT(*) FILTER (WHERE NOT completed)
FROM todos
WHERE user_id = $1
`
	stats := new(models.TaskStats)
	err := s.pgPool.QueryRow(
		ctx,
		selectStatsQuery,
		userID,
	).Scan(
		&stats.Total,
		&stats.Completed,
		&stats.Pending,
	)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to select stats")
		return nil, err
	}
	s.logger.Debug().
		Int("total", stats.Total).
		Msg("selected stats")

	return stats, nil
}

func (s *taskServiceImpl) UpdateTask(ctx context.Context, userID, taskID string, params UpdateTaskParams) (*models.Task, *ranks.Transition, error) {
	if params.Text == nil && params.Completed == nil {
		s.logger.Error().
			Str("task_id", taskID).
			Msg("no fields to update")
		return nil, nil, ErrNothingToUpdate
	}

	if params.Text != nil {
		text := strings.TrimSpace(*params.Text)
		if text == "" {
			s.logger.Error().
				Str("task_id", taskID).
				Msg("empty task text")
			return nil, nil, ErrEmptyTaskText
		}
		params.Text = &text
	}

	tx, err := s.pgPool.Begin(ctx)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to begin transaction")
		return nil, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	task := &models.Task{
		ID: taskID,
	}

	// FOR UPDATE serializes concurrent toggles of the same task; the
	// second writer sees the committed flag and applies no delta.
	const selectTaskForUpdateQuery = `
SELECT user_id,
       task,
       completed,
       completed_at,
       created_at
FROM todos
WHERE id = $1
FOR UPDATE
`
	err = tx.QueryRow(
		ctx,
		selectTaskForUpdateQuery,
		task.ID,
	).Scan(
		&task.UserID,
		&task.Text,
		&task.Completed,
		&task.CompletedAt,
		&task.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Error().
				Str("task_id", task.ID).
				Msg("task not found")
			return nil, nil, ErrTaskNotFound
		}

		s.logger.Error().
			Err(err).
			Str("task_id", task.ID).
			Msg("failed to select task for update")
		return nil, nil, err
	}

	if task.UserID != userID {
		s.logger.Error().
			Str("task_id", task.ID).
			Str("user_id", userID).
			Msg("task is owned by another user")
		return nil, nil, ErrTaskForbidden
	}

	wasCompleted := task.Completed
	now := time.Now()
	task.UpdatedAt = now

	if params.Text != nil {
		task.Text = *params.Text
	}
	if params.Completed != nil && *params.Completed != wasCompleted {
		task.Completed = *params.Completed
		if task.Completed {
			completedAt := now
			task.CompletedAt = &completedAt
		} else {
			task.CompletedAt = nil
		}
	}

	const updateTaskQuery = `
UPDATE todos
SET task = $1,
    completed = $2,
    completed_at = $3,
    updated_at = $4
WHERE id = $5
`
	_, err = tx.Exec(
		ctx,
		updateTaskQuery,
		task.Text,
		task.Completed,
		task.CompletedAt,
		task.UpdatedAt,
		task.ID,
	)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("task_id", task.ID).
			Msg("failed to update task")
		return nil, nil, err
	}
	s.logger.Debug().
		Str("task_id", task.ID).
		Msg("updated task")

	var transition *ranks.Transition
	if task.Completed != wasCompleted {
		transition, err = s.progression.ApplyCompletionChange(ctx, tx, userID, wasCompleted, task.Completed)
		if err != nil {
			return nil, nil, err
		}
	}

	err = tx.Commit(ctx)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to commit transaction")
		return nil, nil, err
	}

	s.logger.Info().
		Str("task_id", task.ID).
		Msg("updated task")
	return task, transition, nil
}

func (s *taskServiceImpl) DeleteTask(ctx context.Context, userID, taskID string) error {
	tx, err := s.pgPool.Begin(ctx)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to begin transaction")
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		ownerID      string
		wasCompleted bool
	)

	const selectTaskForDeleteQuery = `
SELECT user_id,
       completed
FROM todos
WHERE id = $1
FOR UPDATE
`
	err = tx.QueryRow(
		ctx,
		selectTaskForDeleteQuery,
		taskID,
	).Scan(
		&ownerID,
		&wasCompleted,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Error().
				Str("task_id", taskID).
				Msg("task not found")
			return ErrTaskNotFound
		}

		s.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("failed to select task for delete")
		return err
	}

	if ownerID != userID {
		s.logger.Error().
			Str("task_id", taskID).
			Str("user_id", userID).
			Msg("task is owned by another user")
		return ErrTaskForbidden
	}

	const deleteTaskQuery = `
DELETE FROM todos
       WHERE id = $1
`
	_, err = tx.Exec(
		ctx,
		deleteTaskQuery,
		taskID,
	)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("failed to delete task")
		return err
	}
	s.logger.Debug().
		Str("task_id", taskID).
		Msg("deleted task")

	if wasCompleted {
		err = s.progression.CorrectCounterForDeletion(ctx, tx, userID)
		if err != nil {
			return err
		}
	}

	err = tx.Commit(ctx)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to commit transaction")
		return err
	}

	s.logger.Info().
		Str("task_id", taskID).
		Msg("deleted task")
	return nil
}
