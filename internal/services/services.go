package services

import (
	"context"
	"errors"
	"time"

	"github.com/rankedtodo/todo-service/internal/models"
	"github.com/rankedtodo/todo-service/internal/ranks"
)

var (
	ErrEmptyTaskText    = errors.New("task text is empty")
	ErrNothingToUpdate  = errors.New("nothing to update")
	ErrTaskNotFound     = errors.New("task not found")
	ErrTaskForbidden    = errors.New("task is owned by another user")
	ErrUserRankNotFound = errors.New("user rank not found")
	ErrTokenInvalid     = errors.New("token verification failed")
)

type TaskService interface {
	// CreateTask inserts a new pending task owned by the caller and
	// makes sure the caller's rank projection row exists, both within
	// one transaction.
	//
	// It returns ErrEmptyTaskText if the text is empty after trimming.
	CreateTask(ctx context.Context, params CreateTaskParams) (*models.Task, error)

	// GetTasks returns the caller's tasks, newest-created first.
	GetTasks(ctx context.Context, userID string) ([]models.Task, error)

	// GetTaskByID returns ErrTaskNotFound if no task has the given id,
	// or ErrTaskForbidden if it exists but belongs to another user.
	GetTaskByID(ctx context.Context, userID, taskID string) (*models.Task, error)

	// GetStats aggregates the caller's total, completed and pending
	// task counts.
	GetStats(ctx context.Context, userID string) (*models.TaskStats, error)

	// UpdateTask mutates the task's text and/or completion flag. When
	// the flag flips, the lifetime completed counter is adjusted and,
	// on an upward rank crossing, the tier and an upgrade event are
	// persisted in the same transaction as the task write. The returned
	// transition is nil unless a crossing occurred.
	//
	// It returns ErrNothingToUpdate if no field is supplied, and the
	// GetTaskByID errors for missing or foreign tasks.
	UpdateTask(ctx context.Context, userID, taskID string, params UpdateTaskParams) (*models.Task, *ranks.Transition, error)

	// DeleteTask removes the task. Deleting a completed task decrements
	// the lifetime counter by one, floored at zero, in the same
	// transaction; the rank tier is left untouched.
	DeleteTask(ctx context.Context, userID, taskID string) error
}

type RankService interface {
	// CurrentRank returns the caller's rank projection together with
	// tier metadata and the progress toward the next rank.
	//
	// It returns ErrUserRankNotFound if the caller has no rank row yet.
	CurrentRank(ctx context.Context, userID string) (*RankInfo, error)

	// History returns the caller's rank upgrade events, newest first.
	History(ctx context.Context, userID string) ([]models.RankUpgrade, error)

	// Leaderboard returns up to limit users ordered by rank, then by
	// lifetime completed count. Non-positive limits fall back to 10.
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}

// Identity is a verified caller, as reported by the identity service.
type Identity struct {
	UserID   string
	Username string
}

// TokenVerifier exchanges a bearer token for the caller's identity.
// Implementations must return ErrTokenInvalid for any token that cannot
// be verified, including verifier unavailability.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

type CreateTaskParams struct {
	UserID   string
	Username string
	Text     string
}

type UpdateTaskParams struct {
	Text      *string
	Completed *bool
}

// RankInfo is the read-side projection served by GET /ranks/info.
type RankInfo struct {
	Rank           ranks.Rank
	DisplayName    string
	Color          string
	TotalCompleted int
	UpgradedAt     *time.Time
	Progress       ranks.Progress
}
