package services_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/rankedtodo/todo-service/internal/ranks"
	"github.com/rankedtodo/todo-service/internal/services"
	"github.com/rankedtodo/todo-service/migrations"
)

type ServiceTestSuite struct {
	suite.Suite
	ctx       context.Context
	container testcontainers.Container
	pool      *pgxpool.Pool
	tasks     services.TaskService
	rank      services.RankService
}

func TestServiceTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}
	suite.Run(t, new(ServiceTestSuite))
}

func (s *ServiceTestSuite) SetupSuite() {
	s.ctx = context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(s.ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(s.T(), err)
	s.container = container

	host, err := container.Host(s.ctx)
	require.NoError(s.T(), err)

	port, err := container.MappedPort(s.ctx, "5432")
	require.NoError(s.T(), err)

	source, err := iofs.New(migrations.FS, ".")
	require.NoError(s.T(), err)

	migrateURL := fmt.Sprintf("pgx5://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())
	m, err := migrate.NewWithSourceInstance("iofs", source, migrateURL)
	require.NoError(s.T(), err)
	require.NoError(s.T(), m.Up())
	m.Close()

	connString := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())
	s.pool, err = pgxpool.New(s.ctx, connString)
	require.NoError(s.T(), err)

	logger := zerolog.Nop()
	s.tasks = services.NewTaskService(logger, s.pool)
	s.rank = services.NewRankService(logger, s.pool)
}

func (s *ServiceTestSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *ServiceTestSuite) SetupTest() {
	_, err := s.pool.Exec(s.ctx, "TRUNCATE todos, user_ranks, rank_upgrades")
	require.NoError(s.T(), err)
}

func (s *ServiceTestSuite) createTask(userID, text string) string {
	task, err := s.tasks.CreateTask(s.ctx, services.CreateTaskParams{
		UserID:   userID,
		Username: userID,
		Text:     text,
	})
	require.NoError(s.T(), err)
	return task.ID
}

func (s *ServiceTestSuite) setCompleted(userID, taskID string, completed bool) *ranks.Transition {
	_, transition, err := s.tasks.UpdateTask(s.ctx, userID, taskID, services.UpdateTaskParams{
		Completed: &completed,
	})
	require.NoError(s.T(), err)
	return transition
}

func (s *ServiceTestSuite) totalCompleted(userID string) int {
	var count int
	err := s.pool.QueryRow(s.ctx,
		"SELECT total_completed FROM user_ranks WHERE user_id = $1", userID).Scan(&count)
	require.NoError(s.T(), err)
	return count
}

func (s *ServiceTestSuite) upgradeCount(userID string) int {
	var count int
	err := s.pool.QueryRow(s.ctx,
		"SELECT COUNT(*) FROM rank_upgrades WHERE user_id = $1", userID).Scan(&count)
	require.NoError(s.T(), err)
	return count
}

func (s *ServiceTestSuite) TestCreateAndList() {
	userID := "user-1"

	s.createTask(userID, "first")
	time.Sleep(10 * time.Millisecond)
	s.createTask(userID, "  second  ")

	tasks, err := s.tasks.GetTasks(s.ctx, userID)
	s.Require().NoError(err)
	s.Require().Len(tasks, 2)

	// Newest first, text trimmed, created pending.
	s.Equal("second", tasks[0].Text)
	s.Equal("first", tasks[1].Text)
	s.False(tasks[0].Completed)
	s.Nil(tasks[0].CompletedAt)
}

func (s *ServiceTestSuite) TestCreateEmptyText() {
	_, err := s.tasks.CreateTask(s.ctx, services.CreateTaskParams{
		UserID:   "user-1",
		Username: "user-1",
		Text:     "   ",
	})
	s.Require().ErrorIs(err, services.ErrEmptyTaskText)
}

func (s *ServiceTestSuite) TestGetTaskByID_Errors() {
	taskID := s.createTask("owner", "mine")

	_, err := s.tasks.GetTaskByID(s.ctx, "owner", "no-such-task")
	s.Require().ErrorIs(err, services.ErrTaskNotFound)

	_, err = s.tasks.GetTaskByID(s.ctx, "intruder", taskID)
	s.Require().ErrorIs(err, services.ErrTaskForbidden)
}

func (s *ServiceTestSuite) TestStats() {
	userID := "user-1"
	first := s.createTask(userID, "a")
	s.createTask(userID, "b")
	s.createTask(userID, "c")

	s.setCompleted(userID, first, true)

	stats, err := s.tasks.GetStats(s.ctx, userID)
	s.Require().NoError(err)
	s.Equal(3, stats.Total)
	s.Equal(1, stats.Completed)
	s.Equal(2, stats.Pending)
}

func (s *ServiceTestSuite) TestUpdateNothing() {
	userID := "user-1"
	taskID := s.createTask(userID, "a")

	_, _, err := s.tasks.UpdateTask(s.ctx, userID, taskID, services.UpdateTaskParams{})
	s.Require().ErrorIs(err, services.ErrNothingToUpdate)
}

func (s *ServiceTestSuite) TestCompletionTimestampTracksFlag() {
	userID := "user-1"
	taskID := s.createTask(userID, "a")

	completed := true
	task, _, err := s.tasks.UpdateTask(s.ctx, userID, taskID, services.UpdateTaskParams{Completed: &completed})
	s.Require().NoError(err)
	s.True(task.Completed)
	s.Require().NotNil(task.CompletedAt)

	completed = false
	task, _, err = s.tasks.UpdateTask(s.ctx, userID, taskID, services.UpdateTaskParams{Completed: &completed})
	s.Require().NoError(err)
	s.False(task.Completed)
	s.Nil(task.CompletedAt)
}

func (s *ServiceTestSuite) TestToggleRoundTrip() {
	userID := "user-1"
	taskID := s.createTask(userID, "a")

	s.setCompleted(userID, taskID, true)
	s.Equal(1, s.totalCompleted(userID))

	s.setCompleted(userID, taskID, false)
	s.Equal(0, s.totalCompleted(userID))

	s.setCompleted(userID, taskID, true)
	s.Equal(1, s.totalCompleted(userID))

	// No boundary was crossed, so no events were written.
	s.Equal(0, s.upgradeCount(userID))
}

func (s *ServiceTestSuite) TestRepeatedCompletionIsIgnored() {
	userID := "user-1"
	taskID := s.createTask(userID, "a")

	s.setCompleted(userID, taskID, true)
	s.setCompleted(userID, taskID, true)
	s.Equal(1, s.totalCompleted(userID))
}

func (s *ServiceTestSuite) TestTenCompletionsUpgradeToSilver() {
	userID := "user-1"

	var transitions []*ranks.Transition
	for i := 0; i < 10; i++ {
		taskID := s.createTask(userID, fmt.Sprintf("task %d", i))
		transitions = append(transitions, s.setCompleted(userID, taskID, true))
	}

	// Exactly one crossing, on the tenth completion.
	for i := 0; i < 9; i++ {
		s.Nil(transitions[i], "completion %d crossed unexpectedly", i)
	}
	s.Require().NotNil(transitions[9])
	s.Equal(ranks.Iron, transitions[9].From)
	s.Equal(ranks.Silver, transitions[9].To)
	s.Equal(1, s.upgradeCount(userID))

	info, err := s.rank.CurrentRank(s.ctx, userID)
	s.Require().NoError(err)
	s.Equal(ranks.Silver, info.Rank)
	s.Equal(10, info.TotalCompleted)
	s.Equal(ranks.Gold, info.Progress.Next)
	s.False(info.Progress.IsMax)
}

func (s *ServiceTestSuite) TestRecrossingDoesNotDuplicateEvent() {
	userID := "user-1"

	taskIDs := make([]string, 10)
	for i := range taskIDs {
		taskIDs[i] = s.createTask(userID, fmt.Sprintf("task %d", i))
		s.setCompleted(userID, taskIDs[i], true)
	}
	s.Equal(1, s.upgradeCount(userID))

	// Drop back below the boundary and cross it again: the count
	// really re-crosses, so a second event is recorded.
	s.setCompleted(userID, taskIDs[0], false)
	transition := s.setCompleted(userID, taskIDs[0], true)
	s.Require().NotNil(transition)
	s.Equal(2, s.upgradeCount(userID))

	// Toggling a different task while already in silver does not.
	s.setCompleted(userID, taskIDs[1], false)
	s.Equal(9, s.totalCompleted(userID))
}

func (s *ServiceTestSuite) TestTierIsHighWaterMark() {
	userID := "user-1"

	taskIDs := make([]string, 10)
	for i := range taskIDs {
		taskIDs[i] = s.createTask(userID, fmt.Sprintf("task %d", i))
		s.setCompleted(userID, taskIDs[i], true)
	}

	s.setCompleted(userID, taskIDs[0], false)

	// The counter dropped below the silver floor but the stored tier
	// stays silver until a future upward crossing.
	info, err := s.rank.CurrentRank(s.ctx, userID)
	s.Require().NoError(err)
	s.Equal(9, info.TotalCompleted)
	s.Equal(ranks.Silver, info.Rank)
}

func (s *ServiceTestSuite) TestDeleteCompletedTaskDecrementsCounter() {
	userID := "user-1"
	first := s.createTask(userID, "a")
	second := s.createTask(userID, "b")

	s.setCompleted(userID, first, true)
	s.setCompleted(userID, second, true)
	s.Equal(2, s.totalCompleted(userID))

	s.Require().NoError(s.tasks.DeleteTask(s.ctx, userID, first))
	s.Equal(1, s.totalCompleted(userID))

	// Deleting a pending task leaves the counter alone.
	third := s.createTask(userID, "c")
	s.Require().NoError(s.tasks.DeleteTask(s.ctx, userID, third))
	s.Equal(1, s.totalCompleted(userID))
}

func (s *ServiceTestSuite) TestDeleteFloorsCounterAtZero() {
	userID := "user-1"
	taskID := s.createTask(userID, "a")
	s.setCompleted(userID, taskID, true)

	// Force the counter out of sync to prove the floor.
	_, err := s.pool.Exec(s.ctx,
		"UPDATE user_ranks SET total_completed = 0 WHERE user_id = $1", userID)
	s.Require().NoError(err)

	s.Require().NoError(s.tasks.DeleteTask(s.ctx, userID, taskID))
	s.Equal(0, s.totalCompleted(userID))
}

func (s *ServiceTestSuite) TestForeignMutationsLeaveCountersUnchanged() {
	ownerID := "owner"
	taskID := s.createTask(ownerID, "mine")
	s.setCompleted(ownerID, taskID, true)

	s.createTask("intruder", "decoy")

	completed := false
	_, _, err := s.tasks.UpdateTask(s.ctx, "intruder", taskID, services.UpdateTaskParams{Completed: &completed})
	s.Require().ErrorIs(err, services.ErrTaskForbidden)

	err = s.tasks.DeleteTask(s.ctx, "intruder", taskID)
	s.Require().ErrorIs(err, services.ErrTaskForbidden)

	s.Equal(1, s.totalCompleted(ownerID))
	s.Equal(0, s.totalCompleted("intruder"))
}

func (s *ServiceTestSuite) TestConcurrentTogglesLoseNoUpdates() {
	userID := "user-1"

	const workers = 8
	taskIDs := make([]string, workers)
	for i := range taskIDs {
		taskIDs[i] = s.createTask(userID, fmt.Sprintf("task %d", i))
	}

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for _, taskID := range taskIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			completed := true
			_, _, err := s.tasks.UpdateTask(s.ctx, userID, id, services.UpdateTaskParams{Completed: &completed})
			errs <- err
		}(taskID)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		s.Require().NoError(err)
	}
	s.Equal(workers, s.totalCompleted(userID))
}

func (s *ServiceTestSuite) TestHistoryNewestFirst() {
	userID := "user-1"

	for i := 0; i < 25; i++ {
		taskID := s.createTask(userID, fmt.Sprintf("task %d", i))
		s.setCompleted(userID, taskID, true)
	}

	history, err := s.rank.History(s.ctx, userID)
	s.Require().NoError(err)
	s.Require().Len(history, 2)

	s.Equal(ranks.Silver, history[0].FromRank)
	s.Equal(ranks.Gold, history[0].ToRank)
	s.Equal(25, history[0].TotalCompleted)

	s.Equal(ranks.Iron, history[1].FromRank)
	s.Equal(ranks.Silver, history[1].ToRank)
	s.Equal(10, history[1].TotalCompleted)
}

func (s *ServiceTestSuite) TestCurrentRankUnknownUser() {
	_, err := s.rank.CurrentRank(s.ctx, "nobody")
	s.Require().ErrorIs(err, services.ErrUserRankNotFound)
}

func (s *ServiceTestSuite) TestLeaderboardOrdering() {
	complete := func(userID string, n int) {
		for i := 0; i < n; i++ {
			taskID := s.createTask(userID, fmt.Sprintf("task %d", i))
			s.setCompleted(userID, taskID, true)
		}
	}

	complete("bronze-age", 3)
	complete("grinder", 12)
	complete("veteran", 30)
	complete("casual", 7)

	entries, err := s.rank.Leaderboard(s.ctx, 3)
	s.Require().NoError(err)
	s.Require().Len(entries, 3)

	s.Equal("veteran", entries[0].Username)
	s.Equal(ranks.Gold, entries[0].CurrentRank)
	s.Equal("grinder", entries[1].Username)
	s.Equal("casual", entries[2].Username)

	// Non-positive limits fall back to the default of 10.
	entries, err = s.rank.Leaderboard(s.ctx, 0)
	s.Require().NoError(err)
	s.Len(entries, 4)
}
