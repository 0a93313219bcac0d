package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/rankedtodo/todo-service/internal/services"
)

type Handler interface {
	HandleAuthMiddleware(c *gin.Context)

	HandleGetTasks(c *gin.Context)
	HandleCreateTask(c *gin.Context)
	HandleGetStats(c *gin.Context)
	HandleGetTaskByID(c *gin.Context)
	HandleUpdateTask(c *gin.Context)
	HandleDeleteTask(c *gin.Context)

	HandleGetRankInfo(c *gin.Context)
	HandleGetRankHistory(c *gin.Context)
	HandleGetLeaderboard(c *gin.Context)

	HandleHealthCheck(c *gin.Context)
}

type handlerImpl struct {
	logger   zerolog.Logger
	verifier services.TokenVerifier
	tasks    services.TaskService
	rank     services.RankService
	// Used only by the health probe to report storage reachability.
	pgPool *pgxpool.Pool
}

func New(
	logger zerolog.Logger,
	pgPool *pgxpool.Pool,
	verifier services.TokenVerifier,
	taskService services.TaskService,
	rankService services.RankService,
) Handler {
	return &handlerImpl{
		logger:   logger,
		verifier: verifier,
		tasks:    taskService,
		rank:     rankService,
		pgPool:   pgPool,
	}
}
