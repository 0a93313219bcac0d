package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rankedtodo/todo-service/internal/models"
	"github.com/rankedtodo/todo-service/internal/ranks"
	"github.com/rankedtodo/todo-service/internal/services"
)

type taskResponse struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Task        string     `json:"task"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func newTaskResponse(task *models.Task) taskResponse {
	return taskResponse{
		ID:          task.ID,
		UserID:      task.UserID,
		Task:        task.Text,
		Completed:   task.Completed,
		CompletedAt: task.CompletedAt,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
}

type rankThresholdResponse struct {
	DisplayName string `json:"displayName"`
	Color       string `json:"color"`
	Min         int    `json:"min"`
	Max         *int   `json:"max"`
}

func newRankThresholdResponse(r ranks.Rank) rankThresholdResponse {
	t := ranks.ThresholdOf(r)
	resp := rankThresholdResponse{
		DisplayName: t.DisplayName,
		Color:       t.Color,
		Min:         t.Min,
	}
	if t.Max >= 0 {
		max := t.Max
		resp.Max = &max
	}
	return resp
}

func (h *handlerImpl) HandleGetTasks(c *gin.Context) {
	userID, _, ok := callerIdentity(c)
	if !ok {
		h.logger.Error().Msg("no user id found in context")
		abortWithMessage(c, http.StatusUnauthorized, "Authentication failed")
		return
	}

	tasks, err := h.tasks.GetTasks(c, userID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	response := make([]taskResponse, len(tasks))
	for i := range tasks {
		response[i] = newTaskResponse(&tasks[i])
	}

	respond(c, http.StatusOK, gin.H{"todos": response})
}

type createTaskRequest struct {
	Task string `json:"task"`
}

func (h *handlerImpl) HandleCreateTask(c *gin.Context) {
	userID, username, ok := callerIdentity(c)
	if !ok {
		h.logger.Error().Msg("no user id found in context")
		abortWithMessage(c, http.StatusUnauthorized, "Authentication failed")
		return
	}

	var req createTaskRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind json")
		abortWithMessage(c, http.StatusBadRequest, "Task is required")
		return
	}

	task, err := h.tasks.CreateTask(c, services.CreateTaskParams{
		UserID:   userID,
		Username: username,
		Text:     req.Task,
	})
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	respond(c, http.StatusCreated, gin.H{"todo": newTaskResponse(task)})
}

func (h *handlerImpl) HandleGetStats(c *gin.Context) {
	userID, _, ok := callerIdentity(c)
	if !ok {
		h.logger.Error().Msg("no user id found in context")
		abortWithMessage(c, http.StatusUnauthorized, "Authentication failed")
		return
	}

	stats, err := h.tasks.GetStats(c, userID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{"stats": gin.H{
		"total":     stats.Total,
		"completed": stats.Completed,
		"pending":   stats.Pending,
	}})
}

func (h *handlerImpl) HandleGetTaskByID(c *gin.Context) {
	userID, _, ok := callerIdentity(c)
	if !ok {
		h.logger.Error().Msg("no user id found in context")
		abortWithMessage(c, http.StatusUnauthorized, "Authentication failed")
		return
	}

	taskID := c.Param("id")
	if taskID == "" {
		h.logger.Error().Msg("no task id provided")
		abortWithMessage(c, http.StatusBadRequest, "Todo id is required")
		return
	}

	task, err := h.tasks.GetTaskByID(c, userID, taskID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{"todo": newTaskResponse(task)})
}

type updateTaskRequest struct {
	Task      *string `json:"task,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
}

func (h *handlerImpl) HandleUpdateTask(c *gin.Context) {
	userID, _, ok := callerIdentity(c)
	if !ok {
		h.logger.Error().Msg("no user id found in context")
		abortWithMessage(c, http.StatusUnauthorized, "Authentication failed")
		return
	}

	taskID := c.Param("id")
	if taskID == "" {
		h.logger.Error().Msg("no task id provided")
		abortWithMessage(c, http.StatusBadRequest, "Todo id is required")
		return
	}

	var req updateTaskRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind json")
		abortWithMessage(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	task, transition, err := h.tasks.UpdateTask(c, userID, taskID, services.UpdateTaskParams{
		Text:      req.Task,
		Completed: req.Completed,
	})
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	payload := gin.H{"todo": newTaskResponse(task)}
	if transition != nil {
		payload["rankUpgrade"] = gin.H{
			"upgraded": true,
			"fromRank": transition.From,
			"toRank":   transition.To,
			"rankInfo": newRankThresholdResponse(transition.To),
		}
	}

	respond(c, http.StatusOK, payload)
}

func (h *handlerImpl) HandleDeleteTask(c *gin.Context) {
	userID, _, ok := callerIdentity(c)
	if !ok {
		h.logger.Error().Msg("no user id found in context")
		abortWithMessage(c, http.StatusUnauthorized, "Authentication failed")
		return
	}

	taskID := c.Param("id")
	if taskID == "" {
		h.logger.Error().Msg("no task id provided")
		abortWithMessage(c, http.StatusBadRequest, "Todo id is required")
		return
	}

	err := h.tasks.DeleteTask(c, userID, taskID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{"message": "Todo deleted successfully"})
}
