package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rankedtodo/todo-service/internal/services"
)

// Every response carries the success flag; failures add a message and
// nothing else.

func respond(c *gin.Context, status int, payload gin.H) {
	body := gin.H{"success": true}
	for key, value := range payload {
		body[key] = value
	}
	c.JSON(status, body)
}

func abortWithMessage(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"message": message,
	})
}

func abortWithServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrEmptyTaskText):
		abortWithMessage(c, http.StatusBadRequest, "Task is required")
	case errors.Is(err, services.ErrNothingToUpdate):
		abortWithMessage(c, http.StatusBadRequest, "No fields to update")
	case errors.Is(err, services.ErrTaskNotFound):
		abortWithMessage(c, http.StatusNotFound, "Todo not found")
	case errors.Is(err, services.ErrTaskForbidden):
		abortWithMessage(c, http.StatusForbidden, "Unauthorized to access this todo")
	case errors.Is(err, services.ErrUserRankNotFound):
		abortWithMessage(c, http.StatusNotFound, "User not found")
	case errors.Is(err, services.ErrTokenInvalid):
		abortWithMessage(c, http.StatusUnauthorized, "Authentication failed")
	default:
		abortWithMessage(c, http.StatusInternalServerError, "Internal server error")
	}
}
