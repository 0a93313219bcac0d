package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rankedtodo/todo-service/internal/ranks"
)

func (h *handlerImpl) HandleGetRankInfo(c *gin.Context) {
	userID, _, ok := callerIdentity(c)
	if !ok {
		h.logger.Error().Msg("no user id found in context")
		abortWithMessage(c, http.StatusUnauthorized, "Authentication failed")
		return
	}

	info, err := h.rank.CurrentRank(c, userID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	var nextRank any
	if !info.Progress.IsMax {
		nextRank = info.Progress.Next
	}

	respond(c, http.StatusOK, gin.H{
		"rank": gin.H{
			"current":        info.Rank,
			"displayName":    info.DisplayName,
			"color":          info.Color,
			"totalCompleted": info.TotalCompleted,
			"upgradedAt":     info.UpgradedAt,
		},
		"progress": gin.H{
			"current":     info.Progress.Percent,
			"nextRank":    nextRank,
			"tasksToNext": info.Progress.TasksToNext,
			"isMaxRank":   info.Progress.IsMax,
		},
	})
}

func (h *handlerImpl) HandleGetRankHistory(c *gin.Context) {
	userID, _, ok := callerIdentity(c)
	if !ok {
		h.logger.Error().Msg("no user id found in context")
		abortWithMessage(c, http.StatusUnauthorized, "Authentication failed")
		return
	}

	upgrades, err := h.rank.History(c, userID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	history := make([]gin.H, len(upgrades))
	for i, upgrade := range upgrades {
		history[i] = gin.H{
			"upgradeId":      upgrade.ID,
			"fromRank":       ranks.ThresholdOf(upgrade.FromRank).DisplayName,
			"toRank":         ranks.ThresholdOf(upgrade.ToRank).DisplayName,
			"tasksCompleted": upgrade.TotalCompleted,
			"upgradedAt":     upgrade.UpgradedAt,
		}
	}

	respond(c, http.StatusOK, gin.H{"history": history})
}

func (h *handlerImpl) HandleGetLeaderboard(c *gin.Context) {
	_, _, ok := callerIdentity(c)
	if !ok {
		h.logger.Error().Msg("no user id found in context")
		abortWithMessage(c, http.StatusUnauthorized, "Authentication failed")
		return
	}

	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil {
		limit = 0
	}

	entries, err := h.rank.Leaderboard(c, limit)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	leaderboard := make([]gin.H, len(entries))
	for i, entry := range entries {
		threshold := ranks.ThresholdOf(entry.CurrentRank)
		leaderboard[i] = gin.H{
			"username":       entry.Username,
			"rank":           entry.CurrentRank,
			"displayName":    threshold.DisplayName,
			"color":          threshold.Color,
			"totalCompleted": entry.TotalCompleted,
			"upgradedAt":     entry.UpgradedAt,
		}
	}

	respond(c, http.StatusOK, gin.H{"leaderboard": leaderboard})
}
