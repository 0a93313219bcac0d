package models

import (
	"time"

	"github.com/rankedtodo/todo-service/internal/ranks"
)

// UserRank is this service's projection of a user: the lifetime
// completed-task counter and the rank tier derived from it. The tier is
// only ever recomputed on upward counter crossings.
type UserRank struct {
	UserID         string
	Username       string
	CurrentRank    ranks.Rank
	TotalCompleted int
	UpgradedAt     *time.Time
}

// RankUpgrade is an immutable record of a single tier crossing.
type RankUpgrade struct {
	ID             string
	UserID         string
	FromRank       ranks.Rank
	ToRank         ranks.Rank
	TotalCompleted int
	UpgradedAt     time.Time
}

type LeaderboardEntry struct {
	Username       string
	CurrentRank    ranks.Rank
	TotalCompleted int
	UpgradedAt     *time.Time
}
