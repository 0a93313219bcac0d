package services

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/rankedtodo/todo-service/internal/models"
	"github.com/rankedtodo/todo-service/internal/ranks"
)

const defaultLeaderboardLimit = 10

type rankServiceImpl struct {
	logger zerolog.Logger
	pgPool *pgxpool.Pool
}

func NewRankService(
	logger zerolog.Logger,
	pgPool *pgxpool.Pool,
) RankService {
	return &rankServiceImpl{
		logger: logger,
		pgPool: pgPool,
	}
}

func (s *rankServiceImpl) CurrentRank(ctx context.Context, userID string) (*RankInfo, error) {
	userRank := models.UserRank{
		UserID: userID,
	}

	const selectUserRankQuery = `
SELECT current_rank,
       total_completed,
       rank_upgraded_at
FROM user_ranks
WHERE user_id = $1
`
	err := s.pgPool.QueryRow(
		ctx,
		selectUserRankQuery,
		userRank.UserID,
	).Scan(
		&userRank.CurrentRank,
		&userRank.TotalCompleted,
		&userRank.UpgradedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Error().
				Str("user_id", userRank.UserID).
				Msg("user rank not found")
			return nil, ErrUserRankNotFound
		}

		s.logger.Error().
			Err(err).
			Str("user_id", userRank.UserID).
			Msg("failed to select user rank")
		return nil, err
	}
	s.logger.Debug().
		Str("user_id", userRank.UserID).
		Str("rank", string(userRank.CurrentRank)).
		Msg("selected user rank")

	threshold := ranks.ThresholdOf(userRank.CurrentRank)
	return &RankInfo{
		Rank:           userRank.CurrentRank,
		DisplayName:    threshold.DisplayName,
		Color:          threshold.Color,
		TotalCompleted: userRank.TotalCompleted,
		UpgradedAt:     userRank.UpgradedAt,
		Progress:       ranks.ProgressOf(userRank.TotalCompleted),
	}, nil
}

func (s *rankServiceImpl) History(ctx context.Context, userID string) ([]models.RankUpgrade, error) {
	const selectUpgradesQuery = `
SELECT id,
       from_rank,
       to_rank,
       total_completed,
       upgraded_at
FROM rank_upgrades
WHERE user_id = $1
ORDER BY upgraded_at DESC
`
	rows, err := s.pgPool.Query(
		ctx,
		selectUpgradesQuery,
		userID,
	)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to select rank upgrades")
		return nil, err
	}
	defer rows.Close()

	var upgrades []models.RankUpgrade
	for rows.Next() {
		upgrade := models.RankUpgrade{
			UserID: userID,
		}
		err = rows.Scan(
			&upgrade.ID,
			&upgrade.FromRank,
			&upgrade.ToRank,
			&upgrade.TotalCompleted,
			&upgrade.UpgradedAt,
		)
		if err != nil {
			s.logger.Error().
				Err(err).
				Msg("failed to scan rank upgrade")
			return nil, err
		}
		upgrades = append(upgrades, upgrade)
	}

	err = rows.Err()
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to iterate over rows")
		return nil, err
	}
	s.logger.Debug().
		Int("count", len(upgrades)).
		Msg("selected rank upgrades")

	return upgrades, nil
}

func (s *rankServiceImpl) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}

	// Postgres has no FIELD(), so the ladder position is spelled out
	// as a CASE expression.
	const selectLeaderboardQuery = `
SELECT username,
       current_rank,
       total_completed,
       rank_upgraded_at
FROM user_ranks
ORDER BY CASE current_rank
             WHEN 'todo_master' THEN 5
             WHEN 'platinum' THEN 4
             WHEN 'diamond' THEN 3
             WHEN 'gold' THEN 2
             WHEN 'silver' THEN 1
             ELSE 0
         END DESC,
         total_completed DESC
LIMIT $1
`
	rows, err := s.pgPool.Query(
		ctx,
		selectLeaderboardQuery,
		limit,
	)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to select leaderboard")
		return nil, err
	}
	defer rows.Close()

	var entries []models.LeaderboardEntry
	for rows.Next() {
		var entry models.LeaderboardEntry
		err = rows.Scan(
			&entry.Username,
			&entry.CurrentRank,
			&entry.TotalCompleted,
			&entry.UpgradedAt,
		)
		if err != nil {
			s.logger.Error().
				Err(err).
				Msg("failed to scan leaderboard entry")
			return nil, err
		}
		entries = append(entries, entry)
	}

	err = rows.Err()
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to iterate over rows")
		return nil, err
	}
	s.logger.Debug().
		Int("count", len(entries)).
		Msg("selected leaderboard")

	return entries, nil
}
