package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/rankedtodo/todo-service/internal/ranks"
)

// progressionCoordinator owns the rank bookkeeping that rides along a
// completion-flag change. It only ever runs inside the transaction the
// task mutation opened, so an error here aborts the task write too.
type progressionCoordinator struct {
	logger zerolog.Logger
}

func newProgressionCoordinator(logger zerolog.Logger) *progressionCoordinator {
	return &progressionCoordinator{
		logger: logger,
	}
}

// ApplyCompletionChange adjusts the lifetime counter for a flag flip
// and, on an upward rank crossing, persists the new tier and an upgrade
// event. The downward flip is a pure counter correction: the stored
// rank is a high-water mark and never regresses.
func (p *progressionCoordinator) ApplyCompletionChange(ctx context.Context, tx pgx.Tx, userID string, wasCompleted, nowCompleted bool) (*ranks.Transition, error) {
	delta, runDetector := ranks.ApplyToggle(wasCompleted, nowCompleted)
	if delta == 0 {
		return nil, nil
	}

	if delta < 0 {
		return nil, p.decrementCounter(ctx, tx, userID)
	}

	newCount, err := p.incrementCounter(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	if !runDetector {
		return nil, nil
	}

	transition := ranks.Detect(newCount-1, newCount)
	if transition == nil {
		return nil, nil
	}

	err = p.recordUpgrade(ctx, tx, userID, transition, newCount)
	if err != nil {
		return nil, err
	}
	return transition, nil
}

// CorrectCounterForDeletion reverses the counter contribution of a
// deleted completed task. It does not run the crossing detector.
func (p *progressionCoordinator) CorrectCounterForDeletion(ctx context.Context, tx pgx.Tx, userID string) error {
	return p.decrementCounter(ctx, tx, userID)
}

func (p *progressionCoordinator) incrementCounter(ctx context.Context, tx pgx.Tx, userID string) (int, error) {
	// A single guarded write; the row lock it takes is what serializes
	// concurrent toggles from the same user.
	const incrementCounterQuery = `
UPDATE user_ranks
SET total_completed = total_completed + 1
WHERE user_id = $1
RETURNING total_completed
`
	var newCount int
	err := tx.QueryRow(
		ctx,
		incrementCounterQuery,
		userID,
	).Scan(&newCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			p.logger.Error().
				Str("user_id", userID).
				Msg("user rank not found")
			return 0, ErrUserRankNotFound
		}

		p.logger.Error().
			Err(err).
			Str("user_id", userID).
			Msg("failed to increment completed counter")
		return 0, err
	}
	p.logger.Debug().
		Str("user_id", userID).
		Int("total_completed", newCount).
		Msg("incremented completed counter")

	return newCount, nil
}

func (p *progressionCoordinator) decrementCounter(ctx context.Context, tx pgx.Tx, userID string) error {
	const decrementCounterQuery = `
UPDATE user_ranks
SET total_completed = GREATEST(0, total_completed - 1)
WHERE user_id = $1
RETURNING total_completed
`
	var newCount int
	err := tx.QueryRow(
		ctx,
		decrementCounterQuery,
		userID,
	).Scan(&newCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			p.logger.Error().
				Str("user_id", userID).
				Msg("user rank not found")
			return ErrUserRankNotFound
		}

		p.logger.Error().
			Err(err).
			Str("user_id", userID).
			Msg("failed to decrement completed counter")
		return err
	}
	p.logger.Debug().
		Str("user_id", userID).
		Int("total_completed", newCount).
		Msg("decremented completed counter")

	return nil
}

func (p *progressionCoordinator) recordUpgrade(ctx context.Context, tx pgx.Tx, userID string, transition *ranks.Transition, newCount int) error {
	now := time.Now()

	const updateRankQuery = `
UPDATE user_ranks
SET current_rank = $1,
    rank_upgraded_at = $2
WHERE user_id = $3
`
	_, err := tx.Exec(
		ctx,
		updateRankQuery,
		transition.To,
		now,
		userID,
	)
	if err != nil {
		p.logger.Error().
			Err(err).
			Str("user_id", userID).
			Msg("failed to update rank")
		return err
	}

	upgradeUUID, err := uuid.NewV7()
	if err != nil {
		p.logger.Error().
			Err(err).
			Msg("failed to generate upgrade uuid")
		return err
	}

	const insertUpgradeQuery = `
INSERT INTO rank_upgrades (id,
                           user_id,
                           from_rank,
                           to_rank,
                           total_completed,
                           upgraded_at)
VALUES ($1, $2, $3, $4, $5, $6)
`
	_, err = tx.Exec(
		ctx,
		insertUpgradeQuery,
		upgradeUUID.String(),
		userID,
		transition.From,
		transition.To,
		newCount,
		now,
	)
	if err != nil {
		p.logger.Error().
			Err(err).
			Str("user_id", userID).
			Msg("failed to insert rank upgrade")
		return err
	}

	p.logger.Info().
		Str("user_id", userID).
		Str("from_rank", string(transition.From)).
		Str("to_rank", string(transition.To)).
		Int("total_completed", newCount).
		Msg("rank upgraded")
	return nil
}
