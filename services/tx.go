package services

import (
	"context"
	"time"

	"loyalty-engine/models"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultMaxRetries = 3

func newRetryBackOff(maxRetries int) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond
	b.MaxElapsedTime = 5 * time.Second
	return backoff.WithMaxRetries(b, uint64(maxRetries))
}

// withTxRetry runs fn in a transaction and reruns the whole transaction when
// it fails with KindConcurrency, at most maxRetries more times. The caller's
// cancellation is detached: once started, the unit of work always ends in a
// commit or a rollback. Exhausted retries surface as KindInternal.
func withTxRetry(ctx context.Context, db *gorm.DB, maxRetries int, logger *zap.Logger, fn func(tx *gorm.DB) error) error {
	ctx = context.WithoutCancel(ctx)
	attempt := 0

	op := func() error {
		attempt++
		err := db.WithContext(ctx).Transaction(fn)
		if err == nil {
			return nil
		}
		if IsKind(err, KindConcurrency) {
			logger.Warn("transaction conflicted, retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", maxRetries),
				zap.Error(err),
			)
			return err
		}
		return backoff.Permanent(err)
	}

	err := backoff.Retry(op, newRetryBackOff(maxRetries))
	if err != nil && IsKind(err, KindConcurrency) {
		return InternalError(err, "could not complete the operation because of concurrent updates; please retry")
	}
	return err
}

// lockForUpdate adds SELECT ... FOR UPDATE. Dialects without row locks
// (SQLite) ignore the clause.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func preloadLadder(tx *gorm.DB) *gorm.DB {
	return tx.
		Preload("Tiers", func(db *gorm.DB) *gorm.DB { return db.Order("points_to_unlock ASC") }).
		Preload("Tiers.Rewards", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, created_at ASC") })
}

// findProgram loads a business's program with its ladder. It returns nil, nil
// when the business has no program yet.
func findProgram(tx *gorm.DB, businessID int64) (*models.LoyaltyProgram, error) {
	var programs []models.LoyaltyProgram
	if err := preloadLadder(tx).Where("business_id = ?", businessID).Limit(1).Find(&programs).Error; err != nil {
		return nil, classifyDBError(err, "failed to load loyalty program")
	}
	if len(programs) == 0 {
		return nil, nil
	}
	return &programs[0], nil
}

// loadLadder returns the business's tiers sorted ascending; empty when the
// business has no program.
func loadLadder(tx *gorm.DB, businessID int64) ([]models.Tier, error) {
	program, err := findProgram(tx, businessID)
	if err != nil || program == nil {
		return nil, err
	}
	return program.Ladder(), nil
}

func loggerOrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
