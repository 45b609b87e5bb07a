package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"loyalty-engine/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TierInput describes a tier to add to a business's ladder.
type TierInput struct {
	Name           string
	PointsToUnlock int64
	Rewards        []models.Reward
}

// LadderChange is the result of a ladder mutation: the program as committed
// and the recompute job it triggered.
type LadderChange struct {
	Program *models.LoyaltyProgram
	Job     *models.RecomputeJob
	Message string
}

// CatalogService owns a business's tier ladder. Every mutation holds the
// program row lock, commits together with a pending recompute job and then
// runs that job.
type CatalogService struct {
	DB         *gorm.DB
	Maintainer *TierLadderMaintainer
	Logger     *zap.Logger
	MaxRetries int
	Now        func() time.Time
}

func NewCatalogService(db *gorm.DB, maintainer *TierLadderMaintainer, logger *zap.Logger, maxRetries int) *CatalogService {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &CatalogService{
		DB:         db,
		Maintainer: maintainer,
		Logger:     loggerOrNop(logger),
		MaxRetries: maxRetries,
		Now:        time.Now,
	}
}

func validateRewards(rewards []models.Reward) error {
	for i, r := range rewards {
		if _, err := r.Variant(); err != nil {
			return ValidationError("rewards[%d]: %v", i, err)
		}
	}
	return nil
}

func validateTierInput(in *TierInput) error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return ValidationError("tier name is required")
	}
	if in.PointsToUnlock < 0 {
		return ValidationError("points_to_unlock must not be negative")
	}
	if len(in.Rewards) == 0 {
		return ValidationError("a tier needs at least one reward")
	}
	return validateRewards(in.Rewards)
}

// GetProgram returns the business's program with its ladder sorted ascending.
func (s *CatalogService) GetProgram(ctx context.Context, businessID int64) (*models.LoyaltyProgram, error) {
	program, err := findProgram(s.DB.WithContext(ctx), businessID)
	if err != nil {
		return nil, err
	}
	if program == nil {
		return nil, NotFoundError("business %d has no loyalty program", businessID)
	}
	return program, nil
}

// lockProgram takes the program row lock and returns the program with its
// ladder, or nil when the business has none.
func lockProgram(tx *gorm.DB, businessID int64) (*models.LoyaltyProgram, error) {
	var locked []models.LoyaltyProgram
	if err := lockForUpdate(tx).Where("business_id = ?", businessID).Limit(1).Find(&locked).Error; err != nil {
		return nil, classifyDBError(err, "failed to lock loyalty program")
	}
	if len(locked) == 0 {
		return nil, nil
	}
	return findProgram(tx, businessID)
}

// AddTier adds a tier to the business's ladder, creating the program on the
// first tier. pointsRate is required only then.
//
// A tier with the same name and the same rewards is a conflict. A tier with the
// same name and different rewards is merged: missing rewards are appended and
// the threshold takes the new value.
func (s *CatalogService) AddTier(ctx context.Context, businessID int64, in TierInput, pointsRate *decimal.Decimal) (*LadderChange, error) {
	if businessID <= 0 {
		return nil, UnauthorizedError("no business associated with the caller")
	}
	if err := validateTierInput(&in); err != nil {
		return nil, err
	}

	var change LadderChange
	err := withTxRetry(ctx, s.DB, s.MaxRetries, s.Logger, func(tx *gorm.DB) error {
		now := s.Now()
		program, err := lockProgram(tx, businessID)
		if err != nil {
			return err
		}
		if program == nil {
			if pointsRate == nil || !pointsRate.IsPositive() {
				return ValidationError("points_rate is required when creating the first tier")
			}
			created := models.LoyaltyProgram{
				ID:         uuid.New(),
				BusinessID: businessID,
				PointsRate: *pointsRate,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "business_id"}},
				DoNothing: true,
			}).Create(&created).Error; err != nil {
				return classifyDBError(err, "failed to create loyalty program")
			}
			if program, err = lockProgram(tx, businessID); err != nil {
				return err
			}
			if program == nil {
				return InternalError(fmt.Errorf("program for business %d vanished", businessID), "failed to create loyalty program")
			}
		}

		if existing := program.TierByName(in.Name); existing != nil {
			if existing.HasSameRewards(in.Rewards) {
				return ConflictError("tier %q already exists with the same rewards", in.Name)
			}
			if err := s.mergeTier(tx, program, existing, in, now); err != nil {
				return err
			}
			change.Message = fmt.Sprintf("Tier %s updated", in.Name)
		} else {
			candidate := append(program.Ladder(), models.Tier{Name: in.Name, PointsToUnlock: in.PointsToUnlock})
			if err := ValidateLadder(candidate); err != nil {
				return err
			}
			tier := models.Tier{
				ID:             uuid.New(),
				ProgramID:      program.ID,
				Name:           in.Name,
				PointsToUnlock: in.PointsToUnlock,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if err := tx.Omit("Rewards").Create(&tier).Error; err != nil {
				return classifyDBError(err, "failed to create tier")
			}
			if err := insertRewards(tx, tier.ID, in.Rewards, 0, now); err != nil {
				return err
			}
			change.Message = fmt.Sprintf("Tier %s added", in.Name)
		}

		return s.finishMutation(tx, program.ID, businessID, "tier added: "+in.Name, now, &change)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("tier ladder changed", zap.Int64("business_id", businessID), zap.String("tier", in.Name))
	return s.afterCommit(ctx, businessID, &change)
}

func (s *CatalogService) mergeTier(tx *gorm.DB, program *models.LoyaltyProgram, existing *models.Tier, in TierInput, now time.Time) error {
	if existing.PointsToUnlock != in.PointsToUnlock {
		ladder := program.Ladder()
		for i := range ladder {
			if ladder[i].Name == existing.Name {
				ladder[i].PointsToUnlock = in.PointsToUnlock
			}
		}
		if err := ValidateLadder(ladder); err != nil {
			return err
		}
	}

	var missing []models.Reward
	next := models.Tier{Rewards: append([]models.Reward(nil), existing.Rewards...)}
	for _, r := range in.Rewards {
		if next.FindReward(r) >= 0 {
			continue
		}
		missing = append(missing, r)
		next.Rewards = append(next.Rewards, r)
	}

	if err := tx.Model(&models.Tier{}).Where("id = ?", existing.ID).Updates(map[string]interface{}{
		"points_to_unlock": in.PointsToUnlock,
		"updated_at":       now,
	}).Error; err != nil {
		return classifyDBError(err, "failed to update tier")
	}
	return insertRewards(tx, existing.ID, missing, nextPosition(existing.Rewards), now)
}

func nextPosition(rewards []models.Reward) int {
	pos := 0
	for _, r := range rewards {
		if r.Position >= pos {
			pos = r.Position + 1
		}
	}
	return pos
}

func insertRewards(tx *gorm.DB, tierID uuid.UUID, rewards []models.Reward, firstPosition int, now time.Time) error {
	if len(rewards) == 0 {
		return nil
	}
	rows := make([]models.Reward, len(rewards))
	for i, r := range rewards {
		rows[i] = models.Reward{
			ID:                 uuid.New(),
			TierID:             tierID,
			Type:               r.Type,
			Percentage:         r.Percentage,
			Name:               r.Name,
			Text:               r.Text,
			UsageLimitPerMonth: r.UsageLimitPerMonth,
			OneTime:            r.OneTime,
			Position:           firstPosition + i,
			CreatedAt:          now,
		}
	}
	if err := tx.Create(&rows).Error; err != nil {
		return classifyDBError(err, "failed to save rewards")
	}
	return nil
}

// RemoveReward removes one reward, matched structurally, from the named tier.
// Removing a tier's last reward removes the tier.
func (s *CatalogService) RemoveReward(ctx context.Context, businessID int64, tierName string, reward models.Reward) (*LadderChange, error) {
	if businessID <= 0 {
		return nil, UnauthorizedError("no business associated with the caller")
	}
	tierName = strings.TrimSpace(tierName)
	if tierName == "" {
		return nil, ValidationError("tierName is required")
	}
	if err := validateRewards([]models.Reward{reward}); err != nil {
		return nil, err
	}

	var change LadderChange
	err := withTxRetry(ctx, s.DB, s.MaxRetries, s.Logger, func(tx *gorm.DB) error {
		now := s.Now()
		program, tier, err := lockTier(tx, businessID, tierName)
		if err != nil {
			return err
		}

		idx := tier.FindReward(reward)
		if idx < 0 {
			return NotFoundError("reward not found in tier %q", tierName)
		}

		if len(tier.Rewards) == 1 {
			if err := deleteTier(tx, tier.ID); err != nil {
				return err
			}
			change.Message = fmt.Sprintf("Reward removed; tier %s had no rewards left and was removed", tierName)
		} else {
			if err := tx.Where("id = ?", tier.Rewards[idx].ID).Delete(&models.Reward{}).Error; err != nil {
				return classifyDBError(err, "failed to remove reward")
			}
			change.Message = fmt.Sprintf("Reward removed from tier %s", tierName)
		}

		return s.finishMutation(tx, program.ID, businessID, "reward removed: "+tierName, now, &change)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("tier ladder changed", zap.Int64("business_id", businessID), zap.String("tier", tierName))
	return s.afterCommit(ctx, businessID, &change)
}

// RemoveTier removes the named tier with all its rewards.
func (s *CatalogService) RemoveTier(ctx context.Context, businessID int64, tierName string) (*LadderChange, error) {
	if businessID <= 0 {
		return nil, UnauthorizedError("no business associated with the caller")
	}
	tierName = strings.TrimSpace(tierName)
	if tierName == "" {
		return nil, ValidationError("tierName is required")
	}

	var change LadderChange
	err := withTxRetry(ctx, s.DB, s.MaxRetries, s.Logger, func(tx *gorm.DB) error {
		now := s.Now()
		program, tier, err := lockTier(tx, businessID, tierName)
		if err != nil {
			return err
		}
		if err := deleteTier(tx, tier.ID); err != nil {
			return err
		}
		change.Message = fmt.Sprintf("Tier %s removed", tierName)
		return s.finishMutation(tx, program.ID, businessID, "tier removed: "+tierName, now, &change)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("tier ladder changed", zap.Int64("business_id", businessID), zap.String("removed_tier", tierName))
	return s.afterCommit(ctx, businessID, &change)
}

func lockTier(tx *gorm.DB, businessID int64, tierName string) (*models.LoyaltyProgram, *models.Tier, error) {
	program, err := lockProgram(tx, businessID)
	if err != nil {
		return nil, nil, err
	}
	if program == nil {
		return nil, nil, NotFoundError("business %d has no loyalty program", businessID)
	}
	tier := program.TierByName(tierName)
	if tier == nil {
		return nil, nil, NotFoundError("tier %q not found", tierName)
	}
	return program, tier, nil
}

func deleteTier(tx *gorm.DB, tierID uuid.UUID) error {
	if err := tx.Where("tier_id = ?", tierID).Delete(&models.Reward{}).Error; err != nil {
		return classifyDBError(err, "failed to remove tier rewards")
	}
	if err := tx.Where("id = ?", tierID).Delete(&models.Tier{}).Error; err != nil {
		return classifyDBError(err, "failed to remove tier")
	}
	return nil
}

// finishMutation touches the program and queues the recompute job inside the
// mutation's transaction.
func (s *CatalogService) finishMutation(tx *gorm.DB, programID uuid.UUID, businessID int64, reason string, now time.Time, change *LadderChange) error {
	if err := tx.Model(&models.LoyaltyProgram{}).Where("id = ?", programID).Update("updated_at", now).Error; err != nil {
		return classifyDBError(err, "failed to update loyalty program")
	}
	job, err := s.Maintainer.CreateJob(tx, businessID, reason)
	if err != nil {
		return err
	}
	change.Job = job
	return nil
}

// afterCommit runs the queued recompute and reloads the program. A recompute
// that fails here stays pending and is picked up by the scheduler sweep; the
// ladder change itself is already committed.
func (s *CatalogService) afterCommit(ctx context.Context, businessID int64, change *LadderChange) (*LadderChange, error) {
	if change.Job != nil {
		job, err := s.Maintainer.RunJob(ctx, change.Job.ID)
		if err != nil {
			s.Logger.Warn("recompute after ladder change did not finish; it will be resumed",
				zap.Int64("business_id", businessID),
				zap.String("job_id", change.Job.ID.String()),
				zap.Error(err),
			)
		} else {
			change.Job = job
		}
	}

	program, err := findProgram(s.DB.WithContext(ctx), businessID)
	if err != nil {
		return nil, err
	}
	change.Program = program
	return change, nil
}
