package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"loyalty-engine/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// RecomputeConfig tunes the tier ladder maintainer.
type RecomputeConfig struct {
	BatchSize  int
	Workers    int
	MaxRetries int
}

func (c RecomputeConfig) withDefaults() RecomputeConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = 200
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	return c
}

// TierLadderMaintainer re-derives CustomerLoyalty.CurrentTierName after a
// ladder edit.
//
// Each customer is its own unit of work: the row is locked, resolved against
// the ladder and written only when the tier changed. Customers are walked in
// ascending customer_id pages and the job cursor is saved after every page, so
// a crashed job resumes where it stopped and a re-run changes nothing that is
// already correct. A customer that still fails after retries is recorded on
// the job and does not stop the pass.
type TierLadderMaintainer struct {
	DB     *gorm.DB
	Logger *zap.Logger
	Config RecomputeConfig
	Now    func() time.Time
}

func NewTierLadderMaintainer(db *gorm.DB, logger *zap.Logger, cfg RecomputeConfig) *TierLadderMaintainer {
	return &TierLadderMaintainer{
		DB:     db,
		Logger: loggerOrNop(logger),
		Config: cfg.withDefaults(),
		Now:    time.Now,
	}
}

// CreateJob inserts a pending job using tx, so a ladder edit and the job that
// follows it commit together.
func (m *TierLadderMaintainer) CreateJob(tx *gorm.DB, businessID int64, reason string) (*models.RecomputeJob, error) {
	now := m.Now()
	job := models.RecomputeJob{
		ID:         uuid.New(),
		BusinessID: businessID,
		Status:     models.JobStatusPending,
		Reason:     reason,
		StartedAt:  now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	job.SetFailedIDs(nil)
	if err := tx.Create(&job).Error; err != nil {
		return nil, classifyDBError(err, "failed to create recompute job")
	}
	return &job, nil
}

// RecomputeAllCustomers creates a job for the business and runs it to the end.
func (m *TierLadderMaintainer) RecomputeAllCustomers(ctx context.Context, businessID int64, reason string) (*models.RecomputeJob, error) {
	job, err := m.CreateJob(m.DB.WithContext(ctx), businessID, reason)
	if err != nil {
		return nil, err
	}
	return m.RunJob(ctx, job.ID)
}

// GetJob returns a job owned by the business.
func (m *TierLadderMaintainer) GetJob(ctx context.Context, businessID int64, jobID uuid.UUID) (*models.RecomputeJob, error) {
	var job models.RecomputeJob
	err := m.DB.WithContext(ctx).Where("id = ? AND business_id = ?", jobID, businessID).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFoundError("recompute job not found")
	}
	if err != nil {
		return nil, classifyDBError(err, "failed to load recompute job")
	}
	return &job, nil
}

// RunJob processes a job from its cursor until every customer of the business
// has been visited. Finished jobs are returned as they are.
func (m *TierLadderMaintainer) RunJob(ctx context.Context, jobID uuid.UUID) (*models.RecomputeJob, error) {
	ctx = context.WithoutCancel(ctx)
	db := m.DB.WithContext(ctx)

	var job models.RecomputeJob
	if err := db.Where("id = ?", jobID).First(&job).Error; err != nil {
		return nil, classifyDBError(err, "failed to load recompute job")
	}
	if job.IsFinished() {
		return &job, nil
	}

	log := m.Logger.With(zap.String("job_id", job.ID.String()), zap.Int64("business_id", job.BusinessID))
	job.Status = models.JobStatusProcessing
	if err := m.saveProgress(db, &job); err != nil {
		return nil, err
	}
	log.Info("tier recompute started", zap.Int64("cursor", job.Cursor), zap.String("reason", job.Reason))

	failed := job.FailedIDs()
	for {
		var customerIDs []int64
		if err := db.Model(&models.CustomerLoyalty{}).
			Where("business_id = ? AND customer_id > ?", job.BusinessID, job.Cursor).
			Order("customer_id ASC").
			Limit(m.Config.BatchSize).
			Pluck("customer_id", &customerIDs).Error; err != nil {
			return &job, classifyDBError(err, "failed to page customers")
		}
		if len(customerIDs) == 0 {
			break
		}

		// The ladder is re-read per page so a later edit is never overwritten
		// by an older pass.
		ladder, err := loadLadder(db, job.BusinessID)
		if err != nil {
			return &job, err
		}

		changed, pageFailed := m.recomputePage(ctx, job.BusinessID, customerIDs, ladder, log)

		job.Cursor = customerIDs[len(customerIDs)-1]
		job.Processed += len(customerIDs)
		job.Changed += changed
		job.Failed += len(pageFailed)
		failed = append(failed, pageFailed...)
		job.SetFailedIDs(failed)
		if err := m.saveProgress(db, &job); err != nil {
			return &job, err
		}
	}

	now := m.Now()
	job.CompletedAt = &now
	job.Status = models.JobStatusCompleted
	if job.Failed > 0 {
		job.Status = models.JobStatusFailed
	}
	if err := m.saveProgress(db, &job); err != nil {
		return &job, err
	}

	log.Info("tier recompute finished",
		zap.String("status", job.Status),
		zap.Int("processed", job.Processed),
		zap.Int("changed", job.Changed),
		zap.Int("failed", job.Failed),
	)
	return &job, nil
}

func (m *TierLadderMaintainer) recomputePage(ctx context.Context, businessID int64, customerIDs []int64, ladder []models.Tier, log *zap.Logger) (int, []int64) {
	var (
		mu      sync.Mutex
		changed int
		failed  []int64
	)

	g := new(errgroup.Group)
	g.SetLimit(m.Config.Workers)
	for _, id := range customerIDs {
		customerID := id
		g.Go(func() error {
			didChange, err := m.RecomputeCustomer(ctx, businessID, customerID, ladder)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Warn("tier recompute failed for customer", zap.Int64("customer_id", customerID), zap.Error(err))
				failed = append(failed, customerID)
				return nil
			}
			if didChange {
				changed++
			}
			return nil
		})
	}
	_ = g.Wait()
	return changed, failed
}

// RecomputeCustomer brings one customer's cached tier in line with ladder. It
// takes the same row lock as the ledger, so it serializes with a purchase for
// the same customer. A customer removed in the meantime is not an error.
func (m *TierLadderMaintainer) RecomputeCustomer(ctx context.Context, businessID, customerID int64, ladder []models.Tier) (bool, error) {
	changed := false
	err := withTxRetry(ctx, m.DB, m.Config.MaxRetries, m.Logger, func(tx *gorm.DB) error {
		changed = false
		var accounts []models.CustomerLoyalty
		if err := lockForUpdate(tx).
			Where("customer_id = ? AND business_id = ?", customerID, businessID).
			Limit(1).
			Find(&accounts).Error; err != nil {
			return classifyDBError(err, "failed to lock customer loyalty")
		}
		if len(accounts) == 0 {
			return nil
		}
		account := accounts[0]

		resolved := ResolveTierName(account.Points, ladder)
		if sameTierName(account.CurrentTierName, resolved) {
			return nil
		}
		if err := tx.Model(&models.CustomerLoyalty{}).Where("id = ?", account.ID).Updates(map[string]interface{}{
			"current_tier_name": resolved,
			"version":           gorm.Expr("version + 1"),
			"updated_at":        m.Now(),
		}).Error; err != nil {
			return classifyDBError(err, "failed to update customer tier")
		}
		changed = true
		return nil
	})
	return changed, err
}

func (m *TierLadderMaintainer) saveProgress(db *gorm.DB, job *models.RecomputeJob) error {
	job.UpdatedAt = m.Now()
	err := db.Model(&models.RecomputeJob{}).Where("id = ?", job.ID).Updates(map[string]interface{}{
		"status":              job.Status,
		"cursor":              job.Cursor,
		"processed":           job.Processed,
		"changed":             job.Changed,
		"failed":              job.Failed,
		"failed_customer_ids": job.FailedCustomerIDs,
		"completed_at":        job.CompletedAt,
		"updated_at":          job.UpdatedAt,
	}).Error
	return classifyDBError(err, "failed to save recompute job progress")
}

// ClaimStaleJobs returns ids of unfinished jobs that have not made progress
// since staleAfter, marking each as claimed. The claim is a conditional update
// on updated_at, so concurrent sweepers never take the same job.
func (m *TierLadderMaintainer) ClaimStaleJobs(ctx context.Context, staleAfter time.Duration) ([]uuid.UUID, error) {
	db := m.DB.WithContext(ctx)
	cutoff := m.Now().Add(-staleAfter)

	var stale []models.RecomputeJob
	if err := db.Where("status IN ? AND updated_at < ?", []string{models.JobStatusPending, models.JobStatusProcessing}, cutoff).
		Order("created_at ASC").
		Find(&stale).Error; err != nil {
		return nil, classifyDBError(err, "failed to list stale recompute jobs")
	}

	var claimed []uuid.UUID
	for _, job := range stale {
		res := db.Model(&models.RecomputeJob{}).
			Where("id = ? AND updated_at = ?", job.ID, job.UpdatedAt).
			Update("updated_at", m.Now())
		if res.Error != nil {
			return claimed, classifyDBError(res.Error, "failed to claim recompute job")
		}
		if res.RowsAffected == 1 {
			claimed = append(claimed, job.ID)
		}
	}
	return claimed, nil
}
