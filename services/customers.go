package services

import (
	"context"
	"errors"

	"loyalty-engine/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EnsureCustomer enrols a customer with a business. It is idempotent: an
// existing relationship is returned unchanged with created=false.
func (s *LedgerService) EnsureCustomer(ctx context.Context, customerID, businessID int64) (*models.CustomerLoyalty, bool, error) {
	if customerID <= 0 || businessID <= 0 {
		return nil, false, ValidationError("customer_id and business_id must be positive integers")
	}

	var account models.CustomerLoyalty
	created := false
	err := withTxRetry(ctx, s.DB, s.Config.MaxRetries, s.Logger, func(tx *gorm.DB) error {
		ladder, err := loadLadder(tx, businessID)
		if err != nil {
			return err
		}

		row := models.CustomerLoyalty{
			CustomerID:      customerID,
			BusinessID:      businessID,
			CurrentTierName: ResolveTierName(0, ladder),
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "customer_id"}, {Name: "business_id"}},
			DoNothing: true,
		}).Create(&row)
		if res.Error != nil {
			return classifyDBError(res.Error, "failed to enrol customer")
		}
		created = res.RowsAffected == 1

		return tx.Where("customer_id = ? AND business_id = ?", customerID, businessID).First(&account).Error
	})
	if err != nil {
		return nil, false, classifyDBError(err, "failed to enrol customer")
	}

	if created {
		s.Logger.Info("customer enrolled",
			zap.Int64("customer_id", customerID),
			zap.Int64("business_id", businessID),
		)
	}
	return &account, created, nil
}

// GetCustomer returns the loyalty row for (customer, business).
func (s *LedgerService) GetCustomer(ctx context.Context, customerID, businessID int64) (*models.CustomerLoyalty, error) {
	var account models.CustomerLoyalty
	err := s.DB.WithContext(ctx).
		Where("customer_id = ? AND business_id = ?", customerID, businessID).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFoundError("customer %d has no loyalty relationship with this business", customerID)
	}
	if err != nil {
		return nil, classifyDBError(err, "failed to load customer loyalty")
	}
	return &account, nil
}

// ListTransactions returns the customer's most recent purchases, newest first.
func (s *LedgerService) ListTransactions(ctx context.Context, customerID, businessID int64, limit int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var txns []models.Transaction
	err := s.DB.WithContext(ctx).
		Preload("Redemptions").
		Where("customer_id = ? AND business_id = ?", customerID, businessID).
		Order("created_at DESC").
		Limit(limit).
		Find(&txns).Error
	if err != nil {
		return nil, classifyDBError(err, "failed to load transactions")
	}
	return txns, nil
}
