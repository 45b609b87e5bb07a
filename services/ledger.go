package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"loyalty-engine/events"
	"loyalty-engine/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LedgerConfig tunes the ledger processor. Zero values fall back to defaults.
type LedgerConfig struct {
	MaxRetries int
	// A goal nudge fires when the next tier is at most NudgeWithinPoints away
	// and at least NudgeMinProgress of the way from the current threshold.
	NudgeWithinPoints int64
	NudgeMinProgress  float64
}

func (c LedgerConfig) withDefaults() LedgerConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.NudgeWithinPoints <= 0 {
		c.NudgeWithinPoints = 50
	}
	if c.NudgeMinProgress <= 0 {
		c.NudgeMinProgress = 0.8
	}
	return c
}

// PurchaseInput is one purchase to apply to a customer's balances.
type PurchaseInput struct {
	CustomerID           int64
	BusinessID           int64
	BillAmount           decimal.Decimal
	RedeemablePointsUsed decimal.Decimal
	RedeemedRewards      []RedeemedReward
}

// Receipt is the committed outcome of ProcessPurchase.
type Receipt struct {
	TransactionID    uuid.UUID
	PointsAwarded    int64
	TotalDiscount    decimal.Decimal
	FinalAmount      decimal.Decimal
	CashbackEarned   decimal.Decimal
	NewPoints        int64
	RedeemablePoints decimal.Decimal
	TierName         *string
	TierUpgraded     bool
	Events           []events.Event
}

// LedgerService applies purchases to CustomerLoyalty rows.
type LedgerService struct {
	DB        *gorm.DB
	Publisher events.Publisher
	Logger    *zap.Logger
	Config    LedgerConfig
	Now       func() time.Time
}

func NewLedgerService(db *gorm.DB, publisher events.Publisher, logger *zap.Logger, cfg LedgerConfig) *LedgerService {
	logger = loggerOrNop(logger)
	if publisher == nil {
		publisher = events.NewLogPublisher(logger)
	}
	return &LedgerService{
		DB:        db,
		Publisher: publisher,
		Logger:    logger,
		Config:    cfg.withDefaults(),
		Now:       time.Now,
	}
}

// maxAmount bounds every money field; amounts are stored as numeric(14,2).
var maxAmount = decimal.New(1, 12)

func validateAmount(field string, d decimal.Decimal) error {
	if d.IsNegative() {
		return ValidationError("%s must not be negative", field)
	}
	if d.GreaterThanOrEqual(maxAmount) {
		return ValidationError("%s must be less than %s", field, maxAmount)
	}
	if !d.Equal(d.Round(2)) {
		return ValidationError("%s must have at most 2 decimal places", field)
	}
	return nil
}

func validatePurchase(in PurchaseInput) error {
	if in.CustomerID <= 0 {
		return ValidationError("customer_id must be a positive integer")
	}
	if in.BusinessID <= 0 {
		return ValidationError("business_id must be a positive integer")
	}
	if err := validateAmount("bill_amount", in.BillAmount); err != nil {
		return err
	}
	if err := validateAmount("redeemable_points_used", in.RedeemablePointsUsed); err != nil {
		return err
	}

	rewardTotal := decimal.Zero
	for i, r := range in.RedeemedRewards {
		switch r.RewardType {
		case models.RewardTypeCashback, models.RewardTypeLimitedUsage, models.RewardTypeCustom:
		default:
			return ValidationError("redeemed_rewards[%d]: unknown reward_type %q", i, r.RewardType)
		}
		if err := validateAmount(fmt.Sprintf("redeemed_rewards[%d].value", i), r.Value); err != nil {
			return err
		}
		rewardTotal = rewardTotal.Add(r.Value)
	}
	// Reward values together may discount at most the whole bill.
	if rewardTotal.GreaterThan(in.BillAmount) {
		return ValidationError("redeemed reward values (%s) exceed bill_amount (%s)", rewardTotal, in.BillAmount)
	}
	if in.RedeemablePointsUsed.Add(rewardTotal).GreaterThanOrEqual(maxAmount) {
		return ValidationError("total discount must be less than %s", maxAmount)
	}
	return nil
}

// ProcessPurchase awards points, moves the redeemable balance, records the
// transaction with its redemptions and re-derives the tier, all in one
// transaction holding the customer's row lock. Events are published only after
// commit.
func (s *LedgerService) ProcessPurchase(ctx context.Context, in PurchaseInput) (*Receipt, error) {
	if err := validatePurchase(in); err != nil {
		return nil, err
	}

	var receipt *Receipt
	err := withTxRetry(ctx, s.DB, s.Config.MaxRetries, s.Logger, func(tx *gorm.DB) error {
		r, err := s.applyPurchase(tx, in)
		if err != nil {
			return err
		}
		receipt = r
		return nil
	})
	if err != nil {
		if KindOf(err) == KindInternal {
			s.Logger.Error("purchase failed",
				zap.Int64("customer_id", in.CustomerID),
				zap.Int64("business_id", in.BusinessID),
				zap.Error(err),
			)
		}
		return nil, err
	}

	s.publish(ctx, receipt.Events)
	return receipt, nil
}

func (s *LedgerService) applyPurchase(tx *gorm.DB, in PurchaseInput) (*Receipt, error) {
	now := s.Now()

	var account models.CustomerLoyalty
	if err := lockForUpdate(tx).
		Where("customer_id = ? AND business_id = ?", in.CustomerID, in.BusinessID).
		First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError("customer %d has no loyalty relationship with this business", in.CustomerID)
		}
		return nil, classifyDBError(err, "failed to load customer loyalty")
	}

	ladder, err := loadLadder(tx, in.BusinessID)
	if err != nil {
		return nil, err
	}

	// Cashback and reward entitlement follow the tier held before this purchase.
	preTier := ResolveTier(account.Points, ladder)

	if err := ValidateRedemptions(preTier, in.RedeemedRewards, now, s.usageCounter(tx, in.CustomerID, in.BusinessID)); err != nil {
		return nil, err
	}

	totalDiscount, finalAmount := ComputeDiscount(in.BillAmount, in.RedeemablePointsUsed, in.RedeemedRewards)

	// Points reward gross spend: the discount does not reduce them.
	pointsToAward := in.BillAmount.Floor().IntPart()

	cashback := decimal.Zero
	if preTier != nil {
		percentages, err := preTier.CashbackPercentages()
		if err != nil {
			return nil, InternalError(err, "tier has a malformed reward")
		}
		for _, pct := range percentages {
			cashback = cashback.Add(in.BillAmount.Mul(decimal.NewFromInt(int64(pct))).Div(decimal.NewFromInt(100)))
		}
	}
	cashback = cashback.Round(2)

	newPoints := account.Points + pointsToAward
	newRedeemable := decimal.Max(decimal.Zero, account.RedeemablePoints.Sub(in.RedeemablePointsUsed).Add(cashback))

	postTier := ResolveTier(newPoints, ladder)
	var postName *string
	if postTier != nil {
		postName = &postTier.Name
	}
	previousName := account.CurrentTierName
	tierChanged := !sameTierName(previousName, postName)
	upgraded := tierChanged && isUpgrade(previousName, postTier, ladder)

	updates := map[string]interface{}{
		"points":            newPoints,
		"redeemable_points": newRedeemable,
		"version":           gorm.Expr("version + 1"),
		"updated_at":        now,
	}
	if tierChanged {
		updates["current_tier_name"] = postName
	}
	if err := tx.Model(&models.CustomerLoyalty{}).Where("id = ?", account.ID).Updates(updates).Error; err != nil {
		return nil, classifyDBError(err, "failed to update customer loyalty")
	}

	txn := models.Transaction{
		ID:                   uuid.New(),
		CustomerID:           in.CustomerID,
		BusinessID:           in.BusinessID,
		BillAmount:           in.BillAmount,
		RedeemablePointsUsed: in.RedeemablePointsUsed,
		TotalDiscount:        totalDiscount,
		FinalAmount:          finalAmount,
		CashbackEarned:       cashback,
		PointsAwarded:        pointsToAward,
		CreatedAt:            now,
	}
	if err := tx.Omit("Redemptions").Create(&txn).Error; err != nil {
		return nil, classifyDBError(err, "failed to record transaction")
	}

	if len(in.RedeemedRewards) > 0 {
		redemptions := make([]models.RewardRedemption, len(in.RedeemedRewards))
		for i, r := range in.RedeemedRewards {
			redemptions[i] = models.RewardRedemption{
				ID:            uuid.New(),
				TransactionID: txn.ID,
				CustomerID:    in.CustomerID,
				BusinessID:    in.BusinessID,
				RewardID:      r.RewardID,
				RewardType:    r.RewardType,
				RewardValue:   r.Value,
				CreatedAt:     now,
			}
		}
		if err := tx.CreateInBatches(&redemptions, 100).Error; err != nil {
			return nil, classifyDBError(err, "failed to record reward redemptions")
		}
	}

	receipt := &Receipt{
		TransactionID:    txn.ID,
		PointsAwarded:    pointsToAward,
		TotalDiscount:    totalDiscount,
		FinalAmount:      finalAmount,
		CashbackEarned:   cashback,
		NewPoints:        newPoints,
		RedeemablePoints: newRedeemable,
		TierName:         postName,
		TierUpgraded:     upgraded,
	}
	receipt.Events = s.buildEvents(in, receipt, previousName, postTier, ladder, now)
	return receipt, nil
}

// isUpgrade reports whether moving from the stored tier name to next goes up
// the ladder. A stored name no longer in the ladder belongs to a removed tier;
// its rank is unknown, so the move is not reported as an upgrade.
func isUpgrade(previous *string, next *models.Tier, ladder []models.Tier) bool {
	if next == nil {
		return false
	}
	if previous == nil {
		return true
	}
	for _, t := range ladder {
		if t.Name == *previous {
			return next.PointsToUnlock > t.PointsToUnlock
		}
	}
	return false
}

func (s *LedgerService) buildEvents(in PurchaseInput, r *Receipt, previous *string, postTier *models.Tier, ladder []models.Tier, now time.Time) []events.Event {
	base := events.Event{
		CustomerID:  in.CustomerID,
		BusinessID:  in.BusinessID,
		TotalPoints: r.NewPoints,
		OccurredAt:  now,
	}
	if postTier != nil {
		base.TierName = postTier.Name
	}

	var out []events.Event

	if r.TierUpgraded {
		e := base
		e.Type = events.TypeTierUpgraded
		if previous != nil {
			e.PreviousTier = *previous
		}
		out = append(out, e)
	}

	earned := base
	earned.Type = events.TypePointsEarned
	earned.PointsAwarded = r.PointsAwarded
	out = append(out, earned)

	if next := NextTier(r.NewPoints, ladder); next != nil {
		var floor int64
		if postTier != nil {
			floor = postTier.PointsToUnlock
		}
		required := next.PointsToUnlock - r.NewPoints
		span := next.PointsToUnlock - floor
		progress := float64(r.NewPoints-floor) / float64(span)
		if required <= s.Config.NudgeWithinPoints && progress >= s.Config.NudgeMinProgress {
			nudge := base
			nudge.Type = events.TypeGoalNudge
			nudge.NextTier = next.Name
			nudge.PointsRequired = required
			nudge.PercentageComplete, _ = decimal.NewFromFloat(progress * 100).Round(2).Float64()
			out = append(out, nudge)
		}
	}
	return out
}

func (s *LedgerService) publish(ctx context.Context, evts []events.Event) {
	ctx = context.WithoutCancel(ctx)
	for _, e := range evts {
		if err := s.Publisher.Publish(ctx, e); err != nil {
			s.Logger.Warn("failed to publish loyalty event",
				zap.String("type", string(e.Type)),
				zap.Int64("customer_id", e.CustomerID),
				zap.Int64("business_id", e.BusinessID),
				zap.Error(err),
			)
		}
	}
}

func (s *LedgerService) usageCounter(tx *gorm.DB, customerID, businessID int64) UsageCounter {
	return func(rewardID string, since *time.Time) (int64, error) {
		q := tx.Model(&models.RewardRedemption{}).
			Where("customer_id = ? AND business_id = ? AND reward_id = ?", customerID, businessID, rewardID)
		if since != nil {
			q = q.Where("created_at >= ?", *since)
		}
		var n int64
		if err := q.Count(&n).Error; err != nil {
			return 0, classifyDBError(err, "failed to count reward usage")
		}
		return n, nil
	}
}
