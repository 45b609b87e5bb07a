package services

import (
	"fmt"
	"time"

	"loyalty-engine/models"

	"github.com/shopspring/decimal"
)

// RedeemedReward is one reward the caller asks to apply to a bill.
type RedeemedReward struct {
	RewardID   string
	RewardType models.RewardType
	Value      decimal.Decimal
}

// ComputeDiscount returns the total discount (redeemable points used plus the
// value of every redeemed reward) and the payable amount, floored at zero.
func ComputeDiscount(billAmount, redeemablePointsUsed decimal.Decimal, rewards []RedeemedReward) (totalDiscount, finalAmount decimal.Decimal) {
	totalDiscount = redeemablePointsUsed
	for _, r := range rewards {
		totalDiscount = totalDiscount.Add(r.Value)
	}
	finalAmount = decimal.Max(decimal.Zero, billAmount.Sub(totalDiscount))
	return totalDiscount, finalAmount
}

// UsageCounter returns how many times the customer has redeemed rewardID
// since the given instant; a nil since means ever.
type UsageCounter func(rewardID string, since *time.Time) (int64, error)

// ValidateRedemptions checks that every requested reward belongs to tier, has
// the declared type, carries a usable value and, for limited-usage rewards, is
// still within its frequency limit.
func ValidateRedemptions(tier *models.Tier, rewards []RedeemedReward, now time.Time, countUsage UsageCounter) error {
	if len(rewards) == 0 {
		return nil
	}
	if tier == nil {
		return ValidationError("customer has not unlocked a tier; no rewards can be redeemed")
	}

	inRequest := make(map[string]int64)
	for i, req := range rewards {
		if req.RewardID == "" {
			return ValidationError("redeemed_rewards[%d]: reward_id is required", i)
		}
		if req.Value.IsNegative() {
			return ValidationError("redeemed_rewards[%d]: value must not be negative", i)
		}

		reward := tier.FindRewardByID(req.RewardID)
		if reward == nil {
			return ValidationError("reward %s is not available in tier %q", req.RewardID, tier.Name)
		}
		if reward.Type != req.RewardType {
			return ValidationError("reward %s is %s, not %s", req.RewardID, reward.Type, req.RewardType)
		}

		variant, err := reward.Variant()
		if err != nil {
			return InternalError(err, fmt.Sprintf("reward %s is malformed", req.RewardID))
		}

		switch v := variant.(type) {
		case models.CashbackReward:
			return ValidationError("reward %s is cashback and accrues automatically; it cannot be redeemed", req.RewardID)
		case models.CustomReward:
			if !req.Value.IsZero() {
				return ValidationError("reward %s is informational and cannot carry a value", req.RewardID)
			}
		case models.LimitedUsageReward:
			allowed, window := v.UsageWindow()
			var since *time.Time
			if window > 0 {
				s := now.Add(-window)
				since = &s
			}
			used, err := countUsage(req.RewardID, since)
			if err != nil {
				return err
			}
			if used+inRequest[req.RewardID] >= int64(allowed) {
				if v.OneTime {
					return ValidationError("reward %s can only be redeemed once", req.RewardID)
				}
				return ValidationError("reward %s has reached its usage limit", req.RewardID)
			}
			inRequest[req.RewardID]++
		default:
			return InternalError(fmt.Errorf("unhandled reward variant %T", variant), "unsupported reward")
		}
	}
	return nil
}
