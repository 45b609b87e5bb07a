package dtos

import (
	"time"

	"loyalty-engine/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	// Amounts go over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

type RedeemedRewardRequest struct {
	RewardID   string          `json:"reward_id" binding:"required"`
	RewardType string          `json:"reward_type" binding:"required,reward_type"`
	Value      decimal.Decimal `json:"value"`
}

// RedeemRequest is one purchase at the business, optionally spending
// redeemable balance and redeeming rewards.
type RedeemRequest struct {
	CustomerID           int64                   `json:"customer_id" binding:"required,gt=0"`
	BillAmount           *decimal.Decimal        `json:"bill_amount" binding:"required"`
	RedeemablePointsUsed *decimal.Decimal        `json:"redeemable_points_used"`
	RedeemedRewards      []RedeemedRewardRequest `json:"redeemed_rewards" binding:"omitempty,dive"`
}

type RedeemResponse struct {
	TransactionID    uuid.UUID       `json:"transaction_id"`
	PointsAwarded    int64           `json:"points_awarded"`
	TotalDiscount    decimal.Decimal `json:"total_discount"`
	FinalAmount      decimal.Decimal `json:"final_amount"`
	CashbackEarned   decimal.Decimal `json:"cashback_earned"`
	NewPoints        int64           `json:"new_points"`
	RedeemablePoints decimal.Decimal `json:"redeemable_points"`
	Tier             *string         `json:"tier"`
	TierUpgraded     bool            `json:"tier_upgraded"`
}

type RewardRequest struct {
	RewardType         string  `json:"reward_type" binding:"required,reward_type"`
	Percentage         int     `json:"percentage"`
	Name               string  `json:"name"`
	Text               string  `json:"text"`
	UsageLimitPerMonth float64 `json:"usage_limit_per_month"`
	OneTime            bool    `json:"one_time"`
}

// ToModel converts the request into a reward row. Shape checks per type are
// done by the catalog.
func (r RewardRequest) ToModel() models.Reward {
	return models.Reward{
		Type:               models.RewardType(r.RewardType),
		Percentage:         r.Percentage,
		Name:               r.Name,
		Text:               r.Text,
		UsageLimitPerMonth: r.UsageLimitPerMonth,
		OneTime:            r.OneTime,
	}
}

type TierRequest struct {
	Name           string          `json:"name" binding:"required"`
	PointsToUnlock int64           `json:"points_to_unlock" binding:"gte=0"`
	Rewards        []RewardRequest `json:"rewards" binding:"required,min=1,dive"`
}

// AddTierRequest adds a tier. PointsRate is required only when the tier is
// the business's first.
type AddTierRequest struct {
	Tier       *TierRequest     `json:"tier" binding:"required"`
	PointsRate *decimal.Decimal `json:"points_rate"`
}

// RemoveTierRequest removes Reward from the tier, or the whole tier when
// Reward is absent.
type RemoveTierRequest struct {
	TierName string         `json:"tierName" binding:"required"`
	Reward   *RewardRequest `json:"reward"`
}

type LadderChangeResponse struct {
	Message      string                 `json:"message"`
	Program      *models.LoyaltyProgram `json:"program,omitempty"`
	RecomputeJob *models.RecomputeJob   `json:"recompute_job,omitempty"`
}

type EnrollCustomerRequest struct {
	CustomerID int64 `json:"customer_id" binding:"required,gt=0"`
}

type CustomerResponse struct {
	CustomerID       int64           `json:"customer_id"`
	BusinessID       int64           `json:"business_id"`
	Points           int64           `json:"points"`
	RedeemablePoints decimal.Decimal `json:"redeemable_points"`
	Tier             *string         `json:"tier"`
	NextTier         *string         `json:"next_tier,omitempty"`
	PointsToNextTier *int64          `json:"points_to_next_tier,omitempty"`
	Created          bool            `json:"created,omitempty"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

type TransactionListResponse struct {
	Transactions []models.Transaction `json:"transactions"`
}
