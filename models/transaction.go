package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Transaction is the immutable record of one purchase.
type Transaction struct {
	ID                   uuid.UUID          `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	CustomerID           int64              `gorm:"not null;index:idx_transactions_customer_business" json:"customer_id"`
	BusinessID           int64              `gorm:"not null;index:idx_transactions_customer_business" json:"business_id"`
	BillAmount           decimal.Decimal    `gorm:"type:numeric(14,2);not null" json:"bill_amount"`
	RedeemablePointsUsed decimal.Decimal    `gorm:"type:numeric(14,2);not null;default:0" json:"redeemable_points_used"`
	TotalDiscount        decimal.Decimal    `gorm:"type:numeric(14,2);not null;default:0" json:"total_discount"`
	FinalAmount          decimal.Decimal    `gorm:"type:numeric(14,2);not null" json:"final_amount"`
	CashbackEarned       decimal.Decimal    `gorm:"type:numeric(14,2);not null;default:0" json:"cashback_earned"`
	PointsAwarded        int64              `gorm:"not null" json:"points_awarded"`
	Redemptions          []RewardRedemption `gorm:"foreignKey:TransactionID" json:"redemptions,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
}

// RewardRedemption is one redeemed reward line item of a transaction.
// CustomerID and BusinessID are copied from the transaction so usage limits
// can be counted without a join.
type RewardRedemption struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	TransactionID uuid.UUID       `gorm:"type:uuid;not null;index" json:"transaction_id"`
	CustomerID    int64           `gorm:"not null;index:idx_redemptions_usage" json:"customer_id"`
	BusinessID    int64           `gorm:"not null;index:idx_redemptions_usage" json:"business_id"`
	RewardID      string          `gorm:"not null;index:idx_redemptions_usage" json:"reward_id"`
	RewardType    RewardType      `gorm:"not null" json:"reward_type"`
	RewardValue   decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"reward_value"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

func (r *RewardRedemption) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
