package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CustomerLoyalty is the per (customer, business) balance row. Only the ledger
// processor and the tier ladder maintainer write to it, always under a row lock.
type CustomerLoyalty struct {
	ID               uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	CustomerID       int64           `gorm:"not null;uniqueIndex:idx_customer_business" json:"customer_id"`
	BusinessID       int64           `gorm:"not null;uniqueIndex:idx_customer_business;index" json:"business_id"`
	Points           int64           `gorm:"not null;default:0" json:"points"`
	RedeemablePoints decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"redeemable_points"`
	CurrentTierName  *string         `json:"current_tier_name"`
	Version          int64           `gorm:"not null;default:0" json:"version"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (CustomerLoyalty) TableName() string {
	return "customer_loyalties"
}

func (c *CustomerLoyalty) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// TierName returns the cached tier name, "" when the customer has no tier.
func (c *CustomerLoyalty) TierName() string {
	if c.CurrentTierName == nil {
		return ""
	}
	return *c.CurrentTierName
}
