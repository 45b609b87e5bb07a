package models

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RewardType string

const (
	RewardTypeCashback     RewardType = "cashback"
	RewardTypeLimitedUsage RewardType = "limited_usage"
	RewardTypeCustom       RewardType = "custom"
)

// Bounds for limited-usage frequency, in redemptions per month.
const (
	MinUsageLimitPerMonth = 0.5
	MaxUsageLimitPerMonth = 12
)

// Reward is the storage row for a tier reward. The columns used depend on
// Type; Variant converts the row into its typed form.
type Reward struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	TierID             uuid.UUID  `gorm:"type:uuid;not null;index" json:"-"`
	Type               RewardType `gorm:"not null" json:"reward_type"`
	Percentage         int        `gorm:"default:0" json:"percentage,omitempty"`
	Name               string     `json:"name,omitempty"`
	Text               string     `json:"text,omitempty"`
	UsageLimitPerMonth float64    `gorm:"default:0" json:"usage_limit_per_month,omitempty"`
	OneTime            bool       `gorm:"default:false" json:"one_time,omitempty"`
	Position           int        `gorm:"default:0" json:"-"`
	CreatedAt          time.Time  `json:"created_at"`
}

func (r *Reward) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// RewardVariant is implemented by CashbackReward, LimitedUsageReward and
// CustomReward only.
type RewardVariant interface {
	RewardType() RewardType
	isRewardVariant()
}

type CashbackReward struct {
	Percentage int
}

type LimitedUsageReward struct {
	Text               string
	UsageLimitPerMonth float64
	OneTime            bool
}

type CustomReward struct {
	Name string
	Text string
}

func (CashbackReward) RewardType() RewardType     { return RewardTypeCashback }
func (LimitedUsageReward) RewardType() RewardType { return RewardTypeLimitedUsage }
func (CustomReward) RewardType() RewardType       { return RewardTypeCustom }

func (CashbackReward) isRewardVariant()     {}
func (LimitedUsageReward) isRewardVariant() {}
func (CustomReward) isRewardVariant()       {}

// Variant validates the row for its type and returns the typed reward.
func (r Reward) Variant() (RewardVariant, error) {
	switch r.Type {
	case RewardTypeCashback:
		if r.Percentage < 1 || r.Percentage > 100 {
			return nil, fmt.Errorf("cashback percentage must be between 1 and 100")
		}
		return CashbackReward{Percentage: r.Percentage}, nil
	case RewardTypeLimitedUsage:
		if r.Text == "" {
			return nil, fmt.Errorf("limited_usage reward requires text")
		}
		if r.UsageLimitPerMonth < MinUsageLimitPerMonth || r.UsageLimitPerMonth > MaxUsageLimitPerMonth {
			return nil, fmt.Errorf("usage_limit_per_month must be between %v and %v", MinUsageLimitPerMonth, MaxUsageLimitPerMonth)
		}
		return LimitedUsageReward{Text: r.Text, UsageLimitPerMonth: r.UsageLimitPerMonth, OneTime: r.OneTime}, nil
	case RewardTypeCustom:
		if r.Name == "" || r.Text == "" {
			return nil, fmt.Errorf("custom reward requires name and text")
		}
		return CustomReward{Name: r.Name, Text: r.Text}, nil
	default:
		return nil, fmt.Errorf("unknown reward type %q", r.Type)
	}
}

// Signature identifies a reward by type and its descriptive fields only, so two
// rows describing the same perk compare equal regardless of id.
func (r Reward) Signature() string {
	switch r.Type {
	case RewardTypeCashback:
		return "cashback|" + strconv.Itoa(r.Percentage)
	case RewardTypeLimitedUsage:
		return fmt.Sprintf("limited_usage|%s|%s|%t", r.Text, strconv.FormatFloat(r.UsageLimitPerMonth, 'f', -1, 64), r.OneTime)
	case RewardTypeCustom:
		return "custom|" + r.Name + "|" + r.Text
	default:
		return "unknown|" + string(r.Type)
	}
}

// UsageWindow returns how many redemptions are allowed within which trailing
// window. A one-time reward allows a single redemption ever (window 0).
func (v LimitedUsageReward) UsageWindow() (allowed int, window time.Duration) {
	if v.OneTime {
		return 1, 0
	}
	const month = 30 * 24 * time.Hour
	if v.UsageLimitPerMonth >= 1 {
		return int(v.UsageLimitPerMonth), month
	}
	return 1, time.Duration(float64(month) / v.UsageLimitPerMonth)
}
