package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LoyaltyProgram is the reward catalog owned by a single business.
type LoyaltyProgram struct {
	ID         uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	BusinessID int64           `gorm:"not null;uniqueIndex" json:"business_id"`
	PointsRate decimal.Decimal `gorm:"type:numeric(10,2);not null;default:1" json:"points_rate"`
	Tiers      []Tier          `gorm:"foreignKey:ProgramID" json:"tiers"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type Tier struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	ProgramID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_tier_program_name;uniqueIndex:idx_tier_program_threshold" json:"-"`
	Name           string    `gorm:"not null;uniqueIndex:idx_tier_program_name" json:"name"`
	PointsToUnlock int64     `gorm:"not null;uniqueIndex:idx_tier_program_threshold" json:"points_to_unlock"`
	Rewards        []Reward  `gorm:"foreignKey:TierID" json:"rewards"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (p *LoyaltyProgram) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (t *Tier) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Ladder returns the program's tiers sorted ascending by unlock threshold.
// The receiver is not modified.
func (p *LoyaltyProgram) Ladder() []Tier {
	return SortLadder(p.Tiers)
}

// TierByName returns the tier with the given name, or nil.
func (p *LoyaltyProgram) TierByName(name string) *Tier {
	for i := range p.Tiers {
		if p.Tiers[i].Name == name {
			return &p.Tiers[i]
		}
	}
	return nil
}

// SortLadder copies tiers and sorts the copy by PointsToUnlock ascending.
func SortLadder(tiers []Tier) []Tier {
	ladder := make([]Tier, len(tiers))
	copy(ladder, tiers)
	sort.SliceStable(ladder, func(i, j int) bool {
		return ladder[i].PointsToUnlock < ladder[j].PointsToUnlock
	})
	return ladder
}

// HasSameRewards reports whether both tiers carry the same multiset of rewards,
// compared structurally and ignoring order.
func (t *Tier) HasSameRewards(other []Reward) bool {
	if len(t.Rewards) != len(other) {
		return false
	}
	a := rewardSignatures(t.Rewards)
	b := rewardSignatures(other)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// FindReward returns the index of the first reward structurally equal to r, or -1.
func (t *Tier) FindReward(r Reward) int {
	sig := r.Signature()
	for i := range t.Rewards {
		if t.Rewards[i].Signature() == sig {
			return i
		}
	}
	return -1
}

// FindRewardByID returns the reward with the given id, or nil.
func (t *Tier) FindRewardByID(id string) *Reward {
	for i := range t.Rewards {
		if t.Rewards[i].ID.String() == id {
			return &t.Rewards[i]
		}
	}
	return nil
}

// CashbackPercentages lists the percentages of the tier's cashback rewards.
func (t *Tier) CashbackPercentages() ([]int, error) {
	var out []int
	for _, r := range t.Rewards {
		v, err := r.Variant()
		if err != nil {
			return nil, err
		}
		switch rv := v.(type) {
		case CashbackReward:
			out = append(out, rv.Percentage)
		case LimitedUsageReward, CustomReward:
		default:
			return nil, fmt.Errorf("unhandled reward variant %T", v)
		}
	}
	return out, nil
}

func rewardSignatures(rewards []Reward) []string {
	sigs := make([]string, len(rewards))
	for i, r := range rewards {
		sigs[i] = r.Signature()
	}
	sort.Strings(sigs)
	return sigs
}

// TierNames joins ladder names for log output.
func TierNames(tiers []Tier) string {
	names := make([]string, len(tiers))
	for i, t := range tiers {
		names[i] = t.Name
	}
	return strings.Join(names, ",")
}
