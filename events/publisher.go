// Package events carries the notification-worthy facts produced by the
// loyalty ledger to whatever delivers them.
package events

import (
	"context"
	"time"
)

type Type string

const (
	TypePointsEarned Type = "points_earned"
	TypeTierUpgraded Type = "tier_upgraded"
	TypeGoalNudge    Type = "goal_nudge"
)

// Event is the payload published for every outbound loyalty event. Fields not
// relevant to the event type are left zero and omitted from JSON.
type Event struct {
	Type               Type      `json:"type"`
	CustomerID         int64     `json:"customer_id"`
	BusinessID         int64     `json:"business_id"`
	PointsAwarded      int64     `json:"points_awarded,omitempty"`
	TotalPoints        int64     `json:"total_points"`
	TierName           string    `json:"tier_name,omitempty"`
	PreviousTier       string    `json:"previous_tier,omitempty"`
	NextTier           string    `json:"next_tier,omitempty"`
	PointsRequired     int64     `json:"points_required,omitempty"`
	PercentageComplete float64   `json:"percentage_complete,omitempty"`
	OccurredAt         time.Time `json:"occurred_at"`
}

// RoutingKey is the topic routing key the event is published under.
func (e Event) RoutingKey() string {
	return "loyalty." + string(e.Type)
}

// Publisher is implemented by anything that can hand events to the
// notification side.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close()
}
