package services

import "loyalty-engine/models"

// ResolveTier returns the tier with the greatest threshold not above points,
// or nil when points are below every threshold. tiers need not be sorted.
func ResolveTier(points int64, tiers []models.Tier) *models.Tier {
	ladder := models.SortLadder(tiers)
	for i := len(ladder) - 1; i >= 0; i-- {
		if ladder[i].PointsToUnlock <= points {
			t := ladder[i]
			return &t
		}
	}
	return nil
}

// ResolveTierName is ResolveTier reduced to the cached column value.
func ResolveTierName(points int64, tiers []models.Tier) *string {
	t := ResolveTier(points, tiers)
	if t == nil {
		return nil
	}
	name := t.Name
	return &name
}

// NextTier returns the lowest tier whose threshold is above points, or nil.
func NextTier(points int64, tiers []models.Tier) *models.Tier {
	for _, t := range models.SortLadder(tiers) {
		if t.PointsToUnlock > points {
			next := t
			return &next
		}
	}
	return nil
}

// ValidateLadder rejects ladders that cannot be resolved deterministically:
// duplicate names or duplicate thresholds.
func ValidateLadder(tiers []models.Tier) error {
	names := make(map[string]bool, len(tiers))
	thresholds := make(map[int64]string, len(tiers))
	for _, t := range tiers {
		if names[t.Name] {
			return ConflictError("duplicate tier name %q", t.Name)
		}
		names[t.Name] = true
		if other, ok := thresholds[t.PointsToUnlock]; ok {
			return ConflictError("tiers %q and %q share the threshold %d", other, t.Name, t.PointsToUnlock)
		}
		thresholds[t.PointsToUnlock] = t.Name
	}
	return nil
}

func sameTierName(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
