package behavior

import "github.com/talgya/warfront/internal/units"

// Flat detection radii for non-guard units.
const (
	GroupAggressiveRadius = 180.0
	GroupNeutralRadius    = 90.0
	AllyAggressiveRadius  = 140.0
	AllyNeutralRadius     = 80.0
)

// Guard priority zones, measured from the site center.
const (
	InnerZone = 90.0
	MidZone   = 160.0
	OuterZone = 240.0

	PriorityInner = 100
	PriorityMid   = 80
	PriorityOuter = 60
)

// DetectionRadius returns the flat detection radius for a non-guard unit.
// Guards use ZonePriority instead.
func DetectionRadius(u *units.Unit, inGroup bool) float64 {
	switch u.Mode {
	case units.ModeNeutral:
		if inGroup {
			return GroupNeutralRadius
		}
		return AllyNeutralRadius
	default:
		if inGroup {
			return GroupAggressiveRadius
		}
		return AllyAggressiveRadius
	}
}

// ZonePriority returns a hostile's priority relative to a guarded site, or 0
// when it is outside the outer aggro ring.
func ZonePriority(site, hostile units.Vec2) int {
	d := site.Dist(hostile)
	switch {
	case d <= InnerZone:
		return PriorityInner
	case d <= MidZone:
		return PriorityMid
	case d <= OuterZone:
		return PriorityOuter
	default:
		return 0
	}
}

// Acquire picks a target for a non-guard unit. The current target is kept
// while it stays within radius × LoseTargetFactor; otherwise the nearest
// living hostile within radius is chosen.
func Acquire(u *units.Unit, current *units.Unit, hostiles []*units.Unit, radius float64) *units.Unit {
	if current != nil && current.Alive && u.Hostile(current) &&
		u.Position.Dist(current.Position) <= radius*LoseTargetFactor {
		return current
	}
	var best *units.Unit
	bestDist := radius
	for _, h := range hostiles {
		if !h.Alive || !u.Hostile(h) {
			continue
		}
		d := u.Position.Dist(h.Position)
		if d <= bestDist {
			best = h
			bestDist = d
		}
	}
	return best
}

// Nearest returns the closest living hostile and its distance, or nil.
func Nearest(u *units.Unit, hostiles []*units.Unit) (*units.Unit, float64) {
	var best *units.Unit
	bestDist := 0.0
	for _, h := range hostiles {
		if !h.Alive || !u.Hostile(h) {
			continue
		}
		d := u.Position.Dist(h.Position)
		if best == nil || d < bestDist {
			best = h
			bestDist = d
		}
	}
	return best, bestDist
}
