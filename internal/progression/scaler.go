// Package progression scales unit power over time. Enemies level with
// campaign time, guards with how long their site has been held, and allies
// only through purchases.
package progression

import (
	"errors"
	"fmt"
	"math"

	"github.com/talgya/warfront/internal/units"
	"github.com/talgya/warfront/internal/world"
)

// Scaling constants.
const (
	MaxLevel      = 50
	LevelInterval = 60.0  // Seconds of campaign time per enemy level
	TierInterval  = 300.0 // Seconds of ownership per guard tier
	LevelsPerTier = 3     // Level floor per gear tier
)

// Purchase rejections.
var (
	ErrMaxLevel         = errors.New("every ally is already at the level cap")
	ErrMaxTier          = errors.New("faction gear is already legendary")
	ErrNoAllies         = errors.New("faction has no living allies")
	ErrInsufficientGold = errors.New("insufficient gold")
)

// Equipper recomputes a unit's derived stats from its role, level and tier.
type Equipper interface {
	Equip(u *units.Unit)
}

// EnemyLevel returns the level of an enemy after elapsed campaign seconds
// for a faction at the given gear tier: one level per minute, never below
// the tier floor, capped at MaxLevel.
func EnemyLevel(elapsed float64, tier units.Tier) int {
	byTime := int(math.Floor(max(elapsed, 0)/LevelInterval)) + 1
	return units.Clamp(max(byTime, TierFloor(tier)), 1, MaxLevel)
}

// GuardTier returns the gear tier earned by holding a site for timeHeld
// seconds.
func GuardTier(timeHeld float64) units.Tier {
	return units.ClampTier(1 + int(math.Floor(max(timeHeld, 0)/TierInterval)))
}

// TierFloor is the minimum level a unit at tier may have: LevelsPerTier ×
// tier once the tier has risen above Common, level 1 before that.
func TierFloor(tier units.Tier) int {
	tier = units.ClampTier(int(tier))
	if tier == units.TierCommon {
		return 1
	}
	return LevelsPerTier * int(tier)
}

// UpdateSite accrues ownership time and raises the guard tier and level
// floor. Unowned sites do not accrue. It reports whether the tier rose.
func UpdateSite(site *world.Site, dt float64) bool {
	if !site.Owned() || dt <= 0 {
		return false
	}
	g := &site.Guards
	g.TimeHeld += dt
	raised := false
	if t := GuardTier(g.TimeHeld); t > g.Tier {
		g.Tier = t
		raised = true
	}
	floor := TierFloor(g.Tier)
	for i := range g.Levels {
		g.Levels[i] = units.Clamp(max(g.Levels[i], floor), 1, MaxLevel)
	}
	return raised
}

// Apply moves a unit to level and tier, rescaling health and mana while
// preserving their ratios. It reports whether anything changed.
func Apply(u *units.Unit, level int, tier units.Tier, eq Equipper) bool {
	level = units.Clamp(level, 1, MaxLevel)
	tier = units.ClampTier(int(tier))
	if u.Level == level && u.GearTier == tier {
		return false
	}
	u.Level = level
	u.GearTier = tier
	eq.Equip(u)
	return true
}

// ApplyGuard brings a guard up to its site's progression record.
func ApplyGuard(u *units.Unit, site *world.Site, eq Equipper) bool {
	if u.GuardIndex < 0 || u.GuardIndex >= world.GuardSlots {
		return false
	}
	return Apply(u, site.Guards.Levels[u.GuardIndex], site.Guards.Tier, eq)
}

// ApplyEnemy brings an enemy up to the campaign clock. Enemy levels only
// rise.
func ApplyEnemy(u *units.Unit, elapsed float64, tier units.Tier, eq Equipper) bool {
	return Apply(u, max(u.Level, EnemyLevel(elapsed, tier)), max(u.GearTier, tier), eq)
}

// Prices are the gold costs of ally upgrades.
type Prices struct {
	SquadLevel uint64 // Per purchase
	SquadTier  uint64 // Multiplied by the tier being bought
}

// DefaultPrices returns the standard upgrade prices.
func DefaultPrices() Prices {
	return Prices{SquadLevel: 200, SquadTier: 300}
}

func alliesOf(team units.Team, all []*units.Unit) []*units.Unit {
	var out []*units.Unit
	for _, u := range all {
		if u.Alive && u.Team == team && (u.Kind == units.KindAlly || u.Kind == units.KindPlayer) {
			out = append(out, u)
		}
	}
	return out
}

// PurchaseSquadLevel raises every living ally of the faction by one level
// and charges the faction. It returns the number of allies raised.
func PurchaseSquadLevel(f *world.Faction, all []*units.Unit, prices Prices, eq Equipper) (int, error) {
	allies := alliesOf(f.ID, all)
	if len(allies) == 0 {
		return 0, ErrNoAllies
	}
	if f.Gold < prices.SquadLevel {
		return 0, fmt.Errorf("squad level costs %d, have %d: %w", prices.SquadLevel, f.Gold, ErrInsufficientGold)
	}
	raised := 0
	for _, u := range allies {
		if Apply(u, u.Level+1, u.GearTier, eq) {
			raised++
		}
	}
	if raised == 0 {
		return 0, ErrMaxLevel
	}
	f.Gold -= prices.SquadLevel
	f.SquadLevels++
	return raised, nil
}

// PurchaseSquadGearTier raises the faction's gear tier by one and lifts
// every living ally to at least that tier and its level floor. Nothing is
// ever lowered.
func PurchaseSquadGearTier(f *world.Faction, all []*units.Unit, prices Prices, eq Equipper) (units.Tier, error) {
	if f.Tier >= units.MaxTier {
		return f.Tier, ErrMaxTier
	}
	next := f.Tier + 1
	cost := prices.SquadTier * uint64(next)
	if f.Gold < cost {
		return f.Tier, fmt.Errorf("tier %s costs %d, have %d: %w", next, cost, f.Gold, ErrInsufficientGold)
	}
	f.Gold -= cost
	f.Tier = next
	for _, u := range alliesOf(f.ID, all) {
		Apply(u, max(u.Level, TierFloor(next)), max(u.GearTier, next), eq)
	}
	return next, nil
}
