// Package resource holds the mana threshold policies every unit consults
// before casting. All functions are pure.
package resource

import "github.com/talgya/warfront/internal/units"

// Mana thresholds in absolute mana units.
const (
	RecoverAt        = 20.0 // DPS/Tank enter recovery at or below this
	ResumeAt         = 35.0 // Everyone leaves recovery at or above this
	TacticalReserve  = 30.0 // Non-healer guards keep this much outside a burst window
	EmergencyReserve = 22.0 // Healers keep this much unless an ally is critical
	ComboReadyMana   = 45.0 // Per-DPS mana required to start or continue a combo
	ComboSize        = 3    // DPS members that must all be ready
)

// ShouldRecover reports whether a unit should be (or stay) in recovery.
// The gap between the enter and exit thresholds keeps the answer from
// chattering while mana hovers around one threshold.
func ShouldRecover(role units.Role, manaCurrent, manaMax float64, alreadyRecovering bool) bool {
	if manaMax <= 0 {
		return false
	}
	enter := RecoverAt
	if role == units.RoleHealer {
		enter = EmergencyReserve
	}
	resume := min(ResumeAt, manaMax)
	enter = min(enter, resume)

	if alreadyRecovering {
		return manaCurrent < resume
	}
	return manaCurrent <= enter
}

// CastCheck is the input to CanCast.
type CastCheck struct {
	Role         units.Role
	Guard        bool
	Mana         float64
	Cost         float64
	InBurst      bool // Squad combo chain is executing
	AllyCritical bool // An ally is below the emergency-heal threshold
}

// CanCast decides whether a new ability cast is permitted. A cast that would
// underflow mana is always rejected.
func CanCast(c CastCheck) bool {
	if c.Cost > c.Mana {
		return false
	}
	after := c.Mana - c.Cost

	switch c.Role {
	case units.RoleHealer:
		if c.AllyCritical {
			return true
		}
		return after >= EmergencyReserve
	case units.RoleDPS, units.RoleTank:
		if c.Guard && !c.InBurst {
			return after >= TacticalReserve
		}
		return true
	default:
		return true
	}
}

// ComboReady is the per-unit readiness flag a squad polls before a combo:
// enough mana and the burst ability off cooldown.
func ComboReady(u *units.Unit) bool {
	if u == nil || !u.Alive {
		return false
	}
	return u.Mana >= ComboReadyMana && u.AbilityReady(units.AbilityBurst)
}

// SquadComboReady is the full-readiness gate: exactly ComboSize DPS members,
// every one ComboReady.
func SquadComboReady(dps []*units.Unit) bool {
	if len(dps) != ComboSize {
		return false
	}
	for _, u := range dps {
		if !ComboReady(u) {
			return false
		}
	}
	return true
}
