// Package behavior implements the per-unit state machine:
// Idle → Pursue → Engage → Recover → Return → Idle.
// Every tick each living unit evaluates its state and produces a decision.
package behavior

import (
	"github.com/talgya/warfront/internal/resource"
	"github.com/talgya/warfront/internal/units"
)

// Distances in world units, times in seconds.
const (
	SoftChase        = 260.0 // Guards past this from their anchor stop chasing
	HardLeash        = 280.0 // Guards past this return regardless of state
	ArriveRadius     = 12.0  // Return completes within this of the anchor
	DisengageFactor  = 1.1   // Engage falls back to Pursue beyond range × this
	LoseTargetFactor = 1.25  // A held target is dropped beyond detection × this
	RespawnDelay     = 10.0
)

// Input is everything Step needs for one unit this tick.
type Input struct {
	Unit      *units.Unit
	Target    *units.Unit // Hostile chosen by the caller, nil when none
	Range     float64     // Engagement range; 0 uses Unit.AttackRange
	Leash     bool        // Site-bound: soft chase limit and hard leash apply
	Emergency bool        // A higher-priority condition blocks leaving Recover
	DT        float64
}

// Decision is the machine's output for one unit.
type Decision struct {
	State       units.State
	Changed     bool
	Target      *units.Unit
	MoveTo      units.Vec2
	Abilities   bool // Ability casts permitted this tick
	BasicAttack bool // Target is within basic attack range
}

// Step advances one unit's state machine by one tick.
func Step(in Input) Decision {
	u := in.Unit
	u.StateTime += in.DT

	rng := in.Range
	if rng <= 0 {
		rng = u.AttackRange
	}
	u.Recovering = resource.ShouldRecover(u.Role, u.Mana, u.MaxMana, u.Recovering)

	target := in.Target
	if target != nil && !target.Alive {
		target = nil
	}
	next := transition(u, target, rng, in)
	changed := u.SetState(next)

	d := Decision{State: next, Changed: changed}
	if next == units.StateReturn || next == units.StateIdle {
		target = nil
	}
	d.Target = target
	if target != nil {
		id := target.ID
		u.TargetID = &id
	} else {
		u.TargetID = nil
	}

	switch next {
	case units.StateIdle, units.StateReturn:
		d.MoveTo = u.Anchor
	case units.StatePursue:
		d.MoveTo = target.Position
	case units.StateEngage, units.StateRecover:
		dist := u.Position.Dist(target.Position)
		if dist > rng {
			d.MoveTo = target.Position
		} else {
			d.MoveTo = u.Position
		}
		d.BasicAttack = dist <= rng
		// Recovery suppresses ability casts only; basic attacks continue.
		d.Abilities = next == units.StateEngage && !u.Recovering
	}
	return d
}

func transition(u *units.Unit, target *units.Unit, rng float64, in Input) units.State {
	home := u.Position.Dist(u.Anchor)
	if in.Leash {
		if home > HardLeash {
			return units.StateReturn
		}
		switch u.State {
		case units.StatePursue, units.StateEngage, units.StateRecover:
			if home > SoftChase {
				return units.StateReturn
			}
		}
	}

	switch u.State {
	case units.StateReturn:
		if home <= ArriveRadius {
			return units.StateIdle
		}
		return units.StateReturn

	case units.StateIdle:
		if target != nil {
			return units.StatePursue
		}
		return units.StateIdle

	case units.StatePursue:
		if target == nil {
			return units.StateIdle
		}
		if u.Position.Dist(target.Position) <= rng {
			return units.StateEngage
		}
		return units.StatePursue

	case units.StateEngage:
		if target == nil {
			return units.StateIdle
		}
		if u.Recovering {
			return units.StateRecover
		}
		if u.Position.Dist(target.Position) > rng*DisengageFactor {
			return units.StatePursue
		}
		return units.StateEngage

	case units.StateRecover:
		if target == nil {
			return units.StateIdle
		}
		if !u.Recovering && !in.Emergency {
			return units.StateEngage
		}
		return units.StateRecover
	}
	return units.StateIdle
}

// Down takes a unit out of the machine when its health reaches zero and
// starts the respawn countdown.
func Down(u *units.Unit) {
	u.Alive = false
	u.Health = 0
	u.Respawn.Set(RespawnDelay)
	u.SetState(units.StateIdle)
	u.TargetID = nil
	u.Recovering = false
	u.Sprinting = false
	u.Effects = nil
}

// RespawnOutcome is the result of CheckRespawn.
type RespawnOutcome uint8

const (
	RespawnWait RespawnOutcome = iota
	RespawnNow
	RespawnVoid // Guard whose site changed hands while it was down
)

// CheckRespawn ticks a downed unit's respawn countdown. For guards,
// siteEpoch is the home site's current ownership epoch (nil when the site no
// longer exists); a mismatch voids the respawn before the timer is consulted.
func CheckRespawn(u *units.Unit, dt float64, siteEpoch *uint64) RespawnOutcome {
	if u.Alive {
		return RespawnWait
	}
	if u.IsGuard() && (siteEpoch == nil || *siteEpoch != u.SiteEpoch) {
		return RespawnVoid
	}
	u.Respawn.Tick(dt)
	if u.Respawn.Ready() {
		return RespawnNow
	}
	return RespawnWait
}

// Stuck reports whether a unit has sat in one non-Idle state longer than
// threshold while its target is still reachable. It is advisory: callers
// report it and never change state because of it.
func Stuck(u *units.Unit, target *units.Unit, threshold float64) bool {
	if !u.Alive || u.StuckReported || u.State == units.StateIdle {
		return false
	}
	if u.StateTime <= threshold {
		return false
	}
	if u.State == units.StateReturn {
		return true
	}
	return target != nil && target.Alive
}
