// Package healer chooses one support action per tick for a healer by walking
// a fixed priority ladder. The first rung that finds an eligible target and a
// castable ability wins; otherwise evaluation falls through to the next rung.
package healer

import (
	"fmt"
	"sort"

	"github.com/talgya/warfront/internal/gamedata"
	"github.com/talgya/warfront/internal/resource"
	"github.com/talgya/warfront/internal/units"
)

// Health ratio thresholds.
const (
	SelfPreserveBelow    = 0.35
	EmergencyBelow       = 0.55
	AreaBelow            = 0.75
	ShieldBelowPrimary   = 0.90
	ShieldBelowSecondary = 0.95

	AreaMinWounded = 3
	CleanseMinDoT  = 2
)

// Policy selects a ladder variant.
type Policy uint8

const (
	Primary   Policy = iota // H1, and the default for group healers
	Secondary               // H2: skips H1's target, shields first
)

func (p Policy) String() string {
	switch p {
	case Primary:
		return "primary"
	case Secondary:
		return "secondary"
	default:
		return "unknown"
	}
}

// ParsePolicy converts a policy name back to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "primary", "h1", "H1":
		return Primary, nil
	case "secondary", "h2", "H2":
		return Secondary, nil
	}
	return 0, fmt.Errorf("unknown healer policy %q", s)
}

// PolicyFor returns the policy of a guard healer slot.
func PolicyFor(guardIndex int) Policy {
	if guardIndex == 1 {
		return Secondary
	}
	return Primary
}

// Rung identifies which ladder step produced an action.
type Rung uint8

const (
	RungNone Rung = iota
	RungSelfPreserve
	RungEmergency
	RungArea
	RungCleanse
	RungShield
)

func (r Rung) String() string {
	switch r {
	case RungNone:
		return "none"
	case RungSelfPreserve:
		return "self_preserve"
	case RungEmergency:
		return "emergency"
	case RungArea:
		return "area"
	case RungCleanse:
		return "cleanse"
	case RungShield:
		return "shield"
	default:
		return "unknown"
	}
}

// AbilityBook resolves ability ids to their static definitions.
type AbilityBook interface {
	Ability(id string) (gamedata.Ability, bool)
}

// Input is what a healer sees this tick.
type Input struct {
	Self    *units.Unit
	Allies  []*units.Unit // Friendly units; Self is added if missing
	Policy  Policy
	Guard   bool
	Exclude *units.ID // Unit the primary healer's action targeted this tick

	// PrimaryActed is set when a primary healer shares the squad and chose
	// an action this tick. A secondary healer then heals emergencies only as
	// backup, for allies other than the one the primary targeted.
	PrimaryActed bool
}

// Action is the chosen cast and the rung that chose it.
type Action struct {
	Rung Rung
	Cast units.Cast
}

// Decide walks the ladder and returns the first castable action. While the
// healer's recovery latch is set only self-preservation and emergency heals
// are considered.
func Decide(in Input, book AbilityBook) (Action, bool) {
	self := in.Self
	if self == nil || !self.Alive {
		return Action{}, false
	}
	pool := candidates(in)
	critical := anyBelow(pool, EmergencyBelow)

	rungs := []Rung{RungSelfPreserve, RungEmergency, RungArea, RungCleanse, RungShield}
	if in.Policy == Secondary {
		rungs = []Rung{RungSelfPreserve, RungEmergency, RungArea, RungShield, RungCleanse}
	}
	if self.Recovering {
		rungs = rungs[:2]
	}

	for _, r := range rungs {
		var (
			c  units.Cast
			ok bool
		)
		switch r {
		case RungSelfPreserve:
			c, ok = selfPreserve(self)
		case RungEmergency:
			if in.Policy == Secondary && in.PrimaryActed && in.Exclude == nil {
				continue
			}
			c, ok = emergency(in, pool, book)
		case RungArea:
			c, ok = area(self, pool, book)
		case RungCleanse:
			c, ok = cleanse(self, pool, book)
		case RungShield:
			c, ok = shield(in, pool, book)
		}
		if ok && affordable(in, c, critical, book) {
			return Action{Rung: r, Cast: c}, true
		}
	}
	return Action{}, false
}

func candidates(in Input) []*units.Unit {
	pool := []*units.Unit{in.Self}
	for _, a := range in.Allies {
		if a == nil || a.ID == in.Self.ID || !a.Alive || a.Team != in.Self.Team {
			continue
		}
		pool = append(pool, a)
	}
	return pool
}

func anyBelow(pool []*units.Unit, ratio float64) bool {
	for _, u := range pool {
		if u.HealthRatio() < ratio {
			return true
		}
	}
	return false
}

func affordable(in Input, c units.Cast, critical bool, book AbilityBook) bool {
	a, ok := book.Ability(c.Ability)
	if !ok {
		return false
	}
	return resource.CanCast(resource.CastCheck{
		Role:         units.RoleHealer,
		Guard:        in.Guard,
		Mana:         in.Self.Mana,
		Cost:         a.Cost,
		AllyCritical: critical,
	})
}

// inRange filters pool to units within the range of self's kind slot.
func inRange(self *units.Unit, kind units.AbilityKind, pool []*units.Unit, book AbilityBook) ([]*units.Unit, gamedata.Ability, bool) {
	i, ok := self.Slot(kind)
	if !ok || !self.Abilities[i].Cooldown.Ready() {
		return nil, gamedata.Ability{}, false
	}
	a, ok := book.Ability(self.Abilities[i].Ability)
	if !ok {
		return nil, gamedata.Ability{}, false
	}
	var out []*units.Unit
	for _, u := range pool {
		if u == self || self.Position.Dist(u.Position) <= a.Range {
			out = append(out, u)
		}
	}
	return out, a, true
}

func selfPreserve(self *units.Unit) (units.Cast, bool) {
	if self.HealthRatio() >= SelfPreserveBelow || self.HasEffect(units.EffectImmunity) {
		return units.Cast{}, false
	}
	return units.CastOn(self, units.AbilityImmunity, self)
}

func emergency(in Input, pool []*units.Unit, book AbilityBook) (units.Cast, bool) {
	reach, _, ok := inRange(in.Self, units.AbilityHeal, pool, book)
	if !ok {
		return units.Cast{}, false
	}
	var wounded []*units.Unit
	for _, u := range reach {
		if u.HealthRatio() >= EmergencyBelow {
			continue
		}
		if in.Exclude != nil && u.ID == *in.Exclude {
			continue
		}
		wounded = append(wounded, u)
	}
	if len(wounded) == 0 {
		return units.Cast{}, false
	}
	sort.SliceStable(wounded, func(i, j int) bool {
		ri, rj := wounded[i].HealthRatio(), wounded[j].HealthRatio()
		if ri != rj {
			return ri < rj
		}
		return wounded[i].Health < wounded[j].Health
	})
	return units.CastOn(in.Self, units.AbilityHeal, wounded[0])
}

func area(self *units.Unit, pool []*units.Unit, book AbilityBook) (units.Cast, bool) {
	reach, a, ok := inRange(self, units.AbilityAreaHeal, pool, book)
	if !ok {
		return units.Cast{}, false
	}
	var wounded []*units.Unit
	for _, u := range reach {
		if u.HealthRatio() < AreaBelow {
			wounded = append(wounded, u)
		}
	}
	if len(wounded) < AreaMinWounded {
		return units.Cast{}, false
	}
	return units.CastAt(self, units.AbilityAreaHeal, densestCentroid(wounded, a.Radius))
}

// densestCentroid returns the centroid of the largest group of units lying
// within radius of one of them. Earlier units win ties.
func densestCentroid(us []*units.Unit, radius float64) units.Vec2 {
	var best []*units.Unit
	for _, center := range us {
		var cluster []*units.Unit
		for _, u := range us {
			if center.Position.Dist(u.Position) <= radius {
				cluster = append(cluster, u)
			}
		}
		if len(cluster) > len(best) {
			best = cluster
		}
	}
	var sum units.Vec2
	for _, u := range best {
		sum = sum.Add(u.Position)
	}
	return sum.Scale(1 / float64(len(best)))
}

func cleanse(self *units.Unit, pool []*units.Unit, book AbilityBook) (units.Cast, bool) {
	reach, _, ok := inRange(self, units.AbilityCleanse, pool, book)
	if !ok {
		return units.Cast{}, false
	}
	var afflicted []*units.Unit
	for _, u := range reach {
		if u.DoTStacks() > 0 {
			afflicted = append(afflicted, u)
		}
	}
	if len(afflicted) < CleanseMinDoT {
		return units.Cast{}, false
	}
	// pool starts with self, so a stable sort keeps self first on ties.
	sort.SliceStable(afflicted, func(i, j int) bool {
		return afflicted[i].DoTStacks() > afflicted[j].DoTStacks()
	})
	return units.CastOn(self, units.AbilityCleanse, afflicted[0])
}

func shield(in Input, pool []*units.Unit, book AbilityBook) (units.Cast, bool) {
	reach, _, ok := inRange(in.Self, units.AbilityShield, pool, book)
	if !ok {
		return units.Cast{}, false
	}
	limit := ShieldBelowPrimary
	if in.Policy == Secondary {
		limit = ShieldBelowSecondary
	}
	var best *units.Unit
	for _, u := range reach {
		if u.HealthRatio() >= limit || u.HasEffect(units.EffectShield) {
			continue
		}
		if best == nil || u.HealthRatio() < best.HealthRatio() {
			best = u
		}
	}
	if best == nil {
		return units.Cast{}, false
	}
	return units.CastOn(in.Self, units.AbilityShield, best)
}
