package squad

import (
	"sort"

	"github.com/talgya/warfront/internal/resource"
	"github.com/talgya/warfront/internal/units"
	"github.com/talgya/warfront/internal/world"
)

// ComboCooldown is the whole-squad lockout after a finisher, in seconds.
const ComboCooldown = 6.0

// ComboEvent reports what the combo chain did this tick.
type ComboEvent uint8

const (
	ComboQuiet    ComboEvent = iota
	ComboStarted             // Opener cast
	ComboBurstHit            // All three bursts cast at the shared point
	ComboFinished            // Finisher cast, cooldown running
	ComboAborted             // Gate failed mid-chain; no cooldown
)

func (e ComboEvent) String() string {
	switch e {
	case ComboQuiet:
		return "quiet"
	case ComboStarted:
		return "started"
	case ComboBurstHit:
		return "burst"
	case ComboFinished:
		return "finished"
	case ComboAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Order is the coordinator's instruction to one guard for this tick.
type Order struct {
	Anchor units.Vec2  // Formation slot; the guard's leash is measured from here
	Target *units.Unit // Shared focus for DPS, nil for healers
	Cast   *units.Cast // Squad-directed cast, if any
	Combo  bool        // Cast is part of the combo chain
	Kite   *units.Vec2 // Healer retreat point overriding movement
}

// Plan is the coordinator's output for one tick.
type Plan struct {
	Focus  *units.Unit
	Orders map[units.ID]*Order
	Event  ComboEvent
}

// Plan advances the site's combo bookkeeping by dt and produces this tick's
// orders. hostiles may include friendly units; they are filtered here.
func (sq *Squad) Plan(hostiles []*units.Unit, book AbilityBook, dt float64) Plan {
	combo := &sq.Site.Combo
	combo.Cooldown.Tick(dt)

	focus := SelectFocus(sq.Site, hostiles)
	if combo.InBurst() {
		// The chain stays on the unit it opened on.
		focus = lockedFocus(sq.Site, combo.FocusID, hostiles)
	}

	plan := Plan{Focus: focus, Orders: make(map[units.ID]*Order)}
	for i, u := range sq.Members {
		if u == nil || !u.Alive {
			continue
		}
		o := &Order{Anchor: SlotPosition(sq.Site, i)}
		if world.GuardRole(i) == units.RoleHealer {
			if p, ok := KitePoint(u, o.Anchor, threats(sq.Site, hostiles)); ok {
				o.Kite = &p
			}
		} else {
			o.Target = focus
		}
		plan.Orders[u.ID] = o
	}

	plan.Event = sq.advanceCombo(focus, book, plan.Orders)

	if !combo.InBurst() && plan.Event == ComboQuiet && focus != nil {
		for _, u := range sq.DPS() {
			o := plan.Orders[u.ID]
			if o.Cast != nil {
				continue
			}
			if c, ok := strike(u, focus, book); ok {
				o.Cast = &c
			}
		}
	}
	return plan
}

func (sq *Squad) advanceCombo(focus *units.Unit, book AbilityBook, orders map[units.ID]*Order) ComboEvent {
	combo := &sq.Site.Combo
	dps := sq.DPS()

	switch combo.Stage {
	case world.ComboNone:
		if !combo.Cooldown.Ready() || focus == nil || !resource.SquadComboReady(dps) {
			return ComboQuiet
		}
		if !allInRange(dps, units.AbilityBurst, focus.Position, book) {
			return ComboQuiet
		}
		for _, u := range dps {
			if !usable(u, units.AbilityOpener, focus.Position, book) {
				continue
			}
			c, ok := units.CastOn(u, units.AbilityOpener, focus)
			if !ok {
				continue
			}
			give(orders, u, c)
			id := focus.ID
			combo.FocusID = &id
			combo.Stage = world.ComboInitiation
			return ComboStarted
		}
		return ComboQuiet

	case world.ComboInitiation:
		if focus == nil || !resource.SquadComboReady(dps) || !allInRange(dps, units.AbilityBurst, focus.Position, book) {
			sq.abortCombo()
			return ComboAborted
		}
		combo.Point = focus.Position
		for _, u := range dps {
			c, ok := units.CastAt(u, units.AbilityBurst, combo.Point)
			if !ok {
				sq.abortCombo()
				return ComboAborted
			}
			give(orders, u, c)
		}
		combo.Stage = world.ComboBurst
		return ComboBurstHit

	case world.ComboBurst:
		target := combo.Point
		if focus != nil {
			target = focus.Position
		}
		byDist := append([]*units.Unit(nil), dps...)
		sort.SliceStable(byDist, func(i, j int) bool {
			return byDist[i].Position.Dist(target) < byDist[j].Position.Dist(target)
		})
		for _, u := range byDist {
			if !usable(u, units.AbilityFinisher, target, book) {
				continue
			}
			if c, ok := units.CastAt(u, units.AbilityFinisher, target); ok {
				give(orders, u, c)
				break
			}
		}
		combo.Stage = world.ComboNone
		combo.FocusID = nil
		combo.Cooldown.Set(ComboCooldown)
		combo.Fired++
		return ComboFinished
	}
	return ComboQuiet
}

func (sq *Squad) abortCombo() {
	sq.Site.Combo.Stage = world.ComboNone
	sq.Site.Combo.FocusID = nil
}

func give(orders map[units.ID]*Order, u *units.Unit, c units.Cast) {
	if o, ok := orders[u.ID]; ok {
		o.Cast = &c
		o.Combo = true
	}
}

func lockedFocus(site *world.Site, id *units.ID, hostiles []*units.Unit) *units.Unit {
	if id == nil {
		return nil
	}
	for _, h := range hostiles {
		if h.ID == *id && Hostile(site, h) {
			return h
		}
	}
	return nil
}

func threats(site *world.Site, all []*units.Unit) []*units.Unit {
	var out []*units.Unit
	for _, u := range all {
		if Hostile(site, u) {
			out = append(out, u)
		}
	}
	return out
}

// abilityFor returns the static definition behind a unit's slot of kind.
func abilityFor(u *units.Unit, kind units.AbilityKind, book AbilityBook) (float64, float64, bool) {
	i, ok := u.Slot(kind)
	if !ok {
		return 0, 0, false
	}
	a, ok := book.Ability(u.Abilities[i].Ability)
	if !ok {
		return 0, 0, false
	}
	return a.Range, a.Cost, true
}

// usable reports whether u can cast its kind slot at target inside a combo
// window: off cooldown, in range, affordable.
func usable(u *units.Unit, kind units.AbilityKind, target units.Vec2, book AbilityBook) bool {
	rng, cost, ok := abilityFor(u, kind, book)
	if !ok || !u.AbilityReady(kind) || u.Position.Dist(target) > rng {
		return false
	}
	return resource.CanCast(resource.CastCheck{Role: u.Role, Guard: true, Mana: u.Mana, Cost: cost, InBurst: true})
}

func allInRange(dps []*units.Unit, kind units.AbilityKind, target units.Vec2, book AbilityBook) bool {
	for _, u := range dps {
		rng, _, ok := abilityFor(u, kind, book)
		if !ok || u.Position.Dist(target) > rng {
			return false
		}
	}
	return true
}

// strike is the non-combo DPS cast, held back by the tactical reserve.
func strike(u *units.Unit, focus *units.Unit, book AbilityBook) (units.Cast, bool) {
	rng, cost, ok := abilityFor(u, units.AbilityStrike, book)
	if !ok || u.Position.Dist(focus.Position) > rng {
		return units.Cast{}, false
	}
	if !resource.CanCast(resource.CastCheck{Role: u.Role, Guard: true, Mana: u.Mana, Cost: cost}) {
		return units.Cast{}, false
	}
	return units.CastOn(u, units.AbilityStrike, focus)
}
