package engine

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/talgya/warfront/internal/behavior"
	"github.com/talgya/warfront/internal/formation"
	"github.com/talgya/warfront/internal/healer"
	"github.com/talgya/warfront/internal/progression"
	"github.com/talgya/warfront/internal/resource"
	"github.com/talgya/warfront/internal/squad"
	"github.com/talgya/warfront/internal/units"
	"github.com/talgya/warfront/internal/world"
)

// Intent is one unit's output for a tick: where it wants to be, at most one
// ability cast, and an optional basic attack.
type Intent struct {
	UnitID units.ID    `json:"unit_id"`
	State  units.State `json:"state"`
	MoveTo units.Vec2  `json:"move_to"`
	Cast   *units.Cast `json:"cast,omitempty"`
	Attack *units.ID   `json:"attack,omitempty"`
	Sprint bool        `json:"sprint,omitempty"`
}

// Step advances the campaign by dt seconds, clamped to DefaultMaxStep, and
// returns this tick's intents in unit order.
func (s *Simulation) Step(dt float64) []Intent {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !(dt > 0) {
		dt = 0
	}
	dt = min(dt, DefaultMaxStep)

	s.drainLocked()
	s.Tick++
	s.Elapsed += dt

	s.progress(dt)
	s.payCatchup(dt)
	for _, u := range s.Units {
		if u.Alive {
			u.TickTimers(dt)
		}
	}

	intents := s.decide(dt)
	s.resolve(intents, dt)
	s.resolveDeaths()
	s.resolveRespawns(dt)
	s.resolveCapture(dt)
	s.diagnose()
	s.trimEvents()

	s.Intents = intents
	s.metrics.add(s.metrics.ticks, 1)
	return intents
}

// progress runs the scaler: site tiers first, then every living guard and
// enemy is brought up to its record.
func (s *Simulation) progress(dt float64) {
	for _, site := range s.Sites {
		if progression.UpdateSite(site, dt) {
			s.EmitEvent(Event{
				Description: fmt.Sprintf("Guards of %s earned %s gear", site.Name, site.Guards.Tier),
				Category:    CategoryProgression,
				Meta:        map[string]any{"site_id": site.ID, "tier": site.Guards.Tier.String(), "time_held": site.Guards.TimeHeld},
			})
		}
	}
	for _, u := range s.Units {
		if !u.Alive {
			continue
		}
		switch u.Kind {
		case units.KindGuard:
			site := s.homeSite(u)
			if site == nil || site.Epoch != u.SiteEpoch {
				continue
			}
			progression.ApplyGuard(u, site, s.Tables)
		case units.KindEnemy:
			tier := units.TierCommon
			if f := s.Faction(u.Team); f != nil {
				tier = f.Tier
			}
			progression.ApplyEnemy(u, s.Elapsed, tier, s.Tables)
		}
	}
}

// payCatchup runs the rubberband controller and lets computer factions
// spend what they hold on gear.
func (s *Simulation) payCatchup(dt float64) {
	for _, g := range s.catchup.Tick(s.Factions, dt) {
		s.Stats.GoldGranted += g.Amount
		s.metrics.add(s.metrics.grants, int64(g.Amount), attribute.String("faction", g.Faction.Name))
		s.EmitEvent(Event{
			Description: fmt.Sprintf("%s received %d catch-up gold, %.0f points behind", g.Faction.Name, g.Amount, g.Gap),
			Category:    CategoryEconomy,
			Meta:        map[string]any{"faction": g.Faction.ID, "amount": g.Amount, "gap": g.Gap},
		})
		slog.Info("catch-up grant", "faction", g.Faction.Name, "amount", g.Amount, "gap", g.Gap)
	}

	for _, f := range s.Factions {
		if f.ID == PlayerTeam || f.Tier >= units.MaxTier {
			continue
		}
		if f.Gold < s.opts.Prices.SquadTier*uint64(f.Tier+1) {
			continue
		}
		tier, err := progression.PurchaseSquadGearTier(f, s.Units, s.opts.Prices, s.Tables)
		if err != nil {
			continue
		}
		s.EmitEvent(Event{
			Description: fmt.Sprintf("%s armed its forces with %s gear", f.Name, tier),
			Category:    CategoryProgression,
			Meta:        map[string]any{"faction": f.ID, "tier": tier.String(), "gold": f.Gold},
		})
	}
}

// decide runs every living unit's decision layer: squads first, then
// independent units, then the player's group.
func (s *Simulation) decide(dt float64) []Intent {
	byUnit := make(map[units.ID]Intent, len(s.Units))
	s.decideSquads(dt, byUnit)
	s.decideRoamers(dt, byUnit)
	s.decideGroup(dt, byUnit)

	intents := make([]Intent, 0, len(byUnit))
	for _, u := range s.Units {
		if in, ok := byUnit[u.ID]; ok {
			intents = append(intents, in)
		}
	}
	return intents
}

func (s *Simulation) decideSquads(dt float64, out map[units.ID]Intent) {
	for _, site := range s.Sites {
		if !site.Owned() {
			continue
		}
		sq, err := squad.Build(site, s.Units)
		if err != nil {
			s.violation("squad membership", "site", site.Name, "error", err)
			s.dropStrays(site, sq)
		}
		plan := sq.Plan(s.Units, s.Tables, dt)
		s.recordCombo(site, plan)

		var (
			claimed      *units.ID
			primaryActed bool
		)
		for _, u := range sq.Living() {
			i := u.GuardIndex
			o := plan.Orders[u.ID]
			if o == nil {
				continue
			}
			u.Anchor = o.Anchor

			if world.GuardRole(i) == units.RoleHealer {
				policy := healer.PolicyFor(i)
				in, act, ok := s.healerTurn(u, nil, healer.Input{
					Self:         u,
					Allies:       s.friends(u),
					Policy:       policy,
					Guard:        true,
					Exclude:      claimed,
					PrimaryActed: primaryActed,
				}, true, dt)
				if ok && policy == healer.Primary {
					primaryActed = true
					if act.Cast.TargetID != nil {
						id := *act.Cast.TargetID
						claimed = &id
					}
				}
				if o.Kite != nil {
					in.MoveTo = *o.Kite
				}
				out[u.ID] = in
				continue
			}

			in, d := s.fighterTurn(u, o.Target, true, dt)
			if c := squadCast(u, o, d); c != nil {
				in.Cast = c
			}
			out[u.ID] = in
		}
	}
}

// squadCast returns a copy of the coordinator's cast when the guard may
// fire it this tick. Chain casts skip the Engage gate; the recovery latch
// and the leash still hold.
func squadCast(u *units.Unit, o *squad.Order, d behavior.Decision) *units.Cast {
	if o.Cast == nil {
		return nil
	}
	chain := o.Combo && !u.Recovering && d.State != units.StateReturn
	if !chain && !d.Abilities {
		return nil
	}
	c := *o.Cast
	return &c
}

// dropStrays removes guards bound to site under its current epoch that the
// squad could not seat.
func (s *Simulation) dropStrays(site *world.Site, sq *squad.Squad) {
	seated := make(map[units.ID]bool, world.GuardSlots)
	for _, u := range sq.Members {
		if u != nil {
			seated[u.ID] = true
		}
	}
	s.removeUnits(func(u *units.Unit) bool {
		return u.IsGuard() && u.HomeSiteID != nil && *u.HomeSiteID == site.ID &&
			u.SiteEpoch == site.Epoch && !seated[u.ID]
	})
}

func (s *Simulation) recordCombo(site *world.Site, plan squad.Plan) {
	switch plan.Event {
	case squad.ComboQuiet:
		return
	case squad.ComboFinished:
		s.Stats.CombosFired++
	case squad.ComboAborted:
		s.Stats.CombosAborted++
	}
	s.metrics.add(s.metrics.combos, 1, attribute.String("event", plan.Event.String()))
	if plan.Event == squad.ComboBurstHit {
		return
	}
	meta := map[string]any{"site_id": site.ID, "event": plan.Event.String()}
	if plan.Focus != nil {
		meta["focus"] = plan.Focus.ID
	}
	s.EmitEvent(Event{
		Description: fmt.Sprintf("Guards of %s: combo %s", site.Name, plan.Event),
		Category:    CategoryCombat,
		Meta:        meta,
	})
}

// decideRoamers handles units with no squad or group: the player, enemies
// and independent allies. Their anchor is their current objective.
func (s *Simulation) decideRoamers(dt float64, out map[units.ID]Intent) {
	for _, u := range s.Units {
		if !u.Alive || u.IsGuard() || s.inGroup(u.ID) {
			continue
		}
		u.Anchor = s.objective(u)
		radius := behavior.DetectionRadius(u, u.Kind == units.KindPlayer)
		target := behavior.Acquire(u, s.currentTarget(u), s.Units, radius)

		if u.Role == units.RoleHealer {
			in, _, _ := s.healerTurn(u, target, healer.Input{Self: u, Allies: s.friends(u)}, false, dt)
			out[u.ID] = in
			continue
		}
		in, d := s.fighterTurn(u, target, false, dt)
		if d.Abilities {
			in.Cast = s.soloCast(u, d.Target)
		}
		out[u.ID] = in
	}
}

// decideGroup holds members on their formation points around the leader.
// Members break off for threats inside their break radius and sprint back
// when they fall behind.
func (s *Simulation) decideGroup(dt float64, out map[units.ID]Intent) {
	if s.Group == nil {
		return
	}
	leader := s.Unit(s.Group.LeaderID)
	if leader == nil {
		return
	}
	head := heading(leader)
	for _, m := range s.Group.Members {
		u := s.Unit(m.UnitID)
		if u == nil || !u.Alive || u.IsGuard() {
			continue
		}
		point := formation.Point(leader.Position, head, m.Settings.Slot)
		u.Anchor = point

		var in Intent
		if u.Role == units.RoleHealer {
			in, _, _ = s.healerTurn(u, nil, healer.Input{Self: u, Allies: s.friends(u), Policy: m.Settings.Policy}, false, dt)
		} else {
			target := behavior.Acquire(u, s.currentTarget(u), s.Units, formation.BreakRadius(u))
			var d behavior.Decision
			in, d = s.fighterTurn(u, target, false, dt)
			if d.Abilities {
				in.Cast = s.soloCast(u, d.Target)
			}
		}

		if in.State == units.StateIdle || in.State == units.StateReturn {
			formation.UpdateSprint(u, point)
		} else {
			u.Sprinting = false
		}
		in.Sprint = u.Sprinting
		out[u.ID] = in
	}
}

func (s *Simulation) inGroup(id units.ID) bool {
	return s.Group != nil && s.Group.Has(id)
}

func (s *Simulation) currentTarget(u *units.Unit) *units.Unit {
	if u.TargetID == nil {
		return nil
	}
	return s.Unit(*u.TargetID)
}

// friends returns the living units on u's team.
func (s *Simulation) friends(u *units.Unit) []*units.Unit {
	var out []*units.Unit
	for _, o := range s.Units {
		if o.Alive && o.Team == u.Team {
			out = append(out, o)
		}
	}
	return out
}

// objective is the nearest site u's team does not hold, or its nearest own
// site once every site is held.
func (s *Simulation) objective(u *units.Unit) units.Vec2 {
	var best *world.Site
	for _, pass := range []bool{false, true} {
		for _, site := range s.Sites {
			if (site.Owner == u.Team) != pass {
				continue
			}
			if best == nil || u.Position.Dist(site.Position) < u.Position.Dist(best.Position) {
				best = site
			}
		}
		if best != nil {
			return best.Position
		}
	}
	return u.Home
}

// emergency blocks leaving Recover while the unit itself is in danger.
func emergency(u *units.Unit) bool {
	return u.HealthRatio() < healer.SelfPreserveBelow
}

func (s *Simulation) fighterTurn(u, target *units.Unit, leash bool, dt float64) (Intent, behavior.Decision) {
	d := behavior.Step(behavior.Input{Unit: u, Target: target, Leash: leash, Emergency: emergency(u), DT: dt})
	in := Intent{UnitID: u.ID, State: d.State, MoveTo: d.MoveTo}
	if d.BasicAttack && d.Target != nil {
		id := d.Target.ID
		in.Attack = &id
	}
	return in, d
}

// healerTurn runs the machine for a healer and then its ladder. Heals are
// not gated on the machine's state; healers never chase to heal.
func (s *Simulation) healerTurn(u, target *units.Unit, hin healer.Input, leash bool, dt float64) (Intent, healer.Action, bool) {
	in, _ := s.fighterTurn(u, target, leash, dt)
	act, ok := healer.Decide(hin, s.Tables)
	if ok {
		c := act.Cast
		in.Cast = &c
	}
	return in, act, ok
}

// soloCast picks a single-target ability for a unit fighting on its own.
// Tanks taunt anything not already on them; everyone opens with a
// damage-over-time before striking.
func (s *Simulation) soloCast(u, target *units.Unit) *units.Cast {
	if target == nil {
		return nil
	}
	kinds := []units.AbilityKind{units.AbilityOpener, units.AbilityStrike}
	if u.Role == units.RoleTank {
		kinds = []units.AbilityKind{units.AbilityTaunt, units.AbilityStrike}
	}
	for _, k := range kinds {
		switch {
		case k == units.AbilityOpener && target.DoTStacks() > 0:
			continue
		case k == units.AbilityTaunt && target.TargetID != nil && *target.TargetID == u.ID:
			continue
		}
		i, ok := u.Slot(k)
		if !ok {
			continue
		}
		a, ok := s.Tables.Ability(u.Abilities[i].Ability)
		if !ok || u.Position.Dist(target.Position) > a.Range {
			continue
		}
		if !resource.CanCast(resource.CastCheck{Role: u.Role, Mana: u.Mana, Cost: a.Cost}) {
			continue
		}
		if c, ok := units.CastOn(u, k, target); ok {
			return &c
		}
	}
	return nil
}
