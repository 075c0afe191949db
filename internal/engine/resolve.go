package engine

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/talgya/warfront/internal/behavior"
	"github.com/talgya/warfront/internal/formation"
	"github.com/talgya/warfront/internal/gamedata"
	"github.com/talgya/warfront/internal/squad"
	"github.com/talgya/warfront/internal/units"
)

// leapStop is how close a finisher leap lands to its point.
const leapStop = 20.0

// resolve applies intents: all movement first, then casts and basic attacks
// in unit order, then damage-over-time and mana regeneration.
func (s *Simulation) resolve(intents []Intent, dt float64) {
	for _, in := range intents {
		u := s.Unit(in.UnitID)
		if u == nil || !u.Alive {
			continue
		}
		u.Position = u.Position.MoveToward(in.MoveTo, formation.Speed(u)*dt)
	}

	for _, in := range intents {
		u := s.Unit(in.UnitID)
		if u == nil || !u.Alive {
			continue
		}
		if in.Cast != nil && !s.cast(u, *in.Cast) {
			s.Stats.CastsRejected++
		}
		if in.Attack != nil {
			s.basicAttack(u, *in.Attack)
		}
	}

	for _, u := range s.Units {
		if !u.Alive {
			continue
		}
		s.tickDoT(u, dt)
		u.RestoreMana(u.ManaRegen * dt)
		u.ClampVitals()
	}
}

// cast validates and applies one ability use. A rejected cast costs nothing.
func (s *Simulation) cast(u *units.Unit, c units.Cast) bool {
	if c.Slot < 0 || c.Slot >= len(u.Abilities) {
		return false
	}
	slot := &u.Abilities[c.Slot]
	if slot.Ability != c.Ability || !slot.Cooldown.Ready() {
		return false
	}
	a, ok := s.Tables.Ability(c.Ability)
	if !ok {
		return false
	}

	var target *units.Unit
	point := u.Position
	switch {
	case c.TargetID != nil:
		target = s.Unit(*c.TargetID)
		if target == nil || !target.Alive {
			return false
		}
		point = target.Position
	case c.Point != nil:
		point = *c.Point
	}
	if !validTarget(u, a.Kind, target) {
		return false
	}
	if a.Range > 0 && u.Position.Dist(point) > a.Range {
		return false
	}
	if !u.SpendMana(a.Cost) {
		return false
	}
	slot.Cooldown.Set(a.Cooldown)
	s.applyAbility(u, a, target, point)
	return true
}

func validTarget(u *units.Unit, kind units.AbilityKind, target *units.Unit) bool {
	switch kind {
	case units.AbilityStrike, units.AbilityOpener, units.AbilityTaunt:
		return target != nil && u.Hostile(target)
	case units.AbilityHeal, units.AbilityCleanse, units.AbilityShield:
		return target != nil && target.Team == u.Team
	case units.AbilityImmunity:
		return target == nil || target == u
	default:
		return true
	}
}

func (s *Simulation) applyAbility(u *units.Unit, a gamedata.Ability, target *units.Unit, point units.Vec2) {
	power := s.Tables.Potency(u, a)
	switch a.Kind {
	case units.AbilityStrike:
		s.damage(u, target, power)
	case units.AbilityOpener:
		s.damage(u, target, power)
		target.AddEffect(units.Effect{
			Kind:      units.EffectDoT,
			Stacks:    1,
			Magnitude: power / max(a.DoTSeconds, 1),
			Remaining: units.Countdown(a.DoTSeconds),
			SourceID:  u.ID,
		})
	case units.AbilityTaunt:
		s.damage(u, target, power)
		id := u.ID
		target.TargetID = &id
	case units.AbilityBurst:
		s.splash(u, point, a.Radius, power)
	case units.AbilityFinisher:
		if u.Position.Dist(point) > leapStop {
			u.Position = point.Add(u.Position.Sub(point).Norm().Scale(leapStop))
		}
		s.splash(u, point, a.Radius, power)
	case units.AbilityHeal:
		target.Heal(power)
	case units.AbilityAreaHeal:
		for _, f := range s.Units {
			if f.Alive && f.Team == u.Team && f.Position.Dist(point) <= a.Radius {
				f.Heal(power)
			}
		}
	case units.AbilityCleanse:
		target.Cleanse()
	case units.AbilityShield:
		target.AddEffect(units.Effect{
			Kind:      units.EffectShield,
			Magnitude: power,
			Remaining: units.Countdown(a.Duration),
			SourceID:  u.ID,
		})
	case units.AbilityImmunity:
		u.AddEffect(units.Effect{
			Kind:      units.EffectImmunity,
			Remaining: units.Countdown(a.Duration),
			SourceID:  u.ID,
		})
	}
}

// damage hits dst and credits src's team if the hit is lethal.
func (s *Simulation) damage(src, dst *units.Unit, amount float64) {
	dst.TakeDamage(amount)
	if dst.Health <= 0 {
		dst.KilledBy = src.Team
	}
}

func (s *Simulation) splash(src *units.Unit, point units.Vec2, radius, amount float64) {
	for _, v := range s.Units {
		if v.Alive && src.Hostile(v) && v.Position.Dist(point) <= radius {
			s.damage(src, v, amount)
		}
	}
}

func (s *Simulation) basicAttack(u *units.Unit, id units.ID) {
	target := s.Unit(id)
	if target == nil || !target.Alive || !u.Hostile(target) || !u.AttackTimer.Ready() {
		return
	}
	if u.Position.Dist(target.Position) > u.AttackRange*behavior.DisengageFactor {
		return
	}
	s.damage(u, target, u.AttackPower)
	u.AttackTimer.Set(s.Tables.AttackInterval(u.Role))
}

// tickDoT applies one tick of every damage-over-time effect on u.
func (s *Simulation) tickDoT(u *units.Unit, dt float64) {
	total := 0.0
	var source units.ID
	for _, e := range u.Effects {
		if e.Kind == units.EffectDoT && !e.Remaining.Ready() {
			total += e.Magnitude * float64(e.Stacks) * dt
			source = e.SourceID
		}
	}
	if total <= 0 {
		return
	}
	u.TakeDamage(total)
	if src := s.Unit(source); src != nil && u.Health <= 0 {
		u.KilledBy = src.Team
	}
}

// resolveDeaths takes units at zero health out of the machine and awards
// kill points.
func (s *Simulation) resolveDeaths() {
	for _, u := range s.Units {
		if !u.Alive || u.Health > 0 {
			continue
		}
		killer := u.KilledBy
		behavior.Down(u)
		s.Stats.Kills++
		if f := s.Faction(killer); f != nil && killer != u.Team {
			f.Points += KillPoints
		}
		s.metrics.add(s.metrics.kills, 1, attribute.String("kind", u.Kind.String()))
		s.EmitEvent(Event{
			Description: fmt.Sprintf("%s fell to %s", u.Name, s.teamName(killer)),
			Category:    CategoryCombat,
			Meta:        map[string]any{"unit_id": u.ID, "kind": u.Kind.String(), "killer": killer},
		})
	}
}

// resolveRespawns ticks downed units. Guards whose site changed hands while
// they were down are removed for good.
func (s *Simulation) resolveRespawns(dt float64) {
	void := make(map[units.ID]bool)
	for _, u := range s.Units {
		if u.Alive {
			continue
		}
		var epoch *uint64
		if site := s.homeSite(u); site != nil && u.IsGuard() {
			e := site.Epoch
			epoch = &e
		}
		switch behavior.CheckRespawn(u, dt, epoch) {
		case behavior.RespawnNow:
			s.respawn(u)
		case behavior.RespawnVoid:
			void[u.ID] = true
		}
	}
	if len(void) == 0 {
		return
	}
	n := s.removeUnits(func(u *units.Unit) bool { return void[u.ID] })
	s.Stats.VoidedRespawns += n
	s.metrics.add(s.metrics.respawns, int64(n), attribute.String("outcome", "void"))
	s.EmitEvent(Event{
		Description: fmt.Sprintf("%d fallen guards will not return to sites that changed hands", n),
		Category:    CategorySite,
		Meta:        map[string]any{"voided": n},
	})
}

func (s *Simulation) respawn(u *units.Unit) {
	u.Alive = true
	u.KilledBy = units.Neutral
	u.Position = u.Home
	if site := s.homeSite(u); site != nil && u.IsGuard() {
		u.Position = squad.SlotPosition(site, u.GuardIndex)
	}
	u.Anchor = u.Position
	u.AttackTimer = 0
	u.SetState(units.StateIdle)
	s.refill(u)
	s.Stats.Respawns++
	s.metrics.add(s.metrics.respawns, 1, attribute.String("outcome", "respawn"))
	s.EmitEvent(Event{
		Description: fmt.Sprintf("%s returned to the field", u.Name),
		Category:    CategoryCombat,
		Meta:        map[string]any{"unit_id": u.ID},
	})
}
