package units

// Unit is a combat actor: player, ally, enemy or guard.
type Unit struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
	Team Team   `json:"team"`
	Role Role   `json:"role"`
	Mode Mode   `json:"mode"`

	// Vitals
	Health    float64 `json:"health"`
	MaxHealth float64 `json:"max_health"`
	Mana      float64 `json:"mana"`
	MaxMana   float64 `json:"max_mana"`
	ManaRegen float64 `json:"mana_regen"` // Per second

	// Movement
	Position    Vec2    `json:"position"`
	Anchor      Vec2    `json:"anchor"` // Current anchor: site slot, formation point or objective
	Home        Vec2    `json:"home"`   // Respawn point
	Speed       float64 `json:"speed"`
	AttackRange float64 `json:"attack_range"`
	AttackPower float64 `json:"attack_power"`
	Sprinting   bool    `json:"sprinting,omitempty"`

	// Combat
	Abilities   []AbilitySlot `json:"abilities"`
	AttackTimer Countdown     `json:"attack_timer"`
	Effects     []Effect      `json:"effects"`
	TargetID    *ID           `json:"target_id,omitempty"`
	Level       int           `json:"level"`
	GearTier    Tier          `json:"gear_tier"`
	Alive       bool          `json:"alive"`
	Respawn     Countdown     `json:"respawn"`
	KilledBy    Team          `json:"killed_by,omitempty"`

	// Behavior
	State         State   `json:"state"`
	StateTime     float64 `json:"state_time"` // Seconds spent in State
	Recovering    bool    `json:"recovering"` // Mana recovery latch
	StuckReported bool    `json:"stuck_reported,omitempty"`

	// Guards only
	HomeSiteID *uint64 `json:"home_site_id,omitempty"`
	GuardIndex int     `json:"guard_index"`
	SiteEpoch  uint64  `json:"site_epoch"` // Site ownership epoch at spawn
}

// IsGuard reports whether the unit is a site-bound guard.
func (u *Unit) IsGuard() bool {
	return u.Kind == KindGuard
}

// Hostile reports whether o is on an opposing team.
func (u *Unit) Hostile(o *Unit) bool {
	return u.Team != o.Team && o.Team != Neutral && u.Team != Neutral
}

// HealthRatio returns current/max health, 0 when max is not positive.
func (u *Unit) HealthRatio() float64 {
	if u.MaxHealth <= 0 {
		return 0
	}
	return u.Health / u.MaxHealth
}

// ManaRatio returns current/max mana, 0 when max is not positive.
func (u *Unit) ManaRatio() float64 {
	if u.MaxMana <= 0 {
		return 0
	}
	return u.Mana / u.MaxMana
}

// ClampVitals bounds health and mana to [0, max].
func (u *Unit) ClampVitals() {
	if u.MaxHealth < 0 {
		u.MaxHealth = 0
	}
	if u.MaxMana < 0 {
		u.MaxMana = 0
	}
	u.Health = Clamp(u.Health, 0, u.MaxHealth)
	u.Mana = Clamp(u.Mana, 0, u.MaxMana)
}

// SpendMana deducts cost. A cost larger than current mana is rejected and
// leaves the unit unchanged.
func (u *Unit) SpendMana(cost float64) bool {
	if cost < 0 || cost > u.Mana {
		return false
	}
	u.Mana -= cost
	u.ClampVitals()
	return true
}

// RestoreMana adds mana up to the maximum.
func (u *Unit) RestoreMana(amount float64) {
	u.Mana += amount
	u.ClampVitals()
}

// Heal restores health up to the maximum and returns the amount applied.
func (u *Unit) Heal(amount float64) float64 {
	if !u.Alive || amount <= 0 {
		return 0
	}
	before := u.Health
	u.Health += amount
	u.ClampVitals()
	return u.Health - before
}

// TakeDamage applies damage after immunity and shields. It returns the
// health actually lost.
func (u *Unit) TakeDamage(amount float64) float64 {
	if !u.Alive || amount <= 0 {
		return 0
	}
	if u.HasEffect(EffectImmunity) {
		return 0
	}
	for i := range u.Effects {
		e := &u.Effects[i]
		if e.Kind != EffectShield || e.Magnitude <= 0 {
			continue
		}
		absorbed := min(e.Magnitude, amount)
		e.Magnitude -= absorbed
		amount -= absorbed
		if amount <= 0 {
			break
		}
	}
	u.pruneEffects()
	before := u.Health
	u.Health -= amount
	u.ClampVitals()
	return before - u.Health
}

// RescaleHealth changes MaxHealth while preserving the current health ratio.
func (u *Unit) RescaleHealth(newMax float64) {
	ratio := u.HealthRatio()
	u.MaxHealth = newMax
	u.Health = ratio * newMax
	u.ClampVitals()
}

// RescaleMana changes MaxMana while preserving the current mana ratio.
func (u *Unit) RescaleMana(newMax float64) {
	ratio := u.ManaRatio()
	u.MaxMana = newMax
	u.Mana = ratio * newMax
	u.ClampVitals()
}

// Slot returns the index of the first ability slot of the given kind.
func (u *Unit) Slot(kind AbilityKind) (int, bool) {
	for i := range u.Abilities {
		if u.Abilities[i].Kind == kind {
			return i, true
		}
	}
	return -1, false
}

// AbilityReady reports whether the unit has an ability of the given kind off
// cooldown.
func (u *Unit) AbilityReady(kind AbilityKind) bool {
	i, ok := u.Slot(kind)
	return ok && u.Abilities[i].Cooldown.Ready()
}

// HasEffect reports whether any effect of the kind is active.
func (u *Unit) HasEffect(kind EffectKind) bool {
	for _, e := range u.Effects {
		if e.Kind == kind && !e.Remaining.Ready() {
			return true
		}
	}
	return false
}

// DoTStacks returns the total damage-over-time stacks on the unit.
func (u *Unit) DoTStacks() int {
	n := 0
	for _, e := range u.Effects {
		if e.Kind == EffectDoT && !e.Remaining.Ready() {
			n += e.Stacks
		}
	}
	return n
}

// AddEffect applies an effect. DoTs from the same source stack and refresh;
// shields and immunity refresh to the larger magnitude.
func (u *Unit) AddEffect(e Effect) {
	for i := range u.Effects {
		cur := &u.Effects[i]
		if cur.Kind != e.Kind {
			continue
		}
		if e.Kind == EffectDoT && cur.SourceID != e.SourceID {
			continue
		}
		if e.Kind == EffectDoT {
			cur.Stacks += max(e.Stacks, 1)
		}
		cur.Magnitude = max(cur.Magnitude, e.Magnitude)
		cur.Remaining = max(cur.Remaining, e.Remaining)
		return
	}
	if e.Kind == EffectDoT && e.Stacks < 1 {
		e.Stacks = 1
	}
	u.Effects = append(u.Effects, e)
}

// Cleanse removes every damage-over-time effect and returns the stacks removed.
func (u *Unit) Cleanse() int {
	removed := 0
	kept := u.Effects[:0]
	for _, e := range u.Effects {
		if e.Kind == EffectDoT {
			removed += e.Stacks
			continue
		}
		kept = append(kept, e)
	}
	u.Effects = kept
	return removed
}

// TickTimers advances every countdown the unit owns by dt.
func (u *Unit) TickTimers(dt float64) {
	for i := range u.Abilities {
		u.Abilities[i].Cooldown.Tick(dt)
	}
	u.AttackTimer.Tick(dt)
	for i := range u.Effects {
		u.Effects[i].Remaining.Tick(dt)
	}
	u.pruneEffects()
}

func (u *Unit) pruneEffects() {
	kept := u.Effects[:0]
	for _, e := range u.Effects {
		if e.Remaining.Ready() {
			continue
		}
		if e.Kind == EffectShield && e.Magnitude <= 0 {
			continue
		}
		kept = append(kept, e)
	}
	u.Effects = kept
}

// SetState switches behavior state and resets the per-state clock.
func (u *Unit) SetState(s State) bool {
	if u.State == s {
		return false
	}
	u.State = s
	u.StateTime = 0
	u.StuckReported = false
	return true
}
