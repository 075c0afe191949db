// Package gamedata loads the static ability, role and gear tables the
// decision layer reads. Tables are immutable once loaded.
package gamedata

import (
	_ "embed"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/talgya/warfront/internal/units"
)

//go:embed tables.yaml
var defaultTables []byte

// Ability is one static ability definition.
type Ability struct {
	ID         string            `yaml:"id"`
	KindName   string            `yaml:"kind"`
	Kind       units.AbilityKind `yaml:"-"`
	Cost       float64           `yaml:"cost"`
	Cooldown   float64           `yaml:"cooldown"`
	Range      float64           `yaml:"range"`
	Radius     float64           `yaml:"radius"`
	Power      float64           `yaml:"power"`
	Duration   float64           `yaml:"duration"`
	DoTSeconds float64           `yaml:"dot_seconds"`
}

// RoleStats are level-1, Common-tier baselines for a role.
type RoleStats struct {
	Health         float64  `yaml:"health"`
	Mana           float64  `yaml:"mana"`
	ManaRegen      float64  `yaml:"mana_regen"`
	Speed          float64  `yaml:"speed"`
	AttackRange    float64  `yaml:"attack_range"`
	AttackPower    float64  `yaml:"attack_power"`
	AttackInterval float64  `yaml:"attack_interval"`
	Growth         float64  `yaml:"growth"` // Fractional stat gain per level
	Loadout        []string `yaml:"loadout"`
}

// Gear is one rarity tier.
type Gear struct {
	Tier       int     `yaml:"tier"`
	Name       string  `yaml:"name"`
	Multiplier float64 `yaml:"multiplier"`
}

type rawTables struct {
	Abilities []Ability            `yaml:"abilities"`
	Roles     map[string]RoleStats `yaml:"roles"`
	Gear      []Gear               `yaml:"gear"`
}

// Tables is the read-only lookup service for static data.
type Tables struct {
	abilities map[string]Ability
	roles     map[units.Role]RoleStats
	gear      [units.MaxTier]Gear
}

// Default returns the embedded tables.
func Default() (*Tables, error) {
	return Parse(defaultTables)
}

// Load reads tables from path, or the embedded defaults when path is empty.
func Load(path string) (*Tables, error) {
	if path == "" {
		return Default()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tables: %w", err)
	}
	return Parse(b)
}

// Parse decodes and validates YAML tables.
func Parse(b []byte) (*Tables, error) {
	var raw rawTables
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("decode tables: %w", err)
	}

	t := &Tables{
		abilities: make(map[string]Ability, len(raw.Abilities)),
		roles:     make(map[units.Role]RoleStats, len(raw.Roles)),
	}

	for _, a := range raw.Abilities {
		kind, err := units.ParseAbilityKind(a.KindName)
		if err != nil {
			return nil, fmt.Errorf("ability %q: %w", a.ID, err)
		}
		if a.Cost < 0 || a.Cooldown < 0 {
			return nil, fmt.Errorf("ability %q: negative cost or cooldown", a.ID)
		}
		a.Kind = kind
		t.abilities[a.ID] = a
	}

	for name, rs := range raw.Roles {
		role, err := units.ParseRole(name)
		if err != nil {
			return nil, err
		}
		for _, id := range rs.Loadout {
			if _, ok := t.abilities[id]; !ok {
				return nil, fmt.Errorf("role %s: unknown ability %q in loadout", name, id)
			}
		}
		t.roles[role] = rs
	}
	for _, role := range []units.Role{units.RoleDPS, units.RoleTank, units.RoleHealer} {
		if _, ok := t.roles[role]; !ok {
			return nil, fmt.Errorf("missing role %s", role)
		}
	}

	if len(raw.Gear) != int(units.MaxTier) {
		return nil, fmt.Errorf("expected %d gear tiers, got %d", units.MaxTier, len(raw.Gear))
	}
	for _, g := range raw.Gear {
		if g.Tier < 1 || g.Tier > int(units.MaxTier) {
			return nil, fmt.Errorf("gear tier %d out of range", g.Tier)
		}
		if t.gear[g.Tier-1].Tier != 0 {
			return nil, fmt.Errorf("duplicate gear tier %d", g.Tier)
		}
		t.gear[g.Tier-1] = g
	}

	return t, nil
}

// Ability looks up an ability by id.
func (t *Tables) Ability(id string) (Ability, bool) {
	a, ok := t.abilities[id]
	return a, ok
}

// Role returns the baselines for a role.
func (t *Tables) Role(r units.Role) RoleStats {
	return t.roles[r]
}

// Gear returns the rarity entry for a tier, clamped to the valid range.
func (t *Tables) Gear(tier units.Tier) Gear {
	tier = units.ClampTier(int(tier))
	return t.gear[tier-1]
}

// scale is the combined level and gear multiplier.
func (t *Tables) scale(r units.Role, level int, tier units.Tier) float64 {
	level = max(level, 1)
	return (1 + t.roles[r].Growth*float64(level-1)) * t.Gear(tier).Multiplier
}

// MaxHealth derives max health for a role at a level and gear tier.
func (t *Tables) MaxHealth(r units.Role, level int, tier units.Tier) float64 {
	return math.Round(t.roles[r].Health * t.scale(r, level, tier))
}

// MaxMana derives max mana. Mana grows with level only, not gear.
func (t *Tables) MaxMana(r units.Role, level int) float64 {
	level = max(level, 1)
	return math.Round(t.roles[r].Mana * (1 + t.roles[r].Growth*0.5*float64(level-1)))
}

// AttackPower derives basic attack damage.
func (t *Tables) AttackPower(r units.Role, level int, tier units.Tier) float64 {
	return t.roles[r].AttackPower * t.scale(r, level, tier)
}

// Loadout builds fresh ability slots for a role.
func (t *Tables) Loadout(r units.Role) []units.AbilitySlot {
	slots, _ := t.Slots(t.roles[r].Loadout)
	return slots
}

// Slots builds fresh ability slots for a list of ability ids.
func (t *Tables) Slots(ids []string) ([]units.AbilitySlot, error) {
	slots := make([]units.AbilitySlot, 0, len(ids))
	for _, id := range ids {
		a, ok := t.abilities[id]
		if !ok {
			return nil, fmt.Errorf("unknown ability %q", id)
		}
		slots = append(slots, units.AbilitySlot{Ability: id, Kind: a.Kind})
	}
	return slots, nil
}

// Potency is an ability's power when cast by u, scaled like its stats.
func (t *Tables) Potency(u *units.Unit, a Ability) float64 {
	return a.Power * t.scale(u.Role, u.Level, u.GearTier)
}

// AttackInterval is the seconds between basic attacks for a role.
func (t *Tables) AttackInterval(r units.Role) float64 {
	if iv := t.roles[r].AttackInterval; iv > 0 {
		return iv
	}
	return 1
}

// Equip sets a unit's derived stats for its role, level and gear tier,
// preserving current health and mana ratios.
func (t *Tables) Equip(u *units.Unit) {
	rs := t.roles[u.Role]
	u.RescaleHealth(t.MaxHealth(u.Role, u.Level, u.GearTier))
	u.RescaleMana(t.MaxMana(u.Role, u.Level))
	u.ManaRegen = rs.ManaRegen
	u.Speed = rs.Speed
	u.AttackRange = rs.AttackRange
	u.AttackPower = t.AttackPower(u.Role, u.Level, u.GearTier)
}
