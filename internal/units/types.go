// Package units provides the combat unit data model shared by every decision
// component: identities, closed enums for role/mode/state, ability slots and
// active effects.
package units

import "fmt"

// ID is a unique identifier for a unit.
type ID uint64

// Team is a faction identifier. Team 0 is neutral.
type Team uint8

// Neutral is the team of unowned sites.
const Neutral Team = 0

// Kind distinguishes who controls a unit and how it is anchored.
type Kind uint8

const (
	KindPlayer Kind = iota // Player-controlled leader
	KindAlly               // Friendly roaming unit or group member
	KindEnemy              // Hostile roaming unit
	KindGuard              // Site-bound squad member
)

func (k Kind) String() string {
	switch k {
	case KindPlayer:
		return "player"
	case KindAlly:
		return "ally"
	case KindEnemy:
		return "enemy"
	case KindGuard:
		return "guard"
	default:
		return "unknown"
	}
}

// Role is a unit's combat specialization.
type Role uint8

const (
	RoleDPS Role = iota
	RoleTank
	RoleHealer
)

func (r Role) String() string {
	switch r {
	case RoleDPS:
		return "dps"
	case RoleTank:
		return "tank"
	case RoleHealer:
		return "healer"
	default:
		return "unknown"
	}
}

// ParseRole converts a role name back to a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "dps", "DPS":
		return RoleDPS, nil
	case "tank", "Tank":
		return RoleTank, nil
	case "healer", "Healer":
		return RoleHealer, nil
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

// Mode is the behavior mode of player-controlled units.
type Mode uint8

const (
	ModeAggressive Mode = iota
	ModeNeutral
)

func (m Mode) String() string {
	switch m {
	case ModeAggressive:
		return "aggressive"
	case ModeNeutral:
		return "neutral"
	default:
		return "unknown"
	}
}

// ParseMode converts a mode name back to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "aggressive", "Aggressive":
		return ModeAggressive, nil
	case "neutral", "Neutral":
		return ModeNeutral, nil
	}
	return 0, fmt.Errorf("unknown behavior mode %q", s)
}

// State is a behavior state machine state.
type State uint8

const (
	StateIdle State = iota
	StatePursue
	StateEngage
	StateRecover
	StateReturn
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePursue:
		return "pursue"
	case StateEngage:
		return "engage"
	case StateRecover:
		return "recover"
	case StateReturn:
		return "return"
	default:
		return "unknown"
	}
}

// Tier is a gear rarity tier, 1 (Common) to 5 (Legendary).
type Tier uint8

const (
	TierCommon Tier = iota + 1
	TierUncommon
	TierRare
	TierEpic
	TierLegendary
)

// MaxTier is the highest gear tier.
const MaxTier = TierLegendary

func (t Tier) String() string {
	switch t {
	case TierCommon:
		return "common"
	case TierUncommon:
		return "uncommon"
	case TierRare:
		return "rare"
	case TierEpic:
		return "epic"
	case TierLegendary:
		return "legendary"
	default:
		return "unknown"
	}
}

// ClampTier bounds t to [Common, Legendary].
func ClampTier(t int) Tier {
	return Tier(Clamp(t, int(TierCommon), int(TierLegendary)))
}

// AbilityKind classifies what an ability does, so policies can find the slot
// they need without knowing ability names.
type AbilityKind uint8

const (
	AbilityStrike     AbilityKind = iota // Single-target damage, non-combo
	AbilityOpener                        // Pull / damage-over-time initiator
	AbilityBurst                         // Area damage at a point
	AbilityFinisher                      // Melee gap-closer / area finisher
	AbilityHeal                          // Single-target heal
	AbilityAreaHeal                      // Heal around a point
	AbilityCleanse                       // Remove damage-over-time stacks
	AbilityShield                        // Absorb shield
	AbilityImmunity                      // Self immunity
	AbilityTaunt                         // Tank threat tool
)

var abilityKindNames = [...]string{
	AbilityStrike:   "strike",
	AbilityOpener:   "opener",
	AbilityBurst:    "burst",
	AbilityFinisher: "finisher",
	AbilityHeal:     "heal",
	AbilityAreaHeal: "area_heal",
	AbilityCleanse:  "cleanse",
	AbilityShield:   "shield",
	AbilityImmunity: "immunity",
	AbilityTaunt:    "taunt",
}

func (k AbilityKind) String() string {
	if int(k) < len(abilityKindNames) {
		return abilityKindNames[k]
	}
	return "unknown"
}

// ParseAbilityKind converts a table name to an AbilityKind.
func ParseAbilityKind(s string) (AbilityKind, error) {
	for i, name := range abilityKindNames {
		if name == s {
			return AbilityKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown ability kind %q", s)
}

// AbilitySlot is one equipped ability with its own cooldown.
type AbilitySlot struct {
	Ability  string      `json:"ability"`
	Kind     AbilityKind `json:"kind"`
	Cooldown Countdown   `json:"cooldown"`
}

// EffectKind enumerates active effects on a unit.
type EffectKind uint8

const (
	EffectDoT      EffectKind = iota // Damage over time, Magnitude per second per stack
	EffectShield                     // Absorbs Magnitude damage
	EffectImmunity                   // Ignores all damage
)

// Effect is a timed status on a unit.
type Effect struct {
	Kind      EffectKind `json:"kind"`
	Stacks    int        `json:"stacks"`
	Magnitude float64    `json:"magnitude"`
	Remaining Countdown  `json:"remaining"`
	SourceID  ID         `json:"source_id"`
}
