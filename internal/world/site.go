// Package world holds the capturable sites and the factions that contest
// them. Sites own their guard progression and squad combo bookkeeping so the
// whole squad state survives a snapshot.
package world

import "github.com/talgya/warfront/internal/units"

// GuardSlots is the fixed squad size per site: 2 healers then 3 DPS.
const GuardSlots = 5

// GuardRole returns the fixed role for a guard index.
func GuardRole(index int) units.Role {
	if index < 2 {
		return units.RoleHealer
	}
	return units.RoleDPS
}

// GuardProgression is a site's continuous-ownership scaling record.
type GuardProgression struct {
	TimeHeld float64         `json:"time_held"` // Seconds of uninterrupted ownership
	Tier     units.Tier      `json:"tier"`
	Levels   [GuardSlots]int `json:"levels"`
}

// NewGuardProgression returns the initial record: no time held, Common, level 1.
func NewGuardProgression() GuardProgression {
	g := GuardProgression{Tier: units.TierCommon}
	for i := range g.Levels {
		g.Levels[i] = 1
	}
	return g
}

// Normalize clamps a record loaded from outside the simulation. It reports
// whether anything had to change.
func (g *GuardProgression) Normalize(maxLevel int) bool {
	changed := false
	if g.TimeHeld < 0 {
		g.TimeHeld = 0
		changed = true
	}
	if t := units.ClampTier(int(g.Tier)); t != g.Tier {
		g.Tier = t
		changed = true
	}
	for i, lvl := range g.Levels {
		if c := units.Clamp(lvl, 1, maxLevel); c != lvl {
			g.Levels[i] = c
			changed = true
		}
	}
	return changed
}

// ComboStage is the squad combo chain position.
type ComboStage uint8

const (
	ComboNone       ComboStage = iota
	ComboInitiation            // Opener cast, burst next
	ComboBurst                 // Burst cast, finisher next
)

func (c ComboStage) String() string {
	switch c {
	case ComboNone:
		return "none"
	case ComboInitiation:
		return "initiation"
	case ComboBurst:
		return "burst"
	default:
		return "unknown"
	}
}

// ComboState is the squad combo bookkeeping carried between ticks.
type ComboState struct {
	Stage    ComboStage      `json:"stage"`
	Cooldown units.Countdown `json:"cooldown"` // Whole-combo lockout after the finisher
	Point    units.Vec2      `json:"point"`     // Shared area point fixed at burst time
	FocusID  *units.ID       `json:"focus_id,omitempty"`
	Fired    int             `json:"fired"` // Completed chains, for reporting
}

// InBurst reports whether a chain is executing.
func (c ComboState) InBurst() bool {
	return c.Stage != ComboNone
}

// Site is a capturable location.
type Site struct {
	ID       uint64     `json:"id"`
	Name     string     `json:"name"`
	Position units.Vec2 `json:"position"`
	Facing   float64    `json:"facing"` // Radians; squad front when no threat is present

	Owner     units.Team `json:"owner"`
	Epoch     uint64     `json:"epoch"` // Incremented on every ownership change
	Capture   float64    `json:"capture"`
	Capturing units.Team `json:"capturing"`

	Guards GuardProgression `json:"guards"`
	Combo  ComboState       `json:"combo"`
}

// NewSite creates a neutral site.
func NewSite(id uint64, name string, pos units.Vec2, facing float64) *Site {
	return &Site{
		ID:       id,
		Name:     name,
		Position: pos,
		Facing:   facing,
		Guards:   NewGuardProgression(),
	}
}

// SetOwner changes ownership. Any change resets guard progression, the combo
// and capture progress, and bumps the epoch so guards respawning from the
// previous owner are voided.
func (s *Site) SetOwner(team units.Team) bool {
	if s.Owner == team {
		return false
	}
	s.Owner = team
	s.Epoch++
	s.Capture = 0
	s.Capturing = units.Neutral
	s.Guards = NewGuardProgression()
	s.Combo = ComboState{}
	return true
}

// Owned reports whether the site belongs to a faction.
func (s *Site) Owned() bool {
	return s.Owner != units.Neutral
}
