package engine

import (
	"fmt"
	"math"

	"github.com/talgya/warfront/internal/formation"
	"github.com/talgya/warfront/internal/gamedata"
	"github.com/talgya/warfront/internal/progression"
	"github.com/talgya/warfront/internal/squad"
	"github.com/talgya/warfront/internal/units"
	"github.com/talgya/warfront/internal/world"
)

// PlayerTeam is the player's faction.
const PlayerTeam units.Team = 1

// CampaignConfig sizes a new campaign.
type CampaignConfig struct {
	Seed              int64
	Factions          int
	Sites             int
	EnemiesPerFaction int
	Allies            int
	Grouped           int // Allies that start in the player's group
	StartGold         uint64
}

// DefaultCampaignConfig returns a small three-faction campaign.
func DefaultCampaignConfig() CampaignConfig {
	return CampaignConfig{
		Seed:              42,
		Factions:          3,
		Sites:             5,
		EnemiesPerFaction: 4,
		Allies:            6,
		Grouped:           4,
		StartGold:         100,
	}
}

var rolePattern = []units.Role{units.RoleTank, units.RoleHealer, units.RoleDPS, units.RoleDPS}

// NewCampaign generates a fresh campaign: sites placed on the battlefield,
// one home site per faction with a full squad, the player with allies, and
// roaming enemies for every other faction.
func NewCampaign(tables *gamedata.Tables, cfg CampaignConfig, opts Options) (*Simulation, error) {
	if cfg.Factions < 2 {
		return nil, fmt.Errorf("campaign needs at least 2 factions, got %d", cfg.Factions)
	}
	layout := world.DefaultLayoutConfig()
	layout.Seed = cfg.Seed
	layout.Sites = max(cfg.Sites, cfg.Factions)
	sites := world.PlaceSites(layout)
	if len(sites) < cfg.Factions {
		return nil, fmt.Errorf("battlefield fits %d sites, need %d", len(sites), cfg.Factions)
	}
	factions := world.SeedFactions(cfg.Factions, cfg.StartGold)

	s := NewSimulation(tables, opts, nil, sites, factions, nil)
	for i, f := range factions {
		sites[i].SetOwner(f.ID)
		s.spawnGuards(sites[i])
	}

	home := sites[0]
	player := s.spawn(units.KindPlayer, PlayerTeam, units.RoleDPS, "Commander", home.Position)
	s.Group = formation.New(player)
	for i := 0; i < cfg.Allies; i++ {
		role := rolePattern[i%len(rolePattern)]
		pos := home.Position.Add(units.Polar(40, float64(i)))
		u := s.spawn(units.KindAlly, PlayerTeam, role, fmt.Sprintf("%s %d", title(role), i+1), pos)
		if i < cfg.Grouped {
			if _, _, err := s.Group.Invite(u); err != nil {
				return nil, fmt.Errorf("invite starting ally: %w", err)
			}
		}
	}

	for _, f := range factions[1:] {
		base := sites[int(f.ID)-1]
		for i := 0; i < cfg.EnemiesPerFaction; i++ {
			role := rolePattern[i%len(rolePattern)]
			pos := base.Position.Add(units.Polar(40, float64(i)))
			s.spawn(units.KindEnemy, f.ID, role, fmt.Sprintf("%s %s %d", f.Name, title(role), i+1), pos)
		}
	}

	s.EmitEvent(Event{
		Description: fmt.Sprintf("Campaign begins: %d factions contest %d sites", len(factions), len(sites)),
		Category:    CategorySite,
		Meta:        map[string]any{"campaign_id": s.CampaignID, "seed": cfg.Seed},
	})
	return s, nil
}

func title(r units.Role) string {
	switch r {
	case units.RoleTank:
		return "Bulwark"
	case units.RoleHealer:
		return "Mender"
	default:
		return "Blade"
	}
}

// spawn creates a unit at full vitals for its faction's current gear tier.
func (s *Simulation) spawn(kind units.Kind, team units.Team, role units.Role, name string, pos units.Vec2) *units.Unit {
	tier := units.TierCommon
	if f := s.Faction(team); f != nil && kind != units.KindEnemy {
		tier = f.Tier
	}
	u := &units.Unit{
		Name:      name,
		Kind:      kind,
		Team:      team,
		Role:      role,
		Level:     progression.TierFloor(tier),
		GearTier:  tier,
		Alive:     true,
		Position:  pos,
		Anchor:    pos,
		Home:      pos,
		Abilities: s.Tables.Loadout(role),
	}
	s.refill(u)
	return s.addUnit(u)
}

// spawnGuards fills every empty slot of an owned site's squad under the
// current epoch.
func (s *Simulation) spawnGuards(site *world.Site) int {
	if !site.Owned() {
		return 0
	}
	sq, _ := squad.Build(site, s.Units)
	spawned := 0
	for _, i := range sq.Missing() {
		id := site.ID
		pos := squad.SlotPosition(site, i)
		u := &units.Unit{
			Name:       fmt.Sprintf("%s %s %d", site.Name, title(world.GuardRole(i)), i+1),
			Kind:       units.KindGuard,
			Team:       site.Owner,
			Role:       world.GuardRole(i),
			Level:      site.Guards.Levels[i],
			GearTier:   site.Guards.Tier,
			Alive:      true,
			Position:   pos,
			Anchor:     pos,
			Home:       pos,
			Abilities:  s.Tables.Loadout(world.GuardRole(i)),
			HomeSiteID: &id,
			GuardIndex: i,
			SiteEpoch:  site.Epoch,
		}
		s.refill(u)
		s.addUnit(u)
		spawned++
	}
	return spawned
}

// refill equips a unit and restores it to full health and mana.
func (s *Simulation) refill(u *units.Unit) {
	s.Tables.Equip(u)
	u.Health = u.MaxHealth
	u.Mana = u.MaxMana
}

// heading is the direction a unit is travelling, toward its anchor.
func heading(u *units.Unit) float64 {
	d := u.Anchor.Sub(u.Position)
	if d.Len() < 1 {
		return 0
	}
	return math.Atan2(d.Y, d.X)
}
