package engine

import (
	"errors"
	"fmt"

	"github.com/talgya/warfront/internal/formation"
	"github.com/talgya/warfront/internal/gamedata"
	"github.com/talgya/warfront/internal/progression"
	"github.com/talgya/warfront/internal/units"
	"github.com/talgya/warfront/internal/world"
)

// SnapshotVersion is bumped whenever the snapshot layout changes.
const SnapshotVersion = 1

// Snapshot is a deep copy of every piece of core state. Every timer is a
// Countdown, so restoring one and ticking on resumes exactly where the
// campaign stopped.
type Snapshot struct {
	Version    int              `json:"version"`
	CampaignID string           `json:"campaign_id"`
	Tick       uint64           `json:"tick"`
	Elapsed    float64          `json:"elapsed"`
	NextID     units.ID         `json:"next_id"`
	Units      []units.Unit     `json:"units"`
	Sites      []world.Site     `json:"sites"`
	Factions   []world.Faction  `json:"factions"`
	Group      *formation.Group `json:"group,omitempty"`
	Events     []Event          `json:"events"`
	Stats      Stats            `json:"stats"`
}

// Snapshot copies the campaign state.
func (s *Simulation) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{
		Version:    SnapshotVersion,
		CampaignID: s.CampaignID,
		Tick:       s.Tick,
		Elapsed:    s.Elapsed,
		NextID:     s.nextID,
		Units:      make([]units.Unit, 0, len(s.Units)),
		Sites:      make([]world.Site, 0, len(s.Sites)),
		Factions:   make([]world.Faction, 0, len(s.Factions)),
		Events:     append([]Event(nil), s.Events...),
		Stats:      s.Stats,
	}
	for _, u := range s.Units {
		snap.Units = append(snap.Units, cloneUnit(u))
	}
	for _, site := range s.Sites {
		c := *site
		c.Combo.FocusID = cloneID(site.Combo.FocusID)
		snap.Sites = append(snap.Sites, c)
	}
	for _, f := range s.Factions {
		snap.Factions = append(snap.Factions, *f)
	}
	if s.Group != nil {
		snap.Group = cloneGroup(s.Group)
	}
	return snap
}

// Snapshot validation failures.
var (
	ErrSnapshotVersion = errors.New("unsupported snapshot version")
	ErrDuplicateUnit   = errors.New("duplicate unit id")
	ErrOrphanGuard     = errors.New("guard bound to unknown site")
	ErrMissingLeader   = errors.New("group leader not found")
)

// Restore rebuilds a simulation from a snapshot. Vitals are clamped and
// guard records normalized on the way in. Unit ids keep counting from the
// saved counter so ids of removed units are never handed out again.
func Restore(snap *Snapshot, tables *gamedata.Tables, opts Options) (*Simulation, error) {
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d: %w", snap.Version, ErrSnapshotVersion)
	}

	sites := make([]*world.Site, 0, len(snap.Sites))
	siteIDs := make(map[uint64]bool, len(snap.Sites))
	for i := range snap.Sites {
		c := snap.Sites[i]
		c.Combo.FocusID = cloneID(c.Combo.FocusID)
		sites = append(sites, &c)
		siteIDs[c.ID] = true
	}

	us := make([]*units.Unit, 0, len(snap.Units))
	seen := make(map[units.ID]bool, len(snap.Units))
	for i := range snap.Units {
		u := cloneUnit(&snap.Units[i])
		if seen[u.ID] {
			return nil, fmt.Errorf("unit %d: %w", u.ID, ErrDuplicateUnit)
		}
		seen[u.ID] = true
		if u.IsGuard() && (u.HomeSiteID == nil || !siteIDs[*u.HomeSiteID]) {
			return nil, fmt.Errorf("guard %d: %w", u.ID, ErrOrphanGuard)
		}
		u.ClampVitals()
		us = append(us, &u)
	}

	factions := make([]*world.Faction, 0, len(snap.Factions))
	for i := range snap.Factions {
		f := snap.Factions[i]
		factions = append(factions, &f)
	}

	var group *formation.Group
	if snap.Group != nil {
		if !seen[snap.Group.LeaderID] {
			return nil, fmt.Errorf("leader %d: %w", snap.Group.LeaderID, ErrMissingLeader)
		}
		group = cloneGroup(snap.Group)
	}

	s := NewSimulation(tables, opts, us, sites, factions, group)
	if snap.CampaignID != "" {
		s.CampaignID = snap.CampaignID
	}
	s.Tick = snap.Tick
	s.Elapsed = snap.Elapsed
	if snap.NextID > s.nextID {
		s.nextID = snap.NextID
	}
	s.Events = append([]Event(nil), snap.Events...)
	s.Stats = snap.Stats
	for _, site := range s.Sites {
		if site.Guards.Normalize(progression.MaxLevel) {
			s.violation("malformed guard progression", "site", site.Name)
		}
	}
	return s, nil
}

func cloneID(id *units.ID) *units.ID {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}

func cloneUnit(u *units.Unit) units.Unit {
	c := *u
	c.Abilities = append([]units.AbilitySlot(nil), u.Abilities...)
	c.Effects = append([]units.Effect(nil), u.Effects...)
	c.TargetID = cloneID(u.TargetID)
	if u.HomeSiteID != nil {
		id := *u.HomeSiteID
		c.HomeSiteID = &id
	}
	return c
}

func cloneGroup(g *formation.Group) *formation.Group {
	c := &formation.Group{
		LeaderID: g.LeaderID,
		Team:     g.Team,
		Members:  make([]formation.Member, 0, len(g.Members)),
		Saved:    make(map[units.ID]formation.Settings, len(g.Saved)),
	}
	for _, m := range g.Members {
		m.Settings.Loadout = append([]string(nil), m.Settings.Loadout...)
		c.Members = append(c.Members, m)
	}
	for id, set := range g.Saved {
		set.Loadout = append([]string(nil), set.Loadout...)
		c.Saved[id] = set
	}
	return c
}
