// Simulation holds the campaign state and runs the per-tick pipeline.
package engine

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/talgya/warfront/internal/economy"
	"github.com/talgya/warfront/internal/formation"
	"github.com/talgya/warfront/internal/gamedata"
	"github.com/talgya/warfront/internal/progression"
	"github.com/talgya/warfront/internal/units"
	"github.com/talgya/warfront/internal/world"
)

// Event categories.
const (
	CategoryCombat      = "combat"
	CategoryProgression = "progression"
	CategoryEconomy     = "economy"
	CategoryGroup       = "group"
	CategorySite        = "site"
	CategoryDiagnostic  = "diagnostic"
)

// maxEvents bounds the event log.
const maxEvents = 1000

// Lookup failures shared by commands.
var (
	ErrUnknownUnit    = errors.New("unknown unit")
	ErrUnknownSite    = errors.New("unknown site")
	ErrUnknownFaction = errors.New("unknown faction")
)

// Event is a notable occurrence in the campaign.
type Event struct {
	ID          string         `json:"id"`
	Tick        uint64         `json:"tick"`
	Elapsed     float64        `json:"elapsed"`
	Description string         `json:"description"`
	Category    string         `json:"category"`
	Meta        map[string]any `json:"meta,omitempty"`
}

// Stats are campaign-wide counters.
type Stats struct {
	Kills           int    `json:"kills"`
	Respawns        int    `json:"respawns"`
	VoidedRespawns  int    `json:"voided_respawns"`
	Captures        int    `json:"captures"`
	CombosFired     int    `json:"combos_fired"`
	CombosAborted   int    `json:"combos_aborted"`
	CastsRejected   int    `json:"casts_rejected"`
	GoldGranted     uint64 `json:"gold_granted"`
	StuckReports    int    `json:"stuck_reports"`
	InvariantClamps int    `json:"invariant_clamps"`
}

// Options tune a simulation.
type Options struct {
	Debug        bool    // Invariant violations panic instead of clamping
	StuckSeconds float64 // Non-Idle time before a unit is reported stuck
	Catchup      economy.Config
	Prices       progression.Prices
}

// DefaultOptions returns the standard tuning.
func DefaultOptions() Options {
	return Options{
		StuckSeconds: 20,
		Catchup:      economy.DefaultConfig(),
		Prices:       progression.DefaultPrices(),
	}
}

// Simulation holds the complete campaign state. The tick goroutine is the
// only writer; readers go through the locked accessors.
type Simulation struct {
	mu sync.RWMutex

	CampaignID string
	Tick       uint64  // Most recent tick processed
	Elapsed    float64 // Campaign seconds
	Units      []*units.Unit
	Sites      []*world.Site
	Factions   []*world.Faction
	Group      *formation.Group
	Events     []Event
	Intents    []Intent // Produced by the most recent tick
	Stats      Stats

	Tables  *gamedata.Tables
	opts    Options
	catchup *economy.Controller
	metrics *metrics

	unitIndex map[units.ID]*units.Unit
	siteIndex map[uint64]*world.Site
	nextID    units.ID

	cmdMu   sync.Mutex
	pending []pendingCommand
}

// NewSimulation wires already-built campaign state together.
func NewSimulation(tables *gamedata.Tables, opts Options, us []*units.Unit, sites []*world.Site, factions []*world.Faction, group *formation.Group) *Simulation {
	if opts.StuckSeconds <= 0 {
		opts.StuckSeconds = DefaultOptions().StuckSeconds
	}
	s := &Simulation{
		CampaignID: uuid.NewString(),
		Units:      us,
		Sites:      sites,
		Factions:   factions,
		Group:      group,
		Tables:     tables,
		opts:       opts,
		catchup:    economy.NewController(opts.Catchup),
		metrics:    newMetrics(),
	}
	s.reindex()
	return s
}

// Options returns the simulation's tuning.
func (s *Simulation) Options() Options {
	return s.opts
}

func (s *Simulation) reindex() {
	s.unitIndex = make(map[units.ID]*units.Unit, len(s.Units))
	s.nextID = 1
	for _, u := range s.Units {
		s.unitIndex[u.ID] = u
		if u.ID >= s.nextID {
			s.nextID = u.ID + 1
		}
	}
	s.siteIndex = make(map[uint64]*world.Site, len(s.Sites))
	for _, site := range s.Sites {
		s.siteIndex[site.ID] = site
	}
}

// Unit returns the unit with the given id, or nil.
func (s *Simulation) Unit(id units.ID) *units.Unit {
	return s.unitIndex[id]
}

// Site returns the site with the given id, or nil.
func (s *Simulation) Site(id uint64) *world.Site {
	return s.siteIndex[id]
}

// Faction returns the faction with the given team id, or nil.
func (s *Simulation) Faction(team units.Team) *world.Faction {
	return world.FindFaction(s.Factions, team)
}

// homeSite returns a guard's site, or nil.
func (s *Simulation) homeSite(u *units.Unit) *world.Site {
	if u.HomeSiteID == nil {
		return nil
	}
	return s.siteIndex[*u.HomeSiteID]
}

func (s *Simulation) addUnit(u *units.Unit) *units.Unit {
	u.ID = s.nextID
	s.nextID++
	s.Units = append(s.Units, u)
	s.unitIndex[u.ID] = u
	return u
}

// removeUnits drops every unit matching drop and returns how many went.
func (s *Simulation) removeUnits(drop func(*units.Unit) bool) int {
	kept := s.Units[:0]
	removed := 0
	for _, u := range s.Units {
		if drop(u) {
			delete(s.unitIndex, u.ID)
			if s.Group != nil {
				_ = s.Group.Remove(u.ID)
			}
			removed++
			continue
		}
		kept = append(kept, u)
	}
	for i := len(kept); i < len(s.Units); i++ {
		s.Units[i] = nil
	}
	s.Units = kept
	return removed
}

// EmitEvent records an event and logs it at debug level.
func (s *Simulation) EmitEvent(e Event) {
	e.ID = uuid.NewString()
	e.Tick = s.Tick
	e.Elapsed = s.Elapsed
	s.Events = append(s.Events, e)
	slog.Debug("event", "category", e.Category, "description", e.Description)
}

func (s *Simulation) trimEvents() {
	if len(s.Events) > maxEvents {
		s.Events = append([]Event(nil), s.Events[len(s.Events)-maxEvents:]...)
	}
}

// RecentEvents returns up to n of the newest events, oldest first,
// optionally filtered by category.
func (s *Simulation) RecentEvents(n int, category string) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for i := len(s.Events) - 1; i >= 0 && len(out) < n; i-- {
		if category != "" && s.Events[i].Category != category {
			continue
		}
		out = append(out, s.Events[i])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Status is a compact summary of the campaign.
type Status struct {
	CampaignID string  `json:"campaign_id"`
	Tick       uint64  `json:"tick"`
	Elapsed    float64 `json:"elapsed"`
	Clock      string  `json:"clock"`
	Alive      int     `json:"alive"`
	Down       int     `json:"down"`
	Sites      int     `json:"sites"`
	Factions   int     `json:"factions"`
	GroupSize  int     `json:"group_size"`
	Pending    int     `json:"pending_commands"`
	Stats      Stats   `json:"stats"`
}

// Status summarizes the campaign.
func (s *Simulation) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Status{
		CampaignID: s.CampaignID,
		Tick:       s.Tick,
		Elapsed:    s.Elapsed,
		Clock:      SimTime(s.Elapsed),
		Sites:      len(s.Sites),
		Factions:   len(s.Factions),
		Stats:      s.Stats,
	}
	for _, u := range s.Units {
		if u.Alive {
			st.Alive++
		} else {
			st.Down++
		}
	}
	if s.Group != nil {
		st.GroupSize = len(s.Group.Members)
	}
	s.cmdMu.Lock()
	st.Pending = len(s.pending)
	s.cmdMu.Unlock()
	return st
}

// LastIntents returns a copy of the intents produced by the latest tick.
func (s *Simulation) LastIntents() []Intent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Intent(nil), s.Intents...)
}
