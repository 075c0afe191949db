package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/warfront/internal/behavior"
	"github.com/talgya/warfront/internal/formation"
	"github.com/talgya/warfront/internal/gamedata"
	"github.com/talgya/warfront/internal/squad"
	"github.com/talgya/warfront/internal/units"
	"github.com/talgya/warfront/internal/world"
)

func tables(t *testing.T) *gamedata.Tables {
	t.Helper()
	tb, err := gamedata.Default()
	require.NoError(t, err)
	return tb
}

func newCampaign(t *testing.T) *Simulation {
	t.Helper()
	opts := DefaultOptions()
	opts.Debug = true
	s, err := NewCampaign(tables(t), DefaultCampaignConfig(), opts)
	require.NoError(t, err)
	return s
}

// bare is a campaign with the given factions, sites and no units.
func bare(t *testing.T, opts Options, sites []*world.Site, points ...float64) *Simulation {
	t.Helper()
	fs := world.SeedFactions(len(points), 0)
	for i, p := range points {
		fs[i].Points = p
	}
	return NewSimulation(tables(t), opts, nil, sites, fs, nil)
}

func guardsOf(s *Simulation, site *world.Site) []*units.Unit {
	var out []*units.Unit
	for _, u := range s.Units {
		if u.IsGuard() && *u.HomeSiteID == site.ID && u.SiteEpoch == site.Epoch {
			out = append(out, u)
		}
	}
	return out
}

func TestNewCampaign(t *testing.T) {
	s := newCampaign(t)
	require.Len(t, s.Factions, 3)
	for i, f := range s.Factions {
		site := s.Sites[i]
		assert.Equal(t, f.ID, site.Owner)
		gs := guardsOf(s, site)
		require.Len(t, gs, 5)
		for _, g := range gs {
			assert.Equal(t, world.GuardRole(g.GuardIndex), g.Role)
			assert.Equal(t, g.MaxHealth, g.Health)
		}
	}
	for _, site := range s.Sites[len(s.Factions):] {
		assert.False(t, site.Owned())
	}

	leader := s.Unit(s.Group.LeaderID)
	require.NotNil(t, leader)
	assert.Equal(t, units.KindPlayer, leader.Kind)
	assert.Len(t, s.Group.Members, 4)
	for _, m := range s.Group.Members {
		assert.False(t, s.Unit(m.UnitID).IsGuard())
	}
}

func TestNewCampaign_NeedsTwoFactions(t *testing.T) {
	cfg := DefaultCampaignConfig()
	cfg.Factions = 1
	_, err := NewCampaign(tables(t), cfg, DefaultOptions())
	assert.Error(t, err)
}

func TestStep_ClampsDT(t *testing.T) {
	s := bare(t, DefaultOptions(), nil, 0, 0)
	s.Step(1.0)
	assert.InDelta(t, DefaultMaxStep, s.Elapsed, 1e-12)
	s.Step(-5)
	assert.InDelta(t, DefaultMaxStep, s.Elapsed, 1e-12)
	assert.Equal(t, uint64(2), s.Tick)
}

func TestCampaign_RunsClean(t *testing.T) {
	s := newCampaign(t)
	for i := 0; i < 1200; i++ {
		s.Step(DefaultMaxStep)
	}
	assert.Zero(t, s.Stats.InvariantClamps)
	for _, u := range s.Units {
		assert.GreaterOrEqual(t, u.Health, 0.0)
		assert.LessOrEqual(t, u.Health, u.MaxHealth)
		assert.GreaterOrEqual(t, u.Mana, 0.0)
		assert.LessOrEqual(t, u.Mana, u.MaxMana)
	}
	for _, site := range s.Sites {
		assert.LessOrEqual(t, len(guardsOf(s, site)), world.GuardSlots)
	}
	for _, m := range s.Group.Members {
		assert.False(t, s.Unit(m.UnitID).IsGuard())
	}
	assert.LessOrEqual(t, len(s.Events), maxEvents)
}

func TestStep_IntentsInUnitOrder(t *testing.T) {
	s := newCampaign(t)
	intents := s.Step(DefaultMaxStep)
	require.NotEmpty(t, intents)
	for i := 1; i < len(intents); i++ {
		assert.Less(t, intents[i-1].UnitID, intents[i].UnitID)
	}
	assert.Equal(t, intents, s.LastIntents())
}

func TestRespawnAfterDelay(t *testing.T) {
	s := bare(t, DefaultOptions(), nil, 0, 0)
	u := s.spawn(units.KindEnemy, 2, units.RoleDPS, "Raider", units.Vec2{X: 5, Y: 5})
	u.Position = units.Vec2{X: 300}
	behavior.Down(u)

	for i := 0; i < 400 && !u.Alive; i++ {
		s.Step(DefaultMaxStep)
	}
	require.True(t, u.Alive)
	assert.InDelta(t, behavior.RespawnDelay, s.Elapsed, 2*DefaultMaxStep)
	assert.Equal(t, u.MaxHealth, u.Health)
	assert.Equal(t, units.Vec2{X: 5, Y: 5}, u.Position)
	assert.Equal(t, 1, s.Stats.Respawns)
}

func TestCatchupThroughStep(t *testing.T) {
	opts := DefaultOptions()
	opts.Catchup.Interval = 0.1
	s := bare(t, opts, nil, 300, 150)

	for i := 0; i < 5; i++ {
		s.Step(DefaultMaxStep)
	}
	assert.Equal(t, uint64(150), s.Factions[1].Gold)
	assert.Zero(t, s.Factions[0].Gold)
	assert.Equal(t, uint64(150), s.Stats.GoldGranted)
	assert.NotEmpty(t, s.RecentEvents(10, CategoryEconomy))
}

func TestLevelsScaleWithTimeForEnemiesOnly(t *testing.T) {
	s := newCampaign(t)
	s.Elapsed = 600
	s.Step(DefaultMaxStep)

	var enemies, friends int
	for _, u := range s.Units {
		if !u.Alive {
			continue
		}
		switch u.Kind {
		case units.KindEnemy:
			enemies++
			assert.Equal(t, 11, u.Level, "enemy %s", u.Name)
		case units.KindAlly, units.KindPlayer:
			friends++
			assert.Equal(t, 1, u.Level, "%s levels only through purchases or tier floors", u.Name)
		}
	}
	require.NotZero(t, enemies)
	require.NotZero(t, friends)
}

func TestComputerFactionsBuyGear(t *testing.T) {
	s := bare(t, DefaultOptions(), nil, 0, 0)
	s.Factions[1].Gold = 600
	s.Factions[0].Gold = 600

	s.Step(DefaultMaxStep)
	assert.Equal(t, units.TierUncommon, s.Factions[1].Tier)
	assert.Zero(t, s.Factions[1].Gold)
	assert.Equal(t, units.TierCommon, s.Factions[0].Tier, "the player buys their own gear")
}

func TestCapture(t *testing.T) {
	site := world.NewSite(1, "Hill", units.Vec2{}, 0)
	s := bare(t, DefaultOptions(), []*world.Site{site}, 0, 0)
	s.spawn(units.KindEnemy, 2, units.RoleTank, "Raider", units.Vec2{X: 10})

	for i := 0; i < 700 && !site.Owned(); i++ {
		s.Step(DefaultMaxStep)
	}
	require.Equal(t, units.Team(2), site.Owner)
	assert.InDelta(t, CaptureSeconds, s.Elapsed, 2*DefaultMaxStep)
	assert.Len(t, guardsOf(s, site), world.GuardSlots)
	assert.GreaterOrEqual(t, s.Factions[1].Points, CapturePoints)
	assert.Equal(t, 1, s.Stats.Captures)
}

func TestCast_Validation(t *testing.T) {
	s := bare(t, DefaultOptions(), nil, 0, 0)
	caster := s.spawn(units.KindAlly, 1, units.RoleDPS, "Blade", units.Vec2{})
	foe := s.spawn(units.KindEnemy, 2, units.RoleTank, "Brute", units.Vec2{X: 50})
	friend := s.spawn(units.KindAlly, 1, units.RoleTank, "Wall", units.Vec2{X: 10})

	c, ok := units.CastOn(caster, units.AbilityStrike, foe)
	require.True(t, ok)

	caster.Mana = 1
	assert.False(t, s.cast(caster, c), "unaffordable")
	assert.Equal(t, 1.0, caster.Mana)
	assert.True(t, caster.Abilities[c.Slot].Cooldown.Ready())

	caster.Mana = caster.MaxMana
	before := foe.Health
	require.True(t, s.cast(caster, c))
	assert.Less(t, foe.Health, before)
	assert.False(t, caster.Abilities[c.Slot].Cooldown.Ready())
	assert.Less(t, caster.Mana, caster.MaxMana)
	assert.False(t, s.cast(caster, c), "cooling down")

	bad, ok := units.CastOn(caster, units.AbilityOpener, friend)
	require.True(t, ok)
	assert.False(t, s.cast(caster, bad), "damage needs a hostile target")

	foe.Position = units.Vec2{X: 1000}
	far, ok := units.CastOn(caster, units.AbilityOpener, foe)
	require.True(t, ok)
	assert.False(t, s.cast(caster, far), "out of range")
}

func TestCast_FinisherLeaps(t *testing.T) {
	s := bare(t, DefaultOptions(), nil, 0, 0)
	caster := s.spawn(units.KindGuard, 1, units.RoleDPS, "Blade", units.Vec2{})
	foe := s.spawn(units.KindEnemy, 2, units.RoleDPS, "Raider", units.Vec2{X: 200})

	c, ok := units.CastAt(caster, units.AbilityFinisher, foe.Position)
	require.True(t, ok)
	before := foe.Health
	require.True(t, s.cast(caster, c))
	assert.InDelta(t, 180, caster.Position.X, 1e-9)
	assert.Less(t, foe.Health, before)
}

func TestOpenerAppliesDoT(t *testing.T) {
	s := bare(t, DefaultOptions(), nil, 0, 0)
	caster := s.spawn(units.KindAlly, 1, units.RoleDPS, "Blade", units.Vec2{})
	foe := s.spawn(units.KindEnemy, 2, units.RoleTank, "Brute", units.Vec2{X: 50})

	c, ok := units.CastOn(caster, units.AbilityOpener, foe)
	require.True(t, ok)
	require.True(t, s.cast(caster, c))
	assert.Equal(t, 1, foe.DoTStacks())

	hp := foe.Health
	s.tickDoT(foe, 1)
	assert.Less(t, foe.Health, hp)
}

func TestDeathAwardsKillPoints(t *testing.T) {
	s := bare(t, DefaultOptions(), nil, 0, 0)
	killer := s.spawn(units.KindAlly, 1, units.RoleDPS, "Blade", units.Vec2{})
	foe := s.spawn(units.KindEnemy, 2, units.RoleDPS, "Raider", units.Vec2{X: 10})

	s.damage(killer, foe, foe.MaxHealth*2)
	s.resolveDeaths()
	assert.False(t, foe.Alive)
	assert.Equal(t, KillPoints, s.Factions[0].Points)
	assert.Equal(t, 1, s.Stats.Kills)
	assert.NotEmpty(t, s.RecentEvents(5, CategoryCombat))
}

func TestStuckReportedOnce(t *testing.T) {
	s := bare(t, DefaultOptions(), nil, 0, 0)
	u := s.spawn(units.KindAlly, 1, units.RoleDPS, "Blade", units.Vec2{})
	u.SetState(units.StateReturn)
	u.StateTime = 25

	s.diagnose()
	s.diagnose()
	assert.Len(t, s.RecentEvents(10, CategoryDiagnostic), 1)
	assert.Equal(t, 1, s.Stats.StuckReports)
	assert.Equal(t, units.StateReturn, u.State, "diagnostics never change state")
}

func TestGuardInGroup(t *testing.T) {
	s := newCampaign(t)
	guard := guardsOf(s, s.Sites[0])[0]
	s.Group.Members = append(s.Group.Members, formation.Member{UnitID: guard.ID})
	assert.Panics(t, func() { s.diagnose() })

	s.opts.Debug = false
	s.diagnose()
	assert.False(t, s.Group.Has(guard.ID))
	assert.Equal(t, 1, s.Stats.InvariantClamps)
}

func TestSquadStrayGuardsRemoved(t *testing.T) {
	s := newCampaign(t)
	s.opts.Debug = false
	site := s.Sites[0]
	extra := guardsOf(s, site)[0]
	dup := cloneUnit(extra)
	s.addUnit(&dup)

	s.Step(DefaultMaxStep)
	assert.Len(t, guardsOf(s, site), world.GuardSlots)
	assert.Nil(t, s.Unit(dup.ID))
	assert.Positive(t, s.Stats.InvariantClamps)
}

func TestSquadCast_Gates(t *testing.T) {
	u := &units.Unit{ID: 3, Alive: true}
	cast := &units.Cast{Ability: "burst", Kind: units.AbilityBurst}
	chain := &squad.Order{Cast: cast, Combo: true}
	engage := behavior.Decision{State: units.StateEngage, Abilities: true}
	pursue := behavior.Decision{State: units.StatePursue}

	got := squadCast(u, chain, pursue)
	require.NotNil(t, got, "chain casts skip the engage gate")
	assert.NotSame(t, cast, got)

	assert.Nil(t, squadCast(u, chain, behavior.Decision{State: units.StateReturn}), "past the leash the chain waits")

	u.Recovering = true
	assert.Nil(t, squadCast(u, chain, pursue))
	u.Recovering = false

	plain := &squad.Order{Cast: cast}
	assert.Nil(t, squadCast(u, plain, pursue))
	assert.NotNil(t, squadCast(u, plain, engage))
	assert.Nil(t, squadCast(u, &squad.Order{Combo: true}, engage))
}

func TestRecentEvents(t *testing.T) {
	s := bare(t, DefaultOptions(), nil, 0, 0)
	for i := 0; i < maxEvents+50; i++ {
		cat := CategoryCombat
		if i%2 == 0 {
			cat = CategorySite
		}
		s.EmitEvent(Event{Description: "e", Category: cat})
	}
	s.trimEvents()
	assert.Len(t, s.Events, maxEvents)

	got := s.RecentEvents(3, CategorySite)
	require.Len(t, got, 3)
	for _, e := range got {
		assert.Equal(t, CategorySite, e.Category)
	}
	assert.NotEqual(t, got[0].ID, got[1].ID)
}
