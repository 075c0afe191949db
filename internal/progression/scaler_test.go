package progression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/warfront/internal/gamedata"
	"github.com/talgya/warfront/internal/units"
	"github.com/talgya/warfront/internal/world"
)

// fixedMax rescales every unit to the same maxima.
type fixedMax struct{ health, mana float64 }

func (f fixedMax) Equip(u *units.Unit) {
	u.RescaleHealth(f.health)
	u.RescaleMana(f.mana)
}

func TestEnemyLevel(t *testing.T) {
	tests := []struct {
		elapsed float64
		tier    units.Tier
		want    int
	}{
		{0, 1, 1},
		{300, 1, 6},
		{0, 4, 12},
		{59.9, 1, 1},
		{0, 2, 6},
		{600, 1, 11},
		{1e6, 5, MaxLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EnemyLevel(tt.elapsed, tt.tier), "elapsed=%v tier=%v", tt.elapsed, tt.tier)
	}
}

func TestGuardTier(t *testing.T) {
	tests := []struct {
		held float64
		want units.Tier
	}{
		{0, units.TierCommon},
		{299.9, units.TierCommon},
		{300, units.TierUncommon},
		{900, units.TierEpic},
		{1200, units.TierLegendary},
		{99999, units.TierLegendary},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GuardTier(tt.held), "held=%v", tt.held)
	}
}

func TestUpdateSite(t *testing.T) {
	site := world.NewSite(1, "Stonebridge", units.Vec2{}, 0)
	assert.False(t, UpdateSite(site, 500), "neutral sites do not accrue")
	assert.Zero(t, site.Guards.TimeHeld)

	site.SetOwner(1)
	site.Guards.Levels[4] = 20
	assert.False(t, UpdateSite(site, 299))
	assert.True(t, UpdateSite(site, 1))
	assert.Equal(t, units.TierUncommon, site.Guards.Tier)
	assert.Equal(t, [world.GuardSlots]int{6, 6, 6, 6, 20}, site.Guards.Levels, "floor is upward only")

	site.SetOwner(2)
	assert.Equal(t, world.NewGuardProgression(), site.Guards)
	UpdateSite(site, 10)
	assert.Equal(t, 10.0, site.Guards.TimeHeld)
}

func TestApply_PreservesRatio(t *testing.T) {
	u := &units.Unit{Level: 1, GearTier: 1, Health: 40, MaxHealth: 100, Mana: 10, MaxMana: 20}
	require.True(t, Apply(u, 2, 1, fixedMax{health: 150, mana: 30}))
	assert.InDelta(t, 60, u.Health, 1e-9)
	assert.InDelta(t, 150, u.MaxHealth, 1e-9)
	assert.InDelta(t, 15, u.Mana, 1e-9)

	assert.False(t, Apply(u, 2, 1, fixedMax{health: 999, mana: 999}))
	assert.True(t, Apply(u, 80, 9, fixedMax{health: 150, mana: 30}))
	assert.Equal(t, MaxLevel, u.Level)
	assert.Equal(t, units.TierLegendary, u.GearTier)
}

func TestApplyGuardAndEnemy(t *testing.T) {
	tb, err := gamedata.Default()
	require.NoError(t, err)

	site := world.NewSite(1, "Stonebridge", units.Vec2{}, 0)
	site.SetOwner(1)
	UpdateSite(site, 600)

	g := &units.Unit{Role: units.RoleDPS, Level: 1, GearTier: 1, GuardIndex: 3, Health: 100, MaxHealth: 100, Mana: 100, MaxMana: 100}
	require.True(t, ApplyGuard(g, site, tb))
	assert.Equal(t, 9, g.Level)
	assert.Equal(t, units.TierRare, g.GearTier)
	assert.Equal(t, g.MaxHealth, g.Health, "full health stays full")
	assert.Greater(t, g.MaxHealth, 100.0)

	e := &units.Unit{Role: units.RoleTank, Level: 20, GearTier: 1, Health: 1, MaxHealth: 1}
	assert.False(t, ApplyEnemy(e, 60, 1, tb), "enemy levels never drop")
	assert.Equal(t, 20, e.Level)
}

func TestPurchaseSquadLevel(t *testing.T) {
	eq := fixedMax{health: 100, mana: 100}
	f := &world.Faction{ID: 1, Gold: 250, Tier: 1}
	a := &units.Unit{ID: 1, Kind: units.KindAlly, Team: 1, Alive: true, Level: 4, GearTier: 1}
	dead := &units.Unit{ID: 2, Kind: units.KindAlly, Team: 1, Level: 4, GearTier: 1}
	foe := &units.Unit{ID: 3, Kind: units.KindAlly, Team: 2, Alive: true, Level: 4, GearTier: 1}
	all := []*units.Unit{a, dead, foe}

	n, err := PurchaseSquadLevel(f, all, DefaultPrices(), eq)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 5, a.Level)
	assert.Equal(t, 4, dead.Level)
	assert.Equal(t, 4, foe.Level)
	assert.Equal(t, uint64(50), f.Gold)
	assert.Equal(t, 1, f.SquadLevels)

	_, err = PurchaseSquadLevel(f, all, DefaultPrices(), eq)
	assert.ErrorIs(t, err, ErrInsufficientGold)

	f.Gold = 1000
	a.Level = MaxLevel
	_, err = PurchaseSquadLevel(f, all, DefaultPrices(), eq)
	assert.ErrorIs(t, err, ErrMaxLevel)
	assert.Equal(t, uint64(1000), f.Gold, "failed purchases are free")

	_, err = PurchaseSquadLevel(&world.Faction{ID: 9, Gold: 1000}, all, DefaultPrices(), eq)
	assert.ErrorIs(t, err, ErrNoAllies)
}

func TestPurchaseSquadGearTier(t *testing.T) {
	eq := fixedMax{health: 100, mana: 100}
	f := &world.Faction{ID: 1, Gold: 10000, Tier: units.TierCommon}
	low := &units.Unit{ID: 1, Kind: units.KindAlly, Team: 1, Alive: true, Level: 2, GearTier: 1}
	high := &units.Unit{ID: 2, Kind: units.KindPlayer, Team: 1, Alive: true, Level: 30, GearTier: 4}
	all := []*units.Unit{low, high}

	tier, err := PurchaseSquadGearTier(f, all, DefaultPrices(), eq)
	require.NoError(t, err)
	assert.Equal(t, units.TierUncommon, tier)
	assert.Equal(t, uint64(10000-600), f.Gold)
	assert.Equal(t, 6, low.Level)
	assert.Equal(t, units.TierUncommon, low.GearTier)
	assert.Equal(t, 30, high.Level, "floor never lowers")
	assert.Equal(t, units.TierEpic, high.GearTier)

	for f.Tier < units.MaxTier {
		_, err = PurchaseSquadGearTier(f, all, DefaultPrices(), eq)
		require.NoError(t, err)
	}
	assert.Equal(t, 15, low.Level)
	_, err = PurchaseSquadGearTier(f, all, DefaultPrices(), eq)
	assert.ErrorIs(t, err, ErrMaxTier)
}
