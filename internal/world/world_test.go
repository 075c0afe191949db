package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/warfront/internal/units"
)

func TestGuardRole(t *testing.T) {
	assert.Equal(t, units.RoleHealer, GuardRole(0))
	assert.Equal(t, units.RoleHealer, GuardRole(1))
	for i := 2; i < GuardSlots; i++ {
		assert.Equal(t, units.RoleDPS, GuardRole(i))
	}
}

func TestSetOwner_ResetsProgression(t *testing.T) {
	s := NewSite(1, "Stonebridge", units.Vec2{}, 0)
	require.True(t, s.SetOwner(1))
	assert.Equal(t, uint64(1), s.Epoch)

	s.Guards.TimeHeld = 900
	s.Guards.Tier = units.TierEpic
	s.Guards.Levels = [GuardSlots]int{12, 12, 12, 12, 12}
	s.Combo.Stage = ComboBurst

	assert.False(t, s.SetOwner(1), "same owner is not a change")
	assert.Equal(t, 900.0, s.Guards.TimeHeld)

	require.True(t, s.SetOwner(2))
	assert.Equal(t, NewGuardProgression(), s.Guards)
	assert.Equal(t, ComboNone, s.Combo.Stage)
	assert.Equal(t, uint64(2), s.Epoch)
}

func TestNormalize_ClampsLoadedRecord(t *testing.T) {
	g := GuardProgression{TimeHeld: -5, Tier: 9, Levels: [GuardSlots]int{0, 3, 99, 1, 1}}
	assert.True(t, g.Normalize(50))
	assert.Equal(t, 0.0, g.TimeHeld)
	assert.Equal(t, units.TierLegendary, g.Tier)
	assert.Equal(t, [GuardSlots]int{1, 3, 50, 1, 1}, g.Levels)

	fresh := NewGuardProgression()
	assert.False(t, fresh.Normalize(50))
}

func TestPlaceSites_DeterministicAndSpaced(t *testing.T) {
	cfg := DefaultLayoutConfig()
	a := PlaceSites(cfg)
	b := PlaceSites(cfg)

	require.Len(t, a, cfg.Sites)
	for i := range a {
		assert.Equal(t, a[i].Position, b[i].Position)
		assert.Equal(t, units.Neutral, a[i].Owner)
		for j := i + 1; j < len(a); j++ {
			assert.GreaterOrEqual(t, a[i].Position.Dist(a[j].Position), cfg.MinSpacing)
		}
	}
}

func TestSeedFactions(t *testing.T) {
	fs := SeedFactions(4, 100)
	require.Len(t, fs, 4)
	assert.Equal(t, units.Team(1), fs[0].ID)
	assert.Equal(t, units.TierCommon, fs[3].Tier)
	assert.Same(t, fs[2], FindFaction(fs, 3))
	assert.Nil(t, FindFaction(fs, 9))
}
