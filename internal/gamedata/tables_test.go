package gamedata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/warfront/internal/units"
)

func TestDefault_Loads(t *testing.T) {
	tables, err := Default()
	require.NoError(t, err)

	burst, ok := tables.Ability("meteor")
	require.True(t, ok)
	assert.Equal(t, units.AbilityBurst, burst.Kind)
	assert.Equal(t, 25.0, burst.Cost)

	assert.Equal(t, "Legendary", tables.Gear(units.TierLegendary).Name)
	assert.Equal(t, "Common", tables.Gear(0).Name, "tier below range clamps to Common")
}

func TestMaxHealth_ScalesWithLevelAndGear(t *testing.T) {
	tables, err := Default()
	require.NoError(t, err)

	base := tables.MaxHealth(units.RoleDPS, 1, units.TierCommon)
	assert.Equal(t, 100.0, base)
	assert.Greater(t, tables.MaxHealth(units.RoleDPS, 5, units.TierCommon), base)
	assert.Greater(t, tables.MaxHealth(units.RoleDPS, 1, units.TierEpic), base)
}

func TestLoadout_HealerHasLadderAbilities(t *testing.T) {
	tables, err := Default()
	require.NoError(t, err)

	u := &units.Unit{Role: units.RoleHealer, Abilities: tables.Loadout(units.RoleHealer)}
	for _, kind := range []units.AbilityKind{
		units.AbilityHeal, units.AbilityAreaHeal, units.AbilityCleanse,
		units.AbilityShield, units.AbilityImmunity,
	} {
		_, ok := u.Slot(kind)
		assert.True(t, ok, "healer loadout missing %s", kind)
	}
}

func TestEquip_PreservesRatio(t *testing.T) {
	tables, err := Default()
	require.NoError(t, err)

	u := &units.Unit{Role: units.RoleDPS, Level: 1, GearTier: units.TierCommon, Alive: true}
	tables.Equip(u)
	u.Health = u.MaxHealth / 2

	u.Level = 10
	tables.Equip(u)
	assert.InDelta(t, 0.5, u.HealthRatio(), 1e-9)
}

func TestParse_RejectsUnknownKind(t *testing.T) {
	_, err := Parse([]byte(`
abilities:
  - id: zap
    kind: lightning
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown ability kind")
}

func TestParse_RejectsMissingGear(t *testing.T) {
	_, err := Parse([]byte(`
abilities:
  - {id: strike, kind: strike}
roles:
  dps: {loadout: [strike]}
  tank: {loadout: [strike]}
  healer: {loadout: [strike]}
gear:
  - {tier: 1, name: Common, multiplier: 1}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gear tiers")
}

func TestParse_RejectsDuplicateGearTier(t *testing.T) {
	_, err := Parse([]byte(`
abilities:
  - {id: strike, kind: strike}
roles:
  dps: {loadout: [strike]}
  tank: {loadout: [strike]}
  healer: {loadout: [strike]}
gear:
  - {tier: 1, name: Common, multiplier: 1}
  - {tier: 2, name: Uncommon, multiplier: 1.2}
  - {tier: 2, name: Uncommon, multiplier: 1.2}
  - {tier: 4, name: Epic, multiplier: 1.7}
  - {tier: 5, name: Legendary, multiplier: 2}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate gear tier 2")
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	require.NoError(t, os.WriteFile(path, defaultTables, 0644))

	tables, err := Load(path)
	require.NoError(t, err)
	_, ok := tables.Ability("ward")
	assert.True(t, ok)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSlots(t *testing.T) {
	tb, err := Default()
	require.NoError(t, err)

	slots, err := tb.Slots([]string{"mend", "ward"})
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, units.AbilityShield, slots[1].Kind)

	_, err = tb.Slots([]string{"mend", "nope"})
	assert.Error(t, err)
}

func TestPotency_ScalesWithCaster(t *testing.T) {
	tb, err := Default()
	require.NoError(t, err)
	strike, ok := tb.Ability("strike")
	require.True(t, ok)

	base := &units.Unit{Role: units.RoleDPS, Level: 1, GearTier: units.TierCommon}
	assert.InDelta(t, strike.Power, tb.Potency(base, strike), 1e-9)

	veteran := &units.Unit{Role: units.RoleDPS, Level: 11, GearTier: units.TierRare}
	assert.Greater(t, tb.Potency(veteran, strike), strike.Power)
}
