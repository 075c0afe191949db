package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUnit() *Unit {
	return &Unit{
		ID:        1,
		Team:      1,
		Alive:     true,
		Health:    100,
		MaxHealth: 100,
		Mana:      50,
		MaxMana:   100,
	}
}

func TestCountdown(t *testing.T) {
	var c Countdown
	assert.True(t, c.Ready())

	c.Set(1)
	assert.False(t, c.Ready())
	c.Tick(0.4)
	assert.InDelta(t, 0.6, c.Seconds(), 1e-9)
	c.Tick(5)
	assert.True(t, c.Ready())
	assert.Equal(t, 0.0, c.Seconds())

	c.Set(-3)
	assert.True(t, c.Ready())
}

func TestSpendMana_RejectsUnderflow(t *testing.T) {
	u := newTestUnit()
	u.Mana = 10

	assert.False(t, u.SpendMana(11))
	assert.Equal(t, 10.0, u.Mana, "rejected cast must not touch mana")

	assert.True(t, u.SpendMana(10))
	assert.Equal(t, 0.0, u.Mana)
}

func TestTakeDamage_ShieldAndImmunity(t *testing.T) {
	u := newTestUnit()
	u.AddEffect(Effect{Kind: EffectShield, Magnitude: 30, Remaining: 5})

	lost := u.TakeDamage(50)
	assert.Equal(t, 20.0, lost)
	assert.Equal(t, 80.0, u.Health)
	assert.False(t, u.HasEffect(EffectShield), "depleted shield is removed")

	u.AddEffect(Effect{Kind: EffectImmunity, Remaining: 2})
	assert.Equal(t, 0.0, u.TakeDamage(500))
	assert.Equal(t, 80.0, u.Health)
}

func TestTakeDamage_NeverNegative(t *testing.T) {
	u := newTestUnit()
	u.TakeDamage(1e6)
	assert.Equal(t, 0.0, u.Health)
}

func TestRescaleHealth_PreservesRatio(t *testing.T) {
	u := newTestUnit()
	u.Health = 40

	u.RescaleHealth(150)

	assert.InDelta(t, 60.0, u.Health, 1e-9)
	assert.Equal(t, 150.0, u.MaxHealth)
}

func TestEffects_DoTStackAndCleanse(t *testing.T) {
	u := newTestUnit()
	u.AddEffect(Effect{Kind: EffectDoT, Stacks: 1, Magnitude: 2, Remaining: 4, SourceID: 9})
	u.AddEffect(Effect{Kind: EffectDoT, Stacks: 2, Magnitude: 2, Remaining: 4, SourceID: 9})
	u.AddEffect(Effect{Kind: EffectDoT, Stacks: 1, Magnitude: 2, Remaining: 4, SourceID: 7})
	assert.Equal(t, 4, u.DoTStacks())

	assert.Equal(t, 4, u.Cleanse())
	assert.Equal(t, 0, u.DoTStacks())
}

func TestTickTimers_ExpiresEffectsAndCooldowns(t *testing.T) {
	u := newTestUnit()
	u.Abilities = []AbilitySlot{{Ability: "meteor", Kind: AbilityBurst, Cooldown: 1}}
	u.AddEffect(Effect{Kind: EffectShield, Magnitude: 10, Remaining: 0.5})

	assert.False(t, u.AbilityReady(AbilityBurst))
	u.TickTimers(1)
	assert.True(t, u.AbilityReady(AbilityBurst))
	assert.Empty(t, u.Effects)
}

func TestSetState_ResetsClock(t *testing.T) {
	u := newTestUnit()
	u.StateTime = 12
	u.StuckReported = true

	require.False(t, u.SetState(StateIdle))
	assert.True(t, u.SetState(StatePursue))
	assert.Equal(t, 0.0, u.StateTime)
	assert.False(t, u.StuckReported)
}

func TestParseEnums(t *testing.T) {
	r, err := ParseRole("healer")
	require.NoError(t, err)
	assert.Equal(t, RoleHealer, r)

	m, err := ParseMode("neutral")
	require.NoError(t, err)
	assert.Equal(t, ModeNeutral, m)

	k, err := ParseAbilityKind("area_heal")
	require.NoError(t, err)
	assert.Equal(t, AbilityAreaHeal, k)

	_, err = ParseRole("bard")
	assert.Error(t, err)
}

func TestClampTier(t *testing.T) {
	assert.Equal(t, TierCommon, ClampTier(0))
	assert.Equal(t, TierRare, ClampTier(3))
	assert.Equal(t, TierLegendary, ClampTier(9))
}
