package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/talgya/warfront/internal/units"
)

func TestShouldRecover_DPSHysteresis(t *testing.T) {
	tests := []struct {
		name       string
		mana       float64
		recovering bool
		want       bool
	}{
		{"healthy pool", 60, false, false},
		{"just above enter", 21, false, false},
		{"at enter", 20, false, true},
		{"below enter", 5, false, true},
		{"recovering below resume", 34.9, true, true},
		{"recovering mid band", 25, true, true},
		{"recovering at resume", 35, true, false},
		{"recovering above resume", 50, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldRecover(units.RoleDPS, tt.mana, 100, tt.recovering))
		})
	}
}

func TestShouldRecover_NoChatterUnderOscillation(t *testing.T) {
	recovering := false
	mana := 22.0
	// Spend down into recovery, then bounce between 20 and 34.
	seq := []float64{-2, +6, -4, +8, -3, +7, -1, +1}
	entered := false
	for _, d := range seq {
		mana += d
		recovering = ShouldRecover(units.RoleDPS, mana, 100, recovering)
		if recovering {
			entered = true
		}
		if entered {
			assert.True(t, recovering, "left recovery at mana %.1f before reaching %.0f", mana, ResumeAt)
		}
	}
	assert.Less(t, mana, ResumeAt)

	mana = 35
	assert.False(t, ShouldRecover(units.RoleDPS, mana, 100, true))
}

func TestShouldRecover_Healer(t *testing.T) {
	assert.True(t, ShouldRecover(units.RoleHealer, 22, 120, false))
	assert.False(t, ShouldRecover(units.RoleHealer, 23, 120, false))
	assert.True(t, ShouldRecover(units.RoleHealer, 30, 120, true))
}

func TestShouldRecover_SmallPool(t *testing.T) {
	// A 30-mana pool can never reach 35; full mana must end recovery.
	assert.False(t, ShouldRecover(units.RoleDPS, 30, 30, true))
	assert.False(t, ShouldRecover(units.RoleDPS, 0, 0, false))
}

func TestCanCast(t *testing.T) {
	tests := []struct {
		name string
		c    CastCheck
		want bool
	}{
		{"underflow rejected", CastCheck{Role: units.RoleDPS, Mana: 9, Cost: 10}, false},
		{"roaming dps may drain", CastCheck{Role: units.RoleDPS, Mana: 12, Cost: 10}, true},
		{"guard keeps reserve", CastCheck{Role: units.RoleDPS, Guard: true, Mana: 38, Cost: 10}, false},
		{"guard above reserve", CastCheck{Role: units.RoleDPS, Guard: true, Mana: 40, Cost: 10}, true},
		{"guard in burst ignores reserve", CastCheck{Role: units.RoleDPS, Guard: true, Mana: 26, Cost: 25, InBurst: true}, true},
		{"healer keeps emergency reserve", CastCheck{Role: units.RoleHealer, Mana: 30, Cost: 12}, false},
		{"healer reserve overridden for critical ally", CastCheck{Role: units.RoleHealer, Mana: 30, Cost: 12, AllyCritical: true}, true},
		{"healer critical still cannot underflow", CastCheck{Role: units.RoleHealer, Mana: 5, Cost: 12, AllyCritical: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanCast(tt.c))
		})
	}
}

func dpsWith(mana float64, burstCooldown units.Countdown) *units.Unit {
	return &units.Unit{
		Alive: true,
		Role:  units.RoleDPS,
		Mana:  mana, MaxMana: 100,
		Abilities: []units.AbilitySlot{{Ability: "meteor", Kind: units.AbilityBurst, Cooldown: burstCooldown}},
	}
}

func TestSquadComboReady(t *testing.T) {
	ready := []*units.Unit{dpsWith(45, 0), dpsWith(60, 0), dpsWith(100, 0)}
	assert.True(t, SquadComboReady(ready))

	lowMana := []*units.Unit{dpsWith(45, 0), dpsWith(44.9, 0), dpsWith(100, 0)}
	assert.False(t, SquadComboReady(lowMana))

	onCooldown := []*units.Unit{dpsWith(80, 0), dpsWith(80, 2), dpsWith(80, 0)}
	assert.False(t, SquadComboReady(onCooldown))

	assert.False(t, SquadComboReady(ready[:2]), "two DPS cannot combo")

	dead := dpsWith(90, 0)
	dead.Alive = false
	assert.False(t, SquadComboReady([]*units.Unit{ready[0], ready[1], dead}))
}
