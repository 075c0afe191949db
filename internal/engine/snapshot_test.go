package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/warfront/internal/units"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	s := newCampaign(t)
	for range 90 {
		s.Step(DefaultMaxStep)
	}
	snap := s.Snapshot()

	restored, err := Restore(snap, s.Tables, s.Options())
	require.NoError(t, err)
	assert.Equal(t, snap, restored.Snapshot())
	assert.Equal(t, s.CampaignID, restored.CampaignID)
}

func TestSnapshot_IsolatedFromLiveState(t *testing.T) {
	s := newCampaign(t)
	snap := s.Snapshot()
	before := snap.Units[0].Health

	s.Units[0].TakeDamage(10)
	s.Units[0].Abilities[0].Cooldown.Set(5)
	s.Group.Members[0].Settings.Loadout[0] = "changed"

	assert.Equal(t, before, snap.Units[0].Health)
	assert.True(t, snap.Units[0].Abilities[0].Cooldown.Ready())
	assert.NotEqual(t, "changed", snap.Group.Members[0].Settings.Loadout[0])
}

func TestSnapshot_SurvivesJSON(t *testing.T) {
	s := newCampaign(t)
	for range 30 {
		s.Step(DefaultMaxStep)
	}
	b, err := json.Marshal(s.Snapshot())
	require.NoError(t, err)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(b, &snap))
	restored, err := Restore(&snap, s.Tables, s.Options())
	require.NoError(t, err)
	assert.Len(t, restored.Units, len(s.Units))
	assert.Equal(t, s.Tick, restored.Tick)
}

func TestRestore_ResumesDeterministically(t *testing.T) {
	s := newCampaign(t)
	for range 60 {
		s.Step(DefaultMaxStep)
	}
	twin, err := Restore(s.Snapshot(), s.Tables, s.Options())
	require.NoError(t, err)

	for range 30 {
		s.Step(DefaultMaxStep)
		twin.Step(DefaultMaxStep)
	}
	a, b := s.Snapshot(), twin.Snapshot()
	assert.Equal(t, a.Units, b.Units)
	assert.Equal(t, a.Sites, b.Sites)
	assert.Equal(t, a.Factions, b.Factions)
	assert.Equal(t, a.Stats, b.Stats)
}

func TestRestore_Validation(t *testing.T) {
	s := newCampaign(t)

	snap := s.Snapshot()
	snap.Version = 99
	_, err := Restore(snap, s.Tables, s.Options())
	assert.ErrorIs(t, err, ErrSnapshotVersion)

	snap = s.Snapshot()
	snap.Units = append(snap.Units, snap.Units[0])
	_, err = Restore(snap, s.Tables, s.Options())
	assert.ErrorIs(t, err, ErrDuplicateUnit)

	snap = s.Snapshot()
	for i := range snap.Units {
		if snap.Units[i].IsGuard() {
			orphan := uint64(404)
			snap.Units[i].HomeSiteID = &orphan
			break
		}
	}
	_, err = Restore(snap, s.Tables, s.Options())
	assert.ErrorIs(t, err, ErrOrphanGuard)

	snap = s.Snapshot()
	snap.Group.LeaderID = 9999
	_, err = Restore(snap, s.Tables, s.Options())
	assert.ErrorIs(t, err, ErrMissingLeader)
}

func TestRestore_ClampsVitals(t *testing.T) {
	s := newCampaign(t)
	snap := s.Snapshot()
	snap.Units[0].Health = snap.Units[0].MaxHealth * 3
	snap.Units[1].Mana = -20

	restored, err := Restore(snap, s.Tables, s.Options())
	require.NoError(t, err)
	assert.Equal(t, restored.Units[0].MaxHealth, restored.Units[0].Health)
	assert.Zero(t, restored.Units[1].Mana)
	assert.Equal(t, snap.Units[0].ID, restored.Units[0].ID)
}

func TestRestore_NeverReusesUnitIDs(t *testing.T) {
	s := newCampaign(t)
	site := s.Sites[len(s.Sites)-1]
	first, second := units.Team(2), units.Team(3)
	if site.Owner == first {
		first, second = second, first
	}

	// The highest ids belong to guards that are removed again before the save.
	_, err := s.Apply(SiteOwnershipChanged{SiteID: site.ID, Owner: first})
	require.NoError(t, err)
	_, err = s.Apply(SiteOwnershipChanged{SiteID: site.ID, Owner: units.Neutral})
	require.NoError(t, err)

	snap := s.Snapshot()
	var highest units.ID
	for _, u := range snap.Units {
		highest = max(highest, u.ID)
	}
	require.Greater(t, snap.NextID, highest+1, "removed guards leave a gap above the live ids")

	twin, err := Restore(snap, s.Tables, s.Options())
	require.NoError(t, err)
	for _, sim := range []*Simulation{s, twin} {
		_, err := sim.Apply(SiteOwnershipChanged{SiteID: site.ID, Owner: second})
		require.NoError(t, err)
	}

	ids := func(sim *Simulation) []units.ID {
		var out []units.ID
		for _, g := range guardsOf(sim, sim.Site(site.ID)) {
			out = append(out, g.ID)
		}
		return out
	}
	fresh := ids(twin)
	require.Len(t, fresh, 5)
	assert.Equal(t, ids(s), fresh)
	for _, id := range fresh {
		assert.GreaterOrEqual(t, id, snap.NextID)
	}
}

func TestRestore_NormalizesGuardProgression(t *testing.T) {
	s := newCampaign(t)
	snap := s.Snapshot()
	snap.Sites[0].Guards.TimeHeld = -40
	snap.Sites[0].Guards.Levels[2] = 0

	opts := s.Options()
	opts.Debug = false
	restored, err := Restore(snap, s.Tables, opts)
	require.NoError(t, err)
	assert.Zero(t, restored.Sites[0].Guards.TimeHeld)
	assert.Equal(t, 1, restored.Sites[0].Guards.Levels[2])
	assert.Equal(t, snap.Stats.InvariantClamps+1, restored.Stats.InvariantClamps)

	opts.Debug = true
	assert.Panics(t, func() { _, _ = Restore(snap, s.Tables, opts) })
}
