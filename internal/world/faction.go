// Factions: gold, gear tier, points and catch-up bookkeeping.
package world

import (
	"fmt"

	"github.com/talgya/warfront/internal/units"
)

// CatchUpLedger is a faction's rubberband bookkeeping. It is exposed for
// display; only the optional lifetime cap ever limits grants.
type CatchUpLedger struct {
	Eligible bool            `json:"eligible"`
	Timer    units.Countdown `json:"timer"` // Seconds until the next grant while eligible
	Granted  uint64          `json:"granted"`
	Grants   int             `json:"grants"`
}

// Faction is a campaign side.
type Faction struct {
	ID     units.Team `json:"id"`
	Name   string     `json:"name"`
	Gold   uint64     `json:"gold"`
	Tier   units.Tier `json:"tier"`
	Points float64    `json:"points"`
	// SquadLevels counts squad-level purchases, for reporting.
	SquadLevels int           `json:"squad_levels"`
	CatchUp     CatchUpLedger `json:"catch_up"`
}

var factionNames = []string{
	"Azure Vanguard",
	"Crimson Host",
	"Verdant Pact",
	"Gilded Order",
	"Ashen Legion",
	"Iron Concord",
}

// SeedFactions creates n factions with ids 1..n.
func SeedFactions(n int, startGold uint64) []*Faction {
	factions := make([]*Faction, 0, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("Faction %d", i+1)
		if i < len(factionNames) {
			name = factionNames[i]
		}
		factions = append(factions, &Faction{
			ID:   units.Team(i + 1),
			Name: name,
			Gold: startGold,
			Tier: units.TierCommon,
		})
	}
	return factions
}

// FindFaction returns the faction with the given id, or nil.
func FindFaction(factions []*Faction, id units.Team) *Faction {
	for _, f := range factions {
		if f.ID == id {
			return f
		}
	}
	return nil
}
