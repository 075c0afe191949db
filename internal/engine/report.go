package engine

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
)

// Standing is one faction's place in the campaign.
type Standing struct {
	Name   string
	Points float64
	Gold   uint64
	Tier   string
	Sites  int
}

// Standings ranks factions by points.
func (s *Simulation) Standings() []Standing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.standings()
}

func (s *Simulation) standings() []Standing {
	out := make([]Standing, 0, len(s.Factions))
	for _, f := range s.Factions {
		st := Standing{Name: f.Name, Points: f.Points, Gold: f.Gold, Tier: f.Tier.String()}
		for _, site := range s.Sites {
			if site.Owner == f.ID {
				st.Sites++
			}
		}
		out = append(out, st)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Points > out[j].Points })
	return out
}

// Report logs a periodic campaign summary.
func (s *Simulation) Report() {
	s.mu.RLock()
	defer s.mu.RUnlock()

	eventCounts := make(map[string]int)
	for _, e := range s.Events {
		eventCounts[e.Category]++
	}
	alive := 0
	for _, u := range s.Units {
		if u.Alive {
			alive++
		}
	}

	slog.Info("campaign report",
		"tick", humanize.Comma(int64(s.Tick)),
		"clock", SimTime(s.Elapsed),
		"alive", alive,
		"down", len(s.Units)-alive,
		"kills", humanize.Comma(int64(s.Stats.Kills)),
		"captures", s.Stats.Captures,
		"combos", s.Stats.CombosFired,
		"combos_aborted", s.Stats.CombosAborted,
		"gold_granted", humanize.Comma(int64(s.Stats.GoldGranted)),
		"events_combat", eventCounts[CategoryCombat],
		"events_site", eventCounts[CategorySite],
		"events_diagnostic", eventCounts[CategoryDiagnostic],
	)
	for _, st := range s.standings() {
		slog.Info("faction standing",
			"faction", st.Name,
			"points", humanize.FormatFloat("#,###.#", st.Points),
			"gold", humanize.Comma(int64(st.Gold)),
			"tier", st.Tier,
			"sites", st.Sites,
		)
	}
}

// Summary renders the campaign outcome for a terminal.
func (s *Simulation) Summary() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var b strings.Builder
	fmt.Fprintf(&b, "Campaign %s after %s (%s ticks)\n", s.CampaignID, SimTime(s.Elapsed), humanize.Comma(int64(s.Tick)))
	fmt.Fprintf(&b, "  %s kills, %s respawns, %d captures, %d combos (%d aborted)\n",
		humanize.Comma(int64(s.Stats.Kills)), humanize.Comma(int64(s.Stats.Respawns)),
		s.Stats.Captures, s.Stats.CombosFired, s.Stats.CombosAborted)
	fmt.Fprintf(&b, "  %s catch-up gold paid, %d stuck reports, %d invariant clamps\n",
		humanize.Comma(int64(s.Stats.GoldGranted)), s.Stats.StuckReports, s.Stats.InvariantClamps)
	for i, st := range s.standings() {
		fmt.Fprintf(&b, "  %d. %-16s %s pts  %s gold  %-9s %d sites\n",
			i+1, st.Name, humanize.FormatFloat("#,###.#", st.Points), humanize.Comma(int64(st.Gold)), st.Tier, st.Sites)
	}
	return b.String()
}
