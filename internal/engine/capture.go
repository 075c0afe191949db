package engine

import "github.com/talgya/warfront/internal/units"

// Capture and scoring.
const (
	CaptureRadius  = 120.0
	CaptureSeconds = 20.0 // Uncontested presence needed to take a site
	CapturePoints  = 50.0
	KillPoints     = 5.0
	HoldPoints     = 0.1 // Per owned site per second
)

// resolveCapture scores held sites and advances capture progress. A site is
// taken after CaptureSeconds with exactly one foreign team inside the
// radius and none of the owner's units; progress holds while contested and
// drains while nobody is attacking.
func (s *Simulation) resolveCapture(dt float64) {
	for _, site := range s.Sites {
		if site.Owned() {
			if f := s.Faction(site.Owner); f != nil {
				f.Points += HoldPoints * dt
			}
		}

		present := make(map[units.Team]bool)
		for _, u := range s.Units {
			if u.Alive && u.Team != units.Neutral && u.Position.Dist(site.Position) <= CaptureRadius {
				present[u.Team] = true
			}
		}
		var attacker units.Team
		contenders := 0
		for team := range present {
			if team != site.Owner {
				attacker = team
				contenders++
			}
		}

		switch {
		case present[site.Owner] || contenders > 1:
			continue
		case contenders == 0:
			site.Capture = max(0, site.Capture-dt/CaptureSeconds)
			if site.Capture == 0 {
				site.Capturing = units.Neutral
			}
		default:
			if site.Capturing != attacker {
				site.Capturing = attacker
				site.Capture = 0
			}
			site.Capture += dt / CaptureSeconds
			if site.Capture >= 1 {
				s.changeOwner(site, attacker)
			}
		}
	}
}
