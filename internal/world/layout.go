// Site placement using simplex noise: candidate points on a grid are scored
// by a noise field and the best are taken subject to a minimum spacing.
package world

import (
	"fmt"
	"math"
	"sort"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/warfront/internal/units"
)

// LayoutConfig holds site placement parameters.
type LayoutConfig struct {
	Seed       int64
	Sites      int
	HalfExtent float64 // Battlefield spans [-HalfExtent, HalfExtent] on both axes
	MinSpacing float64 // Minimum distance between two sites
	GridStep   float64 // Candidate spacing
}

// DefaultLayoutConfig returns a battlefield sized for a handful of sites.
func DefaultLayoutConfig() LayoutConfig {
	return LayoutConfig{
		Seed:       42,
		Sites:      5,
		HalfExtent: 1600,
		MinSpacing: 700,
		GridStep:   100,
	}
}

var siteNames = []string{
	"Stonebridge", "Ravenhold", "Highmoor", "Eastwatch", "Duskfield",
	"Thornkeep", "Westmarch", "Saltmere", "Ironford", "Greyvale",
}

// PlaceSites returns up to cfg.Sites neutral sites. The result is
// deterministic for a given seed.
func PlaceSites(cfg LayoutConfig) []*Site {
	noise := opensimplex.NewNormalized(cfg.Seed)

	type scored struct {
		pos   units.Vec2
		score float64
	}
	var candidates []scored
	for x := -cfg.HalfExtent; x <= cfg.HalfExtent; x += cfg.GridStep {
		for y := -cfg.HalfExtent; y <= cfg.HalfExtent; y += cfg.GridStep {
			s := octaveNoise(noise, x/800, y/800, 3, 1.0, 0.5)
			// Favor the interior so squads are not pinned against the edge.
			edge := math.Max(math.Abs(x), math.Abs(y)) / cfg.HalfExtent
			s -= 0.3 * edge * edge
			candidates = append(candidates, scored{units.Vec2{X: x, Y: y}, s})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	var sites []*Site
	for _, c := range candidates {
		if len(sites) >= cfg.Sites {
			break
		}
		tooClose := false
		for _, s := range sites {
			if s.Position.Dist(c.pos) < cfg.MinSpacing {
				tooClose = true
				break
			}
		}
		if tooClose {
			continue
		}
		id := uint64(len(sites) + 1)
		name := fmt.Sprintf("Site %d", id)
		if int(id) <= len(siteNames) {
			name = siteNames[id-1]
		}
		// Face the battlefield center.
		facing := math.Atan2(-c.pos.Y, -c.pos.X)
		sites = append(sites, NewSite(id, name, c.pos, facing))
	}
	return sites
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
