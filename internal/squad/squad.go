// Package squad coordinates the five guards bound to a site: shared focus
// selection, formation slots, healer kiting and the three-stage DPS combo.
// A Squad is rebuilt from the unit list every tick; the only state carried
// between ticks lives on the site.
package squad

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/talgya/warfront/internal/behavior"
	"github.com/talgya/warfront/internal/gamedata"
	"github.com/talgya/warfront/internal/units"
	"github.com/talgya/warfront/internal/world"
)

// Squad membership invariant violations reported by Build.
var (
	ErrOversize       = errors.New("squad has more than five guards")
	ErrDuplicateIndex = errors.New("duplicate guard index")
	ErrIndexRange     = errors.New("guard index out of range")
)

// Formation geometry, in world units and degrees.
const (
	DPSRadius     = 70.0
	HealerRadius  = 100.0
	DPSSpread     = 60.0
	HealerSpread  = 36.0
	KiteTrigger   = 60.0 // Healers move away from hostiles closer than this
	KiteStep      = 80.0
	KiteMargin    = behavior.SoftChase - behavior.ArriveRadius
	degreesToRads = math.Pi / 180
)

// AbilityBook resolves ability ids to their static definitions.
type AbilityBook interface {
	Ability(id string) (gamedata.Ability, bool)
}

// Squad is one site's guards for the current tick.
type Squad struct {
	Site    *world.Site
	Members [world.GuardSlots]*units.Unit // Indexed by GuardIndex, nil when empty
}

// Build collects the guards bound to site from all. Guards spawned under a
// previous owner (stale epoch) are ignored. A guard whose index is out of
// range or already taken is left out and reported in the returned error; the
// squad itself is always usable.
func Build(site *world.Site, all []*units.Unit) (*Squad, error) {
	sq := &Squad{Site: site}
	var errs []error
	count := 0
	for _, u := range all {
		if !u.IsGuard() || u.HomeSiteID == nil || *u.HomeSiteID != site.ID || u.SiteEpoch != site.Epoch {
			continue
		}
		count++
		switch {
		case u.GuardIndex < 0 || u.GuardIndex >= world.GuardSlots:
			errs = append(errs, fmt.Errorf("site %d guard %d index %d: %w", site.ID, u.ID, u.GuardIndex, ErrIndexRange))
		case sq.Members[u.GuardIndex] != nil:
			errs = append(errs, fmt.Errorf("site %d guard %d index %d: %w", site.ID, u.ID, u.GuardIndex, ErrDuplicateIndex))
		default:
			sq.Members[u.GuardIndex] = u
		}
	}
	if count > world.GuardSlots {
		errs = append(errs, fmt.Errorf("site %d has %d guards: %w", site.ID, count, ErrOversize))
	}
	return sq, errors.Join(errs...)
}

// Living returns the living members in index order.
func (sq *Squad) Living() []*units.Unit {
	var out []*units.Unit
	for _, u := range sq.Members {
		if u != nil && u.Alive {
			out = append(out, u)
		}
	}
	return out
}

// DPS returns the living DPS members in index order.
func (sq *Squad) DPS() []*units.Unit {
	var out []*units.Unit
	for i := 2; i < world.GuardSlots; i++ {
		if u := sq.Members[i]; u != nil && u.Alive {
			out = append(out, u)
		}
	}
	return out
}

// Healer returns the living healer at index 0 or 1, or nil.
func (sq *Squad) Healer(index int) *units.Unit {
	if index < 0 || index > 1 {
		return nil
	}
	if u := sq.Members[index]; u != nil && u.Alive {
		return u
	}
	return nil
}

// Missing returns the guard indexes with no bound unit at all.
func (sq *Squad) Missing() []int {
	var out []int
	for i, u := range sq.Members {
		if u == nil {
			out = append(out, i)
		}
	}
	return out
}

// SlotOffset returns a guard index's formation offset from the site center
// for the given facing (radians). DPS form a forward triangle; healers sit
// behind.
func SlotOffset(index int, facing float64) units.Vec2 {
	switch index {
	case 0:
		return units.Polar(HealerRadius, facing+(180-HealerSpread)*degreesToRads)
	case 1:
		return units.Polar(HealerRadius, facing+(180+HealerSpread)*degreesToRads)
	case 2:
		return units.Polar(DPSRadius, facing-DPSSpread*degreesToRads)
	case 3:
		return units.Polar(DPSRadius, facing)
	case 4:
		return units.Polar(DPSRadius, facing+DPSSpread*degreesToRads)
	default:
		return units.Vec2{}
	}
}

// SlotPosition returns a guard index's formation point in world space.
func SlotPosition(site *world.Site, index int) units.Vec2 {
	return site.Position.Add(SlotOffset(index, site.Facing))
}

// Hostile reports whether u is a living threat to the site's owner.
func Hostile(site *world.Site, u *units.Unit) bool {
	return u.Alive && u.Team != units.Neutral && u.Team != site.Owner
}

// SelectFocus picks the squad's shared target: highest zone priority, then
// lowest current health, then nearest to the site. Nil when no hostile is in
// any zone.
func SelectFocus(site *world.Site, hostiles []*units.Unit) *units.Unit {
	type candidate struct {
		u        *units.Unit
		priority int
		dist     float64
	}
	var cands []candidate
	for _, h := range hostiles {
		if !Hostile(site, h) {
			continue
		}
		p := behavior.ZonePriority(site.Position, h.Position)
		if p == 0 {
			continue
		}
		cands = append(cands, candidate{h, p, site.Position.Dist(h.Position)})
	}
	if len(cands) == 0 {
		return nil
	}
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.priority != b.priority {
			return a.priority > b.priority
		}
		if a.u.Health != b.u.Health {
			return a.u.Health < b.u.Health
		}
		return a.dist < b.dist
	})
	return cands[0].u
}

// KitePoint returns where a healer should step to open distance from the
// nearest hostile, or false when nothing is within KiteTrigger. The point
// never leaves the soft chase limit around anchor.
func KitePoint(healer *units.Unit, anchor units.Vec2, hostiles []*units.Unit) (units.Vec2, bool) {
	near, dist := behavior.Nearest(healer, hostiles)
	if near == nil || dist >= KiteTrigger {
		return units.Vec2{}, false
	}
	away := healer.Position.Sub(near.Position).Norm()
	if away == (units.Vec2{}) {
		// Stacked on the hostile: fall back toward the anchor.
		away = anchor.Sub(healer.Position).Norm()
	}
	p := healer.Position.Add(away.Scale(KiteStep))
	if off := p.Sub(anchor); off.Len() > KiteMargin {
		p = anchor.Add(off.Norm().Scale(KiteMargin))
	}
	return p, true
}
