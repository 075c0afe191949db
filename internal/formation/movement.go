package formation

import (
	"github.com/talgya/warfront/internal/behavior"
	"github.com/talgya/warfront/internal/phi"
	"github.com/talgya/warfront/internal/units"
)

// Formation geometry.
const (
	InnerOrbit   = 60.0
	OuterOrbit   = 100.0
	SprintBeyond = 200.0 // Start sprinting farther than this from the point
	SprintUntil  = 100.0 // Stop sprinting once this close
	SprintFactor = 1.6
)

// Point returns the formation point for a join slot around the leader.
// heading rotates the whole spiral, normally the leader's travel direction.
func Point(leader units.Vec2, heading float64, slot int) units.Vec2 {
	r, theta := phi.Spiral(slot, MaxMembers, InnerOrbit, OuterOrbit, heading)
	return leader.Add(units.Polar(r, theta))
}

// UpdateSprint applies the sprint hysteresis for a member heading to point
// and reports whether the flag changed.
func UpdateSprint(u *units.Unit, point units.Vec2) bool {
	d := u.Position.Dist(point)
	was := u.Sprinting
	switch {
	case d > SprintBeyond:
		u.Sprinting = true
	case d <= SprintUntil:
		u.Sprinting = false
	}
	return was != u.Sprinting
}

// Speed is a unit's movement speed including sprint.
func Speed(u *units.Unit) float64 {
	if u.Sprinting {
		return u.Speed * SprintFactor
	}
	return u.Speed
}

// BreakRadius is how far, measured from the member, a threat may be for the
// member to leave formation and answer it.
func BreakRadius(u *units.Unit) float64 {
	return behavior.DetectionRadius(u, true)
}
