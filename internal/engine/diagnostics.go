package engine

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/talgya/warfront/internal/behavior"
	"github.com/talgya/warfront/internal/progression"
	"github.com/talgya/warfront/internal/units"
)

// violation reports a broken invariant. Debug runs panic; otherwise the
// caller clamps and the campaign continues.
func (s *Simulation) violation(msg string, args ...any) {
	if s.opts.Debug {
		panic(fmt.Sprintf("invariant violated: %s %v", msg, args))
	}
	s.Stats.InvariantClamps++
	s.metrics.add(s.metrics.clamps, 1, attribute.String("violation", msg))
	slog.Warn("invariant violated, clamping", append([]any{"violation", msg}, args...)...)
}

// diagnose runs the end-of-tick checks.
func (s *Simulation) diagnose() {
	if s.Group != nil {
		var guards []*units.Unit
		for _, m := range s.Group.Members {
			if u := s.Unit(m.UnitID); u != nil && u.IsGuard() {
				guards = append(guards, u)
			}
		}
		for _, u := range guards {
			s.violation("guard in player group", "unit", u.ID, "name", u.Name)
			_ = s.Group.Remove(u.ID)
		}
	}

	for _, site := range s.Sites {
		if site.Guards.Normalize(progression.MaxLevel) {
			s.violation("malformed guard progression", "site", site.Name)
		}
	}

	for _, u := range s.Units {
		if !behavior.Stuck(u, s.currentTarget(u), s.opts.StuckSeconds) {
			continue
		}
		u.StuckReported = true
		s.Stats.StuckReports++
		s.metrics.add(s.metrics.stuck, 1, attribute.String("state", u.State.String()))
		slog.Warn("unit stuck", "unit", u.ID, "name", u.Name, "state", u.State, "seconds", u.StateTime)
		s.EmitEvent(Event{
			Description: fmt.Sprintf("%s has been in %s for %.0fs", u.Name, u.State, u.StateTime),
			Category:    CategoryDiagnostic,
			Meta:        map[string]any{"unit_id": u.ID, "state": u.State.String(), "seconds": u.StateTime},
		})
	}
}
