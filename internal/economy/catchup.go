// Package economy runs the catch-up ("rubberband") controller: factions that
// fall far enough behind the points leader receive periodic flat gold grants.
// The controller only ever adds gold; it never touches the leader.
package economy

import "github.com/talgya/warfront/internal/world"

// Config tunes the controller.
type Config struct {
	GapThreshold float64 // Points behind the leader needed for eligibility (strictly greater)
	Interval     float64 // Seconds between grants while eligible
	Grant        uint64  // Gold per grant
	MaxTotal     uint64  // Lifetime cap per faction; 0 means none
}

// DefaultConfig returns the standard tuning.
func DefaultConfig() Config {
	return Config{
		GapThreshold: 60,
		Interval:     300,
		Grant:        150,
	}
}

// Grant records one payout.
type Grant struct {
	Faction *world.Faction
	Amount  uint64
	Gap     float64
}

// Controller applies catch-up grants. It holds no state of its own; every
// countdown lives in the factions' ledgers.
type Controller struct {
	cfg Config
}

// NewController creates a controller.
func NewController(cfg Config) *Controller {
	return &Controller{cfg: cfg}
}

// Config returns the controller's tuning.
func (c *Controller) Config() Config {
	return c.cfg
}

// LeaderPoints returns the highest point total, or 0 with no factions.
func LeaderPoints(factions []*world.Faction) float64 {
	best := 0.0
	for i, f := range factions {
		if i == 0 || f.Points > best {
			best = f.Points
		}
	}
	return best
}

// Eligible reports whether a faction qualifies for catch-up against the
// given leader total. Factions tied for the lead never qualify.
func (c *Controller) Eligible(f *world.Faction, leader float64) bool {
	if f.Points >= leader {
		return false
	}
	return leader-f.Points > c.cfg.GapThreshold
}

// Tick advances every faction's ledger by dt and returns the grants paid.
// An ineligible faction's countdown is held at the full interval, so a
// faction that becomes eligible always waits one whole interval.
func (c *Controller) Tick(factions []*world.Faction, dt float64) []Grant {
	if len(factions) == 0 {
		return nil
	}
	leader := LeaderPoints(factions)
	var grants []Grant
	for _, f := range factions {
		l := &f.CatchUp
		if !c.Eligible(f, leader) {
			l.Eligible = false
			l.Timer.Set(c.cfg.Interval)
			continue
		}
		if !l.Eligible {
			l.Eligible = true
			l.Timer.Set(c.cfg.Interval)
		}
		l.Timer.Tick(dt)
		if !l.Timer.Ready() {
			continue
		}
		l.Timer.Set(c.cfg.Interval)
		amount := c.allowance(l)
		if amount == 0 {
			continue
		}
		f.Gold += amount
		l.Granted += amount
		l.Grants++
		grants = append(grants, Grant{Faction: f, Amount: amount, Gap: leader - f.Points})
	}
	return grants
}

// allowance is the next grant after the lifetime cap.
func (c *Controller) allowance(l *world.CatchUpLedger) uint64 {
	if c.cfg.MaxTotal == 0 {
		return c.cfg.Grant
	}
	if l.Granted >= c.cfg.MaxTotal {
		return 0
	}
	return min(c.cfg.Grant, c.cfg.MaxTotal-l.Granted)
}

// NextGrant returns the seconds until a faction's next grant and whether one
// is pending at all.
func NextGrant(f *world.Faction) (float64, bool) {
	if !f.CatchUp.Eligible {
		return 0, false
	}
	return f.CatchUp.Timer.Seconds(), true
}
