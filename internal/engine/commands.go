// Commands arriving from outside the core. Each one is queued and applied at
// the start of the next tick, returns a human-readable result, and records
// an event.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/talgya/warfront/internal/formation"
	"github.com/talgya/warfront/internal/healer"
	"github.com/talgya/warfront/internal/progression"
	"github.com/talgya/warfront/internal/units"
	"github.com/talgya/warfront/internal/world"
)

// Command rejections.
var (
	ErrNotControllable = errors.New("unit is not player-controlled")
	ErrGuardRole       = errors.New("guard roles are fixed by guard index")
	ErrNoChange        = errors.New("site already has that owner")
	ErrNoGroup         = errors.New("campaign has no player group")
)

// Command is an external request to change campaign state.
type Command interface {
	Name() string
	apply(s *Simulation) (string, error)
}

// Result is a command's outcome.
type Result struct {
	Message string
	Err     error
}

type pendingCommand struct {
	cmd   Command
	reply chan Result
}

// Enqueue queues cmd for the next tick. The returned channel receives
// exactly one Result.
func (s *Simulation) Enqueue(cmd Command) <-chan Result {
	reply := make(chan Result, 1)
	s.cmdMu.Lock()
	s.pending = append(s.pending, pendingCommand{cmd: cmd, reply: reply})
	s.cmdMu.Unlock()
	return reply
}

// Do queues cmd and waits for the tick that applies it.
func (s *Simulation) Do(ctx context.Context, cmd Command) (string, error) {
	select {
	case r := <-s.Enqueue(cmd):
		return r.Message, r.Err
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", cmd.Name(), ctx.Err())
	}
}

// Apply runs cmd immediately. Use it only when no engine is running, such as
// in headless setup.
func (s *Simulation) Apply(cmd Command) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyCommand(cmd)
}

// DrainCommands applies every queued command. The tick calls it first; a
// paused engine calls it every frame so commands are still answered.
func (s *Simulation) DrainCommands() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drainLocked()
}

func (s *Simulation) drainLocked() {
	s.cmdMu.Lock()
	batch := s.pending
	s.pending = nil
	s.cmdMu.Unlock()

	for _, p := range batch {
		msg, err := s.applyCommand(p.cmd)
		p.reply <- Result{Message: msg, Err: err}
	}
}

func (s *Simulation) applyCommand(cmd Command) (string, error) {
	msg, err := cmd.apply(s)
	outcome := "ok"
	if err != nil {
		outcome = "rejected"
		slog.Info("command rejected", "command", cmd.Name(), "error", err)
	} else {
		slog.Info("command applied", "command", cmd.Name(), "result", msg)
	}
	s.metrics.add(s.metrics.commands, 1,
		attribute.String("command", cmd.Name()), attribute.String("outcome", outcome))
	return msg, err
}

// InviteToGroup adds a unit to the player's group.
type InviteToGroup struct {
	UnitID units.ID
}

func (InviteToGroup) Name() string { return "invite_to_group" }

func (c InviteToGroup) apply(s *Simulation) (string, error) {
	if s.Group == nil {
		return "", ErrNoGroup
	}
	u := s.Unit(c.UnitID)
	if u == nil {
		return "", fmt.Errorf("invite %d: %w", c.UnitID, ErrUnknownUnit)
	}
	m, restored, err := s.Group.Invite(u)
	if err != nil {
		return "", fmt.Errorf("invite %s: %w", u.Name, err)
	}
	if restored {
		if err := s.applySettings(u, m.Settings); err != nil {
			return "", err
		}
	}
	u.Anchor = u.Position

	result := fmt.Sprintf("%s joined the group in slot %d", u.Name, m.Settings.Slot)
	if restored {
		result += " with their previous settings"
	}
	s.EmitEvent(Event{
		Description: result,
		Category:    CategoryGroup,
		Meta:        map[string]any{"unit_id": u.ID, "slot": m.Settings.Slot, "restored": restored},
	})
	return result, nil
}

// applySettings restores a returning member's role, loadout and mode.
func (s *Simulation) applySettings(u *units.Unit, set formation.Settings) error {
	u.Mode = set.Mode
	if u.Role == set.Role && sameLoadout(u, set.Loadout) {
		return nil
	}
	slots, err := s.Tables.Slots(set.Loadout)
	if err != nil {
		return fmt.Errorf("restore %s loadout: %w", u.Name, err)
	}
	u.Role = set.Role
	u.Abilities = slots
	s.Tables.Equip(u)
	return nil
}

func sameLoadout(u *units.Unit, ids []string) bool {
	if len(u.Abilities) != len(ids) {
		return false
	}
	for i, a := range u.Abilities {
		if a.Ability != ids[i] {
			return false
		}
	}
	return true
}

// KickFromGroup removes a member. A plain kick keeps its settings for a
// later invite; a permanent one discards them.
type KickFromGroup struct {
	UnitID    units.ID
	Permanent bool
}

func (KickFromGroup) Name() string { return "kick_from_group" }

func (c KickFromGroup) apply(s *Simulation) (string, error) {
	if s.Group == nil {
		return "", ErrNoGroup
	}
	name := fmt.Sprintf("unit %d", c.UnitID)
	if u := s.Unit(c.UnitID); u != nil {
		name = u.Name
		u.Sprinting = false
		u.Anchor = u.Position
	}
	var err error
	if c.Permanent {
		err = s.Group.Remove(c.UnitID)
	} else {
		_, err = s.Group.Kick(c.UnitID)
	}
	if err != nil {
		return "", fmt.Errorf("kick %s: %w", name, err)
	}

	result := fmt.Sprintf("%s left the group", name)
	if c.Permanent {
		result = fmt.Sprintf("%s was dismissed for good", name)
	}
	s.EmitEvent(Event{
		Description: result,
		Category:    CategoryGroup,
		Meta:        map[string]any{"unit_id": c.UnitID, "permanent": c.Permanent},
	})
	return result, nil
}

// controllable returns a unit the player may configure: the leader or a
// group member.
func (s *Simulation) controllable(id units.ID) (*units.Unit, error) {
	u := s.Unit(id)
	if u == nil {
		return nil, fmt.Errorf("unit %d: %w", id, ErrUnknownUnit)
	}
	if u.Kind == units.KindPlayer {
		return u, nil
	}
	if s.Group == nil || !s.Group.Has(id) {
		return nil, fmt.Errorf("%s: %w", u.Name, ErrNotControllable)
	}
	return u, nil
}

// SetBehaviorMode switches a player-controlled unit between Aggressive and
// Neutral.
type SetBehaviorMode struct {
	UnitID units.ID
	Mode   units.Mode
}

func (SetBehaviorMode) Name() string { return "set_behavior_mode" }

func (c SetBehaviorMode) apply(s *Simulation) (string, error) {
	u, err := s.controllable(c.UnitID)
	if err != nil {
		return "", err
	}
	u.Mode = c.Mode
	if s.Group != nil && s.Group.Has(u.ID) {
		_ = s.Group.SetMode(u.ID, c.Mode)
	}

	result := fmt.Sprintf("%s is now %s", u.Name, c.Mode)
	s.EmitEvent(Event{
		Description: result,
		Category:    CategoryGroup,
		Meta:        map[string]any{"unit_id": u.ID, "mode": c.Mode.String()},
	})
	return result, nil
}

// SetRole changes a group member's role and loadout. An empty loadout takes
// the role's default; Policy applies to healers only.
type SetRole struct {
	UnitID  units.ID
	Role    units.Role
	Loadout []string
	Policy  *healer.Policy
}

func (SetRole) Name() string { return "set_role" }

func (c SetRole) apply(s *Simulation) (string, error) {
	if u := s.Unit(c.UnitID); u != nil && u.IsGuard() {
		return "", fmt.Errorf("%s: %w", u.Name, ErrGuardRole)
	}
	u, err := s.controllable(c.UnitID)
	if err != nil {
		return "", err
	}
	ids := c.Loadout
	if len(ids) == 0 {
		ids = s.Tables.Role(c.Role).Loadout
	}
	slots, err := s.Tables.Slots(ids)
	if err != nil {
		return "", fmt.Errorf("set role of %s: %w", u.Name, err)
	}

	u.Role = c.Role
	u.Abilities = slots
	u.Recovering = false
	s.Tables.Equip(u)
	if s.Group != nil && s.Group.Has(u.ID) {
		_ = s.Group.SetRole(u.ID, c.Role, ids)
		if c.Policy != nil && c.Role == units.RoleHealer {
			_ = s.Group.SetPolicy(u.ID, *c.Policy)
		}
	}

	result := fmt.Sprintf("%s is now a %s", u.Name, c.Role)
	s.EmitEvent(Event{
		Description: result,
		Category:    CategoryGroup,
		Meta:        map[string]any{"unit_id": u.ID, "role": c.Role.String(), "loadout": ids},
	})
	return result, nil
}

// PurchaseSquadLevel buys one level for every living ally of a faction.
type PurchaseSquadLevel struct {
	Faction units.Team
}

func (PurchaseSquadLevel) Name() string { return "purchase_squad_level" }

func (c PurchaseSquadLevel) apply(s *Simulation) (string, error) {
	f := s.Faction(c.Faction)
	if f == nil {
		return "", fmt.Errorf("faction %d: %w", c.Faction, ErrUnknownFaction)
	}
	n, err := progression.PurchaseSquadLevel(f, s.Units, s.opts.Prices, s.Tables)
	if err != nil {
		return "", fmt.Errorf("squad level for %s: %w", f.Name, err)
	}

	result := fmt.Sprintf("%s trained %d allies one level", f.Name, n)
	s.EmitEvent(Event{
		Description: result,
		Category:    CategoryProgression,
		Meta:        map[string]any{"faction": f.ID, "raised": n, "gold": f.Gold},
	})
	return result, nil
}

// PurchaseSquadGearTier buys the next gear tier for a faction's allies.
type PurchaseSquadGearTier struct {
	Faction units.Team
}

func (PurchaseSquadGearTier) Name() string { return "purchase_squad_gear_tier" }

func (c PurchaseSquadGearTier) apply(s *Simulation) (string, error) {
	f := s.Faction(c.Faction)
	if f == nil {
		return "", fmt.Errorf("faction %d: %w", c.Faction, ErrUnknownFaction)
	}
	tier, err := progression.PurchaseSquadGearTier(f, s.Units, s.opts.Prices, s.Tables)
	if err != nil {
		return "", fmt.Errorf("gear tier for %s: %w", f.Name, err)
	}

	result := fmt.Sprintf("%s outfitted its allies in %s gear", f.Name, tier)
	s.EmitEvent(Event{
		Description: result,
		Category:    CategoryProgression,
		Meta:        map[string]any{"faction": f.ID, "tier": tier.String(), "gold": f.Gold},
	})
	return result, nil
}

// SiteOwnershipChanged reports a capture resolved outside the core.
type SiteOwnershipChanged struct {
	SiteID uint64
	Owner  units.Team
}

func (SiteOwnershipChanged) Name() string { return "site_ownership_changed" }

func (c SiteOwnershipChanged) apply(s *Simulation) (string, error) {
	site := s.Site(c.SiteID)
	if site == nil {
		return "", fmt.Errorf("site %d: %w", c.SiteID, ErrUnknownSite)
	}
	if c.Owner != units.Neutral && s.Faction(c.Owner) == nil {
		return "", fmt.Errorf("site %s owner %d: %w", site.Name, c.Owner, ErrUnknownFaction)
	}
	if site.Owner == c.Owner {
		return "", fmt.Errorf("site %s: %w", site.Name, ErrNoChange)
	}
	return s.changeOwner(site, c.Owner), nil
}

// changeOwner hands a site to team: progression resets, the previous
// owner's standing guards fall, and a fresh squad spawns for the new owner.
func (s *Simulation) changeOwner(site *world.Site, team units.Team) string {
	prev := site.Owner
	site.SetOwner(team)

	fallen := s.removeUnits(func(u *units.Unit) bool {
		return u.IsGuard() && u.Alive && u.HomeSiteID != nil && *u.HomeSiteID == site.ID && u.SiteEpoch != site.Epoch
	})
	spawned := s.spawnGuards(site)
	if f := s.Faction(team); f != nil {
		f.Points += CapturePoints
	}
	s.Stats.Captures++

	result := fmt.Sprintf("%s fell to %s", site.Name, s.teamName(team))
	if team == units.Neutral {
		result = fmt.Sprintf("%s was abandoned", site.Name)
	}
	s.EmitEvent(Event{
		Description: result,
		Category:    CategorySite,
		Meta: map[string]any{
			"site_id": site.ID, "from": prev, "to": team, "epoch": site.Epoch,
			"guards_fallen": fallen, "guards_spawned": spawned,
		},
	})
	slog.Info("site changed hands", "site", site.Name, "from", prev, "to", team, "epoch", site.Epoch)
	return result
}

func (s *Simulation) teamName(team units.Team) string {
	if f := s.Faction(team); f != nil {
		return f.Name
	}
	return "no one"
}
