// Package formation manages the player's group: membership, per-member
// settings, and the formation points members hold around the leader.
package formation

import (
	"errors"
	"fmt"

	"github.com/talgya/warfront/internal/healer"
	"github.com/talgya/warfront/internal/units"
)

// MaxMembers is the group capacity, leader excluded.
const MaxMembers = 10

// Membership rejections.
var (
	ErrGuard         = errors.New("guards cannot join a group")
	ErrAlreadyMember = errors.New("already a group member")
	ErrFull          = errors.New("group is full")
	ErrNotMember     = errors.New("not a group member")
	ErrLeader        = errors.New("the leader cannot be a member")
	ErrHostile       = errors.New("unit is not on the leader's team")
	ErrDead          = errors.New("unit is down")
)

// Settings are a member's player-chosen configuration. They survive a kick
// so a re-invited unit comes back as it left.
type Settings struct {
	Name    string        `json:"name"`
	Role    units.Role    `json:"role"`
	Mode    units.Mode    `json:"mode"`
	Loadout []string      `json:"loadout"`
	Policy  healer.Policy `json:"policy"`
	Slot    int           `json:"slot"` // Join slot; fixes the formation angle
}

// Member is one group entry.
type Member struct {
	UnitID   units.ID `json:"unit_id"`
	Settings Settings `json:"settings"`
}

// Group is the player-led party.
type Group struct {
	LeaderID units.ID              `json:"leader_id"`
	Team     units.Team            `json:"team"`
	Members  []Member              `json:"members"`
	Saved    map[units.ID]Settings `json:"saved"`
}

// New creates an empty group led by leader.
func New(leader *units.Unit) *Group {
	return &Group{
		LeaderID: leader.ID,
		Team:     leader.Team,
		Saved:    make(map[units.ID]Settings),
	}
}

func settingsOf(u *units.Unit) Settings {
	s := Settings{Name: u.Name, Role: u.Role, Mode: u.Mode}
	for _, a := range u.Abilities {
		s.Loadout = append(s.Loadout, a.Ability)
	}
	return s
}

func (g *Group) index(id units.ID) int {
	for i, m := range g.Members {
		if m.UnitID == id {
			return i
		}
	}
	return -1
}

// Has reports whether id is a member.
func (g *Group) Has(id units.ID) bool {
	return g.index(id) >= 0
}

// Member returns a member's entry.
func (g *Group) Member(id units.ID) (*Member, bool) {
	i := g.index(id)
	if i < 0 {
		return nil, false
	}
	return &g.Members[i], true
}

// freeSlot returns the lowest join slot no member holds.
func (g *Group) freeSlot() int {
	taken := make(map[int]bool, len(g.Members))
	for _, m := range g.Members {
		taken[m.Settings.Slot] = true
	}
	for s := 0; ; s++ {
		if !taken[s] {
			return s
		}
	}
}

// Invite adds u to the group. A previously kicked unit gets its saved
// settings back, reported by the restored flag; the caller applies role and
// mode to the unit.
func (g *Group) Invite(u *units.Unit) (m Member, restored bool, err error) {
	switch {
	case u.IsGuard():
		return Member{}, false, ErrGuard
	case u.ID == g.LeaderID:
		return Member{}, false, ErrLeader
	case u.Team != g.Team:
		return Member{}, false, ErrHostile
	case !u.Alive:
		return Member{}, false, ErrDead
	case g.Has(u.ID):
		return Member{}, false, ErrAlreadyMember
	case len(g.Members) >= MaxMembers:
		return Member{}, false, fmt.Errorf("invite %d: %w", u.ID, ErrFull)
	}

	s, restored := g.Saved[u.ID]
	if !restored {
		s = settingsOf(u)
		if u.Role == units.RoleHealer {
			s.Policy = healer.Primary
		}
	}
	delete(g.Saved, u.ID)
	s.Slot = g.freeSlot()

	m = Member{UnitID: u.ID, Settings: s}
	g.Members = append(g.Members, m)
	return m, restored, nil
}

// Kick removes a member and keeps its settings for a later invite.
func (g *Group) Kick(id units.ID) (Settings, error) {
	i := g.index(id)
	if i < 0 {
		return Settings{}, ErrNotMember
	}
	s := g.Members[i].Settings
	g.Members = append(g.Members[:i], g.Members[i+1:]...)
	if g.Saved == nil {
		g.Saved = make(map[units.ID]Settings)
	}
	g.Saved[id] = s
	return s, nil
}

// Remove drops a member or a saved entry for good.
func (g *Group) Remove(id units.ID) error {
	_, saved := g.Saved[id]
	delete(g.Saved, id)
	if i := g.index(id); i >= 0 {
		g.Members = append(g.Members[:i], g.Members[i+1:]...)
		return nil
	}
	if saved {
		return nil
	}
	return ErrNotMember
}

// SetMode changes a member's behavior mode.
func (g *Group) SetMode(id units.ID, mode units.Mode) error {
	m, ok := g.Member(id)
	if !ok {
		return ErrNotMember
	}
	m.Settings.Mode = mode
	return nil
}

// SetRole changes a member's role and loadout.
func (g *Group) SetRole(id units.ID, role units.Role, loadout []string) error {
	m, ok := g.Member(id)
	if !ok {
		return ErrNotMember
	}
	m.Settings.Role = role
	m.Settings.Loadout = append([]string(nil), loadout...)
	if role == units.RoleHealer {
		m.Settings.Policy = healer.Primary
	}
	return nil
}

// SetPolicy changes a healer member's ladder variant.
func (g *Group) SetPolicy(id units.ID, p healer.Policy) error {
	m, ok := g.Member(id)
	if !ok {
		return ErrNotMember
	}
	m.Settings.Policy = p
	return nil
}
