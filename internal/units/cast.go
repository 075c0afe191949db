package units

// Cast is an intent to use one ability slot, aimed either at a unit or at a
// ground point.
type Cast struct {
	Slot     int         `json:"slot"`
	Ability  string      `json:"ability"`
	Kind     AbilityKind `json:"kind"`
	TargetID *ID         `json:"target_id,omitempty"`
	Point    *Vec2       `json:"point,omitempty"`
}

// CastOn builds a unit-targeted cast of the caster's first slot of kind.
// It fails when the caster has no such slot or it is cooling down.
func CastOn(caster *Unit, kind AbilityKind, target *Unit) (Cast, bool) {
	i, ok := caster.Slot(kind)
	if !ok || !caster.Abilities[i].Cooldown.Ready() || target == nil {
		return Cast{}, false
	}
	id := target.ID
	return Cast{Slot: i, Ability: caster.Abilities[i].Ability, Kind: kind, TargetID: &id}, true
}

// CastAt builds a point-targeted cast of the caster's first slot of kind.
func CastAt(caster *Unit, kind AbilityKind, point Vec2) (Cast, bool) {
	i, ok := caster.Slot(kind)
	if !ok || !caster.Abilities[i].Cooldown.Ready() {
		return Cast{}, false
	}
	p := point
	return Cast{Slot: i, Ability: caster.Abilities[i].Ability, Kind: kind, Point: &p}, true
}
