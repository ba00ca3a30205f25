package game

import "sort"

// UnitRegistry owns every live unit and the position index. The id
// counter never rewinds, so ids are unique for the whole match and
// ascending id equals creation order.
type UnitRegistry struct {
	units  map[int]*Unit
	byPos  map[Pos][]int
	nextID int
}

func NewUnitRegistry() *UnitRegistry {
	return &UnitRegistry{
		units:  make(map[int]*Unit),
		byPos:  make(map[Pos][]int),
		nextID: 1,
	}
}

func (r *UnitRegistry) Get(id int) *Unit { return r.units[id] }

func (r *UnitRegistry) Len() int { return len(r.units) }

func (r *UnitRegistry) NextID() int { return r.nextID }

// Spawn creates a unit at p and returns it. Stacking rules are the
// caller's concern; the registry accepts any placement.
func (r *UnitRegistry) Spawn(owner int, kind UnitKind, p Pos, health int) *Unit {
	invariant(health > 0, "spawn health %d", health)
	u := &Unit{ID: r.nextID, Owner: owner, Kind: kind, Pos: p, Health: health}
	r.nextID++
	r.units[u.ID] = u
	r.byPos[p] = append(r.byPos[p], u.ID)
	return u
}

// Relocate moves a unit, preserving arrival order at the destination.
func (r *UnitRegistry) Relocate(u *Unit, to Pos) {
	r.removeFromPos(u)
	u.Pos = to
	r.byPos[to] = append(r.byPos[to], u.ID)
}

// ApplyDamage reduces health and removes the unit when it reaches
// zero. Returns the remaining health (zero when destroyed).
func (r *UnitRegistry) ApplyDamage(u *Unit, dmg int) int {
	invariant(dmg >= 0, "damage %d", dmg)
	u.Health -= dmg
	if u.Health <= 0 {
		u.Health = 0
		r.remove(u)
		return 0
	}
	return u.Health
}

func (r *UnitRegistry) remove(u *Unit) {
	r.removeFromPos(u)
	delete(r.units, u.ID)
}

func (r *UnitRegistry) removeFromPos(u *Unit) {
	ids := r.byPos[u.Pos]
	for i, id := range ids {
		if id == u.ID {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(r.byPos, u.Pos)
	} else {
		r.byPos[u.Pos] = ids
	}
}

// At returns unit ids on a tile in arrival order. The returned slice
// is the index itself; callers must not hold it across mutations.
func (r *UnitRegistry) At(p Pos) []int { return r.byPos[p] }

func (r *UnitRegistry) HasEnemyAt(p Pos, owner int) bool {
	for _, id := range r.byPos[p] {
		if r.units[id].Owner != owner {
			return true
		}
	}
	return false
}

// IDs returns all live unit ids in ascending order.
func (r *UnitRegistry) IDs() []int {
	ids := make([]int, 0, len(r.units))
	for id := range r.units {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// OwnedBy returns a player's live unit ids in ascending order.
func (r *UnitRegistry) OwnedBy(owner int) []int {
	ids := make([]int, 0, len(r.units))
	for id, u := range r.units {
		if u.Owner == owner {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

func (r *UnitRegistry) CountOwned(owner int) int {
	n := 0
	for _, u := range r.units {
		if u.Owner == owner {
			n++
		}
	}
	return n
}
