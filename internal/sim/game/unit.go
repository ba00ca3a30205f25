package game

// Unit is a live piece on the board. Ids are global and monotonic
// across both players, assigned from 1 in creation order.
type Unit struct {
	ID     int
	Owner  int
	Kind   UnitKind
	Pos    Pos
	Health int

	// Entanglement boost. Boosted implies AttacksRemaining > 0;
	// the pair resets together.
	Boosted          bool
	AttacksRemaining int
}

func (u *Unit) GrantBoost(attacks int) {
	u.Boosted = true
	u.AttacksRemaining = attacks
}

func (u *Unit) ClearBoost() {
	u.Boosted = false
	u.AttacksRemaining = 0
}

// ConsumeAttack spends one boosted attack, clearing the boost when the
// last one is used.
func (u *Unit) ConsumeAttack() {
	if !u.Boosted {
		return
	}
	u.AttacksRemaining--
	if u.AttacksRemaining <= 0 {
		u.ClearBoost()
	}
}
