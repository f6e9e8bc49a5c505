package odds

import (
	"errors"
	"fmt"
	"sort"
)

var ErrMultiRoll = errors.New("unit rolls more than one die")

// A Receptor can absorb one hit. Every unit owns one receptor that kills it;
// units with spare hit points own extra anonymous receptors (Unit == nil) that
// only take damage.
type Receptor struct {
	Unit *Unit
}

// Lethal reports whether losing this receptor removes a unit.
func (r Receptor) Lethal() bool { return r.Unit != nil }

// ToReceptors orders units by descending hit power and lists their receptors:
// first one per unit, then the non-lethal ones. Hits are taken from the end of
// the list, so damage is absorbed before any unit dies and the weakest units
// die first.
func ToReceptors(units []Unit, side Side) []Receptor {
	sorted := make([]*Unit, len(units))
	for i := range units {
		sorted[i] = &units[i]
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].HitPower(side) > sorted[j].HitPower(side)
	})

	recs := make([]Receptor, 0, len(units))
	for _, u := range sorted {
		recs = append(recs, Receptor{Unit: u})
	}
	for _, u := range sorted {
		for i := 0; i < u.HitPoints-1-u.Damage; i++ {
			recs = append(recs, Receptor{})
		}
	}
	return recs
}

// UnitCount is the number of leading receptors that belong to a unit.
func UnitCount(recs []Receptor) int {
	for i, r := range recs {
		if !r.Lethal() {
			return i
		}
	}
	return len(recs)
}

// IsSortedDescending reports whether receptors are ordered by non-increasing
// hit power, anonymous receptors counting as zero.
func IsSortedDescending(recs []Receptor, side Side) bool {
	for i := 1; i < len(recs); i++ {
		if receptorPower(recs[i], side) > receptorPower(recs[i-1], side) {
			return false
		}
	}
	return true
}

func receptorPower(r Receptor, side Side) int {
	if r.Unit == nil {
		return 0
	}
	return r.Unit.HitPower(side)
}

// BuildKey counts the firing receptors by hit power. Receptors that cannot hit
// are left out.
func BuildKey(recs []Receptor, side Side) (Key, error) {
	if !IsSortedDescending(recs, side) {
		panic("odds: receptors are not sorted by descending hit power")
	}

	var counts [MaxHitPower + 1]int
	for _, r := range recs {
		if r.Unit == nil {
			continue
		}
		power := r.Unit.HitPower(side)
		if power <= 0 {
			continue
		}
		if rolls := r.Unit.Rolls(side); rolls != 1 {
			return 0, fmt.Errorf("%w: %s rolls %d on %s", ErrMultiRoll, r.Unit.Type, rolls, side)
		}
		if power > MaxHitPower {
			return 0, fmt.Errorf("%w: %s has hit power %d", ErrHitPower, r.Unit.Type, power)
		}
		counts[power]++
	}
	return NewKey(counts[:])
}

// Party is one side of a battle as the engine sees it.
type Party struct {
	Side      Side
	Receptors []Receptor
	// Bystanders do not fight (cargo in a naval battle) and are lost when the
	// party is wiped out.
	Bystanders []Unit
	// Infrastructure never fights and is captured rather than destroyed.
	Infrastructure []Unit

	unitCount int
}

// NewParty splits units into fighting receptors, bystanders and infrastructure.
// In water battles only sea and air units fight.
func NewParty(units []Unit, side Side, water bool) Party {
	var fighters []Unit
	p := Party{Side: side}
	for _, u := range units {
		switch {
		case u.Infrastructure:
			p.Infrastructure = append(p.Infrastructure, u)
		case water && u.IsLand():
			p.Bystanders = append(p.Bystanders, u)
		default:
			fighters = append(fighters, u)
		}
	}
	p.Receptors = ToReceptors(fighters, side)
	p.unitCount = UnitCount(p.Receptors)
	return p
}

// Size is the number of receptors.
func (p Party) Size() int { return len(p.Receptors) }

// UnitCount is the number of fighting units.
func (p Party) UnitCount() int { return p.unitCount }

// UnitsLeft is the number of fighting units alive when slots receptors remain.
func (p Party) UnitsLeft(slots int) int {
	return min(slots, p.unitCount)
}

// Survivors lists the n strongest fighting units.
func (p Party) Survivors(n int) []Unit {
	n = min(max(n, 0), p.unitCount)
	ret := make([]Unit, 0, n)
	for _, r := range p.Receptors[:n] {
		ret = append(ret, *r.Unit)
	}
	return ret
}

// ValueLost is the cost of everything the party loses when slots receptors
// remain at the end of the battle.
func (p Party) ValueLost(slots int) float64 {
	lost := 0.0
	for _, r := range p.Receptors[p.UnitsLeft(slots):p.unitCount] {
		lost += r.Unit.Cost
	}
	if slots == 0 {
		for _, u := range p.Bystanders {
			lost += u.Cost
		}
	}
	return lost
}
