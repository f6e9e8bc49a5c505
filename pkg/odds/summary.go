package odds

import (
	"math"
	"sort"
)

// Result is the outcome distribution of one battle.
type Result struct {
	AttackerWin float64 `json:"attacker_win"`
	DefenderWin float64 `json:"defender_win"`
	// Draw covers mutual destruction and battles still undecided when the
	// evaluation stopped.
	Draw float64 `json:"draw"`

	AttackerUnitsLeft        float64 `json:"attacker_units_left"`
	DefenderUnitsLeft        float64 `json:"defender_units_left"`
	AttackerUnitsLeftWhenWon float64 `json:"attacker_units_left_when_won"`
	DefenderUnitsLeftWhenWon float64 `json:"defender_units_left_when_won"`

	// TUVSwing is the expected defender value lost minus the expected
	// attacker value lost.
	TUVSwing      float64 `json:"tuv_swing"`
	AverageRounds float64 `json:"average_rounds"`

	AttackerRemaining []Unit `json:"attacker_remaining"`
	DefenderRemaining []Unit `json:"defender_remaining"`

	Engine string `json:"engine"`
	// DiceSides is the die the result was computed with.
	DiceSides int `json:"dice_sides"`
}

// Summarize reduces a final grid to a Result. The grid dimensions must match
// the receptor counts of the two parties.
func Summarize(g *Grid, attacker, defender Party, averageRounds float64) *Result {
	r := &Result{AverageRounds: averageRounds}
	var attackerLost, defenderLost float64

	for a := 0; a <= g.Attackers(); a++ {
		for d := 0; d <= g.Defenders(); d++ {
			p := g.At(a, d)
			if p == 0 {
				continue
			}
			aLeft := float64(attacker.UnitsLeft(a))
			dLeft := float64(defender.UnitsLeft(d))

			switch {
			case a > 0 && d == 0:
				r.AttackerWin += p
				r.AttackerUnitsLeftWhenWon += p * aLeft
			case a == 0 && d > 0:
				r.DefenderWin += p
				r.DefenderUnitsLeftWhenWon += p * dLeft
			default:
				r.Draw += p
			}
			r.AttackerUnitsLeft += p * aLeft
			r.DefenderUnitsLeft += p * dLeft
			attackerLost += p * attacker.ValueLost(a)
			defenderLost += p * defender.ValueLost(d)
		}
	}
	if r.AttackerWin > 0 {
		r.AttackerUnitsLeftWhenWon /= r.AttackerWin
	}
	if r.DefenderWin > 0 {
		r.DefenderUnitsLeftWhenWon /= r.DefenderWin
	}
	r.TUVSwing = defenderLost - attackerLost

	r.AttackerRemaining = attacker.Survivors(int(math.Round(r.AttackerUnitsLeft)))
	r.DefenderRemaining = append(
		defender.Survivors(int(math.Round(r.DefenderUnitsLeft))),
		keptInfrastructure(defender.Infrastructure, 1-r.AttackerWin)...,
	)
	return r
}

// keptInfrastructure picks the most valuable infrastructure units the defender
// is expected to keep, holding each with probability held.
func keptInfrastructure(infra []Unit, held float64) []Unit {
	n := int(math.Round(held * float64(len(infra))))
	if n <= 0 {
		return nil
	}
	sorted := append([]Unit(nil), infra...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Cost > sorted[j].Cost
	})
	return sorted[:n]
}
