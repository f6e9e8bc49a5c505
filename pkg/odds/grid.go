package odds

import (
	"fmt"
	"math"
	"strings"
)

// Grid holds the joint probability of how many receptors each side has left:
// cell (a, d) is the chance that a attacker and d defender receptors remain.
// Row a == 0 and column d == 0 are terminal states.
type Grid struct {
	attackers int
	defenders int
	data      []float64
}

// NewGrid allocates a zeroed grid for up to attackers × defenders receptors.
func NewGrid(attackers, defenders int) *Grid {
	return &Grid{
		attackers: attackers,
		defenders: defenders,
		data:      make([]float64, (attackers+1)*(defenders+1)),
	}
}

// Attackers is the largest attacker receptor count the grid can hold.
func (g *Grid) Attackers() int { return g.attackers }

// Defenders is the largest defender receptor count the grid can hold.
func (g *Grid) Defenders() int { return g.defenders }

func (g *Grid) index(a, d int) int { return a*(g.defenders+1) + d }

func (g *Grid) At(a, d int) float64       { return g.data[g.index(a, d)] }
func (g *Grid) Set(a, d int, p float64)   { g.data[g.index(a, d)] = p }
func (g *Grid) Add(a, d int, p float64)   { g.data[g.index(a, d)] += p }
func (g *Grid) Scale(a, d int, f float64) { g.data[g.index(a, d)] *= f }

// Clear zeroes every cell.
func (g *Grid) Clear() {
	clear(g.data)
}

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	c := *g
	c.data = append([]float64(nil), g.data...)
	return &c
}

// Sum is the total probability mass.
func (g *Grid) Sum() float64 {
	s := 0.0
	for _, p := range g.data {
		s += p
	}
	return s
}

// AttackerWins is the mass where only the attacker has receptors left.
func (g *Grid) AttackerWins() float64 {
	s := 0.0
	for a := 1; a <= g.attackers; a++ {
		s += g.At(a, 0)
	}
	return s
}

// DefenderWins is the mass where only the defender has receptors left.
func (g *Grid) DefenderWins() float64 {
	s := 0.0
	for d := 1; d <= g.defenders; d++ {
		s += g.At(0, d)
	}
	return s
}

// Terminal is the mass of battles that are over.
func (g *Grid) Terminal() float64 {
	return g.At(0, 0) + g.AttackerWins() + g.DefenderWins()
}

// Draw is the mass where both sides are wiped out.
func (g *Grid) Draw() float64 { return g.At(0, 0) }

// Marginals sums live cells (both sides above zero) up to (maxA, maxD) by
// attacker count and by defender count.
func (g *Grid) Marginals(maxA, maxD int) (rows, cols []float64) {
	rows = make([]float64, maxA+1)
	cols = make([]float64, maxD+1)
	for a := 1; a <= maxA; a++ {
		for d := 1; d <= maxD; d++ {
			p := g.At(a, d)
			rows[a] += p
			cols[d] += p
		}
	}
	return rows, cols
}

// StillFighting is the mass where both sides have receptors left.
func (g *Grid) StillFighting() float64 {
	s := 0.0
	for a := 1; a <= g.attackers; a++ {
		for d := 1; d <= g.defenders; d++ {
			s += g.At(a, d)
		}
	}
	return s
}

// Distance is the L1 distance to other over cells up to (maxA, maxD). It stops
// summing once limit is exceeded.
func (g *Grid) Distance(other *Grid, maxA, maxD int, limit float64) float64 {
	delta := 0.0
	for a := 0; a <= maxA; a++ {
		for d := 0; d <= maxD; d++ {
			delta += math.Abs(g.At(a, d) - other.At(a, d))
			if delta > limit {
				return delta
			}
		}
	}
	return delta
}

// String renders the grid in units of 1/100000, attackers down, defenders across.
func (g *Grid) String() string {
	var sb strings.Builder
	for a := 0; a <= g.attackers; a++ {
		for d := 0; d <= g.defenders; d++ {
			fmt.Fprintf(&sb, "%6.0f ", g.At(a, d)*100_000)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
