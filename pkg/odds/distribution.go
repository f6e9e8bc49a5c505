package odds

import (
	"fmt"
	"strings"
)

// Distribution is the probability of causing 0..n hits in one round, where n is
// the number of slots in its key. Distributions are shared through the Cache
// and must not be modified.
type Distribution struct {
	key   Key
	probs []float64
}

var emptyDistribution = Distribution{probs: []float64{1}}

// Key identifies the slots that produced the distribution.
func (d Distribution) Key() Key { return d.key }

// Len is the number of hit counts with a probability, Total()+1.
func (d Distribution) Len() int { return len(d.probs) }

// At is the probability of exactly hits hits; zero outside the support.
func (d Distribution) At(hits int) float64 {
	if hits < 0 || hits >= len(d.probs) {
		return 0
	}
	return d.probs[hits]
}

// Sum of all probabilities, 1 up to rounding.
func (d Distribution) Sum() float64 {
	s := 0.0
	for _, p := range d.probs {
		s += p
	}
	return s
}

// Probabilities returns a copy of the probability vector.
func (d Distribution) Probabilities() []float64 {
	return append([]float64(nil), d.probs...)
}

// Overkill returns o with o[i] the probability of more than i hits. It has the
// same length as the distribution, so the last entry is always 0.
func (d Distribution) Overkill() Overkill {
	o := make([]float64, len(d.probs))
	for i := len(o) - 2; i >= 0; i-- {
		o[i] = o[i+1] + d.probs[i+1]
	}
	return Overkill(o)
}

func (d Distribution) String() string {
	parts := make([]string, len(d.probs))
	for i, p := range d.probs {
		parts[i] = fmt.Sprintf("%.4f", p)
	}
	return d.key.String() + "[" + strings.Join(parts, " ") + "]"
}

// Overkill is the tail of a Distribution: Overkill[i] = P(hits > i).
type Overkill []float64

// At is the probability of more than i hits; zero past the end.
func (o Overkill) At(i int) float64 {
	if i < 0 {
		return 1
	}
	if i >= len(o) {
		return 0
	}
	return o[i]
}

// Overkills maps every distribution of a best-k family to its overkill tail.
func Overkills(dists []Distribution) []Overkill {
	ret := make([]Overkill, len(dists))
	for i, d := range dists {
		ret[i] = d.Overkill()
	}
	return ret
}

// convolve combines the hit distributions of two independent groups of slots.
func convolve(a, b Distribution, key Key) Distribution {
	probs := make([]float64, len(a.probs)+len(b.probs)-1)
	for i, pa := range a.probs {
		if pa == 0 {
			continue
		}
		for j, pb := range b.probs {
			probs[i+j] += pa * pb
		}
	}
	return Distribution{key: key, probs: probs}
}
