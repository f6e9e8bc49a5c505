package odds

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// MaxDiceSides is bounded by the key layout: one field per possible hit power.
const MaxDiceSides = MaxHitPower

var ErrDiceSides = errors.New("unsupported number of dice sides")

// Cache memoizes hit distributions by Key. Distributions are only valid for the
// dice they were computed with, so the cache keeps one generation per dice-side
// setting and replaces it wholesale when the setting changes.
//
// Get is safe for concurrent use. Two goroutines asking for the same missing key
// may both compute it; the results are identical and the first one stored wins.
type Cache struct {
	gen atomic.Pointer[generation]
}

type generation struct {
	sides   int
	entries sync.Map // Key -> Distribution
	size    atomic.Int64
}

// NewCache creates an empty cache for dice with the given number of sides.
func NewCache(sides int) (*Cache, error) {
	c := &Cache{}
	if err := c.SetDiceSides(sides); err != nil {
		return nil, err
	}
	return c, nil
}

// SetDiceSides switches the cache to a new dice configuration, dropping every
// cached distribution. Lookups already running finish against the generation
// they started with and never write into the new one.
func (c *Cache) SetDiceSides(sides int) error {
	if sides < 1 || sides > MaxDiceSides {
		return fmt.Errorf("%w: %d (supported 1..%d)", ErrDiceSides, sides, MaxDiceSides)
	}
	c.gen.Store(&generation{sides: sides})
	return nil
}

// DiceSides is the dice configuration of the current generation.
func (c *Cache) DiceSides() int {
	return c.gen.Load().sides
}

// Len is the number of distributions in the current generation.
func (c *Cache) Len() int {
	return int(c.gen.Load().size.Load())
}

// Get returns the hit distribution for key, building it on first use.
func (c *Cache) Get(key Key) Distribution {
	return c.gen.Load().get(key)
}

// snapshot pins one generation so a whole evaluation sees a single dice setting.
func (c *Cache) snapshot() *generation {
	return c.gen.Load()
}

func (g *generation) get(key Key) Distribution {
	if key == 0 {
		return emptyDistribution
	}
	if v, ok := g.entries.Load(key); ok {
		return v.(Distribution)
	}

	var d Distribution
	if key.Total() == 1 {
		power := key.SingleHitPower()
		if power > g.sides {
			power = g.sides
		}
		p := float64(power) / float64(g.sides)
		d = Distribution{key: key, probs: []float64{1 - p, p}}
	} else {
		d = convolve(g.get(key.DropOne()), g.get(key.TakeOne()), key)
	}

	v, loaded := g.entries.LoadOrStore(key, d)
	if !loaded {
		g.size.Add(1)
	}
	return v.(Distribution)
}
