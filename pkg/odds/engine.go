// Package odds computes the outcome distribution of a dice battle exactly,
// without sampling.
//
// Each side is reduced to an ordered list of receptors (slots that absorb one
// hit). The battle state is the pair of remaining receptor counts; a Grid holds
// the probability of every state and is advanced round by round until the
// remaining mass is negligible or stops moving.
package odds

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

var (
	ErrBusy      = errors.New("calculation already running on this engine")
	ErrCancelled = errors.New("calculation cancelled")
)

// FinalRound is passed to Monitor.ObserveGrid for the grid a result is built from.
const FinalRound = -1

// Monitor receives instrumentation. It must not modify what it is given.
type Monitor interface {
	ObserveGrid(round int, g *Grid)
	ObserveTiming(t Timing)
}

// Timing reports how long one request took in each engine.
type Timing struct {
	Analytic time.Duration
	Fallback time.Duration
	Handled  int64
	Total    int64
}

// Config tunes the engine.
type Config struct {
	// SignificanceThreshold stops the round loop once less mass than this is
	// still fighting, or the grid moved less than this in one round.
	SignificanceThreshold float64
	// PruneThreshold shrinks the tracked grid once the mass at the largest
	// tracked receptor count of a side falls below it. Higher is faster and
	// less accurate.
	PruneThreshold float64
	Monitor        Monitor
}

// DefaultConfig returns the reference thresholds.
func DefaultConfig() Config {
	return Config{
		SignificanceThreshold: 0.01,
		PruneThreshold:        0.01,
	}
}

// Engine evaluates one battle at a time. It shares its Cache with other
// engines; everything else belongs to the running evaluation.
type Engine struct {
	cache     *Cache
	cfg       Config
	running   atomic.Bool
	cancelled atomic.Bool
}

// NewEngine creates an engine using cache for hit distributions. Zero
// thresholds in cfg fall back to the defaults.
func NewEngine(cache *Cache, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.SignificanceThreshold <= 0 {
		cfg.SignificanceThreshold = def.SignificanceThreshold
	}
	if cfg.PruneThreshold <= 0 {
		cfg.PruneThreshold = def.PruneThreshold
	}
	return &Engine{cache: cache, cfg: cfg}
}

// Cache returns the distribution cache the engine reads from.
func (e *Engine) Cache() *Cache { return e.cache }

// Name identifies results produced by this engine.
func (e *Engine) Name() string { return "analytic" }

// Calculate evaluates req. A second call while one is running fails with
// ErrBusy. The round loop stops at the next round boundary after ctx is done
// or Cancel is called.
func (e *Engine) Calculate(ctx context.Context, req Request) (*Result, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer e.running.Store(false)
	defer e.cancelled.Store(false)

	gen := e.cache.snapshot()
	b := newBattle(gen, e.cfg, &req)
	bombarding, err := b.setup()
	if err != nil {
		return nil, err
	}
	if err := b.run(ctx, bombarding, e.cancelled.Load); err != nil {
		return nil, err
	}

	res := Summarize(b.cur, b.attacker, b.defender, b.averageRounds)
	res.Engine = e.Name()
	res.DiceSides = gen.sides
	return res, nil
}

// Cancel asks the running calculation to stop. A Cancel that arrives before
// Calculate starts stops that calculation; the flag clears when it returns.
func (e *Engine) Cancel() {
	e.cancelled.Store(true)
}

// HitDistributions returns the best-k family for a side with n receptors whose
// full-strength distribution is max: entry k is the hit distribution of the k
// strongest receptors. Receptors that cannot hit sit at the end of the list, so
// every k at or above the number of firing receptors shares max.
func HitDistributions(cache *Cache, n int, max Distribution) []Distribution {
	return hitDistributions(cache.snapshot(), n, max)
}

func hitDistributions(gen *generation, n int, max Distribution) []Distribution {
	ret := make([]Distribution, n+1)
	for i := range ret {
		ret[i] = max
	}
	silent := n - max.Key().Total()
	key := max.Key()
	for i := n - 1 - silent; i >= 0; i-- {
		key = key.DropOne()
		ret[i] = gen.get(key)
	}
	return ret
}

// ExpectedRounds turns the per-round probability that the battle ended into
// the expected number of rounds fought. Battles still running after the last
// recorded round count as one more round.
func ExpectedRounds(ended []float64) float64 {
	sum, total := 0.0, 0.0
	for i, p := range ended {
		sum += float64(i+1) * p
		total += p
	}
	return sum + float64(len(ended)+1)*(1-total)
}
