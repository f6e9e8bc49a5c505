// Package simulate estimates battle outcomes by playing them out many times.
// It covers rules the analytic engine cannot model: several dice per unit,
// first strike, an attacker that withdraws once only air is left.
package simulate

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/battleodds/pkg/odds"
)

// DefaultRunCount is used when neither the request nor the simulator sets one.
const DefaultRunCount = 2000

// checkEvery is how many trials run between cancellation checks.
const checkEvery = 64

// DiceSource reports the current dice configuration.
type DiceSource interface {
	DiceSides() int
}

// Simulator is a Monte-Carlo battle calculator. Like odds.Engine it runs one
// calculation at a time.
type Simulator struct {
	dice DiceSource
	runs int
	rng  *rand.Rand

	running   atomic.Bool
	cancelled atomic.Bool
}

// New creates a simulator. A zero seed picks one from the clock; runs <= 0
// means DefaultRunCount.
func New(dice DiceSource, runs int, seed int64) *Simulator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if runs <= 0 {
		runs = DefaultRunCount
	}
	return &Simulator{
		dice: dice,
		runs: runs,
		rng:  rand.New(rand.NewSource(seed)),
	}
}

// Name identifies results produced by the simulator.
func (s *Simulator) Name() string { return "simulated" }

// Cancel asks the running or next calculation to stop.
func (s *Simulator) Cancel() { s.cancelled.Store(true) }

// Calculate plays req out RunCount times and summarizes the final states.
func (s *Simulator) Calculate(ctx context.Context, req odds.Request) (*odds.Result, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, odds.ErrBusy
	}
	defer s.running.Store(false)
	defer s.cancelled.Store(false)

	runs := req.RunCount
	if runs <= 0 {
		runs = s.runs
	}
	sides := s.dice.DiceSides()

	b := newBattle(&req, sides, s.rng)
	grid := odds.NewGrid(b.attacker.Size(), b.defender.Size())
	rounds := 0
	for i := 0; i < runs; i++ {
		if i%checkEvery == 0 {
			if s.cancelled.Load() {
				return nil, odds.ErrCancelled
			}
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("%w: %w", odds.ErrCancelled, err)
			}
		}
		a, d, r := b.play()
		grid.Add(a, d, 1)
		rounds += r
	}

	n := float64(runs)
	for a := 0; a <= grid.Attackers(); a++ {
		for d := 0; d <= grid.Defenders(); d++ {
			grid.Set(a, d, grid.At(a, d)/n)
		}
	}

	res := odds.Summarize(grid, b.attacker, b.defender, float64(rounds)/n)
	res.Engine = s.Name()
	res.DiceSides = sides
	log.Debug().
		Int("runs", runs).
		Int("sides", sides).
		Float64("attackerWin", res.AttackerWin).
		Msg("Simulation finished")
	return res, nil
}

// battle holds what every trial of one request shares.
type battle struct {
	req      *odds.Request
	sides    int
	rng      *rand.Rand
	attacker odds.Party
	defender odds.Party
}

func newBattle(req *odds.Request, sides int, rng *rand.Rand) *battle {
	water := req.Territory.Water
	return &battle{
		req:      req,
		sides:    sides,
		rng:      rng,
		attacker: odds.NewParty(req.Attacking, odds.Offense, water),
		defender: odds.NewParty(req.Defending, odds.Defense, water),
	}
}

// play runs one trial and returns the receptors left on each side and the
// number of rounds fought.
func (b *battle) play() (a, d, rounds int) {
	a, d = b.attacker.Size(), b.defender.Size()

	if hits := b.bombard(); hits > 0 {
		d = max(d-hits, 0)
	}

	for a > 0 && d > 0 {
		if b.req.RoundCap > 0 && rounds >= b.req.RoundCap {
			break
		}
		if !b.canHit(b.attacker, a) && !b.canHit(b.defender, d) {
			break
		}
		rounds++

		// First strike fire lands before the victims can answer.
		dHits := b.fire(b.attacker, a, true)
		aHits := b.fire(b.defender, d, true)
		a, d = max(a-aHits, 0), max(d-dHits, 0)

		dHits = b.fire(b.attacker, a, false)
		aHits = b.fire(b.defender, d, false)
		a, d = max(a-aHits, 0), max(d-dHits, 0)

		if b.req.RetreatWhenOnlyAirLeft && a > 0 && d > 0 && onlyAir(b.attacker, a) {
			break
		}
	}
	return a, d, rounds
}

func (b *battle) bombard() int {
	hits := 0
	for i := range b.req.Bombarding {
		if b.roll(b.req.Bombarding[i].Bombard) {
			hits++
		}
	}
	return hits
}

// fire rolls for the live units of p that do or do not have first strike.
func (b *battle) fire(p odds.Party, slots int, firstStrike bool) int {
	hits := 0
	for _, r := range p.Receptors[:p.UnitsLeft(slots)] {
		u := r.Unit
		if u.Has(odds.FirstStrike) != firstStrike {
			continue
		}
		power := u.HitPower(p.Side)
		for i := 0; i < u.Rolls(p.Side); i++ {
			if b.roll(power) {
				hits++
			}
		}
	}
	return hits
}

func (b *battle) canHit(p odds.Party, slots int) bool {
	for _, r := range p.Receptors[:p.UnitsLeft(slots)] {
		if r.Unit.HitPower(p.Side) > 0 {
			return true
		}
	}
	return false
}

func (b *battle) roll(power int) bool {
	if power <= 0 {
		return false
	}
	return 1+b.rng.Intn(b.sides) <= power
}

func onlyAir(p odds.Party, slots int) bool {
	for _, r := range p.Receptors[:p.UnitsLeft(slots)] {
		if !r.Unit.Air {
			return false
		}
	}
	return true
}
