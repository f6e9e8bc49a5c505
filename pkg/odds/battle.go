package odds

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type stopReason int

const (
	stopNegligible stopReason = iota
	stopStalemate
	stopRoundCap
)

func (r stopReason) String() string {
	switch r {
	case stopNegligible:
		return "negligible"
	case stopStalemate:
		return "stalemate"
	default:
		return "round_cap"
	}
}

// battle is the state of one evaluation.
type battle struct {
	gen *generation
	cfg Config
	req *Request

	attacker Party
	defender Party

	attackerHits     []Distribution
	defenderHits     []Distribution
	attackerOverkill []Overkill
	defenderOverkill []Overkill
	bombard          Distribution

	// Tracked receptor counts. Cells beyond them are either terminal and
	// carried over unchanged, or pruned.
	nAttackers int
	nDefenders int

	cur  *Grid
	prev *Grid

	ended         []float64
	averageRounds float64
}

func newBattle(gen *generation, cfg Config, req *Request) *battle {
	return &battle{gen: gen, cfg: cfg, req: req}
}

// setup builds both parties, their best-k families and the grid after the
// opening volley. The attacker side is prepared on its own goroutine while the
// caller prepares the defender. It reports whether bombardment replaced the
// first volley.
func (b *battle) setup() (bool, error) {
	water := b.req.Territory.Water

	var attackerMax Distribution
	var g errgroup.Group
	g.Go(func() error {
		b.attacker = NewParty(b.req.Attacking, Offense, water)
		key, err := BuildKey(b.attacker.Receptors, Offense)
		if err != nil {
			return fmt.Errorf("attacker: %w", err)
		}
		attackerMax = b.gen.get(key)
		b.attackerHits = hitDistributions(b.gen, b.attacker.Size(), attackerMax)
		b.attackerOverkill = Overkills(b.attackerHits)
		b.bombard, err = b.bombardDistribution()
		return err
	})

	b.defender = NewParty(b.req.Defending, Defense, water)
	defenderMax, defErr := b.defenderSide()

	if err := g.Wait(); err != nil {
		return false, err
	}
	if defErr != nil {
		return false, defErr
	}

	bombarding := b.bombard.Key() != 0
	opening, reply := attackerMax, defenderMax
	if bombarding {
		opening, reply = b.bombard, emptyDistribution
	}

	na, nd := b.attacker.Size(), b.defender.Size()
	b.cur = NewGrid(na, nd)
	b.prev = NewGrid(na, nd)
	b.nAttackers, b.nDefenders = na, nd
	initialVolley(b.cur, opening, reply)

	log.Debug().
		Str("attacker", attackerMax.Key().String()).
		Str("defender", defenderMax.Key().String()).
		Bool("bombard", bombarding).
		Int("attackerReceptors", na).
		Int("defenderReceptors", nd).
		Msg("Battle set up")
	return bombarding, nil
}

func (b *battle) defenderSide() (Distribution, error) {
	key, err := BuildKey(b.defender.Receptors, Defense)
	if err != nil {
		return Distribution{}, fmt.Errorf("defender: %w", err)
	}
	max := b.gen.get(key)
	b.defenderHits = hitDistributions(b.gen, b.defender.Size(), max)
	b.defenderOverkill = Overkills(b.defenderHits)
	return max, nil
}

// bombardDistribution is the single volley fired by bombarding units before the
// first round. The defender does not answer it.
func (b *battle) bombardDistribution() (Distribution, error) {
	var key Key
	for i := range b.req.Bombarding {
		u := &b.req.Bombarding[i]
		if u.Bombard <= 0 {
			continue
		}
		var err error
		if key, err = key.Add(u.Bombard); err != nil {
			return Distribution{}, fmt.Errorf("bombard %s: %w", u.Type, err)
		}
	}
	return b.gen.get(key), nil
}

// initialVolley fills g with the outcome of one exchange from full strength:
// opening hits defenders, reply hits attackers. Hits beyond a side's receptor
// count are folded into the wiped-out row or column.
func initialVolley(g *Grid, opening, reply Distribution) {
	na, nd := g.Attackers(), g.Defenders()
	openingOver, replyOver := opening.Overkill(), reply.Overkill()
	for a := 0; a <= na; a++ {
		pr := reply.At(na - a)
		if pr == 0 {
			continue
		}
		for d := 0; d <= nd; d++ {
			g.Add(a, d, opening.At(nd-d)*pr)
		}
		g.Add(a, 0, openingOver.At(nd)*pr)
	}
	for d := 0; d <= nd; d++ {
		g.Add(0, d, replyOver.At(na)*opening.At(nd-d))
	}
	g.Add(0, 0, openingOver.At(nd)*replyOver.At(na))
}

// run advances the grid until the battle is decided, stalls or reaches the
// round cap, then normalizes it and records the expected round count.
func (b *battle) run(ctx context.Context, bombarding bool, cancelled func() bool) error {
	threshold := b.cfg.SignificanceThreshold

	endedBefore := 0.0
	if !bombarding {
		endedBefore = b.cur.Terminal()
		b.ended = append(b.ended, endedBefore)
	}
	fighting := b.cur.StillFighting()
	b.observe(len(b.ended))

	var reason stopReason
	for {
		if fighting < threshold {
			reason = stopNegligible
			break
		}
		if b.cur.Distance(b.prev, b.nAttackers, b.nDefenders, threshold) <= threshold {
			reason = stopStalemate
			break
		}
		if b.req.RoundCap > 0 && len(b.ended) >= b.req.RoundCap {
			reason = stopRoundCap
			break
		}
		if cancelled() {
			return ErrCancelled
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrCancelled, err)
		}

		fighting = b.step()
		b.ended = append(b.ended, 1-endedBefore-fighting)
		endedBefore = 1 - fighting
		b.observe(len(b.ended))
	}

	b.tidy(reason)
	b.averageRounds = ExpectedRounds(b.ended)
	b.observe(FinalRound)

	log.Debug().
		Str("reason", reason.String()).
		Int("rounds", len(b.ended)).
		Float64("averageRounds", b.averageRounds).
		Msg("Battle finished")
	return nil
}

// step plays one round: every live state (a0, d0) fires the best-a0 attacker
// family member at the defender and the best-d0 defender member at the
// attacker. It returns the mass still fighting afterwards.
func (b *battle) step() float64 {
	cur, next := b.cur, b.prev
	next.Clear()
	na, nd := b.nAttackers, b.nDefenders

	for a := na + 1; a <= cur.Attackers(); a++ {
		next.Set(a, 0, cur.At(a, 0))
	}
	for d := nd + 1; d <= cur.Defenders(); d++ {
		next.Set(0, d, cur.At(0, d))
	}

	for a0 := 0; a0 <= na; a0++ {
		for d0 := 0; d0 <= nd; d0++ {
			p := cur.At(a0, d0)
			if p == 0 {
				continue
			}
			if a0 == 0 || d0 == 0 {
				next.Add(a0, d0, p)
				continue
			}

			atk := b.attackerHits[a0]
			def := b.defenderHits[d0]
			atkOver := b.attackerOverkill[a0].At(d0)
			defOver := b.defenderOverkill[d0].At(a0)

			for ah := 0; ah <= a0; ah++ {
				pd := p * def.At(ah)
				if pd == 0 {
					continue
				}
				a := a0 - ah
				for dh := 0; dh <= d0; dh++ {
					next.Add(a, d0-dh, pd*atk.At(dh))
				}
				next.Add(a, 0, pd*atkOver)
			}
			if defOver > 0 {
				for dh := 0; dh <= d0; dh++ {
					next.Add(0, d0-dh, p*defOver*atk.At(dh))
				}
				next.Add(0, 0, p*defOver*atkOver)
			}
		}
	}
	b.cur, b.prev = next, cur

	rows, cols := next.Marginals(na, nd)
	fighting := 0.0
	for _, p := range rows {
		fighting += p
	}
	// At most one count per side per round; the tail may still recover.
	if b.nAttackers > 0 && rows[b.nAttackers] < b.cfg.PruneThreshold {
		b.nAttackers--
	}
	if b.nDefenders > 0 && cols[b.nDefenders] < b.cfg.PruneThreshold {
		b.nDefenders--
	}

	b.verify(len(b.ended) + 1)
	return fighting
}

// verify logs grids whose mass drifted beyond pruning and rounding.
func (b *battle) verify(round int) {
	sum := b.cur.Sum()
	if sum > 1+1e-9 || sum < 0.5 || math.IsNaN(sum) {
		log.Warn().Int("round", round).Float64("mass", sum).Msg("Grid mass out of range")
	}
}

// tidy turns the grid into a result distribution. A decided battle keeps only
// its terminal cells, rescaled to 1. A stalled or capped battle keeps its
// undecided cells as draws and the whole grid is rescaled.
func (b *battle) tidy(reason stopReason) {
	g := b.cur
	terminal := g.Terminal()
	if reason == stopNegligible && terminal > 0 {
		f := 1 / terminal
		for a := 0; a <= g.Attackers(); a++ {
			for d := 0; d <= g.Defenders(); d++ {
				if a == 0 || d == 0 {
					g.Scale(a, d, f)
				} else {
					g.Set(a, d, 0)
				}
			}
		}
		return
	}

	if sum := g.Sum(); sum > 0 {
		f := 1 / sum
		for i := range g.data {
			g.data[i] *= f
		}
	}
}

func (b *battle) observe(round int) {
	if b.cfg.Monitor != nil {
		b.cfg.Monitor.ObserveGrid(round, b.cur.Clone())
	}
}
