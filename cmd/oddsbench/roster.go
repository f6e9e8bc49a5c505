package main

import (
	"fmt"
	"math/rand"

	"github.com/freeeve/battleodds/pkg/odds"
)

var roster = []odds.Unit{
	{Type: "infantry", Attack: 1, Defense: 2, HitPoints: 1, Cost: 3},
	{Type: "artillery", Attack: 2, Defense: 2, HitPoints: 1, Cost: 4},
	{Type: "tank", Attack: 3, Defense: 3, HitPoints: 1, Cost: 6},
	{Type: "fighter", Attack: 3, Defense: 4, HitPoints: 1, Cost: 10, Air: true},
	{Type: "bomber", Attack: 4, Defense: 1, HitPoints: 1, Cost: 12, Air: true},
}

var factory = odds.Unit{Type: "factory", HitPoints: 1, Cost: 15, Infrastructure: true}

var powers = []string{"Germany", "Russia", "Japan", "Britain", "America"}

// randomBattle draws a land battle with up to maxUnits units a side. A quarter
// of defended territories hold a factory.
func randomBattle(rng *rand.Rand, maxUnits int) odds.Request {
	a := rng.Intn(len(powers))
	d := (a + 1 + rng.Intn(len(powers)-1)) % len(powers)
	req := odds.Request{
		Attacker:  powers[a],
		Defender:  powers[d],
		Territory: odds.Territory{Name: fmt.Sprintf("territory-%d", rng.Intn(100))},
		Attacking: randomUnits(rng, 1+rng.Intn(maxUnits)),
		Defending: randomUnits(rng, rng.Intn(maxUnits+1)),
	}
	if rng.Intn(4) == 0 {
		req.Defending = append(req.Defending, factory)
	}
	return req
}

func randomUnits(rng *rand.Rand, n int) []odds.Unit {
	units := make([]odds.Unit, n)
	for i := range units {
		units[i] = roster[rng.Intn(len(roster))]
		units[i].ID = fmt.Sprintf("u%d", i)
	}
	return units
}
