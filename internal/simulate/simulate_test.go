package simulate

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/freeeve/battleodds/pkg/odds"
)

type fixedDice int

func (f fixedDice) DiceSides() int { return int(f) }

func unit(typ string, attack, defense, hp int) odds.Unit {
	return odds.Unit{Type: typ, Attack: attack, Defense: defense, HitPoints: hp, Cost: 3}
}

func army(n int, typ string, attack, defense int) []odds.Unit {
	ret := make([]odds.Unit, n)
	for i := range ret {
		ret[i] = unit(typ, attack, defense, 1)
	}
	return ret
}

func run(t *testing.T, req odds.Request) *odds.Result {
	t.Helper()
	res, err := New(fixedDice(6), 20000, 42).Calculate(context.Background(), req)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if total := res.AttackerWin + res.DefenderWin + res.Draw; math.Abs(total-1) > 1e-9 {
		t.Fatalf("outcome mass = %v", total)
	}
	return res
}

func TestAgreesWithAnalyticEngine(t *testing.T) {
	cache, err := odds.NewCache(6)
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	tests := []struct {
		name string
		req  odds.Request
	}{
		{"even single units", odds.Request{
			Attacking: []odds.Unit{unit("infantry", 3, 3, 1)},
			Defending: []odds.Unit{unit("infantry", 3, 3, 1)},
		}},
		{"two hit points against two units", odds.Request{
			Attacking: []odds.Unit{unit("warelephant", 4, 2, 2)},
			Defending: []odds.Unit{unit("legionary", 2, 2, 1), unit("legionary", 2, 2, 1)},
		}},
		{"mixed armies", odds.Request{
			Attacking: []odds.Unit{unit("tank", 3, 3, 1), unit("tank", 3, 3, 1), unit("infantry", 1, 2, 1)},
			Defending: []odds.Unit{unit("infantry", 1, 2, 1), unit("infantry", 1, 2, 1), unit("artillery", 2, 2, 1)},
		}},
		{"large armies", odds.Request{
			Attacking: army(60, "tank", 3, 3),
			Defending: army(80, "infantry", 2, 2),
		}},
		{"large weak attack", odds.Request{
			Attacking: army(40, "militia", 1, 1),
			Defending: army(40, "infantry", 2, 2),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want, err := odds.NewEngine(cache, odds.DefaultConfig()).Calculate(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("analytic: %v", err)
			}
			got := run(t, tt.req)
			if math.Abs(got.AttackerWin-want.AttackerWin) > 0.03 {
				t.Errorf("attacker win: simulated %v, analytic %v", got.AttackerWin, want.AttackerWin)
			}
			if math.Abs(got.DefenderWin-want.DefenderWin) > 0.03 {
				t.Errorf("defender win: simulated %v, analytic %v", got.DefenderWin, want.DefenderWin)
			}
			if math.Abs(got.Draw-want.Draw) > 0.03 {
				t.Errorf("draw: simulated %v, analytic %v", got.Draw, want.Draw)
			}
			if got.DiceSides != 6 || want.DiceSides != 6 {
				t.Errorf("dice sides = %d/%d, want 6", got.DiceSides, want.DiceSides)
			}
			if got.Engine != "simulated" {
				t.Errorf("engine = %q", got.Engine)
			}
		})
	}
}

func TestMultipleRolls(t *testing.T) {
	bomber := unit("bomber", 6, 1, 1)
	bomber.AttackRolls = 2
	res := run(t, odds.Request{
		Attacking: []odds.Unit{bomber},
		Defending: []odds.Unit{unit("infantry", 0, 0, 1), unit("infantry", 0, 0, 1)},
	})
	if res.AttackerWin != 1 || res.AverageRounds != 1 {
		t.Errorf("two certain hits should end it in one round: %+v", res)
	}
}

func TestFirstStrike(t *testing.T) {
	sub := unit("submarine", 6, 6, 1)
	sub.Abilities = []odds.Ability{odds.FirstStrike}
	res := run(t, odds.Request{
		Attacking: []odds.Unit{sub},
		Defending: []odds.Unit{unit("destroyer", 6, 6, 1)},
	})
	if res.AttackerWin != 1 {
		t.Errorf("first strike should kill before return fire, attacker win = %v", res.AttackerWin)
	}
}

func TestRetreatWhenOnlyAirLeft(t *testing.T) {
	fighter := unit("fighter", 1, 4, 1)
	fighter.Air = true
	req := odds.Request{
		Attacking:              []odds.Unit{fighter, unit("militia", 0, 0, 1)},
		Defending:              []odds.Unit{unit("fortress", 0, 6, 1)},
		RetreatWhenOnlyAirLeft: true,
	}
	res := run(t, req)
	if res.DefenderWin != 0 {
		t.Errorf("attacker should withdraw before losing, defender win = %v", res.DefenderWin)
	}
	if res.AverageRounds != 1 {
		t.Errorf("average rounds = %v, want 1", res.AverageRounds)
	}
	if math.Abs(res.AttackerWin-1.0/6) > 0.02 {
		t.Errorf("attacker win = %v, want ~1/6", res.AttackerWin)
	}

	req.RetreatWhenOnlyAirLeft = false
	if res := run(t, req); res.DefenderWin < 0.6 {
		t.Errorf("without retreat the defender should usually win, got %v", res.DefenderWin)
	}
}

func TestBombardAndRoundCap(t *testing.T) {
	ship := unit("battleship", 4, 4, 2)
	ship.Bombard = 6
	res := run(t, odds.Request{
		Attacking:  []odds.Unit{unit("marine", 0, 0, 1)},
		Defending:  []odds.Unit{unit("infantry", 0, 0, 1)},
		Bombarding: []odds.Unit{ship},
	})
	if res.AttackerWin != 1 || res.AverageRounds != 0 {
		t.Errorf("certain bombard hit should win before round one: %+v", res)
	}

	res = run(t, odds.Request{
		Attacking: []odds.Unit{unit("militia", 1, 1, 1)},
		Defending: []odds.Unit{unit("militia", 1, 1, 1)},
		RoundCap:  1,
	})
	if res.AverageRounds != 1 {
		t.Errorf("round cap 1: average rounds = %v", res.AverageRounds)
	}
	if math.Abs(res.Draw-(25.0/36+1.0/36)) > 0.02 {
		t.Errorf("draw = %v, want ~26/36", res.Draw)
	}
}

func TestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(fixedDice(6), 100, 1).Calculate(ctx, odds.Request{
		Attacking: []odds.Unit{unit("infantry", 1, 2, 1)},
		Defending: []odds.Unit{unit("infantry", 1, 2, 1)},
	})
	if !errors.Is(err, odds.ErrCancelled) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestCancelBeforeCalculate(t *testing.T) {
	s := New(fixedDice(6), 100, 1)
	req := odds.Request{
		Attacking: []odds.Unit{unit("infantry", 1, 2, 1)},
		Defending: []odds.Unit{unit("infantry", 1, 2, 1)},
	}
	s.Cancel()
	if _, err := s.Calculate(context.Background(), req); !errors.Is(err, odds.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if _, err := s.Calculate(context.Background(), req); err != nil {
		t.Errorf("cancel should not outlive the calculation it stopped: %v", err)
	}
}

func TestHandlesUnitsBeyondKeyLimits(t *testing.T) {
	var attackers []odds.Unit
	for i := 0; i < 300; i++ {
		attackers = append(attackers, unit("infantry", 1, 2, 1))
	}
	res, err := New(fixedDice(6), 50, 7).Calculate(context.Background(), odds.Request{
		Attacking: attackers,
		Defending: []odds.Unit{unit("infantry", 1, 2, 1)},
	})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if res.AttackerWin < 0.99 {
		t.Errorf("300 against 1 should win, got %v", res.AttackerWin)
	}
}
