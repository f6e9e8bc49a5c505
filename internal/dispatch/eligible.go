package dispatch

import (
	"fmt"

	"github.com/freeeve/battleodds/pkg/odds"
)

// unsupported lists the abilities the analytic engine has no model for.
var unsupported = []odds.Ability{
	odds.SuicideOnAttack,
	odds.SuicideOnHit,
	odds.AttackingLimit,
	odds.ChooseBestRoll,
	odds.FirstStrike,
	odds.CanNotTarget,
	odds.CanNotBeTargeted,
	odds.AAForCombatOnly,
	odds.WillNotFireIfPresent,
	odds.ChangesWhenDamaged,
	odds.CapturedOnEntering,
	odds.ChangesWhenCaptured,
}

// Eligible reports whether the analytic engine can evaluate req. When it
// cannot, the reason names the first obstacle found.
func Eligible(req odds.Request) (bool, string) {
	if req.RetreatWhenOnlyAirLeft {
		return false, "attacker retreats when only air is left"
	}
	for i := range req.Attacking {
		if req.Attacking[i].Infrastructure {
			return false, fmt.Sprintf("attacker brings infrastructure unit %s", req.Attacking[i].Type)
		}
	}
	if reason := unsupportedUnit(req.Attacking, odds.Offense); reason != "" {
		return false, reason
	}
	if reason := unsupportedUnit(req.Defending, odds.Defense); reason != "" {
		return false, reason
	}
	if req.Territory.Water && !(waterSetupAsExpected(req.Attacking) && waterSetupAsExpected(req.Defending)) {
		return false, "water battle with unexpected setup"
	}
	return true, ""
}

func unsupportedUnit(units []odds.Unit, side odds.Side) string {
	for i := range units {
		u := &units[i]
		if u.HitPoints == 0 && !u.Infrastructure {
			return fmt.Sprintf("%s has no hit points", u.Type)
		}
		for _, a := range unsupported {
			if u.Has(a) {
				return fmt.Sprintf("%s has ability %s", u.Type, a)
			}
		}
		if rolls := u.Rolls(side); rolls != 1 {
			return fmt.Sprintf("%s rolls %d dice on %s", u.Type, rolls, side)
		}
		if power := u.HitPower(side); power > odds.MaxHitPower {
			return fmt.Sprintf("%s has hit power %d on %s", u.Type, power, side)
		}
	}
	return ""
}

// waterSetupAsExpected checks that sea and air units are never cargo and that
// every transported land unit travels with its transport. Land units without
// a transport are allowed; they do not fight.
func waterSetupAsExpected(army []odds.Unit) bool {
	ids := make(map[string]bool, len(army))
	for i := range army {
		if army[i].ID != "" {
			ids[army[i].ID] = true
		}
	}
	for i := range army {
		u := &army[i]
		if !u.IsLand() {
			if u.TransportedBy != "" {
				return false
			}
			continue
		}
		if u.TransportedBy != "" && !ids[u.TransportedBy] {
			return false
		}
	}
	return true
}
