package odds

// Side selects which combat values of a unit apply.
type Side int

const (
	Offense Side = iota
	Defense
)

func (s Side) String() string {
	if s == Offense {
		return "offense"
	}
	return "defense"
}

// Ability tags a rule the analytic engine cannot model. The surrounding game
// decides which units carry which tags.
type Ability string

const (
	SuicideOnAttack      Ability = "suicide_on_attack"
	SuicideOnHit         Ability = "suicide_on_hit"
	FirstStrike          Ability = "first_strike"
	AttackingLimit       Ability = "attacking_limit"
	ChooseBestRoll       Ability = "choose_best_roll"
	CanNotTarget         Ability = "can_not_target"
	CanNotBeTargeted     Ability = "can_not_be_targeted"
	AAForCombatOnly      Ability = "aa_for_combat_only"
	WillNotFireIfPresent Ability = "will_not_fire_if_present"
	ChangesWhenDamaged   Ability = "changes_when_damaged"
	CapturedOnEntering   Ability = "captured_on_entering"
	ChangesWhenCaptured  Ability = "changes_when_captured"
)

// Unit is one combatant as resolved by the game rules: powers already include
// support and territory effects.
type Unit struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	Attack         int       `json:"attack"`
	Defense        int       `json:"defense"`
	Bombard        int       `json:"bombard,omitempty"`
	AttackRolls    int       `json:"attack_rolls,omitempty"`
	DefenseRolls   int       `json:"defense_rolls,omitempty"`
	HitPoints      int       `json:"hit_points"`
	Damage         int       `json:"damage,omitempty"`
	Cost           float64   `json:"cost"`
	Infrastructure bool      `json:"infrastructure,omitempty"`
	Sea            bool      `json:"sea,omitempty"`
	Air            bool      `json:"air,omitempty"`
	TransportedBy  string    `json:"transported_by,omitempty"`
	Abilities      []Ability `json:"abilities,omitempty"`
}

// HitPower is the die value at or below which the unit scores a hit.
func (u *Unit) HitPower(side Side) int {
	if side == Offense {
		return u.Attack
	}
	return u.Defense
}

// Rolls is the number of dice the unit throws per round; unset means one.
func (u *Unit) Rolls(side Side) int {
	r := u.DefenseRolls
	if side == Offense {
		r = u.AttackRolls
	}
	if r == 0 {
		return 1
	}
	return r
}

// Has reports whether the unit carries the ability tag.
func (u *Unit) Has(a Ability) bool {
	for _, have := range u.Abilities {
		if have == a {
			return true
		}
	}
	return false
}

// IsLand is true for units that are neither sea nor air.
func (u *Unit) IsLand() bool {
	return !u.Sea && !u.Air
}

// Territory is where the battle happens.
type Territory struct {
	Name    string   `json:"name"`
	Water   bool     `json:"water,omitempty"`
	Effects []string `json:"effects,omitempty"`
}

// Request describes one battle to evaluate.
type Request struct {
	Attacker   string    `json:"attacker"`
	Defender   string    `json:"defender"`
	Territory  Territory `json:"territory"`
	Attacking  []Unit    `json:"attacking"`
	Defending  []Unit    `json:"defending"`
	Bombarding []Unit    `json:"bombarding,omitempty"`
	// RoundCap limits the number of rounds fought; 0 or less means no limit.
	RoundCap int `json:"round_cap,omitempty"`
	// RetreatWhenOnlyAirLeft makes the attacker stop once only air units remain.
	RetreatWhenOnlyAirLeft bool `json:"retreat_when_only_air_left,omitempty"`
	// RunCount is the number of trials for simulating engines.
	RunCount int `json:"run_count,omitempty"`
}
