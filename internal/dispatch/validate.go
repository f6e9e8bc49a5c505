package dispatch

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/freeeve/battleodds/pkg/odds"
)

var ErrInvalidRequest = errors.New("invalid battle request")

// Validate rejects requests no calculator can make sense of.
func Validate(req odds.Request) error {
	if req.RoundCap < 0 {
		return fmt.Errorf("%w: negative round cap %d", ErrInvalidRequest, req.RoundCap)
	}
	if req.RunCount < 0 {
		return fmt.Errorf("%w: negative run count %d", ErrInvalidRequest, req.RunCount)
	}
	for _, group := range [][]odds.Unit{req.Attacking, req.Defending, req.Bombarding} {
		for i := range group {
			if err := validateUnit(&group[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateUnit(u *odds.Unit) error {
	switch {
	case u.Attack < 0 || u.Defense < 0 || u.Bombard < 0:
		return fmt.Errorf("%w: %s has negative power", ErrInvalidRequest, u.Type)
	case u.AttackRolls < 0 || u.DefenseRolls < 0:
		return fmt.Errorf("%w: %s has negative rolls", ErrInvalidRequest, u.Type)
	case u.HitPoints < 0 || u.Damage < 0:
		return fmt.Errorf("%w: %s has negative hit points or damage", ErrInvalidRequest, u.Type)
	case u.HitPoints > 0 && u.Damage >= u.HitPoints:
		return fmt.Errorf("%w: %s is already destroyed (damage %d of %d)", ErrInvalidRequest, u.Type, u.Damage, u.HitPoints)
	case u.Cost < 0:
		return fmt.Errorf("%w: %s has negative cost", ErrInvalidRequest, u.Type)
	}
	return nil
}

// Fingerprint identifies a request under a dice configuration, for result
// caching and for matching evaluation records.
func Fingerprint(req odds.Request, sides int) (string, error) {
	body, err := json.Marshal(struct {
		Sides   int          `json:"sides"`
		Request odds.Request `json:"request"`
	}{sides, req})
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}
