package odds

import (
	"errors"
	"fmt"
	"strings"
)

// Key layout: one 8-bit field per hit power, field 1 in the low byte.
const (
	MaxHitPower   = 8
	MaxFieldCount = 1<<fieldBits - 1

	fieldBits = 8
	fieldMask = 1<<fieldBits - 1
)

var (
	ErrFieldOverflow = errors.New("too many slots share one hit power")
	ErrHitPower      = errors.New("hit power out of range")
)

// Key is a bit-packed multiset of firing slots: how many slots fire with each
// hit power. Two rosters with the same counts share a Key and therefore share
// a cached Distribution.
type Key uint64

// NewKey builds a key from counts indexed by hit power (counts[0] is ignored,
// slots that cannot hit are not part of a key).
func NewKey(counts []int) (Key, error) {
	var k Key
	for power := 1; power < len(counts); power++ {
		var err error
		if k, err = k.With(power, counts[power]); err != nil {
			return 0, err
		}
	}
	return k, nil
}

// With returns a copy of k with the field for power set to n.
func (k Key) With(power, n int) (Key, error) {
	if power < 1 || power > MaxHitPower {
		return 0, fmt.Errorf("%w: %d", ErrHitPower, power)
	}
	if n < 0 || n > MaxFieldCount {
		return 0, fmt.Errorf("%w: %d slots with hit power %d (max %d)", ErrFieldOverflow, n, power, MaxFieldCount)
	}
	shift := uint(power-1) * fieldBits
	return k&^(fieldMask<<shift) | Key(n)<<shift, nil
}

// Add returns k with one more slot of the given hit power.
func (k Key) Add(power int) (Key, error) {
	if power < 1 || power > MaxHitPower {
		return 0, fmt.Errorf("%w: %d", ErrHitPower, power)
	}
	return k.With(power, k.Count(power)+1)
}

// Count is the number of slots firing with hit power.
func (k Key) Count(power int) int {
	if power < 1 || power > MaxHitPower {
		return 0
	}
	return int(k >> (uint(power-1) * fieldBits) & fieldMask)
}

// Total is the number of slots in the key.
func (k Key) Total() int {
	n := 0
	for power := 1; power <= MaxHitPower; power++ {
		n += k.Count(power)
	}
	return n
}

// Lowest returns the lowest hit power with a non-empty field, or 0 for the
// empty key.
func (k Key) Lowest() int {
	for power := 1; power <= MaxHitPower; power++ {
		if k.Count(power) > 0 {
			return power
		}
	}
	return 0
}

// SingleHitPower returns the hit power of a one-slot key.
func (k Key) SingleHitPower() int {
	if k.Total() != 1 {
		panic(fmt.Sprintf("odds: SingleHitPower on key %s with %d slots", k, k.Total()))
	}
	return k.Lowest()
}

// DropOne removes one slot from the lowest non-empty field.
func (k Key) DropOne() Key {
	power := k.Lowest()
	if power == 0 {
		return k
	}
	return k - 1<<(uint(power-1)*fieldBits)
}

// TakeOne is the single-slot key for the slot DropOne removes.
func (k Key) TakeOne() Key {
	power := k.Lowest()
	if power == 0 {
		return 0
	}
	return 1 << (uint(power-1) * fieldBits)
}

// String lists the hit power of every slot, strongest first ("332").
func (k Key) String() string {
	if k == 0 {
		return "-"
	}
	var sb strings.Builder
	for power := MaxHitPower; power >= 1; power-- {
		for i := 0; i < k.Count(power); i++ {
			sb.WriteByte(byte('0' + power))
		}
	}
	return sb.String()
}

// ParseKey is the inverse of String. Zeros are accepted and skipped, since a
// slot that cannot hit does not contribute to a key.
func ParseKey(s string) (Key, error) {
	var k Key
	if s == "-" {
		return k, nil
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("parse key %q: unexpected %q", s, r)
		}
		if r == '0' {
			continue
		}
		var err error
		if k, err = k.Add(int(r - '0')); err != nil {
			return 0, fmt.Errorf("parse key %q: %w", s, err)
		}
	}
	return k, nil
}
