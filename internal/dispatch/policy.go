package dispatch

import (
	"fmt"
	"strings"
)

// Policy decides when the fallback simulator runs.
type Policy int

const (
	// OnlyWhenNecessary runs the fallback when the analytic engine cannot
	// handle the battle or fails.
	OnlyWhenNecessary Policy = iota
	// Always runs both engines and reconciles them.
	Always
	// Sometimes runs both engines on every Nth request.
	Sometimes
	// FallbackOnly never runs the analytic engine.
	FallbackOnly
)

var policyNames = map[Policy]string{
	OnlyWhenNecessary: "only_when_necessary",
	Always:            "always",
	Sometimes:         "sometimes",
	FallbackOnly:      "fallback_only",
}

func (p Policy) String() string {
	if s, ok := policyNames[p]; ok {
		return s
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// ParsePolicy accepts the names returned by String, case-insensitively.
func ParsePolicy(s string) (Policy, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for p, name := range policyNames {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown odds policy %q", s)
}
