// Package policy implements the action-generation state machines that turn
// observation/reward/done signals into discrete actions.
//
// A policy instance is owned by exactly one run: constructed fresh, reset
// once with the run seed, consulted once per step, and discarded. Instances
// are never shared across runs.
package policy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tiger/sim-replay-harness/internal/sim"
)

// Policy maps per-step signals to a next discrete action in [0, actionCount).
//
// Reset must be idempotent per seed: after Reset with a given seed, the
// future action sequence depends only on that seed and the subsequent Act
// calls, never on any prior use of the instance.
type Policy interface {
	Name() string
	Reset(seed int64, actionNames []string, actionCount int)
	Act(step int, obs sim.Observation, lastReward float64, lastDone bool) int
}

// registry is the immutable name -> constructor mapping built at process
// start. Constructors return brand-new, independently owned instances.
var registry = map[string]func() Policy{
	"random":     func() Policy { return NewRandom() },
	"sticky-dir": func() Policy { return NewStickyDirectional(DefaultStuckWindow, DefaultJitterProb) },
}

// List returns the registered policy names in sorted order.
func List() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New constructs a fresh instance of the named policy. Unknown names fail
// with the set of valid choices.
func New(name string) (Policy, error) {
	construct, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown policy %q, valid: %s", name, strings.Join(List(), ", "))
	}
	return construct(), nil
}
