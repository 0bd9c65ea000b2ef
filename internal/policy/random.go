package policy

import (
	"math/rand"

	"github.com/tiger/sim-replay-harness/internal/sim"
)

// Random draws uniformly distributed action indices from a generator seeded
// at reset time. Two instances reset with the same seed and action count
// produce identical sequences for identical call sequences.
type Random struct {
	rng *rand.Rand
	n   int
}

// NewRandom returns an unseeded random policy; Reset must be called before Act.
func NewRandom() *Random {
	return &Random{}
}

// Name identifies the policy in registries and run specs.
func (p *Random) Name() string { return "random" }

// Reset reinitializes the generator from seed.
func (p *Random) Reset(seed int64, actionNames []string, actionCount int) {
	p.rng = rand.New(rand.NewSource(seed))
	p.n = actionCount
}

// Act draws the next uniform action index.
func (p *Random) Act(step int, obs sim.Observation, lastReward float64, lastDone bool) int {
	return p.rng.Intn(p.n)
}
