package policy

import (
	"math/rand"

	"github.com/tiger/sim-replay-harness/internal/sim"
)

const (
	// DefaultStuckWindow is the default number of progress-free steps before
	// the policy rotates to the next direction.
	DefaultStuckWindow = 30
	// DefaultJitterProb is the default per-step probability of jumping to a
	// uniformly random direction.
	DefaultJitterProb = 0.02
)

// directionNames are the symbolic actions recognized as directions, in the
// cyclic rotation order.
var directionNames = []string{"UP", "RIGHT", "DOWN", "LEFT"}

// StickyDirectional commits to a direction until it stops making progress,
// then rotates to the next one. It does not try to solve anything; it only
// produces more structured traces than uniform noise.
type StickyDirectional struct {
	stuckWindow int
	jitterProb  float64

	rng           *rand.Rand
	dirActions    []int
	curIdx        int
	sinceProgress int
}

// NewStickyDirectional returns a sticky-direction policy with the given
// stuck window and jitter probability; Reset must be called before Act.
func NewStickyDirectional(stuckWindow int, jitterProb float64) *StickyDirectional {
	return &StickyDirectional{stuckWindow: stuckWindow, jitterProb: jitterProb}
}

// Name identifies the policy in registries and run specs.
func (p *StickyDirectional) Name() string { return "sticky-dir" }

// Reset reinitializes the generator and recomputes the direction set from
// the action vocabulary. Directional names win; otherwise the first four
// actions (or all of them, if fewer exist) serve as directions.
func (p *StickyDirectional) Reset(seed int64, actionNames []string, actionCount int) {
	p.rng = rand.New(rand.NewSource(seed))

	p.dirActions = p.dirActions[:0]
	for _, want := range directionNames {
		for idx, name := range actionNames {
			if name == want {
				p.dirActions = append(p.dirActions, idx)
				break
			}
		}
	}
	if len(p.dirActions) == 0 {
		limit := actionCount
		if limit > 4 {
			limit = 4
		}
		for i := 0; i < limit; i++ {
			p.dirActions = append(p.dirActions, i)
		}
	}

	p.curIdx = 0
	p.sinceProgress = 0
}

// Act applies the transition rules in precedence order: episode-boundary
// hold, progress accounting, jitter, then stuck rotation.
func (p *StickyDirectional) Act(step int, obs sim.Observation, lastReward float64, lastDone bool) int {
	if lastDone {
		p.sinceProgress = 0
		return p.dirActions[p.curIdx]
	}

	if lastReward > 0 {
		p.sinceProgress = 0
	} else {
		p.sinceProgress++
	}

	if p.rng.Float64() < p.jitterProb {
		p.curIdx = p.rng.Intn(len(p.dirActions))
		p.sinceProgress = 0
		return p.dirActions[p.curIdx]
	}

	if p.sinceProgress >= p.stuckWindow {
		p.curIdx = (p.curIdx + 1) % len(p.dirActions)
		p.sinceProgress = 0
	}

	return p.dirActions[p.curIdx]
}
