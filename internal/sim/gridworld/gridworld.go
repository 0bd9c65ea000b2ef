// Package gridworld implements a deterministic pellet-collection
// environment used as the reference simulator for determinism checks. All
// stochasticity flows from the seed handed to Reset, so identical
// seed/action sequences yield bit-identical observations.
package gridworld

import (
	"fmt"
	"math/rand"

	"github.com/tiger/sim-replay-harness/internal/sim"
)

// Cell codes of the state observation tensor.
const (
	cellEmpty  = 0
	cellWall   = 1
	cellPellet = 2
	cellAgent  = 3
)

var actionNames = []string{"NOOP", "UP", "RIGHT", "DOWN", "LEFT"}

// moves maps action index to (dx, dy); NOOP stays in place.
var moves = [5][2]int{{0, 0}, {0, -1}, {1, 0}, {0, 1}, {-1, 0}}

// Config controls world geometry and step semantics.
type Config struct {
	Width           int
	Height          int
	Pellets         int
	EpisodeStepCap  int
	Pixels          bool
	Frameskip       int
	RepeatActionPct float64
}

// DefaultConfig returns the registry-served world geometry.
func DefaultConfig() Config {
	return Config{
		Width:          12,
		Height:         12,
		Pellets:        16,
		EpisodeStepCap: 160,
		Frameskip:      1,
	}
}

// Env is a bordered grid with seeded pellet and agent placement. Walking
// into a wall is a no-op; each pellet collected pays +1 reward. The episode
// terminates when every pellet is collected and truncates at the step cap.
type Env struct {
	cfg Config

	cells      []byte
	agentX     int
	agentY     int
	remaining  int
	stepsTaken int
	lastAction int
	stickyRNG  *rand.Rand
	closed     bool
}

// New validates the config and returns an unreset environment.
func New(cfg Config) (*Env, error) {
	if cfg.Width < 4 || cfg.Height < 4 {
		return nil, fmt.Errorf("grid must be at least 4x4, got %dx%d", cfg.Width, cfg.Height)
	}
	interior := (cfg.Width - 2) * (cfg.Height - 2)
	if cfg.Pellets < 1 || cfg.Pellets >= interior {
		return nil, fmt.Errorf("pellet count must be within [1, %d), got %d", interior, cfg.Pellets)
	}
	if cfg.EpisodeStepCap < 1 {
		return nil, fmt.Errorf("episode step cap must be >= 1")
	}
	if cfg.Frameskip < 1 {
		return nil, fmt.Errorf("frameskip must be >= 1")
	}
	if cfg.RepeatActionPct < 0 || cfg.RepeatActionPct > 1 {
		return nil, fmt.Errorf("repeat action probability must be within [0,1]")
	}
	return &Env{cfg: cfg}, nil
}

// Reset rebuilds the world from seed and returns the initial observation.
func (e *Env) Reset(seed int64) (sim.Observation, error) {
	if e.closed {
		return sim.Observation{}, fmt.Errorf("reset on closed environment")
	}

	rng := rand.New(rand.NewSource(seed))
	e.cells = make([]byte, e.cfg.Width*e.cfg.Height)
	for y := 0; y < e.cfg.Height; y++ {
		for x := 0; x < e.cfg.Width; x++ {
			if x == 0 || y == 0 || x == e.cfg.Width-1 || y == e.cfg.Height-1 {
				e.cells[y*e.cfg.Width+x] = cellWall
			}
		}
	}

	e.agentX = 1 + rng.Intn(e.cfg.Width-2)
	e.agentY = 1 + rng.Intn(e.cfg.Height-2)

	e.remaining = 0
	for e.remaining < e.cfg.Pellets {
		x := 1 + rng.Intn(e.cfg.Width-2)
		y := 1 + rng.Intn(e.cfg.Height-2)
		idx := y*e.cfg.Width + x
		if e.cells[idx] != cellEmpty || (x == e.agentX && y == e.agentY) {
			continue
		}
		e.cells[idx] = cellPellet
		e.remaining++
	}

	e.stepsTaken = 0
	e.lastAction = 0
	e.stickyRNG = rand.New(rand.NewSource(seed + 1))

	return e.observe(), nil
}

// Step advances the world. The action is applied Frameskip times with
// rewards summed; with RepeatActionPct probability the previous action is
// repeated instead of the requested one (sticky actions).
func (e *Env) Step(action int) (sim.StepResult, error) {
	if e.closed {
		return sim.StepResult{}, fmt.Errorf("step on closed environment")
	}
	if e.cells == nil {
		return sim.StepResult{}, fmt.Errorf("step before reset")
	}
	if action < 0 || action >= len(actionNames) {
		return sim.StepResult{}, fmt.Errorf("action %d outside [0, %d)", action, len(actionNames))
	}

	effective := action
	if e.cfg.RepeatActionPct > 0 && e.stickyRNG.Float64() < e.cfg.RepeatActionPct {
		effective = e.lastAction
	}
	e.lastAction = effective

	reward := 0.0
	terminated := false
	for i := 0; i < e.cfg.Frameskip && !terminated; i++ {
		nx := e.agentX + moves[effective][0]
		ny := e.agentY + moves[effective][1]
		if e.cells[ny*e.cfg.Width+nx] != cellWall {
			e.agentX = nx
			e.agentY = ny
		}
		idx := e.agentY*e.cfg.Width + e.agentX
		if e.cells[idx] == cellPellet {
			e.cells[idx] = cellEmpty
			e.remaining--
			reward += 1.0
		}
		terminated = e.remaining == 0
	}

	e.stepsTaken++
	truncated := !terminated && e.stepsTaken >= e.cfg.EpisodeStepCap

	return sim.StepResult{
		Obs:        e.observe(),
		Reward:     reward,
		Terminated: terminated,
		Truncated:  truncated,
		Info:       map[string]string{"pellets_remaining": fmt.Sprintf("%d", e.remaining)},
	}, nil
}

// Close releases the environment. Further Reset/Step calls fail.
func (e *Env) Close() error {
	e.closed = true
	return nil
}

// ActionCount reports the discrete action-space cardinality.
func (e *Env) ActionCount() int { return len(actionNames) }

// ActionNames reports the symbolic action vocabulary in index order.
func (e *Env) ActionNames() []string {
	return append([]string(nil), actionNames...)
}

// RenderFrame exposes the RGB view regardless of the configured observation
// mode, for downstream video export.
func (e *Env) RenderFrame() (sim.Observation, error) {
	if e.cells == nil {
		return sim.Observation{}, fmt.Errorf("render before reset")
	}
	return e.pixels(), nil
}

func (e *Env) observe() sim.Observation {
	if e.cfg.Pixels {
		return e.pixels()
	}
	data := append([]byte(nil), e.cells...)
	data[e.agentY*e.cfg.Width+e.agentX] = cellAgent
	return sim.Observation{Shape: []int{e.cfg.Height, e.cfg.Width}, Data: data}
}

// palette maps cell codes to RGB triples.
var palette = [4][3]byte{
	cellEmpty:  {0, 0, 0},
	cellWall:   {96, 96, 96},
	cellPellet: {255, 215, 0},
	cellAgent:  {0, 200, 255},
}

func (e *Env) pixels() sim.Observation {
	data := make([]byte, e.cfg.Width*e.cfg.Height*3)
	for i, cell := range e.cells {
		c := palette[cell]
		data[i*3] = c[0]
		data[i*3+1] = c[1]
		data[i*3+2] = c[2]
	}
	agent := (e.agentY*e.cfg.Width + e.agentX) * 3
	data[agent] = palette[cellAgent][0]
	data[agent+1] = palette[cellAgent][1]
	data[agent+2] = palette[cellAgent][2]
	return sim.Observation{Shape: []int{e.cfg.Height, e.cfg.Width, 3}, Data: data}
}
