// Package sim defines the environment collaborator surface the harness
// drives. Environments are external stateful simulators; the harness only
// resets, steps, and closes them.
package sim

import "strconv"

// Observation is a dense row-major tensor snapshot of the environment state.
type Observation struct {
	Shape []int
	Data  []byte
}

// Clone returns a detached copy of the observation.
func (o Observation) Clone() Observation {
	return Observation{
		Shape: append([]int(nil), o.Shape...),
		Data:  append([]byte(nil), o.Data...),
	}
}

// StepResult carries the outcome of a single environment step.
type StepResult struct {
	Obs        Observation
	Reward     float64
	Terminated bool
	Truncated  bool
	Info       map[string]string
}

// Done reports whether the episode ended on this step.
func (r StepResult) Done() bool {
	return r.Terminated || r.Truncated
}

// Environment is the minimal stable simulator interface. Reset and Step are
// synchronous, bounded-latency calls; Close must be safe to call exactly
// once per acquired instance.
type Environment interface {
	Reset(seed int64) (Observation, error)
	Step(action int) (StepResult, error)
	Close() error
	ActionCount() int
	ActionNames() []string
}

// FrameRenderer is an optional environment capability exposing renderable
// pixel frames for downstream video export. Not consumed by the core loops.
type FrameRenderer interface {
	RenderFrame() (Observation, error)
}

// FallbackActionNames returns stringified indices for environments that do
// not expose symbolic action names.
func FallbackActionNames(actionCount int) []string {
	names := make([]string, actionCount)
	for i := range names {
		names[i] = strconv.Itoa(i)
	}
	return names
}
