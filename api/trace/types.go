// Package trace defines the persisted wire contract between the recording
// and replay processes. Field names are stable; replay must tolerate older
// documents missing optional spec fields by substituting the documented
// defaults.
package trace

import "fmt"

// ObsType classifies the observation tensor an environment emits.
type ObsType string

const (
	ObsPixels ObsType = "pixels"
	ObsState  ObsType = "state"
)

const (
	// DefaultFrameskip is substituted when an artifact spec omits frameskip.
	DefaultFrameskip = 4
	// DefaultRepeatActionProbability is substituted when an artifact spec
	// omits repeat_action_probability.
	DefaultRepeatActionProbability = 0.0
)

// RunSpec is the immutable intended configuration of one recording. It is
// written once at record time and never mutated.
type RunSpec struct {
	EnvKey                  string  `json:"env_key"`
	EnvID                   string  `json:"env_id"`
	ObsType                 ObsType `json:"obs_type"`
	Seed                    int64   `json:"seed"`
	Steps                   int     `json:"steps"`
	Policy                  string  `json:"policy"`
	Frameskip               int     `json:"frameskip"`
	RepeatActionProbability float64 `json:"repeat_action_probability"`
	SingleEpisode           bool    `json:"single_episode"`
}

// Validate enforces the run spec contract.
func (s RunSpec) Validate() error {
	if s.EnvKey == "" {
		return fmt.Errorf("env_key is required")
	}
	if s.EnvID == "" {
		return fmt.Errorf("env_id is required")
	}
	if s.ObsType != ObsPixels && s.ObsType != ObsState {
		return fmt.Errorf("obs_type must be %q or %q, got %q", ObsPixels, ObsState, s.ObsType)
	}
	if s.Steps <= 0 {
		return fmt.Errorf("steps must be > 0")
	}
	if s.Policy == "" {
		return fmt.Errorf("policy is required")
	}
	if s.Frameskip < 1 {
		return fmt.Errorf("frameskip must be >= 1")
	}
	if s.RepeatActionProbability < 0 || s.RepeatActionProbability > 1 {
		return fmt.Errorf("repeat_action_probability must be within [0,1]")
	}
	return nil
}

// RunArtifact is the immutable record of one recording. Replaying
// len(Actions) steps under the same seed schedule must reproduce
// TotalReward and FinalObsHash exactly.
type RunArtifact struct {
	RunID        string  `json:"run_id"`
	CreatedUnixS float64 `json:"created_unix_s"`
	Spec         RunSpec `json:"spec"`
	Actions      []int   `json:"actions"`
	TotalReward  float64 `json:"total_reward"`
	FinalObsHash string  `json:"final_obs_hash"`
}

// Validate enforces the artifact contract.
func (a RunArtifact) Validate() error {
	if a.RunID == "" {
		return fmt.Errorf("run_id is required")
	}
	if a.CreatedUnixS <= 0 {
		return fmt.Errorf("created_unix_s must be > 0")
	}
	if err := a.Spec.Validate(); err != nil {
		return fmt.Errorf("spec: %w", err)
	}
	if len(a.Actions) == 0 {
		return fmt.Errorf("actions must not be empty")
	}
	for i, action := range a.Actions {
		if action < 0 {
			return fmt.Errorf("actions[%d] must be >= 0, got %d", i, action)
		}
	}
	if len(a.FinalObsHash) != 64 {
		return fmt.Errorf("final_obs_hash must be a 64-char hex digest, got %d chars", len(a.FinalObsHash))
	}
	return nil
}
