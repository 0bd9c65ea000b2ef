// Package record drives an environment and a policy to produce a
// reproducible action trace, a per-step telemetry ledger, and the immutable
// run artifact the replay side verifies against.
package record

import (
	"fmt"
	"time"

	"github.com/tiger/sim-replay-harness/api/trace"
	"github.com/tiger/sim-replay-harness/internal/fingerprint"
	"github.com/tiger/sim-replay-harness/internal/ledger"
	"github.com/tiger/sim-replay-harness/internal/policy"
	"github.com/tiger/sim-replay-harness/internal/seedsched"
	"github.com/tiger/sim-replay-harness/internal/sim"
)

// Recorder owns one environment handle and one policy instance for the full
// lifetime of a single recording. Neither may be shared with another run.
type Recorder struct {
	Env    sim.Environment
	Policy policy.Policy
	// Ledger receives one telemetry row per recorded step; nil disables
	// telemetry.
	Ledger *ledger.Writer
	// Now stamps the artifact creation time; defaults to time.Now.
	Now func() time.Time
}

// Run records up to spec.Steps steps and returns the run artifact. The
// environment is closed exactly once on every exit path, including early
// single-episode termination and step failures.
func (r *Recorder) Run(runID string, spec trace.RunSpec) (artifact trace.RunArtifact, err error) {
	defer func() {
		if closeErr := r.Env.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close environment: %w", closeErr)
		}
	}()

	if runID == "" {
		return trace.RunArtifact{}, fmt.Errorf("run id is required")
	}
	if err := spec.Validate(); err != nil {
		return trace.RunArtifact{}, fmt.Errorf("run spec: %w", err)
	}

	actionNames := r.Env.ActionNames()
	if len(actionNames) == 0 {
		actionNames = sim.FallbackActionNames(r.Env.ActionCount())
	}
	r.Policy.Reset(spec.Seed, actionNames, r.Env.ActionCount())

	obs, err := r.Env.Reset(seedsched.First(spec.Seed))
	if err != nil {
		return trace.RunArtifact{}, fmt.Errorf("initial reset: %w", err)
	}

	actions := make([]int, 0, spec.Steps)
	totalReward := 0.0
	episodeReturn := 0.0
	episodeID := 0
	episodeStep := 0
	lastReward := 0.0
	lastDone := false

	for step := 0; step < spec.Steps; step++ {
		action := r.Policy.Act(step, obs, lastReward, lastDone)
		actions = append(actions, action)

		started := time.Now()
		res, err := r.Env.Step(action)
		if err != nil {
			return trace.RunArtifact{}, fmt.Errorf("step %d: %w", step, err)
		}
		wallMS := float64(time.Since(started)) / float64(time.Millisecond)

		obs = res.Obs
		totalReward += res.Reward
		episodeReturn += res.Reward
		done := res.Done()
		lastReward = res.Reward
		lastDone = done

		if r.Ledger != nil {
			rec := ledger.StepRecord{
				EpisodeID:     episodeID,
				EpisodeStep:   episodeStep,
				Step:          step,
				Action:        action,
				Reward:        res.Reward,
				Terminated:    res.Terminated,
				Truncated:     res.Truncated,
				Done:          done,
				EpisodeReturn: episodeReturn,
				ObsHash:       fingerprint.Sum(obs),
				WallMS:        wallMS,
			}
			if err := r.Ledger.Append(rec); err != nil {
				return trace.RunArtifact{}, err
			}
		}

		episodeStep++

		if done {
			if spec.SingleEpisode {
				break
			}
			obs, err = r.Env.Reset(seedsched.Next(spec.Seed, step))
			if err != nil {
				return trace.RunArtifact{}, fmt.Errorf("reset after done at step %d: %w", step, err)
			}
			episodeID++
			episodeStep = 0
			episodeReturn = 0.0
			lastReward = 0.0
			lastDone = false
		}
	}

	if r.Ledger != nil {
		if err := r.Ledger.Flush(); err != nil {
			return trace.RunArtifact{}, err
		}
	}

	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	artifact = trace.RunArtifact{
		RunID:        runID,
		CreatedUnixS: float64(now().UnixNano()) / 1e9,
		Spec:         spec,
		Actions:      actions,
		TotalReward:  totalReward,
		// The fingerprint covers whatever observation is current at loop
		// exit: the post-reset observation when a multi-episode run's last
		// budgeted step ended an episode, the pre-reset done observation
		// for a single-episode stop.
		FinalObsHash: fingerprint.Sum(obs),
	}
	if err := artifact.Validate(); err != nil {
		return trace.RunArtifact{}, fmt.Errorf("recorded artifact invalid: %w", err)
	}
	return artifact, nil
}
