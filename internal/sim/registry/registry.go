// Package registry resolves environment keys to constructed simulator
// instances. Built-in gridworld variants are always present; a YAML catalog
// can add remote environments served over the WebSocket transport.
package registry

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tiger/sim-replay-harness/api/trace"
	"github.com/tiger/sim-replay-harness/internal/sim"
	"github.com/tiger/sim-replay-harness/internal/sim/gridworld"
	"github.com/tiger/sim-replay-harness/internal/sim/remote"
)

// EnvSpec describes one registered environment.
type EnvSpec struct {
	Key         string        `yaml:"key"`
	EnvID       string        `yaml:"env_id"`
	ObsType     trace.ObsType `yaml:"obs_type"`
	Description string        `yaml:"description"`
	// URL, when set, marks a remote environment reachable over the
	// WebSocket transport.
	URL string `yaml:"url"`
}

// Options carry the step parameters applied at environment construction.
type Options struct {
	Frameskip               int
	RepeatActionProbability float64
}

func (o Options) normalized() Options {
	if o.Frameskip < 1 {
		o.Frameskip = trace.DefaultFrameskip
	}
	return o
}

// Registry maps environment keys to specs. The mapping is built once at
// process start and treated as immutable afterwards.
type Registry struct {
	specs map[string]EnvSpec
}

// Builtin returns a registry holding the built-in environments.
func Builtin() *Registry {
	r := &Registry{specs: map[string]EnvSpec{}}
	r.specs["gridworld"] = EnvSpec{
		Key:         "gridworld",
		EnvID:       "gridworld/Collector-v0",
		ObsType:     trace.ObsState,
		Description: "Pellet-collection gridworld (cell-code state)",
	}
	r.specs["gridworld-rgb"] = EnvSpec{
		Key:         "gridworld-rgb",
		EnvID:       "gridworld/Collector-rgb-v0",
		ObsType:     trace.ObsPixels,
		Description: "Pellet-collection gridworld (RGB pixels)",
	}
	return r
}

type catalogFile struct {
	Environments []EnvSpec `yaml:"environments"`
}

// LoadCatalog merges environments from a YAML catalog file. Catalog entries
// may not shadow built-in keys.
func (r *Registry) LoadCatalog(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read env catalog %s: %w", path, err)
	}
	var catalog catalogFile
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return fmt.Errorf("parse env catalog %s: %w", path, err)
	}
	for _, spec := range catalog.Environments {
		if spec.Key == "" || spec.EnvID == "" || spec.URL == "" {
			return fmt.Errorf("env catalog %s: key, env_id, and url are required per entry", path)
		}
		if spec.ObsType != trace.ObsPixels && spec.ObsType != trace.ObsState {
			return fmt.Errorf("env catalog %s: entry %s: obs_type must be pixels|state", path, spec.Key)
		}
		if _, exists := r.specs[spec.Key]; exists {
			return fmt.Errorf("env catalog %s: entry %s shadows an existing environment", path, spec.Key)
		}
		r.specs[spec.Key] = spec
	}
	return nil
}

// List returns all specs sorted by key.
func (r *Registry) List() []EnvSpec {
	out := make([]EnvSpec, 0, len(r.specs))
	for _, spec := range r.specs {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Keys returns the sorted registered environment keys.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.specs))
	for key := range r.specs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Spec resolves the spec for a key. Unknown keys fail naming the valid set.
func (r *Registry) Spec(key string) (EnvSpec, error) {
	spec, ok := r.specs[key]
	if !ok {
		return EnvSpec{}, fmt.Errorf("unknown environment %q, valid: %s", key, strings.Join(r.Keys(), ", "))
	}
	return spec, nil
}

// Make constructs a fresh environment for the keyed spec. The caller owns
// the returned instance and must close it exactly once.
func (r *Registry) Make(key string, opts Options) (EnvSpec, sim.Environment, error) {
	spec, err := r.Spec(key)
	if err != nil {
		return EnvSpec{}, nil, err
	}
	env, err := r.construct(spec, opts.normalized())
	if err != nil {
		return EnvSpec{}, nil, err
	}
	return spec, env, nil
}

// MakeByID constructs an environment from its environment identifier, the
// replay-side resolution path (artifacts embed env_id, not a registry key).
func (r *Registry) MakeByID(envID string, opts Options) (sim.Environment, error) {
	for _, spec := range r.specs {
		if spec.EnvID == envID {
			return r.construct(spec, opts.normalized())
		}
	}
	ids := make([]string, 0, len(r.specs))
	for _, spec := range r.specs {
		ids = append(ids, spec.EnvID)
	}
	sort.Strings(ids)
	return nil, fmt.Errorf("unknown environment id %q, valid: %s", envID, strings.Join(ids, ", "))
}

func (r *Registry) construct(spec EnvSpec, opts Options) (sim.Environment, error) {
	if spec.URL != "" {
		env, err := remote.Dial(spec.URL, remote.Options{
			Frameskip:               opts.Frameskip,
			RepeatActionProbability: opts.RepeatActionProbability,
		})
		if err != nil {
			return nil, fmt.Errorf("dial remote environment %s: %w", spec.Key, err)
		}
		return env, nil
	}

	cfg := gridworld.DefaultConfig()
	cfg.Pixels = spec.ObsType == trace.ObsPixels
	cfg.Frameskip = opts.Frameskip
	cfg.RepeatActionPct = opts.RepeatActionProbability
	env, err := gridworld.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("construct %s: %w", spec.Key, err)
	}
	return env, nil
}
