package registry

import (
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tiger/sim-replay-harness/api/trace"
	"github.com/tiger/sim-replay-harness/internal/sim"
	"github.com/tiger/sim-replay-harness/internal/sim/gridworld"
	"github.com/tiger/sim-replay-harness/internal/sim/remote"
)

func TestBuiltinSpecs(t *testing.T) {
	t.Parallel()

	r := Builtin()
	specs := r.List()
	if len(specs) != 2 {
		t.Fatalf("expected 2 built-in environments, got %d", len(specs))
	}
	if specs[0].Key != "gridworld" || specs[1].Key != "gridworld-rgb" {
		t.Fatalf("expected sorted built-in keys, got %v", r.Keys())
	}
	if specs[0].ObsType != trace.ObsState || specs[1].ObsType != trace.ObsPixels {
		t.Fatalf("unexpected obs types: %+v", specs)
	}
}

func TestMakeUnknownKeyNamesValidChoices(t *testing.T) {
	t.Parallel()

	r := Builtin()
	_, _, err := r.Make("pacman", Options{})
	if err == nil {
		t.Fatalf("expected unknown key to fail")
	}
	for _, key := range r.Keys() {
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("expected error to name %q, got %v", key, err)
		}
	}
}

func TestMakeConstructsFreshInstances(t *testing.T) {
	t.Parallel()

	r := Builtin()
	spec, first, err := r.Make("gridworld", Options{Frameskip: 1})
	if err != nil {
		t.Fatalf("unexpected make error: %v", err)
	}
	defer first.Close()
	if spec.EnvID != "gridworld/Collector-v0" {
		t.Fatalf("unexpected env id %q", spec.EnvID)
	}

	_, second, err := r.Make("gridworld", Options{Frameskip: 1})
	if err != nil {
		t.Fatalf("unexpected make error: %v", err)
	}
	defer second.Close()
	if first == second {
		t.Fatalf("expected independent environment instances")
	}
}

func TestMakeByIDResolvesReplayPath(t *testing.T) {
	t.Parallel()

	r := Builtin()
	env, err := r.MakeByID("gridworld/Collector-rgb-v0", Options{Frameskip: 2})
	if err != nil {
		t.Fatalf("unexpected make error: %v", err)
	}
	defer env.Close()

	obs, err := env.Reset(5)
	if err != nil {
		t.Fatalf("unexpected reset error: %v", err)
	}
	if len(obs.Shape) != 3 {
		t.Fatalf("expected pixel observation, got shape %v", obs.Shape)
	}

	if _, err := r.MakeByID("gridworld/NoSuch-v9", Options{}); err == nil {
		t.Fatalf("expected unknown env id to fail")
	}
}

func TestDefaultFrameskipAppliedWhenUnset(t *testing.T) {
	t.Parallel()

	r := Builtin()
	_, env, err := r.Make("gridworld", Options{})
	if err != nil {
		t.Fatalf("unexpected make error: %v", err)
	}
	defer env.Close()

	// Frameskip defaults must match the artifact-side default so older
	// artifacts replay against identical step semantics.
	if trace.DefaultFrameskip != 4 {
		t.Fatalf("expected default frameskip 4, got %d", trace.DefaultFrameskip)
	}
}

func TestLoadCatalogAddsRemoteEnvironment(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(remote.NewHandler(func(key string, frameskip int, sticky float64) (sim.Environment, error) {
		if key != "grid" {
			return nil, fmt.Errorf("unknown environment %q", key)
		}
		cfg := gridworld.DefaultConfig()
		cfg.Frameskip = frameskip
		cfg.RepeatActionPct = sticky
		return gridworld.New(cfg)
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/session?env=grid"
	catalog := fmt.Sprintf(`environments:
  - key: grid-remote
    env_id: remote/Grid-v0
    obs_type: state
    description: gridworld behind the wire
    url: %s
`, url)
	path := filepath.Join(t.TempDir(), "envs.yaml")
	if err := os.WriteFile(path, []byte(catalog), 0o644); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}

	r := Builtin()
	if err := r.LoadCatalog(path); err != nil {
		t.Fatalf("unexpected catalog error: %v", err)
	}

	spec, env, err := r.Make("grid-remote", Options{Frameskip: 1})
	if err != nil {
		t.Fatalf("unexpected make error: %v", err)
	}
	defer env.Close()
	if spec.EnvID != "remote/Grid-v0" {
		t.Fatalf("unexpected env id %q", spec.EnvID)
	}

	obs, err := env.Reset(9)
	if err != nil {
		t.Fatalf("unexpected reset error: %v", err)
	}
	if len(obs.Data) == 0 {
		t.Fatalf("expected remote observation bytes")
	}
}

func TestLoadCatalogRejectsShadowingAndBadEntries(t *testing.T) {
	t.Parallel()

	writeCatalog := func(t *testing.T, body string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "envs.yaml")
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("unexpected write error: %v", err)
		}
		return path
	}

	shadow := writeCatalog(t, `environments:
  - key: gridworld
    env_id: remote/Grid-v0
    obs_type: state
    url: ws://localhost/session
`)
	if err := Builtin().LoadCatalog(shadow); err == nil {
		t.Fatalf("expected shadowing entry to fail")
	}

	missingURL := writeCatalog(t, `environments:
  - key: other
    env_id: remote/Other-v0
    obs_type: state
`)
	if err := Builtin().LoadCatalog(missingURL); err == nil {
		t.Fatalf("expected entry without url to fail")
	}

	badObs := writeCatalog(t, `environments:
  - key: other
    env_id: remote/Other-v0
    obs_type: ram
    url: ws://localhost/session
`)
	if err := Builtin().LoadCatalog(badObs); err == nil {
		t.Fatalf("expected bad obs_type to fail")
	}
}
