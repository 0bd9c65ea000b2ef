package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/tiger/sim-replay-harness/api/trace"
)

func sampleArtifact() trace.RunArtifact {
	return trace.RunArtifact{
		RunID:        "20260101-120000-abcd1234",
		CreatedUnixS: 1767268800.25,
		Spec: trace.RunSpec{
			EnvKey:                  "gridworld",
			EnvID:                   "gridworld/Collector-v0",
			ObsType:                 trace.ObsState,
			Seed:                    123,
			Steps:                   500,
			Policy:                  "random",
			Frameskip:               4,
			RepeatActionProbability: 0.25,
			SingleEpisode:           true,
		},
		Actions:      []int{1, 2, 3, 0, 4},
		TotalReward:  6.5,
		FinalObsHash: strings.Repeat("0f", 32),
	}
}

func TestNewRunIDFormatAndUniqueness(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 28, 9, 30, 15, 0, time.UTC)
	pattern := regexp.MustCompile(`^20260828-093015-[0-9a-f]{8}$`)

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewRunID(now)
		if !pattern.MatchString(id) {
			t.Fatalf("expected time-ordered id with random suffix, got %q", id)
		}
		if seen[id] {
			t.Fatalf("expected unique run ids, got duplicate %q", id)
		}
		seen[id] = true
	}
}

func TestCreateRunDirRefusesReuse(t *testing.T) {
	t.Parallel()

	runsDir := t.TempDir()
	dir, err := CreateRunDir(runsDir, "run-a")
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	if dir != filepath.Join(runsDir, "run-a") {
		t.Fatalf("unexpected run dir %q", dir)
	}
	if _, err := CreateRunDir(runsDir, "run-a"); err == nil {
		t.Fatalf("expected reuse of a run dir to fail")
	}
}

func TestArtifactRoundTrip(t *testing.T) {
	t.Parallel()

	runDir := t.TempDir()
	artifact := sampleArtifact()
	if err := WriteArtifact(runDir, artifact); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}

	loaded, err := LoadArtifact(filepath.Join(runDir, ArtifactFileName))
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if loaded.RunID != artifact.RunID || loaded.TotalReward != artifact.TotalReward || loaded.FinalObsHash != artifact.FinalObsHash {
		t.Fatalf("expected round-trip identity, got %+v", loaded)
	}
	if loaded.Spec != artifact.Spec {
		t.Fatalf("expected spec round-trip identity, got %+v", loaded.Spec)
	}
	if len(loaded.Actions) != len(artifact.Actions) {
		t.Fatalf("expected %d actions, got %d", len(artifact.Actions), len(loaded.Actions))
	}
}

func TestParseArtifactSubstitutesDefaults(t *testing.T) {
	t.Parallel()

	doc := map[string]any{
		"run_id":         "20260101-120000-abcd1234",
		"created_unix_s": 1767268800.0,
		"spec": map[string]any{
			"env_key":  "gridworld",
			"env_id":   "gridworld/Collector-v0",
			"obs_type": "state",
			"seed":     123,
			"steps":    500,
			"policy":   "random",
		},
		"actions":        []int{0, 1},
		"total_reward":   1.0,
		"final_obs_hash": strings.Repeat("ab", 32),
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("unexpected marshal error: %v", err)
	}

	artifact, err := ParseArtifact(raw)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if artifact.Spec.Frameskip != trace.DefaultFrameskip {
		t.Fatalf("expected default frameskip %d, got %d", trace.DefaultFrameskip, artifact.Spec.Frameskip)
	}
	if artifact.Spec.RepeatActionProbability != trace.DefaultRepeatActionProbability {
		t.Fatalf("expected default repeat probability, got %f", artifact.Spec.RepeatActionProbability)
	}
	if artifact.Spec.SingleEpisode {
		t.Fatalf("expected single_episode default false")
	}
}

func TestParseArtifactNamesMissingRequiredField(t *testing.T) {
	t.Parallel()

	cases := []struct {
		field  string
		remove func(map[string]any)
	}{
		{field: "run_id", remove: func(d map[string]any) { delete(d, "run_id") }},
		{field: "total_reward", remove: func(d map[string]any) { delete(d, "total_reward") }},
		{field: "final_obs_hash", remove: func(d map[string]any) { delete(d, "final_obs_hash") }},
		{field: "spec.seed", remove: func(d map[string]any) { delete(d["spec"].(map[string]any), "seed") }},
		{field: "spec.env_id", remove: func(d map[string]any) { delete(d["spec"].(map[string]any), "env_id") }},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.field, func(t *testing.T) {
			t.Parallel()

			doc := map[string]any{}
			raw, _ := json.Marshal(sampleArtifact())
			if err := json.Unmarshal(raw, &doc); err != nil {
				t.Fatalf("unexpected unmarshal error: %v", err)
			}
			tc.remove(doc)
			mutated, err := json.Marshal(doc)
			if err != nil {
				t.Fatalf("unexpected marshal error: %v", err)
			}

			_, err = ParseArtifact(mutated)
			var formatErr *FormatError
			if !errors.As(err, &formatErr) {
				t.Fatalf("expected FormatError, got %v", err)
			}
			if formatErr.Field != tc.field {
				t.Fatalf("expected offending field %q, got %q", tc.field, formatErr.Field)
			}
		})
	}
}

func TestParseArtifactRejectsSchemaViolations(t *testing.T) {
	t.Parallel()

	doc := map[string]any{}
	raw, _ := json.Marshal(sampleArtifact())
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unexpected unmarshal error: %v", err)
	}
	doc["final_obs_hash"] = "not-a-digest"
	mutated, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("unexpected marshal error: %v", err)
	}
	if _, err := ParseArtifact(mutated); err == nil {
		t.Fatalf("expected malformed digest to fail schema validation")
	}
}

func TestLoadArtifactMissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadArtifact(filepath.Join(t.TempDir(), "absent", ArtifactFileName))
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
