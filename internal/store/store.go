// Package store persists run directories and artifact documents. The
// artifact file is the wire contract between the recording and replay
// processes; loading validates documents against both typed rules and an
// embedded JSON schema before substituting documented defaults for optional
// spec fields.
package store

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/tiger/sim-replay-harness/api/trace"
)

// ArtifactFileName is the artifact document name inside a run directory.
const ArtifactFileName = "run.json"

// LedgerFileName is the telemetry ledger name inside a run directory.
const LedgerFileName = "telemetry.csv"

//go:embed runartifact.schema.json
var artifactSchemaJSON string

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

// FormatError reports an artifact document missing a required field with no
// documented default, or carrying an unusable value.
type FormatError struct {
	Field  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("artifact format: field %s: %s", e.Field, e.Reason)
}

// NewRunID returns a globally unique, time-ordered run identifier:
// a UTC timestamp prefix plus an 8-hex-char random suffix, collision
// resistant across uncoordinated concurrent processes.
func NewRunID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return now.UTC().Format("20060102-150405") + "-" + suffix
}

// CreateRunDir creates <runsDir>/<runID>, failing if the directory already
// exists so two runs can never share an artifact location.
func CreateRunDir(runsDir, runID string) (string, error) {
	if err := os.MkdirAll(runsDir, 0o755); err != nil {
		return "", fmt.Errorf("create runs dir %s: %w", runsDir, err)
	}
	dir := filepath.Join(runsDir, runID)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", fmt.Errorf("create run dir %s: %w", dir, err)
	}
	return dir, nil
}

// WriteArtifact persists the artifact document into the run directory.
func WriteArtifact(runDir string, artifact trace.RunArtifact) error {
	if err := artifact.Validate(); err != nil {
		return fmt.Errorf("artifact invalid before write: %w", err)
	}
	raw, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	raw = append(raw, '\n')
	path := filepath.Join(runDir, ArtifactFileName)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write artifact %s: %w", path, err)
	}
	return nil
}

// artifactDoc mirrors the wire document with optionality made explicit so
// missing fields can be named precisely.
type artifactDoc struct {
	RunID        *string  `json:"run_id"`
	CreatedUnixS *float64 `json:"created_unix_s"`
	Spec         *specDoc `json:"spec"`
	Actions      *[]int   `json:"actions"`
	TotalReward  *float64 `json:"total_reward"`
	FinalObsHash *string  `json:"final_obs_hash"`
}

type specDoc struct {
	EnvKey                  *string  `json:"env_key"`
	EnvID                   *string  `json:"env_id"`
	ObsType                 *string  `json:"obs_type"`
	Seed                    *int64   `json:"seed"`
	Steps                   *int     `json:"steps"`
	Policy                  *string  `json:"policy"`
	Frameskip               *int     `json:"frameskip"`
	RepeatActionProbability *float64 `json:"repeat_action_probability"`
	SingleEpisode           *bool    `json:"single_episode"`
}

// LoadArtifact reads and validates an artifact document, substituting
// documented defaults for optional spec fields absent in older artifacts.
func LoadArtifact(path string) (trace.RunArtifact, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return trace.RunArtifact{}, fmt.Errorf("read artifact %s: %w", path, err)
	}
	return ParseArtifact(raw)
}

// ParseArtifact validates and decodes a raw artifact document. Missing
// required fields are reported as FormatError before schema validation so
// the offending field is always named.
func ParseArtifact(raw []byte) (trace.RunArtifact, error) {
	var doc artifactDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return trace.RunArtifact{}, fmt.Errorf("decode artifact: %w", err)
	}

	missing := firstMissingField(doc)
	if missing != "" {
		return trace.RunArtifact{}, &FormatError{Field: missing, Reason: "required field absent"}
	}

	if err := validateAgainstSchema(raw); err != nil {
		return trace.RunArtifact{}, err
	}

	spec := trace.RunSpec{
		EnvKey:                  *doc.Spec.EnvKey,
		EnvID:                   *doc.Spec.EnvID,
		ObsType:                 trace.ObsType(*doc.Spec.ObsType),
		Seed:                    *doc.Spec.Seed,
		Steps:                   *doc.Spec.Steps,
		Policy:                  *doc.Spec.Policy,
		Frameskip:               trace.DefaultFrameskip,
		RepeatActionProbability: trace.DefaultRepeatActionProbability,
	}
	if doc.Spec.Frameskip != nil {
		spec.Frameskip = *doc.Spec.Frameskip
	}
	if doc.Spec.RepeatActionProbability != nil {
		spec.RepeatActionProbability = *doc.Spec.RepeatActionProbability
	}
	if doc.Spec.SingleEpisode != nil {
		spec.SingleEpisode = *doc.Spec.SingleEpisode
	}

	artifact := trace.RunArtifact{
		RunID:        *doc.RunID,
		CreatedUnixS: *doc.CreatedUnixS,
		Spec:         spec,
		Actions:      *doc.Actions,
		TotalReward:  *doc.TotalReward,
		FinalObsHash: *doc.FinalObsHash,
	}
	if err := artifact.Validate(); err != nil {
		return trace.RunArtifact{}, fmt.Errorf("artifact invalid: %w", err)
	}
	return artifact, nil
}

func firstMissingField(doc artifactDoc) string {
	switch {
	case doc.RunID == nil:
		return "run_id"
	case doc.CreatedUnixS == nil:
		return "created_unix_s"
	case doc.Spec == nil:
		return "spec"
	case doc.Spec.EnvKey == nil:
		return "spec.env_key"
	case doc.Spec.EnvID == nil:
		return "spec.env_id"
	case doc.Spec.ObsType == nil:
		return "spec.obs_type"
	case doc.Spec.Seed == nil:
		return "spec.seed"
	case doc.Spec.Steps == nil:
		return "spec.steps"
	case doc.Spec.Policy == nil:
		return "spec.policy"
	case doc.Actions == nil:
		return "actions"
	case doc.TotalReward == nil:
		return "total_reward"
	case doc.FinalObsHash == nil:
		return "final_obs_hash"
	}
	return ""
}

func validateAgainstSchema(raw []byte) error {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("runartifact.schema.json", strings.NewReader(artifactSchemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add artifact schema resource: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile("runartifact.schema.json")
	})
	if schemaErr != nil {
		return schemaErr
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("decode artifact: %w", err)
	}
	if err := schema.Validate(payload); err != nil {
		return fmt.Errorf("artifact schema: %w", err)
	}
	return nil
}
