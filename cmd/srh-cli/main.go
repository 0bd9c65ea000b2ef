package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/tiger/sim-replay-harness/api/trace"
	"github.com/tiger/sim-replay-harness/internal/config"
	"github.com/tiger/sim-replay-harness/internal/ledger"
	"github.com/tiger/sim-replay-harness/internal/policy"
	"github.com/tiger/sim-replay-harness/internal/record"
	"github.com/tiger/sim-replay-harness/internal/replay"
	"github.com/tiger/sim-replay-harness/internal/sim/registry"
	"github.com/tiger/sim-replay-harness/internal/store"
	"github.com/tiger/sim-replay-harness/internal/store/index"
)

// Exit codes. Divergence gets its own code so automation can tell a failed
// determinism check apart from a broken invocation.
const (
	exitOK       = 0
	exitError    = 1
	exitMismatch = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return exitError
	}

	switch args[0] {
	case "help", "-h", "--help":
		printUsage(stdout)
		return exitOK
	case "record":
		return runRecord(args[1:], stdout, stderr)
	case "replay":
		return runReplay(args[1:], stdout, stderr)
	case "list-envs":
		return runListEnvs(args[1:], stdout, stderr)
	case "list-policies":
		return runListPolicies(stdout)
	case "list-runs":
		return runListRuns(stdout, stderr)
	default:
		fmt.Fprintf(stderr, "srh-cli: unknown command %q\n", args[0])
		printUsage(stderr)
		return exitError
	}
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "srh-cli usage:")
	_, _ = fmt.Fprintln(w, "  srh-cli record -env <key> -seed <n> -steps <n> [-policy <name>] [-frameskip <n>] [-sticky <p>] [-single-episode] [-runs-dir <dir>]")
	_, _ = fmt.Fprintln(w, "  srh-cli replay -run <run-id | path/to/run.json> [-runs-dir <dir>]")
	_, _ = fmt.Fprintln(w, "  srh-cli list-envs")
	_, _ = fmt.Fprintln(w, "  srh-cli list-policies")
	_, _ = fmt.Fprintln(w, "  srh-cli list-runs")
	_, _ = fmt.Fprintln(w, "Environment: SRH_RUNS_DIR, SRH_INDEX_PATH, SRH_ENV_CATALOG")
}

// loadConfig resolves the SRH_* environment and applies the -runs-dir
// override, which relocates the derived index as well.
func loadConfig(runsDirOverride string) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if runsDirOverride != "" {
		cfg.RunsDir = runsDirOverride
		cfg.IndexPath = filepath.Join(runsDirOverride, "runs.db")
	}
	return cfg, nil
}

func loadRegistry(cfg config.Config) (*registry.Registry, error) {
	reg := registry.Builtin()
	if cfg.EnvCatalog != "" {
		if err := reg.LoadCatalog(cfg.EnvCatalog); err != nil {
			return nil, fmt.Errorf("load environment catalog: %w", err)
		}
	}
	return reg, nil
}

func runRecord(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("record", flag.ContinueOnError)
	fs.SetOutput(stderr)
	envKey := fs.String("env", "gridworld", "environment key to record")
	seed := fs.Int64("seed", 0, "base seed for the run's seed schedule")
	steps := fs.Int("steps", 1000, "step budget for the run")
	policyName := fs.String("policy", "random", "action policy name")
	frameskip := fs.Int("frameskip", trace.DefaultFrameskip, "frames advanced per action")
	repeatProb := fs.Float64("sticky", trace.DefaultRepeatActionProbability, "sticky-action repeat probability")
	singleEpisode := fs.Bool("single-episode", false, "stop at the first episode end")
	runsDir := fs.String("runs-dir", "", "override the runs directory")
	if err := fs.Parse(args); err != nil {
		return exitError
	}

	cfg, err := loadConfig(*runsDir)
	if err != nil {
		fmt.Fprintf(stderr, "srh-cli: %v\n", err)
		return exitError
	}
	reg, err := loadRegistry(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "srh-cli: %v\n", err)
		return exitError
	}

	pol, err := policy.New(*policyName)
	if err != nil {
		fmt.Fprintf(stderr, "srh-cli: %v\n", err)
		return exitError
	}
	envSpec, env, err := reg.Make(*envKey, registry.Options{
		Frameskip:               *frameskip,
		RepeatActionProbability: *repeatProb,
	})
	if err != nil {
		fmt.Fprintf(stderr, "srh-cli: %v\n", err)
		return exitError
	}

	spec := trace.RunSpec{
		EnvKey:                  envSpec.Key,
		EnvID:                   envSpec.EnvID,
		ObsType:                 envSpec.ObsType,
		Seed:                    *seed,
		Steps:                   *steps,
		Policy:                  pol.Name(),
		Frameskip:               *frameskip,
		RepeatActionProbability: *repeatProb,
		SingleEpisode:           *singleEpisode,
	}

	runID := store.NewRunID(time.Now())
	runDir, err := store.CreateRunDir(cfg.RunsDir, runID)
	if err != nil {
		_ = env.Close()
		fmt.Fprintf(stderr, "srh-cli: %v\n", err)
		return exitError
	}
	ledgerFile, err := os.Create(filepath.Join(runDir, store.LedgerFileName))
	if err != nil {
		_ = env.Close()
		fmt.Fprintf(stderr, "srh-cli: create telemetry file: %v\n", err)
		return exitError
	}
	defer ledgerFile.Close()
	lw, err := ledger.NewWriter(ledgerFile)
	if err != nil {
		_ = env.Close()
		fmt.Fprintf(stderr, "srh-cli: open telemetry ledger: %v\n", err)
		return exitError
	}

	rec := &record.Recorder{Env: env, Policy: pol, Ledger: lw}
	artifact, err := rec.Run(runID, spec)
	if err != nil {
		fmt.Fprintf(stderr, "srh-cli: record: %v\n", err)
		return exitError
	}
	if err := store.WriteArtifact(runDir, artifact); err != nil {
		fmt.Fprintf(stderr, "srh-cli: %v\n", err)
		return exitError
	}
	indexRun(stderr, cfg.IndexPath, artifact)

	fmt.Fprintf(stdout, "run_id: %s\n", artifact.RunID)
	fmt.Fprintf(stdout, "env: %s (%s)\n", spec.EnvKey, spec.EnvID)
	fmt.Fprintf(stdout, "steps_recorded: %d\n", len(artifact.Actions))
	fmt.Fprintf(stdout, "total_reward: %.6f\n", artifact.TotalReward)
	fmt.Fprintf(stdout, "final_obs_hash: %s\n", artifact.FinalObsHash)
	fmt.Fprintf(stdout, "artifact: %s\n", filepath.Join(runDir, store.ArtifactFileName))
	return exitOK
}

// indexRun records the artifact in the SQLite catalog. Indexing is
// best-effort: the artifact on disk is the source of truth, so an index
// failure warns without failing the run.
func indexRun(stderr io.Writer, indexPath string, artifact trace.RunArtifact) {
	ix, err := index.Open(indexPath)
	if err != nil {
		fmt.Fprintf(stderr, "srh-cli: warning: open runs index: %v\n", err)
		return
	}
	defer ix.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ix.Add(ctx, artifact); err != nil {
		fmt.Fprintf(stderr, "srh-cli: warning: index run: %v\n", err)
	}
}

// resolveArtifactPath accepts either a run ID under the configured runs
// directory or a direct path to an artifact file.
func resolveArtifactPath(cfg config.Config, arg string) string {
	if filepath.Ext(arg) == ".json" {
		return arg
	}
	return filepath.Join(cfg.RunsDir, arg, store.ArtifactFileName)
}

func runReplay(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	fs.SetOutput(stderr)
	runArg := fs.String("run", "", "run id or path to an artifact file")
	runsDir := fs.String("runs-dir", "", "override the runs directory")
	if err := fs.Parse(args); err != nil {
		return exitError
	}
	// A bare positional run id is accepted as shorthand.
	if *runArg == "" && fs.NArg() == 1 {
		*runArg = fs.Arg(0)
	}
	if *runArg == "" || fs.NArg() > 1 {
		fmt.Fprintln(stderr, "srh-cli: replay takes exactly one run id or artifact path")
		return exitError
	}

	cfg, err := loadConfig(*runsDir)
	if err != nil {
		fmt.Fprintf(stderr, "srh-cli: %v\n", err)
		return exitError
	}
	reg, err := loadRegistry(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "srh-cli: %v\n", err)
		return exitError
	}

	artifact, err := store.LoadArtifact(resolveArtifactPath(cfg, *runArg))
	if err != nil {
		fmt.Fprintf(stderr, "srh-cli: %v\n", err)
		return exitError
	}
	env, err := reg.MakeByID(artifact.Spec.EnvID, registry.Options{
		Frameskip:               artifact.Spec.Frameskip,
		RepeatActionProbability: artifact.Spec.RepeatActionProbability,
	})
	if err != nil {
		fmt.Fprintf(stderr, "srh-cli: %v\n", err)
		return exitError
	}

	report, err := (&replay.Replayer{Env: env}).Run(artifact)
	if err != nil {
		fmt.Fprintf(stderr, "srh-cli: replay: %v\n", err)
		return exitError
	}

	fmt.Fprintf(stdout, "run_id: %s\n", report.RunID)
	fmt.Fprintf(stdout, "env_id: %s\n", report.EnvID)
	fmt.Fprintf(stdout, "steps_replayed: %d\n", report.Steps)
	fmt.Fprintf(stdout, "reward: expected=%.6f actual=%.6f match=%t\n",
		report.ExpectedTotalReward, report.ActualTotalReward, report.RewardMatch())
	fmt.Fprintf(stdout, "final_obs_hash: expected=%s actual=%s match=%t\n",
		report.ExpectedFinalHash, report.ActualFinalHash, report.HashMatch())
	if !report.Deterministic() {
		fmt.Fprintln(stdout, "verdict: DIVERGED")
		return exitMismatch
	}
	fmt.Fprintln(stdout, "verdict: deterministic")
	return exitOK
}

func runListEnvs(args []string, stdout, stderr io.Writer) int {
	if len(args) != 0 {
		fmt.Fprintln(stderr, "srh-cli: list-envs takes no arguments")
		return exitError
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "srh-cli: %v\n", err)
		return exitError
	}
	reg, err := loadRegistry(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "srh-cli: %v\n", err)
		return exitError
	}
	for _, spec := range reg.List() {
		kind := "builtin"
		if spec.URL != "" {
			kind = "remote " + spec.URL
		}
		fmt.Fprintf(stdout, "%-16s %-28s obs=%-7s %s  %s\n",
			spec.Key, spec.EnvID, spec.ObsType, kind, spec.Description)
	}
	return exitOK
}

func runListPolicies(stdout io.Writer) int {
	for _, name := range policy.List() {
		fmt.Fprintln(stdout, name)
	}
	return exitOK
}

func runListRuns(stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "srh-cli: %v\n", err)
		return exitError
	}
	ix, err := index.Open(cfg.IndexPath)
	if err != nil {
		fmt.Fprintf(stderr, "srh-cli: open runs index: %v\n", err)
		return exitError
	}
	defer ix.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rows, err := ix.List(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "srh-cli: list runs: %v\n", err)
		return exitError
	}
	if len(rows) == 0 {
		fmt.Fprintln(stdout, "no recorded runs")
		return exitOK
	}
	for _, row := range rows {
		created := time.Unix(0, int64(row.CreatedUnixS*1e9)).UTC().Format(time.RFC3339)
		fmt.Fprintf(stdout, "%s  %s  env=%s policy=%s seed=%d steps=%d reward=%.6f\n",
			row.RunID, created, row.EnvKey, row.Policy, row.Seed, row.StepsRecorded, row.TotalReward)
	}
	return exitOK
}
