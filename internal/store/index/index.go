// Package index maintains a SQLite catalog of completed recordings so runs
// can be listed without walking the run directory tree.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/tiger/sim-replay-harness/api/trace"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id         TEXT PRIMARY KEY,
	created_unix_s REAL NOT NULL,
	env_key        TEXT NOT NULL,
	policy         TEXT NOT NULL,
	seed           INTEGER NOT NULL,
	steps_recorded INTEGER NOT NULL,
	single_episode INTEGER NOT NULL,
	total_reward   REAL NOT NULL,
	final_obs_hash TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_created_idx ON runs (created_unix_s);
`

// Row is one indexed recording.
type Row struct {
	RunID         string
	CreatedUnixS  float64
	EnvKey        string
	Policy        string
	Seed          int64
	StepsRecorded int
	SingleEpisode bool
	TotalReward   float64
	FinalObsHash  string
}

// Index is a SQLite-backed run catalog.
type Index struct {
	db *sql.DB
}

// Open opens (creating if necessary) the index database at path.
func Open(path string) (*Index, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("index path is required")
	}
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open runs index: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping runs index: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate runs index: %w", err)
	}
	return &Index{db: db}, nil
}

// Close releases the database handle.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// Add records a completed recording.
func (ix *Index) Add(ctx context.Context, artifact trace.RunArtifact) error {
	_, err := ix.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, created_unix_s, env_key, policy, seed, steps_recorded, single_episode, total_reward, final_obs_hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		artifact.RunID,
		artifact.CreatedUnixS,
		artifact.Spec.EnvKey,
		artifact.Spec.Policy,
		artifact.Spec.Seed,
		len(artifact.Actions),
		boolInt(artifact.Spec.SingleEpisode),
		artifact.TotalReward,
		artifact.FinalObsHash,
	)
	if err != nil {
		return fmt.Errorf("index run %s: %w", artifact.RunID, err)
	}
	return nil
}

// List returns all indexed runs, newest first.
func (ix *Index) List(ctx context.Context) ([]Row, error) {
	rows, err := ix.db.QueryContext(ctx,
		`SELECT run_id, created_unix_s, env_key, policy, seed, steps_recorded, single_episode, total_reward, final_obs_hash
		 FROM runs ORDER BY created_unix_s DESC, run_id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		var single int
		if err := rows.Scan(&r.RunID, &r.CreatedUnixS, &r.EnvKey, &r.Policy, &r.Seed, &r.StepsRecorded, &single, &r.TotalReward, &r.FinalObsHash); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		r.SingleEpisode = single != 0
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
