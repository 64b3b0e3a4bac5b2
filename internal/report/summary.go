package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/seqsim/gridrunner/internal/artifact"
	"github.com/seqsim/gridrunner/internal/ledger"
	"golang.org/x/sync/errgroup"
)

// summaryStatWorkers bounds the concurrent artifact stats; sweeps can leave
// thousands of result files behind.
const summaryStatWorkers = 8

// SummaryRow is the latest known state of one run.
type SummaryRow struct {
	RunID           string    `json:"run_id"`
	Outcome         string    `json:"outcome"`
	ExitCode        int       `json:"exit_code"`
	Artifact        string    `json:"artifact"`
	ArtifactPresent bool      `json:"artifact_present"`
	ArtifactBytes   int64     `json:"artifact_bytes"`
	Attempts        uint      `json:"attempts"`
	DurationMs      int64     `json:"duration_ms"`
	FinishedAt      time.Time `json:"finished_at"`
}

// Summary is the JSON document emitted by the summary mode.
type Summary struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Totals      map[string]int `json:"totals"`
	Runs        []SummaryRow   `json:"runs"`
}

// Summarize joins the ledger's latest attempt per run with the current state
// of each artifact on disk.
func Summarize(ctx context.Context, led *ledger.Ledger, store *artifact.Store) (*Summary, error) {
	latest, err := led.Latest(ctx)
	if err != nil {
		return nil, err
	}

	runIDs := make([]string, 0, len(latest))
	for runID := range latest {
		runIDs = append(runIDs, runID)
	}
	sort.Strings(runIDs)

	rows := make([]SummaryRow, len(runIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(summaryStatWorkers)

	for i, runID := range runIDs {
		attempt := latest[runID]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			row := SummaryRow{
				RunID:      attempt.RunID,
				Outcome:    string(attempt.Outcome),
				ExitCode:   attempt.ExitCode,
				Artifact:   attempt.Artifact,
				Attempts:   attempt.Attempts,
				DurationMs: attempt.Duration.Milliseconds(),
				FinishedAt: attempt.FinishedAt,
			}
			if attempt.Artifact != "" {
				if info, statErr := store.Stat(attempt.Artifact); statErr == nil {
					row.ArtifactPresent = true
					row.ArtifactBytes = info.Size()
				}
			}
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scanning artifacts: %w", err)
	}

	totals := make(map[string]int)
	for _, row := range rows {
		totals[row.Outcome]++
	}

	return &Summary{
		GeneratedAt: time.Now().UTC(),
		Totals:      totals,
		Runs:        rows,
	}, nil
}

// WriteJSON emits the summary as indented JSON.
func WriteJSON(w io.Writer, s *Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}
