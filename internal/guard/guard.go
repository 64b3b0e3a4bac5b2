package guard

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/seqsim/gridrunner/internal/artifact"
	"github.com/seqsim/gridrunner/internal/ctxlog"
	"github.com/seqsim/gridrunner/internal/invoke"
	"github.com/seqsim/gridrunner/internal/ledger"
	"github.com/seqsim/gridrunner/internal/lease"
)

// RunSpec is one fully rendered run: every template has already been
// substituted, so the guard deals only in concrete values.
type RunSpec struct {
	ID         string
	Command    string
	Args       []string
	FixedArgs  []string
	Workdir    string
	Env        map[string]string
	Artifact   string
	LogPath    string
	Overwrite  bool
	Timeout    time.Duration
	Retries    uint
	RetryDelay time.Duration
}

// Report summarizes what the guard did with a run.
type Report struct {
	Outcome  ledger.Outcome
	Skipped  bool
	ExitCode int
	Artifact string
	Attempts uint
	Duration time.Duration
}

// Guard wires the skip check, the lease, the invocation and the ledger
// together. Out receives the user-facing lines: the resolved artifact path
// and any skip notice.
type Guard struct {
	Artifacts *artifact.Store
	Leases    *lease.Manager
	Ledger    *ledger.Ledger
	Out       io.Writer
	Overwrite bool
}

// Execute runs the guard sequence for one run.
func (g *Guard) Execute(ctx context.Context, spec RunSpec) (*Report, error) {
	logger := ctxlog.FromContext(ctx)
	started := time.Now()

	resolved := g.Artifacts.Resolve(spec.Artifact)
	// The artifact path prints before any check so operators can find the
	// result location even when the run is skipped.
	fmt.Fprintln(g.Out, resolved)

	overwrite := spec.Overwrite || g.Overwrite
	report := &Report{Artifact: resolved}

	if !overwrite {
		exists, err := g.Artifacts.Exists(spec.Artifact)
		if err != nil {
			return nil, err
		}
		if exists {
			return g.skip(ctx, spec, report, started, "")
		}
	}

	runLease, err := g.Leases.Acquire(ctx, spec.ID)
	if err != nil {
		g.record(ctx, spec, report, started, ledger.OutcomeFailed, "")
		return nil, fmt.Errorf("run %s: %w", spec.ID, err)
	}
	defer func() {
		if releaseErr := runLease.Release(); releaseErr != nil {
			logger.Warn("Failed to release run lease.", "run_id", spec.ID, "error", releaseErr)
		}
	}()

	// Second look under the lease: another orchestrator may have produced
	// the artifact between our first check and the acquisition.
	if !overwrite {
		exists, err := g.Artifacts.Exists(spec.Artifact)
		if err != nil {
			return nil, err
		}
		if exists {
			return g.skip(ctx, spec, report, started, runLease.ID)
		}
	}

	logger.Info("▶️ Invoking simulation command.", "run_id", spec.ID, "log", spec.LogPath)
	result, err := invoke.Run(ctx, invoke.Request{
		Command:    spec.Command,
		Args:       spec.Args,
		FixedArgs:  spec.FixedArgs,
		Workdir:    spec.Workdir,
		Env:        spec.Env,
		LogPath:    spec.LogPath,
		Timeout:    spec.Timeout,
		Retries:    spec.Retries,
		RetryDelay: spec.RetryDelay,
	})
	if result != nil {
		report.ExitCode = result.ExitCode
		report.Attempts = result.Attempts
	}
	if err != nil {
		g.record(ctx, spec, report, started, ledger.OutcomeFailed, runLease.ID)
		return nil, fmt.Errorf("run %s: %w", spec.ID, err)
	}

	// Exit zero is not proof the result landed on disk.
	if err := g.Artifacts.Verify(spec.Artifact); err != nil {
		g.record(ctx, spec, report, started, ledger.OutcomeFailed, runLease.ID)
		return nil, fmt.Errorf("run %s completed but left no result: %w", spec.ID, err)
	}

	report.Outcome = ledger.OutcomeCompleted
	report.Duration = time.Since(started)
	g.record(ctx, spec, report, started, ledger.OutcomeCompleted, runLease.ID)
	logger.Info("✅ Run completed.", "run_id", spec.ID, "artifact", resolved, "attempts", report.Attempts)
	return report, nil
}

// skip finalizes a skipped run: notice, ledger row, success.
func (g *Guard) skip(ctx context.Context, spec RunSpec, report *Report, started time.Time, leaseID string) (*Report, error) {
	fmt.Fprintf(g.Out, "%s already exists. Skipping %s (use -overwrite to force a re-run).\n", report.Artifact, spec.ID)
	ctxlog.FromContext(ctx).Info("⏭️ Skipping run, artifact present.", "run_id", spec.ID, "artifact", report.Artifact)

	report.Outcome = ledger.OutcomeSkipped
	report.Skipped = true
	report.Duration = time.Since(started)
	g.record(ctx, spec, report, started, ledger.OutcomeSkipped, leaseID)
	return report, nil
}

// record writes the attempt row. Ledger failures are logged, not fatal: the
// run's own outcome must not depend on bookkeeping.
func (g *Guard) record(ctx context.Context, spec RunSpec, report *Report, started time.Time, outcome ledger.Outcome, leaseID string) {
	if g.Ledger == nil {
		return
	}
	err := g.Ledger.Record(ctx, ledger.Attempt{
		RunID:      spec.ID,
		Outcome:    outcome,
		ExitCode:   report.ExitCode,
		Artifact:   report.Artifact,
		LeaseID:    leaseID,
		Attempts:   report.Attempts,
		Duration:   time.Since(started),
		StartedAt:  started.UTC(),
		FinishedAt: time.Now().UTC(),
	})
	if err != nil {
		ctxlog.FromContext(ctx).Warn("Failed to record attempt in ledger.", "run_id", spec.ID, "error", err)
	}
}
