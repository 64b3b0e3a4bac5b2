package app

import (
	"context"
	"fmt"

	"github.com/seqsim/gridrunner/internal/ctxlog"
	"github.com/seqsim/gridrunner/internal/dag"
	"github.com/seqsim/gridrunner/internal/executor"
	"github.com/seqsim/gridrunner/internal/ledger"
	"github.com/seqsim/gridrunner/internal/report"
)

// Run executes the mode selected in the configuration: the sweep itself, the
// dry-run plan, the summary report or the artifact watcher.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.cfg.HealthcheckPort > 0 {
		a.startHealthcheckServer(a.cfg.HealthcheckPort)
	}

	switch {
	case a.cfg.Follow:
		return a.follow(ctx)
	case a.cfg.Summary:
		return a.summarize(ctx)
	case a.cfg.PlanOnly:
		return a.plan(ctx)
	default:
		return a.execute(ctx)
	}
}

func (a *App) buildGraph(ctx context.Context) (*dag.Graph, error) {
	a.logger.Debug("Building dependency graph from config model...")
	graph, err := dag.Build(ctx, a.model, a.registry)
	if err != nil {
		return nil, fmt.Errorf("failed to build dependency graph: %w", err)
	}
	a.logger.Debug("Dependency graph built.", "node_count", len(graph.Nodes))
	return graph, nil
}

func (a *App) execute(ctx context.Context) error {
	graph, err := a.buildGraph(ctx)
	if err != nil {
		return err
	}

	if len(graph.Nodes) == 0 {
		a.logger.Warn("No nodes found in graph, execution not required.")
		return nil
	}

	a.logger.Debug("Handlers registered.",
		"runners", len(a.registry.HandlerRegistry),
		"assets", len(a.registry.AssetHandlerRegistry),
	)

	a.logger.Info("🚀 Starting concurrent execution...", "nodes", len(graph.Nodes), "workers", a.cfg.WorkerCount)
	exec := executor.New(graph, a.cfg.WorkerCount, a.registry, a.converter)
	runErr := exec.Run(ctx)

	if totals, totalsErr := a.ledger.Totals(ctx); totalsErr == nil {
		a.logger.Info("🏁 Execution finished.",
			"completed", totals[ledger.OutcomeCompleted],
			"skipped", totals[ledger.OutcomeSkipped],
			"failed", totals[ledger.OutcomeFailed],
		)
	} else {
		a.logger.Info("🏁 Execution finished.")
	}

	return runErr
}

func (a *App) plan(ctx context.Context) error {
	graph, err := a.buildGraph(ctx)
	if err != nil {
		return err
	}

	rows, err := report.Plan(graph, a.artifacts, a.cfg.Overwrite)
	if err != nil {
		return err
	}
	report.WritePlan(a.outW, rows)
	return nil
}

func (a *App) summarize(ctx context.Context) error {
	summary, err := report.Summarize(ctx, a.ledger, a.artifacts)
	if err != nil {
		return err
	}
	return report.WriteJSON(a.outW, summary)
}

func (a *App) follow(ctx context.Context) error {
	root := a.cfg.OutputRoot
	if root == "" {
		root = "."
	}
	return report.Watch(ctx, root, a.outW)
}
