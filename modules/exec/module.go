// Package exec provides the runner that invokes an external simulation
// command once per run instance, guarded by the artifact skip check.
package exec

import (
	"context"
	"fmt"
	"time"

	"github.com/seqsim/gridrunner/internal/fsutil"
	"github.com/seqsim/gridrunner/internal/guard"
	"github.com/seqsim/gridrunner/internal/registry"
	"github.com/seqsim/gridrunner/internal/runid"
	"github.com/seqsim/gridrunner/internal/sweep"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package. The guard
// is injected at assembly time so every run shares one artifact store, lease
// manager and ledger.
type Module struct {
	Guard *guard.Guard
}

// Input defines the arguments for the exec runner. String fields may contain
// `{param}` placeholders, rendered against the run's sweep parameters before
// invocation.
type Input struct {
	Command    string            `grid:"command"`
	Args       []string          `grid:"args"`
	FixedArgs  []string          `grid:"fixed_args"`
	Workdir    string            `grid:"workdir"`
	Env        map[string]string `grid:"env"`
	Artifact   string            `grid:"artifact"`
	LogPath    string            `grid:"log_path"`
	Overwrite  bool              `grid:"overwrite"`
	Timeout    string            `grid:"timeout"`
	Retries    int64             `grid:"retries"`
	RetryDelay string            `grid:"retry_delay"`
}

// Deps defines the injected resources from the 'uses' HCL block. The scratch
// entry is optional; when wired and no workdir is set, the command runs
// inside the scratch directory.
type Deps struct {
	Scratch *fsutil.ScratchDir `grid:"scratch"`
}

// OnRunExec is the handler for the 'exec' runner's on_run lifecycle event.
func (m *Module) OnRunExec(ctx context.Context, deps *Deps, input *Input) (cty.Value, error) {
	addr, ok := runid.FromContext(ctx)
	if !ok {
		return cty.NilVal, fmt.Errorf("exec runner requires a run identity in the context")
	}

	params := map[string]cty.Value{}
	if inst, ok := sweep.FromContext(ctx); ok {
		params = inst.Params
	}

	spec, err := renderSpec(addr.String(), input, params)
	if err != nil {
		return cty.NilVal, err
	}
	if spec.Workdir == "" && deps.Scratch != nil {
		spec.Workdir = deps.Scratch.Path
	}

	report, err := m.Guard.Execute(ctx, *spec)
	if err != nil {
		return cty.NilVal, err
	}

	return cty.ObjectVal(map[string]cty.Value{
		"artifact":  cty.StringVal(report.Artifact),
		"skipped":   cty.BoolVal(report.Skipped),
		"exit_code": cty.NumberIntVal(int64(report.ExitCode)),
		"attempts":  cty.NumberIntVal(int64(report.Attempts)),
		"outcome":   cty.StringVal(string(report.Outcome)),
	}), nil
}

// renderSpec substitutes sweep parameters into the templated inputs and
// assembles the concrete run spec for the guard.
func renderSpec(id string, input *Input, params map[string]cty.Value) (*guard.RunSpec, error) {
	command, err := sweep.Render(input.Command, params)
	if err != nil {
		return nil, fmt.Errorf("rendering command: %w", err)
	}
	args, err := sweep.RenderAll(input.Args, params)
	if err != nil {
		return nil, fmt.Errorf("rendering args: %w", err)
	}
	workdir, err := sweep.Render(input.Workdir, params)
	if err != nil {
		return nil, fmt.Errorf("rendering workdir: %w", err)
	}
	artifactPath, err := sweep.Render(input.Artifact, params)
	if err != nil {
		return nil, fmt.Errorf("rendering artifact path: %w", err)
	}
	logPath, err := sweep.Render(input.LogPath, params)
	if err != nil {
		return nil, fmt.Errorf("rendering log path: %w", err)
	}

	timeout, err := parseDuration(input.Timeout, "timeout")
	if err != nil {
		return nil, err
	}
	retryDelay, err := parseDuration(input.RetryDelay, "retry_delay")
	if err != nil {
		return nil, err
	}
	if input.Retries < 0 {
		return nil, fmt.Errorf("retries cannot be negative, got %d", input.Retries)
	}

	return &guard.RunSpec{
		ID:         id,
		Command:    command,
		Args:       args,
		FixedArgs:  input.FixedArgs,
		Workdir:    workdir,
		Env:        input.Env,
		Artifact:   artifactPath,
		LogPath:    logPath,
		Overwrite:  input.Overwrite,
		Timeout:    timeout,
		Retries:    uint(input.Retries),
		RetryDelay: retryDelay,
	}, nil
}

func parseDuration(raw, field string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, raw, err)
	}
	return d, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("OnRunExec", &registry.RegisteredRunner{
		NewInput: func() any { return new(Input) },
		NewDeps:  func() any { return new(Deps) },
		Fn:       m.OnRunExec,
	})
}
