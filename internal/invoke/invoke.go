package invoke

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/google/shlex"
	"github.com/seqsim/gridrunner/internal/ctxlog"
	"github.com/seqsim/gridrunner/internal/fsutil"
)

// DefaultRetryDelay spaces out attempts when retries are requested without
// an explicit delay.
const DefaultRetryDelay = 5 * time.Second

// Request describes one child invocation.
type Request struct {
	// Command is the command line head, e.g. "python3 run_estimator.py".
	// It is split shell-style but executed directly, never through a shell.
	Command string
	// Args are the run's templated arguments, already rendered.
	Args []string
	// FixedArgs follow Args in the final argv, always last and in order.
	FixedArgs []string
	// Workdir is the directory the child runs from. Validated up front.
	Workdir string
	// Env entries overlay the parent environment.
	Env map[string]string
	// LogPath, when set, receives the child's combined stdout and stderr.
	LogPath string
	// Timeout bounds one attempt. Zero means no limit.
	Timeout time.Duration
	// Retries is the number of additional attempts after a failure.
	Retries uint
	// RetryDelay is the pause between attempts.
	RetryDelay time.Duration
}

// Result reports a completed invocation.
type Result struct {
	ExitCode int
	Attempts uint
	Duration time.Duration
	LogPath  string
}

// ExitError carries a child's non-zero exit status. Tail holds the last
// window of the child's output for failure reporting; the full output is in
// the run log.
type ExitError struct {
	Code int
	Cmd  string
	Tail string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command %q exited with code %d", e.Cmd, e.Code)
}

// Argv returns the full argument vector for a request: command tokens first,
// then templated args, then fixed args.
func (r Request) Argv() ([]string, error) {
	tokens, err := shlex.Split(r.Command)
	if err != nil {
		return nil, fmt.Errorf("splitting command %q: %w", r.Command, err)
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("command is empty")
	}

	argv := make([]string, 0, len(tokens)+len(r.Args)+len(r.FixedArgs))
	argv = append(argv, tokens...)
	argv = append(argv, r.Args...)
	argv = append(argv, r.FixedArgs...)
	return argv, nil
}

// Run executes the request, retrying per its policy. The returned error is a
// *ExitError when the child ran and exited non-zero; other errors mean the
// child could not be started or timed out.
func Run(ctx context.Context, req Request) (*Result, error) {
	logger := ctxlog.FromContext(ctx)

	argv, err := req.Argv()
	if err != nil {
		return nil, err
	}

	if req.Workdir != "" {
		info, err := os.Stat(req.Workdir)
		if err != nil {
			return nil, fmt.Errorf("invalid working directory %q: %w", req.Workdir, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("invalid working directory %q: not a directory", req.Workdir)
		}
	}

	delay := req.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}

	result := &Result{LogPath: req.LogPath}
	started := time.Now()

	err = retry.Do(
		func() error {
			result.Attempts++
			return runOnce(ctx, req, argv, result)
		},
		retry.Attempts(req.Retries+1),
		retry.Delay(delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.RetryIf(func(err error) bool {
			// A cancelled context will not succeed on a fresh attempt.
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("Retrying failed invocation.", "attempt", n+1, "error", err)
		}),
	)

	result.Duration = time.Since(started)
	if err != nil {
		return result, err
	}
	return result, nil
}

// runOnce performs a single attempt.
func runOnce(ctx context.Context, req Request, argv []string, result *Result) error {
	attemptCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(attemptCtx, argv[0], argv[1:]...)
	cmd.Dir = req.Workdir
	cmd.Env = buildEnv(req.Env)

	tail := newTailBuffer(4 * 1024)
	sinks := []io.Writer{tail}

	if req.LogPath != "" {
		if err := fsutil.EnsureDir(filepath.Dir(req.LogPath)); err != nil {
			return err
		}
		logFile, err := os.OpenFile(req.LogPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening run log %q: %w", req.LogPath, err)
		}
		defer logFile.Close()
		sinks = append(sinks, logFile)
	}

	out := io.MultiWriter(sinks...)
	cmd.Stdout = out
	cmd.Stderr = out

	err := cmd.Run()
	if err == nil {
		result.ExitCode = 0
		return nil
	}

	if attemptCtx.Err() == context.DeadlineExceeded {
		result.ExitCode = -1
		return fmt.Errorf("command %q timed out after %s", req.Command, req.Timeout)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return &ExitError{Code: exitErr.ExitCode(), Cmd: strings.Join(argv, " "), Tail: tail.String()}
	}

	// The child never started, so there is no real exit status.
	result.ExitCode = -1
	return fmt.Errorf("starting command %q: %w", req.Command, err)
}

// buildEnv overlays the request's variables onto the parent environment in
// deterministic order.
func buildEnv(overlay map[string]string) []string {
	env := os.Environ()
	if len(overlay) == 0 {
		return env
	}

	keys := make([]string, 0, len(overlay))
	for k := range overlay {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s=%s", k, overlay[k]))
	}
	return env
}
