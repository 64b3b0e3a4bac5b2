package testutil

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/seqsim/gridrunner/internal/app"
	"github.com/seqsim/gridrunner/internal/hcl"
	"github.com/seqsim/gridrunner/internal/registry"
	"github.com/stretchr/testify/require"
)

// SafeBuffer is a thread-safe buffer for capturing output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	Output    string // user-facing stdout: artifact paths, notices, reports
	LogOutput string
	Err       error
	App       *app.App
	OutputDir string // the run's artifact root
}

// RunGridTest runs a full grid through the application with a default
// background context.
func RunGridTest(t *testing.T, files map[string]string, modules ...registry.Module) *HarnessResult {
	t.Helper()
	return RunGridTestWithContext(context.Background(), t, files, &app.Config{}, modules...)
}

// RunGridTestWithContext builds an App from the given HCL files and runs it
// end to end. Files land in a temporary directory; the key "main.hcl" becomes
// the grid, keys under "modules/" become module manifests. State and output
// directories are private to the test.
//
// When no custom modules are given the app registers its core modules, and
// the manifest path falls back to the repository's modules directory so core
// steps resolve against the real manifests. Tests that pass custom modules
// must supply matching manifests under "modules/" in the files map.
func RunGridTestWithContext(ctx context.Context, t *testing.T, files map[string]string, cfg *app.Config, modules ...registry.Module) *HarnessResult {
	t.Helper()

	tmpDir := t.TempDir()
	gridDir := filepath.Join(tmpDir, "grid")
	modulesDir := filepath.Join(tmpDir, "modules")
	require.NoError(t, os.Mkdir(gridDir, 0o755))
	require.NoError(t, os.Mkdir(modulesDir, 0o755))

	hasModuleFiles := false
	for name, content := range files {
		if strings.HasPrefix(name, "modules/") {
			hasModuleFiles = true
		}
		filePath := filepath.Join(tmpDir, name)
		if !strings.Contains(name, "/") {
			filePath = filepath.Join(gridDir, name)
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0o755))
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0o644))
	}

	cfg.GridPath = gridDir
	cfg.ModulesPath = modulesDir
	if len(modules) == 0 && !hasModuleFiles {
		cfg.ModulesPath = filepath.Join(moduleRoot(), "modules")
	}
	// State and output directories are test-private unless the caller pins
	// them, which rerun tests do to observe skip behavior across runs.
	if cfg.StateDir == "" {
		cfg.StateDir = filepath.Join(tmpDir, "state")
	}
	if cfg.OutputRoot == "" {
		cfg.OutputRoot = filepath.Join(tmpDir, "output")
	}
	require.NoError(t, os.MkdirAll(cfg.OutputRoot, 0o755))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "debug"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.WorkerCount == 0 {
		cfg.WorkerCount = 4
	}

	outBuffer := &SafeBuffer{}
	logBuffer := &SafeBuffer{}

	var testApp *app.App
	var panicErr any
	func() {
		defer func() {
			if r := recover(); r != nil {
				panicErr = r
			}
		}()
		testApp = app.NewApp(outBuffer, logBuffer, cfg, hcl.NewLoader(), modules...)
	}()

	if panicErr != nil {
		return &HarnessResult{
			Output:    outBuffer.String(),
			LogOutput: logBuffer.String(),
			Err:       fmt.Errorf("application startup panicked | %v", panicErr),
			OutputDir: cfg.OutputRoot,
		}
	}
	t.Cleanup(func() { _ = testApp.Close() })

	runErr := testApp.Run(ctx)

	if os.Getenv("GRIDRUNNER_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
	}

	return &HarnessResult{
		Output:    outBuffer.String(),
		LogOutput: logBuffer.String(),
		Err:       runErr,
		App:       testApp,
		OutputDir: cfg.OutputRoot,
	}
}

// moduleRoot locates the repository root from this source file's position, so
// tests in any package resolve the shipped module manifests.
func moduleRoot() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
}
