package app

import (
	"errors"
	"fmt"
	"path/filepath"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	GridPath    string // hcl files describing the sweep
	ModulesPath string // module manifests
	StateDir    string // leases and the attempt ledger
	OutputRoot  string // artifact paths resolve against this directory

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	WorkerCount     int

	Overwrite bool // re-run even when artifacts exist
	PlanOnly  bool // print the predicted actions and exit
	Summary   bool // print the run summary JSON and exit
	Follow    bool // watch the output tree for artifacts
}

// NewConfig validates a Config and applies defaults.
func NewConfig(cfg Config) (*Config, error) {
	modes := 0
	for _, on := range []bool{cfg.PlanOnly, cfg.Summary, cfg.Follow} {
		if on {
			modes++
		}
	}
	if modes > 1 {
		return nil, errors.New("choose at most one of -plan, -summary or -follow")
	}

	// Summary and follow work from state and output alone; every other mode
	// needs a grid to know what to run.
	if cfg.GridPath == "" && !cfg.Summary && !cfg.Follow {
		return nil, errors.New("a grid path is required; pass -grid or a positional path")
	}

	if cfg.StateDir == "" {
		cfg.StateDir = ".gridrunner"
	}
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}

	// Resolved artifact paths are recorded in the ledger and re-read by the
	// summary mode, possibly from another working directory. Pinning the root
	// keeps those records unambiguous.
	if cfg.OutputRoot != "" {
		abs, err := filepath.Abs(cfg.OutputRoot)
		if err != nil {
			return nil, fmt.Errorf("resolving output root: %w", err)
		}
		cfg.OutputRoot = abs
	}

	return &cfg, nil
}
