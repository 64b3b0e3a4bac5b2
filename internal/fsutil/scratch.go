package fsutil

import (
	"fmt"
	"os"
)

// ScratchDir is a temporary working directory handed to runs that need
// writable space outside the artifact tree.
type ScratchDir struct {
	Path string
}

// NewScratchDir creates a fresh directory under parent. An empty parent
// falls back to the system temp directory.
func NewScratchDir(parent, prefix string) (*ScratchDir, error) {
	if parent != "" {
		if err := EnsureDir(parent); err != nil {
			return nil, err
		}
	}
	path, err := os.MkdirTemp(parent, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	return &ScratchDir{Path: path}, nil
}

// Remove deletes the directory and everything in it.
func (d *ScratchDir) Remove() error {
	if d == nil || d.Path == "" {
		return nil
	}
	return os.RemoveAll(d.Path)
}
