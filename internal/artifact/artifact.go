package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
)

// ErrMissing reports that an artifact the child process should have produced
// is not on disk.
var ErrMissing = errors.New("artifact missing")

// Store resolves and checks result artifacts below a root directory.
type Store struct {
	fs   afero.Fs
	root string
}

// NewStore creates a store rooted at the given directory. Relative artifact
// paths resolve against the root; absolute paths are used as-is.
func NewStore(afs afero.Fs, root string) *Store {
	return &Store{fs: afs, root: root}
}

// NewOsStore is the production store, backed by the real filesystem.
func NewOsStore(root string) *Store {
	return NewStore(afero.NewOsFs(), root)
}

// Resolve returns the full path of an artifact.
func (s *Store) Resolve(path string) string {
	if filepath.IsAbs(path) || s.root == "" {
		return path
	}
	return filepath.Join(s.root, path)
}

// Exists reports whether the artifact is present.
func (s *Store) Exists(path string) (bool, error) {
	ok, err := afero.Exists(s.fs, s.Resolve(path))
	if err != nil {
		return false, fmt.Errorf("checking artifact %q: %w", path, err)
	}
	return ok, nil
}

// Stat returns file info for a present artifact, used by the run summary.
func (s *Store) Stat(path string) (fs.FileInfo, error) {
	info, err := s.fs.Stat(s.Resolve(path))
	if err != nil {
		return nil, fmt.Errorf("stat artifact %q: %w", path, err)
	}
	return info, nil
}

// Verify fails with ErrMissing when the artifact is absent. It runs after a
// child process exits zero: an exit status alone does not prove the result
// was written.
func (s *Store) Verify(path string) error {
	ok, err := s.Exists(path)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%q: %w", s.Resolve(path), ErrMissing)
	}
	return nil
}
