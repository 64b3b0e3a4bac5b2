package report

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/seqsim/gridrunner/internal/ctxlog"
)

// Watch follows the output tree and announces every artifact as it lands,
// one resolved path per line. It returns when the context is cancelled.
// Directories created while watching are picked up, so artifacts written
// into fresh per-run directories are still seen.
func Watch(ctx context.Context, root string, out io.Writer) error {
	logger := ctxlog.FromContext(ctx)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting artifact watcher: %w", err)
	}
	defer watcher.Close()

	if err := watchTree(watcher, root); err != nil {
		return err
	}
	logger.Info("👀 Watching for artifacts.", "root", root)

	// A path announces once even though a single artifact write can surface
	// as several Create and Write events.
	announced := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}

			info, err := os.Stat(event.Name)
			if err != nil {
				continue
			}
			if info.IsDir() {
				if err := watchTree(watcher, event.Name); err != nil {
					logger.Warn("Failed to watch new directory.", "path", event.Name, "error", err)
				}
				continue
			}

			if _, seen := announced[event.Name]; seen {
				continue
			}
			announced[event.Name] = struct{}{}
			fmt.Fprintln(out, event.Name)
			logger.Info("📦 Artifact appeared.", "path", event.Name, "bytes", info.Size())
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Artifact watcher error.", "error", err)
		}
	}
}

// watchTree registers a directory and all its subdirectories.
func watchTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if addErr := watcher.Add(path); addErr != nil {
				return fmt.Errorf("watching %q: %w", path, addErr)
			}
		}
		return nil
	})
}
