package report

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer guards concurrent writes from the watcher goroutine against
// reads from the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchAnnouncesArtifactsOnce(t *testing.T) {
	t.Parallel()

	// Arrange
	root := t.TempDir()
	out := &syncBuffer{}
	ctx, cancel := context.WithCancel(quietContext())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- Watch(ctx, root, out) }()

	target := filepath.Join(root, "results.pkl")

	// Act: rewrite until the watcher reports it, then cancel.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(target, []byte("data"), 0o644)
		return strings.Contains(out.String(), target)
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-errCh)

	// Assert: repeated writes produce exactly one announcement.
	assert.Equal(t, 1, strings.Count(out.String(), target))
}

func TestWatchFollowsNewDirectories(t *testing.T) {
	t.Parallel()

	// Arrange
	root := t.TempDir()
	out := &syncBuffer{}
	ctx, cancel := context.WithCancel(quietContext())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- Watch(ctx, root, out) }()

	// Act: a run directory appears after the watch starts.
	sub := filepath.Join(root, "_output", "m3")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	target := filepath.Join(sub, "results.pkl")

	require.Eventually(t, func() bool {
		_ = os.WriteFile(target, []byte("data"), 0o644)
		return strings.Contains(out.String(), target)
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-errCh)
}

func TestWatchFailsOnMissingRoot(t *testing.T) {
	t.Parallel()

	// Act
	err := Watch(quietContext(), filepath.Join(t.TempDir(), "nope"), &bytes.Buffer{})

	// Assert
	require.Error(t, err)
}
