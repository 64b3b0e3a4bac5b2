package lease

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/seqsim/gridrunner/internal/ctxlog"
	"github.com/seqsim/gridrunner/internal/fsutil"
)

// Owner identifies the process holding a lease. It is stored as JSON inside
// the lease file so a losing acquirer can report who beat it.
type Owner struct {
	LeaseID    string    `json:"lease_id"`
	PID        int       `json:"pid"`
	Host       string    `json:"host"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// HeldError reports a lease that is already held by a live owner.
type HeldError struct {
	Key   string
	Owner Owner
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("lease for %q held by pid %d on %s since %s",
		e.Key, e.Owner.PID, e.Owner.Host, e.Owner.AcquiredAt.Format(time.RFC3339))
}

// Manager acquires leases below one directory.
type Manager struct {
	dir string
	ttl time.Duration
}

// DefaultTTL bounds how long a crashed holder blocks a run.
const DefaultTTL = 5 * time.Minute

// NewManager creates the lease directory if needed. A non-positive ttl
// falls back to DefaultTTL.
func NewManager(dir string, ttl time.Duration) (*Manager, error) {
	if err := fsutil.EnsureDir(dir); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{dir: dir, ttl: ttl}, nil
}

// Lease is a held lease. Release must be called exactly once.
type Lease struct {
	ID   string
	Key  string
	path string
	stop chan struct{}
	done chan struct{}
}

// path maps a lease key to its file. Run identifiers contain no separators,
// but keys are sanitized anyway so a bad key cannot escape the directory.
func (m *Manager) path(key string) string {
	safe := strings.ReplaceAll(key, string(os.PathSeparator), "_")
	return filepath.Join(m.dir, safe+".lease")
}

// Acquire takes the lease for key, breaking a stale one if necessary.
// It returns a *HeldError when a live owner already holds the lease.
func (m *Manager) Acquire(ctx context.Context, key string) (*Lease, error) {
	logger := ctxlog.FromContext(ctx)
	path := m.path(key)

	// Two passes: the second one runs only after a stale lease was broken.
	for attempt := 0; attempt < 2; attempt++ {
		lease, err := m.tryAcquire(ctx, key, path)
		if err == nil {
			return lease, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, err
		}

		owner, stale, ownerErr := m.inspect(path)
		if ownerErr != nil {
			// The holder may have released between our create and inspect.
			if os.IsNotExist(ownerErr) {
				continue
			}
			return nil, ownerErr
		}
		if !stale {
			return nil, &HeldError{Key: key, Owner: owner}
		}

		logger.Warn("Breaking stale lease.", "key", key, "holder_pid", owner.PID, "holder_host", owner.Host)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("breaking stale lease for %q: %w", key, err)
		}
	}
	return nil, fmt.Errorf("lease for %q: lost the acquisition race twice", key)
}

// tryAcquire attempts the exclusive create and starts the heartbeat on success.
func (m *Manager) tryAcquire(ctx context.Context, key, path string) (*Lease, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, os.ErrExist
		}
		return nil, fmt.Errorf("creating lease file for %q: %w", key, err)
	}

	host, _ := os.Hostname()
	owner := Owner{
		LeaseID:    uuid.NewString(),
		PID:        os.Getpid(),
		Host:       host,
		AcquiredAt: time.Now().UTC(),
	}
	if err := json.NewEncoder(f).Encode(owner); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("writing lease owner for %q: %w", key, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("closing lease file for %q: %w", key, err)
	}

	lease := &Lease{
		ID:   owner.LeaseID,
		Key:  key,
		path: path,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go lease.heartbeat(ctxlog.FromContext(ctx), m.ttl)
	return lease, nil
}

// inspect reads the owner record and decides staleness from the file mtime.
func (m *Manager) inspect(path string) (Owner, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Owner{}, false, err
	}

	var owner Owner
	data, err := os.ReadFile(path)
	if err != nil {
		return Owner{}, false, err
	}
	// A torn write only costs us the holder details, not the decision.
	_ = json.Unmarshal(data, &owner)

	return owner, time.Since(info.ModTime()) > m.ttl, nil
}

// heartbeat refreshes the lease mtime at a third of the TTL until released.
func (l *Lease) heartbeat(logger *slog.Logger, ttl time.Duration) {
	defer close(l.done)
	ticker := time.NewTicker(ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			now := time.Now()
			if err := os.Chtimes(l.path, now, now); err != nil {
				logger.Warn("Failed to refresh lease heartbeat.", "key", l.Key, "error", err)
			}
		}
	}
}

// Release stops the heartbeat and removes the lease file.
func (l *Lease) Release() error {
	close(l.stop)
	<-l.done
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("releasing lease for %q: %w", l.Key, err)
	}
	return nil
}
