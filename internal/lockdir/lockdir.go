// Package lockdir provides cross-process mutual exclusion built on the
// atomicity of directory creation.
//
// A lock is a directory; os.Mkdir either creates it or fails because it
// already exists, which makes acquisition atomic without fcntl or flock.
// The holder's pid is written inside the directory for manual diagnosis.
//
// Known limitation: there is no lease or expiry. A process killed while
// holding a lock leaves the directory behind, and recovery is manual
// (waved reset removes it together with the state document).
package lockdir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrLockTimeout is returned when the lock could not be acquired within the
// configured number of attempts.
var ErrLockTimeout = errors.New("lock acquisition timed out")

const (
	// DefaultAttempts bounds acquisition retries.
	DefaultAttempts = 50

	// DefaultDelay is the fixed wait between attempts.
	DefaultDelay = 100 * time.Millisecond

	pidFile = "pid"
)

// Manager acquires and releases directory locks with bounded retry.
type Manager struct {
	attempts int
	delay    time.Duration
}

// New creates a Manager. Non-positive attempts or delay fall back to the
// defaults.
func New(attempts int, delay time.Duration) *Manager {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Manager{attempts: attempts, delay: delay}
}

// Acquire takes the lock at path, retrying with a fixed delay up to the
// attempt bound. It returns ErrLockTimeout if the lock never became free.
func (m *Manager) Acquire(path string) error {
	var lastErr error
	for attempt := 0; attempt < m.attempts; attempt++ {
		if attempt > 0 {
			time.Sleep(m.delay)
		}
		err := os.Mkdir(path, 0o700)
		if err == nil {
			// Best effort: the pid file is diagnostic only, failure to
			// write it does not invalidate the lock.
			_ = os.WriteFile(filepath.Join(path, pidFile),
				[]byte(fmt.Sprintf("%d\n", os.Getpid())), 0o600)
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("create lock %s: %w", path, err)
		}
		lastErr = err
	}
	return fmt.Errorf("%w: %s held after %d attempts: %v",
		ErrLockTimeout, path, m.attempts, lastErr)
}

// Release removes the lock at path. Releasing an absent lock is not an
// error.
func (m *Manager) Release(path string) error {
	err := os.RemoveAll(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release lock %s: %w", path, err)
	}
	return nil
}

// WithLock runs fn while holding the lock at path. The lock is released on
// both normal return and error from fn.
func (m *Manager) WithLock(path string, fn func() error) error {
	if err := m.Acquire(path); err != nil {
		return err
	}
	defer func() {
		_ = m.Release(path)
	}()
	return fn()
}

// HolderPID reads the pid recorded inside an existing lock directory.
// It is diagnostic: a missing or malformed pid file returns 0 with no error.
func HolderPID(path string) int {
	data, err := os.ReadFile(filepath.Join(path, pidFile))
	if err != nil {
		return 0
	}
	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		return 0
	}
	return pid
}
