package repl

import (
	"errors"
	"sync"
	"time"
)

// ErrWaitTimeout reports that a version wait expired before the
// version was committed.
var ErrWaitTimeout = errors.New("repl: timed out waiting for version")

// VersionNotifier lets readers block until the writer publishes a
// version. Wakeups can be spurious; waiters re-check the version under
// the lock.
type VersionNotifier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	version uint64
	closed  bool
}

// NewVersionNotifier returns a notifier whose current version is v.
func NewVersionNotifier(v uint64) *VersionNotifier {
	n := &VersionNotifier{version: v}
	n.cond = sync.NewCond(&n.mu)
	return n
}

// Advance publishes v and wakes all waiters. Versions only move
// forward; publishing an older version is ignored.
func (n *VersionNotifier) Advance(v uint64) {
	n.mu.Lock()
	if v > n.version {
		n.version = v
	}
	n.mu.Unlock()
	n.cond.Broadcast()
}

// Version returns the newest published version.
func (n *VersionNotifier) Version() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.version
}

// Wait blocks until version v (or newer) is published, the notifier is
// closed, or the timeout expires. It returns the newest published
// version along with ErrWaitTimeout or ErrSessionClosed when the wait
// ended early.
func (n *VersionNotifier) Wait(v uint64, timeout time.Duration) (uint64, error) {
	deadline := time.Now().Add(timeout)
	expired := false
	timer := time.AfterFunc(timeout, func() {
		n.mu.Lock()
		expired = true
		n.mu.Unlock()
		n.cond.Broadcast()
	})
	defer timer.Stop()

	n.mu.Lock()
	defer n.mu.Unlock()
	for n.version < v && !n.closed && !expired {
		if !time.Now().Before(deadline) {
			break
		}
		n.cond.Wait()
	}
	switch {
	case n.version >= v:
		return n.version, nil
	case n.closed:
		return n.version, ErrSessionClosed
	default:
		return n.version, ErrWaitTimeout
	}
}

// Close wakes all waiters and makes future waits fail immediately.
func (n *VersionNotifier) Close() {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
	n.cond.Broadcast()
}
