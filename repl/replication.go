// Package repl ties the pieces together: a Session owns a group, an
// encoder and a history, turns each write transaction into a versioned
// changeset, and lets lagging replicas fetch and replay what they
// missed.
package repl

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nielsenko/realm-core/group"
	"github.com/nielsenko/realm-core/history"
	"github.com/nielsenko/realm-core/transact"
)

var (
	// ErrWriteInProgress reports a second BeginWrite before commit or
	// rollback.
	ErrWriteInProgress = errors.New("repl: write transaction already open")
	// ErrNoWrite reports a commit or rollback without an open write.
	ErrNoWrite = errors.New("repl: no write transaction open")
	// ErrSessionClosed reports use of a closed session.
	ErrSessionClosed = errors.New("repl: session closed")
)

// Session is a replication session over one group. All methods are
// safe for concurrent use, but a write transaction has a single owner:
// BeginWrite to CommitWrite/RollbackWrite brackets one writer.
//
// Committing is two-phase. The prepare step hands the changeset to the
// history and may fail, leaving the write open; the finalize step
// advances the version and wakes waiters and cannot fail. A crash
// between the phases leaves a prepared changeset whose version the
// session never announced, which a reopened history resumes past.
type Session struct {
	mu sync.Mutex

	id    uuid.UUID
	log   *slog.Logger
	group *group.Group
	hist  history.History
	enc   *transact.Encoder

	version  uint64
	writing  bool
	prepared bool
	closed   bool

	notifier *VersionNotifier
}

// NewSession opens a replication session binding g to h. The session's
// current version is the history's head; g must hold the snapshot that
// version names.
func NewSession(g *group.Group, h history.History, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	version := h.LastVersion()
	s := &Session{
		id:       uuid.New(),
		log:      log,
		group:    g,
		hist:     h,
		version:  version,
		notifier: NewVersionNotifier(version),
	}
	s.log.Debug("session open", "session", s.id, "version", version)
	return s
}

// ID returns the session's instance id, unique per open session.
func (s *Session) ID() uuid.UUID { return s.id }

// Version returns the version of the current snapshot.
func (s *Session) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Group returns the group the session replicates.
func (s *Session) Group() *group.Group { return s.group }

// BeginWrite opens a write transaction: every mutation of the group
// until CommitWrite is recorded into one changeset.
func (s *Session) BeginWrite() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.writing {
		return ErrWriteInProgress
	}
	if s.enc == nil {
		s.enc = transact.NewEncoder(s.version + 1)
	} else {
		s.enc.Reset(s.version + 1)
	}
	s.group.SetObserver(s.enc)
	s.writing = true
	s.log.Debug("begin write", "session", s.id, "version", s.version+1)
	return nil
}

// CommitWrite closes the write transaction, stores its changeset and
// returns the new version.
func (s *Session) CommitWrite() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrSessionClosed
	}
	if !s.writing {
		return 0, ErrNoWrite
	}
	if err := s.prepareCommit(); err != nil {
		return 0, err
	}
	return s.finalizeCommit(), nil
}

// prepareCommit hands the changeset to the history. On failure the
// write stays open and nothing is observable to readers.
func (s *Session) prepareCommit() error {
	if s.prepared {
		return nil
	}
	if err := s.hist.Append(s.version+1, s.enc.Bytes()); err != nil {
		return fmt.Errorf("prepare commit: %w", err)
	}
	s.prepared = true
	return nil
}

// finalizeCommit publishes the prepared version. It cannot fail.
func (s *Session) finalizeCommit() uint64 {
	s.group.SetObserver(nil)
	s.version++
	s.writing = false
	s.prepared = false
	s.notifier.Advance(s.version)
	s.log.Debug("commit", "session", s.id, "version", s.version)
	return s.version
}

// RollbackWrite abandons the write transaction and its changeset. The
// group itself is not rewound; the caller owns discarding or rebuilding
// the mutated state.
func (s *Session) RollbackWrite() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if !s.writing {
		return ErrNoWrite
	}
	if s.prepared {
		// The history already holds the changeset; publishing is the
		// only consistent way out.
		s.finalizeCommit()
		return nil
	}
	s.group.SetObserver(nil)
	s.writing = false
	s.log.Debug("rollback", "session", s.id, "version", s.version+1)
	return nil
}

// Changesets returns the changesets a replica at version from must
// replay to reach the session's current version.
func (s *Session) Changesets(from uint64) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	return s.hist.Changesets(from, s.version)
}

// SyncTarget replays everything after fromVersion onto target and
// returns the version target ends up at. target must hold the snapshot
// fromVersion names and must not be the session's own group.
func (s *Session) SyncTarget(target *group.Group, fromVersion uint64) (uint64, error) {
	changesets, err := s.Changesets(fromVersion)
	if err != nil {
		return fromVersion, err
	}
	version := fromVersion
	for _, buf := range changesets {
		v, err := transact.Apply(buf, target, s.log)
		if err != nil {
			return version, err
		}
		version = v
	}
	return version, nil
}

// WaitForVersion blocks until the session commits version v or the
// timeout expires, returning the newest version either way.
func (s *Session) WaitForVersion(v uint64, timeout time.Duration) (uint64, error) {
	return s.notifier.Wait(v, timeout)
}

// Close terminates the session. An open write is rolled back.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if s.writing && !s.prepared {
		s.group.SetObserver(nil)
		s.writing = false
	}
	s.closed = true
	s.notifier.Close()
	s.log.Debug("session closed", "session", s.id, "version", s.version)
	return s.hist.Close()
}
