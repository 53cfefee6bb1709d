package repl

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/nielsenko/realm-core/group"
	"github.com/nielsenko/realm-core/history"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s := NewSession(group.NewGroup(), history.NewMemory(0), nil)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionWriteLifecycle(t *testing.T) {
	s := newTestSession(t)

	if _, err := s.CommitWrite(); !errors.Is(err, ErrNoWrite) {
		t.Fatalf("commit without write: err = %v", err)
	}
	if err := s.BeginWrite(); err != nil {
		t.Fatal(err)
	}
	if err := s.BeginWrite(); !errors.Is(err, ErrWriteInProgress) {
		t.Fatalf("nested begin: err = %v", err)
	}

	tbl, err := s.Group().AddTable("t")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tbl.AddColumn(group.IntColumn("v")); err != nil {
		t.Fatal(err)
	}

	v, err := s.CommitWrite()
	if err != nil {
		t.Fatal(err)
	}
	if v != 1 || s.Version() != 1 {
		t.Fatalf("version after commit = %d/%d, want 1", v, s.Version())
	}

	changesets, err := s.Changesets(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(changesets) != 1 {
		t.Fatalf("changeset count = %d, want 1", len(changesets))
	}
}

func TestSessionSyncTarget(t *testing.T) {
	s := newTestSession(t)

	for i := 0; i < 3; i++ {
		if err := s.BeginWrite(); err != nil {
			t.Fatal(err)
		}
		if i == 0 {
			tbl, _ := s.Group().AddTable("t")
			tbl.AddColumn(group.IntColumn("v"))
		}
		tbl := s.Group().Table("t")
		r, _ := tbl.AddEmptyRow()
		tbl.SetInt(0, r, int64(i*10))
		if _, err := s.CommitWrite(); err != nil {
			t.Fatal(err)
		}
	}

	// A fresh replica catches up from the very beginning.
	replica := group.NewGroup()
	v, err := s.SyncTarget(replica, 0)
	if err != nil {
		t.Fatal(err)
	}
	if v != 3 {
		t.Fatalf("replica version = %d, want 3", v)
	}
	if !s.Group().Equal(replica) {
		t.Fatal("replica diverged from source")
	}

	// A caught-up replica receives nothing further and stays equal.
	if err := s.BeginWrite(); err != nil {
		t.Fatal(err)
	}
	s.Group().Table("t").SetInt(0, 0, 999)
	if _, err := s.CommitWrite(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SyncTarget(replica, v); err != nil {
		t.Fatal(err)
	}
	if !s.Group().Equal(replica) {
		t.Fatal("incremental sync diverged")
	}
}

func TestRollbackDiscardsChangeset(t *testing.T) {
	s := newTestSession(t)
	if err := s.BeginWrite(); err != nil {
		t.Fatal(err)
	}
	s.Group().AddTable("junk")
	if err := s.RollbackWrite(); err != nil {
		t.Fatal(err)
	}
	if s.Version() != 0 {
		t.Fatalf("version after rollback = %d, want 0", s.Version())
	}
	changesets, err := s.Changesets(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(changesets) != 0 {
		t.Fatal("rollback must not publish a changeset")
	}
	// The next write starts clean.
	if err := s.BeginWrite(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CommitWrite(); err != nil {
		t.Fatal(err)
	}
}

func TestCommitFailureLeavesWriteOpen(t *testing.T) {
	g := group.NewGroup()
	// A history whose head disagrees with the session makes every
	// prepare fail.
	h := history.NewMemory(5)
	s := &Session{
		group:    g,
		hist:     h,
		log:      discardLogger(),
		version:  0,
		notifier: NewVersionNotifier(0),
	}
	if err := s.BeginWrite(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CommitWrite(); !errors.Is(err, history.ErrBadVersion) {
		t.Fatalf("commit: err = %v", err)
	}
	// Prepare failed, so the write is still open and can be rolled
	// back without publishing.
	if err := s.RollbackWrite(); err != nil {
		t.Fatal(err)
	}
	if s.Version() != 0 {
		t.Fatalf("version = %d, want 0", s.Version())
	}
}

func TestSessionClosed(t *testing.T) {
	s := newTestSession(t)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.BeginWrite(); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("begin on closed session: err = %v", err)
	}
	if _, err := s.Changesets(0); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("changesets on closed session: err = %v", err)
	}
}

func TestSessionIDsAreUnique(t *testing.T) {
	a := newTestSession(t)
	b := newTestSession(t)
	if a.ID() == b.ID() {
		t.Fatal("two sessions share an instance id")
	}
}

func TestWaitForVersion(t *testing.T) {
	s := newTestSession(t)

	done := make(chan struct{})
	var got uint64
	var gotErr error
	go func() {
		defer close(done)
		got, gotErr = s.WaitForVersion(1, 5*time.Second)
	}()

	time.Sleep(10 * time.Millisecond)
	if err := s.BeginWrite(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CommitWrite(); err != nil {
		t.Fatal(err)
	}

	<-done
	if gotErr != nil || got != 1 {
		t.Fatalf("wait returned %d, %v", got, gotErr)
	}

	// Already-published versions return immediately.
	if v, err := s.WaitForVersion(1, 0); err != nil || v != 1 {
		t.Fatalf("immediate wait: %d, %v", v, err)
	}
}

func TestWaitForVersionTimeout(t *testing.T) {
	s := newTestSession(t)
	v, err := s.WaitForVersion(99, 20*time.Millisecond)
	if !errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("err = %v, want ErrWaitTimeout", err)
	}
	if v != 0 {
		t.Fatalf("version = %d, want 0", v)
	}
}

func TestWaitForVersionClose(t *testing.T) {
	s := newTestSession(t)
	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.WaitForVersion(99, 5*time.Second)
		}(i)
	}
	time.Sleep(10 * time.Millisecond)
	s.Close()
	wg.Wait()
	for i, err := range errs {
		if !errors.Is(err, ErrSessionClosed) {
			t.Fatalf("waiter %d: err = %v", i, err)
		}
	}
}

func TestNotifierSpuriousSafety(t *testing.T) {
	n := NewVersionNotifier(0)
	done := make(chan struct{})
	go func() {
		defer close(done)
		n.Wait(3, 5*time.Second)
	}()
	// Intermediate versions wake the waiter, which must keep waiting.
	n.Advance(1)
	n.Advance(2)
	select {
	case <-done:
		t.Fatal("waiter returned before its version")
	case <-time.After(20 * time.Millisecond):
	}
	n.Advance(3)
	<-done
	if n.Version() != 3 {
		t.Fatalf("version = %d, want 3", n.Version())
	}
}
