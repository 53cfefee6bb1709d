package integration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nielsenko/realm-core/group"
	"github.com/nielsenko/realm-core/history"
	"github.com/nielsenko/realm-core/repl"
	"github.com/nielsenko/realm-core/transact"
)

func newFileSession(t *testing.T, dir string) *repl.Session {
	t.Helper()
	l, err := history.OpenFileLog(dir, 0, 0, 0)
	require.NoError(t, err)
	return repl.NewSession(group.NewGroup(), l, discardLogger())
}

func TestFileLogSessionPersistence(t *testing.T) {
	dir := t.TempDir()
	s := newFileSession(t, dir)

	commit(t, s, func(g *group.Group) {
		tbl, err := g.AddTable("n")
		require.NoError(t, err)
		_, err = tbl.AddColumn(group.IntColumn("v"))
		require.NoError(t, err)
		_, err = tbl.AddEmptyRows(1)
		require.NoError(t, err)
	})
	commit(t, s, func(g *group.Group) {
		require.NoError(t, g.Table("n").SetInt(0, 0, 41))
	})
	commit(t, s, func(g *group.Group) {
		require.NoError(t, g.Table("n").SetInt(0, 0, 42))
	})
	source := s.Group()
	require.NoError(t, s.Close())

	// Reopen the log and rebuild the snapshot from disk alone.
	l, err := history.OpenFileLog(dir, 0, 0, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(3), l.LastVersion())

	r := group.NewGroup()
	changesets, err := l.Changesets(0, 3)
	require.NoError(t, err)
	for i, c := range changesets {
		v, err := transact.Apply(c, r, discardLogger())
		require.NoError(t, err)
		require.Equal(t, uint64(i)+1, v)
	}
	require.True(t, source.Equal(r))
	require.Equal(t, int64(42), r.Table("n").GetInt(0, 0))

	// The reopened log keeps serving sessions where the old one left.
	s2 := repl.NewSession(r, l, discardLogger())
	defer s2.Close()
	require.Equal(t, uint64(3), s2.Version())
	commit(t, s2, func(g *group.Group) {
		require.NoError(t, g.Table("n").SetInt(0, 0, 43))
	})
	require.Equal(t, uint64(4), s2.Version())
}

func TestTrimmedHistoryRejectsStaleReplica(t *testing.T) {
	dir := t.TempDir()
	// Tiny segments so each commit lands in its own file.
	l, err := history.OpenFileLog(dir, 0, 64, 0)
	require.NoError(t, err)
	s := repl.NewSession(group.NewGroup(), l, discardLogger())
	defer s.Close()

	commit(t, s, func(g *group.Group) {
		_, err := g.AddTable("a")
		require.NoError(t, err)
	})
	commit(t, s, func(g *group.Group) {
		_, err := g.AddTable("b")
		require.NoError(t, err)
	})
	commit(t, s, func(g *group.Group) {
		_, err := g.AddTable("c")
		require.NoError(t, err)
	})

	require.NoError(t, l.TrimBefore(2))
	_, err = s.Changesets(0)
	require.ErrorIs(t, err, history.ErrStale)

	// A replica new enough still syncs.
	cs, err := s.Changesets(l.BaseVersion())
	require.NoError(t, err)
	require.NotEmpty(t, cs)
}

func TestWaitForVersionAcrossCommits(t *testing.T) {
	s := newSession(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		v, err := s.WaitForVersion(1, 5*time.Second)
		if err == nil && v >= 1 {
			return
		}
		t.Errorf("WaitForVersion(1) = %d, %v", v, err)
	}()

	commit(t, s, func(g *group.Group) {
		_, err := g.AddTable("t")
		require.NoError(t, err)
	})
	<-done
}
