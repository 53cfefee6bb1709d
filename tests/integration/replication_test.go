// Package integration exercises the whole replication pipeline
// end-to-end: mutations observed by the encoder, stored in a history,
// fetched and replayed onto an isomorphic replica.
package integration

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nielsenko/realm-core/group"
	"github.com/nielsenko/realm-core/history"
	"github.com/nielsenko/realm-core/repl"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSession(t *testing.T) *repl.Session {
	t.Helper()
	s := repl.NewSession(group.NewGroup(), history.NewMemory(0), discardLogger())
	t.Cleanup(func() { s.Close() })
	return s
}

// commit brackets mutate in a write transaction and returns the version
// it produced.
func commit(t *testing.T, s *repl.Session, mutate func(g *group.Group)) uint64 {
	t.Helper()
	require.NoError(t, s.BeginWrite())
	mutate(s.Group())
	v, err := s.CommitWrite()
	require.NoError(t, err)
	return v
}

// syncReplica replays the session's full history onto a fresh group and
// requires source and replica to be indistinguishable.
func syncReplica(t *testing.T, s *repl.Session) *group.Group {
	t.Helper()
	r := group.NewGroup()
	v, err := s.SyncTarget(r, 0)
	require.NoError(t, err)
	require.Equal(t, s.Version(), v)
	require.NoError(t, s.Group().Verify())
	require.NoError(t, r.Verify())
	require.True(t, s.Group().Equal(r), "replica diverged from source")
	return r
}

func TestReplicateGeneral(t *testing.T) {
	s := newSession(t)

	commit(t, s, func(g *group.Group) {
		tbl, err := g.AddTable("items")
		require.NoError(t, err)
		for _, spec := range []group.ColumnSpec{
			group.IntColumn("count"),
			group.BoolColumn("live"),
			group.StringColumn("label"),
			group.BinaryColumn("blob"),
			group.FloatColumn("ratio"),
			group.DoubleColumn("weight"),
			group.OldDateTimeColumn("created"),
			group.MixedColumn("extra"),
		} {
			_, err := tbl.AddColumn(spec)
			require.NoError(t, err)
		}
		_, err = tbl.AddEmptyRows(3)
		require.NoError(t, err)
		require.NoError(t, tbl.SetInt(0, 0, 127))
		require.NoError(t, tbl.SetBool(1, 0, true))
		require.NoError(t, tbl.SetString(2, 0, "banach"))
		require.NoError(t, tbl.SetBinary(3, 0, []byte{0, 7, 0, 7}))
		require.NoError(t, tbl.SetFloat(4, 1, 3.14))
		require.NoError(t, tbl.SetDouble(5, 1, 6.28))
		require.NoError(t, tbl.SetOldDateTime(6, 1, 1234567890))
		require.NoError(t, tbl.SetMixed(7, 2, group.MixedString("mixed up")))
	})
	syncReplica(t, s)

	commit(t, s, func(g *group.Group) {
		tbl := g.Table("items")
		require.NoError(t, tbl.RenameColumn(2, "name"))
		require.NoError(t, tbl.MoveColumn(0, 3))
		_, err := tbl.AddColumn(group.NullableIntColumn("maybe"))
		require.NoError(t, err)
		require.NoError(t, tbl.AddSearchIndex(0))
		require.NoError(t, tbl.Optimize())
		require.NoError(t, tbl.InsertEmptyRows(1, 2))
		require.NoError(t, tbl.EraseRow(0))
		require.NoError(t, tbl.MoveLastOver(1))
	})
	r := syncReplica(t, s)

	tbl := r.Table("items")
	require.Equal(t, "name", tbl.ColumnName(1))
	require.Equal(t, group.TypeInt, tbl.ColumnType(3))
	require.Equal(t, 3, tbl.Size())
}

func TestReplicateTimestamps(t *testing.T) {
	s := newSession(t)
	commit(t, s, func(g *group.Group) {
		tbl, err := g.AddTable("events")
		require.NoError(t, err)
		_, err = tbl.AddColumn(group.TimestampColumn("at"))
		require.NoError(t, err)
		_, err = tbl.AddEmptyRows(4)
		require.NoError(t, err)
		require.NoError(t, tbl.SetTimestamp(0, 0, group.Timestamp{Seconds: 1, Nanoseconds: 2}))
		require.NoError(t, tbl.SetTimestamp(0, 1, group.Timestamp{Seconds: -1, Nanoseconds: 0}))
		require.NoError(t, tbl.SetTimestamp(0, 2, group.Timestamp{}))
		// Row 3 goes through a set value before the null so the
		// replica sees a non-null cell overwritten with null.
		require.NoError(t, tbl.SetTimestamp(0, 3, group.Timestamp{Seconds: 7, Nanoseconds: 8}))
		require.NoError(t, tbl.SetNull(0, 3))
	})
	r := syncReplica(t, s)

	tbl := r.Table("events")
	require.Equal(t, group.Timestamp{Seconds: -1}, tbl.GetTimestamp(0, 1))
	require.False(t, tbl.IsNull(0, 2))
	require.True(t, tbl.IsNull(0, 3))
}

func TestReplicateNullableValues(t *testing.T) {
	s := newSession(t)
	commit(t, s, func(g *group.Group) {
		tbl, err := g.AddTable("sparse")
		require.NoError(t, err)
		_, err = tbl.AddColumn(group.NullableStringColumn("s"))
		require.NoError(t, err)
		_, err = tbl.AddColumn(group.NullableIntColumn("i"))
		require.NoError(t, err)
		_, err = tbl.AddColumn(group.NullableBinaryColumn("b"))
		require.NoError(t, err)
		_, err = tbl.AddEmptyRows(2)
		require.NoError(t, err)

		require.NoError(t, tbl.SetString(0, 0, ""))
		require.NoError(t, tbl.SetInt(1, 0, 0))
		require.NoError(t, tbl.SetBinary(2, 0, nil))
		require.NoError(t, tbl.SetNull(0, 1))
		require.NoError(t, tbl.SetNull(1, 1))
		require.NoError(t, tbl.SetNull(2, 1))
	})
	r := syncReplica(t, s)

	tbl := r.Table("sparse")
	// Empty and null are distinct states.
	require.False(t, tbl.IsNull(0, 0))
	require.False(t, tbl.IsNull(1, 0))
	require.True(t, tbl.IsNull(0, 1))
	require.True(t, tbl.IsNull(1, 1))
	require.True(t, tbl.IsNull(2, 1))
}

func TestReplicateLinks(t *testing.T) {
	s := newSession(t)

	commit(t, s, func(g *group.Group) {
		target, err := g.AddTable("target")
		require.NoError(t, err)
		_, err = target.AddColumn(group.IntColumn("v"))
		require.NoError(t, err)
		_, err = target.AddEmptyRows(4)
		require.NoError(t, err)

		origin, err := g.AddTable("origin")
		require.NoError(t, err)
		_, err = origin.AddColumn(group.LinkColumn("one", target))
		require.NoError(t, err)
		_, err = origin.AddColumn(group.LinkListColumn("many", target))
		require.NoError(t, err)
		_, err = origin.AddEmptyRows(2)
		require.NoError(t, err)

		require.NoError(t, origin.SetLink(0, 0, 2))
		require.NoError(t, origin.SetLink(0, 1, 3))
		require.NoError(t, origin.NullifyLink(0, 1))

		list, err := origin.LinkList(1, 0)
		require.NoError(t, err)
		require.NoError(t, list.Add(0))
		require.NoError(t, list.Add(1))
		require.NoError(t, list.Insert(1, 3))
		require.NoError(t, list.Set(0, 2))
		require.NoError(t, list.Move(2, 0))
		require.NoError(t, list.Swap(1, 2))
		require.NoError(t, list.Swap(1, 1)) // no-op, still replicated
		require.NoError(t, list.Erase(0))
	})
	r := syncReplica(t, s)

	origin := r.Table("origin")
	require.Equal(t, 2, origin.GetLink(0, 0))
	require.True(t, origin.LinkIsNull(0, 1))
	list, err := origin.LinkList(1, 0)
	require.NoError(t, err)
	require.Equal(t, 2, list.Size())

	// Clearing the list replicates too.
	commit(t, s, func(g *group.Group) {
		l, err := g.Table("origin").LinkList(1, 0)
		require.NoError(t, err)
		require.NoError(t, l.Clear())
	})
	syncReplica(t, s)
}

func TestReplicateCascades(t *testing.T) {
	s := newSession(t)

	commit(t, s, func(g *group.Group) {
		target, err := g.AddTable("owned")
		require.NoError(t, err)
		_, err = target.AddColumn(group.IntColumn("v"))
		require.NoError(t, err)
		_, err = target.AddEmptyRows(3)
		require.NoError(t, err)
		require.NoError(t, target.SetInt(0, 0, 10))
		require.NoError(t, target.SetInt(0, 1, 11))
		require.NoError(t, target.SetInt(0, 2, 12))

		owner, err := g.AddTable("owner")
		require.NoError(t, err)
		_, err = owner.AddColumn(group.StrongLinkColumn("one", target))
		require.NoError(t, err)
		_, err = owner.AddColumn(group.StrongLinkListColumn("many", target))
		require.NoError(t, err)
		_, err = owner.AddEmptyRows(2)
		require.NoError(t, err)
		require.NoError(t, owner.SetLink(0, 0, 0))
		list, err := owner.LinkList(1, 1)
		require.NoError(t, err)
		require.NoError(t, list.Add(1))
		require.NoError(t, list.Add(2))
	})
	syncReplica(t, s)

	// Removing the owning rows cascades; both sides recompute the same
	// removals from the erase instructions alone.
	commit(t, s, func(g *group.Group) {
		owner := g.Table("owner")
		require.NoError(t, owner.MoveLastOver(0))
		require.NoError(t, owner.MoveLastOver(0))
	})
	r := syncReplica(t, s)
	require.Equal(t, 0, r.Table("owned").Size())
}

func TestReplicateCascadeOnNullify(t *testing.T) {
	s := newSession(t)

	commit(t, s, func(g *group.Group) {
		target, err := g.AddTable("target")
		require.NoError(t, err)
		_, err = target.AddColumn(group.IntColumn("v"))
		require.NoError(t, err)
		_, err = target.AddEmptyRows(2)
		require.NoError(t, err)

		origin, err := g.AddTable("origin")
		require.NoError(t, err)
		_, err = origin.AddColumn(group.StrongLinkColumn("l", target))
		require.NoError(t, err)
		_, err = origin.AddEmptyRows(2)
		require.NoError(t, err)
		require.NoError(t, origin.SetLink(0, 0, 0))
		require.NoError(t, origin.SetLink(0, 1, 1))
	})
	syncReplica(t, s)

	// Nullifying the only strong reference into target[1] removes it.
	commit(t, s, func(g *group.Group) {
		require.NoError(t, g.Table("origin").NullifyLink(0, 1))
	})
	r := syncReplica(t, s)

	require.Equal(t, 1, r.Table("target").Size())
	require.Equal(t, 0, r.Table("origin").GetLink(0, 0))
	require.True(t, r.Table("origin").LinkIsNull(0, 1))
}

func TestReplicateLinkListSelfLinkNullification(t *testing.T) {
	s := newSession(t)

	commit(t, s, func(g *group.Group) {
		tbl, err := g.AddTable("knot")
		require.NoError(t, err)
		_, err = tbl.AddColumn(group.StrongLinkListColumn("next", tbl))
		require.NoError(t, err)
		_, err = tbl.AddEmptyRows(2)
		require.NoError(t, err)

		list, err := tbl.LinkList(0, 0)
		require.NoError(t, err)
		require.NoError(t, list.Add(0)) // row owns itself
		require.NoError(t, list.Add(1))
	})
	syncReplica(t, s)

	commit(t, s, func(g *group.Group) {
		require.NoError(t, g.Table("knot").MoveLastOver(0))
	})
	r := syncReplica(t, s)
	require.Equal(t, 0, r.Table("knot").Size())
}

func TestReplicateSetUnique(t *testing.T) {
	s := newSession(t)

	commit(t, s, func(g *group.Group) {
		tbl, err := g.AddTable("keyed")
		require.NoError(t, err)
		_, err = tbl.AddColumn(group.ColumnSpec{Name: "pk", Type: group.TypeInt, SearchIndex: true})
		require.NoError(t, err)
		_, err = tbl.AddColumn(group.ColumnSpec{Name: "name", Type: group.TypeString, Nullable: true, SearchIndex: true})
		require.NoError(t, err)
		_, err = tbl.AddColumn(group.IntColumn("payload"))
		require.NoError(t, err)

		_, err = tbl.AddRowWithKey(0, 42)
		require.NoError(t, err)
		row, err := tbl.AddEmptyRow()
		require.NoError(t, err)
		_, err = tbl.SetIntUnique(0, row, 7)
		require.NoError(t, err)
		_, err = tbl.SetStringUnique(1, row, "seven")
		require.NoError(t, err)
	})
	syncReplica(t, s)

	// A colliding unique set collapses the new row into the existing
	// one on both sides.
	commit(t, s, func(g *group.Group) {
		tbl := g.Table("keyed")
		row, err := tbl.AddEmptyRow()
		require.NoError(t, err)
		survivor, err := tbl.SetIntUnique(0, row, 42)
		require.NoError(t, err)
		require.NoError(t, tbl.SetInt(2, survivor, 99))

		// Row 0 never had its name set, so writing null collides with
		// it and collapses this row too.
		row, err = tbl.AddEmptyRow()
		require.NoError(t, err)
		survivor, err = tbl.SetNullUnique(1, row)
		require.NoError(t, err)
		require.Equal(t, 0, survivor)
	})
	r := syncReplica(t, s)

	tbl := r.Table("keyed")
	require.Equal(t, 2, tbl.Size())
	require.Equal(t, int64(99), tbl.GetInt(2, 0))
}

func TestReplicateTableMoveRename(t *testing.T) {
	s := newSession(t)

	commit(t, s, func(g *group.Group) {
		a, err := g.AddTable("a")
		require.NoError(t, err)
		b, err := g.AddTable("b")
		require.NoError(t, err)
		_, err = b.AddColumn(group.LinkColumn("to_a", a))
		require.NoError(t, err)
		_, err = a.AddColumn(group.IntColumn("v"))
		require.NoError(t, err)
		_, err = a.AddEmptyRows(1)
		require.NoError(t, err)
		_, err = b.AddEmptyRows(1)
		require.NoError(t, err)
		require.NoError(t, b.SetLink(0, 0, 0))
	})
	commit(t, s, func(g *group.Group) {
		require.NoError(t, g.RenameTable(0, "alpha"))
		require.NoError(t, g.MoveTable(0, 1))
	})
	r := syncReplica(t, s)

	require.Equal(t, "b", r.TableAt(0).Name())
	require.Equal(t, "alpha", r.TableAt(1).Name())
	// The link column still resolves across the move.
	require.Equal(t, 0, r.TableAt(0).GetLink(0, 0))
}

func TestReplicateMergeRows(t *testing.T) {
	s := newSession(t)

	commit(t, s, func(g *group.Group) {
		target, err := g.AddTable("people")
		require.NoError(t, err)
		_, err = target.AddColumn(group.StringColumn("name"))
		require.NoError(t, err)
		_, err = target.AddEmptyRows(2)
		require.NoError(t, err)
		require.NoError(t, target.SetString(0, 0, "old"))
		require.NoError(t, target.SetString(0, 1, "new"))

		origin, err := g.AddTable("refs")
		require.NoError(t, err)
		_, err = origin.AddColumn(group.LinkColumn("p", target))
		require.NoError(t, err)
		_, err = origin.AddEmptyRows(1)
		require.NoError(t, err)
		require.NoError(t, origin.SetLink(0, 0, 0))
	})
	commit(t, s, func(g *group.Group) {
		require.NoError(t, g.Table("people").MergeRows(0, 1))
	})
	r := syncReplica(t, s)

	// Inbound links were redirected to the merge target.
	require.Equal(t, 1, r.Table("refs").GetLink(0, 0))
}

func TestReplicateSubstrings(t *testing.T) {
	s := newSession(t)

	commit(t, s, func(g *group.Group) {
		tbl, err := g.AddTable("docs")
		require.NoError(t, err)
		_, err = tbl.AddColumn(group.StringColumn("body"))
		require.NoError(t, err)
		_, err = tbl.AddEmptyRows(1)
		require.NoError(t, err)
		require.NoError(t, tbl.SetString(0, 0, "0123456789"))
		require.NoError(t, tbl.InsertSubstring(0, 0, 5, "abc"))
		require.NoError(t, tbl.EraseSubstring(0, 0, 0, 2))
	})
	r := syncReplica(t, s)
	require.Equal(t, "234abc56789", r.Table("docs").GetString(0, 0))
}

func TestReplicateSubtables(t *testing.T) {
	s := newSession(t)

	commit(t, s, func(g *group.Group) {
		tbl, err := g.AddTable("parents")
		require.NoError(t, err)
		_, err = tbl.AddColumn(group.SubtableColumn("kids", []group.ColumnSpec{
			group.IntColumn("age"),
			group.StringColumn("name"),
		}))
		require.NoError(t, err)
		_, err = tbl.AddEmptyRows(2)
		require.NoError(t, err)

		sub := tbl.GetSubtable(0, 1)
		_, err = sub.AddEmptyRows(1)
		require.NoError(t, err)
		require.NoError(t, sub.SetInt(0, 0, 9))
		require.NoError(t, sub.SetString(1, 0, "kid"))
	})
	r := syncReplica(t, s)

	sub := r.Table("parents").GetSubtable(0, 1)
	require.Equal(t, int64(9), sub.GetInt(0, 0))
	require.Equal(t, "kid", sub.GetString(1, 0))
}

func TestMoveSelectedLinkView(t *testing.T) {
	s := newSession(t)

	commit(t, s, func(g *group.Group) {
		target, err := g.AddTable("t")
		require.NoError(t, err)
		_, err = target.AddColumn(group.IntColumn("v"))
		require.NoError(t, err)
		_, err = target.AddEmptyRows(4)
		require.NoError(t, err)

		origin, err := g.AddTable("o")
		require.NoError(t, err)
		_, err = origin.AddColumn(group.LinkListColumn("l", target))
		require.NoError(t, err)
		_, err = origin.AddEmptyRows(3)
		require.NoError(t, err)
	})

	// Mutate a list, move its row out from under the selection, keep
	// mutating through the same accessor.
	commit(t, s, func(g *group.Group) {
		origin := g.Table("o")
		list, err := origin.LinkList(0, 2)
		require.NoError(t, err)
		require.NoError(t, list.Add(0))
		require.NoError(t, origin.MoveLastOver(0)) // list's row 2 becomes row 0
		require.Equal(t, 0, list.Row())
		require.NoError(t, list.Add(1))
		require.NoError(t, list.Add(2))
	})
	r := syncReplica(t, s)

	list, err := r.Table("o").LinkList(0, 0)
	require.NoError(t, err)
	require.Equal(t, 3, list.Size())
	require.Equal(t, 1, list.Get(1))
}

func TestIncrementalSync(t *testing.T) {
	s := newSession(t)

	commit(t, s, func(g *group.Group) {
		tbl, err := g.AddTable("n")
		require.NoError(t, err)
		_, err = tbl.AddColumn(group.IntColumn("v"))
		require.NoError(t, err)
		_, err = tbl.AddEmptyRows(1)
		require.NoError(t, err)
	})
	replica := syncReplica(t, s)
	at := s.Version()

	commit(t, s, func(g *group.Group) {
		require.NoError(t, g.Table("n").SetInt(0, 0, 1))
	})
	commit(t, s, func(g *group.Group) {
		require.NoError(t, g.Table("n").SetInt(0, 0, 2))
	})

	// Catch the lagging replica up from where it stopped.
	v, err := s.SyncTarget(replica, at)
	require.NoError(t, err)
	require.Equal(t, s.Version(), v)
	require.True(t, s.Group().Equal(replica))
	require.Equal(t, int64(2), replica.Table("n").GetInt(0, 0))
}

func TestRollbackKeepsReplicasInStep(t *testing.T) {
	s := newSession(t)

	commit(t, s, func(g *group.Group) {
		tbl, err := g.AddTable("n")
		require.NoError(t, err)
		_, err = tbl.AddColumn(group.IntColumn("v"))
		require.NoError(t, err)
		_, err = tbl.AddEmptyRows(1)
		require.NoError(t, err)
	})

	// An abandoned write never reaches the history.
	require.NoError(t, s.BeginWrite())
	require.NoError(t, s.Group().Table("n").SetInt(0, 0, 5))
	require.NoError(t, s.RollbackWrite())
	require.Equal(t, uint64(1), s.Version())

	cs, err := s.Changesets(0)
	require.NoError(t, err)
	require.Len(t, cs, 1)
}
