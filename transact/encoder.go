package transact

import (
	"github.com/nielsenko/realm-core/group"
	"github.com/nielsenko/realm-core/internal/intenc"
)

// Encoder serializes the mutations of one transaction into a
// changeset. Install it on the group under mutation with SetObserver;
// Reset begins a new changeset, Bytes returns the finished stream.
//
// Cell-level instructions address the most recently selected table and
// link list, so runs of operations against one container pay for a
// single select. Selection is tracked by accessor identity: live
// accessors move with their rows on both sides of a replication link,
// so a selection survives row motion without re-emission.
type Encoder struct {
	buf []byte
	hdr int // length of the header written by Reset

	selTable *group.Table
	selList  *group.LinkView
}

// NewEncoder returns an encoder with an empty changeset for the given
// transaction version.
func NewEncoder(version uint64) *Encoder {
	e := &Encoder{}
	e.Reset(version)
	return e
}

// Reset discards any accumulated instructions and starts a changeset
// producing the given transaction version.
func (e *Encoder) Reset(version uint64) {
	e.buf = e.buf[:0]
	e.buf = intenc.AppendUint(e.buf, FormatVersion)
	e.buf = intenc.AppendUint(e.buf, version)
	e.hdr = len(e.buf)
	e.selTable = nil
	e.selList = nil
}

// Bytes returns the encoded changeset. The slice aliases the encoder's
// buffer and is invalidated by the next Reset.
func (e *Encoder) Bytes() []byte { return e.buf }

// Empty reports whether no instruction followed the header.
func (e *Encoder) Empty() bool { return len(e.buf) == e.hdr }

func (e *Encoder) tag(t byte) { e.buf = append(e.buf, t) }

func (e *Encoder) index(v int) { e.buf = intenc.AppendUint(e.buf, uint64(v)) }

// selectTable emits a select-table instruction unless t is already the
// cursor. Group-level schema instructions do not require a selection.
func (e *Encoder) selectTable(t *group.Table) {
	if t == e.selTable {
		return
	}
	e.tag(instrSelectTable)
	e.index(t.Root().Index())
	path := t.Path()
	e.index(len(path))
	for _, p := range path {
		e.index(p.Col)
		e.index(p.Row)
	}
	e.selTable = t
	e.selList = nil
}

// selectList emits select-table and select-link-list as needed to make
// l the cursor.
func (e *Encoder) selectList(l *group.LinkView) {
	if l == e.selList {
		return
	}
	e.selectTable(l.Table())
	e.tag(instrSelectLinkList)
	e.index(l.Column())
	e.index(l.Row())
	e.selList = l
}

func (e *Encoder) appendColumnInfo(spec group.ColumnSpec) {
	e.buf = intenc.AppendString(e.buf, spec.Name)
	e.buf = append(e.buf, byte(spec.Type))
	var flags byte
	if spec.Nullable {
		flags |= colFlagNullable
	}
	if spec.LinkType == group.LinkStrong {
		flags |= colFlagStrong
	}
	if spec.SearchIndex {
		flags |= colFlagIndexed
	}
	e.buf = append(e.buf, flags)
	switch spec.Type {
	case group.TypeLink, group.TypeLinkList:
		e.index(spec.Target.Index())
	case group.TypeTable:
		e.index(len(spec.SubSpec))
		for _, sub := range spec.SubSpec {
			e.appendColumnInfo(sub)
		}
	}
}

func (e *Encoder) appendMixed(v group.Mixed) {
	e.buf = append(e.buf, byte(v.Type))
	switch v.Type {
	case group.TypeInt, group.TypeOldDateTime:
		e.buf = intenc.AppendInt(e.buf, v.Int)
	case group.TypeBool:
		e.buf = intenc.AppendBool(e.buf, v.Bool)
	case group.TypeFloat:
		e.buf = intenc.AppendFloat(e.buf, v.Float)
	case group.TypeDouble:
		e.buf = intenc.AppendDouble(e.buf, v.Double)
	case group.TypeString:
		e.buf = intenc.AppendString(e.buf, v.String)
	case group.TypeBinary:
		e.buf = intenc.AppendBytes(e.buf, v.Binary)
	case group.TypeTimestamp:
		e.buf = intenc.AppendInt(e.buf, v.Timestamp.Seconds)
		e.buf = intenc.AppendInt(e.buf, int64(v.Timestamp.Nanoseconds))
	case group.TypeTable:
		// Embedded subtable markers carry no payload.
	}
}

//
// group.Observer
//

func (e *Encoder) InsertGroupLevelTable(ndx int, name string) {
	e.tag(instrInsertGroupLevelTable)
	e.index(ndx)
	e.buf = intenc.AppendString(e.buf, name)
}

func (e *Encoder) EraseGroupLevelTable(ndx int) {
	e.tag(instrEraseGroupLevelTable)
	e.index(ndx)
}

func (e *Encoder) RenameGroupLevelTable(ndx int, name string) {
	e.tag(instrRenameGroupLevelTable)
	e.index(ndx)
	e.buf = intenc.AppendString(e.buf, name)
}

func (e *Encoder) MoveGroupLevelTable(from, to int) {
	e.tag(instrMoveGroupLevelTable)
	e.index(from)
	e.index(to)
}

func (e *Encoder) InsertColumn(t *group.Table, ndx int, spec group.ColumnSpec) {
	e.selectTable(t)
	e.tag(instrInsertColumn)
	e.index(ndx)
	e.appendColumnInfo(spec)
}

func (e *Encoder) EraseColumn(t *group.Table, ndx int) {
	e.selectTable(t)
	e.tag(instrEraseColumn)
	e.index(ndx)
}

func (e *Encoder) RenameColumn(t *group.Table, ndx int, name string) {
	e.selectTable(t)
	e.tag(instrRenameColumn)
	e.index(ndx)
	e.buf = intenc.AppendString(e.buf, name)
}

func (e *Encoder) MoveColumn(t *group.Table, from, to int) {
	e.selectTable(t)
	e.tag(instrMoveColumn)
	e.index(from)
	e.index(to)
}

func (e *Encoder) AddSearchIndex(t *group.Table, ndx int) {
	e.selectTable(t)
	e.tag(instrAddSearchIndex)
	e.index(ndx)
}

func (e *Encoder) RemoveSearchIndex(t *group.Table, ndx int) {
	e.selectTable(t)
	e.tag(instrRemoveSearchIndex)
	e.index(ndx)
}

func (e *Encoder) InsertEmptyRows(t *group.Table, ndx, n int) {
	e.selectTable(t)
	e.tag(instrInsertEmptyRows)
	e.index(ndx)
	e.index(n)
}

func (e *Encoder) EraseRows(t *group.Table, ndx, n int, moveLastOver bool) {
	e.selectTable(t)
	e.tag(instrEraseRows)
	e.index(ndx)
	e.index(n)
	e.buf = intenc.AppendBool(e.buf, moveLastOver)
}

func (e *Encoder) ClearTable(t *group.Table) {
	e.selectTable(t)
	e.tag(instrClearTable)
}

func (e *Encoder) OptimizeTable(t *group.Table) {
	e.selectTable(t)
	e.tag(instrOptimizeTable)
}

func (e *Encoder) AddRowWithKey(t *group.Table, col int, key int64) {
	e.selectTable(t)
	e.tag(instrAddRowWithKey)
	e.index(col)
	e.buf = intenc.AppendInt(e.buf, key)
}

func (e *Encoder) MergeRows(t *group.Table, from, to int) {
	e.selectTable(t)
	e.tag(instrMergeRows)
	e.index(from)
	e.index(to)
}

func (e *Encoder) cell(t *group.Table, tag byte, col, row int) {
	e.selectTable(t)
	e.tag(tag)
	e.index(col)
	e.index(row)
}

func (e *Encoder) SetInt(t *group.Table, col, row int, v int64) {
	e.cell(t, instrSetInt, col, row)
	e.buf = intenc.AppendInt(e.buf, v)
}

func (e *Encoder) SetIntUnique(t *group.Table, col, row int, v int64) {
	e.cell(t, instrSetIntUnique, col, row)
	e.buf = intenc.AppendInt(e.buf, v)
}

func (e *Encoder) SetBool(t *group.Table, col, row int, v bool) {
	e.cell(t, instrSetBool, col, row)
	e.buf = intenc.AppendBool(e.buf, v)
}

func (e *Encoder) SetFloat(t *group.Table, col, row int, v float32) {
	e.cell(t, instrSetFloat, col, row)
	e.buf = intenc.AppendFloat(e.buf, v)
}

func (e *Encoder) SetDouble(t *group.Table, col, row int, v float64) {
	e.cell(t, instrSetDouble, col, row)
	e.buf = intenc.AppendDouble(e.buf, v)
}

func (e *Encoder) SetString(t *group.Table, col, row int, v string) {
	e.cell(t, instrSetString, col, row)
	e.buf = intenc.AppendString(e.buf, v)
}

func (e *Encoder) SetStringUnique(t *group.Table, col, row int, v string) {
	e.cell(t, instrSetStringUnique, col, row)
	e.buf = intenc.AppendString(e.buf, v)
}

func (e *Encoder) SetBinary(t *group.Table, col, row int, v []byte) {
	e.cell(t, instrSetBinary, col, row)
	e.buf = intenc.AppendBytes(e.buf, v)
}

func (e *Encoder) SetOldDateTime(t *group.Table, col, row int, v int64) {
	e.cell(t, instrSetOldDateTime, col, row)
	e.buf = intenc.AppendInt(e.buf, v)
}

func (e *Encoder) SetTimestamp(t *group.Table, col, row int, v group.Timestamp) {
	e.cell(t, instrSetTimestamp, col, row)
	e.buf = intenc.AppendInt(e.buf, v.Seconds)
	e.buf = intenc.AppendInt(e.buf, int64(v.Nanoseconds))
}

func (e *Encoder) SetMixed(t *group.Table, col, row int, v group.Mixed) {
	e.cell(t, instrSetMixed, col, row)
	e.appendMixed(v)
}

func (e *Encoder) SetNull(t *group.Table, col, row int) {
	e.cell(t, instrSetNull, col, row)
}

func (e *Encoder) SetNullUnique(t *group.Table, col, row int) {
	e.cell(t, instrSetNullUnique, col, row)
}

func (e *Encoder) InsertSubstring(t *group.Table, col, row, pos int, s string) {
	e.cell(t, instrInsertSubstring, col, row)
	e.index(pos)
	e.buf = intenc.AppendString(e.buf, s)
}

func (e *Encoder) EraseSubstring(t *group.Table, col, row, pos, size int) {
	e.cell(t, instrEraseSubstring, col, row)
	e.index(pos)
	e.index(size)
}

func (e *Encoder) SetLink(t *group.Table, col, row, target int) {
	e.cell(t, instrSetLink, col, row)
	// Null links travel as zigzag -1 so the tag stays generic.
	e.buf = intenc.AppendInt(e.buf, int64(target))
}

func (e *Encoder) NullifyLink(t *group.Table, col, row int) {
	e.cell(t, instrNullifyLink, col, row)
}

func (e *Encoder) LinkListInsert(l *group.LinkView, ndx, target int) {
	e.selectList(l)
	e.tag(instrLinkListInsert)
	e.index(ndx)
	e.index(target)
}

func (e *Encoder) LinkListSet(l *group.LinkView, ndx, target int) {
	e.selectList(l)
	e.tag(instrLinkListSet)
	e.index(ndx)
	e.index(target)
}

func (e *Encoder) LinkListErase(l *group.LinkView, ndx int) {
	e.selectList(l)
	e.tag(instrLinkListErase)
	e.index(ndx)
}

func (e *Encoder) LinkListMove(l *group.LinkView, from, to int) {
	e.selectList(l)
	e.tag(instrLinkListMove)
	e.index(from)
	e.index(to)
}

func (e *Encoder) LinkListSwap(l *group.LinkView, a, b int) {
	e.selectList(l)
	e.tag(instrLinkListSwap)
	e.index(a)
	e.index(b)
}

func (e *Encoder) LinkListClear(l *group.LinkView) {
	e.selectList(l)
	e.tag(instrLinkListClear)
}

var _ group.Observer = (*Encoder)(nil)
