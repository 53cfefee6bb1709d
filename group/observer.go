package group

// Observer receives one callback per structural or value-level
// mutation, synchronously, before the mutation is carried out. The
// changeset encoder implements it; a Group without an observer mutates
// silently (this is how a replication target is driven).
//
// Internal consequences of a mutation — backlink bookkeeping, index
// retargeting under move-last-over, cascading deletes — are never
// reported: a replica recomputes them by running the same table
// operations.
type Observer interface {
	// Group-level schema.
	InsertGroupLevelTable(ndx int, name string)
	EraseGroupLevelTable(ndx int)
	RenameGroupLevelTable(ndx int, name string)
	MoveGroupLevelTable(from, to int)

	// Table-level schema.
	InsertColumn(t *Table, ndx int, spec ColumnSpec)
	EraseColumn(t *Table, ndx int)
	RenameColumn(t *Table, ndx int, name string)
	MoveColumn(t *Table, from, to int)
	AddSearchIndex(t *Table, ndx int)
	RemoveSearchIndex(t *Table, ndx int)

	// Rows.
	InsertEmptyRows(t *Table, ndx, n int)
	EraseRows(t *Table, ndx, n int, moveLastOver bool)
	ClearTable(t *Table)
	OptimizeTable(t *Table)
	AddRowWithKey(t *Table, col int, key int64)
	MergeRows(t *Table, from, to int)

	// Scalar cells.
	SetInt(t *Table, col, row int, v int64)
	SetIntUnique(t *Table, col, row int, v int64)
	SetBool(t *Table, col, row int, v bool)
	SetFloat(t *Table, col, row int, v float32)
	SetDouble(t *Table, col, row int, v float64)
	SetString(t *Table, col, row int, v string)
	SetStringUnique(t *Table, col, row int, v string)
	SetBinary(t *Table, col, row int, v []byte)
	SetOldDateTime(t *Table, col, row int, v int64)
	SetTimestamp(t *Table, col, row int, v Timestamp)
	SetMixed(t *Table, col, row int, v Mixed)
	SetNull(t *Table, col, row int)
	SetNullUnique(t *Table, col, row int)

	// String edits.
	InsertSubstring(t *Table, col, row, pos int, s string)
	EraseSubstring(t *Table, col, row, pos, size int)

	// Links.
	SetLink(t *Table, col, row, target int)
	NullifyLink(t *Table, col, row int)

	// Link lists.
	LinkListInsert(l *LinkView, ndx, target int)
	LinkListSet(l *LinkView, ndx, target int)
	LinkListErase(l *LinkView, ndx int)
	LinkListMove(l *LinkView, from, to int)
	LinkListSwap(l *LinkView, a, b int)
	LinkListClear(l *LinkView)
}
