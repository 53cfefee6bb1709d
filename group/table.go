package group

import (
	"fmt"
	"slices"
)

// Table is an ordered sequence of columns plus a row count. Group-level
// tables have a name and a stable id that survives rename and move;
// subtables hang off a parent cell and follow it when rows move.
type Table struct {
	group *Group
	id    uint64
	name  string

	cols []*Column
	rows int

	backlinks map[backlinkKey][][]int
	views     []*LinkView
	detached  bool

	// Subtable linkage; nil/zero for group-level tables.
	parent    *Table
	parentCol *Column
	parentRow int
}

func newTable(g *Group, id uint64, name string) *Table {
	return &Table{
		group:     g,
		id:        id,
		name:      name,
		backlinks: make(map[backlinkKey][][]int),
	}
}

//
// Introspection
//

// Name returns the table's group-level name. Subtables have none.
func (t *Table) Name() string { return t.name }

// Size returns the row count.
func (t *Table) Size() int { return t.rows }

// IsAttached reports whether the table is still part of its group.
func (t *Table) IsAttached() bool { return !t.detached }

// Index returns the table's current position in its group, or -1 for
// subtables and detached tables.
func (t *Table) Index() int {
	if t.parent != nil || t.detached {
		return -1
	}
	return slices.Index(t.group.tables, t)
}

// ColumnCount returns the number of columns.
func (t *Table) ColumnCount() int { return len(t.cols) }

// ColumnName returns the name of column ndx.
func (t *Table) ColumnName(ndx int) string { return t.cols[ndx].spec.Name }

// ColumnType returns the type of column ndx.
func (t *Table) ColumnType(ndx int) DataType { return t.cols[ndx].spec.Type }

// ColumnSpecAt returns a copy of the spec of column ndx.
func (t *Table) ColumnSpecAt(ndx int) ColumnSpec { return t.cols[ndx].spec }

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.cols {
		if c.spec.Name == name {
			return i
		}
	}
	return -1
}

// LinkTarget returns the target table of link column ndx.
func (t *Table) LinkTarget(ndx int) *Table { return t.cols[ndx].spec.Target }

// PathElem is one step of a subtable path: the subtable column and row
// in the parent.
type PathElem struct {
	Col, Row int
}

// Path returns the subtable path from the group-level root down to t.
// Empty for group-level tables.
func (t *Table) Path() []PathElem {
	if t.parent == nil {
		return nil
	}
	return append(t.parent.Path(), PathElem{t.parent.colIndex(t.parentCol), t.parentRow})
}

// Root returns the group-level ancestor of t (itself, if group-level).
func (t *Table) Root() *Table {
	for t.parent != nil {
		t = t.parent
	}
	return t
}

func (t *Table) columnByID(id uint64) *Column {
	for _, c := range t.cols {
		if c.id == id {
			return c
		}
	}
	return nil
}

func (t *Table) colIndex(c *Column) int {
	return slices.Index(t.cols, c)
}

func (t *Table) observer() Observer {
	if t.group == nil {
		return nil
	}
	return t.group.observer
}

//
// Validation helpers
//

func (t *Table) checkAttached() error {
	if t.detached {
		return ErrDetached
	}
	return nil
}

func (t *Table) colAt(ndx int) (*Column, error) {
	if err := t.checkAttached(); err != nil {
		return nil, err
	}
	if ndx < 0 || ndx >= len(t.cols) {
		return nil, fmt.Errorf("column %d of %d: %w", ndx, len(t.cols), ErrIndexOutOfRange)
	}
	return t.cols[ndx], nil
}

func (t *Table) colOfType(ndx int, types ...DataType) (*Column, error) {
	c, err := t.colAt(ndx)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(types, c.spec.Type) {
		return nil, fmt.Errorf("column %d is %s: %w", ndx, c.spec.Type, ErrTypeMismatch)
	}
	return c, nil
}

func (t *Table) checkRow(row int) error {
	if row < 0 || row >= t.rows {
		return fmt.Errorf("row %d of %d: %w", row, t.rows, ErrIndexOutOfRange)
	}
	return nil
}

func validateSpec(t *Table, spec ColumnSpec) error {
	if !spec.Type.valid() {
		return fmt.Errorf("bad column type: %w", ErrInvalidArgument)
	}
	if spec.Type.isLinkType() {
		if t.parent != nil {
			return fmt.Errorf("link columns are group-level only: %w", ErrInvalidArgument)
		}
		if spec.Target == nil || spec.Target.detached || spec.Target.group != t.group || spec.Target.parent != nil {
			return fmt.Errorf("link target must be a group-level table of the same group: %w", ErrInvalidArgument)
		}
	} else if spec.Target != nil {
		return fmt.Errorf("non-link column has a target: %w", ErrInvalidArgument)
	}
	if spec.Type == TypeTable {
		for _, sub := range spec.SubSpec {
			if sub.Type.isLinkType() {
				return fmt.Errorf("link columns are not allowed in subtables: %w", ErrInvalidArgument)
			}
		}
	} else if len(spec.SubSpec) != 0 {
		return fmt.Errorf("non-subtable column has a sub-descriptor: %w", ErrInvalidArgument)
	}
	return nil
}

//
// Schema operations
//

// AddColumn appends a column and returns its position.
func (t *Table) AddColumn(spec ColumnSpec) (int, error) {
	ndx := len(t.cols)
	if err := t.InsertColumn(ndx, spec); err != nil {
		return 0, err
	}
	return ndx, nil
}

// InsertColumn inserts a column at ndx. Existing rows get default
// values (null for nullable columns).
func (t *Table) InsertColumn(ndx int, spec ColumnSpec) error {
	if err := t.checkAttached(); err != nil {
		return err
	}
	if ndx < 0 || ndx > len(t.cols) {
		return fmt.Errorf("column %d of %d: %w", ndx, len(t.cols), ErrIndexOutOfRange)
	}
	if err := validateSpec(t, spec); err != nil {
		return err
	}
	if spec.Type == TypeLink || spec.Type == TypeTimestamp {
		spec.Nullable = true
	}
	if o := t.observer(); o != nil {
		o.InsertColumn(t, ndx, spec)
	}
	c := newColumn(t.group.nextColID(), spec, t.rows)
	t.cols = slices.Insert(t.cols, ndx, c)
	return nil
}

// EraseColumn removes the column at ndx. Backlinks contributed by a
// removed link column are dropped; no cascade runs, matching the
// row-level-only cascade rule.
func (t *Table) EraseColumn(ndx int) error {
	c, err := t.colAt(ndx)
	if err != nil {
		return err
	}
	if o := t.observer(); o != nil {
		o.EraseColumn(t, ndx)
	}
	switch c.spec.Type {
	case TypeLink, TypeLinkList:
		delete(c.spec.Target.backlinks, backlinkKey{t, c.id})
	case TypeTable:
		for _, sub := range c.tables {
			if sub != nil {
				sub.detach()
			}
		}
	}
	for _, v := range t.views {
		if v.col == c {
			v.detached = true
		}
	}
	t.compactViews()
	t.cols = slices.Delete(t.cols, ndx, ndx+1)
	return nil
}

// RenameColumn renames the column at ndx.
func (t *Table) RenameColumn(ndx int, name string) error {
	c, err := t.colAt(ndx)
	if err != nil {
		return err
	}
	if o := t.observer(); o != nil {
		o.RenameColumn(t, ndx, name)
	}
	c.spec.Name = name
	return nil
}

// MoveColumn moves the column at from to position to, shifting the
// columns in between. Stable column ids keep backlink keys valid.
func (t *Table) MoveColumn(from, to int) error {
	c, err := t.colAt(from)
	if err != nil {
		return err
	}
	if to < 0 || to >= len(t.cols) {
		return fmt.Errorf("column %d of %d: %w", to, len(t.cols), ErrIndexOutOfRange)
	}
	if o := t.observer(); o != nil {
		o.MoveColumn(t, from, to)
	}
	if from == to {
		return nil
	}
	t.cols = slices.Delete(t.cols, from, from+1)
	t.cols = slices.Insert(t.cols, to, c)
	return nil
}

// AddSearchIndex marks column ndx as indexed.
func (t *Table) AddSearchIndex(ndx int) error {
	c, err := t.colAt(ndx)
	if err != nil {
		return err
	}
	if o := t.observer(); o != nil {
		o.AddSearchIndex(t, ndx)
	}
	c.spec.SearchIndex = true
	return nil
}

// RemoveSearchIndex clears the index mark on column ndx.
func (t *Table) RemoveSearchIndex(ndx int) error {
	c, err := t.colAt(ndx)
	if err != nil {
		return err
	}
	if o := t.observer(); o != nil {
		o.RemoveSearchIndex(t, ndx)
	}
	c.spec.SearchIndex = false
	return nil
}

// Optimize is replicated for fidelity but is a no-op on this model;
// the storage engine's enumeration pass has no observable effect.
func (t *Table) Optimize() error {
	if err := t.checkAttached(); err != nil {
		return err
	}
	if o := t.observer(); o != nil {
		o.OptimizeTable(t)
	}
	return nil
}

//
// Row operations
//

// AddEmptyRows appends n default-valued rows, returning the index of
// the first.
func (t *Table) AddEmptyRows(n int) (int, error) {
	ndx := t.rows
	if err := t.InsertEmptyRows(ndx, n); err != nil {
		return 0, err
	}
	return ndx, nil
}

// AddEmptyRow appends one default-valued row and returns its index.
func (t *Table) AddEmptyRow() (int, error) { return t.AddEmptyRows(1) }

// InsertEmptyRows inserts n default-valued rows at ndx, shifting later
// rows (and every link referencing them) up.
func (t *Table) InsertEmptyRows(ndx, n int) error {
	if err := t.checkAttached(); err != nil {
		return err
	}
	if ndx < 0 || ndx > t.rows {
		return fmt.Errorf("row %d of %d: %w", ndx, t.rows, ErrIndexOutOfRange)
	}
	if n < 0 {
		return fmt.Errorf("negative row count: %w", ErrInvalidArgument)
	}
	if o := t.observer(); o != nil {
		o.InsertEmptyRows(t, ndx, n)
	}
	t.insertRowsInternal(ndx, n)
	return nil
}

// MoveLastOver removes row ndx by relocating the last row into its
// slot. Links to the moved row are retargeted; links to the removed
// row are nullified, cascading through strong columns.
func (t *Table) MoveLastOver(ndx int) error {
	if err := t.checkAttached(); err != nil {
		return err
	}
	if err := t.checkRow(ndx); err != nil {
		return err
	}
	if o := t.observer(); o != nil {
		o.EraseRows(t, ndx, 1, true)
	}
	var cs cascadeState
	t.moveLastOverInternal(ndx, &cs)
	processCascade(&cs)
	return nil
}

// EraseRow removes row ndx preserving the order of the remaining rows.
func (t *Table) EraseRow(ndx int) error {
	if err := t.checkAttached(); err != nil {
		return err
	}
	if err := t.checkRow(ndx); err != nil {
		return err
	}
	if o := t.observer(); o != nil {
		o.EraseRows(t, ndx, 1, false)
	}
	var cs cascadeState
	t.eraseRowInternal(ndx, &cs)
	processCascade(&cs)
	return nil
}

// Clear removes all rows at once. Every link relationship involving
// this table vanishes; outgoing strong links cascade.
func (t *Table) Clear() error {
	if err := t.checkAttached(); err != nil {
		return err
	}
	if o := t.observer(); o != nil {
		o.ClearTable(t)
	}
	var cs cascadeState
	t.clearInternal(&cs)
	processCascade(&cs)
	return nil
}

// AddRowWithKey appends a row with column col preset to key. The
// column must be an indexed integer column.
func (t *Table) AddRowWithKey(col int, key int64) (int, error) {
	c, err := t.colOfType(col, TypeInt)
	if err != nil {
		return 0, err
	}
	if !c.spec.SearchIndex {
		return 0, ErrNoSearchIndex
	}
	if o := t.observer(); o != nil {
		o.AddRowWithKey(t, col, key)
	}
	ndx := t.rows
	t.insertRowsInternal(ndx, 1)
	c.ints[ndx] = key
	c.setNullFlag(ndx, false)
	return ndx, nil
}

// MergeRows redirects every link pointing at row from to point at row
// to instead. Values are not copied; backlink multiplicities move with
// the links.
func (t *Table) MergeRows(from, to int) error {
	if err := t.checkAttached(); err != nil {
		return err
	}
	if err := t.checkRow(from); err != nil {
		return err
	}
	if err := t.checkRow(to); err != nil {
		return err
	}
	if from == to {
		return fmt.Errorf("merge row %d into itself: %w", from, ErrInvalidArgument)
	}
	if o := t.observer(); o != nil {
		o.MergeRows(t, from, to)
	}
	t.mergeRowsInternal(from, to)
	return nil
}

func (t *Table) mergeRowsInternal(from, to int) {
	for key, rows := range t.backlinks {
		entries := rows[from]
		for _, originRow := range entries {
			redirectOriginCell(key.origin, key.colID, originRow, from, to)
		}
		rows[to] = append(rows[to], entries...)
		rows[from] = nil
	}
}

//
// Internal row machinery. None of these notify the observer: replicas
// recompute the same consequences by replaying the public operation.
//

func (t *Table) insertRowsInternal(ndx, n int) {
	if n == 0 {
		return
	}
	if ndx < t.rows {
		t.shiftRefsInto(ndx, n)
		t.shiftOriginRecords(ndx, n)
	}
	for key := range t.backlinks {
		t.backlinks[key] = slices.Insert(t.backlinks[key], ndx, make([][]int, n)...)
	}
	for _, c := range t.cols {
		c.insertRows(ndx, n)
	}
	for _, v := range t.views {
		if !v.detached && v.row >= ndx {
			v.row += n
		}
	}
	t.rows += n
	t.fixSubtableRows()
}

// releaseOutgoing drops every reference row ndx makes into other rows,
// collecting strong-cascade candidates.
func (t *Table) releaseOutgoing(ndx int, cs *cascadeState) {
	for _, c := range t.cols {
		switch c.spec.Type {
		case TypeLink:
			if tgt := c.links[ndx]; tgt != nullLink {
				t.releaseTarget(c, ndx, tgt, cs)
				c.links[ndx] = nullLink
			}
		case TypeLinkList:
			for _, tgt := range c.lists[ndx] {
				t.releaseTarget(c, ndx, tgt, cs)
			}
			c.lists[ndx] = nil
		}
	}
}

// nullifyIncoming breaks every reference into row ndx and drops the
// row's backlink entries.
func (t *Table) nullifyIncoming(ndx int) {
	for key, rows := range t.backlinks {
		for _, originRow := range rows[ndx] {
			nullifyOriginCell(key.origin, key.colID, originRow, ndx)
		}
		rows[ndx] = nil
	}
}

func (t *Table) moveLastOverInternal(ndx int, cs *cascadeState) {
	last := t.rows - 1

	t.releaseOutgoing(ndx, cs)
	t.nullifyIncoming(ndx)

	// Detach accessors of the removed row before its cells are
	// overwritten.
	for _, v := range t.views {
		if !v.detached && v.row == ndx {
			v.detached = true
		}
	}
	for _, c := range t.cols {
		if c.spec.Type == TypeTable && c.tables[ndx] != nil {
			c.tables[ndx].detach()
		}
	}

	if ndx != last {
		// No reference addresses ndx anymore, so relocating the last
		// row is a pure rename of index last to ndx, group-wide.
		t.renameRefsInto(last, ndx)
		t.renameOriginRecords(last, ndx)
		for key := range t.backlinks {
			t.backlinks[key][ndx] = t.backlinks[key][last]
		}
		for _, v := range t.views {
			if !v.detached && v.row == last {
				v.row = ndx
			}
		}
	}
	for key := range t.backlinks {
		t.backlinks[key] = t.backlinks[key][:last]
	}
	for _, c := range t.cols {
		c.moveLastOver(ndx, last)
	}
	t.rows--
	t.fixSubtableRows()
	cs.fixupMove(t, ndx, last)
}

func (t *Table) eraseRowInternal(ndx int, cs *cascadeState) {
	t.releaseOutgoing(ndx, cs)
	t.nullifyIncoming(ndx)

	for _, v := range t.views {
		if v.detached {
			continue
		}
		if v.row == ndx {
			v.detached = true
		} else if v.row > ndx {
			v.row--
		}
	}
	for _, c := range t.cols {
		if c.spec.Type == TypeTable && c.tables[ndx] != nil {
			c.tables[ndx].detach()
		}
	}

	if ndx < t.rows-1 {
		t.shiftRefsInto(ndx+1, -1)
		t.shiftOriginRecords(ndx+1, -1)
	}
	for key := range t.backlinks {
		t.backlinks[key] = slices.Delete(t.backlinks[key], ndx, ndx+1)
	}
	for _, c := range t.cols {
		c.eraseRow(ndx)
	}
	t.rows--
	t.fixSubtableRows()
	cs.fixupErase(t, ndx)
}

func (t *Table) clearInternal(cs *cascadeState) {
	for ndx := 0; ndx < t.rows; ndx++ {
		t.releaseOutgoing(ndx, cs)
	}
	for ndx := 0; ndx < t.rows; ndx++ {
		t.nullifyIncoming(ndx)
	}
	for key := range t.backlinks {
		t.backlinks[key] = nil
	}
	for _, v := range t.views {
		v.detached = true
	}
	t.views = nil
	for _, c := range t.cols {
		if c.spec.Type == TypeTable {
			for _, sub := range c.tables {
				if sub != nil {
					sub.detach()
				}
			}
		}
		c.clear()
	}
	t.rows = 0
	cs.fixupClear(t)
}

// compactViews drops detached accessors so row operations do not keep
// scanning views their owners have abandoned.
func (t *Table) compactViews() {
	t.views = slices.DeleteFunc(t.views, func(v *LinkView) bool {
		return v.detached
	})
}

// fixSubtableRows re-synchronizes each subtable's record of its parent
// row after any row motion.
func (t *Table) fixSubtableRows() {
	t.compactViews()
	for _, c := range t.cols {
		if c.spec.Type != TypeTable {
			continue
		}
		for r, sub := range c.tables {
			if sub != nil {
				sub.parentRow = r
			}
		}
	}
}

// detach marks the table, its accessors and its subtables as no longer
// part of the group.
func (t *Table) detach() {
	t.detached = true
	for _, v := range t.views {
		v.detached = true
	}
	for _, c := range t.cols {
		if c.spec.Type == TypeTable {
			for _, sub := range c.tables {
				if sub != nil {
					sub.detach()
				}
			}
		}
	}
}
