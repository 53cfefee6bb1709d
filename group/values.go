package group

import (
	"fmt"
	"slices"
)

//
// Cell getters. Getters treat a bad index or type as programmer error
// and panic, mirroring slice semantics; mutation goes through the
// error-returning setters below.
//

func (t *Table) mustCol(ndx int, types ...DataType) *Column {
	c, err := t.colOfType(ndx, types...)
	if err != nil {
		panic(err)
	}
	return c
}

func (t *Table) mustRow(row int) {
	if err := t.checkRow(row); err != nil {
		panic(err)
	}
}

// GetInt returns the integer in cell (col,row). Null reads as 0.
func (t *Table) GetInt(col, row int) int64 {
	c := t.mustCol(col, TypeInt)
	t.mustRow(row)
	return c.ints[row]
}

func (t *Table) GetBool(col, row int) bool {
	c := t.mustCol(col, TypeBool)
	t.mustRow(row)
	return c.bools[row]
}

func (t *Table) GetFloat(col, row int) float32 {
	c := t.mustCol(col, TypeFloat)
	t.mustRow(row)
	return c.floats[row]
}

func (t *Table) GetDouble(col, row int) float64 {
	c := t.mustCol(col, TypeDouble)
	t.mustRow(row)
	return c.doubles[row]
}

// GetString returns the string in cell (col,row). Null reads as "".
func (t *Table) GetString(col, row int) string {
	c := t.mustCol(col, TypeString)
	t.mustRow(row)
	return c.strs[row]
}

// GetBinary returns the blob in cell (col,row). Null reads as nil.
func (t *Table) GetBinary(col, row int) []byte {
	c := t.mustCol(col, TypeBinary)
	t.mustRow(row)
	return c.bins[row]
}

func (t *Table) GetOldDateTime(col, row int) int64 {
	c := t.mustCol(col, TypeOldDateTime)
	t.mustRow(row)
	return c.ints[row]
}

func (t *Table) GetTimestamp(col, row int) Timestamp {
	c := t.mustCol(col, TypeTimestamp)
	t.mustRow(row)
	return c.times[row]
}

func (t *Table) GetMixed(col, row int) Mixed {
	c := t.mustCol(col, TypeMixed)
	t.mustRow(row)
	return c.mixeds[row]
}

// GetLink returns the target row of link cell (col,row), or -1 when
// the link is null.
func (t *Table) GetLink(col, row int) int {
	c := t.mustCol(col, TypeLink)
	t.mustRow(row)
	return c.links[row]
}

// LinkIsNull reports whether link cell (col,row) is unset.
func (t *Table) LinkIsNull(col, row int) bool { return t.GetLink(col, row) == nullLink }

// IsNull reports whether cell (col,row) holds null. Non-nullable
// columns always report false.
func (t *Table) IsNull(col, row int) bool {
	c, err := t.colAt(col)
	if err != nil {
		panic(err)
	}
	t.mustRow(row)
	switch c.spec.Type {
	case TypeLink:
		return c.links[row] == nullLink
	default:
		return c.isNull(row)
	}
}

// GetSubtable returns an accessor for the subtable in cell (col,row),
// materializing an empty one on first touch.
func (t *Table) GetSubtable(col, row int) *Table {
	c := t.mustCol(col, TypeTable)
	t.mustRow(row)
	if c.tables[row] == nil {
		sub := newTable(t.group, t.group.nextTableID(), "")
		sub.parent, sub.parentCol, sub.parentRow = t, c, row
		for _, ss := range c.spec.SubSpec {
			sub.cols = append(sub.cols, newColumn(t.group.nextColID(), ss, 0))
		}
		c.tables[row] = sub
	}
	return c.tables[row]
}

//
// Cell setters. Each emits its instruction before mutating, so the
// observer sees pre-state if it looks.
//

// SetInt writes v into integer cell (col,row), clearing any null.
func (t *Table) SetInt(col, row int, v int64) error {
	c, err := t.colOfType(col, TypeInt)
	if err != nil {
		return err
	}
	if err := t.checkRow(row); err != nil {
		return err
	}
	if o := t.observer(); o != nil {
		o.SetInt(t, col, row, v)
	}
	c.ints[row] = v
	c.setNullFlag(row, false)
	return nil
}

func (t *Table) SetBool(col, row int, v bool) error {
	c, err := t.colOfType(col, TypeBool)
	if err != nil {
		return err
	}
	if err := t.checkRow(row); err != nil {
		return err
	}
	if o := t.observer(); o != nil {
		o.SetBool(t, col, row, v)
	}
	c.bools[row] = v
	c.setNullFlag(row, false)
	return nil
}

func (t *Table) SetFloat(col, row int, v float32) error {
	c, err := t.colOfType(col, TypeFloat)
	if err != nil {
		return err
	}
	if err := t.checkRow(row); err != nil {
		return err
	}
	if o := t.observer(); o != nil {
		o.SetFloat(t, col, row, v)
	}
	c.floats[row] = v
	c.setNullFlag(row, false)
	return nil
}

func (t *Table) SetDouble(col, row int, v float64) error {
	c, err := t.colOfType(col, TypeDouble)
	if err != nil {
		return err
	}
	if err := t.checkRow(row); err != nil {
		return err
	}
	if o := t.observer(); o != nil {
		o.SetDouble(t, col, row, v)
	}
	c.doubles[row] = v
	c.setNullFlag(row, false)
	return nil
}

func (t *Table) SetString(col, row int, v string) error {
	c, err := t.colOfType(col, TypeString)
	if err != nil {
		return err
	}
	if err := t.checkRow(row); err != nil {
		return err
	}
	if o := t.observer(); o != nil {
		o.SetString(t, col, row, v)
	}
	c.strs[row] = v
	c.setNullFlag(row, false)
	return nil
}

func (t *Table) SetBinary(col, row int, v []byte) error {
	c, err := t.colOfType(col, TypeBinary)
	if err != nil {
		return err
	}
	if err := t.checkRow(row); err != nil {
		return err
	}
	if o := t.observer(); o != nil {
		o.SetBinary(t, col, row, v)
	}
	c.bins[row] = slices.Clone(v)
	c.setNullFlag(row, false)
	return nil
}

func (t *Table) SetOldDateTime(col, row int, v int64) error {
	c, err := t.colOfType(col, TypeOldDateTime)
	if err != nil {
		return err
	}
	if err := t.checkRow(row); err != nil {
		return err
	}
	if o := t.observer(); o != nil {
		o.SetOldDateTime(t, col, row, v)
	}
	c.ints[row] = v
	c.setNullFlag(row, false)
	return nil
}

func (t *Table) SetTimestamp(col, row int, v Timestamp) error {
	c, err := t.colOfType(col, TypeTimestamp)
	if err != nil {
		return err
	}
	if err := t.checkRow(row); err != nil {
		return err
	}
	if o := t.observer(); o != nil {
		o.SetTimestamp(t, col, row, v)
	}
	c.times[row] = v
	c.setNullFlag(row, false)
	return nil
}

// SetMixed writes a tagged value into a mixed cell. Subtable-typed
// mixed values reset the cell to an empty subtable payload.
func (t *Table) SetMixed(col, row int, v Mixed) error {
	c, err := t.colOfType(col, TypeMixed)
	if err != nil {
		return err
	}
	if err := t.checkRow(row); err != nil {
		return err
	}
	if !v.Type.valid() || v.Type.isLinkType() || v.Type == TypeMixed {
		return fmt.Errorf("bad mixed payload type %s: %w", v.Type, ErrInvalidArgument)
	}
	if o := t.observer(); o != nil {
		o.SetMixed(t, col, row, v)
	}
	c.mixeds[row] = v
	return nil
}

// SetNull writes null into cell (col,row). The column must be
// nullable; link cells use SetLink with a negative target instead.
func (t *Table) SetNull(col, row int) error {
	c, err := t.colAt(col)
	if err != nil {
		return err
	}
	if err := t.checkRow(row); err != nil {
		return err
	}
	if !c.spec.Nullable || c.spec.Type.isLinkType() {
		return fmt.Errorf("column %d (%s): %w", col, c.spec.Type, ErrNotNullable)
	}
	if o := t.observer(); o != nil {
		o.SetNull(t, col, row)
	}
	c.writeNull(row)
	return nil
}

//
// Unique setters. The column must carry a search index. On collision
// the row being written is merged into the existing row and removed;
// the return value is the surviving row's index after any motion.
//

func (t *Table) uniqueCollapse(c *Column, row, existing int) int {
	if existing < 0 {
		return row
	}
	t.mergeRowsInternal(row, existing)
	last := t.rows - 1
	var cs cascadeState
	t.moveLastOverInternal(row, &cs)
	processCascade(&cs)
	if existing == last {
		return row
	}
	return existing
}

// SetIntUnique writes v into an indexed integer column, collapsing
// into a prior row that already holds v.
func (t *Table) SetIntUnique(col, row int, v int64) (int, error) {
	c, err := t.colOfType(col, TypeInt)
	if err != nil {
		return 0, err
	}
	if err := t.checkRow(row); err != nil {
		return 0, err
	}
	if !c.spec.SearchIndex {
		return 0, ErrNoSearchIndex
	}
	if o := t.observer(); o != nil {
		o.SetIntUnique(t, col, row, v)
	}
	existing := -1
	for r := 0; r < t.rows; r++ {
		if r != row && !c.isNull(r) && c.ints[r] == v {
			existing = r
			break
		}
	}
	if existing < 0 {
		c.ints[row] = v
		c.setNullFlag(row, false)
	}
	return t.uniqueCollapse(c, row, existing), nil
}

// SetStringUnique writes v into an indexed string column, collapsing
// into a prior row that already holds v.
func (t *Table) SetStringUnique(col, row int, v string) (int, error) {
	c, err := t.colOfType(col, TypeString)
	if err != nil {
		return 0, err
	}
	if err := t.checkRow(row); err != nil {
		return 0, err
	}
	if !c.spec.SearchIndex {
		return 0, ErrNoSearchIndex
	}
	if o := t.observer(); o != nil {
		o.SetStringUnique(t, col, row, v)
	}
	existing := -1
	for r := 0; r < t.rows; r++ {
		if r != row && !c.isNull(r) && c.strs[r] == v {
			existing = r
			break
		}
	}
	if existing < 0 {
		c.strs[row] = v
		c.setNullFlag(row, false)
	}
	return t.uniqueCollapse(c, row, existing), nil
}

// SetNullUnique writes null into an indexed nullable column,
// collapsing into a prior row that is already null.
func (t *Table) SetNullUnique(col, row int) (int, error) {
	c, err := t.colAt(col)
	if err != nil {
		return 0, err
	}
	if err := t.checkRow(row); err != nil {
		return 0, err
	}
	if !c.spec.SearchIndex {
		return 0, ErrNoSearchIndex
	}
	if !c.spec.Nullable || c.spec.Type.isLinkType() {
		return 0, fmt.Errorf("column %d (%s): %w", col, c.spec.Type, ErrNotNullable)
	}
	if o := t.observer(); o != nil {
		o.SetNullUnique(t, col, row)
	}
	existing := -1
	for r := 0; r < t.rows; r++ {
		if r != row && c.isNull(r) {
			existing = r
			break
		}
	}
	if existing < 0 {
		c.writeNull(row)
	}
	return t.uniqueCollapse(c, row, existing), nil
}

//
// Link cells
//

// SetLink points link cell (col,row) at target row, or clears it when
// target is negative. Replacing a strong link's old target may cascade.
func (t *Table) SetLink(col, row, target int) error {
	c, err := t.colOfType(col, TypeLink)
	if err != nil {
		return err
	}
	if err := t.checkRow(row); err != nil {
		return err
	}
	if target < 0 {
		target = nullLink
	} else if target >= c.spec.Target.rows {
		return fmt.Errorf("link target row %d of %d: %w", target, c.spec.Target.rows, ErrIndexOutOfRange)
	}
	if o := t.observer(); o != nil {
		o.SetLink(t, col, row, target)
	}
	old := c.links[row]
	if old == target {
		return nil
	}
	c.links[row] = target
	if target != nullLink {
		t.acquireTarget(c, row, target)
	}
	if old != nullLink {
		var cs cascadeState
		t.releaseTarget(c, row, old, &cs)
		processCascade(&cs)
	}
	return nil
}

// NullifyLink clears link cell (col,row). Dropping the last strong
// reference into the old target removes it, like any other way of
// losing the link.
func (t *Table) NullifyLink(col, row int) error {
	c, err := t.colOfType(col, TypeLink)
	if err != nil {
		return err
	}
	if err := t.checkRow(row); err != nil {
		return err
	}
	if o := t.observer(); o != nil {
		o.NullifyLink(t, col, row)
	}
	if old := c.links[row]; old != nullLink {
		c.links[row] = nullLink
		var cs cascadeState
		t.releaseTarget(c, row, old, &cs)
		processCascade(&cs)
	}
	return nil
}

// LinkList returns a live accessor for the list in cell (col,row). The
// accessor follows its row across row motion and detaches when the row
// or column goes away.
func (t *Table) LinkList(col, row int) (*LinkView, error) {
	c, err := t.colOfType(col, TypeLinkList)
	if err != nil {
		return nil, err
	}
	if err := t.checkRow(row); err != nil {
		return nil, err
	}
	v := &LinkView{table: t, col: c, row: row}
	t.views = append(t.views, v)
	return v, nil
}

//
// Substring edits. A cheap way to replicate partial string updates
// without shipping the whole value.
//

// InsertSubstring splices s into the string at byte position pos.
func (t *Table) InsertSubstring(col, row, pos int, s string) error {
	c, err := t.colOfType(col, TypeString)
	if err != nil {
		return err
	}
	if err := t.checkRow(row); err != nil {
		return err
	}
	cur := c.strs[row]
	if pos < 0 || pos > len(cur) {
		return fmt.Errorf("substring position %d of %d: %w", pos, len(cur), ErrIndexOutOfRange)
	}
	if o := t.observer(); o != nil {
		o.InsertSubstring(t, col, row, pos, s)
	}
	c.strs[row] = cur[:pos] + s + cur[pos:]
	c.setNullFlag(row, false)
	return nil
}

// EraseSubstring removes size bytes at byte position pos.
func (t *Table) EraseSubstring(col, row, pos, size int) error {
	c, err := t.colOfType(col, TypeString)
	if err != nil {
		return err
	}
	if err := t.checkRow(row); err != nil {
		return err
	}
	cur := c.strs[row]
	if pos < 0 || size < 0 || pos+size > len(cur) {
		return fmt.Errorf("substring range [%d,%d) of %d: %w", pos, pos+size, len(cur), ErrIndexOutOfRange)
	}
	if o := t.observer(); o != nil {
		o.EraseSubstring(t, col, row, pos, size)
	}
	c.strs[row] = cur[:pos] + cur[pos+size:]
	return nil
}
