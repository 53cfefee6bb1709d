package group

import (
	"fmt"
	"slices"
)

// LinkView is a live accessor for one link-list cell. It tracks its
// row across row motion in the owning table and detaches when the row,
// column or table goes away.
type LinkView struct {
	table    *Table
	col      *Column
	row      int
	detached bool
}

// IsAttached reports whether the view still addresses a live cell.
func (v *LinkView) IsAttached() bool { return !v.detached }

// Row returns the view's current row in the owning table.
func (v *LinkView) Row() int { return v.row }

// Size returns the number of links in the list.
func (v *LinkView) Size() int {
	if v.detached {
		return 0
	}
	return len(v.col.lists[v.row])
}

// Get returns the target row of the link at position ndx.
func (v *LinkView) Get(ndx int) int {
	if err := v.check(ndx, false); err != nil {
		panic(err)
	}
	return v.col.lists[v.row][ndx]
}

func (v *LinkView) check(ndx int, insert bool) error {
	if v.detached {
		return ErrDetached
	}
	n := len(v.col.lists[v.row])
	if insert {
		n++
	}
	if ndx < 0 || ndx >= n {
		return fmt.Errorf("list position %d of %d: %w", ndx, len(v.col.lists[v.row]), ErrIndexOutOfRange)
	}
	return nil
}

func (v *LinkView) checkTarget(target int) error {
	if target < 0 || target >= v.col.spec.Target.rows {
		return fmt.Errorf("link target row %d of %d: %w", target, v.col.spec.Target.rows, ErrIndexOutOfRange)
	}
	return nil
}

// Insert places a new link to target at list position ndx.
func (v *LinkView) Insert(ndx, target int) error {
	if err := v.check(ndx, true); err != nil {
		return err
	}
	if err := v.checkTarget(target); err != nil {
		return err
	}
	if o := v.table.observer(); o != nil {
		o.LinkListInsert(v, ndx, target)
	}
	v.col.lists[v.row] = slices.Insert(v.col.lists[v.row], ndx, target)
	v.table.acquireTarget(v.col, v.row, target)
	return nil
}

// Add appends a link to target.
func (v *LinkView) Add(target int) error {
	if v.detached {
		return ErrDetached
	}
	return v.Insert(len(v.col.lists[v.row]), target)
}

// Set replaces the link at position ndx with one to target. Dropping
// the old target may cascade through strong columns.
func (v *LinkView) Set(ndx, target int) error {
	if err := v.check(ndx, false); err != nil {
		return err
	}
	if err := v.checkTarget(target); err != nil {
		return err
	}
	if o := v.table.observer(); o != nil {
		o.LinkListSet(v, ndx, target)
	}
	old := v.col.lists[v.row][ndx]
	if old == target {
		return nil
	}
	v.col.lists[v.row][ndx] = target
	v.table.acquireTarget(v.col, v.row, target)
	var cs cascadeState
	v.table.releaseTarget(v.col, v.row, old, &cs)
	processCascade(&cs)
	return nil
}

// Erase removes the link at position ndx.
func (v *LinkView) Erase(ndx int) error {
	if err := v.check(ndx, false); err != nil {
		return err
	}
	if o := v.table.observer(); o != nil {
		o.LinkListErase(v, ndx)
	}
	old := v.col.lists[v.row][ndx]
	v.col.lists[v.row] = slices.Delete(v.col.lists[v.row], ndx, ndx+1)
	var cs cascadeState
	v.table.releaseTarget(v.col, v.row, old, &cs)
	processCascade(&cs)
	return nil
}

// Move relocates the link at position from to position to, shifting
// the links in between.
func (v *LinkView) Move(from, to int) error {
	if err := v.check(from, false); err != nil {
		return err
	}
	if err := v.check(to, false); err != nil {
		return err
	}
	if o := v.table.observer(); o != nil {
		o.LinkListMove(v, from, to)
	}
	if from == to {
		return nil
	}
	list := v.col.lists[v.row]
	target := list[from]
	list = slices.Delete(list, from, from+1)
	v.col.lists[v.row] = slices.Insert(list, to, target)
	return nil
}

// Swap exchanges the links at positions a and b.
func (v *LinkView) Swap(a, b int) error {
	if err := v.check(a, false); err != nil {
		return err
	}
	if err := v.check(b, false); err != nil {
		return err
	}
	if o := v.table.observer(); o != nil {
		o.LinkListSwap(v, a, b)
	}
	list := v.col.lists[v.row]
	list[a], list[b] = list[b], list[a]
	return nil
}

// Clear empties the list. Every dropped target is considered for
// strong-link removal.
func (v *LinkView) Clear() error {
	if v.detached {
		return ErrDetached
	}
	if o := v.table.observer(); o != nil {
		o.LinkListClear(v)
	}
	list := v.col.lists[v.row]
	v.col.lists[v.row] = nil
	var cs cascadeState
	for _, old := range list {
		v.table.releaseTarget(v.col, v.row, old, &cs)
	}
	processCascade(&cs)
	return nil
}

// Table returns the owning table.
func (v *LinkView) Table() *Table { return v.table }

// Column returns the position of the owning column, or -1 after the
// column was removed.
func (v *LinkView) Column() int { return v.table.colIndex(v.col) }
