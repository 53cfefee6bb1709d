package group

import (
	"fmt"
	"slices"
)

// backlinkKey identifies one origin link or link-list column. Column
// identity is by stable id, so schema edits in the origin table never
// invalidate the key.
type backlinkKey struct {
	origin *Table
	colID  uint64
}

// The backlink index is the reverse of every link relationship: for
// each target row, the origin rows currently referencing it, one entry
// per occurrence (link-list duplicates count multiply). Forward links
// and backlinks are only ever updated together, through acquireTarget
// and releaseTarget below.

func (t *Table) blRows(key backlinkKey) [][]int {
	rows, ok := t.backlinks[key]
	if !ok {
		rows = make([][]int, t.rows)
		t.backlinks[key] = rows
	}
	return rows
}

func (t *Table) blAdd(targetRow int, key backlinkKey, originRow int) {
	rows := t.blRows(key)
	rows[targetRow] = append(rows[targetRow], originRow)
}

func (t *Table) blRemove(targetRow int, key backlinkKey, originRow int) {
	rows := t.blRows(key)
	entries := rows[targetRow]
	i := slices.Index(entries, originRow)
	if i < 0 {
		panic(fmt.Sprintf("group: missing backlink %d <- %q[%d]", targetRow, key.origin.name, originRow))
	}
	rows[targetRow] = slices.Delete(entries, i, i+1)
}

// BacklinkCount reports how many times origin's column originCol
// currently references row, counting link-list duplicates individually.
func (t *Table) BacklinkCount(row int, origin *Table, originCol int) int {
	c := origin.cols[originCol]
	return len(t.backlinks[backlinkKey{origin, c.id}][row])
}

// Backlinks returns the origin row of every reference into row from
// origin's column originCol, one entry per occurrence.
func (t *Table) Backlinks(row int, origin *Table, originCol int) []int {
	c := origin.cols[originCol]
	return slices.Clone(t.backlinks[backlinkKey{origin, c.id}][row])
}

// strongBacklinkCount reports the number of surviving backlinks into
// row through strong columns. Zero after a strong release means the
// row is cascade-removable.
func (t *Table) strongBacklinkCount(row int) int {
	n := 0
	for key, rows := range t.backlinks {
		c := key.origin.columnByID(key.colID)
		if c == nil || c.spec.LinkType != LinkStrong {
			continue
		}
		n += len(rows[row])
	}
	return n
}

//
// The retarget primitive: forward cell and backlink entry always move
// together.
//

// acquireTarget records one new reference (t, c, row) -> target.
func (t *Table) acquireTarget(c *Column, row, target int) {
	c.spec.Target.blAdd(target, backlinkKey{t, c.id}, row)
}

// releaseTarget drops one reference (t, c, row) -> target. If the
// column is strong the target row becomes a cascade candidate.
func (t *Table) releaseTarget(c *Column, row, target int, cs *cascadeState) {
	tt := c.spec.Target
	tt.blRemove(target, backlinkKey{t, c.id}, row)
	if c.spec.LinkType == LinkStrong {
		cs.push(tt, target)
	}
}

//
// Row-motion bookkeeping. All references into t, and all origin-row
// records contributed by t, are rewritten whenever t's row indices
// move. Refs to a row being removed must already be gone when rename
// or shift runs.
//

// forEachLinkColumnInto calls fn for every link/link-list column in the
// group that targets t.
func (g *Group) forEachLinkColumnInto(t *Table, fn func(u *Table, c *Column)) {
	for _, u := range g.tables {
		for _, c := range u.cols {
			if c.spec.Type.isLinkType() && c.spec.Target == t {
				fn(u, c)
			}
		}
	}
}

// renameRefsInto rewrites every forward reference into t with value old
// to value new.
func (t *Table) renameRefsInto(old, new int) {
	t.group.forEachLinkColumnInto(t, func(u *Table, c *Column) {
		if c.spec.Type == TypeLink {
			for r := range c.links {
				if c.links[r] == old {
					c.links[r] = new
				}
			}
			return
		}
		for _, list := range c.lists {
			for i := range list {
				if list[i] == old {
					list[i] = new
				}
			}
		}
	})
}

// shiftRefsInto rewrites every forward reference into t with value
// >= from by delta.
func (t *Table) shiftRefsInto(from, delta int) {
	t.group.forEachLinkColumnInto(t, func(u *Table, c *Column) {
		if c.spec.Type == TypeLink {
			for r := range c.links {
				if c.links[r] != nullLink && c.links[r] >= from {
					c.links[r] += delta
				}
			}
			return
		}
		for _, list := range c.lists {
			for i := range list {
				if list[i] >= from {
					list[i] += delta
				}
			}
		}
	})
}

// forEachBacklinkKeyFrom calls fn for every backlink key in the group
// whose origin is t.
func (g *Group) forEachBacklinkKeyFrom(t *Table, fn func(holder *Table, key backlinkKey)) {
	for _, u := range g.tables {
		for key := range u.backlinks {
			if key.origin == t {
				fn(u, key)
			}
		}
	}
}

// renameOriginRecords rewrites every backlink record naming origin row
// old of t to new.
func (t *Table) renameOriginRecords(old, new int) {
	t.group.forEachBacklinkKeyFrom(t, func(holder *Table, key backlinkKey) {
		for _, entries := range holder.backlinks[key] {
			for i := range entries {
				if entries[i] == old {
					entries[i] = new
				}
			}
		}
	})
}

// shiftOriginRecords rewrites every backlink record naming an origin
// row of t >= from by delta.
func (t *Table) shiftOriginRecords(from, delta int) {
	t.group.forEachBacklinkKeyFrom(t, func(holder *Table, key backlinkKey) {
		for _, entries := range holder.backlinks[key] {
			for i := range entries {
				if entries[i] >= from {
					entries[i] += delta
				}
			}
		}
	})
}

// nullifyOriginCell breaks the forward side of one backlink entry:
// a link cell becomes null, a link list loses its first occurrence of
// target. The backlink side is dropped wholesale by the caller.
func nullifyOriginCell(origin *Table, colID uint64, originRow, target int) {
	c := origin.columnByID(colID)
	if c.spec.Type == TypeLink {
		c.links[originRow] = nullLink
		return
	}
	list := c.lists[originRow]
	i := slices.Index(list, target)
	if i < 0 {
		panic(fmt.Sprintf("group: missing link-list entry %d in %q[%d]", target, origin.name, originRow))
	}
	c.lists[originRow] = slices.Delete(list, i, i+1)
}

// redirectOriginCell rewrites the forward side of one backlink entry
// from oldTarget to newTarget.
func redirectOriginCell(origin *Table, colID uint64, originRow, oldTarget, newTarget int) {
	c := origin.columnByID(colID)
	if c.spec.Type == TypeLink {
		c.links[originRow] = newTarget
		return
	}
	list := c.lists[originRow]
	i := slices.Index(list, oldTarget)
	if i < 0 {
		panic(fmt.Sprintf("group: missing link-list entry %d in %q[%d]", oldTarget, origin.name, originRow))
	}
	list[i] = newTarget
}
