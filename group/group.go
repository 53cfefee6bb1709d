package group

import (
	"fmt"
	"slices"
)

// Group is a collection of named top-level tables. It is the unit of
// replication: a changeset recorded against one group replays against
// any isomorphic group.
type Group struct {
	tables   []*Table
	observer Observer

	tableIDs uint64
	colIDs   uint64
}

// NewGroup returns an empty group.
func NewGroup() *Group {
	return &Group{}
}

// SetObserver installs o to receive every subsequent mutation of the
// group and its tables. Passing nil detaches the current observer.
func (g *Group) SetObserver(o Observer) { g.observer = o }

func (g *Group) nextTableID() uint64 {
	g.tableIDs++
	return g.tableIDs
}

func (g *Group) nextColID() uint64 {
	g.colIDs++
	return g.colIDs
}

// TableCount returns the number of group-level tables.
func (g *Group) TableCount() int { return len(g.tables) }

// TableAt returns the table at position ndx.
func (g *Group) TableAt(ndx int) *Table { return g.tables[ndx] }

// Table returns the table with the given name, or nil.
func (g *Group) Table(name string) *Table {
	for _, t := range g.tables {
		if t.name == name {
			return t
		}
	}
	return nil
}

// HasTable reports whether a table with the given name exists.
func (g *Group) HasTable(name string) bool { return g.Table(name) != nil }

// AddTable appends a new empty table and returns it. The name must be
// unused.
func (g *Group) AddTable(name string) (*Table, error) {
	return g.InsertTable(len(g.tables), name)
}

// InsertTable inserts a new empty table at position ndx. Tables are
// addressed by identity, so positions of existing tables shifting up
// is invisible to accessors and link specs.
func (g *Group) InsertTable(ndx int, name string) (*Table, error) {
	if ndx < 0 || ndx > len(g.tables) {
		return nil, fmt.Errorf("table %d of %d: %w", ndx, len(g.tables), ErrIndexOutOfRange)
	}
	if g.HasTable(name) {
		return nil, fmt.Errorf("table %q exists: %w", name, ErrInvalidArgument)
	}
	if g.observer != nil {
		g.observer.InsertGroupLevelTable(ndx, name)
	}
	t := newTable(g, g.nextTableID(), name)
	g.tables = slices.Insert(g.tables, ndx, t)
	return t, nil
}

// RemoveTable removes the table at position ndx. A table that is the
// link target of any other table cannot be removed; its own link
// columns (including self-links) are torn down first.
func (g *Group) RemoveTable(ndx int) error {
	if ndx < 0 || ndx >= len(g.tables) {
		return fmt.Errorf("table %d of %d: %w", ndx, len(g.tables), ErrIndexOutOfRange)
	}
	t := g.tables[ndx]
	for _, u := range g.tables {
		if u == t {
			continue
		}
		for _, c := range u.cols {
			if c.spec.Type.isLinkType() && c.spec.Target == t {
				return fmt.Errorf("table %q is a link target of %q: %w", t.name, u.name, ErrCrossTableLink)
			}
		}
	}
	if g.observer != nil {
		g.observer.EraseGroupLevelTable(ndx)
	}
	for _, c := range t.cols {
		if c.spec.Type.isLinkType() {
			delete(c.spec.Target.backlinks, backlinkKey{t, c.id})
		}
	}
	t.detach()
	g.tables = slices.Delete(g.tables, ndx, ndx+1)
	return nil
}

// RemoveTableByName removes the named table.
func (g *Group) RemoveTableByName(name string) error {
	t := g.Table(name)
	if t == nil {
		return fmt.Errorf("no table %q: %w", name, ErrInvalidArgument)
	}
	return g.RemoveTable(t.Index())
}

// RenameTable renames the table at position ndx. Link columns keep
// addressing it by identity.
func (g *Group) RenameTable(ndx int, name string) error {
	if ndx < 0 || ndx >= len(g.tables) {
		return fmt.Errorf("table %d of %d: %w", ndx, len(g.tables), ErrIndexOutOfRange)
	}
	if g.HasTable(name) {
		return fmt.Errorf("table %q exists: %w", name, ErrInvalidArgument)
	}
	if g.observer != nil {
		g.observer.RenameGroupLevelTable(ndx, name)
	}
	g.tables[ndx].name = name
	return nil
}

// MoveTable moves the table at position from to position to, shifting
// the tables in between. All accessors and link relationships survive.
func (g *Group) MoveTable(from, to int) error {
	if from < 0 || from >= len(g.tables) {
		return fmt.Errorf("table %d of %d: %w", from, len(g.tables), ErrIndexOutOfRange)
	}
	if to < 0 || to >= len(g.tables) {
		return fmt.Errorf("table %d of %d: %w", to, len(g.tables), ErrIndexOutOfRange)
	}
	if g.observer != nil {
		g.observer.MoveGroupLevelTable(from, to)
	}
	if from == to {
		return nil
	}
	t := g.tables[from]
	g.tables = slices.Delete(g.tables, from, from+1)
	g.tables = slices.Insert(g.tables, to, t)
	return nil
}

//
// Structural equality and internal consistency. Both are test aids:
// Equal establishes source/replica fidelity, Verify catches broken
// link/backlink duality.
//

// Equal reports whether g and other hold the same tables, schemas and
// data, position by position. Observer state, ids and accessor sets
// are ignored.
func (g *Group) Equal(other *Group) bool {
	if len(g.tables) != len(other.tables) {
		return false
	}
	for i := range g.tables {
		if g.tables[i].name != other.tables[i].name {
			return false
		}
		if !tableEqual(g.tables[i], other.tables[i]) {
			return false
		}
	}
	return true
}

func tableEqual(a, b *Table) bool {
	if len(a.cols) != len(b.cols) || a.rows != b.rows {
		return false
	}
	for i := range a.cols {
		if !specEqual(a.cols[i].spec, b.cols[i].spec) {
			return false
		}
	}
	for i := range a.cols {
		if !columnEqual(a.cols[i], b.cols[i], a.rows) {
			return false
		}
	}
	return true
}

func columnEqual(a, b *Column, rows int) bool {
	for r := 0; r < rows; r++ {
		if a.isNull(r) != b.isNull(r) {
			return false
		}
		if a.isNull(r) {
			continue
		}
		switch a.spec.Type {
		case TypeInt, TypeOldDateTime:
			if a.ints[r] != b.ints[r] {
				return false
			}
		case TypeBool:
			if a.bools[r] != b.bools[r] {
				return false
			}
		case TypeFloat:
			if a.floats[r] != b.floats[r] {
				return false
			}
		case TypeDouble:
			if a.doubles[r] != b.doubles[r] {
				return false
			}
		case TypeString:
			if a.strs[r] != b.strs[r] {
				return false
			}
		case TypeBinary:
			if !slices.Equal(a.bins[r], b.bins[r]) {
				return false
			}
		case TypeTimestamp:
			if a.times[r] != b.times[r] {
				return false
			}
		case TypeMixed:
			if !a.mixeds[r].Equal(b.mixeds[r]) {
				return false
			}
		case TypeTable:
			at, bt := a.tables[r], b.tables[r]
			if subRows(at) != subRows(bt) {
				return false
			}
			if at != nil && bt != nil && !tableEqual(at, bt) {
				return false
			}
		case TypeLink:
			if a.links[r] != b.links[r] {
				return false
			}
		case TypeLinkList:
			if !slices.Equal(a.lists[r], b.lists[r]) {
				return false
			}
		}
	}
	return true
}

func subRows(t *Table) int {
	if t == nil {
		return 0
	}
	return t.rows
}

// Verify checks the group's internal consistency: every forward link
// has exactly one matching backlink record and vice versa, link
// targets are in range, and subtable parent rows line up. It returns
// the first violation found.
func (g *Group) Verify() error {
	for _, t := range g.tables {
		if err := g.verifyTable(t); err != nil {
			return err
		}
	}
	return nil
}

func (g *Group) verifyTable(t *Table) error {
	for _, c := range t.cols {
		if got := c.length(); got != t.rows {
			return fmt.Errorf("group: table %q column %q has %d rows, want %d", t.name, c.spec.Name, got, t.rows)
		}
		switch c.spec.Type {
		case TypeLink:
			for r, tgt := range c.links {
				if tgt == nullLink {
					continue
				}
				if tgt < 0 || tgt >= c.spec.Target.rows {
					return fmt.Errorf("group: dangling link %q[%d] -> %d", t.name, r, tgt)
				}
				if !hasBacklink(c.spec.Target, backlinkKey{t, c.id}, tgt, r) {
					return fmt.Errorf("group: forward link %q[%d] -> %d has no backlink", t.name, r, tgt)
				}
			}
		case TypeLinkList:
			bl := c.spec.Target.backlinks[backlinkKey{t, c.id}]
			for r, list := range c.lists {
				for _, tgt := range list {
					if tgt < 0 || tgt >= c.spec.Target.rows {
						return fmt.Errorf("group: dangling list link %q[%d] -> %d", t.name, r, tgt)
					}
					if tgt >= len(bl) || countOf(bl[tgt], r) < countOf(list, tgt) {
						return fmt.Errorf("group: list link %q[%d] -> %d under-counted in backlinks", t.name, r, tgt)
					}
				}
			}
		case TypeTable:
			for r, sub := range c.tables {
				if sub == nil {
					continue
				}
				if sub.parent != t || sub.parentCol != c || sub.parentRow != r {
					return fmt.Errorf("group: subtable %q[%d] parent linkage broken", t.name, r)
				}
				if err := g.verifyTable(sub); err != nil {
					return err
				}
			}
		}
	}
	for key, rows := range t.backlinks {
		c := key.origin.columnByID(key.colID)
		if len(rows) != t.rows {
			return fmt.Errorf("group: backlink index into %q has %d rows, want %d", t.name, len(rows), t.rows)
		}
		if c == nil {
			continue // column removed, stale key
		}
		for target, entries := range rows {
			for _, originRow := range entries {
				if !forwardRefExists(c, originRow, target) {
					return fmt.Errorf("group: backlink %q[%d] <- %q[%d] has no forward link", t.name, target, key.origin.name, originRow)
				}
			}
		}
	}
	return nil
}

func hasBacklink(target *Table, key backlinkKey, targetRow, originRow int) bool {
	rows := target.backlinks[key]
	if targetRow >= len(rows) {
		return false
	}
	return slices.Contains(rows[targetRow], originRow)
}

func forwardRefExists(c *Column, originRow, target int) bool {
	if originRow < 0 || originRow >= c.length() {
		return false
	}
	if c.spec.Type == TypeLink {
		return c.links[originRow] == target
	}
	return slices.Contains(c.lists[originRow], target)
}

func countOf(s []int, v int) int {
	n := 0
	for _, x := range s {
		if x == v {
			n++
		}
	}
	return n
}
