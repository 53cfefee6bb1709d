package group

import "slices"

// nullLink marks an unset link cell.
const nullLink = -1

// Column is the typed cell store for one column. Cell slices are kept
// in lockstep with the owning table's row count; the nulls bitmap is
// only allocated for nullable columns.
type Column struct {
	id   uint64 // stable within the group, survives repositioning
	spec ColumnSpec

	ints    []int64 // TypeInt, TypeOldDateTime
	bools   []bool
	floats  []float32
	doubles []float64
	strs    []string
	bins    [][]byte
	times   []Timestamp
	mixeds  []Mixed
	tables  []*Table
	links   []int
	lists   [][]int
	nulls   []bool
}

func newColumn(id uint64, spec ColumnSpec, rows int) *Column {
	c := &Column{id: id, spec: spec}
	c.insertRows(0, rows)
	return c
}

// insertRows splices n default-valued cells in at ndx.
func (c *Column) insertRows(ndx, n int) {
	switch c.spec.Type {
	case TypeInt, TypeOldDateTime:
		c.ints = slices.Insert(c.ints, ndx, make([]int64, n)...)
	case TypeBool:
		c.bools = slices.Insert(c.bools, ndx, make([]bool, n)...)
	case TypeFloat:
		c.floats = slices.Insert(c.floats, ndx, make([]float32, n)...)
	case TypeDouble:
		c.doubles = slices.Insert(c.doubles, ndx, make([]float64, n)...)
	case TypeString:
		c.strs = slices.Insert(c.strs, ndx, make([]string, n)...)
	case TypeBinary:
		c.bins = slices.Insert(c.bins, ndx, make([][]byte, n)...)
	case TypeTimestamp:
		c.times = slices.Insert(c.times, ndx, make([]Timestamp, n)...)
	case TypeMixed:
		fill := make([]Mixed, n)
		for i := range fill {
			fill[i] = MixedInt(0)
		}
		c.mixeds = slices.Insert(c.mixeds, ndx, fill...)
	case TypeTable:
		c.tables = slices.Insert(c.tables, ndx, make([]*Table, n)...)
	case TypeLink:
		fill := make([]int, n)
		for i := range fill {
			fill[i] = nullLink
		}
		c.links = slices.Insert(c.links, ndx, fill...)
	case TypeLinkList:
		c.lists = slices.Insert(c.lists, ndx, make([][]int, n)...)
	}
	if c.spec.Nullable {
		fill := make([]bool, n)
		for i := range fill {
			fill[i] = true // nullable cells default to null
		}
		c.nulls = slices.Insert(c.nulls, ndx, fill...)
	}
}

// eraseRow removes the cell at ndx, shifting later cells down.
func (c *Column) eraseRow(ndx int) {
	switch c.spec.Type {
	case TypeInt, TypeOldDateTime:
		c.ints = slices.Delete(c.ints, ndx, ndx+1)
	case TypeBool:
		c.bools = slices.Delete(c.bools, ndx, ndx+1)
	case TypeFloat:
		c.floats = slices.Delete(c.floats, ndx, ndx+1)
	case TypeDouble:
		c.doubles = slices.Delete(c.doubles, ndx, ndx+1)
	case TypeString:
		c.strs = slices.Delete(c.strs, ndx, ndx+1)
	case TypeBinary:
		c.bins = slices.Delete(c.bins, ndx, ndx+1)
	case TypeTimestamp:
		c.times = slices.Delete(c.times, ndx, ndx+1)
	case TypeMixed:
		c.mixeds = slices.Delete(c.mixeds, ndx, ndx+1)
	case TypeTable:
		c.tables = slices.Delete(c.tables, ndx, ndx+1)
	case TypeLink:
		c.links = slices.Delete(c.links, ndx, ndx+1)
	case TypeLinkList:
		c.lists = slices.Delete(c.lists, ndx, ndx+1)
	}
	if c.spec.Nullable {
		c.nulls = slices.Delete(c.nulls, ndx, ndx+1)
	}
}

// moveLastOver overwrites the cell at ndx with the last cell and
// truncates. Caller is responsible for all link bookkeeping.
func (c *Column) moveLastOver(ndx, last int) {
	if ndx != last {
		switch c.spec.Type {
		case TypeInt, TypeOldDateTime:
			c.ints[ndx] = c.ints[last]
		case TypeBool:
			c.bools[ndx] = c.bools[last]
		case TypeFloat:
			c.floats[ndx] = c.floats[last]
		case TypeDouble:
			c.doubles[ndx] = c.doubles[last]
		case TypeString:
			c.strs[ndx] = c.strs[last]
		case TypeBinary:
			c.bins[ndx] = c.bins[last]
		case TypeTimestamp:
			c.times[ndx] = c.times[last]
		case TypeMixed:
			c.mixeds[ndx] = c.mixeds[last]
		case TypeTable:
			c.tables[ndx] = c.tables[last]
		case TypeLink:
			c.links[ndx] = c.links[last]
		case TypeLinkList:
			c.lists[ndx] = c.lists[last]
		}
		if c.spec.Nullable {
			c.nulls[ndx] = c.nulls[last]
		}
	}
	c.eraseRow(last)
}

// clear drops all cells.
func (c *Column) clear() {
	c.ints = nil
	c.bools = nil
	c.floats = nil
	c.doubles = nil
	c.strs = nil
	c.bins = nil
	c.times = nil
	c.mixeds = nil
	c.tables = nil
	c.links = nil
	c.lists = nil
	c.nulls = nil
}

// length reports the cell count, used by Verify.
func (c *Column) length() int {
	switch c.spec.Type {
	case TypeInt, TypeOldDateTime:
		return len(c.ints)
	case TypeBool:
		return len(c.bools)
	case TypeFloat:
		return len(c.floats)
	case TypeDouble:
		return len(c.doubles)
	case TypeString:
		return len(c.strs)
	case TypeBinary:
		return len(c.bins)
	case TypeTimestamp:
		return len(c.times)
	case TypeMixed:
		return len(c.mixeds)
	case TypeTable:
		return len(c.tables)
	case TypeLink:
		return len(c.links)
	case TypeLinkList:
		return len(c.lists)
	}
	return 0
}

// setNullFlag updates the nulls bitmap if the column is nullable.
func (c *Column) setNullFlag(row int, null bool) {
	if c.spec.Nullable {
		c.nulls[row] = null
	}
}

// writeNull marks the cell at row null and resets its value to the
// type's zero so a later un-null read is deterministic.
func (c *Column) writeNull(row int) {
	switch c.spec.Type {
	case TypeInt, TypeOldDateTime:
		c.ints[row] = 0
	case TypeBool:
		c.bools[row] = false
	case TypeFloat:
		c.floats[row] = 0
	case TypeDouble:
		c.doubles[row] = 0
	case TypeString:
		c.strs[row] = ""
	case TypeBinary:
		c.bins[row] = nil
	case TypeTimestamp:
		c.times[row] = Timestamp{}
	}
	c.setNullFlag(row, true)
}

// isNull reports whether the cell at row is null.
func (c *Column) isNull(row int) bool {
	return c.spec.Nullable && c.nulls[row]
}
