package group

// Cascading delete is computed iteratively with an explicit worklist of
// rows that just lost a strong backlink. A row is removed only if, when
// its turn comes, it has no strong backlinks left; weak backlinks do
// not keep a row alive. Row removal uses move-last-over, so pending
// candidates are re-addressed as indices move.

type cascadeRow struct {
	table *Table
	row   int
}

type cascadeState struct {
	pending []cascadeRow
}

func (cs *cascadeState) push(t *Table, row int) {
	cs.pending = append(cs.pending, cascadeRow{t, row})
}

// fixupMove re-addresses pending candidates after t moved row last over
// removed row ndx.
func (cs *cascadeState) fixupMove(t *Table, ndx, last int) {
	out := cs.pending[:0]
	for _, c := range cs.pending {
		if c.table == t {
			if c.row == ndx {
				continue // row is gone
			}
			if c.row == last {
				c.row = ndx
			}
		}
		out = append(out, c)
	}
	cs.pending = out
}

// fixupErase re-addresses pending candidates after t erased row ndx in
// ordered mode.
func (cs *cascadeState) fixupErase(t *Table, ndx int) {
	out := cs.pending[:0]
	for _, c := range cs.pending {
		if c.table == t {
			if c.row == ndx {
				continue
			}
			if c.row > ndx {
				c.row--
			}
		}
		out = append(out, c)
	}
	cs.pending = out
}

// fixupClear drops pending candidates in a cleared table.
func (cs *cascadeState) fixupClear(t *Table) {
	out := cs.pending[:0]
	for _, c := range cs.pending {
		if c.table != t {
			out = append(out, c)
		}
	}
	cs.pending = out
}

// processCascade drains the worklist to a fixed point. Removal order
// within a pass is the order losses were observed, which both encoder
// and applier share, so the resulting state is deterministic.
func processCascade(cs *cascadeState) {
	for len(cs.pending) > 0 {
		c := cs.pending[0]
		cs.pending = cs.pending[1:]
		if c.table.strongBacklinkCount(c.row) > 0 {
			continue
		}
		c.table.moveLastOverInternal(c.row, cs)
	}
}
