package transact

import (
	"fmt"
	"log/slog"

	"github.com/nielsenko/realm-core/group"
)

// Applier replays a changeset against a target group by driving the
// same table API the source used. Consequences the encoder never wrote
// down (backlink bookkeeping, cascades, accessor motion) are recomputed
// here and land identically, because both sides run the same code over
// the same state.
//
// The first instruction that does not apply aborts the replay with
// ErrBadInstruction, leaving the target in the partially applied state.
type Applier struct {
	g   *group.Group
	log *slog.Logger

	sel  *group.Table
	list *group.LinkView
}

// NewApplier returns an applier targeting g. Instructions are traced
// to log at debug level; pass nil to disable tracing.
func NewApplier(g *group.Group, log *slog.Logger) *Applier {
	return &Applier{g: g, log: log}
}

// Apply parses changeset and replays it against g, returning the
// transaction version the changeset produces.
func Apply(changeset []byte, g *group.Group, log *slog.Logger) (uint64, error) {
	p, err := NewParser(changeset)
	if err != nil {
		return 0, err
	}
	if err := p.Parse(NewApplier(g, log)); err != nil {
		return 0, err
	}
	return p.Version(), nil
}

func (a *Applier) trace(instr string, args ...any) {
	if a.log != nil {
		a.log.Debug(instr, args...)
	}
}

func (a *Applier) bad(instr string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrBadInstruction, instr, err)
}

func (a *Applier) table(instr string) (*group.Table, error) {
	if a.sel == nil || !a.sel.IsAttached() {
		return nil, fmt.Errorf("%w: %s: no table selected", ErrBadInstruction, instr)
	}
	return a.sel, nil
}

func (a *Applier) linkList(instr string) (*group.LinkView, error) {
	if a.list == nil || !a.list.IsAttached() {
		return nil, fmt.Errorf("%w: %s: no link list selected", ErrBadInstruction, instr)
	}
	return a.list, nil
}

//
// Handler
//

func (a *Applier) InsertGroupLevelTable(ndx int, name string) error {
	a.trace("insert_group_level_table", "ndx", ndx, "name", name)
	if _, err := a.g.InsertTable(ndx, name); err != nil {
		return a.bad("insert_group_level_table", err)
	}
	return nil
}

func (a *Applier) EraseGroupLevelTable(ndx int) error {
	a.trace("erase_group_level_table", "ndx", ndx)
	if err := a.g.RemoveTable(ndx); err != nil {
		return a.bad("erase_group_level_table", err)
	}
	return nil
}

func (a *Applier) RenameGroupLevelTable(ndx int, name string) error {
	a.trace("rename_group_level_table", "ndx", ndx, "name", name)
	if err := a.g.RenameTable(ndx, name); err != nil {
		return a.bad("rename_group_level_table", err)
	}
	return nil
}

func (a *Applier) MoveGroupLevelTable(from, to int) error {
	a.trace("move_group_level_table", "from", from, "to", to)
	if err := a.g.MoveTable(from, to); err != nil {
		return a.bad("move_group_level_table", err)
	}
	return nil
}

func (a *Applier) SelectTable(root int, path []PathEntry) error {
	a.trace("select_table", "root", root, "depth", len(path))
	if root < 0 || root >= a.g.TableCount() {
		return fmt.Errorf("%w: select_table: table %d of %d", ErrBadInstruction, root, a.g.TableCount())
	}
	t := a.g.TableAt(root)
	for _, p := range path {
		if p.Col < 0 || p.Col >= t.ColumnCount() || t.ColumnType(p.Col) != group.TypeTable {
			return fmt.Errorf("%w: select_table: bad subtable column %d", ErrBadInstruction, p.Col)
		}
		if p.Row < 0 || p.Row >= t.Size() {
			return fmt.Errorf("%w: select_table: bad subtable row %d", ErrBadInstruction, p.Row)
		}
		t = t.GetSubtable(p.Col, p.Row)
	}
	a.sel = t
	a.list = nil
	return nil
}

// SelectColumn narrows the cursor to a column of the selected table.
// This encoder addresses columns explicitly on every instruction, so
// applying one only validates the index; it exists for streams from
// encoders that use the finer cursor.
func (a *Applier) SelectColumn(ndx int) error {
	a.trace("select_column", "ndx", ndx)
	t, err := a.table("select_column")
	if err != nil {
		return err
	}
	if ndx < 0 || ndx >= t.ColumnCount() {
		return fmt.Errorf("%w: select_column: column %d of %d", ErrBadInstruction, ndx, t.ColumnCount())
	}
	return nil
}

func (a *Applier) SelectLinkList(col, row int) error {
	a.trace("select_link_list", "col", col, "row", row)
	t, err := a.table("select_link_list")
	if err != nil {
		return err
	}
	l, err := t.LinkList(col, row)
	if err != nil {
		return a.bad("select_link_list", err)
	}
	a.list = l
	return nil
}

func (a *Applier) columnSpec(info ColumnInfo) (group.ColumnSpec, error) {
	spec := group.ColumnSpec{
		Name:        info.Name,
		Type:        info.Type,
		Nullable:    info.Nullable,
		LinkType:    info.LinkType,
		SearchIndex: info.SearchIndex,
	}
	switch info.Type {
	case group.TypeLink, group.TypeLinkList:
		if info.Target < 0 || info.Target >= a.g.TableCount() {
			return spec, fmt.Errorf("link target table %d of %d", info.Target, a.g.TableCount())
		}
		spec.Target = a.g.TableAt(info.Target)
	case group.TypeTable:
		for _, sub := range info.SubSpec {
			ss, err := a.columnSpec(sub)
			if err != nil {
				return spec, err
			}
			spec.SubSpec = append(spec.SubSpec, ss)
		}
	}
	return spec, nil
}

func (a *Applier) InsertColumn(ndx int, info ColumnInfo) error {
	a.trace("insert_column", "ndx", ndx, "name", info.Name, "type", info.Type.String())
	t, err := a.table("insert_column")
	if err != nil {
		return err
	}
	spec, err := a.columnSpec(info)
	if err != nil {
		return a.bad("insert_column", err)
	}
	if err := t.InsertColumn(ndx, spec); err != nil {
		return a.bad("insert_column", err)
	}
	return nil
}

func (a *Applier) EraseColumn(ndx int) error {
	a.trace("erase_column", "ndx", ndx)
	t, err := a.table("erase_column")
	if err != nil {
		return err
	}
	if err := t.EraseColumn(ndx); err != nil {
		return a.bad("erase_column", err)
	}
	return nil
}

func (a *Applier) RenameColumn(ndx int, name string) error {
	a.trace("rename_column", "ndx", ndx, "name", name)
	t, err := a.table("rename_column")
	if err != nil {
		return err
	}
	if err := t.RenameColumn(ndx, name); err != nil {
		return a.bad("rename_column", err)
	}
	return nil
}

func (a *Applier) MoveColumn(from, to int) error {
	a.trace("move_column", "from", from, "to", to)
	t, err := a.table("move_column")
	if err != nil {
		return err
	}
	if err := t.MoveColumn(from, to); err != nil {
		return a.bad("move_column", err)
	}
	return nil
}

func (a *Applier) AddSearchIndex(ndx int) error {
	a.trace("add_search_index", "ndx", ndx)
	t, err := a.table("add_search_index")
	if err != nil {
		return err
	}
	if err := t.AddSearchIndex(ndx); err != nil {
		return a.bad("add_search_index", err)
	}
	return nil
}

func (a *Applier) RemoveSearchIndex(ndx int) error {
	a.trace("remove_search_index", "ndx", ndx)
	t, err := a.table("remove_search_index")
	if err != nil {
		return err
	}
	if err := t.RemoveSearchIndex(ndx); err != nil {
		return a.bad("remove_search_index", err)
	}
	return nil
}

func (a *Applier) InsertEmptyRows(ndx, n int) error {
	a.trace("insert_empty_rows", "ndx", ndx, "n", n)
	t, err := a.table("insert_empty_rows")
	if err != nil {
		return err
	}
	if err := t.InsertEmptyRows(ndx, n); err != nil {
		return a.bad("insert_empty_rows", err)
	}
	return nil
}

func (a *Applier) EraseRows(ndx, n int, moveLastOver bool) error {
	a.trace("erase_rows", "ndx", ndx, "n", n, "move_last_over", moveLastOver)
	t, err := a.table("erase_rows")
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if moveLastOver {
			err = t.MoveLastOver(ndx)
		} else {
			err = t.EraseRow(ndx)
		}
		if err != nil {
			return a.bad("erase_rows", err)
		}
	}
	return nil
}

func (a *Applier) ClearTable() error {
	a.trace("clear_table")
	t, err := a.table("clear_table")
	if err != nil {
		return err
	}
	if err := t.Clear(); err != nil {
		return a.bad("clear_table", err)
	}
	return nil
}

func (a *Applier) OptimizeTable() error {
	a.trace("optimize_table")
	t, err := a.table("optimize_table")
	if err != nil {
		return err
	}
	if err := t.Optimize(); err != nil {
		return a.bad("optimize_table", err)
	}
	return nil
}

func (a *Applier) AddRowWithKey(col int, key int64) error {
	a.trace("add_row_with_key", "col", col, "key", key)
	t, err := a.table("add_row_with_key")
	if err != nil {
		return err
	}
	if _, err := t.AddRowWithKey(col, key); err != nil {
		return a.bad("add_row_with_key", err)
	}
	return nil
}

func (a *Applier) MergeRows(from, to int) error {
	a.trace("merge_rows", "from", from, "to", to)
	t, err := a.table("merge_rows")
	if err != nil {
		return err
	}
	if err := t.MergeRows(from, to); err != nil {
		return a.bad("merge_rows", err)
	}
	return nil
}

func (a *Applier) SetInt(col, row int, v int64) error {
	a.trace("set_int", "col", col, "row", row)
	t, err := a.table("set_int")
	if err != nil {
		return err
	}
	if err := t.SetInt(col, row, v); err != nil {
		return a.bad("set_int", err)
	}
	return nil
}

func (a *Applier) SetIntUnique(col, row int, v int64) error {
	a.trace("set_int_unique", "col", col, "row", row)
	t, err := a.table("set_int_unique")
	if err != nil {
		return err
	}
	if _, err := t.SetIntUnique(col, row, v); err != nil {
		return a.bad("set_int_unique", err)
	}
	return nil
}

func (a *Applier) SetBool(col, row int, v bool) error {
	a.trace("set_bool", "col", col, "row", row)
	t, err := a.table("set_bool")
	if err != nil {
		return err
	}
	if err := t.SetBool(col, row, v); err != nil {
		return a.bad("set_bool", err)
	}
	return nil
}

func (a *Applier) SetFloat(col, row int, v float32) error {
	a.trace("set_float", "col", col, "row", row)
	t, err := a.table("set_float")
	if err != nil {
		return err
	}
	if err := t.SetFloat(col, row, v); err != nil {
		return a.bad("set_float", err)
	}
	return nil
}

func (a *Applier) SetDouble(col, row int, v float64) error {
	a.trace("set_double", "col", col, "row", row)
	t, err := a.table("set_double")
	if err != nil {
		return err
	}
	if err := t.SetDouble(col, row, v); err != nil {
		return a.bad("set_double", err)
	}
	return nil
}

func (a *Applier) SetString(col, row int, v string) error {
	a.trace("set_string", "col", col, "row", row)
	t, err := a.table("set_string")
	if err != nil {
		return err
	}
	if err := t.SetString(col, row, v); err != nil {
		return a.bad("set_string", err)
	}
	return nil
}

func (a *Applier) SetStringUnique(col, row int, v string) error {
	a.trace("set_string_unique", "col", col, "row", row)
	t, err := a.table("set_string_unique")
	if err != nil {
		return err
	}
	if _, err := t.SetStringUnique(col, row, v); err != nil {
		return a.bad("set_string_unique", err)
	}
	return nil
}

func (a *Applier) SetBinary(col, row int, v []byte) error {
	a.trace("set_binary", "col", col, "row", row)
	t, err := a.table("set_binary")
	if err != nil {
		return err
	}
	if err := t.SetBinary(col, row, v); err != nil {
		return a.bad("set_binary", err)
	}
	return nil
}

func (a *Applier) SetOldDateTime(col, row int, v int64) error {
	a.trace("set_olddatetime", "col", col, "row", row)
	t, err := a.table("set_olddatetime")
	if err != nil {
		return err
	}
	if err := t.SetOldDateTime(col, row, v); err != nil {
		return a.bad("set_olddatetime", err)
	}
	return nil
}

func (a *Applier) SetTimestamp(col, row int, v group.Timestamp) error {
	a.trace("set_timestamp", "col", col, "row", row)
	t, err := a.table("set_timestamp")
	if err != nil {
		return err
	}
	if err := t.SetTimestamp(col, row, v); err != nil {
		return a.bad("set_timestamp", err)
	}
	return nil
}

func (a *Applier) SetMixed(col, row int, v group.Mixed) error {
	a.trace("set_mixed", "col", col, "row", row, "type", v.Type.String())
	t, err := a.table("set_mixed")
	if err != nil {
		return err
	}
	if err := t.SetMixed(col, row, v); err != nil {
		return a.bad("set_mixed", err)
	}
	return nil
}

func (a *Applier) SetNull(col, row int) error {
	a.trace("set_null", "col", col, "row", row)
	t, err := a.table("set_null")
	if err != nil {
		return err
	}
	if err := t.SetNull(col, row); err != nil {
		return a.bad("set_null", err)
	}
	return nil
}

func (a *Applier) SetNullUnique(col, row int) error {
	a.trace("set_null_unique", "col", col, "row", row)
	t, err := a.table("set_null_unique")
	if err != nil {
		return err
	}
	if _, err := t.SetNullUnique(col, row); err != nil {
		return a.bad("set_null_unique", err)
	}
	return nil
}

func (a *Applier) InsertSubstring(col, row, pos int, s string) error {
	a.trace("insert_substring", "col", col, "row", row, "pos", pos)
	t, err := a.table("insert_substring")
	if err != nil {
		return err
	}
	if err := t.InsertSubstring(col, row, pos, s); err != nil {
		return a.bad("insert_substring", err)
	}
	return nil
}

func (a *Applier) EraseSubstring(col, row, pos, size int) error {
	a.trace("erase_substring", "col", col, "row", row, "pos", pos, "size", size)
	t, err := a.table("erase_substring")
	if err != nil {
		return err
	}
	if err := t.EraseSubstring(col, row, pos, size); err != nil {
		return a.bad("erase_substring", err)
	}
	return nil
}

func (a *Applier) SetLink(col, row, target int) error {
	a.trace("set_link", "col", col, "row", row, "target", target)
	t, err := a.table("set_link")
	if err != nil {
		return err
	}
	if err := t.SetLink(col, row, target); err != nil {
		return a.bad("set_link", err)
	}
	return nil
}

func (a *Applier) NullifyLink(col, row int) error {
	a.trace("nullify_link", "col", col, "row", row)
	t, err := a.table("nullify_link")
	if err != nil {
		return err
	}
	if err := t.NullifyLink(col, row); err != nil {
		return a.bad("nullify_link", err)
	}
	return nil
}

func (a *Applier) LinkListInsert(ndx, target int) error {
	a.trace("link_list_insert", "ndx", ndx, "target", target)
	l, err := a.linkList("link_list_insert")
	if err != nil {
		return err
	}
	if err := l.Insert(ndx, target); err != nil {
		return a.bad("link_list_insert", err)
	}
	return nil
}

func (a *Applier) LinkListSet(ndx, target int) error {
	a.trace("link_list_set", "ndx", ndx, "target", target)
	l, err := a.linkList("link_list_set")
	if err != nil {
		return err
	}
	if err := l.Set(ndx, target); err != nil {
		return a.bad("link_list_set", err)
	}
	return nil
}

func (a *Applier) LinkListErase(ndx int) error {
	a.trace("link_list_erase", "ndx", ndx)
	l, err := a.linkList("link_list_erase")
	if err != nil {
		return err
	}
	if err := l.Erase(ndx); err != nil {
		return a.bad("link_list_erase", err)
	}
	return nil
}

func (a *Applier) LinkListMove(from, to int) error {
	a.trace("link_list_move", "from", from, "to", to)
	l, err := a.linkList("link_list_move")
	if err != nil {
		return err
	}
	if err := l.Move(from, to); err != nil {
		return a.bad("link_list_move", err)
	}
	return nil
}

func (a *Applier) LinkListSwap(x, y int) error {
	a.trace("link_list_swap", "a", x, "b", y)
	l, err := a.linkList("link_list_swap")
	if err != nil {
		return err
	}
	if err := l.Swap(x, y); err != nil {
		return a.bad("link_list_swap", err)
	}
	return nil
}

func (a *Applier) LinkListClear() error {
	a.trace("link_list_clear")
	l, err := a.linkList("link_list_clear")
	if err != nil {
		return err
	}
	if err := l.Clear(); err != nil {
		return a.bad("link_list_clear", err)
	}
	return nil
}

var _ Handler = (*Applier)(nil)
