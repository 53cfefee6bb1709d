// Command changeset-dump decodes changesets and prints their
// instruction streams in a human-readable form. It reads either a
// changeset log directory (as written by history.FileLog) or a single
// raw changeset file.
//
//	changeset-dump [flags] <log-dir | changeset-file>
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"github.com/nielsenko/realm-core/group"
	"github.com/nielsenko/realm-core/history"
	"github.com/nielsenko/realm-core/transact"
)

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "changeset-dump: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	from := flag.Uint64("from", 0, "Dump changesets after this version (log directories only; default: everything the log holds)")
	to := flag.Uint64("to", 0, "Dump changesets up to and including this version (0 = newest)")
	noColor := flag.Bool("no-color", false, "Disable ANSI colors even on a terminal")
	verbose := flag.Bool("v", false, "Enable debug logging")
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		return fmt.Errorf("expected exactly one path argument, got %d", flag.NArg())
	}
	path := flag.Arg(0)

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
	slog.SetDefault(logger)

	d := &dumper{
		w:     os.Stdout,
		color: !*noColor && term.IsTerminal(int(os.Stdout.Fd())),
	}

	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return dumpLog(d, logger, path, *from, *to)
	}
	return dumpFile(d, path)
}

// dumpLog walks a changeset log directory and dumps the requested
// version range, newest-bounded by what the log actually holds.
func dumpLog(d *dumper, logger *slog.Logger, dir string, from, to uint64) error {
	l, err := history.OpenFileLog(dir, 0, 0, 0)
	if err != nil {
		return fmt.Errorf("open log %s: %w", dir, err)
	}
	defer l.Close()

	base, last := l.BaseVersion(), l.LastVersion()
	if from < base {
		from = base
	}
	if to == 0 || to > last {
		to = last
	}
	logger.Debug("opened changeset log", "dir", dir, "base", base, "last", last)
	if from >= to {
		logger.Info("nothing to dump", "from", from, "to", to)
		return nil
	}

	changesets, err := l.Changesets(from, to)
	if err != nil {
		return err
	}
	for i, c := range changesets {
		if err := d.dump(c); err != nil {
			return fmt.Errorf("changeset %d: %w", from+uint64(i)+1, err)
		}
	}
	return nil
}

func dumpFile(d *dumper, path string) error {
	c, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return d.dump(c)
}

// ANSI color codes.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

// dumper implements transact.Handler by printing one line per
// instruction. Instructions addressing the selected table or list are
// indented under the select that introduced it.
type dumper struct {
	w     *os.File
	color bool
}

var _ transact.Handler = (*dumper)(nil)

func (d *dumper) dump(changeset []byte) error {
	p, err := transact.NewParser(changeset)
	if err != nil {
		return err
	}
	d.printf("%schangeset%s version=%d size=%d\n",
		d.paint(colorGreen), d.paint(colorReset), p.Version(), len(changeset))
	return p.Parse(d)
}

func (d *dumper) paint(code string) string {
	if !d.color {
		return ""
	}
	return code
}

func (d *dumper) printf(format string, args ...any) {
	fmt.Fprintf(d.w, format, args...)
}

// instr prints one top-level instruction.
func (d *dumper) instr(name, format string, args ...any) error {
	d.printf("  %s%s%s %s\n", d.paint(colorYellow), name, d.paint(colorReset),
		fmt.Sprintf(format, args...))
	return nil
}

// sub prints an instruction addressing the current selection.
func (d *dumper) sub(name, format string, args ...any) error {
	d.printf("    %s%s%s %s\n", d.paint(colorCyan), name, d.paint(colorReset),
		fmt.Sprintf(format, args...))
	return nil
}

func (d *dumper) InsertGroupLevelTable(ndx int, name string) error {
	return d.instr("insert_group_level_table", "ndx=%d name=%q", ndx, name)
}

func (d *dumper) EraseGroupLevelTable(ndx int) error {
	return d.instr("erase_group_level_table", "ndx=%d", ndx)
}

func (d *dumper) RenameGroupLevelTable(ndx int, name string) error {
	return d.instr("rename_group_level_table", "ndx=%d name=%q", ndx, name)
}

func (d *dumper) MoveGroupLevelTable(from, to int) error {
	return d.instr("move_group_level_table", "from=%d to=%d", from, to)
}

func (d *dumper) SelectTable(root int, path []transact.PathEntry) error {
	if len(path) == 0 {
		return d.instr("select_table", "root=%d", root)
	}
	s := fmt.Sprintf("root=%d path=", root)
	for i, e := range path {
		if i > 0 {
			s += "/"
		}
		s += fmt.Sprintf("%d.%d", e.Col, e.Row)
	}
	return d.instr("select_table", "%s", s)
}

func (d *dumper) SelectColumn(ndx int) error {
	return d.instr("select_column", "ndx=%d", ndx)
}

func (d *dumper) SelectLinkList(col, row int) error {
	return d.instr("select_link_list", "col=%d row=%d", col, row)
}

func (d *dumper) InsertColumn(ndx int, info transact.ColumnInfo) error {
	return d.sub("insert_column", "ndx=%d %s", ndx, describeColumn(info))
}

func (d *dumper) EraseColumn(ndx int) error {
	return d.sub("erase_column", "ndx=%d", ndx)
}

func (d *dumper) RenameColumn(ndx int, name string) error {
	return d.sub("rename_column", "ndx=%d name=%q", ndx, name)
}

func (d *dumper) MoveColumn(from, to int) error {
	return d.sub("move_column", "from=%d to=%d", from, to)
}

func (d *dumper) AddSearchIndex(ndx int) error {
	return d.sub("add_search_index", "ndx=%d", ndx)
}

func (d *dumper) RemoveSearchIndex(ndx int) error {
	return d.sub("remove_search_index", "ndx=%d", ndx)
}

func (d *dumper) InsertEmptyRows(ndx, n int) error {
	return d.sub("insert_empty_rows", "ndx=%d n=%d", ndx, n)
}

func (d *dumper) EraseRows(ndx, n int, moveLastOver bool) error {
	if moveLastOver {
		return d.sub("erase_rows", "ndx=%d n=%d move_last_over", ndx, n)
	}
	return d.sub("erase_rows", "ndx=%d n=%d", ndx, n)
}

func (d *dumper) ClearTable() error {
	return d.sub("clear_table", "")
}

func (d *dumper) OptimizeTable() error {
	return d.sub("optimize_table", "")
}

func (d *dumper) AddRowWithKey(col int, key int64) error {
	return d.sub("add_row_with_key", "col=%d key=%d", col, key)
}

func (d *dumper) MergeRows(from, to int) error {
	return d.sub("merge_rows", "from=%d to=%d", from, to)
}

func (d *dumper) SetInt(col, row int, v int64) error {
	return d.sub("set_int", "col=%d row=%d value=%d", col, row, v)
}

func (d *dumper) SetIntUnique(col, row int, v int64) error {
	return d.sub("set_int_unique", "col=%d row=%d value=%d", col, row, v)
}

func (d *dumper) SetBool(col, row int, v bool) error {
	return d.sub("set_bool", "col=%d row=%d value=%t", col, row, v)
}

func (d *dumper) SetFloat(col, row int, v float32) error {
	return d.sub("set_float", "col=%d row=%d value=%g", col, row, v)
}

func (d *dumper) SetDouble(col, row int, v float64) error {
	return d.sub("set_double", "col=%d row=%d value=%g", col, row, v)
}

func (d *dumper) SetString(col, row int, v string) error {
	return d.sub("set_string", "col=%d row=%d value=%q", col, row, v)
}

func (d *dumper) SetStringUnique(col, row int, v string) error {
	return d.sub("set_string_unique", "col=%d row=%d value=%q", col, row, v)
}

func (d *dumper) SetBinary(col, row int, v []byte) error {
	return d.sub("set_binary", "col=%d row=%d size=%d value=%x", col, row, len(v), v)
}

func (d *dumper) SetOldDateTime(col, row int, v int64) error {
	return d.sub("set_olddatetime", "col=%d row=%d value=%d", col, row, v)
}

func (d *dumper) SetTimestamp(col, row int, v group.Timestamp) error {
	return d.sub("set_timestamp", "col=%d row=%d seconds=%d nanoseconds=%d",
		col, row, v.Seconds, v.Nanoseconds)
}

func (d *dumper) SetMixed(col, row int, v group.Mixed) error {
	return d.sub("set_mixed", "col=%d row=%d %s", col, row, describeMixed(v))
}

func (d *dumper) SetNull(col, row int) error {
	return d.sub("set_null", "col=%d row=%d", col, row)
}

func (d *dumper) SetNullUnique(col, row int) error {
	return d.sub("set_null_unique", "col=%d row=%d", col, row)
}

func (d *dumper) InsertSubstring(col, row, pos int, s string) error {
	return d.sub("insert_substring", "col=%d row=%d pos=%d value=%q", col, row, pos, s)
}

func (d *dumper) EraseSubstring(col, row, pos, size int) error {
	return d.sub("erase_substring", "col=%d row=%d pos=%d size=%d", col, row, pos, size)
}

func (d *dumper) SetLink(col, row, target int) error {
	if target < 0 {
		return d.sub("set_link", "col=%d row=%d target=null", col, row)
	}
	return d.sub("set_link", "col=%d row=%d target=%d", col, row, target)
}

func (d *dumper) NullifyLink(col, row int) error {
	return d.sub("nullify_link", "col=%d row=%d", col, row)
}

func (d *dumper) LinkListInsert(ndx, target int) error {
	return d.sub("link_list_insert", "ndx=%d target=%d", ndx, target)
}

func (d *dumper) LinkListSet(ndx, target int) error {
	return d.sub("link_list_set", "ndx=%d target=%d", ndx, target)
}

func (d *dumper) LinkListErase(ndx int) error {
	return d.sub("link_list_erase", "ndx=%d", ndx)
}

func (d *dumper) LinkListMove(from, to int) error {
	return d.sub("link_list_move", "from=%d to=%d", from, to)
}

func (d *dumper) LinkListSwap(a, b int) error {
	return d.sub("link_list_swap", "a=%d b=%d", a, b)
}

func (d *dumper) LinkListClear() error {
	return d.sub("link_list_clear", "")
}

func describeColumn(info transact.ColumnInfo) string {
	s := fmt.Sprintf("name=%q type=%s", info.Name, info.Type)
	if info.Nullable {
		s += " nullable"
	}
	if info.SearchIndex {
		s += " indexed"
	}
	if info.Type == group.TypeLink || info.Type == group.TypeLinkList {
		s += fmt.Sprintf(" target=%d", info.Target)
		if info.LinkType == group.LinkStrong {
			s += " strong"
		}
	}
	if info.Type == group.TypeTable {
		s += fmt.Sprintf(" columns=%d", len(info.SubSpec))
	}
	return s
}

func describeMixed(v group.Mixed) string {
	switch v.Type {
	case group.TypeInt, group.TypeOldDateTime:
		return fmt.Sprintf("type=%s value=%d", v.Type, v.Int)
	case group.TypeBool:
		return fmt.Sprintf("type=bool value=%t", v.Bool)
	case group.TypeFloat:
		return fmt.Sprintf("type=float value=%g", v.Float)
	case group.TypeDouble:
		return fmt.Sprintf("type=double value=%g", v.Double)
	case group.TypeString:
		return fmt.Sprintf("type=string value=%q", v.String)
	case group.TypeBinary:
		return fmt.Sprintf("type=binary size=%d value=%x", len(v.Binary), v.Binary)
	case group.TypeTimestamp:
		return fmt.Sprintf("type=timestamp seconds=%d nanoseconds=%d",
			v.Timestamp.Seconds, v.Timestamp.Nanoseconds)
	case group.TypeTable:
		return "type=table"
	default:
		return fmt.Sprintf("type=%s", v.Type)
	}
}
